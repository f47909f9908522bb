package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sentinel-Gate/wiregate/internal/config"
	"github.com/Sentinel-Gate/wiregate/pkg/http1"
	"github.com/Sentinel-Gate/wiregate/pkg/transform"
)

var (
	fetchData    string
	fetchEncode  string
	fetchLevel   int
	fetchOut     string
	fetchUser    string
	fetchProxy   string
	fetchWait    time.Duration
	fetchHeaders bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch URL",
	Short: "GET or POST a URL and print the body",
	Long: `Fetch an http:// URL with the wiregate client and write the response
body to stdout or a file. With --data the request is a POST.

The body can be re-encoded on the way out with --encode base64, gzip or
brotli.

Examples:
  wiregate fetch http://127.0.0.1:8080/
  wiregate fetch --data 'hello' http://127.0.0.1:8080/echo
  wiregate fetch --user alice:secret --encode gzip --out page.gz http://host/private
  wiregate fetch --proxy 10.0.0.1:3128 http://example.com/`,
	Args: cobra.ExactArgs(1),
	RunE: runFetch,
}

func init() {
	f := fetchCmd.Flags()
	f.StringVarP(&fetchData, "data", "d", "", "send a POST with this body")
	f.StringVar(&fetchEncode, "encode", "", "re-encode the body: base64, gzip or brotli")
	f.IntVar(&fetchLevel, "level", 6, "compression level for gzip (1-9) or brotli (0-11)")
	f.StringVarP(&fetchOut, "out", "o", "", "write the body to this file instead of stdout")
	f.StringVarP(&fetchUser, "user", "u", "", "Basic auth credentials as user:password")
	f.StringVar(&fetchProxy, "proxy", "", "proxy host:port (default: client.proxy from config)")
	f.DurationVar(&fetchWait, "wait", 0, "read wait budget (default: client.wait from config)")
	f.BoolVarP(&fetchHeaders, "include", "i", false, "print status and header fields to stderr")
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := newLogger(cmd.ErrOrStderr(), cfg.Server.LogLevel, cfg.DevMode)

	wait := fetchWait
	if wait <= 0 {
		wait = cfg.Client.WaitDuration()
	}

	var openOpts []http1.OpenOption
	proxy := fetchProxy
	if proxy == "" {
		proxy = cfg.Client.Proxy
	}
	if proxy != "" {
		openOpts = append(openOpts, http1.WithProxy(proxy))
		if cfg.Client.ProxyUser != "" {
			openOpts = append(openOpts, http1.WithProxyAuth(cfg.Client.ProxyUser, cfg.Client.ProxyPassword))
		}
	}
	if fetchUser != "" {
		user, password, ok := strings.Cut(fetchUser, ":")
		if !ok {
			return fmt.Errorf("--user must be user:password")
		}
		openOpts = append(openOpts, http1.WithBasicAuth(user, password))
	}

	out := cmd.OutOrStdout()
	if fetchOut != "" {
		f, err := os.Create(fetchOut)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	pipe, err := outputPipeline(fetchEncode, fetchLevel, out)
	if err != nil {
		return err
	}

	var post []byte
	if cmd.Flags().Changed("data") {
		post = []byte(fetchData)
	}

	client := http1.NewClient(http1.WithClientLogger(logger))
	defer client.Close()
	code, err := fetch(cmd.Context(), client, args[0], post, wait, openOpts, pipe)
	if fetchHeaders && code != 0 {
		printHead(cmd.ErrOrStderr(), client)
	}
	if err != nil {
		return err
	}
	if code >= 400 {
		return fmt.Errorf("server answered %d", code)
	}
	return nil
}

// fetch performs one exchange on c and streams the body into pipe. A nil
// post means GET.
func fetch(ctx context.Context, c *http1.Client, uri string, post []byte, wait time.Duration, opts []http1.OpenOption, pipe *transform.Pipeline) (int, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := c.Open(ctx, uri, opts...); err != nil {
		_ = pipe.Close()
		return 0, fmt.Errorf("open %s: %w", uri, err)
	}

	var (
		code int
		err  error
	)
	if post != nil {
		code, err = c.Post(ctx, requestPath(uri), post, wait)
	} else {
		code, err = c.Get(ctx, requestPath(uri), wait)
	}
	if err != nil {
		_ = pipe.Close()
		return 0, err
	}

	_, copyErr := io.Copy(pipe, c.Body(wait))
	closeErr := pipe.Close()
	if copyErr != nil {
		return code, copyErr
	}
	return code, closeErr
}

// requestPath returns the path and query of an http:// URI, or "/".
func requestPath(uri string) string {
	rest := uri[min(len(uri), len("http://")):]
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		return rest[i:]
	}
	return "/"
}

func printHead(w io.Writer, c *http1.Client) {
	fmt.Fprintf(w, "%s %d\n", c.Version(), c.StatusCode())
	for name, value := range c.Header() {
		fmt.Fprintf(w, "%s: %s\n", name, value)
	}
	fmt.Fprintln(w)
}
