// Package cmd provides the CLI commands for wiregate.
package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Sentinel-Gate/wiregate/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "wiregate",
	Short: "wiregate - HTTP/1.x server and client",
	Long: `wiregate is a small HTTP/1.x server with a fixed worker pool, and a
matching client.

Quick start:
  1. Create a config file: wiregate.yaml
  2. Run: wiregate serve

Configuration:
  Config is loaded from wiregate.yaml in the current directory,
  $HOME/.wiregate/, or /etc/wiregate/.

  Environment variables can override config values with the WIREGATE_ prefix.
  Example: WIREGATE_SERVER_HTTP_ADDR=:9090

Commands:
  serve          Start the server
  stop           Stop the running server
  fetch          GET or POST a URL and print the body
  encode         Base64-encode, gzip or brotli stdin
  decode         Base64-decode stdin
  hash-password  Generate an argon2id hash for a Basic auth user
  config show    Print the effective configuration
  version        Print version information`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./wiregate.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}

// parseLogLevel converts a string log level to slog.Level.
// Returns slog.LevelInfo for unrecognized values.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// newLogger writes text logs to w. DevMode always forces debug.
func newLogger(w io.Writer, level string, devMode bool) *slog.Logger {
	lvl := parseLogLevel(level)
	if devMode {
		lvl = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}
