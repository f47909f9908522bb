package cel

import (
	"net/netip"
	"path"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/ext"

	"github.com/Sentinel-Gate/wiregate/pkg/http1"
)

// NewRequestEnvironment creates the CEL environment access expressions are
// compiled in. It declares:
//   - request: map with method, path, query, version and headers (lower-case names)
//   - remote: map with ip
//   - now: evaluation timestamp
//   - functions: ip_in_cidr(ip, cidr), path_matches(path, pattern)
func NewRequestEnvironment() (*cel.Env, error) {
	return cel.NewEnv(
		ext.Strings(),
		ext.Sets(),

		cel.Variable("request", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("remote", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("now", cel.TimestampType),

		// ip_in_cidr: ip_in_cidr(remote.ip, "10.0.0.0/8")
		cel.Function("ip_in_cidr",
			cel.Overload("ip_in_cidr_string_string",
				[]*cel.Type{cel.StringType, cel.StringType},
				cel.BoolType,
				cel.BinaryBinding(func(ipVal, cidrVal ref.Val) ref.Val {
					ip, ok := ipVal.Value().(string)
					if !ok {
						return types.Bool(false)
					}
					cidr, ok := cidrVal.Value().(string)
					if !ok {
						return types.Bool(false)
					}
					return types.Bool(ipInCIDR(ip, cidr))
				}),
			),
		),

		// path_matches: shell glob against a path, path_matches(request.path, "/admin/*")
		cel.Function("path_matches",
			cel.Overload("path_matches_string_string",
				[]*cel.Type{cel.StringType, cel.StringType},
				cel.BoolType,
				cel.BinaryBinding(func(pathVal, patternVal ref.Val) ref.Val {
					p, _ := pathVal.Value().(string)
					pattern, _ := patternVal.Value().(string)
					matched, _ := path.Match(pattern, p)
					return types.Bool(matched)
				}),
			),
		),
	)
}

func ipInCIDR(ip, cidr string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	prefix, err := netip.ParsePrefix(cidr)
	if err != nil {
		return false
	}
	return prefix.Contains(addr.Unmap())
}

// Input is what an expression sees of a request.
type Input struct {
	Method   string
	Path     string
	Query    string
	Version  string
	Headers  map[string]string
	RemoteIP netip.Addr
	Time     time.Time
}

// InputFromRequest extracts the expression input from r.
func InputFromRequest(remote netip.Addr, r *http1.Request) Input {
	return Input{
		Method:   r.Method(),
		Path:     r.Path(),
		Query:    r.Query(),
		Version:  r.Version().String(),
		Headers:  r.Headers(),
		RemoteIP: remote,
		Time:     time.Now(),
	}
}

func (in Input) activation() map[string]any {
	headers := in.Headers
	if headers == nil {
		headers = map[string]string{}
	}
	ip := ""
	if in.RemoteIP.IsValid() {
		ip = in.RemoteIP.Unmap().String()
	}
	now := in.Time
	if now.IsZero() {
		now = time.Now()
	}
	return map[string]any{
		"request": map[string]any{
			"method":  in.Method,
			"path":    in.Path,
			"query":   in.Query,
			"version": in.Version,
			"headers": headers,
		},
		"remote": map[string]any{
			"ip": ip,
		},
		"now": now,
	}
}
