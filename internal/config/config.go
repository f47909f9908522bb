// Package config provides configuration types for wiregate.
//
// The schema covers the worker-pool server, the routes it mounts, Basic
// auth users, the access log, metrics and tracing, and defaults for the
// fetch client. Every field can come from wiregate.yaml; scalar fields can
// also be overridden with WIREGATE_* environment variables.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Route kinds.
const (
	RouteStatic = "static"
	RouteEcho   = "echo"
	RouteText   = "text"
	RouteHealth = "health"
)

// Config is the top-level wiregate configuration.
type Config struct {
	// Server configures the HTTP/1.x listener and its worker pool.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Routes are mounted on the server in the order given; the server
	// reorders them so longer prefixes match first.
	Routes []RouteConfig `yaml:"routes" mapstructure:"routes" validate:"omitempty,dive"`

	// Auth holds the users routes can require.
	Auth AuthConfig `yaml:"auth" mapstructure:"auth"`

	// AccessLog configures where served requests are recorded.
	AccessLog AccessLogConfig `yaml:"access_log" mapstructure:"access_log"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`

	// Telemetry configures tracing.
	Telemetry TelemetryConfig `yaml:"telemetry" mapstructure:"telemetry"`

	// Client holds defaults for the fetch command.
	Client ClientConfig `yaml:"client" mapstructure:"client"`

	// DevMode enables debug logging and mounts a catch-all echo route when
	// no routes are configured.
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	// HTTPAddr is the address to listen on. Defaults to "127.0.0.1:8080".
	HTTPAddr string `yaml:"http_addr" mapstructure:"http_addr" validate:"omitempty,hostname_port"`

	// Workers is the size of the worker pool. Connections beyond it get 503.
	// Defaults to 16.
	Workers int `yaml:"workers" mapstructure:"workers" validate:"omitempty,min=1,max=4096"`

	// RequestWait bounds each socket read while a request is parsed
	// (e.g. "10s"). Defaults to "10s".
	RequestWait string `yaml:"request_wait" mapstructure:"request_wait" validate:"omitempty,duration"`

	// StartTimeout is how long serve waits for the accept loop. Defaults to "5s".
	StartTimeout string `yaml:"start_timeout" mapstructure:"start_timeout" validate:"omitempty,duration"`

	// StopTimeout is how long serve waits for workers to drain. Defaults to "30s".
	StopTimeout string `yaml:"stop_timeout" mapstructure:"stop_timeout" validate:"omitempty,duration"`

	// LogLevel sets the minimum log level.
	// Valid values: "debug", "info", "warn", "error".
	// Defaults to "info" if empty. DevMode=true overrides to "debug".
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	// PIDFile is where serve writes its process ID for the stop command.
	// Defaults to ~/.wiregate/server.pid.
	PIDFile string `yaml:"pid_file" mapstructure:"pid_file"`
}

// RouteConfig mounts one handler on a path prefix.
type RouteConfig struct {
	// Path is the prefix matched against the decoded request path.
	Path string `yaml:"path" mapstructure:"path" validate:"required,startswith=/"`

	// Kind selects the handler: static, echo, text or health.
	Kind string `yaml:"kind" mapstructure:"kind" validate:"required,route_kind"`

	// Dir is the directory served by a static route.
	Dir string `yaml:"dir" mapstructure:"dir"`

	// Text is the body of a text route.
	Text string `yaml:"text" mapstructure:"text"`

	// MIME is the content type of a text route. Defaults to "text/plain".
	MIME string `yaml:"mime" mapstructure:"mime"`

	// AuthUsers restricts the route to these users via Basic auth.
	AuthUsers []string `yaml:"auth_users" mapstructure:"auth_users"`

	// ACL is evaluated against the peer address; the last matching entry
	// decides and the default is allow.
	ACL []ACLEntryConfig `yaml:"acl" mapstructure:"acl" validate:"omitempty,dive"`

	// Rule is an optional CEL expression that must evaluate to true, e.g.
	// `request.method == "GET" && ip_in_cidr(remote.ip, "10.0.0.0/8")`.
	Rule string `yaml:"rule" mapstructure:"rule"`

	// RateLimit caps requests per client address. A zero rate disables it.
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// RateLimitConfig admits Rate requests per Period from each client, with
// bursts of up to Burst.
type RateLimitConfig struct {
	Rate  int `yaml:"rate" mapstructure:"rate" validate:"omitempty,min=1"`
	Burst int `yaml:"burst" mapstructure:"burst" validate:"omitempty,min=1"`
	// Period defaults to "1s".
	Period string `yaml:"period" mapstructure:"period" validate:"omitempty,duration"`
}

// ACLEntryConfig is one CIDR entry of a route ACL.
type ACLEntryConfig struct {
	CIDR   string `yaml:"cidr" mapstructure:"cidr" validate:"required,cidr|ip"`
	Action string `yaml:"action" mapstructure:"action" validate:"required,oneof=allow deny"`
	// Expires is an optional lifetime counted from server start (e.g. "24h").
	Expires string `yaml:"expires" mapstructure:"expires" validate:"omitempty,duration"`
}

// AuthConfig holds Basic auth users.
type AuthConfig struct {
	Users []UserConfig `yaml:"users" mapstructure:"users" validate:"omitempty,dive"`
}

// UserConfig is a Basic auth user.
type UserConfig struct {
	Name string `yaml:"name" mapstructure:"name" validate:"required,excludes=:"`
	// PasswordHash is an argon2id PHC string. Generate it with
	// `wiregate hash-password`.
	PasswordHash string `yaml:"password_hash" mapstructure:"password_hash" validate:"required,startswith=$argon2id$"`
}

// AccessLogConfig configures the access log store.
type AccessLogConfig struct {
	// Output is "" (disabled), "file://<absolute dir>" for rotating JSON
	// Lines files, or "sqlite://<absolute file>".
	Output string `yaml:"output" mapstructure:"output" validate:"access_log_output"`
	// RetentionDays is the number of days to keep log files. Defaults to 7.
	RetentionDays int `yaml:"retention_days" mapstructure:"retention_days" validate:"omitempty,min=1"`
	// MaxFileSizeMB is the size at which a log file rotates. Defaults to 100.
	MaxFileSizeMB int `yaml:"max_file_size_mb" mapstructure:"max_file_size_mb" validate:"omitempty,min=1"`
	// CacheSize is the number of recent entries kept in memory. Defaults to 1000.
	CacheSize int `yaml:"cache_size" mapstructure:"cache_size" validate:"omitempty,min=1"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// HTTPAddr serves /metrics. Defaults to "127.0.0.1:9090".
	HTTPAddr string `yaml:"http_addr" mapstructure:"http_addr" validate:"omitempty,hostname_port"`
}

// TelemetryConfig configures tracing.
type TelemetryConfig struct {
	// Tracing exports one span per served request to stdout.
	Tracing bool `yaml:"tracing" mapstructure:"tracing"`
}

// ClientConfig holds defaults for the fetch command.
type ClientConfig struct {
	Proxy         string `yaml:"proxy" mapstructure:"proxy" validate:"omitempty,hostname_port"`
	ProxyUser     string `yaml:"proxy_user" mapstructure:"proxy_user"`
	ProxyPassword string `yaml:"proxy_password" mapstructure:"proxy_password"`
	// Wait bounds each response read. Defaults to "30s".
	Wait string `yaml:"wait" mapstructure:"wait" validate:"omitempty,duration"`
}

// SetDevDefaults applies permissive defaults for development mode, before
// validation.
func (c *Config) SetDevDefaults() {
	if !c.DevMode {
		return
	}
	c.Server.LogLevel = "debug"
	if len(c.Routes) == 0 {
		c.Routes = []RouteConfig{{Path: "/", Kind: RouteEcho}}
	}
}

// SetDefaults applies default values to unset fields.
func (c *Config) SetDefaults() {
	// Bind to localhost unless told otherwise.
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = "127.0.0.1:8080"
	}
	if c.Server.Workers == 0 {
		c.Server.Workers = 16
	}
	if c.Server.RequestWait == "" {
		c.Server.RequestWait = "10s"
	}
	if c.Server.StartTimeout == "" {
		c.Server.StartTimeout = "5s"
	}
	if c.Server.StopTimeout == "" {
		c.Server.StopTimeout = "30s"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}

	for i := range c.Routes {
		if c.Routes[i].Kind == RouteText && c.Routes[i].MIME == "" {
			c.Routes[i].MIME = "text/plain"
		}
		if c.Routes[i].RateLimit.Rate > 0 && c.Routes[i].RateLimit.Period == "" {
			c.Routes[i].RateLimit.Period = "1s"
		}
	}

	if c.AccessLog.RetentionDays == 0 {
		c.AccessLog.RetentionDays = 7
	}
	if c.AccessLog.MaxFileSizeMB == 0 {
		c.AccessLog.MaxFileSizeMB = 100
	}
	if c.AccessLog.CacheSize == 0 {
		c.AccessLog.CacheSize = 1000
	}

	// Metrics are on unless explicitly disabled.
	if !viper.IsSet("metrics.enabled") {
		c.Metrics.Enabled = true
	}
	if c.Metrics.HTTPAddr == "" {
		c.Metrics.HTTPAddr = "127.0.0.1:9090"
	}

	if c.Client.Wait == "" {
		c.Client.Wait = "30s"
	}
}

// RequestWaitDuration returns the parsed server.request_wait.
func (s ServerConfig) RequestWaitDuration() time.Duration { return mustDuration(s.RequestWait) }

// StartTimeoutDuration returns the parsed server.start_timeout.
func (s ServerConfig) StartTimeoutDuration() time.Duration { return mustDuration(s.StartTimeout) }

// StopTimeoutDuration returns the parsed server.stop_timeout.
func (s ServerConfig) StopTimeoutDuration() time.Duration { return mustDuration(s.StopTimeout) }

// WaitDuration returns the parsed client.wait.
func (c ClientConfig) WaitDuration() time.Duration { return mustDuration(c.Wait) }

// PeriodDuration returns the parsed rate limit period.
func (r RateLimitConfig) PeriodDuration() time.Duration { return mustDuration(r.Period) }

// ExpiresDuration returns the parsed ACL lifetime, or zero for none.
func (e ACLEntryConfig) ExpiresDuration() time.Duration { return mustDuration(e.Expires) }

// mustDuration parses a duration that Validate already accepted.
func mustDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}
