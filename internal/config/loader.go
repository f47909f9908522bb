package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// InitViper points viper at configFile, or at the first wiregate.yaml or
// wiregate.yml found in ".", ~/.wiregate and the system directory. Only
// files with a YAML extension match, never the wiregate binary itself.
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		// ReadInConfig will return ConfigFileNotFoundError, which callers
		// treat as "env vars only".
		viper.SetConfigName("wiregate")
		viper.SetConfigType("yaml")
	}

	// WIREGATE_SERVER_HTTP_ADDR -> server.http_addr
	viper.SetEnvPrefix("WIREGATE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	bindEnvKeys()
}

func findConfigFile() string {
	dirs := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".wiregate"))
	}
	switch {
	case runtime.GOOS != "windows":
		dirs = append(dirs, "/etc/wiregate")
	case os.Getenv("ProgramData") != "":
		dirs = append(dirs, filepath.Join(os.Getenv("ProgramData"), "wiregate"))
	}
	return findConfigFileInPaths(dirs)
}

// findConfigFileInPaths returns the first wiregate.yaml or wiregate.yml in
// dirs, preferring .yaml within a directory, or "".
func findConfigFileInPaths(dirs []string) string {
	for _, dir := range dirs {
		for _, name := range [...]string{"wiregate.yaml", "wiregate.yml"} {
			candidate := filepath.Join(dir, name)
			if st, err := os.Stat(candidate); err == nil && !st.IsDir() {
				return candidate
			}
		}
	}
	return ""
}

// envKeys are the scalar keys bound to WIREGATE_* variables, so that
// Unmarshal sees an override even when the file lacks the key. Routes and
// users are lists and come from the file only.
var envKeys = []string{
	"server.http_addr", "server.workers", "server.request_wait",
	"server.start_timeout", "server.stop_timeout", "server.log_level",
	"server.pid_file",
	"access_log.output", "access_log.retention_days",
	"access_log.max_file_size_mb", "access_log.cache_size",
	"metrics.enabled", "metrics.http_addr",
	"telemetry.tracing",
	"client.proxy", "client.proxy_user", "client.proxy_password", "client.wait",
	"dev_mode",
}

func bindEnvKeys() {
	for _, key := range envKeys {
		_ = viper.BindEnv(key)
	}
}

// LoadConfig reads the configuration file, applies environment overrides,
// sets defaults, applies dev defaults and validates.
func LoadConfig() (*Config, error) {
	cfg, err := LoadConfigRaw()
	if err != nil {
		return nil, err
	}

	cfg.SetDevDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// LoadConfigRaw reads the configuration file and applies defaults,
// but does NOT apply dev defaults or validate.
// Use this when CLI flags may override DevMode before validation.
func LoadConfigRaw() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No file: continue with env vars only.
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.SetDefaults()
	return &cfg, nil
}

// ConfigFileUsed returns the path to the configuration file that was loaded.
// Returns an empty string if no config file was found (env vars only mode).
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}
