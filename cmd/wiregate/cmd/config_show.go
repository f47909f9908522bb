package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Sentinel-Gate/wiregate/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the wiregate configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	Long: `Load wiregate.yaml and WIREGATE_* overrides, apply defaults, validate,
and print the result. Password hashes are masked.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}
		for i := range cfg.Auth.Users {
			cfg.Auth.Users[i].PasswordHash = "********"
		}
		if cfg.Client.ProxyPassword != "" {
			cfg.Client.ProxyPassword = "********"
		}

		out := cmd.OutOrStdout()
		if used := config.ConfigFileUsed(); used != "" {
			fmt.Fprintf(out, "# loaded from %s\n", used)
		} else {
			fmt.Fprintln(out, "# no config file found, defaults and environment only")
		}
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return err
		}
		return enc.Close()
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
