package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"auditcache/internal/bootstrap/config"
	"auditcache/internal/bootstrap/logging"
	"auditcache/internal/errs"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration (defaults, file and env merged)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		format, _ := cmd.Flags().GetString("format")

		cfg, err := config.Load(ctx, cfgFile)
		if err != nil {
			return errs.Wrap(err, "load config")
		}
		return writeConfig(cmd.OutOrStdout(), cfg.Redacted(), format)
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)

	configShowCmd.Flags().String("format", "yaml", "Output format: yaml or toml")
}

func writeConfig(w io.Writer, cfg config.Config, format string) error {
	var (
		raw []byte
		err error
	)
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "yaml", "yml":
		raw, err = yaml.Marshal(cfg)
	case "toml":
		raw, err = toml.Marshal(cfg)
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
	if err != nil {
		return errs.Wrapf(err, "marshal config as %s", format)
	}
	if _, err := w.Write(raw); err != nil {
		return errs.Wrap(err, "write config")
	}
	return nil
}
