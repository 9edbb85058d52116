package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/syltwerk/hotelchat/internal/config"
	"github.com/syltwerk/hotelchat/internal/logger"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "hotelchat",
	Short: "Multi-tenant hotel chat-assistant gateway",
	Long: `hotelchat answers hotel guests' questions. It grounds every question in the
hotel's FAQ, forwards it to a language model and returns sanitized HTML.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigFile,
		"Path to the YAML configuration file (optional)")
}

// loadConfig reads the configuration and installs the structured logger.
// The returned Closer flushes the logger and must be called before exit.
func loadConfig() (*config.Config, logger.Closer, error) {
	cfg, err := config.LoadFrom(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	l, closer := logger.New(cfg.Logging)
	slog.SetDefault(l)
	return cfg, closer, nil
}
