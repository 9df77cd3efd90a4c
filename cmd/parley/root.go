package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/parley/internal/config"
	"github.com/aretw0/parley/internal/logging"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "parley",
	Short: "Parley routes dialog turns to conversation handlers",
	Long: `Parley picks the handler that answers each user turn, keeps per-user
conversation state between turns and asks the user when intents are ambiguous.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to the configuration file")
	rootCmd.PersistentFlags().String("dir", "", "Directory of handler definitions (overrides handlers.dir)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error (overrides logging.level)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: text or json (overrides logging.format)")
}

// loadConfig reads --config, applies flag overrides and builds the logger.
// Logs always go to stderr so stdout stays free for chat and JSON-RPC.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")

	var cfg *config.Config
	if path != "" {
		c, err := config.Load(path)
		if err != nil {
			return nil, nil, err
		}
		cfg = c
	} else {
		c := config.Default()
		cfg = &c
	}

	if dir, _ := cmd.Flags().GetString("dir"); dir != "" {
		cfg.Handlers.Dir = dir
		cfg.Handlers.Files = nil
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Logging.Level = lvl
	}
	if format, _ := cmd.Flags().GetString("log-format"); format != "" {
		cfg.Logging.Format = format
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logging.NewWithFormat(os.Stderr, level, cfg.Logging.Format), nil
}
