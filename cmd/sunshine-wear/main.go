package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/i474232898/sunshine-wear/internal/config"
	"github.com/i474232898/sunshine-wear/internal/logging"
)

var (
	cfg    *config.AppConfig
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "sunshine-wear",
	Short: "Sunshine Wear - phone to watch weather sync",
	Long: `Sunshine Wear pushes a compact weather summary from a phone to its paired watch
over a data layer relay, and renders it as a watchface on the watch.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, dotenv, err := config.Load()
		if err != nil {
			return err
		}
		l, err := logging.New(c.LogLevel, c.LogDevelopment)
		if err != nil {
			return fmt.Errorf("failed to build logger: %w", err)
		}
		if !dotenv {
			l.Debug("no .env file found")
		}
		cfg, logger = c, l.With(zap.String("node", c.NodeID))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
