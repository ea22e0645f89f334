package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jghoshh/taskvibe/backend"
	"github.com/jghoshh/taskvibe/backend/config"
	"github.com/jghoshh/taskvibe/frontend"
	"github.com/spf13/cobra"
)

var envFile string

// NewRootCmd builds the taskvibe command tree.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "taskvibe",
		Short:        "TaskVibe - a gamified task manager",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", ".env file to load (default \".env\")")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(shellCmd())
	return rootCmd
}

func loadConfig() (*config.Config, error) {
	if envFile != "" {
		return config.Load(envFile)
	}
	return config.Load()
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the TaskVibe API server until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return backend.RunBackend(ctx, cfg)
		},
	}
}

func shellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Open the interactive TaskVibe shell",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			frontend.RunFrontend(cfg)
			return nil
		},
	}
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
