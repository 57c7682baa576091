package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/hray3182/sharedcal/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool

	cfg *config.Config
}

// NewRootCommand creates the calendard command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "calendard",
		Short:         "Shared calendar server",
		Long:          "calendard serves a small shared calendar: users, shared events and per-day completions.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			opts.cfg = cfg

			level, _ := cfg.SlogLevel()
			if opts.Verbose {
				level = slog.LevelDebug
			}
			handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
			slog.SetDefault(slog.New(handler))
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))

	return cmd
}
