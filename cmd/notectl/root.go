package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notectl",
		Short: "notectl - operator tool for caregiver service notes",
		Long: `notectl works with service note records outside the API: it rewrites
expressions, renders summaries and detailed text from a fields file, runs the
step-by-step interview against the extraction model and formats stored notes.`,
		Version:      version,
		SilenceUsage: true,
	}

	debugLogging := cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if *debugLogging {
			slog.SetLogLoggerLevel(slog.LevelDebug)
		}
	}

	cmd.AddCommand(newRewriteCommand())
	cmd.AddCommand(newSummaryCommand())
	cmd.AddCommand(newDetailedCommand())
	cmd.AddCommand(newInterviewCommand())
	cmd.AddCommand(newFormatCommand())
	cmd.AddCommand(newTokenCommand())

	return cmd
}
