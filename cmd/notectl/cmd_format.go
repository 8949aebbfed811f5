package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"service-note-backend/internal/ai"
	"service-note-backend/internal/config"
	"service-note-backend/internal/db"
	"service-note-backend/internal/formatter"
	"service-note-backend/internal/tasks"
)

func newFormatCommand() *cobra.Command {
	var offline bool
	cmd := &cobra.Command{
		Use:   "format NOTE_ID",
		Short: "Format a stored note now and print its narrative",
		Long: `Builds the narrative for a submitted note, stores it and marks the task done.
With --offline the model is skipped and the deterministic summary is stored.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			database, err := db.Connect(cfg.DBDriver, cfg.ConnString())
			if err != nil {
				return err
			}
			defer database.Close()

			var composer formatter.Composer
			if !offline {
				if cfg.OpenAIKey == "" {
					return fmt.Errorf("OPENAI_API_KEY is required unless --offline is set")
				}
				client, err := ai.New(cfg.OpenAIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL)
				if err != nil {
					return err
				}
				composer = client
			}

			f := formatter.New(tasks.NewStore(database), composer, slog.Default())
			text, err := f.Format(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("formatting note %s: %w", args[0], err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "Store the deterministic summary without calling the model")
	return cmd
}
