package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"service-note-backend/internal/narrative"
	"service-note-backend/internal/notes"
)

func newSummaryCommand() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print the one-paragraph summary for a fields file",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := loadFields(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), narrative.BuildSummary(f))
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "Fields file (.yaml, .yml or .json); - reads JSON or YAML from stdin")
	return cmd
}

func newDetailedCommand() *cobra.Command {
	var (
		file     string
		snapshot bool
	)
	cmd := &cobra.Command{
		Use:   "detailed",
		Short: "Print the labelled detailed text for a fields file",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := loadFields(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}
			if !snapshot {
				fmt.Fprintln(cmd.OutOrStdout(), narrative.BuildDetailed(f))
				return nil
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			enc.SetEscapeHTML(false)
			return enc.Encode(narrative.SerializeAnswers(notes.ToForm(f)))
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "Fields file (.yaml, .yml or .json); - reads JSON or YAML from stdin")
	cmd.Flags().BoolVar(&snapshot, "snapshot", false, "Print the stored answer snapshot instead of the text")
	return cmd
}

// loadFields reads a record from a YAML or JSON file and normalizes it.
func loadFields(stdin io.Reader, path string) (notes.Fields, error) {
	var (
		data []byte
		err  error
	)
	if path == "" || path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return notes.Fields{}, fmt.Errorf("reading fields: %w", err)
	}
	return parseFields(data, filepath.Ext(path))
}

func parseFields(data []byte, ext string) (notes.Fields, error) {
	ext = strings.ToLower(ext)
	trimmed := strings.TrimSpace(string(data))
	if ext == ".json" || (ext != ".yaml" && ext != ".yml" && strings.HasPrefix(trimmed, "{")) {
		if !json.Valid(data) {
			return notes.Fields{}, fmt.Errorf("fields file is not valid JSON")
		}
		return notes.Normalize(json.RawMessage(data)), nil
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return notes.Fields{}, fmt.Errorf("parsing fields YAML: %w", err)
	}
	return notes.Normalize(raw), nil
}
