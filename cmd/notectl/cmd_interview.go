package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"service-note-backend/internal/ai"
	"service-note-backend/internal/config"
	"service-note-backend/internal/conversation"
	"service-note-backend/internal/narrative"
	"service-note-backend/internal/notes"
)

const senderLabelWidth = 10

// askFunc returns the helper's answer for a step. io.EOF ends the interview.
type askFunc func(step conversation.Step) (string, error)

func newInterviewCommand() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "interview",
		Short: "Run the step-by-step interview against the extraction model",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if cfg.OpenAIKey == "" {
				return fmt.Errorf("OPENAI_API_KEY is required")
			}
			client, err := ai.New(cfg.OpenAIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL)
			if err != nil {
				return err
			}

			initial := notes.Empty()
			if file != "" {
				if initial, err = loadFields(cmd.InOrStdin(), file); err != nil {
					return err
				}
			}

			engine := conversation.New(client, initial)
			in, out := cmd.InOrStdin(), cmd.OutOrStdout()
			return runInterview(cmd.Context(), engine, newAsker(in, out), out)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Initial fields file (.yaml, .yml or .json)")
	return cmd
}

// newAsker uses a huh input on a terminal and plain lines otherwise.
func newAsker(in io.Reader, out io.Writer) askFunc {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return func(step conversation.Step) (string, error) {
			var answer string
			err := huh.NewForm(
				huh.NewGroup(
					huh.NewInput().
						Title(step.Prompt).
						Description(step.Hint).
						Value(&answer),
				),
			).WithInput(in).WithOutput(out).Run()
			if errors.Is(err, huh.ErrUserAborted) {
				return "", io.EOF
			}
			return answer, err
		}
	}

	reader := bufio.NewReader(in)
	return func(step conversation.Step) (string, error) {
		fmt.Fprint(out, "> ")
		line, err := reader.ReadString('\n')
		if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
			return "", err
		}
		return strings.TrimRight(line, "\r\n"), nil
	}
}

// runInterview feeds answers to the engine until the last step is reflected
// or input runs out, then prints the transcript and the resulting texts.
func runInterview(ctx context.Context, engine *conversation.Engine, ask askFunc, out io.Writer) error {
	printed := 0
	flush := func() {
		transcript := engine.State().Transcript
		for _, msg := range transcript[printed:] {
			fmt.Fprintf(out, "%s %s\n", padRight(senderLabel(msg.From), senderLabelWidth), msg.Text)
		}
		printed = len(transcript)
	}

	for {
		flush()
		step, ok := engine.CurrentStep()
		if !ok {
			break
		}
		p := engine.Progress()
		fmt.Fprintf(out, "(%d/%d)\n", p.Current, p.Total)

		answer, err := ask(step)
		if errors.Is(err, io.EOF) {
			flush()
			fmt.Fprintln(out, "interview stopped before the last step")
			return nil
		}
		if err != nil {
			return err
		}

		err = engine.SubmitAnswer(ctx, answer)
		var validation *notes.ValidationError
		var extraction *notes.ExtractionError
		switch {
		case err == nil, errors.As(err, &validation), errors.As(err, &extraction):
		case errors.Is(err, conversation.ErrFinished):
		default:
			return err
		}
	}

	state := engine.State()
	fmt.Fprintln(out)
	fmt.Fprintln(out, state.Summary)
	fmt.Fprintln(out)
	fmt.Fprintln(out, narrative.BuildDetailed(state.Fields))
	return nil
}

func senderLabel(s conversation.Sender) string {
	if s == conversation.FromUser {
		return "ヘルパー"
	}
	return "システム"
}

// padRight pads s with spaces so its terminal display width reaches width.
func padRight(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	return s + strings.Repeat(" ", width-sw)
}
