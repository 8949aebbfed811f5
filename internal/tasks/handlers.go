package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"service-note-backend/internal/conversation"
	"service-note-backend/internal/db"
	"service-note-backend/internal/notes"
)

const (
	DefaultPollInterval = 800 * time.Millisecond
	DefaultPollTimeout  = 20 * time.Second
)

// FormatTrigger starts narrative formatting for a stored note without
// waiting for it.
type FormatTrigger interface {
	Trigger(noteID string)
}

// NarrativeFetcher reads the formatted text of a note, reporting false
// while it is not ready yet.
type NarrativeFetcher interface {
	FetchNarrative(ctx context.Context, noteID string) (string, bool, error)
}

type TaskHandler struct {
	Store     *Store
	Events    *db.DB
	Formatter FormatTrigger
	Extractor conversation.Extractor
	Sessions  *conversation.Registry
	Logger    *slog.Logger

	PollInterval time.Duration
	PollTimeout  time.Duration
}

func New(store *Store, formatter FormatTrigger, extractor conversation.Extractor) *TaskHandler {
	return &TaskHandler{
		Store:        store,
		Events:       store.DB,
		Formatter:    formatter,
		Extractor:    extractor,
		Sessions:     conversation.NewRegistry(),
		Logger:       slog.Default(),
		PollInterval: DefaultPollInterval,
		PollTimeout:  DefaultPollTimeout,
	}
}

// Submit persists the snapshot for a task, marks it submitted and asks the
// formatter for a narrative. A failed trigger never fails the submission.
func (h *TaskHandler) Submit(ctx context.Context, taskID string, answers notes.StoredAnswers) (string, error) {
	if taskID == "" {
		return "", &notes.ValidationError{Field: "task_id", Reason: "required"}
	}

	noteID, err := h.Store.UpsertSnapshot(ctx, taskID, answers)
	if err != nil {
		return "", err
	}
	if err := h.Store.SetStatus(ctx, taskID, StatusSubmitted); err != nil {
		return "", err
	}

	if h.Formatter != nil {
		h.Formatter.Trigger(noteID)
	} else {
		h.Logger.Warn("no formatter configured, narrative will not be produced", "note_id", noteID)
	}
	return noteID, nil
}

// Wait polls for the narrative of a submitted note using the handler's
// interval and ceiling.
func (h *TaskHandler) Wait(ctx context.Context, noteID string) (string, error) {
	return WaitForNarrative(ctx, h.Store, noteID, h.PollInterval, h.PollTimeout)
}

// WaitForNarrative polls fetcher until the note text is ready, the ceiling
// passes or ctx ends. Zero interval or ceiling use the defaults.
func WaitForNarrative(ctx context.Context, fetcher NarrativeFetcher, noteID string, interval, ceiling time.Duration) (string, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if ceiling <= 0 {
		ceiling = DefaultPollTimeout
	}

	start := time.Now()
	deadline := time.NewTimer(ceiling)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		text, ready, err := fetcher.FetchNarrative(ctx, noteID)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", fmt.Errorf("poll narrative: %w", err)
		}
		if ready {
			return text, nil
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-deadline.C:
			return "", &notes.TimeoutError{NoteID: noteID, Waited: time.Since(start)}
		case <-ticker.C:
		}
	}
}
