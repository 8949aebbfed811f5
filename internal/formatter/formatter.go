package formatter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"service-note-backend/internal/expression"
	"service-note-backend/internal/narrative"
	"service-note-backend/internal/notes"
	"service-note-backend/internal/tasks"
)

const (
	defaultTimeout    = 60 * time.Second
	defaultRetryDelay = 2 * time.Second
)

// Composer polishes fact lines into a narrative paragraph.
type Composer interface {
	ComposeNarrative(ctx context.Context, destination, facts string) (string, error)
}

type NoteStore interface {
	LoadNote(ctx context.Context, noteID string) (tasks.Note, error)
	SetNarrative(ctx context.Context, noteID string, revision int, text string) error
	SetStatus(ctx context.Context, taskID string, status tasks.Status) error
}

// Formatter turns stored answer snapshots into narrative note text. Without
// a Composer, or when it fails, the deterministic summary is stored instead.
type Formatter struct {
	Store    NoteStore
	Composer Composer
	Logger   *slog.Logger

	Timeout    time.Duration
	RetryDelay time.Duration

	base     context.Context
	cancel   context.CancelFunc
	stopping chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func New(store NoteStore, composer Composer, logger *slog.Logger) *Formatter {
	if logger == nil {
		logger = slog.Default()
	}
	base, cancel := context.WithCancel(context.Background())
	return &Formatter{
		Store:      store,
		Composer:   composer,
		Logger:     logger,
		Timeout:    defaultTimeout,
		RetryDelay: defaultRetryDelay,
		base:       base,
		cancel:     cancel,
		stopping:   make(chan struct{}),
	}
}

// Trigger formats a note in the background. A failed attempt is retried
// once after RetryDelay; the caller never waits. After Shutdown it does
// nothing.
func (f *Formatter) Trigger(noteID string) {
	select {
	case <-f.stopping:
		f.Logger.Warn("formatter stopped, note not formatted", "note_id", noteID)
		return
	default:
	}

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		if err := f.attempt(noteID); err == nil {
			return
		}

		f.Logger.Info("format_retry_scheduled", "note_id", noteID, "delay", f.RetryDelay.String())
		timer := time.NewTimer(f.RetryDelay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-f.stopping:
			f.Logger.Warn("format_retry_dropped", "note_id", noteID)
			return
		}
		if err := f.attempt(noteID); err != nil {
			f.Logger.Warn("format_retry_failed", "note_id", noteID, "error", err.Error())
			return
		}
		f.Logger.Info("format_retry_ok", "note_id", noteID)
	}()
}

// Wait blocks until every triggered job has finished.
func (f *Formatter) Wait() {
	f.wg.Wait()
}

// Shutdown stops accepting jobs and drops pending retries, then waits for
// running attempts. When ctx ends first, running attempts are cancelled and
// ctx.Err() is returned once they have exited.
func (f *Formatter) Shutdown(ctx context.Context) error {
	f.stopOnce.Do(func() { close(f.stopping) })

	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		f.cancel()
		return nil
	case <-ctx.Done():
		f.cancel()
		<-done
		return ctx.Err()
	}
}

func (f *Formatter) attempt(noteID string) error {
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(f.base, timeout)
	defer cancel()

	_, err := f.Format(ctx, noteID)
	if errors.Is(err, tasks.ErrStaleSnapshot) {
		f.Logger.Info("format_superseded", "note_id", noteID)
		return nil
	}
	if err != nil {
		f.Logger.Warn("format_failed", "note_id", noteID, "error", err.Error())
	}
	return err
}

// Format builds, stores and returns the narrative for one note, then marks
// its task done. When the task was resubmitted while the text was being
// built, nothing is stored and tasks.ErrStaleSnapshot is returned.
func (f *Formatter) Format(ctx context.Context, noteID string) (string, error) {
	note, err := f.Store.LoadNote(ctx, noteID)
	if err != nil {
		return "", err
	}

	fields := notes.FromForm(notes.RestoreForm(&note.Answers, note.Destination))
	text := f.compose(ctx, fields)

	if err := f.Store.SetNarrative(ctx, noteID, note.Revision, text); err != nil {
		return "", err
	}
	if err := f.Store.SetStatus(ctx, note.TaskID, tasks.StatusDone); err != nil {
		return "", fmt.Errorf("mark task done: %w", err)
	}
	f.Logger.Debug("note formatted", "note_id", noteID, "task_id", note.TaskID)
	return text, nil
}

func (f *Formatter) compose(ctx context.Context, fields notes.Fields) string {
	var text string
	if f.Composer != nil {
		composed, err := f.Composer.ComposeNarrative(ctx, fields.Destination, narrative.BuildFacts(fields))
		if err != nil {
			f.Logger.Warn("narrative composer failed, using summary", "error", err)
		} else {
			text = strings.TrimSpace(composed)
		}
	}
	if text == "" {
		text = narrative.BuildSummary(fields)
	}
	return expression.Rewrite(text)
}
