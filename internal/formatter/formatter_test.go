package formatter

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"service-note-backend/internal/db"
	"service-note-backend/internal/narrative"
	"service-note-backend/internal/notes"
	"service-note-backend/internal/tasks"
)

type composeFunc func(ctx context.Context, destination, facts string) (string, error)

func (f composeFunc) ComposeNarrative(ctx context.Context, destination, facts string) (string, error) {
	return f(ctx, destination, facts)
}

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func newStore(t *testing.T) *tasks.Store {
	t.Helper()
	d, err := db.Connect(db.SQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	require.NoError(t, d.Migrate(context.Background()))
	return tasks.NewStore(d)
}

// submitted stores a snapshot the way the submit endpoint does.
func submitted(t *testing.T, s *tasks.Store, form notes.NoteForm) (tasks.Task, string) {
	t.Helper()
	ctx := context.Background()
	task, err := s.CreateTask(ctx, tasks.Task{TaskDate: "2026-10-17", HelperEmail: "sato@example.com", Destination: "まごめ園"})
	require.NoError(t, err)
	noteID, err := s.UpsertSnapshot(ctx, task.ID, narrative.SerializeAnswers(form))
	require.NoError(t, err)
	require.NoError(t, s.SetStatus(ctx, task.ID, tasks.StatusSubmitted))
	return task, noteID
}

func sampleForm() notes.NoteForm {
	form := notes.DefaultForm()
	form.Condition = []string{"calm"}
	form.Mood = "sunny"
	return form
}

func TestFormat_Composer(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	task, noteID := submitted(t, store, sampleForm())

	var gotDest, gotFacts string
	f := New(store, composeFunc(func(_ context.Context, destination, facts string) (string, error) {
		gotDest, gotFacts = destination, facts
		return "  車でまごめ園へ移動しました。  ", nil
	}), quiet)

	text, err := f.Format(ctx, noteID)
	require.NoError(t, err)
	assert.Equal(t, "電車でまごめ園へ移動しました。", text)
	assert.Equal(t, "まごめ園", gotDest)
	assert.NotEmpty(t, gotFacts)

	stored, ready, err := store.FetchNarrative(ctx, noteID)
	require.NoError(t, err)
	assert.True(t, ready)
	assert.Equal(t, text, stored)

	got, err := store.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, tasks.StatusDone, got.Status)
}

func TestFormat_FallsBackToSummary(t *testing.T) {
	want := narrative.BuildSummary(notes.FromForm(notes.RestoreForm(&notes.StoredAnswers{Form: ptr(sampleForm())}, "まごめ園")))

	tests := []struct {
		name     string
		composer Composer
	}{
		{"no composer", nil},
		{"composer error", composeFunc(func(context.Context, string, string) (string, error) {
			return "", errors.New("upstream 503")
		})},
		{"blank output", composeFunc(func(context.Context, string, string) (string, error) {
			return "   ", nil
		})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStore(t)
			_, noteID := submitted(t, store, sampleForm())

			text, err := New(store, tt.composer, quiet).Format(context.Background(), noteID)
			require.NoError(t, err)
			assert.Equal(t, want, text)
			assert.Contains(t, text, "まごめ園までの移動支援を行いました。")
		})
	}
}

func TestFormat_MissingNote(t *testing.T) {
	_, err := New(newStore(t), nil, quiet).Format(context.Background(), "missing")
	assert.ErrorIs(t, err, tasks.ErrNotFound)
}

// flakyStore fails the first failures LoadNote calls.
type flakyStore struct {
	*tasks.Store
	failures int32
	loads    atomic.Int32
}

func (s *flakyStore) LoadNote(ctx context.Context, noteID string) (tasks.Note, error) {
	if s.loads.Add(1) <= s.failures {
		return tasks.Note{}, errors.New("connection reset")
	}
	return s.Store.LoadNote(ctx, noteID)
}

func TestTrigger_RetriesOnce(t *testing.T) {
	store := newStore(t)
	_, noteID := submitted(t, store, sampleForm())

	flaky := &flakyStore{Store: store, failures: 1}
	f := New(flaky, nil, quiet)
	f.RetryDelay = time.Millisecond

	f.Trigger(noteID)
	f.Wait()

	assert.Equal(t, int32(2), flaky.loads.Load())
	_, ready, err := store.FetchNarrative(context.Background(), noteID)
	require.NoError(t, err)
	assert.True(t, ready)
}

func TestTrigger_GivesUpAfterRetry(t *testing.T) {
	store := newStore(t)
	_, noteID := submitted(t, store, sampleForm())

	flaky := &flakyStore{Store: store, failures: 5}
	f := New(flaky, nil, quiet)
	f.RetryDelay = time.Millisecond

	f.Trigger(noteID)
	f.Wait()

	assert.Equal(t, int32(2), flaky.loads.Load())
	_, ready, err := store.FetchNarrative(context.Background(), noteID)
	require.NoError(t, err)
	assert.False(t, ready)
}

func TestTrigger_FeedsPolling(t *testing.T) {
	store := newStore(t)
	_, noteID := submitted(t, store, sampleForm())

	f := New(store, composeFunc(func(context.Context, string, string) (string, error) {
		time.Sleep(20 * time.Millisecond)
		return "まごめ園までの移動支援を行いました。", nil
	}), quiet)
	f.Trigger(noteID)

	text, err := tasks.WaitForNarrative(context.Background(), store, noteID, 5*time.Millisecond, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "まごめ園までの移動支援を行いました。", text)
	f.Wait()
}

func ptr[T any](v T) *T { return &v }

func TestFormat_SkipsStaleSnapshot(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	task, noteID := submitted(t, store, sampleForm())

	f := New(store, composeFunc(func(context.Context, string, string) (string, error) {
		// the helper resubmits while the text is being composed
		v2 := notes.DefaultForm()
		v2.Medication = "refused"
		_, err := store.UpsertSnapshot(ctx, task.ID, narrative.SerializeAnswers(v2))
		require.NoError(t, err)
		return "古い記録", nil
	}), quiet)

	_, err := f.Format(ctx, noteID)
	assert.ErrorIs(t, err, tasks.ErrStaleSnapshot)

	_, ready, err := store.FetchNarrative(ctx, noteID)
	require.NoError(t, err)
	assert.False(t, ready)

	got, err := store.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, tasks.StatusSubmitted, got.Status)
}

func TestTrigger_ResubmissionWins(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	task, noteID := submitted(t, store, sampleForm())

	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	f := New(store, composeFunc(func(_ context.Context, _, facts string) (string, error) {
		if calls.Add(1) == 1 {
			close(started)
			<-release
		}
		return facts, nil
	}), quiet)
	f.RetryDelay = time.Millisecond

	f.Trigger(noteID)
	<-started

	v2 := notes.DefaultForm()
	v2.Medication = "refused"
	again, err := store.UpsertSnapshot(ctx, task.ID, narrative.SerializeAnswers(v2))
	require.NoError(t, err)
	require.Equal(t, noteID, again)

	want, err := f.Format(ctx, noteID)
	require.NoError(t, err)
	assert.Contains(t, want, "服薬の拒否")

	close(release)
	f.Wait()

	text, ready, err := store.FetchNarrative(ctx, noteID)
	require.NoError(t, err)
	assert.True(t, ready)
	assert.Equal(t, want, text)
	assert.Equal(t, int32(2), calls.Load(), "the superseded job is not retried")
}

func TestShutdown_DropsPendingRetry(t *testing.T) {
	store := newStore(t)
	_, noteID := submitted(t, store, sampleForm())

	flaky := &flakyStore{Store: store, failures: 5}
	f := New(flaky, nil, quiet)
	f.RetryDelay = time.Hour

	f.Trigger(noteID)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	start := time.Now()
	require.NoError(t, f.Shutdown(ctx))
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, int32(1), flaky.loads.Load())

	// stopped formatters ignore new work
	f.Trigger(noteID)
	f.Wait()
	assert.Equal(t, int32(1), flaky.loads.Load())
}

func TestShutdown_CancelsRunningAttempt(t *testing.T) {
	store := newStore(t)
	_, noteID := submitted(t, store, sampleForm())

	started := make(chan struct{})
	f := New(store, composeFunc(func(ctx context.Context, _, _ string) (string, error) {
		close(started)
		<-ctx.Done()
		return "", ctx.Err()
	}), quiet)

	f.Trigger(noteID)
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, f.Shutdown(ctx), context.DeadlineExceeded)
}
