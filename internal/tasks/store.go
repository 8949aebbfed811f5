package tasks

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"service-note-backend/internal/db"
	"service-note-backend/internal/notes"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrStaleSnapshot means the snapshot was resubmitted after the caller
	// read it; the write was skipped.
	ErrStaleSnapshot = errors.New("snapshot changed since it was read")
)

// Note is one persisted service note with its task's scheduled destination.
type Note struct {
	ID          string
	TaskID      string
	Answers     notes.StoredAnswers
	NoteText    string
	Destination string
	// Revision counts submissions of this task's snapshot, starting at 1.
	Revision int
}

// NoteListing is a note together with the task it belongs to.
type NoteListing struct {
	NoteID   string               `json:"note_id"`
	NoteText string               `json:"note_text"`
	Answers  *notes.StoredAnswers `json:"answers,omitempty"`
	Task     Task                 `json:"task"`
}

type Store struct {
	DB *db.DB
}

func NewStore(d *db.DB) *Store {
	return &Store{DB: d}
}

// CreateTask inserts a schedule task. An empty ID gets a fresh uuid.
func (s *Store) CreateTask(ctx context.Context, t Task) (Task, error) {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.Status == "" {
		t.Status = StatusScheduled
	}
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO schedule_tasks (
			id, task_date, helper_name, helper_email, client_name,
			start_time, end_time, destination, status
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.TaskDate, t.HelperName, nullIfEmpty(t.HelperEmail), t.ClientName,
		t.StartTime, t.EndTime, nullIfEmpty(t.Destination), string(t.Status))
	if err != nil {
		return Task{}, fmt.Errorf("insert task: %w", err)
	}
	return t, nil
}

const taskColumns = `
	id, task_date, helper_name, COALESCE(helper_email, ''), client_name,
	start_time, end_time, COALESCE(destination, ''), status`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (Task, error) {
	var t Task
	var status string
	err := row.Scan(&t.ID, &t.TaskDate, &t.HelperName, &t.HelperEmail, &t.ClientName,
		&t.StartTime, &t.EndTime, &t.Destination, &status)
	t.Status = Status(status)
	return t, err
}

func (s *Store) GetTask(ctx context.Context, taskID string) (Task, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM schedule_tasks WHERE id = ?`, taskID)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, ErrNotFound
	}
	if err != nil {
		return Task{}, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// ListTasks returns a helper's tasks, optionally limited to one date.
func (s *Store) ListTasks(ctx context.Context, helperEmail, date string) ([]Task, error) {
	query := `SELECT ` + taskColumns + ` FROM schedule_tasks WHERE helper_email = ?`
	args := []any{helperEmail}
	if date != "" {
		query += ` AND task_date = ?`
		args = append(args, date)
	}
	query += ` ORDER BY task_date, start_time, id`

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	out := []Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) SetStatus(ctx context.Context, taskID string, status Status) error {
	res, err := s.DB.ExecContext(ctx, `UPDATE schedule_tasks SET status = ? WHERE id = ?`, string(status), taskID)
	if err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpsertSnapshot stores the answer snapshot for a task, one row per task.
// A resubmission overwrites the answers, bumps the revision and clears the
// previous narrative.
func (s *Store) UpsertSnapshot(ctx context.Context, taskID string, answers notes.StoredAnswers) (string, error) {
	b, err := json.Marshal(answers)
	if err != nil {
		return "", fmt.Errorf("marshal answers: %w", err)
	}

	now := time.Now().UTC()
	var noteID string
	err = s.DB.QueryRowContext(ctx, `
		INSERT INTO service_notes (id, task_id, answers, note_text, revision, created_at, updated_at)
		VALUES (?, ?, ?, NULL, 1, ?, ?)
		ON CONFLICT (task_id) DO UPDATE SET
			answers = excluded.answers,
			note_text = NULL,
			revision = service_notes.revision + 1,
			updated_at = excluded.updated_at
		RETURNING id
	`, uuid.New().String(), taskID, string(b), now, now).Scan(&noteID)
	if err != nil {
		return "", fmt.Errorf("upsert snapshot: %w", err)
	}
	return noteID, nil
}

// LoadSnapshot returns the stored answers for a task, or nil when the task
// has never been submitted.
func (s *Store) LoadSnapshot(ctx context.Context, taskID string) (*notes.StoredAnswers, error) {
	var raw []byte
	err := s.DB.QueryRowContext(ctx, `SELECT answers FROM service_notes WHERE task_id = ?`, taskID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	var answers notes.StoredAnswers
	if err := json.Unmarshal(raw, &answers); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &answers, nil
}

func (s *Store) LoadNote(ctx context.Context, noteID string) (Note, error) {
	var (
		n        Note
		raw      []byte
		noteText sql.NullString
	)
	err := s.DB.QueryRowContext(ctx, `
		SELECT n.id, n.task_id, n.answers, n.note_text, n.revision, COALESCE(t.destination, '')
		FROM service_notes n
		JOIN schedule_tasks t ON t.id = n.task_id
		WHERE n.id = ?
	`, noteID).Scan(&n.ID, &n.TaskID, &raw, &noteText, &n.Revision, &n.Destination)
	if errors.Is(err, sql.ErrNoRows) {
		return Note{}, ErrNotFound
	}
	if err != nil {
		return Note{}, fmt.Errorf("load note: %w", err)
	}
	if err := json.Unmarshal(raw, &n.Answers); err != nil {
		return Note{}, fmt.Errorf("decode snapshot: %w", err)
	}
	n.NoteText = noteText.String
	return n, nil
}

// FetchNarrative reports the formatted note text and whether it is ready.
func (s *Store) FetchNarrative(ctx context.Context, noteID string) (string, bool, error) {
	var text sql.NullString
	err := s.DB.QueryRowContext(ctx, `SELECT note_text FROM service_notes WHERE id = ?`, noteID).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, ErrNotFound
	}
	if err != nil {
		return "", false, fmt.Errorf("fetch narrative: %w", err)
	}
	if !text.Valid || strings.TrimSpace(text.String) == "" {
		return "", false, nil
	}
	return text.String, true, nil
}

// SetNarrative stores the text built from the given snapshot revision. It
// returns ErrStaleSnapshot when the task was resubmitted in the meantime.
func (s *Store) SetNarrative(ctx context.Context, noteID string, revision int, text string) error {
	res, err := s.DB.ExecContext(ctx, `
		UPDATE service_notes SET note_text = ?, updated_at = ? WHERE id = ? AND revision = ?
	`, text, time.Now().UTC(), noteID, revision)
	if err != nil {
		return fmt.Errorf("set narrative: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil || n > 0 {
		return nil
	}

	var current int
	err = s.DB.QueryRowContext(ctx, `SELECT revision FROM service_notes WHERE id = ?`, noteID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check revision: %w", err)
	}
	return ErrStaleSnapshot
}

const listingColumns = `
	n.id, COALESCE(n.note_text, ''), n.answers,
	t.id, t.task_date, t.helper_name, COALESCE(t.helper_email, ''), t.client_name,
	t.start_time, t.end_time, COALESCE(t.destination, ''), t.status`

func scanListings(rows *sql.Rows, withAnswers bool) ([]NoteListing, error) {
	defer rows.Close()

	out := []NoteListing{}
	for rows.Next() {
		var (
			l      NoteListing
			raw    []byte
			status string
		)
		err := rows.Scan(&l.NoteID, &l.NoteText, &raw,
			&l.Task.ID, &l.Task.TaskDate, &l.Task.HelperName, &l.Task.HelperEmail, &l.Task.ClientName,
			&l.Task.StartTime, &l.Task.EndTime, &l.Task.Destination, &status)
		if err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		l.Task.Status = Status(status)
		if withAnswers {
			var answers notes.StoredAnswers
			if err := json.Unmarshal(raw, &answers); err != nil {
				return nil, fmt.Errorf("decode snapshot: %w", err)
			}
			l.Answers = &answers
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// ListPendingNotes returns a helper's submitted notes that have no narrative
// yet, newest first, with their snapshots.
func (s *Store) ListPendingNotes(ctx context.Context, helperEmail string) ([]NoteListing, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT `+listingColumns+`
		FROM service_notes n
		JOIN schedule_tasks t ON t.id = n.task_id
		WHERE t.helper_email = ? AND COALESCE(n.note_text, '') = ''
		ORDER BY n.created_at DESC, n.id
	`, helperEmail)
	if err != nil {
		return nil, fmt.Errorf("list pending notes: %w", err)
	}
	return scanListings(rows, true)
}

// ListRecords returns a helper's finished notes, latest task first. from and
// to bound the task date inclusively; empty means unbounded.
func (s *Store) ListRecords(ctx context.Context, helperEmail, from, to string) ([]NoteListing, error) {
	query := `
		SELECT ` + listingColumns + `
		FROM service_notes n
		JOIN schedule_tasks t ON t.id = n.task_id
		WHERE t.helper_email = ? AND COALESCE(n.note_text, '') <> ''`
	args := []any{helperEmail}
	if from != "" {
		query += ` AND t.task_date >= ?`
		args = append(args, from)
	}
	if to != "" {
		query += ` AND t.task_date <= ?`
		args = append(args, to)
	}
	query += ` ORDER BY t.task_date DESC, t.start_time DESC, n.id`

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return scanListings(rows, false)
}

func nullIfEmpty(s string) sql.NullString {
	if strings.TrimSpace(s) == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}
