package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"service-note-backend/internal/narrative"
	"service-note-backend/internal/notes"
)

//go:generate mockgen -destination=mock_extractor_test.go -package=conversation . Extractor

// Extractor turns one free-text answer plus the current record into the
// complete updated record.
type Extractor interface {
	Extract(ctx context.Context, step StepID, answer string, current notes.Fields) (notes.Fields, error)
}

var (
	// ErrBusy is returned when an answer arrives while another is still
	// being extracted. Nothing is recorded.
	ErrBusy = errors.New("conversation: an answer is already being processed")
	// ErrFinished is returned for answers after the last step.
	ErrFinished = errors.New("conversation: interview already finished")
	// ErrReset is returned when the engine was reset while the answer was
	// being extracted; the late result is discarded.
	ErrReset = errors.New("conversation: reset during extraction")
)

const (
	reflectedMessage = "入力を反映しました。"
	closingMessage   = "会話モードは終了しました。この内容で記録を作成してください。"
)

type Sender string

const (
	FromSystem Sender = "system"
	FromUser   Sender = "user"
)

type Message struct {
	From Sender `json:"from"`
	Text string `json:"text"`
}

// State is a copy of the engine state at one point in time.
type State struct {
	StepIndex  int          `json:"step_index"`
	StepCount  int          `json:"step_count"`
	Fields     notes.Fields `json:"fields"`
	Transcript []Message    `json:"transcript"`
	Finished   bool         `json:"is_finished"`
	Summary    string       `json:"summary"`
	LastError  string       `json:"last_error,omitempty"`
	Loading    bool         `json:"loading"`
}

type Progress struct {
	Total   int `json:"total"`
	Current int `json:"current"`
}

type Option func(*Engine)

// WithSteps replaces the default interview steps.
func WithSteps(steps []Step) Option {
	return func(e *Engine) {
		e.steps = append([]Step(nil), steps...)
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// Engine drives the interview one step at a time. At most one extraction
// runs per engine; separate engines share nothing.
type Engine struct {
	extractor Extractor
	steps     []Step
	logger    *slog.Logger
	initial   notes.Fields

	inFlight atomic.Bool

	mu         sync.Mutex
	generation int
	stepIndex  int
	fields     notes.Fields
	transcript []Message
	summary    string
	lastErr    string
}

func New(extractor Extractor, initial notes.Fields, opts ...Option) *Engine {
	e := &Engine{
		extractor: extractor,
		steps:     DefaultSteps(),
		logger:    slog.Default(),
		initial:   notes.Clone(initial),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.restart(e.initial)
	return e
}

func (e *Engine) restart(baseline notes.Fields) {
	e.generation++
	e.stepIndex = 0
	e.fields = notes.Clone(baseline)
	e.summary = ""
	e.lastErr = ""
	e.transcript = nil
	if len(e.steps) > 0 {
		e.transcript = append(e.transcript, Message{From: FromSystem, Text: e.steps[0].Text()})
	}
}

// Reset returns to the first step with a fresh transcript. A nil baseline
// restores the fields the engine was created with.
func (e *Engine) Reset(baseline *notes.Fields) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if baseline == nil {
		e.restart(e.initial)
		return
	}
	e.restart(*baseline)
}

// SubmitAnswer sends the answer for the current step to the extractor and
// merges the result. Blank answers, answers after the last step and answers
// that overlap a pending one change nothing. A failed extraction leaves the
// step and fields as they were and appends one error message.
func (e *Engine) SubmitAnswer(ctx context.Context, text string) error {
	answer := strings.TrimSpace(text)
	if answer == "" {
		return &notes.ValidationError{Field: "answer", Reason: "blank"}
	}
	if !e.inFlight.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer e.inFlight.Store(false)

	e.mu.Lock()
	if e.stepIndex >= len(e.steps) {
		e.mu.Unlock()
		return ErrFinished
	}
	step := e.steps[e.stepIndex]
	current := notes.Clone(e.fields)
	gen := e.generation
	e.transcript = append(e.transcript, Message{From: FromUser, Text: answer})
	e.lastErr = ""
	e.mu.Unlock()

	result, err := e.extractor.Extract(ctx, step.ID, answer, current)

	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.generation {
		return ErrReset
	}

	if err != nil {
		var xe *notes.ExtractionError
		if !errors.As(err, &xe) {
			xe = &notes.ExtractionError{Step: string(step.ID), Err: err}
		}
		e.lastErr = failureReason(xe)
		e.transcript = append(e.transcript, Message{
			From: FromSystem,
			Text: fmt.Sprintf("⚠️ %s。もう一度お試しください。", e.lastErr),
		})
		e.logger.Warn("step extraction failed", "step", step.ID, "error", err)
		return xe
	}

	e.fields = notes.Normalize(result)
	e.summary = narrative.BuildSummary(e.fields)
	e.transcript = append(e.transcript, Message{From: FromSystem, Text: reflectedMessage})
	e.stepIndex++
	if e.stepIndex < len(e.steps) {
		e.transcript = append(e.transcript, Message{From: FromSystem, Text: e.steps[e.stepIndex].Text()})
	} else {
		e.transcript = append(e.transcript, Message{From: FromSystem, Text: closingMessage})
	}
	e.logger.Debug("step reflected", "step", step.ID, "step_index", e.stepIndex)
	return nil
}

func failureReason(xe *notes.ExtractionError) string {
	if xe.Reason != "" {
		return "解析に失敗しました: " + xe.Reason
	}
	if xe.Err != nil {
		return "解析に失敗しました: " + xe.Err.Error()
	}
	return "解析に失敗しました"
}

// State returns a deep copy of the current state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return State{
		StepIndex:  e.stepIndex,
		StepCount:  len(e.steps),
		Fields:     notes.Clone(e.fields),
		Transcript: append([]Message(nil), e.transcript...),
		Finished:   e.stepIndex >= len(e.steps),
		Summary:    e.summary,
		LastError:  e.lastErr,
		Loading:    e.inFlight.Load(),
	}
}

// CurrentStep returns the step awaiting an answer, or false when finished.
func (e *Engine) CurrentStep() (Step, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stepIndex >= len(e.steps) {
		return Step{}, false
	}
	return e.steps[e.stepIndex], true
}

func (e *Engine) Progress() Progress {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Progress{Total: len(e.steps), Current: min(e.stepIndex+1, len(e.steps))}
}
