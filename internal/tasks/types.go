package tasks

import (
	"encoding/json"

	"service-note-backend/internal/conversation"
	"service-note-backend/internal/notes"
)

type StartConversationRequest struct {
	TaskID string          `json:"task_id"`
	Fields json.RawMessage `json:"fields,omitempty"`
}

type AnswerRequest struct {
	Text string `json:"text"`
}

type ResetRequest struct {
	KeepFields bool `json:"keep_fields"`
}

type ConversationResponse struct {
	ID       string                `json:"id"`
	TaskID   string                `json:"task_id"`
	Step     *conversation.Step    `json:"step,omitempty"`
	Progress conversation.Progress `json:"progress"`
	conversation.State
}

type PreviewRequest struct {
	Fields notes.Fields `json:"fields"`
}

type PreviewResponse struct {
	Fields   notes.Fields `json:"fields"`
	Detailed string       `json:"detailed"`
	Summary  string       `json:"summary"`
}

// SubmitRequest carries either the structured record or the legacy flat
// form; Fields wins when both are present.
type SubmitRequest struct {
	TaskID string          `json:"task_id"`
	Fields json.RawMessage `json:"fields,omitempty"`
	Form   *notes.NoteForm `json:"form,omitempty"`
}

type SubmitResponse struct {
	NoteID string `json:"note_id"`
	Status Status `json:"status"`
}

type NarrativeResponse struct {
	NoteID   string `json:"note_id"`
	NoteText string `json:"note_text"`
	Ready    bool   `json:"ready"`
}
