package tasks

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"service-note-backend/internal/analytics"
	"service-note-backend/internal/auth"
	"service-note-backend/internal/conversation"
	"service-note-backend/internal/narrative"
	"service-note-backend/internal/notes"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ownedTask loads a task and checks it belongs to the signed-in helper.
// It writes the error response itself and reports false on failure.
func (h *TaskHandler) ownedTask(w http.ResponseWriter, r *http.Request, taskID string) (Task, bool) {
	helper, ok := auth.HelperFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return Task{}, false
	}
	if strings.TrimSpace(taskID) == "" {
		http.Error(w, "task_id required", http.StatusBadRequest)
		return Task{}, false
	}

	t, err := h.Store.GetTask(r.Context(), taskID)
	if errors.Is(err, ErrNotFound) || (err == nil && t.HelperEmail != helper) {
		http.Error(w, "task not found", http.StatusNotFound)
		return Task{}, false
	}
	if err != nil {
		http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
		return Task{}, false
	}
	return t, true
}

func (h *TaskHandler) ownedSession(w http.ResponseWriter, r *http.Request) (*conversation.Session, bool) {
	s, ok := h.Sessions.Get(r.PathValue("id"))
	if !ok {
		http.Error(w, "conversation not found", http.StatusNotFound)
		return nil, false
	}
	if _, ok := h.ownedTask(w, r, s.TaskID); !ok {
		return nil, false
	}
	return s, true
}

func (h *TaskHandler) event(r *http.Request, name string, props map[string]any) {
	env := analytics.FromRequest(r)
	if helper, ok := auth.HelperFromContext(r.Context()); ok {
		env.HelperEmail = helper
	}
	_ = analytics.Log(r.Context(), h.Events, env, name, props, "")
}

func conversationResponse(s *conversation.Session) ConversationResponse {
	resp := ConversationResponse{
		ID:       s.ID,
		TaskID:   s.TaskID,
		Progress: s.Engine.Progress(),
		State:    s.Engine.State(),
	}
	if step, ok := s.Engine.CurrentStep(); ok {
		resp.Step = &step
	}
	return resp
}

// initialFields picks the record an interview starts from: explicit fields
// from the request, then the stored snapshot, then an empty record carrying
// the scheduled destination.
func (h *TaskHandler) initialFields(r *http.Request, t Task, raw json.RawMessage) (notes.Fields, error) {
	if len(raw) > 0 && string(raw) != "null" {
		return notes.Normalize(raw), nil
	}

	stored, err := h.Store.LoadSnapshot(r.Context(), t.ID)
	if err != nil {
		return notes.Fields{}, err
	}
	if stored != nil && stored.Form != nil {
		return notes.FromForm(notes.RestoreForm(stored, t.Destination)), nil
	}

	f := notes.Empty()
	f.Destination = t.Destination
	return notes.Normalize(f), nil
}

// ListTasksHandler serves GET /tasks?date=YYYY-MM-DD.
func ListTasksHandler(h *TaskHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		helper, ok := auth.HelperFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		list, err := h.Store.ListTasks(r.Context(), helper, strings.TrimSpace(r.URL.Query().Get("date")))
		if err != nil {
			http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// StartConversationHandler serves POST /conversations.
func StartConversationHandler(h *TaskHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req StartConversationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		t, ok := h.ownedTask(w, r, req.TaskID)
		if !ok {
			return
		}

		initial, err := h.initialFields(r, t, req.Fields)
		if err != nil {
			http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
			return
		}

		engine := conversation.New(h.Extractor, initial, conversation.WithLogger(h.Logger))
		s := h.Sessions.Start(t.ID, engine)

		h.event(r, "conversation_started", map[string]any{
			"task_id":         t.ID,
			"conversation_id": s.ID,
		})
		writeJSON(w, http.StatusCreated, conversationResponse(s))
	}
}

// GetConversationHandler serves GET /conversations/{id}.
func GetConversationHandler(h *TaskHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := h.ownedSession(w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, conversationResponse(s))
	}
}

// AnswerHandler serves POST /conversations/{id}/answer. Rejected answers
// (blank, after the last step, reset mid-flight) leave the state untouched
// and still return it; an overlapping answer gets 409.
func AnswerHandler(h *TaskHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := h.ownedSession(w, r)
		if !ok {
			return
		}

		var req AnswerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		step, _ := s.Engine.CurrentStep()
		err := s.Engine.SubmitAnswer(r.Context(), req.Text)

		var (
			validation *notes.ValidationError
			extraction *notes.ExtractionError
		)
		switch {
		case err == nil:
			h.event(r, "conversation_step_reflected", map[string]any{
				"task_id": s.TaskID,
				"step":    step.ID,
			})
		case errors.Is(err, conversation.ErrBusy):
			writeJSON(w, http.StatusConflict, conversationResponse(s))
			return
		case errors.As(err, &extraction):
			h.Logger.Warn("answer not reflected", "conversation_id", s.ID, "step", step.ID, "error", err)
			h.event(r, "conversation_step_failed", map[string]any{
				"task_id":     s.TaskID,
				"step":        step.ID,
				"status_code": extraction.StatusCode,
			})
		case errors.As(err, &validation),
			errors.Is(err, conversation.ErrFinished),
			errors.Is(err, conversation.ErrReset):
		default:
			http.Error(w, "conversation error: "+err.Error(), http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, conversationResponse(s))
	}
}

// ResetConversationHandler serves POST /conversations/{id}/reset.
func ResetConversationHandler(h *TaskHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := h.ownedSession(w, r)
		if !ok {
			return
		}

		var req ResetRequest
		_ = json.NewDecoder(r.Body).Decode(&req)

		if req.KeepFields {
			current := s.Engine.State().Fields
			s.Engine.Reset(&current)
		} else {
			s.Engine.Reset(nil)
		}
		writeJSON(w, http.StatusOK, conversationResponse(s))
	}
}

// DeleteConversationHandler serves DELETE /conversations/{id}.
func DeleteConversationHandler(h *TaskHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := h.ownedSession(w, r)
		if !ok {
			return
		}
		h.Sessions.Delete(s.ID)
		w.WriteHeader(http.StatusNoContent)
	}
}

// PreviewHandler serves POST /notes/preview.
func PreviewHandler(h *TaskHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PreviewRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		f := notes.Normalize(req.Fields)
		writeJSON(w, http.StatusOK, PreviewResponse{
			Fields:   f,
			Detailed: narrative.BuildDetailed(f),
			Summary:  narrative.BuildSummary(f),
		})
	}
}

// SubmitNoteHandler serves POST /notes.
func SubmitNoteHandler(h *TaskHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SubmitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		t, ok := h.ownedTask(w, r, req.TaskID)
		if !ok {
			return
		}

		var form notes.NoteForm
		source := "fields"
		switch {
		case len(req.Fields) > 0 && string(req.Fields) != "null":
			form = notes.ToForm(notes.Normalize(req.Fields))
		case req.Form != nil:
			form = notes.ToForm(notes.FromForm(*req.Form))
			source = "form"
		default:
			http.Error(w, "fields or form required", http.StatusBadRequest)
			return
		}

		noteID, err := h.Submit(r.Context(), t.ID, narrative.SerializeAnswers(form))
		if err != nil {
			http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
			return
		}

		h.event(r, "note_submitted", map[string]any{
			"task_id":     t.ID,
			"note_id":     noteID,
			"source":      source,
			"has_content": notes.HasContent(form),
		})
		writeJSON(w, http.StatusCreated, SubmitResponse{NoteID: noteID, Status: StatusSubmitted})
	}
}

// ListNotesHandler serves GET /notes. status=pending lists submitted notes
// still waiting for a narrative; otherwise finished records are listed,
// optionally limited by from/to task dates (YYYY-MM-DD, inclusive).
func ListNotesHandler(h *TaskHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		helper, ok := auth.HelperFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		q := r.URL.Query()
		var (
			list []NoteListing
			err  error
		)
		switch q.Get("status") {
		case "pending":
			list, err = h.Store.ListPendingNotes(r.Context(), helper)
		case "", "done":
			from, to := strings.TrimSpace(q.Get("from")), strings.TrimSpace(q.Get("to"))
			for _, d := range []string{from, to} {
				if d == "" {
					continue
				}
				if _, perr := time.Parse(time.DateOnly, d); perr != nil {
					http.Error(w, "dates must be YYYY-MM-DD", http.StatusBadRequest)
					return
				}
			}
			list, err = h.Store.ListRecords(r.Context(), helper, from, to)
		default:
			http.Error(w, "status must be pending or done", http.StatusBadRequest)
			return
		}
		if err != nil {
			http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// NarrativeHandler serves GET /notes/{id}/narrative. With wait=1 it polls
// until the text is ready and answers 504 when the ceiling passes.
func NarrativeHandler(h *TaskHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.HelperFromContext(r.Context()); !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		noteID := r.PathValue("id")
		note, err := h.Store.LoadNote(r.Context(), noteID)
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "note not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
			return
		}
		if _, ok := h.ownedTask(w, r, note.TaskID); !ok {
			return
		}

		if r.URL.Query().Get("wait") != "1" {
			text, ready, err := h.Store.FetchNarrative(r.Context(), noteID)
			if err != nil {
				http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
				return
			}
			writeJSON(w, http.StatusOK, NarrativeResponse{NoteID: noteID, NoteText: text, Ready: ready})
			return
		}

		text, err := h.Wait(r.Context(), noteID)
		var timeout *notes.TimeoutError
		if errors.As(err, &timeout) {
			writeJSON(w, http.StatusGatewayTimeout, map[string]any{
				"error":     "narrative not ready yet, try again",
				"note_id":   noteID,
				"retryable": timeout.Retryable(),
			})
			return
		}
		if err != nil {
			http.Error(w, "poll error: "+err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, NarrativeResponse{NoteID: noteID, NoteText: text, Ready: true})
	}
}
