package analytics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"service-note-backend/internal/db"
)

type CtxKey string

const (
	ctxHelperKey CtxKey = "analytics_helper_email"
)

// Envelope is what we store with every event.
type Envelope struct {
	HelperEmail string
	SessionID   string
	Platform    string
	AppVersion  string
}

// FromRequest extracts event envelope fields from request.
// Backend-trustable fields only.
func FromRequest(r *http.Request) Envelope {
	platform := strings.ToLower(strings.TrimSpace(r.Header.Get("X-Platform")))
	switch platform {
	case "ios", "android", "web", "cli":
	default:
		platform = "unknown"
	}

	return Envelope{
		SessionID:  strings.TrimSpace(r.Header.Get("X-Session-Id")),
		Platform:   platform,
		AppVersion: strings.TrimSpace(r.Header.Get("X-App-Version")),
	}
}

func WithHelper(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, ctxHelperKey, email)
}

func HelperFromContext(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(ctxHelperKey).(string)
	return email, ok && email != ""
}

// SourceEventKeyFromRequest returns the client idempotency key, if any.
// Duplicate keys are ignored on insert.
func SourceEventKeyFromRequest(r *http.Request) string {
	k := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if k != "" {
		return k
	}
	return strings.TrimSpace(r.Header.Get("X-Source-Event-Key"))
}

// Log inserts one analytics event. It is best effort: failures are logged
// and never break the caller. Callers pass sanitized props only, never raw
// answer text.
func Log(ctx context.Context, d *db.DB, env Envelope, eventName string, props any, sourceEventKey string) error {
	if d == nil || eventName == "" {
		return nil
	}

	helper := env.HelperEmail
	if helper == "" {
		helper, _ = HelperFromContext(ctx)
	}

	b, err := json.Marshal(props)
	if err != nil {
		slog.Warn("analytics props not serializable", "event", eventName, "error", err)
		return nil
	}

	_, err = d.ExecContext(ctx, `
		INSERT INTO analytics_events (
			event_name, event_time,
			helper_email, session_id,
			platform, app_version,
			source_event_key,
			properties
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (source_event_key) DO NOTHING
	`, eventName, time.Now().UTC(),
		nullIfEmpty(helper), nullIfEmpty(env.SessionID),
		env.Platform, env.AppVersion,
		nullIfEmpty(sourceEventKey),
		string(b),
	)
	if err != nil {
		slog.Warn("analytics insert failed", "event", eventName, "error", err)
	}
	return nil
}

func nullIfEmpty(s string) sql.NullString {
	if strings.TrimSpace(s) == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}
