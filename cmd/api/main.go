package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"

	"service-note-backend/internal/ai"
	"service-note-backend/internal/analytics"
	"service-note-backend/internal/auth"
	"service-note-backend/internal/config"
	"service-note-backend/internal/db"
	"service-note-backend/internal/formatter"
	"service-note-backend/internal/tasks"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))

	if err := run(cfg); err != nil {
		slog.Error("api stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.Connect(cfg.DBDriver, cfg.ConnString())
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.Migrate(ctx); err != nil {
		return err
	}
	slog.Info("database ready", "driver", cfg.DBDriver)

	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if cfg.OpenAIKey == "" {
		return errors.New("OPENAI_API_KEY is required")
	}

	client, err := ai.New(cfg.OpenAIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL)
	if err != nil {
		return err
	}

	store := tasks.NewStore(database)
	fmtr := formatter.New(store, client, slog.Default())
	fmtr.Timeout = cfg.FormatTimeout

	h := tasks.New(store, fmtr, client)
	h.PollInterval = cfg.PollInterval
	h.PollTimeout = cfg.PollTimeout

	handler := newRouter(h, database, auth.New([]byte(cfg.JWTSecret)), cfg.CORSOrigins)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("api server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		h.Sessions.RunSweeper(gctx, time.Minute, cfg.SessionIdle)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		if ferr := fmtr.Shutdown(shutdownCtx); ferr != nil {
			slog.Warn("formatter jobs cancelled at shutdown", "error", ferr)
		}
		return err
	})
	return g.Wait()
}

func newRouter(h *tasks.TaskHandler, database *db.DB, authMW auth.Middleware, origins []string) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	mux.HandleFunc("GET /tasks", authMW.Wrap(tasks.ListTasksHandler(h)))

	mux.HandleFunc("POST /conversations", authMW.Wrap(tasks.StartConversationHandler(h)))
	mux.HandleFunc("GET /conversations/{id}", authMW.Wrap(tasks.GetConversationHandler(h)))
	mux.HandleFunc("POST /conversations/{id}/answer", authMW.Wrap(tasks.AnswerHandler(h)))
	mux.HandleFunc("POST /conversations/{id}/reset", authMW.Wrap(tasks.ResetConversationHandler(h)))
	mux.HandleFunc("DELETE /conversations/{id}", authMW.Wrap(tasks.DeleteConversationHandler(h)))

	mux.HandleFunc("POST /notes/preview", authMW.Wrap(tasks.PreviewHandler(h)))
	mux.HandleFunc("GET /notes", authMW.Wrap(tasks.ListNotesHandler(h)))
	mux.HandleFunc("POST /notes", authMW.Wrap(tasks.SubmitNoteHandler(h)))
	mux.HandleFunc("GET /notes/{id}/narrative", authMW.Wrap(tasks.NarrativeHandler(h)))

	mux.HandleFunc("POST /events/app-opened", authMW.Wrap(analytics.AppOpenedHandler(database)))
	mux.HandleFunc("POST /events/narrative-copied", authMW.Wrap(analytics.NarrativeCopiedHandler(database)))

	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "Idempotency-Key", "X-Platform", "X-App-Version", "X-Session-Id"},
		AllowCredentials: true,
	})
	return c.Handler(mux)
}
