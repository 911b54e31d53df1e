package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/pyama86/moodcheck/config"
	"github.com/pyama86/moodcheck/domain/infra"
	"github.com/slack-go/slack"
)

const (
	readTimeout  = 10 * time.Second
	writeTimeout = 30 * time.Second
)

type Handler struct {
	client     infra.SlackAPI
	ds         infra.Datastore
	summarizer infra.Summarizer
	cfg        *config.Config
	now        func() time.Time

	// ack 後に走らせたバックグラウンド処理。シャットダウン時に待つ
	inflight sync.WaitGroup
}

func NewHandler(cfg *config.Config) (*Handler, error) {
	ds, err := infra.NewDatastore(cfg.Database, cfg.Prompt.Location())
	if err != nil {
		return nil, fmt.Errorf("NewDatastore failed: %w", err)
	}

	var opts []slack.Option
	if cfg.Slack.APIURL != "" {
		opts = append(opts, slack.OptionAPIURL(cfg.Slack.APIURL))
	}
	api := slack.New(cfg.Slack.BotToken, opts...)

	h := &Handler{
		client: api,
		ds:     ds,
		cfg:    cfg,
		now:    time.Now,
	}

	ai, err := infra.NewOpenAI(cfg.OpenAI)
	if err != nil {
		return nil, fmt.Errorf("NewOpenAI failed: %w", err)
	}
	if ai != nil {
		h.summarizer = ai
	}
	return h, nil
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/slack/events", h.HandleSlackEvents)
	mux.HandleFunc("/slack/interactions", h.HandleSlackEvents)
	mux.HandleFunc("/slack/commands", h.HandleSlackEvents)
	mux.HandleFunc("/api/cron/checkin", h.HandleCron)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// Handle serves HTTP until ctx is cancelled, then drains in-flight check-ins.
func (h *Handler) Handle(ctx context.Context) error {
	authTest, err := h.client.AuthTest()
	if err != nil {
		return fmt.Errorf("SLACK_BOT_TOKEN is invalid: %w", err)
	}
	slog.Info("Bot user ID", slog.String("id", authTest.UserID), slog.String("team", authTest.TeamID))

	server := &http.Server{
		Addr:         h.cfg.Server.Listen,
		Handler:      h.Routes(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server listening", slog.String("bind", h.cfg.Server.Listen))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), h.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	done := make(chan struct{})
	go func() {
		h.Wait()
		close(done)
	}()
	select {
	case <-done:
		slog.Info("Server stopped")
	case <-shutdownCtx.Done():
		slog.Warn("Shutdown timed out before in-flight check-ins finished")
	}
	return nil
}

// goAsync runs job after the response has been acknowledged.
func (h *Handler) goAsync(job func()) {
	h.inflight.Add(1)
	go func() {
		defer h.inflight.Done()
		job()
	}()
}

// Wait blocks until every background job started by the handler has finished.
func (h *Handler) Wait() {
	h.inflight.Wait()
}

func (h *Handler) timeNow() time.Time {
	return h.now().In(h.cfg.Prompt.Location())
}

func getUserPreferredName(user *slack.User) string {
	if user == nil {
		return ""
	}
	if user.Profile.DisplayName != "" {
		return user.Profile.DisplayName
	}
	return user.RealName
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to write response", slog.Any("err", err))
	}
}
