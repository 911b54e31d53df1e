package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
)

// Slack のリクエストは大きくても数十KB
const maxBodySize = 1 << 20

// HandleSlackEvents is the single entry point for Slack callbacks:
// URL verification, slash commands, interactive components and Events API.
func (h *Handler) HandleSlackEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// 署名は生のボディに対して計算されるので、デコードより先に読み切る
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		slog.Warn("Failed to read request body", slog.Any("err", err))
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	fields := decodeBody(r.Header.Get("Content-Type"), body)

	// URL 検証は署名シークレット発行前に届くことがあるので検証しない
	if fields.Get("type") == slackevents.URLVerification {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(fields.Get("challenge")))
		return
	}

	if err := verifyRequest(r.Header, body, h.cfg.Slack.SigningSecret); err != nil {
		slog.Warn("Slack request verification failed", slog.Any("err", err), slog.String("remote", r.RemoteAddr))
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	switch {
	case fields.Get("command") != "":
		h.handleCommand(w, slashCommandFromForm(fields))
	case fields.Get("payload") != "":
		h.handleInteractionPayload(w, fields.Get("payload"))
	case fields.Get("type") == slackevents.CallbackEvent:
		h.handleCallBack(body)
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusOK)
	}
}

// verifyRequest checks X-Slack-Signature (HMAC-SHA256 over "v0:<ts>:<body>",
// constant-time compare) and rejects timestamps more than five minutes away.
func verifyRequest(header http.Header, body []byte, signingSecret string) error {
	if signingSecret == "" {
		return errors.New("signing secret is not configured")
	}
	sv, err := slack.NewSecretsVerifier(header, signingSecret)
	if err != nil {
		return err
	}
	if _, err := sv.Write(body); err != nil {
		return err
	}
	return sv.Ensure()
}

// decodeBody flattens JSON, form-encoded or plain-text bodies into top-level string fields.
func decodeBody(contentType string, body []byte) url.Values {
	mediaType, _, _ := mime.ParseMediaType(contentType)
	switch mediaType {
	case "application/json":
		return decodeJSONFields(body)
	case "application/x-www-form-urlencoded":
		return decodeFormFields(body)
	}
	// text/plain などはボディの形で判断する
	if bytes.HasPrefix(bytes.TrimSpace(body), []byte("{")) {
		return decodeJSONFields(body)
	}
	return decodeFormFields(body)
}

func decodeJSONFields(body []byte) url.Values {
	fields := url.Values{}
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		return fields
	}
	for k, v := range m {
		if s, ok := v.(string); ok {
			fields.Set(k, s)
		}
	}
	return fields
}

func decodeFormFields(body []byte) url.Values {
	fields, err := url.ParseQuery(string(body))
	if err != nil {
		return url.Values{}
	}
	return fields
}

func slashCommandFromForm(v url.Values) slack.SlashCommand {
	return slack.SlashCommand{
		Token:       v.Get("token"),
		TeamID:      v.Get("team_id"),
		TeamDomain:  v.Get("team_domain"),
		ChannelID:   v.Get("channel_id"),
		ChannelName: v.Get("channel_name"),
		UserID:      v.Get("user_id"),
		UserName:    v.Get("user_name"),
		Command:     v.Get("command"),
		Text:        v.Get("text"),
		ResponseURL: v.Get("response_url"),
		TriggerID:   v.Get("trigger_id"),
		APIAppID:    v.Get("api_app_id"),
	}
}

// このボットは Events API のイベントを使わない。受信したことだけ記録する
func (h *Handler) handleCallBack(body []byte) {
	event, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		slog.Warn("Failed to parse event callback", slog.Any("err", err))
		return
	}
	slog.Debug("Ignored event callback", slog.String("type", event.InnerEvent.Type))
}
