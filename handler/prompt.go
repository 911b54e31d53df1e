package handler

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pyama86/moodcheck/config"
	"github.com/slack-go/slack"
)

const membersPageSize = 200

type PromptResult struct {
	UserID  string `json:"userId"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type PromptSummary struct {
	Message string         `json:"message"`
	Results []PromptResult `json:"results"`
}

// HandleCron is called by an external scheduler with "Authorization: Bearer <CRON_SECRET>".
func (h *Handler) HandleCron(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !h.cronAuthorized(r.Header.Get("Authorization")) {
		slog.Warn("Unauthorized cron request", slog.String("remote", r.RemoteAddr))
		writeJSON(w, http.StatusUnauthorized, PromptSummary{Message: "unauthorized", Results: []PromptResult{}})
		return
	}

	summary, err := h.SendPrompt(r.Context(), false)
	if err != nil {
		slog.Error("SendPrompt failed", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, PromptSummary{Message: err.Error(), Results: []PromptResult{}})
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) cronAuthorized(header string) bool {
	secret := h.cfg.Prompt.CronSecret
	if secret == "" {
		return false
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(secret)) == 1
}

// SendPrompt posts the check-in prompt to every configured recipient.
// A failure for one recipient is recorded in its result and does not stop the others.
func (h *Handler) SendPrompt(ctx context.Context, force bool) (*PromptSummary, error) {
	now := h.timeNow()
	if !force && h.cfg.Prompt.SkipWeekends && h.cfg.Prompt.IsWeekend(now) {
		slog.Info("Skip prompt on weekend", slog.String("weekday", now.Weekday().String()))
		return &PromptSummary{Message: "skipped: weekend", Results: []PromptResult{}}, nil
	}

	recipients, results, err := h.promptRecipients(ctx)
	if err != nil {
		return nil, err
	}

	greeting := greetingFor(now)
	sent := 0
	for _, id := range recipients {
		if err := ctx.Err(); err != nil {
			results = append(results, PromptResult{UserID: id, Error: err.Error()})
			continue
		}
		if _, _, err := h.client.PostMessage(
			id,
			slack.MsgOptionText(promptText(greeting), false),
			slack.MsgOptionBlocks(promptBlocks(greeting, "")...),
		); err != nil {
			slog.Error("Failed to send prompt", slog.Any("err", err), slog.String("recipient", id))
			results = append(results, PromptResult{UserID: id, Error: err.Error()})
			continue
		}
		sent++
		results = append(results, PromptResult{UserID: id, Success: true})
	}

	slog.Info("Prompt sent", slog.Int("sent", sent), slog.Int("total", len(results)))
	return &PromptSummary{
		Message: fmt.Sprintf("sent %d/%d", sent, len(results)),
		Results: results,
	}, nil
}

// promptRecipients resolves the configured target. Members whose lookup failed are
// returned as failed results rather than recipients.
func (h *Handler) promptRecipients(ctx context.Context) ([]string, []PromptResult, error) {
	p := h.cfg.Prompt
	results := []PromptResult{}
	switch p.Target {
	case config.TargetUsers:
		if len(p.UserIDs) == 0 {
			return nil, nil, errors.New("PROMPT_USER_IDS is not set")
		}
		return p.UserIDs, results, nil

	case config.TargetMembers:
		if p.Channel == "" {
			return nil, nil, errors.New("PROMPT_CHANNEL is not set")
		}
		memberIDs, err := h.channelMembers(ctx, p.Channel)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to list members of %s: %w", p.Channel, err)
		}
		var recipients []string
		for _, id := range memberIDs {
			user, err := h.client.GetUserInfo(id)
			if err != nil {
				slog.Warn("GetUserInfo failed", slog.Any("err", err), slog.String("user", id))
				results = append(results, PromptResult{UserID: id, Error: err.Error()})
				continue
			}
			if user.IsBot || user.Deleted || user.ID == "USLACKBOT" {
				continue
			}
			recipients = append(recipients, id)
		}
		return recipients, results, nil

	default:
		if p.Channel == "" {
			return nil, nil, errors.New("PROMPT_CHANNEL is not set")
		}
		return []string{p.Channel}, results, nil
	}
}

func (h *Handler) channelMembers(ctx context.Context, channelID string) ([]string, error) {
	var members []string
	cursor := ""
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ids, next, err := h.client.GetUsersInConversation(&slack.GetUsersInConversationParameters{
			ChannelID: channelID,
			Cursor:    cursor,
			Limit:     membersPageSize,
		})
		if err != nil {
			return nil, err
		}
		members = append(members, ids...)
		if next == "" {
			return members, nil
		}
		cursor = next
	}
}
