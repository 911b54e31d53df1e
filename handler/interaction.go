package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pyama86/moodcheck/domain/model"
	"github.com/slack-go/slack"
)

const (
	commentModalCallbackID = "mood_comment_modal"
	commentBlockID         = "comment_block"
	commentActionID        = "comment_text"
)

func (h *Handler) handleInteractionPayload(w http.ResponseWriter, payload string) {
	var callback slack.InteractionCallback
	if err := json.Unmarshal([]byte(payload), &callback); err != nil {
		slog.Warn("Failed to parse interaction payload", slog.Any("err", err))
		w.WriteHeader(http.StatusOK)
		return
	}

	job := h.handleInteractions(&callback)

	// Slack は3秒以内の応答を要求するので、記録と通知は ack の後に回す
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	if job != nil {
		h.goAsync(job)
	}
}

// handleInteractions returns the work to run once the interaction has been acknowledged.
func (h *Handler) handleInteractions(callback *slack.InteractionCallback) func() {
	switch callback.Type {
	case slack.InteractionTypeBlockActions:
		if len(callback.ActionCallback.BlockActions) < 1 {
			return nil
		}
		action := callback.ActionCallback.BlockActions[0]
		if !strings.HasPrefix(action.ActionID, model.ActionIDPrefix) {
			return nil
		}
		mood, err := model.MoodFromActionID(action.ActionID)
		if err != nil {
			slog.Warn("Unknown mood action", slog.String("action_id", action.ActionID))
			return nil
		}
		// trigger_id の有効期限が短いのでモーダルはここで開く
		if err := h.openCommentModal(callback.TriggerID, pendingFromBlockAction(callback, action, mood)); err != nil {
			slog.Error("openCommentModal failed", slog.Any("err", err))
		}
		return nil

	case slack.InteractionTypeViewSubmission, slack.InteractionTypeViewClosed:
		if callback.View.CallbackID != commentModalCallbackID {
			return nil
		}
		pending, err := model.DecodePendingCheckIn(callback.View.PrivateMetadata)
		if err != nil {
			slog.Warn("Failed to decode check-in token", slog.Any("err", err))
			return nil
		}
		if pending.TeamID == "" {
			pending.TeamID = callback.View.TeamID
		}
		if pending.TeamID == "" {
			pending.TeamID = callback.Team.ID
		}

		c := checkIn{
			UserID:  callback.User.ID,
			ViewID:  callback.View.ID,
			Pending: pending,
		}
		// 閉じられたときはコメントなしで記録する
		if callback.Type == slack.InteractionTypeViewSubmission {
			c.Comment = commentFromView(&callback.View)
		}
		return func() { h.persistAndNotify(c) }
	}
	return nil
}

func pendingFromBlockAction(callback *slack.InteractionCallback, action *slack.BlockAction, mood model.Mood) model.PendingCheckIn {
	p := model.NewPendingCheckIn(mood)

	// スラッシュコマンド経由のボタンは元のチャンネルを value に持っている
	switch {
	case action.Value != "":
		p.ChannelID = action.Value
	case callback.Container.ChannelID != "":
		p.ChannelID = callback.Container.ChannelID
	default:
		p.ChannelID = callback.Channel.ID
	}

	p.MessageTS = callback.Container.MessageTs
	if p.MessageTS == "" {
		p.MessageTS = callback.Message.Timestamp
	}
	p.ResponseURL = callback.ResponseURL
	p.TeamID = callback.Team.ID
	return p
}

func commentFromView(view *slack.View) *string {
	if view.State == nil {
		return nil
	}
	block, ok := view.State.Values[commentBlockID]
	if !ok {
		return nil
	}
	return model.StringPtr(strings.TrimSpace(block[commentActionID].Value))
}

func (h *Handler) openCommentModal(triggerID string, p model.PendingCheckIn) error {
	mood, err := p.Mood()
	if err != nil {
		return err
	}
	token, err := p.Encode()
	if err != nil {
		return err
	}

	_, err = h.client.OpenView(triggerID, commentModal(mood, token))
	return err
}
