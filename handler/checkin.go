package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/pyama86/moodcheck/domain/infra"
	"github.com/pyama86/moodcheck/domain/model"
	"github.com/slack-go/slack"
)

// 表示名が取れなかったときに通知文で使う
const unknownUserName = "someone"

// checkIn is the resolved state of one modal, ready to be recorded.
type checkIn struct {
	UserID  string
	ViewID  string
	Pending model.PendingCheckIn
	Comment *string
}

// persistAndNotify records the check-in and tells the user about it.
// Every Slack or datastore failure is logged and never surfaced to the user.
func (h *Handler) persistAndNotify(c checkIn) {
	mood, err := c.Pending.Mood()
	if err != nil {
		slog.Error("Invalid check-in", slog.Any("err", err))
		return
	}

	userName := h.lookupUserName(c.UserID)
	now := h.timeNow()
	entry := &model.MoodEntry{
		ID:         uuid.NewString(),
		UserID:     c.UserID,
		UserName:   model.StringPtr(userName),
		Score:      mood.Score,
		Emoji:      mood.Emoji,
		Comment:    c.Comment,
		TeamID:     model.StringPtr(c.Pending.TeamID),
		RecordedAt: now,
		RecordedOn: now.Format("2006-01-02"),
		CreatedAt:  now,
		DedupKey:   model.DedupKey(c.UserID, c.ViewID, c.Pending.MessageTS),
	}
	if err := h.ds.SaveMoodEntry(entry); err != nil {
		if errors.Is(err, infra.ErrDuplicateEntry) {
			slog.Info("Check-in already recorded", slog.String("user", c.UserID), slog.String("view", c.ViewID))
			return
		}
		slog.Error("SaveMoodEntry failed", slog.Any("err", err), slog.String("user", c.UserID))
		return
	}
	slog.Info("Check-in recorded", slog.String("user", c.UserID), slog.Int("score", mood.Score), slog.Bool("comment", c.Comment != nil))

	if !h.updateOriginalMessage(c, mood) {
		h.sendFallbackConfirmation(c, mood)
	}

	// 元メッセージの状態に関わらず本人には DM でも知らせる
	if _, _, err := h.client.PostMessage(
		c.UserID,
		slack.MsgOptionText(completedText(mood), false),
		slack.MsgOptionBlocks(completedBlocks(mood, c.Comment)...),
	); err != nil {
		slog.Error("Failed to send DM confirmation", slog.Any("err", err), slog.String("user", c.UserID))
	}

	h.announce(userName, mood)
}

func (h *Handler) lookupUserName(userID string) string {
	user, err := h.client.GetUserInfo(userID)
	if err != nil {
		slog.Warn("GetUserInfo failed", slog.Any("err", err), slog.String("user", userID))
		return ""
	}
	return getUserPreferredName(user)
}

// 元メッセージが分かるときだけ、その場で完了表示に書き換える
func (h *Handler) updateOriginalMessage(c checkIn, mood model.Mood) bool {
	if c.Pending.ChannelID == "" || c.Pending.MessageTS == "" {
		return false
	}
	if _, _, _, err := h.client.UpdateMessage(
		c.Pending.ChannelID,
		c.Pending.MessageTS,
		slack.MsgOptionText(completedText(mood), false),
		slack.MsgOptionBlocks(completedBlocks(mood, c.Comment)...),
	); err != nil {
		// エフェメラルなど編集できないメッセージでは失敗する
		slog.Warn("UpdateMessage failed", slog.Any("err", err), slog.String("channel", c.Pending.ChannelID))
		return false
	}
	return true
}

// sendFallbackConfirmation uses the first available of: response URL, DM channel,
// ephemeral message in the originating channel.
func (h *Handler) sendFallbackConfirmation(c checkIn, mood model.Mood) {
	text := slack.MsgOptionText(completedText(mood), false)
	blocks := slack.MsgOptionBlocks(completedBlocks(mood, c.Comment)...)

	var err error
	var via string
	switch {
	case c.Pending.ResponseURL != "":
		via = "response_url"
		_, _, err = h.client.PostMessage(c.Pending.ChannelID, slack.MsgOptionReplaceOriginal(c.Pending.ResponseURL), text, blocks)
	case strings.HasPrefix(c.Pending.ChannelID, "D"):
		via = "dm"
		_, _, err = h.client.PostMessage(c.Pending.ChannelID, text, blocks)
	case c.Pending.ChannelID != "":
		via = "ephemeral"
		_, err = h.client.PostEphemeral(c.Pending.ChannelID, c.UserID, text, blocks)
	default:
		return
	}
	if err != nil {
		slog.Error("Failed to send confirmation", slog.Any("err", err), slog.String("via", via))
	}
}

func (h *Handler) announce(userName string, mood model.Mood) {
	channel := h.cfg.Slack.AnnounceChannel
	if channel == "" {
		return
	}
	who := "Someone"
	if !h.cfg.Slack.AnnounceAnonymous {
		who = userName
		if who == "" {
			who = unknownUserName
		}
	}
	if _, _, err := h.client.PostMessage(
		channel,
		slack.MsgOptionText(fmt.Sprintf("%s checked in: %s", who, mood.Emoji), false),
	); err != nil {
		slog.Error("Failed to post announcement", slog.Any("err", err), slog.String("channel", channel))
	}
}
