package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/slack-go/slack"
)

const (
	cmdHistory = "history"
	cmdStats   = "stats"
	cmdSummary = "summary"
	cmdHelp    = "help"

	historyLimit = 10
	summaryLimit = 30
	statsDays    = 7

	summaryTimeout = 2 * time.Minute
)

const usageText = "*Usage*\n" +
	"• `/mood` check in now\n" +
	"• `/mood history` your latest check-ins\n" +
	"• `/mood stats` team mood for the last 7 days\n" +
	"• `/mood summary` AI summary of recent comments"

func ephemeral(text string, blocks ...slack.Block) slack.Msg {
	msg := slack.Msg{
		ResponseType: slack.ResponseTypeEphemeral,
		Text:         text,
	}
	if len(blocks) > 0 {
		msg.Blocks = slack.Blocks{BlockSet: blocks}
	}
	return msg
}

func (h *Handler) handleCommand(w http.ResponseWriter, cmd slack.SlashCommand) {
	switch strings.ToLower(strings.TrimSpace(cmd.Text)) {
	case "":
		greeting := greetingFor(h.timeNow())
		writeJSON(w, http.StatusOK, ephemeral(promptText(greeting), promptBlocks(greeting, cmd.ChannelID)...))

	case cmdHistory:
		entries, err := h.ds.GetLatestEntriesByUser(cmd.UserID, historyLimit)
		if err != nil {
			slog.Error("GetLatestEntriesByUser failed", slog.Any("err", err))
			writeJSON(w, http.StatusOK, ephemeral("📭 *Failed to load your check-ins*"))
			return
		}
		if len(entries) == 0 {
			writeJSON(w, http.StatusOK, ephemeral("📭 *No check-ins yet*"))
			return
		}
		writeJSON(w, http.StatusOK, ephemeral("Your recent check-ins", historyBlocks(entries, h.cfg.Prompt.Location())...))

	case cmdStats:
		since := h.timeNow().AddDate(0, 0, -(statsDays - 1))
		stats, err := h.ds.GetDailyStats(cmd.TeamID, since)
		if err != nil {
			slog.Error("GetDailyStats failed", slog.Any("err", err))
			writeJSON(w, http.StatusOK, ephemeral("📭 *Failed to load team stats*"))
			return
		}
		if len(stats) == 0 {
			writeJSON(w, http.StatusOK, ephemeral("📭 *No check-ins in the last 7 days*"))
			return
		}
		writeJSON(w, http.StatusOK, ephemeral("Team mood, last 7 days", statsBlocks(stats)...))

	case cmdSummary:
		if h.summarizer == nil {
			writeJSON(w, http.StatusOK, ephemeral("Summaries are not configured for this workspace."))
			return
		}
		writeJSON(w, http.StatusOK, ephemeral("🧠 Summarizing recent check-ins, this can take a moment..."))
		h.goAsync(func() { h.postSummary(cmd) })

	default:
		writeJSON(w, http.StatusOK, ephemeral(usageText))
	}
}

func (h *Handler) postSummary(cmd slack.SlashCommand) {
	entries, err := h.ds.GetLatestEntriesByTeam(cmd.TeamID, summaryLimit)
	if err != nil {
		slog.Error("GetLatestEntriesByTeam failed", slog.Any("err", err))
		return
	}

	text := "📭 *No check-ins to summarize*"
	if len(entries) > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), summaryTimeout)
		defer cancel()
		text, err = h.summarizer.GenerateSummary(ctx, entries, h.timeNow())
		if err != nil {
			slog.Error("GenerateSummary failed", slog.Any("err", err))
			return
		}
	}

	if _, _, err := h.client.PostMessage(
		cmd.ChannelID,
		slack.MsgOptionResponseURL(cmd.ResponseURL, slack.ResponseTypeEphemeral),
		slack.MsgOptionText(text, false),
	); err != nil {
		slog.Error("Failed to post summary", slog.Any("err", err))
	}
}
