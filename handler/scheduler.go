package handler

import (
	"context"
	"log/slog"
	"time"
)

// nextRun は now 以降で最初の hour:min を loc で返す
func nextRun(now time.Time, hour, minute int, loc *time.Location) time.Time {
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	// すでに過ぎていたら翌日
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// StartPromptScheduler sends the prompt every day at PROMPT_SCHEDULE_AT in the reference timezone.
// It does nothing when PROMPT_SCHEDULE_AT is empty.
func (h *Handler) StartPromptScheduler(ctx context.Context) {
	at := h.cfg.Prompt.ScheduleAt
	if at == "" {
		return
	}
	t, err := time.Parse("15:04", at)
	if err != nil {
		slog.Error("Invalid PROMPT_SCHEDULE_AT", slog.String("at", at), slog.Any("err", err))
		return
	}

	loc := h.cfg.Prompt.Location()
	go func() {
		for {
			next := nextRun(h.now(), t.Hour(), t.Minute(), loc)
			sleepDuration := time.Until(next)
			slog.Info("Next prompt", slog.Any("next", next), slog.Any("sleep", sleepDuration))

			timer := time.NewTimer(sleepDuration)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}

			summary, err := h.SendPrompt(ctx, false)
			if err != nil {
				slog.Error("Scheduled prompt failed", slog.Any("err", err))
				continue
			}
			slog.Info("Scheduled prompt done", slog.String("message", summary.Message))
		}
	}()
}
