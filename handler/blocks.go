package handler

import (
	"fmt"
	"strings"
	"time"

	"github.com/pyama86/moodcheck/domain/model"
	"github.com/slack-go/slack"
)

const promptBlockID = "mood_actions"

// 基準タイムゾーンの時刻で挨拶を変える
func greetingFor(t time.Time) string {
	switch h := t.Hour(); {
	case h < 12:
		return "Good morning"
	case h < 18:
		return "Good afternoon"
	default:
		return "Good evening"
	}
}

func promptText(greeting string) string {
	return fmt.Sprintf("%s! How are you feeling today?", greeting)
}

// promptBlocks builds the check-in prompt. sourceChannelID is stored on every button
// so the follow-up can find the conversation even from an ephemeral message.
func promptBlocks(greeting, sourceChannelID string) []slack.Block {
	buttons := make([]slack.BlockElement, 0, model.MaxScore)
	for _, m := range model.Moods() {
		buttons = append(buttons, slack.NewButtonBlockElement(
			m.ActionID(),
			sourceChannelID,
			slack.NewTextBlockObject("plain_text", m.Emoji, true, false),
		))
	}

	return []slack.Block{
		slack.NewSectionBlock(
			slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("*%s*", promptText(greeting)), false, false),
			nil, nil,
		),
		slack.NewActionBlock(promptBlockID, buttons...),
		slack.NewContextBlock("",
			slack.NewTextBlockObject("mrkdwn", "Pick the face that fits best. You can add a comment in the next step.", false, false),
		),
	}
}

func commentModal(mood model.Mood, token string) slack.ModalViewRequest {
	return slack.ModalViewRequest{
		Type:            slack.VTModal,
		Title:           slack.NewTextBlockObject("plain_text", "Mood check-in", false, false),
		Submit:          slack.NewTextBlockObject("plain_text", "Send", false, false),
		Close:           slack.NewTextBlockObject("plain_text", "Skip", false, false),
		CallbackID:      commentModalCallbackID,
		PrivateMetadata: token,
		NotifyOnClose:   true,
		Blocks: slack.Blocks{
			BlockSet: []slack.Block{
				slack.NewSectionBlock(
					slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("You picked %s *%s*.", mood.Emoji, mood.Label), false, false),
					nil, nil,
				),
				&slack.InputBlock{
					Type:     slack.MBTInput,
					BlockID:  commentBlockID,
					Optional: true,
					Label:    slack.NewTextBlockObject("plain_text", "Anything you want to add?", false, false),
					Element: &slack.PlainTextInputBlockElement{
						Type:        slack.METPlainTextInput,
						ActionID:    commentActionID,
						Multiline:   true,
						Placeholder: slack.NewTextBlockObject("plain_text", "Optional", false, false),
					},
				},
			},
		},
	}
}

func completedText(mood model.Mood) string {
	return fmt.Sprintf("Thanks! You checked in as %s %s.", mood.Emoji, mood.Label)
}

// 記録後に元のメッセージを置き換える内容
func completedBlocks(mood model.Mood, comment *string) []slack.Block {
	note := "_No comment_"
	if comment != nil {
		note = "> " + strings.ReplaceAll(*comment, "\n", "\n> ")
	}
	return []slack.Block{
		slack.NewSectionBlock(
			slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("✅ *%s*", completedText(mood)), false, false),
			nil, nil,
		),
		slack.NewContextBlock("",
			slack.NewTextBlockObject("mrkdwn", note, false, false),
		),
	}
}

func historyBlocks(entries []model.MoodEntry, loc *time.Location) []slack.Block {
	blocks := []slack.Block{
		slack.NewHeaderBlock(
			slack.NewTextBlockObject("plain_text", "📜 Your recent check-ins", false, false),
		),
		slack.NewDividerBlock(),
	}
	for _, e := range entries {
		text := fmt.Sprintf("📅 *%s*  %s", e.RecordedAt.In(loc).Format("2006-01-02 15:04"), e.Emoji)
		if e.Comment != nil {
			text += "\n>" + *e.Comment
		}
		blocks = append(blocks, slack.NewSectionBlock(
			slack.NewTextBlockObject("mrkdwn", text, false, false),
			nil, nil,
		))
	}
	blocks = append(blocks, slack.NewContextBlock("",
		slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("📌 *Showing the latest %d check-ins*", historyLimit), false, false),
	))
	return blocks
}

func statsBlocks(stats []model.DailyStat) []slack.Block {
	blocks := []slack.Block{
		slack.NewHeaderBlock(
			slack.NewTextBlockObject("plain_text", "📊 Team mood, last 7 days", false, false),
		),
		slack.NewDividerBlock(),
	}
	for _, s := range stats {
		blocks = append(blocks, slack.NewSectionBlock(
			slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("*%s*", s.Day), false, false),
			[]*slack.TextBlockObject{
				slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("*Responses:* %d", s.Responses), false, false),
				slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("*Average:* %.1f", s.AvgScore), false, false),
				slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("*🙂 Positive:* %d", s.Positive), false, false),
				slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("*😕 Negative:* %d", s.Negative), false, false),
			},
			nil,
		))
	}
	return blocks
}
