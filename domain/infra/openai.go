package infra

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"
	"github.com/pyama86/moodcheck/config"
	"github.com/pyama86/moodcheck/domain/model"
)

type Summarizer interface {
	GenerateSummary(ctx context.Context, entries []model.MoodEntry, now time.Time) (string, error)
}

type OpenAI struct {
	client *openai.Client
	model  string
}

// キーが設定されていなければ nil を返す
func NewOpenAI(cfg config.OpenAIConfig) (*OpenAI, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	client, err := newOpenAIClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenAI client: %w", err)
	}
	return &OpenAI{
		client: client,
		model:  cfg.Model,
	}, nil
}

func newOpenAIClient(cfg config.OpenAIConfig) (*openai.Client, error) {
	if cfg.AzureEndpoint != "" {
		return newAzureClient(cfg)
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is not set")
	}
	options := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}

	c := openai.NewClient(options...)
	return &c, nil
}

func newAzureClient(cfg config.OpenAIConfig) (*openai.Client, error) {
	if cfg.AzureKey == "" {
		return nil, fmt.Errorf("AZURE_OPENAI_KEY is not set")
	}

	c := openai.NewClient(
		azure.WithEndpoint(cfg.AzureEndpoint, cfg.AzureAPIVersion),
		azure.WithAPIKey(cfg.AzureKey),
	)
	return &c, nil
}

func formatEntriesForPrompt(entries []model.MoodEntry, loc *time.Location) string {
	var b strings.Builder
	for _, e := range entries {
		comment := "(no comment)"
		if e.Comment != nil {
			comment = *e.Comment
		}
		fmt.Fprintf(&b, "- %s score:%d %s comment:%s\n",
			e.RecordedAt.In(loc).Format("2006-01-02 15:04"), e.Score, e.Emoji, comment)
	}
	return b.String()
}

func (h *OpenAI) GenerateSummary(ctx context.Context, entries []model.MoodEntry, now time.Time) (string, error) {
	prompt := fmt.Sprintf(`## Request
The content below is the latest anonymous mood check-ins of our team.
Each line has a date, a score from 1 (awful) to 5 (great), an emoji and an optional comment.
Write a short summary so the team lead can understand how the team is doing.

## Answer format
*Overall mood*
> {one or two sentences about the trend of the scores}

*Recurring themes*
> {topics that appear in several comments, without quoting anyone verbatim}

*Worth a follow-up*
> {signs of stress or blockers, or "nothing notable"}

## Current time
%s
## Check-ins
%s
`,
		now.Format("2006-01-02 15:04:05"),
		formatEntriesForPrompt(entries, now.Location()),
	)

	response, err := h.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model: h.model,
	})

	if err != nil {
		return "", fmt.Errorf("failed to call OpenAI API: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("OpenAI API returned no choices")
	}

	return response.Choices[0].Message.Content, nil
}
