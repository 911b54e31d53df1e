package model

import (
	"fmt"
	"strconv"
	"strings"
)

// ActionIDPrefix はボタンの action_id の共通プレフィックス
const ActionIDPrefix = "mood_"

const (
	MinScore = 1
	MaxScore = 5
)

// Mood は選択肢1つ分(スコアと絵文字)
type Mood struct {
	Score int
	Emoji string
	Label string
}

var moods = []Mood{
	{Score: 1, Emoji: "😢", Label: "Awful"},
	{Score: 2, Emoji: "😕", Label: "Not great"},
	{Score: 3, Emoji: "😐", Label: "Okay"},
	{Score: 4, Emoji: "🙂", Label: "Good"},
	{Score: 5, Emoji: "😄", Label: "Great"},
}

// Moods returns the allowed moods ordered by score.
func Moods() []Mood {
	out := make([]Mood, len(moods))
	copy(out, moods)
	return out
}

func (m Mood) ActionID() string {
	return ActionIDPrefix + strconv.Itoa(m.Score)
}

func MoodFromScore(score int) (Mood, error) {
	if score < MinScore || score > MaxScore {
		return Mood{}, fmt.Errorf("score out of range: %d", score)
	}
	return moods[score-1], nil
}

func MoodFromActionID(actionID string) (Mood, error) {
	if !strings.HasPrefix(actionID, ActionIDPrefix) {
		return Mood{}, fmt.Errorf("not a mood action: %s", actionID)
	}
	score, err := strconv.Atoi(strings.TrimPrefix(actionID, ActionIDPrefix))
	if err != nil {
		return Mood{}, fmt.Errorf("invalid mood action %s: %w", actionID, err)
	}
	return MoodFromScore(score)
}
