package model

import (
	"encoding/json"
	"fmt"
)

// PendingCheckIn はボタン押下からモーダル完了までの間、private_metadata に載せて持ち回る状態
type PendingCheckIn struct {
	Score       int    `json:"score"`
	Emoji       string `json:"emoji"`
	ChannelID   string `json:"channel_id,omitempty"`
	MessageTS   string `json:"message_ts,omitempty"`
	ResponseURL string `json:"response_url,omitempty"`
	TeamID      string `json:"team_id,omitempty"`
}

func NewPendingCheckIn(m Mood) PendingCheckIn {
	return PendingCheckIn{Score: m.Score, Emoji: m.Emoji}
}

func (p PendingCheckIn) Encode() (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (p PendingCheckIn) Mood() (Mood, error) {
	m, err := MoodFromScore(p.Score)
	if err != nil {
		return Mood{}, err
	}
	if m.Emoji != p.Emoji {
		return Mood{}, fmt.Errorf("emoji %q does not match score %d", p.Emoji, p.Score)
	}
	return m, nil
}

func DecodePendingCheckIn(token string) (PendingCheckIn, error) {
	var p PendingCheckIn
	if err := json.Unmarshal([]byte(token), &p); err != nil {
		return PendingCheckIn{}, fmt.Errorf("invalid check-in token: %w", err)
	}
	if _, err := p.Mood(); err != nil {
		return PendingCheckIn{}, fmt.Errorf("invalid check-in token: %w", err)
	}
	return p, nil
}
