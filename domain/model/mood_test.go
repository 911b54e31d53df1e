package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoodFromActionID(t *testing.T) {
	seen := map[string]int{}
	for _, m := range Moods() {
		got, err := MoodFromActionID(m.ActionID())
		require.NoError(t, err)
		assert.Equal(t, m, got)
		seen[m.Emoji]++
	}
	// スコアと絵文字は1:1
	assert.Len(t, seen, MaxScore-MinScore+1)

	neutral, err := MoodFromActionID("mood_3")
	require.NoError(t, err)
	assert.Equal(t, 3, neutral.Score)
	assert.Equal(t, "😐", neutral.Emoji)

	for _, bad := range []string{"mood_0", "mood_6", "mood_x", "history_action", ""} {
		_, err := MoodFromActionID(bad)
		assert.Error(t, err, bad)
	}
}

func TestPendingCheckIn_Token(t *testing.T) {
	m, _ := MoodFromScore(4)
	p := NewPendingCheckIn(m)
	p.ChannelID = "C1"
	p.MessageTS = "1700000000.000100"
	p.ResponseURL = "https://hooks.slack.com/actions/T1/1/abc"

	token, err := p.Encode()
	require.NoError(t, err)

	got, err := DecodePendingCheckIn(token)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestDecodePendingCheckIn_Invalid(t *testing.T) {
	tests := []string{
		"",
		"not json",
		`{"score":9,"emoji":"😄"}`,
		`{"score":5,"emoji":"😢"}`,
	}
	for _, token := range tests {
		_, err := DecodePendingCheckIn(token)
		assert.Error(t, err, token)
	}
}

func TestDedupKey(t *testing.T) {
	a := DedupKey("U1", "V1", "1.0")
	assert.Len(t, a, 64)
	assert.Equal(t, a, DedupKey("U1", "V1", "1.0"))
	assert.NotEqual(t, a, DedupKey("U1", "V2", "1.0"))
	assert.NotEqual(t, a, DedupKey("U2", "V1", "1.0"))
}
