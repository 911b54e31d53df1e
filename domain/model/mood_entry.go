package model

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// チェックイン1回分の記録。追記のみで更新・削除はしない
type MoodEntry struct {
	ID         string    `gorm:"type:varchar(36);primary_key"`
	UserID     string    `gorm:"type:varchar(50);not null;index:idx_mood_entries_user_recorded"`
	UserName   *string   `gorm:"type:varchar(100)"`
	Score      int       `gorm:"type:integer CHECK (score BETWEEN 1 AND 5);not null"`
	Emoji      string    `gorm:"type:varchar(16);not null"`
	Comment    *string   `gorm:"type:text"`
	TeamID     *string   `gorm:"type:varchar(50);index:idx_mood_entries_team_recorded"`
	RecordedAt time.Time `gorm:"not null;index:idx_mood_entries_user_recorded,idx_mood_entries_team_recorded"`
	RecordedOn string    `gorm:"type:varchar(10);not null"` // 基準タイムゾーンでの日付 (YYYY-MM-DD)
	CreatedAt  time.Time
	DedupKey   string    `gorm:"type:varchar(64);unique_index"`
}

func (MoodEntry) TableName() string { return "mood_entries" }

// DedupKey identifies one modal instance so a redelivered submission maps to the same row.
func DedupKey(userID, viewID, messageTS string) string {
	sum := sha256.Sum256([]byte(userID + "|" + viewID + "|" + messageTS))
	return hex.EncodeToString(sum[:])
}

// mood_daily_stats ビューの1行
type DailyStat struct {
	Day       string  `gorm:"column:day"`
	TeamID    *string `gorm:"column:team_id"`
	Responses int     `gorm:"column:responses"`
	AvgScore  float64 `gorm:"column:avg_score"`
	Positive  int     `gorm:"column:positive"`
	Negative  int     `gorm:"column:negative"`
}

func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func StringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
