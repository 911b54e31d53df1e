package infra

import (
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/postgres"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pyama86/moodcheck/config"
	"github.com/pyama86/moodcheck/domain/model"
)

const dailyStatsView = "mood_daily_stats"

const dailyStatsSelect = `SELECT recorded_on AS day,
	team_id,
	COUNT(*) AS responses,
	AVG(score) AS avg_score,
	SUM(CASE WHEN score >= 4 THEN 1 ELSE 0 END) AS positive,
	SUM(CASE WHEN score <= 2 THEN 1 ELSE 0 END) AS negative
FROM mood_entries
GROUP BY recorded_on, team_id`

type DataBase struct {
	db  *gorm.DB
	loc *time.Location
}

func NewDataBase(cfg config.DatabaseConfig, loc *time.Location) (*DataBase, error) {
	var db *gorm.DB
	var err error
	switch cfg.Driver {
	case config.DriverPostgres:
		db, err = gorm.Open("postgres", cfg.DSN)
	default:
		dbpath := cfg.Path
		if dbpath != ":memory:" && !path.IsAbs(dbpath) {
			dbpath = path.Join(os.Getenv("PWD"), dbpath)
		}
		db, err = gorm.Open("sqlite3", dbpath)
		if err == nil {
			// :memory: は接続ごとに別DBになるので1本に絞る
			db.DB().SetMaxOpenConns(1)
		}
	}
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&model.MoodEntry{}).Error; err != nil {
		return nil, fmt.Errorf("AutoMigrate failed: %w", err)
	}
	if err := createDailyStatsView(db); err != nil {
		return nil, fmt.Errorf("createDailyStatsView failed: %w", err)
	}
	if loc == nil {
		loc = time.UTC
	}
	return &DataBase{db: db, loc: loc}, nil
}

func createDailyStatsView(db *gorm.DB) error {
	stmt := "CREATE VIEW IF NOT EXISTS " + dailyStatsView + " AS " + dailyStatsSelect
	if db.Dialect().GetName() == "postgres" {
		stmt = "CREATE OR REPLACE VIEW " + dailyStatsView + " AS " + dailyStatsSelect
	}
	return db.Exec(stmt).Error
}

func (d *DataBase) SaveMoodEntry(entry *model.MoodEntry) error {
	if entry.DedupKey != "" {
		var count int
		if err := d.db.Model(&model.MoodEntry{}).Where("dedup_key = ?", entry.DedupKey).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicateEntry
		}
	}
	if err := d.db.Create(entry).Error; err != nil {
		// 同時に届いた再送は一意制約で弾かれる
		if isUniqueViolation(err) {
			return ErrDuplicateEntry
		}
		return err
	}
	return nil
}

func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key value")
}

func (d *DataBase) GetLatestEntriesByUser(userID string, limit int) ([]model.MoodEntry, error) {
	var entries []model.MoodEntry
	err := d.db.Where("user_id = ?", userID).Order("recorded_at desc").Limit(limit).Find(&entries).Error
	return entries, err
}

func (d *DataBase) GetLatestEntriesByTeam(teamID string, limit int) ([]model.MoodEntry, error) {
	var entries []model.MoodEntry
	err := d.db.Where("team_id = ?", teamID).Order("recorded_at desc").Limit(limit).Find(&entries).Error
	return entries, err
}

func (d *DataBase) GetDailyStats(teamID string, since time.Time) ([]model.DailyStat, error) {
	var stats []model.DailyStat
	err := d.db.Table(dailyStatsView).
		Where("team_id = ? AND day >= ?", teamID, since.In(d.loc).Format(dayLayout)).
		Order("day desc").
		Scan(&stats).Error
	return stats, err
}
