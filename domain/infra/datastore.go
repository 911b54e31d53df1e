package infra

import (
	"errors"
	"fmt"
	"time"

	"github.com/pyama86/moodcheck/config"
	"github.com/pyama86/moodcheck/domain/model"
)

// 同じモーダルからの再送で既に記録済みのとき返る
var ErrDuplicateEntry = errors.New("mood entry already recorded")

type Datastore interface {
	// チェックインを1件保存する
	SaveMoodEntry(*model.MoodEntry) error
	// ユーザーの最新の記録を取得する
	GetLatestEntriesByUser(string, int) ([]model.MoodEntry, error)
	// ワークスペースの最新の記録を取得する
	GetLatestEntriesByTeam(string, int) ([]model.MoodEntry, error)
	// 指定日以降の日別集計を取得する
	GetDailyStats(string, time.Time) ([]model.DailyStat, error)
}

func NewDatastore(cfg config.DatabaseConfig, loc *time.Location) (Datastore, error) {
	switch cfg.Driver {
	case config.DriverDynamoDB:
		return NewDynamoDB(cfg, loc)
	case config.DriverSQLite, config.DriverPostgres:
		return NewDataBase(cfg, loc)
	}
	return nil, fmt.Errorf("unknown datastore driver: %s", cfg.Driver)
}

const dayLayout = "2006-01-02"
