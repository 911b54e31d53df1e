package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Database: DatabaseConfig{Driver: DriverSQLite},
		Prompt: PromptConfig{
			Target:      TargetChannel,
			Channel:     "C1",
			WeekendDays: []int{0, 6},
			Timezone:    "Asia/Tokyo",
		},
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("ENV_FILE", t.TempDir()+"/missing.env")
	t.Setenv("SLACK_BOT_TOKEN", "xoxb-test")
	t.Setenv("SLACK_SIGNING_SECRET", "secret")
	t.Setenv("PROMPT_USER_IDS", "U1, U2")
	t.Setenv("PROMPT_TARGET", "users")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":3000", cfg.Server.Listen)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, []int{0, 6}, cfg.Prompt.WeekendDays)
	assert.Len(t, cfg.Prompt.UserIDs, 2)
	assert.True(t, cfg.Slack.AnnounceAnonymous)
	assert.False(t, cfg.OpenAI.Enabled())
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("ENV_FILE", t.TempDir()+"/missing.env")
	for _, k := range []string{"SLACK_BOT_TOKEN", "SLACK_SIGNING_SECRET"} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}

	_, err := Load()
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.Database.Driver = "mysql" },
			wantErr: true,
		},
		{
			name:    "postgres without dsn",
			mutate:  func(c *Config) { c.Database.Driver = DriverPostgres },
			wantErr: true,
		},
		{
			name: "postgres with dsn",
			mutate: func(c *Config) {
				c.Database.Driver = DriverPostgres
				c.Database.DSN = "postgres://localhost/mood"
			},
		},
		{
			name:    "unknown target",
			mutate:  func(c *Config) { c.Prompt.Target = "everyone" },
			wantErr: true,
		},
		{
			name:    "weekend day out of range",
			mutate:  func(c *Config) { c.Prompt.WeekendDays = []int{7} },
			wantErr: true,
		},
		{
			name:    "bad timezone",
			mutate:  func(c *Config) { c.Prompt.Timezone = "Mars/Olympus" },
			wantErr: true,
		},
		{
			name:    "bad schedule",
			mutate:  func(c *Config) { c.Prompt.ScheduleAt = "9am" },
			wantErr: true,
		},
		{
			name:   "good schedule",
			mutate: func(c *Config) { c.Prompt.ScheduleAt = "09:30" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPromptConfig_IsWeekend(t *testing.T) {
	cfg := validConfig().Prompt

	// 2024-06-07 20:00 UTC is Saturday 05:00 in Tokyo.
	fridayUTC := time.Date(2024, 6, 7, 20, 0, 0, 0, time.UTC)
	assert.True(t, cfg.IsWeekend(fridayUTC))

	monday := time.Date(2024, 6, 10, 3, 0, 0, 0, time.UTC)
	assert.False(t, cfg.IsWeekend(monday))
}
