package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
	DriverDynamoDB = "dynamodb"

	TargetChannel = "channel"
	TargetUsers   = "users"
	TargetMembers = "members"
)

// Config is the root application configuration.
type Config struct {
	Server   ServerConfig
	Slack    SlackConfig
	Database DatabaseConfig
	Prompt   PromptConfig
	OpenAI   OpenAIConfig
	Log      LogConfig
}

type ServerConfig struct {
	Listen          string        `env:"LISTEN_SOCKET"    env-default:":3000"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" env-default:"10s"`
}

type SlackConfig struct {
	BotToken          string `env:"SLACK_BOT_TOKEN"      env-required:"true"`
	SigningSecret     string `env:"SLACK_SIGNING_SECRET" env-required:"true"`
	APIURL            string `env:"SLACK_API_URL"`
	AnnounceChannel   string `env:"ANNOUNCE_CHANNEL"`
	AnnounceAnonymous bool   `env:"ANNOUNCE_ANONYMOUS"   env-default:"true"`
}

type DatabaseConfig struct {
	Driver          string `env:"DB_DRIVER"         env-default:"sqlite3"`
	Path            string `env:"DB_PATH"           env-default:"./db/moodcheck.db"`
	DSN             string `env:"DATABASE_URL"`
	DynamoTableName string `env:"DYNAMO_TABLE_NAME" env-default:"moodcheck_mood_entries"`
	DynamoLocal     string `env:"DYNAMO_LOCAL"`
}

// PromptConfig drives the scheduled prompt sender.
type PromptConfig struct {
	CronSecret   string   `env:"CRON_SECRET"`
	Target       string   `env:"PROMPT_TARGET"      env-default:"channel"`
	Channel      string   `env:"PROMPT_CHANNEL"`
	UserIDs      []string `env:"PROMPT_USER_IDS"    env-separator:","`
	SkipWeekends bool     `env:"SKIP_WEEKENDS"      env-default:"false"`
	WeekendDays  []int    `env:"WEEKEND_DAYS"       env-separator:"," env-default:"0,6"`
	Timezone     string   `env:"REFERENCE_TZ"       env-default:"Asia/Tokyo"`
	ScheduleAt   string   `env:"PROMPT_SCHEDULE_AT"`
}

type OpenAIConfig struct {
	APIKey          string `env:"OPENAI_API_KEY"`
	Model           string `env:"OPENAI_MODEL"             env-default:"gpt-4o-mini"`
	AzureEndpoint   string `env:"AZURE_OPENAI_ENDPOINT"`
	AzureKey        string `env:"AZURE_OPENAI_KEY"`
	AzureAPIVersion string `env:"AZURE_OPENAI_API_VERSION" env-default:"2025-01-01-preview"`
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL"  env-default:"info"`
	Format string `env:"LOG_FORMAT" env-default:"json"`
}

// Load reads an optional .env file, then the environment.
func Load() (*Config, error) {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: load %s: %w", envFile, err)
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}

// Validate checks cross-field consistency and resolves the reference timezone.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite, DriverDynamoDB:
	case DriverPostgres:
		if c.Database.DSN == "" {
			return errors.New("DATABASE_URL is required when DB_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("unknown DB_DRIVER: %q", c.Database.Driver)
	}

	switch c.Prompt.Target {
	case TargetChannel, TargetMembers, TargetUsers:
	default:
		return fmt.Errorf("unknown PROMPT_TARGET: %q", c.Prompt.Target)
	}

	for _, d := range c.Prompt.WeekendDays {
		if d < 0 || d > 6 {
			return fmt.Errorf("invalid WEEKEND_DAYS entry: %d", d)
		}
	}

	if _, err := time.LoadLocation(c.Prompt.Timezone); err != nil {
		return fmt.Errorf("invalid REFERENCE_TZ %q: %w", c.Prompt.Timezone, err)
	}

	if c.Prompt.ScheduleAt != "" {
		if _, err := time.Parse("15:04", c.Prompt.ScheduleAt); err != nil {
			return fmt.Errorf("invalid PROMPT_SCHEDULE_AT %q: %w", c.Prompt.ScheduleAt, err)
		}
	}
	return nil
}

// Location returns the reference timezone, falling back to UTC when it cannot be loaded.
func (c PromptConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsWeekend reports whether t falls on a configured weekend day in the reference timezone.
func (c PromptConfig) IsWeekend(t time.Time) bool {
	return slices.Contains(c.WeekendDays, int(t.In(c.Location()).Weekday()))
}

// Enabled reports whether a summarizer backend is configured.
func (c OpenAIConfig) Enabled() bool {
	return c.APIKey != "" || c.AzureKey != ""
}
