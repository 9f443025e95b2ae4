package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	DatabaseURL string        `env:"DATABASE_URL,required,notEmpty"`
	DBDriver    string        `env:"DB_DRIVER" envDefault:"postgres"` // postgres|sqlite
	DBTimeout   time.Duration `env:"DB_TIMEOUT" envDefault:"5s"`
	Seed        bool          `env:"SEED" envDefault:"false"`

	HTTPAddr     string         `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel     string         `env:"LOG_LEVEL" envDefault:"info"`
	Env          string         `env:"ENV" envDefault:"dev"` // dev|prod
	SentryDSN    string         `env:"SENTRY_DSN"`
	OTelEndpoint string         `env:"OTEL_ENDPOINT"`
	TZ           string         `env:"TZ" envDefault:"Europe/Moscow"`
	Location     *time.Location `env:"-"`

	JWTSecret   string   `env:"JWT_SECRET,required,notEmpty"`
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`

	EligibilityRule     string        `env:"ELIGIBILITY_RULE" envDefault:"same_group"`
	TeamSize            int           `env:"TEAM_SIZE" envDefault:"5"`
	PeriodSweepInterval time.Duration `env:"PERIOD_SWEEP_INTERVAL" envDefault:"1m"` // 0 — sweep выключен

	// Telegram-уведомления админам, опционально
	BotToken     string  `env:"BOT_TOKEN"`
	AdminChatIDs []int64 `env:"ADMIN_CHAT_IDS" envSeparator:","`
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	loc, err := time.LoadLocation(cfg.TZ)
	if err != nil {
		loc = time.Local
	}
	cfg.Location = loc

	cfg.DBDriver = strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	switch cfg.DBDriver {
	case "postgres", "sqlite":
	default:
		return nil, fmt.Errorf("DB_DRIVER: unsupported %q", cfg.DBDriver)
	}
	switch cfg.EligibilityRule {
	case "same_group", "cross_group":
	default:
		return nil, fmt.Errorf("ELIGIBILITY_RULE: unsupported %q", cfg.EligibilityRule)
	}
	if cfg.PeriodSweepInterval < 0 {
		return nil, fmt.Errorf("PERIOD_SWEEP_INTERVAL: must be >= 0 (0 disables), got %v", cfg.PeriodSweepInterval)
	}
	if cfg.TeamSize <= 0 {
		return nil, fmt.Errorf("TEAM_SIZE: must be positive, got %d", cfg.TeamSize)
	}
	return &cfg, nil
}
