package config

import (
	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Debug bool `env:"DEBUG" envDefault:"false"`

	Telegram struct {
		BotToken    string `env:"TELEGRAM_TOKEN,required"`
		GroupID     int64  `env:"TELEGRAM_GROUP_ID"`
		InviteLink  string `env:"TELEGRAM_GROUP_INVITE" envDefault:""`
		PollTimeout int    `env:"TELEGRAM_POLL_TIMEOUT" envDefault:"30"`
		// OwnerID is granted admin on startup, solving the first-admin
		// bootstrap. Zero skips the grant.
		OwnerID int64 `env:"TELEGRAM_OWNER_ID"`
	}

	Database struct {
		Path string `env:"DB_PATH" envDefault:"hiky_bot.db"`
	}

	Redis struct {
		Host     string `env:"REDIS_HOST" envDefault:"localhost"`
		Port     int    `env:"REDIS_PORT" envDefault:"6379"`
		Password string `env:"REDIS_PASSWORD" envDefault:""`
		DB       int    `env:"REDIS_DB" envDefault:"0"`
	}

	Weather struct {
		APIKey string `env:"OPENWEATHER_API_KEY" envDefault:""`
	}

	RateLimit struct {
		MaxRequests int `env:"RATE_LIMIT_MAX_REQUESTS" envDefault:"5"`
		WindowSecs  int `env:"RATE_LIMIT_WINDOW_SECONDS" envDefault:"60"`
	}

	Scheduler struct {
		// Local hour (Europe/Rome) at which the daily reminder sweep runs.
		ReminderHour int `env:"REMINDER_HOUR" envDefault:"9"`
		// Minutes between maintenance-notice sweeps.
		MaintenanceSweepMinutes int `env:"MAINTENANCE_SWEEP_MINUTES" envDefault:"15"`
	}

	Health struct {
		Port int `env:"HEALTH_PORT" envDefault:"8080"`
	}
}

// Load reads .env when present and then the environment. Missing required
// variables are fatal.
func Load() (*Config, error) {
	// .env is optional; in production variables are set directly.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
