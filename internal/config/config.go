package config

import (
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// LoadDotEnv loads environment variables from a .env file if present.
// Existing environment variables are not overwritten.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

type Config struct {
	DatabaseURL              string `env:"DATABASE_URL"`
	RelayURL                 string `env:"RELAY_URL"`
	Port                     string `env:"PORT" envDefault:"8080"`
	PollIntervalSeconds      int    `env:"POLL_INTERVAL_SECONDS" envDefault:"3"`
	WritingSeconds           int    `env:"WRITING_SECONDS" envDefault:"60"`
	JudgeGraceSeconds        int    `env:"JUDGE_GRACE_SECONDS" envDefault:"5"`
	DBMaxOpenConns           int    `env:"DB_MAX_OPEN_CONNS" envDefault:"10"`
	DBMaxIdleConns           int    `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeSeconds int    `env:"DB_CONN_MAX_LIFETIME_SECONDS" envDefault:"300"`
	DBConnMaxIdleTimeSeconds int    `env:"DB_CONN_MAX_IDLE_SECONDS" envDefault:"60"`
	GeminiAPIKey             string `env:"GEMINI_API_KEY"`
	GeminiModel              string `env:"GEMINI_MODEL" envDefault:"gemini-1.5-flash"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
