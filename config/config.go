package config

import (
	"time"

	"github.com/caarlos0/env/v6"
)

type Config struct {
	Server struct {
		Port int `env:"SERVER_PORT" envDefault:"5250"`
	}

	Collection struct {
		// Pages fetched per source each cycle
		MaxPagesPerSource int `env:"COLLECT_MAX_PAGES" envDefault:"2"`

		// Sources fetched concurrently
		SourceConcurrency int `env:"COLLECT_CONCURRENCY" envDefault:"4"`

		// Timeout for a single page request
		RequestTimeout time.Duration `env:"COLLECT_REQUEST_TIMEOUT" envDefault:"15s"`

		// Delay between page requests to the same source
		PoliteDelay time.Duration `env:"COLLECT_POLITE_DELAY" envDefault:"1500ms"`

		// Time between scheduled cycles
		Interval time.Duration `env:"COLLECT_INTERVAL" envDefault:"1h"`

		// Delay before the first scheduled cycle
		Warmup time.Duration `env:"COLLECT_WARMUP" envDefault:"10s"`

		// Attempts per page request, including the first
		MaxAttempts int `env:"COLLECT_MAX_ATTEMPTS" envDefault:"3"`

		// Initial retry delay, doubled per attempt up to the ceiling
		RetryDelay    time.Duration `env:"COLLECT_RETRY_DELAY" envDefault:"1s"`
		RetryMaxDelay time.Duration `env:"COLLECT_RETRY_MAX_DELAY" envDefault:"15s"`
		RetryBackoff  float64       `env:"COLLECT_RETRY_BACKOFF" envDefault:"2.0"`
	}

	Dedup struct {
		DBPath         string  `env:"DB_PATH" envDefault:"props.db"`
		FuzzyThreshold float64 `env:"DEDUP_FUZZY_THRESHOLD" envDefault:"0.86"`
	}

	Matching struct {
		TokenThreshold  float64 `env:"MATCH_TOKEN_THRESHOLD" envDefault:"0.92"`
		PhraseThreshold float64 `env:"MATCH_PHRASE_THRESHOLD" envDefault:"0.86"`
	}

	Telegram struct {
		BotToken  string        `env:"BOT_TOKEN"`
		ChatID    string        `env:"CHAT_ID"`
		Pacing    time.Duration `env:"TELEGRAM_PACING" envDefault:"350ms"`
		BatchSize int           `env:"TELEGRAM_BATCH_SIZE" envDefault:"1"`
	}

	Export struct {
		Enabled   bool   `env:"EXPORT_CSV" envDefault:"true"`
		OutputDir string `env:"EXPORT_DIR" envDefault:"outputs"`
	}

	// Optional YAML file overriding the embedded source/keyword catalog
	CatalogPath string `env:"CATALOG_PATH"`
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
