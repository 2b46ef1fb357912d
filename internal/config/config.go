// Package config loads service configuration from the environment.
//
// An optional .env file in the working directory is loaded first; real
// environment variables always win over values from the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Provider names accepted by the *_PROVIDER settings.
const (
	ProviderSimulated = "simulated"
	ProviderYouTube   = "youtube"
	ProviderFFmpeg    = "ffmpeg"
	ProviderTemplate  = "template"
	ProviderOpenAI    = "openai"
)

// Store drivers accepted by STORE_DRIVER.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

type Config struct {
	Port string `env:"PORT" envDefault:"8080"`

	StoreDriver string `env:"STORE_DRIVER" envDefault:"memory"`
	// DBPath is only used by the sqlite driver. The default keeps jobs in
	// memory for the lifetime of the process.
	DBPath string `env:"DB_PATH" envDefault:":memory:"`
	// DatabaseURL is required by the postgres driver.
	DatabaseURL string `env:"DATABASE_URL"`

	Pipeline PipelineConfig
	Stages   StagesConfig
	YouTube  YouTubeConfig
	OpenAI   OpenAIConfig
	Log      LogConfig
}

type PipelineConfig struct {
	// Workers bounds how many pipelines run at once.
	Workers int `env:"WORKERS" envDefault:"5"`
	// PrepareWorkers bounds concurrent clip preparation within one job.
	PrepareWorkers   int           `env:"PREPARE_WORKERS" envDefault:"4"`
	StageTimeout     time.Duration `env:"STAGE_TIMEOUT" envDefault:"5m"`
	RankingEnabled   bool          `env:"RANKING_ENABLED" envDefault:"true"`
	DefaultItemCount int           `env:"DEFAULT_ITEM_COUNT" envDefault:"5"`
	MaxItemCount     int           `env:"MAX_ITEM_COUNT" envDefault:"50"`
	OutputDir        string        `env:"OUTPUT_DIR" envDefault:"/tmp/videos"`
}

type StagesConfig struct {
	Discovery string `env:"DISCOVERY_PROVIDER" envDefault:"simulated"`
	Media     string `env:"MEDIA_PROVIDER" envDefault:"simulated"`
	Metadata  string `env:"METADATA_PROVIDER" envDefault:"template"`
	Publish   string `env:"PUBLISH_PROVIDER" envDefault:"simulated"`

	SimulatedCompileDelay time.Duration `env:"SIMULATED_COMPILE_DELAY" envDefault:"2s"`
	SimulatedPublishDelay time.Duration `env:"SIMULATED_PUBLISH_DELAY" envDefault:"3s"`
}

type YouTubeConfig struct {
	APIKey       string `env:"YOUTUBE_API_KEY"`
	ClientID     string `env:"YOUTUBE_CLIENT_ID"`
	ClientSecret string `env:"YOUTUBE_CLIENT_SECRET"`
	RefreshToken string `env:"YOUTUBE_REFRESH_TOKEN"`
}

type OpenAIConfig struct {
	APIKey string `env:"OPENAI_API_KEY"`
	Model  string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

// Load reads .env (if present) and the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return Config{}, fmt.Errorf("load .env file: %w", err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	cfg.Sanitize()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Sanitize clamps numeric settings into usable ranges.
func (c *Config) Sanitize() {
	p := &c.Pipeline
	if p.Workers <= 0 {
		p.Workers = 1
	}
	if p.PrepareWorkers <= 0 {
		p.PrepareWorkers = 1
	}
	if p.StageTimeout < 0 {
		p.StageTimeout = 0
	}
	if p.MaxItemCount <= 0 {
		p.MaxItemCount = 50
	}
	if p.DefaultItemCount <= 0 {
		p.DefaultItemCount = 5
	}
	if p.DefaultItemCount > p.MaxItemCount {
		p.DefaultItemCount = p.MaxItemCount
	}
	if c.Stages.SimulatedCompileDelay < 0 {
		c.Stages.SimulatedCompileDelay = 0
	}
	if c.Stages.SimulatedPublishDelay < 0 {
		c.Stages.SimulatedPublishDelay = 0
	}
}

// Validate rejects unknown driver and provider names and missing store
// settings.
func (c *Config) Validate() error {
	if err := oneOf("STORE_DRIVER", c.StoreDriver, StoreMemory, StoreSQLite, StorePostgres); err != nil {
		return err
	}
	if c.StoreDriver == StorePostgres && c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required when STORE_DRIVER is postgres")
	}
	if err := oneOf("DISCOVERY_PROVIDER", c.Stages.Discovery, ProviderSimulated, ProviderYouTube); err != nil {
		return err
	}
	if err := oneOf("MEDIA_PROVIDER", c.Stages.Media, ProviderSimulated, ProviderFFmpeg); err != nil {
		return err
	}
	if err := oneOf("METADATA_PROVIDER", c.Stages.Metadata, ProviderTemplate, ProviderOpenAI); err != nil {
		return err
	}
	return oneOf("PUBLISH_PROVIDER", c.Stages.Publish, ProviderSimulated, ProviderYouTube)
}

func oneOf(key, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("invalid %s %q: must be one of %v", key, value, allowed)
}
