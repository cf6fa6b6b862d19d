package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	DiscordToken  string `env:"DISCORD_TOKEN"`
	StoragePath   string `env:"STORAGE_PATH" envDefault:"datastore.json"`
	CommandPrefix string `env:"COMMAND_PREFIX" envDefault:"/"`

	QueueBackend  string `env:"QUEUE_BACKEND" envDefault:"datastore"`
	QueuePath     string `env:"QUEUE_PATH" envDefault:"queue.json"`
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	BlobBackend string `env:"BLOB_BACKEND" envDefault:"fs"`
	BlobDir     string `env:"BLOB_DIR" envDefault:"media"`
	S3Bucket    string `env:"S3_BUCKET"`
	AWSRegion   string `env:"AWS_REGION"`

	PollInterval time.Duration `env:"POLL_INTERVAL" envDefault:"1s"`
	ReapInterval time.Duration `env:"REAP_INTERVAL" envDefault:"60s"`

	Proxy      string `env:"PROXY"`
	YtdlpPath  string `env:"YTDLP_PATH" envDefault:"yt-dlp"`
	FFmpegPath string `env:"FFMPEG_PATH" envDefault:"ffmpeg"`

	StatusAddr string `env:"STATUS_ADDR" envDefault:":8787"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile  string `env:"LOG_FILE"`
}

// Load reads .env if present, then the environment. It does not require a
// Discord token; New checks that for the bot binary.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Str("module", "config").Msg("no .env file found, falling back to system environment variables")
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// New loads the bot configuration, which needs a token.
func New() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	if cfg.DiscordToken == "" {
		return nil, errors.New("DISCORD_TOKEN is not set")
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.QueueBackend {
	case "datastore", "redis":
	default:
		return fmt.Errorf("QUEUE_BACKEND must be datastore or redis, got %q", c.QueueBackend)
	}
	switch c.BlobBackend {
	case "fs":
	case "s3":
		if c.S3Bucket == "" {
			return errors.New("S3_BUCKET is required when BLOB_BACKEND=s3")
		}
	default:
		return fmt.Errorf("BLOB_BACKEND must be fs or s3, got %q", c.BlobBackend)
	}
	if c.PollInterval <= 0 || c.ReapInterval <= 0 {
		return errors.New("POLL_INTERVAL and REAP_INTERVAL must be positive")
	}
	return nil
}
