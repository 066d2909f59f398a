// Package config provides YAML-based configuration loading for the bot,
// with secrets overridable from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level bot configuration, loaded from config.yaml.
type Config struct {
	Telegram TelegramConfig `yaml:"telegram"`
	OpenAI   OpenAIConfig   `yaml:"openai"`
	Storage  StorageConfig  `yaml:"storage"`
	Album    AlbumConfig    `yaml:"album"`
	RAG      RAGConfig      `yaml:"rag"`
}

// TelegramConfig holds Bot API credentials.
type TelegramConfig struct {
	Token string `yaml:"token"`
}

// OpenAIConfig holds OpenAI API credentials.
type OpenAIConfig struct {
	APIKey string `yaml:"api_key"`
}

// StorageConfig points at the SQLite database file.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// AlbumConfig tunes media-group aggregation.
type AlbumConfig struct {
	FlushDelaySeconds int `yaml:"flush_delay_seconds"`
}

// RAGConfig configures the document index.
type RAGConfig struct {
	DataDir     string `yaml:"data_dir"`
	TopN        int    `yaml:"top_n"`
	ReindexCron string `yaml:"reindex_cron"`
}

// Load reads the YAML config at path and overlays environment variables.
// A missing file is not an error; defaults plus the environment still make
// a usable config for most commands. A .env file in the working directory
// is loaded first if present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		data = nil
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes, applies defaults, and overlays environment
// variables. nil data yields a default config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse: %w", err)
		}
	}
	cfg.applyDefaults()
	cfg.overlayEnv()
	return &cfg, nil
}

// applyDefaults fills in default values.
func (c *Config) applyDefaults() {
	if c.Storage.Path == "" {
		c.Storage.Path = "imagebot.db"
	}
	if c.Album.FlushDelaySeconds == 0 {
		c.Album.FlushDelaySeconds = 2
	}
	if c.RAG.DataDir == "" {
		c.RAG.DataDir = "data"
	}
	if c.RAG.TopN == 0 {
		c.RAG.TopN = 5
	}
}

// overlayEnv lets the environment override secrets so they can stay out of
// the YAML file.
func (c *Config) overlayEnv() {
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.Token = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.OpenAI.APIKey = v
	}
	if v := os.Getenv("BOT_DATA_PATH"); v != "" {
		c.Storage.Path = v
	}
}

// RequireTelegram checks the fields the Telegram daemon needs.
func (c *Config) RequireTelegram() error {
	if c.Telegram.Token == "" {
		return errors.New("config: telegram.token is required (or set TELEGRAM_BOT_TOKEN)")
	}
	return c.RequireOpenAI()
}

// RequireOpenAI checks the fields any backend call needs.
func (c *Config) RequireOpenAI() error {
	if c.OpenAI.APIKey == "" {
		return errors.New("config: openai.api_key is required (or set OPENAI_API_KEY)")
	}
	return nil
}
