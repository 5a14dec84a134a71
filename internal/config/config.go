// Package config provides application configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"

	AudioMiniaudio = "miniaudio"
	AudioPortaudio = "portaudio"
	AudioNone      = "none"
)

// Config holds all application configuration.
type Config struct {
	Addr           string
	DeepgramAPIKey string
	// Voice is the Deepgram speak model, the client default when empty.
	Voice string
	// LUISEndpoint is the prediction URL the utterance is appended to. Listen
	// is disabled when empty.
	LUISEndpoint string
	// GroqAPIKey enables the chat model classifier when no LUIS endpoint is
	// set.
	GroqAPIKey string
	GroqModel  string
	// CatalogPath overrides the built-in intent catalog.
	CatalogPath string

	Store StoreConfig
	Audio string

	ContinuousTimeout time.Duration
	TransportTimeout  time.Duration
	FollowUpChaining  bool
}

// ClassifierEnabled reports whether Listen can classify utterances.
func (c *Config) ClassifierEnabled() bool {
	return c.LUISEndpoint != "" || c.GroqAPIKey != ""
}

// StoreConfig selects where credentials are kept.
type StoreConfig struct {
	Backend       string
	SQLitePath    string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// Load reads configuration from the environment, after loading a .env file
// when one exists.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{
		Addr:           getEnv("VOICEFORMS_ADDR", ":8080"),
		DeepgramAPIKey: getEnv("DEEPGRAM_API_KEY", ""),
		Voice:          getEnv("VOICEFORMS_VOICE", ""),
		LUISEndpoint:   getEnv("LUIS_ENDPOINT", ""),
		GroqAPIKey:     getEnv("GROQ_API_KEY", ""),
		GroqModel:      getEnv("GROQ_MODEL", ""),
		CatalogPath:    getEnv("VOICEFORMS_CATALOG", ""),
		Store: StoreConfig{
			Backend:       strings.ToLower(getEnv("VOICEFORMS_STORE", StoreSQLite)),
			SQLitePath:    getEnv("VOICEFORMS_SQLITE_PATH", "./data/voiceforms.db"),
			RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvInt("REDIS_DB", 0),
			RedisPrefix:   getEnv("VOICEFORMS_REDIS_PREFIX", "voiceforms:"),
		},
		Audio:             strings.ToLower(getEnv("VOICEFORMS_AUDIO", AudioMiniaudio)),
		ContinuousTimeout: getEnvDuration("VOICEFORMS_CONTINUOUS_TIMEOUT", 60*time.Second),
		TransportTimeout:  getEnvDuration("VOICEFORMS_TRANSPORT_TIMEOUT", 30*time.Second),
		FollowUpChaining:  getEnvBool("VOICEFORMS_FOLLOW_UP", true),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("VOICEFORMS_ADDR cannot be empty")
	}
	if c.Audio != AudioNone && c.DeepgramAPIKey == "" {
		return fmt.Errorf("DEEPGRAM_API_KEY is required unless VOICEFORMS_AUDIO is %q", AudioNone)
	}

	switch c.Store.Backend {
	case StoreMemory:
	case StoreSQLite:
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("VOICEFORMS_SQLITE_PATH cannot be empty")
		}
	case StoreRedis:
		if c.Store.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR cannot be empty")
		}
	default:
		return fmt.Errorf("unknown VOICEFORMS_STORE %q", c.Store.Backend)
	}

	switch c.Audio {
	case AudioMiniaudio, AudioPortaudio, AudioNone:
	default:
		return fmt.Errorf("unknown VOICEFORMS_AUDIO %q", c.Audio)
	}

	if c.ContinuousTimeout <= 0 {
		return fmt.Errorf("VOICEFORMS_CONTINUOUS_TIMEOUT must be > 0")
	}
	if c.TransportTimeout <= 0 {
		return fmt.Errorf("VOICEFORMS_TRANSPORT_TIMEOUT must be > 0")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
