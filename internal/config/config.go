// Package config holds all icebox configuration, loaded from the environment
// with an optional .env file.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all icebox configuration.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Payment    PaymentConfig
	Weather    WeatherConfig
	Transcribe TranscribeConfig
}

type ServerConfig struct {
	Bind string
	Port int
}

type DatabaseConfig struct {
	Path string
}

type PaymentConfig struct {
	ShopID    string
	SecretKey string
	BaseURL   string
	ReturnURL string
}

type WeatherConfig struct {
	BaseURL string
}

type TranscribeConfig struct {
	Binary string
	Model  string
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 38555,
		},
		Database: DatabaseConfig{
			Path: "", // resolved at runtime via store.DefaultDBPath()
		},
	}
}

// Load builds the configuration from the environment. A .env file in the
// working directory is merged in first when present; real environment
// variables win over it.
func Load() (Config, error) {
	// Missing .env is the common case and not an error.
	_ = godotenv.Load()

	cfg := Default()

	if v := os.Getenv("ICEBOX_BIND"); v != "" {
		cfg.Server.Bind = v
	}
	if v := os.Getenv("ICEBOX_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid ICEBOX_PORT %q: %w", v, err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("ICEBOX_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}

	cfg.Payment.ShopID = os.Getenv("YOOKASSA_SHOP_ID")
	cfg.Payment.SecretKey = os.Getenv("YOOKASSA_SECRET_KEY")
	cfg.Payment.BaseURL = os.Getenv("YOOKASSA_BASE_URL")
	cfg.Payment.ReturnURL = os.Getenv("ICEBOX_RETURN_URL")

	cfg.Weather.BaseURL = os.Getenv("ICEBOX_WEATHER_URL")

	cfg.Transcribe.Binary = os.Getenv("ICEBOX_WHISPER_BIN")
	cfg.Transcribe.Model = os.Getenv("ICEBOX_WHISPER_MODEL")

	return cfg, nil
}

// PaymentsConfigured reports whether gateway credentials are present. Without
// them the server still runs; purchase endpoints report a configuration
// error instead.
func (c *Config) PaymentsConfigured() bool {
	return c.Payment.ShopID != "" && c.Payment.SecretKey != ""
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
