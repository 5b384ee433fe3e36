package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	DBDSN    string
	HTTPAddr string
	LogLevel string
	RedisDSN string

	CORSOrigins []string

	// chat transport; token kept in-memory only, never log it
	DiscordToken     string
	DiscordChannelID string

	FuzzyMatchEnabled bool
	FuzzyThreshold    float64
	FuzzyMargin       float64
}

func Load() (Config, error) {
	cfg := Config{
		DBDSN:            os.Getenv("DB_DSN"),
		HTTPAddr:         getenvDefault("HTTP_ADDR", ":8080"),
		LogLevel:         getenvDefault("LOG_LEVEL", "info"),
		RedisDSN:         getenvDefault("REDIS_DSN", "redis://localhost:6379/0"),
		DiscordToken:     os.Getenv("DISCORD_TOKEN"),
		DiscordChannelID: os.Getenv("DISCORD_CHANNEL_ID"),
	}

	if cfg.DBDSN == "" {
		return Config{}, errors.New("missing DB_DSN")
	}

	cfg.FuzzyMatchEnabled = boolEnv("ENABLE_FUZZY_USERNAME_MATCH", false)

	var err error
	cfg.FuzzyThreshold, err = floatEnv("FUZZY_MATCH_THRESHOLD", 0.92)
	if err != nil {
		return Config{}, errors.New("FUZZY_MATCH_THRESHOLD must be a float in [0,1]")
	}
	cfg.FuzzyMargin, err = floatEnv("FUZZY_MATCH_MARGIN", 0.03)
	if err != nil {
		return Config{}, errors.New("FUZZY_MATCH_MARGIN must be a float in [0,1]")
	}
	if cfg.FuzzyThreshold < 0 || cfg.FuzzyThreshold > 1 || cfg.FuzzyMargin < 0 || cfg.FuzzyMargin > 1 {
		return Config{}, errors.New("fuzzy match knobs must be in [0,1]")
	}

	corsOrigins := getenvDefault("CORS_ORIGINS", "")
	if corsOrigins != "" {
		cfg.CORSOrigins = strings.Split(corsOrigins, ",")
		for i := range cfg.CORSOrigins {
			cfg.CORSOrigins[i] = strings.TrimSpace(cfg.CORSOrigins[i])
		}
	} else {
		cfg.CORSOrigins = []string{"http://localhost:3000"} // default
	}

	return cfg, nil
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func boolEnv(k string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(k)))
	if v == "" {
		return def
	}
	return v == "1" || v == "true" || v == "yes"
}

func floatEnv(k string, def float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def, nil
	}
	return strconv.ParseFloat(v, 64)
}
