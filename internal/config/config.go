package config

import (
	"os"
	"strconv"
	"time"
)

// Config is the server's runtime configuration, sourced from the environment.
type Config struct {
	Addr              string
	InactivityTimeout time.Duration
	MaxNameLength     int
	MaxChatLength     int
}

func Default() Config {
	return Config{
		Addr:              ":8080",
		InactivityTimeout: 5 * time.Minute,
		MaxNameLength:     20,
		MaxChatLength:     500,
	}
}

// FromEnv reads overrides from the environment. Unset or unparseable values
// fall back to the defaults.
func FromEnv() Config {
	cfg := Default()
	if v := os.Getenv("PORT"); v != "" {
		cfg.Addr = ":" + v
	}
	if v := os.Getenv("BEATCORD_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("BEATCORD_INACTIVITY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.InactivityTimeout = d
		}
	}
	if v := os.Getenv("BEATCORD_MAX_NAME_LENGTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxNameLength = n
		}
	}
	if v := os.Getenv("BEATCORD_MAX_CHAT_LENGTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxChatLength = n
		}
	}
	return cfg
}
