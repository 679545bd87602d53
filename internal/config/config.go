// Package config loads runtime settings from a .env file and the
// environment. Command-line flags in cmd/barter override what it returns.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds the server settings.
type Config struct {
	DBPath   string
	Addr     string
	LogPath  string
	NATSURL  string
	PageSize int
}

// Defaults used when neither the environment nor a flag sets a value.
const (
	DefaultDBPath   = "barter.sqlite3"
	DefaultAddr     = ":8080"
	DefaultPageSize = 5
)

// Load reads envFile (if it exists) into the process environment without
// overriding variables that are already set, then builds a Config.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	pageSize, err := strconv.Atoi(getEnv("BARTER_PAGE_SIZE", strconv.Itoa(DefaultPageSize)))
	if err != nil || pageSize < 1 {
		return nil, fmt.Errorf("invalid BARTER_PAGE_SIZE %q", os.Getenv("BARTER_PAGE_SIZE"))
	}

	return &Config{
		DBPath:   getEnv("BARTER_DB", DefaultDBPath),
		Addr:     getEnv("BARTER_ADDR", DefaultAddr),
		LogPath:  getEnv("BARTER_LOG", ""),
		NATSURL:  getEnv("BARTER_NATS_URL", ""),
		PageSize: pageSize,
	}, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
