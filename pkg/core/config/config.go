// Package config handles configuration settings for the filings research core.
// It loads environment variables (optionally from a .env file) and provides
// a centralized place for the SEC access identification string and fetch
// policy defaults.
package config

import (
	"os"

	"github.com/joho/godotenv"

	"filingsresearch/pkg/core/fetch"
)

// DefaultUserAgent identifies this project to the SEC per their access policy.
// Override with SEC_USER_AGENT to use your own contact information.
const DefaultUserAgent = "FilingsResearch/1.0 (research@filingsresearch.dev)"

// Config holds all settings used by the research service.
type Config struct {
	UserAgent     string
	CacheDir      string  // empty disables the on-disk extraction cache
	RatePerSecond float64 // outbound request cap; SEC allows ~10/s
	Fetch         fetch.Policy
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first if present; a missing file is not an error.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		UserAgent:     DefaultUserAgent,
		RatePerSecond: 8,
		Fetch:         fetch.DefaultPolicy(),
	}

	if ua := os.Getenv("SEC_USER_AGENT"); ua != "" {
		cfg.UserAgent = ua
	}
	if dir := os.Getenv("FILINGS_CACHE_DIR"); dir != "" {
		cfg.CacheDir = dir
	}

	return cfg
}
