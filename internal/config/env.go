package config

import (
	"os"

	"github.com/joho/godotenv"
)

// LoadEnvFiles loads .env then .env.local. Variables already set in the
// environment win, and missing files are ignored.
func LoadEnvFiles() {
	for _, envFile := range []string{".env", ".env.local"} {
		_ = godotenv.Load(envFile)
	}
}

// Get returns the environment variable key, or fallback when unset or empty.
func Get(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
