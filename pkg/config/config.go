package config

import (
	"os"
	"strconv"
)

// GetEnv returns the value of an environment variable, or the fallback
// when it is unset or empty.
func GetEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// GetEnvInt returns an integer environment variable, or the fallback
// when it is unset or not a valid integer.
func GetEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
