package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port         int
	Password     string
	DatasetRoot  string
	Split        string
	Strict       bool
	ParseWorkers int   // Number of worker threads parsing annotation files
	LoadTimeout  int   // Seconds before a split load is aborted (0 = no limit)
	Conditions   []string
	DBPath       string
	LogDirectory string
}

func Load() *Config {
	// .env overrides are optional; a missing file is fine
	_ = godotenv.Load()

	return &Config{
		Port:         getEnvAsInt("PORT", 8080),
		Password:     getEnv("PASSWORD", "inredd"),
		DatasetRoot:  getEnv("DATASET_ROOT", "."),
		Split:        getEnv("SPLIT", "train"),
		Strict:       getEnvAsBool("STRICT", false),
		ParseWorkers: getEnvAsInt("PARSE_WORKERS", 3), // 3 worker threads
		LoadTimeout:  getEnvAsInt("LOAD_TIMEOUT", 0),
		Conditions:   getEnvAsList("CONDITIONS"),
		DBPath:       getEnv("DB_PATH", filepath.Join(".", "data", "index.db")),
		LogDirectory: getEnv("LOG_DIR", filepath.Join(".", "logs")),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated value; an unset key yields nil so
// callers fall back to their own defaults.
func getEnvAsList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
