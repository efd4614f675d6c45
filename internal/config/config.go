package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config holds all configuration for the application
type Config struct {
	Port        string
	DatabaseURL string
	Version     string
	LogLevel    string

	// Extraction oracle (optional LLM fallback)
	OpenAIKey     string
	OpenAITimeout int // seconds

	// Pipeline tuning
	ReviewThreshold  float64 // below this overall confidence, escalate/review
	FuzzyThreshold   float64 // token-set similarity required for a fuzzy link
	SubjectThreshold float64 // subject similarity required for a subject link
	MatchWindowDays  int     // domain+time-window strategy lookback
	BatchWorkers     int     // parallel emails per batch

	// Mail import
	ImportPath string // directory of .eml / .mbox files
}

// Load initializes and returns application configuration
func Load() *Config {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Version:     getEnv("VERSION", "1.0.0"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAITimeout: getEnvInt("OPENAI_TIMEOUT", 30),

		ReviewThreshold:  getEnvFloat("REVIEW_THRESHOLD", 0.7),
		FuzzyThreshold:   getEnvFloat("FUZZY_THRESHOLD", 0.80),
		SubjectThreshold: getEnvFloat("SUBJECT_THRESHOLD", 0.85),
		MatchWindowDays:  getEnvInt("MATCH_WINDOW_DAYS", 45),
		BatchWorkers:     getEnvInt("BATCH_WORKERS", 4),

		ImportPath: getEnv("EMAIL_IMPORT_PATH", "/emails"),
	}
}

// getEnv gets an environment variable with a default fallback
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an environment variable as integer with a default fallback
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat gets an environment variable as float with a default fallback
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// HasOracle reports whether the LLM extraction fallback is configured.
func (c *Config) HasOracle() bool {
	return c.OpenAIKey != ""
}

// SetupLogger configures zerolog with JSON output and single-line format
func (c *Config) SetupLogger() zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	logger := zerolog.New(os.Stdout).With().
		Timestamp().
		Str("service", "jobtrack").
		Str("version", c.Version).
		Logger()

	level, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		level = zerolog.InfoLevel
	}
	return logger.Level(level)
}
