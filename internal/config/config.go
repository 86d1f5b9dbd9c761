package config

import (
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

const geminiKeyPrefix = "GEMINI_API_KEY_"

type Config struct {
	Addr        string
	LogLevel    string
	Version     string
	RedisURL    string
	DatabaseURL string

	// GeminiKeys are the raw GEMINI_API_KEY_<n> values in numeric order.
	// Values may still carry the "enc:" prefix.
	GeminiKeys       []string
	GeminiKeysSecret string
	GeminiBaseURL    string
	GeminiModel      string

	AladhanBaseURL string
	AlquranBaseURL string

	OTLPEndpoint  string
	AWSRegion     string
	EncryptionKey string

	TajweedRateLimitRPM int
	AdminTokenHash      string

	SNSTopicARN         string
	SQSAnalysisQueueURL string
	AnalysisWorkers     int

	ShutdownTimeout time.Duration
	UpstreamTimeout time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		Addr:                getEnv("ADDR", ":8080"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		Version:             getEnv("APP_VERSION", "dev"),
		RedisURL:            getEnv("REDIS_URL", ""),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		GeminiKeys:          geminiKeysFromEnv(os.Environ()),
		GeminiKeysSecret:    getEnv("GEMINI_KEYS_SECRET", ""),
		GeminiBaseURL:       getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		GeminiModel:         getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		AladhanBaseURL:      getEnv("ALADHAN_BASE_URL", "https://api.aladhan.com/v1"),
		AlquranBaseURL:      getEnv("ALQURAN_BASE_URL", "https://api.alquran.cloud/v1"),
		OTLPEndpoint:        getEnv("OTLP_ENDPOINT", ""),
		AWSRegion:           getEnv("AWS_REGION", ""),
		EncryptionKey:       getEnv("ENCRYPTION_KEY", ""),
		TajweedRateLimitRPM: getIntEnv("TAJWEED_RATE_LIMIT_RPM", 20),
		AdminTokenHash:      getEnv("ADMIN_TOKEN_HASH", ""),
		SNSTopicARN:         getEnv("SNS_TOPIC_ARN", ""),
		SQSAnalysisQueueURL: getEnv("SQS_ANALYSIS_QUEUE_URL", ""),
		AnalysisWorkers:     getIntEnv("ANALYSIS_WORKERS", 2),
		ShutdownTimeout:     getDurationEnv("SHUTDOWN_TIMEOUT", 30*time.Second),
		UpstreamTimeout:     getDurationEnv("UPSTREAM_TIMEOUT", 60*time.Second),
	}

	return cfg, nil
}

// geminiKeysFromEnv collects GEMINI_API_KEY_<n> entries ordered by n.
// Empty values and non-numeric suffixes are ignored.
func geminiKeysFromEnv(environ []string) []string {
	type numbered struct {
		n      int
		suffix string
		value  string
	}

	var found []numbered
	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || value == "" {
			continue
		}
		suffix, ok := strings.CutPrefix(name, geminiKeyPrefix)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(suffix)
		if err != nil || n < 1 {
			continue
		}
		found = append(found, numbered{n: n, suffix: suffix, value: value})
	}

	// GEMINI_API_KEY_1 and GEMINI_API_KEY_01 share n; break the tie on the
	// name so pool order does not depend on environ order.
	sort.SliceStable(found, func(i, j int) bool {
		if found[i].n != found[j].n {
			return found[i].n < found[j].n
		}
		return found[i].suffix < found[j].suffix
	})

	keys := make([]string, 0, len(found))
	for _, f := range found {
		keys = append(keys, f.value)
	}
	return keys
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}
