package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr            string
	RequestTimeout      time.Duration
	LogLevel            string
	LogFormat           string
	UserAgent           string
	TMDBAPIKey          string
	TMDBBaseURL         string
	OpenLibraryEndpoint string
	JikanBaseURL        string
	RedisURL            string
	CacheTTL            time.Duration
	CacheDisabled       bool
	RetryAttempts       int
}

func LoadConfig() Config {
	return Config{
		HTTPAddr:            getEnv("HTTP_ADDR", ":8080"),
		RequestTimeout:      time.Duration(getEnvInt("SEARCH_TIMEOUT_SECONDS", 15)) * time.Second,
		LogLevel:            strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:           strings.ToLower(getEnv("LOG_FORMAT", "text")),
		UserAgent:           getEnv("SEARCH_USER_AGENT", "media-search/1.0"),
		TMDBAPIKey:          strings.TrimSpace(os.Getenv("TMDB_API_KEY")),
		TMDBBaseURL:         getEnv("TMDB_BASE_URL", "https://api.themoviedb.org/3"),
		OpenLibraryEndpoint: getEnv("OPENLIBRARY_ENDPOINT", "https://openlibrary.org/search.json"),
		JikanBaseURL:        getEnv("JIKAN_BASE_URL", "https://api.jikan.moe/v4"),
		RedisURL:            getEnv("REDIS_URL", ""),
		CacheTTL:            time.Duration(getEnvInt("SEARCH_CACHE_TTL_MINUTES", 30)) * time.Minute,
		CacheDisabled:       getEnvBool("SEARCH_CACHE_DISABLED", false),
		RetryAttempts:       getEnvInt("SEARCH_PROVIDER_RETRY_ATTEMPTS", 2),
	}
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
