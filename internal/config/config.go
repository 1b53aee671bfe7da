package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	JWTSecret   string
	MongoURI    string
	DBName      string
	SkipAuth    bool
	Environment string
	AppId       string

	// Pipedrive OAuth app used when a tenant has no enabled app of its own
	PipedriveClientID     string
	PipedriveClientSecret string
	PipedriveRedirectURL  string
	PipedriveAuthURL      string
	PipedriveTokenURL     string
	PipedriveRPS          float64

	SyncMaxRetries int
	SyncRetryDelay time.Duration
	SyncPageSize   int
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	} else {
		log.Println("Loaded .env file successfully")
	}

	return &Config{
		Port:        getEnv("PORT", "8080"),
		JWTSecret:   getEnv("JWT_SECRET", "secret"),
		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017"),
		DBName:      getEnv("DB_NAME", "go-crm-sync"),
		SkipAuth:    getEnv("SKIP_AUTH", "false") == "true",
		Environment: getEnv("ENVIRONMENT", "development"),
		AppId:       getEnv("APP_ID", "go-crm-sync"),

		PipedriveClientID:     getEnv("PIPEDRIVE_CLIENT_ID", ""),
		PipedriveClientSecret: getEnv("PIPEDRIVE_CLIENT_SECRET", ""),
		PipedriveRedirectURL:  getEnv("PIPEDRIVE_REDIRECT_URL", ""),
		PipedriveAuthURL:      getEnv("PIPEDRIVE_AUTH_URL", "https://oauth.pipedrive.com/oauth/authorize"),
		PipedriveTokenURL:     getEnv("PIPEDRIVE_TOKEN_URL", "https://oauth.pipedrive.com/oauth/token"),
		PipedriveRPS:          getEnvFloat("PIPEDRIVE_REQUESTS_PER_SECOND", 8),

		SyncMaxRetries: getEnvInt("SYNC_MAX_RETRIES", 3),
		SyncRetryDelay: getEnvDuration("SYNC_RETRY_DELAY", time.Second),
		SyncPageSize:   getEnvInt("SYNC_PAGE_SIZE", 100),
	}, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvFloat(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil {
		return fallback
	}
	return v
}

// getEnvDuration accepts Go durations ("500ms") or plain milliseconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(raw); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}
