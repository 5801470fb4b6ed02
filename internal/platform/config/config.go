package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string
	Env  string

	// Database selection: "mysql", "mongo", "dynamodb" or "memory"
	DBType string

	// MySQL settings (when DBType = "mysql")
	MySQLDSN string

	// MongoDB settings (when DBType = "mongo")
	MongoURI string
	MongoDB  string

	// DynamoDB settings (when DBType = "dynamodb")
	AWSRegion          string
	DynamoDBEndpoint   string // Optional: for local development
	AWSAccessKeyID     string // Optional: for local development
	AWSSecretAccessKey string // Optional: for local development

	// Timeouts
	HTTPReadTimeoutSec    int
	HTTPWriteTimeoutSec   int
	HTTPIdleTimeoutSec    int
	HTTPRequestTimeoutSec int
	StoreConnectTimeoutSec int
	StoreOpTimeoutMs       int

	// Worker settings
	ExpirySweepIntervalSec int

	// Security settings for the thin partner-facing surface
	APIKey         string
	AllowedOrigins []string
	RateLimitRPM   int
}

func Load() (*Config, error) {
	_ = godotenv.Load(".env")
	cfg := &Config{}

	cfg.Port = getEnv("PORT", "8080")
	cfg.Env = getEnv("ENV", "dev")
	cfg.DBType = getEnv("DB_TYPE", "mysql")

	cfg.MySQLDSN = getEnv("MYSQL_DSN", "")

	cfg.MongoURI = getEnv("MONGODB_URI", getEnv("MONGO_URI", ""))
	cfg.MongoDB = getEnv("MONGO_DB", "rating_engine")

	cfg.AWSRegion = getEnv("AWS_REGION", "us-east-1")
	cfg.DynamoDBEndpoint = getEnv("DYNAMODB_ENDPOINT", "")
	cfg.AWSAccessKeyID = getEnv("AWS_ACCESS_KEY_ID", "")
	cfg.AWSSecretAccessKey = getEnv("AWS_SECRET_ACCESS_KEY", "")

	cfg.HTTPReadTimeoutSec = getEnvAsInt("HTTP_READ_TIMEOUT_SEC", 10)
	cfg.HTTPWriteTimeoutSec = getEnvAsInt("HTTP_WRITE_TIMEOUT_SEC", 10)
	cfg.HTTPIdleTimeoutSec = getEnvAsInt("HTTP_IDLE_TIMEOUT_SEC", 120)
	cfg.HTTPRequestTimeoutSec = getEnvAsInt("HTTP_REQUEST_TIMEOUT_SEC", 30)
	cfg.StoreConnectTimeoutSec = getEnvAsInt("STORE_CONNECT_TIMEOUT_SEC", 5)
	cfg.StoreOpTimeoutMs = getEnvAsInt("STORE_OP_TIMEOUT_MS", 500)
	cfg.ExpirySweepIntervalSec = getEnvAsInt("EXPIRY_SWEEP_INTERVAL_SEC", 60)

	cfg.APIKey = getEnv("API_KEY", "")
	cfg.AllowedOrigins = getEnvAsSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:8080"})
	cfg.RateLimitRPM = getEnvAsInt("RATE_LIMIT_RPM", 100)

	// Validate required fields based on DB type
	switch cfg.DBType {
	case "mysql":
		if cfg.MySQLDSN == "" {
			return nil, fmt.Errorf("MYSQL_DSN is required when DB_TYPE=mysql")
		}
	case "mongo":
		if cfg.MongoURI == "" {
			return nil, fmt.Errorf("MONGO_URI is required when DB_TYPE=mongo")
		}
	case "dynamodb", "memory":
	default:
		return nil, fmt.Errorf("unknown DB_TYPE %q", cfg.DBType)
	}

	// In production, API_KEY must be explicitly set
	if cfg.Env == "prod" && cfg.APIKey == "" {
		return nil, fmt.Errorf("API_KEY is required in production environment")
	}

	// Default API key for development only
	if cfg.APIKey == "" {
		cfg.APIKey = "dev-api-key-12345"
	}

	return cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func getEnv(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsInt(key string, defaultVal int) int {
	valStr := os.Getenv(key)
	if val, err := strconv.Atoi(valStr); err == nil {
		return val
	}
	return defaultVal
}

func getEnvAsSlice(key string, defaultVal []string) []string {
	valStr := os.Getenv(key)
	if valStr == "" {
		return defaultVal
	}
	var result []string
	for _, s := range strings.Split(valStr, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			result = append(result, s)
		}
	}
	if len(result) == 0 {
		return defaultVal
	}
	return result
}
