package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreBackendRedis  = "redis"
	StoreBackendMemory = "memory"
)

type Config struct {
	APIPort string
	JWTKey  []byte
	JWTExp  time.Duration

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSslMode  string
	DBConnStr  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// StoreBackend selects where match records live: "redis" for shared
	// deployments, "memory" for a single process.
	StoreBackend   string
	MatchKeyPrefix string
	MatchTTL       time.Duration
	TxMaxRetries   int

	JudgeQueueName string
	JudgeWorkers   int
	JudgeTimeout   time.Duration
	TickLeaseTTL   time.Duration

	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string
}

var AppConfig *Config

func Load() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	AppConfig = &Config{
		APIPort:        getEnv("API_PORT", "8080"),
		JWTKey:         []byte(getEnv("JWT_SECRET", "defaultsecret")),
		JWTExp:         getEnvAsDuration("JWT_EXPIRATION_HOURS", 72, time.Hour),
		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnv("DB_PORT", "5432"),
		DBUser:         getEnv("DB_USER", "user"),
		DBPassword:     getEnv("DB_PASSWORD", "password"),
		DBName:         getEnv("DB_NAME", "leetclash"),
		DBSslMode:      getEnv("DB_SSLMODE", "disable"),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getEnvAsInt("REDIS_DB", 0),
		StoreBackend:   getEnv("STORE_BACKEND", StoreBackendRedis),
		MatchKeyPrefix: getEnv("MATCH_KEY_PREFIX", "games/"),
		MatchTTL:       getEnvAsDuration("MATCH_TTL_HOURS", 24, time.Hour),
		TxMaxRetries:   getEnvAsInt("TX_MAX_RETRIES", 25),
		JudgeQueueName: getEnv("JUDGE_QUEUE_NAME", "judge_tickets_queue"),
		JudgeWorkers:   getEnvAsInt("JUDGE_WORKERS", 4),
		JudgeTimeout:   getEnvAsDuration("JUDGE_TIMEOUT_SECONDS", 90, time.Second),
		TickLeaseTTL:   getEnvAsDuration("TICK_LEASE_TTL_SECONDS", 5, time.Second),
		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		GeminiModel:    getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiBaseURL:  getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
	}

	if AppConfig.GeminiAPIKey == "" {
		log.Println("WARN: GEMINI_API_KEY is not set; problem generation and judging will fail")
	}

	AppConfig.DBConnStr = "host=" + AppConfig.DBHost +
		" port=" + AppConfig.DBPort +
		" user=" + AppConfig.DBUser +
		" password=" + AppConfig.DBPassword +
		" dbname=" + AppConfig.DBName +
		" sslmode=" + AppConfig.DBSslMode
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration reads a whole number of units, e.g. hours or seconds.
func getEnvAsDuration(key string, fallback int, unit time.Duration) time.Duration {
	return time.Duration(getEnvAsInt(key, fallback)) * unit
}
