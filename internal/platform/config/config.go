package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"

	StorageBackendPostgres = "postgres"
	StorageBackendMemory   = "memory"
)

type Config struct {
	APIPort string
	AppEnv  string
	JWTKey  []byte
	JWTExp  time.Duration

	StorageBackend string
	DBHost         string
	DBPort         string
	DBUser         string
	DBPassword     string
	DBName         string
	DBSslMode      string
	DBConnStr      string
	DBAutoMigrate  bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JudgeLockTTL     time.Duration
	SubmitCooldown   time.Duration
	Judge0URL        string
	Judge0AuthToken  string
	Judge0LanguageID int
	Judge0Timeout    time.Duration
	Judge0MemoryUnit int // executor memory_limit units per KB

	CORSAllowedOrigins []string
	LogLevel           string
	LogJSON            bool
}

// IsProduction reports whether collaborator error details must be hidden from clients.
func (c *Config) IsProduction() bool {
	return c.AppEnv == EnvProduction
}

var AppConfig *Config

func Load() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}
	AppConfig = FromEnv()
}

// FromEnv builds a Config from the process environment without touching .env files.
func FromEnv() *Config {
	cfg := &Config{
		APIPort: getEnv("API_PORT", "8080"),
		AppEnv:  strings.ToLower(getEnv("APP_ENV", EnvDevelopment)),
		JWTKey:  []byte(getEnv("JWT_SECRET", "defaultsecret")),
		JWTExp:  time.Duration(getEnvAsInt("JWT_EXPIRATION_HOURS", 72)) * time.Hour,

		StorageBackend: strings.ToLower(getEnv("STORAGE_BACKEND", StorageBackendPostgres)),
		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnv("DB_PORT", "5432"),
		DBUser:         getEnv("DB_USER", "user"),
		DBPassword:     getEnv("DB_PASSWORD", "password"),
		DBName:         getEnv("DB_NAME", "sheet_judge"),
		DBSslMode:      getEnv("DB_SSLMODE", "disable"),
		DBAutoMigrate:  getEnvAsBool("DB_AUTO_MIGRATE", false),

		RedisAddr:     getEnv("REDIS_ADDR", ""), // empty disables the user lock
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		JudgeLockTTL:     time.Duration(getEnvAsInt("JUDGE_LOCK_TTL_SECONDS", 120)) * time.Second,
		SubmitCooldown:   time.Duration(getEnvAsInt("SUBMISSION_COOLDOWN_MS", 5000)) * time.Millisecond,
		Judge0URL:        strings.TrimRight(getEnv("JUDGE0_URL", ""), "/"),
		Judge0AuthToken:  getEnv("JUDGE0_AUTH_TOKEN", ""),
		Judge0LanguageID: getEnvAsInt("JUDGE0_LANGUAGE_ID", 54), // C++ (GCC 9.2.0)
		Judge0Timeout:    time.Duration(getEnvAsInt("JUDGE0_TIMEOUT_SECONDS", 0)) * time.Second,
		Judge0MemoryUnit: getEnvAsInt("JUDGE0_MEMORY_UNITS_PER_KB", 1024),

		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogJSON:            getEnvAsBool("LOG_JSON", false),
	}

	cfg.DBConnStr = "host=" + cfg.DBHost +
		" port=" + cfg.DBPort +
		" user=" + cfg.DBUser +
		" password=" + cfg.DBPassword +
		" dbname=" + cfg.DBName +
		" sslmode=" + cfg.DBSslMode
	return cfg
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

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
