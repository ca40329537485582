package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database (URL 이 비어 있으면 실행 이력을 저장하지 않음)
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Open-Meteo
	Weather WeatherConfig

	// Forecast engine defaults
	Forecast ForecastConfig

	// Scheduler
	Scheduler SchedulerConfig

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool

	HistoryTTL time.Duration // 과거 관측 캐시
	APIRate    int           // IP 당 분당 요청 수
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Enabled reports whether a database is configured
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// WeatherConfig holds Open-Meteo API configuration
type WeatherConfig struct {
	ArchiveURL   string
	GeocodingURL string
	ForecastURL  string
	RateLimit    float64 // 초당 요청 수
	Timeout      time.Duration
	CacheSize    int // 지오코딩 LRU 크기
}

// ForecastConfig holds forecast engine defaults
type ForecastConfig struct {
	WindowSize      int
	ConfidenceLevel float64
	Seed            int64
	DropoutSamples  int
	Epochs          int
	FitTimeout      time.Duration
	MaxHorizon      int
}

// SchedulerConfig holds scheduler configuration
type SchedulerConfig struct {
	LocationsFile string
	VerifyBatch   int
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:       getEnv("REDIS_HOST", "localhost"),
			Port:       getEnv("REDIS_PORT", "6379"),
			Password:   getEnv("REDIS_PASSWORD", ""),
			DB:         getEnvAsInt("REDIS_DB", 0),
			Enabled:    getEnvAsBool("REDIS_ENABLED", false),
			HistoryTTL: getEnvAsDuration("REDIS_HISTORY_TTL", "6h"),
			APIRate:    getEnvAsInt("API_RATE_LIMIT", 60),
		},

		// Open-Meteo
		Weather: WeatherConfig{
			ArchiveURL:   getEnv("OPEN_METEO_ARCHIVE_URL", "https://archive-api.open-meteo.com/v1/archive"),
			GeocodingURL: getEnv("OPEN_METEO_GEOCODING_URL", "https://geocoding-api.open-meteo.com/v1/search"),
			ForecastURL:  getEnv("OPEN_METEO_FORECAST_URL", "https://api.open-meteo.com/v1/forecast"),
			RateLimit:    getEnvAsFloat("WEATHER_RATE_LIMIT", 5),
			Timeout:      getEnvAsDuration("WEATHER_TIMEOUT", "30s"),
			CacheSize:    getEnvAsInt("WEATHER_GEOCODE_CACHE", 256),
		},

		// Forecast
		Forecast: ForecastConfig{
			WindowSize:      getEnvAsInt("FORECAST_WINDOW_SIZE", 24),
			ConfidenceLevel: getEnvAsFloat("FORECAST_CONFIDENCE", 0.95),
			Seed:            int64(getEnvAsInt("FORECAST_SEED", 0)),
			DropoutSamples:  getEnvAsInt("FORECAST_DROPOUT_SAMPLES", 20),
			Epochs:          getEnvAsInt("FORECAST_EPOCHS", 50),
			FitTimeout:      getEnvAsDuration("FORECAST_FIT_TIMEOUT", "2m"),
			MaxHorizon:      getEnvAsInt("FORECAST_MAX_HORIZON", 365),
		},

		// Scheduler
		Scheduler: SchedulerConfig{
			LocationsFile: getEnv("SCHEDULER_LOCATIONS_FILE", "config/locations.yaml"),
			VerifyBatch:   getEnvAsInt("SCHEDULER_VERIFY_BATCH", 50),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		// Monitoring
		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadFile loads an explicit env file first, then reads configuration.
// Values already present in the environment win over the file.
func LoadFile(path string) (*Config, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return nil, fmt.Errorf("load env file %s: %w", path, err)
		}
	}
	return Load()
}

// validate checks configuration values
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	f := c.Forecast
	if f.WindowSize < 1 {
		return fmt.Errorf("FORECAST_WINDOW_SIZE must be positive")
	}
	if f.ConfidenceLevel <= 0 || f.ConfidenceLevel >= 1 {
		return fmt.Errorf("FORECAST_CONFIDENCE must be in (0, 1)")
	}
	if f.DropoutSamples < 1 || f.Epochs < 1 {
		return fmt.Errorf("FORECAST_DROPOUT_SAMPLES and FORECAST_EPOCHS must be positive")
	}
	if f.FitTimeout <= 0 {
		return fmt.Errorf("FORECAST_FIT_TIMEOUT must be positive")
	}
	if f.MaxHorizon < 1 {
		return fmt.Errorf("FORECAST_MAX_HORIZON must be positive")
	}

	if c.Weather.RateLimit <= 0 {
		return fmt.Errorf("WEATHER_RATE_LIMIT must be positive")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{".env"}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
