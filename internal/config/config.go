// backend-go/internal/config/config.go
package config

import (
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Cache    CacheConfig
	Forecast ForecastConfig
	Advisor  AdvisorConfig
	Storage  StorageConfig
	Report   ReportConfig
	LogLevel string
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Driver         string
	Host           string
	Port           string
	User           string
	Password       string
	DBName         string
	SSLMode        string
	MaxConcurrency int64
}

type CacheConfig struct {
	Enabled       bool
	WindowSeconds int
	RedisEnabled  bool
	RedisURL      string
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
}

// Window is the memo bucket width and entry lifetime.
func (c CacheConfig) Window() time.Duration {
	if c.WindowSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.WindowSeconds) * time.Second
}

type ForecastConfig struct {
	HorizonDays int
	TimeoutMS   int
	MinPoints   int
	RemoteURL   string
}

// Timeout bounds a single forecaster call.
func (c ForecastConfig) Timeout() time.Duration {
	if c.TimeoutMS <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

type AdvisorConfig struct {
	CriticalDays float64
	LowDays      float64
	TrendRatio   float64
}

type StorageConfig struct {
	Backend   string
	LocalDir  string
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type ReportConfig struct {
	Workers int
}

var (
	once     sync.Once
	instance *Config
)

func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		setDefaults(viper.GetViper())

		// Read from environment variables
		viper.AutomaticEnv()

		instance = fromViper(viper.GetViper())
	})

	return instance
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_MODE", "debug")
	v.SetDefault("SERVER_READ_TIMEOUT", 15)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 30)
	v.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})
	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "restaurant")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_CONCURRENCY", 10)
	v.SetDefault("CACHE_ENABLED", true)
	v.SetDefault("CACHE_WINDOW_SECONDS", 300)
	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_HOST", "127.0.0.1")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("FORECAST_HORIZON_DAYS", 3)
	v.SetDefault("FORECAST_TIMEOUT_MS", 10000)
	v.SetDefault("FORECAST_MIN_POINTS", 14)
	v.SetDefault("FORECAST_REMOTE_URL", "")
	v.SetDefault("ADVISOR_CRITICAL_DAYS", 3.0)
	v.SetDefault("ADVISOR_LOW_DAYS", 7.0)
	v.SetDefault("ADVISOR_TREND_RATIO", 1.2)
	v.SetDefault("STORAGE_BACKEND", "local")
	v.SetDefault("STORAGE_LOCAL_DIR", "./data/reports")
	v.SetDefault("STORAGE_ENDPOINT", "")
	v.SetDefault("STORAGE_ACCESS_KEY", "")
	v.SetDefault("STORAGE_SECRET_KEY", "")
	v.SetDefault("STORAGE_BUCKET", "inventory")
	v.SetDefault("STORAGE_USE_SSL", true)
	v.SetDefault("REPORT_WORKERS", 4)
	v.SetDefault("LOG_LEVEL", "info")
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			Mode:           v.GetString("SERVER_MODE"),
			ReadTimeout:    v.GetInt("SERVER_READ_TIMEOUT"),
			WriteTimeout:   v.GetInt("SERVER_WRITE_TIMEOUT"),
			AllowedOrigins: v.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			Driver:         v.GetString("DB_DRIVER"),
			Host:           v.GetString("DB_HOST"),
			Port:           v.GetString("DB_PORT"),
			User:           v.GetString("DB_USER"),
			Password:       v.GetString("DB_PASSWORD"),
			DBName:         v.GetString("DB_NAME"),
			SSLMode:        v.GetString("DB_SSLMODE"),
			MaxConcurrency: v.GetInt64("DB_MAX_CONCURRENCY"),
		},
		Cache: CacheConfig{
			Enabled:       v.GetBool("CACHE_ENABLED"),
			WindowSeconds: v.GetInt("CACHE_WINDOW_SECONDS"),
			RedisEnabled:  v.GetBool("REDIS_ENABLED"),
			RedisURL:      v.GetString("REDIS_URL"),
			RedisHost:     v.GetString("REDIS_HOST"),
			RedisPort:     v.GetString("REDIS_PORT"),
			RedisPassword: v.GetString("REDIS_PASSWORD"),
			RedisDB:       v.GetInt("REDIS_DB"),
		},
		Forecast: ForecastConfig{
			HorizonDays: v.GetInt("FORECAST_HORIZON_DAYS"),
			TimeoutMS:   v.GetInt("FORECAST_TIMEOUT_MS"),
			MinPoints:   v.GetInt("FORECAST_MIN_POINTS"),
			RemoteURL:   v.GetString("FORECAST_REMOTE_URL"),
		},
		Advisor: AdvisorConfig{
			CriticalDays: v.GetFloat64("ADVISOR_CRITICAL_DAYS"),
			LowDays:      v.GetFloat64("ADVISOR_LOW_DAYS"),
			TrendRatio:   v.GetFloat64("ADVISOR_TREND_RATIO"),
		},
		Storage: StorageConfig{
			Backend:   v.GetString("STORAGE_BACKEND"),
			LocalDir:  v.GetString("STORAGE_LOCAL_DIR"),
			Endpoint:  v.GetString("STORAGE_ENDPOINT"),
			AccessKey: v.GetString("STORAGE_ACCESS_KEY"),
			SecretKey: v.GetString("STORAGE_SECRET_KEY"),
			Bucket:    v.GetString("STORAGE_BUCKET"),
			UseSSL:    v.GetBool("STORAGE_USE_SSL"),
		},
		Report: ReportConfig{
			Workers: v.GetInt("REPORT_WORKERS"),
		},
		LogLevel: v.GetString("LOG_LEVEL"),
	}
}
