package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the configuration for the portal service
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Storage  StorageConfig  `yaml:"storage"`
	Notify   NotifyConfig   `yaml:"notify"`
	Upload   UploadConfig   `yaml:"upload"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// StorageConfig holds upload storage configuration
type StorageConfig struct {
	Type          string        `yaml:"type"` // local, s3
	Bucket        string        `yaml:"bucket"`
	Region        string        `yaml:"region"`
	Endpoint      string        `yaml:"endpoint"`
	AccessKey     string        `yaml:"access_key"`
	SecretKey     string        `yaml:"secret_key"`
	LocalPath     string        `yaml:"local_path"`
	PresignExpiry time.Duration `yaml:"presign_expiry"`
}

// NotifyConfig holds notification channel settings
type NotifyConfig struct {
	Enabled           bool          `yaml:"enabled"`
	APIBaseURL        string        `yaml:"api_base_url"`
	BotToken          string        `yaml:"bot_token"`
	ChannelID         string        `yaml:"channel_id"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	CompletedCleanup  time.Duration `yaml:"completed_cleanup"`
	TerminatedCleanup time.Duration `yaml:"terminated_cleanup"`
}

// UploadConfig holds lifecycle-tracking settings
type UploadConfig struct {
	SessionTTL     time.Duration `yaml:"session_ttl"`
	TerminalTTL    time.Duration `yaml:"terminal_ttl"`
	ReaperInterval time.Duration `yaml:"reaper_interval"`
	SidecarDir     string        `yaml:"sidecar_dir"`
	QueueSize      int           `yaml:"queue_size"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json, text
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "framedrop"),
			Password: getEnv("DB_PASSWORD", "password"),
			DBName:   getEnv("DB_NAME", "framedrop"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Storage: StorageConfig{
			Type:          getEnv("STORAGE_TYPE", "local"),
			Bucket:        getEnv("STORAGE_BUCKET", "framedrop-uploads"),
			Region:        getEnv("STORAGE_REGION", "us-east-1"),
			Endpoint:      getEnv("STORAGE_ENDPOINT", ""),
			AccessKey:     getEnv("STORAGE_ACCESS_KEY", ""),
			SecretKey:     getEnv("STORAGE_SECRET_KEY", ""),
			LocalPath:     getEnv("STORAGE_LOCAL_PATH", "./uploads"),
			PresignExpiry: getEnvDuration("STORAGE_PRESIGN_EXPIRY", 15*time.Minute),
		},
		Notify: NotifyConfig{
			Enabled:           getEnvBool("NOTIFY_ENABLED", true),
			APIBaseURL:        getEnv("NOTIFY_API_BASE_URL", "https://api.telegram.org"),
			BotToken:          getEnv("NOTIFY_BOT_TOKEN", ""),
			ChannelID:         getEnv("NOTIFY_CHANNEL_ID", ""),
			RequestTimeout:    getEnvDuration("NOTIFY_REQUEST_TIMEOUT", 10*time.Second),
			CompletedCleanup:  getEnvDuration("NOTIFY_COMPLETED_CLEANUP", 5*time.Minute),
			TerminatedCleanup: getEnvDuration("NOTIFY_TERMINATED_CLEANUP", time.Minute),
		},
		Upload: UploadConfig{
			SessionTTL:     getEnvDuration("UPLOAD_SESSION_TTL", 24*time.Hour),
			TerminalTTL:    getEnvDuration("UPLOAD_TERMINAL_TTL", time.Hour),
			ReaperInterval: getEnvDuration("UPLOAD_REAPER_INTERVAL", 10*time.Minute),
			SidecarDir:     getEnv("UPLOAD_SIDECAR_DIR", "./uploads/tus"),
			QueueSize:      getEnvInt("UPLOAD_QUEUE_SIZE", 256),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}
}

// DatabaseURL returns a PostgreSQL connection string
func (d *DatabaseConfig) DatabaseURL() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// RedisAddr returns the Redis address
func (r *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
