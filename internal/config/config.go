package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store and blob drivers selectable through STORE_DRIVER and BLOB_DRIVER.
const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
	DriverS3       = "s3"
	DriverMinio    = "minio"
)

type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	Database  DatabaseConfig
	Mongo     MongoConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Blob      BlobConfig
	Agenda    AgendaConfig
	Cleanup   CleanupConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port            string
	Env             string // dev or prod
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	TrustedOrigins  []string
}

type StoreConfig struct {
	Driver string // postgres, mongo or memory
}

type DatabaseConfig struct {
	Host           string
	Port           string
	User           string
	Password       string
	DBName         string
	SSLMode        string
	ChannelBinding string // "require" for Neon DB, empty for local
	MaxOpenConns   int
	MaxIdleConns   int
}

type MongoConfig struct {
	URI      string
	Database string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret           []byte
	Issuer              string
	Audience            string
	AccessTokenDuration time.Duration
	AdminUser           string
	AdminPassword       string
}

type BlobConfig struct {
	Driver       string // s3, minio or memory
	Endpoint     string
	Region       string
	AccessKey    string
	SecretKey    string
	Bucket       string
	UseSSL       bool
	UsePathStyle bool
	PresignTTL   time.Duration
}

type AgendaConfig struct {
	MaxPhotoSize int64
	MaxPhotos    int
}

type CleanupConfig struct {
	Interval  time.Duration // zero disables the periodic sweep
	Retention time.Duration
}

type RateLimitConfig struct {
	MaxRequests int
	Window      time.Duration
}

// Load reads configuration from environment variables.
// A .env file in the working directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			Env:             getEnv("APP_ENV", "dev"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 15*time.Second),
			TrustedOrigins:  getSliceEnv("TRUSTED_ORIGINS", []string{"http://localhost:3000"}),
		},
		Store: StoreConfig{
			Driver: getEnv("STORE_DRIVER", DriverPostgres),
		},
		Database: DatabaseConfig{
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnv("DB_PORT", "5432"),
			User:           getEnv("DB_USER", "postgres"),
			Password:       getEnv("DB_PASSWORD", "postgres"),
			DBName:         getEnv("DB_NAME", "agenda"),
			SSLMode:        getEnv("DB_SSLMODE", "disable"),
			ChannelBinding: getEnv("DB_CHANNEL_BINDING", ""),
			MaxOpenConns:   getIntEnv("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:   getIntEnv("DB_MAX_IDLE_CONNS", 5),
		},
		Mongo: MongoConfig{
			URI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
			Database: getEnv("MONGO_DATABASE", "agenda"),
		},
		Redis: RedisConfig{
			Enabled:  getBoolEnv("REDIS_ENABLED", true),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			JWTSecret:           []byte(getEnv("JWT_SECRET", "")),
			Issuer:              getEnv("JWT_ISSUER", "agenda-api"),
			Audience:            getEnv("JWT_AUDIENCE", "agenda-clients"),
			AccessTokenDuration: getDurationEnv("ACCESS_TOKEN_DURATION", time.Hour),
			AdminUser:           getEnv("ADMIN_USER", ""),
			AdminPassword:       getEnv("ADMIN_PASSWORD", ""),
		},
		Blob: BlobConfig{
			Driver:       getEnv("BLOB_DRIVER", DriverS3),
			Endpoint:     getEnv("BLOB_ENDPOINT", ""),
			Region:       getEnv("BLOB_REGION", "us-east-1"),
			AccessKey:    getEnv("BLOB_ACCESS_KEY", ""),
			SecretKey:    getEnv("BLOB_SECRET_KEY", ""),
			Bucket:       getEnv("BLOB_BUCKET", "agenda-photos"),
			UseSSL:       getBoolEnv("BLOB_USE_SSL", true),
			UsePathStyle: getBoolEnv("BLOB_USE_PATH_STYLE", false),
			PresignTTL:   getDurationEnv("BLOB_PRESIGN_TTL", 6*24*time.Hour),
		},
		Agenda: AgendaConfig{
			MaxPhotoSize: int64(getIntEnv("MAX_PHOTO_SIZE", 1_000_000)),
			MaxPhotos:    getIntEnv("MAX_PHOTOS", 10),
		},
		Cleanup: CleanupConfig{
			Interval:  getDurationEnv("CLEANUP_INTERVAL", 0),
			Retention: getDurationEnv("CLEANUP_RETENTION", 90*24*time.Hour),
		},
		RateLimit: RateLimitConfig{
			MaxRequests: getIntEnv("RATE_LIMIT_MAX_REQUESTS", 20),
			Window:      getDurationEnv("RATE_LIMIT_WINDOW", 15*time.Minute),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the settings that have no usable default.
func (c *Config) Validate() error {
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 bytes, got %d", len(c.Auth.JWTSecret))
	}
	if c.Auth.AdminUser == "" || c.Auth.AdminPassword == "" {
		return errors.New("ADMIN_USER and ADMIN_PASSWORD are required")
	}

	switch c.Store.Driver {
	case DriverPostgres, DriverMongo, DriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}

	switch c.Blob.Driver {
	case DriverS3, DriverMinio, DriverMemory:
	default:
		return fmt.Errorf("unknown BLOB_DRIVER %q", c.Blob.Driver)
	}

	// minio refuses to presign past seven days
	if c.Blob.PresignTTL <= 0 || c.Blob.PresignTTL > 7*24*time.Hour {
		return fmt.Errorf("BLOB_PRESIGN_TTL must be between 1s and 7 days, got %s", c.Blob.PresignTTL)
	}
	if c.Agenda.MaxPhotoSize <= 0 {
		return errors.New("MAX_PHOTO_SIZE must be positive")
	}
	if c.Agenda.MaxPhotos <= 0 {
		return errors.New("MAX_PHOTOS must be positive")
	}

	return nil
}

func (c *DatabaseConfig) ConnectionString() string {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)

	// Add channel_binding if configured (required for Neon DB)
	if c.ChannelBinding != "" {
		connStr += fmt.Sprintf(" channel_binding=%s", c.ChannelBinding)
	}

	return connStr
}

// Address returns Redis connection address (host:port)
func (c *RedisConfig) Address() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// IsDevelopment returns true if the environment is set to dev
func (c *ServerConfig) IsDevelopment() bool {
	return c.Env == "dev"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}

	return boolValue
}

// getDurationEnv reads a number of seconds.
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	seconds, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return time.Duration(seconds) * time.Second
}

func getSliceEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Split by comma and trim whitespace
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	if len(result) == 0 {
		return defaultValue
	}

	return result
}
