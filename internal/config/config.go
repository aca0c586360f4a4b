package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration values
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Security  SecurityConfig
	RateLimit RateLimitConfig
	Retention RetentionConfig
	Weather   WeatherConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Env  string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// URL returns the database connection URL
func (c DatabaseConfig) URL() string {
	return "postgres://" + c.User + ":" + c.Password + "@" + c.Host + ":" + strconv.Itoa(c.Port) + "/" + c.DBName + "?sslmode=" + c.SSLMode + "&prepare_threshold=0"
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	URL      string
	Password string
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret       string
	AccessExpiry time.Duration
}

// SecurityConfig holds security settings.
// An empty AdminBootstrapSecret disables the admin bootstrap route entirely.
type SecurityConfig struct {
	AdminBootstrapSecret string
	BcryptCost           int
}

// RateLimitPolicy is a named window/max pair applied to an endpoint class.
type RateLimitPolicy struct {
	Window      time.Duration
	MaxRequests int
}

// RateLimitConfig holds the per-endpoint-class rate limit policies
type RateLimitConfig struct {
	Images  RateLimitPolicy
	Weather RateLimitPolicy
	Auth    RateLimitPolicy
	Default RateLimitPolicy
}

// RetentionConfig holds audit and rate-limit retention settings
type RetentionConfig struct {
	AuditDays       int
	AssociationDays int
	CleanupInterval time.Duration
}

// WeatherConfig holds upstream weather provider settings
type WeatherConfig struct {
	ForecastBaseURL string
	GeocodeBaseURL  string
	ImagesBaseURL   string
	ImagesAPIKey    string
	Timeout         time.Duration
	CacheTTL        time.Duration
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Env:  getEnv("SERVER_ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "skycast"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", "redis://localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
		},
		JWT: JWTConfig{
			Secret:       getEnv("JWT_SECRET", "change-this-in-production"),
			AccessExpiry: getEnvAsDuration("JWT_ACCESS_EXPIRY", 24*time.Hour),
		},
		Security: SecurityConfig{
			AdminBootstrapSecret: getEnv("ADMIN_BOOTSTRAP_SECRET", ""),
			BcryptCost:           getEnvAsInt("BCRYPT_COST", 12),
		},
		RateLimit: RateLimitConfig{
			Images: RateLimitPolicy{
				Window:      getEnvAsDuration("RATE_LIMIT_IMAGES_WINDOW", 60*time.Second),
				MaxRequests: getEnvAsInt("RATE_LIMIT_IMAGES_MAX", 30),
			},
			Weather: RateLimitPolicy{
				Window:      getEnvAsDuration("RATE_LIMIT_WEATHER_WINDOW", 60*time.Second),
				MaxRequests: getEnvAsInt("RATE_LIMIT_WEATHER_MAX", 100),
			},
			Auth: RateLimitPolicy{
				Window:      getEnvAsDuration("RATE_LIMIT_AUTH_WINDOW", 300*time.Second),
				MaxRequests: getEnvAsInt("RATE_LIMIT_AUTH_MAX", 5),
			},
			Default: RateLimitPolicy{
				Window:      getEnvAsDuration("RATE_LIMIT_DEFAULT_WINDOW", 60*time.Second),
				MaxRequests: getEnvAsInt("RATE_LIMIT_DEFAULT_MAX", 50),
			},
		},
		Retention: RetentionConfig{
			AuditDays:       getEnvAsInt("AUDIT_RETENTION_DAYS", 90),
			AssociationDays: getEnvAsInt("ASSOCIATION_RETENTION_DAYS", 180),
			CleanupInterval: getEnvAsDuration("RETENTION_CLEANUP_INTERVAL", 1*time.Hour),
		},
		Weather: WeatherConfig{
			ForecastBaseURL: getEnv("WEATHER_FORECAST_BASE_URL", "https://api.open-meteo.com/v1"),
			GeocodeBaseURL:  getEnv("WEATHER_GEOCODE_BASE_URL", "https://geocoding-api.open-meteo.com/v1"),
			ImagesBaseURL:   getEnv("WEATHER_IMAGES_BASE_URL", "https://api.unsplash.com"),
			ImagesAPIKey:    getEnv("WEATHER_IMAGES_API_KEY", ""),
			Timeout:         getEnvAsDuration("WEATHER_UPSTREAM_TIMEOUT", 10*time.Second),
			CacheTTL:        getEnvAsDuration("WEATHER_CACHE_TTL", 5*time.Minute),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
