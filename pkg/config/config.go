package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Storage drivers accepted by STORAGE_DRIVER.
const (
	StorageMemory   = "memory"
	StorageFile     = "file"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
)

type Config struct {
	Env  string
	Port int

	API       APIConfig
	Storage   StorageConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Session   SessionConfig
	CORS      CORSConfig
	Log       LogConfig
	Telemetry TelemetryConfig
	DevAPI    DevAPIConfig
}

// APIConfig points the gateway at the remote LMS API.
type APIConfig struct {
	BaseURL         string
	Timeout         time.Duration
	DefaultTenantID string
}

// StorageConfig selects the durable backend mirroring visitor sessions.
type StorageConfig struct {
	Driver    string
	Dir       string
	KeyPrefix string
	TTL       time.Duration
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// SessionConfig controls visitor identification and store behaviour.
type SessionConfig struct {
	CookieName       string
	CookieSecure     bool
	IdleTTL          time.Duration
	StrictSequencing bool
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// TelemetryConfig configures the OTLP trace exporter.
type TelemetryConfig struct {
	ServiceName  string
	OTLPEndpoint string
	Insecure     bool
}

// DevAPIConfig configures the local implementation of the remote API.
type DevAPIConfig struct {
	Port      int
	JWTSecret string
	TenantID  string
	TokenTTL  time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")

	cfg.API = APIConfig{
		BaseURL:         strings.TrimRight(v.GetString("API_BASE_URL"), "/"),
		Timeout:         parseDuration(v.GetString("API_TIMEOUT"), 15*time.Second),
		DefaultTenantID: v.GetString("API_DEFAULT_TENANT_ID"),
	}

	cfg.Storage = StorageConfig{
		Driver:    strings.ToLower(v.GetString("STORAGE_DRIVER")),
		Dir:       v.GetString("STORAGE_DIR"),
		KeyPrefix: v.GetString("STORAGE_KEY_PREFIX"),
		TTL:       parseDuration(v.GetString("STORAGE_TTL"), 7*24*time.Hour),
	}

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Session = SessionConfig{
		CookieName:       v.GetString("SESSION_COOKIE_NAME"),
		CookieSecure:     v.GetBool("SESSION_COOKIE_SECURE"),
		IdleTTL:          parseDuration(v.GetString("SESSION_IDLE_TTL"), 30*time.Minute),
		StrictSequencing: v.GetBool("SESSION_STRICT_SEQUENCING"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Telemetry = TelemetryConfig{
		ServiceName:  v.GetString("OTEL_SERVICE_NAME"),
		OTLPEndpoint: v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
		Insecure:     v.GetBool("OTEL_EXPORTER_OTLP_INSECURE"),
	}

	cfg.DevAPI = DevAPIConfig{
		Port:      v.GetInt("DEVAPI_PORT"),
		JWTSecret: v.GetString("DEVAPI_JWT_SECRET"),
		TenantID:  v.GetString("DEVAPI_TENANT_ID"),
		TokenTTL:  parseDuration(v.GetString("DEVAPI_TOKEN_TTL"), 24*time.Hour),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)

	v.SetDefault("API_BASE_URL", "http://localhost:5000/api")
	v.SetDefault("API_TIMEOUT", "15s")
	v.SetDefault("API_DEFAULT_TENANT_ID", "")

	v.SetDefault("STORAGE_DRIVER", StorageMemory)
	v.SetDefault("STORAGE_DIR", "./sessions")
	v.SetDefault("STORAGE_KEY_PREFIX", "nexlearn:session:")
	v.SetDefault("STORAGE_TTL", "168h")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "nexlearn_dashboard")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("SESSION_COOKIE_NAME", "nexlearn_visitor")
	v.SetDefault("SESSION_COOKIE_SECURE", false)
	v.SetDefault("SESSION_IDLE_TTL", "30m")
	v.SetDefault("SESSION_STRICT_SEQUENCING", false)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("OTEL_SERVICE_NAME", "nexlearn-dashboard")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)

	v.SetDefault("DEVAPI_PORT", 5000)
	v.SetDefault("DEVAPI_JWT_SECRET", "dev_secret")
	v.SetDefault("DEVAPI_TENANT_ID", "tenant-dev")
	v.SetDefault("DEVAPI_TOKEN_TTL", "24h")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
