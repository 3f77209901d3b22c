package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	Speech     SpeechConfig
	Grading    GradingConfig
	Recordings RecordingsConfig
	Exports    ExportsConfig
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

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SpeechConfig configures the pronunciation-assessment provider and the
// scoped-credential issuer.
type SpeechConfig struct {
	ProviderKey    string
	ProviderRegion string
	TokenTTL       time.Duration
	DemoDailyQuota int
	AuthDailyQuota int // 0 means unlimited
	CallTimeout    time.Duration
	MaxConns       int
	KeepaliveConns int
}

// GradingConfig tunes the batch auto-grading engine.
type GradingConfig struct {
	Workers     int
	ItemTimeout time.Duration
}

// RecordingsConfig controls audio blob storage and signed download URLs.
type RecordingsConfig struct {
	StorageDir      string
	SignedURLSecret string
	SignedURLTTL    time.Duration
	MaxFileBytes    int64
	WriterWorkers   int
	WriterRetries   int
}

// ExportsConfig controls grade-sheet export storage.
type ExportsConfig struct {
	StorageDir string
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
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

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

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Speech = SpeechConfig{
		ProviderKey:    v.GetString("SPEECH_PROVIDER_KEY"),
		ProviderRegion: v.GetString("SPEECH_PROVIDER_REGION"),
		TokenTTL:       parseDuration(v.GetString("SPEECH_TOKEN_TTL"), 10*time.Minute),
		DemoDailyQuota: v.GetInt("SPEECH_DEMO_DAILY_QUOTA"),
		AuthDailyQuota: v.GetInt("SPEECH_AUTH_DAILY_QUOTA"),
		CallTimeout:    parseDuration(v.GetString("SPEECH_CALL_TIMEOUT"), 30*time.Second),
		MaxConns:       v.GetInt("SPEECH_MAX_CONNS"),
		KeepaliveConns: v.GetInt("SPEECH_KEEPALIVE_CONNS"),
	}

	cfg.Grading = GradingConfig{
		Workers:     v.GetInt("GRADING_WORKERS"),
		ItemTimeout: parseDuration(v.GetString("GRADING_ITEM_TIMEOUT"), 30*time.Second),
	}

	maxRecordingSize := v.GetInt64("RECORDINGS_MAX_FILE_SIZE")
	if maxRecordingSize <= 0 {
		maxRecordingSize = 10 * 1024 * 1024
	}
	cfg.Recordings = RecordingsConfig{
		StorageDir:      v.GetString("RECORDINGS_STORAGE_DIR"),
		SignedURLSecret: v.GetString("RECORDINGS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("RECORDINGS_SIGNED_URL_TTL"), 30*time.Minute),
		MaxFileBytes:    maxRecordingSize,
		WriterWorkers:   v.GetInt("RECORDINGS_WRITER_WORKERS"),
		WriterRetries:   v.GetInt("RECORDINGS_WRITER_RETRIES"),
	}

	cfg.Exports = ExportsConfig{
		StorageDir: v.GetString("EXPORTS_STORAGE_DIR"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "duotopia")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "duotopia-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SPEECH_PROVIDER_KEY", "")
	v.SetDefault("SPEECH_PROVIDER_REGION", "eastasia")
	v.SetDefault("SPEECH_TOKEN_TTL", "10m")
	v.SetDefault("SPEECH_DEMO_DAILY_QUOTA", 60)
	v.SetDefault("SPEECH_AUTH_DAILY_QUOTA", 0)
	v.SetDefault("SPEECH_CALL_TIMEOUT", "30s")
	v.SetDefault("SPEECH_MAX_CONNS", 100)
	v.SetDefault("SPEECH_KEEPALIVE_CONNS", 20)

	v.SetDefault("GRADING_WORKERS", 8)
	v.SetDefault("GRADING_ITEM_TIMEOUT", "30s")

	v.SetDefault("RECORDINGS_STORAGE_DIR", "./recordings")
	v.SetDefault("RECORDINGS_SIGNED_URL_SECRET", "dev_recordings_secret")
	v.SetDefault("RECORDINGS_SIGNED_URL_TTL", "30m")
	v.SetDefault("RECORDINGS_MAX_FILE_SIZE", 10*1024*1024)
	v.SetDefault("RECORDINGS_WRITER_WORKERS", 2)
	v.SetDefault("RECORDINGS_WRITER_RETRIES", 3)

	v.SetDefault("EXPORTS_STORAGE_DIR", "./exports")
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
