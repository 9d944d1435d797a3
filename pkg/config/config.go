package config

import (
	"errors"
	"strconv"
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

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Grading   GradingConfig
	Analytics AnalyticsConfig
	Storage   StorageConfig
	Exports   ExportsConfig
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

// GradingConfig defines the multi-reviewer resolution policy. Tolerances are
// expressed as a fraction of a question's full score; the per-type map
// overrides the default for specific question types.
type GradingConfig struct {
	DefaultTolerance float64
	ToleranceByType  map[string]float64
	ScorePrecision   int
}

// AnalyticsConfig governs cache behaviour and the classification thresholds
// used by the bias and knowledge-point analyzers.
type AnalyticsConfig struct {
	CacheEnabled      bool
	CacheTTL          time.Duration
	BiasMargin        float64
	ExcellentOffset   float64
	PassOffset        float64
	PassRateThreshold float64
}

// StorageConfig locates raw answer-sheet material on disk and configures
// signed download URLs for sheet images.
type StorageConfig struct {
	MaterialDir     string
	SignedURLSecret string
	SignedURLTTL    time.Duration
}

// ExportsConfig configures asynchronous score-report generation.
type ExportsConfig struct {
	Enabled           bool
	StorageDir        string
	WorkerConcurrency int
	WorkerRetries     int
	CleanupInterval   time.Duration
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

	cfg.Grading = GradingConfig{
		DefaultTolerance: v.GetFloat64("GRADING_TOLERANCE"),
		ToleranceByType:  parseToleranceOverrides(v.GetString("GRADING_TOLERANCE_OVERRIDES")),
		ScorePrecision:   v.GetInt("GRADING_SCORE_PRECISION"),
	}

	cfg.Analytics = AnalyticsConfig{
		CacheEnabled:      v.GetBool("ANALYTICS_CACHE_ENABLED"),
		CacheTTL:          parseDuration(v.GetString("ANALYTICS_CACHE_TTL"), 10*time.Minute),
		BiasMargin:        v.GetFloat64("ANALYTICS_BIAS_MARGIN"),
		ExcellentOffset:   v.GetFloat64("ANALYTICS_KNOWLEDGE_EXCELLENT_OFFSET"),
		PassOffset:        v.GetFloat64("ANALYTICS_KNOWLEDGE_PASS_OFFSET"),
		PassRateThreshold: v.GetFloat64("ANALYTICS_PASS_RATE_THRESHOLD"),
	}

	cfg.Storage = StorageConfig{
		MaterialDir:     v.GetString("MATERIAL_STORAGE_DIR"),
		SignedURLSecret: v.GetString("MATERIAL_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("MATERIAL_SIGNED_URL_TTL"), 30*time.Minute),
	}

	cfg.Exports = ExportsConfig{
		Enabled:           v.GetBool("ENABLE_EXPORTS"),
		StorageDir:        v.GetString("EXPORTS_STORAGE_DIR"),
		WorkerConcurrency: v.GetInt("EXPORTS_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("EXPORTS_WORKER_RETRIES"),
		CleanupInterval:   parseDuration(v.GetString("EXPORTS_CLEANUP_INTERVAL"), time.Hour),
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
	v.SetDefault("DB_NAME", "exam_insight")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "exam-insight-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("GRADING_TOLERANCE", 0.10)
	v.SetDefault("GRADING_TOLERANCE_OVERRIDES", "")
	v.SetDefault("GRADING_SCORE_PRECISION", 2)

	v.SetDefault("ANALYTICS_CACHE_ENABLED", false)
	v.SetDefault("ANALYTICS_CACHE_TTL", "10m")
	v.SetDefault("ANALYTICS_BIAS_MARGIN", 5.0)
	v.SetDefault("ANALYTICS_KNOWLEDGE_EXCELLENT_OFFSET", 10.0)
	v.SetDefault("ANALYTICS_KNOWLEDGE_PASS_OFFSET", 10.0)
	v.SetDefault("ANALYTICS_PASS_RATE_THRESHOLD", 0.6)

	v.SetDefault("MATERIAL_STORAGE_DIR", "./material")
	v.SetDefault("MATERIAL_SIGNED_URL_SECRET", "dev_material_secret")
	v.SetDefault("MATERIAL_SIGNED_URL_TTL", "30m")

	v.SetDefault("ENABLE_EXPORTS", false)
	v.SetDefault("EXPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("EXPORTS_WORKER_CONCURRENCY", 1)
	v.SetDefault("EXPORTS_WORKER_RETRIES", 3)
	v.SetDefault("EXPORTS_CLEANUP_INTERVAL", "1h")
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

// parseToleranceOverrides reads "type:fraction" pairs, e.g.
// "single_choice:0,free_response:0.15".
func parseToleranceOverrides(raw string) map[string]float64 {
	if raw == "" {
		return nil
	}

	overrides := make(map[string]float64)
	for _, pair := range strings.Split(raw, ",") {
		kv := strings.SplitN(strings.TrimSpace(pair), ":", 2)
		if len(kv) != 2 {
			continue
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(kv[1]), 64)
		if err != nil || value < 0 {
			continue
		}
		overrides[strings.TrimSpace(kv[0])] = value
	}
	if len(overrides) == 0 {
		return nil
	}

	return overrides
}
