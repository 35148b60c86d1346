// Пакет config — загрузка и валидация конфигурации Lifecycle Engine
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bigkaa/mediastore/lifecycle-engine/internal/domain/cost"
	"github.com/bigkaa/mediastore/lifecycle-engine/internal/domain/lifecycle"
	"github.com/bigkaa/mediastore/lifecycle-engine/internal/domain/model"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Бэкенды blob-хранилища.
const (
	ObjectStoreS3 = "s3"
	ObjectStoreFS = "fs"
)

// Config содержит все параметры конфигурации Lifecycle Engine.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Таймауты HTTP-сервера. WriteTimeout покрывает синхронный ручной прогон.
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration

	// --- PostgreSQL ---

	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string

	// --- Blob-хранилище ---

	// Бэкенд: s3 или fs
	ObjectStore string
	// Endpoint S3-совместимого хранилища (host:port)
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3Region    string
	S3UseSSL    bool
	// Корневой каталог локального бэкенда
	FSDataDir string

	// --- Redis (блокировка прогона) ---

	// Адрес Redis; пустой — блокировка внутри процесса
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// --- Прогон жизненного цикла ---

	// Интервал встроенного планировщика (0 — выключен)
	SweepInterval time.Duration
	// Максимум одновременно обрабатываемых файлов
	SweepConcurrency int
	// Размер страницы выборки файлов
	SweepPageSize int
	// TTL блокировки прогона; пока прогон идёт, блокировка продлевается
	SweepLockTTL time.Duration
	// Таймаут одного обращения к БД или blob-хранилищу
	StoreTimeout time.Duration
	// Grace period перед физическим удалением
	GracePeriod time.Duration
	// Возраст warm storage для обычных и избранных файлов
	WarmAfterDays int
	// Возраст архивации избранных файлов
	FavoriteArchiveAfterDays int

	// --- Стоимость ---

	RateHot     float64
	RateWarm    float64
	RateArchive float64
	RateCold    float64
	// Пороги оповещений в процентах от лимита плана
	CostWarningPct  float64
	CostCriticalPct float64

	// --- Кэш аналитики ---

	AnalyticsCacheSize int
	AnalyticsCacheTTL  time.Duration

	// --- JWT ---

	// URL JWKS endpoint; пустой — аутентификация выключена
	JWTJWKSURL string
	// Ожидаемый issuer (опционально)
	JWTIssuer string
	// Роль администратора
	JWTAdminRole string

	// --- topologymetrics ---

	DephealthCheckInterval time.Duration
	DephealthGroup         string

	// --- Graceful shutdown ---

	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// LE_PORT — порт HTTP-сервера (по умолчанию 8030)
	cfg.Port, err = getEnvInt("LE_PORT", 8030)
	if err != nil {
		return nil, fmt.Errorf("LE_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("LE_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	cfg.LogLevel, err = parseLogLevel(getEnvDefault("LE_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("LE_LOG_LEVEL: %w", err)
	}

	cfg.LogFormat = getEnvDefault("LE_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("LE_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- PostgreSQL ---

	if cfg.DBHost, err = getEnvRequired("LE_DB_HOST"); err != nil {
		return nil, err
	}
	cfg.DBPort, err = getEnvInt("LE_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("LE_DB_PORT: %w", err)
	}
	if cfg.DBName, err = getEnvRequired("LE_DB_NAME"); err != nil {
		return nil, err
	}
	if cfg.DBUser, err = getEnvRequired("LE_DB_USER"); err != nil {
		return nil, err
	}
	if cfg.DBPassword, err = getEnvRequired("LE_DB_PASSWORD"); err != nil {
		return nil, err
	}
	cfg.DBSSLMode = getEnvDefault("LE_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("LE_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// --- Blob-хранилище ---

	cfg.ObjectStore = getEnvDefault("LE_OBJECT_STORE", ObjectStoreS3)
	switch cfg.ObjectStore {
	case ObjectStoreS3:
		if cfg.S3Endpoint, err = getEnvRequired("LE_S3_ENDPOINT"); err != nil {
			return nil, err
		}
		if cfg.S3AccessKey, err = getEnvRequired("LE_S3_ACCESS_KEY"); err != nil {
			return nil, err
		}
		if cfg.S3SecretKey, err = getEnvRequired("LE_S3_SECRET_KEY"); err != nil {
			return nil, err
		}
		if cfg.S3Bucket, err = getEnvRequired("LE_S3_BUCKET"); err != nil {
			return nil, err
		}
		cfg.S3Region = getEnvDefault("LE_S3_REGION", "us-east-1")
		cfg.S3UseSSL, err = getEnvBool("LE_S3_USE_SSL", true)
		if err != nil {
			return nil, fmt.Errorf("LE_S3_USE_SSL: %w", err)
		}
	case ObjectStoreFS:
		if cfg.FSDataDir, err = getEnvRequired("LE_FS_DATA_DIR"); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("LE_OBJECT_STORE: недопустимое значение %q, допустимые: s3, fs", cfg.ObjectStore)
	}

	// --- Redis ---

	cfg.RedisAddr = getEnvDefault("LE_REDIS_ADDR", "")
	cfg.RedisPassword = getEnvDefault("LE_REDIS_PASSWORD", "")
	cfg.RedisDB, err = getEnvInt("LE_REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("LE_REDIS_DB: %w", err)
	}

	// --- Прогон ---

	// LE_SWEEP_INTERVAL — 0 выключает встроенный планировщик (прогон через CronJob)
	cfg.SweepInterval, err = getEnvDuration("LE_SWEEP_INTERVAL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("LE_SWEEP_INTERVAL: %w", err)
	}
	if cfg.SweepInterval < 0 {
		return nil, fmt.Errorf("LE_SWEEP_INTERVAL: значение должно быть >= 0")
	}

	cfg.SweepConcurrency, err = getEnvInt("LE_SWEEP_CONCURRENCY", 8)
	if err != nil {
		return nil, fmt.Errorf("LE_SWEEP_CONCURRENCY: %w", err)
	}
	if cfg.SweepConcurrency < 1 || cfg.SweepConcurrency > 256 {
		return nil, fmt.Errorf("LE_SWEEP_CONCURRENCY: значение %d вне допустимого диапазона 1-256", cfg.SweepConcurrency)
	}

	cfg.SweepPageSize, err = getEnvInt("LE_SWEEP_PAGE_SIZE", 500)
	if err != nil {
		return nil, fmt.Errorf("LE_SWEEP_PAGE_SIZE: %w", err)
	}
	if cfg.SweepPageSize < 1 || cfg.SweepPageSize > 10000 {
		return nil, fmt.Errorf("LE_SWEEP_PAGE_SIZE: значение %d вне допустимого диапазона 1-10000", cfg.SweepPageSize)
	}

	if cfg.SweepLockTTL, err = getEnvPositiveDuration("LE_SWEEP_LOCK_TTL", 2*time.Hour); err != nil {
		return nil, fmt.Errorf("LE_SWEEP_LOCK_TTL: %w", err)
	}
	if cfg.StoreTimeout, err = getEnvPositiveDuration("LE_STORE_TIMEOUT", 10*time.Second); err != nil {
		return nil, fmt.Errorf("LE_STORE_TIMEOUT: %w", err)
	}
	if cfg.GracePeriod, err = getEnvPositiveDuration("LE_GRACE_PERIOD", 7*24*time.Hour); err != nil {
		return nil, fmt.Errorf("LE_GRACE_PERIOD: %w", err)
	}

	defaults := lifecycle.DefaultThresholds()
	cfg.WarmAfterDays, err = getEnvInt("LE_WARM_AFTER_DAYS", defaults.WarmAfterDays)
	if err != nil {
		return nil, fmt.Errorf("LE_WARM_AFTER_DAYS: %w", err)
	}
	cfg.FavoriteArchiveAfterDays, err = getEnvInt("LE_FAVORITE_ARCHIVE_AFTER_DAYS", defaults.FavoriteArchiveAfterDays)
	if err != nil {
		return nil, fmt.Errorf("LE_FAVORITE_ARCHIVE_AFTER_DAYS: %w", err)
	}
	if cfg.WarmAfterDays < 0 || cfg.FavoriteArchiveAfterDays < 0 {
		return nil, fmt.Errorf("LE_WARM_AFTER_DAYS, LE_FAVORITE_ARCHIVE_AFTER_DAYS: значения должны быть >= 0")
	}

	// --- Стоимость ---

	rates := model.DefaultCostRates()
	for _, r := range []struct {
		key string
		dst *float64
		def float64
	}{
		{"LE_RATE_HOT", &cfg.RateHot, rates.Hot},
		{"LE_RATE_WARM", &cfg.RateWarm, rates.Warm},
		{"LE_RATE_ARCHIVE", &cfg.RateArchive, rates.Archive},
		{"LE_RATE_COLD", &cfg.RateCold, rates.Cold},
	} {
		*r.dst, err = getEnvFloat(r.key, r.def)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", r.key, err)
		}
		if *r.dst < 0 {
			return nil, fmt.Errorf("%s: тариф не может быть отрицательным", r.key)
		}
	}

	th := cost.DefaultThresholds()
	if cfg.CostWarningPct, err = getEnvFloat("LE_COST_WARNING_PCT", th.Warning); err != nil {
		return nil, fmt.Errorf("LE_COST_WARNING_PCT: %w", err)
	}
	if cfg.CostCriticalPct, err = getEnvFloat("LE_COST_CRITICAL_PCT", th.Critical); err != nil {
		return nil, fmt.Errorf("LE_COST_CRITICAL_PCT: %w", err)
	}
	if cfg.CostWarningPct <= 0 || cfg.CostWarningPct > cfg.CostCriticalPct {
		return nil, fmt.Errorf("LE_COST_WARNING_PCT: порог %.2f должен быть > 0 и не больше критического %.2f",
			cfg.CostWarningPct, cfg.CostCriticalPct)
	}

	// --- Кэш аналитики ---

	cfg.AnalyticsCacheSize, err = getEnvInt("LE_ANALYTICS_CACHE_SIZE", 1024)
	if err != nil {
		return nil, fmt.Errorf("LE_ANALYTICS_CACHE_SIZE: %w", err)
	}
	if cfg.AnalyticsCacheSize < 0 {
		return nil, fmt.Errorf("LE_ANALYTICS_CACHE_SIZE: значение должно быть >= 0")
	}
	if cfg.AnalyticsCacheTTL, err = getEnvPositiveDuration("LE_ANALYTICS_CACHE_TTL", 5*time.Minute); err != nil {
		return nil, fmt.Errorf("LE_ANALYTICS_CACHE_TTL: %w", err)
	}

	// --- JWT ---

	cfg.JWTJWKSURL = getEnvDefault("LE_JWT_JWKS_URL", "")
	cfg.JWTIssuer = getEnvDefault("LE_JWT_ISSUER", "")
	cfg.JWTAdminRole = getEnvDefault("LE_JWT_ADMIN_ROLE", "admin")

	// --- topologymetrics ---

	cfg.DephealthCheckInterval, err = getEnvDuration("LE_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("LE_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}
	cfg.DephealthGroup = getEnvDefault("LE_DEPHEALTH_GROUP", "mediastore")

	// --- HTTP-таймауты ---

	cfg.HTTPReadTimeout, err = getEnvDuration("LE_HTTP_READ_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("LE_HTTP_READ_TIMEOUT: %w", err)
	}
	cfg.HTTPWriteTimeout, err = getEnvDuration("LE_HTTP_WRITE_TIMEOUT", 30*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("LE_HTTP_WRITE_TIMEOUT: %w", err)
	}
	cfg.HTTPIdleTimeout, err = getEnvDuration("LE_HTTP_IDLE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("LE_HTTP_IDLE_TIMEOUT: %w", err)
	}

	// --- Graceful shutdown ---

	cfg.ShutdownTimeout, err = getEnvDuration("LE_SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("LE_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// CostRates возвращает тарифы хранения.
func (c *Config) CostRates() model.CostRates {
	return model.CostRates{
		Hot:     c.RateHot,
		Warm:    c.RateWarm,
		Archive: c.RateArchive,
		Cold:    c.RateCold,
	}
}

// Thresholds возвращает пороги функции переходов.
func (c *Config) Thresholds() lifecycle.Thresholds {
	th := lifecycle.DefaultThresholds()
	th.WarmAfterDays = c.WarmAfterDays
	th.FavoriteArchiveAfterDays = c.FavoriteArchiveAfterDays
	th.GracePeriod = c.GracePeriod
	return th
}

// CostThresholds возвращает пороги оповещений о стоимости.
func (c *Config) CostThresholds() cost.Thresholds {
	return cost.Thresholds{Warning: c.CostWarningPct, Critical: c.CostCriticalPct}
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

func getEnvFloat(key string, defaultVal float64) (float64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное число: %q", val)
	}
	return f, nil
}

// getEnvBool возвращает булево значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q (допустимые: true, false, 1, 0)", val)
	}
	return b, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// getEnvPositiveDuration как getEnvDuration, но требует значение > 0.
func getEnvPositiveDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	d, err := getEnvDuration(key, defaultVal)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("значение должно быть > 0")
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
