// Пакет config — загрузка и валидация конфигурации Dashboard Module
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации Dashboard Module.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера (диапазон 8000-8009)
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- PostgreSQL ---

	// Хост PostgreSQL
	DBHost string
	// Порт PostgreSQL
	DBPort int
	// Имя базы данных
	DBName string
	// Имя пользователя PostgreSQL
	DBUser string
	// Пароль пользователя PostgreSQL
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string

	// --- Keycloak / OIDC ---

	// URL Keycloak для backend-запросов (token exchange, JWKS)
	KeycloakURL string
	// Внешний URL Keycloak для browser redirects (если отличается)
	BrowserKeycloakURL string
	// Имя realm в Keycloak
	KeycloakRealm string
	// Client ID дашборда (public client, PKCE)
	KeycloakClientID string
	// Таймаут HTTP-запросов OIDC-клиента
	OIDCClientTimeout time.Duration

	// --- JWT (валидация Bearer-токенов JSON API) ---

	// Issuer JWT (авто-вычисляется из KeycloakURL, если не задан)
	JWTIssuer string
	// URL JWKS endpoint (авто-вычисляется из KeycloakURL, если не задан)
	JWTJWKSURL string

	// --- Сессии UI ---

	// Ключ шифрования session cookie (base64 или произвольная строка).
	// Пустой — генерируется случайный при старте.
	SessionSecret string
	// Secure flag для cookies (true при работе за HTTPS)
	SecureCookies bool

	// --- Generation Backend ---

	// Базовый URL генерационного бэкенда
	BackendURL string
	// Путь к CA-сертификату для TLS-соединений с бэкендом (опционально)
	BackendCACertPath string
	// Таймаут HTTP-запросов к бэкенду
	BackendTimeout time.Duration

	// --- Опрос статусов и кэш ---

	// Интервал фонового опроса статусов сервисов
	PollInterval time.Duration
	// Максимальное число владельцев в LRU-кэше
	CacheMaxOwners int
	// TTL записи владельца в кэше
	CacheTTL time.Duration

	// --- Журнал активности ---

	// Срок хранения записей журнала активности (в днях)
	ActivityRetentionDays int
	// Интервал фоновой очистки журнала
	ActivityCleanupInterval time.Duration

	// --- Прочее ---

	// Группа сервиса в topologymetrics
	DephealthGroup string
	// Интервал проверки зависимостей topologymetrics
	DephealthCheckInterval time.Duration
	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// DM_PORT — порт HTTP-сервера (по умолчанию 8000)
	cfg.Port, err = getEnvInt("DM_PORT", 8000)
	if err != nil {
		return nil, fmt.Errorf("DM_PORT: %w", err)
	}
	if cfg.Port < 8000 || cfg.Port > 8009 {
		return nil, fmt.Errorf("DM_PORT: значение %d вне допустимого диапазона 8000-8009", cfg.Port)
	}

	// DM_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("DM_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("DM_LOG_LEVEL: %w", err)
	}

	// DM_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("DM_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("DM_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- PostgreSQL ---

	// DM_DB_HOST — обязательный
	cfg.DBHost, err = getEnvRequired("DM_DB_HOST")
	if err != nil {
		return nil, err
	}

	// DM_DB_PORT — порт PostgreSQL (по умолчанию 5432)
	cfg.DBPort, err = getEnvInt("DM_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("DM_DB_PORT: %w", err)
	}

	// DM_DB_NAME — обязательный
	cfg.DBName, err = getEnvRequired("DM_DB_NAME")
	if err != nil {
		return nil, err
	}

	// DM_DB_USER — обязательный
	cfg.DBUser, err = getEnvRequired("DM_DB_USER")
	if err != nil {
		return nil, err
	}

	// DM_DB_PASSWORD — обязательный
	cfg.DBPassword, err = getEnvRequired("DM_DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	// DM_DB_SSL_MODE — режим SSL (по умолчанию disable)
	cfg.DBSSLMode = getEnvDefault("DM_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("DM_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// --- Keycloak / OIDC ---

	// DM_KEYCLOAK_URL — обязательный
	cfg.KeycloakURL, err = getEnvRequired("DM_KEYCLOAK_URL")
	if err != nil {
		return nil, err
	}
	// Убираем trailing slash
	cfg.KeycloakURL = strings.TrimRight(cfg.KeycloakURL, "/")

	// DM_BROWSER_KEYCLOAK_URL — внешний URL для browser redirects (опционально)
	cfg.BrowserKeycloakURL = strings.TrimRight(getEnvDefault("DM_BROWSER_KEYCLOAK_URL", ""), "/")

	// DM_KEYCLOAK_REALM — realm (по умолчанию api-architect)
	cfg.KeycloakRealm = getEnvDefault("DM_KEYCLOAK_REALM", "api-architect")

	// DM_KEYCLOAK_CLIENT_ID — public client дашборда
	cfg.KeycloakClientID = getEnvDefault("DM_KEYCLOAK_CLIENT_ID", "api-architect-dashboard")

	// DM_OIDC_CLIENT_TIMEOUT — таймаут OIDC-клиента (по умолчанию 30s)
	cfg.OIDCClientTimeout, err = getEnvDuration("DM_OIDC_CLIENT_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DM_OIDC_CLIENT_TIMEOUT: %w", err)
	}

	// --- JWT ---

	// DM_JWT_ISSUER — авто-вычисляется из KeycloakURL, если не задан
	cfg.JWTIssuer = getEnvDefault("DM_JWT_ISSUER",
		fmt.Sprintf("%s/realms/%s", cfg.KeycloakURL, cfg.KeycloakRealm))

	// DM_JWT_JWKS_URL — авто-вычисляется из KeycloakURL, если не задан
	cfg.JWTJWKSURL = getEnvDefault("DM_JWT_JWKS_URL",
		fmt.Sprintf("%s/realms/%s/protocol/openid-connect/certs", cfg.KeycloakURL, cfg.KeycloakRealm))

	// --- Сессии UI ---

	// DM_SESSION_SECRET — ключ шифрования cookie (опционально)
	cfg.SessionSecret = getEnvDefault("DM_SESSION_SECRET", "")

	// DM_SECURE_COOKIES — Secure flag для cookies (по умолчанию false)
	cfg.SecureCookies, err = getEnvBool("DM_SECURE_COOKIES", false)
	if err != nil {
		return nil, fmt.Errorf("DM_SECURE_COOKIES: %w", err)
	}

	// --- Generation Backend ---

	// DM_BACKEND_URL — обязательный
	cfg.BackendURL, err = getEnvRequired("DM_BACKEND_URL")
	if err != nil {
		return nil, err
	}
	cfg.BackendURL = strings.TrimRight(cfg.BackendURL, "/")

	// DM_BACKEND_CA_CERT_PATH — путь к CA-сертификату бэкенда (опционально)
	cfg.BackendCACertPath = getEnvDefault("DM_BACKEND_CA_CERT_PATH", "")

	// DM_BACKEND_TIMEOUT — таймаут запросов к бэкенду (по умолчанию 30s)
	cfg.BackendTimeout, err = getEnvDuration("DM_BACKEND_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DM_BACKEND_TIMEOUT: %w", err)
	}

	// --- Опрос статусов и кэш ---

	// DM_POLL_INTERVAL — интервал опроса статусов (по умолчанию 5s)
	cfg.PollInterval, err = getEnvDuration("DM_POLL_INTERVAL", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DM_POLL_INTERVAL: %w", err)
	}
	if cfg.PollInterval < time.Second {
		return nil, fmt.Errorf("DM_POLL_INTERVAL: значение %s меньше минимального 1s", cfg.PollInterval)
	}

	// DM_CACHE_MAX_OWNERS — размер LRU-кэша (по умолчанию 500)
	cfg.CacheMaxOwners, err = getEnvInt("DM_CACHE_MAX_OWNERS", 500)
	if err != nil {
		return nil, fmt.Errorf("DM_CACHE_MAX_OWNERS: %w", err)
	}
	if cfg.CacheMaxOwners < 1 {
		return nil, fmt.Errorf("DM_CACHE_MAX_OWNERS: значение %d должно быть положительным", cfg.CacheMaxOwners)
	}

	// DM_CACHE_TTL — TTL записи в кэше (по умолчанию 30m)
	cfg.CacheTTL, err = getEnvDuration("DM_CACHE_TTL", 30*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("DM_CACHE_TTL: %w", err)
	}

	// --- Журнал активности ---

	// DM_ACTIVITY_RETENTION_DAYS — срок хранения журнала (по умолчанию 30)
	cfg.ActivityRetentionDays, err = getEnvInt("DM_ACTIVITY_RETENTION_DAYS", 30)
	if err != nil {
		return nil, fmt.Errorf("DM_ACTIVITY_RETENTION_DAYS: %w", err)
	}
	if cfg.ActivityRetentionDays < 1 {
		return nil, fmt.Errorf("DM_ACTIVITY_RETENTION_DAYS: значение %d должно быть положительным", cfg.ActivityRetentionDays)
	}

	// DM_ACTIVITY_CLEANUP_INTERVAL — интервал очистки журнала (по умолчанию 24h)
	cfg.ActivityCleanupInterval, err = getEnvDuration("DM_ACTIVITY_CLEANUP_INTERVAL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("DM_ACTIVITY_CLEANUP_INTERVAL: %w", err)
	}

	// --- Прочее ---

	// DM_DEPHEALTH_GROUP — группа сервиса в topologymetrics (по умолчанию api-architect)
	cfg.DephealthGroup = getEnvDefault("DM_DEPHEALTH_GROUP", "api-architect")

	// DM_DEPHEALTH_CHECK_INTERVAL — интервал проверки зависимостей (по умолчанию 15s)
	cfg.DephealthCheckInterval, err = getEnvDuration("DM_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DM_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// DM_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("DM_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DM_SHUTDOWN_TIMEOUT: %w", err)
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

// DatabaseURL возвращает URL подключения к PostgreSQL.
// Используется topologymetrics для разбора host/port в лейблы метрик.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(c.DBUser), url.QueryEscape(c.DBPassword),
		c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
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

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
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

// getEnvBool возвращает булево значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q", val)
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
