package config

import (
	"log/slog"
	"os"
	"testing"
	"time"
)

// setEnvs устанавливает переменные окружения и возвращает функцию для их очистки.
func setEnvs(t *testing.T, envs map[string]string) {
	t.Helper()
	for k, v := range envs {
		t.Setenv(k, v)
	}
}

// minimalEnvs возвращает минимальный набор обязательных переменных.
func minimalEnvs() map[string]string {
	return map[string]string{
		"DM_DB_HOST":      "localhost",
		"DM_DB_NAME":      "dashboard",
		"DM_DB_USER":      "dashboard",
		"DM_DB_PASSWORD":  "secret",
		"DM_KEYCLOAK_URL": "https://keycloak.kryukov.lan",
		"DM_BACKEND_URL":  "https://backend.kryukov.lan",
	}
}

func TestLoad_MinimalConfig(t *testing.T) {
	setEnvs(t, minimalEnvs())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	// Проверяем значения по умолчанию
	if cfg.Port != 8000 {
		t.Errorf("Port = %d, ожидается 8000", cfg.Port)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, ожидается Info", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q, ожидается json", cfg.LogFormat)
	}
	if cfg.DBHost != "localhost" {
		t.Errorf("DBHost = %q, ожидается localhost", cfg.DBHost)
	}
	if cfg.DBPort != 5432 {
		t.Errorf("DBPort = %d, ожидается 5432", cfg.DBPort)
	}
	if cfg.DBSSLMode != "disable" {
		t.Errorf("DBSSLMode = %q, ожидается disable", cfg.DBSSLMode)
	}
	if cfg.KeycloakRealm != "api-architect" {
		t.Errorf("KeycloakRealm = %q, ожидается api-architect", cfg.KeycloakRealm)
	}
	if cfg.KeycloakClientID != "api-architect-dashboard" {
		t.Errorf("KeycloakClientID = %q, ожидается api-architect-dashboard", cfg.KeycloakClientID)
	}
	if cfg.BackendTimeout != 30*time.Second {
		t.Errorf("BackendTimeout = %v, ожидается 30s", cfg.BackendTimeout)
	}
	if cfg.PollInterval != 5*time.Second {
		t.Errorf("PollInterval = %v, ожидается 5s", cfg.PollInterval)
	}
	if cfg.CacheMaxOwners != 500 {
		t.Errorf("CacheMaxOwners = %d, ожидается 500", cfg.CacheMaxOwners)
	}
	if cfg.CacheTTL != 30*time.Minute {
		t.Errorf("CacheTTL = %v, ожидается 30m", cfg.CacheTTL)
	}
	if cfg.ActivityRetentionDays != 30 {
		t.Errorf("ActivityRetentionDays = %d, ожидается 30", cfg.ActivityRetentionDays)
	}
	if cfg.ActivityCleanupInterval != 24*time.Hour {
		t.Errorf("ActivityCleanupInterval = %v, ожидается 24h", cfg.ActivityCleanupInterval)
	}
	if cfg.DephealthCheckInterval != 15*time.Second {
		t.Errorf("DephealthCheckInterval = %v, ожидается 15s", cfg.DephealthCheckInterval)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("ShutdownTimeout = %v, ожидается 5s", cfg.ShutdownTimeout)
	}
	if cfg.SecureCookies {
		t.Error("SecureCookies = true, ожидается false по умолчанию")
	}
}

func TestLoad_JWTAutoDerive(t *testing.T) {
	setEnvs(t, minimalEnvs())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	expectedIssuer := "https://keycloak.kryukov.lan/realms/api-architect"
	if cfg.JWTIssuer != expectedIssuer {
		t.Errorf("JWTIssuer = %q, ожидается %q", cfg.JWTIssuer, expectedIssuer)
	}

	expectedJWKS := "https://keycloak.kryukov.lan/realms/api-architect/protocol/openid-connect/certs"
	if cfg.JWTJWKSURL != expectedJWKS {
		t.Errorf("JWTJWKSURL = %q, ожидается %q", cfg.JWTJWKSURL, expectedJWKS)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	envs := minimalEnvs()
	envs["DM_PORT"] = "8005"
	envs["DM_LOG_LEVEL"] = "debug"
	envs["DM_LOG_FORMAT"] = "text"
	envs["DM_DB_PORT"] = "5433"
	envs["DM_DB_SSL_MODE"] = "require"
	envs["DM_KEYCLOAK_REALM"] = "custom-realm"
	envs["DM_BROWSER_KEYCLOAK_URL"] = "https://sso.example.com/"
	envs["DM_BACKEND_CA_CERT_PATH"] = "/certs/ca.pem"
	envs["DM_BACKEND_TIMEOUT"] = "10s"
	envs["DM_POLL_INTERVAL"] = "2s"
	envs["DM_CACHE_MAX_OWNERS"] = "100"
	envs["DM_CACHE_TTL"] = "10m"
	envs["DM_ACTIVITY_RETENTION_DAYS"] = "7"
	envs["DM_SECURE_COOKIES"] = "true"
	envs["DM_SHUTDOWN_TIMEOUT"] = "10s"
	setEnvs(t, envs)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	if cfg.Port != 8005 {
		t.Errorf("Port = %d, ожидается 8005", cfg.Port)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, ожидается Debug", cfg.LogLevel)
	}
	if cfg.LogFormat != "text" {
		t.Errorf("LogFormat = %q, ожидается text", cfg.LogFormat)
	}
	if cfg.DBPort != 5433 {
		t.Errorf("DBPort = %d, ожидается 5433", cfg.DBPort)
	}
	if cfg.DBSSLMode != "require" {
		t.Errorf("DBSSLMode = %q, ожидается require", cfg.DBSSLMode)
	}
	if cfg.KeycloakRealm != "custom-realm" {
		t.Errorf("KeycloakRealm = %q, ожидается custom-realm", cfg.KeycloakRealm)
	}
	if cfg.BrowserKeycloakURL != "https://sso.example.com" {
		t.Errorf("BrowserKeycloakURL = %q, ожидается без trailing slash", cfg.BrowserKeycloakURL)
	}
	if cfg.BackendCACertPath != "/certs/ca.pem" {
		t.Errorf("BackendCACertPath = %q, ожидается /certs/ca.pem", cfg.BackendCACertPath)
	}
	if cfg.BackendTimeout != 10*time.Second {
		t.Errorf("BackendTimeout = %v, ожидается 10s", cfg.BackendTimeout)
	}
	if cfg.PollInterval != 2*time.Second {
		t.Errorf("PollInterval = %v, ожидается 2s", cfg.PollInterval)
	}
	if cfg.CacheMaxOwners != 100 {
		t.Errorf("CacheMaxOwners = %d, ожидается 100", cfg.CacheMaxOwners)
	}
	if cfg.CacheTTL != 10*time.Minute {
		t.Errorf("CacheTTL = %v, ожидается 10m", cfg.CacheTTL)
	}
	if cfg.ActivityRetentionDays != 7 {
		t.Errorf("ActivityRetentionDays = %d, ожидается 7", cfg.ActivityRetentionDays)
	}
	if !cfg.SecureCookies {
		t.Error("SecureCookies = false, ожидается true")
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("ShutdownTimeout = %v, ожидается 10s", cfg.ShutdownTimeout)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	requiredVars := []string{
		"DM_DB_HOST", "DM_DB_NAME", "DM_DB_USER", "DM_DB_PASSWORD",
		"DM_KEYCLOAK_URL", "DM_BACKEND_URL",
	}

	for _, missing := range requiredVars {
		t.Run(missing, func(t *testing.T) {
			envs := minimalEnvs()
			delete(envs, missing)
			// Очищаем все переменные окружения
			for k := range minimalEnvs() {
				os.Unsetenv(k)
			}
			setEnvs(t, envs)

			_, err := Load()
			if err == nil {
				t.Errorf("Load() не вернул ошибку при отсутствии %s", missing)
			}
		})
	}
}

func TestLoad_InvalidPort(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"ниже диапазона", "7999"},
		{"выше диапазона", "8010"},
		{"не число", "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			envs := minimalEnvs()
			envs["DM_PORT"] = tt.value
			for k := range minimalEnvs() {
				os.Unsetenv(k)
			}
			setEnvs(t, envs)

			_, err := Load()
			if err == nil {
				t.Errorf("Load() не вернул ошибку при DM_PORT=%q", tt.value)
			}
		})
	}
}

func TestLoad_InvalidLogLevel(t *testing.T) {
	envs := minimalEnvs()
	envs["DM_LOG_LEVEL"] = "verbose"
	for k := range minimalEnvs() {
		os.Unsetenv(k)
	}
	setEnvs(t, envs)

	_, err := Load()
	if err == nil {
		t.Error("Load() не вернул ошибку при DM_LOG_LEVEL=verbose")
	}
}

func TestLoad_InvalidLogFormat(t *testing.T) {
	envs := minimalEnvs()
	envs["DM_LOG_FORMAT"] = "xml"
	for k := range minimalEnvs() {
		os.Unsetenv(k)
	}
	setEnvs(t, envs)

	_, err := Load()
	if err == nil {
		t.Error("Load() не вернул ошибку при DM_LOG_FORMAT=xml")
	}
}

func TestLoad_InvalidSSLMode(t *testing.T) {
	envs := minimalEnvs()
	envs["DM_DB_SSL_MODE"] = "prefer"
	for k := range minimalEnvs() {
		os.Unsetenv(k)
	}
	setEnvs(t, envs)

	_, err := Load()
	if err == nil {
		t.Error("Load() не вернул ошибку при DM_DB_SSL_MODE=prefer")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	envs := minimalEnvs()
	envs["DM_POLL_INTERVAL"] = "abc"
	for k := range minimalEnvs() {
		os.Unsetenv(k)
	}
	setEnvs(t, envs)

	_, err := Load()
	if err == nil {
		t.Error("Load() не вернул ошибку при DM_POLL_INTERVAL=abc")
	}
}

func TestLoad_PollIntervalTooSmall(t *testing.T) {
	envs := minimalEnvs()
	envs["DM_POLL_INTERVAL"] = "100ms"
	for k := range minimalEnvs() {
		os.Unsetenv(k)
	}
	setEnvs(t, envs)

	_, err := Load()
	if err == nil {
		t.Error("Load() не вернул ошибку при DM_POLL_INTERVAL=100ms")
	}
}

func TestLoad_InvalidCacheMaxOwners(t *testing.T) {
	envs := minimalEnvs()
	envs["DM_CACHE_MAX_OWNERS"] = "0"
	for k := range minimalEnvs() {
		os.Unsetenv(k)
	}
	setEnvs(t, envs)

	_, err := Load()
	if err == nil {
		t.Error("Load() не вернул ошибку при DM_CACHE_MAX_OWNERS=0")
	}
}

func TestLoad_URLTrailingSlash(t *testing.T) {
	envs := minimalEnvs()
	envs["DM_KEYCLOAK_URL"] = "https://keycloak.kryukov.lan/"
	envs["DM_BACKEND_URL"] = "https://backend.kryukov.lan/"
	for k := range minimalEnvs() {
		os.Unsetenv(k)
	}
	setEnvs(t, envs)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}
	if cfg.KeycloakURL != "https://keycloak.kryukov.lan" {
		t.Errorf("KeycloakURL = %q, ожидается без trailing slash", cfg.KeycloakURL)
	}
	if cfg.BackendURL != "https://backend.kryukov.lan" {
		t.Errorf("BackendURL = %q, ожидается без trailing slash", cfg.BackendURL)
	}
}

func TestDatabaseDSN(t *testing.T) {
	cfg := &Config{
		DBHost:     "db.example.com",
		DBPort:     5432,
		DBName:     "dashboard",
		DBUser:     "user",
		DBPassword: "pass",
		DBSSLMode:  "disable",
	}
	expected := "host=db.example.com port=5432 dbname=dashboard user=user password=pass sslmode=disable"
	if dsn := cfg.DatabaseDSN(); dsn != expected {
		t.Errorf("DatabaseDSN() = %q, ожидается %q", dsn, expected)
	}
}

func TestSetupLogger(t *testing.T) {
	tests := []struct {
		name   string
		format string
	}{
		{"json", "json"},
		{"text", "text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				LogLevel:  slog.LevelInfo,
				LogFormat: tt.format,
			}
			logger := SetupLogger(cfg)
			if logger == nil {
				t.Error("SetupLogger() вернул nil")
			}
		})
	}
}
