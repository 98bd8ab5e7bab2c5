// Точка входа Dashboard Module — BFF системы API Architect.
// Загружает конфигурацию, подключается к PostgreSQL, применяет миграции,
// создаёт клиент generation backend, кэш, poller и сервисный слой,
// запускает фоновые задачи (очистка журнала, topologymetrics),
// HTTP-сервер с JWT middleware, Dashboard UI и graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/arturkryukov/api-architect/dashboard-module/internal/api/contract"
	"github.com/arturkryukov/api-architect/dashboard-module/internal/api/handlers"
	"github.com/arturkryukov/api-architect/dashboard-module/internal/api/middleware"
	"github.com/arturkryukov/api-architect/dashboard-module/internal/config"
	"github.com/arturkryukov/api-architect/dashboard-module/internal/database"
	"github.com/arturkryukov/api-architect/dashboard-module/internal/genclient"
	"github.com/arturkryukov/api-architect/dashboard-module/internal/repository"
	"github.com/arturkryukov/api-architect/dashboard-module/internal/server"
	"github.com/arturkryukov/api-architect/dashboard-module/internal/service"
	"github.com/arturkryukov/api-architect/dashboard-module/internal/ui/auth"
	uihandlers "github.com/arturkryukov/api-architect/dashboard-module/internal/ui/handlers"
	uimiddleware "github.com/arturkryukov/api-architect/dashboard-module/internal/ui/middleware"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Dashboard Module запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	// 2.1 Валидация встроенного OpenAPI-контракта.
	// Испорченный контракт должен ронять процесс на старте,
	// а не отдавать 500 на первом запросе /openapi.json.
	if _, err := contract.Load(); err != nil {
		logger.Error("Ошибка валидации OpenAPI-контракта", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if os.Getenv("DM_DEPHEALTH_GROUP") == "" {
		logger.Warn("DM_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
			slog.String("default", cfg.DephealthGroup),
		)
	}

	// 3. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 4.1 Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode).
	// Проверка здоровья PostgreSQL идёт через существующий пул соединений,
	// что позволяет обнаружить его исчерпание.
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. Реестр токенов владельцев: каждый аутентифицированный запрос
	// регистрирует здесь свой access token для фонового опроса backend
	credStore := service.NewCredentialStore()

	// 6. Клиент generation backend (базовый, без токена —
	// per-owner копии создаются фабрикой ниже)
	genClient, err := genclient.New(cfg.BackendURL, cfg.BackendCACertPath, nil, logger)
	if err != nil {
		logger.Error("Ошибка создания клиента generation backend", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Клиент generation backend создан", slog.String("url", cfg.BackendURL))

	// 7. Repositories
	activityRepo := repository.NewActivityLogRepository(pool)
	uiSettingsRepo := repository.NewUISettingsRepository(pool)

	// 8. Services
	activitySvc := service.NewActivityService(activityRepo, logger)
	uiSettingsSvc := service.NewUISettingsService(uiSettingsRepo, logger)

	cache := service.NewCacheStore(cfg.CacheMaxOwners, cfg.CacheTTL)

	// Фабрика per-owner клиентов: токен владельца берётся из CredentialStore
	backendFor := func(owner string) *genclient.Client {
		return genClient.WithTokenProvider(credStore.Provider(owner))
	}

	poller := service.NewPoller(cache,
		func(owner string) service.Lister { return backendFor(owner) },
		activitySvc, cfg.PollInterval, logger,
	)

	flow := service.NewFlow(cache,
		func(owner string) service.Backend { return backendFor(owner) },
		poller, activitySvc, logger,
	)

	// 9. Readiness checkers (PostgreSQL + Keycloak + generation backend)
	pgChecker := database.NewReadinessChecker(pool)
	kcChecker, err := middleware.NewKeycloakReadinessChecker(cfg.JWTJWKSURL, cfg.BackendCACertPath, cfg.OIDCClientTimeout)
	if err != nil {
		logger.Error("Ошибка создания Keycloak readiness checker", slog.String("error", err.Error()))
		os.Exit(1)
	}
	backendChecker := genClient.NewReadinessChecker(cfg.BackendTimeout)
	healthHandler := handlers.NewHealthHandler(pgChecker, kcChecker, backendChecker)

	// 10. API handler
	apiHandler := handlers.NewAPIHandler(healthHandler, flow, activitySvc, uiSettingsSvc, logger)

	// 11. JWT middleware: валидация bearer + регистрация токена в CredentialStore
	jwtAuth, err := middleware.NewJWTAuth(
		cfg.JWTJWKSURL,
		cfg.BackendCACertPath,
		cfg.JWTIssuer,
		credStore,
		cfg.OIDCClientTimeout,
		middleware.DefaultJWKSRefreshInterval,
		middleware.DefaultJWTLeeway,
		logger,
	)
	if err != nil {
		logger.Error("Ошибка создания JWT middleware", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer jwtAuth.Close()
	logger.Info("JWT middleware инициализирован",
		slog.String("jwks_url", cfg.JWTJWKSURL),
		slog.String("issuer", cfg.JWTIssuer),
	)

	// 12. Фоновая очистка журнала действий
	activitySvc.StartCleanup(ctx, cfg.ActivityRetentionDays, cfg.ActivityCleanupInterval)

	// 12.1 topologymetrics — мониторинг зависимостей
	var dephealthSvc *service.DephealthService
	dephealthSvc, dephealthErr := service.NewDephealthService(
		"dashboard-module",
		cfg.DephealthGroup,
		pgDB,
		cfg.DatabaseURL(),
		cfg.JWTJWKSURL,
		cfg.BackendURL,
		cfg.DephealthCheckInterval,
		logger,
	)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
	} else {
		if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics",
				slog.String("error", startErr.Error()),
			)
		} else {
			logger.Info("topologymetrics запущен",
				slog.String("group", cfg.DephealthGroup),
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
		}
	}

	// 13. Dashboard UI
	secureCookie := cfg.SecureCookies || strings.HasPrefix(cfg.KeycloakURL, "https")

	sessionMgr, err := auth.NewSessionManager(cfg.SessionSecret, secureCookie)
	if err != nil {
		logger.Error("Ошибка создания Session Manager", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if cfg.SessionSecret == "" {
		logger.Warn("DM_SESSION_SECRET не задан, UI-сессии не сохраняются между рестартами")
	}

	// OIDC-клиент для авторизации через Keycloak (PKCE)
	oidcClient := auth.NewOIDCClient(auth.OIDCConfig{
		KeycloakURL:        cfg.KeycloakURL,
		BrowserKeycloakURL: cfg.BrowserKeycloakURL,
		Realm:              cfg.KeycloakRealm,
		ClientID:           cfg.KeycloakClientID,
		Timeout:            cfg.OIDCClientTimeout,
	})

	ui := &server.UIHandlers{
		Auth:        uihandlers.NewAuthHandler(oidcClient, sessionMgr, secureCookie, logger),
		Dashboard:   uihandlers.NewDashboardHandler(logger),
		Services:    uihandlers.NewServicesHandler(flow, uiSettingsSvc, activitySvc, logger),
		Activity:    uihandlers.NewActivityHandler(activitySvc, logger),
		SessionAuth: uimiddleware.NewUIAuth(sessionMgr, oidcClient, credStore, logger),
	}
	logger.Info("Dashboard UI инициализирован",
		slog.String("oidc_client_id", cfg.KeycloakClientID),
		slog.Bool("secure_cookie", secureCookie),
	)

	// 14. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, apiHandler, jwtAuth, ui)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 15. Graceful shutdown фоновых задач
	logger.Info("Останавливаем фоновые задачи...")

	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}
	poller.Stop()
	activitySvc.StopCleanup()

	logger.Info("Dashboard Module остановлен")
}
