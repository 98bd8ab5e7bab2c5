// Пакет server — HTTP-сервер Dashboard Module с graceful shutdown.
// Без TLS — HTTP внутри кластера, TLS termination на API Gateway.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/arturkryukov/api-architect/dashboard-module/internal/api/contract"
	"github.com/arturkryukov/api-architect/dashboard-module/internal/api/handlers"
	"github.com/arturkryukov/api-architect/dashboard-module/internal/api/middleware"
	"github.com/arturkryukov/api-architect/dashboard-module/internal/config"
	uihandlers "github.com/arturkryukov/api-architect/dashboard-module/internal/ui/handlers"
	uimiddleware "github.com/arturkryukov/api-architect/dashboard-module/internal/ui/middleware"
	"github.com/arturkryukov/api-architect/dashboard-module/internal/ui/static"
)

// UIHandlers — набор обработчиков Dashboard UI для регистрации маршрутов.
type UIHandlers struct {
	Auth      *uihandlers.AuthHandler
	Dashboard *uihandlers.DashboardHandler
	Services  *uihandlers.ServicesHandler
	Activity  *uihandlers.ActivityHandler
	// SessionAuth — middleware проверки UI-сессии.
	SessionAuth *uimiddleware.UIAuth
}

// Server — HTTP-сервер Dashboard Module.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт новый HTTP-сервер с настроенными routes и middleware.
// jwtAuth — JWT middleware для /api/v1 (может быть nil для тестирования без auth).
// ui — обработчики Dashboard UI (может быть nil — тогда UI-маршруты не регистрируются).
func New(cfg *config.Config, logger *slog.Logger, api *handlers.APIHandler, jwtAuth *middleware.JWTAuth, ui *UIHandlers) *Server {
	router := chi.NewRouter()

	// Глобальные middleware (применяются ко ВСЕМ маршрутам)
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))

	// Публичные endpoints: health-пробы Kubernetes и метрики Prometheus
	router.Get("/health/live", api.HealthLive)
	router.Get("/health/ready", api.HealthReady)
	router.Get("/metrics", api.GetMetrics)

	// REST API — JWT-аутентификация
	router.Route("/api/v1", func(r chi.Router) {
		if jwtAuth != nil {
			r.Use(jwtAuth.Middleware())
		}

		r.Get("/openapi.json", contract.Handler())

		r.Get("/services", api.ListServices)
		r.Post("/services/generate", api.GenerateService)
		r.Get("/services/{id}", api.GetService)
		r.Delete("/services/{id}", api.DeleteService)
		r.Get("/services/{id}/artifact", api.GetServiceArtifact)
		r.Get("/services/{id}/logs", api.GetServiceLogs)

		r.Get("/activity", api.ListActivity)

		r.Get("/settings", api.ListSettings)
		r.Put("/settings/{key}", api.UpdateSetting)
	})

	// Dashboard UI — cookie-сессия
	if ui != nil {
		registerUIRoutes(router, ui)

		// Корень редиректит на дашборд
		router.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/ui/", http.StatusFound)
		})
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// registerUIRoutes регистрирует маршруты Dashboard UI.
// Login/callback/logout и статика доступны без сессии,
// остальные маршруты проходят через SessionAuth middleware.
func registerUIRoutes(router chi.Router, ui *UIHandlers) {
	router.Route("/ui", func(r chi.Router) {
		// Публичные маршруты auth flow
		r.Get("/login", ui.Auth.HandleLogin)
		r.Get("/callback", ui.Auth.HandleCallback)
		r.Post("/logout", ui.Auth.HandleLogout)

		// Статика (HTML-оболочка сама требует сессию через /ui/session)
		r.Handle("/static/*", http.StripPrefix("/ui/static/", http.FileServer(static.FileSystem())))

		// Защищённые маршруты
		r.Group(func(r chi.Router) {
			r.Use(ui.SessionAuth.Middleware())

			r.Get("/", ui.Dashboard.HandleIndex)
			r.Get("/session", ui.Dashboard.HandleSession)

			r.Get("/services", ui.Services.HandleList)
			r.Post("/services", ui.Services.HandleCreate)
			r.Get("/services/{id}", ui.Services.HandleDetail)
			r.Delete("/services/{id}", ui.Services.HandleDelete)
			r.Get("/services/{id}/artifact", ui.Services.HandleArtifact)
			r.Get("/services/{id}/logs", ui.Services.HandleLogs)

			r.Get("/activity", ui.Activity.HandleList)
		})
	})
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	// Канал для ошибок сервера
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
