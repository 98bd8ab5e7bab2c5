// Пакет handlers — HTTP-обработчики Dashboard UI.
package handlers

import (
	"log/slog"
	"net/http"

	uimiddleware "github.com/arturkryukov/api-architect/dashboard-module/internal/ui/middleware"
	"github.com/arturkryukov/api-architect/dashboard-module/internal/ui/static"
)

// DashboardHandler — обработчик оболочки дашборда.
type DashboardHandler struct {
	logger *slog.Logger
}

// NewDashboardHandler создаёт новый DashboardHandler.
func NewDashboardHandler(logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{
		logger: logger.With(slog.String("component", "ui.dashboard")),
	}
}

// HandleIndex обрабатывает GET /ui/ — отдаёт HTML-оболочку дашборда.
// Данные оболочка получает сама через JSON-эндпоинты /ui/services и /ui/activity.
func (h *DashboardHandler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	session := uimiddleware.SessionFromContext(r.Context())
	if session == nil {
		http.Redirect(w, r, "/ui/login", http.StatusFound)
		return
	}

	page, err := static.Index()
	if err != nil {
		h.logger.Error("Ошибка чтения встроенной оболочки дашборда",
			slog.String("error", err.Error()),
		)
		http.Error(w, "Ошибка сервера", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(page)
}

// HandleSession обрабатывает GET /ui/session — данные текущего пользователя
// для шапки дашборда.
func (h *DashboardHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	session := uimiddleware.SessionFromContext(r.Context())
	if session == nil {
		writeUIError(w, http.StatusUnauthorized, "Сессия не найдена")
		return
	}

	writeUIJSON(w, http.StatusOK, map[string]string{
		"username": session.Username,
		"email":    session.Email,
	})
}
