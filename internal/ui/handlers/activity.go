// activity.go — JSON-обработчик журнала действий для Dashboard UI.
package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/arturkryukov/api-architect/dashboard-module/internal/service"
	uimiddleware "github.com/arturkryukov/api-architect/dashboard-module/internal/ui/middleware"
)

// activityLimitDefault — число событий журнала по умолчанию.
const activityLimitDefault = 20

// ActivityHandler — обработчик панели «Последние действия».
type ActivityHandler struct {
	activity *service.ActivityService
	logger   *slog.Logger
}

// NewActivityHandler создаёт новый ActivityHandler.
// activity может быть nil — тогда возвращается пустой журнал.
func NewActivityHandler(activity *service.ActivityService, logger *slog.Logger) *ActivityHandler {
	return &ActivityHandler{
		activity: activity,
		logger:   logger.With(slog.String("component", "ui.activity")),
	}
}

// activityView — представление события журнала для фронтенда.
type activityView struct {
	ServiceID   string    `json:"service_id"`
	ServiceName string    `json:"service_name"`
	Event       string    `json:"event"`
	Detail      string    `json:"detail,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// HandleList — GET /ui/activity?limit=N.
func (h *ActivityHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	session := uimiddleware.SessionFromContext(r.Context())
	if session == nil {
		writeUIError(w, http.StatusUnauthorized, "Сессия не найдена")
		return
	}

	limit := activityLimitDefault
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 && l <= 100 {
		limit = l
	}

	items := make([]activityView, 0, limit)
	if h.activity != nil {
		events, err := h.activity.Recent(r.Context(), session.Subject, limit)
		if err != nil {
			h.logger.Error("Ошибка чтения журнала действий",
				slog.String("owner", session.Subject),
				slog.String("error", err.Error()),
			)
			writeUIError(w, http.StatusInternalServerError, "Ошибка чтения журнала")
			return
		}
		for _, e := range events {
			items = append(items, activityView{
				ServiceID:   e.ServiceID,
				ServiceName: e.ServiceName,
				Event:       e.Action,
				Detail:      e.Detail,
				OccurredAt:  e.OccurredAt,
			})
		}
	}

	writeUIJSON(w, http.StatusOK, map[string]any{"items": items})
}
