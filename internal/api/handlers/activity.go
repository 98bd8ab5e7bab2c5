// activity.go — обработчик /api/v1/activity.
// Журнал событий жизненного цикла сервисов владельца.
package handlers

import (
	"net/http"
	"strconv"

	apierrors "github.com/arturkryukov/api-architect/dashboard-module/internal/api/errors"
	"github.com/arturkryukov/api-architect/dashboard-module/internal/api/middleware"
	"github.com/arturkryukov/api-architect/dashboard-module/internal/domain/model"
)

// activityListResponse — ответ GET /api/v1/activity.
type activityListResponse struct {
	Items []*model.ActivityEvent `json:"items"`
}

// ListActivity — GET /api/v1/activity.
// Возвращает последние события журнала активности владельца.
func (h *APIHandler) ListActivity(w http.ResponseWriter, r *http.Request) {
	owner := middleware.SubjectFromContext(r.Context())

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			limit = 0
		} else {
			limit = n
		}
	}

	events, err := h.activity.Recent(r.Context(), owner, limit)
	if err != nil {
		h.logger.Error("Ошибка получения журнала активности", "owner", owner, "error", err)
		apierrors.InternalError(w, "Ошибка получения журнала активности")
		return
	}

	if events == nil {
		events = []*model.ActivityEvent{}
	}
	writeJSON(w, http.StatusOK, activityListResponse{Items: events})
}
