// settings.go — обработчики /api/v1/settings.
// Просмотр и изменение настроек дашборда.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/arturkryukov/api-architect/dashboard-module/internal/api/errors"
	"github.com/arturkryukov/api-architect/dashboard-module/internal/api/middleware"
	"github.com/arturkryukov/api-architect/dashboard-module/internal/service"
)

// settingDTO — представление настройки в API.
type settingDTO struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
	UpdatedBy string    `json:"updated_by"`
}

// settingsListResponse — ответ GET /api/v1/settings.
type settingsListResponse struct {
	Items []settingDTO `json:"items"`
}

// settingUpdateRequest — тело PUT /api/v1/settings/{key}.
type settingUpdateRequest struct {
	Value string `json:"value"`
}

// ListSettings — GET /api/v1/settings.
// Возвращает все настройки дашборда.
func (h *APIHandler) ListSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settings.List(r.Context())
	if err != nil {
		h.logger.Error("Ошибка получения настроек", "error", err)
		apierrors.InternalError(w, "Ошибка получения настроек")
		return
	}

	items := make([]settingDTO, len(settings))
	for i, s := range settings {
		items[i] = settingDTO{
			Key:       s.Key,
			Value:     s.Value,
			UpdatedAt: s.UpdatedAt,
			UpdatedBy: s.UpdatedBy,
		}
	}

	writeJSON(w, http.StatusOK, settingsListResponse{Items: items})
}

// UpdateSetting — PUT /api/v1/settings/{key}.
// Устанавливает значение настройки (ключ валидируется сервисом).
func (h *APIHandler) UpdateSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var req settingUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	updatedBy := ""
	if claims != nil {
		updatedBy = claims.PreferredUsername
	}

	if err := h.settings.Set(r.Context(), key, req.Value, updatedBy); err != nil {
		if errors.Is(err, service.ErrValidation) {
			apierrors.ValidationError(w, err.Error())
			return
		}
		h.logger.Error("Ошибка сохранения настройки", "key", key, "error", err)
		apierrors.InternalError(w, "Ошибка сохранения настройки")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
