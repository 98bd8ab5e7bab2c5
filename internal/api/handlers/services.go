// services.go — обработчики /api/v1/services endpoints.
// Список, генерация из промпта, удаление, артефакт, лог сборки.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	openapi_types "github.com/oapi-codegen/runtime/types"

	apierrors "github.com/arturkryukov/api-architect/dashboard-module/internal/api/errors"
	"github.com/arturkryukov/api-architect/dashboard-module/internal/api/middleware"
	"github.com/arturkryukov/api-architect/dashboard-module/internal/domain/model"
	"github.com/arturkryukov/api-architect/dashboard-module/internal/genclient"
	"github.com/arturkryukov/api-architect/dashboard-module/internal/service"
)

// serviceListResponse — ответ GET /api/v1/services.
type serviceListResponse struct {
	Items []*model.ServiceRecord `json:"items"`
	Total int                    `json:"total"`
}

// generateRequest — тело POST /api/v1/services/generate.
type generateRequest struct {
	Prompt string `json:"prompt"`
}

// artifactResponse — ответ GET /api/v1/services/{id}/artifact.
type artifactResponse struct {
	DownloadURL string `json:"download_url"`
}

// ListServices — GET /api/v1/services.
// Возвращает кэшированный список сервисов владельца
// (первый запрос заполняет кэш из бэкенда).
func (h *APIHandler) ListServices(w http.ResponseWriter, r *http.Request) {
	owner := middleware.SubjectFromContext(r.Context())

	records, err := h.flow.List(r.Context(), owner)
	if err != nil {
		h.writeFlowError(w, "получение списка сервисов", err)
		return
	}

	if records == nil {
		records = []*model.ServiceRecord{}
	}
	writeJSON(w, http.StatusOK, serviceListResponse{Items: records, Total: len(records)})
}

// GenerateService — POST /api/v1/services/generate.
// Создаёт сервис из natural-language промпта. Возвращает 201 с записью
// (оптимистичная вставка в кэш, статусы придут через опрос).
func (h *APIHandler) GenerateService(w http.ResponseWriter, r *http.Request) {
	owner := middleware.SubjectFromContext(r.Context())

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	record, err := h.flow.Create(r.Context(), owner, req.Prompt)
	if err != nil {
		if errors.Is(err, genclient.ErrEmptyPrompt) {
			apierrors.ValidationError(w, "Prompt не может быть пустым")
			return
		}
		h.writeFlowError(w, "генерация сервиса", err)
		return
	}

	writeJSON(w, http.StatusCreated, record)
}

// GetService — GET /api/v1/services/{id}.
// Возвращает одну запись сервиса из кэша.
func (h *APIHandler) GetService(w http.ResponseWriter, r *http.Request) {
	owner := middleware.SubjectFromContext(r.Context())

	id, ok := parseServiceID(w, r)
	if !ok {
		return
	}

	record, err := h.flow.Get(r.Context(), owner, id.String())
	if err != nil {
		h.writeFlowError(w, "получение сервиса", err)
		return
	}

	writeJSON(w, http.StatusOK, record)
}

// DeleteService — DELETE /api/v1/services/{id}.
// Запускает удаление на бэкенде с оптимистичным переводом в DELETING.
// Возвращает 204: фактическое исчезновение записи подтверждает опрос.
func (h *APIHandler) DeleteService(w http.ResponseWriter, r *http.Request) {
	owner := middleware.SubjectFromContext(r.Context())

	id, ok := parseServiceID(w, r)
	if !ok {
		return
	}

	if _, err := h.flow.Delete(r.Context(), owner, id.String()); err != nil {
		h.writeFlowError(w, "удаление сервиса", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetServiceArtifact — GET /api/v1/services/{id}/artifact.
// Возвращает ссылку на архив исходников сервиса.
func (h *APIHandler) GetServiceArtifact(w http.ResponseWriter, r *http.Request) {
	owner := middleware.SubjectFromContext(r.Context())

	id, ok := parseServiceID(w, r)
	if !ok {
		return
	}

	url, err := h.flow.ArtifactLink(r.Context(), owner, id.String())
	if err != nil {
		h.writeFlowError(w, "получение артефакта", err)
		return
	}

	writeJSON(w, http.StatusOK, artifactResponse{DownloadURL: url})
}

// GetServiceLogs — GET /api/v1/services/{id}/logs.
// Отдаёт лог сборки как attachment. Имя файла берётся из
// Content-Disposition бэкенда, при его отсутствии — build-<id>.log.
func (h *APIHandler) GetServiceLogs(w http.ResponseWriter, r *http.Request) {
	owner := middleware.SubjectFromContext(r.Context())

	id, ok := parseServiceID(w, r)
	if !ok {
		return
	}

	data, filename, err := h.flow.BuildLogs(r.Context(), owner, id.String())
	if err != nil {
		h.writeFlowError(w, "получение лога сборки", err)
		return
	}

	if filename == "" {
		filename = fmt.Sprintf("build-%s.log", id.String())
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// --- Вспомогательные функции ---

// parseServiceID извлекает и разбирает UUID сервиса из пути.
// При ошибке пишет 400 и возвращает false.
func parseServiceID(w http.ResponseWriter, r *http.Request) (openapi_types.UUID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		apierrors.ValidationError(w, "Некорректный ID сервиса: "+raw)
		return openapi_types.UUID{}, false
	}
	return id, true
}

// writeFlowError маппит ошибки сервисного слоя на HTTP-ответы.
func (h *APIHandler) writeFlowError(w http.ResponseWriter, operation string, err error) {
	switch {
	case errors.Is(err, service.ErrServiceNotFound):
		apierrors.NotFound(w, "Сервис не найден")
	case errors.Is(err, service.ErrNoCredential), errors.Is(err, genclient.ErrUnauthenticated):
		apierrors.Unauthorized(w, "Требуется повторная аутентификация")
	default:
		var reqErr *genclient.RequestError
		if errors.As(err, &reqErr) {
			if reqErr.IsNotFound() {
				apierrors.NotFound(w, "Сервис не найден")
				return
			}
			apierrors.BackendUnavailable(w, reqErr.Body)
			return
		}
		h.logger.Error("Ошибка операции", "operation", operation, "error", err)
		apierrors.BackendUnavailable(w, "Генерационный бэкенд недоступен")
	}
}
