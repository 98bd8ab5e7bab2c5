// services.go — JSON-обработчики дашборда для фронтенда.
// Фронтенд (static SPA) опрашивает GET /ui/services и отрисовывает список;
// ответ включает poll_after_ms — интервал следующего опроса — и onboarding
// payload (примеры prompt-ов, число skeleton-карточек) когда список пуст.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/arturkryukov/api-architect/dashboard-module/internal/domain/model"
	"github.com/arturkryukov/api-architect/dashboard-module/internal/genclient"
	"github.com/arturkryukov/api-architect/dashboard-module/internal/service"
	uimiddleware "github.com/arturkryukov/api-architect/dashboard-module/internal/ui/middleware"
)

// ServicesHandler — JSON-обработчики списка сервисов для Dashboard UI.
type ServicesHandler struct {
	flow     *service.Flow
	settings *service.UISettingsService
	activity *service.ActivityService
	logger   *slog.Logger
}

// NewServicesHandler создаёт новый ServicesHandler.
// settings и activity могут быть nil (БД недоступна) — тогда применяются
// значения по умолчанию, а журнал пропускается.
func NewServicesHandler(
	flow *service.Flow,
	settings *service.UISettingsService,
	activity *service.ActivityService,
	logger *slog.Logger,
) *ServicesHandler {
	return &ServicesHandler{
		flow:     flow,
		settings: settings,
		activity: activity,
		logger:   logger.With(slog.String("component", "ui.services")),
	}
}

// serviceView — представление записи сервиса для фронтенда.
// Содержит производные поля (live_url, spec_malformed), чтобы фронтенд
// не дублировал доменную логику.
type serviceView struct {
	ID           string              `json:"id"`
	ServiceName  string              `json:"service_name"`
	Prompt       string              `json:"prompt"`
	Status       model.ServiceStatus `json:"status"`
	LiveURL      string              `json:"live_url,omitempty"`
	ErrorMessage string              `json:"error_message,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
	// Spec-данные для детальной карточки. При испорченном spec
	// SpecMalformed=true, path/method содержат заглушки "—".
	SpecMalformed bool     `json:"spec_malformed"`
	EndpointPath  string   `json:"endpoint_path"`
	Method        string   `json:"endpoint_method"`
	FieldNames    []string `json:"field_names,omitempty"`
}

// listView — ответ GET /ui/services.
type listView struct {
	Items []serviceView `json:"items"`
	Total int           `json:"total"`
	// PollAfterMS — через сколько миллисекунд фронтенд должен повторить опрос.
	PollAfterMS int64 `json:"poll_after_ms"`
	// Onboarding заполняется только при пустом списке.
	Onboarding *onboardingView `json:"onboarding,omitempty"`
}

// onboardingView — payload первого входа: примеры prompt-ов и число
// skeleton-карточек, показываемых во время первоначальной загрузки.
type onboardingView struct {
	SamplePrompts []string `json:"sample_prompts"`
	SkeletonCount int      `json:"skeleton_count"`
}

// createRequest — тело POST /ui/services.
type createRequest struct {
	Prompt string `json:"prompt"`
}

// uiError — формат ошибки UI-эндпоинтов.
type uiError struct {
	Error string `json:"error"`
}

// HandleList — GET /ui/services.
// Возвращает снимок записей владельца и интервал следующего опроса.
func (h *ServicesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	session := uimiddleware.SessionFromContext(r.Context())
	if session == nil {
		writeUIError(w, http.StatusUnauthorized, "Сессия не найдена")
		return
	}

	records, err := h.flow.List(r.Context(), session.Subject)
	if err != nil {
		h.writeFlowError(w, session.Subject, err)
		return
	}

	resp := listView{
		Items:       make([]serviceView, 0, len(records)),
		Total:       len(records),
		PollAfterMS: h.pollInterval(r).Milliseconds(),
	}
	for _, rec := range records {
		resp.Items = append(resp.Items, toServiceView(rec))
	}

	// Пустой список — первый вход: добавляем onboarding payload
	if len(records) == 0 {
		resp.Onboarding = h.onboarding(r)
	}

	writeUIJSON(w, http.StatusOK, resp)
}

// HandleCreate — POST /ui/services.
// Принимает prompt, отправляет на генерацию, возвращает созданную запись.
func (h *ServicesHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	session := uimiddleware.SessionFromContext(r.Context())
	if session == nil {
		writeUIError(w, http.StatusUnauthorized, "Сессия не найдена")
		return
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeUIError(w, http.StatusBadRequest, "Некорректное тело запроса")
		return
	}

	record, err := h.flow.Create(r.Context(), session.Subject, req.Prompt)
	if err != nil {
		if errors.Is(err, genclient.ErrEmptyPrompt) {
			writeUIError(w, http.StatusBadRequest, "Prompt не может быть пустым")
			return
		}
		h.writeFlowError(w, session.Subject, err)
		return
	}

	writeUIJSON(w, http.StatusCreated, toServiceView(record))
}

// HandleDetail — GET /ui/services/{id}.
func (h *ServicesHandler) HandleDetail(w http.ResponseWriter, r *http.Request) {
	session := uimiddleware.SessionFromContext(r.Context())
	if session == nil {
		writeUIError(w, http.StatusUnauthorized, "Сессия не найдена")
		return
	}

	record, err := h.flow.Get(r.Context(), session.Subject, chi.URLParam(r, "id"))
	if err != nil {
		h.writeFlowError(w, session.Subject, err)
		return
	}

	writeUIJSON(w, http.StatusOK, toServiceView(record))
}

// HandleDelete — DELETE /ui/services/{id}.
// Возвращает сообщение backend (может быть пустым).
func (h *ServicesHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	session := uimiddleware.SessionFromContext(r.Context())
	if session == nil {
		writeUIError(w, http.StatusUnauthorized, "Сессия не найдена")
		return
	}

	message, err := h.flow.Delete(r.Context(), session.Subject, chi.URLParam(r, "id"))
	if err != nil {
		h.writeFlowError(w, session.Subject, err)
		return
	}

	writeUIJSON(w, http.StatusOK, map[string]string{"message": message})
}

// HandleArtifact — GET /ui/services/{id}/artifact.
// Возвращает ссылку на скачивание архива исходников.
func (h *ServicesHandler) HandleArtifact(w http.ResponseWriter, r *http.Request) {
	session := uimiddleware.SessionFromContext(r.Context())
	if session == nil {
		writeUIError(w, http.StatusUnauthorized, "Сессия не найдена")
		return
	}

	url, err := h.flow.ArtifactLink(r.Context(), session.Subject, chi.URLParam(r, "id"))
	if err != nil {
		h.writeFlowError(w, session.Subject, err)
		return
	}

	writeUIJSON(w, http.StatusOK, map[string]string{"download_url": url})
}

// HandleLogs — GET /ui/services/{id}/logs.
// Проксирует журнал сборки как скачиваемый файл.
func (h *ServicesHandler) HandleLogs(w http.ResponseWriter, r *http.Request) {
	session := uimiddleware.SessionFromContext(r.Context())
	if session == nil {
		writeUIError(w, http.StatusUnauthorized, "Сессия не найдена")
		return
	}

	id := chi.URLParam(r, "id")
	content, filename, err := h.flow.BuildLogs(r.Context(), session.Subject, id)
	if err != nil {
		h.writeFlowError(w, session.Subject, err)
		return
	}

	if filename == "" {
		filename = "build-" + id + ".log"
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(content)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content)
}

// pollInterval возвращает интервал опроса из настроек (default 5s).
func (h *ServicesHandler) pollInterval(r *http.Request) time.Duration {
	if h.settings == nil {
		return 5 * time.Second
	}
	return h.settings.GetPollInterval(r.Context())
}

// onboarding собирает payload первого входа из настроек.
func (h *ServicesHandler) onboarding(r *http.Request) *onboardingView {
	ob := &onboardingView{SkeletonCount: 3}
	if h.settings != nil {
		ob.SkeletonCount = h.settings.GetSkeletonCount(r.Context())
		ob.SamplePrompts = h.settings.GetSamplePrompts(r.Context())
	}
	return ob
}

// writeFlowError маппит ошибки Flow/genclient на HTTP-статусы UI.
func (h *ServicesHandler) writeFlowError(w http.ResponseWriter, owner string, err error) {
	switch {
	case service.IsNotFound(err):
		writeUIError(w, http.StatusNotFound, "Сервис не найден")
	case errors.Is(err, service.ErrNoCredential), errors.Is(err, genclient.ErrUnauthenticated):
		writeUIError(w, http.StatusUnauthorized, "Требуется повторный вход")
	default:
		// Ошибка с ответом backend — отдаём его текст как детали,
		// чтобы фронтенд показал причину в уведомлении.
		var reqErr *genclient.RequestError
		if errors.As(err, &reqErr) {
			detail := reqErr.Body
			if detail == "" {
				detail = "Generation backend недоступен"
			}
			writeUIError(w, http.StatusBadGateway, detail)
			return
		}
		h.logger.Error("Ошибка обращения к generation backend",
			slog.String("owner", owner),
			slog.String("error", err.Error()),
		)
		writeUIError(w, http.StatusBadGateway, "Generation backend недоступен")
	}
}

// toServiceView преобразует доменную запись в представление фронтенда.
func toServiceView(rec *model.ServiceRecord) serviceView {
	v := serviceView{
		ID:            rec.ID,
		ServiceName:   rec.ServiceName,
		Prompt:        rec.Prompt,
		Status:        rec.Status,
		ErrorMessage:  rec.ErrorMessage,
		CreatedAt:     rec.CreatedAt,
		UpdatedAt:     rec.UpdatedAt,
		SpecMalformed: rec.Spec.IsMalformed(),
		EndpointPath:  rec.Spec.EndpointPath(),
		Method:        rec.Spec.EndpointMethod(),
		FieldNames:    rec.Spec.FieldNames(),
	}
	if url, ok := rec.LiveURL(); ok {
		v.LiveURL = url
	}
	return v
}

// writeUIJSON сериализует ответ UI-эндпоинта.
func writeUIJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeUIError пишет JSON-ошибку UI-эндпоинта.
func writeUIError(w http.ResponseWriter, status int, msg string) {
	writeUIJSON(w, status, uiError{Error: msg})
}
