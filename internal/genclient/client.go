// Пакет genclient — HTTP-клиент generation backend (REST API генерации сервисов).
// Поддерживает TLS с кастомным CA (DM_BACKEND_CA_CERT_PATH).
// Операции: ListServices, Generate, Delete, ArtifactLink, BuildLogs.
// Каждый запрос авторизуется токеном пользователя через TokenProvider.
package genclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/arturkryukov/api-architect/dashboard-module/internal/domain/model"
)

// Prometheus-метрики запросов к generation backend.
var (
	backendRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dm_backend_requests_total",
		Help: "Количество запросов к generation backend",
	}, []string{"operation", "outcome"}) // outcome: ok, error

	backendRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dm_backend_request_duration_seconds",
		Help:    "Длительность запросов к generation backend",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
)

// Ошибки клиента.
var (
	// ErrUnauthenticated — не удалось получить токен пользователя
	// в отведённое время (сессия отсутствует или refresh не прошёл).
	ErrUnauthenticated = errors.New("нет учётных данных пользователя")
	// ErrEmptyPrompt — prompt пуст после trim; запрос к backend не выполняется.
	ErrEmptyPrompt = errors.New("prompt не может быть пустым")
)

// RequestError — не-2xx ответ backend. Несёт статус и сырой текст тела:
// именно он показывается пользователю как детали ошибки.
type RequestError struct {
	// Operation — имя операции клиента (list, generate, delete, ...).
	Operation string
	// StatusCode — HTTP-статус ответа.
	StatusCode int
	// Body — сырой текст тела ответа.
	Body string
}

// Error реализует error.
func (e *RequestError) Error() string {
	return fmt.Sprintf("backend %s вернул статус %d: %s", e.Operation, e.StatusCode, e.Body)
}

// IsNotFound возвращает true для ответа 404 (сервис уже удалён на backend).
func (e *RequestError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// TokenProvider — функция, возвращающая bearer-токен текущего пользователя.
// Реализуется поверх UI-сессии (с авто-refresh) либо API bearer из запроса.
// Ограничение по времени — через ctx.
type TokenProvider func(ctx context.Context) (string, error)

// Client — HTTP-клиент generation backend.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	tokenProvider TokenProvider
	logger        *slog.Logger
}

// New создаёт клиент generation backend.
// baseURL — базовый URL REST API (без trailing slash).
// caCertPath — путь к CA-сертификату для TLS (пустая строка — стандартный пул).
// tokenProvider — источник bearer-токена пользователя.
func New(baseURL, caCertPath string, tokenProvider TokenProvider, logger *slog.Logger) (*Client, error) {
	httpClient := &http.Client{Timeout: 30 * time.Second}

	if caCertPath != "" {
		tlsConfig, err := buildTLSConfig(caCertPath)
		if err != nil {
			return nil, fmt.Errorf("загрузка CA-сертификата backend: %w", err)
		}
		httpClient.Transport = &http.Transport{
			TLSClientConfig: tlsConfig,
		}
		logger.Info("CA-сертификат backend добавлен в пул доверия",
			slog.String("ca_cert", caCertPath),
		)
	}

	return &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		httpClient:    httpClient,
		tokenProvider: tokenProvider,
		logger:        logger.With(slog.String("component", "gen_client")),
	}, nil
}

// WithTokenProvider возвращает копию клиента с другим источником токенов.
// Используется API-слоем: bearer вызывающего пробрасывается в backend как есть.
func (c *Client) WithTokenProvider(tp TokenProvider) *Client {
	cp := *c
	cp.tokenProvider = tp
	return &cp
}

// buildTLSConfig создаёт TLS-конфигурацию с кастомным CA.
func buildTLSConfig(caCertPath string) (*tls.Config, error) {
	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return nil, fmt.Errorf("чтение CA-сертификата: %w", err)
	}

	caCertPool, err := x509.SystemCertPool()
	if err != nil {
		caCertPool = x509.NewCertPool()
	}
	caCertPool.AppendCertsFromPEM(caCert)

	return &tls.Config{
		RootCAs: caCertPool,
	}, nil
}

// ListServices запрашивает все сервисы текущего пользователя.
// GET /services. Backend фильтрует по владельцу из токена.
func (c *Client) ListServices(ctx context.Context) ([]*model.ServiceRecord, error) {
	resp, err := c.do(ctx, "list", http.MethodGet, "/services", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var records []*model.ServiceRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("декодирование списка сервисов: %w", err)
	}
	return records, nil
}

// generateRequest — тело POST /services/generate.
type generateRequest struct {
	Prompt string `json:"prompt"`
}

// Generate отправляет prompt на генерацию нового сервиса.
// POST /services/generate. Пустой (после trim) prompt отклоняется локально,
// без обращения к сети. Backend отвечает записью в статусе PENDING
// (или BUILDING, если сборка успела стартовать).
func (c *Client) Generate(ctx context.Context, prompt string) (*model.ServiceRecord, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}

	body, err := json.Marshal(generateRequest{Prompt: prompt})
	if err != nil {
		return nil, fmt.Errorf("сериализация prompt: %w", err)
	}

	resp, err := c.do(ctx, "generate", http.MethodPost, "/services/generate", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var record model.ServiceRecord
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		return nil, fmt.Errorf("декодирование созданной записи: %w", err)
	}
	return &record, nil
}

// deleteResponse — JSON-тело ответа DELETE (вариант с сообщением).
type deleteResponse struct {
	Message string `json:"message"`
}

// Delete запрашивает удаление сервиса. DELETE /services/{id}.
// Backend отвечает либо 204 без тела, либо 200 с {"message": ...} —
// клиент принимает оба варианта. Повторный вызов для уже удалённого id
// возвращает RequestError (404), не повторяется автоматически.
func (c *Client) Delete(ctx context.Context, serviceID string) (string, error) {
	resp, err := c.do(ctx, "delete", http.MethodDelete, "/services/"+serviceID, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return "", nil
	}

	var dr deleteResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		// Тело не JSON — не ошибка: достаточно успешного статуса.
		return "", nil
	}
	return dr.Message, nil
}

// artifactResponse — ответ GET /services/{id}/artifact.
type artifactResponse struct {
	DownloadURL string `json:"download_url"`
}

// ArtifactLink возвращает ссылку на скачивание архива исходников.
// GET /services/{id}/artifact.
func (c *Client) ArtifactLink(ctx context.Context, serviceID string) (string, error) {
	resp, err := c.do(ctx, "artifact", http.MethodGet, "/services/"+serviceID+"/artifact", nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var ar artifactResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return "", fmt.Errorf("декодирование ссылки на артефакт: %w", err)
	}
	return ar.DownloadURL, nil
}

// BuildLogs скачивает журнал сборки сервиса. GET /services/{id}/logs.
// Имя файла берётся из Content-Disposition; при отсутствии или
// нечитаемом заголовке — детерминированное build-<id>.log.
func (c *Client) BuildLogs(ctx context.Context, serviceID string) ([]byte, string, error) {
	resp, err := c.do(ctx, "logs", http.MethodGet, "/services/"+serviceID+"/logs", nil)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("чтение журнала сборки: %w", err)
	}

	filename := ParseDispositionFilename(resp.Header.Get("Content-Disposition"))
	if filename == "" {
		filename = fmt.Sprintf("build-%s.log", serviceID)
	}
	return content, filename, nil
}

// do выполняет запрос к backend: получает токен, проставляет заголовки,
// отправляет запрос и превращает не-2xx ответ в RequestError.
// Вызывающий обязан закрыть resp.Body при err == nil.
func (c *Client) do(ctx context.Context, operation, method, path string, body []byte) (*http.Response, error) {
	token, err := c.tokenProvider(ctx)
	if err != nil {
		c.logger.Debug("Токен пользователя не получен",
			slog.String("operation", operation),
			slog.String("error", err.Error()),
		)
		// Join сохраняет исходную причину для errors.Is вызывающего.
		return nil, errors.Join(ErrUnauthenticated, err)
	}
	if token == "" {
		return nil, ErrUnauthenticated
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("создание запроса %s: %w", operation, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	backendRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		backendRequestsTotal.WithLabelValues(operation, "error").Inc()
		return nil, fmt.Errorf("запрос %s к backend: %w", operation, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		backendRequestsTotal.WithLabelValues(operation, "error").Inc()
		return nil, &RequestError{
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(respBody)),
		}
	}

	backendRequestsTotal.WithLabelValues(operation, "ok").Inc()
	return resp, nil
}
