// readiness.go — проверка доступности generation backend для health endpoint.
package genclient

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// ReadinessChecker — проверка доступности бэкенда.
// Реализует интерфейс handlers.ReadinessChecker.
type ReadinessChecker struct {
	baseURL string
	client  *http.Client
}

// NewReadinessChecker создаёт checker доступности бэкенда.
// Использует TLS-конфигурацию клиента (включая кастомный CA).
func (c *Client) NewReadinessChecker(timeout time.Duration) *ReadinessChecker {
	return &ReadinessChecker{
		baseURL: c.baseURL,
		client: &http.Client{
			Timeout:   timeout,
			Transport: c.httpClient.Transport,
		},
	}
}

// CheckReady проверяет доступность бэкенда запросом GET /health.
func (rc *ReadinessChecker) CheckReady() (status, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), rc.client.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rc.baseURL+"/health", http.NoBody)
	if err != nil {
		return "fail", "ошибка создания запроса: " + err.Error()
	}

	resp, err := rc.client.Do(req)
	if err != nil {
		return "fail", fmt.Sprintf("бэкенд недоступен: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return "fail", fmt.Sprintf("бэкенд вернул статус %d", resp.StatusCode)
	}
	return "ok", "бэкенд доступен"
}
