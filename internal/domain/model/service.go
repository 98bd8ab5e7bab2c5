// Пакет model — доменные модели Dashboard Module.
// ServiceRecord — запись о сгенерированном микросервисе и его жизненном цикле.
package model

import "time"

// ServiceStatus — статус жизненного цикла сервиса.
// Переходы монотонны: PENDING → BUILDING → DEPLOYED | FAILED.
// DELETING выставляется при запросе удаления и предшествует исчезновению
// записи из ответов backend; возврата из DELETING в более ранний статус нет.
type ServiceStatus string

const (
	// StatusPending — запись создана, генерация ещё не началась.
	StatusPending ServiceStatus = "PENDING"
	// StatusBuilding — сборка и деплой выполняются backend-ом.
	StatusBuilding ServiceStatus = "BUILDING"
	// StatusDeployed — сервис развёрнут, deployed_url доступен.
	StatusDeployed ServiceStatus = "DEPLOYED"
	// StatusFailed — терминальная ошибка генерации или сборки.
	StatusFailed ServiceStatus = "FAILED"
	// StatusDeleting — удаление запрошено, backend ещё не подтвердил.
	StatusDeleting ServiceStatus = "DELETING"
)

// IsTerminal возвращает true для статусов, в которых backend больше
// не меняет запись (DEPLOYED, FAILED).
func (s ServiceStatus) IsTerminal() bool {
	return s == StatusDeployed || s == StatusFailed
}

// IsActive возвращает true для статусов, требующих опроса backend.
// DELETING считается активным: опрос продолжается до тех пор, пока
// backend не перестанет возвращать запись.
func (s ServiceStatus) IsActive() bool {
	return s == StatusPending || s == StatusBuilding || s == StatusDeleting
}

// ServiceRecord — запись о сгенерированном микросервисе.
// JSON-имена соответствуют wire-контракту generation backend (snake_case).
type ServiceRecord struct {
	// ID — UUID записи, назначается backend-ом при создании.
	ID string `json:"id"`
	// UserID — идентификатор владельца (sub из JWT).
	UserID string `json:"user_id"`
	// ServiceName — человекочитаемое имя сервиса.
	ServiceName string `json:"service_name"`
	// Prompt — исходный текст запроса, неизменяем после создания.
	Prompt string `json:"prompt"`
	// Status — текущий статус жизненного цикла.
	Status ServiceStatus `json:"status"`
	// DeployedURL — URL развёрнутого сервиса, только при DEPLOYED.
	DeployedURL string `json:"deployed_url,omitempty"`
	// BuildID — идентификатор сборки в build-системе backend.
	BuildID string `json:"build_id,omitempty"`
	// BuildLogURL — ссылка на журнал сборки в консоли backend.
	BuildLogURL string `json:"build_log_url,omitempty"`
	// SourceBlob — ссылка на архив сгенерированных исходников.
	SourceBlob string `json:"source_blob,omitempty"`
	// CreatedAt, UpdatedAt — временные метки backend.
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	// Spec — структурное описание сгенерированного endpoint.
	// Backend (AI) может добавлять произвольные поля и опускать ожидаемые,
	// поэтому все вложенные поля опциональны.
	Spec *EndpointSpec `json:"spec,omitempty"`
	// ErrorMessage — описание ошибки, только при FAILED.
	ErrorMessage string `json:"error_message,omitempty"`
}

// LiveURL возвращает URL развёрнутого сервиса и true, если по записи
// можно предлагать действие «открыть сервис». Оба условия обязательны:
// статус DEPLOYED и непустой deployed_url.
func (r *ServiceRecord) LiveURL() (string, bool) {
	if r.Status != StatusDeployed || r.DeployedURL == "" {
		return "", false
	}
	return r.DeployedURL, true
}

// Clone возвращает глубокую копию записи.
// Используется кэшем: наружу никогда не отдаются ссылки на внутреннее состояние.
func (r *ServiceRecord) Clone() *ServiceRecord {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Spec = r.Spec.Clone()
	return &cp
}
