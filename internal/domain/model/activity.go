// activity.go — запись журнала действий Dashboard Module.
// Backend не хранит историю операций пользователя, поэтому dashboard
// ведёт собственный журнал: создание, удаление, наблюдаемые терминальные переходы.
package model

import "time"

// Действия, фиксируемые в журнале.
const (
	// ActivityCreated — пользователь создал сервис (запись PENDING принята backend-ом).
	ActivityCreated = "created"
	// ActivityDeleteRequested — пользователь запросил удаление сервиса.
	ActivityDeleteRequested = "delete_requested"
	// ActivityDeleteFailed — backend отклонил удаление, оптимистичная правка откатена.
	ActivityDeleteFailed = "delete_failed"
	// ActivityDeployed — опрос обнаружил переход в DEPLOYED.
	ActivityDeployed = "deployed"
	// ActivityFailed — опрос обнаружил переход в FAILED.
	ActivityFailed = "failed"
)

// ActivityEvent — одна запись журнала действий.
type ActivityEvent struct {
	// ID — UUID записи журнала, назначается dashboard-ом.
	ID string `json:"id"`
	// OwnerID — идентификатор пользователя (sub из JWT).
	OwnerID string `json:"owner_id"`
	// ServiceID — UUID сервиса, к которому относится событие.
	ServiceID string `json:"service_id"`
	// ServiceName — имя сервиса на момент события.
	ServiceName string `json:"service_name"`
	// Action — одно из Activity*-значений.
	Action string `json:"action"`
	// Detail — дополнительное описание (текст ошибки, deployed_url).
	Detail string `json:"detail,omitempty"`
	// OccurredAt — момент события.
	OccurredAt time.Time `json:"occurred_at"`
}
