// flow.go — пользовательские потоки работы с сервисами.
//
// Create и Delete используют общую транзакционную схему оптимистичных правок:
// снимок → локальная правка → запрос к backend → подтверждение или откат.
// Delete дополнительно выполняет settle — финальную перезагрузку списка
// с backend независимо от исхода запроса, чтобы согласовать оптимистичное
// состояние с серверной истиной.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/arturkryukov/api-architect/dashboard-module/internal/domain/model"
	"github.com/arturkryukov/api-architect/dashboard-module/internal/genclient"
)

// Backend — операции generation backend, нужные потокам.
// Реализуется genclient.Client; в тестах подменяется фейком.
type Backend interface {
	ListServices(ctx context.Context) ([]*model.ServiceRecord, error)
	Generate(ctx context.Context, prompt string) (*model.ServiceRecord, error)
	Delete(ctx context.Context, serviceID string) (string, error)
	ArtifactLink(ctx context.Context, serviceID string) (string, error)
	BuildLogs(ctx context.Context, serviceID string) ([]byte, string, error)
}

// BackendFactory создаёт Backend, действующий от имени владельца.
type BackendFactory func(owner string) Backend

// ActivityRecorder — журнал действий (может быть nil при недоступной БД).
// Реализуется ActivityService.
type ActivityRecorder interface {
	Record(ctx context.Context, event *model.ActivityEvent)
	RecordTransitions(ctx context.Context, owner string, transitions []Transition)
}

// Flow — оркестратор пользовательских потоков поверх кэша и backend.
type Flow struct {
	cache    *CacheStore
	backends BackendFactory
	poller   *Poller
	activity ActivityRecorder
	logger   *slog.Logger

	// settleTimeout — предел времени settle-перезагрузки после delete.
	settleTimeout time.Duration
}

// NewFlow создаёт оркестратор потоков.
// activity может быть nil — журналирование тогда отключено.
func NewFlow(cache *CacheStore, backends BackendFactory, poller *Poller, activity ActivityRecorder, logger *slog.Logger) *Flow {
	return &Flow{
		cache:         cache,
		backends:      backends,
		poller:        poller,
		activity:      activity,
		logger:        logger.With(slog.String("component", "service_flow")),
		settleTimeout: 15 * time.Second,
	}
}

// List возвращает снимок записей владельца, при необходимости загружая
// список с backend (разделяя конкурентные загрузки).
func (f *Flow) List(ctx context.Context, owner string) ([]*model.ServiceRecord, error) {
	backend := f.backends(owner)
	records, err := f.cache.List(ctx, owner, backend.ListServices)
	if err != nil {
		return nil, err
	}
	f.poller.EnsurePolling(owner)
	return records, nil
}

// Refresh принудительно перечитывает список с backend и замещает кэш.
func (f *Flow) Refresh(ctx context.Context, owner string) ([]*model.ServiceRecord, error) {
	records, err := f.backends(owner).ListServices(ctx)
	if err != nil {
		return nil, err
	}
	transitions := f.cache.ReplaceAll(owner, records)
	f.recordTransitions(ctx, owner, transitions)
	f.poller.EnsurePolling(owner)
	return cloneRecords(records), nil
}

// Get возвращает одну запись владельца.
// При неинициализированном кэше сначала выполняется загрузка списка.
func (f *Flow) Get(ctx context.Context, owner, serviceID string) (*model.ServiceRecord, error) {
	if _, initialized := f.cache.Cached(owner); !initialized {
		if _, err := f.List(ctx, owner); err != nil {
			return nil, err
		}
	}
	record := f.cache.Get(owner, serviceID)
	if record == nil {
		return nil, ErrServiceNotFound
	}
	return record, nil
}

// Create отправляет prompt на генерацию и оптимистично вставляет ответ
// backend в начало списка. Пустой prompt отклоняется до обращения к сети.
// При ошибке backend кэш не меняется.
func (f *Flow) Create(ctx context.Context, owner, prompt string) (*model.ServiceRecord, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, genclient.ErrEmptyPrompt
	}

	record, err := f.backends(owner).Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	f.cache.InsertOptimistic(owner, record)
	f.poller.EnsurePolling(owner)

	f.record(ctx, owner, record, model.ActivityCreated, record.Prompt)
	f.logger.Info("Сервис создан",
		slog.String("owner", owner),
		slog.String("service_id", record.ID),
		slog.String("service_name", record.ServiceName),
	)
	return record.Clone(), nil
}

// Delete запрашивает удаление сервиса по транзакционной схеме:
//  1. Снимок текущего набора.
//  2. Оптимистичная пометка записи DELETING (UI сразу видит результат).
//  3. DELETE на backend.
//  4. При ошибке — откат к снимку.
//  5. Независимо от исхода — асинхронный settle: перезагрузка списка
//     с backend для согласования.
//
// Возвращает сообщение backend (может быть пустым).
func (f *Flow) Delete(ctx context.Context, owner, serviceID string) (string, error) {
	record := f.cache.Get(owner, serviceID)
	if record == nil {
		return "", ErrServiceNotFound
	}

	snapshot, ok := f.cache.MarkOptimistic(owner, serviceID, func(r *model.ServiceRecord) {
		r.Status = model.StatusDeleting
	})
	if !ok {
		return "", ErrServiceNotFound
	}

	defer f.settle(owner)

	message, err := f.backends(owner).Delete(ctx, serviceID)
	if err != nil {
		f.cache.Rollback(owner, snapshot)
		f.record(ctx, owner, record, model.ActivityDeleteFailed, err.Error())
		f.logger.Warn("Удаление отклонено backend, откат",
			slog.String("owner", owner),
			slog.String("service_id", serviceID),
			slog.String("error", err.Error()),
		)
		return "", err
	}

	f.poller.EnsurePolling(owner)
	f.record(ctx, owner, record, model.ActivityDeleteRequested, message)
	f.logger.Info("Удаление сервиса запрошено",
		slog.String("owner", owner),
		slog.String("service_id", serviceID),
	)
	return message, nil
}

// settle выполняет финальную перезагрузку списка после delete в отдельной
// горутине: исходный запрос уже отвечен, согласование не должно его задерживать.
func (f *Flow) settle(owner string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), f.settleTimeout)
		defer cancel()

		if _, err := f.Refresh(ctx, owner); err != nil {
			// Не фатально: опрос или следующий запрос пользователя догонит.
			f.logger.Debug("Settle-перезагрузка не удалась",
				slog.String("owner", owner),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// ArtifactLink возвращает ссылку на скачивание исходников сервиса.
// Независим от BuildLogs: ошибка одного не влияет на другой.
func (f *Flow) ArtifactLink(ctx context.Context, owner, serviceID string) (string, error) {
	return f.backends(owner).ArtifactLink(ctx, serviceID)
}

// BuildLogs возвращает содержимое журнала сборки и имя файла.
func (f *Flow) BuildLogs(ctx context.Context, owner, serviceID string) ([]byte, string, error) {
	return f.backends(owner).BuildLogs(ctx, serviceID)
}

// record пишет событие журнала (nil-safe по activity).
func (f *Flow) record(ctx context.Context, owner string, record *model.ServiceRecord, action, detail string) {
	if f.activity == nil {
		return
	}
	f.activity.Record(ctx, &model.ActivityEvent{
		OwnerID:     owner,
		ServiceID:   record.ID,
		ServiceName: record.ServiceName,
		Action:      action,
		Detail:      detail,
		OccurredAt:  time.Now().UTC(),
	})
}

// recordTransitions журналирует терминальные переходы из ответа backend.
func (f *Flow) recordTransitions(ctx context.Context, owner string, transitions []Transition) {
	if f.activity == nil || len(transitions) == 0 {
		return
	}
	f.activity.RecordTransitions(ctx, owner, transitions)
}

// IsNotFound возвращает true, если ошибка означает отсутствие сервиса
// (локально или 404 backend).
func IsNotFound(err error) bool {
	if errors.Is(err, ErrServiceNotFound) {
		return true
	}
	var reqErr *genclient.RequestError
	return errors.As(err, &reqErr) && reqErr.IsNotFound()
}
