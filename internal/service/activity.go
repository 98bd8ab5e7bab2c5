// activity.go — журнал действий пользователя над сервисами.
//
// Backend не хранит историю операций: ответ GET /services отражает только
// текущее состояние. Dashboard ведёт собственный журнал в PostgreSQL:
// создание, запросы удаления и наблюдаемые опросом терминальные переходы.
// Запись журнала не должна ломать основной поток — ошибки БД логируются
// и глотаются.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/arturkryukov/api-architect/dashboard-module/internal/domain/model"
	"github.com/arturkryukov/api-architect/dashboard-module/internal/repository"
)

// ActivityService — сервис журнала действий.
type ActivityService struct {
	repo   repository.ActivityLogRepository
	logger *slog.Logger

	cleanupCancel context.CancelFunc
	cleanupDone   chan struct{}
}

// NewActivityService создаёт сервис журнала действий.
func NewActivityService(repo repository.ActivityLogRepository, logger *slog.Logger) *ActivityService {
	return &ActivityService{
		repo:   repo,
		logger: logger.With(slog.String("component", "activity")),
	}
}

// Record сохраняет событие журнала. ID назначается здесь, если пуст.
func (s *ActivityService) Record(ctx context.Context, event *model.ActivityEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	if err := s.repo.Insert(ctx, event); err != nil {
		s.logger.Warn("Событие журнала не записано",
			slog.String("owner", event.OwnerID),
			slog.String("service_id", event.ServiceID),
			slog.String("action", event.Action),
			slog.String("error", err.Error()),
		)
	}
}

// RecordTransitions преобразует переходы из ответа backend в события журнала.
// Фиксируются только терминальные переходы; исчезновение DELETING-записи
// не журналируется отдельно — delete_requested уже в журнале.
func (s *ActivityService) RecordTransitions(ctx context.Context, owner string, transitions []Transition) {
	for _, tr := range transitions {
		switch {
		case tr.Removed:
			continue
		case tr.To == model.StatusDeployed:
			s.Record(ctx, &model.ActivityEvent{
				OwnerID:     owner,
				ServiceID:   tr.Record.ID,
				ServiceName: tr.Record.ServiceName,
				Action:      model.ActivityDeployed,
				Detail:      tr.Record.DeployedURL,
			})
		case tr.To == model.StatusFailed:
			s.Record(ctx, &model.ActivityEvent{
				OwnerID:     owner,
				ServiceID:   tr.Record.ID,
				ServiceName: tr.Record.ServiceName,
				Action:      model.ActivityFailed,
				Detail:      tr.Record.ErrorMessage,
			})
		}
	}
}

// Recent возвращает последние события журнала владельца.
func (s *ActivityService) Recent(ctx context.Context, owner string, limit int) ([]*model.ActivityEvent, error) {
	if limit < 1 || limit > 500 {
		limit = 50
	}
	return s.repo.ListByOwner(ctx, owner, limit)
}

// StartCleanup запускает фоновую очистку журнала: события старше
// retentionDays дней удаляются с периодом interval. Первая очистка
// выполняется сразу при старте.
func (s *ActivityService) StartCleanup(ctx context.Context, retentionDays int, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)
	s.cleanupCancel = cancel
	s.cleanupDone = make(chan struct{})

	go func() {
		defer close(s.cleanupDone)

		s.cleanupOnce(ctx, retentionDays)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.cleanupOnce(ctx, retentionDays)
			}
		}
	}()

	s.logger.Info("Фоновая очистка журнала запущена",
		slog.Int("retention_days", retentionDays),
		slog.String("interval", interval.String()),
	)
}

// StopCleanup останавливает фоновую очистку и ждёт завершения.
func (s *ActivityService) StopCleanup() {
	if s.cleanupCancel == nil {
		return
	}
	s.cleanupCancel()
	<-s.cleanupDone
	s.logger.Info("Фоновая очистка журнала остановлена")
}

// cleanupOnce выполняет один проход очистки.
func (s *ActivityService) cleanupOnce(ctx context.Context, retentionDays int) {
	deleted, err := s.repo.DeleteOlderThan(ctx, retentionDays)
	if err != nil {
		s.logger.Warn("Ошибка очистки журнала", slog.String("error", err.Error()))
		return
	}
	if deleted > 0 {
		s.logger.Info("Журнал очищен", slog.Int64("deleted", deleted))
	}
}
