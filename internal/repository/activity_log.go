package repository

import (
	"context"
	"fmt"

	"github.com/arturkryukov/api-architect/dashboard-module/internal/domain/model"
)

// ActivityLogRepository — интерфейс для таблицы activity_log.
type ActivityLogRepository interface {
	// Insert добавляет событие в журнал.
	Insert(ctx context.Context, event *model.ActivityEvent) error
	// ListByOwner возвращает последние события владельца (новые первыми).
	ListByOwner(ctx context.Context, ownerID string, limit int) ([]*model.ActivityEvent, error)
	// DeleteOlderThan удаляет события старше указанного количества дней.
	// Возвращает количество удалённых строк.
	DeleteOlderThan(ctx context.Context, days int) (int64, error)
}

// activityLogRepo — реализация ActivityLogRepository.
type activityLogRepo struct {
	db DBTX
}

// NewActivityLogRepository создаёт репозиторий журнала действий.
func NewActivityLogRepository(db DBTX) ActivityLogRepository {
	return &activityLogRepo{db: db}
}

func (r *activityLogRepo) Insert(ctx context.Context, event *model.ActivityEvent) error {
	query := `
		INSERT INTO activity_log (id, owner_id, service_id, service_name, action, detail, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.Exec(ctx, query,
		event.ID, event.OwnerID, event.ServiceID, event.ServiceName,
		event.Action, event.Detail, event.OccurredAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: событие %s уже записано", ErrConflict, event.ID)
		}
		return fmt.Errorf("ошибка записи события журнала: %w", err)
	}
	return nil
}

func (r *activityLogRepo) ListByOwner(ctx context.Context, ownerID string, limit int) ([]*model.ActivityEvent, error) {
	query := `
		SELECT id, owner_id, service_id, service_name, action, detail, occurred_at
		FROM activity_log
		WHERE owner_id = $1
		ORDER BY occurred_at DESC, id
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки журнала: %w", err)
	}
	defer rows.Close()

	var events []*model.ActivityEvent
	for rows.Next() {
		e := &model.ActivityEvent{}
		if err := rows.Scan(
			&e.ID, &e.OwnerID, &e.ServiceID, &e.ServiceName,
			&e.Action, &e.Detail, &e.OccurredAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка чтения события журнала: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации журнала: %w", err)
	}
	return events, nil
}

func (r *activityLogRepo) DeleteOlderThan(ctx context.Context, days int) (int64, error) {
	query := `
		DELETE FROM activity_log
		WHERE occurred_at < now() - make_interval(days => $1)`

	tag, err := r.db.Exec(ctx, query, days)
	if err != nil {
		return 0, fmt.Errorf("ошибка очистки журнала: %w", err)
	}
	return tag.RowsAffected(), nil
}
