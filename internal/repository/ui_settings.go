package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// UISetting — модель записи из таблицы ui_settings.
type UISetting struct {
	// Ключ настройки (dot-notation, например "dashboard.poll_interval")
	Key string
	// Значение настройки (строковое представление)
	Value string
	// Время последнего обновления
	UpdatedAt time.Time
	// Кто обновил настройку (username)
	UpdatedBy string
}

// UISettingsRepository — интерфейс для таблицы ui_settings.
type UISettingsRepository interface {
	// Get возвращает настройку по ключу. Если не найдена — ErrNotFound.
	Get(ctx context.Context, key string) (*UISetting, error)
	// Set создаёт или обновляет настройку (upsert).
	Set(ctx context.Context, key, value, updatedBy string) error
	// List возвращает все настройки.
	List(ctx context.Context) ([]UISetting, error)
	// Delete удаляет настройку по ключу.
	Delete(ctx context.Context, key string) error
}

// uiSettingsRepo — реализация UISettingsRepository.
type uiSettingsRepo struct {
	db DBTX
}

// NewUISettingsRepository создаёт репозиторий настроек UI.
func NewUISettingsRepository(db DBTX) UISettingsRepository {
	return &uiSettingsRepo{db: db}
}

func (r *uiSettingsRepo) Get(ctx context.Context, key string) (*UISetting, error) {
	query := `
		SELECT key, value, updated_at, updated_by
		FROM ui_settings
		WHERE key = $1`

	s := &UISetting{}
	err := r.db.QueryRow(ctx, query, key).Scan(
		&s.Key, &s.Value, &s.UpdatedAt, &s.UpdatedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения настройки: %w", err)
	}
	return s, nil
}

func (r *uiSettingsRepo) Set(ctx context.Context, key, value, updatedBy string) error {
	query := `
		INSERT INTO ui_settings (key, value, updated_by, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value,
			updated_by = EXCLUDED.updated_by,
			updated_at = now()`

	if _, err := r.db.Exec(ctx, query, key, value, updatedBy); err != nil {
		return fmt.Errorf("ошибка сохранения настройки: %w", err)
	}
	return nil
}

func (r *uiSettingsRepo) List(ctx context.Context) ([]UISetting, error) {
	query := `
		SELECT key, value, updated_at, updated_by
		FROM ui_settings
		ORDER BY key`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки настроек: %w", err)
	}
	defer rows.Close()

	var settings []UISetting
	for rows.Next() {
		var s UISetting
		if err := rows.Scan(&s.Key, &s.Value, &s.UpdatedAt, &s.UpdatedBy); err != nil {
			return nil, fmt.Errorf("ошибка чтения настройки: %w", err)
		}
		settings = append(settings, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации настроек: %w", err)
	}
	return settings, nil
}

func (r *uiSettingsRepo) Delete(ctx context.Context, key string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM ui_settings WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("ошибка удаления настройки: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
