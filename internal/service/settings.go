// settings.go — сервис управления настройками дашборда.
// Предоставляет типизированные геттеры для интервала опроса,
// примеров промптов, валидацию ключей и CRUD-операции.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/arturkryukov/api-architect/dashboard-module/internal/repository"
)

// Допустимые ключи настроек (dot-notation).
// Используется для валидации при Set.
var validSettingKeys = map[string]string{
	"dashboard.poll_interval":  "Интервал опроса статусов для браузера (например, 5s)",
	"dashboard.skeleton_count": "Число skeleton-карточек при первой загрузке",
	"dashboard.sample_prompts": "Примеры промптов для onboarding (JSON-массив строк)",
}

// UISettingsService — сервис для работы с настройками дашборда.
type UISettingsService struct {
	repo   repository.UISettingsRepository
	logger *slog.Logger
}

// NewUISettingsService создаёт сервис настроек дашборда.
func NewUISettingsService(
	repo repository.UISettingsRepository,
	logger *slog.Logger,
) *UISettingsService {
	return &UISettingsService{
		repo:   repo,
		logger: logger.With(slog.String("service", "ui_settings")),
	}
}

// Get возвращает значение настройки по ключу.
// Возвращает ErrNotFound если настройка не существует.
func (s *UISettingsService) Get(ctx context.Context, key string) (*repository.UISetting, error) {
	setting, err := s.repo.Get(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения настройки %q: %w", key, err)
	}
	return setting, nil
}

// Set устанавливает значение настройки. Валидирует ключ и значение.
// updatedBy — имя пользователя, выполняющего изменение.
func (s *UISettingsService) Set(ctx context.Context, key, value, updatedBy string) error {
	// Валидация ключа
	if _, ok := validSettingKeys[key]; !ok {
		return fmt.Errorf("%w: недопустимый ключ настройки %q", ErrValidation, key)
	}

	// Валидация значения по типу ключа
	if err := s.validateValue(key, value); err != nil {
		return err
	}

	if err := s.repo.Set(ctx, key, value, updatedBy); err != nil {
		return fmt.Errorf("ошибка сохранения настройки %q: %w", key, err)
	}

	s.logger.Info("Настройка обновлена",
		slog.String("key", key),
		slog.String("updated_by", updatedBy),
	)
	return nil
}

// List возвращает все настройки.
func (s *UISettingsService) List(ctx context.Context) ([]repository.UISetting, error) {
	settings, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка настроек: %w", err)
	}
	return settings, nil
}

// Delete удаляет настройку по ключу.
func (s *UISettingsService) Delete(ctx context.Context, key string) error {
	if err := s.repo.Delete(ctx, key); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("ошибка удаления настройки %q: %w", key, err)
	}

	s.logger.Info("Настройка удалена", slog.String("key", key))
	return nil
}

// --- Типизированные геттеры --- //

// GetPollInterval возвращает интервал опроса статусов для браузера.
// По умолчанию 5 секунд.
func (s *UISettingsService) GetPollInterval(ctx context.Context) time.Duration {
	setting, err := s.repo.Get(ctx, "dashboard.poll_interval")
	if err != nil {
		return 5 * time.Second
	}
	d, err := time.ParseDuration(setting.Value)
	if err != nil || d < time.Second {
		return 5 * time.Second
	}
	return d
}

// GetSkeletonCount возвращает число skeleton-карточек при первой загрузке.
// По умолчанию 3.
func (s *UISettingsService) GetSkeletonCount(ctx context.Context) int {
	setting, err := s.repo.Get(ctx, "dashboard.skeleton_count")
	if err != nil {
		return 3
	}
	n, err := strconv.Atoi(setting.Value)
	if err != nil || n < 1 || n > 10 {
		return 3
	}
	return n
}

// GetSamplePrompts возвращает примеры промптов для onboarding-экрана.
// Возвращает nil, если не настроены или формат некорректен.
func (s *UISettingsService) GetSamplePrompts(ctx context.Context) []string {
	setting, err := s.repo.Get(ctx, "dashboard.sample_prompts")
	if err != nil {
		return nil
	}
	var prompts []string
	if err := json.Unmarshal([]byte(setting.Value), &prompts); err != nil {
		s.logger.Warn("Некорректный формат dashboard.sample_prompts",
			slog.String("error", err.Error()))
		return nil
	}
	return prompts
}

// --- Валидация значений --- //

// validateValue проверяет корректность значения для указанного ключа.
func (s *UISettingsService) validateValue(key, value string) error {
	switch key {
	case "dashboard.poll_interval":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%w: %s — некорректная длительность: %s", ErrValidation, key, value)
		}
		if d < time.Second {
			return fmt.Errorf("%w: %s должен быть не меньше 1s", ErrValidation, key)
		}
	case "dashboard.skeleton_count":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 || n > 10 {
			return fmt.Errorf("%w: %s должен быть целым числом 1-10", ErrValidation, key)
		}
	case "dashboard.sample_prompts":
		var prompts []string
		if err := json.Unmarshal([]byte(value), &prompts); err != nil {
			return fmt.Errorf("%w: %s должен быть JSON-массивом строк", ErrValidation, key)
		}
	}
	return nil
}
