package repository

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/arturkryukov/api-architect/dashboard-module/internal/config"
	"github.com/arturkryukov/api-architect/dashboard-module/internal/database"
	"github.com/arturkryukov/api-architect/dashboard-module/internal/domain/model"
)

// setupTestDB запускает PostgreSQL контейнер, применяет миграции.
// Возвращает pgxpool.Pool; очистка через t.Cleanup.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("dashboard_test"),
		postgres.WithUsername("dashboard"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Не удалось запустить PostgreSQL контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Не удалось получить host контейнера: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Не удалось получить port контейнера: %v", err)
	}

	// Настраиваем env для config.Load()
	os.Setenv("DM_DB_HOST", host)
	os.Setenv("DM_DB_PORT", port.Port())
	os.Setenv("DM_DB_NAME", "dashboard_test")
	os.Setenv("DM_DB_USER", "dashboard")
	os.Setenv("DM_DB_PASSWORD", "test-password")
	os.Setenv("DM_DB_SSL_MODE", "disable")
	os.Setenv("DM_KEYCLOAK_URL", "http://localhost:8080")
	os.Setenv("DM_BACKEND_URL", "http://localhost:9000")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	// Применяем миграции
	if err := database.Migrate(cfg, logger); err != nil {
		t.Fatalf("Ошибка миграций: %v", err)
	}

	// Подключаемся
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Ошибка подключения: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	return pool
}

// newEvent создаёт событие журнала для тестов.
func newEvent(ownerID, action string, occurredAt time.Time) *model.ActivityEvent {
	return &model.ActivityEvent{
		ID:          uuid.New().String(),
		OwnerID:     ownerID,
		ServiceID:   uuid.New().String(),
		ServiceName: "contact-form",
		Action:      action,
		Detail:      "https://svc.example.com",
		OccurredAt:  occurredAt,
	}
}

// --- Тесты ActivityLogRepository ---

func TestActivityLogInsertAndList(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewActivityLogRepository(pool)

	base := time.Now().UTC().Truncate(time.Microsecond)

	// Три события одного владельца в разное время
	e1 := newEvent("owner-1", model.ActivityCreated, base.Add(-2*time.Hour))
	e2 := newEvent("owner-1", model.ActivityDeployed, base.Add(-time.Hour))
	e3 := newEvent("owner-1", model.ActivityDeleteRequested, base)
	// И одно чужое
	other := newEvent("owner-2", model.ActivityCreated, base)

	for _, e := range []*model.ActivityEvent{e1, e2, e3, other} {
		if err := repo.Insert(ctx, e); err != nil {
			t.Fatalf("Insert() ошибка: %v", err)
		}
	}

	// ListByOwner — новые первыми, только свои
	events, err := repo.ListByOwner(ctx, "owner-1", 10)
	if err != nil {
		t.Fatalf("ListByOwner() ошибка: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("ListByOwner() вернул %d записей, хотели 3", len(events))
	}
	if events[0].ID != e3.ID || events[1].ID != e2.ID || events[2].ID != e1.ID {
		t.Errorf("Неверный порядок: %s, %s, %s", events[0].Action, events[1].Action, events[2].Action)
	}
	if events[0].Detail != "https://svc.example.com" {
		t.Errorf("Detail = %q", events[0].Detail)
	}

	// Лимит
	limited, err := repo.ListByOwner(ctx, "owner-1", 2)
	if err != nil {
		t.Fatalf("ListByOwner() с лимитом ошибка: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("ListByOwner(limit=2) вернул %d записей", len(limited))
	}

	// Чужой владелец не видит события owner-1
	foreign, err := repo.ListByOwner(ctx, "owner-2", 10)
	if err != nil {
		t.Fatalf("ListByOwner() ошибка: %v", err)
	}
	if len(foreign) != 1 {
		t.Errorf("owner-2: вернул %d записей, хотели 1", len(foreign))
	}
}

func TestActivityLogDuplicateInsert(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewActivityLogRepository(pool)

	e := newEvent("owner-1", model.ActivityCreated, time.Now().UTC())
	if err := repo.Insert(ctx, e); err != nil {
		t.Fatalf("Insert() ошибка: %v", err)
	}

	// Повторная вставка с тем же id — ErrConflict
	err := repo.Insert(ctx, e)
	if err == nil {
		t.Fatal("Ожидали ErrConflict для дубликата")
	}
}

func TestActivityLogDeleteOlderThan(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewActivityLogRepository(pool)

	base := time.Now().UTC()

	// Два старых события и одно свежее
	old1 := newEvent("owner-1", model.ActivityCreated, base.AddDate(0, 0, -40))
	old2 := newEvent("owner-1", model.ActivityFailed, base.AddDate(0, 0, -35))
	fresh := newEvent("owner-1", model.ActivityDeployed, base)

	for _, e := range []*model.ActivityEvent{old1, old2, fresh} {
		if err := repo.Insert(ctx, e); err != nil {
			t.Fatalf("Insert() ошибка: %v", err)
		}
	}

	deleted, err := repo.DeleteOlderThan(ctx, 30)
	if err != nil {
		t.Fatalf("DeleteOlderThan() ошибка: %v", err)
	}
	if deleted != 2 {
		t.Errorf("DeleteOlderThan() удалил %d записей, хотели 2", deleted)
	}

	events, err := repo.ListByOwner(ctx, "owner-1", 10)
	if err != nil {
		t.Fatalf("ListByOwner() ошибка: %v", err)
	}
	if len(events) != 1 || events[0].ID != fresh.ID {
		t.Errorf("После очистки осталось %d записей", len(events))
	}
}

// --- Тесты UISettingsRepository ---

func TestUISettingsCRUD(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewUISettingsRepository(pool)

	// Set (создание)
	if err := repo.Set(ctx, "dashboard.poll_interval", "5s", "admin"); err != nil {
		t.Fatalf("Set() ошибка: %v", err)
	}

	// Get
	got, err := repo.Get(ctx, "dashboard.poll_interval")
	if err != nil {
		t.Fatalf("Get() ошибка: %v", err)
	}
	if got.Value != "5s" || got.UpdatedBy != "admin" {
		t.Errorf("Get() = %q/%q, хотели 5s/admin", got.Value, got.UpdatedBy)
	}

	// Set (upsert-обновление)
	if err := repo.Set(ctx, "dashboard.poll_interval", "10s", "operator"); err != nil {
		t.Fatalf("Set() обновление ошибка: %v", err)
	}
	got2, _ := repo.Get(ctx, "dashboard.poll_interval")
	if got2.Value != "10s" || got2.UpdatedBy != "operator" {
		t.Errorf("После upsert: %q/%q", got2.Value, got2.UpdatedBy)
	}

	// List — миграция создаёт 3 настройки по умолчанию
	list, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() ошибка: %v", err)
	}
	if len(list) != 3 {
		t.Errorf("List() вернул %d записей, хотели 3", len(list))
	}

	// Delete
	if err := repo.Delete(ctx, "dashboard.poll_interval"); err != nil {
		t.Fatalf("Delete() ошибка: %v", err)
	}
	if _, err := repo.Get(ctx, "dashboard.poll_interval"); err != ErrNotFound {
		t.Errorf("После Delete ожидали ErrNotFound, получили: %v", err)
	}
	if err := repo.Delete(ctx, "dashboard.poll_interval"); err != ErrNotFound {
		t.Errorf("Повторный Delete: ожидали ErrNotFound, получили: %v", err)
	}
}
