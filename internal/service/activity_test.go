package service

import (
	"context"
	"testing"
	"time"

	"github.com/arturkryukov/api-architect/dashboard-module/internal/domain/model"
)

// fakeActivityRepo — in-memory реализация ActivityLogRepository.
type fakeActivityRepo struct {
	events    []*model.ActivityEvent
	lastLimit int
}

func (f *fakeActivityRepo) Insert(_ context.Context, event *model.ActivityEvent) error {
	f.events = append(f.events, event)
	return nil
}

func (f *fakeActivityRepo) ListByOwner(_ context.Context, ownerID string, limit int) ([]*model.ActivityEvent, error) {
	f.lastLimit = limit
	var out []*model.ActivityEvent
	for _, e := range f.events {
		if e.OwnerID == ownerID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeActivityRepo) DeleteOlderThan(_ context.Context, days int) (int64, error) {
	return 0, nil
}

// TestActivityRecordAssignsDefaults проверяет назначение ID и времени события.
func TestActivityRecordAssignsDefaults(t *testing.T) {
	repo := &fakeActivityRepo{}
	svc := NewActivityService(repo, testLogger())

	svc.Record(context.Background(), &model.ActivityEvent{
		OwnerID:   "owner-1",
		ServiceID: "svc-1",
		Action:    model.ActivityCreated,
	})

	if len(repo.events) != 1 {
		t.Fatalf("Записано %d событий, хотели 1", len(repo.events))
	}
	e := repo.events[0]
	if e.ID == "" {
		t.Error("ID не назначен")
	}
	if e.OccurredAt.IsZero() {
		t.Error("OccurredAt не назначен")
	}
}

// TestActivityRecordTransitions проверяет преобразование переходов в события.
func TestActivityRecordTransitions(t *testing.T) {
	repo := &fakeActivityRepo{}
	svc := NewActivityService(repo, testLogger())

	transitions := []Transition{
		{
			Record: &model.ServiceRecord{ID: "svc-1", ServiceName: "contact-form",
				Status: model.StatusDeployed, DeployedURL: "https://svc-1.example.com"},
			From: model.StatusBuilding,
			To:   model.StatusDeployed,
		},
		{
			Record: &model.ServiceRecord{ID: "svc-2", ServiceName: "guest-poll",
				Status: model.StatusFailed, ErrorMessage: "build error"},
			From: model.StatusBuilding,
			To:   model.StatusFailed,
		},
		// Исчезновение записи не журналируется
		{
			Record:  &model.ServiceRecord{ID: "svc-3", Status: model.StatusDeleting},
			From:    model.StatusDeleting,
			Removed: true,
		},
		// Нетерминальный переход не журналируется
		{
			Record: &model.ServiceRecord{ID: "svc-4", Status: model.StatusBuilding},
			From:   model.StatusPending,
			To:     model.StatusBuilding,
		},
	}

	svc.RecordTransitions(context.Background(), "owner-1", transitions)

	if len(repo.events) != 2 {
		t.Fatalf("Записано %d событий, хотели 2", len(repo.events))
	}
	if repo.events[0].Action != model.ActivityDeployed || repo.events[0].Detail != "https://svc-1.example.com" {
		t.Errorf("Первое событие: %+v", repo.events[0])
	}
	if repo.events[1].Action != model.ActivityFailed || repo.events[1].Detail != "build error" {
		t.Errorf("Второе событие: %+v", repo.events[1])
	}
}

// TestActivityRecentClampsLimit проверяет поправку некорректного лимита.
func TestActivityRecentClampsLimit(t *testing.T) {
	repo := &fakeActivityRepo{}
	svc := NewActivityService(repo, testLogger())
	ctx := context.Background()

	for _, limit := range []int{0, -5, 1000} {
		if _, err := svc.Recent(ctx, "owner-1", limit); err != nil {
			t.Fatalf("Recent(%d): %v", limit, err)
		}
		if repo.lastLimit != 50 {
			t.Errorf("limit=%d: репозиторий получил %d, хотели 50", limit, repo.lastLimit)
		}
	}

	if _, err := svc.Recent(ctx, "owner-1", 20); err != nil {
		t.Fatalf("Recent(20): %v", err)
	}
	if repo.lastLimit != 20 {
		t.Errorf("Корректный лимит изменён: %d", repo.lastLimit)
	}
}

// TestActivityCleanupStartStop проверяет жизненный цикл фоновой очистки.
func TestActivityCleanupStartStop(t *testing.T) {
	repo := &fakeActivityRepo{}
	svc := NewActivityService(repo, testLogger())

	svc.StartCleanup(context.Background(), 30, time.Hour)
	svc.StopCleanup()

	// Повторный Stop — no-op
	svc.StopCleanup()
}
