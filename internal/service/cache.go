// cache.go — кэш записей сервисов, единственный источник истины для UI.
//
// CacheStore держит по набору записей на владельца (sub пользователя)
// в LRU с TTL (hashicorp/golang-lru/v2/expirable): неактивные сессии
// вытесняются сами. Все мутации сериализуются мьютексом набора; наружу
// отдаются только глубокие копии, частично изменённая запись не видна никому.
//
// Оптимистичные правки (вставка PENDING-записи, пометка DELETING) работают
// по транзакционной схеме: снимок → правка → подтверждение или откат.
// Ответ опроса замещает набор целиком (wholesale replace) — оптимистичные
// записи вытесняются серверной истиной, дубликатов не возникает.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/arturkryukov/api-architect/dashboard-module/internal/domain/model"
)

// Prometheus-метрики кэша.
var (
	cacheReplaceTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dm_cache_replace_total",
		Help: "Количество wholesale-замещений кэша ответами backend",
	})
	cacheOptimisticTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dm_cache_optimistic_total",
		Help: "Количество оптимистичных правок кэша",
	}, []string{"operation"}) // operation: insert, mark, rollback
	cacheSharedFetches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dm_cache_shared_fetches_total",
		Help: "Количество List-вызовов, разделивших чужой in-flight fetch",
	})
)

// Snapshot — полный снимок набора записей владельца для отката.
type Snapshot []*model.ServiceRecord

// Transition — наблюдаемое изменение записи между двумя состояниями кэша.
// Вычисляется при wholesale-замещении и передаётся в журнал действий.
type Transition struct {
	// Record — запись после замещения (для Removed — последняя известная).
	Record *model.ServiceRecord
	// From — статус до замещения.
	From model.ServiceStatus
	// To — статус после замещения (пусто, если Removed).
	To model.ServiceStatus
	// Removed — запись исчезла из ответа backend (удаление подтверждено).
	Removed bool
}

// FetchFunc — функция загрузки актуального списка с backend.
type FetchFunc func(ctx context.Context) ([]*model.ServiceRecord, error)

// ownerCache — набор записей одного владельца.
type ownerCache struct {
	mu sync.Mutex
	// records — записи в порядке вставки/ответа backend.
	records []*model.ServiceRecord
	// initialized — был ли набор хоть раз заполнен ответом backend.
	initialized bool
	// inflight — латч текущей загрузки; закрывается по завершении.
	inflight chan struct{}
	// fetchErr — ошибка последней завершившейся загрузки.
	fetchErr error
}

// CacheStore — кэш записей сервисов по владельцам.
type CacheStore struct {
	mu     sync.Mutex
	owners *expirable.LRU[string, *ownerCache]
}

// NewCacheStore создаёт кэш.
// maxOwners — максимум одновременно отслеживаемых владельцев.
// ttl — время жизни набора с момента добавления владельца в LRU.
func NewCacheStore(maxOwners int, ttl time.Duration) *CacheStore {
	return &CacheStore{
		owners: expirable.NewLRU[string, *ownerCache](maxOwners, nil, ttl),
	}
}

// forOwner возвращает набор владельца, создавая его при необходимости.
func (s *CacheStore) forOwner(owner string) *ownerCache {
	s.mu.Lock()
	defer s.mu.Unlock()

	if oc, ok := s.owners.Get(owner); ok {
		return oc
	}
	oc := &ownerCache{}
	s.owners.Add(owner, oc)
	return oc
}

// List возвращает текущий упорядоченный снимок записей владельца.
// Для неинициализированного набора запускает загрузку через fetch;
// конкурентные вызовы разделяют один in-flight запрос и ждут его
// завершения (или отмены своего ctx).
func (s *CacheStore) List(ctx context.Context, owner string, fetch FetchFunc) ([]*model.ServiceRecord, error) {
	oc := s.forOwner(owner)

	oc.mu.Lock()
	if oc.initialized {
		records := cloneRecords(oc.records)
		oc.mu.Unlock()
		return records, nil
	}

	// Чужая загрузка уже идёт — ждём её.
	if oc.inflight != nil {
		latch := oc.inflight
		oc.mu.Unlock()
		cacheSharedFetches.Inc()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-latch:
		}

		oc.mu.Lock()
		defer oc.mu.Unlock()
		if !oc.initialized {
			return nil, oc.fetchErr
		}
		return cloneRecords(oc.records), nil
	}

	// Становимся загрузчиком.
	latch := make(chan struct{})
	oc.inflight = latch
	oc.mu.Unlock()

	records, err := fetch(ctx)

	oc.mu.Lock()
	defer oc.mu.Unlock()
	oc.inflight = nil
	close(latch)

	if err != nil {
		oc.fetchErr = err
		return nil, err
	}
	oc.fetchErr = nil
	s.replaceLocked(oc, records)
	return cloneRecords(oc.records), nil
}

// Cached возвращает снимок без загрузки и признак инициализированности.
func (s *CacheStore) Cached(owner string) ([]*model.ServiceRecord, bool) {
	oc := s.forOwner(owner)
	oc.mu.Lock()
	defer oc.mu.Unlock()
	return cloneRecords(oc.records), oc.initialized
}

// Get возвращает одну запись по id или nil.
func (s *CacheStore) Get(owner, serviceID string) *model.ServiceRecord {
	oc := s.forOwner(owner)
	oc.mu.Lock()
	defer oc.mu.Unlock()
	for _, r := range oc.records {
		if r.ID == serviceID {
			return r.Clone()
		}
	}
	return nil
}

// InsertOptimistic добавляет неподтверждённую запись в начало набора.
// Набор помечается инициализированным: пользователь сразу видит карточку,
// не дожидаясь следующего опроса.
func (s *CacheStore) InsertOptimistic(owner string, record *model.ServiceRecord) {
	oc := s.forOwner(owner)
	oc.mu.Lock()
	defer oc.mu.Unlock()

	oc.records = append([]*model.ServiceRecord{record.Clone()}, oc.records...)
	oc.initialized = true
	cacheOptimisticTotal.WithLabelValues("insert").Inc()
}

// MarkOptimistic применяет локальную правку к записи и возвращает снимок
// состояния до правки — для отката при ошибке backend.
// Возвращает (nil, false), если записи с таким id нет.
func (s *CacheStore) MarkOptimistic(owner, serviceID string, mutate func(*model.ServiceRecord)) (Snapshot, bool) {
	oc := s.forOwner(owner)
	oc.mu.Lock()
	defer oc.mu.Unlock()

	for _, r := range oc.records {
		if r.ID == serviceID {
			snapshot := cloneRecords(oc.records)
			mutate(r)
			cacheOptimisticTotal.WithLabelValues("mark").Inc()
			return snapshot, true
		}
	}
	return nil, false
}

// Rollback восстанавливает набор владельца из снимка.
func (s *CacheStore) Rollback(owner string, snapshot Snapshot) {
	oc := s.forOwner(owner)
	oc.mu.Lock()
	defer oc.mu.Unlock()

	oc.records = cloneRecords(snapshot)
	cacheOptimisticTotal.WithLabelValues("rollback").Inc()
}

// ReplaceAll целиком замещает набор владельца ответом backend и возвращает
// наблюдаемые переходы статусов (для журнала действий). Поздний ответ
// устаревшего опроса тоже применяется — last-poll-wins, ответ идемпотентен,
// поскольку отражает истинное состояние backend.
func (s *CacheStore) ReplaceAll(owner string, records []*model.ServiceRecord) []Transition {
	oc := s.forOwner(owner)
	oc.mu.Lock()
	defer oc.mu.Unlock()
	return s.replaceLocked(oc, records)
}

// replaceLocked — общая часть ReplaceAll/List. Вызывается под oc.mu.
func (s *CacheStore) replaceLocked(oc *ownerCache, records []*model.ServiceRecord) []Transition {
	prior := make(map[string]*model.ServiceRecord, len(oc.records))
	for _, r := range oc.records {
		prior[r.ID] = r
	}

	var transitions []Transition
	seen := make(map[string]bool, len(records))
	for _, r := range records {
		seen[r.ID] = true
		if old, ok := prior[r.ID]; ok && old.Status != r.Status {
			transitions = append(transitions, Transition{
				Record: r.Clone(),
				From:   old.Status,
				To:     r.Status,
			})
		}
	}
	for id, old := range prior {
		if !seen[id] {
			transitions = append(transitions, Transition{
				Record:  old.Clone(),
				From:    old.Status,
				Removed: true,
			})
		}
	}

	oc.records = cloneRecords(records)
	oc.initialized = true
	cacheReplaceTotal.Inc()
	return transitions
}

// AnyActive возвращает true, если хотя бы одна запись владельца
// в активном статусе (PENDING, BUILDING, DELETING) — предикат опроса.
func (s *CacheStore) AnyActive(owner string) bool {
	oc := s.forOwner(owner)
	oc.mu.Lock()
	defer oc.mu.Unlock()

	for _, r := range oc.records {
		if r.Status.IsActive() {
			return true
		}
	}
	return false
}

// cloneRecords возвращает глубокую копию среза записей.
func cloneRecords(records []*model.ServiceRecord) []*model.ServiceRecord {
	if records == nil {
		return nil
	}
	out := make([]*model.ServiceRecord, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}
	return out
}
