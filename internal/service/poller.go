// poller.go — политика опроса generation backend.
//
// Опрос — явная отменяемая повторяющаяся задача на владельца, а не побочный
// эффект отрисовки. Горутина владельца тикает с фиксированным интервалом
// (DM_POLL_INTERVAL, по умолчанию 5с), на каждом тике выполняет ListServices
// и целиком замещает кэш ответом. Предикат «есть активные записи»
// пересчитывается после каждого замещения; когда он становится ложным,
// горутина завершается. EnsurePolling идемпотентен: на владельца — не более
// одной горутины.
//
// Запросы в полёте не прерываются: поздний ответ просто применяется последним
// (last-poll-wins). Опрос также завершается при истечении токена владельца
// и при остановке приложения.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/arturkryukov/api-architect/dashboard-module/internal/domain/model"
	"github.com/arturkryukov/api-architect/dashboard-module/internal/genclient"
)

// Prometheus-метрики опроса.
var (
	pollCyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dm_poll_cycles_total",
		Help: "Количество циклов опроса generation backend",
	}, []string{"outcome"}) // outcome: ok, error, no_credential

	pollersActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dm_pollers_active",
		Help: "Количество активных горутин опроса (по владельцам)",
	})
)

// Lister — источник актуального списка сервисов владельца.
// Реализуется genclient.Client с токеном владельца из CredentialStore.
type Lister interface {
	ListServices(ctx context.Context) ([]*model.ServiceRecord, error)
}

// ListerFactory создаёт Lister для владельца.
type ListerFactory func(owner string) Lister

// TransitionSink принимает наблюдаемые переходы статусов
// (реализуется журналом действий; может быть nil).
type TransitionSink interface {
	RecordTransitions(ctx context.Context, owner string, transitions []Transition)
}

// Poller — менеджер горутин опроса по владельцам.
type Poller struct {
	cache    *CacheStore
	listers  ListerFactory
	sink     TransitionSink
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	running map[string]bool
	wg      sync.WaitGroup
}

// NewPoller создаёт менеджер опроса.
// sink может быть nil — переходы тогда не журналируются.
func NewPoller(cache *CacheStore, listers ListerFactory, sink TransitionSink, interval time.Duration, logger *slog.Logger) *Poller {
	ctx, cancel := context.WithCancel(context.Background())
	return &Poller{
		cache:    cache,
		listers:  listers,
		sink:     sink,
		interval: interval,
		logger:   logger.With(slog.String("component", "poller")),
		ctx:      ctx,
		cancel:   cancel,
		running:  make(map[string]bool),
	}
}

// Interval возвращает интервал опроса (для подсказки poll_after_ms в UI).
func (p *Poller) Interval() time.Duration {
	return p.interval
}

// EnsurePolling запускает горутину опроса владельца, если предикат истинен
// и горутина ещё не запущена. Вызывается после оптимистичной вставки,
// запроса удаления и каждого замещения кэша.
func (p *Poller) EnsurePolling(owner string) {
	if !p.cache.AnyActive(owner) {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running[owner] || p.ctx.Err() != nil {
		return
	}
	p.running[owner] = true
	pollersActive.Inc()

	p.wg.Add(1)
	go p.pollOwner(owner)
}

// pollOwner — цикл опроса одного владельца.
func (p *Poller) pollOwner(owner string) {
	defer p.wg.Done()
	defer p.finishOwner(owner)

	p.logger.Debug("Опрос владельца запущен",
		slog.String("owner", owner),
		slog.String("interval", p.interval.String()),
	)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			if done := p.pollOnce(owner); done {
				p.logger.Debug("Опрос владельца завершён", slog.String("owner", owner))
				return
			}
		}
	}
}

// finishOwner снимает флаг опроса владельца при выходе горутины.
// Между решением остановиться и снятием флага могла появиться новая
// активная запись, а её EnsurePolling — отказаться от запуска из-за
// ещё не снятого флага. Поэтому после снятия кэш перепроверяется
// и опрос при необходимости перезапускается.
func (p *Poller) finishOwner(owner string) {
	p.mu.Lock()
	delete(p.running, owner)
	p.mu.Unlock()
	pollersActive.Dec()

	p.EnsurePolling(owner)
}

// pollOnce выполняет один цикл опроса. Возвращает true, когда опрос
// владельца пора останавливать (нет активных записей или нет токена).
func (p *Poller) pollOnce(owner string) bool {
	ctx, cancel := context.WithTimeout(p.ctx, p.interval*2)
	defer cancel()

	records, err := p.listers(owner).ListServices(ctx)
	if err != nil {
		if errors.Is(err, ErrNoCredential) || errors.Is(err, genclient.ErrUnauthenticated) {
			// Токен владельца истёк: опрос возобновится со следующим
			// запросом пользователя.
			pollCyclesTotal.WithLabelValues("no_credential").Inc()
			return true
		}
		pollCyclesTotal.WithLabelValues("error").Inc()
		p.logger.Warn("Ошибка цикла опроса",
			slog.String("owner", owner),
			slog.String("error", err.Error()),
		)
		// Ошибка сети не останавливает опрос: следующий тик повторит.
		return false
	}

	pollCyclesTotal.WithLabelValues("ok").Inc()
	transitions := p.cache.ReplaceAll(owner, records)
	if p.sink != nil && len(transitions) > 0 {
		p.sink.RecordTransitions(p.ctx, owner, transitions)
	}

	return !p.cache.AnyActive(owner)
}

// Stop отменяет все горутины опроса и ждёт их завершения.
func (p *Poller) Stop() {
	p.cancel()
	p.wg.Wait()
	p.logger.Info("Опрос остановлен")
}
