// lifecycle.go — прогон жизненного цикла (sweep).
//
// Один прогон:
//  1. захват блокировки прогона (параллельный прогон → ErrSweepInProgress);
//  2. переходы статусов для всех не удалённых файлов, сменивших статус
//     раньше MinSweepAge, до SweepConcurrency файлов одновременно;
//  3. удаление файлов с истёкшим grace period;
//  4. пересчёт снимков использования затронутых пользователей.
//
// Ошибки отдельных файлов считаются и логируются, прогон продолжается.
// При отмене контекста новые файлы не берутся, начатые завершаются.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"

	"github.com/bigkaa/mediastore/lifecycle-engine/internal/domain/lifecycle"
	"github.com/bigkaa/mediastore/lifecycle-engine/internal/domain/model"
	"github.com/bigkaa/mediastore/lifecycle-engine/internal/repository"
)

var (
	sweepRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "le_sweep_runs_total",
		Help: "Количество прогонов жизненного цикла по результату",
	}, []string{"result"})

	sweepFilesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "le_sweep_files_total",
		Help: "Количество файлов, обработанных прогоном, по исходу",
	}, []string{"outcome"})

	sweepDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "le_sweep_duration_seconds",
		Help:    "Длительность прогона жизненного цикла в секундах",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 900, 3600},
	})
)

// SweepResult — итог одного прогона.
type SweepResult struct {
	// Processed — файлы, рассмотренные функцией переходов
	Processed int `json:"processed"`
	// Transitioned — файлы со сменой статуса
	Transitioned int `json:"transitioned"`
	// Skipped — файлы, изменённые параллельно
	Skipped int `json:"skipped"`
	// Failed — файлы с ошибкой перехода
	Failed int `json:"failed"`
	// Deleted — физически удалённые файлы
	Deleted int `json:"deleted"`
	// CleanupFailed — файлы, удаление которых будет повторено
	CleanupFailed int `json:"cleanupFailed"`
	// UsersRefreshed — пользователи с пересчитанным снимком использования
	UsersRefreshed int `json:"usersRefreshed"`

	StartedAt  time.Time     `json:"startedAt"`
	Duration   time.Duration `json:"-"`
	DurationMs int64         `json:"durationMs"`
}

// LifecycleService выполняет прогоны жизненного цикла по запросу и по расписанию.
type LifecycleService struct {
	files       repository.FileRepository
	plans       repository.PlanRepository
	transitions *TransitionExecutor
	cleanup     *CleanupExecutor
	analytics   *AnalyticsService
	lock        SweepLock
	thresholds  lifecycle.Thresholds
	concurrency int
	pageSize    int
	interval    time.Duration
	timeout     time.Duration
	now         func() time.Time
	logger      *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// LifecycleOptions — параметры прогона.
type LifecycleOptions struct {
	Thresholds  lifecycle.Thresholds
	Concurrency int
	PageSize    int
	// Interval — период планировщика; 0 — только ручной запуск
	Interval time.Duration
	// Timeout — таймаут одного обращения к хранилищам
	Timeout time.Duration
}

// NewLifecycleService создаёт сервис прогонов.
func NewLifecycleService(
	files repository.FileRepository,
	plans repository.PlanRepository,
	transitions *TransitionExecutor,
	cleanup *CleanupExecutor,
	analytics *AnalyticsService,
	lock SweepLock,
	opts LifecycleOptions,
	logger *slog.Logger,
) *LifecycleService {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.PageSize < 1 {
		opts.PageSize = 500
	}
	return &LifecycleService{
		files:       files,
		plans:       plans,
		transitions: transitions,
		cleanup:     cleanup,
		analytics:   analytics,
		lock:        lock,
		thresholds:  opts.Thresholds,
		concurrency: opts.Concurrency,
		pageSize:    opts.PageSize,
		interval:    opts.Interval,
		timeout:     opts.Timeout,
		now:         time.Now,
		logger:      logger.With(slog.String("component", "lifecycle")),
	}
}

// RunSweep выполняет один прогон. Результат возвращается и при ошибке
// выборки: файлы, обработанные до сбоя, уже записаны.
func (s *LifecycleService) RunSweep(ctx context.Context) (*SweepResult, error) {
	release, ok, err := s.lock.TryAcquire(ctx)
	if err != nil {
		sweepRunsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	if !ok {
		sweepRunsTotal.WithLabelValues("locked").Inc()
		return nil, ErrSweepInProgress
	}
	defer release()

	start := s.now()
	result := &SweepResult{StartedAt: start.UTC()}
	s.logger.Info("Прогон жизненного цикла начат")

	owners := newOwnerSet()
	var errs []error

	if err := s.transitionPhase(ctx, result, owners); err != nil {
		errs = append(errs, err)
	}

	cr, err := s.cleanup.Run(ctx, s.concurrency)
	if err != nil {
		errs = append(errs, err)
	}
	if cr != nil {
		result.Deleted = cr.Deleted
		result.CleanupFailed = cr.Failed
		result.Skipped += cr.Skipped
		for _, o := range cr.Owners {
			owners.add(o)
		}
	}

	result.UsersRefreshed = s.refreshUsage(ctx, owners.sorted())

	result.Duration = time.Since(start)
	result.DurationMs = result.Duration.Milliseconds()
	sweepDurationSeconds.Observe(result.Duration.Seconds())

	err = errors.Join(errs...)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	sweepRunsTotal.WithLabelValues(outcome).Inc()

	s.logger.Info("Прогон жизненного цикла завершён",
		slog.Int("processed", result.Processed),
		slog.Int("transitioned", result.Transitioned),
		slog.Int("skipped", result.Skipped),
		slog.Int("failed", result.Failed),
		slog.Int("deleted", result.Deleted),
		slog.Int("cleanup_failed", result.CleanupFailed),
		slog.Int("users_refreshed", result.UsersRefreshed),
		slog.Duration("duration", result.Duration),
	)
	return result, err
}

// transitionPhase проходит по страницам выборки и применяет переходы.
func (s *LifecycleService) transitionPhase(ctx context.Context, result *SweepResult, owners *ownerSet) error {
	var processed, transitioned, skipped, failed atomic.Int64
	resolver := newPolicyResolver(s.plans, s.timeout, s.logger)
	cutoff := s.now().UTC().Add(-s.thresholds.MinSweepAge)

	var g errgroup.Group
	g.SetLimit(s.concurrency)

	var listErr error
	after := ""
pages:
	for {
		if ctx.Err() != nil {
			break
		}

		listCtx, cancel := context.WithTimeout(ctx, s.timeout)
		page, err := s.files.ListForSweep(listCtx, cutoff, after, s.pageSize)
		cancel()
		if err != nil {
			listErr = fmt.Errorf("выборка файлов для прогона: %w", err)
			break
		}
		if len(page) == 0 {
			break
		}
		after = page[len(page)-1].ID

		for _, f := range page {
			if ctx.Err() != nil {
				break pages
			}
			g.Go(func() error {
				processed.Add(1)
				changed, err := s.processFile(ctx, resolver, f)
				switch {
				case err == nil && changed:
					transitioned.Add(1)
					owners.add(f.OwnerID)
					sweepFilesTotal.WithLabelValues("transitioned").Inc()
				case err == nil:
					sweepFilesTotal.WithLabelValues("unchanged").Inc()
				case errors.Is(err, repository.ErrConcurrentUpdate):
					skipped.Add(1)
					sweepFilesTotal.WithLabelValues("skipped").Inc()
				default:
					failed.Add(1)
					sweepFilesTotal.WithLabelValues("failed").Inc()
					s.logger.Warn("Ошибка перехода статуса, повтор в следующем прогоне",
						slog.String("file_id", f.ID),
						slog.String("user_id", f.OwnerID),
						slog.String("error", err.Error()),
					)
				}
				return nil
			})
		}

		if len(page) < s.pageSize {
			break
		}
	}
	_ = g.Wait()

	result.Processed = int(processed.Load())
	result.Transitioned = int(transitioned.Load())
	result.Skipped = int(skipped.Load())
	result.Failed = int(failed.Load())
	return listErr
}

func (s *LifecycleService) processFile(ctx context.Context, resolver *policyResolver, f *model.File) (bool, error) {
	rp, err := resolver.resolve(ctx, f.OwnerID)
	if err != nil {
		return false, err
	}
	d, err := s.transitions.Apply(ctx, f, rp.policy)
	if err != nil {
		return false, err
	}
	return d.Changed, nil
}

// refreshUsage пересчитывает снимки использования. Отмена контекста не
// прерывает пересчёт: статусы уже изменены.
func (s *LifecycleService) refreshUsage(ctx context.Context, owners []string) int {
	ctx = context.WithoutCancel(ctx)
	now := s.now().UTC()

	var refreshed atomic.Int64
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for _, userID := range owners {
		g.Go(func() error {
			if _, err := s.analytics.RefreshUsage(ctx, userID, now); err != nil {
				s.logger.Warn("Ошибка пересчёта снимка использования",
					slog.String("user_id", userID),
					slog.String("error", err.Error()),
				)
				return nil
			}
			refreshed.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	return int(refreshed.Load())
}

// Start запускает планировщик прогонов. При нулевом интервале не делает ничего.
func (s *LifecycleService) Start(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info("Планировщик прогонов выключен")
		return
	}

	schedCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(schedCtx)

	s.logger.Info("Планировщик прогонов запущен",
		slog.String("interval", s.interval.String()),
	)
}

// Stop останавливает планировщик и ждёт завершения текущего прогона.
func (s *LifecycleService) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.logger.Info("Планировщик прогонов остановлен")
}

func (s *LifecycleService) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.scheduledSweep(ctx)
		}
	}
}

func (s *LifecycleService) scheduledSweep(ctx context.Context) {
	_, err := s.RunSweep(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrSweepInProgress):
		s.logger.Info("Прогон пропущен: выполняется на другой реплике")
	default:
		s.logger.Error("Прогон жизненного цикла завершён с ошибкой",
			slog.String("error", err.Error()),
		)
	}
}

// ownerSet — множество владельцев, затронутых прогоном.
type ownerSet struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func newOwnerSet() *ownerSet {
	return &ownerSet{ids: make(map[string]struct{})}
}

func (o *ownerSet) add(id string) {
	o.mu.Lock()
	o.ids[id] = struct{}{}
	o.mu.Unlock()
}

func (o *ownerSet) sorted() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, 0, len(o.ids))
	for id := range o.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
