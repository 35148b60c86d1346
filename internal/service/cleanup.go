// cleanup.go — физическое удаление файлов с истёкшим grace period.
//
// Удаление одного файла — последовательность шагов:
//  0. повторное чтение записи: файл, добавленный в избранное после выборки, пропускается;
//  1. основной объект в blob-хранилище (обязательный шаг);
//  2. миниатюра (необязательный шаг, ошибка только логируется);
//  3. soft delete записи (status = deleted) при условии status = scheduled_deletion;
//  4. запись в журнал с оценкой месячной экономии.
//
// Ошибка обязательного шага оставляет файл в scheduled_deletion, следующий
// прогон повторит удаление (DeleteObject идемпотентен).
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"

	"github.com/bigkaa/mediastore/lifecycle-engine/internal/domain/model"
	"github.com/bigkaa/mediastore/lifecycle-engine/internal/objectstore"
	"github.com/bigkaa/mediastore/lifecycle-engine/internal/repository"
)

// DeletionReasonPolicy — причина удаления по политике плана.
const DeletionReasonPolicy = "lifecycle_policy"

var (
	cleanupDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "le_cleanup_deleted_total",
		Help: "Количество файлов, удалённых по политике жизненного цикла",
	})
	cleanupFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "le_cleanup_failed_total",
		Help: "Количество ошибок удаления по шагам",
	}, []string{"step"})
	cleanupFreedBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "le_cleanup_freed_bytes_total",
		Help: "Объём освобождённого хранилища в байтах",
	})
)

// CleanupResult — результат фазы удаления.
type CleanupResult struct {
	// Deleted — файлы, переведённые в deleted
	Deleted int
	// Failed — файлы, оставшиеся в scheduled_deletion из-за ошибки
	Failed int
	// Skipped — файлы, изменённые параллельно (избранное, гонка)
	Skipped int
	// Owners — владельцы удалённых файлов
	Owners []string
}

// cleanupStep — шаг удаления файла.
type cleanupStep struct {
	name string
	// fatal — ошибка шага прерывает удаление файла
	fatal bool
	run   func(ctx context.Context, f *model.File, now time.Time) error
}

// CleanupExecutor удаляет файлы в scheduled_deletion старше grace period.
type CleanupExecutor struct {
	files       repository.FileRepository
	store       objectstore.Store
	audit       repository.AuditRepository
	rates       model.CostRates
	gracePeriod time.Duration
	pageSize    int
	timeout     time.Duration
	now         func() time.Time
	logger      *slog.Logger
	steps       []cleanupStep
}

// NewCleanupExecutor создаёт исполнителя удаления.
func NewCleanupExecutor(
	files repository.FileRepository,
	store objectstore.Store,
	audit repository.AuditRepository,
	rates model.CostRates,
	gracePeriod time.Duration,
	pageSize int,
	timeout time.Duration,
	logger *slog.Logger,
) *CleanupExecutor {
	c := &CleanupExecutor{
		files:       files,
		store:       store,
		audit:       audit,
		rates:       rates,
		gracePeriod: gracePeriod,
		pageSize:    pageSize,
		timeout:     timeout,
		now:         time.Now,
		logger:      logger.With(slog.String("component", "cleanup")),
	}
	c.steps = []cleanupStep{
		{name: "recheck", fatal: true, run: c.recheck},
		{name: "primary", fatal: true, run: c.deletePrimary},
		{name: "thumbnail", fatal: false, run: c.deleteThumbnail},
		{name: "record", fatal: true, run: c.softDelete},
	}
	return c
}

// Run удаляет все подходящие файлы, обрабатывая до concurrency файлов одновременно.
// Ошибки отдельных файлов считаются и логируются. Ошибка возвращается только
// при сбое выборки.
func (c *CleanupExecutor) Run(ctx context.Context, concurrency int) (*CleanupResult, error) {
	var (
		deleted, failed, skipped atomic.Int64
		ownersMu                 sync.Mutex
		owners                   = make(map[string]struct{})
	)

	cutoff := c.now().UTC().Add(-c.gracePeriod)

	var g errgroup.Group
	g.SetLimit(concurrency)

	var listErr error
	after := ""
pages:
	for {
		if ctx.Err() != nil {
			break
		}

		listCtx, cancel := context.WithTimeout(ctx, c.timeout)
		page, err := c.files.ListForCleanup(listCtx, cutoff, after, c.pageSize)
		cancel()
		if err != nil {
			listErr = fmt.Errorf("выборка файлов для удаления: %w", err)
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
				err := c.CleanupFile(ctx, f)
				switch {
				case err == nil:
					deleted.Add(1)
					ownersMu.Lock()
					owners[f.OwnerID] = struct{}{}
					ownersMu.Unlock()
				case errors.Is(err, repository.ErrConcurrentUpdate), errors.Is(err, errSkipFile):
					skipped.Add(1)
				default:
					failed.Add(1)
				}
				return nil
			})
		}

		if len(page) < c.pageSize {
			break
		}
	}
	_ = g.Wait()

	res := &CleanupResult{
		Deleted: int(deleted.Load()),
		Failed:  int(failed.Load()),
		Skipped: int(skipped.Load()),
		Owners:  make([]string, 0, len(owners)),
	}
	for o := range owners {
		res.Owners = append(res.Owners, o)
	}
	return res, listErr
}

// errSkipFile — файл больше не подлежит удалению.
var errSkipFile = errors.New("файл не подлежит удалению")

// CleanupFile выполняет шаги удаления одного файла.
func (c *CleanupExecutor) CleanupFile(ctx context.Context, f *model.File) error {
	if f.IsFavorite || f.Status != model.StatusScheduledDeletion {
		return errSkipFile
	}

	now := c.now().UTC()
	log := c.logger.With(slog.String("file_id", f.ID), slog.String("user_id", f.OwnerID))

	for _, step := range c.steps {
		err := step.run(ctx, f, now)
		if err == nil {
			continue
		}

		if errors.Is(err, repository.ErrConcurrentUpdate) {
			log.Info("Файл изменён во время удаления, пропущен", slog.String("step", step.name))
			return err
		}
		cleanupFailedTotal.WithLabelValues(step.name).Inc()
		if step.fatal {
			log.Warn("Ошибка удаления файла, повтор в следующем прогоне",
				slog.String("step", step.name),
				slog.String("error", err.Error()),
			)
			return fmt.Errorf("шаг %s: %w", step.name, err)
		}
		log.Warn("Частичное удаление: необязательный шаг не выполнен",
			slog.String("step", step.name),
			slog.String("error", err.Error()),
		)
	}

	savings := math.Round(f.SizeGB()*c.rates.Hot*100) / 100
	cleanupDeletedTotal.Inc()
	if f.SizeBytes > 0 {
		cleanupFreedBytesTotal.Add(float64(f.SizeBytes))
	}

	appendAudit(ctx, c.audit, c.timeout, c.logger, &model.AuditEntry{
		UserID: f.OwnerID,
		FileID: f.ID,
		Event:  model.AuditDeletion,
		Details: map[string]any{
			"filename":         f.Filename,
			"storagePath":      f.StoragePath,
			"sizeBytes":        f.SizeBytes,
			"reason":           DeletionReasonPolicy,
			"estimatedSavings": savings,
		},
		CreatedAt: now,
	})

	log.Info("Файл удалён по политике жизненного цикла",
		slog.Int64("size_bytes", f.SizeBytes),
		slog.Float64("estimated_savings", savings),
	)
	return nil
}

func (c *CleanupExecutor) recheck(ctx context.Context, f *model.File, _ time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cur, err := c.files.GetByID(ctx, f.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: файл %s удалён из реестра", repository.ErrConcurrentUpdate, f.ID)
		}
		return err
	}
	if cur.IsFavorite || cur.Status != model.StatusScheduledDeletion {
		return fmt.Errorf("%w: файл %s (%s, избранное=%v)", repository.ErrConcurrentUpdate, f.ID, cur.Status, cur.IsFavorite)
	}
	return nil
}

func (c *CleanupExecutor) deletePrimary(ctx context.Context, f *model.File, _ time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.store.DeleteObject(ctx, f.StoragePath)
}

func (c *CleanupExecutor) deleteThumbnail(ctx context.Context, f *model.File, _ time.Time) error {
	if f.ThumbnailPath == nil || *f.ThumbnailPath == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.store.DeleteObject(ctx, *f.ThumbnailPath)
}

func (c *CleanupExecutor) softDelete(ctx context.Context, f *model.File, now time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.files.SoftDelete(ctx, f.ID, now, map[string]any{
		model.MetaDeletionReason: DeletionReasonPolicy,
		model.MetaDeletedAt:      now.Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	f.Status = model.StatusDeleted
	f.DeletedAt = &now
	return nil
}
