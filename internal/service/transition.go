package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/mediastore/lifecycle-engine/internal/domain/lifecycle"
	"github.com/bigkaa/mediastore/lifecycle-engine/internal/domain/model"
	"github.com/bigkaa/mediastore/lifecycle-engine/internal/repository"
)

// transitionsTotal — применённые переходы по паре статусов.
var transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "le_transitions_total",
	Help: "Количество применённых переходов статуса",
}, []string{"from", "to"})

// TransitionExecutor применяет решение функции переходов к одному файлу.
type TransitionExecutor struct {
	files      repository.FileRepository
	audit      repository.AuditRepository
	thresholds lifecycle.Thresholds
	timeout    time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

// NewTransitionExecutor создаёт исполнителя переходов.
func NewTransitionExecutor(
	files repository.FileRepository,
	audit repository.AuditRepository,
	thresholds lifecycle.Thresholds,
	timeout time.Duration,
	logger *slog.Logger,
) *TransitionExecutor {
	return &TransitionExecutor{
		files:      files,
		audit:      audit,
		thresholds: thresholds,
		timeout:    timeout,
		now:        time.Now,
		logger:     logger.With(slog.String("component", "transition")),
	}
}

// Apply вычисляет целевой статус файла и, если он изменился, записывает его
// с проверкой (status, version). Без изменения запись и аудит не выполняются.
//
// Проигранная гонка возвращается как repository.ErrConcurrentUpdate.
// При успехе f обновляется в памяти.
func (e *TransitionExecutor) Apply(ctx context.Context, f *model.File, policy model.LifecyclePolicy) (lifecycle.Decision, error) {
	now := e.now().UTC()
	age := f.AgeDays(now)

	d := lifecycle.Decide(f.Status, age, policy, e.thresholds, f.IsFavorite)
	if !d.Changed {
		return d, nil
	}

	tier := lifecycle.TierOf(d.Target)
	meta := map[string]any{
		model.MetaPreviousStatus: string(d.Current),
		model.MetaPolicySnapshot: policy.Snapshot(),
		model.MetaCostTier:       string(tier),
		model.MetaCompressed:     tier == model.TierArchive && policy.Compressed(),
		model.MetaTransitionedAt: now.Format(time.RFC3339),
	}

	updCtx, cancel := context.WithTimeout(ctx, e.timeout)
	err := e.files.UpdateStatus(updCtx, repository.StatusUpdate{
		ID:          f.ID,
		FromStatus:  f.Status,
		FromVersion: f.Version,
		ToStatus:    d.Target,
		At:          now,
		Metadata:    meta,
	})
	cancel()
	if err != nil {
		return d, err
	}

	transitionsTotal.WithLabelValues(string(d.Current), string(d.Target)).Inc()

	f.Status = d.Target
	f.Version++
	f.LastTransitionAt = now
	if f.LifecycleMetadata == nil {
		f.LifecycleMetadata = make(map[string]any, len(meta))
	}
	for k, v := range meta {
		f.LifecycleMetadata[k] = v
	}

	e.logger.Debug("Статус файла изменён",
		slog.String("file_id", f.ID),
		slog.String("from", string(d.Current)),
		slog.String("to", string(d.Target)),
		slog.Int("age_days", age),
	)

	appendAudit(ctx, e.audit, e.timeout, e.logger, &model.AuditEntry{
		UserID: f.OwnerID,
		FileID: f.ID,
		Event:  model.AuditTransition,
		Details: map[string]any{
			"filename":  f.Filename,
			"from":      string(d.Current),
			"to":        string(d.Target),
			"ageDays":   age,
			"sizeBytes": f.SizeBytes,
		},
		CreatedAt: now,
	})

	return d, nil
}

// appendAudit пишет запись журнала. Ошибка логируется и не возвращается.
func appendAudit(ctx context.Context, audit repository.AuditRepository, timeout time.Duration, logger *slog.Logger, e *model.AuditEntry) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	if err := audit.Append(ctx, e); err != nil {
		logger.Warn("Ошибка записи в журнал жизненного цикла",
			slog.String("file_id", e.FileID),
			slog.String("event", string(e.Event)),
			slog.String("error", err.Error()),
		)
	}
}
