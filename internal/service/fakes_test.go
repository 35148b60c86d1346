package service

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/bigkaa/mediastore/lifecycle-engine/internal/domain/model"
	"github.com/bigkaa/mediastore/lifecycle-engine/internal/repository"
)

// testLogger — логгер без вывода.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const gb = int64(1024 * 1024 * 1024)

// fakeFiles — in-memory FileRepository с семантикой CAS.
type fakeFiles struct {
	mu    sync.Mutex
	files map[string]*model.File

	updates   int
	updateErr map[string]error
	listErr   error
	// beforeGet вызывается в GetByID до чтения (эмуляция параллельной записи)
	beforeGet func(f *model.File)
}

func newFakeFiles(files ...*model.File) *fakeFiles {
	r := &fakeFiles{files: make(map[string]*model.File), updateErr: make(map[string]error)}
	for _, f := range files {
		r.files[f.ID] = cloneFile(f)
	}
	return r
}

func cloneFile(f *model.File) *model.File {
	c := *f
	if f.LifecycleMetadata != nil {
		c.LifecycleMetadata = make(map[string]any, len(f.LifecycleMetadata))
		for k, v := range f.LifecycleMetadata {
			c.LifecycleMetadata[k] = v
		}
	}
	return &c
}

func (r *fakeFiles) get(id string) *model.File {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneFile(r.files[id])
}

func (r *fakeFiles) page(match func(*model.File) bool, afterID string, limit int) []*model.File {
	ids := make([]string, 0, len(r.files))
	for id := range r.files {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []*model.File
	for _, id := range ids {
		f := r.files[id]
		if id <= afterID || !match(f) {
			continue
		}
		out = append(out, cloneFile(f))
		if len(out) == limit {
			break
		}
	}
	return out
}

func (r *fakeFiles) ListForSweep(_ context.Context, olderThan time.Time, afterID string, limit int) ([]*model.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	return r.page(func(f *model.File) bool {
		return f.Status != model.StatusDeleted && f.LastTransitionAt.Before(olderThan)
	}, afterID, limit), nil
}

func (r *fakeFiles) ListForCleanup(_ context.Context, olderThan time.Time, afterID string, limit int) ([]*model.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.page(func(f *model.File) bool {
		return f.Status == model.StatusScheduledDeletion && !f.IsFavorite && f.LastTransitionAt.Before(olderThan)
	}, afterID, limit), nil
}

func (r *fakeFiles) ListByOwner(_ context.Context, ownerID string) ([]*model.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.page(func(f *model.File) bool {
		return f.OwnerID == ownerID && f.Status != model.StatusDeleted
	}, "", len(r.files)+1), nil
}

func (r *fakeFiles) GetByID(_ context.Context, id string) (*model.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.files[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if r.beforeGet != nil {
		r.beforeGet(f)
	}
	return cloneFile(f), nil
}

func (r *fakeFiles) UpdateStatus(_ context.Context, u repository.StatusUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.updateErr[u.ID]; err != nil {
		return err
	}
	f, ok := r.files[u.ID]
	if !ok || f.Status != u.FromStatus || f.Version != u.FromVersion {
		return repository.ErrConcurrentUpdate
	}
	f.Status = u.ToStatus
	f.Version++
	f.LastTransitionAt = u.At
	if f.LifecycleMetadata == nil {
		f.LifecycleMetadata = map[string]any{}
	}
	for k, v := range u.Metadata {
		f.LifecycleMetadata[k] = v
	}
	r.updates++
	return nil
}

func (r *fakeFiles) SoftDelete(_ context.Context, id string, at time.Time, metadata map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.files[id]
	if !ok || f.Status != model.StatusScheduledDeletion || f.IsFavorite {
		return repository.ErrConcurrentUpdate
	}
	f.Status = model.StatusDeleted
	f.DeletedAt = &at
	f.Version++
	if f.LifecycleMetadata == nil {
		f.LifecycleMetadata = map[string]any{}
	}
	for k, v := range metadata {
		f.LifecycleMetadata[k] = v
	}
	return nil
}

// fakePlans — PlanRepository по карте пользователь → план.
type fakePlans struct {
	mu    sync.Mutex
	plans map[string]model.Plan
	err   error
	calls int
}

func (p *fakePlans) GetPlanForUser(_ context.Context, userID string) (model.Plan, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return "", p.err
	}
	plan, ok := p.plans[userID]
	if !ok {
		return "", repository.ErrNotFound
	}
	return plan, nil
}

type fakeAudit struct {
	mu      sync.Mutex
	entries []*model.AuditEntry
	err     error
}

func (a *fakeAudit) Append(_ context.Context, e *model.AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.entries = append(a.entries, e)
	return nil
}

func (a *fakeAudit) count(event model.AuditEvent) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, e := range a.entries {
		if e.Event == event {
			n++
		}
	}
	return n
}

type fakeAlerts struct {
	mu     sync.Mutex
	alerts []*model.CostAlert
	err    error
}

func (a *fakeAlerts) Append(_ context.Context, alert *model.CostAlert) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.alerts = append(a.alerts, alert)
	return nil
}

func (a *fakeAlerts) ListByUser(_ context.Context, userID string, limit int) ([]*model.CostAlert, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []*model.CostAlert
	for i := len(a.alerts) - 1; i >= 0 && len(out) < limit; i-- {
		if a.alerts[i].UserID == userID {
			out = append(out, a.alerts[i])
		}
	}
	return out, nil
}

type fakeUsage struct {
	mu    sync.Mutex
	usage map[string]*model.StorageUsage
}

func newFakeUsage() *fakeUsage {
	return &fakeUsage{usage: make(map[string]*model.StorageUsage)}
}

func (u *fakeUsage) Upsert(_ context.Context, s *model.StorageUsage) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	c := *s
	u.usage[s.UserID] = &c
	return nil
}

func (u *fakeUsage) Get(_ context.Context, userID string) (*model.StorageUsage, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	s, ok := u.usage[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *s
	return &c, nil
}

// fakeStore — blob-хранилище с журналом удалений и внедряемыми ошибками.
type fakeStore struct {
	mu      sync.Mutex
	deleted []string
	fail    map[string]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{fail: make(map[string]error)}
}

func (s *fakeStore) DeleteObject(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail[path]; err != nil {
		return err
	}
	s.deleted = append(s.deleted, path)
	return nil
}

func (s *fakeStore) Name() string { return "fake" }

func (s *fakeStore) CheckReady(context.Context) (string, string) { return "ok", "" }

func (s *fakeStore) wasDeleted(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.deleted {
		if p == path {
			return true
		}
	}
	return false
}

func strPtr(s string) *string { return &s }
