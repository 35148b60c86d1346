package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/mediastore/lifecycle-engine/internal/domain/model"
)

// FileRepository — доступ к таблице media_files.
type FileRepository interface {
	// ListForSweep возвращает страницу не удалённых файлов, сменивших статус
	// раньше olderThan, с id больше afterID (keyset-пагинация).
	ListForSweep(ctx context.Context, olderThan time.Time, afterID string, limit int) ([]*model.File, error)
	// ListForCleanup возвращает страницу файлов в scheduled_deletion,
	// не избранных, с истёкшим grace period.
	ListForCleanup(ctx context.Context, olderThan time.Time, afterID string, limit int) ([]*model.File, error)
	// ListByOwner возвращает все не удалённые файлы пользователя.
	ListByOwner(ctx context.Context, ownerID string) ([]*model.File, error)
	// GetByID возвращает файл по UUID.
	GetByID(ctx context.Context, id string) (*model.File, error)
	// UpdateStatus меняет статус при совпадении ожидаемых статуса и версии.
	UpdateStatus(ctx context.Context, u StatusUpdate) error
	// SoftDelete переводит файл из scheduled_deletion в deleted.
	SoftDelete(ctx context.Context, id string, at time.Time, metadata map[string]any) error
}

// StatusUpdate — параметры compare-and-set перехода статуса.
type StatusUpdate struct {
	ID          string
	FromStatus  model.FileStatus
	FromVersion int64
	ToStatus    model.FileStatus
	At          time.Time
	// Metadata сливается с lifecycle_metadata (ключи перезаписываются)
	Metadata map[string]any
}

type fileRepo struct {
	db DBTX
}

// NewFileRepository создаёт репозиторий медиафайлов.
func NewFileRepository(db DBTX) FileRepository {
	return &fileRepo{db: db}
}

const fileColumns = `id, owner_id, filename, storage_path, thumbnail_path, size_bytes,
	status, is_favorite, last_transition_at, lifecycle_metadata, version,
	deleted_at, created_at, updated_at`

func (r *fileRepo) ListForSweep(ctx context.Context, olderThan time.Time, afterID string, limit int) ([]*model.File, error) {
	query := `
		SELECT ` + fileColumns + `
		FROM media_files
		WHERE status <> 'deleted' AND last_transition_at < $1 AND id > $2::uuid
		ORDER BY id
		LIMIT $3`

	return r.list(ctx, "sweep", query, olderThan, keyset(afterID), limit)
}

func (r *fileRepo) ListForCleanup(ctx context.Context, olderThan time.Time, afterID string, limit int) ([]*model.File, error) {
	query := `
		SELECT ` + fileColumns + `
		FROM media_files
		WHERE status = 'scheduled_deletion' AND is_favorite = FALSE
			AND last_transition_at < $1 AND id > $2::uuid
		ORDER BY id
		LIMIT $3`

	return r.list(ctx, "cleanup", query, olderThan, keyset(afterID), limit)
}

func (r *fileRepo) ListByOwner(ctx context.Context, ownerID string) ([]*model.File, error) {
	query := `
		SELECT ` + fileColumns + `
		FROM media_files
		WHERE owner_id = $1 AND status <> 'deleted'
		ORDER BY id`

	return r.list(ctx, "owner", query, ownerID)
}

func (r *fileRepo) GetByID(ctx context.Context, id string) (*model.File, error) {
	query := `
		SELECT ` + fileColumns + `
		FROM media_files
		WHERE id = $1`

	f, err := scanFile(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения файла: %w", err)
	}
	return f, nil
}

func (r *fileRepo) UpdateStatus(ctx context.Context, u StatusUpdate) error {
	meta, err := marshalJSON(u.Metadata)
	if err != nil {
		return err
	}

	query := `
		UPDATE media_files
		SET status = $4,
			last_transition_at = $5,
			lifecycle_metadata = lifecycle_metadata || $6::jsonb,
			version = version + 1,
			updated_at = $5
		WHERE id = $1 AND status = $2 AND version = $3`

	tag, err := r.db.Exec(ctx, query, u.ID, string(u.FromStatus), u.FromVersion, string(u.ToStatus), u.At, meta)
	if err != nil {
		return fmt.Errorf("ошибка обновления статуса файла: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: файл %s (%s, версия %d)", ErrConcurrentUpdate, u.ID, u.FromStatus, u.FromVersion)
	}
	return nil
}

func (r *fileRepo) SoftDelete(ctx context.Context, id string, at time.Time, metadata map[string]any) error {
	meta, err := marshalJSON(metadata)
	if err != nil {
		return err
	}

	// Файл, добавленный в избранное во время очистки, не удаляется
	query := `
		UPDATE media_files
		SET status = 'deleted',
			deleted_at = $2,
			last_transition_at = $2,
			lifecycle_metadata = lifecycle_metadata || $3::jsonb,
			version = version + 1,
			updated_at = $2
		WHERE id = $1 AND status = 'scheduled_deletion' AND is_favorite = FALSE`

	tag, err := r.db.Exec(ctx, query, id, at, meta)
	if err != nil {
		return fmt.Errorf("ошибка удаления файла: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: файл %s не в scheduled_deletion", ErrConcurrentUpdate, id)
	}
	return nil
}

func (r *fileRepo) list(ctx context.Context, what, query string, args ...any) ([]*model.File, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки файлов (%s): %w", what, err)
	}
	defer rows.Close()

	var result []*model.File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования файла: %w", err)
		}
		result = append(result, f)
	}
	return result, rows.Err()
}

func scanFile(row pgx.Row) (*model.File, error) {
	f := &model.File{}
	var (
		status string
		meta   []byte
	)
	err := row.Scan(
		&f.ID, &f.OwnerID, &f.Filename, &f.StoragePath, &f.ThumbnailPath, &f.SizeBytes,
		&status, &f.IsFavorite, &f.LastTransitionAt, &meta, &f.Version,
		&f.DeletedAt, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	f.Status = model.FileStatus(status)
	if f.LifecycleMetadata, err = unmarshalJSON(meta); err != nil {
		return nil, err
	}
	return f, nil
}

func keyset(afterID string) string {
	if afterID == "" {
		return nilUUID
	}
	return afterID
}
