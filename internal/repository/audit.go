package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/bigkaa/mediastore/lifecycle-engine/internal/domain/model"
)

// AuditRepository — журнал lifecycle_audit_log.
type AuditRepository interface {
	// Append добавляет запись. Пустой ID генерируется.
	Append(ctx context.Context, e *model.AuditEntry) error
}

type auditRepo struct {
	db DBTX
}

// NewAuditRepository создаёт репозиторий журнала.
func NewAuditRepository(db DBTX) AuditRepository {
	return &auditRepo{db: db}
}

func (r *auditRepo) Append(ctx context.Context, e *model.AuditEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	details, err := marshalJSON(e.Details)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO lifecycle_audit_log (id, user_id, file_id, event, details, created_at)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6)`

	if _, err := r.db.Exec(ctx, query, e.ID, e.UserID, e.FileID, string(e.Event), details, e.CreatedAt); err != nil {
		return fmt.Errorf("ошибка записи в журнал: %w", err)
	}
	return nil
}
