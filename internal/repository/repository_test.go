package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/bigkaa/mediastore/lifecycle-engine/internal/domain/model"
)

var fileColumnNames = []string{
	"id", "owner_id", "filename", "storage_path", "thumbnail_path", "size_bytes",
	"status", "is_favorite", "last_transition_at", "lifecycle_metadata", "version",
	"deleted_at", "created_at", "updated_at",
}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func fileRow(rows *pgxmock.Rows, id string, status model.FileStatus, thumb *string, meta string) *pgxmock.Rows {
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return rows.AddRow(
		id, "owner-1", "photo.jpg", "owner-1/photo.jpg", thumb, int64(1024),
		string(status), false, ts, []byte(meta), int64(3),
		(*time.Time)(nil), ts, ts,
	)
}

func TestFileRepository_ListForSweep(t *testing.T) {
	mock := newMock(t)
	repo := NewFileRepository(mock)
	cutoff := time.Now().Add(-24 * time.Hour)
	thumb := "owner-1/photo_thumb.jpg"

	rows := mock.NewRows(fileColumnNames)
	fileRow(rows, "11111111-1111-1111-1111-111111111111", model.StatusReady, &thumb, `{"costTier":"hot"}`)
	fileRow(rows, "22222222-2222-2222-2222-222222222222", model.StatusArchived, nil, ``)

	mock.ExpectQuery(`FROM media_files`).
		WithArgs(cutoff, nilUUID, 100).
		WillReturnRows(rows)

	files, err := repo.ListForSweep(context.Background(), cutoff, "", 100)
	require.NoError(t, err)
	require.Len(t, files, 2)
	require.Equal(t, model.StatusReady, files[0].Status)
	require.Equal(t, "hot", files[0].LifecycleMetadata[model.MetaCostTier])
	require.NotNil(t, files[0].ThumbnailPath)
	require.Equal(t, thumb, *files[0].ThumbnailPath)
	require.Nil(t, files[1].ThumbnailPath)
	require.Empty(t, files[1].LifecycleMetadata)
	require.Equal(t, int64(3), files[1].Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFileRepository_ListForCleanup_Keyset(t *testing.T) {
	mock := newMock(t)
	repo := NewFileRepository(mock)
	cutoff := time.Now().Add(-7 * 24 * time.Hour)
	after := "33333333-3333-3333-3333-333333333333"

	mock.ExpectQuery(`status = 'scheduled_deletion' AND is_favorite = FALSE`).
		WithArgs(cutoff, after, 50).
		WillReturnRows(mock.NewRows(fileColumnNames))

	files, err := repo.ListForCleanup(context.Background(), cutoff, after, 50)
	require.NoError(t, err)
	require.Empty(t, files)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFileRepository_GetByID_NotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewFileRepository(mock)

	mock.ExpectQuery(`FROM media_files`).
		WithArgs("missing").
		WillReturnRows(mock.NewRows(fileColumnNames))

	_, err := repo.GetByID(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFileRepository_UpdateStatus(t *testing.T) {
	now := time.Now()
	upd := StatusUpdate{
		ID:          "file-1",
		FromStatus:  model.StatusReady,
		FromVersion: 4,
		ToStatus:    model.StatusArchived,
		At:          now,
		Metadata:    map[string]any{model.MetaPreviousStatus: "ready"},
	}

	t.Run("успешный переход", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec(`UPDATE media_files`).
			WithArgs("file-1", "ready", int64(4), "archived", now, pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, NewFileRepository(mock).UpdateStatus(context.Background(), upd))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("проигранная гонка", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec(`UPDATE media_files`).
			WithArgs("file-1", "ready", int64(4), "archived", now, pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := NewFileRepository(mock).UpdateStatus(context.Background(), upd)
		require.ErrorIs(t, err, ErrConcurrentUpdate)
	})

	t.Run("ошибка БД", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec(`UPDATE media_files`).
			WillReturnError(errors.New("connection reset"))

		err := NewFileRepository(mock).UpdateStatus(context.Background(), upd)
		require.Error(t, err)
		require.NotErrorIs(t, err, ErrConcurrentUpdate)
	})
}

func TestFileRepository_SoftDelete(t *testing.T) {
	mock := newMock(t)
	repo := NewFileRepository(mock)
	now := time.Now()

	mock.ExpectExec(`SET status = 'deleted'`).
		WithArgs("file-1", now, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`SET status = 'deleted'`).
		WithArgs("file-2", now, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.NoError(t, repo.SoftDelete(context.Background(), "file-1", now, map[string]any{"deletionReason": "lifecycle_policy"}))
	require.ErrorIs(t, repo.SoftDelete(context.Background(), "file-2", now, nil), ErrConcurrentUpdate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPlanRepository_GetPlanForUser(t *testing.T) {
	mock := newMock(t)
	repo := NewPlanRepository(mock)

	mock.ExpectQuery(`FROM user_subscriptions`).
		WithArgs("user-1").
		WillReturnRows(mock.NewRows([]string{"plan"}).AddRow("creator"))
	mock.ExpectQuery(`FROM user_subscriptions`).
		WithArgs("user-2").
		WillReturnRows(mock.NewRows([]string{"plan"}))

	plan, err := repo.GetPlanForUser(context.Background(), "user-1")
	require.NoError(t, err)
	require.Equal(t, model.PlanCreator, plan)

	_, err = repo.GetPlanForUser(context.Background(), "user-2")
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepository_Append(t *testing.T) {
	mock := newMock(t)
	repo := NewAuditRepository(mock)
	now := time.Now()

	mock.ExpectExec(`INSERT INTO lifecycle_audit_log`).
		WithArgs(pgxmock.AnyArg(), "user-1", "file-1", "lifecycle_transition", pgxmock.AnyArg(), now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	e := &model.AuditEntry{
		UserID:    "user-1",
		FileID:    "file-1",
		Event:     model.AuditTransition,
		Details:   map[string]any{"from": "ready", "to": "archived"},
		CreatedAt: now,
	}
	require.NoError(t, repo.Append(context.Background(), e))
	require.NotEmpty(t, e.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCostAlertRepository(t *testing.T) {
	mock := newMock(t)
	repo := NewCostAlertRepository(mock)
	now := time.Now()

	mock.ExpectExec(`INSERT INTO cost_alerts`).
		WithArgs(pgxmock.AnyArg(), "user-1", "warning", 40.0, 50.0, 80.0, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	a := &model.CostAlert{UserID: "user-1", Severity: model.CostStatusWarning, Cost: 40, Limit: 50, Percentage: 80, CreatedAt: now}
	require.NoError(t, repo.Append(context.Background(), a))

	mock.ExpectQuery(`FROM cost_alerts`).
		WithArgs("user-1", 10).
		WillReturnRows(mock.NewRows([]string{"id", "user_id", "severity", "cost", "cost_limit", "percentage", "created_at"}).
			AddRow(a.ID, "user-1", "warning", 40.0, 50.0, 80.0, now))

	alerts, err := repo.ListByUser(context.Background(), "user-1", 10)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	require.Equal(t, model.CostStatusWarning, alerts[0].Severity)
	require.Equal(t, 80.0, alerts[0].Percentage)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUsageRepository(t *testing.T) {
	mock := newMock(t)
	repo := NewUsageRepository(mock)
	now := time.Now()

	u := &model.StorageUsage{
		UserID: "user-1", HotBytes: 10, WarmBytes: 20, ArchiveBytes: 30,
		FavoriteBytes: 5, TotalBytes: 60, FileCount: 3, MonthlyCost: 1.5, UpdatedAt: now,
	}

	mock.ExpectExec(`ON CONFLICT \(user_id\) DO UPDATE`).
		WithArgs("user-1", int64(10), int64(20), int64(30), int64(5), int64(60), 3, 1.5, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, repo.Upsert(context.Background(), u))

	mock.ExpectQuery(`FROM storage_usage`).
		WithArgs("user-2").
		WillReturnRows(mock.NewRows([]string{"user_id"}))
	_, err := repo.Get(context.Background(), "user-2")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}
