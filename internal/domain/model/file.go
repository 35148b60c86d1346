// Пакет model — доменные типы Lifecycle Engine: медиафайлы, статусы,
// тарифы хранения, политики жизненного цикла и аналитика.
package model

import "time"

// FileStatus — статус медиафайла в жизненном цикле хранения.
type FileStatus string

const (
	// StatusUploaded — файл загружен, обработка не завершена
	StatusUploaded FileStatus = "uploaded"
	// StatusReady — файл готов, hot storage
	StatusReady FileStatus = "ready"
	// StatusWarmStorage — файл перенесён в warm storage
	StatusWarmStorage FileStatus = "warm_storage"
	// StatusArchived — файл в архиве
	StatusArchived FileStatus = "archived"
	// StatusFavoriteWarm — избранный файл в warm storage
	StatusFavoriteWarm FileStatus = "favorite_warm"
	// StatusFavoriteArchive — избранный файл в архиве
	StatusFavoriteArchive FileStatus = "favorite_archive"
	// StatusScheduledDeletion — файл ожидает удаления (grace period)
	StatusScheduledDeletion FileStatus = "scheduled_deletion"
	// StatusDeleted — файл удалён (конечный статус)
	StatusDeleted FileStatus = "deleted"
)

// AllStatuses — все допустимые статусы файла.
var AllStatuses = []FileStatus{
	StatusUploaded,
	StatusReady,
	StatusWarmStorage,
	StatusArchived,
	StatusFavoriteWarm,
	StatusFavoriteArchive,
	StatusScheduledDeletion,
	StatusDeleted,
}

// IsValid проверяет, что статус входит в множество допустимых.
func (s FileStatus) IsValid() bool {
	switch s {
	case StatusUploaded, StatusReady, StatusWarmStorage, StatusArchived,
		StatusFavoriteWarm, StatusFavoriteArchive, StatusScheduledDeletion, StatusDeleted:
		return true
	}
	return false
}

// IsTerminal — статус deleted больше никогда не меняется.
func (s FileStatus) IsTerminal() bool {
	return s == StatusDeleted
}

// Ключи lifecycle_metadata.
const (
	MetaPreviousStatus = "previousStatus"
	MetaPolicySnapshot = "policySnapshot"
	MetaCostTier       = "costTier"
	MetaCompressed     = "compressed"
	MetaTransitionedAt = "transitionedAt"
	MetaDeletionReason = "deletionReason"
	MetaDeletedAt      = "deletedAt"
)

// File — медиафайл пользователя.
// Хранится в таблице media_files.
type File struct {
	// ID — UUID файла
	ID string
	// OwnerID — UUID владельца
	OwnerID string
	// Filename — оригинальное имя файла
	Filename string
	// StoragePath — ключ основного объекта в blob-хранилище
	StoragePath string
	// ThumbnailPath — ключ миниатюры (опционально)
	ThumbnailPath *string
	// SizeBytes — размер в байтах
	SizeBytes int64
	// Status — текущий статус жизненного цикла
	Status FileStatus
	// IsFavorite — флаг избранного, выставляется только владельцем
	IsFavorite bool
	// LastTransitionAt — точка отсчёта возраста (время последней смены статуса)
	LastTransitionAt time.Time
	// LifecycleMetadata — открытый набор аннотаций движка
	LifecycleMetadata map[string]any
	// Version — токен оптимистичной блокировки, растёт при каждой записи движка
	Version int64
	// DeletedAt — время soft delete
	DeletedAt *time.Time
	// CreatedAt — время создания записи
	CreatedAt time.Time
	// UpdatedAt — время последнего обновления
	UpdatedAt time.Time
}

// AgeDays возвращает полное количество суток с момента последнего перехода.
// Отрицательный возраст (часы рассинхронизированы) приводится к 0.
func (f *File) AgeDays(now time.Time) int {
	d := now.Sub(f.LastTransitionAt)
	if d < 0 {
		return 0
	}
	return int(d.Hours() / 24)
}

// SizeGB возвращает размер файла в гигабайтах (1 GB = 1024³ байт).
func (f *File) SizeGB() float64 {
	return BytesToGB(f.SizeBytes)
}

// BytesToGB переводит байты в гигабайты (1 GB = 1024³ байт).
func BytesToGB(b int64) float64 {
	return float64(b) / (1024 * 1024 * 1024)
}
