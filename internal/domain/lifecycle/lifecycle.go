// Пакет lifecycle — чистые функции жизненного цикла медиафайла.
//
// Возраст файла отсчитывается от последней смены статуса. Порядок решения
// (первое совпадение):
//
//	избранный:     age >= FavoriteArchiveAfterDays → favorite_archive
//	               age >= policy.ArchiveAfterDays  → favorite_warm
//	               иначе                           → ready
//	не избранный:  DeleteAfterDays != nil && age >= DeleteAfterDays → scheduled_deletion
//	               age >= policy.ArchiveAfterDays  → archived
//	               age >= WarmAfterDays            → warm_storage
//	               иначе                           → ready
//
// Границы включительные. Состояния нет: одинаковые входы дают одинаковый результат.
package lifecycle

import (
	"time"

	"github.com/bigkaa/mediastore/lifecycle-engine/internal/domain/model"
)

// Thresholds — пороги, не зависящие от тарифного плана.
type Thresholds struct {
	// WarmAfterDays — перевод не избранного файла в warm storage
	WarmAfterDays int
	// FavoriteArchiveAfterDays — перевод избранного файла в архив
	FavoriteArchiveAfterDays int
	// GracePeriod — минимальное время в scheduled_deletion до физического удаления
	GracePeriod time.Duration
	// MinSweepAge — файлы, менявшие статус позже, не рассматриваются sweep
	MinSweepAge time.Duration
}

// DefaultThresholds — 30 суток до warm, 365 до архива избранного, 7 суток grace period.
func DefaultThresholds() Thresholds {
	return Thresholds{
		WarmAfterDays:            30,
		FavoriteArchiveAfterDays: 365,
		GracePeriod:              7 * 24 * time.Hour,
		MinSweepAge:              24 * time.Hour,
	}
}

// NextStatus вычисляет целевой статус по возрасту, политике и флагу избранного.
func NextStatus(ageDays int, policy model.LifecyclePolicy, th Thresholds, isFavorite bool) model.FileStatus {
	if isFavorite {
		switch {
		case ageDays >= th.FavoriteArchiveAfterDays:
			return model.StatusFavoriteArchive
		case ageDays >= policy.ArchiveAfterDays:
			return model.StatusFavoriteWarm
		default:
			return model.StatusReady
		}
	}

	switch {
	case policy.DeleteAfterDays != nil && ageDays >= *policy.DeleteAfterDays:
		return model.StatusScheduledDeletion
	case ageDays >= policy.ArchiveAfterDays:
		return model.StatusArchived
	case ageDays >= th.WarmAfterDays:
		return model.StatusWarmStorage
	default:
		return model.StatusReady
	}
}

// TierOf возвращает класс стоимости для статуса.
// favorite_warm не имеет собственного класса и считается hot.
func TierOf(status model.FileStatus) model.Tier {
	switch status {
	case model.StatusUploaded, model.StatusReady:
		return model.TierHot
	case model.StatusWarmStorage:
		return model.TierWarm
	case model.StatusArchived, model.StatusFavoriteArchive:
		return model.TierArchive
	case model.StatusFavoriteWarm, model.StatusScheduledDeletion, model.StatusDeleted:
		return model.TierHot
	}
	return model.TierHot
}
