package lifecycle

import "github.com/bigkaa/mediastore/lifecycle-engine/internal/domain/model"

// Decision — решение по одному файлу.
type Decision struct {
	// Current — статус до решения
	Current model.FileStatus
	// Target — статус после решения
	Target model.FileStatus
	// Changed — требуется запись
	Changed bool
}

// rank — порядок статусов по движению жизненного цикла.
// Статусы одного ранга отличаются только семейством (избранное / обычное).
func rank(s model.FileStatus) int {
	switch s {
	case model.StatusUploaded, model.StatusReady:
		return 0
	case model.StatusWarmStorage, model.StatusFavoriteWarm:
		return 1
	case model.StatusArchived, model.StatusFavoriteArchive:
		return 2
	case model.StatusScheduledDeletion:
		return 3
	case model.StatusDeleted:
		return 4
	}
	return 0
}

// normalize приводит текущий статус к семейству, соответствующему флагу
// избранного и политике. Избранный файл снимается с удаления, как и файл
// плана без автоудаления.
func normalize(current model.FileStatus, policy model.LifecyclePolicy, isFavorite bool) model.FileStatus {
	if isFavorite {
		switch current {
		case model.StatusWarmStorage:
			return model.StatusFavoriteWarm
		case model.StatusArchived:
			return model.StatusFavoriteArchive
		case model.StatusScheduledDeletion:
			return model.StatusReady
		}
		return current
	}

	switch current {
	case model.StatusFavoriteWarm:
		return model.StatusWarmStorage
	case model.StatusFavoriteArchive:
		return model.StatusArchived
	case model.StatusScheduledDeletion:
		if policy.NeverDeletes() {
			return model.StatusArchived
		}
	}
	return current
}

// Decide вычисляет решение для файла в статусе current.
//
// Возраст отсчитывается от последнего перехода, поэтому NextStatus сразу после
// перехода вернул бы ready. Decide двигает файл только вперёд по рангу:
// целевой статус NextStatus применяется, если его ранг выше ранга текущего
// (нормализованного) статуса. deleted не меняется никогда.
func Decide(current model.FileStatus, ageDays int, policy model.LifecyclePolicy, th Thresholds, isFavorite bool) Decision {
	if current.IsTerminal() {
		return Decision{Current: current, Target: current}
	}

	target := normalize(current, policy, isFavorite)
	if next := NextStatus(ageDays, policy, th, isFavorite); rank(next) > rank(target) {
		target = next
	}

	return Decision{
		Current: current,
		Target:  target,
		Changed: target != current,
	}
}
