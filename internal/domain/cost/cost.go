// Пакет cost — агрегация использования хранилища, расчёт стоимости,
// рекомендации по оптимизации и классификация относительно лимита плана.
// Все функции чистые: тарифы и пороги передаются явно.
package cost

import (
	"math"

	"github.com/bigkaa/mediastore/lifecycle-engine/internal/domain/lifecycle"
	"github.com/bigkaa/mediastore/lifecycle-engine/internal/domain/model"
)

// Aggregate группирует файлы по классу хранения и флагу избранного.
// Удалённые файлы пропускаются.
func Aggregate(files []*model.File) model.StorageAnalytics {
	var s model.StorageAnalytics

	for _, f := range files {
		if f == nil || f.Status == model.StatusDeleted {
			continue
		}

		switch lifecycle.TierOf(f.Status) {
		case model.TierHot:
			add(&s.Hot, f.SizeBytes)
		case model.TierWarm:
			add(&s.Warm, f.SizeBytes)
		case model.TierArchive:
			add(&s.Archive, f.SizeBytes)
		}
		if f.IsFavorite {
			add(&s.Favorites, f.SizeBytes)
		}
		add(&s.Total, f.SizeBytes)
	}

	for _, u := range []*model.TierUsage{&s.Hot, &s.Warm, &s.Archive, &s.Favorites, &s.Total} {
		u.SizeGB = model.BytesToGB(u.SizeBytes)
	}
	return s
}

func add(u *model.TierUsage, size int64) {
	u.Count++
	if size > 0 {
		u.SizeBytes += size
	}
}

// Of возвращает стоимость объёма sizeGB в классе tier.
func Of(tier model.Tier, sizeGB float64, rates model.CostRates) float64 {
	if sizeGB <= 0 {
		return 0
	}
	return sizeGB * rates.Rate(tier)
}

// Calculate переводит снимок использования в стоимость по тарифам.
// Итог — сумма hot, warm и archive; класс cold не заполняется переходами.
func Calculate(s model.StorageAnalytics, rates model.CostRates) model.CostBreakdown {
	hot := Of(model.TierHot, s.Hot.SizeGB, rates)
	warm := Of(model.TierWarm, s.Warm.SizeGB, rates)
	archive := Of(model.TierArchive, s.Archive.SizeGB, rates)

	return model.CostBreakdown{
		Hot:     roundCents(hot),
		Warm:    roundCents(warm),
		Archive: roundCents(archive),
		Total:   roundCents(hot + warm + archive),
	}
}

// RawTotal — итоговая стоимость без округления до центов.
func RawTotal(s model.StorageAnalytics, rates model.CostRates) float64 {
	return Of(model.TierHot, s.Hot.SizeGB, rates) +
		Of(model.TierWarm, s.Warm.SizeGB, rates) +
		Of(model.TierArchive, s.Archive.SizeGB, rates)
}

// Percentage — доля стоимости от лимита в процентах, без округления.
func Percentage(cost, limit float64) float64 {
	if limit <= 0 {
		return 0
	}
	return cost * 100 / limit
}

// Evaluate классифицирует стоимость снимка относительно лимита.
// Уровень определяется по неокруглённому проценту; возвращаемый процент
// округлён вниз до сотых и не превышает фактический.
func Evaluate(s model.StorageAnalytics, rates model.CostRates, limit float64, th Thresholds) (float64, model.CostStatus) {
	pct := Percentage(RawTotal(s, rates), limit)
	return math.Floor(pct*100) / 100, Classify(pct, th)
}

// Thresholds — пороги классификации в процентах от лимита.
type Thresholds struct {
	Warning  float64
	Critical float64
}

// DefaultThresholds — warning от 75%, critical от 90%.
func DefaultThresholds() Thresholds {
	return Thresholds{Warning: 75, Critical: 90}
}

// Classify классифицирует процент использования лимита.
func Classify(percentage float64, th Thresholds) model.CostStatus {
	switch {
	case percentage >= th.Critical:
		return model.CostStatusCritical
	case percentage >= th.Warning:
		return model.CostStatusWarning
	default:
		return model.CostStatusOK
	}
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
