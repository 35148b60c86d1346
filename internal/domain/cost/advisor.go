package cost

import (
	"fmt"

	"github.com/bigkaa/mediastore/lifecycle-engine/internal/domain/model"
)

// AdvisorRules — пороги эвристик оптимизации.
type AdvisorRules struct {
	// HotThresholdGB — объём hot, после которого предлагается архивация
	HotThresholdGB float64
	// HotArchiveShare — доля hot, которую предполагается заархивировать
	HotArchiveShare float64
	// CleanupMinFiles — минимальное количество файлов для предложения очистки
	CleanupMinFiles int
	// CleanupFavoriteRatio — доля избранного, ниже которой файлы считаются неиспользуемыми
	CleanupFavoriteRatio float64
	// CleanupShare — доля объёма, которую предполагается удалить
	CleanupShare float64
	// WarmThresholdGB — объём warm для агрессивной архивации
	WarmThresholdGB float64
}

// DefaultAdvisorRules — пороги по умолчанию.
func DefaultAdvisorRules() AdvisorRules {
	return AdvisorRules{
		HotThresholdGB:       10,
		HotArchiveShare:      0.5,
		CleanupMinFiles:      1000,
		CleanupFavoriteRatio: 0.1,
		CleanupShare:         0.3,
		WarmThresholdGB:      5,
	}
}

// Suggest формирует рекомендации по снимку использования.
// Правила независимы, сработавшие добавляются в порядке объявления.
func Suggest(s model.StorageAnalytics, rates model.CostRates, rules AdvisorRules) []model.Suggestion {
	suggestions := make([]model.Suggestion, 0, 3)

	if s.Hot.SizeGB > rules.HotThresholdGB {
		suggestions = append(suggestions, model.Suggestion{
			Type:  model.SuggestionArchiveOldFiles,
			Title: "Архивировать старые файлы",
			Description: fmt.Sprintf("В hot storage %.2f GB; перенос половины в архив снизит стоимость",
				s.Hot.SizeGB),
			EstimatedSavings: roundCents(s.Hot.SizeGB * rules.HotArchiveShare * (rates.Hot - rates.Archive)),
		})
	}

	if s.Total.Count > rules.CleanupMinFiles &&
		float64(s.Favorites.Count)/float64(s.Total.Count) < rules.CleanupFavoriteRatio {
		suggestions = append(suggestions, model.Suggestion{
			Type:  model.SuggestionCleanupUnused,
			Title: "Удалить неиспользуемые файлы",
			Description: fmt.Sprintf("%d файлов, из них в избранном %d",
				s.Total.Count, s.Favorites.Count),
			EstimatedSavings: roundCents(s.Total.SizeGB * rules.CleanupShare * rates.Hot),
		})
	}

	if s.Warm.SizeGB > s.Archive.SizeGB && s.Warm.SizeGB > rules.WarmThresholdGB {
		suggestions = append(suggestions, model.Suggestion{
			Type:  model.SuggestionAggressiveArchiving,
			Title: "Включить агрессивную архивацию",
			Description: fmt.Sprintf("В warm storage %.2f GB больше, чем в архиве (%.2f GB)",
				s.Warm.SizeGB, s.Archive.SizeGB),
			EstimatedSavings: roundCents(s.Warm.SizeGB * (rates.Warm - rates.Archive)),
		})
	}

	return suggestions
}
