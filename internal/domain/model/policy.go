package model

import "fmt"

// Plan — тарифный план подписки.
type Plan string

const (
	PlanFreemium Plan = "freemium"
	PlanCreator  Plan = "creator"
	PlanPro      Plan = "pro"
	PlanStudio   Plan = "studio"
)

// ParsePlan разбирает имя плана. Неизвестный план — ошибка.
func ParsePlan(s string) (Plan, error) {
	switch p := Plan(s); p {
	case PlanFreemium, PlanCreator, PlanPro, PlanStudio:
		return p, nil
	}
	return "", fmt.Errorf("неизвестный тарифный план: %q", s)
}

// CompressionLevel — подсказка по сжатию для архивных копий.
type CompressionLevel string

const (
	CompressionNone   CompressionLevel = "none"
	CompressionLow    CompressionLevel = "low"
	CompressionMedium CompressionLevel = "medium"
	CompressionHigh   CompressionLevel = "high"
)

// LifecyclePolicy — пороги жизненного цикла для тарифного плана.
type LifecyclePolicy struct {
	// ArchiveAfterDays — через сколько суток файл уходит в архив
	ArchiveAfterDays int `json:"archiveAfterDays"`
	// DeleteAfterDays — через сколько суток файл планируется к удалению; nil — никогда
	DeleteAfterDays *int `json:"deleteAfterDays"`
	// StorageQuotaGB — квота хранения плана
	StorageQuotaGB float64 `json:"storageQuotaGB"`
	// CompressionLevel — подсказка по сжатию
	CompressionLevel CompressionLevel `json:"compressionLevel"`
}

// NeverDeletes — план не удаляет файлы автоматически.
func (p LifecyclePolicy) NeverDeletes() bool {
	return p.DeleteAfterDays == nil
}

// Compressed — применяется ли сжатие при архивации.
func (p LifecyclePolicy) Compressed() bool {
	return p.CompressionLevel != "" && p.CompressionLevel != CompressionNone
}

// Snapshot возвращает копию политики для lifecycle_metadata.
func (p LifecyclePolicy) Snapshot() map[string]any {
	s := map[string]any{
		"archiveAfterDays": p.ArchiveAfterDays,
		"deleteAfterDays":  nil,
		"storageQuotaGB":   p.StorageQuotaGB,
		"compressionLevel": string(p.CompressionLevel),
	}
	if p.DeleteAfterDays != nil {
		s["deleteAfterDays"] = *p.DeleteAfterDays
	}
	return s
}

func days(n int) *int { return &n }

// PolicyFor возвращает политику жизненного цикла плана.
// Для неизвестного плана возвращает самую строгую политику (freemium) и false.
func PolicyFor(plan Plan) (LifecyclePolicy, bool) {
	switch plan {
	case PlanFreemium:
		return LifecyclePolicy{
			ArchiveAfterDays: 30,
			DeleteAfterDays:  days(90),
			StorageQuotaGB:   5,
			CompressionLevel: CompressionHigh,
		}, true
	case PlanCreator:
		return LifecyclePolicy{
			ArchiveAfterDays: 90,
			DeleteAfterDays:  days(365),
			StorageQuotaGB:   100,
			CompressionLevel: CompressionMedium,
		}, true
	case PlanPro:
		return LifecyclePolicy{
			ArchiveAfterDays: 180,
			DeleteAfterDays:  nil,
			StorageQuotaGB:   500,
			CompressionLevel: CompressionLow,
		}, true
	case PlanStudio:
		return LifecyclePolicy{
			ArchiveAfterDays: 365,
			DeleteAfterDays:  nil,
			StorageQuotaGB:   2000,
			CompressionLevel: CompressionNone,
		}, true
	}
	p, _ := PolicyFor(PlanFreemium)
	return p, false
}

// PlanCostLimit возвращает потолок месячной стоимости хранения для плана.
// Для неизвестного плана — лимит freemium и false.
func PlanCostLimit(plan Plan) (float64, bool) {
	switch plan {
	case PlanFreemium:
		return 5, true
	case PlanCreator:
		return 25, true
	case PlanPro:
		return 50, true
	case PlanStudio:
		return 200, true
	}
	return 5, false
}
