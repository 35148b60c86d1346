package model

import "time"

// Tier — класс стоимости хранения.
type Tier string

const (
	TierHot     Tier = "hot"
	TierWarm    Tier = "warm"
	TierArchive Tier = "archive"
	// TierCold определён в тарифах, но ни один переход сейчас его не назначает
	TierCold Tier = "cold"
)

// CostRates — стоимость хранения за GB в месяц по классам.
// Передаётся в компоненты как неизменяемое значение.
type CostRates struct {
	Hot     float64 `json:"hot"`
	Warm    float64 `json:"warm"`
	Archive float64 `json:"archive"`
	Cold    float64 `json:"cold"`
}

// DefaultCostRates — тарифы по умолчанию.
func DefaultCostRates() CostRates {
	return CostRates{
		Hot:     3.60,
		Warm:    2.16,
		Archive: 0.72,
		Cold:    0.36,
	}
}

// Rate возвращает тариф для класса хранения.
func (r CostRates) Rate(t Tier) float64 {
	switch t {
	case TierHot:
		return r.Hot
	case TierWarm:
		return r.Warm
	case TierArchive:
		return r.Archive
	case TierCold:
		return r.Cold
	}
	return r.Hot
}

// TierUsage — количество файлов и объём в одной группе.
type TierUsage struct {
	Count     int     `json:"count"`
	SizeBytes int64   `json:"sizeBytes"`
	SizeGB    float64 `json:"sizeGB"`
}

// StorageAnalytics — снимок использования хранилища пользователем.
// Производные данные, не источник истины.
type StorageAnalytics struct {
	Hot       TierUsage `json:"hot"`
	Warm      TierUsage `json:"warm"`
	Archive   TierUsage `json:"archive"`
	Favorites TierUsage `json:"favorites"`
	Total     TierUsage `json:"total"`
}

// CostBreakdown — стоимость хранения по классам и итог.
type CostBreakdown struct {
	Hot     float64 `json:"hot"`
	Warm    float64 `json:"warm"`
	Archive float64 `json:"archive"`
	Total   float64 `json:"total"`
}

// SuggestionType — тип рекомендации по оптимизации.
type SuggestionType string

const (
	SuggestionArchiveOldFiles     SuggestionType = "archive_old_files"
	SuggestionCleanupUnused       SuggestionType = "cleanup_unused"
	SuggestionAggressiveArchiving SuggestionType = "aggressive_archiving"
)

// Suggestion — рекомендация с оценкой месячной экономии.
type Suggestion struct {
	Type             SuggestionType `json:"type"`
	Title            string         `json:"title"`
	Description      string         `json:"description"`
	EstimatedSavings float64        `json:"estimatedSavings"`
}

// UserStorageAnalytics — ответ аналитического запроса дашборда.
type UserStorageAnalytics struct {
	UserID      string           `json:"userId"`
	Analytics   StorageAnalytics `json:"analytics"`
	Costs       CostBreakdown    `json:"costs"`
	Suggestions []Suggestion     `json:"suggestions"`
	TotalFiles  int              `json:"totalFiles"`
}

// CostStatus — классификация стоимости относительно лимита плана.
type CostStatus string

const (
	CostStatusOK       CostStatus = "ok"
	CostStatusWarning  CostStatus = "warning"
	CostStatusCritical CostStatus = "critical"
)

// CostCheck — результат проверки стоимости пользователя.
type CostCheck struct {
	UserID     string        `json:"userId"`
	Plan       Plan          `json:"plan"`
	Costs      CostBreakdown `json:"costs"`
	Limit      float64       `json:"limit"`
	Percentage float64       `json:"percentage"`
	Status     CostStatus    `json:"status"`
}

// CostAlert — запись об оповещении о превышении порога стоимости.
// Хранится в таблице cost_alerts.
type CostAlert struct {
	ID         string     `json:"id"`
	UserID     string     `json:"userId"`
	Severity   CostStatus `json:"severity"`
	Cost       float64    `json:"cost"`
	Limit      float64    `json:"limit"`
	Percentage float64    `json:"percentage"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// StorageUsage — сохранённый снимок использования (таблица storage_usage).
type StorageUsage struct {
	UserID        string
	HotBytes      int64
	WarmBytes     int64
	ArchiveBytes  int64
	FavoriteBytes int64
	TotalBytes    int64
	FileCount     int
	MonthlyCost   float64
	UpdatedAt     time.Time
}

// AuditEvent — тип записи журнала жизненного цикла.
type AuditEvent string

const (
	AuditTransition AuditEvent = "lifecycle_transition"
	AuditDeletion   AuditEvent = "lifecycle_deletion"
)

// AuditEntry — запись журнала lifecycle_audit_log.
type AuditEntry struct {
	ID        string
	UserID    string
	FileID    string
	Event     AuditEvent
	Details   map[string]any
	CreatedAt time.Time
}
