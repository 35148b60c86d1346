package cost

import (
	"math"
	"testing"

	"github.com/bigkaa/mediastore/lifecycle-engine/internal/domain/model"
)

const gb = int64(1024 * 1024 * 1024)

func usage(sizeGB float64) model.TierUsage {
	return model.TierUsage{SizeGB: sizeGB}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestAggregate(t *testing.T) {
	files := []*model.File{
		{ID: "1", Status: model.StatusReady, SizeBytes: 2 * gb},
		{ID: "2", Status: model.StatusUploaded, SizeBytes: gb},
		{ID: "3", Status: model.StatusWarmStorage, SizeBytes: gb},
		{ID: "4", Status: model.StatusArchived, SizeBytes: 3 * gb},
		{ID: "5", Status: model.StatusFavoriteArchive, SizeBytes: 2 * gb, IsFavorite: true},
		{ID: "6", Status: model.StatusFavoriteWarm, SizeBytes: gb, IsFavorite: true},
		{ID: "7", Status: model.StatusDeleted, SizeBytes: 10 * gb},
		nil,
	}

	s := Aggregate(files)

	if s.Hot.Count != 3 || s.Hot.SizeBytes != 4*gb {
		t.Errorf("hot: получили %+v", s.Hot)
	}
	if s.Warm.Count != 1 || s.Warm.SizeGB != 1 {
		t.Errorf("warm: получили %+v", s.Warm)
	}
	if s.Archive.Count != 2 || s.Archive.SizeGB != 5 {
		t.Errorf("archive: получили %+v", s.Archive)
	}
	if s.Favorites.Count != 2 || s.Favorites.SizeGB != 3 {
		t.Errorf("favorites: получили %+v", s.Favorites)
	}
	if s.Total.Count != 6 || s.Total.SizeGB != 10 {
		t.Errorf("total: получили %+v", s.Total)
	}
}

func TestAggregate_Empty(t *testing.T) {
	s := Aggregate(nil)
	if s.Total.Count != 0 || s.Total.SizeGB != 0 {
		t.Errorf("ожидался пустой снимок, получили %+v", s.Total)
	}
}

func TestCalculate(t *testing.T) {
	s := model.StorageAnalytics{Hot: usage(2), Warm: usage(1), Archive: usage(5)}

	c := Calculate(s, model.DefaultCostRates())

	if !almostEqual(c.Hot, 7.20) {
		t.Errorf("hot: хотели 7.20, получили %v", c.Hot)
	}
	if !almostEqual(c.Warm, 2.16) {
		t.Errorf("warm: хотели 2.16, получили %v", c.Warm)
	}
	if !almostEqual(c.Archive, 3.60) {
		t.Errorf("archive: хотели 3.60, получили %v", c.Archive)
	}
	if !almostEqual(c.Total, 12.96) {
		t.Errorf("total: хотели 12.96, получили %v", c.Total)
	}
}

// TestCalculate_Monotonic проверяет, что рост объёма в любом классе
// не уменьшает итоговую стоимость.
func TestCalculate_Monotonic(t *testing.T) {
	rates := model.DefaultCostRates()
	base := model.StorageAnalytics{Hot: usage(1), Warm: usage(1), Archive: usage(1)}
	baseTotal := Calculate(base, rates).Total

	grow := []func(s *model.StorageAnalytics){
		func(s *model.StorageAnalytics) { s.Hot.SizeGB += 0.5 },
		func(s *model.StorageAnalytics) { s.Warm.SizeGB += 0.5 },
		func(s *model.StorageAnalytics) { s.Archive.SizeGB += 0.5 },
	}
	for i, g := range grow {
		s := base
		g(&s)
		if got := Calculate(s, rates).Total; got < baseTotal {
			t.Errorf("правило %d: стоимость уменьшилась %v → %v", i, baseTotal, got)
		}
	}
}

func TestPercentageAndClassify(t *testing.T) {
	th := DefaultThresholds()

	p := Percentage(40, 50)
	if !almostEqual(p, 80) {
		t.Fatalf("хотели 80%%, получили %v", p)
	}
	if got := Classify(p, th); got != model.CostStatusWarning {
		t.Errorf("хотели warning, получили %s", got)
	}

	tests := []struct {
		pct  float64
		want model.CostStatus
	}{
		{0, model.CostStatusOK},
		{74.99, model.CostStatusOK},
		{75, model.CostStatusWarning},
		{89.99, model.CostStatusWarning},
		{90, model.CostStatusCritical},
		{250, model.CostStatusCritical},
	}
	for _, tt := range tests {
		if got := Classify(tt.pct, th); got != tt.want {
			t.Errorf("Classify(%v): хотели %s, получили %s", tt.pct, tt.want, got)
		}
	}

	if got := Percentage(10, 0); got != 0 {
		t.Errorf("нулевой лимит: хотели 0, получили %v", got)
	}
}

// TestEvaluate_Boundaries проверяет, что уровень определяется по
// неокруглённому проценту, а не по значению, округлённому до сотых.
func TestEvaluate_Boundaries(t *testing.T) {
	rates := model.CostRates{Hot: 1, Warm: 1, Archive: 1}
	th := DefaultThresholds()

	tests := []struct {
		name       string
		hotGB      float64
		limit      float64
		wantPct    float64
		wantStatus model.CostStatus
	}{
		{"74.995% — ok", 149.99, 200, 74.99, model.CostStatusOK},
		{"ровно 75% — warning", 150, 200, 75, model.CostStatusWarning},
		{"89.992% — warning", 4.4996, 5, 89.99, model.CostStatusWarning},
		{"ровно 90% — critical", 4.5, 5, 90, model.CostStatusCritical},
		{"нулевой лимит — ok", 10, 0, 0, model.CostStatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := model.StorageAnalytics{Hot: usage(tt.hotGB)}
			pct, status := Evaluate(s, rates, tt.limit, th)
			if status != tt.wantStatus {
				t.Errorf("уровень: хотели %s, получили %s", tt.wantStatus, status)
			}
			if !almostEqual(pct, tt.wantPct) {
				t.Errorf("процент: хотели %v, получили %v", tt.wantPct, pct)
			}
		})
	}
}

func TestRawTotal_NotRounded(t *testing.T) {
	s := model.StorageAnalytics{Hot: usage(4.4996)}
	rates := model.CostRates{Hot: 1}

	if got := RawTotal(s, rates); !almostEqual(got, 4.4996) {
		t.Errorf("RawTotal: хотели 4.4996, получили %v", got)
	}
	if got := Calculate(s, rates).Total; !almostEqual(got, 4.5) {
		t.Errorf("Calculate.Total: хотели 4.5, получили %v", got)
	}
}
