package services

import (
	"context"
	"testing"

	"hisob/internal/aggregate"
	"hisob/internal/core"
	"hisob/internal/delta"
	"hisob/internal/period"
	"hisob/internal/storage/memory"
)

func reportFixture() *ReportService {
	store := memory.New()
	seed(store,
		tx("usd", core.Expense, "10", core.USD, day(2024, 3, 2)),
		tx("uzs", core.Expense, "135000", core.UZS, day(2024, 3, 10)),
		tx("feb", core.Expense, "130000", core.UZS, day(2024, 2, 10)),
		tx("pay", core.Income, "1000000", core.UZS, day(2024, 3, 1)),
	)
	return NewReportService(store, staticRates)
}

func TestReportService_Aggregate(t *testing.T) {
	svc := reportFixture()
	march := period.NewRange(day(2024, 3, 1), day(2024, 3, 31))

	res, err := svc.Aggregate(context.Background(), 1,
		aggregate.FilterSpec{Range: march, Kind: core.Expense}, aggregate.ByCurrency, core.USD)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if res.Count != 2 {
		t.Fatalf("count = %d, want 2", res.Count)
	}
	if !res.Total.Equal(dec("20.8")) {
		t.Errorf("total = %s, want 20.8", res.Total)
	}
	if !res.Raw[core.UZS].Equal(dec("135000")) || !res.Raw[core.USD].Equal(dec("10")) {
		t.Errorf("raw totals = %v", res.Raw)
	}
	if len(res.Breakdown) != 2 {
		t.Errorf("breakdown = %+v", res.Breakdown)
	}
}

func TestReportService_InvertedRangeIsEmpty(t *testing.T) {
	svc := reportFixture()
	inverted := period.Range{Start: day(2024, 3, 31), End: day(2024, 3, 1)}

	res, err := svc.Aggregate(context.Background(), 1, aggregate.FilterSpec{Range: inverted}, aggregate.None, core.UZS)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if res.Count != 0 || !res.Total.IsZero() {
		t.Fatalf("inverted range should select nothing, got %+v", res)
	}
}

func TestReportService_Compare(t *testing.T) {
	svc := reportFixture()
	march := period.NewRange(day(2024, 3, 1), day(2024, 3, 31))
	feb := period.NewRange(day(2024, 2, 1), day(2024, 2, 29))

	cmp, err := svc.Compare(context.Background(), 1,
		aggregate.FilterSpec{Range: march, Kind: core.Expense}, feb, core.UZS)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if !cmp.Change.Current.Equal(dec("260000")) || !cmp.Change.Previous.Equal(dec("130000")) {
		t.Fatalf("unexpected totals %+v", cmp.Change)
	}
	if !cmp.Change.Percent.Equal(dec("100")) || cmp.Change.Direction != delta.Up {
		t.Errorf("change = %s %s, want 100 up", cmp.Change.Percent, cmp.Change.Direction)
	}
}

func TestReportService_TrendAndSummarize(t *testing.T) {
	svc := reportFixture()
	march := period.NewRange(day(2024, 3, 1), day(2024, 3, 31))
	filter := aggregate.FilterSpec{Range: march, Kind: core.Expense}

	points, err := svc.Trend(context.Background(), 1, filter, aggregate.Day, core.UZS)
	if err != nil {
		t.Fatalf("Trend: %v", err)
	}
	if len(points) != 31 {
		t.Fatalf("points = %d, want 31", len(points))
	}
	if !points[1].Total.Equal(dec("125000")) || !points[0].Total.IsZero() {
		t.Errorf("unexpected series head %+v %+v", points[0], points[1])
	}

	stats, err := svc.Summarize(context.Background(), 1, filter, core.UZS)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if !stats.Max.Equal(dec("135000")) || !stats.Min.Equal(dec("125000")) {
		t.Errorf("max/min = %s/%s", stats.Max, stats.Min)
	}
}
