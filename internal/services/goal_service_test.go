package services

import (
	"context"
	"sync"
	"testing"

	"hisob/internal/core"
	"hisob/internal/storage/memory"
)

func newGoal(t *testing.T, svc *GoalService, target string) int64 {
	t.Helper()
	id, err := svc.Create(context.Background(), core.Goal{
		UserID:       1,
		Name:         "Savings",
		TargetAmount: dec(target),
		Currency:     core.USD,
		StartDate:    core.NewDate(2024, 1, 1),
		EndDate:      core.NewDate(2024, 12, 31),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return id
}

func TestGoalService_Evaluate(t *testing.T) {
	store := memory.New()
	svc := NewGoalService(store, store, staticRates, nil)
	id := newGoal(t, svc, "1000")
	seed(store, tx("pay", core.Income, "2500000", core.UZS, day(2024, 2, 1)))

	p, err := svc.Evaluate(context.Background(), 1, id, day(2024, 6, 1))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !p.Current.Equal(dec("200")) {
		t.Errorf("current = %s, want 200", p.Current)
	}
	if !p.ProgressPct.Equal(dec("20")) {
		t.Errorf("progress = %s, want 20", p.ProgressPct)
	}

	g, _ := store.GetGoal(context.Background(), 1, id)
	if g.Status != core.GoalActive {
		t.Errorf("Evaluate must not change status, got %s", g.Status)
	}
}

func TestGoalService_RefreshStatus(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	pub := &recordingPublisher{}
	svc := NewGoalService(store, store, staticRates, pub)
	id := newGoal(t, svc, "100")
	seed(store, tx("pay", core.Income, "1250000", core.UZS, day(2024, 3, 1)))

	g, p, err := svc.RefreshStatus(ctx, 1, id, day(2024, 3, 2))
	if err != nil {
		t.Fatalf("RefreshStatus: %v", err)
	}
	if g.Status != core.GoalCompleted || !p.ProgressPct.Equal(dec("100")) {
		t.Fatalf("goal = %s at %s%%, want completed at 100", g.Status, p.ProgressPct)
	}
	if len(pub.goals) != 1 || pub.goals[0].From != "active" || pub.goals[0].To != "completed" {
		t.Fatalf("unexpected events %+v", pub.goals)
	}

	// Completed is final: a second refresh after the end date does nothing.
	g, _, err = svc.RefreshStatus(ctx, 1, id, day(2025, 6, 1))
	if err != nil {
		t.Fatalf("RefreshStatus: %v", err)
	}
	if g.Status != core.GoalCompleted || len(pub.goals) != 1 {
		t.Fatalf("terminal goal changed: %s, events %d", g.Status, len(pub.goals))
	}
}

func TestGoalService_RefreshActive(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	pub := &recordingPublisher{}
	svc := NewGoalService(store, store, staticRates, pub)

	reached := newGoal(t, svc, "10")
	expired := newGoal(t, svc, "100000")
	pending := newGoal(t, svc, "100000")
	seed(store, tx("pay", core.Income, "125000", core.UZS, day(2024, 3, 1)))

	// Move the third goal's window into the future so it stays active.
	g, _ := store.GetGoal(ctx, 1, pending)
	g.EndDate = core.NewDate(2026, 12, 31)
	if _, err := store.SaveGoal(ctx, g); err != nil {
		t.Fatal(err)
	}

	changed, err := svc.RefreshActive(ctx, day(2025, 1, 15))
	if err != nil {
		t.Fatalf("RefreshActive: %v", err)
	}
	if changed != 2 {
		t.Fatalf("changed = %d, want 2", changed)
	}

	want := map[int64]core.GoalStatus{
		reached: core.GoalCompleted,
		expired: core.GoalCancelled,
		pending: core.GoalActive,
	}
	for id, status := range want {
		g, _ := store.GetGoal(ctx, 1, id)
		if g.Status != status {
			t.Errorf("goal %d status = %s, want %s", id, g.Status, status)
		}
	}
	if len(pub.goals) != 2 {
		t.Errorf("events = %d, want 2", len(pub.goals))
	}
}

func TestKeyedMutex(t *testing.T) {
	var k keyedMutex
	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.lock(7)
			counter++
			unlock()
		}()
	}
	wg.Wait()

	if counter != 100 {
		t.Fatalf("counter = %d, want 100", counter)
	}
	if len(k.locks) != 0 {
		t.Fatalf("idle keys should be released, %d left", len(k.locks))
	}
}
