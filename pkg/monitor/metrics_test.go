package monitor

import (
	"sync"
	"testing"
	"time"
)

func TestNewPlanMetrics(t *testing.T) {
	m := NewPlanMetrics()
	if m == nil {
		t.Fatal("NewPlanMetrics returned nil")
	}
	if m.stageErrors == nil {
		t.Error("stageErrors map should be initialized")
	}
	if m.tableAccess == nil {
		t.Error("tableAccess map should be initialized")
	}
	if m.startTime.IsZero() {
		t.Error("startTime should be set")
	}
}

func TestRecordPlan(t *testing.T) {
	m := NewPlanMetrics()

	// 成功
	m.RecordPlan(100*time.Millisecond, "", "sales")
	// 失败
	m.RecordPlan(300*time.Millisecond, "build", "")
	m.RecordPlan(200*time.Millisecond, "optimize", "sales")

	snap := m.GetSnapshot()
	if snap.PlanCount != 3 {
		t.Errorf("PlanCount = %d, want 3", snap.PlanCount)
	}
	if snap.PlanSuccess != 1 {
		t.Errorf("PlanSuccess = %d, want 1", snap.PlanSuccess)
	}
	if snap.PlanError != 2 {
		t.Errorf("PlanError = %d, want 2", snap.PlanError)
	}
	if snap.StageErrors["build"] != 1 || snap.StageErrors["optimize"] != 1 {
		t.Errorf("StageErrors = %v", snap.StageErrors)
	}
	if snap.TableAccess["sales"] != 2 {
		t.Errorf("TableAccess[sales] = %d, want 2", snap.TableAccess["sales"])
	}
	if snap.AvgDuration != 200*time.Millisecond {
		t.Errorf("AvgDuration = %v, want 200ms", snap.AvgDuration)
	}
	if snap.TotalDuration != 600*time.Millisecond {
		t.Errorf("TotalDuration = %v, want 600ms", snap.TotalDuration)
	}
}

func TestSuccessRate(t *testing.T) {
	tests := []struct {
		name    string
		success int
		failure int
		want    float64
	}{
		{"no plans", 0, 0, 0},
		{"all succeed", 4, 0, 100},
		{"half", 2, 2, 50},
		{"all fail", 0, 3, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewPlanMetrics()
			for i := 0; i < tt.success; i++ {
				m.RecordPlan(time.Millisecond, "", "")
			}
			for i := 0; i < tt.failure; i++ {
				m.RecordPlan(time.Millisecond, "sanity", "")
			}
			if got := m.GetSnapshot().SuccessRate; got != tt.want {
				t.Errorf("SuccessRate = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestActivePlans(t *testing.T) {
	m := NewPlanMetrics()
	m.StartPlan()
	m.StartPlan()
	m.EndPlan()
	if got := m.GetSnapshot().ActivePlans; got != 1 {
		t.Errorf("ActivePlans = %d, want 1", got)
	}

	// 不会小于 0
	m.EndPlan()
	m.EndPlan()
	if got := m.GetSnapshot().ActivePlans; got != 0 {
		t.Errorf("ActivePlans = %d, want 0", got)
	}
}

func TestSnapshotIsolation(t *testing.T) {
	m := NewPlanMetrics()
	m.RecordPlan(time.Millisecond, "build", "t")

	snap := m.GetSnapshot()
	snap.StageErrors["build"] = 100
	snap.TableAccess["t"] = 100

	again := m.GetSnapshot()
	if again.StageErrors["build"] != 1 {
		t.Errorf("snapshot shares StageErrors with the collector")
	}
	if again.TableAccess["t"] != 1 {
		t.Errorf("snapshot shares TableAccess with the collector")
	}
}

func TestPlanMetricsReset(t *testing.T) {
	m := NewPlanMetrics()
	m.RecordPlan(time.Millisecond, "build", "t")
	m.RecordSlowPlan()
	m.StartPlan()
	m.Reset()

	snap := m.GetSnapshot()
	if snap.PlanCount != 0 || snap.SlowPlanCount != 0 || snap.ActivePlans != 0 {
		t.Errorf("Reset left counters: %+v", snap)
	}
	if len(snap.StageErrors) != 0 || len(snap.TableAccess) != 0 {
		t.Errorf("Reset left maps: %v %v", snap.StageErrors, snap.TableAccess)
	}
}

func TestPlanMetricsConcurrent(t *testing.T) {
	m := NewPlanMetrics()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.StartPlan()
				m.RecordPlan(time.Microsecond, "", "t")
				m.EndPlan()
				_ = m.GetSnapshot()
			}
		}()
	}
	wg.Wait()

	if got := m.GetSnapshot().PlanCount; got != 800 {
		t.Errorf("PlanCount = %d, want 800", got)
	}
}
