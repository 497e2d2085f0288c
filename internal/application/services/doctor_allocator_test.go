package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/smartcare/backend/internal/domain/entities"
)

type recordingEmitter struct {
	mu     sync.Mutex
	events []*entities.QueueEvent
}

func (r *recordingEmitter) Emit(ev *entities.QueueEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingEmitter) ofType(t entities.QueueEventType) []*entities.QueueEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entities.QueueEvent
	for _, ev := range r.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func factorByName(t *testing.T, factors []entities.AllocationFactor, name string) entities.AllocationFactor {
	t.Helper()
	for _, f := range factors {
		if f.Name == name {
			return f
		}
	}
	t.Fatalf("factor %q not found", name)
	return entities.AllocationFactor{}
}

func TestDoctorAllocator_Analyze(t *testing.T) {
	h := newHarness(t)
	h.fill(t, "emergency", 17, 2, 40*time.Minute)
	h.growTrend("emergency", 10, 12, 14, 17)

	m := h.allocator.Analyze("Emergency")
	assert.Equal(t, "emergency", m.Department)
	assert.Equal(t, 17, m.CurrentQueue)
	assert.Equal(t, 20, m.Capacity)
	assert.Equal(t, 85.0, m.UtilizationPercent)
	assert.Equal(t, 40.0, m.AvgWaitMinutes)
	assert.Equal(t, 2, m.CriticalCount)
	assert.Equal(t, entities.LoadTrendIncreasing, m.Trend)
	assert.Equal(t, 21, m.PredictedQueue30m)
	assert.Equal(t, peakMorning, m.CapturedAt)

	assert.Equal(t, "general", h.allocator.Analyze("radiology").Department)
}

func TestDoctorAllocator_SurgeAssignsSpecialistFirst(t *testing.T) {
	h := newHarness(t)
	emitter := &recordingEmitter{}
	h.allocator.SetEventEmitter(emitter)
	h.fill(t, "emergency", 17, 2, 40*time.Minute)
	h.growTrend("emergency", 10, 12, 14, 17)

	d := h.allocator.Decide("emergency")
	assert.Equal(t, entities.AllocationActionAssign, d.Action)
	assert.Equal(t, 1.0, d.Confidence)
	require.NotNil(t, d.DoctorID)
	assert.Equal(t, 1005, *d.DoctorID)
	assert.Equal(t, "Dr. Emily Davis", d.DoctorName)
	assert.False(t, d.Executed)

	assert.Equal(t, 1.0, factorByName(t, d.Factors, "utilization").Value)
	assert.Equal(t, 0.25, factorByName(t, d.Factors, "trend").Contribution)
	assert.Equal(t, 0.2, factorByName(t, d.Factors, "critical_ratio").Contribution)
	assert.Equal(t, 0.15, factorByName(t, d.Factors, "wait_time").Contribution)
	assert.Equal(t, 0.08, factorByName(t, d.Factors, "time_of_day").Contribution)
	assert.Equal(t, 0.1, factorByName(t, d.Factors, "predicted_surge").Contribution)

	// deciding alone changes nothing
	assert.Zero(t, h.pool.AssignedCount("emergency"))

	executed := h.allocator.AutoAllocateDepartment(context.Background(), "emergency")
	assert.True(t, executed.Executed)
	assert.Empty(t, executed.Error)
	assert.Equal(t, 1, h.pool.AssignedCount("emergency"))

	doc, err := h.pool.GetDoctor(1005)
	require.NoError(t, err)
	assert.Equal(t, entities.DoctorStatusAssigned, doc.Status)
	assert.Equal(t, actorAllocator, h.pool.Logs("emergency", 1)[0].Actor)

	assert.Len(t, emitter.ofType(entities.QueueEventAllocation), 1)
	allocs := h.activity.Logs(entities.ActivityFilter{Type: entities.ActivityAIAllocation})
	require.Len(t, allocs, 1)
	assert.Equal(t, "emergency", allocs[0].Department)
}

func TestDoctorAllocator_ScoreTable(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name    string
		metrics entities.DepartmentMetrics
		hour    int
		want    float64
	}{
		{
			name:    "idle department at peak hour",
			metrics: entities.DepartmentMetrics{Trend: entities.LoadTrendStable},
			hour:    10,
			want:    0.205,
		},
		{
			name:    "idle department overnight",
			metrics: entities.DepartmentMetrics{Trend: entities.LoadTrendStable},
			hour:    3,
			want:    0.145,
		},
		{
			name: "moderate load shrinking",
			metrics: entities.DepartmentMetrics{
				CurrentQueue:       13,
				UtilizationPercent: 65,
				CriticalCount:      1,
				AvgWaitMinutes:     15,
				Trend:              entities.LoadTrendDecreasing,
				PredictedQueue30m:  10,
			},
			hour: 14,
			want: 0.21 + 0.05 + 0.2/13 + 0.075 + 0.05,
		},
		{
			name: "saturated load clamps to one",
			metrics: entities.DepartmentMetrics{
				CurrentQueue:       20,
				UtilizationPercent: 100,
				CriticalCount:      5,
				AvgWaitMinutes:     90,
				Trend:              entities.LoadTrendIncreasing,
				PredictedQueue30m:  24,
			},
			hour: 17,
			want: 1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			at := time.Date(2026, 3, 2, tt.hour, 0, 0, 0, time.UTC)
			h.allocator.SetClock(func() time.Time { return at })
			got, _ := h.allocator.Score(tt.metrics)
			assert.InDelta(t, tt.want, got, 0.0001)
		})
	}
}

func TestDoctorAllocator_ReleaseIdleSpare(t *testing.T) {
	h := newHarness(t)
	_, err := h.pool.Assign(1001, "general", "morning rush", "admin-1")
	require.NoError(t, err)

	d := h.allocator.Decide("general")
	assert.Equal(t, entities.AllocationActionRelease, d.Action)
	assert.Equal(t, releaseConfidence, d.Confidence)
	require.NotNil(t, d.DoctorID)
	assert.Equal(t, 1001, *d.DoctorID)

	executed := h.allocator.AutoAllocateDepartment(context.Background(), "general")
	assert.True(t, executed.Executed)
	assert.Zero(t, h.pool.AssignedCount("general"))
	assert.Contains(t, h.pool.Logs("general", 1)[0].Reason, "AI Auto-Release")
}

func TestDoctorAllocator_KeepsSpareWhileCriticalWaiting(t *testing.T) {
	h := newHarness(t)
	_, err := h.pool.Assign(1001, "general", "", "")
	require.NoError(t, err)
	h.fill(t, "general", 1, 1, time.Minute)

	d := h.allocator.Decide("general")
	assert.NotEqual(t, entities.AllocationActionRelease, d.Action)
	assert.Equal(t, 1, h.pool.AssignedCount("general"))
}

func TestDoctorAllocator_NoAction(t *testing.T) {
	t.Run("adequate staffing", func(t *testing.T) {
		h := newHarness(t)
		d := h.allocator.Decide("dermatology")
		assert.Equal(t, entities.AllocationActionNone, d.Action)
		assert.Equal(t, "Current staffing is adequate", d.Reason)
		assert.Nil(t, d.DoctorID)
	})

	t.Run("pool exhausted", func(t *testing.T) {
		h := newHarness(t)
		h.fill(t, "emergency", 17, 2, 40*time.Minute)
		for _, doc := range DemoSpareDoctors() {
			_, err := h.pool.SetOffline(doc.ID)
			require.NoError(t, err)
		}

		d := h.allocator.AutoAllocateDepartment(context.Background(), "emergency")
		assert.Equal(t, entities.AllocationActionNone, d.Action)
		assert.Contains(t, d.Reason, "pool is exhausted")
		assert.False(t, d.Executed)
	})

	t.Run("department at cap", func(t *testing.T) {
		h := newHarness(t)
		h.fill(t, "emergency", 17, 2, 40*time.Minute)
		for _, id := range []int{1005, 1001, 1002} {
			_, err := h.pool.Assign(id, "emergency", "", "")
			require.NoError(t, err)
		}

		d := h.allocator.Decide("emergency")
		assert.Equal(t, entities.AllocationActionNone, d.Action)
		assert.Contains(t, d.Reason, "maximum of 3")
	})
}

func TestDoctorAllocator_AutoAllocateAll(t *testing.T) {
	h := newHarness(t)
	h.fill(t, "emergency", 17, 2, 40*time.Minute)
	h.growTrend("emergency", 10, 12, 14, 17)
	_, err := h.pool.Assign(1006, "orthopedics", "", "")
	require.NoError(t, err)

	decisions := h.allocator.AutoAllocateAll(context.Background())
	require.Len(t, decisions, len(h.roster.Names()))

	byDept := make(map[string]entities.AllocationDecision)
	for _, d := range decisions {
		byDept[d.Department] = d
	}
	assert.Equal(t, entities.AllocationActionAssign, byDept["emergency"].Action)
	assert.True(t, byDept["emergency"].Executed)
	assert.Equal(t, entities.AllocationActionRelease, byDept["orthopedics"].Action)
	assert.True(t, byDept["orthopedics"].Executed)
	assert.Equal(t, entities.AllocationActionNone, byDept["cardiology"].Action)

	st := h.pool.Status()
	assert.Equal(t, map[string]int{"emergency": 1}, st.ByDepartment)

	recent := h.allocator.RecentDecisions(3)
	require.Len(t, recent, 3)
	assert.Equal(t, decisions[len(decisions)-1].Department, recent[0].Department)
}

func TestDoctorAllocator_Insights(t *testing.T) {
	h := newHarness(t)
	h.fill(t, "emergency", 17, 2, 40*time.Minute)
	h.growTrend("emergency", 10, 12, 14, 17)
	h.allocator.AutoAllocateDepartment(context.Background(), "dermatology")

	ins := h.allocator.Insights()
	assert.Equal(t, 0.65, ins.AssignThreshold)
	assert.Equal(t, 45.0, ins.ReleaseBelowUtilization)
	assert.Equal(t, 3, ins.MaxSparePerDepartment)
	assert.Len(t, ins.Weights, 5)
	assert.Equal(t, 1, ins.TotalDecisions)
	require.Len(t, ins.RecentDecisions, 1)

	require.Len(t, ins.HighPriorityDepartments, 1)
	assert.Equal(t, "emergency", ins.HighPriorityDepartments[0].Department)

	h.allocator.Reset()
	assert.Zero(t, h.allocator.Insights().TotalDecisions)
}

func TestDoctorAllocator_HistoryIsBounded(t *testing.T) {
	h := newHarness(t)
	h.cfg.Allocator.DecisionHistory = 5
	h.allocator = NewDoctorAllocator(h.cfg.Allocator, h.board, h.pool, h.roster, h.tracker, h.activity)

	for i := 0; i < 12; i++ {
		h.allocator.AutoAllocateDepartment(context.Background(), "general")
	}
	assert.Len(t, h.allocator.RecentDecisions(50), 5)
	assert.Equal(t, 12, h.allocator.Insights().TotalDecisions)
}
