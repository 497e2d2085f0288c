package services

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/zatekoja/smartcare/backend/internal/domain/entities"
	"github.com/zatekoja/smartcare/backend/internal/infrastructure/observability"
	"github.com/zatekoja/smartcare/backend/pkg/config"
)

// Allocation factor weights
const (
	weightUtilization = 0.30
	weightTrend       = 0.25
	weightCritical    = 0.20
	weightWait        = 0.15
	weightTimeOfDay   = 0.10

	surgeBonus             = 0.1
	criticalCountSaturates = 2
	highWaitMinutes        = 30.0
	releaseConfidence      = 0.9
	recentDecisionCount    = 10

	actorAllocator = "ai_allocator"
)

// QueueSnapshotter exposes the ordered queue of a department
type QueueSnapshotter interface {
	Snapshot(department string) ([]entities.QueuePosition, error)
}

// EventEmitter accepts queue events for asynchronous delivery
type EventEmitter interface {
	Emit(event *entities.QueueEvent)
}

// Emitters fans one event out to several emitters in order
type Emitters []EventEmitter

// Emit forwards event to every non-nil emitter
func (e Emitters) Emit(event *entities.QueueEvent) {
	for _, em := range e {
		if em != nil {
			em.Emit(event)
		}
	}
}

// DoctorAllocator scores department load and lends spare doctors where they
// are needed. Allocation passes and wait-time protection share passMu so they
// never interleave.
type DoctorAllocator struct {
	passMu sync.Mutex

	queues   QueueSnapshotter
	pool     *SpareDoctorPool
	roster   *DepartmentRoster
	tracker  *LoadTracker
	activity *ActivityLogger
	metrics  *observability.Metrics
	events   EventEmitter

	assignThreshold  float64
	releaseBelowUtil float64
	historyLimit     int
	loc              *time.Location
	now              func() time.Time

	histMu  sync.Mutex
	history []entities.AllocationDecision
	total   int
}

// NewDoctorAllocator wires the allocator to the shared queue, pool and roster
func NewDoctorAllocator(
	cfg config.AllocatorConfig,
	queues QueueSnapshotter,
	pool *SpareDoctorPool,
	roster *DepartmentRoster,
	tracker *LoadTracker,
	activity *ActivityLogger,
) *DoctorAllocator {
	limit := cfg.DecisionHistory
	if limit <= 0 {
		limit = 100
	}
	return &DoctorAllocator{
		queues:           queues,
		pool:             pool,
		roster:           roster,
		tracker:          tracker,
		activity:         activity,
		assignThreshold:  cfg.AssignThreshold,
		releaseBelowUtil: cfg.ReleaseBelowUtil,
		historyLimit:     limit,
		loc:              cfg.Location(),
		now:              time.Now,
	}
}

// SetMetrics attaches business metrics
func (a *DoctorAllocator) SetMetrics(m *observability.Metrics) {
	a.metrics = m
}

// SetEventEmitter attaches the queue event stream
func (a *DoctorAllocator) SetEventEmitter(e EventEmitter) {
	a.events = e
}

// SetClock replaces the time source, used for wait ages and time of day
func (a *DoctorAllocator) SetClock(now func() time.Time) {
	a.now = now
}

// Analyze captures the current metrics of one department
func (a *DoctorAllocator) Analyze(department string) entities.DepartmentMetrics {
	department = a.roster.Resolve(department)
	now := a.now()

	var entries []entities.QueuePosition
	if a.queues != nil {
		entries, _ = a.queues.Snapshot(department)
	}

	m := entities.DepartmentMetrics{
		Department:    department,
		CurrentQueue:  len(entries),
		Capacity:      a.roster.Capacity(department),
		SpareAssigned: a.pool.AssignedCount(department),
		CapturedAt:    now.UTC(),
	}

	var waitSum float64
	for _, p := range entries {
		waitSum += p.Entry.WaitedFor(now).Minutes()
		if p.Entry.IsCritical() {
			m.CriticalCount++
		}
	}
	if len(entries) > 0 {
		m.AvgWaitMinutes = round1(waitSum / float64(len(entries)))
	}
	m.UtilizationPercent = utilization(m.CurrentQueue, m.Capacity)
	m.Trend = a.tracker.Trend(department)
	m.PredictedQueue30m = PredictQueue(m.Trend, m.CurrentQueue)
	return m
}

// Score turns metrics into an assignment confidence in [0,1] and the factors
// that produced it
func (a *DoctorAllocator) Score(m entities.DepartmentMetrics) (float64, []entities.AllocationFactor) {
	factors := make([]entities.AllocationFactor, 0, 6)
	add := func(name string, value, weight float64, detail string) {
		factors = append(factors, entities.AllocationFactor{
			Name:         name,
			Value:        round2(value),
			Weight:       weight,
			Contribution: round4(value * weight),
			Detail:       detail,
		})
	}

	util, utilDetail := utilizationFactor(m.UtilizationPercent)
	add("utilization", util, weightUtilization, utilDetail)

	trend, trendDetail := trendFactor(m.Trend)
	add("trend", trend, weightTrend, trendDetail)

	critical := 0.0
	criticalDetail := "No critical patients waiting"
	switch {
	case m.CriticalCount >= criticalCountSaturates:
		critical = 1.0
		criticalDetail = fmt.Sprintf("%d critical patients in queue", m.CriticalCount)
	case m.CurrentQueue > 0:
		critical = float64(m.CriticalCount) / float64(m.CurrentQueue)
		if m.CriticalCount > 0 {
			criticalDetail = fmt.Sprintf("%d of %d patients critical", m.CriticalCount, m.CurrentQueue)
		}
	}
	add("critical_ratio", critical, weightCritical, criticalDetail)

	wait := math.Min(m.AvgWaitMinutes/highWaitMinutes, 1.0)
	waitDetail := fmt.Sprintf("Average wait %.0f min", m.AvgWaitMinutes)
	if m.AvgWaitMinutes >= highWaitMinutes {
		waitDetail = fmt.Sprintf("Long average wait: %.0f min", m.AvgWaitMinutes)
	}
	add("wait_time", wait, weightWait, waitDetail)

	tod, todDetail := timeOfDayFactor(a.now().In(a.loc))
	add("time_of_day", tod, weightTimeOfDay, todDetail)

	score := util*weightUtilization + trend*weightTrend + critical*weightCritical +
		wait*weightWait + tod*weightTimeOfDay
	if m.PredictedQueue30m > m.CurrentQueue+3 {
		score += surgeBonus
		factors = append(factors, entities.AllocationFactor{
			Name:         "predicted_surge",
			Value:        float64(m.PredictedQueue30m),
			Weight:       surgeBonus,
			Contribution: surgeBonus,
			Detail:       fmt.Sprintf("Predicted surge: %d patients in 30 min", m.PredictedQueue30m),
		})
	}
	return round4(math.Min(score, 1.0)), factors
}

// Decide recommends an action for a department without executing it
func (a *DoctorAllocator) Decide(department string) entities.AllocationDecision {
	return a.decideFrom(a.Analyze(department))
}

func (a *DoctorAllocator) decideFrom(m entities.DepartmentMetrics) entities.AllocationDecision {
	confidence, factors := a.Score(m)
	d := entities.AllocationDecision{
		Action:     entities.AllocationActionNone,
		Department: m.Department,
		Confidence: confidence,
		Factors:    factors,
		Metrics:    m,
		DecidedAt:  a.now().UTC(),
	}

	// Release is checked before assignment so one pass never does both.
	if m.UtilizationPercent < a.releaseBelowUtil && m.CriticalCount == 0 && m.SpareAssigned > 0 {
		if assigned := a.pool.Assigned(m.Department); len(assigned) > 0 {
			doc := assigned[0]
			d.Action = entities.AllocationActionRelease
			d.DoctorID = &doc.ID
			d.DoctorName = doc.Name
			d.Confidence = releaseConfidence
			d.Reason = fmt.Sprintf("Low utilization (%.0f%%) with no critical patients: releasing spare doctor", m.UtilizationPercent)
			return d
		}
	}

	if confidence >= a.assignThreshold {
		if m.SpareAssigned >= a.pool.MaxPerDepartment() {
			d.Reason = fmt.Sprintf("High load but department already holds the maximum of %d spare doctors", a.pool.MaxPerDepartment())
			return d
		}
		doc, ok := mostRemainingCapacity(a.pool.Candidates(m.Department))
		if !ok {
			d.Reason = "High load detected but the spare doctor pool is exhausted"
			return d
		}
		d.Action = entities.AllocationActionAssign
		d.DoctorID = &doc.ID
		d.DoctorName = doc.Name
		d.Reason = fmt.Sprintf("High load detected (confidence %.2f): assigning spare doctor", confidence)
		return d
	}

	d.Reason = "Current staffing is adequate"
	return d
}

// AutoAllocateAll decides and executes for every department. Metrics for every
// department are captured once at the start of the pass.
func (a *DoctorAllocator) AutoAllocateAll(ctx context.Context) []entities.AllocationDecision {
	a.passMu.Lock()
	defer a.passMu.Unlock()

	departments := a.roster.Names()
	captured := make([]entities.DepartmentMetrics, len(departments))
	for i, dept := range departments {
		captured[i] = a.Analyze(dept)
	}

	out := make([]entities.AllocationDecision, 0, len(departments))
	for _, m := range captured {
		d := a.execute(ctx, a.decideFrom(m))
		out = append(out, d)
	}
	return out
}

// AutoAllocateDepartment runs a single-department pass
func (a *DoctorAllocator) AutoAllocateDepartment(ctx context.Context, department string) entities.AllocationDecision {
	a.passMu.Lock()
	defer a.passMu.Unlock()
	return a.execute(ctx, a.decideFrom(a.Analyze(department)))
}

// Run executes an allocation pass every interval until ctx is done
func (a *DoctorAllocator) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			decisions := a.AutoAllocateAll(ctx)
			executed := 0
			for _, d := range decisions {
				if d.Executed {
					executed++
				}
			}
			observability.LoggerFromContext(ctx).Debug().Int("executed", executed).Msg("Allocation pass finished")
		}
	}
}

func (a *DoctorAllocator) execute(ctx context.Context, d entities.AllocationDecision) entities.AllocationDecision {
	logger := observability.LoggerFromContext(ctx)

	var err error
	switch d.Action {
	case entities.AllocationActionAssign:
		_, err = a.pool.Assign(*d.DoctorID, d.Department, "AI Auto-Assignment: "+d.Reason, actorAllocator)
	case entities.AllocationActionRelease:
		_, err = a.pool.Release(*d.DoctorID, "AI Auto-Release: "+d.Reason, actorAllocator)
	default:
		a.record(d)
		return d
	}

	if err != nil {
		d.Error = err.Error()
		logger.Warn().Err(err).
			Str("department", d.Department).
			Str("action", string(d.Action)).
			Msg("Allocation decision could not be executed")
	} else {
		d.Executed = true
		logger.Info().
			Str("department", d.Department).
			Str("action", string(d.Action)).
			Str("doctor", d.DoctorName).
			Float64("confidence", d.Confidence).
			Msg("Allocation decision executed")
		a.metrics.RecordAllocation(ctx, string(d.Action), d.Department)
		if a.activity != nil {
			a.activity.LogAllocation(d)
		}
		a.emit(d)
	}
	a.record(d)
	return d
}

func (a *DoctorAllocator) emit(d entities.AllocationDecision) {
	if a.events == nil {
		return
	}
	ev := entities.NewQueueEvent(entities.QueueEventAllocation, d.Department)
	ev.Data = map[string]interface{}{
		"action":      d.Action,
		"doctor_name": d.DoctorName,
		"confidence":  d.Confidence,
	}
	a.events.Emit(ev)
}

func (a *DoctorAllocator) record(d entities.AllocationDecision) {
	a.histMu.Lock()
	defer a.histMu.Unlock()

	a.total++
	a.history = append(a.history, d)
	if over := len(a.history) - a.historyLimit; over > 0 {
		a.history = append(a.history[:0:0], a.history[over:]...)
	}
}

// RecentDecisions returns up to n decisions, newest first
func (a *DoctorAllocator) RecentDecisions(n int) []entities.AllocationDecision {
	a.histMu.Lock()
	defer a.histMu.Unlock()

	out := make([]entities.AllocationDecision, 0, min(n, len(a.history)))
	for i := len(a.history) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, a.history[i])
	}
	return out
}

// Insights describes the allocator and flags departments above the
// assignment threshold
func (a *DoctorAllocator) Insights() entities.AllocatorInsights {
	ins := entities.AllocatorInsights{
		Weights: map[string]float64{
			"utilization":    weightUtilization,
			"trend":          weightTrend,
			"critical_ratio": weightCritical,
			"wait_time":      weightWait,
			"time_of_day":    weightTimeOfDay,
		},
		AssignThreshold:         a.assignThreshold,
		ReleaseBelowUtilization: a.releaseBelowUtil,
		MaxSparePerDepartment:   a.pool.MaxPerDepartment(),
		RecentDecisions:         a.RecentDecisions(recentDecisionCount),
		HighPriorityDepartments: []entities.DepartmentScore{},
	}
	for _, dept := range a.roster.Names() {
		m := a.Analyze(dept)
		score, _ := a.Score(m)
		if score >= a.assignThreshold {
			ins.HighPriorityDepartments = append(ins.HighPriorityDepartments, entities.DepartmentScore{
				Department: dept,
				Confidence: score,
				Metrics:    m,
			})
		}
	}

	a.histMu.Lock()
	ins.TotalDecisions = a.total
	a.histMu.Unlock()
	return ins
}

// Reset forgets decision history
func (a *DoctorAllocator) Reset() {
	a.histMu.Lock()
	defer a.histMu.Unlock()
	a.history = nil
	a.total = 0
}

func utilization(queue, capacity int) float64 {
	if capacity <= 0 {
		return 100
	}
	return round1(math.Min(float64(queue)/float64(capacity)*100, 100))
}

func utilizationFactor(pct float64) (float64, string) {
	switch {
	case pct >= 80:
		return 1.0, fmt.Sprintf("High utilization: %.0f%%", pct)
	case pct >= 60:
		return 0.7, fmt.Sprintf("Moderate utilization: %.0f%%", pct)
	default:
		return math.Min(pct/100, 1.0), fmt.Sprintf("Utilization %.0f%%", pct)
	}
}

func trendFactor(t entities.LoadTrend) (float64, string) {
	switch t {
	case entities.LoadTrendIncreasing:
		return 1.0, "Queue is growing"
	case entities.LoadTrendDecreasing:
		return 0.2, "Queue is shrinking"
	default:
		return 0.5, "Queue is stable"
	}
}

// timeOfDayFactor weights expected demand by local hour: peaks 09-12 and 16-19
func timeOfDayFactor(local time.Time) (float64, string) {
	h := local.Hour()
	switch {
	case (h >= 9 && h <= 12) || (h >= 16 && h <= 19):
		return 0.8, "Peak hours: higher demand expected"
	case h >= 6 && h <= 22:
		return 0.5, "Daytime demand"
	default:
		return 0.2, "Overnight demand"
	}
}

func mostRemainingCapacity(candidates []entities.SpareDoctor) (entities.SpareDoctor, bool) {
	if len(candidates) == 0 {
		return entities.SpareDoctor{}, false
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.RemainingCapacity() > best.RemainingCapacity() {
			best = c
		}
	}
	return best, true
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
