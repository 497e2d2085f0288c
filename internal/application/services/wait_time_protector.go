package services

import (
	"context"
	"fmt"

	"github.com/zatekoja/smartcare/backend/internal/domain/entities"
	"github.com/zatekoja/smartcare/backend/internal/infrastructure/observability"
)

const (
	protectionConfidence = 0.95
	actorWaitProtection  = "ai_wait_protection"
)

// WaitTimeProtector lends spare doctors to departments where critical arrivals
// would otherwise push back patients already waiting
type WaitTimeProtector struct {
	allocator           *DoctorAllocator
	consultationMinutes float64
}

// NewWaitTimeProtector shares the allocator's collaborators and pass lock
func NewWaitTimeProtector(allocator *DoctorAllocator, consultationMinutes int) *WaitTimeProtector {
	if consultationMinutes <= 0 {
		consultationMinutes = 15
	}
	return &WaitTimeProtector{
		allocator:           allocator,
		consultationMinutes: float64(consultationMinutes),
	}
}

// Impact models the wait increase critical patients cause in a department
func (p *WaitTimeProtector) Impact(department string) entities.WaitTimeImpact {
	a := p.allocator
	department = a.roster.Resolve(department)

	var entries []entities.QueuePosition
	if a.queues != nil {
		entries, _ = a.queues.Snapshot(department)
	}

	imp := entities.WaitTimeImpact{
		Department:    department,
		SpareAssigned: a.pool.AssignedCount(department),
	}
	for _, e := range entries {
		if e.Entry.IsCritical() {
			imp.CriticalPatients++
		} else {
			imp.RegularPatients++
		}
	}

	imp.TotalDoctors = max(a.roster.ActiveDoctors(department)+imp.SpareAssigned, 1)
	d := float64(imp.TotalDoctors)
	if imp.RegularPatients > 0 {
		imp.OriginalWait = round1(float64(imp.RegularPatients) * p.consultationMinutes / d)
		imp.NewWait = round1(float64(imp.CriticalPatients+imp.RegularPatients) * p.consultationMinutes / d)
		imp.WaitIncrease = round1(imp.NewWait - imp.OriginalWait)
	}

	if imp.CriticalPatients > 0 {
		extra := (imp.CriticalPatients + imp.TotalDoctors - 1) / imp.TotalDoctors
		imp.ExtraDoctorsNeeded = min(extra, a.pool.MaxPerDepartment())
	}

	imp.AvailableDoctors = len(a.pool.Candidates(department))
	imp.CanProtect = imp.SpareAssigned+imp.AvailableDoctors >= imp.ExtraDoctorsNeeded
	imp.ProtectedNow = imp.SpareAssigned >= imp.ExtraDoctorsNeeded
	return imp
}

// Protect assigns the spare doctors the department is short of. Running it
// again without new critical arrivals assigns nobody.
func (p *WaitTimeProtector) Protect(ctx context.Context, department string) entities.ProtectionResult {
	p.allocator.passMu.Lock()
	defer p.allocator.passMu.Unlock()
	return p.protectLocked(ctx, department)
}

// ProtectAll runs protection for every department
func (p *WaitTimeProtector) ProtectAll(ctx context.Context) []entities.ProtectionResult {
	p.allocator.passMu.Lock()
	defer p.allocator.passMu.Unlock()

	names := p.allocator.roster.Names()
	out := make([]entities.ProtectionResult, 0, len(names))
	for _, dept := range names {
		out = append(out, p.protectLocked(ctx, dept))
	}
	return out
}

func (p *WaitTimeProtector) protectLocked(ctx context.Context, department string) entities.ProtectionResult {
	a := p.allocator
	logger := observability.LoggerFromContext(ctx)

	imp := p.Impact(department)
	res := entities.ProtectionResult{
		Department: imp.Department,
		Impact:     imp,
		Decisions:  []entities.AllocationDecision{},
	}

	if imp.ProtectedNow {
		res.AlreadyProtected = true
		if imp.CriticalPatients == 0 {
			res.Message = "No critical patients: wait times stable"
		} else {
			res.Message = fmt.Sprintf("Wait times already protected by %d spare doctor(s)", imp.SpareAssigned)
		}
		return res
	}

	res.Requested = imp.ExtraDoctorsNeeded - imp.SpareAssigned
	reason := fmt.Sprintf("Wait-time protection: %d critical patient(s) in queue", imp.CriticalPatients)
	metrics := a.Analyze(imp.Department)

	for i := 0; i < res.Requested; i++ {
		candidates := a.pool.Candidates(imp.Department)
		if len(candidates) == 0 {
			break
		}
		doc := candidates[0]
		if _, err := a.pool.Assign(doc.ID, imp.Department, reason, actorWaitProtection); err != nil {
			logger.Warn().Err(err).Str("department", imp.Department).Int("doctor_id", doc.ID).Msg("Wait-time protection assignment failed")
			break
		}
		res.Assigned++

		docID := doc.ID
		d := entities.AllocationDecision{
			Action:     entities.AllocationActionAssign,
			Department: imp.Department,
			DoctorID:   &docID,
			DoctorName: doc.Name,
			Confidence: protectionConfidence,
			Reason:     reason,
			Factors: []entities.AllocationFactor{
				{Name: "critical_patients", Value: float64(imp.CriticalPatients), Detail: fmt.Sprintf("Critical patients: %d", imp.CriticalPatients)},
				{Name: "wait_increase", Value: imp.WaitIncrease, Detail: fmt.Sprintf("Wait increase prevented: %.0f min", imp.WaitIncrease)},
			},
			Metrics:   metrics,
			DecidedAt: a.now().UTC(),
			Executed:  true,
		}
		a.metrics.RecordAllocation(ctx, "protect", imp.Department)
		if a.activity != nil {
			a.activity.LogAllocation(d)
		}
		a.emit(d)
		a.record(d)
		res.Decisions = append(res.Decisions, d)
	}

	res.Degraded = res.Assigned < res.Requested
	switch {
	case !res.Degraded:
		res.Message = fmt.Sprintf("Wait times protected: assigned %d spare doctor(s)", res.Assigned)
	case res.Assigned > 0:
		res.Message = fmt.Sprintf("Partial protection: assigned %d of %d doctors needed", res.Assigned, res.Requested)
	default:
		res.Message = "Could not protect wait times: no spare doctors available"
	}

	logger.Info().
		Str("department", imp.Department).
		Int("requested", res.Requested).
		Int("assigned", res.Assigned).
		Msg("Wait-time protection run")

	return res
}
