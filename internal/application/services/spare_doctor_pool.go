package services

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/zatekoja/smartcare/backend/internal/domain/entities"
	apperrors "github.com/zatekoja/smartcare/backend/pkg/errors"
)

// ActorSystem is recorded when the process itself initiates an action
const ActorSystem = "system"

// DemoSpareDoctors is the partner-hospital roster loaded at startup
func DemoSpareDoctors() []entities.SpareDoctor {
	return []entities.SpareDoctor{
		{ID: 1001, Name: "Dr. Sarah Wilson", Specialty: "GENERAL", Hospital: "City Hospital"},
		{ID: 1002, Name: "Dr. James Chen", Specialty: "GENERAL", Hospital: "Metro Clinic"},
		{ID: 1003, Name: "Dr. Priya Sharma", Specialty: "PEDIATRICS", Hospital: "Children's Hospital"},
		{ID: 1004, Name: "Dr. Michael Brown", Specialty: "CARDIOLOGY", Hospital: "Heart Care Center"},
		{ID: 1005, Name: "Dr. Emily Davis", Specialty: "EMERGENCY", Hospital: "Regional Medical"},
		{ID: 1006, Name: "Dr. Raj Patel", Specialty: "ORTHOPEDICS", Hospital: "Bone & Joint Clinic"},
		{ID: 1007, Name: "Dr. Lisa Thompson", Specialty: "DERMATOLOGY", Hospital: "Skin Care Institute"},
		{ID: 1008, Name: "Dr. Ahmed Hassan", Specialty: "NEUROLOGY", Hospital: "Brain Health Center"},
	}
}

// SpareDoctorPool tracks which partner doctors are lent to which department.
// The per-department cap is checked and consumed under the same lock as the
// status change.
type SpareDoctorPool struct {
	mu               sync.RWMutex
	doctors          map[int]*entities.SpareDoctor
	order            []int
	roster           []entities.SpareDoctor
	logs             []entities.AssignmentLog
	logCounter       int
	maxPerDepartment int
	maxPatients      int
	activity         *ActivityLogger
	now              func() time.Time
}

// NewSpareDoctorPool loads the roster with every doctor available
func NewSpareDoctorPool(roster []entities.SpareDoctor, maxPerDepartment, maxPatients int) *SpareDoctorPool {
	if maxPerDepartment <= 0 {
		maxPerDepartment = 3
	}
	if maxPatients <= 0 {
		maxPatients = 10
	}
	p := &SpareDoctorPool{
		roster:           roster,
		maxPerDepartment: maxPerDepartment,
		maxPatients:      maxPatients,
		now:              time.Now,
	}
	p.loadRoster()
	return p
}

// SetActivityLogger mirrors assignments into the activity timeline
func (p *SpareDoctorPool) SetActivityLogger(activity *ActivityLogger) {
	p.activity = activity
}

// SetClock replaces the timestamp source
func (p *SpareDoctorPool) SetClock(now func() time.Time) {
	p.now = now
}

// MaxPerDepartment returns the assignment cap
func (p *SpareDoctorPool) MaxPerDepartment() int {
	return p.maxPerDepartment
}

func (p *SpareDoctorPool) loadRoster() {
	p.doctors = make(map[int]*entities.SpareDoctor, len(p.roster))
	p.order = p.order[:0]
	for _, d := range p.roster {
		doc := d
		doc.Specialty = strings.ToUpper(doc.Specialty)
		doc.Status = entities.DoctorStatusAvailable
		doc.AssignedDepartment = ""
		doc.AssignedAt = nil
		doc.PatientsSeen = 0
		doc.MaxPatients = p.maxPatients
		p.doctors[doc.ID] = &doc
		p.order = append(p.order, doc.ID)
	}
}

// Assign lends an available doctor to a department
func (p *SpareDoctorPool) Assign(doctorID int, department, reason, actor string) (entities.SpareDoctor, error) {
	department = entities.NormalizeDepartment(department)
	if actor == "" {
		actor = ActorSystem
	}

	p.mu.Lock()
	doc, ok := p.doctors[doctorID]
	if !ok {
		p.mu.Unlock()
		return entities.SpareDoctor{}, apperrors.NewNotFoundError(fmt.Sprintf("spare doctor %d not found", doctorID))
	}
	if doc.Status != entities.DoctorStatusAvailable {
		p.mu.Unlock()
		return entities.SpareDoctor{}, apperrors.NewConflictError(fmt.Sprintf("%s is currently %s", doc.Name, doc.Status))
	}
	if p.assignedCountLocked(department) >= p.maxPerDepartment {
		p.mu.Unlock()
		return entities.SpareDoctor{}, apperrors.NewResourceExhaustedError(
			fmt.Sprintf("maximum spare doctors (%d) already assigned to %s", p.maxPerDepartment, department))
	}

	at := p.now().UTC()
	doc.Status = entities.DoctorStatusAssigned
	doc.AssignedDepartment = department
	doc.AssignedAt = &at
	doc.PatientsSeen = 0
	rec := p.appendLogLocked(doc, entities.AssignmentActionAssign, department, reason, actor)
	out := *doc
	p.mu.Unlock()

	if p.activity != nil {
		p.activity.LogDoctorAssigned(rec)
	}
	return out, nil
}

// Release returns an assigned doctor to the pool
func (p *SpareDoctorPool) Release(doctorID int, reason, actor string) (entities.SpareDoctor, error) {
	return p.release(doctorID, entities.AssignmentActionRelease, reason, actor)
}

func (p *SpareDoctorPool) release(doctorID int, action entities.AssignmentAction, reason, actor string) (entities.SpareDoctor, error) {
	if actor == "" {
		actor = ActorSystem
	}

	p.mu.Lock()
	doc, ok := p.doctors[doctorID]
	if !ok {
		p.mu.Unlock()
		return entities.SpareDoctor{}, apperrors.NewNotFoundError(fmt.Sprintf("spare doctor %d not found", doctorID))
	}
	if doc.Status != entities.DoctorStatusAssigned {
		p.mu.Unlock()
		return entities.SpareDoctor{}, apperrors.NewConflictError(fmt.Sprintf("%s is not assigned to a department", doc.Name))
	}
	rec := p.releaseLocked(doc, action, reason, actor)
	out := *doc
	p.mu.Unlock()

	if p.activity != nil {
		p.activity.LogDoctorReleased(rec)
	}
	return out, nil
}

func (p *SpareDoctorPool) releaseLocked(doc *entities.SpareDoctor, action entities.AssignmentAction, reason, actor string) entities.AssignmentLog {
	rec := p.appendLogLocked(doc, action, doc.AssignedDepartment, reason, actor)
	doc.Status = entities.DoctorStatusAvailable
	doc.AssignedDepartment = ""
	doc.AssignedAt = nil
	doc.PatientsSeen = 0
	return rec
}

// RecordPatientSeen counts a consultation by an assigned spare doctor and
// releases the doctor once the per-assignment limit is reached. It reports
// whether the doctor was released.
func (p *SpareDoctorPool) RecordPatientSeen(doctorID int) (bool, error) {
	p.mu.Lock()
	doc, ok := p.doctors[doctorID]
	if !ok {
		p.mu.Unlock()
		return false, apperrors.NewNotFoundError(fmt.Sprintf("spare doctor %d not found", doctorID))
	}
	if doc.Status != entities.DoctorStatusAssigned {
		p.mu.Unlock()
		return false, apperrors.NewConflictError(fmt.Sprintf("%s is not assigned to a department", doc.Name))
	}
	doc.PatientsSeen++
	if doc.PatientsSeen < doc.MaxPatients {
		p.mu.Unlock()
		return false, nil
	}
	rec := p.releaseLocked(doc, entities.AssignmentActionAutoRelease,
		fmt.Sprintf("Maximum patients (%d) reached", doc.MaxPatients), ActorSystem)
	p.mu.Unlock()

	if p.activity != nil {
		p.activity.LogDoctorReleased(rec)
	}
	return true, nil
}

// SetOffline takes an available doctor out of rotation
func (p *SpareDoctorPool) SetOffline(doctorID int) (entities.SpareDoctor, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	doc, ok := p.doctors[doctorID]
	if !ok {
		return entities.SpareDoctor{}, apperrors.NewNotFoundError(fmt.Sprintf("spare doctor %d not found", doctorID))
	}
	if doc.Status == entities.DoctorStatusAssigned {
		return entities.SpareDoctor{}, apperrors.NewConflictError(fmt.Sprintf("%s must be released before going offline", doc.Name))
	}
	doc.Status = entities.DoctorStatusOffline
	return *doc, nil
}

// SetOnline makes an offline doctor available again
func (p *SpareDoctorPool) SetOnline(doctorID int) (entities.SpareDoctor, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	doc, ok := p.doctors[doctorID]
	if !ok {
		return entities.SpareDoctor{}, apperrors.NewNotFoundError(fmt.Sprintf("spare doctor %d not found", doctorID))
	}
	if doc.Status == entities.DoctorStatusAssigned {
		return entities.SpareDoctor{}, apperrors.NewConflictError(fmt.Sprintf("%s is assigned to %s", doc.Name, doc.AssignedDepartment))
	}
	doc.Status = entities.DoctorStatusAvailable
	return *doc, nil
}

// GetDoctor returns one doctor
func (p *SpareDoctorPool) GetDoctor(doctorID int) (entities.SpareDoctor, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	doc, ok := p.doctors[doctorID]
	if !ok {
		return entities.SpareDoctor{}, apperrors.NewNotFoundError(fmt.Sprintf("spare doctor %d not found", doctorID))
	}
	return *doc, nil
}

// Available lists available doctors in roster order, optionally by specialty
func (p *SpareDoctorPool) Available(specialty string) []entities.SpareDoctor {
	specialty = strings.ToUpper(strings.TrimSpace(specialty))

	p.mu.RLock()
	defer p.mu.RUnlock()

	out := []entities.SpareDoctor{}
	for _, id := range p.order {
		d := p.doctors[id]
		if d.Status != entities.DoctorStatusAvailable {
			continue
		}
		if specialty != "" && d.Specialty != specialty {
			continue
		}
		out = append(out, *d)
	}
	return out
}

// Assigned lists assigned doctors, optionally for one department
func (p *SpareDoctorPool) Assigned(department string) []entities.SpareDoctor {
	department = entities.NormalizeDepartment(department)

	p.mu.RLock()
	defer p.mu.RUnlock()

	out := []entities.SpareDoctor{}
	for _, id := range p.order {
		d := p.doctors[id]
		if d.Status != entities.DoctorStatusAssigned {
			continue
		}
		if department != "" && d.AssignedDepartment != department {
			continue
		}
		out = append(out, *d)
	}
	return out
}

// AssignedCount returns how many spare doctors a department holds
func (p *SpareDoctorPool) AssignedCount(department string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.assignedCountLocked(entities.NormalizeDepartment(department))
}

// Candidates returns available doctors for a department: specialty matches
// first, then general doctors, each doctor at most once
func (p *SpareDoctorPool) Candidates(department string) []entities.SpareDoctor {
	specialty := strings.ToUpper(entities.NormalizeDepartment(department))
	out := p.Available(specialty)
	if specialty == entities.GeneralSpecialty {
		return out
	}
	return append(out, p.Available(entities.GeneralSpecialty)...)
}

// Logs returns assignment records newest first
func (p *SpareDoctorPool) Logs(department string, limit int) []entities.AssignmentLog {
	if limit <= 0 {
		limit = 50
	}
	department = entities.NormalizeDepartment(department)

	p.mu.RLock()
	defer p.mu.RUnlock()

	out := []entities.AssignmentLog{}
	for i := len(p.logs) - 1; i >= 0 && len(out) < limit; i-- {
		if department != "" && p.logs[i].Department != department {
			continue
		}
		out = append(out, p.logs[i])
	}
	return out
}

// Status summarizes the pool
func (p *SpareDoctorPool) Status() entities.PoolStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()

	st := entities.PoolStatus{
		TotalDoctors:     len(p.order),
		ByDepartment:     make(map[string]int),
		MaxPerDepartment: p.maxPerDepartment,
		Doctors:          make([]entities.SpareDoctor, 0, len(p.order)),
	}
	for _, id := range p.order {
		d := p.doctors[id]
		switch d.Status {
		case entities.DoctorStatusAvailable:
			st.Available++
		case entities.DoctorStatusAssigned:
			st.Assigned++
			st.ByDepartment[d.AssignedDepartment]++
		case entities.DoctorStatusOffline:
			st.Offline++
		}
		st.Doctors = append(st.Doctors, *d)
	}
	return st
}

// SpecialtiesAvailable counts available doctors per specialty
func (p *SpareDoctorPool) SpecialtiesAvailable() map[string]int {
	counts := make(map[string]int)
	for _, d := range p.Available("") {
		counts[d.Specialty]++
	}
	return counts
}

// resetReason is recorded on releases made by Reset
const resetReason = "pool reset"

// Reset returns every doctor to available. Assigned doctors are released with
// a logged release record; the assignment log itself is kept. It returns the
// number of doctors released.
func (p *SpareDoctorPool) Reset() int {
	p.mu.Lock()
	var released []entities.AssignmentLog
	for _, id := range p.order {
		doc := p.doctors[id]
		switch doc.Status {
		case entities.DoctorStatusAssigned:
			released = append(released, p.releaseLocked(doc, entities.AssignmentActionRelease, resetReason, ActorSystem))
		case entities.DoctorStatusOffline:
			doc.Status = entities.DoctorStatusAvailable
		}
	}
	p.mu.Unlock()

	if p.activity != nil {
		for _, rec := range released {
			p.activity.LogDoctorReleased(rec)
		}
	}
	return len(released)
}

func (p *SpareDoctorPool) assignedCountLocked(department string) int {
	n := 0
	for _, d := range p.doctors {
		if d.Status == entities.DoctorStatusAssigned && d.AssignedDepartment == department {
			n++
		}
	}
	return n
}

func (p *SpareDoctorPool) appendLogLocked(doc *entities.SpareDoctor, action entities.AssignmentAction, department, reason, actor string) entities.AssignmentLog {
	p.logCounter++
	rec := entities.AssignmentLog{
		ID:         fmt.Sprintf("LOG-%05d", p.logCounter),
		DoctorID:   doc.ID,
		DoctorName: doc.Name,
		Department: department,
		Action:     action,
		Reason:     reason,
		Actor:      actor,
		Timestamp:  p.now().UTC(),
	}
	p.logs = append(p.logs, rec)
	return rec
}
