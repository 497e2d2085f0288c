package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/zatekoja/smartcare/backend/internal/domain/entities"
	"github.com/zatekoja/smartcare/backend/internal/domain/providers"
	"github.com/zatekoja/smartcare/backend/internal/domain/repositories"
	"github.com/zatekoja/smartcare/backend/internal/infrastructure/observability"
	"github.com/zatekoja/smartcare/backend/internal/queue"
	"github.com/zatekoja/smartcare/backend/internal/triage"
	apperrors "github.com/zatekoja/smartcare/backend/pkg/errors"
)

const (
	idempotencyKeyPrefix = "smartcare:checkin:"
	idempotencyTTL       = 24 * 60 * 60
	defaultListLimit     = 50
)

// CheckInRequest is a patient arriving at the hospital
type CheckInRequest struct {
	PatientID         string   `json:"patient_id"`
	PatientName       string   `json:"patient_name"`
	Age               int      `json:"age"`
	Symptoms          []string `json:"symptoms"`
	Description       string   `json:"description"`
	ChronicConditions []string `json:"chronic_conditions"`
	DurationHours     float64  `json:"duration_hours"`
	SelfSeverity      int      `json:"self_severity"`
	IsEmergency       bool     `json:"is_emergency"`
	Department        string   `json:"department"`
	IdempotencyKey    string   `json:"-"`
}

// CheckInResult is everything the patient and front desk need after check-in
type CheckInResult struct {
	EntryID        string                       `json:"entry_id"`
	Token          string                       `json:"token"`
	Department     string                       `json:"department"`
	Position       int                          `json:"position"`
	PriorityScore  float64                      `json:"priority_score"`
	Triage         triage.Result                `json:"triage"`
	WaitEstimate   entities.WaitEstimate        `json:"wait_estimate"`
	Teleconsult    entities.TeleconsultAdvice   `json:"teleconsult"`
	WaitProtection *entities.ProtectionResult   `json:"wait_time_protection,omitempty"`
	Allocation     *entities.AllocationDecision `json:"ai_allocation,omitempty"`
	Replayed       bool                         `json:"replayed"`
}

// QueuedPatient is one row of a queue listing
type QueuedPatient struct {
	entities.QueuePosition
	ExpectedWait        entities.WaitEstimate `json:"expected_wait"`
	TeleconsultEligible bool                  `json:"teleconsult_eligible"`
}

// CurrentPatient is the patient a department is seeing right now
type CurrentPatient struct {
	Entry         entities.QueueEntry `json:"entry"`
	DoctorID      int                 `json:"doctor_id,omitempty"`
	DoctorName    string              `json:"doctor_name"`
	SpareDoctor   bool                `json:"spare_doctor"`
	CalledAt      time.Time           `json:"called_at"`
	WaitedMinutes float64             `json:"waited_minutes"`
	AutoReleased  bool                `json:"doctor_auto_released,omitempty"`
}

// DepartmentQueueStatus is one department's line in the queue status
type DepartmentQueueStatus struct {
	Department     string              `json:"department"`
	QueueCount     int                 `json:"queue_count"`
	CriticalCount  int                 `json:"critical_count"`
	CrowdLevel     entities.CrowdLevel `json:"crowd_level"`
	AvgWaitMinutes float64             `json:"avg_wait_minutes"`
	Doctors        int                 `json:"doctors"`
}

// QueueStatus is the hospital-wide queue summary
type QueueStatus struct {
	TotalInQueue          int                     `json:"total_in_queue"`
	CriticalPatients      int                     `json:"critical_patients"`
	BySeverity            map[string]int          `json:"by_severity"`
	AvgWaitMinutes        float64                 `json:"avg_wait_minutes"`
	TotalDoctors          int                     `json:"total_doctors"`
	SpareDoctorsAvailable int                     `json:"spare_doctors_available"`
	PatientsBeingSeen     int                     `json:"patients_being_seen"`
	Departments           []DepartmentQueueStatus `json:"departments"`
}

// QueueService orchestrates check-in, calling and completing patients on top of
// the department queues
type QueueService struct {
	engine    *triage.Engine
	board     *queue.Board
	roster    *DepartmentRoster
	pool      *SpareDoctorPool
	tracker   *LoadTracker
	allocator *DoctorAllocator
	protector *WaitTimeProtector
	crowd     *CrowdService
	activity  *ActivityLogger

	cache     providers.CacheProvider
	directory repositories.PatientDirectory
	metrics   *observability.Metrics
	events    EventEmitter

	autoAllocate bool
	inflight     singleflight.Group

	mu      sync.Mutex
	current map[string]CurrentPatient
	now     func() time.Time
}

// NewQueueService wires the queue service to the shared in-memory state
func NewQueueService(
	engine *triage.Engine,
	board *queue.Board,
	roster *DepartmentRoster,
	pool *SpareDoctorPool,
	tracker *LoadTracker,
	allocator *DoctorAllocator,
	protector *WaitTimeProtector,
	crowd *CrowdService,
	activity *ActivityLogger,
) *QueueService {
	return &QueueService{
		engine:    engine,
		board:     board,
		roster:    roster,
		pool:      pool,
		tracker:   tracker,
		allocator: allocator,
		protector: protector,
		crowd:     crowd,
		activity:  activity,
		current:   make(map[string]CurrentPatient),
		now:       time.Now,
	}
}

// SetCache enables idempotent check-in replay
func (s *QueueService) SetCache(cache providers.CacheProvider) {
	s.cache = cache
}

// SetPatientDirectory enables display metadata lookup for registered patients
func (s *QueueService) SetPatientDirectory(dir repositories.PatientDirectory) {
	s.directory = dir
}

// SetMetrics attaches business metrics
func (s *QueueService) SetMetrics(m *observability.Metrics) {
	s.metrics = m
}

// SetEventEmitter attaches the queue event stream
func (s *QueueService) SetEventEmitter(e EventEmitter) {
	s.events = e
}

// SetAutoAllocate runs a department allocation pass after every check-in
func (s *QueueService) SetAutoAllocate(enabled bool) {
	s.autoAllocate = enabled
}

// SetClock replaces the time source
func (s *QueueService) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *QueueService) clock() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now()
}

// Assess scores a patient without queueing them
func (s *QueueService) Assess(in triage.Input) triage.Result {
	in.SelfSeverity = triage.IntakeSelfSeverity(in.SelfSeverity)
	return s.engine.Score(in)
}

// CheckIn triages a patient and queues them in their department. A repeated
// idempotency key returns the first result instead of queueing again.
func (s *QueueService) CheckIn(ctx context.Context, req CheckInRequest) (*CheckInResult, error) {
	req.PatientID = strings.TrimSpace(req.PatientID)
	if req.PatientID == "" {
		return nil, apperrors.NewValidationError("patient_id is required")
	}

	key := strings.TrimSpace(req.IdempotencyKey)
	if key == "" {
		return s.checkIn(ctx, req)
	}

	v, err, _ := s.inflight.Do(key, func() (interface{}, error) {
		if prev, ok := s.replay(ctx, key); ok {
			return prev, nil
		}
		res, err := s.checkIn(ctx, req)
		if err != nil {
			return nil, err
		}
		s.remember(ctx, key, res)
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	res := *v.(*CheckInResult)
	return &res, nil
}

func (s *QueueService) replay(ctx context.Context, key string) (*CheckInResult, bool) {
	if s.cache == nil {
		return nil, false
	}
	data, err := s.cache.Get(ctx, idempotencyKeyPrefix+key)
	if err != nil {
		return nil, false
	}
	var res CheckInResult
	if err := json.Unmarshal(data, &res); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("idempotency_key", key).Msg("Discarding unreadable cached check-in")
		return nil, false
	}
	res.Replayed = true
	return &res, true
}

func (s *QueueService) remember(ctx context.Context, key string, res *CheckInResult) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(res)
	if err == nil {
		err = s.cache.Set(ctx, idempotencyKeyPrefix+key, data, idempotencyTTL)
	}
	if err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("idempotency_key", key).Msg("Failed to cache check-in result")
	}
}

func (s *QueueService) checkIn(ctx context.Context, req CheckInRequest) (*CheckInResult, error) {
	ctx, span := observability.StartSpan(ctx, "queue.checkin")
	defer span.End()
	logger := observability.LoggerFromContext(ctx)

	s.enrichFromDirectory(ctx, &req)
	if req.PatientName == "" {
		req.PatientName = entities.DefaultDisplayInfo(req.PatientID).Name
	}
	dept := s.roster.Resolve(req.Department)

	result := s.engine.Score(triage.Input{
		Symptoms:          req.Symptoms,
		Description:       req.Description,
		Age:               req.Age,
		ChronicConditions: req.ChronicConditions,
		DurationHours:     req.DurationHours,
		IsEmergency:       req.IsEmergency,
		SelfSeverity:      triage.IntakeSelfSeverity(req.SelfSeverity),
	})

	symptoms := req.Symptoms
	if symptoms == nil {
		symptoms = []string{}
	}
	chronic := req.ChronicConditions
	if chronic == nil {
		chronic = []string{}
	}

	stored, err := s.board.Push(entities.QueueEntry{
		ID:            uuid.New().String(),
		PatientID:     req.PatientID,
		Department:    dept,
		SeverityScore: result.Score,
		AgeFactor:     triage.AgeRiskFactor(req.Age),
		ChronicBoost:  s.engine.ChronicBoost(req.ChronicConditions),
		CheckInTime:   s.clock().UTC(),
		Display: &entities.PatientDisplayInfo{
			Name:              req.PatientName,
			Age:               req.Age,
			Symptoms:          symptoms,
			ChronicConditions: chronic,
			SeverityLevel:     result.SeverityLevel,
			Explanation:       result.Explanation,
		},
	})
	if err != nil {
		observability.RecordError(span, err)
		return nil, apperrors.NewInternalError("failed to queue patient", err)
	}
	s.sample(dept)

	pos, _ := s.board.Position(stored.ID)
	out := &CheckInResult{
		EntryID:       stored.ID,
		Token:         s.tokenFor(stored),
		Department:    dept,
		Position:      pos.Position,
		PriorityScore: stored.CompositePriority,
		Triage:        result,
		WaitEstimate:  s.crowd.ExpectedWait(dept, pos.Position, result.Score),
		Teleconsult:   s.crowd.TeleconsultAdvice(dept, result.Score, req.IsEmergency),
	}

	s.metrics.RecordCheckIn(ctx, dept, result.SeverityLevel, result.Score)
	if s.activity != nil {
		s.activity.LogCheckIn(stored, symptoms, out.WaitEstimate.EstimatedMinutes)
	}
	s.emitEntry(entities.QueueEventCheckIn, stored, pos.Position)

	if stored.IsCritical() && s.protector != nil {
		prot := s.protector.Protect(ctx, dept)
		out.WaitProtection = &prot
	}
	if s.autoAllocate && s.allocator != nil {
		d := s.allocator.AutoAllocateDepartment(ctx, dept)
		out.Allocation = &d
	}

	logger.Info().
		Str("entry_id", stored.ID).
		Str("department", dept).
		Int("triage_score", result.Score).
		Float64("priority", stored.CompositePriority).
		Int("position", pos.Position).
		Msg("Patient checked in")

	return out, nil
}

func (s *QueueService) enrichFromDirectory(ctx context.Context, req *CheckInRequest) {
	if s.directory == nil || req.PatientName != "" {
		return
	}
	rec, err := s.directory.GetByID(ctx, req.PatientID)
	if err != nil {
		if !apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
			observability.LoggerFromContext(ctx).Warn().Err(err).Str("patient_id", req.PatientID).Msg("Patient directory lookup failed")
		}
		return
	}
	req.PatientName = rec.Name
	if req.Age == 0 {
		req.Age = rec.Age
	}
	if len(req.ChronicConditions) == 0 {
		req.ChronicConditions = rec.ChronicConditions
	}
}

// List returns a department's queue in service order, or every department's
// when department is empty
func (s *QueueService) List(department string, limit int) ([]QueuedPatient, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	depts := s.board.Departments()
	if department != "" {
		d, ok := s.roster.Lookup(department)
		if !ok {
			return nil, apperrors.NewNotFoundError("unknown department: " + department)
		}
		depts = []string{d.Name}
	}

	out := []QueuedPatient{}
	for _, d := range depts {
		snap, err := s.board.Snapshot(d)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to read queue", err)
		}
		for _, p := range snap {
			if len(out) == limit {
				return out, nil
			}
			out = append(out, s.describe(p))
		}
	}
	return out, nil
}

func (s *QueueService) describe(p entities.QueuePosition) QueuedPatient {
	return QueuedPatient{
		QueuePosition:       p,
		ExpectedWait:        s.crowd.ExpectedWait(p.Entry.Department, p.Position, p.Entry.SeverityScore),
		TeleconsultEligible: s.crowd.TeleconsultAdvice(p.Entry.Department, p.Entry.SeverityScore, p.Entry.IsEmergency).Eligible,
	}
}

// Position returns a live entry's place in line with its expected wait
func (s *QueueService) Position(entryID string) (QueuedPatient, error) {
	p, ok := s.board.Position(entryID)
	if !ok {
		return QueuedPatient{}, apperrors.NewNotFoundError(fmt.Sprintf("queue entry %s not found", entryID))
	}
	return s.describe(p), nil
}

// CallNext hands the department's highest-priority patient to a doctor. A
// department sees one patient at a time. When the caller is a spare doctor the
// visit counts toward their assignment limit.
func (s *QueueService) CallNext(ctx context.Context, department string, doctorID int) (CurrentPatient, error) {
	dept := s.roster.Resolve(department)
	now := s.clock()

	s.mu.Lock()
	if cur, busy := s.current[dept]; busy {
		s.mu.Unlock()
		return cur, apperrors.NewConflictError(fmt.Sprintf("complete current patient in %s first", dept))
	}
	entry, ok, err := s.board.Pop(dept)
	if err != nil || !ok {
		s.mu.Unlock()
		return CurrentPatient{}, apperrors.NewNotFoundError("no patients in queue for " + dept)
	}
	cur := CurrentPatient{
		Entry:         entry,
		DoctorID:      doctorID,
		DoctorName:    "Attending doctor",
		CalledAt:      now.UTC(),
		WaitedMinutes: round1(entry.WaitedFor(now).Minutes()),
	}
	cur.Entry.WaitMinutes = cur.WaitedMinutes
	s.current[dept] = cur
	s.mu.Unlock()

	if doctorID != 0 {
		if doc, err := s.pool.GetDoctor(doctorID); err == nil {
			cur.DoctorName = doc.Name
			if doc.Status == entities.DoctorStatusAssigned && doc.AssignedDepartment == dept {
				cur.SpareDoctor = true
				released, err := s.pool.RecordPatientSeen(doctorID)
				if err != nil {
					observability.LoggerFromContext(ctx).Warn().Err(err).Int("doctor_id", doctorID).Msg("Could not record spare doctor visit")
				}
				cur.AutoReleased = released
			}
		}
		s.mu.Lock()
		if stored, ok := s.current[dept]; ok && stored.Entry.ID == cur.Entry.ID {
			s.current[dept] = cur
		}
		s.mu.Unlock()
	}

	s.sample(dept)
	s.metrics.RecordPatientCalled(ctx, dept)
	if s.activity != nil {
		s.activity.LogPatientCalled(cur.Entry, cur.DoctorName)
	}
	s.emitEntry(entities.QueueEventCalled, cur.Entry, 0)

	observability.LoggerFromContext(ctx).Info().
		Str("entry_id", entry.ID).
		Str("department", dept).
		Str("doctor", cur.DoctorName).
		Float64("waited_minutes", cur.WaitedMinutes).
		Msg("Patient called")
	return cur, nil
}

// Current returns the patient a department is seeing
func (s *QueueService) Current(department string) (CurrentPatient, bool) {
	dept := s.roster.Resolve(department)
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.current[dept]
	return cur, ok
}

// Complete ends the department's current consultation
func (s *QueueService) Complete(ctx context.Context, department string) (CurrentPatient, error) {
	dept := s.roster.Resolve(department)

	s.mu.Lock()
	cur, ok := s.current[dept]
	delete(s.current, dept)
	s.mu.Unlock()
	if !ok {
		return CurrentPatient{}, apperrors.NewNotFoundError("no patient is being seen in " + dept)
	}

	if s.activity != nil {
		s.activity.LogPatientCompleted(cur.Entry, cur.DoctorName)
	}
	s.emitEntry(entities.QueueEventCompleted, cur.Entry, 0)
	observability.LoggerFromContext(ctx).Info().Str("entry_id", cur.Entry.ID).Str("department", dept).Msg("Consultation completed")
	return cur, nil
}

// Remove takes a patient out of the queue without seeing them
func (s *QueueService) Remove(ctx context.Context, entryID string) (entities.QueueEntry, error) {
	e, ok := s.board.Remove(entryID)
	if !ok {
		return entities.QueueEntry{}, apperrors.NewNotFoundError(fmt.Sprintf("queue entry %s not found", entryID))
	}
	s.sample(e.Department)
	s.emitEntry(entities.QueueEventRemoved, e, 0)
	observability.LoggerFromContext(ctx).Info().Str("entry_id", e.ID).Str("department", e.Department).Msg("Patient removed from queue")
	return e, nil
}

// RedirectToTeleconsult moves a queued patient into the teleconsultation queue
func (s *QueueService) RedirectToTeleconsult(ctx context.Context, entryID string) (entities.TeleconsultEntry, error) {
	e, err := s.Remove(ctx, entryID)
	if err != nil {
		return entities.TeleconsultEntry{}, err
	}
	info := e.DisplayInfo()
	return s.crowd.EnqueueTeleconsult(entities.TeleconsultEntry{
		PatientID:      e.PatientID,
		PatientName:    info.Name,
		Symptoms:       info.Symptoms,
		TriageScore:    e.SeverityScore,
		FromDepartment: e.Department,
	}), nil
}

// Recalculate refreshes every wait-dependent priority
func (s *QueueService) Recalculate(ctx context.Context) int {
	now := s.clock()
	n := s.board.RecalculateAll(now)
	for _, d := range s.board.Departments() {
		s.tracker.Record(d, s.board.Depth(d), now)
	}
	if s.events != nil {
		ev := entities.NewQueueEvent(entities.QueueEventRecalculate, "")
		ev.QueueSize = s.board.Total()
		ev.Data = map[string]interface{}{"updated": n}
		s.events.Emit(ev)
	}
	observability.LoggerFromContext(ctx).Debug().Int("updated", n).Msg("Queue priorities recalculated")
	return n
}

// Run recalculates priorities every interval until ctx is done
func (s *QueueService) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Recalculate(ctx)
		}
	}
}

// Status summarizes every department's queue
func (s *QueueService) Status() QueueStatus {
	st := QueueStatus{
		BySeverity:  map[string]int{"critical": 0, "urgent": 0, "moderate": 0, "low": 0, "minimal": 0},
		Departments: []DepartmentQueueStatus{},
	}
	consult := s.crowd.consultationMinutes

	for _, dept := range s.roster.All() {
		snap, _ := s.board.Snapshot(dept.Name)
		doctors := s.crowd.Doctors(dept.Name)
		ds := DepartmentQueueStatus{
			Department:     dept.Name,
			QueueCount:     len(snap),
			CrowdLevel:     entities.CrowdLevelFor(len(snap), dept.BaseCapacity),
			AvgWaitMinutes: meanWait(len(snap), doctors, consult),
			Doctors:        doctors,
		}
		for _, p := range snap {
			st.BySeverity[entities.SeverityBand(p.Entry.SeverityScore)]++
			if p.Entry.IsCritical() {
				ds.CriticalCount++
			}
		}
		st.TotalInQueue += ds.QueueCount
		st.CriticalPatients += ds.CriticalCount
		st.TotalDoctors += doctors
		st.Departments = append(st.Departments, ds)
	}
	st.AvgWaitMinutes = meanWait(st.TotalInQueue, st.TotalDoctors, consult)
	st.SpareDoctorsAvailable = len(s.pool.Available(""))

	s.mu.Lock()
	st.PatientsBeingSeen = len(s.current)
	s.mu.Unlock()
	return st
}

// Reset empties every queue and ends every consultation
func (s *QueueService) Reset() int {
	s.mu.Lock()
	s.current = make(map[string]CurrentPatient)
	s.mu.Unlock()
	return s.board.Clear()
}

func (s *QueueService) sample(department string) {
	s.tracker.Record(department, s.board.Depth(department), s.clock())
}

func (s *QueueService) emitEntry(t entities.QueueEventType, e entities.QueueEntry, position int) {
	if s.events == nil {
		return
	}
	ev := entities.NewQueueEvent(t, e.Department)
	ev.EntryID = e.ID
	ev.PatientID = e.PatientID
	ev.Position = position
	ev.Priority = e.CompositePriority
	ev.QueueSize = s.board.Depth(e.Department)
	ev.Data = map[string]interface{}{
		"token":          s.tokenFor(e),
		"severity_score": e.SeverityScore,
	}
	s.events.Emit(ev)
}

// tokenFor is the short ticket number shown on display boards
func (s *QueueService) tokenFor(e entities.QueueEntry) string {
	code := "GEN"
	if d, ok := s.roster.Lookup(e.Department); ok && d.Code != "" {
		code = d.Code
	}
	id := strings.ReplaceAll(e.ID, "-", "")
	if len(id) > 6 {
		id = id[:6]
	}
	return fmt.Sprintf("%s-%s", code, strings.ToUpper(id))
}

func meanWait(patients, doctors, consultationMinutes int) float64 {
	if patients == 0 {
		return 0
	}
	return math.Round(float64(patients*consultationMinutes)/float64(max(doctors, 1))*10) / 10
}
