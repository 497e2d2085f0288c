package services

import (
	"context"
	"strconv"

	"github.com/zatekoja/smartcare/backend/internal/domain/entities"
	"github.com/zatekoja/smartcare/backend/internal/infrastructure/observability"
)

type demoPatient struct {
	name       string
	age        int
	symptoms   []string
	chronic    []string
	department string
	duration   float64
}

var demoPatients = []demoPatient{
	{"John Smith", 72, []string{"chest_pain", "shortness_of_breath"}, []string{"heart_disease", "diabetes"}, "cardiology", 1},
	{"Maria Garcia", 35, []string{"severe_bleeding", "abdominal_pain"}, nil, "emergency", 1},
	{"Baby Emma", 2, []string{"high_fever", "difficulty_breathing"}, []string{"asthma"}, "pediatrics", 4},
	{"Robert Johnson", 45, []string{"headache", "fatigue"}, nil, "general", 24},
	{"Sarah Davis", 28, []string{"cough", "sore_throat"}, nil, "general", 48},
	{"Michael Brown", 65, []string{"confusion", "severe_headache"}, []string{"hypertension", "diabetes"}, "neurology", 2},
	{"Jennifer Lee", 55, []string{"joint_pain", "swelling"}, []string{"arthritis"}, "orthopedics", 72},
	{"David Martinez", 40, []string{"nausea", "vomiting"}, nil, "general", 6},
}

func demoPatientID(i int) string {
	return strconv.Itoa(100 + i)
}

// DemoPatientRecords returns directory records for the patients Seed checks
// in, keyed by the same patient ids
func DemoPatientRecords() []entities.PatientRecord {
	out := make([]entities.PatientRecord, len(demoPatients))
	for i, p := range demoPatients {
		out[i] = entities.PatientRecord{
			ID:                demoPatientID(i),
			Name:              p.name,
			Age:               p.age,
			ChronicConditions: p.chronic,
		}
	}
	return out
}

// SeededPatient summarizes one demo check-in
type SeededPatient struct {
	Name          string  `json:"name"`
	EntryID       string  `json:"entry_id"`
	Department    string  `json:"department"`
	SeverityLevel string  `json:"severity"`
	Score         int     `json:"score"`
	Priority      float64 `json:"priority"`
}

// SeedResult is returned by Seed
type SeedResult struct {
	Patients       []SeededPatient `json:"patients"`
	Status         QueueStatus     `json:"stats"`
	AIActionsTaken int             `json:"ai_actions_taken"`
}

// DemoService fills the hospital with sample patients and wipes process state
type DemoService struct {
	queue     *QueueService
	crowd     *CrowdService
	roster    *DepartmentRoster
	pool      *SpareDoctorPool
	tracker   *LoadTracker
	allocator *DoctorAllocator
	activity  *ActivityLogger
	events    EventEmitter
}

// NewDemoService creates a demo service over the shared state
func NewDemoService(
	queue *QueueService,
	crowd *CrowdService,
	roster *DepartmentRoster,
	pool *SpareDoctorPool,
	tracker *LoadTracker,
	allocator *DoctorAllocator,
	activity *ActivityLogger,
) *DemoService {
	return &DemoService{
		queue:     queue,
		crowd:     crowd,
		roster:    roster,
		pool:      pool,
		tracker:   tracker,
		allocator: allocator,
		activity:  activity,
	}
}

// SetEventEmitter attaches the queue event stream
func (d *DemoService) SetEventEmitter(e EventEmitter) {
	d.events = e
}

// Seed checks in the demo patients and runs one allocation pass
func (d *DemoService) Seed(ctx context.Context) (*SeedResult, error) {
	out := &SeedResult{Patients: make([]SeededPatient, 0, len(demoPatients))}
	for i, p := range demoPatients {
		res, err := d.queue.CheckIn(ctx, CheckInRequest{
			PatientID:         demoPatientID(i),
			PatientName:       p.name,
			Age:               p.age,
			Symptoms:          p.symptoms,
			ChronicConditions: p.chronic,
			DurationHours:     p.duration,
			Department:        p.department,
		})
		if err != nil {
			return nil, err
		}
		out.Patients = append(out.Patients, SeededPatient{
			Name:          p.name,
			EntryID:       res.EntryID,
			Department:    res.Department,
			SeverityLevel: res.Triage.SeverityLevel,
			Score:         res.Triage.Score,
			Priority:      round4(res.PriorityScore),
		})
	}

	for _, dec := range d.allocator.AutoAllocateAll(ctx) {
		if dec.Executed {
			out.AIActionsTaken++
		}
	}
	out.Status = d.queue.Status()

	observability.LoggerFromContext(ctx).Info().
		Int("patients", len(out.Patients)).
		Int("ai_actions", out.AIActionsTaken).
		Msg("Demo data seeded")
	return out, nil
}

// Reset clears queues, consultations, load history and the teleconsult queue,
// and returns every spare doctor to the pool. Audit logs are kept.
func (d *DemoService) Reset(ctx context.Context) int {
	cleared := d.queue.Reset()
	d.crowd.Reset()
	d.tracker.Reset()
	released := d.pool.Reset()
	d.roster.Reset()
	d.allocator.Reset()

	if d.activity != nil {
		d.activity.LogSystemEvent("Demo data cleared", "All queues and spare doctor assignments were reset",
			map[string]interface{}{"entries_cleared": cleared, "doctors_released": released})
	}
	if d.events != nil {
		d.events.Emit(entities.NewQueueEvent(entities.QueueEventReset, ""))
	}
	observability.LoggerFromContext(ctx).Info().Int("entries_cleared", cleared).Msg("Demo data cleared")
	return cleared
}
