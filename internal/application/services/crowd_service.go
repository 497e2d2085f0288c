package services

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/zatekoja/smartcare/backend/internal/domain/entities"
	apperrors "github.com/zatekoja/smartcare/backend/pkg/errors"
)

const teleconsultMinutesPerPatient = 10

var teleconsultBenefits = []string{
	"No waiting in queue",
	"Consult from comfort of home",
	"Prescription sent digitally",
	"Lower consultation fee",
}

var hospitalRecommendations = map[entities.CrowdLevel]string{
	entities.CrowdLevelLow:      "Normal operations. All departments running smoothly.",
	entities.CrowdLevelModerate: "Moderate load. Monitor high-traffic departments.",
	entities.CrowdLevelHigh:     "High load. Consider activating spare doctor pool.",
	entities.CrowdLevelCritical: "CRITICAL: Activate all spare doctors. Maximize teleconsult redirects.",
}

// DepthReader reports how many patients wait in a department
type DepthReader interface {
	Depth(department string) int
}

// CrowdService reports congestion, estimates waits and runs the
// teleconsultation overflow queue
type CrowdService struct {
	queues              DepthReader
	roster              *DepartmentRoster
	pool                *SpareDoctorPool
	consultationMinutes int
	teleconsultMaxScore int

	mu          sync.Mutex
	teleconsult []entities.TeleconsultEntry
	now         func() time.Time
}

// NewCrowdService creates a crowd service. Patients scoring at most
// teleconsultMaxScore may be offered teleconsultation.
func NewCrowdService(queues DepthReader, roster *DepartmentRoster, pool *SpareDoctorPool, consultationMinutes, teleconsultMaxScore int) *CrowdService {
	if consultationMinutes <= 0 {
		consultationMinutes = 15
	}
	return &CrowdService{
		queues:              queues,
		roster:              roster,
		pool:                pool,
		consultationMinutes: consultationMinutes,
		teleconsultMaxScore: teleconsultMaxScore,
		now:                 time.Now,
	}
}

// SetClock replaces the time source used for teleconsult timestamps
func (c *CrowdService) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Doctors is the number of doctors currently seeing patients in a department,
// regular plus spare, never less than one
func (c *CrowdService) Doctors(department string) int {
	return max(c.roster.ActiveDoctors(department)+c.pool.AssignedCount(department), 1)
}

// DepartmentStatus returns the crowd view of one roster department
func (c *CrowdService) DepartmentStatus(department string) (entities.DepartmentStatus, error) {
	d, ok := c.roster.Lookup(department)
	if !ok {
		return entities.DepartmentStatus{}, apperrors.NewNotFoundError("unknown department: " + department)
	}
	return c.statusOf(d), nil
}

func (c *CrowdService) statusOf(d entities.Department) entities.DepartmentStatus {
	current := c.queues.Depth(d.Name)
	doctors := c.Doctors(d.Name)
	return entities.DepartmentStatus{
		Department:         d.Name,
		Code:               d.Code,
		CurrentQueue:       current,
		Capacity:           d.BaseCapacity,
		CrowdLevel:         entities.CrowdLevelFor(current, d.BaseCapacity),
		UtilizationPercent: utilization(current, d.BaseCapacity),
		AvgWaitMinutes:     current * c.consultationMinutes / doctors,
		ActiveDoctors:      c.roster.ActiveDoctors(d.Name),
		SpareAssigned:      c.pool.AssignedCount(d.Name),
	}
}

// AllDepartments returns the status of every roster department in roster order
func (c *CrowdService) AllDepartments() []entities.DepartmentStatus {
	depts := c.roster.All()
	out := make([]entities.DepartmentStatus, 0, len(depts))
	for _, d := range depts {
		out = append(out, c.statusOf(d))
	}
	return out
}

// Overview aggregates every department into a hospital-wide view
func (c *CrowdService) Overview() entities.HospitalOverview {
	ov := entities.HospitalOverview{Departments: c.AllDepartments()}
	for _, d := range ov.Departments {
		ov.TotalQueue += d.CurrentQueue
		ov.TotalCapacity += d.Capacity
		if d.CrowdLevel.Busy() {
			ov.DepartmentsAtCapacity++
		}
	}
	if ov.TotalCapacity > 0 {
		ov.OverallUtilization = round1(float64(ov.TotalQueue) / float64(ov.TotalCapacity) * 100)
	}
	ov.CrowdLevel = entities.CrowdLevelFor(ov.TotalQueue, ov.TotalCapacity)
	ov.Recommendation = hospitalRecommendations[ov.CrowdLevel]

	c.mu.Lock()
	ov.TeleconsultQueue = len(c.teleconsult)
	c.mu.Unlock()
	return ov
}

// Suggestions proposes staff moves: a doctor transfer from a quiet department
// into each overloaded one, and spare activation for busy ones
func (c *CrowdService) Suggestions() []entities.LoadSuggestion {
	statuses := c.AllDepartments()
	sort.SliceStable(statuses, func(i, j int) bool {
		return statuses[i].UtilizationPercent > statuses[j].UtilizationPercent
	})

	var donor *entities.DepartmentStatus
	for i := range statuses {
		if statuses[i].CrowdLevel == entities.CrowdLevelLow && statuses[i].ActiveDoctors > 1 {
			donor = &statuses[i]
			break
		}
	}

	out := []entities.LoadSuggestion{}
	for _, d := range statuses {
		switch d.CrowdLevel {
		case entities.CrowdLevelCritical:
			if donor == nil {
				continue
			}
			out = append(out, entities.LoadSuggestion{
				Action:         "TRANSFER_DOCTOR",
				FromDepartment: donor.Department,
				ToDepartment:   d.Department,
				Reason:         fmt.Sprintf("%s is at %.0f%% capacity", d.Department, d.UtilizationPercent),
				Priority:       "high",
			})
		case entities.CrowdLevelHigh:
			out = append(out, entities.LoadSuggestion{
				Action:     "ACTIVATE_SPARE",
				Department: d.Department,
				Reason:     fmt.Sprintf("Queue length: %d, utilization: %.0f%%", d.CurrentQueue, d.UtilizationPercent),
				Priority:   "medium",
			})
		}
	}
	return out
}

// ExpectedWait estimates the wait for a queue position in a department
func (c *CrowdService) ExpectedWait(department string, position, severity int) entities.WaitEstimate {
	return EstimateWait(position, severity, c.consultationMinutes, c.Doctors(department))
}

// EstimateWait is position × consultation minutes / doctors, scaled down for
// urgent patients who are seen ahead of the line
func EstimateWait(position, severity, consultationMinutes, doctors int) entities.WaitEstimate {
	doctors = max(doctors, 1)
	base := float64(position*consultationMinutes) / float64(doctors)
	adjusted := base * severityWaitFactor(severity)
	return entities.WaitEstimate{
		EstimatedMinutes: int(adjusted),
		RangeMin:         max(int(adjusted*0.8), 0),
		RangeMax:         int(adjusted * 1.3),
		Position:         position,
		Explanation:      fmt.Sprintf("Based on %d patients ahead, %d active doctors", position, doctors),
	}
}

func severityWaitFactor(severity int) float64 {
	switch {
	case severity >= 9:
		return 0.1
	case severity >= 7:
		return 0.3
	case severity >= 5:
		return 0.7
	case severity >= 3:
		return 1.0
	default:
		return 1.2
	}
}

// TeleconsultAdvice decides whether to offer a patient remote consultation
// given the congestion of their department
func (c *CrowdService) TeleconsultAdvice(department string, severity int, isEmergency bool) entities.TeleconsultAdvice {
	level := entities.CrowdLevelCritical
	if d, ok := c.roster.Lookup(department); ok {
		level = entities.CrowdLevelFor(c.queues.Depth(d.Name), d.BaseCapacity)
	}
	eligible := severity <= c.teleconsultMaxScore && !isEmergency

	adv := entities.TeleconsultAdvice{
		Eligible:    eligible,
		Recommended: eligible && level.Busy(),
		Benefits:    []string{},
	}
	adv.SoftSuggest = adv.Recommended || (eligible && level == entities.CrowdLevelModerate)

	switch {
	case !eligible:
		adv.Reason = "Your condition requires in-person examination"
	case level == entities.CrowdLevelCritical:
		adv.Reason = "Hospital is extremely busy. Teleconsult recommended for faster care."
	case level == entities.CrowdLevelHigh:
		adv.Reason = "Long wait times expected. Consider teleconsult for convenience."
	case level == entities.CrowdLevelModerate:
		adv.Reason = "Teleconsult available as a convenient alternative."
	default:
		adv.Reason = "Teleconsult is an option for your condition."
	}
	if eligible {
		adv.Benefits = append(adv.Benefits, teleconsultBenefits...)
	}
	return adv
}

// EnqueueTeleconsult appends a patient to the teleconsultation queue
func (c *CrowdService) EnqueueTeleconsult(e entities.TeleconsultEntry) entities.TeleconsultEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	e.FromDepartment = c.roster.Resolve(e.FromDepartment)
	if e.Symptoms == nil {
		e.Symptoms = []string{}
	}
	e.QueuedAt = c.now().UTC()
	e.Position = len(c.teleconsult) + 1
	e.EstimatedWait = e.Position * teleconsultMinutesPerPatient
	c.teleconsult = append(c.teleconsult, e)
	return e
}

// TeleconsultQueue returns the teleconsultation queue in arrival order
func (c *CrowdService) TeleconsultQueue() []entities.TeleconsultEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]entities.TeleconsultEntry, len(c.teleconsult))
	copy(out, c.teleconsult)
	return out
}

// SetActiveDoctors changes the regular doctors on shift and returns the new status
func (c *CrowdService) SetActiveDoctors(department string, n int) (entities.DepartmentStatus, error) {
	if err := c.roster.SetActiveDoctors(department, n); err != nil {
		return entities.DepartmentStatus{}, err
	}
	return c.DepartmentStatus(department)
}

// Reset empties the teleconsultation queue
func (c *CrowdService) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teleconsult = nil
}
