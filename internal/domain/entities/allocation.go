package entities

import "time"

// AllocationAction is the outcome of an allocator decision
type AllocationAction string

const (
	AllocationActionAssign  AllocationAction = "assign"
	AllocationActionRelease AllocationAction = "release"
	AllocationActionNone    AllocationAction = "none"
)

// LoadTrend is the direction of a department's queue length
type LoadTrend string

const (
	LoadTrendIncreasing LoadTrend = "increasing"
	LoadTrendStable     LoadTrend = "stable"
	LoadTrendDecreasing LoadTrend = "decreasing"
)

// DepartmentMetricsSample is one queue length observation
type DepartmentMetricsSample struct {
	At          time.Time `json:"timestamp"`
	QueueLength int       `json:"queue_length"`
}

// DepartmentMetrics is the allocator's view of one department at one instant
type DepartmentMetrics struct {
	Department         string    `json:"department"`
	CurrentQueue       int       `json:"current_queue"`
	Capacity           int       `json:"capacity"`
	UtilizationPercent float64   `json:"utilization_percent"`
	AvgWaitMinutes     float64   `json:"avg_wait_minutes"`
	CriticalCount      int       `json:"critical_count"`
	SpareAssigned      int       `json:"spare_assigned"`
	Trend              LoadTrend `json:"trend"`
	PredictedQueue30m  int       `json:"predicted_queue_30min"`
	CapturedAt         time.Time `json:"captured_at"`
}

// AllocationFactor is one weighted input of the allocation score
type AllocationFactor struct {
	Name         string  `json:"name"`
	Value        float64 `json:"value"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
	Detail       string  `json:"detail"`
}

// AllocationDecision is a transient decision record. It is logged, never mutated
// after execution.
type AllocationDecision struct {
	Action     AllocationAction   `json:"action"`
	Department string             `json:"department"`
	DoctorID   *int               `json:"doctor_id,omitempty"`
	DoctorName string             `json:"doctor_name,omitempty"`
	Confidence float64            `json:"confidence"`
	Reason     string             `json:"reason"`
	Factors    []AllocationFactor `json:"factors"`
	Metrics    DepartmentMetrics  `json:"metrics"`
	DecidedAt  time.Time          `json:"decided_at"`
	Executed   bool               `json:"executed"`
	Error      string             `json:"error,omitempty"`
}

// WaitTimeImpact models what critical arrivals cost patients already waiting
type WaitTimeImpact struct {
	Department         string  `json:"department"`
	RegularPatients    int     `json:"regular_patients"`
	CriticalPatients   int     `json:"critical_patients"`
	TotalDoctors       int     `json:"total_doctors"`
	SpareAssigned      int     `json:"spare_assigned"`
	OriginalWait       float64 `json:"original_wait_minutes"`
	NewWait            float64 `json:"new_wait_minutes"`
	WaitIncrease       float64 `json:"wait_increase_minutes"`
	ExtraDoctorsNeeded int     `json:"extra_doctors_needed"`
	AvailableDoctors   int     `json:"available_doctors"`
	CanProtect         bool    `json:"can_protect"`
	ProtectedNow       bool    `json:"protected_now"`
}

// ProtectionResult reports one wait-time protection run
type ProtectionResult struct {
	Department       string               `json:"department"`
	AlreadyProtected bool                 `json:"already_protected"`
	Requested        int                  `json:"requested"`
	Assigned         int                  `json:"assigned"`
	Degraded         bool                 `json:"degraded"`
	Message          string               `json:"message"`
	Impact           WaitTimeImpact       `json:"impact"`
	Decisions        []AllocationDecision `json:"decisions"`
}

// AllocatorInsights explains the allocator's configuration and recent behaviour
type AllocatorInsights struct {
	Weights                 map[string]float64   `json:"weights"`
	AssignThreshold         float64              `json:"assign_threshold"`
	ReleaseBelowUtilization float64              `json:"release_below_utilization"`
	MaxSparePerDepartment   int                  `json:"max_spare_per_department"`
	RecentDecisions         []AllocationDecision `json:"recent_decisions"`
	HighPriorityDepartments []DepartmentScore    `json:"high_priority_departments"`
	TotalDecisions          int                  `json:"total_decisions"`
}

// DepartmentScore pairs a department with its current allocation confidence
type DepartmentScore struct {
	Department string            `json:"department"`
	Confidence float64           `json:"confidence"`
	Metrics    DepartmentMetrics `json:"metrics"`
}
