package entities

import "time"

// DepartmentStatus is the crowd view of one department
type DepartmentStatus struct {
	Department         string     `json:"department"`
	Code               string     `json:"code"`
	CurrentQueue       int        `json:"current_queue"`
	Capacity           int        `json:"capacity"`
	CrowdLevel         CrowdLevel `json:"crowd_level"`
	UtilizationPercent float64    `json:"utilization_percent"`
	AvgWaitMinutes     int        `json:"avg_wait_minutes"`
	ActiveDoctors      int        `json:"active_doctors"`
	SpareAssigned      int        `json:"spare_doctors_assigned"`
}

// HospitalOverview aggregates every department
type HospitalOverview struct {
	TotalQueue            int                `json:"total_queue"`
	TotalCapacity         int                `json:"total_capacity"`
	OverallUtilization    float64            `json:"overall_utilization"`
	CrowdLevel            CrowdLevel         `json:"crowd_level"`
	DepartmentsAtCapacity int                `json:"departments_at_capacity"`
	TeleconsultQueue      int                `json:"teleconsult_queue"`
	Recommendation        string             `json:"recommendation"`
	Departments           []DepartmentStatus `json:"departments"`
}

// LoadSuggestion is a load-balancing hint for staff
type LoadSuggestion struct {
	Action         string `json:"action"`
	FromDepartment string `json:"from_department,omitempty"`
	ToDepartment   string `json:"to_department,omitempty"`
	Department     string `json:"department,omitempty"`
	Reason         string `json:"reason"`
	Priority       string `json:"priority"`
}

// WaitEstimate is an expected wait for a queue position
type WaitEstimate struct {
	EstimatedMinutes int    `json:"estimated_minutes"`
	RangeMin         int    `json:"range_min"`
	RangeMax         int    `json:"range_max"`
	Position         int    `json:"position"`
	Explanation      string `json:"explanation"`
}

// TeleconsultAdvice says whether a patient should be offered teleconsultation
type TeleconsultAdvice struct {
	Eligible    bool     `json:"eligible"`
	Recommended bool     `json:"recommended"`
	SoftSuggest bool     `json:"soft_suggest"`
	Reason      string   `json:"reason"`
	Benefits    []string `json:"benefits"`
}

// TeleconsultEntry is a patient waiting for a remote consultation
type TeleconsultEntry struct {
	PatientID      string    `json:"patient_id"`
	PatientName    string    `json:"patient_name"`
	Symptoms       []string  `json:"symptoms"`
	TriageScore    int       `json:"triage_score"`
	FromDepartment string    `json:"redirected_from"`
	QueuedAt       time.Time `json:"queued_at"`
	Position       int       `json:"queue_position"`
	EstimatedWait  int       `json:"estimated_wait_minutes"`
}
