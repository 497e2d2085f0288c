package entities

import "time"

// ActivityType categorizes activity log entries
type ActivityType string

const (
	ActivityPatientCheckIn    ActivityType = "patient_checkin"
	ActivityPatientCalled     ActivityType = "patient_called"
	ActivityPatientCompleted  ActivityType = "patient_completed"
	ActivityDoctorAssigned    ActivityType = "doctor_assigned"
	ActivityDoctorReleased    ActivityType = "doctor_released"
	ActivityEmergencyOverride ActivityType = "emergency_override"
	ActivityAIAllocation      ActivityType = "ai_allocation"
	ActivitySystemEvent       ActivityType = "system_event"
)

// ActivityLogEntry is one immutable activity record
type ActivityLogEntry struct {
	ID            string                 `json:"id"`
	Type          ActivityType           `json:"type"`
	Timestamp     time.Time              `json:"timestamp"`
	Title         string                 `json:"title"`
	Description   string                 `json:"description"`
	Department    string                 `json:"department,omitempty"`
	PatientID     string                 `json:"patient_id,omitempty"`
	PatientName   string                 `json:"patient_name,omitempty"`
	EntryID       string                 `json:"entry_id,omitempty"`
	DoctorID      int                    `json:"doctor_id,omitempty"`
	DoctorName    string                 `json:"doctor_name,omitempty"`
	SeverityScore int                    `json:"severity_score,omitempty"`
	SeverityLabel string                 `json:"severity_label,omitempty"`
	Actor         string                 `json:"actor"`
	Details       map[string]interface{} `json:"details,omitempty"`
}

// ActivitySeverityLabel buckets a triage score for activity statistics
func ActivitySeverityLabel(score int) string {
	switch {
	case score >= 9:
		return "CRITICAL"
	case score >= 7:
		return "HIGH"
	case score >= 5:
		return "MODERATE"
	case score >= 3:
		return "LOW"
	default:
		return "ROUTINE"
	}
}

// ActivityFilter narrows an activity log query
type ActivityFilter struct {
	Type       ActivityType
	Department string
	Limit      int
}

// ActivityStats aggregates the activity log
type ActivityStats struct {
	Total            int            `json:"total_activities"`
	ByType           map[string]int `json:"by_type"`
	CheckInSeverity  map[string]int `json:"checkin_severity"`
	TotalCheckIns    int            `json:"total_checkins"`
	TotalAllocations int            `json:"total_allocations"`
	TotalOverrides   int            `json:"total_overrides"`
	// Evicted counts entries no longer held in memory
	Evicted  int  `json:"evicted"`
	Archived bool `json:"archived"`
}
