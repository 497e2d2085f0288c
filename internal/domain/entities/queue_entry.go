package entities

import (
	"fmt"
	"time"
)

// PatientDisplayInfo is the display metadata captured at check-in. The queue
// treats it as opaque.
type PatientDisplayInfo struct {
	Name              string   `json:"name"`
	Age               int      `json:"age"`
	Symptoms          []string `json:"symptoms"`
	ChronicConditions []string `json:"chronic_conditions"`
	SeverityLevel     string   `json:"severity_level,omitempty"`
	Explanation       []string `json:"explanation,omitempty"`
}

// DefaultDisplayInfo is used for entries checked in without display metadata
func DefaultDisplayInfo(patientID string) PatientDisplayInfo {
	return PatientDisplayInfo{
		Name:              fmt.Sprintf("Patient %s", patientID),
		Symptoms:          []string{},
		ChronicConditions: []string{},
	}
}

// QueueEntry is one waiting patient
type QueueEntry struct {
	ID                string              `json:"entry_id"`
	PatientID         string              `json:"patient_id"`
	Department        string              `json:"department"`
	SeverityScore     int                 `json:"severity_score"`
	AgeFactor         float64             `json:"age_factor"`
	ChronicBoost      float64             `json:"chronic_boost"`
	WaitMinutes       float64             `json:"wait_minutes"`
	CompositePriority float64             `json:"composite_priority"`
	CheckInTime       time.Time           `json:"check_in_time"`
	IsEmergency       bool                `json:"is_emergency"`
	Display           *PatientDisplayInfo `json:"display_info,omitempty"`
}

// DisplayInfo returns the entry's display metadata or the defined default
func (e *QueueEntry) DisplayInfo() PatientDisplayInfo {
	if e.Display == nil {
		return DefaultDisplayInfo(e.PatientID)
	}
	return *e.Display
}

// IsCritical reports whether the entry counts as a critical patient for
// allocation and wait-time protection
func (e *QueueEntry) IsCritical() bool {
	return e.IsEmergency || e.SeverityScore >= CriticalSeverity
}

// WaitedFor returns the time elapsed since check-in
func (e *QueueEntry) WaitedFor(now time.Time) time.Duration {
	if now.Before(e.CheckInTime) {
		return 0
	}
	return now.Sub(e.CheckInTime)
}

// Triage scores run from MinSeverity to MaxSeverity; CriticalSeverity is the
// lowest score labelled CRITICAL
const (
	MinSeverity      = 1
	MaxSeverity      = 10
	CriticalSeverity = 9
)

// QueuePosition is an entry with its 1-based place in an ordered snapshot
type QueuePosition struct {
	Position int        `json:"position"`
	Entry    QueueEntry `json:"entry"`
}

// SeverityBand groups triage scores for queue statistics
func SeverityBand(score int) string {
	switch {
	case score >= 9:
		return "critical"
	case score >= 7:
		return "urgent"
	case score >= 5:
		return "moderate"
	case score >= 3:
		return "low"
	default:
		return "minimal"
	}
}

// PatientRecord is a registered patient in the patient directory
type PatientRecord struct {
	ID                string    `json:"patient_id" db:"id"`
	Name              string    `json:"name" db:"name"`
	Age               int       `json:"age" db:"age"`
	ChronicConditions []string  `json:"chronic_conditions" db:"-"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}
