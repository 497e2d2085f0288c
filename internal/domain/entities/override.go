package entities

import (
	"strings"
	"time"
)

// ActorRole is the role of an authenticated staff member
type ActorRole string

const (
	ActorRoleDoctor ActorRole = "doctor"
	ActorRoleNurse  ActorRole = "nurse"
	ActorRoleAdmin  ActorRole = "admin"
)

// Actor is the identity triple supplied by the authentication layer
type Actor struct {
	ID   string    `json:"id"`
	Name string    `json:"name"`
	Role ActorRole `json:"role"`
}

// OverrideType names a kind of emergency override
type OverrideType string

const (
	OverrideEmergencyEscalate  OverrideType = "EMERGENCY_ESCALATE"
	OverridePriorityBoost      OverrideType = "PRIORITY_BOOST"
	OverrideImmediateAttention OverrideType = "IMMEDIATE_ATTENTION"
	OverrideTransferCritical   OverrideType = "TRANSFER_CRITICAL"
	OverrideSkipTriage         OverrideType = "SKIP_TRIAGE"
)

// OverrideReason is the clinical justification code of an override
type OverrideReason string

const (
	ReasonClinicalDeterioration OverrideReason = "CLINICAL_DETERIORATION"
	ReasonNewCriticalSymptom    OverrideReason = "NEW_CRITICAL_SYMPTOM"
	ReasonVitalSignsAbnormal    OverrideReason = "VITAL_SIGNS_ABNORMAL"
	ReasonDoctorJudgment        OverrideReason = "DOCTOR_JUDGMENT"
	ReasonFamilyEmergency       OverrideReason = "FAMILY_EMERGENCY"
	ReasonAmbulanceArrival      OverrideReason = "AMBULANCE_ARRIVAL"
	ReasonReferredCritical      OverrideReason = "REFERRED_CRITICAL"
	ReasonOther                 OverrideReason = "OTHER"
)

var knownReasons = map[OverrideReason]bool{
	ReasonClinicalDeterioration: true,
	ReasonNewCriticalSymptom:    true,
	ReasonVitalSignsAbnormal:    true,
	ReasonDoctorJudgment:        true,
	ReasonFamilyEmergency:       true,
	ReasonAmbulanceArrival:      true,
	ReasonReferredCritical:      true,
	ReasonOther:                 true,
}

// ParseOverrideReason maps free input onto a reason code; unknown values become OTHER
func ParseOverrideReason(s string) OverrideReason {
	r := OverrideReason(strings.ToUpper(strings.TrimSpace(s)))
	if knownReasons[r] {
		return r
	}
	return ReasonOther
}

// OverrideLogEntry is the immutable audit record of one override attempt.
// Hash covers every other field plus PrevHash, chaining the log.
type OverrideLogEntry struct {
	ID               string         `json:"log_id"`
	Timestamp        time.Time      `json:"timestamp"`
	Actor            Actor          `json:"actor"`
	Type             OverrideType   `json:"override_type"`
	EntryID          string         `json:"entry_id"`
	PatientID        string         `json:"patient_id,omitempty"`
	Department       string         `json:"department,omitempty"`
	PreviousPriority float64        `json:"previous_priority"`
	NewPriority      float64        `json:"new_priority"`
	PreviousPosition int            `json:"previous_position"`
	NewPosition      int            `json:"new_position"`
	PreviousSeverity int            `json:"previous_severity"`
	NewSeverity      int            `json:"new_severity"`
	Reason           OverrideReason `json:"reason"`
	Notes            string         `json:"notes,omitempty"`
	Success          bool           `json:"success"`
	Error            string         `json:"error,omitempty"`
	PrevHash         string         `json:"prev_hash"`
	Hash             string         `json:"hash"`
}

// OverrideRequest carries the caller-supplied part of an override
type OverrideRequest struct {
	EntryID string
	Actor   Actor
	Reason  OverrideReason
	Notes   string
	Amount  int
}

// OverrideLogFilter narrows an override log query
type OverrideLogFilter struct {
	PatientID string
	ActorID   string
	Type      OverrideType
	Limit     int
}

// OverrideStats aggregates the override log
type OverrideStats struct {
	Total       int            `json:"total_overrides"`
	Successful  int            `json:"successful"`
	Failed      int            `json:"failed"`
	SuccessRate float64        `json:"success_rate"`
	ByType      map[string]int `json:"by_type"`
	ByRole      map[string]int `json:"by_role"`

	Last *OverrideLogEntry `json:"last_override,omitempty"`
}

// OverrideResult is returned to the caller of an override, successful or not
type OverrideResult struct {
	Success          bool             `json:"success"`
	LogID            string           `json:"log_id"`
	Message          string           `json:"message"`
	PreviousPosition int              `json:"previous_position"`
	NewPosition      int              `json:"new_position"`
	PreviousPriority float64          `json:"previous_priority"`
	NewPriority      float64          `json:"new_priority"`
	SeverityChange   string           `json:"severity_change,omitempty"`
	AuditLog         OverrideLogEntry `json:"audit_log"`
}

// ChainVerification reports whether the override log hash chain is intact
type ChainVerification struct {
	Valid    bool   `json:"valid"`
	Entries  int    `json:"entries"`
	BrokenAt string `json:"broken_at,omitempty"`
	Head     string `json:"head,omitempty"`
}
