package entities

import "strings"

// Department is one row of the static department roster
type Department struct {
	Name         string `json:"department"`
	Code         string `json:"code"`
	BaseCapacity int    `json:"base_capacity"`
	Specialty    string `json:"specialty"`
}

// DefaultGeneralDepartment receives check-ins for unknown departments and is the
// fallback specialty for spare doctors
const DefaultGeneralDepartment = "general"

// DefaultDepartments returns the hospital's department roster
func DefaultDepartments() []Department {
	return []Department{
		{Name: "general", Code: "GEN", BaseCapacity: 30, Specialty: "GENERAL"},
		{Name: "emergency", Code: "EMR", BaseCapacity: 20, Specialty: "EMERGENCY"},
		{Name: "pediatrics", Code: "PED", BaseCapacity: 25, Specialty: "PEDIATRICS"},
		{Name: "cardiology", Code: "CAR", BaseCapacity: 15, Specialty: "CARDIOLOGY"},
		{Name: "orthopedics", Code: "ORT", BaseCapacity: 20, Specialty: "ORTHOPEDICS"},
		{Name: "neurology", Code: "NEU", BaseCapacity: 15, Specialty: "NEUROLOGY"},
		{Name: "dermatology", Code: "DRM", BaseCapacity: 25, Specialty: "DERMATOLOGY"},
		{Name: "gynecology", Code: "GYN", BaseCapacity: 20, Specialty: "GYNECOLOGY"},
	}
}

// NormalizeDepartment lower-cases and trims a department name
func NormalizeDepartment(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// CrowdLevel is the congestion label of a department or the whole hospital
type CrowdLevel string

const (
	CrowdLevelLow      CrowdLevel = "low"
	CrowdLevelModerate CrowdLevel = "moderate"
	CrowdLevelHigh     CrowdLevel = "high"
	CrowdLevelCritical CrowdLevel = "critical"
)

// CrowdLevelFor maps a queue length against capacity
func CrowdLevelFor(current, capacity int) CrowdLevel {
	if capacity <= 0 {
		return CrowdLevelCritical
	}
	ratio := float64(current) / float64(capacity)
	switch {
	case ratio < 0.5:
		return CrowdLevelLow
	case ratio < 0.8:
		return CrowdLevelModerate
	case ratio <= 1.0:
		return CrowdLevelHigh
	default:
		return CrowdLevelCritical
	}
}

// Busy reports whether the level warrants redirecting low-risk patients
func (c CrowdLevel) Busy() bool {
	return c == CrowdLevelHigh || c == CrowdLevelCritical
}
