package entities

import "time"

// DoctorStatus is the pool state of a spare doctor
type DoctorStatus string

const (
	DoctorStatusAvailable DoctorStatus = "available"
	DoctorStatusAssigned  DoctorStatus = "assigned"
	DoctorStatusOffline   DoctorStatus = "offline"
)

// GeneralSpecialty is the fallback specialty for any department
const GeneralSpecialty = "GENERAL"

// SpareDoctor is a doctor drawn from the shared cross-department pool.
// AssignedDepartment is set iff Status is assigned.
type SpareDoctor struct {
	ID                 int          `json:"doctor_id"`
	Name               string       `json:"name"`
	Specialty          string       `json:"specialty"`
	Hospital           string       `json:"hospital"`
	Status             DoctorStatus `json:"status"`
	AssignedDepartment string       `json:"assigned_department,omitempty"`
	AssignedAt         *time.Time   `json:"assigned_at,omitempty"`
	PatientsSeen       int          `json:"patients_seen"`
	MaxPatients        int          `json:"max_patients"`
}

// RemainingCapacity is how many more patients the doctor can see on this assignment
func (d SpareDoctor) RemainingCapacity() int {
	if d.MaxPatients <= d.PatientsSeen {
		return 0
	}
	return d.MaxPatients - d.PatientsSeen
}

// AssignmentAction is what happened in an assignment log entry
type AssignmentAction string

const (
	AssignmentActionAssign      AssignmentAction = "ASSIGN"
	AssignmentActionRelease     AssignmentAction = "RELEASE"
	AssignmentActionAutoRelease AssignmentAction = "AUTO_RELEASE"
)

// AssignmentLog records one successful pool assignment or release
type AssignmentLog struct {
	ID         string           `json:"log_id"`
	DoctorID   int              `json:"doctor_id"`
	DoctorName string           `json:"doctor_name"`
	Department string           `json:"department"`
	Action     AssignmentAction `json:"action"`
	Reason     string           `json:"reason"`
	Actor      string           `json:"actor"`
	Timestamp  time.Time        `json:"timestamp"`
}

// PoolStatus summarizes the pool
type PoolStatus struct {
	TotalDoctors     int            `json:"total_doctors"`
	Available        int            `json:"available"`
	Assigned         int            `json:"assigned"`
	Offline          int            `json:"offline"`
	ByDepartment     map[string]int `json:"assigned_by_department"`
	MaxPerDepartment int            `json:"max_per_department"`
	Doctors          []SpareDoctor  `json:"doctors"`
}
