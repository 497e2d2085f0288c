package services

import (
	"sync"

	"github.com/zatekoja/smartcare/backend/internal/domain/entities"
	apperrors "github.com/zatekoja/smartcare/backend/pkg/errors"
)

// DepartmentRoster is the static department table plus the number of regular
// doctors currently on shift in each department
type DepartmentRoster struct {
	departments    []entities.Department
	byName         map[string]entities.Department
	defaultDoctors int

	mu            sync.RWMutex
	activeDoctors map[string]int
}

// NewDepartmentRoster creates a roster with defaultDoctors on shift everywhere
func NewDepartmentRoster(departments []entities.Department, defaultDoctors int) *DepartmentRoster {
	if defaultDoctors <= 0 {
		defaultDoctors = 2
	}
	r := &DepartmentRoster{
		byName:         make(map[string]entities.Department, len(departments)),
		defaultDoctors: defaultDoctors,
	}
	for _, d := range departments {
		d.Name = entities.NormalizeDepartment(d.Name)
		if _, dup := r.byName[d.Name]; dup {
			continue
		}
		r.departments = append(r.departments, d)
		r.byName[d.Name] = d
	}
	r.Reset()
	return r
}

// Names returns department names in roster order
func (r *DepartmentRoster) Names() []string {
	out := make([]string, len(r.departments))
	for i, d := range r.departments {
		out[i] = d.Name
	}
	return out
}

// All returns the roster
func (r *DepartmentRoster) All() []entities.Department {
	out := make([]entities.Department, len(r.departments))
	copy(out, r.departments)
	return out
}

// Lookup returns a department by name
func (r *DepartmentRoster) Lookup(name string) (entities.Department, bool) {
	d, ok := r.byName[entities.NormalizeDepartment(name)]
	return d, ok
}

// Resolve maps a requested department onto the roster, falling back to general
func (r *DepartmentRoster) Resolve(name string) string {
	if d, ok := r.Lookup(name); ok {
		return d.Name
	}
	return entities.DefaultGeneralDepartment
}

// Capacity returns a department's base capacity, 0 when unknown
func (r *DepartmentRoster) Capacity(name string) int {
	d, _ := r.Lookup(name)
	return d.BaseCapacity
}

// ActiveDoctors returns the regular doctors on shift in a department
func (r *DepartmentRoster) ActiveDoctors(name string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeDoctors[entities.NormalizeDepartment(name)]
}

// SetActiveDoctors updates the regular doctor count of a department
func (r *DepartmentRoster) SetActiveDoctors(name string, n int) error {
	d, ok := r.Lookup(name)
	if !ok {
		return apperrors.NewNotFoundError("unknown department: " + name)
	}
	if n < 0 {
		return apperrors.NewValidationError("active doctors cannot be negative")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activeDoctors[d.Name] = n
	return nil
}

// Reset puts the default number of doctors back on every department
func (r *DepartmentRoster) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activeDoctors = make(map[string]int, len(r.departments))
	for _, d := range r.departments {
		r.activeDoctors[d.Name] = r.defaultDoctors
	}
}
