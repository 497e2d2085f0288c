package services

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/zatekoja/smartcare/backend/internal/domain/entities"
	"github.com/zatekoja/smartcare/backend/internal/infrastructure/observability"
)

// ActivitySink receives a copy of every activity entry. Implementations must
// not block.
type ActivitySink interface {
	ForwardActivity(entry entities.ActivityLogEntry)
}

const defaultActivityLimit = 50

// ActivityLogger is the bounded in-memory activity timeline. Once maxEntries
// is reached the oldest entries are evicted; only an attached sink keeps the
// full history.
type ActivityLogger struct {
	mu         sync.RWMutex
	entries    []entities.ActivityLogEntry
	maxEntries int
	counter    int
	evicted    int
	warned     bool
	sink       ActivitySink
	now        func() time.Time
}

// NewActivityLogger creates a logger that keeps the newest maxEntries records
func NewActivityLogger(maxEntries int) *ActivityLogger {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	return &ActivityLogger{
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// SetSink attaches a forwarder for archived copies
func (l *ActivityLogger) SetSink(sink ActivitySink) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sink = sink
}

// SetClock replaces the timestamp source
func (l *ActivityLogger) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

// Log stamps and appends an entry, returning the stored copy
func (l *ActivityLogger) Log(entry entities.ActivityLogEntry) entities.ActivityLogEntry {
	l.mu.Lock()
	l.counter++
	entry.ID = fmt.Sprintf("ACT-%06d", l.counter)
	entry.Timestamp = l.now().UTC()
	if entry.SeverityScore > 0 {
		entry.SeverityLabel = entities.ActivitySeverityLabel(entry.SeverityScore)
	}
	if entry.Actor == "" {
		entry.Actor = "system"
	}
	l.entries = append(l.entries, entry)
	warn := false
	if over := len(l.entries) - l.maxEntries; over > 0 {
		l.entries = append(l.entries[:0:0], l.entries[over:]...)
		l.evicted += over
		if l.sink == nil && !l.warned {
			l.warned, warn = true, true
		}
	}
	sink := l.sink
	l.mu.Unlock()

	if warn {
		observability.GetLogger().Warn().
			Int("max_entries", l.maxEntries).
			Msg("Activity log is full and no archive is attached; oldest entries are being dropped")
	}

	if sink != nil {
		sink.ForwardActivity(entry)
	}
	return entry
}

// LogCheckIn records a patient check-in with its triage outcome
func (l *ActivityLogger) LogCheckIn(e entities.QueueEntry, symptoms []string, estimatedWait int) entities.ActivityLogEntry {
	info := e.DisplayInfo()
	return l.Log(entities.ActivityLogEntry{
		Type:          entities.ActivityPatientCheckIn,
		Title:         "Patient Check-In: " + info.Name,
		Description:   fmt.Sprintf("%s checked in to %s", info.Name, departmentTitle(e.Department)),
		Department:    e.Department,
		PatientID:     e.PatientID,
		PatientName:   info.Name,
		EntryID:       e.ID,
		SeverityScore: e.SeverityScore,
		Actor:         "patient_self",
		Details: map[string]interface{}{
			"symptoms":          symptoms,
			"severity_level":    info.SeverityLevel,
			"priority_score":    e.CompositePriority,
			"estimated_wait":    estimatedWait,
			"chronic_boost":     e.ChronicBoost,
			"age_factor":        e.AgeFactor,
			"check_in_time_utc": e.CheckInTime,
		},
	})
}

// LogPatientCalled records a patient being called by a doctor
func (l *ActivityLogger) LogPatientCalled(e entities.QueueEntry, doctorName string) entities.ActivityLogEntry {
	info := e.DisplayInfo()
	return l.Log(entities.ActivityLogEntry{
		Type:          entities.ActivityPatientCalled,
		Title:         "Patient Called: " + info.Name,
		Description:   fmt.Sprintf("%s called to see %s in %s", info.Name, doctorName, departmentTitle(e.Department)),
		Department:    e.Department,
		PatientID:     e.PatientID,
		PatientName:   info.Name,
		EntryID:       e.ID,
		SeverityScore: e.SeverityScore,
		Actor:         doctorName,
		Details: map[string]interface{}{
			"called_by":    doctorName,
			"wait_minutes": e.WaitMinutes,
		},
	})
}

// LogPatientCompleted records the end of a consultation
func (l *ActivityLogger) LogPatientCompleted(e entities.QueueEntry, doctorName string) entities.ActivityLogEntry {
	info := e.DisplayInfo()
	return l.Log(entities.ActivityLogEntry{
		Type:        entities.ActivityPatientCompleted,
		Title:       "Consultation Complete: " + info.Name,
		Description: fmt.Sprintf("%s's consultation completed in %s", info.Name, departmentTitle(e.Department)),
		Department:  e.Department,
		PatientID:   e.PatientID,
		PatientName: info.Name,
		EntryID:     e.ID,
		Actor:       doctorName,
		Details:     map[string]interface{}{"completed_by": doctorName},
	})
}

// LogDoctorAssigned records a spare doctor joining a department
func (l *ActivityLogger) LogDoctorAssigned(rec entities.AssignmentLog) entities.ActivityLogEntry {
	return l.Log(entities.ActivityLogEntry{
		Type:        entities.ActivityDoctorAssigned,
		Title:       "Doctor Assigned: " + rec.DoctorName,
		Description: fmt.Sprintf("%s assigned to %s", rec.DoctorName, departmentTitle(rec.Department)),
		Department:  rec.Department,
		DoctorID:    rec.DoctorID,
		DoctorName:  rec.DoctorName,
		Actor:       rec.Actor,
		Details: map[string]interface{}{
			"reason":     rec.Reason,
			"pool_log":   rec.ID,
			"pool_event": rec.Action,
		},
	})
}

// LogDoctorReleased records a spare doctor returning to the pool
func (l *ActivityLogger) LogDoctorReleased(rec entities.AssignmentLog) entities.ActivityLogEntry {
	return l.Log(entities.ActivityLogEntry{
		Type:        entities.ActivityDoctorReleased,
		Title:       "Doctor Released: " + rec.DoctorName,
		Description: fmt.Sprintf("%s released from %s", rec.DoctorName, departmentTitle(rec.Department)),
		Department:  rec.Department,
		DoctorID:    rec.DoctorID,
		DoctorName:  rec.DoctorName,
		Actor:       rec.Actor,
		Details: map[string]interface{}{
			"reason":     rec.Reason,
			"pool_log":   rec.ID,
			"pool_event": rec.Action,
		},
	})
}

// LogOverride records an emergency override attempt
func (l *ActivityLogger) LogOverride(rec entities.OverrideLogEntry, patientName string) entities.ActivityLogEntry {
	title := "Emergency Override: " + patientName
	desc := fmt.Sprintf("%s by %s (%s): position %d -> %d", rec.Type, rec.Actor.Name, rec.Actor.Role, rec.PreviousPosition, rec.NewPosition)
	if !rec.Success {
		title = "Override Rejected: " + patientName
		desc = fmt.Sprintf("%s by %s (%s) failed: %s", rec.Type, rec.Actor.Name, rec.Actor.Role, rec.Error)
	}
	return l.Log(entities.ActivityLogEntry{
		Type:          entities.ActivityEmergencyOverride,
		Title:         title,
		Description:   desc,
		Department:    rec.Department,
		PatientID:     rec.PatientID,
		PatientName:   patientName,
		EntryID:       rec.EntryID,
		SeverityScore: rec.NewSeverity,
		Actor:         rec.Actor.Name,
		Details: map[string]interface{}{
			"override_id":       rec.ID,
			"override_type":     rec.Type,
			"reason":            rec.Reason,
			"notes":             rec.Notes,
			"previous_priority": rec.PreviousPriority,
			"new_priority":      rec.NewPriority,
			"previous_severity": rec.PreviousSeverity,
			"success":           rec.Success,
		},
	})
}

// LogAllocation records an executed allocator or protector decision
func (l *ActivityLogger) LogAllocation(d entities.AllocationDecision) entities.ActivityLogEntry {
	doctorID := 0
	if d.DoctorID != nil {
		doctorID = *d.DoctorID
	}
	factors := make(map[string]float64, len(d.Factors))
	for _, f := range d.Factors {
		factors[f.Name] = f.Contribution
	}
	return l.Log(entities.ActivityLogEntry{
		Type:        entities.ActivityAIAllocation,
		Title:       fmt.Sprintf("AI Allocation: %s %s", strings.ToUpper(string(d.Action)), d.DoctorName),
		Description: d.Reason,
		Department:  d.Department,
		DoctorID:    doctorID,
		DoctorName:  d.DoctorName,
		Actor:       "ai_allocator",
		Details: map[string]interface{}{
			"confidence":  d.Confidence,
			"factors":     factors,
			"utilization": d.Metrics.UtilizationPercent,
			"trend":       d.Metrics.Trend,
			"executed":    d.Executed,
			"error":       d.Error,
		},
	})
}

// LogSystemEvent records an operational event
func (l *ActivityLogger) LogSystemEvent(title, description string, details map[string]interface{}) entities.ActivityLogEntry {
	return l.Log(entities.ActivityLogEntry{
		Type:        entities.ActivitySystemEvent,
		Title:       title,
		Description: description,
		Details:     details,
	})
}

// Logs returns matching entries newest first
func (l *ActivityLogger) Logs(filter entities.ActivityFilter) []entities.ActivityLogEntry {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultActivityLimit
	}
	dept := entities.NormalizeDepartment(filter.Department)

	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]entities.ActivityLogEntry, 0, min(limit, len(l.entries)))
	for i := len(l.entries) - 1; i >= 0 && len(out) < limit; i-- {
		e := l.entries[i]
		if filter.Type != "" && e.Type != filter.Type {
			continue
		}
		if dept != "" && e.Department != dept {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Stats aggregates the retained entries
func (l *ActivityLogger) Stats() entities.ActivityStats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	stats := entities.ActivityStats{
		Total:           len(l.entries),
		Evicted:         l.evicted,
		Archived:        l.sink != nil,
		ByType:          make(map[string]int),
		CheckInSeverity: map[string]int{"CRITICAL": 0, "HIGH": 0, "MODERATE": 0, "LOW": 0, "ROUTINE": 0},
	}
	for _, e := range l.entries {
		stats.ByType[string(e.Type)]++
		switch e.Type {
		case entities.ActivityPatientCheckIn:
			stats.TotalCheckIns++
			stats.CheckInSeverity[e.SeverityLabel]++
		case entities.ActivityAIAllocation:
			stats.TotalAllocations++
		case entities.ActivityEmergencyOverride:
			stats.TotalOverrides++
		}
	}
	return stats
}

// Reset drops every entry. The id counter keeps running so ids stay unique.
func (l *ActivityLogger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.evicted += len(l.entries)
	l.entries = nil
}

func departmentTitle(dept string) string {
	if dept == "" {
		return "the hospital"
	}
	return strings.ToUpper(dept[:1]) + dept[1:] + " department"
}
