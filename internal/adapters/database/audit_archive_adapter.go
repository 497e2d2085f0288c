package database

import (
	"context"
	"encoding/json"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/zatekoja/smartcare/backend/internal/domain/entities"
	"github.com/zatekoja/smartcare/backend/internal/domain/repositories"
	"github.com/zatekoja/smartcare/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/smartcare/backend/pkg/errors"
)

const (
	activityTable = "activity_log"
	overrideTable = "override_log"
)

// AuditArchiveAdapter implements AuditArchive on PostgreSQL
type AuditArchiveAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewAuditArchiveAdapter creates a new audit archive adapter
func NewAuditArchiveAdapter(client *postgres.Client) repositories.AuditArchive {
	return &AuditArchiveAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// SaveActivities inserts a batch of activity entries
func (a *AuditArchiveAdapter) SaveActivities(ctx context.Context, entries []entities.ActivityLogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	rows := make([]interface{}, 0, len(entries))
	for _, e := range entries {
		var details []byte
		if len(e.Details) > 0 {
			b, err := json.Marshal(e.Details)
			if err != nil {
				return apperrors.NewInternalError("failed to encode activity details", err)
			}
			details = b
		}
		rows = append(rows, goqu.Record{
			"id":             e.ID,
			"type":           string(e.Type),
			"title":          e.Title,
			"description":    e.Description,
			"department":     e.Department,
			"patient_id":     e.PatientID,
			"patient_name":   e.PatientName,
			"entry_id":       e.EntryID,
			"doctor_id":      e.DoctorID,
			"doctor_name":    e.DoctorName,
			"severity_score": e.SeverityScore,
			"actor":          e.Actor,
			"details":        details,
			"created_at":     e.Timestamp,
		})
	}

	query, args, err := a.db.Insert(activityTable).
		Prepared(true).
		Rows(rows...).
		OnConflict(goqu.DoNothing()).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewExternalError("failed to archive activity entries", err)
	}
	return nil
}

// SaveOverrides inserts a batch of override records
func (a *AuditArchiveAdapter) SaveOverrides(ctx context.Context, entries []entities.OverrideLogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	rows := make([]interface{}, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, goqu.Record{
			"id":                e.ID,
			"override_type":     string(e.Type),
			"entry_id":          e.EntryID,
			"patient_id":        e.PatientID,
			"department":        e.Department,
			"actor_id":          e.Actor.ID,
			"actor_name":        e.Actor.Name,
			"actor_role":        string(e.Actor.Role),
			"reason":            string(e.Reason),
			"notes":             e.Notes,
			"previous_priority": e.PreviousPriority,
			"new_priority":      e.NewPriority,
			"previous_position": e.PreviousPosition,
			"new_position":      e.NewPosition,
			"previous_severity": e.PreviousSeverity,
			"new_severity":      e.NewSeverity,
			"success":           e.Success,
			"error":             e.Error,
			"prev_hash":         e.PrevHash,
			"hash":              e.Hash,
			"created_at":        e.Timestamp,
		})
	}

	query, args, err := a.db.Insert(overrideTable).
		Prepared(true).
		Rows(rows...).
		OnConflict(goqu.DoNothing()).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewExternalError("failed to archive override records", err)
	}
	return nil
}

// ListOverrides returns override records created at or after since, newest first
func (a *AuditArchiveAdapter) ListOverrides(ctx context.Context, since time.Time, limit int) ([]entities.OverrideLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	query, args, err := a.db.Select(
		"id", "created_at", "override_type", "entry_id", "patient_id", "department",
		"actor_id", "actor_name", "actor_role", "reason", "notes",
		"previous_priority", "new_priority", "previous_position", "new_position",
		"previous_severity", "new_severity", "success", "error", "prev_hash", "hash",
	).From(overrideTable).
		Prepared(true).
		Where(goqu.C("created_at").Gte(since)).
		Order(goqu.C("created_at").Desc(), goqu.C("id").Desc()).
		Limit(uint(limit)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewExternalError("failed to list override records", err)
	}
	defer rows.Close()

	out := []entities.OverrideLogEntry{}
	for rows.Next() {
		var e entities.OverrideLogEntry
		var overrideType, role, reason string
		if err := rows.Scan(
			&e.ID, &e.Timestamp, &overrideType, &e.EntryID, &e.PatientID, &e.Department,
			&e.Actor.ID, &e.Actor.Name, &role, &reason, &e.Notes,
			&e.PreviousPriority, &e.NewPriority, &e.PreviousPosition, &e.NewPosition,
			&e.PreviousSeverity, &e.NewSeverity, &e.Success, &e.Error, &e.PrevHash, &e.Hash,
		); err != nil {
			return nil, apperrors.NewInternalError("failed to scan override record", err)
		}
		e.Type = entities.OverrideType(overrideType)
		e.Actor.Role = entities.ActorRole(role)
		e.Reason = entities.OverrideReason(reason)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewExternalError("failed to read override records", err)
	}
	return out, nil
}
