package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/lib/pq"
	"github.com/zatekoja/smartcare/backend/internal/domain/entities"
	"github.com/zatekoja/smartcare/backend/internal/domain/repositories"
	"github.com/zatekoja/smartcare/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/smartcare/backend/pkg/errors"
)

const patientTable = "patients"

// PatientDirectoryAdapter implements PatientDirectory on PostgreSQL
type PatientDirectoryAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewPatientDirectoryAdapter creates a new patient directory adapter
func NewPatientDirectoryAdapter(client *postgres.Client) repositories.PatientDirectory {
	return &PatientDirectoryAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// GetByID retrieves a patient's display record
func (a *PatientDirectoryAdapter) GetByID(ctx context.Context, patientID string) (*entities.PatientRecord, error) {
	query, args, err := a.db.Select("id", "name", "age", "chronic_conditions", "updated_at").
		From(patientTable).
		Prepared(true).
		Where(goqu.Ex{"id": patientID}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rec := &entities.PatientRecord{}
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&rec.ID,
		&rec.Name,
		&rec.Age,
		pq.Array(&rec.ChronicConditions),
		&rec.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("patient %s not found", patientID))
	}
	if err != nil {
		return nil, apperrors.NewExternalError("failed to get patient", err)
	}
	if rec.ChronicConditions == nil {
		rec.ChronicConditions = []string{}
	}
	return rec, nil
}

// Upsert stores or refreshes a patient's display record
func (a *PatientDirectoryAdapter) Upsert(ctx context.Context, rec *entities.PatientRecord) error {
	if rec.ID == "" {
		return apperrors.NewValidationError("patient id is required")
	}
	rec.UpdatedAt = time.Now().UTC()
	conditions := rec.ChronicConditions
	if conditions == nil {
		conditions = []string{}
	}

	query, args, err := a.db.Insert(patientTable).
		Prepared(true).
		Rows(goqu.Record{
			"id":                 rec.ID,
			"name":               rec.Name,
			"age":                rec.Age,
			"chronic_conditions": pq.Array(conditions),
			"updated_at":         rec.UpdatedAt,
		}).
		OnConflict(goqu.DoUpdate("id", goqu.Record{
			"name":               goqu.I("excluded.name"),
			"age":                goqu.I("excluded.age"),
			"chronic_conditions": goqu.I("excluded.chronic_conditions"),
			"updated_at":         goqu.I("excluded.updated_at"),
		})).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build upsert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewExternalError("failed to upsert patient", err)
	}
	return nil
}
