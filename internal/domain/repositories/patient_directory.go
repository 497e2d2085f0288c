package repositories

import (
	"context"

	"github.com/zatekoja/smartcare/backend/internal/domain/entities"
)

// PatientDirectory looks up display metadata for registered patients
type PatientDirectory interface {
	// GetByID returns the patient's display record or a NotFound error
	GetByID(ctx context.Context, patientID string) (*entities.PatientRecord, error)

	// Upsert stores or refreshes a patient's display record
	Upsert(ctx context.Context, rec *entities.PatientRecord) error
}
