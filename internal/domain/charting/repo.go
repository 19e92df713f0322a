package charting

import (
	"context"

	"github.com/google/uuid"
)

// SnapshotRepository is the append-only store for assessment snapshots.
//
// Append always inserts a new record. It deliberately never searches for
// or updates an existing record for the same (patient, domain): every
// chart revision is kept, and an upsert here would silently destroy
// clinical history.
type SnapshotRepository interface {
	// Append inserts s as a new record and fills in its Seq.
	Append(ctx context.Context, s *AssessmentSnapshot) error
	// Latest returns the most recently created snapshot for the key,
	// tie-broken by insertion order, or nil when none exists.
	Latest(ctx context.Context, patientID uuid.UUID, domain Domain) (*AssessmentSnapshot, error)
	// ListByPatient returns snapshots newest-first. Each call issues a
	// fresh query, so history pagination and exports are restartable.
	ListByPatient(ctx context.Context, patientID uuid.UUID, domain Domain, limit, offset int) ([]*AssessmentSnapshot, int, error)
}
