package charting

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type snapshotRepoPG struct{ pool *pgxpool.Pool }

func NewSnapshotRepoPG(pool *pgxpool.Pool) SnapshotRepository {
	return &snapshotRepoPG{pool: pool}
}

const snapshotCols = `id, seq, patient_id, domain, data, created_at, updated_at`

func (r *snapshotRepoPG) scanSnapshot(row pgx.Row) (*AssessmentSnapshot, error) {
	var s AssessmentSnapshot
	err := row.Scan(&s.ID, &s.Seq, &s.PatientID, &s.Domain, &s.Data, &s.CreatedAt, &s.UpdatedAt)
	return &s, err
}

func (r *snapshotRepoPG) Append(ctx context.Context, s *AssessmentSnapshot) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO assessment_snapshot (id, patient_id, domain, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING seq`,
		s.ID, s.PatientID, s.Domain, s.Data, s.CreatedAt, s.UpdatedAt).Scan(&s.Seq)
	if err != nil {
		return &StorageError{Op: "append snapshot", Err: err}
	}
	return nil
}

func (r *snapshotRepoPG) Latest(ctx context.Context, patientID uuid.UUID, domain Domain) (*AssessmentSnapshot, error) {
	s, err := r.scanSnapshot(r.pool.QueryRow(ctx, `
		SELECT `+snapshotCols+` FROM assessment_snapshot
		WHERE patient_id = $1 AND domain = $2
		ORDER BY created_at DESC, seq DESC
		LIMIT 1`, patientID, domain))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &StorageError{Op: "latest snapshot", Err: err}
	}
	return s, nil
}

func (r *snapshotRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, domain Domain, limit, offset int) ([]*AssessmentSnapshot, int, error) {
	var total int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM assessment_snapshot
		WHERE patient_id = $1 AND domain = $2`, patientID, domain).Scan(&total)
	if err != nil {
		return nil, 0, &StorageError{Op: "count snapshots", Err: err}
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+snapshotCols+` FROM assessment_snapshot
		WHERE patient_id = $1 AND domain = $2
		ORDER BY created_at DESC, seq DESC
		LIMIT $3 OFFSET $4`, patientID, domain, limit, offset)
	if err != nil {
		return nil, 0, &StorageError{Op: "list snapshots", Err: err}
	}
	defer rows.Close()

	var items []*AssessmentSnapshot
	for rows.Next() {
		s, err := r.scanSnapshot(rows)
		if err != nil {
			return nil, 0, &StorageError{Op: "scan snapshot", Err: err}
		}
		items = append(items, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, &StorageError{Op: "list snapshots", Err: err}
	}
	return items, total, nil
}
