package charting

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Service owns the assessment lifecycle: drafts held in memory while a
// clinician works, compression on explicit save, append-only snapshots,
// and decoded history for review and export.
type Service struct {
	snapshots SnapshotRepository
	drafts    *DraftCache
	debounce  time.Duration
	now       func() time.Time
}

func NewService(snapshots SnapshotRepository, drafts *DraftCache, debounce time.Duration) *Service {
	return &Service{
		snapshots: snapshots,
		drafts:    drafts,
		debounce:  debounce,
		now:       time.Now,
	}
}

// -- Drafts --

// SaveDraft stores the in-progress state immediately, e.g. on navigation
// blur, so the chart survives leaving the screen without being persisted.
func (s *Service) SaveDraft(patientID uuid.UUID, state ChartState) {
	s.drafts.Save(DraftKey{PatientID: patientID, Domain: state.Domain()}, state)
}

// AutoSaveDraft records a continuous-edit update through the configured
// debounce window; only the last edit in a burst is committed.
func (s *Service) AutoSaveDraft(patientID uuid.UUID, state ChartState) {
	s.drafts.SaveDebounced(DraftKey{PatientID: patientID, Domain: state.Domain()}, state, s.debounce)
}

// LoadDraft returns a copy of the held draft, or nil if none exists.
func (s *Service) LoadDraft(patientID uuid.UUID, domain Domain) *Draft {
	return s.drafts.Load(DraftKey{PatientID: patientID, Domain: domain})
}

// HasDraft reports whether unsaved work exists for the key.
func (s *Service) HasDraft(patientID uuid.UUID, domain Domain) bool {
	return s.drafts.Has(DraftKey{PatientID: patientID, Domain: domain})
}

// ClearDraft discards unsaved work; clearing an absent draft is a no-op.
func (s *Service) ClearDraft(patientID uuid.UUID, domain Domain) {
	s.drafts.Clear(DraftKey{PatientID: patientID, Domain: domain})
}

// -- Assessments --

// SaveAssessment encodes state and appends it as a new immutable snapshot.
// A prior snapshot for the same patient and domain is never updated. The
// draft for the key is cleared only after the append succeeds; on a
// storage failure it is left in place so no charted work is lost.
func (s *Service) SaveAssessment(ctx context.Context, patientID uuid.UUID, state ChartState) (*AssessmentSnapshot, error) {
	if patientID == uuid.Nil {
		return nil, fmt.Errorf("patient id is required")
	}
	if state == nil {
		return nil, fmt.Errorf("assessment state is required")
	}

	now := s.now().UTC()
	snap := &AssessmentSnapshot{
		ID:        uuid.New(),
		PatientID: patientID,
		Domain:    state.Domain(),
		Data:      EncodeState(state),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.snapshots.Append(ctx, snap); err != nil {
		return nil, err
	}
	s.drafts.Clear(DraftKey{PatientID: patientID, Domain: state.Domain()})
	return snap, nil
}

// Latest returns the most recent snapshot for the key, or nil if the
// patient has never saved this assessment.
func (s *Service) Latest(ctx context.Context, patientID uuid.UUID, domain Domain) (*AssessmentSnapshot, error) {
	return s.snapshots.Latest(ctx, patientID, domain)
}

// History returns snapshots newest-first.
func (s *Service) History(ctx context.Context, patientID uuid.UUID, domain Domain, limit, offset int) ([]*AssessmentSnapshot, int, error) {
	return s.snapshots.ListByPatient(ctx, patientID, domain, limit, offset)
}

// -- Reports --

// LatestReport decodes the most recent snapshot into its display form.
// Returns nil when no assessment has been saved.
func (s *Service) LatestReport(ctx context.Context, patientID uuid.UUID, domain Domain) (*AssessmentReport, error) {
	snap, err := s.snapshots.Latest(ctx, patientID, domain)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, nil
	}
	return s.reportFor(snap), nil
}

// HistoryReports decodes a page of history newest-first. A record whose
// payload cannot be parsed yields its placeholder report; it never blocks
// the rest of the list.
func (s *Service) HistoryReports(ctx context.Context, patientID uuid.UUID, domain Domain, limit, offset int) ([]*AssessmentReport, int, error) {
	snaps, total, err := s.snapshots.ListByPatient(ctx, patientID, domain, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	reports := make([]*AssessmentReport, len(snaps))
	for i, snap := range snaps {
		reports[i] = s.reportFor(snap)
	}
	return reports, total, nil
}

func (s *Service) reportFor(snap *AssessmentSnapshot) *AssessmentReport {
	return &AssessmentReport{
		SnapshotID: snap.ID,
		Domain:     snap.Domain,
		CreatedAt:  snap.CreatedAt,
		Report:     BuildReport(snap.Domain, snap.Data),
	}
}

// exportPageSize bounds each history query during a CSV export; the
// export pages through fresh queries rather than holding a cursor.
const exportPageSize = 100

// ExportCSV streams the full assessment history for the key as CSV,
// newest first, one row per snapshot.
func (s *Service) ExportCSV(ctx context.Context, w io.Writer, patientID uuid.UUID, domain Domain) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"snapshot_id", "domain", "created_at", "summary", "details"}); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for offset := 0; ; offset += exportPageSize {
		snaps, total, err := s.snapshots.ListByPatient(ctx, patientID, domain, exportPageSize, offset)
		if err != nil {
			return err
		}
		for _, snap := range snaps {
			report := BuildReport(snap.Domain, snap.Data)
			row := []string{
				snap.ID.String(),
				string(snap.Domain),
				snap.CreatedAt.UTC().Format(time.RFC3339),
				report.Summary,
				strings.Join(report.Details, "; "),
			}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("write csv row: %w", err)
			}
		}
		if offset+len(snaps) >= total || len(snaps) == 0 {
			break
		}
	}

	cw.Flush()
	return cw.Error()
}
