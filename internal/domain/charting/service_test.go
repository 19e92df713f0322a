package charting

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dentchart/dentchart/pkg/tooth"
)

// =========== Mock Snapshot Repository ===========

type mockSnapshotRepo struct {
	appended []*AssessmentSnapshot
	failNext bool
	seq      int64
}

func newMockSnapshotRepo() *mockSnapshotRepo {
	return &mockSnapshotRepo{}
}

func (m *mockSnapshotRepo) Append(_ context.Context, s *AssessmentSnapshot) error {
	if m.failNext {
		m.failNext = false
		return &StorageError{Op: "append snapshot", Err: fmt.Errorf("disk unavailable")}
	}
	m.seq++
	s.Seq = m.seq
	clone := *s
	m.appended = append(m.appended, &clone)
	return nil
}

func (m *mockSnapshotRepo) forKey(patientID uuid.UUID, domain Domain) []*AssessmentSnapshot {
	var out []*AssessmentSnapshot
	// Newest first: appended order is oldest first.
	for i := len(m.appended) - 1; i >= 0; i-- {
		s := m.appended[i]
		if s.PatientID == patientID && s.Domain == domain {
			out = append(out, s)
		}
	}
	return out
}

func (m *mockSnapshotRepo) Latest(_ context.Context, patientID uuid.UUID, domain Domain) (*AssessmentSnapshot, error) {
	matches := m.forKey(patientID, domain)
	if len(matches) == 0 {
		return nil, nil
	}
	return matches[0], nil
}

func (m *mockSnapshotRepo) ListByPatient(_ context.Context, patientID uuid.UUID, domain Domain, limit, offset int) ([]*AssessmentSnapshot, int, error) {
	matches := m.forKey(patientID, domain)
	total := len(matches)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matches[offset:end], total, nil
}

func newTestService(repo SnapshotRepository) *Service {
	return NewService(repo, NewDraftCache(), 0)
}

// =========== Tests ===========

func TestSaveAssessmentClearsDraft(t *testing.T) {
	repo := newMockSnapshotRepo()
	svc := newTestService(repo)
	patientID := uuid.New()

	state := fullDentition(map[tooth.ID]string{"24": DentitionFullyMissing})
	svc.SaveDraft(patientID, state)
	if !svc.HasDraft(patientID, DomainDentition) {
		t.Fatal("draft not held")
	}

	snap, err := svc.SaveAssessment(context.Background(), patientID, state)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if snap.ID == uuid.Nil {
		t.Error("snapshot id not assigned")
	}
	if svc.HasDraft(patientID, DomainDentition) {
		t.Error("draft survived a successful save")
	}
}

func TestSaveAssessmentStorageFailureKeepsDraft(t *testing.T) {
	repo := newMockSnapshotRepo()
	svc := newTestService(repo)
	patientID := uuid.New()

	state := fullDentition(nil)
	svc.SaveDraft(patientID, state)

	repo.failNext = true
	_, err := svc.SaveAssessment(context.Background(), patientID, state)
	if err == nil {
		t.Fatal("expected storage error")
	}
	if !IsStorageError(err) {
		t.Errorf("error not a StorageError: %v", err)
	}
	if !svc.HasDraft(patientID, DomainDentition) {
		t.Error("failed save lost the draft")
	}

	// Retry succeeds and only then clears the draft.
	if _, err := svc.SaveAssessment(context.Background(), patientID, state); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if svc.HasDraft(patientID, DomainDentition) {
		t.Error("draft survived the retried save")
	}
}

func TestSaveAssessmentAppendOnly(t *testing.T) {
	repo := newMockSnapshotRepo()
	svc := newTestService(repo)
	patientID := uuid.New()
	ctx := context.Background()

	first, err := svc.SaveAssessment(ctx, patientID, fullDentition(nil))
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.SaveAssessment(ctx, patientID, fullDentition(map[tooth.ID]string{"24": DentitionFullyMissing}))
	if err != nil {
		t.Fatal(err)
	}

	if first.ID == second.ID {
		t.Fatal("consecutive saves reused a snapshot id")
	}

	all, total, err := svc.History(ctx, patientID, DomainDentition, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 || len(all) != 2 {
		t.Fatalf("history has %d/%d records", len(all), total)
	}
	if all[0].ID != second.ID || all[1].ID != first.ID {
		t.Error("history not newest-first")
	}

	latest, err := svc.Latest(ctx, patientID, DomainDentition)
	if err != nil {
		t.Fatal(err)
	}
	if latest.ID != second.ID {
		t.Error("latest is not the second save")
	}
}

func TestSaveAssessmentValidation(t *testing.T) {
	svc := newTestService(newMockSnapshotRepo())
	if _, err := svc.SaveAssessment(context.Background(), uuid.Nil, fullDentition(nil)); err == nil {
		t.Error("nil patient id accepted")
	}
	if _, err := svc.SaveAssessment(context.Background(), uuid.New(), nil); err == nil {
		t.Error("nil state accepted")
	}
}

func TestLatestReportDecodesStoredPayload(t *testing.T) {
	svc := newTestService(newMockSnapshotRepo())
	patientID := uuid.New()
	ctx := context.Background()

	if report, err := svc.LatestReport(ctx, patientID, DomainDentition); err != nil || report != nil {
		t.Fatalf("empty history should yield nil, got %v/%v", report, err)
	}

	state := fullDentition(map[tooth.ID]string{"24": DentitionFullyMissing})
	if _, err := svc.SaveAssessment(ctx, patientID, state); err != nil {
		t.Fatal(err)
	}

	report, err := svc.LatestReport(ctx, patientID, DomainDentition)
	if err != nil {
		t.Fatal(err)
	}
	if report.Report.Summary != "31 of 32 teeth present" {
		t.Errorf("summary = %q", report.Report.Summary)
	}
}

func TestHistoryReportsTolerateCorruptRecord(t *testing.T) {
	repo := newMockSnapshotRepo()
	svc := newTestService(repo)
	patientID := uuid.New()
	ctx := context.Background()

	if _, err := svc.SaveAssessment(ctx, patientID, fullDentition(nil)); err != nil {
		t.Fatal(err)
	}
	// Simulate a corrupted historical row written by an old client.
	repo.appended = append(repo.appended, &AssessmentSnapshot{
		ID: uuid.New(), PatientID: patientID, Domain: DomainDentition,
		Data: "{not json", CreatedAt: time.Now(), UpdatedAt: time.Now(),
	})

	reports, total, err := svc.HistoryReports(ctx, patientID, DomainDentition, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 || len(reports) != 2 {
		t.Fatalf("got %d/%d reports", len(reports), total)
	}
	if !reports[0].Report.Degraded {
		t.Error("corrupt record not marked degraded")
	}
	if reports[1].Report.Degraded {
		t.Error("healthy record marked degraded")
	}
}

func TestAutoSaveDraftImmediateWhenNoDebounce(t *testing.T) {
	svc := newTestService(newMockSnapshotRepo())
	patientID := uuid.New()
	svc.AutoSaveDraft(patientID, fullDentition(nil))
	if !svc.HasDraft(patientID, DomainDentition) {
		t.Error("zero debounce should save immediately")
	}
}

func TestExportCSV(t *testing.T) {
	svc := newTestService(newMockSnapshotRepo())
	patientID := uuid.New()
	ctx := context.Background()

	if _, err := svc.SaveAssessment(ctx, patientID, fullDentition(nil)); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.SaveAssessment(ctx, patientID, fullDentition(map[tooth.ID]string{"24": DentitionFullyMissing})); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := svc.ExportCSV(ctx, &buf, patientID, DomainDentition); err != nil {
		t.Fatal(err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows", len(rows))
	}
	if rows[0][0] != "snapshot_id" {
		t.Errorf("header = %v", rows[0])
	}
	// Newest first: the 31-present save comes before the uniform one.
	if rows[1][3] != "31 of 32 teeth present" || rows[2][3] != "32 of 32 teeth present" {
		t.Errorf("summaries = %q, %q", rows[1][3], rows[2][3])
	}
}
