package charting

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dentchart/dentchart/pkg/tooth"
)

// Report is the human-readable rendering of one stored assessment.
// Degraded marks payloads that could not be fully interpreted; a corrupt
// historical record still yields a displayable report so the review screen
// never loses a patient's other records.
type Report struct {
	Summary  string   `json:"summary"`
	Details  []string `json:"details"`
	Degraded bool     `json:"degraded,omitempty"`
}

// AssessmentReport pairs a decoded report with its snapshot metadata for
// the history view.
type AssessmentReport struct {
	SnapshotID uuid.UUID `json:"snapshot_id"`
	Domain     Domain    `json:"domain"`
	CreatedAt  time.Time `json:"created_at"`
	Report     Report    `json:"report"`
}

// degradedReport is the fixed placeholder for unparsable payloads.
func degradedReport() Report {
	return Report{
		Summary:  "Assessment completed",
		Details:  []string{"Unable to parse details"},
		Degraded: true,
	}
}

// BuildReport decodes any stored payload for the given domain and
// aggregates it into a summary plus detail lines. Aggregation runs on the
// reconstructed canonical full-mouth state, so it is independent of which
// historical encoding the record used. All tooth references are relabeled
// to primary codes where the payload's primaryTeeth side-table says so.
func BuildReport(d Domain, data string) Report {
	state, degraded := DecodeState(d, data)
	if state == nil {
		return degradedReport()
	}
	if degraded && isUnrecognized(d, data) {
		return degradedReport()
	}

	r := aggregate(d, state)
	r.Degraded = degraded
	return r
}

// isUnrecognized reports whether the payload failed structural parsing
// entirely (bad JSON or no known shape), as opposed to a known shape with
// broken members.
func isUnrecognized(d Domain, data string) bool {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(data), &probe); err != nil {
		return true
	}
	return detectShape(d, probe) == shapeUnknown
}

func aggregate(d Domain, state ChartState) Report {
	switch st := state.(type) {
	case *DentitionState:
		return aggregateDentition(st)
	case *HygieneState:
		return aggregateHygiene(st)
	case *ExtractionState:
		return aggregateExtraction(st)
	case *RestorationState:
		return aggregateRestoration(st)
	case *DentureState:
		return aggregateDenture(st)
	case *ImplantState:
		return aggregateImplant(st)
	}
	return degradedReport()
}

// labeler relabels a tooth id for display when the patient's chart flags
// it as a primary tooth.
func labeler(primary []tooth.ID) func(tooth.ID) string {
	set := make(map[tooth.ID]bool, len(primary))
	for _, id := range primary {
		set[id] = true
	}
	return func(id tooth.ID) string {
		return string(tooth.DisplayID(id, set[id]))
	}
}

func labelList(ids []tooth.ID, label func(tooth.ID) string) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = label(id)
	}
	return strings.Join(parts, ", ")
}

func aggregateDentition(st *DentitionState) Report {
	label := labeler(st.PrimaryTeeth)
	present := 0
	var details []string
	for _, id := range tooth.AllIDs() {
		status := st.Teeth[id]
		if status == DentitionPresent || status == "" {
			present++
			continue
		}
		details = append(details, fmt.Sprintf("%s: %s", label(id), strings.ReplaceAll(status, "-", " ")))
	}
	return Report{
		Summary: fmt.Sprintf("%d of %d teeth present", present, tooth.Count),
		Details: details,
	}
}

func aggregateHygiene(st *HygieneState) Report {
	label := labeler(st.PrimaryTeeth)
	var bleeding []tooth.ID
	var details []string
	for _, id := range tooth.AllIDs() {
		if st.Bleeding[id] {
			bleeding = append(bleeding, id)
		}
	}
	if len(bleeding) > 0 {
		details = append(details, "Bleeding on probing: "+labelList(bleeding, label))
	}
	for _, id := range tooth.AllIDs() {
		if p := st.Plaque[id]; p > 0 {
			details = append(details, fmt.Sprintf("%s: plaque index %d", label(id), p))
		}
	}
	for _, id := range tooth.AllIDs() {
		if depth := st.Probing[id]; depth > 4 {
			details = append(details, fmt.Sprintf("%s: probing depth %d mm", label(id), depth))
		}
	}
	pct := len(bleeding) * 100 / tooth.Count
	return Report{
		Summary: fmt.Sprintf("Bleeding on probing: %d of %d teeth (%d%%)", len(bleeding), tooth.Count, pct),
		Details: details,
	}
}

func aggregateExtraction(st *ExtractionState) Report {
	label := labeler(st.PrimaryTeeth)
	extracted := 0
	var details []string
	for _, id := range tooth.AllIDs() {
		reason := st.Reasons[id]
		if reason == "" || reason == ExtractionNone {
			continue
		}
		extracted++
		details = append(details, fmt.Sprintf("%s: extracted (%s)", label(id), reason))
	}
	plural := "teeth"
	if extracted == 1 {
		plural = "tooth"
	}
	return Report{
		Summary: fmt.Sprintf("%d %s extracted", extracted, plural),
		Details: details,
	}
}

func aggregateRestoration(st *RestorationState) Report {
	label := labeler(st.PrimaryTeeth)
	var details []string
	count := 0
	for _, id := range tooth.AllIDs() {
		f, ok := st.Findings[id]
		if !ok || f.Material == "" {
			continue
		}
		count++
		line := fmt.Sprintf("%s: %s", label(id), f.Material)
		if f.Surfaces != "" {
			line += " " + f.Surfaces
		}
		details = append(details, line)
	}
	plural := "teeth"
	if count == 1 {
		plural = "tooth"
	}
	return Report{
		Summary: fmt.Sprintf("%d restored %s", count, plural),
		Details: details,
	}
}

// quadrant display order matches the tooth enumeration order.
var quadrantOrder = []string{
	QuadrantUpperRight, QuadrantUpperLeft, QuadrantLowerLeft, QuadrantLowerRight,
}

func aggregateDenture(st *DentureState) Report {
	var details []string
	count := 0
	for _, name := range quadrantOrder {
		typ := st.Quadrants[name]
		if typ == "" || typ == DentureNone {
			continue
		}
		count++
		details = append(details, fmt.Sprintf("%s: %s denture", strings.ReplaceAll(name, "-", " "), typ))
	}
	if len(st.AbutmentTeeth) > 0 {
		details = append(details, "Abutment teeth: "+labelList(st.AbutmentTeeth, labeler(nil)))
	}
	plural := "quadrants"
	if count == 1 {
		plural = "quadrant"
	}
	return Report{
		Summary: fmt.Sprintf("Dentures in %d %s", count, plural),
		Details: details,
	}
}

func aggregateImplant(st *ImplantState) Report {
	label := labeler(st.PrimaryTeeth)
	var details []string
	for _, id := range st.Placed {
		cond := st.Condition[id]
		if cond == "" {
			cond = ImplantSound
		}
		details = append(details, fmt.Sprintf("%s: implant (%s)", label(id), cond))
	}
	plural := "implants"
	if len(st.Placed) == 1 {
		plural = "implant"
	}
	return Report{
		Summary: fmt.Sprintf("%d %s placed", len(st.Placed), plural),
		Details: details,
	}
}
