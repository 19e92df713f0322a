package charting

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dentchart/dentchart/pkg/tooth"
)

// Domain identifies one of the six assessment domains a clinician charts.
type Domain string

const (
	DomainDentition   Domain = "dentition"
	DomainHygiene     Domain = "hygiene"
	DomainExtraction  Domain = "extraction"
	DomainRestoration Domain = "restoration"
	DomainDenture     Domain = "denture"
	DomainImplant     Domain = "implant"
)

var allDomains = []Domain{
	DomainDentition, DomainHygiene, DomainExtraction,
	DomainRestoration, DomainDenture, DomainImplant,
}

// AllDomains returns the assessment domains in display order.
func AllDomains() []Domain {
	out := make([]Domain, len(allDomains))
	copy(out, allDomains)
	return out
}

// ParseDomain validates a domain path/query parameter.
func ParseDomain(s string) (Domain, error) {
	d := Domain(s)
	for _, known := range allDomains {
		if d == known {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown assessment domain: %q", s)
}

// Dentition tooth statuses. Present is the healthy default.
const (
	DentitionPresent          = "present"
	DentitionFullyMissing     = "fully-missing"
	DentitionPartiallyMissing = "partially-missing"
)

// Extraction reasons. None is the default for a tooth still in place.
const (
	ExtractionNone        = "none"
	ExtractionCaries      = "caries"
	ExtractionPeriodontal = "periodontal"
	ExtractionTrauma      = "trauma"
	ExtractionOrthodontic = "orthodontic"
	ExtractionProsthetic  = "prosthetic"
)

// Restoration materials.
const (
	MaterialAmalgam      = "amalgam"
	MaterialComposite    = "composite"
	MaterialGold         = "gold"
	MaterialCeramic      = "ceramic"
	MaterialGlassIonomer = "glass-ionomer"
)

// Denture types, recorded per quadrant.
const (
	DentureNone     = "none"
	DenturePartial  = "partial"
	DentureComplete = "complete"
)

// Quadrant names used as denture map keys.
const (
	QuadrantUpperRight = "upper-right"
	QuadrantUpperLeft  = "upper-left"
	QuadrantLowerLeft  = "lower-left"
	QuadrantLowerRight = "lower-right"
)

// Implant conditions. Sound is the default for a placed implant.
const (
	ImplantSound           = "sound"
	ImplantPeriImplantitis = "peri-implantitis"
	ImplantMobile          = "mobile"
)

// Hygiene defaults for teeth with no recorded finding.
const (
	DefaultPlaqueIndex  = 0
	DefaultProbingDepth = 2
)

// ChartState is the in-progress chart for one assessment domain. Concrete
// types are one struct per domain; all of them are plain JSON-serializable
// data with deep Clone support so the draft cache can hand out copies.
type ChartState interface {
	Domain() Domain
	Clone() ChartState
}

// DentitionState records presence per tooth.
type DentitionState struct {
	Teeth        map[tooth.ID]string `json:"teeth"`
	PrimaryTeeth []tooth.ID          `json:"primary_teeth,omitempty"`
}

func (s *DentitionState) Domain() Domain { return DomainDentition }

func (s *DentitionState) Clone() ChartState {
	return &DentitionState{
		Teeth:        cloneMap(s.Teeth),
		PrimaryTeeth: cloneIDs(s.PrimaryTeeth),
	}
}

// HygieneState records plaque index, probing depth and bleeding on probing
// per tooth.
type HygieneState struct {
	Plaque       map[tooth.ID]int  `json:"plaque"`
	Probing      map[tooth.ID]int  `json:"probing"`
	Bleeding     map[tooth.ID]bool `json:"bleeding"`
	PrimaryTeeth []tooth.ID        `json:"primary_teeth,omitempty"`
}

func (s *HygieneState) Domain() Domain { return DomainHygiene }

func (s *HygieneState) Clone() ChartState {
	return &HygieneState{
		Plaque:       cloneMap(s.Plaque),
		Probing:      cloneMap(s.Probing),
		Bleeding:     cloneMap(s.Bleeding),
		PrimaryTeeth: cloneIDs(s.PrimaryTeeth),
	}
}

// ExtractionState records the extraction reason per tooth.
type ExtractionState struct {
	Reasons      map[tooth.ID]string `json:"reasons"`
	PrimaryTeeth []tooth.ID          `json:"primary_teeth,omitempty"`
}

func (s *ExtractionState) Domain() Domain { return DomainExtraction }

func (s *ExtractionState) Clone() ChartState {
	return &ExtractionState{
		Reasons:      cloneMap(s.Reasons),
		PrimaryTeeth: cloneIDs(s.PrimaryTeeth),
	}
}

// RestorationFinding is one restored tooth: material plus the treated
// surfaces in standard notation (e.g. "MOD").
type RestorationFinding struct {
	Material string `json:"material"`
	Surfaces string `json:"surfaces,omitempty"`
}

// RestorationState records fillings and other restorations per tooth. A
// tooth absent from Findings has no restoration.
type RestorationState struct {
	Findings     map[tooth.ID]RestorationFinding `json:"findings"`
	PrimaryTeeth []tooth.ID                      `json:"primary_teeth,omitempty"`
}

func (s *RestorationState) Domain() Domain { return DomainRestoration }

func (s *RestorationState) Clone() ChartState {
	return &RestorationState{
		Findings:     cloneMap(s.Findings),
		PrimaryTeeth: cloneIDs(s.PrimaryTeeth),
	}
}

// DentureState records the denture type per quadrant plus the teeth the
// denture clasps onto.
type DentureState struct {
	Quadrants     map[string]string `json:"quadrants"`
	AbutmentTeeth []tooth.ID        `json:"abutment_teeth,omitempty"`
}

func (s *DentureState) Domain() Domain { return DomainDenture }

func (s *DentureState) Clone() ChartState {
	return &DentureState{
		Quadrants:     cloneMap(s.Quadrants),
		AbutmentTeeth: cloneIDs(s.AbutmentTeeth),
	}
}

// ImplantState records placed implants and their condition.
type ImplantState struct {
	Placed       []tooth.ID          `json:"placed"`
	Condition    map[tooth.ID]string `json:"condition,omitempty"`
	PrimaryTeeth []tooth.ID          `json:"primary_teeth,omitempty"`
}

func (s *ImplantState) Domain() Domain { return DomainImplant }

func (s *ImplantState) Clone() ChartState {
	return &ImplantState{
		Placed:       cloneIDs(s.Placed),
		Condition:    cloneMap(s.Condition),
		PrimaryTeeth: cloneIDs(s.PrimaryTeeth),
	}
}

// NewState returns an empty chart state for the given domain, ready for
// JSON binding or default-filled encoding.
func NewState(d Domain) ChartState {
	switch d {
	case DomainDentition:
		return &DentitionState{Teeth: map[tooth.ID]string{}}
	case DomainHygiene:
		return &HygieneState{
			Plaque:   map[tooth.ID]int{},
			Probing:  map[tooth.ID]int{},
			Bleeding: map[tooth.ID]bool{},
		}
	case DomainExtraction:
		return &ExtractionState{Reasons: map[tooth.ID]string{}}
	case DomainRestoration:
		return &RestorationState{Findings: map[tooth.ID]RestorationFinding{}}
	case DomainDenture:
		return &DentureState{Quadrants: map[string]string{}}
	case DomainImplant:
		return &ImplantState{Condition: map[tooth.ID]string{}}
	default:
		return nil
	}
}

// AssessmentSnapshot maps to the assessment_snapshot table. Rows are
// append-only: a new save always inserts a new row with a new id, never
// updates an existing one, so the full revision history of a chart is
// preserved.
type AssessmentSnapshot struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Seq       int64     `db:"seq" json:"-"`
	PatientID uuid.UUID `db:"patient_id" json:"patient_id"`
	Domain    Domain    `db:"domain" json:"domain"`
	Data      string    `db:"data" json:"data"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	if m == nil {
		return nil
	}
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneIDs(ids []tooth.ID) []tooth.ID {
	if ids == nil {
		return nil
	}
	out := make([]tooth.ID, len(ids))
	copy(out, ids)
	return out
}
