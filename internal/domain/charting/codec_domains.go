package charting

import (
	"encoding/json"
	"strconv"

	"github.com/dentchart/dentchart/pkg/tooth"
)

// Wire payloads for the compressed encoding. Dentition and extraction share
// the plain default/exceptions shape.

type exceptionsPayload struct {
	V            int                 `json:"v"`
	Default      string              `json:"default"`
	Exceptions   map[tooth.ID]string `json:"exceptions,omitempty"`
	PrimaryTeeth []tooth.ID          `json:"primaryTeeth,omitempty"`
}

type intBlock struct {
	Default    int              `json:"default"`
	Exceptions map[tooth.ID]int `json:"exceptions,omitempty"`
}

type hygienePayload struct {
	V             int        `json:"v"`
	Plaque        intBlock   `json:"plaque"`
	Probing       intBlock   `json:"probing"`
	BleedingTeeth []tooth.ID `json:"bleedingTeeth,omitempty"`
	PrimaryTeeth  []tooth.ID `json:"primaryTeeth,omitempty"`
}

type restorationWire struct {
	M string `json:"m"`
	S string `json:"s,omitempty"`
}

type restorationPayload struct {
	V            int                          `json:"v"`
	Default      restorationWire              `json:"default"`
	Exceptions   map[tooth.ID]restorationWire `json:"exceptions,omitempty"`
	PrimaryTeeth []tooth.ID                   `json:"primaryTeeth,omitempty"`
}

type denturePayload struct {
	V             int               `json:"v"`
	Quadrants     map[string]string `json:"quadrants,omitempty"`
	AbutmentTeeth []tooth.ID        `json:"abutmentTeeth,omitempty"`
}

type implantPayload struct {
	V            int                 `json:"v"`
	ImplantTeeth []tooth.ID          `json:"implantTeeth,omitempty"`
	Condition    map[tooth.ID]string `json:"condition,omitempty"`
	PrimaryTeeth []tooth.ID          `json:"primaryTeeth,omitempty"`
}

func marshalPayload(p interface{}) string {
	b, err := json.Marshal(p)
	if err != nil {
		// Unreachable for the payload structs above; keep a valid document.
		return "{}"
	}
	return string(b)
}

func identity(s string) string { return s }

// EncodeState compresses an in-progress chart into its versioned storage
// payload. Encoding is total: teeth missing from the state are filled with
// the domain default first, so a partially charted mouth still encodes.
func EncodeState(s ChartState) string {
	switch st := s.(type) {
	case *DentitionState:
		full := normalizeFull(st.Teeth, DentitionPresent)
		def := chooseDefault(full, DentitionPresent, identity)
		return marshalPayload(exceptionsPayload{
			V:            payloadVersion,
			Default:      def,
			Exceptions:   exceptionsFrom(full, def),
			PrimaryTeeth: sortIDs(validIDs(st.PrimaryTeeth)),
		})

	case *HygieneState:
		plaque := normalizeFull(st.Plaque, DefaultPlaqueIndex)
		probing := normalizeFull(st.Probing, DefaultProbingDepth)
		plaqueDef := chooseDefault(plaque, DefaultPlaqueIndex, strconv.Itoa)
		probingDef := chooseDefault(probing, DefaultProbingDepth, strconv.Itoa)
		return marshalPayload(hygienePayload{
			V:             payloadVersion,
			Plaque:        intBlock{Default: plaqueDef, Exceptions: exceptionsFrom(plaque, plaqueDef)},
			Probing:       intBlock{Default: probingDef, Exceptions: exceptionsFrom(probing, probingDef)},
			BleedingTeeth: presenceList(normalizeFull(st.Bleeding, false)),
			PrimaryTeeth:  sortIDs(validIDs(st.PrimaryTeeth)),
		})

	case *ExtractionState:
		full := normalizeFull(st.Reasons, ExtractionNone)
		def := chooseDefault(full, ExtractionNone, identity)
		return marshalPayload(exceptionsPayload{
			V:            payloadVersion,
			Default:      def,
			Exceptions:   exceptionsFrom(full, def),
			PrimaryTeeth: sortIDs(validIDs(st.PrimaryTeeth)),
		})

	case *RestorationState:
		full := normalizeFull(st.Findings, RestorationFinding{})
		def := chooseDefault(full, RestorationFinding{}, func(f RestorationFinding) string {
			return f.Material + "/" + f.Surfaces
		})
		exc := make(map[tooth.ID]restorationWire)
		for id, f := range exceptionsFrom(full, def) {
			exc[id] = restorationWire{M: shorten(materialShort, f.Material), S: f.Surfaces}
		}
		return marshalPayload(restorationPayload{
			V:            payloadVersion,
			Default:      restorationWire{M: shorten(materialShort, def.Material), S: def.Surfaces},
			Exceptions:   exc,
			PrimaryTeeth: sortIDs(validIDs(st.PrimaryTeeth)),
		})

	case *DentureState:
		quads := make(map[string]string)
		for name, typ := range st.Quadrants {
			if typ != "" && typ != DentureNone {
				quads[shorten(quadrantShort, name)] = typ
			}
		}
		return marshalPayload(denturePayload{
			V:             payloadVersion,
			Quadrants:     quads,
			AbutmentTeeth: sortIDs(validIDs(st.AbutmentTeeth)),
		})

	case *ImplantState:
		placed := presenceSet(st.Placed)
		cond := make(map[tooth.ID]string)
		for id, c := range st.Condition {
			if placed[id] && c != "" && c != ImplantSound {
				cond[id] = c
			}
		}
		return marshalPayload(implantPayload{
			V:            payloadVersion,
			ImplantTeeth: presenceList(placed),
			Condition:    cond,
			PrimaryTeeth: sortIDs(validIDs(st.PrimaryTeeth)),
		})
	}
	return "{}"
}

// DecodeState reconstructs a chart state from any stored payload, old or
// new. It never fails: a malformed or unrecognized payload yields the
// domain's all-default state with degraded set, and individually broken
// fields fall back to their defaults the same way.
func DecodeState(d Domain, data string) (state ChartState, degraded bool) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(data), &probe); err != nil {
		return defaultState(d), true
	}

	switch detectShape(d, probe) {
	case shapeCompressed:
		return decodeCompressed(d, probe)
	case shapeLegacy:
		return decodeLegacy(d, probe)
	default:
		return defaultState(d), true
	}
}

// defaultState builds the canonical all-default full-mouth state.
func defaultState(d Domain) ChartState {
	switch d {
	case DomainDentition:
		return &DentitionState{Teeth: expand(DentitionPresent, nil)}
	case DomainHygiene:
		return &HygieneState{
			Plaque:   expand(DefaultPlaqueIndex, nil),
			Probing:  expand(DefaultProbingDepth, nil),
			Bleeding: presenceSet(nil),
		}
	case DomainExtraction:
		return &ExtractionState{Reasons: expand(ExtractionNone, nil)}
	case DomainRestoration:
		return &RestorationState{Findings: map[tooth.ID]RestorationFinding{}}
	case DomainDenture:
		return &DentureState{Quadrants: fullQuadrants(nil)}
	case DomainImplant:
		return &ImplantState{Condition: map[tooth.ID]string{}}
	default:
		return nil
	}
}

// fullQuadrants expands a sparse quadrant map to all four quadrants with
// the none default.
func fullQuadrants(sparse map[string]string) map[string]string {
	full := map[string]string{
		QuadrantUpperRight: DentureNone,
		QuadrantUpperLeft:  DentureNone,
		QuadrantLowerLeft:  DentureNone,
		QuadrantLowerRight: DentureNone,
	}
	for name, typ := range sparse {
		full[name] = typ
	}
	return full
}

func decodePrimaryTeeth(probe map[string]json.RawMessage) []tooth.ID {
	var ids []tooth.ID
	field(probe, "primaryTeeth", &ids)
	return sortIDs(validIDs(ids))
}

func decodeCompressed(d Domain, probe map[string]json.RawMessage) (ChartState, bool) {
	degraded := false

	// expect reads one member, falling back to the domain default and
	// flagging degradation when the member is absent or malformed.
	expect := func(key string, out interface{}) {
		raw, ok := probe[key]
		if !ok {
			degraded = true
			return
		}
		if err := json.Unmarshal(raw, out); err != nil {
			degraded = true
		}
	}

	switch d {
	case DomainDentition:
		def := DentitionPresent
		exc := map[tooth.ID]string{}
		expect("default", &def)
		if def == "" {
			def = DentitionPresent
		}
		if _, ok := probe["exceptions"]; ok {
			expect("exceptions", &exc)
		}
		return &DentitionState{
			Teeth:        expand(def, exc),
			PrimaryTeeth: decodePrimaryTeeth(probe),
		}, degraded

	case DomainHygiene:
		plaque := intBlock{Default: DefaultPlaqueIndex}
		probing := intBlock{Default: DefaultProbingDepth}
		expect("plaque", &plaque)
		expect("probing", &probing)
		var bleeding []tooth.ID
		if _, ok := probe["bleedingTeeth"]; ok {
			expect("bleedingTeeth", &bleeding)
		}
		return &HygieneState{
			Plaque:       expand(plaque.Default, plaque.Exceptions),
			Probing:      expand(probing.Default, probing.Exceptions),
			Bleeding:     presenceSet(bleeding),
			PrimaryTeeth: decodePrimaryTeeth(probe),
		}, degraded

	case DomainExtraction:
		def := ExtractionNone
		exc := map[tooth.ID]string{}
		expect("default", &def)
		if def == "" {
			def = ExtractionNone
		}
		if _, ok := probe["exceptions"]; ok {
			expect("exceptions", &exc)
		}
		return &ExtractionState{
			Reasons:      expand(def, exc),
			PrimaryTeeth: decodePrimaryTeeth(probe),
		}, degraded

	case DomainRestoration:
		var defWire restorationWire
		exc := map[tooth.ID]restorationWire{}
		expect("default", &defWire)
		if _, ok := probe["exceptions"]; ok {
			expect("exceptions", &exc)
		}
		def := RestorationFinding{Material: lengthen(materialLong, defWire.M), Surfaces: defWire.S}
		if defWire.M == "" {
			def = RestorationFinding{}
		}
		findings := make(map[tooth.ID]RestorationFinding)
		for id, f := range expand(def, wireFindings(exc)) {
			if f.Material != "" {
				findings[id] = f
			}
		}
		return &RestorationState{
			Findings:     findings,
			PrimaryTeeth: decodePrimaryTeeth(probe),
		}, degraded

	case DomainDenture:
		quads := map[string]string{}
		if _, ok := probe["quadrants"]; ok {
			expect("quadrants", &quads)
		}
		named := make(map[string]string, len(quads))
		for code, typ := range quads {
			named[lengthen(quadrantLong, code)] = typ
		}
		var abutment []tooth.ID
		field(probe, "abutmentTeeth", &abutment)
		return &DentureState{
			Quadrants:     fullQuadrants(named),
			AbutmentTeeth: sortIDs(validIDs(abutment)),
		}, degraded

	case DomainImplant:
		var placed []tooth.ID
		if _, ok := probe["implantTeeth"]; ok {
			expect("implantTeeth", &placed)
		}
		cond := map[tooth.ID]string{}
		if _, ok := probe["condition"]; ok {
			expect("condition", &cond)
		}
		placedSet := presenceSet(placed)
		kept := make(map[tooth.ID]string)
		for id, c := range cond {
			if placedSet[id] && c != ImplantSound {
				kept[id] = c
			}
		}
		return &ImplantState{
			Placed:       presenceList(placedSet),
			Condition:    kept,
			PrimaryTeeth: decodePrimaryTeeth(probe),
		}, degraded
	}

	return defaultState(d), true
}

func wireFindings(exc map[tooth.ID]restorationWire) map[tooth.ID]RestorationFinding {
	out := make(map[tooth.ID]RestorationFinding, len(exc))
	for id, w := range exc {
		out[id] = RestorationFinding{Material: lengthen(materialLong, w.M), Surfaces: w.S}
	}
	return out
}

// decodeLegacy handles the pre-compression flat encodings: one key per
// tooth (or per attribute for hygiene, per quadrant name for dentures).
func decodeLegacy(d Domain, probe map[string]json.RawMessage) (ChartState, bool) {
	degraded := false

	switch d {
	case DomainDentition:
		teeth := make(map[tooth.ID]string)
		for k, raw := range probe {
			id := tooth.ID(k)
			if !tooth.Valid(id) {
				continue
			}
			var v string
			if err := json.Unmarshal(raw, &v); err != nil {
				degraded = true
				continue
			}
			teeth[id] = v
		}
		return &DentitionState{
			Teeth:        normalizeFull(teeth, DentitionPresent),
			PrimaryTeeth: decodePrimaryTeeth(probe),
		}, degraded

	case DomainHygiene:
		var bleeding map[tooth.ID]bool
		var plaque, probing map[tooth.ID]int
		if _, ok := probe["bleeding"]; ok && !field(probe, "bleeding", &bleeding) {
			degraded = true
		}
		if _, ok := probe["plaque"]; ok && !field(probe, "plaque", &plaque) {
			degraded = true
		}
		if _, ok := probe["probing"]; ok && !field(probe, "probing", &probing) {
			degraded = true
		}
		return &HygieneState{
			Plaque:       normalizeFull(plaque, DefaultPlaqueIndex),
			Probing:      normalizeFull(probing, DefaultProbingDepth),
			Bleeding:     normalizeFull(bleeding, false),
			PrimaryTeeth: decodePrimaryTeeth(probe),
		}, degraded

	case DomainExtraction:
		reasons := make(map[tooth.ID]string)
		for k, raw := range probe {
			id := tooth.ID(k)
			if !tooth.Valid(id) {
				continue
			}
			var v string
			if err := json.Unmarshal(raw, &v); err != nil {
				degraded = true
				continue
			}
			reasons[id] = v
		}
		return &ExtractionState{
			Reasons:      normalizeFull(reasons, ExtractionNone),
			PrimaryTeeth: decodePrimaryTeeth(probe),
		}, degraded

	case DomainRestoration:
		findings := make(map[tooth.ID]RestorationFinding)
		for k, raw := range probe {
			id := tooth.ID(k)
			if !tooth.Valid(id) {
				continue
			}
			var f struct {
				Material string `json:"material"`
				Surfaces string `json:"surfaces"`
			}
			if err := json.Unmarshal(raw, &f); err != nil {
				degraded = true
				continue
			}
			if f.Material != "" {
				findings[id] = RestorationFinding{Material: f.Material, Surfaces: f.Surfaces}
			}
		}
		return &RestorationState{
			Findings:     findings,
			PrimaryTeeth: decodePrimaryTeeth(probe),
		}, degraded

	case DomainDenture:
		quads := make(map[string]string)
		for name := range quadrantShort {
			if raw, ok := probe[name]; ok {
				var typ string
				if err := json.Unmarshal(raw, &typ); err != nil {
					degraded = true
					continue
				}
				quads[name] = typ
			}
		}
		var abutment []tooth.ID
		field(probe, "abutmentTeeth", &abutment)
		return &DentureState{
			Quadrants:     fullQuadrants(quads),
			AbutmentTeeth: sortIDs(validIDs(abutment)),
		}, degraded

	case DomainImplant:
		placed := make(map[tooth.ID]bool)
		for k, raw := range probe {
			id := tooth.ID(k)
			if !tooth.Valid(id) {
				continue
			}
			var v bool
			if err := json.Unmarshal(raw, &v); err != nil {
				degraded = true
				continue
			}
			placed[id] = v
		}
		return &ImplantState{
			Placed:       presenceList(placed),
			Condition:    map[tooth.ID]string{},
			PrimaryTeeth: decodePrimaryTeeth(probe),
		}, degraded
	}

	return defaultState(d), true
}
