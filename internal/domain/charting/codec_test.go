package charting

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/dentchart/dentchart/pkg/tooth"
)

// fullDentition builds a full-mouth dentition state with overrides.
func fullDentition(overrides map[tooth.ID]string) *DentitionState {
	teeth := make(map[tooth.ID]string, tooth.Count)
	for _, id := range tooth.AllIDs() {
		teeth[id] = DentitionPresent
	}
	for id, v := range overrides {
		teeth[id] = v
	}
	return &DentitionState{Teeth: teeth}
}

func TestEncodeDentitionMajorityDefault(t *testing.T) {
	// 31 present, one fully missing: the compact form must be a single
	// exception against the "present" default.
	payload := EncodeState(fullDentition(map[tooth.ID]string{"24": DentitionFullyMissing}))

	var p exceptionsPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		t.Fatalf("payload not valid JSON: %v", err)
	}
	if p.V != payloadVersion {
		t.Errorf("version = %d, want %d", p.V, payloadVersion)
	}
	if p.Default != DentitionPresent {
		t.Errorf("default = %q, want present", p.Default)
	}
	if len(p.Exceptions) != 1 || p.Exceptions["24"] != DentitionFullyMissing {
		t.Errorf("exceptions = %v", p.Exceptions)
	}

	state, degraded := DecodeState(DomainDentition, payload)
	if degraded {
		t.Fatal("round trip flagged degraded")
	}
	decoded := state.(*DentitionState)
	if decoded.Teeth["24"] != DentitionFullyMissing {
		t.Errorf("tooth 24 = %q", decoded.Teeth["24"])
	}
	for _, id := range tooth.AllIDs() {
		if id == "24" {
			continue
		}
		if decoded.Teeth[id] != DentitionPresent {
			t.Errorf("tooth %s = %q, want present", id, decoded.Teeth[id])
		}
	}
}

func TestEncodeUniformMapHasNoExceptions(t *testing.T) {
	payload := EncodeState(fullDentition(nil))
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		t.Fatal(err)
	}
	if _, ok := raw["exceptions"]; ok {
		t.Error("uniform map should encode no exceptions")
	}
}

func TestEncodeFillsMissingTeeth(t *testing.T) {
	// A partially charted mouth still encodes: missing teeth take the
	// domain default.
	state := &DentitionState{Teeth: map[tooth.ID]string{"11": DentitionFullyMissing}}
	decoded, degraded := DecodeState(DomainDentition, EncodeState(state))
	if degraded {
		t.Fatal("unexpected degraded")
	}
	teeth := decoded.(*DentitionState).Teeth
	if len(teeth) != tooth.Count {
		t.Fatalf("decoded map has %d teeth", len(teeth))
	}
	if teeth["11"] != DentitionFullyMissing || teeth["48"] != DentitionPresent {
		t.Errorf("teeth[11]=%q teeth[48]=%q", teeth["11"], teeth["48"])
	}
}

func TestDefaultTieBreakPrefersHealthyValue(t *testing.T) {
	overrides := make(map[tooth.ID]string)
	for i, id := range tooth.AllIDs() {
		if i < 16 {
			overrides[id] = DentitionFullyMissing
		}
	}
	payload := EncodeState(fullDentition(overrides))
	var p exceptionsPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		t.Fatal(err)
	}
	if p.Default != DentitionPresent {
		t.Errorf("16/16 tie should pick present, got %q", p.Default)
	}
}

func TestDefaultTieBreakDeterministicWithoutPreferred(t *testing.T) {
	reasons := make(map[tooth.ID]string)
	for i, id := range tooth.AllIDs() {
		if i < 16 {
			reasons[id] = ExtractionTrauma
		} else {
			reasons[id] = ExtractionCaries
		}
	}
	payload := EncodeState(&ExtractionState{Reasons: reasons})
	var p exceptionsPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		t.Fatal(err)
	}
	// Neither value is the "none" default; the smaller one wins.
	if p.Default != ExtractionCaries {
		t.Errorf("default = %q, want caries", p.Default)
	}
}

func TestHygieneBleedingPresenceList(t *testing.T) {
	state := NewState(DomainHygiene).(*HygieneState)
	state.Bleeding["16"] = true
	state.Bleeding["26"] = true

	payload := EncodeState(state)
	var p hygienePayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(p.BleedingTeeth, []tooth.ID{"16", "26"}) {
		t.Errorf("bleedingTeeth = %v", p.BleedingTeeth)
	}
	var raw map[string]json.RawMessage
	json.Unmarshal([]byte(payload), &raw)
	if _, ok := raw["bleeding"]; ok {
		t.Error("full boolean map must not be encoded")
	}

	decoded, degraded := DecodeState(DomainHygiene, payload)
	if degraded {
		t.Fatal("unexpected degraded")
	}
	bleeding := decoded.(*HygieneState).Bleeding
	trueCount := 0
	for _, id := range tooth.AllIDs() {
		if bleeding[id] {
			trueCount++
		}
	}
	if trueCount != 2 || !bleeding["16"] || !bleeding["26"] {
		t.Errorf("decoded bleeding = %v", bleeding)
	}
}

func TestRestorationShortCodes(t *testing.T) {
	state := NewState(DomainRestoration).(*RestorationState)
	state.Findings["11"] = RestorationFinding{Material: MaterialAmalgam, Surfaces: "MOD"}
	state.Findings["26"] = RestorationFinding{Material: MaterialComposite, Surfaces: "O"}

	payload := EncodeState(state)
	var p restorationPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		t.Fatal(err)
	}
	if p.Exceptions["11"].M != "AM" || p.Exceptions["26"].M != "CO" {
		t.Errorf("short codes not applied: %v", p.Exceptions)
	}

	decoded, _ := DecodeState(DomainRestoration, payload)
	findings := decoded.(*RestorationState).Findings
	if findings["11"] != (RestorationFinding{Material: MaterialAmalgam, Surfaces: "MOD"}) {
		t.Errorf("findings[11] = %v", findings["11"])
	}
	if len(findings) != 2 {
		t.Errorf("findings has %d entries", len(findings))
	}
}

func TestShortCodeFailsOpenForUnknownValues(t *testing.T) {
	// A material minted after the code table must survive a round trip
	// unchanged rather than failing the decode.
	payload := `{"v":2,"default":{"m":""},"exceptions":{"11":{"m":"zirconia","s":"B"}}}`
	decoded, degraded := DecodeState(DomainRestoration, payload)
	if degraded {
		t.Fatal("unknown code must not degrade the decode")
	}
	f := decoded.(*RestorationState).Findings["11"]
	if f.Material != "zirconia" || f.Surfaces != "B" {
		t.Errorf("finding = %v", f)
	}
}

func TestDentureQuadrantCodes(t *testing.T) {
	state := NewState(DomainDenture).(*DentureState)
	state.Quadrants[QuadrantUpperLeft] = DenturePartial
	state.AbutmentTeeth = []tooth.ID{"23", "27"}

	payload := EncodeState(state)
	var p denturePayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		t.Fatal(err)
	}
	if p.Quadrants["UL"] != DenturePartial || len(p.Quadrants) != 1 {
		t.Errorf("quadrants = %v", p.Quadrants)
	}

	decoded, _ := DecodeState(DomainDenture, payload)
	quads := decoded.(*DentureState).Quadrants
	if quads[QuadrantUpperLeft] != DenturePartial || quads[QuadrantLowerRight] != DentureNone {
		t.Errorf("decoded quadrants = %v", quads)
	}
}

func TestImplantPresenceAndCondition(t *testing.T) {
	state := NewState(DomainImplant).(*ImplantState)
	state.Placed = []tooth.ID{"46", "36"}
	state.Condition["36"] = ImplantPeriImplantitis
	state.Condition["46"] = ImplantSound // default, must not be encoded

	payload := EncodeState(state)
	var p implantPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(p.ImplantTeeth, []tooth.ID{"36", "46"}) {
		t.Errorf("implantTeeth = %v", p.ImplantTeeth)
	}
	if len(p.Condition) != 1 || p.Condition["36"] != ImplantPeriImplantitis {
		t.Errorf("condition = %v", p.Condition)
	}

	decoded, _ := DecodeState(DomainImplant, payload)
	st := decoded.(*ImplantState)
	if !reflect.DeepEqual(st.Placed, []tooth.ID{"36", "46"}) {
		t.Errorf("placed = %v", st.Placed)
	}
}

func TestRoundTripAllDomains(t *testing.T) {
	states := []ChartState{
		fullDentition(map[tooth.ID]string{"18": DentitionFullyMissing, "24": DentitionPartiallyMissing}),
		func() ChartState {
			s := NewState(DomainHygiene).(*HygieneState)
			s.Bleeding["16"] = true
			s.Plaque["11"] = 2
			s.Probing["31"] = 6
			s.PrimaryTeeth = []tooth.ID{"11"}
			return s
		}(),
		func() ChartState {
			s := NewState(DomainExtraction).(*ExtractionState)
			s.Reasons["48"] = ExtractionCaries
			return s
		}(),
		func() ChartState {
			s := NewState(DomainRestoration).(*RestorationState)
			s.Findings["14"] = RestorationFinding{Material: MaterialGold, Surfaces: "DO"}
			return s
		}(),
		func() ChartState {
			s := NewState(DomainDenture).(*DentureState)
			s.Quadrants[QuadrantLowerLeft] = DentureComplete
			return s
		}(),
		func() ChartState {
			s := NewState(DomainImplant).(*ImplantState)
			s.Placed = []tooth.ID{"21"}
			s.Condition["21"] = ImplantMobile
			return s
		}(),
	}

	for _, original := range states {
		d := original.Domain()
		t.Run(string(d), func(t *testing.T) {
			p1 := EncodeState(original)
			s1, degraded := DecodeState(d, p1)
			if degraded {
				t.Fatalf("decode degraded for %s", d)
			}

			// Idempotent re-encode: value equality of the decoded results.
			p2 := EncodeState(s1)
			s2, degraded := DecodeState(d, p2)
			if degraded {
				t.Fatalf("re-decode degraded for %s", d)
			}
			if !reflect.DeepEqual(s1, s2) {
				t.Errorf("re-encode changed decoded value:\n%#v\n%#v", s1, s2)
			}
		})
	}
}

func TestDecodeMissingDefaultIsBestEffort(t *testing.T) {
	// Compressed shape with no default: decode falls back to the domain
	// default and flags degradation, without failing.
	state, degraded := DecodeState(DomainDentition, `{"v":2,"exceptions":{"24":"fully-missing"}}`)
	if !degraded {
		t.Error("missing default should flag degraded")
	}
	teeth := state.(*DentitionState).Teeth
	if teeth["24"] != DentitionFullyMissing || teeth["11"] != DentitionPresent {
		t.Errorf("teeth = 24:%q 11:%q", teeth["24"], teeth["11"])
	}
}

func TestDecodeMalformedExceptionsIsBestEffort(t *testing.T) {
	state, degraded := DecodeState(DomainDentition, `{"v":2,"default":"present","exceptions":"oops"}`)
	if !degraded {
		t.Error("non-object exceptions should flag degraded")
	}
	if state.(*DentitionState).Teeth["11"] != DentitionPresent {
		t.Error("fallback default not applied")
	}
}

func TestDecodeDropsUnknownToothKeys(t *testing.T) {
	state, _ := DecodeState(DomainDentition, `{"v":2,"default":"present","exceptions":{"99":"fully-missing"}}`)
	teeth := state.(*DentitionState).Teeth
	if len(teeth) != tooth.Count {
		t.Fatalf("decoded %d teeth", len(teeth))
	}
	for id, v := range teeth {
		if v != DentitionPresent {
			t.Errorf("tooth %s = %q", id, v)
		}
	}
}
