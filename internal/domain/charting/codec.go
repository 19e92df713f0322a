package charting

import (
	"encoding/json"
	"sort"

	"github.com/dentchart/dentchart/pkg/tooth"
)

// payloadVersion marks the compressed encoding. Legacy flat payloads
// predate versioning and carry no "v" field.
const payloadVersion = 2

// chooseDefault picks the encoding default for a full per-tooth map: the
// most frequent value wins; ties prefer the domain's none/healthy value,
// then the smallest value under key. The rule is deterministic so
// re-encoding a decoded map is reproducible.
func chooseDefault[V comparable](full map[tooth.ID]V, preferred V, key func(V) string) V {
	counts := make(map[V]int, 4)
	for _, v := range full {
		counts[v]++
	}
	if len(counts) == 0 {
		return preferred
	}

	var best V
	bestN := -1
	for v, n := range counts {
		switch {
		case n > bestN:
			best, bestN = v, n
		case n == bestN:
			if v == preferred {
				best = v
			} else if best != preferred && key(v) < key(best) {
				best = v
			}
		}
	}
	return best
}

// exceptionsFrom returns the entries of full that differ from def.
func exceptionsFrom[V comparable](full map[tooth.ID]V, def V) map[tooth.ID]V {
	exc := make(map[tooth.ID]V)
	for id, v := range full {
		if v != def {
			exc[id] = v
		}
	}
	return exc
}

// expand reconstructs the canonical full 32-entry map: the exception value
// where present, the default everywhere else. Exception entries keyed by
// anything other than a canonical tooth id are dropped.
func expand[V any](def V, exc map[tooth.ID]V) map[tooth.ID]V {
	full := make(map[tooth.ID]V, tooth.Count)
	for _, id := range tooth.AllIDs() {
		if v, ok := exc[id]; ok {
			full[id] = v
		} else {
			full[id] = def
		}
	}
	return full
}

// normalizeFull fills missing teeth with def and drops invalid keys, so
// encoding is total even over a partially charted state.
func normalizeFull[V any](m map[tooth.ID]V, def V) map[tooth.ID]V {
	full := make(map[tooth.ID]V, tooth.Count)
	for _, id := range tooth.AllIDs() {
		if v, ok := m[id]; ok {
			full[id] = v
		} else {
			full[id] = def
		}
	}
	return full
}

// presenceList converts a boolean per-tooth map into a sorted list of the
// teeth marked true. Decoding treats absence from the list as false, so
// the complementary "false" entries are never encoded.
func presenceList(m map[tooth.ID]bool) []tooth.ID {
	var ids []tooth.ID
	for _, id := range tooth.AllIDs() {
		if m[id] {
			ids = append(ids, id)
		}
	}
	return ids
}

// presenceSet reconstructs the full boolean map from a presence list.
func presenceSet(listed []tooth.ID) map[tooth.ID]bool {
	full := make(map[tooth.ID]bool, tooth.Count)
	for _, id := range tooth.AllIDs() {
		full[id] = false
	}
	for _, id := range listed {
		if tooth.Valid(id) {
			full[id] = true
		}
	}
	return full
}

// validIDs filters a tooth id list down to canonical ids, preserving order.
func validIDs(ids []tooth.ID) []tooth.ID {
	var out []tooth.ID
	for _, id := range ids {
		if tooth.Valid(id) {
			out = append(out, id)
		}
	}
	return out
}

// sortIDs orders tooth ids by the canonical enumeration order.
func sortIDs(ids []tooth.ID) []tooth.ID {
	order := make(map[tooth.ID]int, tooth.Count)
	for i, id := range tooth.AllIDs() {
		order[id] = i
	}
	sorted := append([]tooth.ID(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return order[sorted[i]] < order[sorted[j]] })
	return sorted
}

// ---------------------------------------------------------------------------
// Short-code tables
// ---------------------------------------------------------------------------

// quadrantShort maps quadrant names to the two-letter wire codes. The set
// is small and stable, which is the bar for a short-code table.
var quadrantShort = map[string]string{
	QuadrantUpperRight: "UR",
	QuadrantUpperLeft:  "UL",
	QuadrantLowerLeft:  "LL",
	QuadrantLowerRight: "LR",
}

var materialShort = map[string]string{
	MaterialAmalgam:      "AM",
	MaterialComposite:    "CO",
	MaterialGold:         "GO",
	MaterialCeramic:      "CE",
	MaterialGlassIonomer: "GI",
}

var quadrantLong = invert(quadrantShort)
var materialLong = invert(materialShort)

func invert(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[v] = k
	}
	return out
}

// shorten maps a value through a short-code table, passing unrecognized
// values through unchanged so future values survive a round trip.
func shorten(table map[string]string, v string) string {
	if code, ok := table[v]; ok {
		return code
	}
	return v
}

// lengthen reverses shorten, failing open for codes minted after this
// table was written.
func lengthen(table map[string]string, code string) string {
	if v, ok := table[code]; ok {
		return v
	}
	return code
}

// ---------------------------------------------------------------------------
// Payload shape detection
// ---------------------------------------------------------------------------

// payloadShape tags the known historical encodings of a stored payload.
type payloadShape int

const (
	shapeUnknown payloadShape = iota
	shapeCompressed
	shapeLegacy
)

// legacy per-domain marker keys: legacy hygiene nests full boolean maps,
// legacy dentures key by long quadrant name.
var legacyHygieneKeys = []string{"bleeding", "plaque", "probing"}

// detectShape classifies a parsed payload object. Compressed payloads
// carry a version field or a top-level default; legacy payloads have one
// key per tooth or the old nested attribute maps.
func detectShape(domain Domain, probe map[string]json.RawMessage) payloadShape {
	if _, ok := probe["v"]; ok {
		return shapeCompressed
	}
	if _, ok := probe["default"]; ok {
		return shapeCompressed
	}

	switch domain {
	case DomainHygiene:
		for _, k := range legacyHygieneKeys {
			if _, ok := probe[k]; ok {
				return shapeLegacy
			}
		}
	case DomainDenture:
		for name := range quadrantShort {
			if _, ok := probe[name]; ok {
				return shapeLegacy
			}
		}
	default:
		for k := range probe {
			if tooth.Valid(tooth.ID(k)) {
				return shapeLegacy
			}
		}
	}
	return shapeUnknown
}

// field unmarshals one named member of a probed payload. It reports false
// both when the key is absent and when the member does not fit T, leaving
// out untouched in either case.
func field[T any](probe map[string]json.RawMessage, key string, out *T) bool {
	raw, ok := probe[key]
	if !ok {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}
