// Package tooth defines the canonical identifiers for the 32 permanent
// teeth in FDI two-digit notation (first digit quadrant 1-4, second digit
// position 1-8 from the midline) and the primary-tooth substitution table
// used when charting pediatric patients.
package tooth

// ID is a two-digit FDI tooth identifier, e.g. "11" or "48".
type ID string

// Quadrant identifiers in FDI order.
const (
	QuadrantUpperRight = 1
	QuadrantUpperLeft  = 2
	QuadrantLowerLeft  = 3
	QuadrantLowerRight = 4
)

// all holds the 32 permanent tooth ids in the system-wide enumeration
// order: quadrant 1, 2, 3, 4; positions 1-8 from the midline. Summaries
// and exports rely on this order being stable.
var all = []ID{
	"11", "12", "13", "14", "15", "16", "17", "18",
	"21", "22", "23", "24", "25", "26", "27", "28",
	"31", "32", "33", "34", "35", "36", "37", "38",
	"41", "42", "43", "44", "45", "46", "47", "48",
}

var valid = func() map[ID]bool {
	m := make(map[ID]bool, len(all))
	for _, id := range all {
		m[id] = true
	}
	return m
}()

// primaryByPermanent maps permanent teeth in positions 1-5 of each quadrant
// to the corresponding deciduous code (quadrant digit + 4). Second premolars
// map to the primary second molars; positions 6-8 have no primary
// equivalent. Never mutated at runtime.
var primaryByPermanent = func() map[ID]ID {
	m := make(map[ID]ID, 20)
	for q := 1; q <= 4; q++ {
		for p := 1; p <= 5; p++ {
			perm := ID([]byte{byte('0' + q), byte('0' + p)})
			prim := ID([]byte{byte('0' + q + 4), byte('0' + p)})
			m[perm] = prim
		}
	}
	return m
}()

// AllIDs returns the 32 canonical tooth ids in the fixed enumeration order.
// The returned slice is a copy and safe to modify.
func AllIDs() []ID {
	ids := make([]ID, len(all))
	copy(ids, all)
	return ids
}

// Count is the number of permanent teeth in a full-mouth chart.
const Count = 32

// Valid reports whether id is one of the 32 canonical permanent tooth ids.
func Valid(id ID) bool {
	return valid[id]
}

// Quadrant returns the FDI quadrant digit (1-4) for a valid id, or 0 for
// anything else.
func Quadrant(id ID) int {
	if !valid[id] {
		return 0
	}
	return int(id[0] - '0')
}

// Position returns the position from the midline (1-8) for a valid id, or
// 0 for anything else.
func Position(id ID) int {
	if !valid[id] {
		return 0
	}
	return int(id[1] - '0')
}

// PrimaryEquivalent returns the deciduous code for a permanent tooth that
// has one (positions 1-5 of each quadrant). The second return value is
// false when no primary equivalent exists.
func PrimaryEquivalent(id ID) (ID, bool) {
	prim, ok := primaryByPermanent[id]
	return prim, ok
}

// DisplayID returns the identifier to show for a tooth: the primary code
// when isPrimary is true and a mapping exists, otherwise id unchanged.
func DisplayID(id ID, isPrimary bool) ID {
	if isPrimary {
		if prim, ok := primaryByPermanent[id]; ok {
			return prim
		}
	}
	return id
}
