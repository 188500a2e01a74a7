// Package protocol implements the Zappy wire codec: parsing and formatting
// the bracketed look/inventory payloads, classifying inbound lines per
// spec.md §4.1, and the elevation requirement table (§6). It holds no
// network state — internal/transport and internal/client own the socket.
package protocol

// ResourceNames lists the seven known resources in the canonical order
// spec.md §4.6 "Site preparation" requires drops to follow: linemate,
// deraumere, sibur, mendiane, phiras, thystame, with food first since it is
// the resource most commonly read and formatted.
var ResourceNames = []string{
	"food", "linemate", "deraumere", "sibur", "mendiane", "phiras", "thystame",
}

// StoneNames is ResourceNames without food — the six elevation stones, in
// the canonical drop order spec.md §4.6 names.
var StoneNames = []string{
	"linemate", "deraumere", "sibur", "mendiane", "phiras", "thystame",
}

// RareStones are the two resources the Leveler strategy always prioritizes
// over common ones (spec.md §4.6 step 6).
var RareStones = []string{"phiras", "thystame"}

// ElevationRequirement is one row of the table in spec.md §6.
type ElevationRequirement struct {
	Players   int
	Linemate  int
	Deraumere int
	Sibur     int
	Mendiane  int
	Phiras    int
	Thystame  int
}

// Count returns how many of resource this requirement demands.
func (r ElevationRequirement) Count(resource string) int {
	switch resource {
	case "linemate":
		return r.Linemate
	case "deraumere":
		return r.Deraumere
	case "sibur":
		return r.Sibur
	case "mendiane":
		return r.Mendiane
	case "phiras":
		return r.Phiras
	case "thystame":
		return r.Thystame
	}
	return 0
}

// ElevationRequirements maps current level -> requirement to reach the
// next level, the exact table from spec.md §6.
var ElevationRequirements = map[int]ElevationRequirement{
	1: {Players: 1, Linemate: 1},
	2: {Players: 2, Linemate: 1, Deraumere: 1, Sibur: 1},
	3: {Players: 2, Linemate: 2, Sibur: 1, Phiras: 2},
	4: {Players: 4, Linemate: 1, Deraumere: 1, Sibur: 2, Phiras: 1},
	5: {Players: 4, Linemate: 1, Deraumere: 2, Sibur: 1, Mendiane: 3},
	6: {Players: 6, Linemate: 1, Deraumere: 2, Sibur: 3, Phiras: 1},
	7: {Players: 6, Linemate: 2, Deraumere: 2, Sibur: 2, Mendiane: 2, Phiras: 2, Thystame: 1},
}
