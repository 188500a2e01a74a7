package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// Tile is one entry of a Look response: the multiset of token names
// present on that tile (e.g. "player", "food", a stone name, "egg").
type Tile []string

// ParseLook parses the bracketed, comma-separated tile list a "Look"
// response carries: "[t0, t1, ..., tn-1]" where tile 0 is the agent's own
// tile and each tile is a space-separated list of token names.
func ParseLook(s string) ([]Tile, error) {
	inner, err := unwrapBrackets(s)
	if err != nil {
		return nil, err
	}

	parts := strings.Split(inner, ",")
	tiles := make([]Tile, len(parts))
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			tiles[i] = Tile{}
			continue
		}
		tiles[i] = Tile(strings.Fields(part))
	}
	return tiles, nil
}

// FormatLook is the inverse of ParseLook, producing the server's exact
// bracketed wire form.
func FormatLook(tiles []Tile) string {
	parts := make([]string, len(tiles))
	for i, t := range tiles {
		parts[i] = strings.Join(t, " ")
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// ParseInventory parses the bracketed "[name count, name count, ...]" form
// an Inventory response carries.
func ParseInventory(s string) (map[string]int, error) {
	inner, err := unwrapBrackets(s)
	if err != nil {
		return nil, err
	}
	inner = strings.TrimSpace(inner)

	inventory := make(map[string]int)
	if inner == "" {
		return inventory, nil
	}

	for _, entry := range strings.Split(inner, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		idx := strings.LastIndex(entry, " ")
		if idx < 0 {
			return nil, fmt.Errorf("protocol: malformed inventory entry %q", entry)
		}
		name := strings.TrimSpace(entry[:idx])
		countStr := strings.TrimSpace(entry[idx+1:])
		count, err := strconv.Atoi(countStr)
		if err != nil {
			return nil, fmt.Errorf("protocol: malformed inventory count in %q: %w", entry, err)
		}
		inventory[name] = count
	}
	return inventory, nil
}

// FormatInventory is the inverse of ParseInventory, producing the server's
// bracketed wire form. Known resources are emitted first in canonical
// order (ResourceNames), then any unrecognized keys in an arbitrary
// (range) order — parsing the result back always reproduces the same map,
// regardless of emission order.
func FormatInventory(inventory map[string]int) string {
	seen := make(map[string]bool, len(inventory))
	var parts []string

	for _, name := range ResourceNames {
		if count, ok := inventory[name]; ok {
			parts = append(parts, fmt.Sprintf("%s %d", name, count))
			seen[name] = true
		}
	}
	for name, count := range inventory {
		if seen[name] {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s %d", name, count))
	}

	return "[" + strings.Join(parts, ", ") + "]"
}

func unwrapBrackets(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return "", fmt.Errorf("protocol: expected bracketed payload, got %q", s)
	}
	return s[1 : len(s)-1], nil
}

// FormatBroadcastCommand wraps text in the exact wire form a Broadcast
// command requires: `Broadcast "<text>"`. spec.md §8 invariant 6 pins this
// down including the quotes.
func FormatBroadcastCommand(text string) string {
	return fmt.Sprintf(`Broadcast "%s"`, text)
}
