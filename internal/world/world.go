// Package world implements the World Model (spec.md §4.3): a cache layered
// atop the Protocol Client, aged by a monotonic per-agent action counter
// rather than wall clock, plus the derived queries the strategy engines
// consume. Grounded on the teacher's cache-with-stamp idiom in
// internal/core (entries carry a generation/stamp checked on read) adapted
// here from time-based TTL to tick-based staleness.
package world

import (
	"context"

	"github.com/zappy/zappy-ai/internal/client"
	"github.com/zappy/zappy-ai/internal/protocol"
)

const (
	visionMaxAge    = 1
	inventoryMaxAge = 2
)

// Snapshot is the cached view of the agent's world, spec.md §3.
type Snapshot struct {
	Level         int
	FoodUnits     int
	Inventory     map[string]int
	Vision        []protocol.Tile
	Facing        int
	MapWidth      int
	MapHeight     int
	OpenTeamSlots int

	actionCounter  int
	visionStamp    int
	inventoryStamp int
	haveVision     bool
	haveInventory  bool
}

// Model owns the cache and mediates every read through the Protocol
// Client, refreshing only when stale.
type Model struct {
	client *client.Client
	snap   Snapshot
}

// New builds a Model seeded with handshake-derived facts.
func New(c *client.Client, mapWidth, mapHeight, openTeamSlots int) *Model {
	return &Model{
		client: c,
		snap: Snapshot{
			Level:         1,
			MapWidth:      mapWidth,
			MapHeight:     mapHeight,
			OpenTeamSlots: openTeamSlots,
		},
	}
}

// Tick advances the action counter. The agent's run loop calls it once
// after each strategy tick, so the first tick runs at counter 0.
func (m *Model) Tick() {
	m.snap.actionCounter++
}

// ActionCounter returns the current tick count, used by the Role Arbiter's
// probe-window logic.
func (m *Model) ActionCounter() int {
	return m.snap.actionCounter
}

// Level returns the cached level.
func (m *Model) Level() int { return m.snap.Level }

// SetLevel updates the level after a successful incantation.
func (m *Model) SetLevel(level int) { m.snap.Level = level }

// Facing returns the cached facing direction.
func (m *Model) Facing() int { return m.snap.Facing }

// Turn updates facing after a successful Left/Right.
func (m *Model) TurnRight() { m.snap.Facing = (m.snap.Facing + 1) % 4 }
func (m *Model) TurnLeft()  { m.snap.Facing = (m.snap.Facing + 3) % 4 }

// SetOpenTeamSlots overwrites the cached slot count. New seeds it from the
// handshake; the survivor strategy adjusts it after spawning or forking.
// Nothing refreshes it from Connect_nbr.
func (m *Model) SetOpenTeamSlots(n int) { m.snap.OpenTeamSlots = n }

// OpenTeamSlots returns the last known open slot count.
func (m *Model) OpenTeamSlots() int { return m.snap.OpenTeamSlots }

// Invalidate clears both caches immediately, per spec.md §3: "any
// successful mutating command invalidates both immediately."
func (m *Model) Invalidate() {
	m.snap.haveVision = false
	m.snap.haveInventory = false
}

// Inventory refreshes the inventory cache if its stamp age exceeds
// inventoryMaxAge, then returns it.
func (m *Model) Inventory(ctx context.Context) (map[string]int, error) {
	age := m.snap.actionCounter - m.snap.inventoryStamp
	if !m.snap.haveInventory || age > inventoryMaxAge {
		inv, err := m.client.Inventory(ctx)
		if err != nil {
			return nil, err
		}
		m.snap.Inventory = inv
		m.snap.FoodUnits = inv["food"]
		m.snap.inventoryStamp = m.snap.actionCounter
		m.snap.haveInventory = true
	}
	return m.snap.Inventory, nil
}

// Vision refreshes the look cache if its stamp age exceeds visionMaxAge,
// then returns it.
func (m *Model) Vision(ctx context.Context) ([]protocol.Tile, error) {
	age := m.snap.actionCounter - m.snap.visionStamp
	if !m.snap.haveVision || age > visionMaxAge {
		tiles, err := m.client.Look(ctx)
		if err != nil {
			return nil, err
		}
		m.snap.Vision = tiles
		m.snap.visionStamp = m.snap.actionCounter
		m.snap.haveVision = true
	}
	return m.snap.Vision, nil
}

// FoodCount returns the inventory's food count, fetching the inventory
// first when the cache is empty or stale.
func (m *Model) FoodCount(ctx context.Context) (int, error) {
	inv, err := m.Inventory(ctx)
	if err != nil {
		return 0, err
	}
	return inv["food"], nil
}

// CurrentTileItems returns vision[0]'s tokens, excluding "player".
func (m *Model) CurrentTileItems(ctx context.Context) ([]string, error) {
	vision, err := m.Vision(ctx)
	if err != nil {
		return nil, err
	}
	if len(vision) == 0 {
		return nil, nil
	}
	items := make([]string, 0, len(vision[0]))
	for _, tok := range vision[0] {
		if tok != "player" {
			items = append(items, tok)
		}
	}
	return items, nil
}

// PlayersOnCurrentTile counts "player" tokens on vision[0]; always ≥ 1
// (self).
func (m *Model) PlayersOnCurrentTile(ctx context.Context) (int, error) {
	vision, err := m.Vision(ctx)
	if err != nil {
		return 0, err
	}
	if len(vision) == 0 {
		return 1, nil
	}
	count := 0
	for _, tok := range vision[0] {
		if tok == "player" {
			count++
		}
	}
	if count < 1 {
		count = 1
	}
	return count, nil
}

// ResourcesOnCurrentTile returns a histogram of stone names on vision[0].
func (m *Model) ResourcesOnCurrentTile(ctx context.Context) (map[string]int, error) {
	items, err := m.CurrentTileItems(ctx)
	if err != nil {
		return nil, err
	}
	hist := make(map[string]int)
	for _, tok := range items {
		if isStone(tok) {
			hist[tok]++
		}
	}
	return hist, nil
}

func isStone(name string) bool {
	for _, s := range protocol.StoneNames {
		if s == name {
			return true
		}
	}
	return false
}

// FindResourceInVision returns the smallest tile index containing name, or
// -1 if not found.
func (m *Model) FindResourceInVision(ctx context.Context, name string) (int, error) {
	vision, err := m.Vision(ctx)
	if err != nil {
		return -1, err
	}
	for i, tile := range vision {
		for _, tok := range tile {
			if tok == name {
				return i, nil
			}
		}
	}
	return -1, nil
}

// NeededResources returns the stones whose inventory count is below the
// current level's elevation requirement.
func (m *Model) NeededResources(ctx context.Context) ([]string, error) {
	inv, err := m.Inventory(ctx)
	if err != nil {
		return nil, err
	}
	req, ok := protocol.ElevationRequirements[m.snap.Level]
	if !ok {
		return nil, nil
	}
	var needed []string
	for _, stone := range protocol.StoneNames {
		if inv[stone] < req.Count(stone) {
			needed = append(needed, stone)
		}
	}
	return needed, nil
}

// HasAllElevationResources reports whether NeededResources is empty.
func (m *Model) HasAllElevationResources(ctx context.Context) (bool, error) {
	needed, err := m.NeededResources(ctx)
	if err != nil {
		return false, err
	}
	return len(needed) == 0, nil
}

// ElevationRequirement returns the requirement row for the current level.
func (m *Model) ElevationRequirement() (protocol.ElevationRequirement, bool) {
	req, ok := protocol.ElevationRequirements[m.snap.Level]
	return req, ok
}
