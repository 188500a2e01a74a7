package strategy

import (
	"context"
	"math/rand"

	"github.com/zappy/zappy-ai/internal/client"
	"github.com/zappy/zappy-ai/internal/spawn"
	"github.com/zappy/zappy-ai/internal/world"
)

const (
	criticalFood  = 2
	emergencyFood = 4
)

// Survivor runs the per-tick decision ladder in spec.md §4.5.
type Survivor struct {
	client  *client.Client
	world   *world.Model
	spawner *spawn.Spawner
	rng     *rand.Rand

	lastSpawnTick int
	spawnCooldown int
	lastForkTick  int
}

// NewSurvivor builds a Survivor strategy. rng should be seeded once per
// process at startup.
func NewSurvivor(c *client.Client, m *world.Model, s *spawn.Spawner, rng *rand.Rand) *Survivor {
	return &Survivor{client: c, world: m, spawner: s, rng: rng, spawnCooldown: 3, lastSpawnTick: -3, lastForkTick: -6}
}

// Tick runs exactly one iteration of the priority ladder, spec.md §4.5.
// The first matching clause consumes the tick.
func (s *Survivor) Tick(ctx context.Context) error {
	s.spawner.Sweep()

	food, err := s.world.FoodCount(ctx)
	if err != nil {
		return err
	}

	switch {
	case food <= criticalFood:
		return EmergencyFoodCollection(ctx, s.client, s.world, s.rng)
	case food <= emergencyFood:
		return CollectFood(ctx, s.client, s.world, s.rng)
	}

	tick := s.world.ActionCounter()

	if handled, err := s.maybeSpawn(ctx, tick, food); handled || err != nil {
		return err
	}

	if s.shouldFork(tick, food) {
		s.lastForkTick = tick
		err := s.client.Fork(ctx)
		s.world.SetOpenTeamSlots(s.world.OpenTeamSlots() + 1)
		return err
	}

	if food < 12 {
		return CollectFood(ctx, s.client, s.world, s.rng)
	}
	if food < 20 {
		return CollectFood(ctx, s.client, s.world, s.rng)
	}

	return s.supportExplore(ctx)
}

// maybeSpawn implements spec.md §4.5 priority 3: aggressive spawning of
// peer processes while slots and food allow.
func (s *Survivor) maybeSpawn(ctx context.Context, tick, food int) (handled bool, err error) {
	slots := s.world.OpenTeamSlots()
	if !(slots > 0 && food >= 6) {
		return false, nil
	}
	if tick-s.lastSpawnTick < s.spawnCooldown {
		return false, nil
	}

	batch := spawnBatchSize(food)
	if slots >= 4 && food >= 8 {
		batch++
	}
	if batch > slots {
		batch = slots
	}

	reserve := 4
	if batch > 1 {
		reserve = 6
	}
	if food < reserve {
		return false, nil
	}

	started := s.spawner.SpawnBatch(batch)
	if started == 0 {
		return false, nil
	}

	s.lastSpawnTick = tick
	if batch > 1 {
		s.spawnCooldown = 2
	} else {
		s.spawnCooldown = 3
	}
	s.world.SetOpenTeamSlots(slots - started)
	return true, nil
}

func spawnBatchSize(food int) int {
	switch {
	case food >= 20:
		return 4
	case food >= 15:
		return 3
	case food >= 10:
		return 2
	default:
		return 1
	}
}

// shouldFork implements spec.md §4.5 priority 4.
func (s *Survivor) shouldFork(tick, food int) bool {
	return s.world.OpenTeamSlots() == 0 && food >= 15 && tick-s.lastForkTick >= 6
}

// supportExplore implements spec.md §4.5 priority 6: wander, always
// collecting food, deliberately leaving stones for levelers.
func (s *Survivor) supportExplore(ctx context.Context) error {
	items, err := s.world.CurrentTileItems(ctx)
	if err != nil {
		return err
	}
	for _, item := range items {
		if item == "food" {
			err := s.client.Take(ctx, "food")
			if err != nil && err != client.ErrServerRefusal {
				return err
			}
			s.world.Invalidate()
			return nil
		}
	}

	if s.rng.Intn(5) == 0 {
		return ApplyStep(ctx, s.client, s.world, StepRight)
	}
	return ApplyStep(ctx, s.client, s.world, StepForward)
}
