package strategy

import (
	"context"
	"math/rand"

	"github.com/zappy/zappy-ai/internal/client"
	"github.com/zappy/zappy-ai/internal/world"
)

// EmergencyFoodCollection implements spec.md §4.7 exactly: take all food
// on the current tile; if none, walk one step toward the nearest visible
// food tile; if nothing is visible, turn a random amount then advance,
// retrying the turn if advancing fails. It never returns without having
// issued at least one server command.
func EmergencyFoodCollection(ctx context.Context, c *client.Client, m *world.Model, rng *rand.Rand) error {
	items, err := m.CurrentTileItems(ctx)
	if err != nil {
		return err
	}
	foodOnTile := 0
	for _, item := range items {
		if item == "food" {
			foodOnTile++
		}
	}
	if foodOnTile > 0 {
		for i := 0; i < foodOnTile; i++ {
			if err := takeFood(ctx, c, m); err != nil {
				return err
			}
		}
		return nil
	}

	idx, err := m.FindResourceInVision(ctx, "food")
	if err != nil {
		return err
	}
	if idx >= 0 {
		return ApplySteps(ctx, c, m, stepsTowardsTile(idx))
	}

	turns := biasedRandomTurns(rng)
	for i := 0; i < turns; i++ {
		if err := ApplyStep(ctx, c, m, StepRight); err != nil {
			return err
		}
	}
	if err := c.Forward(ctx); err != nil {
		return ApplyStep(ctx, c, m, StepRight)
	}
	m.Invalidate()
	return nil
}

// CollectFood is the non-emergency food-gathering clause shared by
// survivor priorities 2/5 and leveler priority 8: take tile food if
// present, otherwise walk toward the nearest visible food, otherwise
// explore.
func CollectFood(ctx context.Context, c *client.Client, m *world.Model, rng *rand.Rand) error {
	items, err := m.CurrentTileItems(ctx)
	if err != nil {
		return err
	}
	for _, item := range items {
		if item == "food" {
			return takeFood(ctx, c, m)
		}
	}

	idx, err := m.FindResourceInVision(ctx, "food")
	if err != nil {
		return err
	}
	if idx >= 0 {
		return ApplySteps(ctx, c, m, stepsTowardsTile(idx))
	}

	return Explore(ctx, c, m, rng)
}

func takeFood(ctx context.Context, c *client.Client, m *world.Model) error {
	err := c.Take(ctx, "food")
	if err != nil && err != client.ErrServerRefusal {
		return err
	}
	m.Invalidate()
	return nil
}

// Explore wanders the map, always taking any food found underfoot, and
// otherwise advancing with an occasional random turn so the agent doesn't
// walk in a straight line forever.
func Explore(ctx context.Context, c *client.Client, m *world.Model, rng *rand.Rand) error {
	items, err := m.CurrentTileItems(ctx)
	if err != nil {
		return err
	}
	for _, item := range items {
		if item == "food" {
			return takeFood(ctx, c, m)
		}
	}

	if rng.Intn(5) == 0 {
		return ApplyStep(ctx, c, m, StepRight)
	}
	return ApplyStep(ctx, c, m, StepForward)
}
