// Package strategy implements the per-role tick engines (spec.md §4.5,
// §4.6) that consume the World Model and drive the Protocol Client:
// priority-ordered decision ladders where the first matching clause wins.
// Grounded on the teacher's dispatcher-loop shape (one decision function
// inspected top-to-bottom per inbound unit of work), generalized from
// request dispatch to a per-tick strategy decision.
package strategy

import (
	"context"
	"math/rand"

	"github.com/zappy/zappy-ai/internal/client"
	"github.com/zappy/zappy-ai/internal/world"
)

// Step is a single navigation action.
type Step int

const (
	StepForward Step = iota
	StepLeft
	StepRight
)

// ApplyStep issues one navigation command and keeps the World Model's
// facing/cache in sync with its outcome.
func ApplyStep(ctx context.Context, c *client.Client, m *world.Model, step Step) error {
	switch step {
	case StepForward:
		err := c.Forward(ctx)
		if err == nil {
			m.Invalidate()
		}
		return err
	case StepLeft:
		err := c.Left(ctx)
		if err == nil {
			m.TurnLeft()
		}
		return err
	case StepRight:
		err := c.Right(ctx)
		if err == nil {
			m.TurnRight()
		}
		return err
	}
	return nil
}

// ApplySteps issues each step in steps in order, stopping at the first
// error. An empty steps has nothing to apply and returns nil.
func ApplySteps(ctx context.Context, c *client.Client, m *world.Model, steps []Step) error {
	for _, step := range steps {
		if err := ApplyStep(ctx, c, m, step); err != nil {
			return err
		}
	}
	return nil
}

// stepsTowardsTile resolves a vision tile index to the navigation sequence
// original_source/ai/main.py's move_towards_tile issues: tile 0 is the
// agent's own tile, so it needs no movement at all; tile 1 turns left then
// advances; tile 2 is already straight ahead, so it only advances; tile 3
// turns right then advances. spec.md §9 leaves the fallback for indices ≥4
// an open question; this port preserves the original's forward-only
// fallback rather than inventing a new tile-numbering layout.
func stepsTowardsTile(tileIndex int) []Step {
	switch tileIndex {
	case 0:
		return nil
	case 1:
		return []Step{StepLeft, StepForward}
	case 2:
		return []Step{StepForward}
	case 3:
		return []Step{StepRight, StepForward}
	default:
		return []Step{StepForward}
	}
}

// biasedRandomTurns picks 1-3 with the source's bias toward fewer turns,
// used when nothing food-related is visible during emergency collection.
func biasedRandomTurns(rng *rand.Rand) int {
	switch n := rng.Intn(10); {
	case n < 6:
		return 1
	case n < 9:
		return 2
	default:
		return 3
	}
}
