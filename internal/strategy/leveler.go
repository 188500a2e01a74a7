package strategy

import (
	"context"
	"math/rand"
	"time"

	"github.com/zappy/zappy-ai/internal/client"
	"github.com/zappy/zappy-ai/internal/elevation"
	"github.com/zappy/zappy-ai/internal/protocol"
	"github.com/zappy/zappy-ai/internal/world"
)

const (
	levelerEmergencyFood = 5
	levelerOwnStartFood  = 8
	levelerGatherFood    = 15
	levelerCollectFood   = 15
)

// Leveler runs the per-tick decision ladder and elevation state machine in
// spec.md §4.6.
type Leveler struct {
	client   *client.Client
	world    *world.Model
	elev     *elevation.Context
	teamName string
	uniqueID string
	rng      *rand.Rand

	pendingHelp *incomingHelp
}

// incomingHelp pairs a parsed recruitment broadcast with the direction the
// Router observed it arriving from (spec.md §6's broadcast envelope, not
// part of the ELEV_FROM_... payload itself).
type incomingHelp struct {
	req       elevation.HelpRequest
	direction int
}

// NewLeveler builds a Leveler strategy.
func NewLeveler(c *client.Client, m *world.Model, teamName, uniqueID string, rng *rand.Rand) *Leveler {
	return &Leveler{
		client:   c,
		world:    m,
		elev:     &elevation.Context{},
		teamName: teamName,
		uniqueID: uniqueID,
		rng:      rng,
	}
}

// Context exposes the leveler's elevation state machine. Incoming
// ELEV_FROM_... requests do not go through it; they arrive via
// ObserveHelpRequest.
func (l *Leveler) Context() *elevation.Context { return l.elev }

// ObserveHelpRequest records an incoming recruitment broadcast so the next
// Tick can decide whether to join, per spec.md §4.6's joiner-side rule.
// The agent calls it on the strategy loop while draining the broadcasts the
// receiver queued; it only records the request and issues no commands.
func (l *Leveler) ObserveHelpRequest(req elevation.HelpRequest, direction int) {
	l.pendingHelp = &incomingHelp{req: req, direction: direction}
}

// Tick runs exactly one iteration of the priority ladder, spec.md §4.6.
func (l *Leveler) Tick(ctx context.Context) error {
	food, err := l.world.FoodCount(ctx)
	if err != nil {
		return err
	}

	if food < levelerEmergencyFood {
		l.elev.Reset()
		l.pendingHelp = nil
		return EmergencyFoodCollection(ctx, l.client, l.world, l.rng)
	}

	if handled, err := l.maybeSoloLevelOne(ctx, food); handled || err != nil {
		return err
	}

	if l.elev.State != elevation.None {
		return l.advanceElevation(ctx)
	}

	if l.pendingHelp != nil {
		pending := *l.pendingHelp
		l.pendingHelp = nil
		if elevation.ShouldAcceptHelp(l.world.Level(), l.elev, food, pending.direction, pending.req) {
			l.elev.BeginJoining(time.Now(), pending.req.RequesterID, pending.direction)
			return l.client.Broadcast(ctx, elevation.JoiningReplyMessage(l.teamName, pending.req.RequesterID, l.uniqueID))
		}
	}

	if ok, err := l.world.HasAllElevationResources(ctx); err != nil {
		return err
	} else if ok && food >= levelerOwnStartFood {
		return l.startOwnElevation(ctx)
	}

	if handled, err := l.collectRareStone(ctx); handled || err != nil {
		return err
	}

	needed, err := l.world.NeededResources(ctx)
	if err != nil {
		return err
	}
	if food >= levelerGatherFood && len(needed) > 0 {
		return l.gatherResource(ctx, needed[0])
	}

	if food < levelerCollectFood {
		return CollectFood(ctx, l.client, l.world, l.rng)
	}

	return Explore(ctx, l.client, l.world, l.rng)
}

// maybeSoloLevelOne implements spec.md §4.6 priority 2: the immediate
// solo level-1 ritual when a linemate is already within reach.
func (l *Leveler) maybeSoloLevelOne(ctx context.Context, food int) (handled bool, err error) {
	if l.world.Level() != 1 || food < 3 {
		return false, nil
	}

	inv, err := l.world.Inventory(ctx)
	if err != nil {
		return false, err
	}
	tileItems, err := l.world.CurrentTileItems(ctx)
	if err != nil {
		return false, err
	}

	onTile := inSlice(tileItems, "linemate")
	inInventory := inv["linemate"] > 0
	if !onTile && !inInventory {
		return false, nil
	}

	if !onTile {
		if err := l.client.Set(ctx, "linemate"); err != nil {
			return true, err
		}
		l.world.Invalidate()
	}

	return true, l.executeIncantation(ctx)
}

func (l *Leveler) executeIncantation(ctx context.Context) error {
	giveUp, err := elevation.Execute(ctx, l.client, l.world, l.elev)
	if err != nil {
		return err
	}
	_ = giveUp
	return nil
}

// startOwnElevation begins a ritual, solo if this level only needs one
// player, multi otherwise (spec.md §4.6's state diagram).
func (l *Leveler) startOwnElevation(ctx context.Context) error {
	req, ok := l.world.ElevationRequirement()
	if !ok {
		return Explore(ctx, l.client, l.world, l.rng)
	}
	if req.Players <= 1 {
		l.elev.StartSolo(time.Now())
		return l.executeIncantation(ctx)
	}
	l.elev.StartGathering(time.Now())
	return l.advanceElevation(ctx)
}

// collectRareStone implements spec.md §4.6 priority 6.
func (l *Leveler) collectRareStone(ctx context.Context) (handled bool, err error) {
	items, err := l.world.CurrentTileItems(ctx)
	if err != nil {
		return false, err
	}
	for _, rare := range protocol.RareStones {
		if inSlice(items, rare) {
			err := l.client.Take(ctx, rare)
			if err != nil && err != client.ErrServerRefusal {
				return true, err
			}
			l.world.Invalidate()
			return true, nil
		}
	}
	for _, rare := range protocol.RareStones {
		idx, err := l.world.FindResourceInVision(ctx, rare)
		if err != nil {
			return false, err
		}
		if idx >= 0 {
			return true, ApplySteps(ctx, l.client, l.world, stepsTowardsTile(idx))
		}
	}
	return false, nil
}

// gatherResource walks toward or takes the given stone.
func (l *Leveler) gatherResource(ctx context.Context, name string) error {
	items, err := l.world.CurrentTileItems(ctx)
	if err != nil {
		return err
	}
	if inSlice(items, name) {
		err := l.client.Take(ctx, name)
		if err != nil && err != client.ErrServerRefusal {
			return err
		}
		l.world.Invalidate()
		return nil
	}

	idx, err := l.world.FindResourceInVision(ctx, name)
	if err != nil {
		return err
	}
	if idx >= 0 {
		return ApplySteps(ctx, l.client, l.world, stepsTowardsTile(idx))
	}
	return Explore(ctx, l.client, l.world, l.rng)
}

// advanceElevation drives the elevation state machine one step, spec.md
// §4.6. It is also responsible for the wall-clock timeout: any non-None
// state aborts after 30s.
func (l *Leveler) advanceElevation(ctx context.Context) error {
	if l.elev.TimedOut(time.Now()) {
		l.elev.Reset()
		return Explore(ctx, l.client, l.world, l.rng)
	}

	switch l.elev.State {
	case elevation.Gathering:
		return l.advanceGathering(ctx)
	case elevation.Broadcasting:
		return l.advanceBroadcasting(ctx)
	case elevation.Waiting:
		return l.advanceWaiting(ctx)
	case elevation.Joining:
		return l.advanceJoining(ctx)
	case elevation.Executing:
		return l.executeIncantation(ctx)
	default:
		return nil
	}
}

func (l *Leveler) advanceGathering(ctx context.Context) error {
	req, ok := l.world.ElevationRequirement()
	if !ok {
		l.elev.Reset()
		return Explore(ctx, l.client, l.world, l.rng)
	}

	inv, err := l.world.Inventory(ctx)
	if err != nil {
		return err
	}
	onTile, err := l.world.ResourcesOnCurrentTile(ctx)
	if err != nil {
		return err
	}

	if !elevation.VerifySite(req, mustPlayers(l.world, ctx), onTile) {
		if err := elevation.PrepareSite(ctx, l.client, req, inv, onTile); err != nil {
			return err
		}
		l.world.Invalidate()
		return nil
	}

	l.elev.BeginBroadcasting(l.world.ActionCounter())
	return l.advanceBroadcasting(ctx)
}

func (l *Leveler) advanceBroadcasting(ctx context.Context) error {
	req, ok := l.world.ElevationRequirement()
	if !ok {
		l.elev.Reset()
		return nil
	}
	tick := l.world.ActionCounter()
	if !l.elev.ShouldRebroadcastHelp(tick, false) && l.elev.LastHelpBroadcastTick != 0 {
		l.elev.BeginWaiting()
		return l.advanceWaiting(ctx)
	}
	l.elev.LastHelpBroadcastTick = tick
	msg := elevation.HelpBroadcastMessage(l.teamName, l.world.Level(), req.Players, l.uniqueID)
	if err := l.client.Broadcast(ctx, msg); err != nil {
		return err
	}
	l.elev.BeginWaiting()
	return nil
}

func (l *Leveler) advanceWaiting(ctx context.Context) error {
	req, ok := l.world.ElevationRequirement()
	if !ok {
		l.elev.Reset()
		return nil
	}
	players, err := l.world.PlayersOnCurrentTile(ctx)
	if err != nil {
		return err
	}
	onTile, err := l.world.ResourcesOnCurrentTile(ctx)
	if err != nil {
		return err
	}
	sufficient := players >= req.Players && elevation.VerifySite(req, players, onTile)
	if sufficient {
		l.elev.BeginExecuting()
		return l.executeIncantation(ctx)
	}

	tick := l.world.ActionCounter()
	if l.elev.ShouldRebroadcastHelp(tick, false) {
		l.elev.LastHelpBroadcastTick = tick
		msg := elevation.HelpBroadcastMessage(l.teamName, l.world.Level(), req.Players, l.uniqueID)
		return l.client.Broadcast(ctx, msg)
	}
	return nil
}

func (l *Leveler) advanceJoining(ctx context.Context) error {
	if l.elev.GaveUpNavigating() {
		l.elev.Reset()
		return Explore(ctx, l.client, l.world, l.rng)
	}

	players, err := l.world.PlayersOnCurrentTile(ctx)
	if err != nil {
		return err
	}
	onTile, err := l.world.ResourcesOnCurrentTile(ctx)
	if err != nil {
		return err
	}
	if elevation.ArrivedAtTarget(players, onTile) {
		l.elev.BeginWaiting()
		return nil
	}

	steps := elevation.StepsForDirection(l.elev.HelpDirection)
	if len(steps) == 0 {
		l.elev.Reset()
		return Explore(ctx, l.client, l.world, l.rng)
	}
	l.elev.StepsTowardTarget++
	return ApplyStep(ctx, l.client, l.world, elevationStepToStrategyStep(steps[0]))
}

func elevationStepToStrategyStep(s elevation.Step) Step {
	switch s {
	case elevation.StepLeft:
		return StepLeft
	case elevation.StepRight:
		return StepRight
	default:
		return StepForward
	}
}

func mustPlayers(m *world.Model, ctx context.Context) int {
	n, err := m.PlayersOnCurrentTile(ctx)
	if err != nil {
		return 1
	}
	return n
}

func inSlice(items []string, target string) bool {
	for _, it := range items {
		if it == target {
			return true
		}
	}
	return false
}
