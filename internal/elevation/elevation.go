// Package elevation implements the Elevation Coordinator (spec.md §4.6): a
// leveler-only state machine driving the multi-agent incantation ritual —
// gathering stones, recruiting peers via broadcast, navigating to a
// requester, and executing the incantation. Grounded on the teacher's
// dispatcher state-machine shape (internal/core/dispatcher.go drives a
// fixed set of named states off incoming events) adapted from a
// message-processing pipeline to a wall-clock-bounded ritual.
package elevation

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/zappy/zappy-ai/internal/client"
	"github.com/zappy/zappy-ai/internal/protocol"
	"github.com/zappy/zappy-ai/internal/world"
)

// State is one stage of the elevation ritual, spec.md §4.6.
type State int

const (
	None State = iota
	Gathering
	Broadcasting
	Waiting
	Joining
	Executing
)

func (s State) String() string {
	switch s {
	case Gathering:
		return "gathering"
	case Broadcasting:
		return "broadcasting"
	case Waiting:
		return "waiting"
	case Joining:
		return "joining"
	case Executing:
		return "executing"
	default:
		return "none"
	}
}

const (
	maxAttempts           = 2
	ritualTimeout         = 30 * time.Second
	broadcastRepeatTicks  = 10
	waitingRepeatTicks    = 15
	joinGiveUpAfterSteps  = 40
	joinerMinFood         = 5
)

// Context is the leveler's elevation state, spec.md §3. Invariant: when
// State == None, every optional field is zeroed and Attempts ≤ 2.
type Context struct {
	State                 State
	Attempts              int
	StartedAt             time.Time
	HelpTargetID          string
	HelpDirection         int
	StepsTowardTarget     int
	LastHelpBroadcastTick int
}

// Reset zeroes every field, Attempts included, and returns to None. Callers
// that need to keep the retry count save and restore Attempts themselves.
func (c *Context) Reset() {
	*c = Context{}
}

// IsIdle reports whether the coordinator is between rituals.
func (c *Context) IsIdle() bool { return c.State == None }

// TimedOut reports whether the ritual has exceeded its 30s wall-clock
// budget (spec.md §4.6 "Timeout").
func (c *Context) TimedOut(now time.Time) bool {
	if c.State == None {
		return false
	}
	return now.Sub(c.StartedAt) > ritualTimeout
}

// Step is one navigation action toward a broadcasting peer.
type Step int

const (
	StepLeft Step = iota
	StepRight
	StepForward
)

// directionSteps is the fixed K=1..8 → action-sequence mapping, spec.md
// §4.6. K=2 is documented as "forward (or right+forward; random)" in the
// source; this port always takes the deterministic forward leg, which is
// one valid resolution of that documented ambiguity.
var directionSteps = map[int][]Step{
	1: {StepLeft, StepForward},
	2: {StepForward},
	3: {StepRight, StepForward},
	4: {StepRight, StepForward},
	5: {StepRight, StepRight, StepForward},
	6: {StepLeft, StepForward},
	7: {StepLeft, StepForward},
	8: {StepLeft, StepForward},
}

// StepsForDirection returns the fixed action sequence for broadcast
// direction K (1..8). K=0 (co-located) and out-of-range K return nil.
func StepsForDirection(k int) []Step {
	return directionSteps[k]
}

// HelpBroadcastMessage formats the recruitment broadcast, spec.md §4.6:
// `[<team>]ELEV_FROM_L<cur>_TO_L<cur+1>_NEED_<k>_ID<id>` where k is
// players_required - 1 (the requester already counts as one).
func HelpBroadcastMessage(team string, curLevel, playersRequired int, requesterID string) string {
	return fmt.Sprintf("[%s]ELEV_FROM_L%d_TO_L%d_NEED_%d_ID%s",
		team, curLevel, curLevel+1, playersRequired-1, requesterID)
}

// JoiningReplyMessage formats a joiner's acceptance reply, spec.md §4.6.
func JoiningReplyMessage(team, requesterID, selfID string) string {
	return fmt.Sprintf("[%s]RESP_JOINING_TO_%s_FROM_%s", team, requesterID, selfID)
}

// HelpRequest is a parsed ELEV_FROM_... broadcast payload.
type HelpRequest struct {
	FromLevel       int
	ToLevel         int
	PlayersNeeded   int
	RequesterID     string
}

// ParseHelpRequest parses an ELEV_FROM_L<a>_TO_L<b>_NEED_<k>_ID<id>
// payload. ok is false if the payload doesn't match that shape.
func ParseHelpRequest(payload string) (req HelpRequest, ok bool) {
	const prefix = "ELEV_FROM_L"
	if !strings.HasPrefix(payload, prefix) {
		return HelpRequest{}, false
	}
	rest := payload[len(prefix):]

	toIdx := strings.Index(rest, "_TO_L")
	if toIdx < 0 {
		return HelpRequest{}, false
	}
	fromStr := rest[:toIdx]
	rest = rest[toIdx+len("_TO_L"):]

	needIdx := strings.Index(rest, "_NEED_")
	if needIdx < 0 {
		return HelpRequest{}, false
	}
	toStr := rest[:needIdx]
	rest = rest[needIdx+len("_NEED_"):]

	idIdx := strings.Index(rest, "_ID")
	if idIdx < 0 {
		return HelpRequest{}, false
	}
	needStr := rest[:idIdx]
	id := rest[idIdx+len("_ID"):]

	from, err1 := strconv.Atoi(fromStr)
	to, err2 := strconv.Atoi(toStr)
	need, err3 := strconv.Atoi(needStr)
	if err1 != nil || err2 != nil || err3 != nil || id == "" {
		return HelpRequest{}, false
	}
	return HelpRequest{FromLevel: from, ToLevel: to, PlayersNeeded: need, RequesterID: id}, true
}

// ShouldAcceptHelp implements the joiner-side acceptance rule, spec.md
// §4.6: own level == req's FromLevel, own context idle, own food ≥ 5, and
// the reported direction is non-zero (0 means already co-located and needs
// no navigation decision here).
func ShouldAcceptHelp(ownLevel int, ctx *Context, ownFood, direction int, req HelpRequest) bool {
	return ownLevel == req.FromLevel && ctx.IsIdle() && ownFood >= joinerMinFood && direction != 0
}

// BeginJoining transitions the context into Joining, recording the
// requester and direction to navigate toward.
func (c *Context) BeginJoining(now time.Time, requesterID string, direction int) {
	c.Reset()
	c.State = Joining
	c.StartedAt = now
	c.HelpTargetID = requesterID
	c.HelpDirection = direction
}

// ArrivedAtTarget reports whether the current tile looks like the
// requester's ritual site: at least 2 players and at least 1 resource
// (spec.md §4.6 "Arrival is detected when...").
func ArrivedAtTarget(playersOnTile int, resourcesOnTile map[string]int) bool {
	if playersOnTile < 2 {
		return false
	}
	total := 0
	for _, n := range resourcesOnTile {
		total += n
	}
	return total >= 1
}

// GaveUpNavigating reports whether the joiner exceeded the 40-step budget
// (spec.md §4.6 "Give up after 40 unsuccessful steps.").
func (c *Context) GaveUpNavigating() bool {
	return c.State == Joining && c.StepsTowardTarget >= joinGiveUpAfterSteps
}

// ShouldRebroadcastHelp reports whether this tick should re-send the help
// broadcast: every 10 ticks while Broadcasting, every 15 while Waiting with
// insufficient peers (spec.md §4.6).
func (c *Context) ShouldRebroadcastHelp(tick int, peersSufficient bool) bool {
	switch c.State {
	case Broadcasting:
		return tick-c.LastHelpBroadcastTick >= broadcastRepeatTicks
	case Waiting:
		return !peersSufficient && tick-c.LastHelpBroadcastTick >= waitingRepeatTicks
	default:
		return false
	}
}

// StartSolo transitions None → Executing for a single-player ritual
// (spec.md's state diagram "none --start, solo?--> executing").
func (c *Context) StartSolo(now time.Time) {
	attempts := c.Attempts
	c.Reset()
	c.Attempts = attempts
	c.State = Executing
	c.StartedAt = now
}

// StartGathering transitions None → Gathering for a multi-player ritual
// that still needs site preparation.
func (c *Context) StartGathering(now time.Time) {
	attempts := c.Attempts
	c.Reset()
	c.Attempts = attempts
	c.State = Gathering
	c.StartedAt = now
}

// BeginBroadcasting moves Gathering → Broadcasting once the site is ready.
func (c *Context) BeginBroadcasting(tick int) {
	c.State = Broadcasting
	c.LastHelpBroadcastTick = tick
}

// BeginWaiting moves Broadcasting → Waiting once the recruitment broadcast
// lands successfully.
func (c *Context) BeginWaiting() {
	c.State = Waiting
}

// BeginExecuting moves Waiting/Joining → Executing once enough peers are
// co-located and the site is verified.
func (c *Context) BeginExecuting() {
	c.State = Executing
}

// ResolveOutcome applies an incantation result, spec.md's state diagram:
// success resets to None and zeroes attempts (the caller bumps level);
// failure increments attempts and gives up after the cap. A failed attempt
// that hasn't hit the cap keeps its incremented Attempts count (so the next
// retry sees it) — only giving up, or succeeding, zeroes it.
func (c *Context) ResolveOutcome(succeeded bool) (giveUp bool) {
	if succeeded {
		c.Reset()
		return false
	}
	attempts := c.Attempts + 1
	if attempts >= maxAttempts {
		c.Reset()
		return true
	}
	c.Reset()
	c.Attempts = attempts
	return false
}

// siteShortfall computes, per stone in canonical order, how many more
// units must be dropped on the tile to meet req, given inventory held and
// what's already on the tile.
func siteShortfall(req protocol.ElevationRequirement, inventory, onTile map[string]int) map[string]int {
	shortfall := make(map[string]int)
	for _, stone := range protocol.StoneNames {
		need := req.Count(stone) - onTile[stone]
		if need <= 0 {
			continue
		}
		have := inventory[stone]
		if have > need {
			have = need
		}
		if have > 0 {
			shortfall[stone] = have
		}
	}
	return shortfall
}

// PrepareSite drops the exact shortfall of each required stone from
// inventory onto the current tile, in canonical order, pausing briefly
// between drops (spec.md §4.6 "Site preparation").
func PrepareSite(ctx context.Context, c *client.Client, req protocol.ElevationRequirement, inventory, onTile map[string]int) error {
	shortfall := siteShortfall(req, inventory, onTile)
	for _, stone := range protocol.StoneNames {
		n, ok := shortfall[stone]
		if !ok {
			continue
		}
		for i := 0; i < n; i++ {
			if err := c.Set(ctx, stone); err != nil {
				return fmt.Errorf("elevation: dropping %s: %w", stone, err)
			}
			time.Sleep(50 * time.Millisecond)
		}
	}
	return nil
}

// VerifySite recounts players and stones on the current tile against req,
// per spec.md §4.6 "Verification before incantation".
func VerifySite(req protocol.ElevationRequirement, playersOnTile int, onTile map[string]int) bool {
	if playersOnTile < req.Players {
		return false
	}
	for _, stone := range protocol.StoneNames {
		if onTile[stone] < req.Count(stone) {
			return false
		}
	}
	return true
}

// Execute runs the incantation and applies its outcome to ctx and the
// world model.
func Execute(ctx context.Context, c *client.Client, m *world.Model, elevCtx *Context) (giveUp bool, err error) {
	level, incErr := c.Incantation(ctx)
	if incErr != nil {
		if incErr == client.ErrServerRefusal {
			return elevCtx.ResolveOutcome(false), nil
		}
		return false, incErr
	}
	m.SetLevel(level)
	elevCtx.ResolveOutcome(true)
	return false, nil
}
