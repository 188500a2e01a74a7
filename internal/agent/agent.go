// Package agent wires transport, the Protocol Client, the World Model,
// the Role Arbiter, the Survivor/Leveler strategies, and the Spawner into
// one running process, and owns the strategy loop (spec.md §5). Grounded
// on the teacher's top-level server wiring (cmd/scouter-server/main.go
// builds one struct holding every subsystem and runs it to completion),
// adapted from a many-connection server to one outbound game connection.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zappy/zappy-ai/internal/client"
	"github.com/zappy/zappy-ai/internal/config"
	"github.com/zappy/zappy-ai/internal/elevation"
	"github.com/zappy/zappy-ai/internal/role"
	"github.com/zappy/zappy-ai/internal/spawn"
	"github.com/zappy/zappy-ai/internal/strategy"
	"github.com/zappy/zappy-ai/internal/transport"
	"github.com/zappy/zappy-ai/internal/world"
)

// statusLogInterval is how often (in ticks) the agent logs a status line,
// cheap enough to run a long session without flooding the log.
const statusLogInterval = 50

// Agent owns one connection, its cached world view, and the strategy
// currently driving it.
type Agent struct {
	cfg    *config.AgentConfig
	conn   *transport.Conn
	client *client.Client
	world  *world.Model
	arb    *role.Arbiter

	survivor *strategy.Survivor
	leveler  *strategy.Leveler
	spawner  *spawn.Spawner

	rng *rand.Rand

	pendingRoleEvents []roleEvent
	pendingHelp       []helpEvent
}

type roleEvent struct {
	team, payload, senderID string
}

type helpEvent struct {
	req       elevation.HelpRequest
	direction int
}

// Run dials the server, performs the handshake, and runs the strategy loop
// until death, a connection error, or ctx cancellation. It returns nil on
// a clean shutdown (spec.md §6 exit code 0 paths).
func Run(ctx context.Context, cfg *config.AgentConfig, binaryPath string) error {
	conn, err := transport.Dial(cfg.Host, cfg.Port)
	if err != nil {
		return fmt.Errorf("agent: %w", err)
	}
	defer conn.Close()

	hs, err := conn.Handshake(cfg.TeamName)
	if err != nil {
		return fmt.Errorf("agent: %w", err)
	}

	a := &Agent{
		cfg:  cfg,
		conn: conn,
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	a.client = client.New(conn)
	a.world = world.New(a.client, hs.MapWidth, hs.MapHeight, hs.OpenTeamSlots)
	a.arb = role.New(cfg.TeamName, cfg.UniqueID)
	a.spawner = spawn.New(binaryPath, peerArgs(cfg))

	conn.StartReceiver(transport.EventHandlers{
		OnBroadcast: a.handleBroadcast,
		OnEject:     a.handleEject,
		OnDead:      a.handleDead,
	})

	a.survivor = strategy.NewSurvivor(a.client, a.world, a.spawner, a.rng)
	a.leveler = strategy.NewLeveler(a.client, a.world, cfg.TeamName, cfg.UniqueID, a.rng)

	// The strategy loop and the context-cancellation watcher are the two
	// independent activities spec.md §5 requires to run concurrently
	// without blocking each other; errgroup supervises both. The watcher
	// exits on whichever comes first — caller cancellation or the loop's
	// own completion — so a clean shutdown never waits on a goroutine
	// that has nothing left to watch for.
	loopDone := make(chan struct{})
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case <-gctx.Done():
			conn.Close()
		case <-loopDone:
		}
		return nil
	})

	var runErr error
	g.Go(func() error {
		defer close(loopDone)
		runErr = a.runLoop(gctx)
		return runErr
	})

	_ = g.Wait()
	return runErr
}

// peerArgs reconstructs the CLI arguments a spawned peer needs to join the
// same game and team (spec.md §4.8 / §5 "Processes").
func peerArgs(cfg *config.AgentConfig) []string {
	return []string{
		"-p", fmt.Sprintf("%d", cfg.Port),
		"-n", cfg.TeamName,
		"-h", cfg.Host,
	}
}

var errDead = errors.New("agent: died")

func (a *Agent) runLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-a.conn.Done():
			if a.conn.State() == transport.Dead {
				return nil
			}
			return a.conn.Err()
		default:
		}

		if err := a.tick(ctx); err != nil {
			if errors.Is(err, errDead) {
				return nil
			}
			if errors.Is(err, transport.ErrClosed) {
				return a.conn.Err()
			}
			if errors.Is(err, transport.ErrTimeout) {
				slog.Warn("command timed out", "error", err)
				continue
			}
			slog.Warn("tick error, continuing", "error", err)
		}

		a.world.Tick()
		if a.world.ActionCounter()%statusLogInterval == 0 {
			a.logStatus(ctx)
		}
	}
}

func (a *Agent) tick(ctx context.Context) error {
	if a.conn.State() == transport.Dead {
		return errDead
	}

	a.drainRoleEvents()

	if a.arb.Role() == role.Undetermined {
		return a.arbitrate(ctx)
	}

	a.drainHelpEvents()

	switch a.arb.Role() {
	case role.Survivor:
		return a.survivor.Tick(ctx)
	case role.Leveler:
		return a.leveler.Tick(ctx)
	}
	return nil
}

// arbitrate drives the Role Arbiter while role is still Undetermined
// (spec.md §4.4): send the one-shot probe, then wait out the listening
// window before deciding.
func (a *Agent) arbitrate(ctx context.Context) error {
	tick := a.world.ActionCounter()

	if a.arb.ShouldSendProbe(tick) {
		if err := a.client.Broadcast(ctx, a.arb.ProbeMessage()); err != nil {
			return err
		}
		a.arb.RecordProbeSent(tick)
		return nil
	}

	if a.arb.ReadyToDecide(tick) {
		decided := a.arb.Decide(tick)
		slog.Info("role decided", "role", decided.String(), "tick", tick)
		return nil
	}

	return strategy.Explore(ctx, a.client, a.world, a.rng)
}

// handleBroadcast runs on the receiver goroutine (spec.md §5): it must not
// issue game commands, only record state for the next tick to act on.
func (a *Agent) handleBroadcast(direction int, text string) {
	team, payload, ok := splitTeamScoped(text)
	if !ok {
		return
	}
	senderID := extractSenderID(payload)
	a.pendingRoleEvents = append(a.pendingRoleEvents, roleEvent{team: team, payload: payload, senderID: senderID})

	if req, ok := elevation.ParseHelpRequest(payload); ok && team == a.cfg.TeamName {
		a.pendingHelp = append(a.pendingHelp, helpEvent{req: req, direction: direction})
	}
}

func (a *Agent) handleEject(direction int) {
	slog.Info("ejected", "direction", direction)
}

func (a *Agent) handleDead() {
	slog.Info("agent died")
}

func (a *Agent) drainRoleEvents() {
	for _, ev := range a.pendingRoleEvents {
		if reply := a.arb.ObserveBroadcast(ev.team, ev.payload, ev.senderID); reply != "" {
			if err := a.client.Broadcast(context.Background(), reply); err != nil {
				slog.Warn("failed to reply to role check", "error", err)
			}
		}
	}
	a.pendingRoleEvents = a.pendingRoleEvents[:0]
}

func (a *Agent) drainHelpEvents() {
	if a.leveler == nil {
		a.pendingHelp = a.pendingHelp[:0]
		return
	}
	for _, ev := range a.pendingHelp {
		a.leveler.ObserveHelpRequest(ev.req, ev.direction)
	}
	a.pendingHelp = a.pendingHelp[:0]
}

// splitTeamScoped parses the "[<team>]<payload>" convention, spec.md §6.
func splitTeamScoped(text string) (team, payload string, ok bool) {
	if !strings.HasPrefix(text, "[") {
		return "", "", false
	}
	end := strings.Index(text, "]")
	if end < 0 {
		return "", "", false
	}
	return text[1:end], text[end+1:], true
}

func extractSenderID(payload string) string {
	idx := strings.LastIndex(payload, "_FROM_")
	if idx < 0 {
		return ""
	}
	return payload[idx+len("_FROM_"):]
}

func (a *Agent) logStatus(ctx context.Context) {
	food, _ := a.world.FoodCount(ctx)
	slog.Info("status",
		"tick", a.world.ActionCounter(),
		"role", a.arb.Role().String(),
		"level", a.world.Level(),
		"food", food,
		"open_team_slots", a.world.OpenTeamSlots(),
		"children_alive", a.spawner.AliveCount(),
	)
}
