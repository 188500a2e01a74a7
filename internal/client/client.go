// Package client implements the Protocol Client (spec.md §4.2): typed,
// blocking game operations layered atop internal/transport. It serializes
// every command through a capacity-1 semaphore, the idiom the teacher uses
// for its single-worker call slots (internal/netio/tcp/agent_call.go),
// generalized here from "one call per worker" to "one call per agent
// connection".
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/zappy/zappy-ai/internal/protocol"
	"github.com/zappy/zappy-ai/internal/transport"
)

// Per-command timeouts, spec.md §4.2.
const (
	timeoutMove        = 8 * time.Second
	timeoutLook        = 8 * time.Second
	timeoutInventory   = 3 * time.Second
	timeoutConnectNbr  = 3 * time.Second
	timeoutTake        = 8 * time.Second
	timeoutSet         = 8 * time.Second
	timeoutBroadcast   = 8 * time.Second
	timeoutFork        = 45 * time.Second
	timeoutEject       = 8 * time.Second
	timeoutIncantation = 305 * time.Second
)

// ErrServerRefusal is returned when the server replies `ko` to a command
// expecting `ok`.
var ErrServerRefusal = errors.New("client: server refused command (ko)")

// ErrMalformedResponse is returned when a response doesn't parse as the
// expected shape.
var ErrMalformedResponse = errors.New("client: malformed response")

// Client is the Protocol Client for one agent connection.
type Client struct {
	conn *transport.Conn
	sem  *semaphore.Weighted
}

// New wraps conn. conn must already have completed its handshake and
// started its receiver.
func New(conn *transport.Conn) *Client {
	return &Client{conn: conn, sem: semaphore.NewWeighted(1)}
}

// call serializes one command/response round trip behind the single
// outstanding-command slot (spec.md §4.2 "Concurrency").
func (c *Client) call(ctx context.Context, command string, timeout time.Duration) (string, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("client: acquire command slot: %w", err)
	}
	defer c.sem.Release(1)

	c.conn.DiscardStaleResponse()

	if err := c.conn.Send(command); err != nil {
		return "", fmt.Errorf("client: send %q: %w", command, err)
	}

	resp, err := c.conn.WaitResponse(timeout)
	if err != nil {
		slog.Warn("command timed out or connection closed", "command", command, "error", err)
		return "", err
	}
	slog.Debug("response", "command", command, "response", resp)
	return resp, nil
}

func expectOK(resp string, err error) error {
	if err != nil {
		return err
	}
	if resp == "ko" {
		return ErrServerRefusal
	}
	if resp != "ok" {
		return fmt.Errorf("%w: expected ok/ko, got %q", ErrMalformedResponse, resp)
	}
	return nil
}

// Forward issues a one-tile move in the facing direction.
func (c *Client) Forward(ctx context.Context) error {
	return expectOK(c.call(ctx, "Forward", timeoutMove))
}

// Right rotates the agent one quarter-turn clockwise.
func (c *Client) Right(ctx context.Context) error {
	return expectOK(c.call(ctx, "Right", timeoutMove))
}

// Left rotates the agent one quarter-turn counter-clockwise.
func (c *Client) Left(ctx context.Context) error {
	return expectOK(c.call(ctx, "Left", timeoutMove))
}

// Look requests the agent's current vision and parses it into tiles.
func (c *Client) Look(ctx context.Context) ([]protocol.Tile, error) {
	resp, err := c.call(ctx, "Look", timeoutLook)
	if err != nil {
		return nil, err
	}
	tiles, err := protocol.ParseLook(resp)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return tiles, nil
}

// Inventory requests and parses the agent's current inventory.
func (c *Client) Inventory(ctx context.Context) (map[string]int, error) {
	resp, err := c.call(ctx, "Inventory", timeoutInventory)
	if err != nil {
		return nil, err
	}
	inv, err := protocol.ParseInventory(resp)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return inv, nil
}

// ConnectNbr returns the server's count of unused team slots.
func (c *Client) ConnectNbr(ctx context.Context) (int, error) {
	resp, err := c.call(ctx, "Connect_nbr", timeoutConnectNbr)
	if err != nil {
		return 0, err
	}
	var n int
	if _, scanErr := fmt.Sscanf(resp, "%d", &n); scanErr != nil {
		return 0, fmt.Errorf("%w: expected integer, got %q", ErrMalformedResponse, resp)
	}
	return n, nil
}

// Take attempts to pick up one unit of item from the current tile.
func (c *Client) Take(ctx context.Context, item string) error {
	return expectOK(c.call(ctx, "Take "+item, timeoutTake))
}

// Set drops one unit of item from inventory onto the current tile.
func (c *Client) Set(ctx context.Context, item string) error {
	return expectOK(c.call(ctx, "Set "+item, timeoutSet))
}

// Broadcast sends text to every agent on the map.
func (c *Client) Broadcast(ctx context.Context, text string) error {
	return expectOK(c.call(ctx, protocol.FormatBroadcastCommand(text), timeoutBroadcast))
}

// Fork requests a new, unused team slot.
func (c *Client) Fork(ctx context.Context) error {
	return expectOK(c.call(ctx, "Fork", timeoutFork))
}

// Eject pushes every other player off the current tile.
func (c *Client) Eject(ctx context.Context) error {
	return expectOK(c.call(ctx, "Eject", timeoutEject))
}

// Incantation starts the elevation ritual. It is the one two-response
// exception in the protocol (spec.md §4.2): success is "Elevation
// underway" followed, after an arbitrary delay, by "Current level: N".
// Both legs share the single 305s budget and are treated as one atomic
// operation by the caller.
func (c *Client) Incantation(ctx context.Context) (newLevel int, err error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return 0, fmt.Errorf("client: acquire command slot: %w", err)
	}
	defer c.sem.Release(1)

	c.conn.DiscardStaleResponse()

	if err := c.conn.Send("Incantation"); err != nil {
		return 0, fmt.Errorf("client: send Incantation: %w", err)
	}

	deadline := time.Now().Add(timeoutIncantation)

	first, err := c.conn.WaitResponse(time.Until(deadline))
	if err != nil {
		return 0, err
	}
	if first == "ko" {
		return 0, ErrServerRefusal
	}
	if !protocol.IsIncantationUnderway(first) {
		return 0, fmt.Errorf("%w: expected Elevation underway, got %q", ErrMalformedResponse, first)
	}

	second, err := c.conn.WaitResponse(time.Until(deadline))
	if err != nil {
		return 0, err
	}
	level, ok := protocol.ParseCurrentLevel(second)
	if !ok {
		return 0, fmt.Errorf("%w: expected Current level: N, got %q", ErrMalformedResponse, second)
	}
	return level, nil
}
