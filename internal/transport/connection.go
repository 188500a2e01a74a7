// Package transport owns the one TCP connection an agent keeps with the
// game server: dialing, the handshake, and the Message Router (spec.md
// §4.1) that splits inbound lines between asynchronous events and the
// single outstanding command's response.
//
// The receiver/strategy split follows the teacher's netio/tcp connection
// handling shape (one goroutine owns the socket's read side; callers never
// touch it directly) generalized to a single persistent connection instead
// of a pool, and to a line-oriented text protocol instead of zbum's
// length-prefixed binary packs.
package transport

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zappy/zappy-ai/internal/protocol"
)

// ErrClosed is returned by WaitResponse and Send once the connection has
// been torn down (I/O error, EOF, or local shutdown).
var ErrClosed = errors.New("transport: connection closed")

// ErrTimeout is returned by WaitResponse when no response arrives within
// the requested duration.
var ErrTimeout = errors.New("transport: response timeout")

// ErrHandshake is returned when the server deviates from the strict
// handshake order in spec.md §6.
var ErrHandshake = errors.New("transport: handshake deviation")

// Handshake is the information spec.md §6's four-step handshake yields.
type Handshake struct {
	OpenTeamSlots int
	MapWidth      int
	MapHeight     int
}

// EventHandlers are invoked by the receiver goroutine as asynchronous
// events arrive. Per spec.md §5, these must not issue game commands — they
// may only update subscriber state or enqueue work for the strategy loop.
type EventHandlers struct {
	OnBroadcast func(direction int, text string)
	OnEject     func(direction int)
	OnDead      func()
}

// Conn is one agent's connection to the game server.
type Conn struct {
	conn    net.Conn
	reader  *bufio.Reader
	writeMu sync.Mutex

	state atomic.Int32

	mailbox  *mailbox
	done     chan struct{}
	closeErr atomic.Value
}

// Dial opens the TCP connection. It does not perform the handshake.
func Dial(host string, port int) (*Conn, error) {
	c := &Conn{
		mailbox: newMailbox(),
		done:    make(chan struct{}),
	}
	c.setState(Connecting)

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	conn, err := net.DialTimeout("tcp", addr, 10*time.Second)
	if err != nil {
		c.setState(Closed)
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}

	c.conn = conn
	c.reader = bufio.NewReader(conn)
	slog.Info("connected", "addr", addr)
	return c, nil
}

func (c *Conn) setState(s State) { c.state.Store(int32(s)) }

// State returns the connection's current lifecycle state.
func (c *Conn) State() State { return State(c.state.Load()) }

// Handshake performs the strict four-step handshake in spec.md §6. It
// reads the first three lines directly off the socket, ahead of the
// Router, since their meaning is purely positional. Any deviation aborts
// the connection.
func (c *Conn) Handshake(teamName string) (Handshake, error) {
	c.setState(Handshaking)

	line, err := c.readLine(5 * time.Second)
	if err != nil {
		return Handshake{}, fmt.Errorf("%w: reading WELCOME: %v", ErrHandshake, err)
	}
	if line != "WELCOME" {
		return Handshake{}, fmt.Errorf("%w: expected WELCOME, got %q", ErrHandshake, line)
	}

	if err := c.writeLine(teamName); err != nil {
		return Handshake{}, fmt.Errorf("%w: sending team name: %v", ErrHandshake, err)
	}

	line, err = c.readLine(5 * time.Second)
	if err != nil {
		return Handshake{}, fmt.Errorf("%w: reading slot count: %v", ErrHandshake, err)
	}
	slots, err := strconv.Atoi(line)
	if err != nil {
		return Handshake{}, fmt.Errorf("%w: expected slot count, got %q", ErrHandshake, line)
	}

	line, err = c.readLine(5 * time.Second)
	if err != nil {
		return Handshake{}, fmt.Errorf("%w: reading map dimensions: %v", ErrHandshake, err)
	}
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return Handshake{}, fmt.Errorf("%w: expected map dimensions, got %q", ErrHandshake, line)
	}
	w, errW := strconv.Atoi(fields[0])
	h, errH := strconv.Atoi(fields[1])
	if errW != nil || errH != nil {
		return Handshake{}, fmt.Errorf("%w: malformed map dimensions %q", ErrHandshake, line)
	}

	c.setState(Ready)
	slog.Info("handshake complete", "open_team_slots", slots, "map_width", w, "map_height", h)
	return Handshake{OpenTeamSlots: slots, MapWidth: w, MapHeight: h}, nil
}

// StartReceiver launches the background goroutine that reads, frames, and
// classifies every subsequent line, per spec.md §4.1. It returns
// immediately; the goroutine runs until the connection closes.
func (c *Conn) StartReceiver(handlers EventHandlers) {
	go c.receiveLoop(handlers)
}

func (c *Conn) receiveLoop(handlers EventHandlers) {
	for {
		line, err := c.reader.ReadString('\n')
		if err != nil {
			c.teardown(err)
			return
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}

		ev := protocol.Classify(line)
		switch ev.Kind {
		case protocol.EventBroadcast:
			if handlers.OnBroadcast != nil {
				handlers.OnBroadcast(ev.Direction, ev.Text)
			}
		case protocol.EventEject:
			if handlers.OnEject != nil {
				handlers.OnEject(ev.Direction)
			}
		case protocol.EventDead:
			c.setState(Dead)
			if handlers.OnDead != nil {
				handlers.OnDead()
			}
		default:
			c.mailbox.put(line)
		}
	}
}

func (c *Conn) teardown(err error) {
	if c.State() != Dead {
		c.setState(Closed)
	}
	c.closeErr.Store(err)
	close(c.done)
}

// Send writes one command line to the server, per spec.md §6 ("All
// messages are UTF-8, terminated by a single \n").
func (c *Conn) Send(command string) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	return c.writeLine(command)
}

// WaitResponse blocks until a response arrives, the timeout elapses, or
// the connection closes — the only suspension points in the system
// (spec.md §5).
func (c *Conn) WaitResponse(timeout time.Duration) (string, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case line := <-c.mailbox.ch:
		return line, nil
	case <-timer.C:
		return "", ErrTimeout
	case <-c.done:
		return "", ErrClosed
	}
}

// DiscardStaleResponse drops any response left in the mailbox from a
// previously timed-out command, per spec.md §8's boundary behavior.
func (c *Conn) DiscardStaleResponse() {
	c.mailbox.drain()
}

// Done returns a channel closed once the connection has torn down.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Err returns the error that caused teardown, if any.
func (c *Conn) Err() error {
	if v := c.closeErr.Load(); v != nil {
		return v.(error)
	}
	return nil
}

// Close performs a local shutdown of the connection.
func (c *Conn) Close() error {
	select {
	case <-c.done:
	default:
		c.teardown(ErrClosed)
	}
	return c.conn.Close()
}

func (c *Conn) writeLine(s string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err := c.conn.Write([]byte(s + "\n"))
	if err != nil {
		return fmt.Errorf("transport: write: %w", err)
	}
	slog.Debug("sent", "command", s)
	return nil
}

func (c *Conn) readLine(timeout time.Duration) (string, error) {
	c.conn.SetReadDeadline(time.Now().Add(timeout))
	defer c.conn.SetReadDeadline(time.Time{})

	line, err := c.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
