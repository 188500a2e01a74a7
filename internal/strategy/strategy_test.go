package strategy

import (
	"bufio"
	"context"
	"math/rand"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zappy/zappy-ai/internal/client"
	"github.com/zappy/zappy-ai/internal/elevation"
	"github.com/zappy/zappy-ai/internal/spawn"
	"github.com/zappy/zappy-ai/internal/transport"
	"github.com/zappy/zappy-ai/internal/world"
)

type harness struct {
	ln     net.Listener
	server net.Conn
	reader *bufio.Reader
	client *client.Client
	model  *world.Model
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		require.NoError(t, err)
		accepted <- c
	}()

	port := ln.Addr().(*net.TCPAddr).Port
	conn, err := transport.Dial("127.0.0.1", port)
	require.NoError(t, err)

	server := <-accepted
	h := &harness{ln: ln, server: server, reader: bufio.NewReader(server)}

	go func() {
		h.send(t, "WELCOME")
		h.recv(t)
		h.send(t, "3")
		h.send(t, "10 10")
	}()

	_, err = conn.Handshake("red")
	require.NoError(t, err)
	conn.StartReceiver(transport.EventHandlers{})

	h.client = client.New(conn)
	h.model = world.New(h.client, 10, 10, 3)
	return h
}

func (h *harness) send(t *testing.T, line string) {
	t.Helper()
	_, err := h.server.Write([]byte(line + "\n"))
	require.NoError(t, err)
}

func (h *harness) recv(t *testing.T) string {
	t.Helper()
	line, err := h.reader.ReadString('\n')
	require.NoError(t, err)
	return line[:len(line)-1]
}

func (h *harness) close() {
	h.ln.Close()
	h.server.Close()
}

func TestSurvivor_CriticalFoodTriggersEmergencyCollection(t *testing.T) {
	h := newHarness(t)
	defer h.close()

	s := NewSurvivor(h.client, h.model, spawn.New("/bin/true", nil), rand.New(rand.NewSource(1)))

	go func() {
		require.Equal(t, "Inventory", h.recv(t))
		h.send(t, "[food 2]")
		require.Equal(t, "Look", h.recv(t))
		h.send(t, "[food]")
		require.Equal(t, "Take food", h.recv(t))
		h.send(t, "ok")
	}()

	require.NoError(t, s.Tick(context.Background()))
}

func TestSurvivor_SpawnsWhenFoodAbundantAndSlotsOpen(t *testing.T) {
	h := newHarness(t)
	defer h.close()

	s := NewSurvivor(h.client, h.model, spawn.New("/bin/true", nil), rand.New(rand.NewSource(1)))

	go func() {
		require.Equal(t, "Inventory", h.recv(t))
		h.send(t, "[food 25]")
	}()

	require.NoError(t, s.Tick(context.Background()))
	require.Greater(t, s.spawner.AliveCount(), 0)
}

func TestLeveler_EmergencyFoodResetsElevationContext(t *testing.T) {
	h := newHarness(t)
	defer h.close()

	l := NewLeveler(h.client, h.model, "red", "id1", rand.New(rand.NewSource(1)))
	l.elev.State = elevation.Gathering

	go func() {
		require.Equal(t, "Inventory", h.recv(t))
		h.send(t, "[food 3]")
		require.Equal(t, "Look", h.recv(t))
		h.send(t, "[food]")
		require.Equal(t, "Take food", h.recv(t))
		h.send(t, "ok")
	}()

	require.NoError(t, l.Tick(context.Background()))
	require.Equal(t, elevation.None, l.elev.State)
}

func TestLeveler_SoloLevelOneRitual(t *testing.T) {
	h := newHarness(t)
	defer h.close()

	l := NewLeveler(h.client, h.model, "red", "id1", rand.New(rand.NewSource(1)))

	go func() {
		require.Equal(t, "Inventory", h.recv(t))
		h.send(t, "[food 10, linemate 1]")
		require.Equal(t, "Look", h.recv(t))
		h.send(t, "[player linemate]")
		require.Equal(t, "Incantation", h.recv(t))
		h.send(t, "Elevation underway")
		h.send(t, "Current level: 2")
	}()

	require.NoError(t, l.Tick(context.Background()))
	require.Equal(t, 2, h.model.Level())
}

func TestLeveler_RareStoneTakesPriorityOverCommonGathering(t *testing.T) {
	h := newHarness(t)
	defer h.close()

	l := NewLeveler(h.client, h.model, "red", "id1", rand.New(rand.NewSource(1)))
	h.model.SetLevel(3)

	go func() {
		require.Equal(t, "Inventory", h.recv(t))
		h.send(t, "[food 20]")
		require.Equal(t, "Look", h.recv(t))
		h.send(t, "[player phiras]")
		require.Equal(t, "Take phiras", h.recv(t))
		h.send(t, "ok")
	}()

	require.NoError(t, l.Tick(context.Background()))
}
