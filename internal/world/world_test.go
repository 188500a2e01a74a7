package world

import (
	"bufio"
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zappy/zappy-ai/internal/client"
	"github.com/zappy/zappy-ai/internal/transport"
)

type harness struct {
	ln     net.Listener
	server net.Conn
	reader *bufio.Reader
	model  *Model
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
		h.send(t, "2")
		h.send(t, "10 10")
	}()

	_, err = conn.Handshake("red")
	require.NoError(t, err)
	conn.StartReceiver(transport.EventHandlers{})

	h.model = New(client.New(conn), 10, 10, 2)
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

func TestInventory_CachesWithinMaxAge(t *testing.T) {
	h := newHarness(t)
	defer h.close()

	go func() {
		require.Equal(t, "Inventory", h.recv(t))
		h.send(t, "[food 10, linemate 1]")
	}()

	inv, err := h.model.Inventory(context.Background())
	require.NoError(t, err)
	require.Equal(t, 10, inv["food"])

	// Still within inventoryMaxAge (2 ticks); no second request expected.
	h.model.Tick()
	h.model.Tick()
	inv, err = h.model.Inventory(context.Background())
	require.NoError(t, err)
	require.Equal(t, 10, inv["food"])
}

func TestInventory_RefreshesAfterMaxAge(t *testing.T) {
	h := newHarness(t)
	defer h.close()

	calls := make(chan struct{}, 2)
	go func() {
		require.Equal(t, "Inventory", h.recv(t))
		h.send(t, "[food 10]")
		calls <- struct{}{}
		require.Equal(t, "Inventory", h.recv(t))
		h.send(t, "[food 9]")
		calls <- struct{}{}
	}()

	_, err := h.model.Inventory(context.Background())
	require.NoError(t, err)
	<-calls

	h.model.Tick()
	h.model.Tick()
	h.model.Tick()

	inv, err := h.model.Inventory(context.Background())
	require.NoError(t, err)
	require.Equal(t, 9, inv["food"])
	<-calls
}

func TestInvalidate_ForcesRefresh(t *testing.T) {
	h := newHarness(t)
	defer h.close()

	calls := make(chan struct{}, 2)
	go func() {
		require.Equal(t, "Inventory", h.recv(t))
		h.send(t, "[food 10]")
		calls <- struct{}{}
		require.Equal(t, "Inventory", h.recv(t))
		h.send(t, "[food 9]")
		calls <- struct{}{}
	}()

	_, err := h.model.Inventory(context.Background())
	require.NoError(t, err)
	<-calls

	h.model.Invalidate()
	inv, err := h.model.Inventory(context.Background())
	require.NoError(t, err)
	require.Equal(t, 9, inv["food"])
	<-calls
}

func TestCurrentTileItems_ExcludesPlayer(t *testing.T) {
	h := newHarness(t)
	defer h.close()

	go func() {
		require.Equal(t, "Look", h.recv(t))
		h.send(t, "[player linemate food,,]")
	}()

	items, err := h.model.CurrentTileItems(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"linemate", "food"}, items)
}

func TestPlayersOnCurrentTile_MinimumOne(t *testing.T) {
	h := newHarness(t)
	defer h.close()

	go func() {
		require.Equal(t, "Look", h.recv(t))
		h.send(t, "[food,,]")
	}()

	n, err := h.model.PlayersOnCurrentTile(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestNeededResources_Level1(t *testing.T) {
	h := newHarness(t)
	defer h.close()

	go func() {
		require.Equal(t, "Inventory", h.recv(t))
		h.send(t, "[food 10]")
	}()

	needed, err := h.model.NeededResources(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"linemate"}, needed)
}

func TestHasAllElevationResources_True(t *testing.T) {
	h := newHarness(t)
	defer h.close()

	go func() {
		require.Equal(t, "Inventory", h.recv(t))
		h.send(t, "[food 10, linemate 1]")
	}()

	ok, err := h.model.HasAllElevationResources(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
}

func TestFindResourceInVision_SmallestIndex(t *testing.T) {
	h := newHarness(t)
	defer h.close()

	go func() {
		require.Equal(t, "Look", h.recv(t))
		h.send(t, "[player,,food,,food]")
	}()

	idx, err := h.model.FindResourceInVision(context.Background(), "food")
	require.NoError(t, err)
	require.Equal(t, 2, idx)
}
