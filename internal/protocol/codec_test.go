package protocol

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInventoryRoundTrip(t *testing.T) {
	cases := []map[string]int{
		{},
		{"food": 10},
		{"food": 3, "linemate": 1, "thystame": 0},
		{"food": 1, "linemate": 2, "deraumere": 3, "sibur": 4, "mendiane": 5, "phiras": 6, "thystame": 7},
	}

	for _, want := range cases {
		wire := FormatInventory(want)
		got, err := ParseInventory(wire)
		require.NoError(t, err)
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("round trip mismatch: want %v, got %v (wire=%q)", want, got, wire)
		}
	}
}

func TestLookRoundTrip(t *testing.T) {
	cases := [][]Tile{
		{{}},
		{{"player", "linemate"}, {}, {"food"}},
		{{"player"}, {"food", "food"}, {}, {}, {"linemate"}, {}, {}, {}, {"egg"}},
	}

	for _, want := range cases {
		wire := FormatLook(want)
		got, err := ParseLook(wire)
		require.NoError(t, err)
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("round trip mismatch: want %v, got %v (wire=%q)", want, got, wire)
		}
	}
}

func TestParseLook_TileZeroIsSelf(t *testing.T) {
	tiles, err := ParseLook("[player linemate,,,,,,,,]")
	require.NoError(t, err)
	require.Equal(t, Tile{"player", "linemate"}, tiles[0])
	require.Len(t, tiles, 9)
}

func TestFormatBroadcastCommand_IncludesQuotes(t *testing.T) {
	got := FormatBroadcastCommand("hello")
	require.Equal(t, `Broadcast "hello"`, got)
}

func TestClassify_Broadcast(t *testing.T) {
	ev := Classify(`message 3, "[red]ROLE_CHECK_SURVIVOR_EXISTS_FROM_ab12cd34"`)
	require.Equal(t, EventBroadcast, ev.Kind)
	require.Equal(t, 3, ev.Direction)
	require.Equal(t, "[red]ROLE_CHECK_SURVIVOR_EXISTS_FROM_ab12cd34", ev.Text)
}

func TestClassify_Eject(t *testing.T) {
	ev := Classify("eject: 5")
	require.Equal(t, EventEject, ev.Kind)
	require.Equal(t, 5, ev.Direction)
}

func TestClassify_Dead(t *testing.T) {
	ev := Classify("dead")
	require.Equal(t, EventDead, ev.Kind)
}

func TestClassify_ResponsesAreNotEvents(t *testing.T) {
	for _, line := range []string{"ok", "ko", "[food 3]", "Elevation underway", "Current level: 2", "3", "10 10"} {
		ev := Classify(line)
		require.Equal(t, NotEvent, ev.Kind, "line %q should not classify as an event", line)
	}
}

func TestParseCurrentLevel(t *testing.T) {
	n, ok := ParseCurrentLevel("Current level: 4")
	require.True(t, ok)
	require.Equal(t, 4, n)

	_, ok = ParseCurrentLevel("ko")
	require.False(t, ok)
}
