package elevation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zappy/zappy-ai/internal/protocol"
)

func TestHelpBroadcastMessage_Format(t *testing.T) {
	got := HelpBroadcastMessage("red", 2, 2, "abc12345")
	require.Equal(t, "[red]ELEV_FROM_L2_TO_L3_NEED_1_IDabc12345", got)
}

func TestParseHelpRequest_RoundTrip(t *testing.T) {
	msg := HelpBroadcastMessage("red", 2, 2, "abc12345")
	payload := msg[len("[red]"):]
	req, ok := ParseHelpRequest(payload)
	require.True(t, ok)
	require.Equal(t, HelpRequest{FromLevel: 2, ToLevel: 3, PlayersNeeded: 1, RequesterID: "abc12345"}, req)
}

func TestParseHelpRequest_RejectsMalformed(t *testing.T) {
	_, ok := ParseHelpRequest("SOMETHING_ELSE")
	require.False(t, ok)
}

func TestShouldAcceptHelp(t *testing.T) {
	req := HelpRequest{FromLevel: 2, ToLevel: 3, PlayersNeeded: 1, RequesterID: "abc"}
	idle := &Context{}
	require.True(t, ShouldAcceptHelp(2, idle, 6, 3, req))
	require.False(t, ShouldAcceptHelp(3, idle, 6, 3, req), "wrong level")
	require.False(t, ShouldAcceptHelp(2, idle, 4, 3, req), "too little food")
	require.False(t, ShouldAcceptHelp(2, idle, 6, 0, req), "co-located direction is not a navigation target")

	busy := &Context{State: Gathering}
	require.False(t, ShouldAcceptHelp(2, busy, 6, 3, req), "not idle")
}

func TestStepsForDirection_CoversAllEightCases(t *testing.T) {
	for k := 1; k <= 8; k++ {
		steps := StepsForDirection(k)
		require.NotEmpty(t, steps, "direction %d", k)
	}
	require.Nil(t, StepsForDirection(0))
}

func TestContext_TimedOut(t *testing.T) {
	c := &Context{State: Waiting, StartedAt: time.Now().Add(-31 * time.Second)}
	require.True(t, c.TimedOut(time.Now()))

	fresh := &Context{State: Waiting, StartedAt: time.Now()}
	require.False(t, fresh.TimedOut(time.Now()))

	idle := &Context{State: None, StartedAt: time.Now().Add(-time.Hour)}
	require.False(t, idle.TimedOut(time.Now()))
}

func TestResolveOutcome_Success_ResetsAndZeroesAttempts(t *testing.T) {
	c := &Context{State: Executing, Attempts: 1}
	giveUp := c.ResolveOutcome(true)
	require.False(t, giveUp)
	require.Equal(t, None, c.State)
	require.Equal(t, 0, c.Attempts)
}

func TestResolveOutcome_FailureIncrementsAttempts(t *testing.T) {
	c := &Context{State: Executing}
	giveUp := c.ResolveOutcome(false)
	require.False(t, giveUp)
	require.Equal(t, None, c.State)
	require.Equal(t, 1, c.Attempts)
}

func TestResolveOutcome_GivesUpAtCap(t *testing.T) {
	c := &Context{State: Executing, Attempts: 1}
	giveUp := c.ResolveOutcome(false)
	require.True(t, giveUp)
}

func TestArrivedAtTarget(t *testing.T) {
	require.True(t, ArrivedAtTarget(2, map[string]int{"linemate": 1}))
	require.False(t, ArrivedAtTarget(1, map[string]int{"linemate": 1}), "needs a second player")
	require.False(t, ArrivedAtTarget(2, map[string]int{}), "needs a resource")
}

func TestVerifySite(t *testing.T) {
	req := protocol.ElevationRequirements[2]
	onTile := map[string]int{"linemate": 1, "deraumere": 1, "sibur": 1}
	require.True(t, VerifySite(req, 2, onTile))
	require.False(t, VerifySite(req, 1, onTile), "short on players")

	short := map[string]int{"linemate": 1}
	require.False(t, VerifySite(req, 2, short), "short on stones")
}

func TestSiteShortfall_AccountsForWhatsAlreadyOnTile(t *testing.T) {
	req := protocol.ElevationRequirements[3]
	inventory := map[string]int{"linemate": 5, "sibur": 1, "phiras": 3}
	onTile := map[string]int{"linemate": 1}

	shortfall := siteShortfall(req, inventory, onTile)
	require.Equal(t, 1, shortfall["linemate"])
	require.Equal(t, 1, shortfall["sibur"])
	require.Equal(t, 2, shortfall["phiras"])
}

func TestShouldRebroadcastHelp(t *testing.T) {
	c := &Context{State: Broadcasting, LastHelpBroadcastTick: 0}
	require.False(t, c.ShouldRebroadcastHelp(5, false))
	require.True(t, c.ShouldRebroadcastHelp(10, false))

	waiting := &Context{State: Waiting, LastHelpBroadcastTick: 0}
	require.False(t, waiting.ShouldRebroadcastHelp(15, true), "already sufficient peers")
	require.True(t, waiting.ShouldRebroadcastHelp(15, false))
}

func TestBeginJoining_ResetsPriorState(t *testing.T) {
	c := &Context{State: Gathering, Attempts: 1}
	now := time.Now()
	c.BeginJoining(now, "requester1", 3)
	require.Equal(t, Joining, c.State)
	require.Equal(t, "requester1", c.HelpTargetID)
	require.Equal(t, 3, c.HelpDirection)
	require.Equal(t, 0, c.Attempts, "joining resets attempts since it's a fresh ritual role")
}

func TestGaveUpNavigating(t *testing.T) {
	c := &Context{State: Joining, StepsTowardTarget: 40}
	require.True(t, c.GaveUpNavigating())

	fresh := &Context{State: Joining, StepsTowardTarget: 39}
	require.False(t, fresh.GaveUpNavigating())
}
