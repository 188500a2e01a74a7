// Package role implements the Role Arbiter (spec.md §4.4): a one-shot,
// monotonic decision between Survivor and Leveler, made by probing the
// team's broadcast channel during a short startup window. Grounded on the
// teacher's one-shot state-machine idiom in internal/login (a login
// attempt transitions through a fixed sequence of states exactly once and
// never reverts), adapted from an auth handshake to a broadcast census.
package role

import "fmt"

// Role is the agent's team-coordination role, spec.md §3.
type Role int

const (
	Undetermined Role = iota
	Survivor
	Leveler
)

func (r Role) String() string {
	switch r {
	case Survivor:
		return "survivor"
	case Leveler:
		return "leveler"
	default:
		return "undetermined"
	}
}

// probeWindowTicks is the number of ticks the arbiter listens for peer
// role-check replies after broadcasting its own probe (spec.md §4.4).
const probeWindowTicks = 2

// survivorEligibleBelowTick is the action-counter ceiling under which a
// silent probe window still yields Survivor (spec.md §4.4).
const survivorEligibleBelowTick = 15

// Arbiter decides and remembers this agent's role. It is not safe for
// concurrent use; the strategy loop owns it exclusively, same as the World
// Model.
type Arbiter struct {
	role              Role
	teamName          string
	uniqueID          string
	probeSent         bool
	probeSentAtTick   int
	responsesReceived int
}

// New constructs an Arbiter for the given team and this agent's unique id.
func New(teamName, uniqueID string) *Arbiter {
	return &Arbiter{role: Undetermined, teamName: teamName, uniqueID: uniqueID}
}

// Role returns the current role (Undetermined until Decide resolves it).
func (a *Arbiter) Role() Role { return a.role }

// ProbeMessage is the wire payload for the one-shot role-check probe,
// spec.md §4.4.
func (a *Arbiter) ProbeMessage() string {
	return fmt.Sprintf("[%s]ROLE_CHECK_SURVIVOR_EXISTS_FROM_%s", a.teamName, a.uniqueID)
}

// survivorReplyMessage is what an already-decided Survivor sends back to a
// later joiner's probe.
func (a *Arbiter) survivorReplyMessage() string {
	return fmt.Sprintf("[%s]SURVIVOR_EXISTS_FROM_%s", a.teamName, a.uniqueID)
}

// ShouldSendProbe reports whether this tick should emit the one-shot
// probe: role still undetermined, probe not yet sent, action_counter < 3
// (spec.md §4.4).
func (a *Arbiter) ShouldSendProbe(actionCounter int) bool {
	return a.role == Undetermined && !a.probeSent && actionCounter < 3
}

// RecordProbeSent marks the probe as sent, at the given tick, starting the
// listening window.
func (a *Arbiter) RecordProbeSent(actionCounter int) {
	a.probeSent = true
	a.probeSentAtTick = actionCounter
}

// ObserveBroadcast feeds one incoming team broadcast to the arbiter. It
// counts toward role_responses_received when the payload signals that a
// survivor already exists — either a peer's own role-check probe or an
// already-decided Survivor's reply (spec.md §8 S3: B must count A's
// SURVIVOR_EXISTS reply, not just a bare probe). It also returns a
// non-empty reply string when this agent has already decided Survivor and
// should answer the peer's probe (spec.md §4.4 "A Survivor replies...").
func (a *Arbiter) ObserveBroadcast(team, payload, senderID string) (reply string) {
	if team != a.teamName {
		return ""
	}
	if senderID == a.uniqueID {
		return ""
	}
	isProbe := containsRoleCheckProbe(payload)
	if !isProbe && !containsSurvivorExistsReply(payload) {
		return ""
	}

	if a.role == Undetermined && a.probeSent {
		a.responsesReceived++
	}
	if a.role == Survivor && isProbe {
		return a.survivorReplyMessage()
	}
	return ""
}

func containsRoleCheckProbe(payload string) bool {
	const marker = "ROLE_CHECK_SURVIVOR_EXISTS"
	return len(payload) >= len(marker) && indexOf(payload, marker) >= 0
}

// containsSurvivorExistsReply reports whether payload is an already-decided
// Survivor's reply to a role-check probe, spec.md §4.4's
// "[<team>]SURVIVOR_EXISTS_FROM_<id>" wire form.
func containsSurvivorExistsReply(payload string) bool {
	const marker = "SURVIVOR_EXISTS_FROM_"
	return len(payload) >= len(marker) && indexOf(payload, marker) >= 0
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}

// ReadyToDecide reports whether the listening window has elapsed and
// Decide should be called this tick.
func (a *Arbiter) ReadyToDecide(actionCounter int) bool {
	return a.role == Undetermined && a.probeSent && actionCounter-a.probeSentAtTick >= probeWindowTicks
}

// Decide resolves Undetermined to Survivor or Leveler per spec.md §4.4's
// rule, and is irreversible: once role != Undetermined, subsequent calls
// are no-ops.
func (a *Arbiter) Decide(actionCounter int) Role {
	if a.role != Undetermined {
		return a.role
	}
	if a.responsesReceived == 0 && actionCounter < survivorEligibleBelowTick {
		a.role = Survivor
	} else {
		a.role = Leveler
	}
	return a.role
}
