// Package chat owns the conversation: the transcript, its truncation
// policy, and the coordinator that drives provider completions.
package chat

import (
	"time"

	"github.com/matiasleandrokruk/chatd/internal/infra/llm"
)

// Turn is one recorded conversation entry. Usage is nil when the provider
// reported no token counts for the reply.
type Turn struct {
	Role    string
	Content string
	Usage   *llm.TokenUsage
	At      time.Time
}

// Transcript is the ordered conversation history. Invariant: it contains
// exactly one system turn, always at index 0. Not safe for concurrent use;
// the Coordinator serializes access.
type Transcript struct {
	turns []Turn
}

// NewTranscript creates a transcript holding only the system turn.
func NewTranscript(systemMessage string) *Transcript {
	t := &Transcript{}
	t.Reset(systemMessage)
	return t
}

// Reset discards every turn and reinstates a single system turn.
func (t *Transcript) Reset(systemMessage string) {
	t.turns = []Turn{{Role: llm.RoleSystem, Content: systemMessage, At: time.Now().UTC()}}
}

// Append adds a turn at the end.
func (t *Transcript) Append(turn Turn) {
	t.turns = append(t.turns, turn)
}

// Turns returns a copy of all turns, system turn included.
func (t *Transcript) Turns() []Turn {
	out := make([]Turn, len(t.turns))
	copy(out, t.turns)
	return out
}

// History returns a copy of the conversation excluding the system turn,
// in chronological order.
func (t *Transcript) History() []Turn {
	out := make([]Turn, 0, len(t.turns))
	for _, turn := range t.turns {
		if turn.Role == llm.RoleSystem {
			continue
		}
		out = append(out, turn)
	}
	return out
}

// Messages converts the transcript into the provider request shape.
func (t *Transcript) Messages() []llm.Message {
	msgs := make([]llm.Message, len(t.turns))
	for i, turn := range t.turns {
		msgs[i] = llm.Message{Role: turn.Role, Content: turn.Content}
	}
	return msgs
}

// Len returns the total number of turns, system turn included.
func (t *Transcript) Len() int {
	return len(t.turns)
}

// replace swaps the backing slice. Used after truncation.
func (t *Transcript) replace(turns []Turn) {
	t.turns = turns
}

// Reduce returns a truncated copy of turns keeping the system turn plus the
// most recent target non-system turns, or nil when the transcript already
// fits. Pure function: the input slice is never mutated.
//
// Pairing policy: the retained window never starts on an assistant turn —
// when the cut would orphan an assistant reply from its user turn, that
// reply is dropped as well, so replayed context always opens with a user
// message.
func Reduce(turns []Turn, target int) []Turn {
	if target < 0 {
		target = 0
	}

	var system []Turn
	rest := turns
	if len(turns) > 0 && turns[0].Role == llm.RoleSystem {
		system = turns[:1]
		rest = turns[1:]
	}

	if len(rest) <= target {
		return nil
	}

	window := rest[len(rest)-target:]
	if len(window) > 0 && window[0].Role == llm.RoleAssistant {
		window = window[1:]
	}

	out := make([]Turn, 0, len(system)+len(window))
	out = append(out, system...)
	out = append(out, window...)
	return out
}
