package call

import "fmt"

// systemPrompt is the fixed instruction given to the reply generator. The
// call reason is interpolated once at construction.
const systemPrompt = `You are Swizz, an AI phone assistant. You are calling on behalf of a user about: %q.

Your goals:
1. Navigate phone menus and wait on hold
2. Explain the user's issue clearly to human representatives
3. Detect when a human answers (vs automated systems)
4. Be polite, professional, and helpful
5. If you detect a human representative, immediately notify the system

Keep responses concise and natural. If you hear hold music or automated messages, acknowledge briefly and wait.`

// Conversation is the ordered turn history for one live session, plus the
// monotone human-detected flag. It is owned by the session's single
// pipeline dispatcher; it is not safe for concurrent use.
type Conversation struct {
	turns         []Turn
	humanDetected bool
}

// NewConversation creates the conversation state for a session, seeded
// with the system instruction describing the call reason.
func NewConversation(callReason string) *Conversation {
	return &Conversation{
		turns: []Turn{{
			Role:    RoleSystem,
			Content: fmt.Sprintf(systemPrompt, callReason),
		}},
	}
}

// AppendUser appends a transcribed caller utterance as a user turn.
func (c *Conversation) AppendUser(text string) {
	c.turns = append(c.turns, Turn{Role: RoleUser, Content: text})
}

// AppendAssistant appends a generated reply as an assistant turn.
func (c *Conversation) AppendAssistant(text string) {
	c.turns = append(c.turns, Turn{Role: RoleAssistant, Content: text})
}

// History returns a copy of the turn history in append order.
func (c *Conversation) History() []Turn {
	out := make([]Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

// Len returns the number of turns including the system turn.
func (c *Conversation) Len() int {
	return len(c.turns)
}

// HumanDetected reports whether a live human has been detected on this
// call. The flag never reverts to false.
func (c *Conversation) HumanDetected() bool {
	return c.humanDetected
}

// MarkHumanDetected sets the human-detected flag and reports whether this
// call flipped it. Only the first call returns true.
func (c *Conversation) MarkHumanDetected() bool {
	if c.humanDetected {
		return false
	}
	c.humanDetected = true
	return true
}
