package call

import "github.com/ashureev/prepwise/internal/voice"

// Utterance is one finalized spoken turn.
type Utterance struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Transcript accumulates finalized utterances in arrival order.
// It is not safe for concurrent use; the Controller serialises access.
type Transcript struct {
	utterances []Utterance
	latest     string
}

// Append stores msg when it is a final transcript turn from a known role and
// reports whether it was stored. Partial transcripts are dropped.
func (t *Transcript) Append(msg voice.Message) (Utterance, bool) {
	if !msg.IsFinalTranscript() {
		return Utterance{}, false
	}
	role, ok := ParseRole(msg.Role)
	if !ok {
		return Utterance{}, false
	}

	u := Utterance{Role: role, Content: msg.Transcript}
	t.utterances = append(t.utterances, u)
	t.latest = u.Content
	return u, true
}

// Latest returns the text of the most recent utterance, or "" if none.
func (t *Transcript) Latest() string {
	return t.latest
}

// Len returns the number of stored utterances.
func (t *Transcript) Len() int {
	return len(t.utterances)
}

// Utterances returns a copy of the stored utterances.
func (t *Transcript) Utterances() []Utterance {
	out := make([]Utterance, len(t.utterances))
	copy(out, t.utterances)
	return out
}
