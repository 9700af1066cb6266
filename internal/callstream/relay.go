package callstream

import (
	"sync"

	"github.com/ashureev/prepwise/internal/call"
)

// outMessage is a server-to-browser message.
type outMessage struct {
	Type     string `json:"type"`
	State    string `json:"state,omitempty"`
	Role     string `json:"role,omitempty"`
	Content  string `json:"content,omitempty"`
	Latest   string `json:"latest,omitempty"`
	Speaking *bool  `json:"speaking,omitempty"`
	Path     string `json:"path,omitempty"`
	Message  string `json:"message,omitempty"`
}

// relay queues controller notifications for the socket writer. It never
// blocks, since the controller calls it while holding its lock.
type relay struct {
	mu     sync.Mutex
	queue  []outMessage
	notify chan struct{}
}

var (
	_ call.Observer  = (*relay)(nil)
	_ call.Navigator = (*relay)(nil)
)

func newRelay() *relay {
	return &relay{notify: make(chan struct{}, 1)}
}

func (r *relay) push(m outMessage) {
	r.mu.Lock()
	r.queue = append(r.queue, m)
	r.mu.Unlock()

	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// drain returns and clears the queued messages.
func (r *relay) drain() []outMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.queue
	r.queue = nil
	return out
}

func (r *relay) StateChanged(state call.State) {
	r.push(outMessage{Type: "state", State: state.String()})
}

func (r *relay) UtteranceAdded(u call.Utterance, latest string) {
	r.push(outMessage{Type: "transcript", Role: string(u.Role), Content: u.Content, Latest: latest})
}

func (r *relay) SpeakingChanged(speaking bool) {
	r.push(outMessage{Type: "speaking", Speaking: &speaking})
}

func (r *relay) Navigate(path string) {
	r.push(outMessage{Type: "navigate", Path: path})
}

func (r *relay) Error(message string) {
	r.push(outMessage{Type: "error", Message: message})
}
