package call

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ashureev/prepwise/internal/voice"
)

// Options wires a Controller to its collaborators. Generator is required for
// GenerateCall, Voice for InterviewCall. Observer and Logger are optional.
type Options struct {
	Voice       VoiceSession
	AssistantID string
	Generator   Generator
	Feedback    FeedbackService
	Navigator   Navigator
	Observer    Observer
	Logger      *slog.Logger
}

// Controller drives one call from Inactive to Finished.
//
// Voice events and user actions may arrive on different goroutines; the
// controller serialises them with one mutex. The transition into Finished
// happens at most once, so the follow-up (feedback, navigation) runs once.
type Controller struct {
	opts   Options
	logger *slog.Logger

	mu          sync.Mutex
	state       State
	call        Call
	ctx         context.Context
	transcript  Transcript
	speaking    bool
	unsubscribe func()

	pending sync.WaitGroup
	done    chan struct{}
}

// NewController creates a controller in the Inactive state.
func NewController(opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		opts:   opts,
		logger: logger,
		state:  StateInactive,
		done:   make(chan struct{}),
	}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsSpeaking reports whether the assistant is currently speaking.
func (c *Controller) IsSpeaking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speaking
}

// Latest returns the most recent finalized utterance text.
func (c *Controller) Latest() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transcript.Latest()
}

// Transcript returns a copy of the accumulated utterances.
func (c *Controller) Transcript() []Utterance {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transcript.Utterances()
}

// Start begins call. Precondition failures return an error without leaving
// Inactive. Failures while connecting reset the controller to Inactive and
// are returned so the caller can surface them; Start may then be retried.
//
// ctx bounds the whole call, including the feedback request made when it
// finishes.
func (c *Controller) Start(ctx context.Context, call Call) error {
	if err := call.validate(); err != nil {
		c.logger.Error("Missing required data for call", "error", err)
		return err
	}

	c.mu.Lock()
	if c.state != StateInactive {
		c.mu.Unlock()
		return ErrNotInactive
	}
	c.call = call
	c.ctx = ctx
	c.setStateLocked(StateConnecting)
	c.mu.Unlock()

	return call.start(ctx, c)
}

// Disconnect ends a connecting or active call and tells the voice session to
// tear down without waiting for it. It is a no-op in any other state.
func (c *Controller) Disconnect() {
	f, ok := c.markFinished("disconnect")
	if !ok {
		return
	}
	c.followUp(f)
}

// Close releases the voice-session listener. It does not change state.
func (c *Controller) Close() {
	c.mu.Lock()
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// Wait blocks until follow-up work started by the transition into Finished
// has completed.
func (c *Controller) Wait() {
	c.pending.Wait()
}

// Done is closed once the call has finished and its follow-up has completed.
// It is never closed for a call that did not reach Finished.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

func (c *Controller) handleEvent(ev voice.Event) {
	switch e := ev.(type) {
	case voice.CallStart:
		c.sessionConnected()
	case voice.CallEnd:
		c.sessionEnded("call-end")
	case voice.Message:
		c.appendMessage(e)
	case voice.SpeechStart:
		c.logger.Debug("speech start")
		c.setSpeaking(true)
	case voice.SpeechEnd:
		c.logger.Debug("speech end")
		c.setSpeaking(false)
	case voice.Error:
		if e.MeetingEnded() {
			c.sessionEnded("meeting ended")
			return
		}
		c.logger.Warn("Voice session error", "error", e.Message)
	}
}

func (c *Controller) sessionConnected() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateConnecting {
		return
	}
	c.setStateLocked(StateActive)
}

func (c *Controller) sessionEnded(reason string) {
	f, ok := c.markFinished(reason)
	if !ok {
		return
	}
	c.followUp(f)
}

func (c *Controller) appendMessage(msg voice.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateActive {
		return
	}
	u, ok := c.transcript.Append(msg)
	if !ok {
		return
	}
	if c.opts.Observer != nil {
		c.opts.Observer.UtteranceAdded(u, c.transcript.Latest())
	}
}

func (c *Controller) setSpeaking(speaking bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.live() || c.speaking == speaking {
		return
	}
	c.speaking = speaking
	if c.opts.Observer != nil {
		c.opts.Observer.SpeakingChanged(speaking)
	}
}

// subscribe registers the controller with the voice session. It reports false,
// leaving nothing registered, when the call finished in the meantime.
func (c *Controller) subscribe() bool {
	unsubscribe := c.opts.Voice.On(c.handleEvent)
	c.mu.Lock()
	if !c.state.live() {
		c.mu.Unlock()
		unsubscribe()
		return false
	}
	c.unsubscribe = unsubscribe
	c.mu.Unlock()
	return true
}

// fail returns a connecting call to Inactive and releases its listener.
func (c *Controller) fail(err error) error {
	c.mu.Lock()
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	if c.state == StateConnecting {
		c.setStateLocked(StateInactive)
	}
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	return err
}

// finishing captures what the follow-up of a finished call needs.
type finishing struct {
	call       Call
	ctx        context.Context
	transcript []Utterance
}

// markFinished moves a live call to Finished and releases whatever the call
// opened, whatever the reason. It reports false when the call was not live,
// which makes every terminal transition happen once.
func (c *Controller) markFinished(reason string) (finishing, bool) {
	c.mu.Lock()
	if !c.state.live() {
		c.mu.Unlock()
		return finishing{}, false
	}
	c.setStateLocked(StateFinished)
	if c.speaking {
		c.speaking = false
		if c.opts.Observer != nil {
			c.opts.Observer.SpeakingChanged(false)
		}
	}
	f := finishing{
		call:       c.call,
		ctx:        c.ctx,
		transcript: c.transcript.Utterances(),
	}
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	c.logger.Info("Call finished", "reason", reason, "utterances", len(f.transcript))
	f.call.hangUp(c)
	return f, true
}

// followUp runs the variant's finish step without blocking event delivery.
func (c *Controller) followUp(f finishing) {
	ctx := f.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	c.pending.Add(1)
	go func() {
		defer c.pending.Done()
		defer close(c.done)
		f.call.finish(ctx, c, f.transcript)
	}()
}

func (c *Controller) navigate(path string) {
	if c.opts.Navigator == nil {
		c.logger.Warn("No navigator configured", "path", path)
		return
	}
	c.opts.Navigator.Navigate(path)
}

func (c *Controller) setStateLocked(s State) {
	c.state = s
	if c.opts.Observer != nil {
		c.opts.Observer.StateChanged(s)
	}
}
