// Package voice provides a client for the real-time voice-agent platform.
package voice

import "strings"

// MeetingEndedMarker is the text the platform puts in error events when the
// remote side has already torn the call down.
const MeetingEndedMarker = "Meeting has ended"

// Transcript types carried by transcript messages.
const (
	TranscriptPartial = "partial"
	TranscriptFinal   = "final"
)

// MessageTypeTranscript is the message type of transcript payloads.
const MessageTypeTranscript = "transcript"

// Event is one notification delivered to listeners. The set of events is
// closed: CallStart, CallEnd, Message, SpeechStart, SpeechEnd and Error.
type Event interface {
	voiceEvent()
}

// CallStart is delivered once the platform has connected the call.
type CallStart struct{}

// CallEnd is delivered when the platform ends the call.
type CallEnd struct{}

// Message carries a conversation payload. Only transcript messages are
// produced today.
type Message struct {
	Type           string
	Role           string
	TranscriptType string
	Transcript     string
}

// IsFinalTranscript reports whether m is a finalized transcript turn.
func (m Message) IsFinalTranscript() bool {
	return m.Type == MessageTypeTranscript && m.TranscriptType == TranscriptFinal
}

// SpeechStart is delivered when the assistant starts speaking.
type SpeechStart struct{}

// SpeechEnd is delivered when the assistant stops speaking.
type SpeechEnd struct{}

// Error is a generic session error.
type Error struct {
	Message string
}

// MeetingEnded reports whether the error signals that the remote session is gone.
func (e Error) MeetingEnded() bool {
	return strings.Contains(e.Message, MeetingEndedMarker)
}

func (CallStart) voiceEvent()   {}
func (CallEnd) voiceEvent()     {}
func (Message) voiceEvent()     {}
func (SpeechStart) voiceEvent() {}
func (SpeechEnd) voiceEvent()   {}
func (Error) voiceEvent()       {}

// Listener receives events. Listeners are invoked sequentially from the
// client's read goroutine in arrival order.
type Listener func(Event)
