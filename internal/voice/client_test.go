package voice

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type platformScript func(t *testing.T, conn *websocket.Conn)

func newPlatform(t *testing.T, script platformScript) (*httptest.Server, <-chan wireMessage, <-chan string) {
	t.Helper()
	starts := make(chan wireMessage, 1)
	auth := make(chan string, 1)
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth <- r.Header.Get("Authorization")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer func() { _ = conn.Close() }()

		var start wireMessage
		if err := conn.ReadJSON(&start); err != nil {
			t.Errorf("read start: %v", err)
			return
		}
		starts <- start
		script(t, conn)
	}))
	t.Cleanup(srv.Close)
	return srv, starts, auth
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func collect(c *Client) (<-chan Event, func()) {
	events := make(chan Event, 32)
	unsubscribe := c.On(func(ev Event) { events <- ev })
	return events, unsubscribe
}

func next(t *testing.T, events <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestClientStartSendsAssistantAndVariables(t *testing.T) {
	srv, starts, auth := newPlatform(t, func(t *testing.T, conn *websocket.Conn) {
		_ = conn.WriteJSON(map[string]any{"type": "call-end"})
	})

	c := NewClient(Config{URL: wsURL(srv), APIKey: "secret"})
	events, unsubscribe := collect(c)
	defer unsubscribe()

	vars := map[string]any{"questions": "- Q1\n- Q2", "username": "Ada"}
	if err := c.Start(context.Background(), "assistant-1", vars); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if got := <-auth; got != "Bearer secret" {
		t.Fatalf("unexpected authorization header %q", got)
	}
	start := <-starts
	if start.Type != "start" || start.AssistantID != "assistant-1" {
		t.Fatalf("unexpected start message %+v", start)
	}
	if start.AssistantOverrides == nil || start.AssistantOverrides.VariableValues["questions"] != "- Q1\n- Q2" {
		t.Fatalf("unexpected variables %+v", start.AssistantOverrides)
	}

	if _, ok := next(t, events).(CallEnd); !ok {
		t.Fatal("expected CallEnd")
	}
}

func TestClientDecodesEvents(t *testing.T) {
	srv, _, _ := newPlatform(t, func(t *testing.T, conn *websocket.Conn) {
		msgs := []map[string]any{
			{"type": "call-start"},
			{"type": "speech-update", "status": "started"},
			{"type": "transcript", "role": "assistant", "transcriptType": "partial", "transcript": "Hel"},
			{"type": "transcript", "role": "assistant", "transcriptType": "final", "transcript": "Hello"},
			{"type": "speech-update", "status": "stopped"},
			{"type": "model-output"},
			{"type": "error", "error": "something odd"},
			{"type": "call-end"},
		}
		for _, m := range msgs {
			if err := conn.WriteJSON(m); err != nil {
				t.Errorf("write: %v", err)
				return
			}
		}
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	})

	c := NewClient(Config{URL: wsURL(srv)})
	events, unsubscribe := collect(c)
	defer unsubscribe()

	if err := c.Start(context.Background(), "assistant-1", nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if _, ok := next(t, events).(CallStart); !ok {
		t.Fatal("expected CallStart")
	}
	if _, ok := next(t, events).(SpeechStart); !ok {
		t.Fatal("expected SpeechStart")
	}
	partial, ok := next(t, events).(Message)
	if !ok || partial.IsFinalTranscript() {
		t.Fatalf("expected partial transcript, got %+v", partial)
	}
	final, ok := next(t, events).(Message)
	if !ok || !final.IsFinalTranscript() || final.Transcript != "Hello" || final.Role != "assistant" {
		t.Fatalf("expected final transcript, got %+v", final)
	}
	if _, ok := next(t, events).(SpeechEnd); !ok {
		t.Fatal("expected SpeechEnd")
	}
	errEv, ok := next(t, events).(Error)
	if !ok || errEv.MeetingEnded() {
		t.Fatalf("expected plain error, got %+v", errEv)
	}
	if _, ok := next(t, events).(CallEnd); !ok {
		t.Fatal("expected CallEnd")
	}

	// The normal close after call-end must not produce a second end event.
	select {
	case ev := <-events:
		t.Fatalf("unexpected extra event %#v", ev)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestClientAbnormalCloseReportsMeetingEnded(t *testing.T) {
	srv, _, _ := newPlatform(t, func(t *testing.T, conn *websocket.Conn) {
		_ = conn.WriteJSON(map[string]any{"type": "call-start"})
		// Drop the connection without a close frame.
		_ = conn.UnderlyingConn().Close()
	})

	c := NewClient(Config{URL: wsURL(srv)})
	events, unsubscribe := collect(c)
	defer unsubscribe()

	if err := c.Start(context.Background(), "assistant-1", nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, ok := next(t, events).(CallStart); !ok {
		t.Fatal("expected CallStart")
	}
	errEv, ok := next(t, events).(Error)
	if !ok || !errEv.MeetingEnded() {
		t.Fatalf("expected meeting-ended error, got %#v", errEv)
	}
}

func TestClientStopSendsStopAndIsIdempotent(t *testing.T) {
	stopped := make(chan string, 1)
	srv, _, _ := newPlatform(t, func(t *testing.T, conn *websocket.Conn) {
		var msg wireMessage
		if err := conn.ReadJSON(&msg); err == nil {
			stopped <- msg.Type
		}
	})

	c := NewClient(Config{URL: wsURL(srv)})
	events, unsubscribe := collect(c)
	defer unsubscribe()

	if err := c.Start(context.Background(), "assistant-1", nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := c.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := c.Stop(); err != nil {
		t.Fatalf("second Stop failed: %v", err)
	}

	select {
	case typ := <-stopped:
		if typ != "stop" {
			t.Fatalf("expected stop message, got %q", typ)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for stop message")
	}

	// Local stop does not surface a connection error.
	select {
	case ev := <-events:
		t.Fatalf("unexpected event after Stop: %#v", ev)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestClientStopAfterPlatformClosed(t *testing.T) {
	srv, _, _ := newPlatform(t, func(t *testing.T, conn *websocket.Conn) {
		_ = conn.WriteJSON(map[string]any{"type": "call-end"})
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_, _, _ = conn.ReadMessage()
	})

	c := NewClient(Config{URL: wsURL(srv)})
	events, unsubscribe := collect(c)
	defer unsubscribe()

	if err := c.Start(context.Background(), "assistant-1", nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, ok := next(t, events).(CallEnd); !ok {
		t.Fatal("expected CallEnd")
	}

	// Give the read loop time to see the close frame and release the socket.
	time.Sleep(100 * time.Millisecond)
	if err := c.Stop(); err != nil {
		t.Fatalf("expected Stop on a released connection to succeed, got %v", err)
	}
}

func TestClientStopBeforeStartIsNoop(t *testing.T) {
	c := NewClient(Config{URL: "ws://127.0.0.1:1"})
	if err := c.Stop(); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestClientStartTwiceFails(t *testing.T) {
	srv, _, _ := newPlatform(t, func(t *testing.T, conn *websocket.Conn) {
		_, _, _ = conn.ReadMessage()
	})

	c := NewClient(Config{URL: wsURL(srv)})
	if err := c.Start(context.Background(), "a", nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() { _ = c.Stop() }()
	if err := c.Start(context.Background(), "a", nil); err == nil {
		t.Fatal("expected second Start to fail")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	c := NewClient(Config{})
	var count int
	unsubscribe := c.On(func(Event) { count++ })
	c.emit(CallStart{})
	unsubscribe()
	unsubscribe()
	c.emit(CallStart{})
	if count != 1 {
		t.Fatalf("expected one delivery, got %d", count)
	}
}

func TestMeetingEndedMarker(t *testing.T) {
	if !(Error{Message: "Meeting has ended"}).MeetingEnded() {
		t.Fatal("expected marker to match")
	}
	if !(Error{Message: "error: Meeting has ended because host left"}).MeetingEnded() {
		t.Fatal("expected substring to match")
	}
	if (Error{Message: "network glitch"}).MeetingEnded() {
		t.Fatal("expected no match")
	}
}
