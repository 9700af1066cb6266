package call

import (
	"testing"

	"github.com/ashureev/prepwise/internal/voice"
)

func finalMsg(role, text string) voice.Message {
	return voice.Message{
		Type:           voice.MessageTypeTranscript,
		Role:           role,
		TranscriptType: voice.TranscriptFinal,
		Transcript:     text,
	}
}

func partialMsg(role, text string) voice.Message {
	return voice.Message{
		Type:           voice.MessageTypeTranscript,
		Role:           role,
		TranscriptType: voice.TranscriptPartial,
		Transcript:     text,
	}
}

func TestTranscriptKeepsOnlyFinalTurns(t *testing.T) {
	var tr Transcript

	events := []voice.Message{
		partialMsg("assistant", "Hel"),
		finalMsg("assistant", "Hello, ready to start?"),
		partialMsg("user", "Ye"),
		partialMsg("user", "Yes I"),
		finalMsg("user", "Yes I am."),
		partialMsg("assistant", "Gre"),
		finalMsg("assistant", "Great. Tell me about closures."),
		partialMsg("user", "A clos"),
	}

	finals := 0
	for _, ev := range events {
		if _, ok := tr.Append(ev); ok {
			finals++
		}
	}

	if finals != 3 {
		t.Fatalf("expected 3 stored turns, got %d", finals)
	}
	if tr.Len() != 3 {
		t.Fatalf("expected Len 3, got %d", tr.Len())
	}
	if got := tr.Latest(); got != "Great. Tell me about closures." {
		t.Fatalf("unexpected latest: %q", got)
	}

	got := tr.Utterances()
	want := []Utterance{
		{Role: RoleAssistant, Content: "Hello, ready to start?"},
		{Role: RoleUser, Content: "Yes I am."},
		{Role: RoleAssistant, Content: "Great. Tell me about closures."},
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("utterance %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestTranscriptLatestEmptyInitially(t *testing.T) {
	var tr Transcript
	if tr.Latest() != "" {
		t.Fatalf("expected empty latest, got %q", tr.Latest())
	}
	if tr.Len() != 0 {
		t.Fatalf("expected empty transcript, got %d", tr.Len())
	}
}

func TestTranscriptKeepsDuplicates(t *testing.T) {
	var tr Transcript
	tr.Append(finalMsg("user", "same"))
	tr.Append(finalMsg("user", "same"))
	if tr.Len() != 2 {
		t.Fatalf("expected duplicates to be kept, got %d", tr.Len())
	}
}

func TestTranscriptDropsUnknownRolesAndNonTranscripts(t *testing.T) {
	var tr Transcript
	tr.Append(finalMsg("narrator", "ignored"))
	tr.Append(voice.Message{Type: "function-call", Role: "assistant", TranscriptType: voice.TranscriptFinal, Transcript: "x"})
	if tr.Len() != 0 {
		t.Fatalf("expected nothing stored, got %d", tr.Len())
	}
}

func TestTranscriptUtterancesIsACopy(t *testing.T) {
	var tr Transcript
	tr.Append(finalMsg("user", "original"))
	out := tr.Utterances()
	out[0].Content = "mutated"
	if tr.Utterances()[0].Content != "original" {
		t.Fatal("expected stored utterances to be unaffected by caller mutation")
	}
}

func TestFormatQuestions(t *testing.T) {
	got := FormatQuestions([]string{"What is closures?", "Explain event loop"})
	want := "- What is closures?\n- Explain event loop"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
	if FormatQuestions(nil) != "" {
		t.Fatal("expected empty blob for no questions")
	}
}

func TestStateString(t *testing.T) {
	cases := map[State]string{
		StateInactive:   "INACTIVE",
		StateConnecting: "CONNECTING",
		StateActive:     "ACTIVE",
		StateFinished:   "FINISHED",
	}
	for s, want := range cases {
		if s.String() != want {
			t.Errorf("expected %q, got %q", want, s.String())
		}
	}
}
