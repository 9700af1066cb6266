package call

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHTTPGeneratorSendsRequest(t *testing.T) {
	var got GenerateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	g := NewHTTPGenerator(srv.URL)
	if err := g.Generate(context.Background(), validSpec()); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	want := GenerateRequest{
		Type:      DefaultInterviewType,
		Role:      "Frontend Developer",
		Level:     "Junior",
		TechStack: "react,typescript",
		Amount:    5,
		UserID:    "user-1",
	}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestHTTPGeneratorErrors(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		wantIs  error
		wantMsg string
	}{
		{name: "rejected", status: http.StatusOK, body: `{"success":false,"error":"quota"}`, wantIs: ErrGenerationRejected, wantMsg: "quota"},
		{name: "rejected without message", status: http.StatusOK, body: `{"success":false}`, wantIs: ErrGenerationRejected, wantMsg: "Unknown API error"},
		{name: "malformed", status: http.StatusOK, body: `<html>`, wantIs: ErrMalformedResponse},
		{name: "server error", status: http.StatusInternalServerError, body: "boom", wantMsg: "status 500: boom"},
		{name: "server error empty body", status: http.StatusBadGateway, wantMsg: "No error details available."},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			err := NewHTTPGenerator(srv.URL).Generate(context.Background(), validSpec())
			if err == nil {
				t.Fatal("expected error")
			}
			if tc.wantIs != nil && !errors.Is(err, tc.wantIs) {
				t.Fatalf("expected %v, got %v", tc.wantIs, err)
			}
			if tc.wantMsg != "" && !strings.Contains(err.Error(), tc.wantMsg) {
				t.Fatalf("expected %q in %q", tc.wantMsg, err.Error())
			}
		})
	}
}

func TestHTTPGeneratorDrivesController(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"error":"nope"}`))
	}))
	defer srv.Close()

	nav := &fakeNavigator{}
	c := NewController(Options{Generator: NewHTTPGenerator(srv.URL), Navigator: nav})
	if err := c.Start(context.Background(), GenerateCall{Spec: validSpec()}); !errors.Is(err, ErrGenerationRejected) {
		t.Fatalf("expected ErrGenerationRejected, got %v", err)
	}
	if c.State() != StateInactive {
		t.Fatalf("expected Inactive, got %s", c.State())
	}
	if len(nav.all()) != 0 {
		t.Fatalf("expected no navigation, got %v", nav.all())
	}
}

func TestSplitTechStack(t *testing.T) {
	got := SplitTechStack(" react, typescript ,,next.js ")
	want := []string{"react", "typescript", "next.js"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
	if SplitTechStack("") != nil {
		t.Fatal("expected nil for empty input")
	}
}
