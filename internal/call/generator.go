package call

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrGenerationRejected is returned when the endpoint answers success:false.
	ErrGenerationRejected = errors.New("generation rejected")
	// ErrMalformedResponse is returned when the endpoint body is not the expected JSON.
	ErrMalformedResponse = errors.New("malformed generation response")
)

// DefaultInterviewType is the interview type sent with generation requests.
const DefaultInterviewType = "behavioural"

// GenerateRequest is the JSON body of the generation endpoint.
type GenerateRequest struct {
	Type      string `json:"type"`
	Role      string `json:"role"`
	Level     string `json:"level"`
	TechStack string `json:"techstack"`
	Amount    int    `json:"amount"`
	UserID    string `json:"userid"`
}

// GenerateResponse is the JSON answer of the generation endpoint.
type GenerateResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// SplitTechStack parses the comma-separated techstack field.
func SplitTechStack(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// HTTPGenerator posts generation requests to the generation endpoint.
type HTTPGenerator struct {
	URL           string
	InterviewType string
	Client        *http.Client
}

var _ Generator = (*HTTPGenerator)(nil)

// NewHTTPGenerator creates a generator for the endpoint at url.
func NewHTTPGenerator(url string) *HTTPGenerator {
	return &HTTPGenerator{
		URL:           url,
		InterviewType: DefaultInterviewType,
		Client:        &http.Client{Timeout: 2 * time.Minute},
	}
}

// Generate issues one POST and maps every non-success outcome to an error.
func (g *HTTPGenerator) Generate(ctx context.Context, spec InterviewSpec) error {
	interviewType := g.InterviewType
	if interviewType == "" {
		interviewType = DefaultInterviewType
	}
	body, err := json.Marshal(GenerateRequest{
		Type:      interviewType,
		Role:      spec.Role,
		Level:     spec.Level,
		TechStack: strings.Join(spec.TechStack, ","),
		Amount:    spec.QuestionCount,
		UserID:    spec.OwnerID,
	})
	if err != nil {
		return fmt.Errorf("encode generation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build generation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := g.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("call generation endpoint: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, readErr := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		if readErr != nil || len(detail) == 0 {
			detail = []byte("No error details available.")
		}
		return fmt.Errorf("generation endpoint status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var out GenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if !out.Success {
		msg := out.Error
		if msg == "" {
			msg = "Unknown API error"
		}
		return fmt.Errorf("%w: %s", ErrGenerationRejected, msg)
	}
	return nil
}
