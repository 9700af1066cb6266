package interviewer

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/genai"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.0-flash"

// GeminiConfig configures GeminiBackend.
type GeminiConfig struct {
	APIKey string
	Model  string
	// BaseURL overrides the API endpoint.
	BaseURL string
	Logger  *slog.Logger
}

// GeminiBackend generates questions and feedback with the Gemini API.
type GeminiBackend struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

// NewGeminiBackend creates a Gemini-backed interviewer.
func NewGeminiBackend(ctx context.Context, cfg GeminiConfig) (*GeminiBackend, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	model := cfg.Model
	if model == "" {
		model = DefaultGeminiModel
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	logger.Info("Gemini interviewer ready", "model", model)
	return &GeminiBackend{client: client, model: model, logger: logger}, nil
}

// GenerateQuestions asks the model for a JSON array of questions.
func (g *GeminiBackend) GenerateQuestions(ctx context.Context, req QuestionRequest) ([]string, error) {
	text, err := g.generateJSON(ctx, questionPrompt(req))
	if err != nil {
		return nil, fmt.Errorf("generate questions: %w", err)
	}
	questions, err := parseQuestions(text)
	if err != nil {
		return nil, err
	}
	if req.Amount > 0 && len(questions) > req.Amount {
		questions = questions[:req.Amount]
	}
	g.logger.Debug("Generated questions", "role", req.Role, "count", len(questions))
	return questions, nil
}

// GenerateFeedback asks the model for a structured assessment.
func (g *GeminiBackend) GenerateFeedback(ctx context.Context, in FeedbackInput) (*Assessment, error) {
	if len(in.Transcript) == 0 {
		return nil, ErrEmptyTranscript
	}
	text, err := g.generateJSON(ctx, feedbackPrompt(in))
	if err != nil {
		return nil, fmt.Errorf("generate feedback: %w", err)
	}
	return parseAssessment(text)
}

func (g *GeminiBackend) generateJSON(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return "", err
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty response from model %s", g.model)
	}
	return text, nil
}

// Close is a no-op; the Gemini client holds no long-lived connection.
func (g *GeminiBackend) Close() error {
	return nil
}
