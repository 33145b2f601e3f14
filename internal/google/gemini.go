package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"meetsched/internal/apperr"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.0-flash"

const nameNotFound = "Name not found"

// contentGenerator is the part of *genai.Models the suggester needs.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini produces scheduling suggestions and extracts employee names through
// the Gemini API.
type Gemini struct {
	models contentGenerator
	model  string
	logger *slog.Logger
}

// NewGemini creates a Gemini client authenticated with an API key.
// httpClient may be nil.
func NewGemini(ctx context.Context, logger *slog.Logger, apiKey, model string, httpClient *http.Client) (*Gemini, error) {
	if apiKey == "" {
		return nil, errors.New("GEMINI_API_KEY is not set")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return newGemini(logger, client.Models, model), nil
}

func newGemini(logger *slog.Logger, models contentGenerator, model string) *Gemini {
	model = strings.TrimPrefix(strings.TrimSpace(model), "models/")
	if model == "" {
		model = DefaultModel
	}
	return &Gemini{models: models, model: model, logger: logger}
}

// Suggest returns the model's free-text answer to prompt.
func (g *Gemini) Suggest(ctx context.Context, prompt string) (string, error) {
	return g.generate(ctx, "suggest", prompt)
}

// ExtractName asks the model for the employee named in message. It returns
// an empty string when the model finds no name.
func (g *Gemini) ExtractName(ctx context.Context, message string) (string, error) {
	prompt := fmt.Sprintf(`Extract the name of the employee from the following user message: %q

Respond with only the name, no additional text.
If no name is found, respond with %q.`, message, nameNotFound)

	name, err := g.generate(ctx, "extract name", prompt)
	if err != nil {
		return "", err
	}
	name = strings.Trim(strings.TrimSpace(name), `"'.`)
	if strings.EqualFold(name, nameNotFound) {
		return "", nil
	}
	return name, nil
}

func (g *Gemini) generate(ctx context.Context, op, prompt string) (string, error) {
	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		g.logger.Error("Gemini request failed", "op", op, "error", err)
		return "", apperr.Upstream("gemini "+op, err)
	}

	text, ok := firstText(resp)
	if !ok {
		return "", apperr.Upstream("gemini "+op, errors.New("unexpected API response structure"))
	}
	g.logger.Debug("Gemini responded", "op", op, "chars", len(text))
	return strings.TrimSpace(text), nil
}

// firstText returns candidates[0].content.parts[0].text.
func firstText(resp *genai.GenerateContentResponse) (string, bool) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return "", false
	}
	content := resp.Candidates[0].Content
	if content == nil || len(content.Parts) == 0 || content.Parts[0] == nil || content.Parts[0].Text == "" {
		return "", false
	}
	return content.Parts[0].Text, true
}
