package advisory

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// DefaultGeminiModel is the model used when none is configured.
const DefaultGeminiModel = "gemini-3-flash-preview"

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiGenerator requests recommendations from the Gemini API in JSON mode.
type GeminiGenerator struct {
	models contentGenerator
	model  string
}

// NewGeminiGenerator creates a generator backed by the Gemini API.
func NewGeminiGenerator(ctx context.Context, apiKey, model string) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return newGeminiGenerator(client.Models, model), nil
}

func newGeminiGenerator(models contentGenerator, model string) *GeminiGenerator {
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiGenerator{models: models, model: model}
}

// Generate implements Generator.
func (g *GeminiGenerator) Generate(ctx context.Context, c Context) (Result, error) {
	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(BuildPrompt(c)), &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0.1),
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return Result{}, fmt.Errorf("gemini generate: %w", err)
	}
	if resp == nil {
		return Result{}, fmt.Errorf("gemini generate: empty response")
	}
	return ParseResult(resp.Text())
}
