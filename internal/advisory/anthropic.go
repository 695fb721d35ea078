package advisory

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// DefaultAnthropicModel is the model used when none is configured.
const DefaultAnthropicModel = "claude-sonnet-4-5"

const anthropicMaxTokens = 1024

type messageCreator interface {
	New(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// AnthropicGenerator requests recommendations from the Anthropic Messages API.
type AnthropicGenerator struct {
	messages messageCreator
	model    string
}

// NewAnthropicGenerator creates a generator backed by the Anthropic API.
func NewAnthropicGenerator(apiKey, model string) (*AnthropicGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic api key required")
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return newAnthropicGenerator(&client.Messages, model), nil
}

func newAnthropicGenerator(messages messageCreator, model string) *AnthropicGenerator {
	if model == "" {
		model = DefaultAnthropicModel
	}
	return &AnthropicGenerator{messages: messages, model: model}
}

// Generate implements Generator.
func (g *AnthropicGenerator) Generate(ctx context.Context, c Context) (Result, error) {
	msg, err := g.messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(g.model),
		MaxTokens:   anthropicMaxTokens,
		Temperature: anthropic.Float(0.1),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(BuildPrompt(c))),
		},
	})
	if err != nil {
		return Result{}, fmt.Errorf("anthropic generate: %w", err)
	}
	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return ParseResult(text.String())
}
