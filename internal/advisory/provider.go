package advisory

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Provider names accepted by New.
const (
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
	ProviderStatic    = "static"
)

// Config selects and configures the generator backend.
type Config struct {
	Provider        string
	GeminiAPIKey    string
	GeminiModel     string
	AnthropicAPIKey string
	AnthropicModel  string
	Timeout         time.Duration
}

// New builds the configured generator wrapped with the fallback policy.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (Generator, error) {
	var (
		gen Generator
		err error
	)
	switch cfg.Provider {
	case ProviderGemini:
		gen, err = NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	case ProviderAnthropic:
		gen, err = NewAnthropicGenerator(cfg.AnthropicAPIKey, cfg.AnthropicModel)
	case ProviderStatic, "":
		gen = StaticGenerator{}
	default:
		err = fmt.Errorf("unknown advisory provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return WithFallback(gen, logger.Named("advisory"), cfg.Timeout), nil
}
