package advisory

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"foodflow/pkg/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseResultAppliesDefaults(t *testing.T) {
	res, err := ParseResult(`{"action":"Drain field"}`)
	require.NoError(t, err)
	assert.Equal(t, "Drain field", res.Action)
	assert.Equal(t, DefaultReason, res.Reason)
	assert.Equal(t, DefaultRiskPrevented, res.RiskPrevented)
	assert.Equal(t, DefaultLossReductionDetail, res.LossReductionDetail)
	assert.Equal(t, DefaultConfidence, res.Confidence)
}

func TestParseResultEmptyBody(t *testing.T) {
	res, err := ParseResult("   ")
	require.NoError(t, err)
	assert.Equal(t, DefaultAction, res.Action)
	assert.Equal(t, DefaultConfidence, res.Confidence)
}

func TestParseResultZeroConfidenceUsesDefault(t *testing.T) {
	res, err := ParseResult(`{"action":"a","confidence":0}`)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfidence, res.Confidence)
}

func TestParseResultStripsFencesAndClamps(t *testing.T) {
	raw := "```json\n{\"action\":\"Harvest\",\"riskPrevented\":\"rot\",\"lossReductionDetail\":\"dry\",\"confidence\":140}\n```"
	res, err := ParseResult(raw)
	require.NoError(t, err)
	assert.Equal(t, "Harvest", res.Action)
	assert.Equal(t, "rot", res.RiskPrevented)
	assert.Equal(t, "dry", res.LossReductionDetail)
	assert.Equal(t, 100, res.Confidence)

	res, err = ParseResult(`{"confidence":-3}`)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Confidence)

	res, err = ParseResult(`{"confidence":91.6}`)
	require.NoError(t, err)
	assert.Equal(t, 92, res.Confidence)
}

func TestParseResultLenientConfidence(t *testing.T) {
	res, err := ParseResult(`{"action":"Drain field","reason":"saturated loam","riskPrevented":"root rot","confidence":"94"}`)
	require.NoError(t, err)
	assert.Equal(t, "Drain field", res.Action)
	assert.Equal(t, "saturated loam", res.Reason)
	assert.Equal(t, "root rot", res.RiskPrevented)
	assert.Equal(t, 94, res.Confidence)

	res, err = ParseResult(`{"action":"Drain field","confidence":" 81% "}`)
	require.NoError(t, err)
	assert.Equal(t, 81, res.Confidence)

	for _, raw := range []string{
		`{"action":"Drain field","confidence":"high"}`,
		`{"action":"Drain field","confidence":null}`,
		`{"action":"Drain field","confidence":{"value":90}}`,
		`{"action":"Drain field","confidence":"NaN"}`,
	} {
		res, err = ParseResult(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, "Drain field", res.Action, raw)
		assert.Equal(t, DefaultConfidence, res.Confidence, raw)
	}
}

func TestParseResultRejectsMalformedJSON(t *testing.T) {
	_, err := ParseResult("not json")
	require.Error(t, err)
}

func TestBuildPromptIncludesContext(t *testing.T) {
	lat, lng := 6.5, 3.4
	prompt := BuildPrompt(Context{
		Region:           "Lagos Hub",
		Crop:             "Cassava",
		Stage:            domain.StageFlowering,
		SoilType:         domain.SoilSandy,
		IrrigationMethod: domain.IrrigationDrip,
		Lat:              &lat,
		Lng:              &lng,
	})
	for _, want := range []string{"Lagos Hub", "GPS: 6.5, 3.4", "Cassava", "Flowering", "Sandy", "Drip", DefaultObservedRainfall, "lossReductionDetail"} {
		assert.Contains(t, prompt, want)
	}

	noGPS := BuildPrompt(Context{Region: "Global", Crop: "Maize", ObservedRainfall: "Low"})
	assert.NotContains(t, noGPS, "GPS")
	assert.Contains(t, noGPS, "Rainfall outlook: Low")
}

func TestWithFallbackOnError(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	gen := WithFallback(GeneratorFunc(func(context.Context, Context) (Result, error) {
		return Result{}, errors.New("quota exceeded")
	}), zap.New(core), 0)

	res, err := gen.Generate(context.Background(), Context{Crop: "Maize"})
	require.NoError(t, err)
	assert.Equal(t, Fallback(), res)
	assert.Equal(t, 1, logs.FilterMessageSnippet("serving fallback").Len())
}

func TestWithFallbackOnPanic(t *testing.T) {
	gen := WithFallback(GeneratorFunc(func(context.Context, Context) (Result, error) {
		panic("boom")
	}), nil, 0)

	res, err := gen.Generate(context.Background(), Context{})
	require.NoError(t, err)
	assert.Equal(t, 75, res.Confidence)
	assert.Equal(t, "Adhere to regional safety baseline.", res.Action)
}

func TestWithFallbackOnTimeout(t *testing.T) {
	gen := WithFallback(GeneratorFunc(func(ctx context.Context, _ Context) (Result, error) {
		<-ctx.Done()
		return Result{}, ctx.Err()
	}), zap.NewNop(), 10*time.Millisecond)

	res, err := gen.Generate(context.Background(), Context{})
	require.NoError(t, err)
	assert.Equal(t, Fallback(), res)
}

func TestWithFallbackPassesThrough(t *testing.T) {
	want := Result{Action: "Irrigate", Reason: "dry", RiskPrevented: "wilt", LossReductionDetail: "yield", Confidence: 91}
	gen := WithFallback(GeneratorFunc(func(context.Context, Context) (Result, error) {
		return want, nil
	}), zap.NewNop(), time.Second)

	res, err := gen.Generate(context.Background(), Context{})
	require.NoError(t, err)
	assert.Equal(t, want, res)
}

func TestStaticGenerator(t *testing.T) {
	gen := StaticGenerator{}

	res, err := gen.Generate(context.Background(), Context{Crop: "Maize", Stage: domain.StageMaturity, SoilType: domain.SoilLoamy})
	require.NoError(t, err)
	assert.Equal(t, "Harvest Immediately", res.Action)
	assert.Equal(t, 94, res.Confidence)

	res, err = gen.Generate(context.Background(), Context{Crop: "Rice", Stage: domain.StageMaturity, SoilType: domain.SoilClay})
	require.NoError(t, err)
	assert.Equal(t, 96, res.Confidence)

	res, err = gen.Generate(context.Background(), Context{Crop: "Rice", Stage: domain.StageFlowering, ObservedRainfall: "Low"})
	require.NoError(t, err)
	assert.True(t, strings.Contains(res.Action, "irrigation"))

	res, err = gen.Generate(context.Background(), Context{Crop: "Rice", Stage: domain.StageHarvesting, ObservedRainfall: "Low"})
	require.NoError(t, err)
	assert.Equal(t, DefaultAction, res.Action)

	_, err = gen.Generate(context.Background(), Context{})
	require.Error(t, err)
}

func TestNewSelectsProvider(t *testing.T) {
	gen, err := New(context.Background(), Config{Provider: ProviderStatic}, zap.NewNop())
	require.NoError(t, err)
	res, err := gen.Generate(context.Background(), Context{})
	require.NoError(t, err)
	assert.Equal(t, Fallback(), res, "static generator errors on empty crop and the wrapper substitutes the fallback")

	_, err = New(context.Background(), Config{Provider: "oracle"}, zap.NewNop())
	require.Error(t, err)

	_, err = New(context.Background(), Config{Provider: ProviderGemini}, zap.NewNop())
	require.Error(t, err)

	_, err = New(context.Background(), Config{Provider: ProviderAnthropic}, zap.NewNop())
	require.Error(t, err)

	gen, err = New(context.Background(), Config{Provider: ProviderAnthropic, AnthropicAPIKey: "test-key"}, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, gen)
}
