// Package advisory produces field recommendations for a crop cycle. The
// generator behind it is an external language model; callers only see the
// Generator contract and a fixed fallback when the model is unavailable.
package advisory

import (
	"context"
	"encoding/json"
	"fmt"
	"foodflow/pkg/domain"
	"math"
	"strconv"
	"strings"
)

// DefaultObservedRainfall is assumed when the caller supplies no rainfall reading.
const DefaultObservedRainfall = "Predictive High"

// Defaults applied to fields the generator leaves empty.
const (
	DefaultAction              = "Maintain baseline observation protocols."
	DefaultReason              = "Environmental variables are within standard deviation for this phenological phase."
	DefaultRiskPrevented       = "No significant risks identified in current window."
	DefaultLossReductionDetail = "Ensures crop remains at peak biological health."
	DefaultConfidence          = 88
)

// Context is the field situation a recommendation is generated for.
type Context struct {
	Region           string                `json:"region"`
	Crop             string                `json:"crop"`
	Stage            domain.GrowthStage    `json:"stage"`
	SoilType         domain.SoilType       `json:"soil_type"`
	ObservedRainfall string                `json:"observed_rainfall"`
	IrrigationMethod domain.IrrigationType `json:"irrigation_method"`
	Lat              *float64              `json:"lat,omitempty"`
	Lng              *float64              `json:"lng,omitempty"`
}

// Result is a structured recommendation.
type Result struct {
	Action              string `json:"action"`
	Reason              string `json:"reason"`
	RiskPrevented       string `json:"risk_prevented"`
	LossReductionDetail string `json:"loss_reduction_detail"`
	Confidence          int    `json:"confidence"`
}

// Generator turns a field context into a recommendation.
type Generator interface {
	Generate(ctx context.Context, c Context) (Result, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, c Context) (Result, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, c Context) (Result, error) { return f(ctx, c) }

// Fallback is the recommendation served whenever generation fails.
func Fallback() Result {
	return Result{
		Action:              "Adhere to regional safety baseline.",
		Reason:              "Diagnostic engine synchronization delay.",
		RiskPrevented:       "Baseline environmental shifts.",
		LossReductionDetail: "Prevents drift from historical averages.",
		Confidence:          75,
	}
}

// Normalize fills defaults for the optional context fields.
func (c Context) Normalize() Context {
	if strings.TrimSpace(c.ObservedRainfall) == "" {
		c.ObservedRainfall = DefaultObservedRainfall
	}
	return c
}

// BuildPrompt renders the instruction sent to language-model generators.
func BuildPrompt(c Context) string {
	c = c.Normalize()
	var b strings.Builder
	b.WriteString("You are the FoodFlow field operations engineer. Recommend one operational action that protects yield and reduces post-harvest loss.\n\n")
	b.WriteString("Field context:\n")
	fmt.Fprintf(&b, "- Region: %s", c.Region)
	if c.Lat != nil && c.Lng != nil {
		fmt.Fprintf(&b, " (GPS: %g, %g)", *c.Lat, *c.Lng)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "- Crop: %s\n", c.Crop)
	fmt.Fprintf(&b, "- Growth stage: %s\n", c.Stage)
	fmt.Fprintf(&b, "- Soil: %s\n", c.SoilType)
	fmt.Fprintf(&b, "- Irrigation: %s\n", c.IrrigationMethod)
	fmt.Fprintf(&b, "- Rainfall outlook: %s\n\n", c.ObservedRainfall)
	b.WriteString("Write `action` as a direct command, `reason` as the technical evidence behind it, ")
	b.WriteString("`riskPrevented` as the threat it mitigates and `lossReductionDetail` as how it reduces food loss. ")
	b.WriteString("`confidence` is an integer percentage.\n\n")
	b.WriteString(`Respond with only a JSON object: {"action": "...", "reason": "...", "riskPrevented": "...", "lossReductionDetail": "...", "confidence": 90}`)
	return b.String()
}

type wireResult struct {
	Action              string          `json:"action"`
	Reason              string          `json:"reason"`
	RiskPrevented       string          `json:"riskPrevented"`
	LossReductionDetail string          `json:"lossReductionDetail"`
	Confidence          json.RawMessage `json:"confidence"`
}

// ParseResult decodes a model response. Markdown code fences are tolerated,
// empty fields take their defaults, and confidence is clamped to 0..100.
// A confidence that is not a number, or a string holding one, is replaced
// by DefaultConfidence without discarding the rest of the response.
func ParseResult(raw string) (Result, error) {
	text := stripFences(raw)
	if text == "" {
		text = "{}"
	}
	var wire wireResult
	if err := json.Unmarshal([]byte(text), &wire); err != nil {
		return Result{}, fmt.Errorf("decode advisory response: %w", err)
	}
	res := Result{
		Action:              orDefault(wire.Action, DefaultAction),
		Reason:              orDefault(wire.Reason, DefaultReason),
		RiskPrevented:       orDefault(wire.RiskPrevented, DefaultRiskPrevented),
		LossReductionDetail: orDefault(wire.LossReductionDetail, DefaultLossReductionDetail),
		Confidence:          DefaultConfidence,
	}
	if v, ok := parseConfidence(wire.Confidence); ok && v != 0 {
		res.Confidence = clampConfidence(int(math.Round(v)))
	}
	return res, nil
}

// parseConfidence accepts 94, 94.5, "94" and "94%".
func parseConfidence(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, true
	}
	var str string
	if err := json.Unmarshal(raw, &str); err != nil {
		return 0, false
	}
	str = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(str), "%"))
	n, err := strconv.ParseFloat(str, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

func stripFences(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		text = text[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), "```"))
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}

func clampConfidence(v int) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}
