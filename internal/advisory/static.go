package advisory

import (
	"context"
	"fmt"
	"foodflow/pkg/domain"
	"strings"
)

// StaticGenerator derives recommendations from a fixed rule table. It needs
// no network access and is used for offline demos and tests.
type StaticGenerator struct{}

type staticRule struct {
	stage      domain.GrowthStage
	wet        bool
	action     string
	reason     string
	risk       string
	lossDetail string
	confidence int
}

var staticRules = []staticRule{
	{domain.StageMaturity, true, "Harvest Immediately", "Storm surge probability exceeds 90% threshold for maturity stage.", "Lodging and grain rot from saturated stands.", "Moves mature yield out of the field before weather losses occur.", 94},
	{domain.StageHarvesting, true, "Move harvested stock to covered drying racks", "Rainfall during harvest raises grain moisture above safe storage levels.", "Mould and aflatoxin formation in storage.", "Keeps harvested produce dry enough for storage.", 92},
	{domain.StageFlowering, false, "Schedule supplemental irrigation at dawn", "Moisture deficit during flowering reduces pollination and seed set.", "Flower abortion under water stress.", "Protects yield potential while it is being fixed.", 86},
	{domain.StageVegetative, true, "Clear drainage channels around the parcel", "Waterlogged roots slow nutrient uptake during vegetative growth.", "Root rot and nitrogen leaching.", "Preserves canopy development that drives final yield.", 84},
	{domain.StageSeeding, true, "Delay sowing until the topsoil drains", "Saturated seedbeds reduce germination rates.", "Seed rot and poor stand establishment.", "Avoids replanting losses.", 82},
}

// Generate implements Generator.
func (StaticGenerator) Generate(_ context.Context, c Context) (Result, error) {
	c = c.Normalize()
	if strings.TrimSpace(c.Crop) == "" {
		return Result{}, fmt.Errorf("crop required")
	}
	wet := isWet(c.ObservedRainfall)
	for _, rule := range staticRules {
		if rule.stage == c.Stage && rule.wet == wet {
			res := Result{
				Action:              rule.action,
				Reason:              rule.reason,
				RiskPrevented:       rule.risk,
				LossReductionDetail: rule.lossDetail,
				Confidence:          rule.confidence,
			}
			if c.SoilType == domain.SoilClay && wet {
				res.Confidence = clampConfidence(res.Confidence + 2)
			}
			return res, nil
		}
	}
	return Result{
		Action:              DefaultAction,
		Reason:              DefaultReason,
		RiskPrevented:       DefaultRiskPrevented,
		LossReductionDetail: DefaultLossReductionDetail,
		Confidence:          DefaultConfidence,
	}, nil
}

func isWet(rainfall string) bool {
	r := strings.ToLower(rainfall)
	return strings.Contains(r, "high") || strings.Contains(r, "heavy") || strings.Contains(r, "storm")
}
