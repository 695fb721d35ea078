package core

import (
	_ "embed"
	"fmt"
	"foodflow/pkg/domain"

	"gopkg.in/yaml.v3"
)

//go:embed seed/demo.yaml
var demoFixture []byte

// Fixture is a set of records copied into new workspaces. Keys link records
// inside the fixture and are replaced with generated IDs when applied.
type Fixture struct {
	Parcels []struct {
		Key            string                `yaml:"key"`
		Name           string                `yaml:"name"`
		Hectares       float64               `yaml:"hectares"`
		SoilType       domain.SoilType       `yaml:"soil_type"`
		IrrigationType domain.IrrigationType `yaml:"irrigation_type"`
	} `yaml:"parcels"`
	Cycles []struct {
		Key              string             `yaml:"key"`
		Parcel           string             `yaml:"parcel"`
		CropType         string             `yaml:"crop_type"`
		Stage            domain.GrowthStage `yaml:"stage"`
		Status           domain.CycleStatus `yaml:"status"`
		PlantedAt        string             `yaml:"planted_at"`
		TargetHarvestAt  string             `yaml:"target_harvest_at"`
		ProjectedYieldKg float64            `yaml:"projected_yield_kg"`
	} `yaml:"cycles"`
	Advisories []struct {
		Key                 string           `yaml:"key"`
		Cycle               string           `yaml:"cycle"`
		Action              string           `yaml:"action"`
		Reason              string           `yaml:"reason"`
		RiskPrevented       string           `yaml:"risk_prevented"`
		LossReductionDetail string           `yaml:"loss_reduction_detail"`
		Confidence          int              `yaml:"confidence"`
		Risk                domain.RiskLevel `yaml:"risk"`
		ImpactSavedKg       float64          `yaml:"impact_saved_kg"`
	} `yaml:"advisories"`
}

// DemoFixture returns the built-in demo workspace: three parcels, two active
// crop cycles and one pending advisory.
func DemoFixture() (*Fixture, error) {
	return ParseFixture(demoFixture)
}

// ParseFixture decodes a YAML fixture and checks its internal references.
func ParseFixture(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	parcels := make(map[string]struct{}, len(f.Parcels))
	for _, p := range f.Parcels {
		parcels[p.Key] = struct{}{}
	}
	cycles := make(map[string]struct{}, len(f.Cycles))
	for _, c := range f.Cycles {
		if _, ok := parcels[c.Parcel]; !ok {
			return nil, fmt.Errorf("fixture cycle %s references unknown parcel %s", c.Key, c.Parcel)
		}
		cycles[c.Key] = struct{}{}
	}
	for _, a := range f.Advisories {
		if _, ok := cycles[a.Cycle]; !ok {
			return nil, fmt.Errorf("fixture advisory %s references unknown cycle %s", a.Key, a.Cycle)
		}
	}
	return &f, nil
}

// apply creates the fixture's records for userID inside tx.
func (f *Fixture) apply(tx Transaction, userID string) error {
	parcelIDs := make(map[string]string, len(f.Parcels))
	for _, p := range f.Parcels {
		created, err := tx.CreateParcel(Parcel{
			UserID:         userID,
			Name:           p.Name,
			Hectares:       p.Hectares,
			SoilType:       p.SoilType,
			IrrigationType: p.IrrigationType,
		})
		if err != nil {
			return fmt.Errorf("seed parcel %s: %w", p.Key, err)
		}
		parcelIDs[p.Key] = created.ID
	}
	cycleIDs := make(map[string]string, len(f.Cycles))
	for _, c := range f.Cycles {
		created, err := tx.CreateCropCycle(CropCycle{
			ParcelID:         parcelIDs[c.Parcel],
			CropType:         c.CropType,
			Stage:            c.Stage,
			Status:           c.Status,
			PlantedAt:        c.PlantedAt,
			TargetHarvestAt:  c.TargetHarvestAt,
			ProjectedYieldKg: c.ProjectedYieldKg,
		})
		if err != nil {
			return fmt.Errorf("seed cycle %s: %w", c.Key, err)
		}
		cycleIDs[c.Key] = created.ID
	}
	for _, a := range f.Advisories {
		if _, err := tx.CreateAdvisory(Advisory{
			CycleID:             cycleIDs[a.Cycle],
			Action:              a.Action,
			Reason:              a.Reason,
			RiskPrevented:       a.RiskPrevented,
			LossReductionDetail: a.LossReductionDetail,
			Confidence:          a.Confidence,
			Risk:                a.Risk,
			ImpactSavedKg:       a.ImpactSavedKg,
		}); err != nil {
			return fmt.Errorf("seed advisory %s: %w", a.Key, err)
		}
	}
	return nil
}
