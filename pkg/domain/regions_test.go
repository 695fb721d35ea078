package domain

import "testing"

func TestRegionLookup(t *testing.T) {
	r, ok := FindRegion("west-africa")
	if !ok || r.Label != "West Africa" {
		t.Fatalf("expected west africa, got %+v", r)
	}
	if _, ok := FindRegion("South/Southeast Asia"); !ok {
		t.Fatalf("expected lookup by label to succeed")
	}
	if !r.HasCrop("cocoa") || r.HasCrop("Rice") {
		t.Fatalf("unexpected crop membership for %+v", r)
	}
	if RegionLabel("atlantis") != GlobalRegionLabel {
		t.Fatalf("expected unknown region to map to Global")
	}
}

func TestRegionsReturnsCopy(t *testing.T) {
	regions := Regions()
	regions[0].Crops[0] = "Changed"
	if Regions()[0].Crops[0] != "Maize" {
		t.Fatalf("catalog mutated through returned slice")
	}
}

func TestEnumValidity(t *testing.T) {
	if !SoilPeat.Valid() || SoilType("Gravel").Valid() {
		t.Fatalf("soil validity mismatch")
	}
	if !IrrigationRainFed.Valid() || IrrigationType("Flood").Valid() {
		t.Fatalf("irrigation validity mismatch")
	}
	if !StageHarvesting.Valid() || GrowthStage("Dormant").Valid() {
		t.Fatalf("stage validity mismatch")
	}
	if !CycleFallow.Valid() || !RiskMedium.Valid() || !PracticeMixed.Valid() {
		t.Fatalf("expected canonical values to be valid")
	}
}
