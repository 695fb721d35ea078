package domain

import "strings"

// GlobalRegionLabel is stored on profiles whose region is not in the catalog.
const GlobalRegionLabel = "Global"

// Region is a supported growing region and the crops advised within it.
type Region struct {
	Value string   `json:"value" yaml:"value"`
	Label string   `json:"label" yaml:"label"`
	Crops []string `json:"crops" yaml:"crops"`
}

var regionCatalog = []Region{
	{Value: "west-africa", Label: "West Africa", Crops: []string{"Maize", "Cassava", "Yam", "Cocoa"}},
	{Value: "east-africa", Label: "East Africa", Crops: []string{"Coffee", "Tea", "Maize", "Sorghum"}},
	{Value: "asia", Label: "South/Southeast Asia", Crops: []string{"Rice", "Sugarcane", "Palm Oil", "Rubber"}},
}

// Regions returns a copy of the region catalog.
func Regions() []Region {
	out := make([]Region, len(regionCatalog))
	for i, r := range regionCatalog {
		out[i] = Region{Value: r.Value, Label: r.Label, Crops: append([]string(nil), r.Crops...)}
	}
	return out
}

// FindRegion resolves a region by value or label, case-insensitively.
func FindRegion(key string) (Region, bool) {
	key = strings.TrimSpace(key)
	for _, r := range Regions() {
		if strings.EqualFold(r.Value, key) || strings.EqualFold(r.Label, key) {
			return r, true
		}
	}
	return Region{}, false
}

// RegionLabel returns the display label for a region value, or
// GlobalRegionLabel when the value is unknown.
func RegionLabel(value string) string {
	if r, ok := FindRegion(value); ok {
		return r.Label
	}
	return GlobalRegionLabel
}

// HasCrop reports whether crop is advised in the region.
func (r Region) HasCrop(crop string) bool {
	for _, c := range r.Crops {
		if strings.EqualFold(c, strings.TrimSpace(crop)) {
			return true
		}
	}
	return false
}
