package core

import (
	"context"
	"fmt"
	"foodflow/pkg/domain"
)

// FieldConstraintsRule validates the numeric and enumerated fields of changed
// parcels, crop cycles and advisories.
func FieldConstraintsRule() domain.Rule {
	return fieldConstraintsRule{}
}

type fieldConstraintsRule struct{}

func (fieldConstraintsRule) Name() string { return "field_constraints" }

func (r fieldConstraintsRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.After == nil {
			continue
		}
		switch after := change.After.(type) {
		case domain.Parcel:
			if after.Hectares <= 0 {
				res.Violations = append(res.Violations, r.block(domain.EntityParcel, after.ID,
					fmt.Sprintf("parcel %s hectares must be positive", after.ID)))
			}
			if !after.SoilType.Valid() {
				res.Violations = append(res.Violations, r.block(domain.EntityParcel, after.ID,
					fmt.Sprintf("parcel %s has unknown soil type %q", after.ID, after.SoilType)))
			}
			if !after.IrrigationType.Valid() {
				res.Violations = append(res.Violations, r.block(domain.EntityParcel, after.ID,
					fmt.Sprintf("parcel %s has unknown irrigation type %q", after.ID, after.IrrigationType)))
			}
		case domain.CropCycle:
			if !after.Stage.Valid() {
				res.Violations = append(res.Violations, r.block(domain.EntityCropCycle, after.ID,
					fmt.Sprintf("crop cycle %s has unknown stage %q", after.ID, after.Stage)))
			}
			if !after.Status.Valid() {
				res.Violations = append(res.Violations, r.block(domain.EntityCropCycle, after.ID,
					fmt.Sprintf("crop cycle %s has unknown status %q", after.ID, after.Status)))
			}
			if after.ProjectedYieldKg < 0 {
				res.Violations = append(res.Violations, r.block(domain.EntityCropCycle, after.ID,
					fmt.Sprintf("crop cycle %s projected yield cannot be negative", after.ID)))
			}
		case domain.Advisory:
			if after.Confidence < 0 || after.Confidence > 100 {
				res.Violations = append(res.Violations, r.block(domain.EntityAdvisory, after.ID,
					fmt.Sprintf("advisory %s confidence %d outside 0..100", after.ID, after.Confidence)))
			}
			if after.IsCompleted && after.CompletedAt == nil {
				res.Violations = append(res.Violations, r.block(domain.EntityAdvisory, after.ID,
					fmt.Sprintf("advisory %s completed without a completion time", after.ID)))
			}
		}
	}
	return res, nil
}

func (fieldConstraintsRule) block(entity domain.EntityType, id, message string) domain.Violation {
	return domain.Violation{
		Rule:     "field_constraints",
		Severity: domain.SeverityBlock,
		Message:  message,
		Entity:   entity,
		EntityID: id,
	}
}
