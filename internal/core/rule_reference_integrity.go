package core

import (
	"context"
	"fmt"
	"foodflow/pkg/domain"
)

// ReferenceIntegrityRule blocks commits that leave a parcel without an owner,
// a crop cycle without a parcel, or an advisory without a crop cycle.
func ReferenceIntegrityRule() domain.Rule {
	return referenceIntegrityRule{}
}

type referenceIntegrityRule struct{}

func (referenceIntegrityRule) Name() string { return "reference_integrity" }

func (referenceIntegrityRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, p := range view.ListParcels() {
		if _, ok := view.FindUser(p.UserID); !ok {
			res.Violations = append(res.Violations, referenceViolation(domain.EntityParcel, p.ID,
				fmt.Sprintf("parcel %s references missing user %s", p.ID, p.UserID)))
		}
	}
	for _, c := range view.ListCropCycles() {
		if _, ok := view.FindParcel(c.ParcelID); !ok {
			res.Violations = append(res.Violations, referenceViolation(domain.EntityCropCycle, c.ID,
				fmt.Sprintf("crop cycle %s references missing parcel %s", c.ID, c.ParcelID)))
		}
	}
	for _, a := range view.ListAdvisories() {
		if _, ok := view.FindCropCycle(a.CycleID); !ok {
			res.Violations = append(res.Violations, referenceViolation(domain.EntityAdvisory, a.ID,
				fmt.Sprintf("advisory %s references missing crop cycle %s", a.ID, a.CycleID)))
		}
	}
	return res, nil
}

func referenceViolation(entity domain.EntityType, id, message string) domain.Violation {
	return domain.Violation{
		Rule:     "reference_integrity",
		Severity: domain.SeverityBlock,
		Message:  message,
		Entity:   entity,
		EntityID: id,
	}
}
