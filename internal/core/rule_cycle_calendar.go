package core

import (
	"context"
	"fmt"
	"foodflow/pkg/domain"
	"time"
)

// CycleCalendarRule requires crop cycle dates in YYYY-MM-DD form and warns
// when the target harvest falls before planting.
func CycleCalendarRule() domain.Rule {
	return cycleCalendarRule{}
}

type cycleCalendarRule struct{}

func (cycleCalendarRule) Name() string { return "cycle_calendar" }

func (cycleCalendarRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != domain.EntityCropCycle || change.After == nil {
			continue
		}
		cycle, ok := change.After.(domain.CropCycle)
		if !ok {
			continue
		}
		planted, errPlanted := time.Parse(domain.CalendarDateLayout, cycle.PlantedAt)
		if errPlanted != nil {
			res.Violations = append(res.Violations, calendarViolation(domain.SeverityBlock, cycle.ID,
				fmt.Sprintf("crop cycle %s planting date %q is not YYYY-MM-DD", cycle.ID, cycle.PlantedAt)))
		}
		harvest, errHarvest := time.Parse(domain.CalendarDateLayout, cycle.TargetHarvestAt)
		if errHarvest != nil {
			res.Violations = append(res.Violations, calendarViolation(domain.SeverityBlock, cycle.ID,
				fmt.Sprintf("crop cycle %s target harvest date %q is not YYYY-MM-DD", cycle.ID, cycle.TargetHarvestAt)))
		}
		if errPlanted == nil && errHarvest == nil && harvest.Before(planted) {
			res.Violations = append(res.Violations, calendarViolation(domain.SeverityWarn, cycle.ID,
				fmt.Sprintf("crop cycle %s target harvest %s precedes planting %s", cycle.ID, cycle.TargetHarvestAt, cycle.PlantedAt)))
		}
	}
	return res, nil
}

func calendarViolation(severity domain.Severity, id, message string) domain.Violation {
	return domain.Violation{
		Rule:     "cycle_calendar",
		Severity: severity,
		Message:  message,
		Entity:   domain.EntityCropCycle,
		EntityID: id,
	}
}
