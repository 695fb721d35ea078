package core

import "foodflow/pkg/domain"

// NewDefaultRulesEngine builds a rules engine with the built-in policy set.
func NewDefaultRulesEngine() *RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(ReferenceIntegrityRule())
	engine.Register(FieldConstraintsRule())
	engine.Register(CycleCalendarRule())
	return engine
}
