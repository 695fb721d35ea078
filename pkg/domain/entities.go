// Package domain defines the persistent farm records, value types, and
// rule evaluation primitives used by foodflow.
package domain

import "time"

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityUser identifies a farmer profile record.
	EntityUser EntityType = "user"
	// EntityCredential identifies the login secret attached to a user.
	EntityCredential EntityType = "credential"
	// EntityParcel identifies a land parcel record.
	EntityParcel EntityType = "parcel"
	// EntityCropCycle identifies a planting cycle on a parcel.
	EntityCropCycle EntityType = "crop_cycle"
	// EntityAdvisory identifies a recommendation issued for a crop cycle.
	EntityAdvisory EntityType = "advisory"
)

// SoilType classifies the dominant soil of a parcel.
type SoilType string

// Supported soil classifications.
const (
	SoilLoamy SoilType = "Loamy"
	SoilClay  SoilType = "Clay"
	SoilSandy SoilType = "Sandy"
	SoilSilt  SoilType = "Silt"
	SoilPeat  SoilType = "Peat"
)

// Valid reports whether s is a known soil type.
func (s SoilType) Valid() bool {
	switch s {
	case SoilLoamy, SoilClay, SoilSandy, SoilSilt, SoilPeat:
		return true
	}
	return false
}

// IrrigationType describes how water reaches a parcel.
type IrrigationType string

// Supported irrigation methods.
const (
	IrrigationManual    IrrigationType = "Manual"
	IrrigationDrip      IrrigationType = "Drip"
	IrrigationSprinkler IrrigationType = "Sprinkler"
	IrrigationRainFed   IrrigationType = "Rain-fed"
)

// Valid reports whether i is a known irrigation method.
func (i IrrigationType) Valid() bool {
	switch i {
	case IrrigationManual, IrrigationDrip, IrrigationSprinkler, IrrigationRainFed:
		return true
	}
	return false
}

// GrowthStage is the phenological stage of a crop cycle.
type GrowthStage string

// Growth stages in field order.
const (
	StageSeeding    GrowthStage = "Seeding"
	StageVegetative GrowthStage = "Vegetative"
	StageFlowering  GrowthStage = "Flowering"
	StageMaturity   GrowthStage = "Maturity"
	StageHarvesting GrowthStage = "Harvesting"
)

// Valid reports whether g is a known growth stage.
func (g GrowthStage) Valid() bool {
	switch g {
	case StageSeeding, StageVegetative, StageFlowering, StageMaturity, StageHarvesting:
		return true
	}
	return false
}

// CycleStatus tracks whether a crop cycle is still in the field.
type CycleStatus string

// Canonical cycle statuses. Only active cycles produce operations.
const (
	CycleActive    CycleStatus = "Active"
	CycleHarvested CycleStatus = "Harvested"
	CycleFallow    CycleStatus = "Fallow"
)

// Valid reports whether s is a known cycle status.
func (s CycleStatus) Valid() bool {
	switch s {
	case CycleActive, CycleHarvested, CycleFallow:
		return true
	}
	return false
}

// RiskLevel labels the severity of the threat an advisory addresses.
type RiskLevel string

// Advisory risk labels.
const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

// Valid reports whether r is a known risk label.
func (r RiskLevel) Valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	}
	return false
}

// FarmingPractice is the farmer's declared water regime.
type FarmingPractice string

// Supported farming practices.
const (
	PracticeRainFed   FarmingPractice = "Rain-fed"
	PracticeIrrigated FarmingPractice = "Irrigated"
	PracticeMixed     FarmingPractice = "Mixed"
)

// Valid reports whether p is a known farming practice.
func (p FarmingPractice) Valid() bool {
	switch p {
	case PracticeRainFed, PracticeIrrigated, PracticeMixed:
		return true
	}
	return false
}

// CalendarDateLayout is the layout used for planting and harvest dates.
const CalendarDateLayout = "2006-01-02"

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Base contains common fields for all domain records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserProfile is a farmer account together with its farm metadata.
type UserProfile struct {
	Base
	Name            string          `json:"name"`
	FarmName        string          `json:"farm_name"`
	Region          string          `json:"region"`
	LocationCountry string          `json:"location_country,omitempty"`
	Email           string          `json:"email"`
	AvatarURL       string          `json:"avatar_url"`
	LandSize        *float64        `json:"land_size,omitempty"`
	FarmingPractice FarmingPractice `json:"farming_practice,omitempty"`
	Timezone        string          `json:"timezone,omitempty"`
}

// Credential stores the password hash for a user. It is kept apart from the
// profile so profile payloads never carry secrets.
type Credential struct {
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Parcel is a plot of land owned by a user.
type Parcel struct {
	Base
	UserID         string         `json:"user_id"`
	Name           string         `json:"name"`
	Hectares       float64        `json:"hectares"`
	SoilType       SoilType       `json:"soil_type"`
	IrrigationType IrrigationType `json:"irrigation_type"`
}

// CropCycle is a single planting on a parcel.
type CropCycle struct {
	Base
	ParcelID         string      `json:"parcel_id"`
	CropType         string      `json:"crop_type"`
	Stage            GrowthStage `json:"stage"`
	Status           CycleStatus `json:"status"`
	PlantedAt        string      `json:"planted_at"`
	TargetHarvestAt  string      `json:"target_harvest_at"`
	ProjectedYieldKg float64     `json:"projected_yield_kg"`
}

// Advisory is a recommendation issued for a crop cycle.
type Advisory struct {
	Base
	CycleID             string     `json:"cycle_id"`
	Action              string     `json:"action"`
	Reason              string     `json:"reason"`
	RiskPrevented       string     `json:"risk_prevented,omitempty"`
	LossReductionDetail string     `json:"loss_reduction_detail,omitempty"`
	Confidence          int        `json:"confidence"`
	Risk                RiskLevel  `json:"risk"`
	ImpactSavedKg       float64    `json:"impact_saved_kg"`
	IsCompleted         bool       `json:"is_completed"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported CRUD operations.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string     `json:"rule"`
	Severity Severity   `json:"severity"`
	Message  string     `json:"message"`
	Entity   EntityType `json:"entity"`
	EntityID string     `json:"entity_id,omitempty"`
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation `json:"violations,omitempty"`
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	for _, v := range e.Result.Violations {
		if v.Severity == SeverityBlock && v.Message != "" {
			return "transaction blocked by rules: " + v.Message
		}
	}
	return "transaction blocked by rules"
}
