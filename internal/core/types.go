package core

import "foodflow/pkg/domain"

type (
	EntityType         = domain.EntityType
	Severity           = domain.Severity
	Base               = domain.Base
	UserProfile        = domain.UserProfile
	Parcel             = domain.Parcel
	CropCycle          = domain.CropCycle
	Advisory           = domain.Advisory
	Change             = domain.Change
	Action             = domain.Action
	Violation          = domain.Violation
	Result             = domain.Result
	RuleViolationError = domain.RuleViolationError
	RulesEngine        = domain.RulesEngine
	Transaction        = domain.Transaction
	TransactionView    = domain.TransactionView
	PersistentStore    = domain.PersistentStore
)

const (
	EntityUser       = domain.EntityUser
	EntityCredential = domain.EntityCredential
	EntityParcel     = domain.EntityParcel
	EntityCropCycle  = domain.EntityCropCycle
	EntityAdvisory   = domain.EntityAdvisory
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
	ActionDelete = domain.ActionDelete
)
