package domain

import "context"

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	CreateUser(UserProfile) (UserProfile, error)
	UpdateUser(id string, mutator func(*UserProfile) error) (UserProfile, error)
	PutCredential(Credential) (Credential, error)
	CreateParcel(Parcel) (Parcel, error)
	UpdateParcel(id string, mutator func(*Parcel) error) (Parcel, error)
	DeleteParcel(id string) error
	CreateCropCycle(CropCycle) (CropCycle, error)
	UpdateCropCycle(id string, mutator func(*CropCycle) error) (CropCycle, error)
	DeleteCropCycle(id string) error
	CreateAdvisory(Advisory) (Advisory, error)
	UpdateAdvisory(id string, mutator func(*Advisory) error) (Advisory, error)
	DeleteAdvisory(id string) error
	FindParcel(id string) (Parcel, bool)
	FindCropCycle(id string) (CropCycle, bool)
}

// TransactionView provides read-only access to snapshot data for rules and
// query paths.
type TransactionView interface {
	RuleView
	FindUserByEmail(email string) (UserProfile, bool)
	FindCredential(userID string) (Credential, bool)
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetUser(id string) (UserProfile, bool)
	ListParcels() []Parcel
	ListCropCycles() []CropCycle
	ListAdvisories() []Advisory
}
