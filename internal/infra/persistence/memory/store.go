// Package memory provides an in-memory implementation of the core persistence
// store used for tests and ephemeral environments.
package memory

import (
	"context"
	"fmt"
	"foodflow/pkg/domain"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Compile-time contract assertions ensuring memory.Store adheres to the domain persistence interfaces.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// UserProfile aliases domain.UserProfile for in-memory persistence operations.
	UserProfile = domain.UserProfile
	// Credential aliases domain.Credential.
	Credential = domain.Credential
	// Parcel aliases domain.Parcel.
	Parcel = domain.Parcel
	// CropCycle aliases domain.CropCycle.
	CropCycle = domain.CropCycle
	// Advisory aliases domain.Advisory.
	Advisory = domain.Advisory
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

// ID prefixes applied to generated record identifiers.
const (
	UserIDPrefix     = "usr-"
	ParcelIDPrefix   = "par-"
	CycleIDPrefix    = "cyc-"
	AdvisoryIDPrefix = "adv-"
)

type memoryState struct {
	users       map[string]UserProfile
	credentials map[string]Credential
	parcels     map[string]Parcel
	cycles      map[string]CropCycle
	advisories  map[string]Advisory
}

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	Users       map[string]UserProfile `json:"users"`
	Credentials map[string]Credential  `json:"credentials"`
	Parcels     map[string]Parcel      `json:"parcels"`
	Cycles      map[string]CropCycle   `json:"cycles"`
	Advisories  map[string]Advisory    `json:"advisories"`
}

func newMemoryState() memoryState {
	return memoryState{
		users:       make(map[string]UserProfile),
		credentials: make(map[string]Credential),
		parcels:     make(map[string]Parcel),
		cycles:      make(map[string]CropCycle),
		advisories:  make(map[string]Advisory),
	}
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	s := Snapshot{
		Users:       make(map[string]UserProfile, len(state.users)),
		Credentials: make(map[string]Credential, len(state.credentials)),
		Parcels:     make(map[string]Parcel, len(state.parcels)),
		Cycles:      make(map[string]CropCycle, len(state.cycles)),
		Advisories:  make(map[string]Advisory, len(state.advisories)),
	}
	for k, v := range state.users {
		s.Users[k] = cloneUser(v)
	}
	for k, v := range state.credentials {
		s.Credentials[k] = v
	}
	for k, v := range state.parcels {
		s.Parcels[k] = v
	}
	for k, v := range state.cycles {
		s.Cycles[k] = v
	}
	for k, v := range state.advisories {
		s.Advisories[k] = cloneAdvisory(v)
	}
	return s
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := newMemoryState()
	for k, v := range s.Users {
		state.users[k] = cloneUser(v)
	}
	for k, v := range s.Credentials {
		state.credentials[k] = v
	}
	for k, v := range s.Parcels {
		state.parcels[k] = v
	}
	for k, v := range s.Cycles {
		state.cycles[k] = v
	}
	for k, v := range s.Advisories {
		state.advisories[k] = cloneAdvisory(v)
	}
	return state
}

// migrateSnapshot normalizes a snapshot loaded from durable storage: nil
// buckets become empty and records whose owner or parent is gone are dropped.
func migrateSnapshot(snapshot Snapshot) Snapshot {
	if snapshot.Users == nil {
		snapshot.Users = map[string]UserProfile{}
	}
	if snapshot.Credentials == nil {
		snapshot.Credentials = map[string]Credential{}
	}
	if snapshot.Parcels == nil {
		snapshot.Parcels = map[string]Parcel{}
	}
	if snapshot.Cycles == nil {
		snapshot.Cycles = map[string]CropCycle{}
	}
	if snapshot.Advisories == nil {
		snapshot.Advisories = map[string]Advisory{}
	}

	for id, cred := range snapshot.Credentials {
		if _, ok := snapshot.Users[cred.UserID]; !ok || id != cred.UserID {
			delete(snapshot.Credentials, id)
		}
	}
	for id, parcel := range snapshot.Parcels {
		if _, ok := snapshot.Users[parcel.UserID]; !ok {
			delete(snapshot.Parcels, id)
		}
	}
	for id, cycle := range snapshot.Cycles {
		if _, ok := snapshot.Parcels[cycle.ParcelID]; !ok {
			delete(snapshot.Cycles, id)
		}
	}
	for id, advisory := range snapshot.Advisories {
		if _, ok := snapshot.Cycles[advisory.CycleID]; !ok {
			delete(snapshot.Advisories, id)
			continue
		}
		if advisory.IsCompleted && advisory.CompletedAt == nil {
			completed := advisory.UpdatedAt
			advisory.CompletedAt = &completed
		}
		if !advisory.IsCompleted {
			advisory.CompletedAt = nil
		}
		snapshot.Advisories[id] = advisory
	}
	return snapshot
}

func (s memoryState) clone() memoryState {
	return memoryStateFromSnapshot(snapshotFromMemoryState(s))
}

func cloneUser(u UserProfile) UserProfile {
	if u.LandSize != nil {
		size := *u.LandSize
		u.LandSize = &size
	}
	return u
}

func cloneAdvisory(a Advisory) Advisory {
	if a.CompletedAt != nil {
		at := *a.CompletedAt
		a.CompletedAt = &at
	}
	return a
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used to stamp records.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.nowFn = now
		}
	}
}

// WithIDGenerator overrides the random suffix used for new record IDs.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) {
		if gen != nil {
			s.idFn = gen
		}
	}
}

// Store provides an in-memory transactional store for the core domain.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
	idFn   func() string
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine, opts ...Option) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	s := &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
		idFn:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) newID(prefix string) string {
	return prefix + s.idFn()
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(migrateSnapshot(snapshot))
}

// RulesEngine exposes the currently configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// NowFunc returns the time provider used by the in-memory store.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

type transaction struct {
	store   *Store
	state   memoryState
	changes []Change
	now     time.Time
	seq     int
}

// transactionView exposes a read-only snapshot of the transactional state to rules.
type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

func sortedValues[T any](m map[string]T, clone func(T) T, created func(T) domain.Base) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		out = append(out, clone(v))
	}
	sort.Slice(out, func(i, j int) bool {
		bi, bj := created(out[i]), created(out[j])
		if !bi.CreatedAt.Equal(bj.CreatedAt) {
			return bi.CreatedAt.Before(bj.CreatedAt)
		}
		return bi.ID < bj.ID
	})
	return out
}

func identity[T any](v T) T { return v }

func userBase(u UserProfile) domain.Base  { return u.Base }
func parcelBase(p Parcel) domain.Base     { return p.Base }
func cycleBase(c CropCycle) domain.Base   { return c.Base }
func advisoryBase(a Advisory) domain.Base { return a.Base }

// ListUsers returns every profile in creation order.
func (v transactionView) ListUsers() []UserProfile {
	return sortedValues(v.state.users, cloneUser, userBase)
}

// ListParcels returns every parcel in creation order.
func (v transactionView) ListParcels() []Parcel {
	return sortedValues(v.state.parcels, identity[Parcel], parcelBase)
}

// ListCropCycles returns every crop cycle in creation order.
func (v transactionView) ListCropCycles() []CropCycle {
	return sortedValues(v.state.cycles, identity[CropCycle], cycleBase)
}

// ListAdvisories returns every advisory in creation order.
func (v transactionView) ListAdvisories() []Advisory {
	return sortedValues(v.state.advisories, cloneAdvisory, advisoryBase)
}

func (v transactionView) FindUser(id string) (UserProfile, bool) {
	u, ok := v.state.users[id]
	if !ok {
		return UserProfile{}, false
	}
	return cloneUser(u), true
}

func (v transactionView) FindUserByEmail(email string) (UserProfile, bool) {
	return findUserByEmail(v.state, email)
}

func (v transactionView) FindCredential(userID string) (Credential, bool) {
	c, ok := v.state.credentials[userID]
	return c, ok
}

func (v transactionView) FindParcel(id string) (Parcel, bool) {
	p, ok := v.state.parcels[id]
	return p, ok
}

func (v transactionView) FindCropCycle(id string) (CropCycle, bool) {
	c, ok := v.state.cycles[id]
	return c, ok
}

func (v transactionView) FindAdvisory(id string) (Advisory, bool) {
	a, ok := v.state.advisories[id]
	if !ok {
		return Advisory{}, false
	}
	return cloneAdvisory(a), true
}

func findUserByEmail(state *memoryState, email string) (UserProfile, bool) {
	key := normalizeEmail(email)
	if key == "" {
		return UserProfile{}, false
	}
	for _, u := range state.users {
		if normalizeEmail(u.Email) == key {
			return cloneUser(u), true
		}
	}
	return UserProfile{}, false
}

// RunInTransaction executes fn within a transactional copy of the store state.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	view := newTransactionView(&snapshot)
	return fn(view)
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// stamp returns a creation time that is strictly increasing within the
// transaction so records created together keep their insertion order.
func (tx *transaction) stamp() time.Time {
	ts := tx.now.Add(time.Duration(tx.seq) * time.Microsecond)
	tx.seq++
	return ts
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

// FindParcel exposes parcel lookup within the transaction scope.
func (tx *transaction) FindParcel(id string) (Parcel, bool) {
	p, ok := tx.state.parcels[id]
	return p, ok
}

// FindCropCycle exposes crop cycle lookup within the transaction scope.
func (tx *transaction) FindCropCycle(id string) (CropCycle, bool) {
	c, ok := tx.state.cycles[id]
	return c, ok
}

// CreateUser stores a new profile. Emails are unique, compared case-insensitively.
func (tx *transaction) CreateUser(u UserProfile) (UserProfile, error) {
	if u.ID == "" {
		u.ID = tx.store.newID(UserIDPrefix)
	}
	if _, exists := tx.state.users[u.ID]; exists {
		return UserProfile{}, fmt.Errorf("user %q already exists", u.ID)
	}
	u.Email = strings.TrimSpace(u.Email)
	if _, taken := findUserByEmail(&tx.state, u.Email); taken {
		return UserProfile{}, fmt.Errorf("email %q already registered", u.Email)
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = tx.stamp()
	}
	u.UpdatedAt = tx.now
	tx.state.users[u.ID] = cloneUser(u)
	tx.recordChange(Change{Entity: domain.EntityUser, Action: domain.ActionCreate, After: cloneUser(u)})
	return cloneUser(u), nil
}

// UpdateUser mutates a profile using the provided mutator function.
func (tx *transaction) UpdateUser(id string, mutator func(*UserProfile) error) (UserProfile, error) {
	current, ok := tx.state.users[id]
	if !ok {
		return UserProfile{}, fmt.Errorf("user %q not found", id)
	}
	before := cloneUser(current)
	if err := mutator(&current); err != nil {
		return UserProfile{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	if other, taken := findUserByEmail(&tx.state, current.Email); taken && other.ID != id {
		return UserProfile{}, fmt.Errorf("email %q already registered", current.Email)
	}
	current.UpdatedAt = tx.now
	tx.state.users[id] = cloneUser(current)
	tx.recordChange(Change{Entity: domain.EntityUser, Action: domain.ActionUpdate, Before: before, After: cloneUser(current)})
	return cloneUser(current), nil
}

// PutCredential creates or replaces the credential for an existing user.
func (tx *transaction) PutCredential(c Credential) (Credential, error) {
	if _, ok := tx.state.users[c.UserID]; !ok {
		return Credential{}, fmt.Errorf("user %q not found", c.UserID)
	}
	if c.PasswordHash == "" {
		return Credential{}, fmt.Errorf("credential for %q requires a password hash", c.UserID)
	}
	action := domain.ActionCreate
	if _, exists := tx.state.credentials[c.UserID]; exists {
		action = domain.ActionUpdate
	}
	c.Email = normalizeEmail(c.Email)
	c.UpdatedAt = tx.now
	tx.state.credentials[c.UserID] = c
	tx.recordChange(Change{Entity: domain.EntityCredential, Action: action})
	return c, nil
}

// CreateParcel stores a new parcel for an existing user.
func (tx *transaction) CreateParcel(p Parcel) (Parcel, error) {
	if p.ID == "" {
		p.ID = tx.store.newID(ParcelIDPrefix)
	}
	if _, exists := tx.state.parcels[p.ID]; exists {
		return Parcel{}, fmt.Errorf("parcel %q already exists", p.ID)
	}
	if _, ok := tx.state.users[p.UserID]; !ok {
		return Parcel{}, fmt.Errorf("parcel owner %q not found", p.UserID)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = tx.stamp()
	}
	p.UpdatedAt = tx.now
	tx.state.parcels[p.ID] = p
	tx.recordChange(Change{Entity: domain.EntityParcel, Action: domain.ActionCreate, After: p})
	return p, nil
}

// UpdateParcel mutates a parcel. Ownership cannot change.
func (tx *transaction) UpdateParcel(id string, mutator func(*Parcel) error) (Parcel, error) {
	current, ok := tx.state.parcels[id]
	if !ok {
		return Parcel{}, fmt.Errorf("parcel %q not found", id)
	}
	before := current
	if err := mutator(&current); err != nil {
		return Parcel{}, err
	}
	current.ID = id
	current.UserID = before.UserID
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.parcels[id] = current
	tx.recordChange(Change{Entity: domain.EntityParcel, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// DeleteParcel removes a parcel that no crop cycle references.
func (tx *transaction) DeleteParcel(id string) error {
	current, ok := tx.state.parcels[id]
	if !ok {
		return fmt.Errorf("parcel %q not found", id)
	}
	for _, cycle := range tx.state.cycles {
		if cycle.ParcelID == id {
			return fmt.Errorf("parcel %q still referenced by crop cycle %q", id, cycle.ID)
		}
	}
	delete(tx.state.parcels, id)
	tx.recordChange(Change{Entity: domain.EntityParcel, Action: domain.ActionDelete, Before: current})
	return nil
}

// CreateCropCycle stores a new crop cycle.
func (tx *transaction) CreateCropCycle(c CropCycle) (CropCycle, error) {
	if c.ID == "" {
		c.ID = tx.store.newID(CycleIDPrefix)
	}
	if _, exists := tx.state.cycles[c.ID]; exists {
		return CropCycle{}, fmt.Errorf("crop cycle %q already exists", c.ID)
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = tx.stamp()
	}
	c.UpdatedAt = tx.now
	tx.state.cycles[c.ID] = c
	tx.recordChange(Change{Entity: domain.EntityCropCycle, Action: domain.ActionCreate, After: c})
	return c, nil
}

// UpdateCropCycle mutates an existing crop cycle.
func (tx *transaction) UpdateCropCycle(id string, mutator func(*CropCycle) error) (CropCycle, error) {
	current, ok := tx.state.cycles[id]
	if !ok {
		return CropCycle{}, fmt.Errorf("crop cycle %q not found", id)
	}
	before := current
	if err := mutator(&current); err != nil {
		return CropCycle{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.cycles[id] = current
	tx.recordChange(Change{Entity: domain.EntityCropCycle, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// DeleteCropCycle removes a crop cycle that no advisory references.
func (tx *transaction) DeleteCropCycle(id string) error {
	current, ok := tx.state.cycles[id]
	if !ok {
		return fmt.Errorf("crop cycle %q not found", id)
	}
	for _, advisory := range tx.state.advisories {
		if advisory.CycleID == id {
			return fmt.Errorf("crop cycle %q still referenced by advisory %q", id, advisory.ID)
		}
	}
	delete(tx.state.cycles, id)
	tx.recordChange(Change{Entity: domain.EntityCropCycle, Action: domain.ActionDelete, Before: current})
	return nil
}

// CreateAdvisory stores a new advisory.
func (tx *transaction) CreateAdvisory(a Advisory) (Advisory, error) {
	if a.ID == "" {
		a.ID = tx.store.newID(AdvisoryIDPrefix)
	}
	if _, exists := tx.state.advisories[a.ID]; exists {
		return Advisory{}, fmt.Errorf("advisory %q already exists", a.ID)
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = tx.stamp()
	}
	a.UpdatedAt = tx.now
	tx.state.advisories[a.ID] = cloneAdvisory(a)
	tx.recordChange(Change{Entity: domain.EntityAdvisory, Action: domain.ActionCreate, After: cloneAdvisory(a)})
	return cloneAdvisory(a), nil
}

// UpdateAdvisory mutates an existing advisory.
func (tx *transaction) UpdateAdvisory(id string, mutator func(*Advisory) error) (Advisory, error) {
	current, ok := tx.state.advisories[id]
	if !ok {
		return Advisory{}, fmt.Errorf("advisory %q not found", id)
	}
	before := cloneAdvisory(current)
	if err := mutator(&current); err != nil {
		return Advisory{}, err
	}
	current.ID = id
	current.CycleID = before.CycleID
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.advisories[id] = cloneAdvisory(current)
	tx.recordChange(Change{Entity: domain.EntityAdvisory, Action: domain.ActionUpdate, Before: before, After: cloneAdvisory(current)})
	return cloneAdvisory(current), nil
}

// DeleteAdvisory removes an advisory from state.
func (tx *transaction) DeleteAdvisory(id string) error {
	current, ok := tx.state.advisories[id]
	if !ok {
		return fmt.Errorf("advisory %q not found", id)
	}
	delete(tx.state.advisories, id)
	tx.recordChange(Change{Entity: domain.EntityAdvisory, Action: domain.ActionDelete, Before: cloneAdvisory(current)})
	return nil
}

// Read helpers ---------------------------------------------------------------

// GetUser retrieves a profile by ID from committed state.
func (s *Store) GetUser(id string) (UserProfile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.state.users[id]
	if !ok {
		return UserProfile{}, false
	}
	return cloneUser(u), true
}

// ListParcels returns all parcels from committed state.
func (s *Store) ListParcels() []Parcel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedValues(s.state.parcels, identity[Parcel], parcelBase)
}

// ListCropCycles returns all crop cycles from committed state.
func (s *Store) ListCropCycles() []CropCycle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedValues(s.state.cycles, identity[CropCycle], cycleBase)
}

// ListAdvisories returns all advisories from committed state.
func (s *Store) ListAdvisories() []Advisory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedValues(s.state.advisories, cloneAdvisory, advisoryBase)
}
