package domain

import (
	"sort"
	"strings"
	"time"
)

// ActiveOperation joins an active crop cycle with its parcel and the most
// recent advisory that has not been completed yet.
type ActiveOperation struct {
	Parcel         Parcel    `json:"parcel"`
	Cycle          CropCycle `json:"cycle"`
	LatestAdvisory *Advisory `json:"latest_advisory"`
}

// DashboardStats summarises a workspace for the dashboard header.
type DashboardStats struct {
	TotalImpactKg float64 `json:"total_impact_kg"`
	ActiveRisks   int     `json:"active_risks"`
	TasksPending  int     `json:"tasks_pending"`
	PlotsManaged  int     `json:"plots_managed"`
	TotalHectares float64 `json:"total_hectares"`
}

// Workspace is everything a single user can see.
type Workspace struct {
	User       UserProfile `json:"user"`
	Parcels    []Parcel    `json:"parcels"`
	Cycles     []CropCycle `json:"cycles"`
	Advisories []Advisory  `json:"advisories"`
}

// WorkspaceFor collects the records owned by userID: its parcels, the cycles
// planted on them, and the advisories issued for those cycles.
func WorkspaceFor(view RuleView, userID string) (Workspace, bool) {
	user, ok := view.FindUser(userID)
	if !ok {
		return Workspace{}, false
	}
	ws := Workspace{User: user, Parcels: []Parcel{}, Cycles: []CropCycle{}, Advisories: []Advisory{}}
	parcelIDs := make(map[string]struct{})
	for _, p := range view.ListParcels() {
		if p.UserID == userID {
			ws.Parcels = append(ws.Parcels, p)
			parcelIDs[p.ID] = struct{}{}
		}
	}
	cycleIDs := make(map[string]struct{})
	for _, c := range view.ListCropCycles() {
		if _, ok := parcelIDs[c.ParcelID]; ok {
			ws.Cycles = append(ws.Cycles, c)
			cycleIDs[c.ID] = struct{}{}
		}
	}
	for _, a := range view.ListAdvisories() {
		if _, ok := cycleIDs[a.CycleID]; ok {
			ws.Advisories = append(ws.Advisories, a)
		}
	}
	sortByCreation(ws.Parcels, func(p Parcel) Base { return p.Base })
	sortByCreation(ws.Cycles, func(c CropCycle) Base { return c.Base })
	sortByCreation(ws.Advisories, func(a Advisory) Base { return a.Base })
	return ws, true
}

// OwnsParcel reports whether the parcel belongs to the workspace.
func (w Workspace) OwnsParcel(id string) (Parcel, bool) {
	for _, p := range w.Parcels {
		if p.ID == id {
			return p, true
		}
	}
	return Parcel{}, false
}

// OwnsCycle reports whether the crop cycle belongs to the workspace.
func (w Workspace) OwnsCycle(id string) (CropCycle, bool) {
	for _, c := range w.Cycles {
		if c.ID == id {
			return c, true
		}
	}
	return CropCycle{}, false
}

// OwnsAdvisory reports whether the advisory belongs to the workspace.
func (w Workspace) OwnsAdvisory(id string) (Advisory, bool) {
	for _, a := range w.Advisories {
		if a.ID == id {
			return a, true
		}
	}
	return Advisory{}, false
}

// Operations derives the workspace's active operations.
func (w Workspace) Operations() []ActiveOperation {
	return DeriveActiveOperations(w.Parcels, w.Cycles, w.Advisories)
}

// Stats computes the dashboard summary for the workspace.
func (w Workspace) Stats() DashboardStats {
	return ComputeStats(w.Parcels, w.Advisories, w.Operations())
}

// DeriveActiveOperations returns one operation per active cycle in creation
// order. Cycles whose parcel cannot be resolved are skipped. The latest
// advisory is the newest non-completed advisory for the cycle, or nil.
func DeriveActiveOperations(parcels []Parcel, cycles []CropCycle, advisories []Advisory) []ActiveOperation {
	parcelByID := make(map[string]Parcel, len(parcels))
	for _, p := range parcels {
		parcelByID[p.ID] = p
	}
	pending := make(map[string]Advisory)
	for _, a := range advisories {
		if a.IsCompleted {
			continue
		}
		current, ok := pending[a.CycleID]
		if !ok || newerThan(a.Base, current.Base) {
			pending[a.CycleID] = a
		}
	}

	active := make([]CropCycle, 0, len(cycles))
	for _, c := range cycles {
		if c.Status == CycleActive {
			active = append(active, c)
		}
	}
	sortByCreation(active, func(c CropCycle) Base { return c.Base })

	ops := make([]ActiveOperation, 0, len(active))
	for _, c := range active {
		parcel, ok := parcelByID[c.ParcelID]
		if !ok {
			continue
		}
		op := ActiveOperation{Parcel: parcel, Cycle: c}
		if a, ok := pending[c.ID]; ok {
			latest := a
			op.LatestAdvisory = &latest
		}
		ops = append(ops, op)
	}
	return ops
}

// ComputeStats aggregates the dashboard counters.
func ComputeStats(parcels []Parcel, advisories []Advisory, ops []ActiveOperation) DashboardStats {
	stats := DashboardStats{PlotsManaged: len(parcels)}
	for _, p := range parcels {
		stats.TotalHectares += p.Hectares
	}
	for _, a := range advisories {
		if a.IsCompleted {
			stats.TotalImpactKg += a.ImpactSavedKg
		}
	}
	for _, op := range ops {
		if op.LatestAdvisory == nil {
			continue
		}
		stats.TasksPending++
		if op.LatestAdvisory.Risk == RiskHigh {
			stats.ActiveRisks++
		}
	}
	return stats
}

// CompletedRecords returns completed advisories, most recently completed first.
func CompletedRecords(advisories []Advisory) []Advisory {
	out := make([]Advisory, 0, len(advisories))
	for _, a := range advisories {
		if a.IsCompleted {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ti, tj := completedAt(out[i]), completedAt(out[j])
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func completedAt(a Advisory) time.Time {
	if a.CompletedAt != nil {
		return *a.CompletedAt
	}
	return a.UpdatedAt
}

func newerThan(a, b Base) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return strings.Compare(a.ID, b.ID) > 0
}

func sortByCreation[T any](items []T, base func(T) Base) {
	sort.SliceStable(items, func(i, j int) bool {
		bi, bj := base(items[i]), base(items[j])
		if !bi.CreatedAt.Equal(bj.CreatedAt) {
			return bi.CreatedAt.Before(bj.CreatedAt)
		}
		return bi.ID < bj.ID
	})
}
