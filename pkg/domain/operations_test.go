package domain

import (
	"testing"
	"time"
)

var epoch = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

func at(minutes int) time.Time { return epoch.Add(time.Duration(minutes) * time.Minute) }

func base(id string, minutes int) Base {
	return Base{ID: id, CreatedAt: at(minutes), UpdatedAt: at(minutes)}
}

func fixture() ([]Parcel, []CropCycle, []Advisory) {
	parcels := []Parcel{
		{Base: base("par-1", 0), UserID: "usr-1", Name: "North Field A-1", Hectares: 2.5, SoilType: SoilLoamy, IrrigationType: IrrigationManual},
		{Base: base("par-2", 1), UserID: "usr-1", Name: "Riverbank Plot", Hectares: 1.2, SoilType: SoilClay, IrrigationType: IrrigationDrip},
		{Base: base("par-3", 2), UserID: "usr-1", Name: "East Plateau", Hectares: 3.8, SoilType: SoilSandy, IrrigationType: IrrigationRainFed},
	}
	cycles := []CropCycle{
		{Base: base("cyc-2", 4), ParcelID: "par-2", CropType: "Rice", Stage: StageVegetative, Status: CycleActive, ProjectedYieldKg: 2100},
		{Base: base("cyc-1", 3), ParcelID: "par-1", CropType: "Maize", Stage: StageMaturity, Status: CycleActive, ProjectedYieldKg: 4500},
		{Base: base("cyc-3", 5), ParcelID: "par-3", CropType: "Yam", Stage: StageHarvesting, Status: CycleHarvested},
	}
	advisories := []Advisory{
		{Base: base("adv-1", 10), CycleID: "cyc-1", Action: "Harvest Immediately", Confidence: 94, Risk: RiskHigh, ImpactSavedKg: 3600},
	}
	return parcels, cycles, advisories
}

func TestDeriveActiveOperationsOrdersActiveCycles(t *testing.T) {
	parcels, cycles, advisories := fixture()
	ops := DeriveActiveOperations(parcels, cycles, advisories)
	if len(ops) != 2 {
		t.Fatalf("expected 2 operations, got %d", len(ops))
	}
	if ops[0].Cycle.ID != "cyc-1" || ops[1].Cycle.ID != "cyc-2" {
		t.Fatalf("expected creation order, got %s, %s", ops[0].Cycle.ID, ops[1].Cycle.ID)
	}
	if ops[0].Parcel.Name != "North Field A-1" {
		t.Fatalf("expected joined parcel, got %+v", ops[0].Parcel)
	}
	if ops[0].LatestAdvisory == nil || ops[0].LatestAdvisory.ID != "adv-1" {
		t.Fatalf("expected adv-1 as latest advisory, got %+v", ops[0].LatestAdvisory)
	}
	if ops[1].LatestAdvisory != nil {
		t.Fatalf("expected no advisory for cyc-2")
	}
}

func TestDeriveActiveOperationsPicksNewestPendingAdvisory(t *testing.T) {
	parcels, cycles, advisories := fixture()
	advisories = append(advisories,
		Advisory{Base: base("adv-2", 20), CycleID: "cyc-1", Risk: RiskMedium},
		Advisory{Base: base("adv-3", 30), CycleID: "cyc-1", Risk: RiskHigh, IsCompleted: true},
	)
	ops := DeriveActiveOperations(parcels, cycles, advisories)
	if ops[0].LatestAdvisory == nil || ops[0].LatestAdvisory.ID != "adv-2" {
		t.Fatalf("expected adv-2, got %+v", ops[0].LatestAdvisory)
	}
}

func TestDeriveActiveOperationsSkipsUnresolvedParcel(t *testing.T) {
	cycles := []CropCycle{{Base: base("cyc-x", 0), ParcelID: "missing", Status: CycleActive}}
	if ops := DeriveActiveOperations(nil, cycles, nil); len(ops) != 0 {
		t.Fatalf("expected dangling cycle to be skipped, got %d", len(ops))
	}
}

func TestDeriveActiveOperationsEmptyInputs(t *testing.T) {
	ops := DeriveActiveOperations(nil, nil, nil)
	if ops == nil || len(ops) != 0 {
		t.Fatalf("expected empty non-nil slice")
	}
}

func TestComputeStats(t *testing.T) {
	parcels, cycles, advisories := fixture()
	done := at(60)
	advisories = append(advisories,
		Advisory{Base: base("adv-9", 1), CycleID: "cyc-2", Risk: RiskLow, ImpactSavedKg: 315, IsCompleted: true, CompletedAt: &done},
	)
	ops := DeriveActiveOperations(parcels, cycles, advisories)
	stats := ComputeStats(parcels, advisories, ops)
	want := DashboardStats{TotalImpactKg: 315, ActiveRisks: 1, TasksPending: 1, PlotsManaged: 3, TotalHectares: 7.5}
	if stats != want {
		t.Fatalf("expected %+v, got %+v", want, stats)
	}
}

func TestComputeStatsPendingImpactNotCounted(t *testing.T) {
	parcels, cycles, advisories := fixture()
	stats := ComputeStats(parcels, advisories, DeriveActiveOperations(parcels, cycles, advisories))
	if stats.TotalImpactKg != 0 {
		t.Fatalf("pending advisories must not count toward impact, got %v", stats.TotalImpactKg)
	}
}

func TestCompletedRecordsNewestFirst(t *testing.T) {
	first, second := at(5), at(50)
	records := CompletedRecords([]Advisory{
		{Base: base("adv-a", 0), IsCompleted: true, CompletedAt: &first},
		{Base: base("adv-b", 1)},
		{Base: base("adv-c", 2), IsCompleted: true, CompletedAt: &second},
	})
	if len(records) != 2 || records[0].ID != "adv-c" || records[1].ID != "adv-a" {
		t.Fatalf("unexpected records %+v", records)
	}
}

func TestWorkspaceForScopesByOwner(t *testing.T) {
	parcels, cycles, advisories := fixture()
	parcels = append(parcels, Parcel{Base: base("par-x", 9), UserID: "usr-2", Name: "Other"})
	cycles = append(cycles, CropCycle{Base: base("cyc-x", 9), ParcelID: "par-x", Status: CycleActive})
	advisories = append(advisories, Advisory{Base: base("adv-x", 9), CycleID: "cyc-x"})
	view := sliceView{
		users:      []UserProfile{{Base: base("usr-1", 0)}, {Base: base("usr-2", 0)}},
		parcels:    parcels,
		cycles:     cycles,
		advisories: advisories,
	}
	ws, ok := WorkspaceFor(view, "usr-1")
	if !ok {
		t.Fatalf("expected workspace for usr-1")
	}
	if len(ws.Parcels) != 3 || len(ws.Cycles) != 3 || len(ws.Advisories) != 1 {
		t.Fatalf("unexpected workspace sizes %d/%d/%d", len(ws.Parcels), len(ws.Cycles), len(ws.Advisories))
	}
	if _, ok := ws.OwnsParcel("par-x"); ok {
		t.Fatalf("foreign parcel leaked into workspace")
	}
	if _, ok := ws.OwnsCycle("cyc-1"); !ok {
		t.Fatalf("expected cyc-1 in workspace")
	}
	if ws.Stats().PlotsManaged != 3 {
		t.Fatalf("expected 3 plots, got %d", ws.Stats().PlotsManaged)
	}
	if _, ok := WorkspaceFor(view, "usr-404"); ok {
		t.Fatalf("expected unknown user to have no workspace")
	}
}

type sliceView struct {
	users      []UserProfile
	parcels    []Parcel
	cycles     []CropCycle
	advisories []Advisory
}

func (v sliceView) ListUsers() []UserProfile    { return v.users }
func (v sliceView) ListParcels() []Parcel       { return v.parcels }
func (v sliceView) ListCropCycles() []CropCycle { return v.cycles }
func (v sliceView) ListAdvisories() []Advisory  { return v.advisories }

func (v sliceView) FindUser(id string) (UserProfile, bool) {
	for _, u := range v.users {
		if u.ID == id {
			return u, true
		}
	}
	return UserProfile{}, false
}

func (v sliceView) FindParcel(id string) (Parcel, bool) {
	for _, p := range v.parcels {
		if p.ID == id {
			return p, true
		}
	}
	return Parcel{}, false
}

func (v sliceView) FindCropCycle(id string) (CropCycle, bool) {
	for _, c := range v.cycles {
		if c.ID == id {
			return c, true
		}
	}
	return CropCycle{}, false
}

func (v sliceView) FindAdvisory(id string) (Advisory, bool) {
	for _, a := range v.advisories {
		if a.ID == id {
			return a, true
		}
	}
	return Advisory{}, false
}
