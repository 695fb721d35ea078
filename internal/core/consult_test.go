package core

import (
	"context"
	"errors"
	"foodflow/internal/advisory"
	"foodflow/pkg/domain"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestRiskAndImpact(t *testing.T) {
	if RiskFor(91) != domain.RiskHigh || RiskFor(90) != domain.RiskMedium || RiskFor(75) != domain.RiskMedium {
		t.Fatalf("unexpected risk mapping")
	}
	if ImpactFor(4500) != 675 || ImpactFor(2101) != 315 || ImpactFor(0) != 0 {
		t.Fatalf("unexpected impact values")
	}
}

func TestRunConsultationStoresAdvisory(t *testing.T) {
	ctx := context.Background()
	var seen advisory.Context
	gen := advisory.GeneratorFunc(func(_ context.Context, c advisory.Context) (advisory.Result, error) {
		seen = c
		return advisory.Result{Action: "Drain field", Reason: "saturation", RiskPrevented: "root rot", LossReductionDetail: "keeps roots", Confidence: 93}, nil
	})
	sink := &captureSink{}
	svc := newTestService(t, WithAdvisor(gen), WithChangeSink(sink), WithDemoSeed(mustDemoSeed(t)))
	user := mustSignup(t, svc, "amina@farm.test")
	ops, err := svc.ActiveOperations(ctx, user.ID)
	if err != nil || len(ops) != 2 {
		t.Fatalf("expected two operations, got %v, %v", ops, err)
	}
	rice := ops[1]
	lat, lng := 6.45, 3.39

	adv, _, err := svc.RunConsultation(ctx, user.ID, rice.Cycle.ID, ConsultInput{Lat: &lat, Lng: &lng})
	if err != nil {
		t.Fatalf("run consultation: %v", err)
	}
	if adv.Risk != domain.RiskHigh || adv.ImpactSavedKg != 315 || adv.Confidence != 93 || adv.IsCompleted {
		t.Fatalf("unexpected advisory %+v", adv)
	}
	if seen.Region != "West Africa" || seen.Crop != "Rice" || seen.Stage != domain.StageVegetative || seen.SoilType != domain.SoilClay || seen.IrrigationMethod != domain.IrrigationDrip {
		t.Fatalf("unexpected generator context %+v", seen)
	}
	if seen.Lat == nil || *seen.Lat != lat {
		t.Fatalf("expected coordinates to reach the generator")
	}
	if ev := sink.last(); ev.Entity != EntityAdvisory || ev.Stats.TasksPending != 2 || ev.Stats.ActiveRisks != 2 {
		t.Fatalf("unexpected event %+v", ev)
	}

	ops, _ = svc.ActiveOperations(ctx, user.ID)
	if ops[1].LatestAdvisory == nil || ops[1].LatestAdvisory.ID != adv.ID {
		t.Fatalf("expected new advisory to be latest for the cycle")
	}
}

func TestRunConsultationFallsBackOnGeneratorError(t *testing.T) {
	ctx := context.Background()
	metrics := &captureMetrics{}
	gen := advisory.GeneratorFunc(func(context.Context, advisory.Context) (advisory.Result, error) {
		return advisory.Result{}, errors.New("model offline")
	})
	svc := newTestService(t, WithAdvisor(gen), WithMetricsRecorder(metrics), WithDemoSeed(mustDemoSeed(t)))
	user := mustSignup(t, svc, "amina@farm.test")
	ops, _ := svc.ActiveOperations(ctx, user.ID)

	adv, _, err := svc.RunConsultation(ctx, user.ID, ops[0].Cycle.ID, ConsultInput{})
	if err != nil {
		t.Fatalf("expected fallback, got %v", err)
	}
	if adv.Action != "Adhere to regional safety baseline." || adv.Confidence != 75 || adv.Risk != domain.RiskMedium || adv.ImpactSavedKg != 675 {
		t.Fatalf("unexpected fallback advisory %+v", adv)
	}
	if !metrics.has("generate_advisory", false) || !metrics.has("run_consultation", true) {
		t.Fatalf("expected generator failure metric, got %+v", metrics.calls)
	}
}

func TestRunConsultationRejectsInactiveAndForeignCycles(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, WithDemoSeed(mustDemoSeed(t)))
	user := mustSignup(t, svc, "amina@farm.test")
	other := mustSignup(t, svc, "lee@farm.test")
	ops, _ := svc.ActiveOperations(ctx, user.ID)

	var nf ErrNotFound
	if _, _, err := svc.RunConsultation(ctx, other.ID, ops[0].Cycle.ID, ConsultInput{}); !errors.As(err, &nf) {
		t.Fatalf("expected not found for foreign cycle, got %v", err)
	}

	harvested := domain.CycleHarvested
	if _, _, err := svc.UpdateCycle(ctx, user.ID, ops[0].Cycle.ID, CycleUpdate{Status: &harvested}); err != nil {
		t.Fatalf("update status: %v", err)
	}
	var verr ValidationError
	if _, _, err := svc.RunConsultation(ctx, user.ID, ops[0].Cycle.ID, ConsultInput{}); !errors.As(err, &verr) {
		t.Fatalf("expected validation error for inactive cycle, got %v", err)
	}
}

func TestSyncAdvisoriesConsultsUncoveredOperations(t *testing.T) {
	ctx := context.Background()
	var (
		calls atomic.Int32
		mu    sync.Mutex
		crops []string
	)
	gen := advisory.GeneratorFunc(func(_ context.Context, c advisory.Context) (advisory.Result, error) {
		calls.Add(1)
		mu.Lock()
		crops = append(crops, c.Crop)
		mu.Unlock()
		return advisory.Result{Action: "Scout for pests", Confidence: 80}, nil
	})
	svc := newTestService(t, WithAdvisor(gen), WithDemoSeed(mustDemoSeed(t)), WithSyncConcurrency(2))
	user := mustSignup(t, svc, "amina@farm.test")
	ws, _ := svc.Workspace(ctx, user.ID)
	createCycle(t, svc, user.ID, ws.Parcels[2].ID, "Sorghum")

	created, err := svc.SyncAdvisories(ctx, user.ID)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if len(created) != 2 || calls.Load() != 2 {
		t.Fatalf("expected two consultations, got %d advisories and %d calls", len(created), calls.Load())
	}
	ops, _ := svc.ActiveOperations(ctx, user.ID)
	if created[0].CycleID != ops[1].Cycle.ID || created[1].CycleID != ops[2].Cycle.ID {
		t.Fatalf("expected advisories in operation order")
	}
	for _, op := range ops {
		if op.LatestAdvisory == nil {
			t.Fatalf("expected every operation to be covered after sync")
		}
	}

	again, err := svc.SyncAdvisories(ctx, user.ID)
	if err != nil || len(again) != 0 {
		t.Fatalf("expected nothing to sync, got %v, %v", again, err)
	}
}

func TestSyncAdvisoriesConcurrentCallsCoverEachCycleOnce(t *testing.T) {
	ctx := context.Background()
	const inFlight = 4
	var (
		arrived atomic.Int32
		release = make(chan struct{})
	)
	gen := advisory.GeneratorFunc(func(ctx context.Context, _ advisory.Context) (advisory.Result, error) {
		if arrived.Add(1) == inFlight {
			close(release)
		}
		select {
		case <-release:
		case <-time.After(5 * time.Second):
		case <-ctx.Done():
			return advisory.Result{}, ctx.Err()
		}
		return advisory.Result{Action: "Scout for pests", Confidence: 80}, nil
	})
	svc := newTestService(t, WithAdvisor(gen), WithDemoSeed(mustDemoSeed(t)), WithSyncConcurrency(2))
	user := mustSignup(t, svc, "amina@farm.test")
	ws, _ := svc.Workspace(ctx, user.ID)
	createCycle(t, svc, user.ID, ws.Parcels[2].ID, "Sorghum")

	var (
		wg    sync.WaitGroup
		total atomic.Int32
		errs  = make(chan error, 2)
	)
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			created, err := svc.SyncAdvisories(ctx, user.ID)
			if err != nil {
				errs <- err
				return
			}
			total.Add(int32(len(created)))
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("sync: %v", err)
	}
	if arrived.Load() != inFlight {
		t.Fatalf("expected both syncs to consult both cycles, got %d calls", arrived.Load())
	}
	if total.Load() != 2 {
		t.Fatalf("expected two advisories across both syncs, got %d", total.Load())
	}

	ws, _ = svc.Workspace(ctx, user.ID)
	pending := map[string]int{}
	for _, a := range ws.Advisories {
		if !a.IsCompleted {
			pending[a.CycleID]++
		}
	}
	for cycleID, n := range pending {
		if n != 1 {
			t.Fatalf("cycle %s holds %d pending advisories", cycleID, n)
		}
	}
}

func TestSimulateAdvisory(t *testing.T) {
	ctx := context.Background()
	var seen advisory.Context
	gen := advisory.GeneratorFunc(func(_ context.Context, c advisory.Context) (advisory.Result, error) {
		seen = c
		return advisory.Result{Action: "Harvest Immediately", Confidence: 94}, nil
	})
	metrics := &captureMetrics{}
	svc := newTestService(t, WithAdvisor(gen), WithMetricsRecorder(metrics))

	res, err := svc.SimulateAdvisory(ctx, SimulationInput{Region: "west-africa", Crop: "Cassava"})
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if res.Action != "Harvest Immediately" {
		t.Fatalf("unexpected result %+v", res)
	}
	if seen.Stage != domain.StageMaturity || seen.SoilType != domain.SoilLoamy || seen.IrrigationMethod != domain.IrrigationManual || seen.ObservedRainfall != DemoForecast || seen.Region != "west-africa" {
		t.Fatalf("unexpected simulation context %+v", seen)
	}
	if !metrics.has("simulate_advisory", true) {
		t.Fatalf("expected simulation metric")
	}

	var verr ValidationError
	if _, err := svc.SimulateAdvisory(ctx, SimulationInput{Region: "west-africa", Crop: "Rice"}); !errors.As(err, &verr) {
		t.Fatalf("expected crop validation error, got %v", err)
	}
	if _, err := svc.SimulateAdvisory(ctx, SimulationInput{Region: "mars", Crop: "Rice"}); !errors.As(err, &verr) {
		t.Fatalf("expected region validation error, got %v", err)
	}
}

func TestDefaultAdvisorIsStatic(t *testing.T) {
	svc := newTestService(t)
	res, err := svc.SimulateAdvisory(context.Background(), SimulationInput{Region: "asia", Crop: "Rice", Forecast: "Heavy storm"})
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if res.Action != "Harvest Immediately" {
		t.Fatalf("expected static maturity advice, got %+v", res)
	}
}
