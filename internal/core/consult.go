package core

import (
	"context"
	"foodflow/internal/advisory"
	"foodflow/pkg/domain"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ImpactShare is the share of projected yield an advisory is credited with saving.
const ImpactShare = 0.15

// HighRiskConfidence is the confidence above which an advisory is High risk.
const HighRiskConfidence = 90

// DemoForecast is the rainfall outlook used by SimulateAdvisory when none is given.
const DemoForecast = "Heavy Rain"

// ConsultInput carries optional field observations for a consultation.
type ConsultInput struct {
	ObservedRainfall string   `json:"observed_rainfall,omitempty"`
	Lat              *float64 `json:"lat,omitempty"`
	Lng              *float64 `json:"lng,omitempty"`
}

// SimulationInput describes a demo consultation that is not stored.
type SimulationInput struct {
	Region   string `json:"region"`
	Crop     string `json:"crop"`
	Forecast string `json:"forecast"`
}

// RiskFor maps a confidence score to a risk label.
func RiskFor(confidence int) domain.RiskLevel {
	if confidence > HighRiskConfidence {
		return domain.RiskHigh
	}
	return domain.RiskMedium
}

// ImpactFor is the yield in kilograms an advisory is credited with saving.
func ImpactFor(projectedYieldKg float64) float64 {
	return math.Floor(projectedYieldKg * ImpactShare)
}

// RunConsultation asks the generator for a recommendation on one of the
// caller's active crop cycles and stores it as a pending advisory.
func (s *Service) RunConsultation(ctx context.Context, userID, cycleID string, in ConsultInput) (Advisory, Result, error) {
	ws, err := s.workspace(ctx, userID)
	if err != nil {
		return Advisory{}, Result{}, err
	}
	var op *domain.ActiveOperation
	for _, candidate := range ws.Operations() {
		if candidate.Cycle.ID == cycleID {
			c := candidate
			op = &c
			break
		}
	}
	if op == nil {
		if _, ok := ws.OwnsCycle(cycleID); ok {
			return Advisory{}, Result{}, invalid("cycle_id", "crop cycle %s is not active", cycleID)
		}
		return Advisory{}, Result{}, ErrNotFound{Entity: EntityCropCycle, ID: cycleID}
	}
	return s.consult(ctx, ws.User, *op, in, false)
}

// consult generates and stores an advisory for op. With onlyUncovered set
// nothing is stored when the cycle already holds a pending advisory at commit
// time, and the returned advisory has an empty ID.
func (s *Service) consult(ctx context.Context, user UserProfile, op domain.ActiveOperation, in ConsultInput, onlyUncovered bool) (Advisory, Result, error) {
	start := time.Now()
	result, err := s.advisor.Generate(ctx, advisory.Context{
		Region:           user.Region,
		Crop:             op.Cycle.CropType,
		Stage:            op.Cycle.Stage,
		SoilType:         op.Parcel.SoilType,
		ObservedRainfall: strings.TrimSpace(in.ObservedRainfall),
		IrrigationMethod: op.Parcel.IrrigationType,
		Lat:              in.Lat,
		Lng:              in.Lng,
	})
	s.observe(ctx, "generate_advisory", start, err)
	if err != nil {
		s.logger.Warn("advisory generator failed, serving fallback", zap.String("cycle_id", op.Cycle.ID), zap.Error(err))
		result = advisory.Fallback()
	}

	var created Advisory
	res, err := s.run(ctx, "run_consultation", func(tx Transaction) error {
		if onlyUncovered && hasPendingAdvisory(tx.Snapshot(), op.Cycle.ID) {
			return nil
		}
		var err error
		created, err = tx.CreateAdvisory(Advisory{
			CycleID:             op.Cycle.ID,
			Action:              result.Action,
			Reason:              result.Reason,
			RiskPrevented:       result.RiskPrevented,
			LossReductionDetail: result.LossReductionDetail,
			Confidence:          result.Confidence,
			Risk:                RiskFor(result.Confidence),
			ImpactSavedKg:       ImpactFor(op.Cycle.ProjectedYieldKg),
		})
		return err
	})
	if err != nil {
		return Advisory{}, res, err
	}
	if created.ID == "" {
		s.logger.Debug("cycle covered concurrently, advisory dropped", zap.String("cycle_id", op.Cycle.ID))
		return Advisory{}, res, nil
	}
	s.logger.Info("advisory issued",
		zap.String("user_id", user.ID),
		zap.String("cycle_id", op.Cycle.ID),
		zap.String("advisory_id", created.ID),
		zap.Int("confidence", created.Confidence),
	)
	s.publish(ctx, user.ID, EntityAdvisory, ActionCreate, created.ID)
	return created, res, nil
}

// SyncAdvisories runs a consultation for every active operation of the
// caller that has no pending advisory. Consultations run concurrently up to
// the configured limit; the created advisories are returned in operation
// order. A cycle that gains a pending advisory while its consultation runs
// is left as is.
func (s *Service) SyncAdvisories(ctx context.Context, userID string) ([]Advisory, error) {
	ws, err := s.workspace(ctx, userID)
	if err != nil {
		return nil, err
	}
	var todo []domain.ActiveOperation
	for _, op := range ws.Operations() {
		if op.LatestAdvisory == nil {
			todo = append(todo, op)
		}
	}
	created := make([]Advisory, len(todo))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.syncConcurrency)
	for i, op := range todo {
		g.Go(func() error {
			adv, _, err := s.consult(gctx, ws.User, op, ConsultInput{}, true)
			if err != nil {
				return err
			}
			created[i] = adv
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := created[:0]
	for _, adv := range created {
		if adv.ID != "" {
			out = append(out, adv)
		}
	}
	return out, nil
}

func hasPendingAdvisory(view TransactionView, cycleID string) bool {
	for _, a := range view.ListAdvisories() {
		if a.CycleID == cycleID && !a.IsCompleted {
			return true
		}
	}
	return false
}

// SimulateAdvisory produces a recommendation for a region and crop without
// storing anything. The field is assumed to be mature loamy soil under
// manual irrigation.
func (s *Service) SimulateAdvisory(ctx context.Context, in SimulationInput) (advisory.Result, error) {
	region, ok := domain.FindRegion(in.Region)
	if !ok {
		return advisory.Result{}, invalid("region", "unknown region %q", in.Region)
	}
	if !region.HasCrop(in.Crop) {
		return advisory.Result{}, invalid("crop", "%s is not advised in %s", in.Crop, region.Label)
	}
	forecast := strings.TrimSpace(in.Forecast)
	if forecast == "" {
		forecast = DemoForecast
	}
	start := time.Now()
	res, err := s.advisor.Generate(ctx, advisory.Context{
		Region:           region.Value,
		Crop:             strings.TrimSpace(in.Crop),
		Stage:            domain.StageMaturity,
		SoilType:         domain.SoilLoamy,
		ObservedRainfall: forecast,
		IrrigationMethod: domain.IrrigationManual,
	})
	s.observe(ctx, "simulate_advisory", start, err)
	if err != nil {
		s.logger.Warn("advisory simulation failed, serving fallback", zap.Error(err))
		return advisory.Fallback(), nil
	}
	return res, nil
}
