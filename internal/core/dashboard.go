package core

import (
	"context"
	"foodflow/pkg/domain"
)

// Workspace returns everything the caller can see.
func (s *Service) Workspace(ctx context.Context, userID string) (domain.Workspace, error) {
	return s.workspace(ctx, userID)
}

// ActiveOperations joins the caller's active crop cycles with their parcel
// and newest pending advisory.
func (s *Service) ActiveOperations(ctx context.Context, userID string) ([]domain.ActiveOperation, error) {
	ws, err := s.workspace(ctx, userID)
	if err != nil {
		return nil, err
	}
	return ws.Operations(), nil
}

// Stats computes the dashboard counters for the caller.
func (s *Service) Stats(ctx context.Context, userID string) (domain.DashboardStats, error) {
	ws, err := s.workspace(ctx, userID)
	if err != nil {
		return domain.DashboardStats{}, err
	}
	return ws.Stats(), nil
}

// FieldRecord is a completed advisory together with the cycle and parcel it
// was issued for.
type FieldRecord struct {
	Advisory   Advisory `json:"advisory"`
	CropType   string   `json:"crop_type"`
	ParcelName string   `json:"parcel_name"`
}

// Records lists the caller's completed advisories, most recent first.
func (s *Service) Records(ctx context.Context, userID string) ([]FieldRecord, error) {
	ws, err := s.workspace(ctx, userID)
	if err != nil {
		return nil, err
	}
	completed := domain.CompletedRecords(ws.Advisories)
	out := make([]FieldRecord, 0, len(completed))
	for _, a := range completed {
		rec := FieldRecord{Advisory: a}
		if c, ok := ws.OwnsCycle(a.CycleID); ok {
			rec.CropType = c.CropType
			if p, ok := ws.OwnsParcel(c.ParcelID); ok {
				rec.ParcelName = p.Name
			}
		}
		out = append(out, rec)
	}
	return out, nil
}
