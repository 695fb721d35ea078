package core

import (
	"context"
	"foodflow/pkg/domain"
	"strings"
)

// ParcelInput carries the fields of a new parcel.
type ParcelInput struct {
	Name           string                `json:"name"`
	Hectares       float64               `json:"hectares"`
	SoilType       domain.SoilType       `json:"soil_type"`
	IrrigationType domain.IrrigationType `json:"irrigation_type"`
}

// ParcelUpdate lists the parcel fields to change; nil fields are kept.
type ParcelUpdate struct {
	Name           *string                `json:"name,omitempty"`
	Hectares       *float64               `json:"hectares,omitempty"`
	SoilType       *domain.SoilType       `json:"soil_type,omitempty"`
	IrrigationType *domain.IrrigationType `json:"irrigation_type,omitempty"`
}

// CycleInput carries the fields of a new crop cycle. Stage defaults to
// Seeding and status to Active.
type CycleInput struct {
	ParcelID         string             `json:"parcel_id"`
	CropType         string             `json:"crop_type"`
	Stage            domain.GrowthStage `json:"stage"`
	Status           domain.CycleStatus `json:"status"`
	PlantedAt        string             `json:"planted_at"`
	TargetHarvestAt  string             `json:"target_harvest_at"`
	ProjectedYieldKg float64            `json:"projected_yield_kg"`
}

// CycleUpdate lists the crop cycle fields to change; nil fields are kept.
type CycleUpdate struct {
	ParcelID         *string             `json:"parcel_id,omitempty"`
	CropType         *string             `json:"crop_type,omitempty"`
	Stage            *domain.GrowthStage `json:"stage,omitempty"`
	Status           *domain.CycleStatus `json:"status,omitempty"`
	PlantedAt        *string             `json:"planted_at,omitempty"`
	TargetHarvestAt  *string             `json:"target_harvest_at,omitempty"`
	ProjectedYieldKg *float64            `json:"projected_yield_kg,omitempty"`
}

// ListParcels returns the caller's parcels in creation order.
func (s *Service) ListParcels(ctx context.Context, userID string) ([]Parcel, error) {
	ws, err := s.workspace(ctx, userID)
	if err != nil {
		return nil, err
	}
	return ws.Parcels, nil
}

// CreateParcel persists a new parcel owned by the caller.
func (s *Service) CreateParcel(ctx context.Context, userID string, in ParcelInput) (Parcel, Result, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return Parcel{}, Result{}, invalid("name", "required")
	}
	var created Parcel
	res, err := s.run(ctx, "create_parcel", func(tx Transaction) error {
		if _, err := txWorkspace(tx, userID); err != nil {
			return err
		}
		var err error
		created, err = tx.CreateParcel(Parcel{
			UserID:         userID,
			Name:           in.Name,
			Hectares:       in.Hectares,
			SoilType:       in.SoilType,
			IrrigationType: in.IrrigationType,
		})
		return err
	})
	if err != nil {
		return Parcel{}, res, err
	}
	s.publish(ctx, userID, EntityParcel, ActionCreate, created.ID)
	return created, res, nil
}

// UpdateParcel applies the non-nil fields of upd to one of the caller's parcels.
func (s *Service) UpdateParcel(ctx context.Context, userID, id string, upd ParcelUpdate) (Parcel, Result, error) {
	if upd.Name != nil && strings.TrimSpace(*upd.Name) == "" {
		return Parcel{}, Result{}, invalid("name", "cannot be empty")
	}
	var updated Parcel
	res, err := s.run(ctx, "update_parcel", func(tx Transaction) error {
		ws, err := txWorkspace(tx, userID)
		if err != nil {
			return err
		}
		if _, ok := ws.OwnsParcel(id); !ok {
			return ErrNotFound{Entity: EntityParcel, ID: id}
		}
		updated, err = tx.UpdateParcel(id, func(p *Parcel) error {
			if upd.Name != nil {
				p.Name = strings.TrimSpace(*upd.Name)
			}
			if upd.Hectares != nil {
				p.Hectares = *upd.Hectares
			}
			if upd.SoilType != nil {
				p.SoilType = *upd.SoilType
			}
			if upd.IrrigationType != nil {
				p.IrrigationType = *upd.IrrigationType
			}
			return nil
		})
		return err
	})
	if err != nil {
		return Parcel{}, res, err
	}
	s.publish(ctx, userID, EntityParcel, ActionUpdate, id)
	return updated, res, nil
}

// DeleteParcel removes one of the caller's parcels. Parcels that still carry
// crop cycles cannot be deleted.
func (s *Service) DeleteParcel(ctx context.Context, userID, id string) (Result, error) {
	res, err := s.run(ctx, "delete_parcel", func(tx Transaction) error {
		ws, err := txWorkspace(tx, userID)
		if err != nil {
			return err
		}
		if _, ok := ws.OwnsParcel(id); !ok {
			return ErrNotFound{Entity: EntityParcel, ID: id}
		}
		for _, c := range ws.Cycles {
			if c.ParcelID == id {
				return ErrReferenced{Entity: EntityParcel, ID: id, By: EntityCropCycle}
			}
		}
		return tx.DeleteParcel(id)
	})
	if err != nil {
		return res, err
	}
	s.publish(ctx, userID, EntityParcel, ActionDelete, id)
	return res, nil
}

// ListCycles returns the caller's crop cycles in creation order.
func (s *Service) ListCycles(ctx context.Context, userID string) ([]CropCycle, error) {
	ws, err := s.workspace(ctx, userID)
	if err != nil {
		return nil, err
	}
	return ws.Cycles, nil
}

// CreateCycle plants a new crop cycle on one of the caller's parcels.
func (s *Service) CreateCycle(ctx context.Context, userID string, in CycleInput) (CropCycle, Result, error) {
	in.CropType = strings.TrimSpace(in.CropType)
	if in.CropType == "" {
		return CropCycle{}, Result{}, invalid("crop_type", "required")
	}
	if in.ParcelID == "" {
		return CropCycle{}, Result{}, invalid("parcel_id", "required")
	}
	if in.Stage == "" {
		in.Stage = domain.StageSeeding
	}
	if in.Status == "" {
		in.Status = domain.CycleActive
	}
	var created CropCycle
	res, err := s.run(ctx, "create_cycle", func(tx Transaction) error {
		ws, err := txWorkspace(tx, userID)
		if err != nil {
			return err
		}
		if _, ok := ws.OwnsParcel(in.ParcelID); !ok {
			return ErrNotFound{Entity: EntityParcel, ID: in.ParcelID}
		}
		created, err = tx.CreateCropCycle(CropCycle{
			ParcelID:         in.ParcelID,
			CropType:         in.CropType,
			Stage:            in.Stage,
			Status:           in.Status,
			PlantedAt:        strings.TrimSpace(in.PlantedAt),
			TargetHarvestAt:  strings.TrimSpace(in.TargetHarvestAt),
			ProjectedYieldKg: in.ProjectedYieldKg,
		})
		return err
	})
	if err != nil {
		return CropCycle{}, res, err
	}
	s.publish(ctx, userID, EntityCropCycle, ActionCreate, created.ID)
	return created, res, nil
}

// UpdateCycle applies the non-nil fields of upd to one of the caller's crop
// cycles. A cycle may only move to another parcel owned by the caller.
func (s *Service) UpdateCycle(ctx context.Context, userID, id string, upd CycleUpdate) (CropCycle, Result, error) {
	if upd.CropType != nil && strings.TrimSpace(*upd.CropType) == "" {
		return CropCycle{}, Result{}, invalid("crop_type", "cannot be empty")
	}
	var updated CropCycle
	res, err := s.run(ctx, "update_cycle", func(tx Transaction) error {
		ws, err := txWorkspace(tx, userID)
		if err != nil {
			return err
		}
		if _, ok := ws.OwnsCycle(id); !ok {
			return ErrNotFound{Entity: EntityCropCycle, ID: id}
		}
		if upd.ParcelID != nil {
			if _, ok := ws.OwnsParcel(*upd.ParcelID); !ok {
				return ErrNotFound{Entity: EntityParcel, ID: *upd.ParcelID}
			}
		}
		updated, err = tx.UpdateCropCycle(id, func(c *CropCycle) error {
			if upd.ParcelID != nil {
				c.ParcelID = *upd.ParcelID
			}
			if upd.CropType != nil {
				c.CropType = strings.TrimSpace(*upd.CropType)
			}
			if upd.Stage != nil {
				c.Stage = *upd.Stage
			}
			if upd.Status != nil {
				c.Status = *upd.Status
			}
			if upd.PlantedAt != nil {
				c.PlantedAt = strings.TrimSpace(*upd.PlantedAt)
			}
			if upd.TargetHarvestAt != nil {
				c.TargetHarvestAt = strings.TrimSpace(*upd.TargetHarvestAt)
			}
			if upd.ProjectedYieldKg != nil {
				c.ProjectedYieldKg = *upd.ProjectedYieldKg
			}
			return nil
		})
		return err
	})
	if err != nil {
		return CropCycle{}, res, err
	}
	s.publish(ctx, userID, EntityCropCycle, ActionUpdate, id)
	return updated, res, nil
}

// UpdateCycleStage moves a crop cycle to a new growth stage.
func (s *Service) UpdateCycleStage(ctx context.Context, userID, id string, stage domain.GrowthStage) (CropCycle, Result, error) {
	if !stage.Valid() {
		return CropCycle{}, Result{}, invalid("stage", "unknown growth stage %q", stage)
	}
	return s.UpdateCycle(ctx, userID, id, CycleUpdate{Stage: &stage})
}

// DeleteCycle removes one of the caller's crop cycles. Cycles that still
// carry advisories cannot be deleted.
func (s *Service) DeleteCycle(ctx context.Context, userID, id string) (Result, error) {
	res, err := s.run(ctx, "delete_cycle", func(tx Transaction) error {
		ws, err := txWorkspace(tx, userID)
		if err != nil {
			return err
		}
		if _, ok := ws.OwnsCycle(id); !ok {
			return ErrNotFound{Entity: EntityCropCycle, ID: id}
		}
		for _, a := range ws.Advisories {
			if a.CycleID == id {
				return ErrReferenced{Entity: EntityCropCycle, ID: id, By: EntityAdvisory}
			}
		}
		return tx.DeleteCropCycle(id)
	})
	if err != nil {
		return res, err
	}
	s.publish(ctx, userID, EntityCropCycle, ActionDelete, id)
	return res, nil
}

// ListAdvisories returns every advisory issued for the caller's crop cycles.
func (s *Service) ListAdvisories(ctx context.Context, userID string) ([]Advisory, error) {
	ws, err := s.workspace(ctx, userID)
	if err != nil {
		return nil, err
	}
	return ws.Advisories, nil
}

// CompleteAdvisory marks an advisory as acted upon. Completing an advisory
// twice keeps the first completion time.
func (s *Service) CompleteAdvisory(ctx context.Context, userID, id string) (Advisory, Result, error) {
	var updated Advisory
	res, err := s.run(ctx, "complete_advisory", func(tx Transaction) error {
		ws, err := txWorkspace(tx, userID)
		if err != nil {
			return err
		}
		current, ok := ws.OwnsAdvisory(id)
		if !ok {
			return ErrNotFound{Entity: EntityAdvisory, ID: id}
		}
		if current.IsCompleted {
			updated = current
			return nil
		}
		now := s.now()
		updated, err = tx.UpdateAdvisory(id, func(a *Advisory) error {
			a.IsCompleted = true
			a.CompletedAt = &now
			return nil
		})
		return err
	})
	if err != nil {
		return Advisory{}, res, err
	}
	s.publish(ctx, userID, EntityAdvisory, ActionUpdate, id)
	return updated, res, nil
}

// DeleteAdvisory removes one of the caller's advisories.
func (s *Service) DeleteAdvisory(ctx context.Context, userID, id string) (Result, error) {
	res, err := s.run(ctx, "delete_advisory", func(tx Transaction) error {
		ws, err := txWorkspace(tx, userID)
		if err != nil {
			return err
		}
		if _, ok := ws.OwnsAdvisory(id); !ok {
			return ErrNotFound{Entity: EntityAdvisory, ID: id}
		}
		return tx.DeleteAdvisory(id)
	})
	if err != nil {
		return res, err
	}
	s.publish(ctx, userID, EntityAdvisory, ActionDelete, id)
	return res, nil
}
