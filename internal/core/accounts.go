package core

import (
	"context"
	"errors"
	"foodflow/internal/auth"
	"foodflow/pkg/domain"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"
)

const avatarBaseURL = "https://api.dicebear.com/7.x/avataaars/svg"

// SignupInput carries the fields of a new account.
type SignupInput struct {
	Name     string `json:"name"`
	FarmName string `json:"farm_name"`
	Region   string `json:"region"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ProfileUpdate lists the profile fields to change; nil fields are kept.
type ProfileUpdate struct {
	Name            *string                 `json:"name,omitempty"`
	FarmName        *string                 `json:"farm_name,omitempty"`
	Region          *string                 `json:"region,omitempty"`
	LocationCountry *string                 `json:"location_country,omitempty"`
	Timezone        *string                 `json:"timezone,omitempty"`
	LandSize        *float64                `json:"land_size,omitempty"`
	FarmingPractice *domain.FarmingPractice `json:"farming_practice,omitempty"`
}

// AvatarURL derives the generated avatar for an email address.
func AvatarURL(email string) string {
	return avatarBaseURL + "?seed=" + email
}

// RegisterUser creates an account with a hashed password. The region is
// stored as its catalog label; unknown regions become "Global". When demo
// seeding is enabled the new workspace receives the fixture records in the
// same transaction.
func (s *Service) RegisterUser(ctx context.Context, in SignupInput) (UserProfile, Result, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.FarmName = strings.TrimSpace(in.FarmName)
	in.Email = strings.TrimSpace(in.Email)
	if in.Name == "" {
		return UserProfile{}, Result{}, invalid("name", "required")
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return UserProfile{}, Result{}, invalid("email", "must be a valid address")
	}
	if in.Password == "" {
		return UserProfile{}, Result{}, invalid("password", "required")
	}
	if len(in.Password) > auth.MaxPasswordBytes {
		return UserProfile{}, Result{}, invalid("password", "must be at most %d bytes", auth.MaxPasswordBytes)
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return UserProfile{}, Result{}, err
	}

	var created UserProfile
	res, err := s.run(ctx, "register_user", func(tx Transaction) error {
		if _, taken := tx.Snapshot().FindUserByEmail(in.Email); taken {
			return ErrEmailTaken
		}
		var err error
		created, err = tx.CreateUser(UserProfile{
			Name:      in.Name,
			FarmName:  in.FarmName,
			Region:    domain.RegionLabel(in.Region),
			Email:     in.Email,
			AvatarURL: AvatarURL(in.Email),
		})
		if err != nil {
			return err
		}
		if _, err := tx.PutCredential(domain.Credential{UserID: created.ID, Email: created.Email, PasswordHash: hash}); err != nil {
			return err
		}
		if s.seed != nil {
			return s.seed.apply(tx, created.ID)
		}
		return nil
	})
	if err != nil {
		return UserProfile{}, res, err
	}
	s.logger.Info("user registered", zap.String("user_id", created.ID), zap.String("region", created.Region))
	s.publish(ctx, created.ID, EntityUser, ActionCreate, created.ID)
	return created, res, nil
}

// Authenticate verifies an email and password. Unknown emails and wrong
// passwords both return ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (user UserProfile, err error) {
	start := time.Now()
	defer func() { s.observe(ctx, "authenticate", start, err) }()

	var (
		cred  domain.Credential
		found bool
	)
	if err := s.store.View(ctx, func(view TransactionView) error {
		u, ok := view.FindUserByEmail(strings.TrimSpace(email))
		if !ok {
			return nil
		}
		user = u
		cred, found = view.FindCredential(u.ID)
		return nil
	}); err != nil {
		return UserProfile{}, err
	}
	if !found {
		return UserProfile{}, ErrInvalidCredentials
	}
	if err := s.hasher.Compare(cred.PasswordHash, password); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.Warn("password comparison failed", zap.String("user_id", user.ID), zap.Error(err))
		}
		return UserProfile{}, ErrInvalidCredentials
	}
	return user, nil
}

// Profile returns the caller's profile.
func (s *Service) Profile(_ context.Context, userID string) (UserProfile, error) {
	if u, ok := s.store.GetUser(userID); ok {
		return u, nil
	}
	return UserProfile{}, ErrNotFound{Entity: EntityUser, ID: userID}
}

// UpdateProfile applies the non-nil fields of upd.
func (s *Service) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) (UserProfile, Result, error) {
	if upd.Name != nil && strings.TrimSpace(*upd.Name) == "" {
		return UserProfile{}, Result{}, invalid("name", "cannot be empty")
	}
	if upd.LandSize != nil && *upd.LandSize < 0 {
		return UserProfile{}, Result{}, invalid("land_size", "cannot be negative")
	}
	if upd.FarmingPractice != nil && !upd.FarmingPractice.Valid() {
		return UserProfile{}, Result{}, invalid("farming_practice", "unknown practice %q", *upd.FarmingPractice)
	}
	var updated UserProfile
	res, err := s.run(ctx, "update_profile", func(tx Transaction) error {
		if _, ok := tx.Snapshot().FindUser(userID); !ok {
			return ErrNotFound{Entity: EntityUser, ID: userID}
		}
		var err error
		updated, err = tx.UpdateUser(userID, func(u *UserProfile) error {
			if upd.Name != nil {
				u.Name = strings.TrimSpace(*upd.Name)
			}
			if upd.FarmName != nil {
				u.FarmName = strings.TrimSpace(*upd.FarmName)
			}
			if upd.Region != nil {
				u.Region = domain.RegionLabel(*upd.Region)
			}
			if upd.LocationCountry != nil {
				u.LocationCountry = strings.TrimSpace(*upd.LocationCountry)
			}
			if upd.Timezone != nil {
				u.Timezone = strings.TrimSpace(*upd.Timezone)
			}
			if upd.LandSize != nil {
				size := *upd.LandSize
				u.LandSize = &size
			}
			if upd.FarmingPractice != nil {
				u.FarmingPractice = *upd.FarmingPractice
			}
			return nil
		})
		return err
	})
	if err != nil {
		return UserProfile{}, res, err
	}
	s.publish(ctx, userID, EntityUser, ActionUpdate, userID)
	return updated, res, nil
}
