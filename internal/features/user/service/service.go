package service

import (
	"context"

	apperrors "hiky-bot-backend/internal/common/errors"
	"hiky-bot-backend/internal/features/user/models"
	"hiky-bot-backend/internal/features/user/repository"
)

// Service applies the business rules about users, consents and admin grants.
type Service struct {
	repo repository.Repository
}

func NewService(repo repository.Repository) *Service {
	return &Service{repo: repo}
}

// RegisterContact records the actor on first interaction.
func (s *Service) RegisterContact(ctx context.Context, telegramID int64, username string) error {
	return s.repo.EnsureUser(ctx, telegramID, username)
}

func (s *Service) Profile(ctx context.Context, telegramID int64) (*models.User, error) {
	return s.repo.GetByID(ctx, telegramID)
}

func (s *Service) UpdateProfile(ctx context.Context, telegramID int64, update models.ProfileUpdate) error {
	return s.repo.UpdateProfile(ctx, telegramID, update)
}

// SaveConsents stores the consent flags, stamping the current schema version.
func (s *Service) SaveConsents(ctx context.Context, telegramID int64, consents models.Consents) error {
	consents.Version = models.ConsentVersion
	return s.repo.UpdateConsents(ctx, telegramID, consents)
}

func (s *Service) IsAdmin(ctx context.Context, telegramID int64) (bool, error) {
	return s.repo.IsAdmin(ctx, telegramID)
}

// IsGuide reports whether the actor carries the guide flag. Unknown actors
// are not guides.
func (s *Service) IsGuide(ctx context.Context, telegramID int64) (bool, error) {
	u, err := s.repo.GetByID(ctx, telegramID)
	if err != nil {
		if apperrors.HasCode(err, apperrors.ErrCodeNotFound) {
			return false, nil
		}
		return false, err
	}
	return u.IsGuide, nil
}

// GrantAdmin adds an admin. The grantor must already hold the role; admins
// are also marked as guides so they never consume participant seats.
func (s *Service) GrantAdmin(ctx context.Context, granteeID, grantorID int64) error {
	isAdmin, err := s.repo.IsAdmin(ctx, grantorID)
	if err != nil {
		return err
	}
	if !isAdmin {
		return apperrors.NewPermissionDeniedError("only admins can add admins").WithActor(grantorID)
	}
	if err := s.repo.EnsureUser(ctx, granteeID, ""); err != nil {
		return err
	}
	if err := s.repo.GrantAdmin(ctx, granteeID, grantorID, "admin"); err != nil {
		return err
	}
	return s.repo.SetGuide(ctx, granteeID, true)
}

// EnsureOwner grants the configured owner the admin role without a grantor
// check. This runs once at startup and is what makes the first GrantAdmin
// call possible.
func (s *Service) EnsureOwner(ctx context.Context, telegramID int64) error {
	if err := s.repo.EnsureUser(ctx, telegramID, ""); err != nil {
		return err
	}
	isAdmin, err := s.repo.IsAdmin(ctx, telegramID)
	if err != nil {
		return err
	}
	if isAdmin {
		return nil
	}
	if err := s.repo.GrantAdmin(ctx, telegramID, telegramID, "owner"); err != nil {
		return err
	}
	return s.repo.SetGuide(ctx, telegramID, true)
}

func (s *Service) ListAdmins(ctx context.Context) ([]models.Admin, error) {
	return s.repo.ListAdmins(ctx)
}

// TrackMembership records whether the actor currently belongs to the group.
func (s *Service) TrackMembership(ctx context.Context, telegramID int64, member bool) error {
	if member {
		return s.repo.AddGroupMember(ctx, telegramID)
	}
	return s.repo.RemoveGroupMember(ctx, telegramID)
}

func (s *Service) InGroup(ctx context.Context, telegramID int64) (bool, error) {
	return s.repo.InGroup(ctx, telegramID)
}

// AllUserIDs lists every known actor, used for broadcast notices.
func (s *Service) AllUserIDs(ctx context.Context) ([]int64, error) {
	return s.repo.AllUserIDs(ctx)
}
