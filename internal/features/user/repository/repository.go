package repository

import (
	"context"

	"hiky-bot-backend/internal/features/user/models"
)

// Repository persists users, admin grants and group membership.
type Repository interface {
	// EnsureUser creates the user row on first contact and refreshes the
	// stored username on every later one.
	EnsureUser(ctx context.Context, telegramID int64, username string) error
	GetByID(ctx context.Context, telegramID int64) (*models.User, error)
	UpdateProfile(ctx context.Context, telegramID int64, update models.ProfileUpdate) error
	UpdateConsents(ctx context.Context, telegramID int64, consents models.Consents) error
	SetGuide(ctx context.Context, telegramID int64, isGuide bool) error
	AllUserIDs(ctx context.Context) ([]int64, error)

	IsAdmin(ctx context.Context, telegramID int64) (bool, error)
	GrantAdmin(ctx context.Context, telegramID, addedBy int64, role string) error
	ListAdmins(ctx context.Context) ([]models.Admin, error)

	AddGroupMember(ctx context.Context, telegramID int64) error
	RemoveGroupMember(ctx context.Context, telegramID int64) error
	InGroup(ctx context.Context, telegramID int64) (bool, error)
}
