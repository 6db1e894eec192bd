package service

import (
	"context"
	"strings"
	"time"

	apperrors "hiky-bot-backend/internal/common/errors"
	"hiky-bot-backend/internal/features/hike/models"
	"hiky-bot-backend/internal/features/hike/repository"
)

// ActorDirectory is the slice of the user feature the hike rules need.
type ActorDirectory interface {
	IsAdmin(ctx context.Context, telegramID int64) (bool, error)
	IsGuide(ctx context.Context, telegramID int64) (bool, error)
}

// Service enforces the hike business rules over the repository.
type Service struct {
	repo   repository.Repository
	actors ActorDirectory
}

func NewService(repo repository.Repository, actors ActorDirectory) *Service {
	return &Service{repo: repo, actors: actors}
}

// ValidateDraft applies the creation rules: future date, positive counts,
// coordinates within latitude/longitude ranges, known difficulty.
func ValidateDraft(draft models.Draft, now time.Time) error {
	if strings.TrimSpace(draft.Name) == "" {
		return apperrors.NewValidationError("name", "must not be empty")
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if !draft.Date.After(today) {
		return apperrors.NewValidationError("date", "must be in the future")
	}
	if draft.MaxParticipants <= 0 {
		return apperrors.NewValidationError("max_participants", "must be a positive integer")
	}
	if draft.Guides <= 0 {
		return apperrors.NewValidationError("guides", "must be a positive integer")
	}
	if draft.Latitude < -90 || draft.Latitude > 90 {
		return apperrors.NewValidationError("latitude", "must be between -90 and 90")
	}
	if draft.Longitude < -180 || draft.Longitude > 180 {
		return apperrors.NewValidationError("longitude", "must be between -180 and 180")
	}
	if _, ok := models.ParseDifficulty(string(draft.Difficulty)); !ok {
		return apperrors.NewValidationError("difficulty", "unknown difficulty")
	}
	return nil
}

// Create adds a hike on behalf of an admin.
func (s *Service) Create(ctx context.Context, adminID int64, draft models.Draft) (*models.Hike, error) {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	if err := ValidateDraft(draft, time.Now()); err != nil {
		return nil, err
	}
	return s.repo.CreateHike(ctx, draft, adminID)
}

// Update edits a hike on behalf of an admin.
func (s *Service) Update(ctx context.Context, adminID, hikeID int64, draft models.Draft) error {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return err
	}
	if err := ValidateDraft(draft, time.Now()); err != nil {
		return err
	}
	return s.repo.UpdateHike(ctx, hikeID, draft)
}

// SetActive toggles the soft-cancellation flag on behalf of an admin and
// returns the registrants to notify when deactivating.
func (s *Service) SetActive(ctx context.Context, adminID, hikeID int64, active bool) ([]models.Registrant, error) {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	return s.repo.SetHikeActive(ctx, hikeID, active)
}

// Available lists hikes the actor can still sign up for. The result is a
// display snapshot; the reserving transaction revalidates it at commit.
func (s *Service) Available(ctx context.Context, actorID int64) ([]models.Hike, error) {
	return s.repo.AvailableHikes(ctx, actorID)
}

// Upcoming lists every future hike including deactivated ones.
func (s *Service) Upcoming(ctx context.Context) ([]models.Hike, error) {
	return s.repo.UpcomingHikes(ctx)
}

func (s *Service) Get(ctx context.Context, hikeID int64) (*models.Hike, error) {
	return s.repo.GetHike(ctx, hikeID)
}

// Register commits the signup for each selected hike. Guides bypass the
// capacity comparison but still occupy a registration row.
func (s *Service) Register(ctx context.Context, actorID, hikeID int64, snap models.Snapshot) (*models.Registration, error) {
	guide, err := s.actors.IsGuide(ctx, actorID)
	if err != nil {
		return nil, err
	}
	return s.repo.ReserveSeat(ctx, actorID, hikeID, snap, guide)
}

// Cancel releases the actor's own registration.
func (s *Service) Cancel(ctx context.Context, actorID, registrationID int64) error {
	return s.repo.ReleaseSeat(ctx, actorID, registrationID)
}

// MyRegistrations lists the actor's upcoming registrations.
func (s *Service) MyRegistrations(ctx context.Context, actorID int64) ([]models.Registration, error) {
	return s.repo.ActorRegistrations(ctx, actorID)
}

// Registrants lists the participants of a hike for admin views.
func (s *Service) Registrants(ctx context.Context, adminID, hikeID int64) ([]models.Registrant, error) {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	return s.repo.Registrants(ctx, hikeID)
}

// DueReminders surfaces the repository query for the scheduler.
func (s *Service) DueReminders(ctx context.Context, today time.Time, daysBefore int) ([]models.ReminderItem, error) {
	return s.repo.DueReminders(ctx, today, daysBefore)
}

func (s *Service) requireAdmin(ctx context.Context, actorID int64) error {
	isAdmin, err := s.actors.IsAdmin(ctx, actorID)
	if err != nil {
		return err
	}
	if !isAdmin {
		return apperrors.NewPermissionDeniedError("admin role required").WithActor(actorID)
	}
	return nil
}
