package service

import (
	"context"
	"time"

	apperrors "hiky-bot-backend/internal/common/errors"
	"hiky-bot-backend/internal/features/maintenance/models"
	"hiky-bot-backend/internal/features/maintenance/repository"
)

// AdminChecker is the slice of the user feature the maintenance rules need.
type AdminChecker interface {
	IsAdmin(ctx context.Context, telegramID int64) (bool, error)
}

// Service gates maintenance-window mutations behind the admin role.
type Service struct {
	repo   repository.Repository
	admins AdminChecker
}

func NewService(repo repository.Repository, admins AdminChecker) *Service {
	return &Service{repo: repo, admins: admins}
}

func (s *Service) Schedule(ctx context.Context, adminID int64, w models.Window) (*models.Window, error) {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	w.CreatedBy = adminID
	return s.repo.Create(ctx, w)
}

func (s *Service) Edit(ctx context.Context, adminID, id int64, update models.Update) error {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return err
	}
	return s.repo.Update(ctx, id, update)
}

func (s *Service) Remove(ctx context.Context, adminID, id int64) error {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) Get(ctx context.Context, id int64) (*models.Window, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) Upcoming(ctx context.Context) ([]models.Window, error) {
	return s.repo.Upcoming(ctx, time.Now())
}

// DueForStage lists windows whose notice for the given stage should go out
// now but has not yet been recorded as sent.
func (s *Service) DueForStage(ctx context.Context, now time.Time, stage models.NoticeStage) ([]models.Window, error) {
	windows, err := s.repo.Upcoming(ctx, now)
	if err != nil {
		return nil, err
	}
	var due []models.Window
	for _, w := range windows {
		if w.Stage >= stage {
			continue
		}
		switch stage {
		case models.StageDayBefore:
			if sameDay(w.Date, now.AddDate(0, 0, 1)) {
				due = append(due, w)
			}
		case models.StageDayOf:
			if sameDay(w.Date, now) {
				due = append(due, w)
			}
		}
	}
	return due, nil
}

// AdvanceStage records that the stage's notice went out, reporting whether
// this call was the one that advanced the marker.
func (s *Service) AdvanceStage(ctx context.Context, id int64, stage models.NoticeStage) (bool, error) {
	return s.repo.AdvanceNoticeStage(ctx, id, stage)
}

func (s *Service) requireAdmin(ctx context.Context, actorID int64) error {
	isAdmin, err := s.admins.IsAdmin(ctx, actorID)
	if err != nil {
		return err
	}
	if !isAdmin {
		return apperrors.NewPermissionDeniedError("admin role required").WithActor(actorID)
	}
	return nil
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
