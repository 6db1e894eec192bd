package service

import (
	"context"

	apperrors "hiky-bot-backend/internal/common/errors"
	"hiky-bot-backend/internal/features/query/models"
	"hiky-bot-backend/internal/features/query/repository"
)

// AdminChecker is the slice of the user feature the query tool needs.
type AdminChecker interface {
	IsAdmin(ctx context.Context, telegramID int64) (bool, error)
}

// Service exposes the ad-hoc read-only query tool to admins.
type Service struct {
	runner    repository.Runner
	templates repository.TemplateStore
	admins    AdminChecker
}

func NewService(runner repository.Runner, templates repository.TemplateStore, admins AdminChecker) *Service {
	return &Service{runner: runner, templates: templates, admins: admins}
}

func (s *Service) Execute(ctx context.Context, adminID int64, text string) (*models.Result, error) {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	return s.runner.Run(ctx, text)
}

func (s *Service) ExecuteSaved(ctx context.Context, adminID int64, name string) (*models.Result, error) {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	saved, err := s.templates.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	return s.runner.Run(ctx, saved.Text)
}

func (s *Service) Save(ctx context.Context, adminID int64, name, text string) error {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return err
	}
	return s.templates.Save(ctx, models.Saved{Name: name, Text: text, CreatedBy: adminID})
}

func (s *Service) List(ctx context.Context, adminID int64) ([]models.Saved, error) {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	return s.templates.List(ctx)
}

func (s *Service) Delete(ctx context.Context, adminID int64, name string) error {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return err
	}
	return s.templates.Delete(ctx, name)
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
