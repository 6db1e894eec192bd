package repository

import (
	"context"
	"time"

	"hiky-bot-backend/internal/features/maintenance/models"
)

// Repository persists maintenance windows. The notice stage is the only
// field a background job may mutate, and only through AdvanceNoticeStage.
type Repository interface {
	Create(ctx context.Context, w models.Window) (*models.Window, error)
	Get(ctx context.Context, id int64) (*models.Window, error)
	Update(ctx context.Context, id int64, update models.Update) error
	Delete(ctx context.Context, id int64) error

	// Upcoming lists windows that have not fully passed yet.
	Upcoming(ctx context.Context, now time.Time) ([]models.Window, error)

	// AdvanceNoticeStage applies the transition only when the stored
	// stage is strictly less than toStage, and reports whether it did.
	// Re-running a sweep therefore never re-advances a window.
	AdvanceNoticeStage(ctx context.Context, id int64, toStage models.NoticeStage) (bool, error)
}
