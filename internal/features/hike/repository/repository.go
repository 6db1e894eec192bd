package repository

import (
	"context"
	"time"

	"hiky-bot-backend/internal/features/hike/models"
)

// Repository persists hikes and registrations. Every mutating operation is
// atomic: it fully commits or reports failure with no partial effect.
type Repository interface {
	CreateHike(ctx context.Context, draft models.Draft, createdBy int64) (*models.Hike, error)
	GetHike(ctx context.Context, id int64) (*models.Hike, error)
	UpdateHike(ctx context.Context, id int64, draft models.Draft) error

	// AvailableHikes lists future-dated active hikes with their live
	// occupancy. When excludeActor is non-zero, hikes that actor already
	// registered for are filtered out.
	AvailableHikes(ctx context.Context, excludeActor int64) ([]models.Hike, error)
	// UpcomingHikes lists future-dated hikes regardless of active flag,
	// for the admin views and the calendar.
	UpcomingHikes(ctx context.Context) ([]models.Hike, error)

	// ReserveSeat inserts the registration inside one transaction that
	// recounts occupancy, so two concurrent callers can never both take
	// the last seat. guideBypass skips the capacity comparison only.
	ReserveSeat(ctx context.Context, actorID, hikeID int64, snap models.Snapshot, guideBypass bool) (*models.Registration, error)
	// ReleaseSeat deletes the registration only if owned by the actor.
	ReleaseSeat(ctx context.Context, actorID, registrationID int64) error

	// SetHikeActive toggles the soft-cancellation flag. Deactivating
	// returns the current registrants for notification without touching
	// their rows; activating an already-active hike fails.
	SetHikeActive(ctx context.Context, hikeID int64, active bool) ([]models.Registrant, error)

	ActorRegistrations(ctx context.Context, actorID int64) ([]models.Registration, error)
	Registrants(ctx context.Context, hikeID int64) ([]models.Registrant, error)

	// DueReminders returns reminder items for registrations on hikes
	// exactly daysBefore days after `today` whose stored preference
	// covers that mark.
	DueReminders(ctx context.Context, today time.Time, daysBefore int) ([]models.ReminderItem, error)
}
