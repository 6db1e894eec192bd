package repository

import (
	"context"

	"hiky-bot-backend/internal/features/query/models"
)

// Runner executes admin-supplied read-only statements.
type Runner interface {
	// Run rejects anything that is not a single SELECT before touching
	// the database, caps rows and wall-clock time, and reports
	// truncation rather than silently dropping rows.
	Run(ctx context.Context, text string) (*models.Result, error)
}

// TemplateStore keeps the named query templates.
type TemplateStore interface {
	Save(ctx context.Context, q models.Saved) error
	List(ctx context.Context) ([]models.Saved, error)
	Get(ctx context.Context, name string) (*models.Saved, error)
	Delete(ctx context.Context, name string) error
}
