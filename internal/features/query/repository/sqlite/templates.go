package sqlite

import (
	"context"
	"database/sql"
	"time"

	apperrors "hiky-bot-backend/internal/common/errors"
	"hiky-bot-backend/internal/features/query/models"
	"hiky-bot-backend/internal/features/query/repository"
)

type TemplateStore struct {
	db *sql.DB
}

func NewTemplateStore(db *sql.DB) repository.TemplateStore {
	return &TemplateStore{db: db}
}

func (s *TemplateStore) Save(ctx context.Context, q models.Saved) error {
	const stmt = `
	INSERT INTO saved_queries (name, query_text, created_by, created_on)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(name) DO UPDATE SET query_text = excluded.query_text`
	if _, err := s.db.ExecContext(ctx, stmt, q.Name, q.Text, q.CreatedBy, time.Now()); err != nil {
		return apperrors.NewStorageError("save query template", err)
	}
	return nil
}

func (s *TemplateStore) List(ctx context.Context) ([]models.Saved, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name, query_text, COALESCE(created_by, 0), created_on FROM saved_queries ORDER BY name")
	if err != nil {
		return nil, apperrors.NewStorageError("list query templates", err)
	}
	defer rows.Close()

	var saved []models.Saved
	for rows.Next() {
		var q models.Saved
		if err := rows.Scan(&q.Name, &q.Text, &q.CreatedBy, &q.CreatedOn); err != nil {
			return nil, apperrors.NewStorageError("scan query template", err)
		}
		saved = append(saved, q)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("list query templates", err)
	}
	return saved, nil
}

func (s *TemplateStore) Get(ctx context.Context, name string) (*models.Saved, error) {
	var q models.Saved
	err := s.db.QueryRowContext(ctx,
		"SELECT name, query_text, COALESCE(created_by, 0), created_on FROM saved_queries WHERE name = ?", name).
		Scan(&q.Name, &q.Text, &q.CreatedBy, &q.CreatedOn)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError("query template", name)
	}
	if err != nil {
		return nil, apperrors.NewStorageError("get query template", err)
	}
	return &q, nil
}

func (s *TemplateStore) Delete(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM saved_queries WHERE name = ?", name)
	if err != nil {
		return apperrors.NewStorageError("delete query template", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NewNotFoundError("query template", name)
	}
	return nil
}
