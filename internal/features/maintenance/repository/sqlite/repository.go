package sqlite

import (
	"context"
	"database/sql"
	"time"

	apperrors "hiky-bot-backend/internal/common/errors"
	"hiky-bot-backend/internal/features/maintenance/models"
	"hiky-bot-backend/internal/features/maintenance/repository"
)

const dateLayout = "2006-01-02"

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) repository.Repository {
	return &Repository{db: db}
}

func validBounds(start, end string) bool {
	s, errS := time.Parse("15:04", start)
	e, errE := time.Parse("15:04", end)
	return errS == nil && errE == nil && e.After(s)
}

func (r *Repository) Create(ctx context.Context, w models.Window) (*models.Window, error) {
	if !validBounds(w.Start, w.End) {
		return nil, apperrors.NewValidationError("end_time", "must be strictly after start time")
	}
	const q = `
	INSERT INTO maintenance (maintenance_date, start_time, end_time, reason, created_by, created_on, notice_stage)
	VALUES (?, ?, ?, ?, ?, ?, 0)`
	res, err := r.db.ExecContext(ctx, q,
		w.Date.Format(dateLayout), w.Start, w.End, w.Reason, w.CreatedBy, time.Now())
	if err != nil {
		return nil, apperrors.NewStorageError("create maintenance", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, apperrors.NewStorageError("create maintenance", err)
	}
	return r.Get(ctx, id)
}

func (r *Repository) Get(ctx context.Context, id int64) (*models.Window, error) {
	const q = `
	SELECT id, maintenance_date, start_time, end_time, COALESCE(reason, ''),
	       COALESCE(created_by, 0), COALESCE(created_on, ''), notice_stage
	FROM maintenance WHERE id = ?`
	var w models.Window
	var date, createdOn string
	var stage int
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&w.ID, &date, &w.Start, &w.End, &w.Reason, &w.CreatedBy, &createdOn, &stage)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError("maintenance window", id)
	}
	if err != nil {
		return nil, apperrors.NewStorageError("get maintenance", err)
	}
	if w.Date, err = time.Parse(dateLayout, date); err != nil {
		return nil, apperrors.NewStorageError("parse maintenance date", err)
	}
	if t, err := time.Parse("2006-01-02 15:04:05.999999999-07:00", createdOn); err == nil {
		w.CreatedOn = t
	}
	w.Stage = models.NoticeStage(stage)
	return &w, nil
}

func (r *Repository) Update(ctx context.Context, id int64, update models.Update) error {
	if update.Empty() {
		return nil
	}

	// The end > start invariant must hold against the merged view of the
	// stored row and the partial edit, so read-modify-write in one
	// transaction.
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewStorageError("begin maintenance update", err)
	}
	defer func() { _ = tx.Rollback() }()

	var date, start, end string
	err = tx.QueryRowContext(ctx,
		"SELECT maintenance_date, start_time, end_time FROM maintenance WHERE id = ?", id).
		Scan(&date, &start, &end)
	if err == sql.ErrNoRows {
		return apperrors.NewNotFoundError("maintenance window", id)
	}
	if err != nil {
		return apperrors.NewStorageError("update maintenance", err)
	}

	if update.Date != nil {
		date = update.Date.Format(dateLayout)
	}
	if update.Start != nil {
		start = *update.Start
	}
	if update.End != nil {
		end = *update.End
	}
	if !validBounds(start, end) {
		return apperrors.NewValidationError("end_time", "must be strictly after start time")
	}

	q := "UPDATE maintenance SET maintenance_date = ?, start_time = ?, end_time = ?"
	args := []interface{}{date, start, end}
	switch {
	case update.ClearReason:
		q += ", reason = NULL"
	case update.Reason != nil:
		q += ", reason = ?"
		args = append(args, *update.Reason)
	}
	// Rescheduling restarts the notice cycle so subscribers hear about
	// the new bounds.
	if update.Date != nil || update.Start != nil || update.End != nil {
		q += ", notice_stage = 0"
	}
	q += " WHERE id = ?"
	args = append(args, id)

	if _, err := tx.ExecContext(ctx, q, args...); err != nil {
		return apperrors.NewStorageError("update maintenance", err)
	}
	if err := tx.Commit(); err != nil {
		return apperrors.NewStorageError("commit maintenance update", err)
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM maintenance WHERE id = ?", id)
	if err != nil {
		return apperrors.NewStorageError("delete maintenance", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NewNotFoundError("maintenance window", id)
	}
	return nil
}

func (r *Repository) Upcoming(ctx context.Context, now time.Time) ([]models.Window, error) {
	const q = `
	SELECT id, maintenance_date, start_time, end_time, COALESCE(reason, ''),
	       COALESCE(created_by, 0), notice_stage
	FROM maintenance
	WHERE maintenance_date > ? OR (maintenance_date = ? AND end_time > ?)
	ORDER BY maintenance_date, start_time`
	today := now.Format(dateLayout)
	clock := now.Format("15:04")
	rows, err := r.db.QueryContext(ctx, q, today, today, clock)
	if err != nil {
		return nil, apperrors.NewStorageError("list maintenance", err)
	}
	defer rows.Close()

	var windows []models.Window
	for rows.Next() {
		var w models.Window
		var date string
		var stage int
		if err := rows.Scan(&w.ID, &date, &w.Start, &w.End, &w.Reason, &w.CreatedBy, &stage); err != nil {
			return nil, apperrors.NewStorageError("scan maintenance", err)
		}
		if w.Date, err = time.Parse(dateLayout, date); err != nil {
			return nil, apperrors.NewStorageError("parse maintenance date", err)
		}
		w.Stage = models.NoticeStage(stage)
		windows = append(windows, w)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("list maintenance", err)
	}
	return windows, nil
}

func (r *Repository) AdvanceNoticeStage(ctx context.Context, id int64, toStage models.NoticeStage) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE maintenance SET notice_stage = ? WHERE id = ? AND notice_stage < ?",
		int(toStage), id, int(toStage))
	if err != nil {
		return false, apperrors.NewStorageError("advance notice stage", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperrors.NewStorageError("advance notice stage", err)
	}
	return n > 0, nil
}
