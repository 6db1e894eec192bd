package sqlite

import (
	"context"
	"database/sql"
	"time"

	apperrors "hiky-bot-backend/internal/common/errors"
	"hiky-bot-backend/internal/features/user/models"
	"hiky-bot-backend/internal/features/user/repository"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) repository.Repository {
	return &Repository{db: db}
}

func (r *Repository) EnsureUser(ctx context.Context, telegramID int64, username string) error {
	now := time.Now()
	const q = `
	INSERT INTO users (telegram_id, username, registration_timestamp, last_updated)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(telegram_id) DO UPDATE SET username = excluded.username, last_updated = excluded.last_updated`
	if _, err := r.db.ExecContext(ctx, q, telegramID, username, now, now); err != nil {
		return apperrors.NewStorageError("ensure user", err)
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, telegramID int64) (*models.User, error) {
	const q = `
	SELECT telegram_id, COALESCE(username, ''), name, surname, email, phone, birth_date,
	       is_guide, registration_timestamp, last_updated,
	       basic_consent, car_sharing_consent, photo_consent, marketing_consent,
	       COALESCE(consent_version, '')
	FROM users WHERE telegram_id = ?`
	var u models.User
	var created, updated sql.NullTime
	err := r.db.QueryRowContext(ctx, q, telegramID).Scan(
		&u.TelegramID, &u.Username, &u.Name, &u.Surname, &u.Email, &u.Phone, &u.BirthDate,
		&u.IsGuide, &created, &updated,
		&u.Consents.Basic, &u.Consents.CarSharing, &u.Consents.Photo, &u.Consents.Marketing,
		&u.Consents.Version,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError("user", telegramID)
	}
	if err != nil {
		return nil, apperrors.NewStorageError("get user", err)
	}
	if created.Valid {
		u.CreatedAt = created.Time
	}
	if updated.Valid {
		u.UpdatedAt = updated.Time
	}
	return &u, nil
}

func (r *Repository) UpdateProfile(ctx context.Context, telegramID int64, update models.ProfileUpdate) error {
	if update.Empty() {
		return nil
	}

	set := "last_updated = ?"
	args := []interface{}{time.Now()}
	appendField := func(column string, value *string) {
		if value != nil {
			set += ", " + column + " = ?"
			args = append(args, *value)
		}
	}
	appendField("name", update.Name)
	appendField("surname", update.Surname)
	appendField("email", update.Email)
	appendField("phone", update.Phone)
	appendField("birth_date", update.BirthDate)
	args = append(args, telegramID)

	res, err := r.db.ExecContext(ctx, "UPDATE users SET "+set+" WHERE telegram_id = ?", args...)
	if err != nil {
		return apperrors.NewStorageError("update profile", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NewNotFoundError("user", telegramID)
	}
	return nil
}

func (r *Repository) UpdateConsents(ctx context.Context, telegramID int64, consents models.Consents) error {
	const q = `
	UPDATE users
	SET basic_consent = ?, car_sharing_consent = ?, photo_consent = ?, marketing_consent = ?,
	    consent_version = ?, last_updated = ?
	WHERE telegram_id = ?`
	res, err := r.db.ExecContext(ctx, q,
		consents.Basic, consents.CarSharing, consents.Photo, consents.Marketing,
		consents.Version, time.Now(), telegramID)
	if err != nil {
		return apperrors.NewStorageError("update consents", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NewNotFoundError("user", telegramID)
	}
	return nil
}

func (r *Repository) SetGuide(ctx context.Context, telegramID int64, isGuide bool) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE users SET is_guide = ?, last_updated = ? WHERE telegram_id = ?",
		isGuide, time.Now(), telegramID)
	if err != nil {
		return apperrors.NewStorageError("set guide", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NewNotFoundError("user", telegramID)
	}
	return nil
}

func (r *Repository) AllUserIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT telegram_id FROM users")
	if err != nil {
		return nil, apperrors.NewStorageError("list user ids", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, apperrors.NewStorageError("scan user id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("list user ids", err)
	}
	return ids, nil
}

func (r *Repository) IsAdmin(ctx context.Context, telegramID int64) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, "SELECT 1 FROM admins WHERE telegram_id = ?", telegramID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, apperrors.NewStorageError("check admin", err)
	}
	return true, nil
}

func (r *Repository) GrantAdmin(ctx context.Context, telegramID, addedBy int64, role string) error {
	const q = `
	INSERT INTO admins (telegram_id, role, added_by, added_on) VALUES (?, ?, ?, ?)
	ON CONFLICT(telegram_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, q, telegramID, role, addedBy, time.Now()); err != nil {
		return apperrors.NewStorageError("grant admin", err)
	}
	return nil
}

func (r *Repository) ListAdmins(ctx context.Context) ([]models.Admin, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT telegram_id, role, COALESCE(added_by, 0), added_on FROM admins ORDER BY added_on")
	if err != nil {
		return nil, apperrors.NewStorageError("list admins", err)
	}
	defer rows.Close()

	var admins []models.Admin
	for rows.Next() {
		var a models.Admin
		if err := rows.Scan(&a.TelegramID, &a.Role, &a.AddedBy, &a.AddedOn); err != nil {
			return nil, apperrors.NewStorageError("scan admin", err)
		}
		admins = append(admins, a)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("list admins", err)
	}
	return admins, nil
}

func (r *Repository) AddGroupMember(ctx context.Context, telegramID int64) error {
	const q = `
	INSERT INTO group_members (telegram_id, joined_date) VALUES (?, ?)
	ON CONFLICT(telegram_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, q, telegramID, time.Now()); err != nil {
		return apperrors.NewStorageError("add group member", err)
	}
	return nil
}

func (r *Repository) RemoveGroupMember(ctx context.Context, telegramID int64) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM group_members WHERE telegram_id = ?", telegramID); err != nil {
		return apperrors.NewStorageError("remove group member", err)
	}
	return nil
}

func (r *Repository) InGroup(ctx context.Context, telegramID int64) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, "SELECT 1 FROM group_members WHERE telegram_id = ?", telegramID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, apperrors.NewStorageError("check group member", err)
	}
	return true, nil
}
