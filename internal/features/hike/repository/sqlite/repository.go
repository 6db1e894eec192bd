package sqlite

import (
	"context"
	"database/sql"
	"time"

	apperrors "hiky-bot-backend/internal/common/errors"
	"hiky-bot-backend/internal/features/hike/models"
	"hiky-bot-backend/internal/features/hike/repository"
)

const dateLayout = "2006-01-02"

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) repository.Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateHike(ctx context.Context, draft models.Draft, createdBy int64) (*models.Hike, error) {
	const q = `
	INSERT INTO hikes (hike_name, hike_date, max_participants, guides, latitude, longitude, difficulty, description, created_by, is_active)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`
	res, err := r.db.ExecContext(ctx, q,
		draft.Name, draft.Date.Format(dateLayout), draft.MaxParticipants, draft.Guides,
		draft.Latitude, draft.Longitude, string(draft.Difficulty), draft.Description, createdBy)
	if err != nil {
		return nil, apperrors.NewStorageError("create hike", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, apperrors.NewStorageError("create hike", err)
	}
	return r.GetHike(ctx, id)
}

const hikeColumns = `
	h.id, h.hike_name, h.hike_date, h.max_participants, h.guides,
	COALESCE(h.latitude, 0), COALESCE(h.longitude, 0), COALESCE(h.difficulty, ''),
	COALESCE(h.description, ''), COALESCE(h.created_by, 0), h.is_active,
	(SELECT COUNT(*) FROM registrations r WHERE r.hike_id = h.id) AS current_participants`

func scanHike(row interface{ Scan(...interface{}) error }) (*models.Hike, error) {
	var h models.Hike
	var date, difficulty string
	err := row.Scan(&h.ID, &h.Name, &date, &h.MaxParticipants, &h.Guides,
		&h.Latitude, &h.Longitude, &difficulty, &h.Description, &h.CreatedBy,
		&h.Active, &h.CurrentParticipants)
	if err != nil {
		return nil, err
	}
	h.Difficulty = models.Difficulty(difficulty)
	if h.Date, err = time.Parse(dateLayout, date); err != nil {
		// Some drivers render DATE columns with a time component.
		if t, err2 := time.Parse("2006-01-02T15:04:05Z", date); err2 == nil {
			h.Date = t
		} else {
			return nil, err
		}
	}
	return &h, nil
}

func (r *Repository) GetHike(ctx context.Context, id int64) (*models.Hike, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+hikeColumns+` FROM hikes h WHERE h.id = ?`, id)
	h, err := scanHike(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError("hike", id)
	}
	if err != nil {
		return nil, apperrors.NewStorageError("get hike", err)
	}
	return h, nil
}

func (r *Repository) UpdateHike(ctx context.Context, id int64, draft models.Draft) error {
	const q = `
	UPDATE hikes
	SET hike_name = ?, hike_date = ?, max_participants = ?, guides = ?,
	    latitude = ?, longitude = ?, difficulty = ?, description = ?
	WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q,
		draft.Name, draft.Date.Format(dateLayout), draft.MaxParticipants, draft.Guides,
		draft.Latitude, draft.Longitude, string(draft.Difficulty), draft.Description, id)
	if err != nil {
		return apperrors.NewStorageError("update hike", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NewNotFoundError("hike", id)
	}
	return nil
}

func (r *Repository) queryHikes(ctx context.Context, q string, args ...interface{}) ([]models.Hike, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, apperrors.NewStorageError("list hikes", err)
	}
	defer rows.Close()

	var hikes []models.Hike
	for rows.Next() {
		h, err := scanHike(rows)
		if err != nil {
			return nil, apperrors.NewStorageError("scan hike", err)
		}
		hikes = append(hikes, *h)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("list hikes", err)
	}
	return hikes, nil
}

func (r *Repository) AvailableHikes(ctx context.Context, excludeActor int64) ([]models.Hike, error) {
	q := `SELECT ` + hikeColumns + `
	FROM hikes h
	WHERE h.is_active = 1 AND h.hike_date >= date('now')`
	args := []interface{}{}
	if excludeActor != 0 {
		q += ` AND NOT EXISTS (SELECT 1 FROM registrations r WHERE r.hike_id = h.id AND r.telegram_id = ?)`
		args = append(args, excludeActor)
	}
	q += ` ORDER BY h.hike_date ASC`
	return r.queryHikes(ctx, q, args...)
}

func (r *Repository) UpcomingHikes(ctx context.Context) ([]models.Hike, error) {
	q := `SELECT ` + hikeColumns + `
	FROM hikes h
	WHERE h.hike_date >= date('now')
	ORDER BY h.hike_date ASC`
	return r.queryHikes(ctx, q)
}

func (r *Repository) ReserveSeat(ctx context.Context, actorID, hikeID int64, snap models.Snapshot, guideBypass bool) (*models.Registration, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperrors.NewStorageError("begin reserve", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Occupancy is recomputed here, inside the same transaction that
	// inserts. The read outside any session snapshot carried by the
	// caller may be arbitrarily stale by the time the form is finished.
	var maxParticipants, occupancy int
	var active bool
	err = tx.QueryRowContext(ctx, `
	SELECT h.max_participants, h.is_active,
	       (SELECT COUNT(*) FROM registrations r WHERE r.hike_id = h.id)
	FROM hikes h WHERE h.id = ?`, hikeID).Scan(&maxParticipants, &active, &occupancy)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError("hike", hikeID)
	}
	if err != nil {
		return nil, apperrors.NewStorageError("reserve seat", err)
	}
	if !active {
		return nil, apperrors.New(apperrors.ErrCodeInactive, "hike is not active").WithActor(actorID)
	}

	var one int
	err = tx.QueryRowContext(ctx,
		"SELECT 1 FROM registrations WHERE telegram_id = ? AND hike_id = ?", actorID, hikeID).Scan(&one)
	if err == nil {
		return nil, apperrors.New(apperrors.ErrCodeAlreadyRegistered, "already registered for this hike").WithActor(actorID)
	}
	if err != sql.ErrNoRows {
		return nil, apperrors.NewStorageError("reserve seat", err)
	}

	if !guideBypass && occupancy >= maxParticipants {
		return nil, apperrors.New(apperrors.ErrCodeFull, "no spots available").WithActor(actorID)
	}

	now := time.Now()
	res, err := tx.ExecContext(ctx, `
	INSERT INTO registrations (
		telegram_id, hike_id, registration_timestamp,
		name_surname, email, phone, birth_date,
		medical_conditions, has_equipment, car_sharing,
		location, notes, reminder_preference
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		actorID, hikeID, now,
		snap.NameSurname, snap.Email, snap.Phone, snap.BirthDate,
		snap.MedicalConditions, snap.HasEquipment, snap.CarSharing,
		snap.Location, snap.Notes, snap.ReminderPref)
	if err != nil {
		return nil, apperrors.NewStorageError("insert registration", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, apperrors.NewStorageError("insert registration", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, apperrors.NewStorageError("commit reserve", err)
	}

	return &models.Registration{
		ID:         id,
		TelegramID: actorID,
		HikeID:     hikeID,
		CreatedAt:  now,
		Snapshot:   snap,
	}, nil
}

func (r *Repository) ReleaseSeat(ctx context.Context, actorID, registrationID int64) error {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM registrations WHERE id = ? AND telegram_id = ?", registrationID, actorID)
	if err != nil {
		return apperrors.NewStorageError("release seat", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NewNotFoundError("registration", registrationID)
	}
	return nil
}

func (r *Repository) SetHikeActive(ctx context.Context, hikeID int64, active bool) ([]models.Registrant, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperrors.NewStorageError("begin toggle", err)
	}
	defer func() { _ = tx.Rollback() }()

	var current bool
	err = tx.QueryRowContext(ctx, "SELECT is_active FROM hikes WHERE id = ?", hikeID).Scan(&current)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError("hike", hikeID)
	}
	if err != nil {
		return nil, apperrors.NewStorageError("toggle hike", err)
	}
	if active && current {
		return nil, apperrors.New(apperrors.ErrCodeValidation, "hike is already active")
	}

	var registrants []models.Registrant
	if !active {
		rows, err := tx.QueryContext(ctx,
			"SELECT telegram_id, name_surname FROM registrations WHERE hike_id = ?", hikeID)
		if err != nil {
			return nil, apperrors.NewStorageError("list registrants", err)
		}
		for rows.Next() {
			var reg models.Registrant
			if err := rows.Scan(&reg.TelegramID, &reg.NameSurname); err != nil {
				rows.Close()
				return nil, apperrors.NewStorageError("scan registrant", err)
			}
			registrants = append(registrants, reg)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, apperrors.NewStorageError("list registrants", err)
		}
		rows.Close()
	}

	if _, err := tx.ExecContext(ctx, "UPDATE hikes SET is_active = ? WHERE id = ?", active, hikeID); err != nil {
		return nil, apperrors.NewStorageError("toggle hike", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, apperrors.NewStorageError("commit toggle", err)
	}
	return registrants, nil
}

func (r *Repository) ActorRegistrations(ctx context.Context, actorID int64) ([]models.Registration, error) {
	const q = `
	SELECT r.id, r.telegram_id, r.hike_id, r.registration_timestamp,
	       r.name_surname, r.email, r.phone, r.birth_date,
	       COALESCE(r.medical_conditions, ''), r.has_equipment, r.car_sharing,
	       r.location, COALESCE(r.notes, ''), COALESCE(r.reminder_preference, ''),
	       h.hike_name, h.hike_date
	FROM registrations r
	JOIN hikes h ON h.id = r.hike_id
	WHERE r.telegram_id = ? AND h.hike_date >= date('now') AND h.is_active = 1
	ORDER BY h.hike_date ASC`
	rows, err := r.db.QueryContext(ctx, q, actorID)
	if err != nil {
		return nil, apperrors.NewStorageError("list registrations", err)
	}
	defer rows.Close()

	var regs []models.Registration
	for rows.Next() {
		var reg models.Registration
		var date string
		err := rows.Scan(&reg.ID, &reg.TelegramID, &reg.HikeID, &reg.CreatedAt,
			&reg.Snapshot.NameSurname, &reg.Snapshot.Email, &reg.Snapshot.Phone, &reg.Snapshot.BirthDate,
			&reg.Snapshot.MedicalConditions, &reg.Snapshot.HasEquipment, &reg.Snapshot.CarSharing,
			&reg.Snapshot.Location, &reg.Snapshot.Notes, &reg.Snapshot.ReminderPref,
			&reg.HikeName, &date)
		if err != nil {
			return nil, apperrors.NewStorageError("scan registration", err)
		}
		if reg.HikeDate, err = time.Parse(dateLayout, date); err != nil {
			return nil, apperrors.NewStorageError("parse hike date", err)
		}
		regs = append(regs, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("list registrations", err)
	}
	return regs, nil
}

func (r *Repository) Registrants(ctx context.Context, hikeID int64) ([]models.Registrant, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT telegram_id, name_surname FROM registrations WHERE hike_id = ?", hikeID)
	if err != nil {
		return nil, apperrors.NewStorageError("list registrants", err)
	}
	defer rows.Close()

	var regs []models.Registrant
	for rows.Next() {
		var reg models.Registrant
		if err := rows.Scan(&reg.TelegramID, &reg.NameSurname); err != nil {
			return nil, apperrors.NewStorageError("scan registrant", err)
		}
		regs = append(regs, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("list registrants", err)
	}
	return regs, nil
}

func (r *Repository) DueReminders(ctx context.Context, today time.Time, daysBefore int) ([]models.ReminderItem, error) {
	target := today.AddDate(0, 0, daysBefore).Format(dateLayout)
	const q = `
	SELECT r.telegram_id, h.id, h.hike_name, h.hike_date,
	       COALESCE(h.latitude, 0), COALESCE(h.longitude, 0), COALESCE(r.reminder_preference, '')
	FROM registrations r
	JOIN hikes h ON h.id = r.hike_id
	WHERE h.hike_date = ? AND h.is_active = 1`
	rows, err := r.db.QueryContext(ctx, q, target)
	if err != nil {
		return nil, apperrors.NewStorageError("due reminders", err)
	}
	defer rows.Close()

	var items []models.ReminderItem
	for rows.Next() {
		var item models.ReminderItem
		var date, pref string
		if err := rows.Scan(&item.TelegramID, &item.HikeID, &item.HikeName, &date,
			&item.Latitude, &item.Longitude, &pref); err != nil {
			return nil, apperrors.NewStorageError("scan reminder", err)
		}
		if !models.WantsReminder(pref, daysBefore) {
			continue
		}
		if item.HikeDate, err = time.Parse(dateLayout, date); err != nil {
			return nil, apperrors.NewStorageError("parse hike date", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("due reminders", err)
	}
	return items, nil
}
