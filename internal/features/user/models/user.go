package models

import "time"

// Unset is the sentinel stored for profile fields the user never answered.
// It keeps "never answered" distinguishable from an explicitly empty value.
const Unset = "Not set"

// ConsentVersion is the version tag written whenever consents are saved.
const ConsentVersion = "2.0"

// User is one known actor. A row exists before any registration, admin grant
// or group membership can reference it.
type User struct {
	TelegramID int64     `json:"telegram_id"`
	Username   string    `json:"username"`
	Name       string    `json:"name"`
	Surname    string    `json:"surname"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone"`
	BirthDate  string    `json:"birth_date"`
	IsGuide    bool      `json:"is_guide"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Consents   Consents  `json:"consents"`
}

// Consents groups the privacy flags with their schema version.
type Consents struct {
	Basic      bool   `json:"basic"`
	CarSharing bool   `json:"car_sharing"`
	Photo      bool   `json:"photo"`
	Marketing  bool   `json:"marketing"`
	Version    string `json:"version"`
}

// ProfileUpdate carries the fields of a partial profile edit. Nil means
// leave the stored value alone.
type ProfileUpdate struct {
	Name      *string
	Surname   *string
	Email     *string
	Phone     *string
	BirthDate *string
}

// Empty reports whether the update would change nothing.
func (p ProfileUpdate) Empty() bool {
	return p.Name == nil && p.Surname == nil && p.Email == nil && p.Phone == nil && p.BirthDate == nil
}

// Admin grants elevated capability to a user.
type Admin struct {
	TelegramID int64     `json:"telegram_id"`
	Role       string    `json:"role"`
	AddedBy    int64     `json:"added_by"`
	AddedOn    time.Time `json:"added_on"`
}

// HasProfile reports whether the signup-relevant fields are all filled in,
// allowing the questionnaire to prefill from the profile.
func (u *User) HasProfile() bool {
	return u.Name != Unset && u.Surname != Unset && u.Email != Unset && u.Phone != Unset && u.BirthDate != Unset
}
