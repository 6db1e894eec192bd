package models

import "time"

// Difficulty grades a hike.
type Difficulty string

const (
	DifficultyEasy        Difficulty = "Easy"
	DifficultyModerate    Difficulty = "Moderate"
	DifficultyChallenging Difficulty = "Challenging"
	DifficultyHard        Difficulty = "Hard"
)

// Difficulties lists the valid grades in ascending order.
func Difficulties() []Difficulty {
	return []Difficulty{DifficultyEasy, DifficultyModerate, DifficultyChallenging, DifficultyHard}
}

// ParseDifficulty validates a difficulty value.
func ParseDifficulty(s string) (Difficulty, bool) {
	for _, d := range Difficulties() {
		if string(d) == s {
			return d, true
		}
	}
	return "", false
}

// Hike is one scheduled hike. Cancellation flips Active off; rows are never
// deleted so historical registrations stay queryable.
type Hike struct {
	ID              int64      `json:"id"`
	Name            string     `json:"name"`
	Date            time.Time  `json:"date"`
	MaxParticipants int        `json:"max_participants"`
	Guides          int        `json:"guides"`
	Latitude        float64    `json:"latitude"`
	Longitude       float64    `json:"longitude"`
	Difficulty      Difficulty `json:"difficulty"`
	Description     string     `json:"description"`
	CreatedBy       int64      `json:"created_by"`
	Active          bool       `json:"active"`

	// CurrentParticipants is the live registration count, filled by read
	// paths. Write decisions never trust it; they recount inside the
	// reserving transaction.
	CurrentParticipants int `json:"current_participants"`
}

// Full reports whether the hike has no seats left according to the attached
// read-time count.
func (h *Hike) Full() bool {
	return h.CurrentParticipants >= h.MaxParticipants
}

// Draft carries a hike being created or edited by an admin.
type Draft struct {
	Name            string
	Date            time.Time
	MaxParticipants int
	Guides          int
	Latitude        float64
	Longitude       float64
	Difficulty      Difficulty
	Description     string
}

// Snapshot is the answers copied into a registration at signup time. Later
// profile edits must not retroactively alter a past registration, so these
// are values, not references.
type Snapshot struct {
	NameSurname       string `json:"name_surname"`
	Email             string `json:"email"`
	Phone             string `json:"phone"`
	BirthDate         string `json:"birth_date"`
	MedicalConditions string `json:"medical_conditions"`
	HasEquipment      bool   `json:"has_equipment"`
	CarSharing        bool   `json:"car_sharing"`
	Location          string `json:"location"`
	Notes             string `json:"notes"`
	ReminderPref      string `json:"reminder_preference"`
}

// Registration links one user to one hike. At most one per (user, hike).
type Registration struct {
	ID         int64     `json:"id"`
	TelegramID int64     `json:"telegram_id"`
	HikeID     int64     `json:"hike_id"`
	CreatedAt  time.Time `json:"created_at"`
	Snapshot   Snapshot  `json:"snapshot"`

	// HikeName and HikeDate are joined in by read paths listing an
	// actor's registrations.
	HikeName string    `json:"hike_name,omitempty"`
	HikeDate time.Time `json:"hike_date,omitempty"`
}

// Registrant is the per-user slice of a registration used for notifications.
type Registrant struct {
	TelegramID  int64
	NameSurname string
}

// ReminderItem is one due reminder produced by the daily sweep.
type ReminderItem struct {
	TelegramID int64
	HikeID     int64
	HikeName   string
	HikeDate   time.Time
	Latitude   float64
	Longitude  float64
}

// Reminder preference values stored on a registration.
const (
	ReminderNone    = "No reminders"
	Reminder5Days   = "5 days before"
	Reminder2Days   = "2 days before"
	ReminderBoth    = "both"
)

// WantsReminder reports whether a stored preference covers a daysBefore mark.
func WantsReminder(pref string, daysBefore int) bool {
	switch pref {
	case ReminderBoth:
		return daysBefore == 5 || daysBefore == 2
	case Reminder5Days:
		return daysBefore == 5
	case Reminder2Days:
		return daysBefore == 2
	default:
		return false
	}
}
