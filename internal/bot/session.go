package bot

import (
	"strings"
	"time"

	"github.com/google/uuid"

	hikemodels "hiky-bot-backend/internal/features/hike/models"
	maintmodels "hiky-bot-backend/internal/features/maintenance/models"
)

// Session holds the per-actor conversation position plus the drafts being
// filled in. It is the unit of persistence: the engine writes the session
// back before any reply goes out, so a crash can lose at most one answer.
type Session struct {
	ActorID   int64     `json:"actor_id"`
	ChatID    int64     `json:"chat_id"`
	Token     string    `json:"token"`
	State     State     `json:"state"`
	UpdatedAt time.Time `json:"updated_at"`

	// ReturnState remembers where to resume after the restart confirmation
	// sub-step answers "no".
	ReturnState State `json:"return_state,omitempty"`

	Signup      *SignupForm       `json:"signup,omitempty"`
	HikeDraft   *HikeDraft        `json:"hike_draft,omitempty"`
	Maintenance *MaintenanceDraft `json:"maintenance,omitempty"`
	Query       *QueryDraft       `json:"query,omitempty"`
}

// NewSession starts a fresh conversation for the actor. The token is minted
// per conversation and embedded in every inline button, so taps on keyboards
// from an earlier conversation are detectable as stale.
func NewSession(actorID, chatID int64) *Session {
	return &Session{
		ActorID:   actorID,
		ChatID:    chatID,
		Token:     uuid.NewString(),
		State:     StateChoosing,
		UpdatedAt: time.Now(),
	}
}

// tokenPrefixLen keeps callback data under Telegram's 64-byte limit.
const tokenPrefixLen = 8

// Action builds callback data bound to this session.
func (s *Session) Action(parts ...string) string {
	return s.Token[:tokenPrefixLen] + "|" + strings.Join(parts, ":")
}

// ParseAction splits incoming callback data into its token prefix and the
// action payload. ok is false when the data carries no token.
func ParseAction(data string) (token, action string, ok bool) {
	i := strings.IndexByte(data, '|')
	if i < 0 {
		return "", "", false
	}
	return data[:i], data[i+1:], true
}

// Matches reports whether callback data was issued by this session.
func (s *Session) Matches(token string) bool {
	return len(s.Token) >= tokenPrefixLen && s.Token[:tokenPrefixLen] == token
}

// HikeOption is the signup form's snapshot of one offered hike. Occupancy is
// rechecked at commit time, this is display data only.
type HikeOption struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Date      string `json:"date"`
	SeatsLeft int    `json:"seats_left"`
	Selected  bool   `json:"selected"`
}

// SignupForm accumulates the registration questionnaire answers.
type SignupForm struct {
	Name        string       `json:"name,omitempty"`
	Surname     string       `json:"surname,omitempty"`
	Email       string       `json:"email,omitempty"`
	Phone       string       `json:"phone,omitempty"`
	BirthDecade int          `json:"birth_decade,omitempty"`
	BirthYear   int          `json:"birth_year,omitempty"`
	BirthMonth  int          `json:"birth_month,omitempty"`
	BirthDate   string       `json:"birth_date,omitempty"`
	Medical     string       `json:"medical,omitempty"`
	Hikes       []HikeOption `json:"hikes,omitempty"`
	Equipment   bool         `json:"equipment"`
	CarShare    bool         `json:"car_share"`
	Location    string       `json:"location,omitempty"`
	Reminder    string       `json:"reminder,omitempty"`
	Notes       string       `json:"notes,omitempty"`
}

// SelectedHikes returns the options toggled on, in display order.
func (f *SignupForm) SelectedHikes() []HikeOption {
	var out []HikeOption
	for _, h := range f.Hikes {
		if h.Selected {
			out = append(out, h)
		}
	}
	return out
}

// Snapshot freezes the answers for one registration row.
func (f *SignupForm) Snapshot() hikemodels.Snapshot {
	return hikemodels.Snapshot{
		NameSurname:       strings.TrimSpace(f.Name + " " + f.Surname),
		Email:             f.Email,
		Phone:             f.Phone,
		BirthDate:         f.BirthDate,
		MedicalConditions: f.Medical,
		HasEquipment:      f.Equipment,
		CarSharing:        f.CarShare,
		Location:          f.Location,
		Notes:             f.Notes,
		ReminderPref:      f.Reminder,
	}
}

// HikeDraft is the admin hike-creation form. EditingID is zero for a new
// hike and set when an existing one is being edited.
type HikeDraft struct {
	EditingID   int64   `json:"editing_id,omitempty"`
	Name        string  `json:"name,omitempty"`
	Date        string  `json:"date,omitempty"`
	Guides      int     `json:"guides,omitempty"`
	MaxPeople   int     `json:"max_people,omitempty"`
	Latitude    float64 `json:"latitude,omitempty"`
	Longitude   float64 `json:"longitude,omitempty"`
	Difficulty  string  `json:"difficulty,omitempty"`
	Description string  `json:"description,omitempty"`
}

// Draft converts the collected answers into the service-layer draft.
func (d *HikeDraft) Draft() (hikemodels.Draft, error) {
	date, err := time.Parse("02/01/2006", d.Date)
	if err != nil {
		return hikemodels.Draft{}, err
	}
	return hikemodels.Draft{
		Name:            d.Name,
		Date:            date,
		Guides:          d.Guides,
		MaxParticipants: d.MaxPeople,
		Latitude:        d.Latitude,
		Longitude:       d.Longitude,
		Difficulty:      hikemodels.Difficulty(d.Difficulty),
		Description:     d.Description,
	}, nil
}

// MaintenanceDraft collects a maintenance window. When EditingID is set only
// the fields the admin re-entered are applied.
type MaintenanceDraft struct {
	EditingID int64  `json:"editing_id,omitempty"`
	Field     string `json:"field,omitempty"`
	Date      string `json:"date,omitempty"`
	Start     string `json:"start,omitempty"`
	End       string `json:"end,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Window converts a complete draft into the model window.
func (d *MaintenanceDraft) Window() (maintmodels.Window, error) {
	date, err := time.Parse("02/01/2006", d.Date)
	if err != nil {
		return maintmodels.Window{}, err
	}
	return maintmodels.Window{
		Date:   date,
		Start:  d.Start,
		End:    d.End,
		Reason: d.Reason,
	}, nil
}

// QueryDraft holds the query-tool conversation scratch space.
type QueryDraft struct {
	PendingSQL string `json:"pending_sql,omitempty"`
}
