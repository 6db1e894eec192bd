package bot

// State identifies a node of the conversation state machine. The set is
// closed; transitions happen only through the handlers registered in the
// engine's dispatch table.
type State string

const (
	// StateNone means no active conversation.
	StateNone State = ""
	// StateChoosing is the main menu.
	StateChoosing State = "choosing"
	// StateDonation shows the donation amount options.
	StateDonation State = "donation"
	// StateRestartConfirm is the yes/no sub-step guarding /restart while a
	// form is in progress.
	StateRestartConfirm State = "restart_confirm"
	// StatePrivacy is the consent review/edit screen.
	StatePrivacy State = "privacy"
	// StateBugReport waits for the free-text problem description.
	StateBugReport State = "bug_report"

	StateProfileMenu      State = "profile_menu"
	StateProfileName      State = "profile_name"
	StateProfileSurname   State = "profile_surname"
	StateProfileEmail     State = "profile_email"
	StateProfilePhone     State = "profile_phone"
	StateProfileBirthDate State = "profile_birth_date"

	StateSignupName      State = "signup_name"
	StateSignupSurname   State = "signup_surname"
	StateSignupEmail     State = "signup_email"
	StateSignupPhone     State = "signup_phone"
	StateSignupBirthDec  State = "signup_birth_decade"
	StateSignupBirthYear State = "signup_birth_year"
	StateSignupBirthMon  State = "signup_birth_month"
	StateSignupBirthDay  State = "signup_birth_day"
	StateSignupMedical   State = "signup_medical"
	StateSignupHikes     State = "signup_hikes"
	StateSignupEquipment State = "signup_equipment"
	StateSignupCarShare  State = "signup_car_share"
	StateSignupLocation  State = "signup_location"
	StateSignupReminder  State = "signup_reminder"
	StateSignupNotes     State = "signup_notes"
	StateSignupConsent   State = "signup_consent"

	StateAdminMenu        State = "admin_menu"
	StateAdminAddAdmin    State = "admin_add_admin"
	StateHikeName         State = "hike_name"
	StateHikeDate         State = "hike_date"
	StateHikeGuides       State = "hike_guides"
	StateHikeMaxPeople    State = "hike_max_participants"
	StateHikeCoordinates  State = "hike_coordinates"
	StateHikeDifficulty   State = "hike_difficulty"
	StateHikeDescription  State = "hike_description"
	StateHikeConfirm      State = "hike_confirm"

	StateMaintMenu   State = "maintenance_menu"
	StateMaintDate   State = "maintenance_date"
	StateMaintStart  State = "maintenance_start"
	StateMaintEnd    State = "maintenance_end"
	StateMaintReason State = "maintenance_reason"

	StateQueryMenu State = "query_menu"
	StateQueryExec State = "query_execute"
	StateQuerySave State = "query_save_name"
)

// nonFormStates are states where /restart may reset without confirmation
// because no partially filled form would be lost.
var nonFormStates = map[State]bool{
	StateNone:           true,
	StateChoosing:       true,
	StateDonation:       true,
	StatePrivacy:        true,
	StateProfileMenu:    true,
	StateAdminMenu:      true,
	StateMaintMenu:      true,
	StateQueryMenu:      true,
	StateRestartConfirm: true,
}

// inForm reports whether leaving the state silently would lose user input.
func inForm(s State) bool {
	return !nonFormStates[s]
}
