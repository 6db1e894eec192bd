package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	apperrors "hiky-bot-backend/internal/common/errors"
	hikemodels "hiky-bot-backend/internal/features/hike/models"
	usermodels "hiky-bot-backend/internal/features/user/models"
	"hiky-bot-backend/internal/messaging"
)

const birthDecadeFloor = 1930

// startSignup opens the registration questionnaire. A complete profile
// skips the personal-data questions and jumps straight to the medical one.
func (e *Engine) startSignup(ctx context.Context, s *Session, ev messaging.Event) (*step, error) {
	available, err := e.hikes.Available(ctx, s.ActorID)
	if err != nil {
		return nil, err
	}
	if len(available) == 0 {
		st := stay(StateChoosing)
		return st.edit(s, ev.MessageID, "No upcoming hikes you could join right now. Check back soon!",
			messaging.Row(messaging.Btn("« Back", s.Action("menu")))), nil
	}

	form := &SignupForm{}
	for _, h := range available {
		form.Hikes = append(form.Hikes, HikeOption{
			ID:        h.ID,
			Name:      h.Name,
			Date:      h.Date.Format(dateLayout),
			SeatsLeft: h.MaxParticipants - h.CurrentParticipants,
		})
	}
	s.Signup = form

	u, err := e.users.Profile(ctx, s.ActorID)
	if err != nil {
		return nil, err
	}
	if u.HasProfile() {
		form.Name = u.Name
		form.Surname = u.Surname
		form.Email = u.Email
		form.Phone = u.Phone
		form.BirthDate = u.BirthDate
		st := goTo(StateSignupMedical)
		return st.reply(s,
			fmt.Sprintf("Using your saved profile (%s %s, %s). You can edit it later from the menu.\n\n%s",
				u.Name, u.Surname, u.Email, promptMedical), medicalKeyboard(s)), nil
	}

	st := goTo(StateSignupName)
	return st.reply(s, "Let's get you on a trail! First, what's your first name?"), nil
}

const promptMedical = "Any medical conditions or allergies the guides should know about? Type them, or skip."

func medicalKeyboard(s *Session) []messaging.Button {
	return messaging.Row(messaging.Btn("Nothing to report", s.Action("med", "skip")))
}

func (e *Engine) handleSignupName(_ context.Context, s *Session, ev messaging.Event, _ string) (*step, error) {
	v, err := textAnswer(ev, validateName)
	if err != nil {
		return nil, err
	}
	s.Signup.Name = v
	st := goTo(StateSignupSurname)
	return st.reply(s, "And your surname?"), nil
}

func (e *Engine) handleSignupSurname(_ context.Context, s *Session, ev messaging.Event, _ string) (*step, error) {
	v, err := textAnswer(ev, validateName)
	if err != nil {
		return nil, err
	}
	s.Signup.Surname = v
	st := goTo(StateSignupEmail)
	return st.reply(s, "What's your email address?"), nil
}

func (e *Engine) handleSignupEmail(_ context.Context, s *Session, ev messaging.Event, _ string) (*step, error) {
	v, err := textAnswer(ev, validateEmail)
	if err != nil {
		return nil, err
	}
	s.Signup.Email = v
	st := goTo(StateSignupPhone)
	return st.reply(s, "What's your phone number? We only use it on the day of the hike."), nil
}

func (e *Engine) handleSignupPhone(_ context.Context, s *Session, ev messaging.Event, _ string) (*step, error) {
	v, err := textAnswer(ev, validatePhone)
	if err != nil {
		return nil, err
	}
	s.Signup.Phone = v
	st := goTo(StateSignupBirthDec)
	return st.reply(s, "When were you born? Pick the decade.", decadeRows(s, time.Now())...), nil
}

func decadeRows(s *Session, now time.Time) [][]messaging.Button {
	latest := (now.Year() - 18) / 10 * 10
	var rows [][]messaging.Button
	var row []messaging.Button
	for d := birthDecadeFloor; d <= latest; d += 10 {
		row = append(row, messaging.Btn(fmt.Sprintf("%ds", d), s.Action("bd", "dec", strconv.Itoa(d))))
		if len(row) == 4 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return rows
}

var monthNames = []string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

// handleSignupBirth serves the decade, year, month and day drill-down. The
// callback payload carries which level was answered, the session state only
// gates which levels are currently legal.
func (e *Engine) handleSignupBirth(ctx context.Context, s *Session, ev messaging.Event, action string) (*step, error) {
	parts := strings.Split(action, ":")
	if len(parts) != 3 || parts[0] != "bd" {
		return e.lostConversation(ctx, s, ev), nil
	}
	n, err := strconv.Atoi(parts[2])
	if err != nil {
		return e.lostConversation(ctx, s, ev), nil
	}
	now := time.Now()
	f := s.Signup

	switch parts[1] {
	case "dec":
		f.BirthDecade = n
		latest := now.Year() - 18
		var row []messaging.Button
		var rows [][]messaging.Button
		for y := n; y < n+10 && y <= latest; y++ {
			row = append(row, messaging.Btn(strconv.Itoa(y), s.Action("bd", "yr", strconv.Itoa(y))))
			if len(row) == 5 {
				rows = append(rows, row)
				row = nil
			}
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
		st := goTo(StateSignupBirthYear)
		return st.edit(s, ev.MessageID, "Which year?", rows...), nil

	case "yr":
		f.BirthYear = n
		var rows [][]messaging.Button
		for m := 0; m < 12; m += 4 {
			var row []messaging.Button
			for j := m; j < m+4; j++ {
				row = append(row, messaging.Btn(monthNames[j], s.Action("bd", "mo", strconv.Itoa(j+1))))
			}
			rows = append(rows, row)
		}
		st := goTo(StateSignupBirthMon)
		return st.edit(s, ev.MessageID, "Which month?", rows...), nil

	case "mo":
		f.BirthMonth = n
		last := time.Date(f.BirthYear, time.Month(n)+1, 0, 0, 0, 0, 0, time.UTC).Day()
		var rows [][]messaging.Button
		var row []messaging.Button
		for d := 1; d <= last; d++ {
			row = append(row, messaging.Btn(strconv.Itoa(d), s.Action("bd", "dy", strconv.Itoa(d))))
			if len(row) == 7 {
				rows = append(rows, row)
				row = nil
			}
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
		st := goTo(StateSignupBirthDay)
		return st.edit(s, ev.MessageID, "Which day?", rows...), nil

	case "dy":
		birth := time.Date(f.BirthYear, time.Month(f.BirthMonth), n, 0, 0, 0, 0, time.UTC)
		if age(birth, now) < 18 {
			st := goTo(StateSignupBirthDec)
			return st.edit(s, ev.MessageID, "You must be at least 18 to join. Pick the decade.", decadeRows(s, now)...), nil
		}
		f.BirthDate = birth.Format(dateLayout)
		st := goTo(StateSignupMedical)
		return st.edit(s, ev.MessageID, promptMedical, medicalKeyboard(s)), nil

	default:
		return e.lostConversation(ctx, s, ev), nil
	}
}

func (e *Engine) handleSignupMedical(ctx context.Context, s *Session, ev messaging.Event, action string) (*step, error) {
	switch {
	case action == "med:skip":
		s.Signup.Medical = "None"
	case ev.Kind == messaging.KindText && strings.TrimSpace(ev.Text) != "":
		s.Signup.Medical = strings.TrimSpace(ev.Text)
	default:
		return nil, apperrors.NewValidationError("medical", "type your answer or tap the button above")
	}
	return e.hikeSelectStep(s, 0), nil
}

func (e *Engine) hikeSelectStep(s *Session, editMessageID int) *step {
	var rows [][]messaging.Button
	for _, h := range s.Signup.Hikes {
		label := fmt.Sprintf("%s %s — %s", selectMark(h), h.Name, h.Date)
		if h.SeatsLeft <= 0 && !h.Selected {
			label = fmt.Sprintf("🚫 %s — %s (full)", h.Name, h.Date)
		}
		rows = append(rows, messaging.Row(
			messaging.Btn(label, s.Action("hk", strconv.FormatInt(h.ID, 10))),
		))
	}
	rows = append(rows, messaging.Row(messaging.Btn("Done ✔", s.Action("hkdone"))))

	st := goTo(StateSignupHikes)
	text := "Which hikes would you like to join? Tap to select, then Done."
	if editMessageID != 0 {
		return st.edit(s, editMessageID, text, rows...)
	}
	return st.reply(s, text, rows...)
}

func selectMark(h HikeOption) string {
	if h.Selected {
		return "✅"
	}
	return "⬜"
}

func (e *Engine) handleSignupHikes(ctx context.Context, s *Session, ev messaging.Event, action string) (*step, error) {
	verb, arg := splitAction(action)
	switch verb {
	case "hk":
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return e.lostConversation(ctx, s, ev), nil
		}
		for i := range s.Signup.Hikes {
			h := &s.Signup.Hikes[i]
			if h.ID != id {
				continue
			}
			if !h.Selected && h.SeatsLeft <= 0 {
				return nil, apperrors.NewValidationError("hike", "that hike is full")
			}
			h.Selected = !h.Selected
		}
		return e.hikeSelectStep(s, ev.MessageID), nil

	case "hkdone":
		if len(s.Signup.SelectedHikes()) == 0 {
			return nil, apperrors.NewValidationError("hike", "select at least one hike first")
		}
		st := goTo(StateSignupEquipment)
		return st.edit(s, ev.MessageID, "Do you have your own hiking equipment (boots, backpack, water)?",
			messaging.Row(
				messaging.Btn("Yes", s.Action("eq", "yes")),
				messaging.Btn("No", s.Action("eq", "no")),
			)), nil

	default:
		return e.lostConversation(ctx, s, ev), nil
	}
}

func (e *Engine) handleSignupEquipment(ctx context.Context, s *Session, ev messaging.Event, action string) (*step, error) {
	verb, arg := splitAction(action)
	if verb != "eq" || (arg != "yes" && arg != "no") {
		return e.lostConversation(ctx, s, ev), nil
	}
	s.Signup.Equipment = arg == "yes"
	st := goTo(StateSignupCarShare)
	return st.edit(s, ev.MessageID, "Would you like to share a car ride with other participants?",
		messaging.Row(
			messaging.Btn("Yes", s.Action("car", "yes")),
			messaging.Btn("No", s.Action("car", "no")),
		)), nil
}

func (e *Engine) handleSignupCarShare(ctx context.Context, s *Session, ev messaging.Event, action string) (*step, error) {
	verb, arg := splitAction(action)
	if verb != "car" || (arg != "yes" && arg != "no") {
		return e.lostConversation(ctx, s, ev), nil
	}
	s.Signup.CarShare = arg == "yes"
	st := goTo(StateSignupLocation)
	return st.edit(s, ev.MessageID, "Where are you coming from? (helps organize car sharing)",
		messaging.Row(messaging.Btn("Rather not say", s.Action("loc", "skip")))), nil
}

func (e *Engine) handleSignupLocation(_ context.Context, s *Session, ev messaging.Event, action string) (*step, error) {
	switch {
	case action == "loc:skip":
		s.Signup.Location = usermodels.Unset
	case ev.Kind == messaging.KindText && strings.TrimSpace(ev.Text) != "":
		s.Signup.Location = strings.TrimSpace(ev.Text)
	default:
		return nil, apperrors.NewValidationError("location", "type your answer or tap the button above")
	}
	st := goTo(StateSignupReminder)
	return st.reply(s, "Want a reminder before each hike?",
		messaging.Row(
			messaging.Btn("5 days before", s.Action("rem", "5")),
			messaging.Btn("2 days before", s.Action("rem", "2")),
		),
		messaging.Row(
			messaging.Btn("Both", s.Action("rem", "both")),
			messaging.Btn("No reminders", s.Action("rem", "none")),
		)), nil
}

func (e *Engine) handleSignupReminder(ctx context.Context, s *Session, ev messaging.Event, action string) (*step, error) {
	verb, arg := splitAction(action)
	if verb != "rem" {
		return e.lostConversation(ctx, s, ev), nil
	}
	switch arg {
	case "5":
		s.Signup.Reminder = hikemodels.Reminder5Days
	case "2":
		s.Signup.Reminder = hikemodels.Reminder2Days
	case "both":
		s.Signup.Reminder = hikemodels.ReminderBoth
	case "none":
		s.Signup.Reminder = hikemodels.ReminderNone
	default:
		return e.lostConversation(ctx, s, ev), nil
	}
	st := goTo(StateSignupNotes)
	return st.edit(s, ev.MessageID, "Anything else the organizers should know?",
		messaging.Row(messaging.Btn("Nothing to add", s.Action("notes", "skip")))), nil
}

func (e *Engine) handleSignupNotes(_ context.Context, s *Session, ev messaging.Event, action string) (*step, error) {
	switch {
	case action == "notes:skip":
		s.Signup.Notes = ""
	case ev.Kind == messaging.KindText:
		s.Signup.Notes = strings.TrimSpace(ev.Text)
	default:
		return nil, apperrors.NewValidationError("notes", "type your answer or tap the button above")
	}

	f := s.Signup
	var b strings.Builder
	b.WriteString("Almost done! Here's your signup:\n")
	fmt.Fprintf(&b, "\n%s %s, %s, %s", f.Name, f.Surname, f.Email, f.Phone)
	b.WriteString("\n\nHikes:")
	for _, h := range f.SelectedHikes() {
		fmt.Fprintf(&b, "\n• %s — %s", h.Name, h.Date)
	}
	b.WriteString("\n\nBy confirming you accept the privacy policy (version " + usermodels.ConsentVersion + ") and agree to the processing of this data for organizing the hikes.")

	st := goTo(StateSignupConsent)
	return st.reply(s, b.String(),
		messaging.Row(
			messaging.Btn("✅ Confirm", s.Action("consent", "ok")),
			messaging.Btn("❌ Abort", s.Action("consent", "no")),
		)), nil
}

// handleSignupConsent commits the whole questionnaire. Seats are only
// reserved here, so a hike filling up mid-conversation surfaces as a
// per-hike rejection, never a half-registered state.
func (e *Engine) handleSignupConsent(ctx context.Context, s *Session, ev messaging.Event, action string) (*step, error) {
	switch action {
	case "consent:no":
		st := done()
		return st.edit(s, ev.MessageID, "Signup abandoned. Nothing was saved. See you next time!"), nil
	case "consent:ok":
	default:
		return e.lostConversation(ctx, s, ev), nil
	}

	f := s.Signup
	update := usermodels.ProfileUpdate{
		Name:      &f.Name,
		Surname:   &f.Surname,
		Email:     &f.Email,
		Phone:     &f.Phone,
		BirthDate: &f.BirthDate,
	}
	if err := e.users.UpdateProfile(ctx, s.ActorID, update); err != nil {
		return nil, err
	}

	u, err := e.users.Profile(ctx, s.ActorID)
	if err != nil {
		return nil, err
	}
	consents := u.Consents
	consents.Basic = true
	consents.CarSharing = consents.CarSharing || f.CarShare
	if err := e.users.SaveConsents(ctx, s.ActorID, consents); err != nil {
		return nil, err
	}

	snap := f.Snapshot()
	var b strings.Builder
	for _, h := range f.SelectedHikes() {
		if _, err := e.hikes.Register(ctx, s.ActorID, h.ID, snap); err != nil {
			if appErr, ok := apperrors.AsAppError(err); ok && appErr.IsBusinessRejection() {
				fmt.Fprintf(&b, "⚠️ %s: %s\n", h.Name, rejectionText(appErr))
				continue
			}
			e.log.Error().Err(err).Int64("actor_id", s.ActorID).Int64("hike_id", h.ID).Msg("registration failed")
			fmt.Fprintf(&b, "⚠️ %s: something went wrong, please try again later\n", h.Name)
			continue
		}
		fmt.Fprintf(&b, "✅ %s — you're in!\n", h.Name)
	}
	b.WriteString("\nSee you on the trail! Manage your hikes anytime with /menu.")

	st := done()
	return st.edit(s, ev.MessageID, b.String()), nil
}

// textAnswer extracts and validates a free-text answer.
func textAnswer(ev messaging.Event, validate func(string) (string, error)) (string, error) {
	if ev.Kind != messaging.KindText {
		return "", apperrors.NewValidationError("input", "type your answer as a text message")
	}
	return validate(ev.Text)
}
