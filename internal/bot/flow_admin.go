package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	apperrors "hiky-bot-backend/internal/common/errors"
	hikemodels "hiky-bot-backend/internal/features/hike/models"
	"hiky-bot-backend/internal/messaging"
)

func (e *Engine) openAdminMenu(ctx context.Context, s *Session, _ messaging.Event) (*step, error) {
	admin, err := e.users.IsAdmin(ctx, s.ActorID)
	if err != nil {
		return nil, err
	}
	if !admin {
		st := done()
		return st.reply(s, msgNotAdmin), nil
	}
	return e.adminMenuStep(s, 0), nil
}

func (e *Engine) adminMenuStep(s *Session, editMessageID int) *step {
	rows := [][]messaging.Button{
		messaging.Row(messaging.Btn("➕ New hike", s.Action("newhike"))),
		messaging.Row(messaging.Btn("🗂 Manage hikes", s.Action("hikes"))),
		messaging.Row(
			messaging.Btn("👥 Add admin", s.Action("addadmin")),
			messaging.Btn("🔧 Maintenance", s.Action("maint")),
		),
		messaging.Row(messaging.Btn("📊 Query tool", s.Action("query"))),
		messaging.Row(messaging.Btn("« Back", s.Action("menu"))),
	}
	st := goTo(StateAdminMenu)
	if editMessageID != 0 {
		return st.edit(s, editMessageID, "Admin tools:", rows...)
	}
	return st.reply(s, "Admin tools:", rows...)
}

func (e *Engine) handleAdminMenu(ctx context.Context, s *Session, ev messaging.Event, action string) (*step, error) {
	verb, arg := splitAction(action)
	switch verb {
	case "menu":
		return e.menuStep(ctx, s, ev.MessageID)
	case "admin":
		return e.adminMenuStep(s, ev.MessageID), nil
	case "newhike":
		s.HikeDraft = &HikeDraft{}
		st := goTo(StateHikeName)
		return st.reply(s, "Creating a new hike. What's its name?"), nil
	case "addadmin":
		st := goTo(StateAdminAddAdmin)
		return st.reply(s, "Send the Telegram ID of the user to promote. They must have talked to the bot before."), nil
	case "maint":
		return e.maintMenuStep(ctx, s, ev.MessageID)
	case "query":
		return e.queryMenuStep(ctx, s, ev.MessageID)
	case "hikes":
		return e.manageHikesStep(ctx, s, ev.MessageID)
	case "ah":
		return e.hikeDetailStep(ctx, s, ev, arg)
	case "ahc":
		return e.toggleHike(ctx, s, ev, arg, false)
	case "ahr":
		return e.toggleHike(ctx, s, ev, arg, true)
	case "ahp":
		return e.registrantsStep(ctx, s, ev, arg)
	default:
		return e.lostConversation(ctx, s, ev), nil
	}
}

func (e *Engine) manageHikesStep(ctx context.Context, s *Session, editMessageID int) (*step, error) {
	upcoming, err := e.hikes.Upcoming(ctx)
	if err != nil {
		return nil, err
	}
	st := stay(StateAdminMenu)
	if len(upcoming) == 0 {
		return st.edit(s, editMessageID, "No upcoming hikes on the calendar.",
			messaging.Row(messaging.Btn("« Back", s.Action("admin")))), nil
	}

	rows := make([][]messaging.Button, 0, len(upcoming)+1)
	for _, h := range upcoming {
		label := fmt.Sprintf("%s — %s (%d/%d)", h.Name, h.Date.Format(dateLayout), h.CurrentParticipants, h.MaxParticipants)
		if !h.Active {
			label = "🚫 " + label
		}
		rows = append(rows, messaging.Row(messaging.Btn(label, s.Action("ah", strconv.FormatInt(h.ID, 10)))))
	}
	rows = append(rows, messaging.Row(messaging.Btn("« Back", s.Action("admin"))))
	return st.edit(s, editMessageID, "Upcoming hikes:", rows...), nil
}

func (e *Engine) hikeDetailStep(ctx context.Context, s *Session, ev messaging.Event, arg string) (*step, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return e.lostConversation(ctx, s, ev), nil
	}
	h, err := e.hikes.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\nDate: %s\nDifficulty: %s\nGuides: %d\nParticipants: %d/%d\nLocation: %.5f, %.5f",
		h.Name, h.Date.Format(dateLayout), h.Difficulty, h.Guides, h.CurrentParticipants, h.MaxParticipants, h.Latitude, h.Longitude)
	if h.Description != "" {
		b.WriteString("\n\n" + h.Description)
	}
	if !h.Active {
		b.WriteString("\n\n🚫 This hike is cancelled.")
	}

	var toggle messaging.Button
	if h.Active {
		toggle = messaging.Btn("🚫 Cancel hike", s.Action("ahc", arg))
	} else {
		toggle = messaging.Btn("♻️ Reactivate", s.Action("ahr", arg))
	}
	st := stay(StateAdminMenu)
	return st.edit(s, ev.MessageID, b.String(),
		messaging.Row(toggle, messaging.Btn("👥 Registrants", s.Action("ahp", arg))),
		messaging.Row(messaging.Btn("« Back", s.Action("hikes")))), nil
}

// toggleHike cancels or reactivates a hike. Cancelling notifies every
// registrant; their seats stay booked in case the hike comes back.
func (e *Engine) toggleHike(ctx context.Context, s *Session, ev messaging.Event, arg string, active bool) (*step, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return e.lostConversation(ctx, s, ev), nil
	}
	h, err := e.hikes.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	registrants, err := e.hikes.SetActive(ctx, s.ActorID, id, active)
	if err != nil {
		return nil, err
	}

	st, err := e.hikeDetailStep(ctx, s, ev, arg)
	if err != nil {
		return nil, err
	}
	if !active {
		text := fmt.Sprintf("⚠️ The hike \"%s\" on %s has been cancelled. Sorry! Keep an eye on the group for alternatives.",
			h.Name, h.Date.Format(dateLayout))
		for _, r := range registrants {
			st.msgs = append(st.msgs, messaging.Outbound{ChatID: r.TelegramID, Text: text})
		}
	}
	return st, nil
}

func (e *Engine) registrantsStep(ctx context.Context, s *Session, ev messaging.Event, arg string) (*step, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return e.lostConversation(ctx, s, ev), nil
	}
	registrants, err := e.hikes.Registrants(ctx, s.ActorID, id)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	if len(registrants) == 0 {
		b.WriteString("Nobody signed up yet.")
	} else {
		fmt.Fprintf(&b, "%d signed up:\n", len(registrants))
		for i, r := range registrants {
			fmt.Fprintf(&b, "\n%d. %s", i+1, r.NameSurname)
		}
	}
	st := stay(StateAdminMenu)
	return st.edit(s, ev.MessageID, b.String(),
		messaging.Row(messaging.Btn("« Back", s.Action("ah", arg)))), nil
}

func (e *Engine) handleAddAdmin(ctx context.Context, s *Session, ev messaging.Event, _ string) (*step, error) {
	if ev.Kind != messaging.KindText {
		return nil, apperrors.NewValidationError("input", "send the user's numeric Telegram ID")
	}
	id, err := strconv.ParseInt(strings.TrimSpace(ev.Text), 10, 64)
	if err != nil || id <= 0 {
		return nil, apperrors.NewValidationError("telegram_id", "that's not a valid Telegram ID, try again")
	}
	if err := e.users.GrantAdmin(ctx, id, s.ActorID); err != nil {
		return nil, err
	}
	st := e.adminMenuStep(s, 0)
	st.msgs = append([]messaging.Outbound{{ChatID: s.ChatID, Text: fmt.Sprintf("User %d is now an admin and guide.", id)}}, st.msgs...)
	return st, nil
}

// handleHikeDraft walks the hike-creation questionnaire. The difficulty
// step is the only button one; everything else is typed.
func (e *Engine) handleHikeDraft(ctx context.Context, s *Session, ev messaging.Event, action string) (*step, error) {
	d := s.HikeDraft
	switch s.State {
	case StateHikeName:
		v, err := textAnswer(ev, validateName)
		if err != nil {
			return nil, err
		}
		d.Name = v
		st := goTo(StateHikeDate)
		return st.reply(s, "When is it? (dd/mm/yyyy)"), nil

	case StateHikeDate:
		if ev.Kind != messaging.KindText {
			return nil, apperrors.NewValidationError("date", "type the date as dd/mm/yyyy")
		}
		t, err := validateFutureDate(ev.Text, timeNow())
		if err != nil {
			return nil, err
		}
		d.Date = t.Format(dateLayout)
		st := goTo(StateHikeGuides)
		return st.reply(s, "How many guides?"), nil

	case StateHikeGuides:
		n, err := intAnswer(ev, 1, 20, "guides")
		if err != nil {
			return nil, err
		}
		d.Guides = n
		st := goTo(StateHikeMaxPeople)
		return st.reply(s, "Maximum number of participants?"), nil

	case StateHikeMaxPeople:
		n, err := intAnswer(ev, 1, 500, "max participants")
		if err != nil {
			return nil, err
		}
		d.MaxPeople = n
		st := goTo(StateHikeCoordinates)
		return st.reply(s, "Meeting point coordinates? (latitude, longitude)"), nil

	case StateHikeCoordinates:
		lat, lon, err := parseCoordinates(ev)
		if err != nil {
			return nil, err
		}
		d.Latitude, d.Longitude = lat, lon
		rows := make([][]messaging.Button, 0, 2)
		var row []messaging.Button
		for _, diff := range hikemodels.Difficulties() {
			row = append(row, messaging.Btn(string(diff), s.Action("dif", string(diff))))
			if len(row) == 2 {
				rows = append(rows, row)
				row = nil
			}
		}
		st := goTo(StateHikeDifficulty)
		return st.reply(s, "How hard is it?", rows...), nil

	case StateHikeDifficulty:
		verb, arg := splitAction(action)
		if verb != "dif" {
			return e.lostConversation(ctx, s, ev), nil
		}
		diff, ok := hikemodels.ParseDifficulty(arg)
		if !ok {
			return e.lostConversation(ctx, s, ev), nil
		}
		d.Difficulty = string(diff)
		st := goTo(StateHikeDescription)
		return st.edit(s, ev.MessageID, "Add a short description, or skip.",
			messaging.Row(messaging.Btn("Skip", s.Action("desc", "skip")))), nil

	case StateHikeDescription:
		switch {
		case action == "desc:skip":
			d.Description = ""
		case ev.Kind == messaging.KindText:
			d.Description = strings.TrimSpace(ev.Text)
		default:
			return nil, apperrors.NewValidationError("description", "type the description or tap Skip")
		}
		var b strings.Builder
		fmt.Fprintf(&b, "Ready to save:\n\n%s\nDate: %s\nGuides: %d\nMax participants: %d\nCoordinates: %.5f, %.5f\nDifficulty: %s",
			d.Name, d.Date, d.Guides, d.MaxPeople, d.Latitude, d.Longitude, d.Difficulty)
		if d.Description != "" {
			b.WriteString("\n\n" + d.Description)
		}
		st := goTo(StateHikeConfirm)
		return st.reply(s, b.String(),
			messaging.Row(
				messaging.Btn("💾 Save", s.Action("hsave")),
				messaging.Btn("❌ Discard", s.Action("habort")),
			)), nil
	}
	return e.lostConversation(ctx, s, ev), nil
}

func (e *Engine) handleHikeConfirm(ctx context.Context, s *Session, ev messaging.Event, action string) (*step, error) {
	switch action {
	case "habort":
		s.HikeDraft = nil
		st := e.adminMenuStep(s, ev.MessageID)
		return st, nil
	case "hsave":
	default:
		return e.lostConversation(ctx, s, ev), nil
	}

	draft, err := s.HikeDraft.Draft()
	if err != nil {
		return nil, apperrors.NewValidationError("date", "the stored date is invalid, start over")
	}

	var text string
	if id := s.HikeDraft.EditingID; id != 0 {
		if err := e.hikes.Update(ctx, s.ActorID, id, draft); err != nil {
			return nil, err
		}
		text = "Hike updated."
	} else {
		h, err := e.hikes.Create(ctx, s.ActorID, draft)
		if err != nil {
			return nil, err
		}
		text = fmt.Sprintf("Hike \"%s\" created for %s.", h.Name, h.Date.Format(dateLayout))
	}
	s.HikeDraft = nil

	st := e.adminMenuStep(s, 0)
	st.msgs = append([]messaging.Outbound{{ChatID: s.ChatID, Text: text, EditMessageID: ev.MessageID}}, st.msgs...)
	return st, nil
}

func intAnswer(ev messaging.Event, min, max int, field string) (int, error) {
	if ev.Kind != messaging.KindText {
		return 0, apperrors.NewValidationError(field, "type a number")
	}
	n, err := strconv.Atoi(strings.TrimSpace(ev.Text))
	if err != nil || n < min || n > max {
		return 0, apperrors.NewValidationError(field, fmt.Sprintf("enter a number between %d and %d", min, max))
	}
	return n, nil
}

func parseCoordinates(ev messaging.Event) (lat, lon float64, err error) {
	if ev.Kind != messaging.KindText {
		return 0, 0, apperrors.NewValidationError("coordinates", "type the coordinates as latitude, longitude")
	}
	parts := strings.Split(ev.Text, ",")
	if len(parts) != 2 {
		return 0, 0, apperrors.NewValidationError("coordinates", "use the form 41.89193, 12.51133")
	}
	lat, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lon, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return 0, 0, apperrors.NewValidationError("coordinates", "those don't look like valid coordinates, try again")
	}
	return lat, lon, nil
}
