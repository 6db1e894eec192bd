package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "hiky-bot-backend/internal/common/errors"
	usermodels "hiky-bot-backend/internal/features/user/models"
	"hiky-bot-backend/internal/messaging"
)

func (e *Engine) profileMenuStep(ctx context.Context, s *Session, editMessageID int) (*step, error) {
	u, err := e.users.Profile(ctx, s.ActorID)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString("Your profile:\n")
	fmt.Fprintf(&b, "\nName: %s", u.Name)
	fmt.Fprintf(&b, "\nSurname: %s", u.Surname)
	fmt.Fprintf(&b, "\nEmail: %s", u.Email)
	fmt.Fprintf(&b, "\nPhone: %s", u.Phone)
	fmt.Fprintf(&b, "\nBirth date: %s", u.BirthDate)
	b.WriteString("\n\nTap a field to change it.")

	rows := [][]messaging.Button{
		messaging.Row(
			messaging.Btn("Name", s.Action("pf", "name")),
			messaging.Btn("Surname", s.Action("pf", "surname")),
		),
		messaging.Row(
			messaging.Btn("Email", s.Action("pf", "email")),
			messaging.Btn("Phone", s.Action("pf", "phone")),
		),
		messaging.Row(messaging.Btn("Birth date", s.Action("pf", "birth"))),
		messaging.Row(messaging.Btn("« Back", s.Action("menu"))),
	}

	st := goTo(StateProfileMenu)
	if editMessageID != 0 {
		return st.edit(s, editMessageID, b.String(), rows...), nil
	}
	return st.reply(s, b.String(), rows...), nil
}

func (e *Engine) handleProfileMenu(ctx context.Context, s *Session, ev messaging.Event, action string) (*step, error) {
	verb, arg := splitAction(action)
	if verb == "menu" {
		return e.menuStep(ctx, s, ev.MessageID)
	}
	if verb != "pf" {
		return e.lostConversation(ctx, s, ev), nil
	}

	var next State
	var prompt string
	switch arg {
	case "name":
		next, prompt = StateProfileName, "What's your first name?"
	case "surname":
		next, prompt = StateProfileSurname, "What's your surname?"
	case "email":
		next, prompt = StateProfileEmail, "What's your email address?"
	case "phone":
		next, prompt = StateProfilePhone, "What's your phone number?"
	case "birth":
		next, prompt = StateProfileBirthDate, "What's your birth date? (dd/mm/yyyy)"
	default:
		return e.lostConversation(ctx, s, ev), nil
	}
	st := goTo(next)
	return st.reply(s, prompt), nil
}

// handleProfileField serves all five single-field edit states; the session's
// state says which field the text answers.
func (e *Engine) handleProfileField(ctx context.Context, s *Session, ev messaging.Event, _ string) (*step, error) {
	if ev.Kind != messaging.KindText {
		return nil, apperrors.NewValidationError("input", "type the new value as a text message")
	}

	var update usermodels.ProfileUpdate
	var err error
	var v string
	switch s.State {
	case StateProfileName:
		v, err = validateName(ev.Text)
		update.Name = &v
	case StateProfileSurname:
		v, err = validateName(ev.Text)
		update.Surname = &v
	case StateProfileEmail:
		v, err = validateEmail(ev.Text)
		update.Email = &v
	case StateProfilePhone:
		v, err = validatePhone(ev.Text)
		update.Phone = &v
	case StateProfileBirthDate:
		v, err = validateBirthDate(ev.Text, time.Now())
		update.BirthDate = &v
	default:
		return e.lostConversation(ctx, s, ev), nil
	}
	if err != nil {
		return nil, err
	}

	if err := e.users.UpdateProfile(ctx, s.ActorID, update); err != nil {
		return nil, err
	}
	return e.profileMenuStep(ctx, s, 0)
}
