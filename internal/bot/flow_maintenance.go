package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	apperrors "hiky-bot-backend/internal/common/errors"
	maintmodels "hiky-bot-backend/internal/features/maintenance/models"
	"hiky-bot-backend/internal/messaging"
)

func (e *Engine) maintMenuStep(ctx context.Context, s *Session, editMessageID int) (*step, error) {
	windows, err := e.maint.Upcoming(ctx)
	if err != nil {
		return nil, err
	}

	text := "Scheduled maintenance:"
	rows := make([][]messaging.Button, 0, len(windows)+2)
	if len(windows) == 0 {
		text = "No maintenance scheduled."
	}
	for _, w := range windows {
		label := fmt.Sprintf("%s %s–%s", w.Date.Format(dateLayout), w.Start, w.End)
		rows = append(rows, messaging.Row(messaging.Btn(label, s.Action("mw", strconv.FormatInt(w.ID, 10)))))
	}
	rows = append(rows,
		messaging.Row(messaging.Btn("➕ Schedule maintenance", s.Action("mnew"))),
		messaging.Row(messaging.Btn("« Back", s.Action("admin"))),
	)

	st := goTo(StateMaintMenu)
	if editMessageID != 0 {
		return st.edit(s, editMessageID, text, rows...), nil
	}
	return st.reply(s, text, rows...), nil
}

func (e *Engine) handleMaintMenu(ctx context.Context, s *Session, ev messaging.Event, action string) (*step, error) {
	verb, arg := splitAction(action)
	switch verb {
	case "admin":
		return e.adminMenuStep(s, ev.MessageID), nil
	case "maint":
		return e.maintMenuStep(ctx, s, ev.MessageID)
	case "mnew":
		s.Maintenance = &MaintenanceDraft{}
		st := goTo(StateMaintDate)
		return st.reply(s, "What date is the maintenance? (dd/mm/yyyy)"), nil
	case "mw":
		return e.maintDetailStep(ctx, s, ev, arg)
	case "me":
		return e.maintEditField(s, arg)
	case "mclr":
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return e.lostConversation(ctx, s, ev), nil
		}
		if err := e.maint.Edit(ctx, s.ActorID, id, maintmodels.Update{ClearReason: true}); err != nil {
			return nil, err
		}
		return e.maintDetailStep(ctx, s, ev, arg)
	case "mdel":
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return e.lostConversation(ctx, s, ev), nil
		}
		if err := e.maint.Remove(ctx, s.ActorID, id); err != nil {
			return nil, err
		}
		return e.maintMenuStep(ctx, s, ev.MessageID)
	default:
		return e.lostConversation(ctx, s, ev), nil
	}
}

func (e *Engine) maintDetailStep(ctx context.Context, s *Session, ev messaging.Event, arg string) (*step, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return e.lostConversation(ctx, s, ev), nil
	}
	w, err := e.maint.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Maintenance on %s, %s–%s", w.Date.Format(dateLayout), w.Start, w.End)
	if w.Reason != "" {
		b.WriteString("\nReason: " + w.Reason)
	}
	fmt.Fprintf(&b, "\nNotices: %s", w.Stage)

	st := stay(StateMaintMenu)
	return st.edit(s, ev.MessageID, b.String(),
		messaging.Row(
			messaging.Btn("Date", s.Action("me", "date:"+arg)),
			messaging.Btn("Start", s.Action("me", "start:"+arg)),
			messaging.Btn("End", s.Action("me", "end:"+arg)),
		),
		messaging.Row(
			messaging.Btn("Reason", s.Action("me", "reason:"+arg)),
			messaging.Btn("Clear reason", s.Action("mclr", arg)),
		),
		messaging.Row(
			messaging.Btn("🗑 Delete", s.Action("mdel", arg)),
			messaging.Btn("« Back", s.Action("maint")),
		)), nil
}

// maintEditField starts a single-field edit. The draft remembers which
// window and which field; the answer applies immediately.
func (e *Engine) maintEditField(s *Session, arg string) (*step, error) {
	field, idStr := splitAction(arg)
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return nil, apperrors.NewValidationError("window", "pick a window from the list")
	}
	s.Maintenance = &MaintenanceDraft{EditingID: id, Field: field}

	var next State
	var prompt string
	switch field {
	case "date":
		next, prompt = StateMaintDate, "New date? (dd/mm/yyyy)"
	case "start":
		next, prompt = StateMaintStart, "New start time? (HH:MM)"
	case "end":
		next, prompt = StateMaintEnd, "New end time? (HH:MM)"
	case "reason":
		next, prompt = StateMaintReason, "New reason?"
	default:
		return nil, apperrors.NewValidationError("field", "unknown field")
	}
	st := goTo(next)
	return st.reply(s, prompt), nil
}

// handleMaintField serves the four maintenance answer states, for both the
// creation sequence and single-field edits. Rescheduling resets the notice
// progress inside the repository, so edited windows get announced again.
func (e *Engine) handleMaintField(ctx context.Context, s *Session, ev messaging.Event, action string) (*step, error) {
	d := s.Maintenance
	if d == nil {
		return e.lostConversation(ctx, s, ev), nil
	}

	switch s.State {
	case StateMaintDate:
		if ev.Kind != messaging.KindText {
			return nil, apperrors.NewValidationError("date", "type the date as dd/mm/yyyy")
		}
		t, err := validateFutureDate(ev.Text, timeNow())
		if err != nil {
			return nil, err
		}
		if d.EditingID != 0 {
			return e.applyMaintEdit(ctx, s, maintmodels.Update{Date: &t})
		}
		d.Date = t.Format(dateLayout)
		st := goTo(StateMaintStart)
		return st.reply(s, "Start time? (HH:MM)"), nil

	case StateMaintStart:
		v, err := textAnswer(ev, validateClock)
		if err != nil {
			return nil, err
		}
		if d.EditingID != 0 {
			return e.applyMaintEdit(ctx, s, maintmodels.Update{Start: &v})
		}
		d.Start = v
		st := goTo(StateMaintEnd)
		return st.reply(s, "End time? (HH:MM)"), nil

	case StateMaintEnd:
		v, err := textAnswer(ev, validateClock)
		if err != nil {
			return nil, err
		}
		if d.EditingID != 0 {
			return e.applyMaintEdit(ctx, s, maintmodels.Update{End: &v})
		}
		d.End = v
		st := goTo(StateMaintReason)
		return st.reply(s, "Why? (shown in the notice)",
			messaging.Row(messaging.Btn("Skip", s.Action("mreason", "skip")))), nil

	case StateMaintReason:
		var reason string
		switch {
		case action == "mreason:skip":
			reason = ""
		case ev.Kind == messaging.KindText:
			reason = strings.TrimSpace(ev.Text)
		default:
			return nil, apperrors.NewValidationError("reason", "type the reason or tap Skip")
		}
		if d.EditingID != 0 {
			return e.applyMaintEdit(ctx, s, maintmodels.Update{Reason: &reason})
		}
		d.Reason = reason
		w, err := d.Window()
		if err != nil {
			return nil, apperrors.NewValidationError("date", "the stored date is invalid, start over")
		}
		created, err := e.maint.Schedule(ctx, s.ActorID, w)
		if err != nil {
			return nil, err
		}
		s.Maintenance = nil
		st, err := e.maintMenuStep(ctx, s, 0)
		if err != nil {
			return nil, err
		}
		st.msgs = append([]messaging.Outbound{{
			ChatID: s.ChatID,
			Text:   fmt.Sprintf("Maintenance scheduled for %s, %s–%s. Users will be notified.", created.Date.Format(dateLayout), created.Start, created.End),
		}}, st.msgs...)
		return st, nil
	}
	return e.lostConversation(ctx, s, ev), nil
}

func (e *Engine) applyMaintEdit(ctx context.Context, s *Session, update maintmodels.Update) (*step, error) {
	id := s.Maintenance.EditingID
	if err := e.maint.Edit(ctx, s.ActorID, id, update); err != nil {
		return nil, err
	}
	s.Maintenance = nil
	return e.maintMenuStep(ctx, s, 0)
}
