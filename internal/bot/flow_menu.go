package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	usermodels "hiky-bot-backend/internal/features/user/models"
	"hiky-bot-backend/internal/messaging"
)

// openMenu starts (or restarts) the main menu conversation. The community
// gate applies here: non-members get the invite link instead of the menu.
func (e *Engine) openMenu(ctx context.Context, s *Session, ev messaging.Event) (*step, error) {
	if !e.membershipOK(ctx, ev.ActorID) {
		st := done()
		var rows [][]messaging.Button
		if e.cfg.InviteLink != "" {
			rows = append(rows, messaging.Row(messaging.LinkBtn("Join the group", e.cfg.InviteLink)))
		}
		return st.reply(s, msgNotMember, rows...), nil
	}
	return e.menuStep(ctx, s, 0)
}

// menuStep renders the menu. With a message id it edits in place, which is
// how "back" buttons return here without flooding the chat.
func (e *Engine) menuStep(ctx context.Context, s *Session, editMessageID int) (*step, error) {
	admin, err := e.users.IsAdmin(ctx, s.ActorID)
	if err != nil {
		return nil, err
	}

	rows := [][]messaging.Button{
		messaging.Row(messaging.Btn("🥾 Sign up for a hike", s.Action("signup"))),
		messaging.Row(
			messaging.Btn("📋 My hikes", s.Action("myhikes")),
			messaging.Btn("🗓 Calendar", s.Action("cal")),
		),
		messaging.Row(messaging.Btn("👤 My profile", s.Action("profile"))),
		messaging.Row(
			messaging.Btn("🔗 Useful links", s.Action("links")),
			messaging.Btn("⭐ Donate", s.Action("donate")),
		),
		messaging.Row(messaging.Btn("🔒 Privacy", s.Action("privacy"))),
	}
	if admin {
		rows = append(rows, messaging.Row(messaging.Btn("🛠 Admin", s.Action("admin"))))
	}

	st := goTo(StateChoosing)
	if editMessageID != 0 {
		return st.edit(s, editMessageID, msgMenu, rows...), nil
	}
	return st.reply(s, msgMenu, rows...), nil
}

func (e *Engine) handleMenu(ctx context.Context, s *Session, ev messaging.Event, action string) (*step, error) {
	if ev.Kind != messaging.KindCallback {
		st := stay(StateChoosing)
		return st.reply(s, "Pick an option from the menu above, or use /help."), nil
	}

	verb, arg := splitAction(action)
	switch verb {
	case "menu":
		return e.menuStep(ctx, s, ev.MessageID)
	case "signup":
		return e.startSignup(ctx, s, ev)
	case "myhikes":
		return e.myHikesStep(ctx, s, ev.MessageID)
	case "cal":
		return e.calendarStep(ctx, s, ev.MessageID)
	case "reg":
		if _, err := strconv.ParseInt(arg, 10, 64); err != nil {
			return e.lostConversation(ctx, s, ev), nil
		}
		st := stay(StateChoosing)
		return st.edit(s, ev.MessageID, "Cancel this registration? Your seat will be freed for someone else.",
			messaging.Row(
				messaging.Btn("Yes, cancel it", s.Action("regyes", arg)),
				messaging.Btn("Keep it", s.Action("myhikes")),
			)), nil
	case "regyes":
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return e.lostConversation(ctx, s, ev), nil
		}
		if err := e.hikes.Cancel(ctx, s.ActorID, id); err != nil {
			return nil, err
		}
		st := stay(StateChoosing)
		st.edit(s, ev.MessageID, "Registration cancelled. See you on another trail!")
		menu, err := e.menuStep(ctx, s, 0)
		if err != nil {
			return nil, err
		}
		st.msgs = append(st.msgs, menu.msgs...)
		return st, nil
	case "profile":
		return e.profileMenuStep(ctx, s, ev.MessageID)
	case "links":
		st := stay(StateChoosing)
		return st.edit(s, ev.MessageID, e.linksText(),
			messaging.Row(messaging.Btn("« Back", s.Action("menu")))), nil
	case "donate":
		return e.openDonation(s), nil
	case "privacy":
		return e.openPrivacy(ctx, s, ev)
	case "admin":
		return e.openAdminMenu(ctx, s, ev)
	default:
		return e.lostConversation(ctx, s, ev), nil
	}
}

func (e *Engine) myHikesStep(ctx context.Context, s *Session, editMessageID int) (*step, error) {
	regs, err := e.hikes.MyRegistrations(ctx, s.ActorID)
	if err != nil {
		return nil, err
	}

	st := stay(StateChoosing)
	if len(regs) == 0 {
		return st.edit(s, editMessageID, "You have no upcoming hikes. Time to sign up!",
			messaging.Row(messaging.Btn("« Back", s.Action("menu")))), nil
	}

	var b strings.Builder
	b.WriteString("Your upcoming hikes:\n")
	rows := make([][]messaging.Button, 0, len(regs)+1)
	for _, r := range regs {
		fmt.Fprintf(&b, "\n• %s — %s", r.HikeName, r.HikeDate.Format("02/01/2006"))
		rows = append(rows, messaging.Row(
			messaging.Btn("❌ "+r.HikeName, s.Action("reg", strconv.FormatInt(r.ID, 10))),
		))
	}
	b.WriteString("\n\nTap a hike to cancel that registration.")
	rows = append(rows, messaging.Row(messaging.Btn("« Back", s.Action("menu"))))
	return st.edit(s, editMessageID, b.String(), rows...), nil
}

// calendarStep lists every upcoming hike with its date and occupancy, a
// read-only view open to everyone in the group.
func (e *Engine) calendarStep(ctx context.Context, s *Session, editMessageID int) (*step, error) {
	hikes, err := e.hikes.Upcoming(ctx)
	if err != nil {
		return nil, err
	}

	st := stay(StateChoosing)
	back := messaging.Row(messaging.Btn("« Back", s.Action("menu")))
	if len(hikes) == 0 {
		return st.edit(s, editMessageID, "No hikes on the calendar yet. Check back soon!", back), nil
	}

	var b strings.Builder
	b.WriteString("Upcoming hikes:\n")
	for _, h := range hikes {
		fmt.Fprintf(&b, "\n• %s — %s (%s, %d/%d)",
			h.Date.Format("02/01/2006"), h.Name, h.Difficulty, h.CurrentParticipants, h.MaxParticipants)
		if !h.Active {
			b.WriteString(" — cancelled")
		}
	}
	return st.edit(s, editMessageID, b.String(), back), nil
}

func (e *Engine) linksText() string {
	var b strings.Builder
	b.WriteString("Useful links:\n")
	if e.cfg.InviteLink != "" {
		b.WriteString("\n• Group chat: " + e.cfg.InviteLink)
	}
	b.WriteString("\n• Report a problem: /bug")
	b.WriteString("\n• Support the project: /donate")
	return b.String()
}

// donationAmounts are in Telegram Stars.
var donationAmounts = []int64{100, 250, 500}

func (e *Engine) openDonation(s *Session) *step {
	if e.invoicer == nil {
		st := stay(stateOf(s))
		return st.reply(s, "Donations are not available right now, but thank you for the thought!")
	}
	rows := make([][]messaging.Button, 0, len(donationAmounts)+1)
	for _, amt := range donationAmounts {
		rows = append(rows, messaging.Row(
			messaging.Btn(fmt.Sprintf("⭐ %d", amt), s.Action("don", strconv.FormatInt(amt, 10))),
		))
	}
	rows = append(rows, messaging.Row(messaging.Btn("« Back", s.Action("menu"))))
	st := goTo(StateDonation)
	return st.reply(s, "Every star keeps the boots walking. How much would you like to give?", rows...)
}

func (e *Engine) handleDonation(ctx context.Context, s *Session, ev messaging.Event, action string) (*step, error) {
	verb, arg := splitAction(action)
	switch verb {
	case "menu":
		return e.menuStep(ctx, s, ev.MessageID)
	case "don":
		amt, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || amt <= 0 {
			return e.lostConversation(ctx, s, ev), nil
		}
		if err := e.invoicer.SendInvoice(ctx, s.ChatID, "Support the hikes", "A voluntary donation to keep the project going.", amt); err != nil {
			return nil, err
		}
		st := stay(StateDonation)
		return st, nil
	default:
		return e.lostConversation(ctx, s, ev), nil
	}
}

func (e *Engine) openPrivacy(ctx context.Context, s *Session, _ messaging.Event) (*step, error) {
	u, err := e.users.Profile(ctx, s.ActorID)
	if err != nil {
		return nil, err
	}
	st := goTo(StatePrivacy)
	return st.reply(s, privacyText(u.Consents), privacyKeyboard(s, u.Consents)...), nil
}

func privacyText(c usermodels.Consents) string {
	var b strings.Builder
	b.WriteString("Your privacy choices:\n\n")
	fmt.Fprintf(&b, "%s Basic data processing (required for signups)\n", checkmark(c.Basic))
	fmt.Fprintf(&b, "%s Sharing contact with car-share drivers\n", checkmark(c.CarSharing))
	fmt.Fprintf(&b, "%s Appearing in group photos\n", checkmark(c.Photo))
	fmt.Fprintf(&b, "%s Occasional news and announcements\n", checkmark(c.Marketing))
	if c.Version != "" {
		fmt.Fprintf(&b, "\nPolicy version accepted: %s", c.Version)
	}
	b.WriteString("\nTap a line to toggle it.")
	return b.String()
}

func privacyKeyboard(s *Session, c usermodels.Consents) [][]messaging.Button {
	return [][]messaging.Button{
		messaging.Row(messaging.Btn(checkmark(c.Basic)+" Basic", s.Action("pv", "basic"))),
		messaging.Row(messaging.Btn(checkmark(c.CarSharing)+" Car sharing", s.Action("pv", "car"))),
		messaging.Row(messaging.Btn(checkmark(c.Photo)+" Photos", s.Action("pv", "photo"))),
		messaging.Row(messaging.Btn(checkmark(c.Marketing)+" News", s.Action("pv", "news"))),
		messaging.Row(messaging.Btn("« Back", s.Action("menu"))),
	}
}

func (e *Engine) handlePrivacy(ctx context.Context, s *Session, ev messaging.Event, action string) (*step, error) {
	verb, arg := splitAction(action)
	if verb == "menu" {
		return e.menuStep(ctx, s, ev.MessageID)
	}
	if verb != "pv" {
		return e.lostConversation(ctx, s, ev), nil
	}

	u, err := e.users.Profile(ctx, s.ActorID)
	if err != nil {
		return nil, err
	}
	c := u.Consents
	switch arg {
	case "basic":
		c.Basic = !c.Basic
	case "car":
		c.CarSharing = !c.CarSharing
	case "photo":
		c.Photo = !c.Photo
	case "news":
		c.Marketing = !c.Marketing
	default:
		return e.lostConversation(ctx, s, ev), nil
	}
	if err := e.users.SaveConsents(ctx, s.ActorID, c); err != nil {
		return nil, err
	}
	c.Version = usermodels.ConsentVersion

	st := stay(StatePrivacy)
	return st.edit(s, ev.MessageID, privacyText(c), privacyKeyboard(s, c)...), nil
}

func checkmark(on bool) string {
	if on {
		return "✅"
	}
	return "⬜"
}

// splitAction separates the verb from its argument in callback data.
func splitAction(action string) (verb, arg string) {
	if i := strings.IndexByte(action, ':'); i >= 0 {
		return action[:i], action[i+1:]
	}
	return action, ""
}
