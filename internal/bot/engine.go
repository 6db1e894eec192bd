// Package bot implements the conversation engine: a per-actor state machine
// driven by inbound messaging events. Each actor has at most one active
// session; events for the same actor are processed strictly in order, and the
// session is persisted before any reply leaves the process.
package bot

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	apperrors "hiky-bot-backend/internal/common/errors"
	"hiky-bot-backend/internal/common/logger"
	hikeservice "hiky-bot-backend/internal/features/hike/service"
	maintservice "hiky-bot-backend/internal/features/maintenance/service"
	queryservice "hiky-bot-backend/internal/features/query/service"
	userservice "hiky-bot-backend/internal/features/user/service"
	"hiky-bot-backend/internal/messaging"
	"hiky-bot-backend/internal/ratelimit"
)

// Membership answers whether an actor currently belongs to the community
// group. Nil disables gating.
type Membership interface {
	IsChatMember(ctx context.Context, chatID, userID int64) (bool, error)
}

// Invoicer issues payment invoices on the transport. Nil disables donations.
type Invoicer interface {
	SendInvoice(ctx context.Context, chatID int64, title, description string, amount int64) error
}

// Config carries the engine's deployment knobs.
type Config struct {
	// GroupID of the community chat; zero disables the membership gate.
	GroupID int64
	// InviteLink offered to non-members.
	InviteLink string
}

type handlerFunc func(ctx context.Context, s *Session, ev messaging.Event, action string) (*step, error)

// step is a handler's verdict: the state to persist (or end), plus the
// replies to deliver after persistence.
type step struct {
	next State
	end  bool
	msgs []messaging.Outbound
}

func (st *step) reply(s *Session, text string, rows ...[]messaging.Button) *step {
	st.msgs = append(st.msgs, messaging.Outbound{ChatID: s.ChatID, Text: text, Buttons: rows})
	return st
}

func (st *step) edit(s *Session, messageID int, text string, rows ...[]messaging.Button) *step {
	st.msgs = append(st.msgs, messaging.Outbound{ChatID: s.ChatID, Text: text, Buttons: rows, EditMessageID: messageID})
	return st
}

func stay(current State) *step { return &step{next: current} }
func goTo(next State) *step    { return &step{next: next} }
func done() *step              { return &step{end: true} }

// Engine routes events for every actor through the dispatch table.
type Engine struct {
	store      SessionStore
	gateway    messaging.Gateway
	users      *userservice.Service
	hikes      *hikeservice.Service
	maint      *maintservice.Service
	queries    *queryservice.Service
	limiter    *ratelimit.Limiter
	membership Membership
	invoicer   Invoicer
	cfg        Config
	log        zerolog.Logger

	handlers map[State]handlerFunc
	locks    sync.Map // actorID -> *sync.Mutex
}

func NewEngine(
	store SessionStore,
	gateway messaging.Gateway,
	users *userservice.Service,
	hikes *hikeservice.Service,
	maint *maintservice.Service,
	queries *queryservice.Service,
	limiter *ratelimit.Limiter,
	membership Membership,
	invoicer Invoicer,
	cfg Config,
) *Engine {
	e := &Engine{
		store:      store,
		gateway:    gateway,
		users:      users,
		hikes:      hikes,
		maint:      maint,
		queries:    queries,
		limiter:    limiter,
		membership: membership,
		invoicer:   invoicer,
		cfg:        cfg,
		log:        logger.With("engine"),
	}
	e.handlers = map[State]handlerFunc{
		StateChoosing:       e.handleMenu,
		StateDonation:       e.handleDonation,
		StateRestartConfirm: e.handleRestartConfirm,
		StatePrivacy:        e.handlePrivacy,
		StateBugReport:      e.handleBugReport,

		StateProfileMenu:      e.handleProfileMenu,
		StateProfileName:      e.handleProfileField,
		StateProfileSurname:   e.handleProfileField,
		StateProfileEmail:     e.handleProfileField,
		StateProfilePhone:     e.handleProfileField,
		StateProfileBirthDate: e.handleProfileField,

		StateSignupName:      e.handleSignupName,
		StateSignupSurname:   e.handleSignupSurname,
		StateSignupEmail:     e.handleSignupEmail,
		StateSignupPhone:     e.handleSignupPhone,
		StateSignupBirthDec:  e.handleSignupBirth,
		StateSignupBirthYear: e.handleSignupBirth,
		StateSignupBirthMon:  e.handleSignupBirth,
		StateSignupBirthDay:  e.handleSignupBirth,
		StateSignupMedical:   e.handleSignupMedical,
		StateSignupHikes:     e.handleSignupHikes,
		StateSignupEquipment: e.handleSignupEquipment,
		StateSignupCarShare:  e.handleSignupCarShare,
		StateSignupLocation:  e.handleSignupLocation,
		StateSignupReminder:  e.handleSignupReminder,
		StateSignupNotes:     e.handleSignupNotes,
		StateSignupConsent:   e.handleSignupConsent,

		StateAdminMenu:       e.handleAdminMenu,
		StateAdminAddAdmin:   e.handleAddAdmin,
		StateHikeName:        e.handleHikeDraft,
		StateHikeDate:        e.handleHikeDraft,
		StateHikeGuides:      e.handleHikeDraft,
		StateHikeMaxPeople:   e.handleHikeDraft,
		StateHikeCoordinates: e.handleHikeDraft,
		StateHikeDifficulty:  e.handleHikeDraft,
		StateHikeDescription: e.handleHikeDraft,
		StateHikeConfirm:     e.handleHikeConfirm,

		StateMaintMenu:   e.handleMaintMenu,
		StateMaintDate:   e.handleMaintField,
		StateMaintStart:  e.handleMaintField,
		StateMaintEnd:    e.handleMaintField,
		StateMaintReason: e.handleMaintField,

		StateQueryMenu: e.handleQueryMenu,
		StateQueryExec: e.handleQueryExec,
		StateQuerySave: e.handleQuerySave,
	}
	return e
}

// HandleEvent is the poller's entry point. It serializes per actor, applies
// the rate limit, routes universal commands, and dispatches everything else
// to the handler for the session's current state.
func (e *Engine) HandleEvent(ctx context.Context, ev messaging.Event) {
	mu := e.actorLock(ev.ActorID)
	mu.Lock()
	defer mu.Unlock()

	if !e.limiter.Allow(ev.ActorID) {
		e.log.Warn().Int64("actor_id", ev.ActorID).Msg("rate limit exceeded, event dropped")
		if ev.Kind == messaging.KindCallback {
			_ = e.gateway.AckCallback(ctx, ev.CallbackID)
		}
		return
	}

	if err := e.users.RegisterContact(ctx, ev.ActorID, ev.Username); err != nil {
		e.log.Error().Err(err).Int64("actor_id", ev.ActorID).Msg("contact registration failed")
	}

	s, err := e.store.Get(ctx, ev.ActorID)
	if err != nil {
		e.log.Error().Err(err).Int64("actor_id", ev.ActorID).Msg("session load failed")
		e.send(ctx, messaging.Outbound{ChatID: ev.ChatID, Text: msgInternalError})
		return
	}

	st, s, stErr := e.route(ctx, s, ev)
	if st == nil {
		st = e.recoverStep(s, ev, stErr)
	}

	e.commit(ctx, s, ev, st)
}

// route picks and runs the handler. It returns the session to commit, which
// may be freshly minted for conversation-starting commands. A nil step with
// a non-nil error means the engine-level recovery decides the outcome.
func (e *Engine) route(ctx context.Context, s *Session, ev messaging.Event) (*step, *Session, error) {
	switch ev.Kind {
	case messaging.KindPayment:
		st, err := e.handlePayment(ctx, s, ev)
		return st, s, err

	case messaging.KindCommand:
		return e.routeCommand(ctx, s, ev)

	case messaging.KindCallback:
		if err := e.gateway.AckCallback(ctx, ev.CallbackID); err != nil {
			if apperrors.HasCode(err, apperrors.ErrCodeStaleCallback) {
				return e.lostConversation(ctx, s, ev), s, nil
			}
			e.log.Warn().Err(err).Int64("actor_id", ev.ActorID).Msg("callback ack failed")
		}
		if s == nil {
			return e.lostConversation(ctx, s, ev), s, nil
		}
		token, action, ok := ParseAction(ev.Data)
		if !ok || !s.Matches(token) {
			return e.lostConversation(ctx, s, ev), s, nil
		}
		h := e.handlers[s.State]
		if h == nil {
			return e.lostConversation(ctx, s, ev), s, nil
		}
		st, err := h(ctx, s, ev, action)
		return st, s, err

	case messaging.KindText:
		if s == nil {
			return (&step{end: true}).reply(orNew(s, ev), msgNoConversation), s, nil
		}
		h := e.handlers[s.State]
		if h == nil {
			return e.lostConversation(ctx, s, ev), s, nil
		}
		st, err := h(ctx, s, ev, "")
		return st, s, err
	}
	return stay(stateOf(s)), s, nil
}

func (e *Engine) routeCommand(ctx context.Context, s *Session, ev messaging.Event) (*step, *Session, error) {
	switch ev.Command {
	case "start", "menu":
		s = freshSession(s, ev)
		st, err := e.openMenu(ctx, s, ev)
		return st, s, err
	case "restart":
		if s != nil && inForm(s.State) {
			s.ReturnState = s.State
			st := goTo(StateRestartConfirm)
			return st.reply(s, msgRestartConfirm,
				messaging.Row(
					messaging.Btn("Yes, start over", s.Action("restart", "yes")),
					messaging.Btn("No, keep going", s.Action("restart", "no")),
				)), s, nil
		}
		s = freshSession(s, ev)
		st, err := e.openMenu(ctx, s, ev)
		return st, s, err
	case "cancel":
		st := done()
		return st.reply(orNew(s, ev), msgCancelled), s, nil
	case "admin":
		s = freshSession(s, ev)
		st, err := e.openAdminMenu(ctx, s, ev)
		return st, s, err
	case "privacy":
		s = freshSession(s, ev)
		st, err := e.openPrivacy(ctx, s, ev)
		return st, s, err
	case "bug":
		s = freshSession(s, ev)
		st := goTo(StateBugReport)
		return st.reply(s, msgBugPrompt), s, nil
	case "donate":
		s = freshSession(s, ev)
		return e.openDonation(s), s, nil
	case "help":
		st := stay(stateOf(s))
		if s == nil {
			st = done()
		}
		return st.reply(orNew(s, ev), msgHelp), s, nil
	default:
		st := stay(stateOf(s))
		if s == nil {
			st = done()
		}
		return st.reply(orNew(s, ev), msgUnknownCommand), s, nil
	}
}

// freshSession starts a new conversation, reusing the pointer when one
// already exists so the caller's reference stays valid.
func freshSession(s *Session, ev messaging.Event) *Session {
	fresh := NewSession(ev.ActorID, ev.ChatID)
	if s == nil {
		return fresh
	}
	*s = *fresh
	return s
}

// recoverStep turns a handler error into the user-visible outcome. The
// conversation stays in its current state for anything recoverable.
func (e *Engine) recoverStep(s *Session, ev messaging.Event, err error) *step {
	st := stay(stateOf(s))
	if s == nil {
		st = done()
	}
	target := orNew(s, ev)

	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		e.log.Error().Err(err).Int64("actor_id", ev.ActorID).Msg("handler failed")
		return st.reply(target, msgInternalError)
	}
	switch {
	case appErr.Code == apperrors.ErrCodeValidation:
		return st.reply(target, appErr.Message)
	case appErr.IsBusinessRejection():
		return st.reply(target, rejectionText(appErr))
	default:
		e.log.Error().Err(appErr).Int64("actor_id", ev.ActorID).Str("state", string(stateOf(s))).Msg("handler failed")
		return st.reply(target, msgInternalError)
	}
}

// commit persists the session transition, then delivers the replies. Order
// matters: a crash between the two loses at most the replies, never the
// state.
func (e *Engine) commit(ctx context.Context, s *Session, ev messaging.Event, st *step) {
	if st.end || s == nil {
		if err := e.store.Delete(ctx, ev.ActorID); err != nil {
			e.log.Error().Err(err).Int64("actor_id", ev.ActorID).Msg("session delete failed")
		}
	} else {
		s.State = st.next
		s.UpdatedAt = time.Now()
		if err := e.store.Put(ctx, s); err != nil {
			e.log.Error().Err(err).Int64("actor_id", ev.ActorID).Msg("session save failed")
			e.send(ctx, messaging.Outbound{ChatID: ev.ChatID, Text: msgInternalError})
			return
		}
	}
	for _, m := range st.msgs {
		e.send(ctx, m)
	}
}

func (e *Engine) send(ctx context.Context, msg messaging.Outbound) {
	if err := e.gateway.Send(ctx, msg); err != nil {
		e.log.Error().Err(err).Int64("chat_id", msg.ChatID).Msg("delivery failed")
	}
}

// lostConversation is the single recovery path for stale callbacks, expired
// sessions and unroutable events: drop whatever was in flight and point the
// actor at the menu.
func (e *Engine) lostConversation(_ context.Context, s *Session, ev messaging.Event) *step {
	e.log.Info().Int64("actor_id", ev.ActorID).Str("state", string(stateOf(s))).Msg("conversation lost, resetting")
	st := done()
	return st.reply(orNew(s, ev), msgLostConversation)
}

func (e *Engine) handleRestartConfirm(ctx context.Context, s *Session, ev messaging.Event, action string) (*step, error) {
	switch action {
	case "restart:yes":
		fresh := NewSession(ev.ActorID, ev.ChatID)
		*s = *fresh
		return e.menuStep(ctx, s, 0)
	case "restart:no":
		prev := s.ReturnState
		s.ReturnState = ""
		st := goTo(prev)
		return st.reply(s, msgRestartAborted), nil
	default:
		return e.lostConversation(ctx, s, ev), nil
	}
}

func (e *Engine) handlePayment(_ context.Context, s *Session, ev messaging.Event) (*step, error) {
	e.log.Info().Int64("actor_id", ev.ActorID).Int64("amount", ev.Amount).Msg("donation received")
	st := stay(stateOf(s))
	if s == nil {
		st = done()
	}
	return st.reply(orNew(s, ev), msgDonationThanks), nil
}

func (e *Engine) handleBugReport(_ context.Context, s *Session, ev messaging.Event, action string) (*step, error) {
	if ev.Kind != messaging.KindText || ev.Text == "" {
		return nil, apperrors.NewValidationError("report", "describe the problem in a text message")
	}
	ref := uuid.NewString()[:8]
	e.log.Info().
		Int64("actor_id", ev.ActorID).
		Str("ref", ref).
		Str("report", ev.Text).
		Msg("bug report")
	st := done()
	return st.reply(s, "Thanks for the report! Reference: "+ref), nil
}

// membershipOK applies the community-group gate. Errors from the transport
// fail open so a Telegram hiccup never locks everyone out.
func (e *Engine) membershipOK(ctx context.Context, actorID int64) bool {
	if e.membership == nil || e.cfg.GroupID == 0 {
		return true
	}
	member, err := e.membership.IsChatMember(ctx, e.cfg.GroupID, actorID)
	if err != nil {
		e.log.Warn().Err(err).Int64("actor_id", actorID).Msg("membership check failed, allowing")
		return true
	}
	if err := e.users.TrackMembership(ctx, actorID, member); err != nil {
		e.log.Error().Err(err).Int64("actor_id", actorID).Msg("membership tracking failed")
	}
	return member
}

func (e *Engine) actorLock(actorID int64) *sync.Mutex {
	v, _ := e.locks.LoadOrStore(actorID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

func stateOf(s *Session) State {
	if s == nil {
		return StateNone
	}
	return s.State
}

// orNew returns the session, or a throwaway one good only for addressing a
// reply when no session exists.
func orNew(s *Session, ev messaging.Event) *Session {
	if s != nil {
		return s
	}
	return &Session{ActorID: ev.ActorID, ChatID: ev.ChatID}
}

func rejectionText(err *apperrors.AppError) string {
	switch err.Code {
	case apperrors.ErrCodeFull:
		return "That hike is already full, sorry."
	case apperrors.ErrCodeAlreadyRegistered:
		return "You are already signed up for that hike."
	case apperrors.ErrCodeInactive:
		return "That hike has been cancelled."
	case apperrors.ErrCodeNotFound:
		return "I could not find that anymore. Try /menu."
	case apperrors.ErrCodePermissionDenied:
		return "You are not allowed to do that."
	default:
		return err.Message
	}
}
