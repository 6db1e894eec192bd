package bot

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "hiky-bot-backend/internal/common/errors"
	hikesqlite "hiky-bot-backend/internal/features/hike/repository/sqlite"
	hikeservice "hiky-bot-backend/internal/features/hike/service"
	maintsqlite "hiky-bot-backend/internal/features/maintenance/repository/sqlite"
	maintservice "hiky-bot-backend/internal/features/maintenance/service"
	querysqlite "hiky-bot-backend/internal/features/query/repository/sqlite"
	queryservice "hiky-bot-backend/internal/features/query/service"
	usersqlite "hiky-bot-backend/internal/features/user/repository/sqlite"
	userservice "hiky-bot-backend/internal/features/user/service"
	"hiky-bot-backend/internal/messaging"
	"hiky-bot-backend/internal/platform/sqlite"
	"hiky-bot-backend/internal/ratelimit"
)

type fakeGateway struct {
	mu     sync.Mutex
	sent   []messaging.Outbound
	ackErr error
}

func (g *fakeGateway) Send(_ context.Context, msg messaging.Outbound) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sent = append(g.sent, msg)
	return nil
}

func (g *fakeGateway) AckCallback(context.Context, string) error { return g.ackErr }
func (g *fakeGateway) AckPreCheckout(context.Context, string) error {
	return nil
}

func (g *fakeGateway) last(t *testing.T) messaging.Outbound {
	t.Helper()
	g.mu.Lock()
	defer g.mu.Unlock()
	require.NotEmpty(t, g.sent, "expected at least one outbound message")
	return g.sent[len(g.sent)-1]
}

func (g *fakeGateway) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sent)
}

func (g *fakeGateway) allText() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out string
	for _, m := range g.sent {
		out += m.Text + "\n"
	}
	return out
}

type harness struct {
	engine  *Engine
	gateway *fakeGateway
	store   *MemoryStore
	users   *userservice.Service
	hikes   *hikeservice.Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := sqlite.OpenInMemory(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	users := userservice.NewService(usersqlite.NewRepository(db))
	hikes := hikeservice.NewService(hikesqlite.NewRepository(db), users)
	maint := maintservice.NewService(maintsqlite.NewRepository(db), users)
	queries := queryservice.NewService(querysqlite.NewRunner(db), querysqlite.NewTemplateStore(db), users)

	gateway := &fakeGateway{}
	store := NewMemoryStore()
	engine := NewEngine(store, gateway, users, hikes, maint, queries,
		ratelimit.New(100, time.Minute), nil, nil, Config{})

	return &harness{engine: engine, gateway: gateway, store: store, users: users, hikes: hikes}
}

func cmd(actor int64, name string) messaging.Event {
	return messaging.Event{Kind: messaging.KindCommand, ActorID: actor, ChatID: actor, Command: name}
}

func text(actor int64, body string) messaging.Event {
	return messaging.Event{Kind: messaging.KindText, ActorID: actor, ChatID: actor, Text: body}
}

func (h *harness) session(t *testing.T, actor int64) *Session {
	t.Helper()
	s, err := h.store.Get(context.Background(), actor)
	require.NoError(t, err)
	require.NotNil(t, s, "expected an active session for actor %d", actor)
	return s
}

// tap simulates pressing a button issued by the actor's current session.
func (h *harness) tap(t *testing.T, actor int64, parts ...string) {
	t.Helper()
	s := h.session(t, actor)
	h.engine.HandleEvent(context.Background(), messaging.Event{
		Kind:       messaging.KindCallback,
		ActorID:    actor,
		ChatID:     actor,
		Data:       s.Action(parts...),
		CallbackID: "cb",
		MessageID:  1,
	})
}

func TestMenuCommandOpensSession(t *testing.T) {
	h := newHarness(t)
	h.engine.HandleEvent(context.Background(), cmd(1, "menu"))

	s := h.session(t, 1)
	assert.Equal(t, StateChoosing, s.State)
	assert.NotEmpty(t, s.Token)

	msg := h.gateway.last(t)
	assert.Equal(t, msgMenu, msg.Text)
	assert.NotEmpty(t, msg.Buttons)
}

func TestTextWithoutSession(t *testing.T) {
	h := newHarness(t)
	h.engine.HandleEvent(context.Background(), text(1, "hello?"))

	assert.Equal(t, msgNoConversation, h.gateway.last(t).Text)
	s, err := h.store.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, s, "stray text must not open a session")
}

func TestStaleTokenIsLostConversation(t *testing.T) {
	h := newHarness(t)
	h.engine.HandleEvent(context.Background(), cmd(1, "menu"))

	h.engine.HandleEvent(context.Background(), messaging.Event{
		Kind: messaging.KindCallback, ActorID: 1, ChatID: 1,
		Data: "deadbeef|signup", CallbackID: "cb",
	})

	assert.Equal(t, msgLostConversation, h.gateway.last(t).Text)
	s, err := h.store.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, s, "the session is dropped so the next tap starts clean")
}

func TestExpiredCallbackAckIsLostConversation(t *testing.T) {
	h := newHarness(t)
	h.engine.HandleEvent(context.Background(), cmd(1, "menu"))
	h.gateway.ackErr = apperrors.New(apperrors.ErrCodeStaleCallback, "query is too old")

	h.tap(t, 1, "profile")

	assert.Equal(t, msgLostConversation, h.gateway.last(t).Text)
}

func TestUnknownActionIsLostConversation(t *testing.T) {
	h := newHarness(t)
	h.engine.HandleEvent(context.Background(), cmd(1, "menu"))

	h.tap(t, 1, "time_travel")

	assert.Equal(t, msgLostConversation, h.gateway.last(t).Text)
}

func TestRestartConfirmation(t *testing.T) {
	h := newHarness(t)
	h.engine.HandleEvent(context.Background(), cmd(1, "menu"))
	h.tap(t, 1, "profile")
	h.tap(t, 1, "pf", "name")
	require.Equal(t, StateProfileName, h.session(t, 1).State)

	// Restarting mid-form asks first.
	h.engine.HandleEvent(context.Background(), cmd(1, "restart"))
	require.Equal(t, StateRestartConfirm, h.session(t, 1).State)
	assert.Equal(t, msgRestartConfirm, h.gateway.last(t).Text)

	// "No" resumes exactly where the form was.
	h.tap(t, 1, "restart", "no")
	assert.Equal(t, StateProfileName, h.session(t, 1).State)

	// "Yes" resets to a fresh menu.
	h.engine.HandleEvent(context.Background(), cmd(1, "restart"))
	h.tap(t, 1, "restart", "yes")
	assert.Equal(t, StateChoosing, h.session(t, 1).State)
}

func TestRestartOutsideFormSkipsConfirmation(t *testing.T) {
	h := newHarness(t)
	h.engine.HandleEvent(context.Background(), cmd(1, "menu"))

	h.engine.HandleEvent(context.Background(), cmd(1, "restart"))
	assert.Equal(t, StateChoosing, h.session(t, 1).State)
	assert.Equal(t, msgMenu, h.gateway.last(t).Text)
}

func TestCancelEndsConversation(t *testing.T) {
	h := newHarness(t)
	h.engine.HandleEvent(context.Background(), cmd(1, "menu"))
	h.engine.HandleEvent(context.Background(), cmd(1, "cancel"))

	assert.Equal(t, msgCancelled, h.gateway.last(t).Text)
	s, err := h.store.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestRateLimitDropsExcessEvents(t *testing.T) {
	db, err := sqlite.OpenInMemory(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	users := userservice.NewService(usersqlite.NewRepository(db))
	hikes := hikeservice.NewService(hikesqlite.NewRepository(db), users)
	maint := maintservice.NewService(maintsqlite.NewRepository(db), users)
	queries := queryservice.NewService(querysqlite.NewRunner(db), querysqlite.NewTemplateStore(db), users)
	gateway := &fakeGateway{}
	engine := NewEngine(NewMemoryStore(), gateway, users, hikes, maint, queries,
		ratelimit.New(2, time.Minute), nil, nil, Config{})

	for i := 0; i < 5; i++ {
		engine.HandleEvent(context.Background(), cmd(1, "help"))
	}
	assert.Equal(t, 2, gateway.count(), "events past the limit are dropped silently")
}

func TestAdminCommandDeniedForMortals(t *testing.T) {
	h := newHarness(t)
	h.engine.HandleEvent(context.Background(), cmd(1, "admin"))

	assert.Equal(t, msgNotAdmin, h.gateway.last(t).Text)
	s, err := h.store.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestAdminMenuForOwner(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.users.EnsureOwner(context.Background(), 9))

	h.engine.HandleEvent(context.Background(), cmd(9, "admin"))
	assert.Equal(t, StateAdminMenu, h.session(t, 9).State)
}

func TestProfileFieldValidationReprompts(t *testing.T) {
	h := newHarness(t)
	h.engine.HandleEvent(context.Background(), cmd(1, "menu"))
	h.tap(t, 1, "profile")
	h.tap(t, 1, "pf", "email")

	h.engine.HandleEvent(context.Background(), text(1, "not-an-email"))
	assert.Equal(t, StateProfileEmail, h.session(t, 1).State, "invalid input re-prompts the same state")

	h.engine.HandleEvent(context.Background(), text(1, "anna@example.com"))
	assert.Equal(t, StateProfileMenu, h.session(t, 1).State)

	u, err := h.users.Profile(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "anna@example.com", u.Email)
}

func TestBugReportEndsWithReference(t *testing.T) {
	h := newHarness(t)
	h.engine.HandleEvent(context.Background(), cmd(1, "bug"))
	require.Equal(t, StateBugReport, h.session(t, 1).State)

	h.engine.HandleEvent(context.Background(), text(1, "the menu ate my hike"))
	assert.Contains(t, h.gateway.last(t).Text, "Reference:")

	s, err := h.store.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestCalendarListsUpcomingHikes(t *testing.T) {
	h := newHarness(t)
	hike := h.seedHike(t, 10)

	h.engine.HandleEvent(context.Background(), cmd(1, "menu"))
	h.tap(t, 1, "cal")

	msg := h.gateway.last(t)
	assert.Contains(t, msg.Text, hike.Name)
	assert.Contains(t, msg.Text, "0/10")
	assert.Equal(t, StateChoosing, h.session(t, 1).State)
}

func TestPerActorSerialization(t *testing.T) {
	h := newHarness(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			h.engine.HandleEvent(context.Background(), cmd(int64(n%4+1), "menu"))
		}(i)
	}
	wg.Wait()

	for actor := int64(1); actor <= 4; actor++ {
		s := h.session(t, actor)
		assert.Equal(t, StateChoosing, s.State, fmt.Sprintf("actor %d", actor))
	}
}
