package bot

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	hikemodels "hiky-bot-backend/internal/features/hike/models"
	usermodels "hiky-bot-backend/internal/features/user/models"
)

const (
	signupOwner = int64(99)
	signupActor = int64(7)
)

func (h *harness) seedHike(t *testing.T, capacity int) *hikemodels.Hike {
	t.Helper()
	require.NoError(t, h.users.EnsureOwner(context.Background(), signupOwner))
	hike, err := h.hikes.Create(context.Background(), signupOwner, hikemodels.Draft{
		Name:            "Monte Terminillo",
		Date:            timeNow().AddDate(0, 0, 20),
		MaxParticipants: capacity,
		Guides:          2,
		Latitude:        42.47,
		Longitude:       12.99,
		Difficulty:      hikemodels.DifficultyModerate,
		Description:     "Ridge loop with a refuge stop",
	})
	require.NoError(t, err)
	return hike
}

// driveToConsent walks a fresh actor through the whole signup form and
// leaves the session on the final confirmation screen.
func (h *harness) driveToConsent(t *testing.T, hikeID int64) {
	t.Helper()
	ctx := context.Background()

	h.engine.HandleEvent(ctx, cmd(signupActor, "menu"))
	h.tap(t, signupActor, "signup")
	require.Equal(t, StateSignupName, h.session(t, signupActor).State)

	h.engine.HandleEvent(ctx, text(signupActor, "Anna"))
	h.engine.HandleEvent(ctx, text(signupActor, "Rossi"))
	h.engine.HandleEvent(ctx, text(signupActor, "anna.rossi@example.com"))
	h.engine.HandleEvent(ctx, text(signupActor, "+39 333 1112223"))
	require.Equal(t, StateSignupBirthDec, h.session(t, signupActor).State)

	h.tap(t, signupActor, "bd", "dec", "1990")
	h.tap(t, signupActor, "bd", "yr", "1992")
	h.tap(t, signupActor, "bd", "mo", "5")
	h.tap(t, signupActor, "bd", "dy", "17")
	require.Equal(t, StateSignupMedical, h.session(t, signupActor).State)

	h.tap(t, signupActor, "med", "skip")
	require.Equal(t, StateSignupHikes, h.session(t, signupActor).State)

	h.tap(t, signupActor, "hk", strconv.FormatInt(hikeID, 10))
	h.tap(t, signupActor, "hkdone")
	h.tap(t, signupActor, "eq", "yes")
	h.tap(t, signupActor, "car", "yes")
	h.tap(t, signupActor, "loc", "skip")
	h.tap(t, signupActor, "rem", "both")
	h.tap(t, signupActor, "notes", "skip")
	require.Equal(t, StateSignupConsent, h.session(t, signupActor).State)
}

func TestSignupFullFlow(t *testing.T) {
	h := newHarness(t)
	hike := h.seedHike(t, 10)

	h.driveToConsent(t, hike.ID)
	h.tap(t, signupActor, "consent", "ok")

	final := h.gateway.last(t)
	assert.Contains(t, final.Text, "✅ Monte Terminillo")

	s, err := h.store.Get(context.Background(), signupActor)
	require.NoError(t, err)
	assert.Nil(t, s, "a committed signup ends the conversation")

	regs, err := h.hikes.MyRegistrations(context.Background(), signupActor)
	require.NoError(t, err)
	require.Len(t, regs, 1)
	assert.Equal(t, hike.ID, regs[0].HikeID)
	assert.Equal(t, "Anna Rossi", regs[0].Snapshot.NameSurname)
	assert.Equal(t, hikemodels.ReminderBoth, regs[0].Snapshot.ReminderPref)
	assert.True(t, regs[0].Snapshot.CarSharing)

	u, err := h.users.Profile(context.Background(), signupActor)
	require.NoError(t, err)
	assert.True(t, u.Consents.Basic)
	assert.True(t, u.Consents.CarSharing, "opting into car sharing records the consent")
	assert.Equal(t, "anna.rossi@example.com", u.Email)
}

func TestSignupRejectedAtCommitWhenHikeFills(t *testing.T) {
	h := newHarness(t)
	hike := h.seedHike(t, 1)

	h.driveToConsent(t, hike.ID)

	// The last seat goes to someone else while Anna is reading the
	// summary screen.
	require.NoError(t, h.users.RegisterContact(context.Background(), 8, "sniper"))
	_, err := h.hikes.Register(context.Background(), 8, hike.ID, hikemodels.Snapshot{
		NameSurname: "Ugo Veloce",
		Email:       "ugo@example.com",
		Phone:       "+39 333 0000000",
		BirthDate:   "01/01/1990",
	})
	require.NoError(t, err)

	h.tap(t, signupActor, "consent", "ok")

	final := h.gateway.last(t)
	assert.Contains(t, final.Text, "⚠️ Monte Terminillo")
	assert.Contains(t, final.Text, "already full")

	regs, err := h.hikes.MyRegistrations(context.Background(), signupActor)
	require.NoError(t, err)
	assert.Empty(t, regs, "no seat means no registration row")

	// The profile edits still stuck, only the reservation was refused.
	u, err := h.users.Profile(context.Background(), signupActor)
	require.NoError(t, err)
	assert.Equal(t, "Anna", u.Name)
}

func TestSignupAbandonSavesNothing(t *testing.T) {
	h := newHarness(t)
	hike := h.seedHike(t, 10)

	h.driveToConsent(t, hike.ID)
	h.tap(t, signupActor, "consent", "no")

	regs, err := h.hikes.MyRegistrations(context.Background(), signupActor)
	require.NoError(t, err)
	assert.Empty(t, regs)

	u, err := h.users.Profile(context.Background(), signupActor)
	require.NoError(t, err)
	assert.False(t, u.HasProfile(), "abandoning before consent leaves the profile untouched")
}

func TestSignupPrefillsFromProfile(t *testing.T) {
	h := newHarness(t)
	hike := h.seedHike(t, 10)
	_ = hike

	ctx := context.Background()
	require.NoError(t, h.users.RegisterContact(ctx, signupActor, "anna"))
	name, surname := "Anna", "Rossi"
	email, phone, birth := "anna@example.com", "+39 333 1112223", "17/05/1992"
	require.NoError(t, h.users.UpdateProfile(ctx, signupActor, usermodels.ProfileUpdate{
		Name: &name, Surname: &surname, Email: &email, Phone: &phone, BirthDate: &birth,
	}))

	h.engine.HandleEvent(ctx, cmd(signupActor, "menu"))
	h.tap(t, signupActor, "signup")

	s := h.session(t, signupActor)
	assert.Equal(t, StateSignupMedical, s.State, "a complete profile skips straight to the medical question")
	assert.Equal(t, "Anna", s.Signup.Name)
	assert.Equal(t, "17/05/1992", s.Signup.BirthDate)
}

func TestSignupWithNoHikesAvailable(t *testing.T) {
	h := newHarness(t)
	h.engine.HandleEvent(context.Background(), cmd(signupActor, "menu"))
	h.tap(t, signupActor, "signup")

	assert.Contains(t, h.gateway.last(t).Text, "No upcoming hikes")
	assert.Equal(t, StateChoosing, h.session(t, signupActor).State, "the menu conversation survives")
}

func TestSignupUnderageRepromptsDecade(t *testing.T) {
	h := newHarness(t)
	hike := h.seedHike(t, 10)
	_ = hike

	ctx := context.Background()
	h.engine.HandleEvent(ctx, cmd(signupActor, "menu"))
	h.tap(t, signupActor, "signup")
	h.engine.HandleEvent(ctx, text(signupActor, "Anna"))
	h.engine.HandleEvent(ctx, text(signupActor, "Rossi"))
	h.engine.HandleEvent(ctx, text(signupActor, "anna@example.com"))
	h.engine.HandleEvent(ctx, text(signupActor, "+39 333 1112223"))

	year := timeNow().Year()
	h.tap(t, signupActor, "bd", "dec", strconv.Itoa(year-year%10))
	h.tap(t, signupActor, "bd", "yr", strconv.Itoa(year-1))
	h.tap(t, signupActor, "bd", "mo", "1")
	h.tap(t, signupActor, "bd", "dy", "1")

	assert.Equal(t, StateSignupBirthDec, h.session(t, signupActor).State)
	assert.Contains(t, h.gateway.last(t).Text, "18")
}
