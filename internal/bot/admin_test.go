package bot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	hikemodels "hiky-bot-backend/internal/features/hike/models"
)

const adminActor = int64(50)

func (h *harness) openAdmin(t *testing.T) {
	t.Helper()
	require.NoError(t, h.users.EnsureOwner(context.Background(), adminActor))
	h.engine.HandleEvent(context.Background(), cmd(adminActor, "admin"))
	require.Equal(t, StateAdminMenu, h.session(t, adminActor).State)
}

func TestAdminCreatesHike(t *testing.T) {
	h := newHarness(t)
	h.openAdmin(t)
	ctx := context.Background()

	h.tap(t, adminActor, "newhike")
	require.Equal(t, StateHikeName, h.session(t, adminActor).State)

	h.engine.HandleEvent(ctx, text(adminActor, "Monte Velino"))
	h.engine.HandleEvent(ctx, text(adminActor, timeNow().AddDate(0, 0, 21).Format(dateLayout)))
	h.engine.HandleEvent(ctx, text(adminActor, "2"))
	h.engine.HandleEvent(ctx, text(adminActor, "25"))
	h.engine.HandleEvent(ctx, text(adminActor, "42.13, 13.45"))
	require.Equal(t, StateHikeDifficulty, h.session(t, adminActor).State)

	h.tap(t, adminActor, "dif", string(hikemodels.DifficultyHard))
	h.tap(t, adminActor, "desc", "skip")
	require.Equal(t, StateHikeConfirm, h.session(t, adminActor).State)
	assert.Contains(t, h.gateway.last(t).Text, "Monte Velino")

	h.tap(t, adminActor, "hsave")

	hikes, err := h.hikes.Upcoming(ctx)
	require.NoError(t, err)
	require.Len(t, hikes, 1)
	assert.Equal(t, "Monte Velino", hikes[0].Name)
	assert.Equal(t, 25, hikes[0].MaxParticipants)
	assert.Equal(t, hikemodels.DifficultyHard, hikes[0].Difficulty)
}

func TestAdminHikeDateMustBeFuture(t *testing.T) {
	h := newHarness(t)
	h.openAdmin(t)
	ctx := context.Background()

	h.tap(t, adminActor, "newhike")
	h.engine.HandleEvent(ctx, text(adminActor, "Monte Velino"))
	h.engine.HandleEvent(ctx, text(adminActor, "01/01/2020"))

	assert.Equal(t, StateHikeDate, h.session(t, adminActor).State, "a past date re-prompts")
}

func TestAdminDiscardsDraft(t *testing.T) {
	h := newHarness(t)
	h.openAdmin(t)
	ctx := context.Background()

	h.tap(t, adminActor, "newhike")
	h.engine.HandleEvent(ctx, text(adminActor, "Monte Velino"))
	h.engine.HandleEvent(ctx, text(adminActor, timeNow().AddDate(0, 0, 21).Format(dateLayout)))
	h.engine.HandleEvent(ctx, text(adminActor, "2"))
	h.engine.HandleEvent(ctx, text(adminActor, "25"))
	h.engine.HandleEvent(ctx, text(adminActor, "42.13, 13.45"))
	h.tap(t, adminActor, "dif", string(hikemodels.DifficultyEasy))
	h.tap(t, adminActor, "desc", "skip")
	h.tap(t, adminActor, "habort")

	assert.Equal(t, StateAdminMenu, h.session(t, adminActor).State)
	hikes, err := h.hikes.Upcoming(context.Background())
	require.NoError(t, err)
	assert.Empty(t, hikes)
}

func TestAdminGrantsAdmin(t *testing.T) {
	h := newHarness(t)
	h.openAdmin(t)
	ctx := context.Background()

	h.tap(t, adminActor, "addadmin")
	require.Equal(t, StateAdminAddAdmin, h.session(t, adminActor).State)

	h.engine.HandleEvent(ctx, text(adminActor, "60"))

	ok, err := h.users.IsAdmin(ctx, 60)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, StateAdminMenu, h.session(t, adminActor).State)
}

func TestAdminAddAdminRejectsGarbage(t *testing.T) {
	h := newHarness(t)
	h.openAdmin(t)

	h.tap(t, adminActor, "addadmin")
	h.engine.HandleEvent(context.Background(), text(adminActor, "@somehandle"))

	assert.Equal(t, StateAdminAddAdmin, h.session(t, adminActor).State)
}

func TestAdminSchedulesMaintenance(t *testing.T) {
	h := newHarness(t)
	h.openAdmin(t)
	ctx := context.Background()

	h.tap(t, adminActor, "maint")
	h.tap(t, adminActor, "mnew")
	require.Equal(t, StateMaintDate, h.session(t, adminActor).State)

	h.engine.HandleEvent(ctx, text(adminActor, timeNow().AddDate(0, 0, 3).Format(dateLayout)))
	h.engine.HandleEvent(ctx, text(adminActor, "02:00"))
	h.engine.HandleEvent(ctx, text(adminActor, "04:00"))
	h.tap(t, adminActor, "mreason", "skip")

	assert.Equal(t, StateMaintMenu, h.session(t, adminActor).State)
	assert.Contains(t, h.gateway.allText(), "Maintenance scheduled for")
	assert.Contains(t, h.gateway.allText(), "02:00–04:00")
}

func TestAdminMaintenanceRejectsInvertedBounds(t *testing.T) {
	h := newHarness(t)
	h.openAdmin(t)
	ctx := context.Background()

	h.tap(t, adminActor, "maint")
	h.tap(t, adminActor, "mnew")
	h.engine.HandleEvent(ctx, text(adminActor, timeNow().AddDate(0, 0, 3).Format(dateLayout)))
	h.engine.HandleEvent(ctx, text(adminActor, "04:00"))
	h.engine.HandleEvent(ctx, text(adminActor, "02:00"))
	h.tap(t, adminActor, "mreason", "skip")

	require.NotEqual(t, StateMaintMenu, h.session(t, adminActor).State, "an end before the start must not save")
}

func TestAdminQueryRunAndSave(t *testing.T) {
	h := newHarness(t)
	h.openAdmin(t)
	ctx := context.Background()

	h.tap(t, adminActor, "query")
	require.Equal(t, StateQueryMenu, h.session(t, adminActor).State)
	h.tap(t, adminActor, "qrun")
	require.Equal(t, StateQueryExec, h.session(t, adminActor).State)

	h.engine.HandleEvent(ctx, text(adminActor, "SELECT telegram_id FROM users"))
	result := h.gateway.last(t)
	assert.Contains(t, result.Text, "telegram_id")

	h.tap(t, adminActor, "qsave")
	require.Equal(t, StateQuerySave, h.session(t, adminActor).State)
	h.engine.HandleEvent(ctx, text(adminActor, "all-users"))

	assert.Contains(t, h.gateway.allText(), "all-users")
}

func TestAdminQueryRejectsWrites(t *testing.T) {
	h := newHarness(t)
	h.openAdmin(t)
	ctx := context.Background()

	h.tap(t, adminActor, "query")
	h.tap(t, adminActor, "qrun")
	h.engine.HandleEvent(ctx, text(adminActor, "DELETE FROM users"))

	assert.Equal(t, StateQueryExec, h.session(t, adminActor).State, "a rejected statement re-prompts")

	rows, err := h.users.AllUserIDs(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, rows, "nothing was deleted")
}

func TestAdminCancelHikeNotifiesRegistrants(t *testing.T) {
	h := newHarness(t)
	hike := h.seedHike(t, 10) // owner is signupOwner
	ctx := context.Background()

	require.NoError(t, h.users.RegisterContact(ctx, 70, "walker"))
	_, err := h.hikes.Register(ctx, 70, hike.ID, hikemodels.Snapshot{
		NameSurname: "Walker One", Email: "w@example.com", Phone: "+39 333 0000001", BirthDate: "01/01/1990",
	})
	require.NoError(t, err)

	h.engine.HandleEvent(ctx, cmd(signupOwner, "admin"))
	h.tap(t, signupOwner, "ahc", "1")

	found := false
	h.gateway.mu.Lock()
	for _, m := range h.gateway.sent {
		if m.ChatID == 70 {
			found = true
			assert.Contains(t, m.Text, "cancelled")
		}
	}
	h.gateway.mu.Unlock()
	assert.True(t, found, "registrants hear about the cancellation")

	got, err := h.hikes.Get(ctx, hike.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)
}
