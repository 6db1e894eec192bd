package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	hikemodels "hiky-bot-backend/internal/features/hike/models"
	maintmodels "hiky-bot-backend/internal/features/maintenance/models"
	"hiky-bot-backend/internal/messaging"
	"hiky-bot-backend/internal/platform/weather"
)

type fakeHikes struct {
	byDays map[int][]hikemodels.ReminderItem
}

func (f *fakeHikes) DueReminders(_ context.Context, _ time.Time, daysBefore int) ([]hikemodels.ReminderItem, error) {
	return f.byDays[daysBefore], nil
}

// fakeMaint keeps window stages in memory with the same due/advance
// semantics as the real service: stage- and date-filtered listing, and a
// conditional advance that reports whether it moved the marker.
type fakeMaint struct {
	mu       sync.Mutex
	windows  []maintmodels.Window
	advanced []int64
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

func (f *fakeMaint) DueForStage(_ context.Context, now time.Time, stage maintmodels.NoticeStage) ([]maintmodels.Window, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var due []maintmodels.Window
	for _, w := range f.windows {
		if w.Stage >= stage {
			continue
		}
		switch stage {
		case maintmodels.StageDayBefore:
			if !sameDay(w.Date, now.AddDate(0, 0, 1)) {
				continue
			}
		case maintmodels.StageDayOf:
			if !sameDay(w.Date, now) {
				continue
			}
		}
		due = append(due, w)
	}
	return due, nil
}

func (f *fakeMaint) AdvanceStage(_ context.Context, id int64, stage maintmodels.NoticeStage) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.windows {
		if f.windows[i].ID == id && f.windows[i].Stage < stage {
			f.windows[i].Stage = stage
			f.advanced = append(f.advanced, id)
			return true, nil
		}
	}
	return false, nil
}

type fakeAudience struct{ ids []int64 }

func (f *fakeAudience) AllUserIDs(context.Context) ([]int64, error) { return f.ids, nil }

type fakeNotifier struct {
	mu   sync.Mutex
	sent []messaging.Outbound
	// down simulates a transport outage: attempts are recorded but
	// nothing is delivered.
	down bool
}

func (f *fakeNotifier) Send(_ context.Context, msg messaging.Outbound) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeNotifier) SendAll(_ context.Context, msgs []messaging.Outbound) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msgs...)
	if f.down {
		return 0
	}
	return len(msgs)
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeWeather struct{ fc *weather.Forecast }

func (f *fakeWeather) Forecast(context.Context, float64, float64, time.Time) (*weather.Forecast, error) {
	return f.fc, nil
}

func newTestScheduler(hikes HikeSource, maint MaintenanceSource, users Audience, notify Notifier, ws WeatherSource) *Scheduler {
	s := New(hikes, maint, users, notify, ws, Config{ReminderHour: 9})
	return s
}

func TestSweepRemindersSendsPerMark(t *testing.T) {
	hikes := &fakeHikes{byDays: map[int][]hikemodels.ReminderItem{
		5: {{TelegramID: 1, HikeID: 10, HikeName: "Gran Sasso", HikeDate: time.Date(2026, 9, 3, 0, 0, 0, 0, time.UTC)}},
		2: {
			{TelegramID: 2, HikeID: 11, HikeName: "Velino", HikeDate: time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)},
			{TelegramID: 3, HikeID: 11, HikeName: "Velino", HikeDate: time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)},
		},
	}}
	notify := &fakeNotifier{}
	s := newTestScheduler(hikes, &fakeMaint{}, &fakeAudience{}, notify, nil)

	s.SweepReminders(time.Now())

	require.Len(t, notify.sent, 3)
	assert.Contains(t, notify.sent[0].Text, "Gran Sasso")
	assert.Contains(t, notify.sent[0].Text, "in 5 days")
	assert.Contains(t, notify.sent[1].Text, "in 2 days")
	assert.Equal(t, int64(2), notify.sent[1].ChatID)
}

func TestSweepRemindersIncludesForecast(t *testing.T) {
	hikes := &fakeHikes{byDays: map[int][]hikemodels.ReminderItem{
		5: {{TelegramID: 1, HikeID: 10, HikeName: "Gran Sasso", HikeDate: time.Now().AddDate(0, 0, 5)}},
	}}
	notify := &fakeNotifier{}
	ws := &fakeWeather{fc: &weather.Forecast{TempMin: 8, TempMax: 19, Description: "clear sky", Accuracy: "medium"}}
	s := newTestScheduler(hikes, &fakeMaint{}, &fakeAudience{}, notify, ws)

	s.SweepReminders(time.Now())

	require.Len(t, notify.sent, 1)
	assert.Contains(t, notify.sent[0].Text, "clear sky")
}

func TestMaybeRunRemindersOncePerDay(t *testing.T) {
	hikes := &fakeHikes{byDays: map[int][]hikemodels.ReminderItem{
		5: {{TelegramID: 1, HikeID: 10, HikeName: "Gran Sasso", HikeDate: time.Now()}},
	}}
	notify := &fakeNotifier{}
	s := newTestScheduler(hikes, &fakeMaint{}, &fakeAudience{}, notify, nil)

	morning := time.Date(2026, 8, 29, 7, 30, 0, 0, time.UTC)
	s.maybeRunReminders(morning)
	assert.Empty(t, notify.sent, "before the configured hour nothing fires")

	nineish := time.Date(2026, 8, 29, 9, 1, 0, 0, time.UTC)
	s.maybeRunReminders(nineish)
	require.Len(t, notify.sent, 1)

	s.maybeRunReminders(nineish.Add(time.Hour))
	assert.Len(t, notify.sent, 1, "a second sweep the same day is a no-op")

	nextDay := nineish.AddDate(0, 0, 1)
	s.maybeRunReminders(nextDay)
	assert.Len(t, notify.sent, 2)
}

func TestSweepMaintenanceBroadcastsThenAdvances(t *testing.T) {
	now := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	window := maintmodels.Window{
		ID:    1,
		Date:  now.AddDate(0, 0, 1),
		Start: "02:00",
		End:   "04:00",
		Stage: maintmodels.StageNotSent,
	}
	maint := &fakeMaint{windows: []maintmodels.Window{window}}
	notify := &fakeNotifier{}
	s := newTestScheduler(&fakeHikes{}, maint, &fakeAudience{ids: []int64{1, 2, 3}}, notify, nil)

	s.SweepMaintenance(now)

	assert.Equal(t, []int64{1}, maint.advanced)
	require.Len(t, notify.sent, 3, "one notice per user")
	assert.Contains(t, notify.sent[0].Text, "tomorrow")
	assert.Contains(t, notify.sent[0].Text, "02:00")
}

func TestSweepMaintenanceRerunIsQuiet(t *testing.T) {
	now := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	window := maintmodels.Window{ID: 1, Date: now.AddDate(0, 0, 1), Start: "02:00", End: "04:00"}
	maint := &fakeMaint{windows: []maintmodels.Window{window}}
	notify := &fakeNotifier{}
	s := newTestScheduler(&fakeHikes{}, maint, &fakeAudience{ids: []int64{1, 2}}, notify, nil)

	s.SweepMaintenance(now)
	require.Equal(t, 2, notify.count())

	s.SweepMaintenance(now)
	assert.Equal(t, 2, notify.count(), "a delivered notice is never re-announced")
	assert.Equal(t, []int64{1}, maint.advanced)
}

func TestSweepMaintenanceResendsAfterDeliveryFailure(t *testing.T) {
	now := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	window := maintmodels.Window{ID: 1, Date: now.AddDate(0, 0, 1), Start: "02:00", End: "04:00"}
	maint := &fakeMaint{windows: []maintmodels.Window{window}}
	notify := &fakeNotifier{down: true}
	s := newTestScheduler(&fakeHikes{}, maint, &fakeAudience{ids: []int64{1, 2, 3, 4}}, notify, nil)

	s.SweepMaintenance(now)
	require.Equal(t, 4, notify.count())
	assert.Empty(t, maint.advanced, "nothing delivered, stage stays put")

	// Transport still down: the next sweep tries everyone again.
	s.SweepMaintenance(now)
	assert.Equal(t, 8, notify.count(), "failed recipients are retried on the next sweep")

	// Transport recovers: the sweep delivers and only then records it.
	notify.mu.Lock()
	notify.down = false
	notify.mu.Unlock()
	s.SweepMaintenance(now)
	assert.Equal(t, 12, notify.count())
	assert.Equal(t, []int64{1}, maint.advanced)

	s.SweepMaintenance(now)
	assert.Equal(t, 12, notify.count())
}

func TestSweepMaintenanceAlreadyAnnounced(t *testing.T) {
	now := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	window := maintmodels.Window{ID: 1, Date: now, Start: "02:00", End: "04:00", Stage: maintmodels.StageDayOf}
	maint := &fakeMaint{windows: []maintmodels.Window{window}}
	notify := &fakeNotifier{}
	s := newTestScheduler(&fakeHikes{}, maint, &fakeAudience{ids: []int64{1}}, notify, nil)

	s.SweepMaintenance(now)

	assert.Empty(t, maint.advanced, "fully announced windows are never due")
	assert.Empty(t, notify.sent)
}

func TestMaintenanceTextReason(t *testing.T) {
	w := maintmodels.Window{Date: time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC), Start: "02:00", End: "04:00", Reason: "db migration"}
	assert.Contains(t, maintenanceText(w, maintmodels.StageDayOf), "today")
	assert.Contains(t, maintenanceText(w, maintmodels.StageDayOf), "Reason: db migration")

	w.Reason = ""
	assert.NotContains(t, maintenanceText(w, maintmodels.StageDayBefore), "Reason:")
}

func TestStartStop(t *testing.T) {
	s := New(&fakeHikes{}, &fakeMaint{}, &fakeAudience{}, &fakeNotifier{}, nil, Config{ReminderHour: 9, MaintenanceInterval: time.Hour})
	s.Start()
	s.Stop()
}
