// Package scheduler runs the periodic sweeps: hike reminders at a fixed
// hour, and maintenance notices on a short interval so a scheduled window
// never goes unannounced for long.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"hiky-bot-backend/internal/common/logger"
	hikemodels "hiky-bot-backend/internal/features/hike/models"
	maintmodels "hiky-bot-backend/internal/features/maintenance/models"
	"hiky-bot-backend/internal/messaging"
	"hiky-bot-backend/internal/platform/weather"
)

// reminderDays are the days-before marks a registration can subscribe to.
var reminderDays = []int{5, 2}

// HikeSource yields the reminders due on a given day.
type HikeSource interface {
	DueReminders(ctx context.Context, today time.Time, daysBefore int) ([]hikemodels.ReminderItem, error)
}

// MaintenanceSource yields and records maintenance notices. AdvanceStage is
// conditional on the stored stage, so a re-run sweep never re-advances an
// already-recorded transition.
type MaintenanceSource interface {
	DueForStage(ctx context.Context, now time.Time, stage maintmodels.NoticeStage) ([]maintmodels.Window, error)
	AdvanceStage(ctx context.Context, id int64, stage maintmodels.NoticeStage) (bool, error)
}

// Audience lists everyone a maintenance notice goes to.
type Audience interface {
	AllUserIDs(ctx context.Context) ([]int64, error)
}

// Notifier delivers outbound messages, tolerating per-recipient failures.
type Notifier interface {
	Send(ctx context.Context, msg messaging.Outbound) error
	SendAll(ctx context.Context, msgs []messaging.Outbound) int
}

// WeatherSource enriches reminders with a forecast. Nil disables it.
type WeatherSource interface {
	Forecast(ctx context.Context, lat, lon float64, date time.Time) (*weather.Forecast, error)
}

type Config struct {
	// ReminderHour is the local hour the daily reminder sweep fires at.
	ReminderHour int
	// MaintenanceInterval between maintenance sweeps.
	MaintenanceInterval time.Duration
}

type Scheduler struct {
	ctx     context.Context
	cancel  context.CancelFunc
	hikes   HikeSource
	maint   MaintenanceSource
	users   Audience
	notify  Notifier
	weather WeatherSource
	cfg     Config
	log     zerolog.Logger
	wg      sync.WaitGroup

	mu              sync.Mutex
	lastReminderDay string // yyyy-mm-dd of the last completed reminder sweep
}

func New(hikes HikeSource, maint MaintenanceSource, users Audience, notify Notifier, ws WeatherSource, cfg Config) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	if cfg.MaintenanceInterval <= 0 {
		cfg.MaintenanceInterval = 15 * time.Minute
	}
	return &Scheduler{
		ctx:     ctx,
		cancel:  cancel,
		hikes:   hikes,
		maint:   maint,
		users:   users,
		notify:  notify,
		weather: ws,
		cfg:     cfg,
		log:     logger.With("scheduler"),
	}
}

func (s *Scheduler) Start() {
	s.wg.Add(2)

	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.maybeRunReminders(time.Now())
			}
		}
	}()

	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.cfg.MaintenanceInterval)
		defer ticker.Stop()
		// One sweep right away so a restart never delays a due notice by
		// a full interval.
		s.SweepMaintenance(time.Now())
		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.SweepMaintenance(time.Now())
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

// maybeRunReminders fires the reminder sweep once per day, at or after the
// configured hour.
func (s *Scheduler) maybeRunReminders(now time.Time) {
	if now.Hour() < s.cfg.ReminderHour {
		return
	}
	day := now.Format("2006-01-02")
	s.mu.Lock()
	if s.lastReminderDay == day {
		s.mu.Unlock()
		return
	}
	s.lastReminderDay = day
	s.mu.Unlock()

	s.SweepReminders(now)
}

// SweepReminders sends every reminder due today, per days-before mark.
func (s *Scheduler) SweepReminders(now time.Time) {
	for _, days := range reminderDays {
		items, err := s.hikes.DueReminders(s.ctx, now, days)
		if err != nil {
			s.log.Error().Err(err).Int("days_before", days).Msg("reminder query failed")
			continue
		}
		for _, item := range items {
			msg := messaging.Outbound{
				ChatID: item.TelegramID,
				Text:   s.reminderText(item, days),
			}
			if err := s.notify.Send(s.ctx, msg); err != nil {
				s.log.Error().Err(err).Int64("telegram_id", item.TelegramID).Int64("hike_id", item.HikeID).Msg("reminder delivery failed")
			}
		}
		if len(items) > 0 {
			s.log.Info().Int("count", len(items)).Int("days_before", days).Msg("reminders sent")
		}
	}
}

func (s *Scheduler) reminderText(item hikemodels.ReminderItem, days int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "⏰ Reminder: \"%s\" is in %d days, on %s!", item.HikeName, days, item.HikeDate.Format("02/01/2006"))
	if s.weather != nil {
		fc, err := s.weather.Forecast(s.ctx, item.Latitude, item.Longitude, item.HikeDate)
		if err != nil {
			s.log.Warn().Err(err).Int64("hike_id", item.HikeID).Msg("forecast unavailable")
		} else if fc != nil {
			b.WriteString("\n\n" + fc.Format())
		}
	}
	return b.String()
}

// SweepMaintenance broadcasts every due maintenance notice, then records
// the transition. Delivery comes first: a crash between broadcast and
// AdvanceStage leaves the window due, so the next sweep resends — delivery
// is at-least-once, stage advancement exactly once per transition.
func (s *Scheduler) SweepMaintenance(now time.Time) {
	for _, stage := range []maintmodels.NoticeStage{maintmodels.StageDayBefore, maintmodels.StageDayOf} {
		windows, err := s.maint.DueForStage(s.ctx, now, stage)
		if err != nil {
			s.log.Error().Err(err).Stringer("stage", stage).Msg("maintenance query failed")
			continue
		}
		for _, w := range windows {
			if !s.broadcastMaintenance(w, stage) {
				// Nothing went out; leave the stage untouched so the
				// next sweep retries the whole window.
				continue
			}
			if _, err := s.maint.AdvanceStage(s.ctx, w.ID, stage); err != nil {
				s.log.Error().Err(err).Int64("window_id", w.ID).Msg("stage advance failed")
			}
		}
	}
}

// broadcastMaintenance reports whether the notice reached anyone.
func (s *Scheduler) broadcastMaintenance(w maintmodels.Window, stage maintmodels.NoticeStage) bool {
	ids, err := s.users.AllUserIDs(s.ctx)
	if err != nil {
		s.log.Error().Err(err).Int64("window_id", w.ID).Msg("audience query failed")
		return false
	}

	text := maintenanceText(w, stage)
	msgs := make([]messaging.Outbound, 0, len(ids))
	for _, id := range ids {
		msgs = append(msgs, messaging.Outbound{ChatID: id, Text: text})
	}
	delivered := s.notify.SendAll(s.ctx, msgs)
	s.log.Info().
		Int64("window_id", w.ID).
		Stringer("stage", stage).
		Int("delivered", delivered).
		Int("audience", len(ids)).
		Msg("maintenance notice sent")
	return delivered > 0 || len(ids) == 0
}

func maintenanceText(w maintmodels.Window, stage maintmodels.NoticeStage) string {
	when := "tomorrow"
	if stage == maintmodels.StageDayOf {
		when = "today"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "🔧 Heads up: the bot will be under maintenance %s (%s) from %s to %s.",
		when, w.Date.Format("02/01/2006"), w.Start, w.End)
	if w.Reason != "" {
		b.WriteString("\nReason: " + w.Reason)
	}
	return b.String()
}
