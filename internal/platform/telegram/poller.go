package telegram

import (
	"context"
	"strings"
	"sync"
	"time"

	"hiky-bot-backend/internal/common/logger"
	"hiky-bot-backend/internal/messaging"
)

// update is the subset of the Bot API update object the core consumes.
type update struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		MessageID int `json:"message_id"`
		From      *struct {
			ID       int64  `json:"id"`
			Username string `json:"username"`
		} `json:"from"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		Text              string `json:"text"`
		SuccessfulPayment *struct {
			TotalAmount int64 `json:"total_amount"`
		} `json:"successful_payment"`
	} `json:"message"`
	CallbackQuery *struct {
		ID   string `json:"id"`
		From struct {
			ID       int64  `json:"id"`
			Username string `json:"username"`
		} `json:"from"`
		Message *struct {
			MessageID int `json:"message_id"`
			Chat      struct {
				ID int64 `json:"id"`
			} `json:"chat"`
		} `json:"message"`
		Data string `json:"data"`
	} `json:"callback_query"`
	PreCheckoutQuery *struct {
		ID   string `json:"id"`
		From struct {
			ID int64 `json:"id"`
		} `json:"from"`
	} `json:"pre_checkout_query"`
}

// Poller long-polls getUpdates and hands decoded events to the handler.
type Poller struct {
	client      *Client
	pollTimeout int
	handler     func(context.Context, messaging.Event)
}

func NewPoller(client *Client, pollTimeoutSecs int, handler func(context.Context, messaging.Event)) *Poller {
	return &Poller{client: client, pollTimeout: pollTimeoutSecs, handler: handler}
}

const (
	dispatchWorkers    = 16
	dispatchQueueDepth = 64
)

// dispatcher fans events out over a fixed set of serial queues. An actor
// always lands on the same queue, so its events are handled in arrival
// order, while a slow handler for one actor never stalls the others.
type dispatcher struct {
	queues []chan messaging.Event
	wg     sync.WaitGroup
}

func newDispatcher(ctx context.Context, workers, depth int, handler func(context.Context, messaging.Event)) *dispatcher {
	d := &dispatcher{queues: make([]chan messaging.Event, workers)}
	for i := range d.queues {
		q := make(chan messaging.Event, depth)
		d.queues[i] = q
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for ev := range q {
				handler(ctx, ev)
			}
		}()
	}
	return d
}

func (d *dispatcher) dispatch(ev messaging.Event) {
	d.queues[int(uint64(ev.ActorID)%uint64(len(d.queues)))] <- ev
}

// stop drains the queues and waits for in-flight handlers.
func (d *dispatcher) stop() {
	for _, q := range d.queues {
		close(q)
	}
	d.wg.Wait()
}

// Run polls until the context is cancelled. Pre-checkout queries are
// acknowledged inline; everything else becomes an Event.
func (p *Poller) Run(ctx context.Context) {
	log := logger.With("telegram-poller")
	var offset int64

	// Long-poll requests need room beyond the poll window itself.
	hc := *p.client.httpClient
	hc.Timeout = time.Duration(p.pollTimeout+10) * time.Second
	pollClient := &Client{httpClient: &hc, token: p.client.token}

	d := newDispatcher(ctx, dispatchWorkers, dispatchQueueDepth, p.handler)
	defer d.stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Poller stopped")
			return
		default:
		}

		var updates []update
		err := pollClient.call(ctx, "getUpdates", map[string]interface{}{
			"offset":          offset,
			"timeout":         p.pollTimeout,
			"allowed_updates": []string{"message", "callback_query", "pre_checkout_query"},
		}, &updates)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Msg("getUpdates failed")
			time.Sleep(time.Second)
			continue
		}

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			if u.PreCheckoutQuery != nil {
				if err := p.client.AckPreCheckout(ctx, u.PreCheckoutQuery.ID); err != nil {
					log.Error().Err(err).Msg("Failed to approve pre-checkout")
				}
				continue
			}
			if ev, ok := decode(u); ok {
				d.dispatch(ev)
			}
		}
	}
}

func decode(u update) (messaging.Event, bool) {
	switch {
	case u.CallbackQuery != nil:
		cq := u.CallbackQuery
		ev := messaging.Event{
			Kind:       messaging.KindCallback,
			ActorID:    cq.From.ID,
			Username:   cq.From.Username,
			Data:       cq.Data,
			CallbackID: cq.ID,
		}
		if cq.Message != nil {
			ev.ChatID = cq.Message.Chat.ID
			ev.MessageID = cq.Message.MessageID
		} else {
			ev.ChatID = cq.From.ID
		}
		return ev, true

	case u.Message != nil && u.Message.From != nil:
		m := u.Message
		ev := messaging.Event{
			ActorID:   m.From.ID,
			Username:  m.From.Username,
			ChatID:    m.Chat.ID,
			MessageID: m.MessageID,
		}
		switch {
		case m.SuccessfulPayment != nil:
			ev.Kind = messaging.KindPayment
			ev.Amount = m.SuccessfulPayment.TotalAmount
		case strings.HasPrefix(m.Text, "/"):
			ev.Kind = messaging.KindCommand
			cmd := strings.TrimPrefix(strings.Fields(m.Text)[0], "/")
			// Commands may be addressed as /cmd@botname in groups.
			if at := strings.IndexByte(cmd, '@'); at >= 0 {
				cmd = cmd[:at]
			}
			ev.Command = strings.ToLower(cmd)
		default:
			ev.Kind = messaging.KindText
			ev.Text = m.Text
		}
		return ev, true
	}
	return messaging.Event{}, false
}
