// Package messaging defines the transport-neutral contract between the chat
// gateway and the conversation engine: inbound events tagged with the actor
// that produced them, and outbound messages with optional button layouts.
package messaging

import "context"

// EventKind discriminates the inbound event variants.
type EventKind int

const (
	// KindCommand is an explicit slash directive, valid in every state.
	KindCommand EventKind = iota
	// KindCallback is a button press, legal only in specific states.
	KindCallback
	// KindText is free-form text, legal only in specific states.
	KindText
	// KindPayment reports a completed payment on the transport.
	KindPayment
)

// Event is one inbound interaction from an actor.
type Event struct {
	Kind    EventKind
	ActorID int64
	ChatID  int64
	// Username is the actor's display handle, may be empty.
	Username string

	// Command without the leading slash, for KindCommand.
	Command string
	// Data is the callback payload for KindCallback.
	Data string
	// CallbackID identifies the callback for acknowledgment.
	CallbackID string
	// MessageID of the message the callback buttons are attached to.
	MessageID int
	// Text body for KindText.
	Text string
	// Amount in the smallest currency unit, for KindPayment.
	Amount int64
}

// Button is one inline keyboard button.
type Button struct {
	Label string
	Data  string
	URL   string
}

// Outbound is one message to deliver through the gateway.
type Outbound struct {
	ChatID int64
	Text   string
	// Buttons is a row-major inline keyboard layout, optional.
	Buttons [][]Button
	// ParseMode is the formatting mode ("Markdown", "HTML"), optional.
	ParseMode string
	// EditMessageID, when non-zero, replaces that message instead of
	// sending a new one.
	EditMessageID int
}

// Gateway is the transport the core depends on. Implementations must be safe
// for concurrent use.
type Gateway interface {
	// Send delivers an outbound message (or edit) to its chat.
	Send(ctx context.Context, msg Outbound) error
	// AckCallback acknowledges a callback so the client stops its
	// spinner. Acknowledging an expired or already-acknowledged callback
	// must return an error the caller can classify, never panic.
	AckCallback(ctx context.Context, callbackID string) error
	// AckPreCheckout approves a pending payment checkout.
	AckPreCheckout(ctx context.Context, checkoutID string) error
}

// Row builds one keyboard row from buttons.
func Row(buttons ...Button) []Button { return buttons }

// Btn builds a callback button.
func Btn(label, data string) Button { return Button{Label: label, Data: data} }

// LinkBtn builds a URL button.
func LinkBtn(label, url string) Button { return Button{Label: label, URL: url} }
