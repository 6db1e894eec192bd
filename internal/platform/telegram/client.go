// Package telegram implements the messaging gateway over the Bot API with a
// plain HTTP client and a long-polling update loop.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "hiky-bot-backend/internal/common/errors"
	"hiky-bot-backend/internal/messaging"
)

const apiBase = "https://api.telegram.org/bot"

// deliveryTimeout bounds every outbound API call. The ad-hoc query timeout
// in the persistence layer is deliberately shorter than this.
const deliveryTimeout = 10 * time.Second

type Client struct {
	httpClient *http.Client
	token      string
}

func NewClient(token string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: deliveryTimeout},
		token:      token,
	}
}

// response is the Bot API envelope.
type response struct {
	Ok          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	Description string          `json:"description,omitempty"`
}

func (c *Client) call(ctx context.Context, method string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeGateway, "encode "+method)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiBase+c.token+"/"+method, bytes.NewReader(body))
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeGateway, "build "+method)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeGateway, method+" request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeGateway, "read "+method+" response")
	}
	var envelope response
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeGateway, "decode "+method+" response")
	}
	if !envelope.Ok {
		// Expired callbacks come back as a bad request mentioning an old
		// or invalid query id; the engine resolves these as a lost
		// conversation rather than a fault.
		if method == "answerCallbackQuery" {
			return apperrors.New(apperrors.ErrCodeStaleCallback, envelope.Description)
		}
		return apperrors.New(apperrors.ErrCodeGateway, fmt.Sprintf("%s: %s", method, envelope.Description))
	}
	if out != nil && envelope.Result != nil {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeGateway, "decode "+method+" result")
		}
	}
	return nil
}

type inlineButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data,omitempty"`
	URL          string `json:"url,omitempty"`
}

type inlineMarkup struct {
	InlineKeyboard [][]inlineButton `json:"inline_keyboard"`
}

func buildMarkup(rows [][]messaging.Button) *inlineMarkup {
	if len(rows) == 0 {
		return nil
	}
	markup := &inlineMarkup{}
	for _, row := range rows {
		var btns []inlineButton
		for _, b := range row {
			btns = append(btns, inlineButton{Text: b.Label, CallbackData: b.Data, URL: b.URL})
		}
		markup.InlineKeyboard = append(markup.InlineKeyboard, btns)
	}
	return markup
}

// Send delivers an outbound message, or edits an existing one when
// EditMessageID is set.
func (c *Client) Send(ctx context.Context, msg messaging.Outbound) error {
	payload := map[string]interface{}{
		"chat_id": msg.ChatID,
		"text":    msg.Text,
	}
	if msg.ParseMode != "" {
		payload["parse_mode"] = msg.ParseMode
	}
	if markup := buildMarkup(msg.Buttons); markup != nil {
		payload["reply_markup"] = markup
	}
	if msg.EditMessageID != 0 {
		payload["message_id"] = msg.EditMessageID
		return c.call(ctx, "editMessageText", payload, nil)
	}
	return c.call(ctx, "sendMessage", payload, nil)
}

// AckCallback answers a callback query so the client stops its spinner.
func (c *Client) AckCallback(ctx context.Context, callbackID string) error {
	return c.call(ctx, "answerCallbackQuery", map[string]interface{}{
		"callback_query_id": callbackID,
	}, nil)
}

// AckPreCheckout approves a pending checkout.
func (c *Client) AckPreCheckout(ctx context.Context, checkoutID string) error {
	return c.call(ctx, "answerPreCheckoutQuery", map[string]interface{}{
		"pre_checkout_query_id": checkoutID,
		"ok":                    true,
	}, nil)
}

// GetChatMember reports an actor's membership status in a chat.
func (c *Client) GetChatMember(ctx context.Context, chatID, userID int64) (string, error) {
	var member struct {
		Status string `json:"status"`
	}
	err := c.call(ctx, "getChatMember", map[string]interface{}{
		"chat_id": chatID,
		"user_id": userID,
	}, &member)
	if err != nil {
		return "", err
	}
	return member.Status, nil
}

// IsChatMember reports whether the actor currently belongs to the chat.
func (c *Client) IsChatMember(ctx context.Context, chatID, userID int64) (bool, error) {
	status, err := c.GetChatMember(ctx, chatID, userID)
	if err != nil {
		return false, err
	}
	switch status {
	case "creator", "administrator", "member", "restricted":
		return true, nil
	}
	return false, nil
}

// SendInvoice starts a payment for the given amount of Telegram Stars.
func (c *Client) SendInvoice(ctx context.Context, chatID int64, title, description string, amount int64) error {
	return c.call(ctx, "sendInvoice", map[string]interface{}{
		"chat_id":     chatID,
		"title":       title,
		"description": description,
		"payload":     fmt.Sprintf("donation_%d", amount),
		"currency":    "XTR",
		"prices":      []map[string]interface{}{{"label": title, "amount": amount}},
	}, nil)
}
