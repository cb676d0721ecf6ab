package telegram

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"gopkg.in/telebot.v3"
)

// secretHeader carries the secret_token registered with setWebhook.
const secretHeader = "X-Telegram-Bot-Api-Secret-Token"

// ErrInvalidSecret is returned for webhook calls without the expected
// secret token.
var ErrInvalidSecret = errors.New("telegram: invalid webhook secret token")

// UpdateProcessor runs the handlers registered for an update.
// *telebot.Bot implements it.
type UpdateProcessor interface {
	ProcessUpdate(u telebot.Update)
}

// WebhookReceiver processes incoming Telegram webhook payloads.
// It implements gateway.WebhookHandler.
type WebhookReceiver struct {
	processor UpdateProcessor
	logger    *slog.Logger
	secret    string
}

// NewWebhookReceiver creates a new WebhookReceiver.
func NewWebhookReceiver(processor UpdateProcessor, logger *slog.Logger, secret string) *WebhookReceiver {
	return &WebhookReceiver{processor: processor, logger: logger, secret: secret}
}

// HandleWebhook validates the Telegram secret token header, decodes the
// update and hands it to the bot.
func (w *WebhookReceiver) HandleWebhook(_ context.Context, _ string, body []byte, headers http.Header) error {
	if w.secret != "" {
		token := headers.Get(secretHeader)
		if subtle.ConstantTimeCompare([]byte(w.secret), []byte(token)) != 1 {
			return ErrInvalidSecret
		}
	}

	var update telebot.Update
	if err := json.Unmarshal(body, &update); err != nil {
		return fmt.Errorf("telegram: invalid update JSON: %w", err)
	}

	w.logger.Debug("webhook update", "update_id", update.ID)
	w.processor.ProcessUpdate(update)
	return nil
}
