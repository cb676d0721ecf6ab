package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"gopkg.in/telebot.v3"
	"gopkg.in/yaml.v3"

	"github.com/flemzord/tgrelay/internal/bus"
	"github.com/flemzord/tgrelay/internal/channel"
	"github.com/flemzord/tgrelay/internal/core"
	"github.com/flemzord/tgrelay/internal/gateway"
	"github.com/flemzord/tgrelay/internal/security"
)

// Service names used by the module.
const (
	ServiceClient            = "protocol.client"
	serviceBus               = "bus"
	serviceWebhookDispatcher = "gateway.webhook_dispatcher"
	webhookSource            = "telegram"
)

func init() {
	core.RegisterModule(&Telegram{})
}

// Compile-time interface guards.
var (
	_ core.Configurable = (*Telegram)(nil)
	_ core.Provisioner  = (*Telegram)(nil)
	_ core.Validator    = (*Telegram)(nil)
	_ core.Starter      = (*Telegram)(nil)
	_ core.Stopper      = (*Telegram)(nil)
)

// Telegram is the Telegram Bot API protocol module.
type Telegram struct {
	config Config
	logger *slog.Logger
	appCtx *core.AppContext
	client *Client

	// httpClient overrides the transport used by telebot.
	httpClient *http.Client

	// Set during Start() depending on mode.
	bot             *telebot.Bot
	poller          *poller
	cancelRequests  context.CancelFunc
	webhookReceiver *WebhookReceiver
}

// ModuleInfo implements core.Module.
func (t *Telegram) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "channel.telegram",
		New: func() core.Module { return &Telegram{} },
	}
}

// Configure implements core.Configurable.
func (t *Telegram) Configure(node *yaml.Node) error {
	if err := node.Decode(&t.config); err != nil {
		return fmt.Errorf("telegram: decode config: %w", err)
	}
	t.config.defaults()
	return nil
}

// Provision implements core.Provisioner. It creates the protocol client and
// registers it as a service; the bot itself is created in Start.
func (t *Telegram) Provision(ctx *core.AppContext) error {
	t.config.defaults()
	t.appCtx = ctx
	t.logger = ctx.Logger

	events, err := core.ServiceAs[*bus.Bus](ctx, serviceBus)
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}

	if redactor, err := core.ServiceAs[*security.Redactor](ctx, security.ServiceName); err == nil {
		redactor.AddLiteral(t.config.Token)
		redactor.AddLiteral(t.config.WebhookSecret)
	}

	t.client = NewClient(ClientConfig{
		Logger:           t.logger,
		Events:           events,
		AllowList:        channel.NewAllowList(t.config.AllowUsers, t.config.AllowGroups),
		MaxMessageLength: t.config.MaxMessageLength,
		RateLimit:        t.config.RateLimit,
		RateBurst:        t.config.RateBurst,
		MaxMediaSize:     t.config.MaxMediaSize,
		MediaChunkSize:   t.config.MediaChunkSize,
	})
	ctx.RegisterService(ServiceClient, t.client)
	return nil
}

// Validate implements core.Validator.
func (t *Telegram) Validate() error {
	if t.config.Token == "" {
		return errors.New("telegram: token is required")
	}
	switch t.config.Mode {
	case "polling", "webhook":
	default:
		return fmt.Errorf("telegram: invalid mode %q (must be \"polling\" or \"webhook\")", t.config.Mode)
	}
	if t.config.Mode == "webhook" && t.config.WebhookURL == "" {
		return errors.New("telegram: webhook_url is required when mode is \"webhook\"")
	}
	if len(t.config.AllowUsers) == 0 && len(t.config.AllowGroups) == 0 {
		t.logger.Warn("telegram allow list is empty, every update will be dropped")
	}
	return t.config.validate()
}

// Start implements core.Starter. It authenticates the bot token, then
// starts either polling or webhook mode.
func (t *Telegram) Start() error {
	client, cancelRequests := newPollingClient(t.httpClient)
	t.cancelRequests = cancelRequests
	settings := telebot.Settings{
		Token:       t.config.Token,
		URL:         t.config.APIURL,
		Client:      client,
		Synchronous: true,
		OnError: func(err error, c telebot.Context) {
			attrs := []any{"error", err}
			if c != nil && c.Message() != nil {
				attrs = append(attrs, "message_id", c.Message().ID)
			}
			t.logger.Error("telegram update failed", attrs...)
		},
	}
	if t.config.Mode == "polling" {
		settings.Poller = &telebot.LongPoller{
			Timeout:        time.Duration(t.config.PollingTimeout) * time.Second,
			AllowedUpdates: t.config.AllowedUpdates,
		}
	}

	bot, err := telebot.NewBot(settings)
	if err != nil {
		cancelRequests()
		return fmt.Errorf("telegram: getMe failed (check token): %w", err)
	}
	t.bot = bot
	t.client.Attach(bot)
	t.logger.Info("telegram bot authenticated",
		"id", bot.Me.ID,
		"username", bot.Me.Username,
	)

	switch t.config.Mode {
	case "polling":
		// A webhook left behind by a previous run blocks getUpdates.
		if err := bot.RemoveWebhook(); err != nil {
			t.logger.Warn("telegram: failed to remove stale webhook", "error", err)
		}
		t.poller = startPoller(bot, cancelRequests)
		t.logger.Info("telegram polling started", "timeout", t.config.PollingTimeout)

	case "webhook":
		if t.config.WebhookSecret == "" {
			t.logger.Warn("telegram webhook running without secret_token, " +
				"consider setting webhook_secret for production deployments")
		}
		t.webhookReceiver = NewWebhookReceiver(bot, t.logger, t.config.WebhookSecret)
		if err := t.registerWebhook(); err != nil {
			return err
		}
		if err := bot.SetWebhook(&telebot.Webhook{
			Endpoint:       &telebot.WebhookEndpoint{PublicURL: t.config.WebhookURL},
			SecretToken:    t.config.WebhookSecret,
			AllowedUpdates: t.config.AllowedUpdates,
		}); err != nil {
			return fmt.Errorf("telegram: setWebhook failed: %w", err)
		}
		t.logger.Info("telegram webhook configured", "url", t.config.WebhookURL)
	}

	return nil
}

// registerWebhook resolves the gateway webhook dispatcher from the service
// registry and registers the WebhookReceiver as a handler.
func (t *Telegram) registerWebhook() error {
	dispatcher, err := core.ServiceAs[*gateway.WebhookDispatcher](t.appCtx, serviceWebhookDispatcher)
	if err != nil {
		return fmt.Errorf("telegram: %w (is the gateway module loaded?)", err)
	}

	// Telegram authenticates with its own secret header, checked by the
	// receiver, so no HMAC secret is registered.
	dispatcher.Register(webhookSource, t.webhookReceiver, "")
	return nil
}

// Stop implements core.Stopper.
func (t *Telegram) Stop(ctx context.Context) error {
	t.logger.Info("telegram channel stopping")

	switch {
	case t.poller != nil:
		if err := t.poller.Stop(ctx); err != nil {
			t.logger.Warn("telegram: poller did not stop in time", "error", err)
		}
		t.poller = nil
	case t.bot != nil && t.config.Mode == "webhook":
		if err := t.bot.RemoveWebhook(); err != nil {
			t.logger.Warn("telegram: failed to delete webhook on shutdown", "error", err)
		}
	}

	if t.cancelRequests != nil {
		t.cancelRequests()
	}
	if t.client != nil {
		t.client.Close()
	}
	return nil
}

// Client returns the protocol client.
func (t *Telegram) Client() *Client { return t.client }
