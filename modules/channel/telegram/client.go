package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"

	"golang.org/x/time/rate"
	"gopkg.in/telebot.v3"

	"github.com/flemzord/tgrelay/internal/bus"
	"github.com/flemzord/tgrelay/internal/channel"
	"github.com/flemzord/tgrelay/internal/protocol"
)

const geoMIME = "application/geo+json"

// Sentinel errors.
var (
	ErrNotStarted       = errors.New("telegram: client not started")
	ErrEmptyMessage     = errors.New("telegram: message text is empty")
	ErrInvalidPeer      = errors.New("telegram: invalid peer")
	ErrUnknownMedia     = errors.New("telegram: no media for message")
	ErrUnsupportedMedia = errors.New("telegram: unsupported media type")
	ErrMediaTooLarge    = errors.New("telegram: media exceeds size limit")
)

// Publisher queues events on the notification bus.
type Publisher interface {
	Publish(e bus.Event) error
}

// ClientConfig holds the settings of a Client.
type ClientConfig struct {
	Logger    *slog.Logger
	Events    Publisher
	AllowList *channel.AllowList

	MaxMessageLength int
	RateLimit        float64
	RateBurst        int
	MaxMediaSize     int64
	MediaChunkSize   int
}

type mediaKey struct {
	peer string
	id   uint64
}

// Client implements protocol.Client on top of a telebot.Bot. It is usable
// once Attach has been called.
type Client struct {
	cfg     ClientConfig
	logger  *slog.Logger
	limiter *rate.Limiter
	roster  *Roster

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	bot    *telebot.Bot
	self   string
	selfID int64
	media  map[mediaKey]mediaRef
}

var _ protocol.Client = (*Client)(nil)

// NewClient creates a detached client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxMessageLength <= 0 {
		cfg.MaxMessageLength = MaxMessageLength
	}
	if cfg.MaxMediaSize <= 0 {
		cfg.MaxMediaSize = maxDownloadSize
	}
	if cfg.MediaChunkSize <= 0 {
		cfg.MediaChunkSize = defaultChunkSize
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 1
	}
	limit := rate.Limit(cfg.RateLimit)
	if cfg.RateLimit <= 0 {
		limit = rate.Inf
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		cfg:     cfg,
		logger:  cfg.Logger,
		limiter: rate.NewLimiter(limit, cfg.RateBurst),
		roster:  NewRoster(),
		ctx:     ctx,
		cancel:  cancel,
		media:   make(map[mediaKey]mediaRef),
	}
}

// Attach binds the client to an authenticated bot and registers the update
// handlers.
func (c *Client) Attach(bot *telebot.Bot) {
	c.mu.Lock()
	c.bot = bot
	if bot.Me != nil {
		c.selfID = bot.Me.ID
		c.self = protocol.UserIdentifier(bot.Me.ID)
	}
	c.mu.Unlock()

	for _, endpoint := range []string{
		telebot.OnText,
		telebot.OnPhoto,
		telebot.OnAudio,
		telebot.OnVoice,
		telebot.OnAnimation,
		telebot.OnVideo,
		telebot.OnVideoNote,
		telebot.OnDocument,
		telebot.OnSticker,
		telebot.OnLocation,
		telebot.OnContact,
		telebot.OnUserJoined,
		telebot.OnUserLeft,
		telebot.OnNewGroupTitle,
	} {
		bot.Handle(endpoint, c.onUpdate)
	}
}

// Close stops pending media downloads.
func (c *Client) Close() {
	c.cancel()
	c.wg.Wait()
}

// Roster returns the group roster tracker.
func (c *Client) Roster() *Roster { return c.roster }

func (c *Client) onUpdate(tc telebot.Context) error {
	c.HandleMessage(tc.Message())
	return nil
}

// HandleMessage converts an inbound Bot API message and publishes the
// resulting events. Roster changes are published before the message.
func (c *Client) HandleMessage(m *telebot.Message) {
	if m == nil || m.Chat == nil {
		return
	}

	peer := peerIdentifier(m.Chat)
	sender := senderIdentifier(m)
	if !c.cfg.AllowList.IsAllowed(sender, peer) {
		c.logger.Debug("update denied by allow list",
			"message_id", m.ID,
			"sender", sender,
			"peer", peer,
		)
		return
	}

	if ev, changed := c.roster.Observe(m); changed {
		c.publish(ev)
	}

	c.mu.RLock()
	selfID := c.selfID
	c.mu.RUnlock()

	msg, ref, ok := convertMessage(m, selfID)
	if !ok {
		return
	}
	if !msg.IsText() {
		c.mu.Lock()
		c.media[mediaKey{peer: msg.Peer, id: msg.ID}] = ref
		c.mu.Unlock()
	}

	c.publish(protocol.MessageReceivedEvent{Message: msg})
}

// SendMessage implements protocol.Client. Text longer than the configured
// maximum is sent as several messages; the id of the last one is returned.
func (c *Client) SendMessage(ctx context.Context, peer, text string) (uint64, error) {
	if text == "" {
		return 0, ErrEmptyMessage
	}
	bot, err := c.currentBot()
	if err != nil {
		return 0, err
	}
	to, err := recipient(peer)
	if err != nil {
		return 0, err
	}

	var last *telebot.Message
	for _, part := range channel.SplitText(text, c.cfg.MaxMessageLength) {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, fmt.Errorf("telegram: rate limit wait: %w", err)
		}
		last, err = bot.Send(to, part)
		if err != nil {
			return 0, fmt.Errorf("telegram: send to %s: %w", peer, err)
		}
	}

	id := uint64(last.ID)
	c.publish(protocol.DeliveryStatusEvent{Peer: peer, MessageID: id, Status: protocol.DeliveryStatusSent})
	return id, nil
}

// SetMessageRead implements protocol.Client. Bots cannot mark messages as
// read, so this only validates the peer.
func (c *Client) SetMessageRead(_ context.Context, peer string, _ uint64) error {
	_, err := recipient(peer)
	return err
}

// SetTyping implements protocol.Client. Bot API chat actions expire on
// their own, so TypingNone sends nothing.
func (c *Client) SetTyping(ctx context.Context, peer string, action protocol.TypingAction) error {
	if action != protocol.TypingTyping {
		return nil
	}
	bot, err := c.currentBot()
	if err != nil {
		return err
	}
	to, err := recipient(peer)
	if err != nil {
		return err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("telegram: rate limit wait: %w", err)
	}
	if err := bot.Notify(to, telebot.Typing); err != nil {
		return fmt.Errorf("telegram: typing in %s: %w", peer, err)
	}
	return nil
}

// ChatInfo implements protocol.Client. Chats not seen yet are fetched from
// the API and seeded with their administrators.
func (c *Client) ChatInfo(_ context.Context, chatID int64) (protocol.GroupChat, bool) {
	if info, ok := c.roster.Chat(chatID); ok {
		return info, true
	}

	bot, err := c.currentBot()
	if err != nil {
		return protocol.GroupChat{}, false
	}
	chat, err := bot.ChatByID(chatID)
	if err != nil {
		c.logger.Debug("chat lookup failed", "chat_id", chatID, "error", err)
		return protocol.GroupChat{}, false
	}

	var members []string
	admins, err := bot.AdminsOf(chat)
	if err != nil {
		c.logger.Debug("admin lookup failed", "chat_id", chatID, "error", err)
	}
	for _, a := range admins {
		if a.User != nil {
			members = append(members, protocol.UserIdentifier(a.User.ID))
		}
	}

	c.roster.Seed(chatID, chat.Title, members)
	return c.roster.Chat(chatID)
}

// SelfIdentifier implements protocol.Client.
func (c *Client) SelfIdentifier() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.self
}

// RequestMediaData implements protocol.Client. The file is resolved before
// returning so that API errors reach the caller; the download and the chunk
// events happen in the background.
func (c *Client) RequestMediaData(_ context.Context, peer string, id uint64) error {
	key := mediaKey{peer: peer, id: id}

	c.mu.Lock()
	ref, ok := c.media[key]
	delete(c.media, key)
	bot := c.bot
	c.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s/%d", ErrUnknownMedia, peer, id)
	}

	switch ref.typ {
	case protocol.MessageTypeGeo:
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.publishChunks(peer, id, ref, geoJSON(ref.lat, ref.lng))
		}()
		return nil
	case protocol.MessageTypeUnsupported, protocol.MessageTypeText:
		return fmt.Errorf("%w: %s", ErrUnsupportedMedia, ref.typ)
	}

	if bot == nil {
		return ErrNotStarted
	}
	if ref.size > c.cfg.MaxMediaSize {
		return fmt.Errorf("%w: %d bytes", ErrMediaTooLarge, ref.size)
	}
	if err := c.limiter.Wait(c.ctx); err != nil {
		return fmt.Errorf("telegram: rate limit wait: %w", err)
	}
	file, err := bot.FileByID(ref.fileID)
	if err != nil {
		return fmt.Errorf("telegram: resolve file %s: %w", ref.fileID, err)
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		data, err := c.download(bot, &file)
		if err != nil {
			c.logger.Warn("media download failed",
				"peer", peer,
				"message_id", id,
				"error", err,
			)
			return
		}
		c.publishChunks(peer, id, ref, data)
	}()
	return nil
}

func (c *Client) download(bot *telebot.Bot, file *telebot.File) ([]byte, error) {
	if c.ctx.Err() != nil {
		return nil, c.ctx.Err()
	}
	rc, err := bot.File(file)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, c.cfg.MaxMediaSize+1))
	if err != nil {
		return nil, fmt.Errorf("telegram: read file: %w", err)
	}
	if int64(len(data)) > c.cfg.MaxMediaSize {
		return nil, ErrMediaTooLarge
	}
	return data, nil
}

// publishChunks splits data into chunk events. Empty payloads produce a
// single empty chunk so that the receiver still completes.
func (c *Client) publishChunks(peer string, id uint64, ref mediaRef, data []byte) {
	size := int64(len(data))
	offset := 0
	for {
		end := min(offset+c.cfg.MediaChunkSize, len(data))
		c.publish(protocol.MediaChunkEvent{
			Peer:         peer,
			MessageID:    id,
			Data:         data[offset:end],
			MimeType:     ref.mimeType,
			DeclaredType: ref.typ,
			Offset:       int64(offset),
			DeclaredSize: size,
		})
		offset = end
		if offset >= len(data) || c.ctx.Err() != nil {
			return
		}
	}
}

func (c *Client) publish(e bus.Event) {
	if c.cfg.Events == nil {
		return
	}
	if err := c.cfg.Events.Publish(e); err != nil {
		c.logger.Warn("publish event failed", "topic", e.Topic(), "error", err)
	}
}

func (c *Client) currentBot() (*telebot.Bot, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.bot == nil {
		return nil, ErrNotStarted
	}
	return c.bot, nil
}

// recipient converts a peer identifier to a chat the bot can address.
func recipient(peer string) (*telebot.Chat, error) {
	if id, ok := protocol.IdentifierToUserID(peer); ok {
		return &telebot.Chat{ID: id}, nil
	}
	if id, ok := protocol.IdentifierToChatID(peer); ok {
		return &telebot.Chat{ID: id}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidPeer, peer)
}

func geoJSON(lat, lng float64) []byte {
	return []byte(`{"type":"Point","coordinates":[` +
		strconv.FormatFloat(lng, 'f', -1, 32) + `,` +
		strconv.FormatFloat(lat, 'f', -1, 32) + `]}`)
}
