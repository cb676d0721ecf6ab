package telegram

import (
	"fmt"
	"net/url"
	"regexp"
)

// tokenPattern matches the Telegram bot token format: <digits>:<alphanum+dash>.
var tokenPattern = regexp.MustCompile(`^\d+:[A-Za-z0-9_-]+$`)

const (
	// MaxMessageLength is the Bot API limit for one text message.
	MaxMessageLength = 4096

	// Bot API downloads are capped at 20 MiB.
	maxDownloadSize = 20 << 20

	defaultChunkSize = 64 << 10
)

// Config holds the Telegram channel configuration.
type Config struct {
	Token          string   `yaml:"token"`
	Mode           string   `yaml:"mode"`
	PollingTimeout int      `yaml:"polling_timeout"`
	WebhookURL     string   `yaml:"webhook_url"`
	WebhookSecret  string   `yaml:"webhook_secret"`
	AllowedUpdates []string `yaml:"allowed_updates"`
	AllowUsers     []string `yaml:"allow_users"`
	AllowGroups    []string `yaml:"allow_groups"`
	APIURL         string   `yaml:"api_url"`

	MaxMessageLength int `yaml:"max_message_length"`

	// RateLimit is the sustained number of outgoing API calls per second.
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`

	MaxMediaSize   int64 `yaml:"max_media_size"`
	MediaChunkSize int   `yaml:"media_chunk_size"`
}

// defaults applies default values to unset fields.
func (c *Config) defaults() {
	if c.Mode == "" {
		c.Mode = "polling"
	}
	if c.PollingTimeout == 0 {
		c.PollingTimeout = 30
	}
	if c.AllowedUpdates == nil {
		c.AllowedUpdates = []string{"message"}
	}
	if c.MaxMessageLength == 0 {
		c.MaxMessageLength = MaxMessageLength
	}
	if c.APIURL == "" {
		c.APIURL = "https://api.telegram.org"
	}
	if c.RateLimit == 0 {
		c.RateLimit = 1
	}
	if c.RateBurst == 0 {
		c.RateBurst = 5
	}
	if c.MaxMediaSize == 0 {
		c.MaxMediaSize = maxDownloadSize
	}
	if c.MediaChunkSize == 0 {
		c.MediaChunkSize = defaultChunkSize
	}
}

// validate checks configuration field constraints beyond basic presence checks.
// It is called from Telegram.Validate after defaults have been applied.
func (c *Config) validate() error {
	if c.Token != "" && !tokenPattern.MatchString(c.Token) {
		return fmt.Errorf("telegram: token format invalid (expected <bot_id>:<hash>)")
	}

	if c.APIURL != "" {
		u, err := url.Parse(c.APIURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("telegram: api_url must be a valid http/https URL, got %q", c.APIURL)
		}
	}

	if c.PollingTimeout < 0 || c.PollingTimeout > 50 {
		return fmt.Errorf("telegram: polling_timeout must be 0-50, got %d", c.PollingTimeout)
	}

	if c.MaxMessageLength < 1 || c.MaxMessageLength > MaxMessageLength {
		return fmt.Errorf("telegram: max_message_length must be 1-%d, got %d", MaxMessageLength, c.MaxMessageLength)
	}

	if c.RateLimit < 0 || c.RateBurst < 1 {
		return fmt.Errorf("telegram: rate_limit must be >= 0 and rate_burst >= 1, got %g/%d", c.RateLimit, c.RateBurst)
	}

	if c.MaxMediaSize < 1 || c.MaxMediaSize > maxDownloadSize {
		return fmt.Errorf("telegram: max_media_size must be 1-%d bytes, got %d", maxDownloadSize, c.MaxMediaSize)
	}

	if c.MediaChunkSize < 1 {
		return fmt.Errorf("telegram: media_chunk_size must be positive, got %d", c.MediaChunkSize)
	}

	return nil
}
