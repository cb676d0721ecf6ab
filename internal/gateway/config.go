package gateway

import (
	"errors"
	"fmt"
	"time"
)

// Config holds HTTP gateway configuration.
type Config struct {
	Bind            string                      `yaml:"bind"`
	Auth            AuthConfig                  `yaml:"auth"`
	Webhooks        map[string]WebhookSourceCfg `yaml:"webhooks"`
	WebSocket       WebSocketConfig             `yaml:"websocket"`
	MCP             MCPConfig                   `yaml:"mcp"`
	ReadTimeout     time.Duration               `yaml:"read_timeout"`
	WriteTimeout    time.Duration               `yaml:"write_timeout"`
	ShutdownTimeout time.Duration               `yaml:"shutdown_timeout"`
}

// defaults fills zero values with sensible defaults.
func (c *Config) defaults() {
	if c.Bind == "" {
		c.Bind = "127.0.0.1:8080"
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
	if c.WebSocket.MaxClients <= 0 {
		c.WebSocket.MaxClients = 32
	}
	if c.WebSocket.SendBuffer <= 0 {
		c.WebSocket.SendBuffer = 64
	}
	if c.WebSocket.PingInterval <= 0 {
		c.WebSocket.PingInterval = 30 * time.Second
	}
}

func (c *Config) validate() error {
	if c.MCP.enabled() && !c.Auth.IsConfigured() {
		return errors.New("gateway: mcp requires auth to be configured")
	}
	if c.WebSocket.SendBuffer > 4096 {
		return fmt.Errorf("gateway: websocket.send_buffer must be at most 4096, got %d", c.WebSocket.SendBuffer)
	}
	return nil
}

// AuthConfig configures authentication for API, websocket and MCP endpoints.
type AuthConfig struct {
	BearerToken string `yaml:"bearer_token"`
	BasicUser   string `yaml:"basic_user"`
	BasicPass   string `yaml:"basic_pass"`
}

// IsConfigured returns true if any auth method is configured.
func (a AuthConfig) IsConfigured() bool {
	return a.BearerToken != "" || (a.BasicUser != "" && a.BasicPass != "")
}

// WebhookSourceCfg holds per-source webhook configuration.
type WebhookSourceCfg struct {
	Secret string `yaml:"secret"`
}

// WebSocketConfig tunes the /ws client hub.
type WebSocketConfig struct {
	// MaxClients caps concurrent connections.
	MaxClients int `yaml:"max_clients"`

	// SendBuffer is the per-client queue of outbound events. A client
	// whose queue is full is disconnected.
	SendBuffer int `yaml:"send_buffer"`

	PingInterval time.Duration `yaml:"ping_interval"`
}

// MCPConfig toggles the /mcp endpoint.
type MCPConfig struct {
	Enabled *bool `yaml:"enabled"`
}

func (c MCPConfig) enabled() bool {
	return c.Enabled != nil && *c.Enabled
}
