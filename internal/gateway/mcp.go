package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/flemzord/tgrelay/pkg/message"
)

// mcpServerName and mcpServerVersion identify the MCP server to clients.
const (
	mcpServerName    = "tgrelay"
	mcpServerVersion = "1"
)

// newMCPHandler exposes send_message and list_messages as MCP tools over
// streamable HTTP.
func (g *Gateway) newMCPHandler() http.Handler {
	s := server.NewMCPServer(mcpServerName, mcpServerVersion, server.WithToolCapabilities(false))

	s.AddTool(mcp.NewTool("send_message",
		mcp.WithDescription("Send a text message to a Telegram chat through the relay."),
		mcp.WithString("channel", mcp.Required(),
			mcp.Description(`Target identifier: "user<ID>" for a direct chat, "chat-<ID>" for a group.`)),
		mcp.WithString("text", mcp.Required(), mcp.Description("Message text.")),
	), g.mcpSendMessage)

	s.AddTool(mcp.NewTool("list_messages",
		mcp.WithDescription("List the most recent logged messages of a channel, oldest first."),
		mcp.WithString("channel", mcp.Required(), mcp.Description("Channel identifier.")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of messages (default 50).")),
	), g.mcpListMessages)

	s.AddTool(mcp.NewTool("list_channels",
		mcp.WithDescription("List the open channels with their members and pending media."),
	), g.mcpListChannels)

	return server.NewStreamableHTTPServer(s, server.WithStateLess(true))
}

func (g *Gateway) mcpSendMessage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	target, err := req.RequireString("channel")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	rel, err := g.relays.EnsureChannel(ctx, target)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("open channel", err), nil
	}
	token, err := rel.Channel().SendMessage(ctx, []message.Part{message.NewTextPart(text)})
	if err != nil {
		return mcp.NewToolResultErrorFromErr("send failed", err), nil
	}
	return mcp.NewToolResultJSON(SendMessageResult{Token: token})
}

func (g *Gateway) mcpListMessages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if g.history == nil {
		return mcp.NewToolResultError("message log not enabled"), nil
	}
	target, err := req.RequireString("channel")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	limit := req.GetInt("limit", defaultHistoryLimit)
	if limit <= 0 {
		return mcp.NewToolResultError("limit must be positive"), nil
	}

	records, err := g.history.List(ctx, target, min(limit, maxHistoryLimit))
	if err != nil {
		return nil, fmt.Errorf("gateway: list messages: %w", err)
	}
	return mcp.NewToolResultJSON(map[string]any{"messages": records})
}

func (g *Gateway) mcpListChannels(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out := []channelJSON{}
	for _, target := range g.relays.Channels() {
		if r, ok := g.relays.Channel(target); ok {
			out = append(out, viewChannel(r))
		}
	}
	return mcp.NewToolResultJSON(map[string]any{"channels": out})
}
