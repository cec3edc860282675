// Package mcpserver exposes the chat coordinator as Model Context Protocol
// tools over streamable HTTP, so MCP-capable clients can drive the same
// conversation the REST API and the console share.
package mcpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"

	"github.com/matiasleandrokruk/chatd/internal/domain/chat"
	"github.com/matiasleandrokruk/chatd/internal/infra/llm"
	"github.com/matiasleandrokruk/chatd/internal/version"
)

// Coordinator is the conversation surface the MCP tools consume.
type Coordinator interface {
	SendBlocking(ctx context.Context, text string) (*llm.ChatResponse, error)
	SwitchProvider(id string) error
	ProviderID() string
	ConversationID() string
	History() []chat.Turn
	ClearHistory() error
}

// ProviderLister is the factory surface the MCP tools consume.
type ProviderLister interface {
	ListProviders(ctx context.Context) []llm.ProviderStatus
}

// ChatArgs are the arguments of the chat tool.
type ChatArgs struct {
	Message string `json:"message"`
}

type chatPayload struct {
	Content        string          `json:"content"`
	ProviderID     string          `json:"provider_id"`
	ConversationID string          `json:"conversation_id"`
	Usage          *llm.TokenUsage `json:"usage,omitempty"`
}

// SwitchArgs are the arguments of the switch_provider tool.
type SwitchArgs struct {
	ProviderID string `json:"provider_id"`
}

type switchPayload struct {
	ProviderID     string `json:"provider_id"`
	ConversationID string `json:"conversation_id"`
}

type providerEntry struct {
	ID           string `json:"id"`
	DisplayName  string `json:"display_name"`
	Online       bool   `json:"online"`
	DefaultModel string `json:"default_model"`
	Available    bool   `json:"available"`
	Active       bool   `json:"active"`
}

type providersPayload struct {
	Providers []providerEntry `json:"providers"`
}

type historyTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	At      string `json:"at"`
}

type historyPayload struct {
	ConversationID string        `json:"conversation_id"`
	Turns          []historyTurn `json:"turns"`
}

type clearPayload struct {
	ConversationID string `json:"conversation_id"`
}

// emptyArgs is the argument struct for tools that take no input.
type emptyArgs struct{}

// NewServer builds an MCP server exposing the chat tools.
func NewServer(coordinator Coordinator, factory ProviderLister) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "chatd",
		Version: version.Version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "chat",
		Description: "Send a message to the active LLM provider and get the full reply",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input ChatArgs) (*mcp.CallToolResult, chatPayload, error) {
		if input.Message == "" {
			return errorResult("message is required"), chatPayload{}, nil
		}

		resp, err := coordinator.SendBlocking(ctx, input.Message)
		if err != nil {
			log.Warn().Err(err).Msg("mcp chat tool failed")
			return errorResult(err.Error()), chatPayload{}, nil
		}

		return textResult(resp.Content), chatPayload{
			Content:        resp.Content,
			ProviderID:     coordinator.ProviderID(),
			ConversationID: coordinator.ConversationID(),
			Usage:          resp.Usage,
		}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_providers",
		Description: "List the configured LLM providers with availability and the active one",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ emptyArgs) (*mcp.CallToolResult, providersPayload, error) {
		active := coordinator.ProviderID()
		statuses := factory.ListProviders(ctx)
		out := make([]providerEntry, 0, len(statuses))
		for _, s := range statuses {
			out = append(out, providerEntry{
				ID:           s.ID,
				DisplayName:  s.DisplayName,
				Online:       s.Online,
				DefaultModel: s.DefaultModel,
				Available:    s.Available,
				Active:       s.ID == active,
			})
		}
		return nil, providersPayload{Providers: out}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "switch_provider",
		Description: "Bind the conversation to a different LLM provider; the transcript carries over",
	}, func(_ context.Context, _ *mcp.CallToolRequest, input SwitchArgs) (*mcp.CallToolResult, switchPayload, error) {
		if input.ProviderID == "" {
			return errorResult("provider_id is required"), switchPayload{}, nil
		}
		if err := coordinator.SwitchProvider(input.ProviderID); err != nil {
			return errorResult(err.Error()), switchPayload{}, nil
		}
		return nil, switchPayload{
			ProviderID:     coordinator.ProviderID(),
			ConversationID: coordinator.ConversationID(),
		}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_history",
		Description: "Return the transcript of the active conversation, oldest first",
	}, func(_ context.Context, _ *mcp.CallToolRequest, _ emptyArgs) (*mcp.CallToolResult, historyPayload, error) {
		turns := coordinator.History()
		out := make([]historyTurn, 0, len(turns))
		for _, t := range turns {
			out = append(out, historyTurn{Role: t.Role, Content: t.Content, At: t.At.Format(time.RFC3339)})
		}
		return nil, historyPayload{ConversationID: coordinator.ConversationID(), Turns: out}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "clear_history",
		Description: "Reset the transcript and start a fresh conversation",
	}, func(_ context.Context, _ *mcp.CallToolRequest, _ emptyArgs) (*mcp.CallToolResult, clearPayload, error) {
		if err := coordinator.ClearHistory(); err != nil {
			return errorResult(err.Error()), clearPayload{}, nil
		}
		return nil, clearPayload{ConversationID: coordinator.ConversationID()}, nil
	})

	return server
}

// Handler wraps the MCP server in a stateless streamable HTTP handler.
func Handler(server *mcp.Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
		return server
	}, &mcp.StreamableHTTPOptions{Stateless: true})
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func errorResult(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: message}},
		IsError: true,
	}
}
