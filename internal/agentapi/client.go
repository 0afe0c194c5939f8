package agentapi

import (
	"context"

	"github.com/convotest/convotest/internal/auth"
	"github.com/convotest/convotest/internal/models"
)

// QueryRequest is one message sent into an agent session at a regional
// endpoint.
type QueryRequest struct {
	SessionID         string
	Endpoint          string
	AgentFullName     string
	Message           string
	LanguageCode      string
	SessionParameters map[string]string
	EnableWebhook     bool
	Credential        auth.Credential
}

// QueryResponse is the agent's reply. Raw carries the undecoded remote
// payload for storage alongside the result.
type QueryResponse struct {
	ReplyText      string
	ResponseTimeMs int64
	Raw            []byte
}

// Client speaks the remote conversational-agent API. Transport and remote
// 4xx/5xx failures surface as errors and are recorded per question by the
// engine.
type Client interface {
	Query(ctx context.Context, req QueryRequest) (QueryResponse, error)
}

// Directory lists the agents visible in one region. Used by discovery
// fan-out; one call per region, all sharing the operation's credential.
type Directory interface {
	ListAgents(ctx context.Context, endpoint, scope string, cred auth.Credential) ([]models.AgentSummary, error)
}
