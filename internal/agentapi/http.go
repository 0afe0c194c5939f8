package agentapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/convotest/convotest/internal/auth"
	"github.com/convotest/convotest/internal/models"
)

// ErrPermissionDenied marks a 401/403 from a regional endpoint.
var ErrPermissionDenied = errors.New("permission denied by agent API")

// HTTPClient implements Client and Directory over the agent platform's REST
// surface.
type HTTPClient struct {
	httpClient *http.Client
	logger     *zerolog.Logger
}

func NewHTTPClient(logger *zerolog.Logger) *HTTPClient {
	return &HTTPClient{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger,
	}
}

type queryPayload struct {
	Message           string            `json:"message"`
	LanguageCode      string            `json:"language_code"`
	SessionParameters map[string]string `json:"session_parameters,omitempty"`
	EnableWebhook     bool              `json:"enable_webhook"`
}

type queryReply struct {
	ReplyText string `json:"reply_text"`
}

func (c *HTTPClient) Query(ctx context.Context, req QueryRequest) (QueryResponse, error) {
	language := req.LanguageCode
	if language == "" {
		language = "en"
	}

	body, err := json.Marshal(queryPayload{
		Message:           req.Message,
		LanguageCode:      language,
		SessionParameters: req.SessionParameters,
		EnableWebhook:     req.EnableWebhook,
	})
	if err != nil {
		return QueryResponse{}, fmt.Errorf("failed to encode query payload: %w", err)
	}

	url := fmt.Sprintf("%s/v1/%s/sessions/%s:query",
		strings.TrimSuffix(req.Endpoint, "/"), req.AgentFullName, req.SessionID)

	start := time.Now()
	raw, err := c.do(ctx, http.MethodPost, url, req.Credential, bytes.NewReader(body))
	if err != nil {
		return QueryResponse{}, err
	}
	elapsed := time.Since(start).Milliseconds()

	var reply queryReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return QueryResponse{}, fmt.Errorf("failed to decode agent reply: %w", err)
	}

	c.logger.Debug().
		Str("session_id", req.SessionID).
		Int64("response_time_ms", elapsed).
		Msg("Agent query complete")

	return QueryResponse{
		ReplyText:      reply.ReplyText,
		ResponseTimeMs: elapsed,
		Raw:            raw,
	}, nil
}

type listAgentsReply struct {
	Agents []struct {
		ID          string `json:"id"`
		FullName    string `json:"full_name"`
		DisplayName string `json:"display_name"`
	} `json:"agents"`
}

func (c *HTTPClient) ListAgents(ctx context.Context, endpoint, scope string, cred auth.Credential) ([]models.AgentSummary, error) {
	url := fmt.Sprintf("%s/v1/scopes/%s/agents", strings.TrimSuffix(endpoint, "/"), scope)

	raw, err := c.do(ctx, http.MethodGet, url, cred, nil)
	if err != nil {
		return nil, err
	}

	var reply listAgentsReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return nil, fmt.Errorf("failed to decode agent listing: %w", err)
	}

	agents := make([]models.AgentSummary, 0, len(reply.Agents))
	for _, a := range reply.Agents {
		agents = append(agents, models.AgentSummary{
			ID:          a.ID,
			FullName:    a.FullName,
			DisplayName: a.DisplayName,
		})
	}
	return agents, nil
}

func (c *HTTPClient) do(ctx context.Context, method, url string, cred auth.Credential, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+cred.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("agent API request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read agent API response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: status %d", ErrPermissionDenied, resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("agent API returned status %d: %s", resp.StatusCode, truncate(raw, 200))
	}

	return raw, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
