package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/emicklei/go-restful/v3"
	"github.com/rs/zerolog"

	"github.com/convotest/convotest/internal/api/middleware"
	"github.com/convotest/convotest/internal/discovery"
	"github.com/convotest/convotest/internal/engine"
	"github.com/convotest/convotest/internal/models"
	"github.com/convotest/convotest/internal/store"
)

type Handler struct {
	engine        *engine.Engine
	runs          store.RunStore
	coordinator   *discovery.Coordinator
	defaultParams []models.EvaluationParameter
	logger        *zerolog.Logger
}

func NewHandler(
	eng *engine.Engine,
	runs store.RunStore,
	coordinator *discovery.Coordinator,
	defaultParams []models.EvaluationParameter,
	logger *zerolog.Logger,
) *Handler {
	return &Handler{
		engine:        eng,
		runs:          runs,
		coordinator:   coordinator,
		defaultParams: defaultParams,
		logger:        logger,
	}
}

type StartRunRequest struct {
	AgentID            string                       `json:"agent_id"`
	Principal          string                       `json:"principal"`
	Scope              string                       `json:"scope"`
	Questions          []models.Question            `json:"questions"`
	Parameters         []models.EvaluationParameter `json:"parameters,omitempty"`
	Concurrency        int                          `json:"concurrency,omitempty"`
	PrePromptMessages  []string                     `json:"pre_prompt_messages,omitempty"`
	PostPromptMessages []string                     `json:"post_prompt_messages,omitempty"`
	SessionParameters  map[string]string            `json:"session_parameters,omitempty"`
	LanguageCode       string                       `json:"language_code,omitempty"`
	EnableWebhook      bool                         `json:"enable_webhook,omitempty"`
}

type StartRunResponse struct {
	RunID string `json:"run_id"`
}

type AgentsResponse struct {
	Agents []models.AgentSummary `json:"agents"`
}

type ResultsResponse struct {
	RunID   string              `json:"run_id"`
	Results []models.TestResult `json:"results"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// POST /api/v1/runs
func (h *Handler) StartRun(req *restful.Request, resp *restful.Response) {
	var startReq StartRunRequest
	if err := req.ReadEntity(&startReq); err != nil {
		h.logger.Error().Err(err).Msg("Failed to parse request body")
		middleware.HandleError(resp, err, http.StatusBadRequest)
		return
	}

	params := startReq.Parameters
	if len(params) == 0 {
		params = h.defaultParams
	}

	runID, err := h.engine.Start(req.Request.Context(), engine.RunSpec{
		AgentID:            startReq.AgentID,
		Principal:          startReq.Principal,
		Scope:              startReq.Scope,
		Questions:          startReq.Questions,
		Parameters:         params,
		Concurrency:        startReq.Concurrency,
		PrePromptMessages:  startReq.PrePromptMessages,
		PostPromptMessages: startReq.PostPromptMessages,
		SessionParameters:  startReq.SessionParameters,
		LanguageCode:       startReq.LanguageCode,
		EnableWebhook:      startReq.EnableWebhook,
	})
	if err != nil {
		h.logger.Error().Err(err).Str("agent_id", startReq.AgentID).Msg("Failed to start run")
		middleware.HandleError(resp, err, http.StatusBadRequest)
		return
	}

	h.logger.Info().
		Str("run_id", runID).
		Str("agent_id", startReq.AgentID).
		Int("questions", len(startReq.Questions)).
		Msg("Run accepted")

	resp.WriteHeaderAndEntity(http.StatusAccepted, StartRunResponse{RunID: runID})
}

// POST /api/v1/runs/{run_id}/cancel
func (h *Handler) CancelRun(req *restful.Request, resp *restful.Response) {
	runID := req.PathParameter("run_id")

	if err := h.engine.Cancel(req.Request.Context(), runID); err != nil {
		if errors.Is(err, engine.ErrRunNotFound) {
			middleware.HandleError(resp, err, http.StatusNotFound)
			return
		}
		h.logger.Error().Err(err).Str("run_id", runID).Msg("Failed to cancel run")
		middleware.HandleError(resp, err, http.StatusInternalServerError)
		return
	}

	resp.WriteHeader(http.StatusNoContent)
}

// GET /api/v1/runs/{run_id}/progress
func (h *Handler) Progress(req *restful.Request, resp *restful.Response) {
	runID := req.PathParameter("run_id")

	progress, err := h.runs.GetProgress(req.Request.Context(), runID)
	if err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			middleware.HandleError(resp, err, http.StatusNotFound)
			return
		}
		h.logger.Error().Err(err).Str("run_id", runID).Msg("Failed to fetch progress")
		middleware.HandleError(resp, err, http.StatusInternalServerError)
		return
	}

	resp.WriteHeaderAndEntity(http.StatusOK, progress)
}

// GET /api/v1/runs/{run_id}/results?skip=N
func (h *Handler) Results(req *restful.Request, resp *restful.Response) {
	runID := req.PathParameter("run_id")

	skip := 0
	if skipStr := req.QueryParameter("skip"); skipStr != "" {
		parsed, err := strconv.Atoi(skipStr)
		if err != nil || parsed < 0 {
			h.logger.Warn().Str("skip", skipStr).Msg("Invalid skip parameter, using 0")
		} else {
			skip = parsed
		}
	}

	results, err := h.runs.ListResults(req.Request.Context(), runID, skip)
	if err != nil {
		h.logger.Error().Err(err).Str("run_id", runID).Msg("Failed to list results")
		middleware.HandleError(resp, err, http.StatusInternalServerError)
		return
	}

	resp.WriteHeaderAndEntity(http.StatusOK, ResultsResponse{RunID: runID, Results: results})
}

// GET /api/v1/agents?principal=&scope=
func (h *Handler) Agents(req *restful.Request, resp *restful.Response) {
	principal := req.QueryParameter("principal")
	scope := req.QueryParameter("scope")
	if principal == "" || scope == "" {
		middleware.HandleError(resp, errors.New("principal and scope query parameters are required"), http.StatusBadRequest)
		return
	}

	agents, err := h.coordinator.ListAgents(req.Request.Context(), principal, scope)
	if err != nil {
		switch {
		case errors.Is(err, discovery.ErrPermissionDenied):
			middleware.HandleError(resp, err, http.StatusForbidden)
		case errors.Is(err, discovery.ErrAgentNotFound):
			middleware.HandleError(resp, err, http.StatusNotFound)
		default:
			h.logger.Error().Err(err).Str("scope", scope).Msg("Agent listing failed")
			middleware.HandleError(resp, err, http.StatusBadGateway)
		}
		return
	}

	resp.WriteHeaderAndEntity(http.StatusOK, AgentsResponse{Agents: agents})
}

// DELETE /api/v1/agents/cache?principal=&scope=
func (h *Handler) InvalidateCache(req *restful.Request, resp *restful.Response) {
	principal := req.QueryParameter("principal")
	scope := req.QueryParameter("scope")
	if principal == "" || scope == "" {
		middleware.HandleError(resp, errors.New("principal and scope query parameters are required"), http.StatusBadRequest)
		return
	}

	if err := h.coordinator.Invalidate(req.Request.Context(), principal, scope); err != nil {
		h.logger.Error().Err(err).Str("scope", scope).Msg("Cache invalidation failed")
		middleware.HandleError(resp, err, http.StatusInternalServerError)
		return
	}

	h.logger.Info().Str("principal", principal).Str("scope", scope).Msg("Agent cache invalidated")
	resp.WriteHeader(http.StatusNoContent)
}

// GET /api/v1/health
func (h *Handler) Health(req *restful.Request, resp *restful.Response) {
	resp.WriteHeaderAndEntity(http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: "1.0.0",
	})
}
