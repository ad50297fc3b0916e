package gateway

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"

	"github.com/codeloom/site-builder/agent-gateway/internal/auth"
	"github.com/codeloom/site-builder/agent-gateway/internal/llm"
	"github.com/codeloom/site-builder/agent-gateway/internal/metrics"
	"github.com/codeloom/site-builder/agent-gateway/internal/models"
	"github.com/codeloom/site-builder/agent-gateway/internal/prompt"
	"github.com/codeloom/site-builder/agent-gateway/internal/tools"
	"github.com/codeloom/site-builder/agent-gateway/internal/workflow"
)

// Handler handles HTTP requests for the gateway layer.
type Handler struct {
	provider   llm.Provider
	registry   *tools.Registry
	manager    *workflow.Manager
	jwtManager *auth.JWTManager
	pool       *pgxpool.Pool
	metrics    *metrics.AgentMetrics
	tracer     trace.Tracer
}

// NewHandler creates a gateway handler. The pool may be nil, which disables
// the login endpoint.
func NewHandler(provider llm.Provider, registry *tools.Registry, manager *workflow.Manager, jwtManager *auth.JWTManager, pool *pgxpool.Pool, agentMetrics *metrics.AgentMetrics) *Handler {
	return &Handler{
		provider:   provider,
		registry:   registry,
		manager:    manager,
		jwtManager: jwtManager,
		pool:       pool,
		metrics:    agentMetrics,
		tracer:     otel.Tracer("gateway-handler"),
	}
}

// GenerateRequest is the inbound body: the conversation so far plus the
// in-memory project snapshot.
type GenerateRequest struct {
	History    []llm.ConversationTurn `json:"history"`
	FileSystem map[string]string      `json:"fileSystem"`
}

// GenerateResponse is the canonical response shape, identical regardless of
// which backend answered.
type GenerateResponse struct {
	Candidates []Candidate `json:"candidates"`
}

// Candidate wraps one content entry.
type Candidate struct {
	Content CandidateContent `json:"content"`
}

// CandidateContent carries the ordered response parts.
type CandidateContent struct {
	Parts []llm.Part `json:"parts"`
}

// Generate godoc
// @Summary Run one agent turn
// @Description Send conversation history and the project snapshot to the configured model backend, sequence the returned tool calls and return the canonical response.
// @Tags agent
// @Accept json
// @Produce json
// @Param request body GenerateRequest true "History and file snapshot"
// @Success 200 {object} GenerateResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /agent/generate [post]
func (h *Handler) Generate(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "gateway.generate")
	defer span.End()

	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Printf(`{"level":"warn","message":"Invalid request body","code":"%s","error":"%v"}`,
			models.ErrCodeInvalidRequest, err)
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if req.History == nil || req.FileSystem == nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "history and fileSystem are required"})
		return
	}

	userID := c.GetString(auth.UserIDKey)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "User not authenticated"})
		return
	}
	span.SetAttributes(
		attribute.String("user.id", userID),
		attribute.Int("request.history_turns", len(req.History)),
		attribute.Int("request.snapshot_files", len(req.FileSystem)),
	)

	snapshot := llm.FileSystemSnapshot(req.FileSystem)
	llmReq := llm.Request{
		History:     req.History,
		Snapshot:    snapshot,
		Instruction: prompt.BuildInstruction(snapshot),
		Tools:       h.registry,
	}

	start := time.Now()
	resp, err := h.provider.Generate(ctx, llmReq)
	h.metrics.RecordGenerate(ctx, h.provider.Name(), time.Since(start), err == nil)

	if err != nil {
		var parseErr *llm.ArgumentParseError
		switch {
		case errors.As(err, &parseErr):
			// Degraded but not fatal: keep any partial text, drop all
			// actions, still answer 200.
			span.RecordError(err)
			log.Printf(`{"level":"warn","message":"Tool arguments failed to parse","tool":"%s","user_id":"%s"}`,
				parseErr.Tool, userID)
			c.JSON(http.StatusOK, toCanonical(llm.CanonicalResponse{Text: resp.Text}))
			return
		case errors.Is(err, llm.ErrMissingCredential):
			log.Printf(`{"level":"error","message":"Provider credential missing","code":"%s","provider":"%s"}`,
				models.ErrCodeConfigError, h.provider.Name())
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Provider credential not configured"})
			return
		default:
			span.RecordError(err)
			log.Printf(`{"level":"error","message":"Provider call failed","code":"%s","provider":"%s","error":"%v"}`,
				models.ErrCodeBackendError, h.provider.Name(), err)
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
			return
		}
	}

	engine := h.manager.Engine(userID)
	result, applyErr := engine.ApplyTurn(ctx, snapshot, resp)
	if applyErr != nil {
		var unknownErr *tools.UnknownToolError
		if errors.As(applyErr, &unknownErr) {
			// Sequencing of the rest of the turn halted; effects already
			// applied stay applied and the client still gets the reply.
			span.SetAttributes(attribute.String("workflow.unknown_tool", unknownErr.Name))
			log.Printf(`{"level":"warn","message":"Unknown tool in turn","code":"%s","tool":"%s","user_id":"%s"}`,
				models.ErrCodeUnknownTool, unknownErr.Name, userID)
		} else {
			log.Printf(`{"level":"error","message":"Failed to apply turn","code":"%s","user_id":"%s","error":"%v"}`,
				models.ErrCodeInternalError, userID, applyErr)
		}
	}

	for _, v := range result.Violations {
		h.metrics.RecordProtocolViolation(ctx, v.TaskID, v.Tool)
	}
	if task := engine.Task(); task != nil {
		for i := 0; i < result.Retries; i++ {
			h.metrics.RecordVerificationRetry(ctx, task.ID)
		}
		switch task.Status {
		case workflow.TaskCompleted:
			h.metrics.RecordTaskCompleted(ctx, task.ID)
		case workflow.TaskFailed:
			h.metrics.RecordTaskFailed(ctx, task.ID)
		}
	}
	span.SetAttributes(
		attribute.String("workflow.state", string(result.State)),
		attribute.Int("workflow.retries", result.RetryCount),
		attribute.Int("workflow.applied", result.Applied),
	)

	c.JSON(http.StatusOK, toCanonical(resp))
}

// toCanonical maps the adapter output onto the wire shape shared by every
// backend: one candidate whose parts hold the text, then the function calls
// in emission order.
func toCanonical(resp llm.CanonicalResponse) GenerateResponse {
	parts := make([]llm.Part, 0, len(resp.Actions)+1)
	if resp.Text != "" {
		parts = append(parts, llm.Part{Text: resp.Text})
	}
	for _, action := range resp.Actions {
		parts = append(parts, llm.Part{
			FunctionCall: &llm.FunctionCall{Name: action.Name, Args: action.Args},
		})
	}
	return GenerateResponse{
		Candidates: []Candidate{{Content: CandidateContent{Parts: parts}}},
	}
}

// Login godoc
// @Summary User login
// @Description Authenticate user and return a JWT bearer token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.LoginRequest true "Login credentials"
// @Success 200 {object} models.LoginResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request"})
		return
	}

	if h.pool == nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{Error: "Login is not configured"})
		return
	}

	var userID string
	var hashedPassword string
	err := h.pool.QueryRow(c.Request.Context(),
		`SELECT id, hashed_password FROM users WHERE email = $1`,
		req.Email,
	).Scan(&userID, &hashedPassword)
	if err != nil {
		log.Printf(`{"level":"warn","message":"User not found","email":"%s"}`, req.Email)
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "Invalid email or password"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(req.Password)); err != nil {
		log.Printf(`{"level":"warn","message":"Invalid password","email":"%s"}`, req.Email)
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "Invalid email or password"})
		return
	}

	token, err := h.jwtManager.GenerateToken(c.Request.Context(), userID, req.Email, 24*time.Hour)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, models.LoginResponse{
		Token:  token,
		UserID: userID,
	})
}
