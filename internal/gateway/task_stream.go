package gateway

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/codeloom/site-builder/agent-gateway/internal/auth"
	"github.com/codeloom/site-builder/agent-gateway/internal/models"
	"github.com/codeloom/site-builder/agent-gateway/internal/workflow"
)

const writeTimeout = 10 * time.Second

// TaskStream pushes live workflow events (task opened, actions, state
// changes, protocol violations) to the UI over a websocket.
type TaskStream struct {
	manager    *workflow.Manager
	jwtManager *auth.JWTManager
	tracer     trace.Tracer
	upgrader   websocket.Upgrader
}

// NewTaskStream creates the websocket handler for workflow events.
func NewTaskStream(manager *workflow.Manager, jwtManager *auth.JWTManager) *TaskStream {
	return &TaskStream{
		manager:    manager,
		jwtManager: jwtManager,
		tracer:     otel.Tracer("task-stream"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// TODO: restrict origins once the UI host list is settled.
				return true
			},
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

// Stream handles GET /api/ws/tasks. Browsers cannot set headers on a
// websocket handshake, so the bearer token may arrive as a query parameter.
//
// @Summary Stream workflow events
// @Description Websocket endpoint streaming the caller's task/action events in real time
// @Tags agent
// @Param token query string true "Bearer token"
// @Success 101 "Switching Protocols"
// @Failure 401 {object} models.ErrorResponse
// @Router /ws/tasks [get]
func (s *TaskStream) Stream(c *gin.Context) {
	ctx, span := s.tracer.Start(c.Request.Context(), "task_stream.stream")
	defer span.End()

	token := auth.BearerFromRequest(c.Request)
	if token == "" {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "Missing bearer token"})
		return
	}
	claims, err := s.jwtManager.ValidateToken(ctx, token)
	if err != nil {
		span.RecordError(err)
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "Invalid or expired token"})
		return
	}
	span.SetAttributes(attribute.String("user.id", claims.UserID))

	engine := s.manager.Engine(claims.UserID)
	events, cancel := engine.Subscribe()
	defer cancel()

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		span.RecordError(err)
		log.Printf(`{"level":"warn","message":"Websocket upgrade failed","error":"%v"}`, err)
		return
	}
	defer conn.Close()

	// Drain client frames so close messages are noticed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(event); err != nil {
				log.Printf(`{"level":"info","message":"Websocket client gone","user_id":"%s","error":"%v"}`,
					claims.UserID, err)
				return
			}
		case <-done:
			return
		case <-ctx.Done():
			return
		}
	}
}
