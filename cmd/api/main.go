package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/trace"

	"github.com/codeloom/site-builder/agent-gateway/internal/anthropic"
	"github.com/codeloom/site-builder/agent-gateway/internal/auth"
	"github.com/codeloom/site-builder/agent-gateway/internal/buildsvc"
	"github.com/codeloom/site-builder/agent-gateway/internal/config"
	"github.com/codeloom/site-builder/agent-gateway/internal/gateway"
	"github.com/codeloom/site-builder/agent-gateway/internal/gemini"
	"github.com/codeloom/site-builder/agent-gateway/internal/llm"
	"github.com/codeloom/site-builder/agent-gateway/internal/metrics"
	"github.com/codeloom/site-builder/agent-gateway/internal/mistral"
	"github.com/codeloom/site-builder/agent-gateway/internal/pexels"
	"github.com/codeloom/site-builder/agent-gateway/internal/tools"
	"github.com/codeloom/site-builder/agent-gateway/internal/workflow"

	_ "github.com/codeloom/site-builder/agent-gateway/docs" // swagger docs
)

// @title Agent Gateway API
// @version 1.0
// @description Gateway between the site-builder UI and the model backends.
// @description
// @description One canonical tool-calling contract is bridged to three
// @description structurally different model APIs; the workflow engine
// @description sequences the returned tool calls into a supervised
// @description Plan/Code/Verify/Debug/Finish protocol.

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the JWT token.

func main() {
	if err := initTracer(); err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if cfg.ProviderAPIKey() == "" {
		log.Printf(`{"level":"warn","message":"No credential configured for selected provider","provider":"%s"}`, cfg.Provider)
	}

	// Postgres backs the login endpoint; without it the gateway still
	// serves agent calls for externally minted tokens.
	var pool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		log.Println("Connecting to PostgreSQL database...")
		for i := 0; i < 10; i++ {
			pool, err = pgxpool.New(context.Background(), cfg.DatabaseURL)
			if err == nil {
				err = pool.Ping(context.Background())
				if err == nil {
					break
				}
			}
			log.Printf("Waiting for database... (attempt %d/10): %v", i+1, err)
			time.Sleep(3 * time.Second)
		}
		if err != nil {
			log.Fatalf("Failed to connect to database after retries: %v", err)
		}
		defer pool.Close()
		log.Println("Connected to PostgreSQL database")
	} else {
		log.Printf(`{"level":"warn","message":"DATABASE_URL not set, login endpoint disabled"}`)
	}

	jwtManager, err := auth.NewJWTManager(cfg.JWTSecret)
	if err != nil {
		log.Fatalf("Failed to initialize JWT manager: %v", err)
	}

	agentMetrics, err := metrics.NewAgentMetrics()
	if err != nil {
		log.Fatalf("Failed to initialize metrics: %v", err)
	}

	registry := tools.Builtin()
	provider := llm.WithBreaker(newProvider(cfg))

	var verifier workflow.Verifier
	if cfg.BuildServiceURL != "" {
		verifier = buildsvc.NewClient(cfg.BuildServiceURL)
	} else {
		log.Printf(`{"level":"warn","message":"BUILD_SERVICE_URL not set, verification always passes"}`)
		verifier = workflow.VerifierFunc(func(context.Context, llm.FileSystemSnapshot) error { return nil })
	}

	var engineOpts []workflow.Option
	if cfg.PexelsAPIKey != "" {
		engineOpts = append(engineOpts, workflow.WithImageSearcher(pexels.NewClient(cfg.PexelsAPIKey)))
	}
	manager := workflow.NewManager(registry, verifier, engineOpts...)

	gatewayHandler := gateway.NewHandler(provider, registry, manager, jwtManager, pool, agentMetrics)
	taskStream := gateway.NewTaskStream(manager, jwtManager)

	router := gin.Default()
	router.Use(structuredLoggingMiddleware())
	router.HandleMethodNotAllowed = true
	router.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed"})
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	router.GET("/ready", func(c *gin.Context) {
		if pool != nil {
			if err := pool.Ping(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status": "not ready",
					"error":  "database connection failed",
				})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	api := router.Group("/api")

	// Public routes (no authentication required)
	api.POST("/auth/login", gatewayHandler.Login)

	// Swagger documentation (public)
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Protected routes (require JWT authentication)
	protected := api.Group("")
	protected.Use(auth.RequireAuth(jwtManager))

	protected.POST("/agent/generate", gatewayHandler.Generate)
	protected.GET("/ws/tasks", taskStream.Stream)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 180 * time.Second, // model calls are synchronous and slow
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting Agent Gateway API server on port %s\n", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

// newProvider picks the adapter variant from configuration. One interface,
// three implementations; never subclassing with overridden behavior.
func newProvider(cfg *config.Config) llm.Provider {
	switch cfg.Provider {
	case config.ProviderAnthropic:
		return anthropic.NewClient(cfg.AnthropicAPIKey)
	case config.ProviderMistral:
		return mistral.NewClient(cfg.MistralAPIKey)
	default:
		return gemini.NewClient(cfg.GeminiAPIKey)
	}
}

// initTracer initializes OpenTelemetry tracing
func initTracer() error {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return fmt.Errorf("failed to create stdout exporter: %w", err)
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
	)

	otel.SetTracerProvider(tp)

	return nil
}

// structuredLoggingMiddleware provides structured JSON logging for all requests
func structuredLoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		latency := time.Since(start)
		userID, _ := c.Get("user_id")

		logEntry := map[string]interface{}{
			"timestamp":  time.Now().UTC().Format(time.RFC3339),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency_ms": latency.Milliseconds(),
			"client_ip":  c.ClientIP(),
			"user_agent": c.Request.UserAgent(),
		}
		if userID != nil {
			logEntry["user_id"] = userID
		}
		if len(c.Errors) > 0 {
			logEntry["errors"] = c.Errors.String()
		}

		logJSON, _ := json.Marshal(logEntry)
		log.Println(string(logJSON))
	}
}
