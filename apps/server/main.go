package main

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.temporal.io/sdk/client"
	otelcontrib "go.temporal.io/sdk/contrib/opentelemetry"
	"go.temporal.io/sdk/interceptor"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/openscribe/scribe/apps/server/internal/drafts"
	"github.com/openscribe/scribe/apps/server/internal/handler"
	githubplatform "github.com/openscribe/scribe/apps/server/internal/platform/github"
	"github.com/openscribe/scribe/apps/server/internal/platform/logger"
	"github.com/openscribe/scribe/apps/server/internal/platform/postgres"
	"github.com/openscribe/scribe/apps/server/internal/platform/ratelimit"
	"github.com/openscribe/scribe/apps/server/internal/platform/telemetry"
	temporalplatform "github.com/openscribe/scribe/apps/server/internal/platform/temporal"
	"github.com/openscribe/scribe/apps/server/internal/platform/validation"
	"github.com/openscribe/scribe/apps/server/internal/proposals"
	"github.com/openscribe/scribe/apps/server/internal/proposals/execution"
	proposalstore "github.com/openscribe/scribe/apps/server/internal/proposals/store"
	"github.com/openscribe/scribe/apps/server/internal/proposals/store/pgmigrations"
	"github.com/openscribe/scribe/apps/server/internal/workspace"
	"github.com/openscribe/scribe/schemas"
)

func main() {
	slog := logger.New()

	// --- Observability ---

	// Default the service name before any OTel init.
	if os.Getenv("OTEL_SERVICE_NAME") == "" {
		os.Setenv("OTEL_SERVICE_NAME", "scribe-server") //nolint:errcheck
	}

	otelEnabled := os.Getenv("OTEL_ENABLED") == "true"
	ctx := context.Background()
	tel, err := telemetry.New(ctx, otelEnabled)
	if err != nil {
		slog.Error("telemetry init failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			slog.Error("telemetry shutdown failed", "error", err)
		}
	}()

	// --- Platform: GitHub ---

	provider, err := newGitHubProvider()
	if err != nil {
		slog.Error("github auth init failed", "error", err)
		os.Exit(1)
	}

	// --- Platform: Postgres ---

	pgURL := os.Getenv("POSTGRES_URL")
	if pgURL == "" {
		slog.Error("POSTGRES_URL is required")
		os.Exit(1)
	}
	pool, err := postgres.New(ctx, pgURL, pgmigrations.FS)
	if err != nil {
		slog.Error("postgres init failed", "error", err)
		os.Exit(1) //nolint:gocritic // nothing to unwind yet
	}
	defer pool.Close()

	// --- Platform: Redis ---

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer rdb.Close()

	// --- Platform: Temporal ---

	hostPort := os.Getenv("TEMPORAL_HOSTPORT")
	if hostPort == "" {
		hostPort = "localhost:7233"
	}
	tc, err := client.Dial(client.Options{HostPort: hostPort})
	if err != nil {
		slog.Error("temporal client init failed", "error", err)
		os.Exit(1)
	}
	defer tc.Close()

	engine := temporalplatform.NewEngine(tc)

	// --- Services ---

	appName := os.Getenv("APP_NAME")
	if appName == "" {
		appName = "Scribe"
	}
	appURL := os.Getenv("APP_URL")
	if appURL == "" {
		appURL = "https://github.com/openscribe/scribe"
	}

	proposalStore := proposalstore.NewPGProposalStore(pool)
	proposalSvc := proposals.NewService(provider, proposalStore, engine, slog, appName, appURL)
	workspaceSvc := workspace.NewService(workspace.NewRegistry(), drafts.NewRedisStore(rdb), provider, slog)

	// --- Temporal Worker ---

	activities := execution.NewActivities(proposalSvc, slog)

	workerOpts := worker.Options{}
	if otelEnabled {
		tracingInterceptor, err := otelcontrib.NewTracingInterceptor(otelcontrib.TracerOptions{})
		if err != nil {
			slog.Error("temporal tracing interceptor init failed", "error", err)
			os.Exit(1)
		}
		workerOpts.Interceptors = []interceptor.WorkerInterceptor{tracingInterceptor}
	}

	w := worker.New(tc, temporalplatform.TaskQueue(), workerOpts)
	w.RegisterWorkflowWithOptions(execution.ProposalStatusWorkflow, workflow.RegisterOptions{
		Name: "ProposalStatusWorkflow",
	})
	w.RegisterActivity(activities)

	go func() {
		if err := w.Run(worker.InterruptCh()); err != nil {
			log.Fatalf("temporal worker failed: %v", err)
		}
	}()
	slog.Info("temporal worker started", "taskQueue", temporalplatform.TaskQueue())

	// --- HTTP ---

	router := gin.New()

	validator, err := validation.New(schemas.OpenAPISpec)
	if err != nil {
		slog.Error("openapi validation middleware init failed", "error", err)
		os.Exit(1)
	}

	limit := 120
	if v := os.Getenv("RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	limiter := ratelimit.New(rdb, limit, time.Minute)

	router.Use(gin.Recovery(), otelgin.Middleware("scribe-server"), limiter.Middleware(), validator)
	handler.RegisterRoutes(router, workspaceSvc, proposalSvc, handler.NewSessions(), slog)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	slog.Info("starting scribe", "port", port)
	if err := router.Run(":" + port); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

// newGitHubProvider picks app auth when GITHUB_APP_ID is set, otherwise a
// personal access token (local development, usually against the mock).
func newGitHubProvider() (*githubplatform.Provider, error) {
	baseURL := os.Getenv("GITHUB_API_URL")

	if appID := os.Getenv("GITHUB_APP_ID"); appID != "" {
		id, err := strconv.ParseInt(appID, 10, 64)
		if err != nil {
			return nil, err
		}
		factory, err := githubplatform.NewAppFactory(id, os.Getenv("GITHUB_APP_PRIVATE_KEY_PATH"), baseURL)
		if err != nil {
			return nil, err
		}
		return githubplatform.NewProvider(factory), nil
	}

	return githubplatform.NewProvider(&githubplatform.TokenFactory{
		Token:   os.Getenv("GITHUB_TOKEN"),
		BaseURL: baseURL,
	}), nil
}
