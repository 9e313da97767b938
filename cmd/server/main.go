// Package main runs the Mingle API server with WebSocket and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mingle-rounds/backend/config"
	"github.com/mingle-rounds/backend/internal/auth"
	"github.com/mingle-rounds/backend/internal/dashboard"
	"github.com/mingle-rounds/backend/internal/matching"
	"github.com/mingle-rounds/backend/internal/middleware"
	"github.com/mingle-rounds/backend/internal/notifications"
	"github.com/mingle-rounds/backend/internal/organizations"
	"github.com/mingle-rounds/backend/internal/participants"
	"github.com/mingle-rounds/backend/internal/realtime"
	"github.com/mingle-rounds/backend/internal/reconcile"
	"github.com/mingle-rounds/backend/internal/registrations"
	"github.com/mingle-rounds/backend/internal/sessions"
	"github.com/mingle-rounds/backend/pkg/database"
	"github.com/mingle-rounds/backend/pkg/queue"
	"github.com/mingle-rounds/backend/pkg/redis"
	"github.com/mingle-rounds/backend/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Organizations
	orgRepo := organizations.NewRepository(pool)
	orgHandler := organizations.NewHandler(orgRepo)

	// Sessions, rounds, meeting points
	sessionRepo := sessions.NewRepository(pool)
	sessionHandler := sessions.NewHandler(sessionRepo, logger)

	// Participants
	participantRepo := participants.NewRepository(pool)
	participantHandler := participants.NewHandler(participantRepo, logger)

	// Matching engine
	matchingRepo := matching.NewRepository(pool)
	enqueuer := notifications.NewEnqueuer(jobQueue, logger)
	orchestrator := matching.NewOrchestrator(matchingRepo, logger,
		matching.WithWeights(matching.ScoreWeights{
			Novelty:      cfg.Matching.NoveltyBonus,
			TeamAffinity: cfg.Matching.TeamAffinityBonus,
			TopicOverlap: cfg.Matching.TopicBonus,
		}),
		matching.WithStaleLockAfter(cfg.Matching.StaleLockAfter()),
		matching.WithEvents(hub),
		matching.WithNotifier(enqueuer),
	)
	matchingHandler := matching.NewHandler(orchestrator, matchingRepo, logger)

	// Reconciler (dashboard read path)
	reconcileRepo := reconcile.NewRepository(pool)
	reconciler := reconcile.New(reconcileRepo, orchestrator, cfg.Matching.Grace(), cfg.Matching.TriggerWindow(), logger)

	// Registrations and status transitions
	registrationRepo := registrations.NewRepository(pool)
	registrationHandler := registrations.NewHandler(registrationRepo, participantRepo, sessionRepo, hub, logger)

	// Dashboard
	dashboardHandler := dashboard.NewHandler(participantRepo, registrationRepo, sessionRepo, reconciler, logger)

	// Notification logs
	notificationRepo := notifications.NewRepository(pool)
	notificationHandler := notifications.NewHandler(notificationRepo, logger)

	validateToken := func(token string) (uuid.UUID, error) {
		p, err := participantRepo.GetByToken(context.Background(), token)
		if err != nil {
			return uuid.Nil, err
		}
		return p.ID, nil
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	// Participant surface (access token in path; no JWT)
	router.GET("/dashboard/:token", dashboardHandler.Get)
	router.GET("/participants/:token", participantHandler.Me)
	router.PATCH("/participants/:token", participantHandler.UpdateProfile)
	router.POST("/participants/:token/rounds/:rid/register", registrationHandler.Register)
	router.POST("/participants/:token/registrations/:id/confirm", registrationHandler.Confirm)
	router.POST("/participants/:token/registrations/:id/checkin", registrationHandler.CheckIn)
	router.POST("/participants/:token/registrations/:id/meet", registrationHandler.ConfirmMeet)
	router.POST("/participants/:token/registrations/:id/no-show", registrationHandler.ReportNoShow)
	router.POST("/participants/:token/registrations/:id/cancel", registrationHandler.Cancel)

	// Organizer API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		// Organizations
		api.GET("/users", middleware.RequireRole("admin"), authHandler.List)

		api.GET("/organizations", orgHandler.ListMine)
		api.POST("/organizations", orgHandler.Create)
		api.POST("/organizations/join", orgHandler.Join)
		api.GET("/organizations/:id/members", orgHandler.ListMembers)

		// Sessions
		api.GET("/sessions", sessionHandler.List)
		api.POST("/sessions", sessionHandler.Create)

		owned := api.Group("/sessions/:id")
		owned.Use(sessions.RequireSessionAccess(sessionRepo, orgRepo))
		{
			owned.GET("", sessionHandler.GetByID)
			owned.PATCH("", sessionHandler.Update)
			owned.DELETE("", sessionHandler.Delete)

			// Rounds
			owned.POST("/rounds", sessionHandler.CreateRound)
			owned.GET("/rounds", sessionHandler.ListRounds)
			owned.PATCH("/rounds/:rid", sessionHandler.UpdateRound)

			// Meeting points
			owned.POST("/meeting-points", sessionHandler.CreateMeetingPoint)
			owned.GET("/meeting-points", sessionHandler.ListMeetingPoints)
			owned.DELETE("/meeting-points/:pid", sessionHandler.DeleteMeetingPoint)

			// Participants
			owned.POST("/participants", participantHandler.Enroll)
			owned.GET("/participants", participantHandler.List)

			// Matching
			owned.POST("/rounds/:rid/match", matchingHandler.Trigger)
			owned.GET("/rounds/:rid/matching-lock", matchingHandler.LockStatus)
			owned.GET("/matches", matchingHandler.ListMatches)

			// Notification logs
			owned.GET("/notifications", notificationHandler.ListBySession)
		}
	}

	// WebSocket (participant token in query; no Authorization header)
	router.GET("/ws", realtime.ServeWs(hub, logger, validateToken))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
