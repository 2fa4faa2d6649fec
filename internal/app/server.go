package app

import (
	"context"
	"fmt"
	"log"

	"billing-service/internal/config"
	"billing-service/internal/db"
	"billing-service/internal/events"
	subscriptionHandler "billing-service/internal/handlers/subscription"
	wsHandler "billing-service/internal/handlers/websocket"
	"billing-service/internal/middleware"
	"billing-service/internal/pkg/jwt"
	"billing-service/internal/pkg/ratelimit"
	"billing-service/internal/repository/postgres"
	"billing-service/internal/repository/rediscache"
	subscriptionService "billing-service/internal/service/subscription"
	"billing-service/internal/service/verification"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	cfg    config.AppConfig
	engine *gin.Engine
	logger *zap.Logger
}

func NewServer() *Server {
	cfg := config.Load()
	engine := gin.New()
	return &Server{cfg: cfg, engine: engine}
}

func (s *Server) Start() error {
	ctx := context.Background()

	// ----- Logger -----
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync()
	s.logger = logger

	// ----- PostgreSQL -----
	pool, err := db.ConnectDB()
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	// ----- Redis -----
	redisClient, err := db.NewRedisClient(db.RedisConfig{
		Addr:     s.cfg.RedisAddr,
		Password: s.cfg.RedisPass,
		DB:       s.cfg.RedisDB,
		PoolSize: 10,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	log.Println("[REDIS] connected")

	// ----- JWT Verifier -----
	verifier, err := jwt.LoadAndBuild(s.cfg.JWT)
	if err != nil {
		return fmt.Errorf("failed to load JWT verifier: %w", err)
	}

	// ----- Repositories -----
	subscriptionRepo := postgres.NewSubscriptionRepository(pool)
	subscriptionCache := rediscache.NewSubscriptionCache(redisClient, s.cfg.CacheTTL, logger)

	// ----- Events Hub -----
	hub := events.NewHub(logger)
	go hub.Run(context.Background())

	// ----- Services -----
	verificationSvc := verification.NewService(verification.Config{
		AppStoreURL:  s.cfg.AppStoreVerifyURL,
		PlayStoreURL: s.cfg.PlayStoreVerifyURL,
		Timeout:      s.cfg.VerifyTimeout,
	}, logger)

	subscriptionSvc := subscriptionService.NewService(
		subscriptionRepo,
		subscriptionCache,
		verificationSvc,
		hub,
		logger,
	)
	go subscriptionSvc.RunExpiryRefresh(context.Background(), s.cfg.RefreshInterval, s.cfg.RefreshBatch)

	// ----- Rate Limiter -----
	verifyLimiter := ratelimit.NewLimiter(redisClient, s.cfg.VerifyRateLimit, s.cfg.VerifyRateWindow)

	// ----- Handlers -----
	subscriptionHandlerInst := subscriptionHandler.NewSubscriptionHandler(subscriptionSvc, verifyLimiter, logger)
	wsHandlerInst := wsHandler.NewWebSocketHandler(hub, logger)

	// ----- Middlewares -----
	authMiddleware := middleware.NewAuthMiddleware(verifier)

	s.engine.Use(
		middleware.RecoveryMiddleware(logger),
		middleware.LoggingMiddleware(logger),
		middleware.CORSMiddleware(),
	)

	// ----- Router -----
	handlers := &Handlers{
		SubscriptionHandler: subscriptionHandlerInst,
		WSHandler:           wsHandlerInst,
		AuthMiddleware:      authMiddleware,
	}
	SetupRouter(s.engine, logger, handlers)

	// ----- Start HTTP -----
	log.Printf("server running on %s", s.cfg.HTTPAddr)
	return s.engine.Run(s.cfg.HTTPAddr)
}
