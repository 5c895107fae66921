package server

import (
	"context"
	"time"

	"github.com/IBM/sarama"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	goredis "github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"ShopHub/chat"
	"ShopHub/config"
	"ShopHub/handlers"
	"ShopHub/kafka"
	"ShopHub/limiter"
	custommiddleware "ShopHub/middleware"
	"ShopHub/models"
	"ShopHub/redis"
	"ShopHub/services"
	"ShopHub/session"
	"ShopHub/store"
)

type Server struct {
	Echo                 *echo.Echo
	DB                   *gorm.DB
	Config               *config.Config
	AuthHandler          *handlers.AuthHandler
	ChatHandler          *handlers.ChatHandler
	ChatWebSocketHandler *handlers.ChatWebSocketHandler
	AdminChatHandler     *handlers.AdminChatHandler

	producer     *kafka.Producer
	consumer     *kafka.Consumer
	consumerStop context.CancelFunc
}

func NewServer() *Server {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	db, err := gorm.Open(postgres.Open(cfg.Database.DSN), &gorm.Config{})
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	if err := models.AutoMigrateAll(db); err != nil {
		log.Fatal("Failed to auto-migrate database:", err)
	}

	var rdb *goredis.Client
	if cfg.Redis.Addr != "" {
		redisClient, err := redis.NewRedisClient(&cfg.Redis)
		if err != nil {
			log.Fatal("Failed to connect to Redis:", err)
		}
		rdb = redisClient.Client
	} else {
		log.Warn("Redis not configured, sessions fall back to files and rate limiting is off")
	}

	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.Server.AllowOrigins,
		AllowMethods:     []string{echo.GET, echo.POST, echo.PUT, echo.DELETE, echo.PATCH},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "X-Device-ID"},
		AllowCredentials: true,
		ExposeHeaders:    []string{echo.HeaderContentLength},
		MaxAge:           86400,
	}))

	chatStore := store.NewGorm(db, rdb)
	sessions := session.NewManager(rdb, cfg.Server.DataDir)

	s := &Server{
		Echo:   e,
		DB:     db,
		Config: &cfg,
	}

	var events chat.EventSink
	if len(cfg.Kafka.Brokers) > 0 {
		producer, consumer, stop, err := setupKafka(&cfg.Kafka)
		if err != nil {
			log.Fatal("Failed to set up Kafka:", err)
		}
		events = producer
		s.producer = producer
		s.consumer = consumer
		s.consumerStop = stop
	}

	authService := services.NewAuthService(db, &cfg.Auth)
	oauthService := services.NewOAuthService(&cfg.Auth)
	s.AuthHandler = handlers.NewAuthHandler(authService, oauthService)
	s.ChatHandler = handlers.NewChatHandler(chatStore, sessions, events)
	s.ChatWebSocketHandler = handlers.NewChatWebSocketHandler(chatStore, sessions, events)
	s.AdminChatHandler = handlers.NewAdminChatHandler(chatStore)

	authMiddleware := custommiddleware.AuthMiddleware(authService)
	adminMiddleware := custommiddleware.AdminAuthMiddleware()
	s.SetupRoutes(authMiddleware, adminMiddleware, sendRateLimit(rdb, &cfg.Chat))
	return s
}

// setupKafka builds the producer used as the chat event sink plus a consumer
// group that mirrors the topic into the log, and starts the consumer loop.
func setupKafka(cfg *config.KafkaConfig) (*kafka.Producer, *kafka.Consumer, context.CancelFunc, error) {
	var (
		saramaCfg *sarama.Config
		err       error
	)
	if cfg.UseSCRAM {
		saramaCfg, err = kafka.NewSaramaConfigWithSCRAM(cfg, "SCRAM-SHA-256")
	} else {
		saramaCfg, err = kafka.NewSaramaConfig(cfg)
	}
	if err != nil {
		return nil, nil, nil, err
	}

	producer, err := kafka.NewProducer(cfg.Brokers, cfg.Topic, saramaCfg)
	if err != nil {
		return nil, nil, nil, err
	}

	consumer, err := kafka.NewConsumer(cfg.Brokers, cfg.GroupID, []string{cfg.Topic},
		saramaCfg, kafka.NewChatEventHandler(nil))
	if err != nil {
		_ = producer.Close()
		return nil, nil, nil, err
	}

	ctx, stop := context.WithCancel(context.Background())
	go func() {
		if err := consumer.Start(ctx); err != nil {
			log.Warn("Kafka consumer stopped:", err)
		}
	}()
	return producer, consumer, stop, nil
}

// sendRateLimit limits message sends per chat participant. Without Redis
// there is nothing to count against, so it degrades to a pass-through.
func sendRateLimit(rdb *goredis.Client, cfg *config.ChatConfig) echo.MiddlewareFunc {
	if rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	manager := limiter.NewManager(rdb, &limiter.FixedWindowStrategy{})
	return custommiddleware.NewRateLimitMiddleware(manager, custommiddleware.RateLimitConfig{
		Limit:  cfg.SendLimit,
		Window: time.Duration(cfg.SendWindowSeconds) * time.Second,
		KeyFunc: func(c echo.Context) string {
			if user, ok := c.Get("user").(*models.User); ok {
				return "chat:send:" + user.ChatID
			}
			return "chat:send:ip:" + c.RealIP()
		},
	})
}

func (s *Server) Start(addr string) {
	log.Fatal(s.Echo.Start(addr))
}

// Shutdown stops the Kafka pieces. Echo itself is torn down by the process
// exiting after Start returns.
func (s *Server) Shutdown() {
	if s.consumerStop != nil {
		s.consumerStop()
	}
	if s.consumer != nil {
		if err := s.consumer.Close(); err != nil {
			log.Warn("Failed to close Kafka consumer:", err)
		}
	}
	if s.producer != nil {
		if err := s.producer.Close(); err != nil {
			log.Warn("Failed to close Kafka producer:", err)
		}
	}
}
