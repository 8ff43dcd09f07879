package server

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/hakkacheyassin/ft-trans/config"
	"github.com/hakkacheyassin/ft-trans/events"
	"github.com/hakkacheyassin/ft-trans/handlers"
	"github.com/hakkacheyassin/ft-trans/limiter"
	custommiddleware "github.com/hakkacheyassin/ft-trans/middleware"
	"github.com/hakkacheyassin/ft-trans/models"
	"github.com/hakkacheyassin/ft-trans/redis"
	"github.com/hakkacheyassin/ft-trans/repository"
	"github.com/hakkacheyassin/ft-trans/services"
)

type Server struct {
	Echo        *echo.Echo
	DB          *gorm.DB
	Config      *config.Config
	AuthHandler *handlers.AuthHandler
	RoomHandler *handlers.RoomHandler
	ChatHandler *handlers.ChatWebSocketHandler
	GameHandler *handlers.GameHandler
	Limiter     *limiter.Manager
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

	redisClient, err := redis.NewRedisClient(&cfg.Redis)
	if err != nil {
		log.Fatal("Failed to connect to redis:", err)
	}

	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"http://localhost:5173"},
		AllowMethods:     []string{echo.GET, echo.POST, echo.PUT, echo.DELETE, echo.PATCH},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowCredentials: true,
		ExposeHeaders:    []string{echo.HeaderContentLength},
		MaxAge:           86400,
	}))

	repo := repository.NewGormRoomRepository(db)
	hasher := services.NewBcryptHasher()
	authService := services.NewAuthService(db, &cfg.Auth)
	oauthService := services.NewOAuthService(&cfg.Auth)

	chatHandler := handlers.NewChatWebSocketHandler(db, redisClient.Client, repo)

	// Event sink: the local hub always; Kafka fan-out across instances when
	// configured.
	var sink services.EventSink = chatHandler.RoomManager()
	if cfg.Kafka.Enabled {
		saramaConfig, err := events.NewSaramaConfig(&cfg.Kafka)
		if err != nil {
			log.Fatal("Failed to build kafka config:", err)
		}
		producer, err := events.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, saramaConfig)
		if err != nil {
			log.Fatal("Failed to connect kafka producer:", err)
		}
		sink = events.MultiSink{chatHandler.RoomManager(), producer}

		handler := events.NewRoomEventHandler(chatHandler.RoomManager(), producer.Origin())
		consumer, err := events.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, []string{cfg.Kafka.Topic}, saramaConfig, handler)
		if err != nil {
			log.Fatal("Failed to connect kafka consumer:", err)
		}
		go func() {
			if err := consumer.Start(context.Background()); err != nil {
				log.Error("Kafka consumer stopped:", err)
			}
		}()
	}

	roomService := services.NewRoomService(repo, sink, hasher)

	authHandler := handlers.NewAuthHandler(authService, oauthService)
	roomHandler := handlers.NewRoomHandler(roomService)
	gameHandler := handlers.NewGameHandler()
	var limiterStrategy limiter.Strategy = &limiter.FixedWindowStrategy{}
	if cfg.RateLimit.Strategy == "token_bucket" {
		limiterStrategy = &limiter.TokenBucketStrategy{}
	}
	limiterManager := limiter.NewManager(redisClient.Client, limiterStrategy)

	s := &Server{
		Echo:        e,
		DB:          db,
		Config:      &cfg,
		AuthHandler: authHandler,
		RoomHandler: roomHandler,
		ChatHandler: chatHandler,
		GameHandler: gameHandler,
		Limiter:     limiterManager,
	}

	authMiddleware := custommiddleware.AuthMiddleware(authService)
	twoFactorMiddleware := custommiddleware.TwoFactorMiddleware()
	s.SetupRoutes(authMiddleware, twoFactorMiddleware)
	return s
}

func (s *Server) Start(addr string) {
	log.Fatal(s.Echo.Start(addr))
}
