package main

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"roomchat-service/internal/auth"
	"roomchat-service/internal/config"
	"roomchat-service/internal/db"
	"roomchat-service/internal/handlers"
	"roomchat-service/internal/mediatransform"
	"roomchat-service/internal/middleware"
	"roomchat-service/internal/notify"
	"roomchat-service/internal/observability"
	"roomchat-service/internal/rabbitmq"
	"roomchat-service/internal/repositories"
	"roomchat-service/internal/rooms"
	"roomchat-service/internal/telemetry"
	"roomchat-service/internal/ws"
)

func main() {
	cfg := config.Load()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	if cfg.Debug {
		log.SetLevel(logrus.DebugLevel)
	}

	ctx := context.Background()
	shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.ServiceName, cfg.Environment, cfg.OTLPEndpoint)
	if err != nil {
		log.WithError(err).Fatal("failed to set up tracing")
	}
	defer shutdownTracing(ctx)

	database, err := db.Connect(cfg.DBDSN, log)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to db")
	}
	defer database.Close()

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, log)
	defer publisher.Close()
	audit := telemetry.NewAuditEmitter(publisher, "audit_logs.rooms", cfg.ServiceName, cfg.Environment)

	roomRepo := repositories.NewRoomRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	mediaRepo := repositories.NewMediaRepo(database)

	hub := ws.NewHub(log)

	// Deletion fanout goes through the hub when the realtime tier is in this
	// process, or over HTTP to a standalone tier when NOTIFY_URL is set.
	var notifier rooms.DeletedNotifier = hub
	if cfg.NotifyURL != "" {
		notifier = notify.NewClient(cfg.NotifyURL, cfg.NotifyTimeout, log)
	}

	roomService := rooms.NewService(roomRepo, notifier, log)
	verifier := auth.NewVerifier(cfg.AuthSecret)

	roomHandler := handlers.NewRoomHandler(roomService, hub, audit, log)
	messageHandler := handlers.NewMessageHandler(roomService, messageRepo, hub, audit, log, cfg.PollInterval)
	mediaHandler := handlers.NewMediaHandler(roomService, mediaRepo, messageRepo, mediatransform.NewPassthrough(), hub, audit, log)
	notifyHandler := handlers.NewNotifyHandler(hub, log)
	roomWS := ws.NewRoomWebSocketHandler(hub, roomService, messageRepo, verifier, publisher, log, cfg.PushHandshakeTimeout)

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(verifier)

	router.POST("/rooms", authMiddleware, roomHandler.CreateRoom)
	router.POST("/rooms/join", authMiddleware, roomHandler.JoinRoom)
	router.DELETE("/rooms/:room_id", authMiddleware, roomHandler.DeleteRoom)
	router.POST("/rooms/:room_id/leave", authMiddleware, roomHandler.LeaveRoom)

	router.GET("/rooms/:room_id/messages", authMiddleware, messageHandler.ListMessages)
	router.POST("/rooms/:room_id/messages", authMiddleware, messageHandler.PostMessage)

	router.POST("/rooms/:room_id/media", authMiddleware, mediaHandler.Upload)
	router.GET("/media/:id", authMiddleware, mediaHandler.Download)
	router.GET("/media/:id/preview", authMiddleware, mediaHandler.Preview)

	router.GET("/ws/rooms/:room_id", roomWS.Handle)

	router.POST("/internal/room-deleted", notifyHandler.RoomDeleted)
	router.GET("/health", handlers.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	log.WithField("addr", cfg.HTTPAddr).Info("room chat service listening")
	if err := router.Run(cfg.HTTPAddr); err != nil {
		log.WithError(err).Fatal("server error")
	}
}
