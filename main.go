package main

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"presence-service/internal/config"
	"presence-service/internal/handlers"
	"presence-service/internal/identity"
	"presence-service/internal/models"
	"presence-service/internal/observability"
	"presence-service/internal/registry"
	"presence-service/internal/repositories"
	"presence-service/internal/router"
	"presence-service/internal/store"
	"presence-service/internal/ws"
)

func main() {
	cfg := config.Load()

	var persist repositories.Persistence
	if cfg.DBDSN != "" {
		pg, err := repositories.Connect(cfg.DBDSN)
		if err != nil {
			logrus.Fatalf("failed to connect to db: %v", err)
		}
		defer pg.Close()
		persist = pg
		logrus.Info("persistence enabled")
	}

	publisher := observability.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	observability.SetPublisher(publisher)

	reg := registry.New()
	rooms := store.NewRoomStore(cfg.RoomHistoryCap)
	archive := store.NewArchive(cfg.ArchiveCap)
	seedRooms(rooms)

	hub := ws.NewHub()
	eventRouter := router.New(reg, rooms, archive, hub, persist)

	resolver := identity.NewResolver(verifierOrNil(cfg.JWTSecret), cfg.AuthStrict)
	wsHandler := ws.NewHandler(hub, resolver, ws.Callbacks{
		OnConnect: func(c *ws.Client) { eventRouter.HandleConnect(c) },
		OnFrame:   func(c *ws.Client, f models.Frame) { eventRouter.HandleFrame(c, f) },
		OnClose:   func(c *ws.Client) { eventRouter.HandleDisconnect(c) },
	}, cfg.EventsPerSecond)
	snapshot := handlers.NewSnapshotHandler(rooms, archive, eventRouter)

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(otelgin.Middleware("presence-service"))
	engine.Use(observability.HTTPMetricsMiddleware())

	engine.GET("/health", snapshot.Health)
	engine.GET("/rooms", snapshot.ListRooms)
	engine.POST("/rooms", snapshot.CreateRoom)
	engine.DELETE("/rooms/:name", snapshot.DeleteRoom)
	engine.GET("/messages/search", snapshot.SearchMessages)
	engine.GET("/messages/paginate", snapshot.PaginateMessages)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	engine.GET("/ws", wsHandler.Handle)

	logrus.WithField("port", cfg.Port).Info("presence service listening")
	if err := engine.Run(":" + cfg.Port); err != nil {
		logrus.Fatalf("server error: %v", err)
	}
}

func verifierOrNil(secret string) identity.Verifier {
	v := identity.NewJWTVerifier(secret)
	if v == nil {
		return nil
	}
	return v
}

// seedRooms pre-populates the demo rooms with system welcome messages.
func seedRooms(rooms *store.RoomStore) {
	general := models.NewMessage("General", "system", "System", "Welcome to the General room — say hi", false)
	tip := models.NewMessage("General", "system", "System", "Tip: create or join other rooms from the sidebar.", false)
	rooms.Seed("General", "system", general, tip)

	dev := models.NewMessage("Developers", "system", "System", "Welcome to Developers — share tips, snippets and bugs.", false)
	rooms.Seed("Developers", "system", dev)
}
