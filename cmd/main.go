package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/adityavishwakarma159/CampusConnect/internal/api"
	"github.com/adityavishwakarma159/CampusConnect/internal/auth"
	"github.com/adityavishwakarma159/CampusConnect/internal/cache"
	cfgpkg "github.com/adityavishwakarma159/CampusConnect/internal/config"
	"github.com/adityavishwakarma159/CampusConnect/internal/directory"
	"github.com/adityavishwakarma159/CampusConnect/internal/events"
	"github.com/adityavishwakarma159/CampusConnect/internal/kafka"
	"github.com/adityavishwakarma159/CampusConnect/internal/permission"
	"github.com/adityavishwakarma159/CampusConnect/internal/service"
	"github.com/adityavishwakarma159/CampusConnect/internal/store"
	"github.com/adityavishwakarma159/CampusConnect/internal/ws"
)

func main() {
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}
	cfg, err := cfgpkg.Load(cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("config load")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Directory: HTTP client against the directory service, or the
	// static in-memory one for local development.
	var dir directory.Directory
	if cfg.Directory.BaseURL != "" {
		dir = directory.NewClient(directory.ClientConfig{
			BaseURL:         cfg.Directory.BaseURL,
			Timeout:         cfg.Directory.Timeout,
			RetryMaxElapsed: cfg.Directory.RetryMaxElapsed,
		})
	} else {
		log.Warn().Msg("no directory base_url configured, using empty static directory")
		dir = directory.NewStatic()
	}

	// Storage: Mongo when configured, in-memory otherwise.
	var (
		messages store.MessageStore
		index    store.ConversationIndex
	)
	if cfg.Mongo.URI != "" {
		mc, err := store.NewMongoClient(context.Background(), cfg.Mongo.URI)
		if err != nil {
			log.Fatal().Err(err).Msg("mongo init")
		}
		defer func() { _ = mc.Disconnect(context.Background()) }()
		db := mc.Database(cfg.Mongo.Database)
		messages = store.NewMongoMessageStore(db.Collection(cfg.Mongo.MessagesCollection), dir)
		index = store.NewMongoConversationIndex(db.Collection(cfg.Mongo.ParticipantsCollection))
	} else {
		log.Warn().Msg("no mongodb uri configured, using in-memory store")
		messages = store.NewMemoryMessageStore(dir)
		index = store.NewMemoryConversationIndex()
	}

	// Redis mirrors, optional: presence for other services, staff
	// monitoring so permission checks agree across instances.
	var (
		presence ws.Presence
		monitors ws.MonitorMirror
	)
	if cfg.Redis.Addr != "" {
		rc, err := cache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Prefix)
		if err != nil {
			log.Fatal().Err(err).Msg("redis init")
		}
		defer rc.Close()
		presence = rc
		monitors = rc
	}

	hub := ws.NewHub(presence, monitors)
	perms := permission.NewEngine(dir, hub)

	var pub service.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		kprod := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicMessageSent)
		defer kprod.Close()
		pub = kprod
	}

	// Cross-instance fan-out: when NATS is configured, every delivery is
	// mirrored onto the events subject and replayed by the other
	// instances' hubs.
	var router service.Router = hub
	if cfg.Nats.URL != "" {
		bridge, err := events.NewBridge(hub, cfg.Nats.URL, cfg.Nats.EventsSubject)
		if err != nil {
			log.Fatal().Err(err).Msg("nats init")
		}
		defer bridge.Close()
		router = bridge
	}

	svc := service.NewChatService(messages, index, dir, perms, router, pub)

	jv, err := auth.NewValidator(cfg.JWT.PublicKeyPath)
	if err != nil {
		log.Fatal().Err(err).Msg("jwt validator")
	}

	wsrv := ws.NewServer(hub, svc, perms, dir, jv)
	app := api.NewServer(svc, wsrv, jv, dir)

	go func() {
		if err := app.Listen(fmt.Sprintf(":%d", cfg.App.Port)); err != nil {
			log.Fatal().Err(err).Msg("server listen")
		}
	}()
	log.Info().Int("port", cfg.App.Port).Msg("chat service started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()
	_ = app.ShutdownWithContext(shutdownCtx)
	log.Info().Msg("chat service stopped")
}
