package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gocql/gocql"
	goredis "github.com/redis/go-redis/v9"

	"mujthriftz/internal/app/policies"
	authsvc "mujthriftz/internal/app/services/auth"
	wishlistsvc "mujthriftz/internal/app/services/wishlist"
	"mujthriftz/internal/app/wiring"
	domainauth "mujthriftz/internal/domain/auth"
	domaincatalog "mujthriftz/internal/domain/catalog"
	domainchat "mujthriftz/internal/domain/chat"
	domainprofile "mujthriftz/internal/domain/profile"
	domainuser "mujthriftz/internal/domain/user"
	domainwishlist "mujthriftz/internal/domain/wishlist"
	"mujthriftz/internal/infra/broker/kafka"
	"mujthriftz/internal/infra/config"
	mongostore "mujthriftz/internal/infra/db/mongo"
	ginserver "mujthriftz/internal/infra/http/gin"
	"mujthriftz/internal/infra/inbox"
	"mujthriftz/internal/infra/mail"
	"mujthriftz/internal/infra/obs"
	"mujthriftz/internal/infra/outbox"
	"mujthriftz/internal/infra/realtime"
	"mujthriftz/internal/infra/security"
	"mujthriftz/internal/infra/storage/memory"
	redisstore "mujthriftz/internal/infra/storage/redis"
	"mujthriftz/internal/infra/storage/s3"
	"mujthriftz/internal/infra/storage/scylla"
)

const (
	mailQueueSize = 256
	wishlistTTL   = 30 * 24 * time.Hour
)

// application holds everything main needs once the backends are connected.
type application struct {
	handlers ginserver.Handlers
	health   obs.HealthHandlers
	metrics  *obs.Metrics
	catalog  domaincatalog.Repository
	workers  map[string]func(context.Context) error

	closers   []func(context.Context) error
	closeOnce sync.Once
}

// stores bundles the persistence choice: Mongo, Scylla and Redis when configured,
// in-memory otherwise.
type stores struct {
	chat     domainchat.Repository
	catalog  domaincatalog.Repository
	users    domainuser.Repository
	profiles domainprofile.Repository
	sessions domainauth.SessionStore
	queue    outbox.Queue
	inbox    inbox.Deduper
	wishlist domainwishlist.Store
	redis    *goredis.Client
}

func buildApplication(ctx context.Context, cfg config.Config, logger *slog.Logger) (*application, error) {
	app := &application{
		metrics: obs.NewMetrics(),
		health:  obs.HealthHandlers{Checks: map[string]obs.Check{}, Timeout: 2 * time.Second},
		workers: map[string]func(context.Context) error{},
	}
	fail := func(err error) (*application, error) {
		app.close(logger)
		return nil, err
	}

	st, err := app.openStores(ctx, cfg, logger)
	if err != nil {
		return fail(err)
	}
	app.catalog = st.catalog

	hub := realtime.NewHub()
	hub.Metrics = app.metrics
	switch cfg.RealtimeBroker {
	case config.BrokerRedis:
		hub.Relay = &realtime.RedisRelay{Client: st.redis, Logger: logger}
	case config.BrokerNATS:
		relay, err := realtime.NewNATSRelay(cfg.NATSURL, logger)
		if err != nil {
			return fail(err)
		}
		hub.Relay = relay
		app.onClose(func(context.Context) error { return relay.Close() })
	}
	app.workers["realtime"] = hub.Run

	var assets policies.AssetStorage
	if cfg.S3Endpoint != "" {
		store, err := s3.NewAssetStore(s3.Config{
			Endpoint:  cfg.S3Endpoint,
			UseSSL:    cfg.S3UseSSL,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			PublicURL: cfg.S3PublicEndpoint,
		}, logger)
		if err != nil {
			return fail(err)
		}
		assets = store
		app.health.Checks["s3"] = store.Ping
	} else {
		logger.Warn("S3_ENDPOINT not set, image uploads disabled")
	}

	var transport policies.Notifier = mail.LogNotifier{Logger: logger}
	if cfg.EmailJSServiceID != "" {
		transport = &mail.EmailJS{
			Endpoint:   cfg.EmailJSEndpoint,
			ServiceID:  cfg.EmailJSServiceID,
			PublicKey:  cfg.EmailJSPublicKey,
			PrivateKey: cfg.EmailJSPrivateKey,
			Templates:  cfg.EmailJSTemplates,
			DefaultTo:  cfg.MailTo,
		}
	}
	notifier := mail.NewAsyncNotifier(transport, mailQueueSize, logger)
	app.onClose(notifier.Close)

	if err := app.startOutbox(cfg, st, notifier, logger); err != nil {
		return fail(err)
	}

	buses := wiring.Build(wiring.Deps{
		Chat:      st.chat,
		Catalog:   st.catalog,
		Users:     st.users,
		Profiles:  st.profiles,
		Outbox:    st.queue,
		Publisher: hub,
		Assets:    assets,
		Notifier:  notifier,
		Metrics:   app.metrics,
		Logger:    logger,
	})
	logger.Debug("command bus ready", "commands", buses.CommandKeys)

	auth := &authsvc.Service{
		Users:      st.users,
		Profiles:   st.profiles,
		Sessions:   st.sessions,
		Passwords:  security.BcryptHasher{},
		Tokens:     security.JWTIssuer{Secret: []byte(cfg.JWTSecret), Issuer: "mujthriftz"},
		SessionTTL: cfg.SessionTTL,
		Logger:     logger,
	}
	wishlist := &wishlistsvc.Service{Store: st.wishlist, Catalog: st.catalog, Logger: logger}

	app.handlers = ginserver.Handlers{
		Auth:     ginserver.AuthHandler{Service: auth, Wishlist: wishlist, Logger: logger},
		Chat:     ginserver.ChatHandler{Commands: buses.Commands, Queries: buses.Queries, Logger: logger},
		Catalog:  ginserver.CatalogHandler{Commands: buses.Commands, Queries: buses.Queries, Logger: logger},
		Profile:  ginserver.ProfileHandler{Commands: buses.Commands, Queries: buses.Queries, Logger: logger},
		Wishlist: ginserver.WishlistHandler{Service: wishlist, Logger: logger},
		Support:  ginserver.SupportHandler{Commands: buses.Commands, Logger: logger},
		Realtime: ginserver.RealtimeHandler{
			Hub:       hub,
			Authorize: realtime.ChatAuthorizer(st.chat),
			Origins:   cfg.AllowedOrigins,
			Logger:    logger,
			Base:      ctx,
		},
		AuthMiddleware: ginserver.AuthMiddleware{Service: auth, Logger: logger}.Handle,
	}
	return app, nil
}

func (a *application) openStores(ctx context.Context, cfg config.Config, logger *slog.Logger) (stores, error) {
	st := stores{
		chat:     memory.NewChatRepository(),
		catalog:  memory.NewCatalogRepository(),
		users:    memory.NewUserRepository(),
		profiles: memory.NewProfileRepository(),
		sessions: memory.NewSessionStore(),
		queue:    outbox.NewMemoryQueue(),
		inbox:    inbox.NewMemory(),
		wishlist: memory.NewKV(),
	}

	if cfg.MongoURI != "" {
		client, err := mongostore.New(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return stores{}, err
		}
		a.onClose(client.Close)
		a.health.Checks["mongo"] = client.Ping

		if st.catalog, err = mongostore.NewCatalogRepository(ctx, client.DB); err != nil {
			return stores{}, err
		}
		if st.users, err = mongostore.NewUserRepository(ctx, client.DB); err != nil {
			return stores{}, err
		}
		if st.sessions, err = mongostore.NewSessionStore(ctx, client.DB); err != nil {
			return stores{}, err
		}
		st.profiles = mongostore.NewProfileRepository(client.DB)
		if st.queue, err = outbox.NewStore(ctx, client.DB); err != nil {
			return stores{}, err
		}
		if st.inbox, err = inbox.NewStore(ctx, client.DB, cfg.KafkaGroupID); err != nil {
			return stores{}, err
		}
		logger.Info("mongo connected", "database", cfg.MongoDB)
	} else {
		logger.Warn("MONGO_URI not set, catalog and accounts are kept in memory")
	}

	if len(cfg.ScyllaHosts) > 0 {
		session, err := scylla.NewSession(ctx, scylla.SessionConfig{
			Hosts:       cfg.ScyllaHosts,
			Keyspace:    cfg.ScyllaKeyspace,
			Consistency: cfg.ScyllaConsistency,
			Timeout:     cfg.ScyllaTimeout,
		}, logger)
		if err != nil {
			return stores{}, err
		}
		a.onClose(func(context.Context) error { session.Close(); return nil })
		a.health.Checks["scylla"] = func(ctx context.Context) error {
			return session.Query("SELECT now() FROM system.local").WithContext(ctx).Consistency(gocql.One).Exec()
		}
		st.chat = scylla.NewChatStore(session, logger)
	} else {
		logger.Warn("SCYLLA_HOSTS not set, chat history is kept in memory")
	}

	if cfg.RedisAddr != "" {
		client, err := redisstore.Connect(ctx, cfg.RedisAddr)
		if err != nil {
			return stores{}, err
		}
		a.onClose(func(context.Context) error { return client.Close() })
		a.health.Checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		st.redis = client
		st.wishlist = redisstore.NewKV(client, wishlistTTL)
	}
	return st, nil
}

// startOutbox relays queued events to Kafka, or straight to the notification
// consumer when no brokers are configured.
func (a *application) startOutbox(cfg config.Config, st stores, mailer policies.Notifier, logger *slog.Logger) error {
	notifications := &kafka.NotificationHandler{
		Users:  st.users,
		Mailer: mailer,
		Inbox:  st.inbox,
		Logger: logger,
	}

	var producer outbox.Producer = &kafka.LocalProducer{Handler: notifications}
	if len(cfg.KafkaBrokers) > 0 {
		p, err := kafka.NewProducer(cfg.KafkaBrokers, nil)
		if err != nil {
			return fmt.Errorf("kafka producer: %w", err)
		}
		a.onClose(func(context.Context) error { return p.Close() })
		producer = p

		topic := outbox.TopicFor(cfg.KafkaTopicPrefix, domainchat.MessageSentEvent{}.EventName())
		consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, []string{topic}, notifications, logger)
		if err != nil {
			return fmt.Errorf("kafka consumer: %w", err)
		}
		a.onClose(func(context.Context) error { return consumer.Close() })
		a.workers["notifications"] = consumer.Run
	} else {
		logger.Warn("KAFKA_BROKERS not set, events are delivered in process")
	}

	worker := &outbox.Worker{
		Queue:       st.queue,
		Producer:    producer,
		Interval:    cfg.OutboxPollInterval,
		TopicPrefix: cfg.KafkaTopicPrefix,
		Source:      "mujthriftz",
		Backoff:     cfg.RetryBackoff,
		Logger:      logger,
		Metrics:     a.metrics,
	}
	a.workers["outbox"] = worker.Run
	return nil
}

func (a *application) onClose(fn func(context.Context) error) {
	a.closers = append(a.closers, fn)
}

// close releases backends in reverse order of opening.
func (a *application) close(logger *slog.Logger) {
	a.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for i := len(a.closers) - 1; i >= 0; i-- {
			if err := a.closers[i](ctx); err != nil {
				logger.Warn("shutdown step failed", "error", err)
			}
		}
	})
}
