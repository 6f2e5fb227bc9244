package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	authhandler "cinelog/internal/auth/handler"
	jwttoken "cinelog/internal/jwt_token"
	"cinelog/internal/platform/config"
	"cinelog/internal/platform/httpserver"
	"cinelog/internal/platform/logger"
	"cinelog/internal/platform/metrics"
	"cinelog/internal/platform/middleware"
	"cinelog/internal/platform/postgres"
	redisplatform "cinelog/internal/platform/redis"
	"cinelog/internal/ratelimit"
	realtimehandler "cinelog/internal/realtime/handler"
	"cinelog/internal/realtime/notifier"
	"cinelog/internal/realtime/registry"
	reviewhandler "cinelog/internal/review/handler"
	reviewservice "cinelog/internal/review/service"
	reviewstore "cinelog/internal/review/store/review"
	socialhandler "cinelog/internal/social/handler"
	socialservice "cinelog/internal/social/service"
	followstore "cinelog/internal/social/store/follow"
	likestore "cinelog/internal/social/store/like"
	userhandler "cinelog/internal/user/handler"
	userservice "cinelog/internal/user/service"
	"cinelog/internal/user/store/identitycache"
	userstore "cinelog/internal/user/store/user"
	audit "cinelog/pkg/platform/audit"
	"cinelog/pkg/platform/audit/buffered"
	auditkafka "cinelog/pkg/platform/audit/kafka"
	"cinelog/pkg/platform/audit/logsink"
	authmw "cinelog/pkg/platform/middleware/auth"
	"cinelog/pkg/platform/middleware/metadata"
	"cinelog/pkg/platform/middleware/requesttime"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log)

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("server exited properly")
}

// stores groups the persistence choice made at startup.
type stores struct {
	users   userservice.Store
	reviews reviewservice.Store
	follows socialservice.FollowStore
	likes   socialservice.LikeStore
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	reg := metrics.NewRegistry()

	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			return err
		}
	}
	st := buildStores(db)
	log.Info("stores ready", "backend", backendName(db))

	redisClient, err := redisplatform.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	sink, kafkaClient, err := buildAuditSink(ctx, cfg.Kafka, log)
	if err != nil {
		return err
	}
	if kafkaClient != nil {
		defer kafkaClient.Close()
	}
	auditor := buffered.New(sink,
		buffered.WithLogger(log),
		buffered.WithMetrics(buffered.NewMetrics(reg)),
	)

	var cache *goredis.Client
	if redisClient != nil {
		cache = redisClient.Client
	}
	a := newApp(cfg, log, reg, deps{
		stores:  st,
		auditor: auditor,
		cache:   cache,
		health:  healthHandler(db, redisClient),
	})

	srv := httpserver.New(cfg.Server.Addr, a.router)
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting cinelog", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return auditor.Run(gCtx)
	})
	g.Go(func() error {
		<-gCtx.Done()
		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return shutdown(shutdownCtx, srv, a.connections, log)
	})

	return g.Wait()
}

// shutdown stops the HTTP server, then closes notification sockets, which
// http.Server.Shutdown does not track once upgraded.
func shutdown(ctx context.Context, srv *http.Server, connections *registry.Registry, log *slog.Logger) error {
	err := srv.Shutdown(ctx)
	closed := connections.CloseAll(registry.CloseGoingAway, registry.CloseGoingAwayReason)
	log.Info("notification sockets closed", "count", closed)
	return err
}

// deps are the startup choices newApp wires into handlers.
type deps struct {
	stores  stores
	auditor audit.Publisher
	// cache fronts identity lookups when set.
	cache  *goredis.Client
	health http.HandlerFunc
}

type app struct {
	router      chi.Router
	connections *registry.Registry
}

// newApp builds services and the gated router.
func newApp(cfg config.Config, log *slog.Logger, reg *prometheus.Registry, d deps) *app {
	tokens := jwttoken.NewJWTService(cfg.Auth.SecretKey, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL)
	users := userservice.New(d.stores.users, userservice.WithLogger(log), userservice.WithAudit(d.auditor))

	var lookup authmw.IdentityLookup = users
	if d.cache != nil {
		lookup = identitycache.New(users, d.cache, cfg.Redis.IdentityTTL,
			identitycache.WithLogger(log),
			identitycache.WithMetrics(identitycache.NewMetrics(reg)),
		)
	}
	gate := authmw.NewGate(jwttoken.NewGateVerifierAdapter(tokens), lookup, log,
		authmw.WithAudit(d.auditor),
		authmw.WithMetrics(authmw.NewMetrics(reg)),
	)

	connections := registry.New(log, registry.NewMetrics(reg))
	reviews := reviewservice.New(d.stores.reviews, reviewservice.WithLogger(log))
	social := socialservice.New(d.stores.follows, d.stores.likes, users, reviews,
		notifier.New(connections, log),
		socialservice.WithLogger(log),
	)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Logger(log))
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(middleware.LatencyMiddleware(metrics.New(reg)))
	r.Use(gate.Middleware)

	r.Handle("/metrics", metrics.Handler(reg))
	if d.health != nil {
		r.Get("/health", d.health)
	}

	userhandler.New(users, log).Register(r)
	authhandler.New(users, tokens, log, cfg.Auth, loginOptions(cfg.Lockout, log, reg, d)...).Register(r)
	reviewhandler.New(reviews, log).Register(r)
	socialhandler.New(social, log).Register(r)
	realtimehandler.New(gate, connections, log, cfg.Realtime,
		realtimehandler.WithAudit(d.auditor),
	).Register(r)

	return &app{router: r, connections: connections}
}

// loginOptions enables the login lockout, shared through redis when a cache
// is configured.
func loginOptions(cfg config.Lockout, log *slog.Logger, reg prometheus.Registerer, d deps) []authhandler.Option {
	if cfg.MaxFailures <= 0 {
		return nil
	}
	var store ratelimit.Store = ratelimit.NewInMemoryStore()
	if d.cache != nil {
		store = ratelimit.NewRedisStore(d.cache)
	}
	lockout := ratelimit.New(store, cfg.MaxFailures, cfg.Window,
		ratelimit.WithLogger(log),
		ratelimit.WithAudit(d.auditor),
		ratelimit.WithMetrics(ratelimit.NewMetrics(reg)),
	)
	return []authhandler.Option{authhandler.WithLockout(lockout)}
}

func buildStores(db *sql.DB) stores {
	if db == nil {
		return stores{
			users:   userstore.NewInMemory(),
			reviews: reviewstore.NewInMemory(),
			follows: followstore.NewInMemory(),
			likes:   likestore.NewInMemory(),
		}
	}
	return stores{
		users:   userstore.NewPostgres(db),
		reviews: reviewstore.NewPostgres(db),
		follows: followstore.NewPostgres(db),
		likes:   likestore.NewPostgres(db),
	}
}

func backendName(db *sql.DB) string {
	if db == nil {
		return "memory"
	}
	return "postgres"
}

// buildAuditSink returns the log sink, or a Kafka sink falling back to it
// when brokers are configured.
func buildAuditSink(ctx context.Context, cfg config.Kafka, log *slog.Logger) (audit.Sink, *kgo.Client, error) {
	fallback := logsink.New(log)
	if len(cfg.Brokers) == 0 {
		return fallback, nil, nil
	}

	client, err := auditkafka.NewClient(cfg.Brokers, cfg.AuditTopic)
	if err != nil {
		return nil, nil, err
	}
	topicCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := auditkafka.EnsureTopic(topicCtx, client, cfg.AuditTopic, 1, 1); err != nil {
		// the sink falls back to logs until the broker answers
		log.Warn("could not ensure audit topic", "topic", cfg.AuditTopic, "error", err)
	}
	return auditkafka.NewSink(client, cfg.AuditTopic, fallback, auditkafka.WithLogger(log)), client, nil
}
