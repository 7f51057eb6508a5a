package main

import (
	"context"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/quillnote/notes-platform/internal/platform/auth"
	"github.com/quillnote/notes-platform/internal/platform/config"
	"github.com/quillnote/notes-platform/internal/platform/db"
	"github.com/quillnote/notes-platform/internal/platform/httpserver"
	"github.com/quillnote/notes-platform/internal/platform/logging"
	"github.com/quillnote/notes-platform/internal/platform/natsconn"
	"github.com/quillnote/notes-platform/internal/platform/run"
	commentscfg "github.com/quillnote/notes-platform/services/comments/internal/config"
	"github.com/quillnote/notes-platform/services/comments/internal/events"
	"github.com/quillnote/notes-platform/services/comments/internal/geo"
	"github.com/quillnote/notes-platform/services/comments/internal/grpcapi"
	"github.com/quillnote/notes-platform/services/comments/internal/handlers"
	"github.com/quillnote/notes-platform/services/comments/internal/idempotency"
	"github.com/quillnote/notes-platform/services/comments/internal/service"
	"github.com/quillnote/notes-platform/services/comments/internal/store"
	"github.com/quillnote/notes-platform/services/comments/internal/textfilter"
	"github.com/quillnote/notes-platform/services/comments/internal/worker"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logging.New(cfg.LogLevel, cfg.ServiceName)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	svcCfg, err := commentscfg.Load()
	if err != nil {
		log.Error("load config", zap.Error(err))
		run.Exit(1)
	}
	isProd := cfg.IsProduction()

	comments, pgPool := initStore(log, svcCfg.DatabaseURL, isProd)
	if pgPool != nil {
		defer pgPool.Close()
	}

	if svcCfg.JWTSecret == "" {
		if isProd {
			log.Error("JWT_SECRET is required in production")
			run.Exit(1)
		}
		log.Warn("JWT_SECRET not set, every token will be rejected")
	}
	verifier := auth.JWTVerifier{Secret: []byte(svcCfg.JWTSecret)}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "geo",
		MaxRequests: svcCfg.CBMaxRequests,
		Interval:    svcCfg.CBInterval,
		Timeout:     svcCfg.CBTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= svcCfg.CBFailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Info("circuit-breaker state change", zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})
	locator, err := geo.New(svcCfg.GeoBaseURL, svcCfg.GeoCacheSize,
		geo.WithCircuitBreaker(cb), geo.WithLogger(log.Named("geo")))
	if err != nil {
		log.Error("geo client", zap.Error(err))
		run.Exit(1)
	}

	nc, js := initNATS(log, svcCfg.NATSURL, cfg.ServiceName, isProd)
	if nc != nil {
		defer nc.Close()
	}

	svc := service.New(service.Deps{
		Store:  comments,
		Text:   textfilter.New(),
		Geo:    locator,
		Events: events.New(js, log.Named("events")),
		Policy: svcCfg.Policy,
		Logger: log,
	})

	var consumer *worker.Consumer
	if svcCfg.AsyncConsumer && js != nil {
		seen, err := initIdempotency(log, svcCfg, pgPool, isProd)
		if err != nil {
			log.Error("idempotency store", zap.Error(err))
			run.Exit(1)
		}
		consumer = worker.New(svc, seen, log.Named("worker"))
	}

	r := chi.NewRouter()
	httpserver.SetupRouter(r, httpserver.RouterConfig{
		AllowedOrigins: cfg.HTTP.CORSAllowedOrigins,
		ReadyFunc: func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return svc.Ready(ctx)
		},
	})
	handlers.Mount(r, svc, log.Named("http"), verifier)
	srv := httpserver.New(httpserver.Options{Addr: cfg.HTTP.Addr, Router: r})

	lis, err := net.Listen("tcp", svcCfg.GRPCAddr)
	if err != nil {
		log.Error("grpc listen", zap.Error(err))
		run.Exit(1)
	}
	grpcSrv := grpc.NewServer()
	grpcapi.RegisterCommentServiceServer(grpcSrv, &grpcapi.CommentService{Comments: svc, Log: log.Named("grpc")})
	reflection.Register(grpcSrv)

	runner := run.New(log)
	code := runner.WithSignals(func(ctx context.Context) error {
		p := pool.New().WithContext(ctx).WithCancelOnError()
		p.Go(func(ctx context.Context) error {
			return srv.Serve(ctx, log)
		})
		p.Go(func(ctx context.Context) error {
			return serveGRPC(ctx, log, grpcSrv, lis)
		})
		if consumer != nil {
			p.Go(func(ctx context.Context) error {
				return consumer.Run(ctx, js)
			})
		}
		return p.Wait()
	})

	log.Info("exit", zap.Int("code", code))
	run.Exit(code)
}

// serveGRPC serves until ctx is done, then stops gracefully for up to 10s.
func serveGRPC(ctx context.Context, log *zap.Logger, s *grpc.Server, lis net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("grpc server starting", zap.String("addr", lis.Addr().String()))
		errCh <- s.Serve(lis)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	stopped := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(10 * time.Second):
		s.Stop()
	}
	return nil
}

// initStore selects the CommentStore backend.
// In production it requires a working Postgres connection and terminates the
// process otherwise.
func initStore(log *zap.Logger, dsn string, isProd bool) (store.CommentStore, *pgxpool.Pool) {
	if dsn == "" {
		if isProd {
			log.Error("DATABASE_URL is required in production")
			run.Exit(1)
		}
		log.Warn("DATABASE_URL not set, using in-memory comment store (development only)")
		return store.NewInMemoryCommentStore(), nil
	}

	ctx := context.Background()
	pgPool, err := db.Open(ctx, db.Options{DSN: dsn, Logger: log})
	if err != nil {
		if isProd {
			log.Error("postgres is required in production but unavailable", zap.Error(err))
			run.Exit(1)
		}
		log.Warn("postgres unavailable, falling back to in-memory comment store", zap.Error(err))
		return store.NewInMemoryCommentStore(), nil
	}
	if err := store.Migrate(ctx, pgPool); err != nil {
		pgPool.Close()
		log.Error("migrate comment schema", zap.Error(err))
		run.Exit(1)
	}

	log.Info("comments store: postgres")
	return store.NewPostgresCommentStore(pgPool), pgPool
}

// initNATS connects with backoff and makes sure the COMMENTS stream exists.
// Without NATS the service still answers requests; events are dropped.
func initNATS(log *zap.Logger, url, name string, isProd bool) (*nats.Conn, nats.JetStreamContext) {
	if url == "" {
		if isProd {
			log.Error("NATS_URL is required in production")
			run.Exit(1)
		}
		log.Warn("NATS_URL not set, domain events disabled")
		return nil, nil
	}

	var nc *nats.Conn
	b := backoff.NewExponentialBackOff(backoff.WithMaxElapsedTime(20 * time.Second))
	err := backoff.Retry(func() error {
		var err error
		nc, err = natsconn.Connect(natsconn.Options{URL: url, Name: name, Logger: log.Named("nats")})
		if err != nil {
			log.Warn("nats connect failed", zap.Error(err))
		}
		return err
	}, b)
	if err != nil {
		if isProd {
			log.Error("nats unavailable", zap.Error(err))
			run.Exit(1)
		}
		log.Warn("nats unavailable, domain events disabled", zap.Error(err))
		return nil, nil
	}

	js, err := nc.JetStream()
	if err == nil {
		err = events.EnsureStream(js)
	}
	if err != nil {
		nc.Close()
		if isProd {
			log.Error("jetstream setup", zap.Error(err))
			run.Exit(1)
		}
		log.Warn("jetstream unavailable, domain events disabled", zap.Error(err))
		return nil, nil
	}
	return nc, js
}

// initIdempotency prefers Redis, then Postgres; memory only outside production.
func initIdempotency(log *zap.Logger, cfg commentscfg.Config, pgPool *pgxpool.Pool, isProd bool) (idempotency.Store, error) {
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		var err error
		rdb, err = idempotency.ParseRedisURL(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("redis ping failed", zap.Error(err))
			if isProd && pgPool == nil {
				return nil, err
			}
			rdb = nil
		}
	}
	return idempotency.NewStore(rdb, pgPool, cfg.CommandTTL, isProd)
}
