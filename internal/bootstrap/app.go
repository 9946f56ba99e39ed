package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"

	"bookhaven.ca/bookstore/api/internal/logging"
	"bookhaven.ca/bookstore/api/internal/router"
	"bookhaven.ca/bookstore/api/internal/service"
	"bookhaven.ca/bookstore/api/pkg/ai"
	"bookhaven.ca/bookstore/api/pkg/auth"
	"bookhaven.ca/bookstore/api/pkg/events"
	"bookhaven.ca/bookstore/api/pkg/global"
	"bookhaven.ca/bookstore/api/pkg/memory"
	"bookhaven.ca/bookstore/api/pkg/mongo"
	"bookhaven.ca/bookstore/api/pkg/redis"
	"bookhaven.ca/bookstore/api/pkg/store"
)

const startupTimeout = 10 * time.Second

type App struct {
	Router *gin.Engine
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type backends struct {
	books  store.BookStore
	orders store.OrderStore
	users  store.UserStore
	carts  store.CartStore
	cache  store.BookCache
	idem   store.IdempotencyStore
	health map[string]store.Pinger
}

// InitWithConfig connects the configured backends, builds the services and
// the router. The returned cleanup closes every connection it opened.
func InitWithConfig(cfg global.Config) (*App, func(), error) {
	log := logging.New("bootstrap")
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var (
		b   backends
		err error
	)
	switch cfg.App.StoreDriver {
	case global.DriverMemory:
		b = memoryBackends(cfg)
		log.Warn("using in-memory store, data is lost on restart")
	default:
		b, err = mongoBackends(ctx, cfg, log, &closers)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
	}

	publisher := newPublisher(cfg, log)
	closers = append(closers, func() {
		if err := publisher.Close(); err != nil {
			log.Error("failed to close event publisher", "err", err)
		}
	})

	tokens := auth.NewTokenIssuer(auth.Config{
		AccessSecret:  cfg.Security.JWTSecret,
		RefreshSecret: cfg.Security.JWTRefreshSecret,
		Issuer:        cfg.Security.Issuer,
		AccessTTL:     cfg.Security.AccessTTL,
		RefreshTTL:    cfg.Security.RefreshTTL,
	})

	catalog := service.NewCatalogService(b.books, b.cache)
	users := service.NewUserService(b.users, b.carts, tokens, cfg.Security.BcryptCost)
	orders := service.NewOrderService(b.carts, b.orders, b.users, catalog,
		service.WithIdempotency(b.idem),
		service.WithPublisher(publisher),
	)

	var narrator service.Narrator
	if c := ai.NewClient(cfg.AI.Endpoint, cfg.AI.APIKey, cfg.AI.Deployment); c != nil {
		narrator = c
	}
	reports := service.NewReportService(b.orders, narrator, cfg.Reports.TopBooks)

	if cfg.Admin.Email != "" {
		admin, err := users.EnsureAdmin(ctx, cfg.Admin.Email, cfg.Admin.Password, cfg.Admin.FirstName, cfg.Admin.LastName)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("ensure admin: %w", err)
		}
		log.Info("admin account ready", "email", admin.Email)
	}

	h := router.NewHandler(router.Services{
		Users:   users,
		Catalog: catalog,
		Carts:   service.NewCartService(b.carts, catalog),
		Orders:  orders,
		Reports: reports,
		Health:  b.health,
	})
	return &App{Router: router.NewEngine(cfg, h)}, cleanup, nil
}

func memoryBackends(cfg global.Config) backends {
	st := memory.NewStore()
	return backends{
		books:  st.Books(),
		orders: st.Orders(),
		users:  st.Users(),
		carts:  st.Carts(),
		idem:   st.Idempotency(cfg.Idempotency.TTL),
		health: map[string]store.Pinger{"memory": st},
	}
}

func mongoBackends(ctx context.Context, cfg global.Config, log *slog.Logger, closers *[]func()) (backends, error) {
	db, err := mongo.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		return backends{}, fmt.Errorf("connect mongo: %w", err)
	}
	*closers = append(*closers, func() {
		cctx, cancel := global.GetDefaultTimer()
		defer cancel()
		if err := db.Close(cctx); err != nil {
			log.Error("failed to disconnect mongo", "err", err)
		}
	})
	if err := db.EnsureIndexes(ctx); err != nil {
		return backends{}, fmt.Errorf("ensure indexes: %w", err)
	}

	rdb, err := redis.NewClient(ctx, redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return backends{}, fmt.Errorf("connect redis: %w", err)
	}
	*closers = append(*closers, func() { _ = rdb.Close() })
	log.Info("connected to Redis", "addr", cfg.Redis.Addr)

	return backends{
		books:  db.Books(),
		orders: db.Orders(),
		users:  db.Users(),
		carts:  redis.NewCartStore(rdb, cfg.Cart.TTL),
		cache:  redis.NewBookCache(rdb, cfg.Cache.TTL),
		idem:   redis.NewIdempotencyStore(rdb, cfg.Idempotency.TTL),
		health: map[string]store.Pinger{
			"mongo": db,
			"redis": redisPinger(rdb),
		},
	}, nil
}

func redisPinger(rdb *goredis.Client) store.Pinger {
	return pingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
}

// newPublisher uses Kafka when brokers are configured and falls back to
// logging events otherwise.
func newPublisher(cfg global.Config, log *slog.Logger) events.Publisher {
	if len(cfg.Kafka.Brokers) == 0 {
		log.Info("kafka disabled, order events will be logged")
		return events.NewLogPublisher(logging.New("events"))
	}
	log.Info("publishing order events to kafka", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	return events.NewKafkaPublisher(events.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic))
}
