package di

import (
	"context"
	"fmt"

	"dt-server/api"
	"dt-server/api/baas"
	"dt-server/config"
	"dt-server/dao"
	"dt-server/dao/detections"
	"dt-server/dao/memory"
	"dt-server/dao/redis"
	"dt-server/db"
	"dt-server/forecast"
	"dt-server/server"
	"dt-server/server/handlers"
	services "dt-server/service"

	goredis "github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Container holds all application dependencies.
type Container struct {
	Config                 *config.Config
	Logger                 *logrus.Logger
	DetectionDAO           *detections.BreakerDetectionDAO
	RedisClient            db.RedisClient
	RedisTrendDao          *redis.RedisTrendDAO
	LRUTrendDao            *memory.LRUTrendDAO
	Estimator              *forecast.Estimator
	TrendService           *services.TrendService
	TrendHandler           *handlers.TrendHandler
	MuxRouter              *mux.Router
	Router                 *server.Router
	DiseaseTrendHttpServer *server.DiseaseTrendHttpServer
	TrendsRefresherService *services.TrendsRefresherService

	closers []func()
}

// NewContainer initializes and wires up all dependencies. Call Close when done.
func NewContainer(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*Container, error) {
	logger.WithField("driver", cfg.Store.Driver).Info("Initializing container")
	c := &Container{Config: cfg, Logger: logger}

	source, err := c.newDetectionSource(ctx)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.DetectionDAO = detections.NewBreakerDetectionDAO(cfg.Store.Driver, source, cfg.Store.Breaker, logger)

	// nearest cache first
	c.LRUTrendDao = memory.NewLRUTrendDAO(cfg.Cache.LocalSize, cfg.Cache.LocalTTL)
	caches := []dao.TrendReportDAO{c.LRUTrendDao}

	if cfg.Redis.Enabled {
		redisInternalClient := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		redisClient := db.NewGoRedisClient(redisInternalClient)
		c.closers = append(c.closers, func() { redisClient.Close() })
		if err := redisClient.Ping(ctx); err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Redis.Address, err)
		}
		c.RedisClient = redisClient
		c.RedisTrendDao = redis.NewRedisTrendDAO(redisClient, cfg.Redis.TTL, logger)
		caches = append(caches, c.RedisTrendDao)
	} else {
		logger.Info("Redis cache disabled")
	}

	reasoner, err := forecast.NewReasoner()
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Estimator = forecast.NewEstimator(cfg.Forecast, reasoner)

	c.TrendService = services.NewTrendService(c.DetectionDAO, c.Estimator, reasoner, logger, caches...)
	c.TrendsRefresherService = services.NewTrendsRefresherService(c.TrendService, cfg.Refresher.Windows, cfg.Refresher.Locales, logger)

	c.TrendHandler = handlers.NewTrendHandler(c.TrendService, logger)
	c.MuxRouter = mux.NewRouter()
	c.Router = server.NewRouter(c.TrendHandler, c.MuxRouter,
		server.RateLimitMiddleware(cfg.Server.RateLimit, cfg.Server.RateBurst))
	c.DiseaseTrendHttpServer = server.NewDiseaseTrendHttpServer(c.Router, c.MuxRouter, cfg.Server, logger)

	return c, nil
}

func (c *Container) newDetectionSource(ctx context.Context) (dao.DetectionDAO, error) {
	store := c.Config.Store
	switch store.Driver {
	case config.DriverPostgres:
		pool, err := db.NewPostgresPool(ctx, store.Postgres, c.Logger)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, pool.Close)
		return detections.NewPostgresDetectionDAO(pool), nil

	case config.DriverSQLite:
		conn, err := db.OpenSQLite(store.SQLite.Path)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, func() { conn.Close() })
		if err := Migrate(c.Config, c.Logger, true); err != nil {
			return nil, err
		}
		return detections.NewSQLiteDetectionDAO(conn), nil

	case config.DriverREST:
		httpClient := api.NewHTTPClient(store.REST.BaseURL, store.REST.Timeout).WithRateLimit(store.REST.RateLimit)
		return baas.NewDetectionsClient(httpClient, store.REST.APIKey), nil

	case config.DriverFixture:
		c.Logger.WithField("path", store.Fixture).Info("Using fixture detection source")
		mock, err := baas.NewDetectionsClientMock(store.Fixture)
		if err != nil {
			return nil, err
		}
		return mock, nil

	default:
		return nil, fmt.Errorf("unknown store driver: %q", store.Driver)
	}
}

// Migrate applies (up) or rolls back one step of (down) the schema of the
// configured SQL store.
func Migrate(cfg *config.Config, logger *logrus.Logger, up bool) error {
	var url string
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		url = cfg.Store.Postgres.URL("pgx5")
	case config.DriverSQLite:
		url = "sqlite://" + cfg.Store.SQLite.Path
	default:
		return fmt.Errorf("store driver %q has no schema to migrate", cfg.Store.Driver)
	}

	runner, err := db.NewMigrationRunner(url, logger)
	if err != nil {
		return err
	}
	defer runner.Close()

	if up {
		return runner.Up()
	}
	return runner.Down()
}

// Close releases connections in reverse order of creation.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}
