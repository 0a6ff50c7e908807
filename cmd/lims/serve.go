package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"golang.org/x/sync/errgroup"

	"github.com/mathew-h/experiment-tracking-sub000/internal/app"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/database"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/health"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/kafka"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/metrics"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/middleware"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/redis"
	experimentroutes "github.com/mathew-h/experiment-tracking-sub000/pkg/routes/experiments"
	timepointroutes "github.com/mathew-h/experiment-tracking-sub000/pkg/routes/timepoints"
	uploadroutes "github.com/mathew-h/experiment-tracking-sub000/pkg/routes/uploads"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/startup"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/tracing"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/tracing/exporters"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := newRuntime()
		if err != nil {
			return err
		}
		defer r.zap.Sync() //nolint:errcheck
		return r.serve(cmd.Context())
	},
}

func (r *runtime) serve(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := r.cfg
	logger := r.logger

	otlp := exporters.DefaultOTLPConfig(cfg.OTLPEndpoint)
	otlp.Protocol = cfg.OTLPProtocol
	otlp.Insecure = cfg.OTLPInsecure
	exporter, err := exporters.New(ctx, otlp, logger)
	if err != nil {
		return err
	}
	shutdownTracing := tracing.InitProvider(cfg.AppName, exporter)

	var (
		conn      database.DB
		redisConn *redis.Client
		producer  *kafka.Producer
	)

	deps := startup.NewStartup(logger, cfg.StartupMaxAttempts)
	deps.AddDependency(startup.Func{
		Name: "database",
		StartFunc: func(ctx context.Context) (err error) {
			conn, err = database.Open(ctx, r.connectionConfig(), logger)
			return err
		},
		StopFunc: func(context.Context) error { return conn.Close() },
	})
	if cfg.DatabaseMigrateOnStart {
		deps.AddDependency(startup.Func{
			Name:      "migrations",
			Requires:  []string{"database"},
			StartFunc: func(context.Context) error { return r.migrations().Migrate(conn) },
		})
	}
	if cfg.RedisEnabled {
		deps.AddDependency(startup.Func{
			Name: "redis",
			StartFunc: func(ctx context.Context) error {
				redisConn = redis.NewClient(redis.Config{
					Host:     cfg.RedisHost,
					Port:     cfg.RedisPort,
					Password: cfg.RedisPassword,
					DB:       cfg.RedisDB,
				}, logger)
				return redisConn.Connect(ctx)
			},
			StopFunc: func(context.Context) error { return redisConn.Close() },
		})
	}
	if cfg.KafkaEnabled {
		deps.AddDependency(startup.Func{
			Name: "kafka",
			StartFunc: func(context.Context) error {
				producer = kafka.NewProducer(kafka.ProducerConfig{
					Brokers:      cfg.KafkaBrokers,
					Topic:        cfg.KafkaOutputTopic,
					BatchSize:    cfg.KafkaBatchSize,
					BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
					RequiredAcks: cfg.KafkaRequiredAcks,
					Compression:  cfg.KafkaCompression,
				}, logger)
				return nil
			},
			StopFunc: func(context.Context) error { return producer.Close() },
		})
	}

	if err := deps.Start(ctx); err != nil {
		return err
	}

	// leave the options nil, never a typed nil pointer, when a dependency is disabled
	opts := app.Options{LegacyRawMatch: cfg.TimepointLegacyRawMatch, Rules: r.rules}
	if redisConn != nil {
		opts.Locker = redis.NewBucketLocker(redis.NewLocker(redisConn, "lims:lock:"), cfg.TimepointLockTTL, cfg.TimepointLockWait)
	}
	if producer != nil {
		opts.Publisher = producer
	}
	services := app.NewServices(conn, logger, opts)

	checker := health.NewChecker(cfg.Version).AddCheck("database", conn)
	if redisConn != nil {
		checker.AddCheck("redis", health.PingFunc(redisConn.Ping))
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{AllowOrigins: cfg.AllowOrigins, AllowMethods: cfg.AllowMethods}))
	e.Use(echomw.BodyLimit(cfg.MaxBodySize))
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))

	checker.RegisterRoutes(e)
	if cfg.MetricsEnabled {
		e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
	}
	api := e.Group("/api/v1")
	experimentroutes.Register(api, services.Experiments)
	timepointroutes.Register(api, services.Experiments)
	uploadroutes.Register(api, services.Results)

	e.Server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           e,
		ReadTimeout:       time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second,
		IdleTimeout:       time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.ReadHeaderTimeoutSeconds) * time.Second,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Infof("Listening on :%d", cfg.Port)
		checker.SetReady(true)
		if err := e.StartServer(e.Server); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-gctx.Done()
		checker.SetReady(false)
		logger.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), time.Duration(cfg.ShutdownTimeoutSeconds)*time.Second)
		defer cancel()

		var errs []error
		errs = append(errs, e.Shutdown(shutdownCtx))
		errs = append(errs, deps.Stop(shutdownCtx))
		errs = append(errs, shutdownTracing(shutdownCtx))
		return errors.Join(errs...)
	})
	return group.Wait()
}
