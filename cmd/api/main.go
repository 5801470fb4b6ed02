package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/coverstack/rating-engine/internal/core"
	transporthttp "github.com/coverstack/rating-engine/internal/http"
	"github.com/coverstack/rating-engine/internal/http/handlers"
	"github.com/coverstack/rating-engine/internal/http/health"
	"github.com/coverstack/rating-engine/internal/jobs"
	"github.com/coverstack/rating-engine/internal/middleware"
	"github.com/coverstack/rating-engine/internal/platform/config"
	"github.com/coverstack/rating-engine/internal/platform/logging"
	"github.com/coverstack/rating-engine/internal/store/dynamo"
	"github.com/coverstack/rating-engine/internal/store/memory"
	"github.com/coverstack/rating-engine/internal/store/mongo"
	"github.com/coverstack/rating-engine/internal/store/mysql"
)

// backend bundles one storage implementation behind the core interfaces.
type backend struct {
	catalog  core.CatalogRepo
	factors  core.FactorRepo
	quotes   core.QuoteRepo
	policies core.PolicyRepo
	payments core.PaymentRepo
	issuance core.IssuanceStore

	pinger health.Pinger
	close  func(ctx context.Context)
}

func main() {
	cfg := config.MustLoad()
	log := logging.New(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("starting rating-engine API", "env", cfg.Env, "db_type", cfg.DBType)

	be, err := buildBackend(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize storage", "db_type", cfg.DBType, "err", err)
		os.Exit(1)
	}
	defer be.close(context.Background())

	quoteSvc := core.NewQuoteService(be.catalog, be.factors, be.quotes)
	policySvc := core.NewPolicyService(be.quotes, be.policies, be.payments, be.issuance)

	// Middleware stack
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(time.Duration(cfg.HTTPRequestTimeoutSec) * time.Second))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(middleware.LimitRequestBody(middleware.MaxBodySize))

	rl := middleware.NewRateLimiter(cfg.RateLimitRPM, time.Minute)
	rl.StartWithContext(ctx)
	r.Use(rl.Middleware)

	r.Use(middleware.SimpleAPIKey(cfg.APIKey))

	opTimeout := time.Duration(cfg.StoreOpTimeoutMs) * time.Millisecond
	healthHandler := health.New(log, be.pinger, opTimeout)
	r.Handle("/health", healthHandler)
	r.Handle("/readyz", healthHandler)

	api := transporthttp.NewRouter(transporthttp.Deps{
		Mounts: []handlers.Mountable{
			handlers.NewCatalogHandler(be.catalog, log),
			handlers.NewQuoteHandler(quoteSvc, log),
			handlers.NewPolicyHandler(policySvc, log),
		},
	})
	r.Mount("/", api)

	// Background sweep of overdue quotes
	expiryWorker := jobs.NewExpiryWorker(be.quotes,
		time.Duration(cfg.ExpirySweepIntervalSec)*time.Second, log)
	go expiryWorker.Start(ctx)

	addr := fmt.Sprintf(":%s", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTPReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTPWriteTimeoutSec) * time.Second,
		IdleTimeout:  time.Duration(cfg.HTTPIdleTimeoutSec) * time.Second,
	}

	go func() {
		log.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "err", err)
	}
	log.Info("server stopped")
}

func buildBackend(ctx context.Context, cfg *config.Config, log *slog.Logger) (*backend, error) {
	switch cfg.DBType {
	case "mysql":
		return buildMySQL(cfg)
	case "mongo":
		return buildMongo(ctx, cfg)
	case "dynamodb":
		return buildDynamo(ctx, cfg, log)
	case "memory":
		return buildMemory(), nil
	default:
		return nil, fmt.Errorf("unknown DB_TYPE %q", cfg.DBType)
	}
}

func buildMySQL(cfg *config.Config) (*backend, error) {
	client, err := mysql.NewClient(cfg.MySQLDSN,
		time.Duration(cfg.StoreConnectTimeoutSec)*time.Second)
	if err != nil {
		return nil, err
	}
	if err := client.Migrate(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return &backend{
		catalog:  mysql.NewCatalogRepo(client),
		factors:  mysql.NewFactorRepo(client),
		quotes:   mysql.NewQuoteRepo(client),
		policies: mysql.NewPolicyRepo(client),
		payments: mysql.NewPaymentRepo(client),
		issuance: mysql.NewIssuanceRepo(client),
		pinger:   client,
		close:    func(context.Context) { _ = client.Close() },
	}, nil
}

func buildMongo(ctx context.Context, cfg *config.Config) (*backend, error) {
	client, err := mongo.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	if err := mongo.EnsureIndexes(ctx, client.DB); err != nil {
		_ = client.Close(ctx)
		return nil, err
	}

	opTimeout := time.Duration(cfg.StoreOpTimeoutMs) * time.Millisecond
	return &backend{
		catalog:  mongo.NewCatalogRepo(client.DB, opTimeout),
		factors:  mongo.NewFactorRepo(client.DB, opTimeout),
		quotes:   mongo.NewQuoteRepo(client.DB, opTimeout),
		policies: mongo.NewPolicyRepo(client.DB, opTimeout),
		payments: mongo.NewPaymentRepo(client.DB, opTimeout),
		issuance: mongo.NewIssuanceRepo(client),
		pinger:   client,
		close:    func(ctx context.Context) { _ = client.Close(ctx) },
	}, nil
}

func buildDynamo(ctx context.Context, cfg *config.Config, log *slog.Logger) (*backend, error) {
	client, err := dynamo.NewClient(ctx, dynamo.Config{
		Region:          cfg.AWSRegion,
		Endpoint:        cfg.DynamoDBEndpoint,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
	})
	if err != nil {
		return nil, err
	}
	if err := dynamo.EnsureTables(ctx, client.DB, log); err != nil {
		return nil, err
	}

	return &backend{
		catalog:  dynamo.NewCatalogRepo(client.DB),
		factors:  dynamo.NewFactorRepo(client.DB),
		quotes:   dynamo.NewQuoteRepo(client.DB),
		policies: dynamo.NewPolicyRepo(client.DB),
		payments: dynamo.NewPaymentRepo(client.DB),
		issuance: dynamo.NewIssuanceRepo(client.DB),
		pinger:   client,
		close:    func(context.Context) {},
	}, nil
}

func buildMemory() *backend {
	st := memory.New()
	return &backend{
		catalog:  st.Catalog(),
		factors:  st.Factors(),
		quotes:   st.Quotes(),
		policies: st.Policies(),
		payments: st.Payments(),
		issuance: st,
		pinger:   st,
		close:    func(context.Context) {},
	}
}
