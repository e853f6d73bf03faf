// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"dishlist-workers/internal/common/aws"
	"dishlist-workers/internal/common/camunda"
	"dishlist-workers/internal/common/config"
	"dishlist-workers/internal/common/database"
	apperrors "dishlist-workers/internal/common/errors"
	"dishlist-workers/internal/common/logger"
	"dishlist-workers/internal/common/observability"
	"dishlist-workers/internal/common/places"
	"dishlist-workers/internal/common/validation"
	"dishlist-workers/internal/dishlist/cache"
	"dishlist-workers/internal/dishlist/chains"
	"dishlist-workers/internal/dishlist/store"

	// Data Access Workers (2)
	qe "dishlist-workers/internal/workers/data-access/query-elasticsearch"
	qp "dishlist-workers/internal/workers/data-access/query-postgresql"

	// Ingestion Workers (3)
	sp "dishlist-workers/internal/workers/places/search-places"
	cc "dishlist-workers/internal/workers/restaurants/consolidate-chains"
	ir "dishlist-workers/internal/workers/restaurants/ingest-restaurants"

	// Rating & Ranking Workers (4)
	ar "dishlist-workers/internal/workers/ratings/aggregate-ratings"
	sr "dishlist-workers/internal/workers/ratings/submit-rating"
	bd "dishlist-workers/internal/workers/rankings/build-dishlist-100"
	rc "dishlist-workers/internal/workers/rankings/rank-category"

	// User & Communication Workers (2)
	sir "dishlist-workers/internal/workers/communication/send-ingestion-report"
	aml "dishlist-workers/internal/workers/lists/add-to-my-list"
)

var connectRetry = &camunda.RetryConfig{
	MaxRetries: 15,
	BaseDelay:  2 * time.Second,
	MaxDelay:   30 * time.Second,
}

type deps struct {
	cfg       *config.Config
	log       logger.Logger
	zapLog    *zap.Logger
	obs       *observability.Observability
	validator *validation.Validator
	pg        *database.PostgresClient
	es        *database.ElasticsearchClient
	redis     *database.RedisClient
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...",
		zap.String("app", cfg.App.Name),
		zap.String("environment", cfg.App.Environment),
		zap.String("city", cfg.DishList.CitySlug),
	)

	var obsOpts []observability.Option
	if cfg.Observability.JaegerEndpoint != "" {
		obsOpts = append(obsOpts, observability.WithJaeger(cfg.Observability.JaegerEndpoint))
	}
	obs, err := observability.New(cfg.Observability.ServiceName, obsOpts...)
	if err != nil {
		zapLog.Fatal("observability init failed", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := obs.Shutdown(ctx); err != nil {
			zapLog.Warn("observability shutdown failed", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Zeebe ---
	zeebe, err := camunda.NewClientWithConfig(ctx, &camunda.ClientConfig{
		GatewayAddress:         cfg.Camunda.BrokerAddress,
		UsePlaintextConnection: true,
		ConnectionTimeout:      config.GetDuration(cfg.Camunda.RequestTimeout),
	}, zapLog)
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	defer zeebe.Close()
	zapLog.Info("Zeebe client connected successfully")

	// --- PostgreSQL ---
	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		zapLog.Fatal("postgres init failed", zap.Error(err))
	}
	defer pg.Close()
	if err := camunda.Retry(ctx, connectRetry, zapLog, "PostgreSQL connection", pg.Ping); err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	if err := pg.EnsureSchema(ctx); err != nil {
		zapLog.Fatal("postgres schema failed", zap.Error(err))
	}
	zapLog.Info("PostgreSQL connected successfully")

	// --- Elasticsearch ---
	esClient, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
	if err != nil {
		zapLog.Fatal("elasticsearch init failed", zap.Error(err))
	}
	err = camunda.Retry(ctx, connectRetry, zapLog, "Elasticsearch connection", func(context.Context) error {
		return esClient.Ping()
	})
	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	if err := esClient.EnsureRestaurantIndex(ctx, cfg.Database.Elasticsearch.RestaurantIndex); err != nil {
		zapLog.Fatal("elasticsearch index setup failed", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	// --- Redis ---
	redisClient, err := database.NewRedis(cfg.Database.Redis)
	if err != nil {
		zapLog.Fatal("redis init failed", zap.Error(err))
	}
	defer redisClient.Close()
	if err := camunda.Retry(ctx, connectRetry, zapLog, "Redis connection", redisClient.Ping); err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	zapLog.Info("Redis connected successfully")

	validator, err := validation.LoadValidator(cfg.RegistryPath)
	if err != nil {
		zapLog.Fatal("activity registry load failed", zap.String("path", cfg.RegistryPath), zap.Error(err))
	}

	d := &deps{
		cfg:       cfg,
		log:       log,
		zapLog:    zapLog,
		obs:       obs,
		validator: validator,
		pg:        pg,
		es:        esClient,
		redis:     redisClient,
	}

	workers, err := registerWorkers(ctx, d, zeebe)
	if err != nil {
		zapLog.Fatal("worker registration failed", zap.Error(err))
	}
	zapLog.Info("Workers registered", zap.Int("count", len(workers)))

	// --- Health & Metrics Server ---
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Observability.MetricsPort),
		Handler:           healthMux(d, zeebe),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	<-ctx.Done()
	zapLog.Info("Shutdown signal received, stopping workers...")

	for _, w := range workers {
		w.Close()
		w.AwaitClose()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Health/Metrics server shutdown failed", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped")
}

func registerWorkers(ctx context.Context, d *deps, zeebe *camunda.Client) ([]worker.JobWorker, error) {
	cfg := d.cfg
	dl := cfg.DishList
	st := store.New(d.pg.DB)
	summaries := cache.NewSummaryCache(d.redis.Client, time.Duration(dl.RatingSummaryCacheTTL)*time.Second)
	consolidator := chains.NewConsolidator(consolidatorConfig(dl))

	var started []worker.JobWorker
	start := func(taskType string, handle camunda.HandlerFunc) {
		eh := apperrors.NewErrorHandler(d.log.WithFields(map[string]interface{}{"taskType": taskType}))
		wrapped := camunda.Instrument(taskType, d.validator.Wrap(taskType, eh, handle), d.obs, d.zapLog)
		if jw := camunda.Start(zeebe.GetClient(), taskType, config.GetWorkerConfig(cfg, taskType), wrapped, d.zapLog); jw != nil {
			started = append(started, jw)
		}
	}

	// --- 1. Ingestion Workers ---
	{
		c := sp.LoadConfig()
		c.Timeout = workerTimeout(cfg, sp.TaskType, c.Timeout)
		c.MinRating = dl.MinPlaceRating
		c.CacheTTL = time.Duration(cfg.APIs.GooglePlaces.CacheTTL) * time.Second
		c.FallbackNeighbourhood = dl.CityName
		gp := cfg.APIs.GooglePlaces
		placesClient := places.NewClient(places.Config{
			BaseURL:     gp.BaseURL,
			APIKey:      gp.APIKey,
			Timeout:     config.GetDuration(gp.Timeout),
			MaxDetails:  gp.MaxDetails,
			DetailPause: config.GetDuration(gp.DetailPauseMs),
		})
		start(sp.TaskType, sp.NewHandler(c, placesClient, d.redis.Client, d.log).Handle)
	}
	{
		c := cc.LoadConfig()
		c.Timeout = workerTimeout(cfg, cc.TaskType, c.Timeout)
		c.DefaultCitySlug = dl.CitySlug
		start(cc.TaskType, cc.NewHandler(c, consolidator, st, d.log).Handle)
	}
	{
		c := ir.LoadConfig()
		c.Timeout = workerTimeout(cfg, ir.TaskType, c.Timeout)
		c.DefaultCitySlug = dl.CitySlug
		c.IndexName = cfg.Database.Elasticsearch.RestaurantIndex
		start(ir.TaskType, ir.NewHandler(c, consolidator, st, d.es, summaries, d.log).Handle)
	}

	// --- 2. Rating & Ranking Workers ---
	{
		c := ar.LoadConfig()
		c.Timeout = workerTimeout(cfg, ar.TaskType, c.Timeout)
		start(ar.TaskType, ar.NewHandler(c, st, summaries, d.log).Handle)
	}
	{
		c := sr.LoadConfig()
		c.Timeout = workerTimeout(cfg, sr.TaskType, c.Timeout)
		start(sr.TaskType, sr.NewHandler(c, st, summaries, d.log).Handle)
	}
	{
		c := rc.LoadConfig()
		c.Timeout = workerTimeout(cfg, rc.TaskType, c.Timeout)
		c.DefaultCitySlug = dl.CitySlug
		c.DefaultLimit = dl.LeaderboardLimit
		start(rc.TaskType, rc.NewHandler(c, st, d.log).Handle)
	}
	{
		c := bd.LoadConfig()
		c.Timeout = workerTimeout(cfg, bd.TaskType, c.Timeout)
		c.DefaultCitySlug = dl.CitySlug
		c.Threshold = dl.Top100Threshold
		c.Limit = dl.Top100Limit
		start(bd.TaskType, bd.NewHandler(c, st, d.log).Handle)
	}

	// --- 3. Data Access Workers ---
	{
		c := qp.LoadConfig()
		c.Timeout = workerTimeout(cfg, qp.TaskType, c.Timeout)
		c.TopRatingsLimit = dl.DetailTopRatingsLimit
		start(qp.TaskType, qp.NewHandler(c, st, d.log).Handle)
	}
	{
		c := qe.LoadConfig()
		c.Timeout = workerTimeout(cfg, qe.TaskType, c.Timeout)
		c.DefaultIndex = cfg.Database.Elasticsearch.RestaurantIndex
		c.DefaultCity = dl.CitySlug
		start(qe.TaskType, qe.NewHandler(c, d.es.Client, d.log).Handle)
	}

	// --- 4. User & Communication Workers ---
	{
		c := aml.LoadConfig()
		c.Timeout = workerTimeout(cfg, aml.TaskType, c.Timeout)
		start(aml.TaskType, aml.NewHandler(c, st, d.log).Handle)
	}
	if config.IsWorkerEnabled(cfg, sir.TaskType) {
		h, err := reportHandler(ctx, cfg, d.log)
		if err != nil {
			return started, err
		}
		start(sir.TaskType, h.Handle)
	}

	return started, nil
}

// reportHandler builds the report worker. Channels that are switched off
// stay nil so the service skips them.
func reportHandler(ctx context.Context, cfg *config.Config, log logger.Logger) (*sir.Handler, error) {
	n := cfg.Notifications
	c := sir.DefaultConfig()
	c.Timeout = workerTimeout(cfg, sir.TaskType, c.Timeout)
	c.EmailEnabled = n.Email.Enabled
	if n.Email.FromEmail != "" {
		c.FromEmail = n.Email.FromEmail
	}
	c.Recipients = n.Email.Recipients
	c.SNSEnabled = n.SNS.Enabled
	c.TopicARN = n.SNS.TopicARN
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s config: %w", sir.TaskType, err)
	}

	var email sir.EmailSender
	if c.EmailEnabled {
		sesClient, err := aws.NewSESClient(ctx, n.AWS.Region)
		if err != nil {
			return nil, fmt.Errorf("ses client: %w", err)
		}
		email = sesClient
	}
	var publisher sir.Publisher
	if c.SNSEnabled {
		snsClient, err := aws.NewSNSClient(ctx, n.AWS.Region)
		if err != nil {
			return nil, fmt.Errorf("sns client: %w", err)
		}
		publisher = snsClient
	}
	return sir.NewHandler(c, email, publisher, log), nil
}

func consolidatorConfig(dl config.DishListConfig) chains.Config {
	c := chains.DefaultConfig()
	if len(dl.KnownChains) > 0 {
		c.KnownChains = dl.KnownChains
	}
	if len(dl.Neighbourhoods) > 0 {
		c.Neighbourhoods = dl.Neighbourhoods
	}
	c.RatingSourceTag = dl.RatingSourceTag
	c.SourceRatingScale = dl.SourceRatingScale
	return c
}

func workerTimeout(cfg *config.Config, taskType string, fallback time.Duration) time.Duration {
	if w, ok := cfg.Workers[taskType]; ok && w.Timeout > 0 {
		return config.GetDuration(w.Timeout)
	}
	return fallback
}

func healthMux(d *deps, zeebe *camunda.Client) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		checks := map[string]string{}
		status := http.StatusOK
		for name, check := range map[string]func(context.Context) error{
			"zeebe":    zeebe.HealthCheck,
			"postgres": d.pg.Ping,
			"redis":    d.redis.Ping,
		} {
			if err := check(ctx); err != nil {
				checks[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			checks[name] = "ok"
		}
		if status == http.StatusOK {
			checks["status"] = "ready"
		} else {
			checks["status"] = "not ready"
		}
		writeStatus(w, status, checks)
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func writeStatus(w http.ResponseWriter, status int, body map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
