package di

import (
	"context"
	"fmt"
	"time"

	"FlareCast/internal/domain/repository"
	"FlareCast/internal/handler/api"
	internalrepo "FlareCast/internal/repository"
	"FlareCast/internal/service/auth"
	icache "FlareCast/internal/service/cache"
	"FlareCast/internal/service/goes"
	"FlareCast/internal/service/registry"
	"FlareCast/internal/services/scoring"
	"FlareCast/internal/usecase"
	pkgch "FlareCast/pkg/clickhouse"
	"FlareCast/pkg/config"
	pkgkafka "FlareCast/pkg/kafka"
	applogger "FlareCast/pkg/logger"
	"FlareCast/pkg/metrics"
	"FlareCast/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideClickHouseClient creates a ClickHouse client and ensures the schema.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db := cfg.ClickHouse.Database
	// ReplacingMergeTree keyed by ts gives upsert-by-timestamp semantics:
	// re-inserting an existing timestamp replaces the row on merge, reads go
	// through FINAL.
	if err := client.InitSchema(ctx, []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
			ts DateTime64(3, 'UTC'),
			flux Float64
		) ENGINE = ReplacingMergeTree ORDER BY ts`, db, cfg.ClickHouse.ObservationTable),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
			ts DateTime64(3, 'UTC'),
			m_class_probability Float64,
			risk_level LowCardinality(String),
			model_version LowCardinality(String)
		) ENGINE = ReplacingMergeTree ORDER BY ts`, db, cfg.ClickHouse.PredictionTable),
	}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideObservationStore creates the ClickHouse observation store.
func ProvideObservationStore(chClient *pkgch.Client, cfg *config.Config, l *applogger.Logger) repository.ObservationStore {
	store := internalrepo.NewCHObservationStore(chClient, cfg.ClickHouse.Database+"."+cfg.ClickHouse.ObservationTable)
	store.SetLogger(l)
	return store
}

// ProvidePredictionStore creates the ClickHouse prediction store.
func ProvidePredictionStore(chClient *pkgch.Client, cfg *config.Config, l *applogger.Logger) repository.PredictionStore {
	store := internalrepo.NewCHPredictionStore(chClient, cfg.ClickHouse.Database+"."+cfg.ClickHouse.PredictionTable)
	store.SetLogger(l)
	return store
}

// ProvideFeedSource creates the GOES X-ray flux feed client.
func ProvideFeedSource(cfg *config.Config, l *applogger.Logger) repository.FeedSource {
	client := goes.New(cfg.Feed.URL, cfg.Feed.EnergyChannel, cfg.Feed.Timeout)
	client.SetLogger(l)
	return client
}

// ProvideScorer creates the flare scorer.
func ProvideScorer() scoring.Scorer {
	return scoring.NewMeanThresholdScorer()
}

// ProvideModelLoader creates the model registry loader.
func ProvideModelLoader(cfg *config.Config) registry.Loader {
	return registry.NewPlaceholderLoader(cfg.Pipeline.ModelVersion)
}

// ProvideVerifier creates the trigger-endpoint verifier per auth.mode.
func ProvideVerifier(cfg *config.Config) auth.Verifier {
	if cfg.Auth.Mode == "none" {
		return auth.AllowAll{}
	}
	return auth.NewTokenVerifier(cfg.Auth.Issuer, cfg.Auth.Audience)
}

// ProvideCache creates the read-endpoint cache per cache.backend.
func ProvideCache(cfg *config.Config) icache.BytesCache {
	if cfg.Cache.Backend == "redis" {
		return icache.NewRedisCache(icache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
	}
	return icache.NewTTLCache()
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideLiveHub creates the WebSocket broadcast hub.
func ProvideLiveHub(l *applogger.Logger) *api.LiveHub {
	return api.NewLiveHub(l)
}

// ProvideAlertPublisher creates the Kafka alert publisher, nil when disabled.
func ProvideAlertPublisher(cfg *config.Config) (*internalrepo.KafkaAlertPublisher, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
		pkgkafka.WithTimeouts(cfg.Kafka.WriteTimeout, cfg.Kafka.ReadTimeout),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return internalrepo.NewKafkaAlertPublisher(producer, cfg.Kafka.Topic), nil
}

// ProvidePipeline creates the prediction pipeline orchestrator.
func ProvidePipeline(
	cfg *config.Config,
	l *applogger.Logger,
	obs repository.ObservationStore,
	preds repository.PredictionStore,
	feed repository.FeedSource,
	scorer scoring.Scorer,
	loader registry.Loader,
	m repository.Metrics,
	hub *api.LiveHub,
	alerts *internalrepo.KafkaAlertPublisher,
) *usecase.PredictionPipeline {
	opts := []usecase.PipelineOption{
		usecase.WithLogger(l),
		usecase.WithAlertPublisher(hub),
	}
	if alerts != nil {
		opts = append(opts, usecase.WithAlertPublisher(alerts))
	}
	return usecase.NewPredictionPipeline(
		obs, preds, feed, scorer, loader, m,
		cfg.Pipeline.RetrievalHours,
		cfg.Pipeline.BufferHours,
		cfg.Pipeline.ModelLookbackHours,
		opts...,
	)
}

// ProvideHandler creates the HTTP handler with all routes.
func ProvideHandler(
	cfg *config.Config,
	l *applogger.Logger,
	pipeline *usecase.PredictionPipeline,
	obs repository.ObservationStore,
	preds repository.PredictionStore,
	verifier auth.Verifier,
	cache icache.BytesCache,
	chClient *pkgch.Client,
	hub *api.LiveHub,
) *api.FlareHandler {
	return api.NewFlareHandler(
		l, pipeline, obs, preds, verifier, cache, chClient, hub,
		cfg.API.DefaultRequestHours,
		cfg.API.MaxRequestHours,
		cfg.Cache.TTL,
	)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	handler *api.FlareHandler,
	hub *api.LiveHub,
	alerts *internalrepo.KafkaAlertPublisher,
	chClient *pkgch.Client,
) *server.App {
	return server.New(cfg, l, handler, hub, alerts, chClient)
}
