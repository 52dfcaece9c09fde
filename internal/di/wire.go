//go:build wireinject
// +build wireinject

package di

import (
	"FlareCast/pkg/config"
	"FlareCast/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideAlertPublisher,

		// Repositories
		ProvideObservationStore,
		ProvidePredictionStore,
		ProvideFeedSource,

		// Domain services
		ProvideScorer,
		ProvideModelLoader,
		ProvideVerifier,
		ProvideCache,
		ProvideLiveHub,

		// Use case and API surface
		ProvidePipeline,
		ProvideHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
