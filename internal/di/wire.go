//go:build wireinject
// +build wireinject

package di

import (
	"ClpWatch/pkg/config"
	"ClpWatch/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Metrics
		ProvideMetrics,

		// Infrastructure clients
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideClickHouseClient,
		ProvideMarketDataSource,
		ProvideRunCache,

		// Repositories
		ProvideSnapshotStore,
		ProvideSnapshotPublisher,

		// Use cases
		ProvideRunParams,
		ProvideWatchlistConfig,
		ProvideInstrumentRunner,
		ProvideFlipTracker,
		ProvideWatchlistMonitor,
		ProvideHistoryUseCase,
		ProvideKafkaSnapshotHandler,

		// Transport
		ProvideHub,
		ProvideClpHandler,
		ProvideRateLimiter,
		ProvideKafkaConsumer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
