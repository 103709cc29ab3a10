//go:build wireinject
// +build wireinject

package di

import (
	"HistPull/pkg/config"
	"HistPull/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire generates the implementation in wire_gen.go.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideLocation,
		ProvideMetrics,

		// Infrastructure clients
		ProvideCache,
		ProvideArchiveClient,
		ProvideClickHouseClient,
		ProvideHDBStore,
		ProvideKafkaProducer,

		// Repositories
		ProvidePublisher,
		ProvideRecorder,

		// Use cases
		ProvideResolveUseCase,
		ProvideQueryUseCase,
		ProvideExportUseCase,

		// Async jobs and schedules
		ProvideQueue,
		ProvideJobsService,
		ProvideScheduler,

		// HTTP surface
		ProvideHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
