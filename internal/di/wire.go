//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"ORBScanner/pkg/config"
	"ORBScanner/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application and
// the cleanup that closes infrastructure clients.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideKafkaProducer,
		ProvideMetrics,
		ProvideClock,

		// Infrastructure clients
		ProvideSnapshotStore,
		ProvideClickHouseClient,
		ProvideBarStore,
		ProvideMarketData,
		ProvideResultPublisher,

		// Use cases
		ProvideEnrichment,
		ProvideSynthesizer,
		ProvideORBScanner,
		ProvideIndexLottoScanner,
		ProvideRealtimePipeline,
		ProvideTickCollector,
		ProvideKafkaConsumer,
		ProvideRollover,

		// Application server
		ProvideHTTPServer,
		ProvideApp,
	)
	return nil, nil, nil
}
