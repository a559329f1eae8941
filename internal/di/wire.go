//go:build wireinject
// +build wireinject

package di

import (
	"SonicTrader/internal/domain/repository"
	"SonicTrader/internal/service/pyth"
	"SonicTrader/pkg/config"
	"SonicTrader/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		ProvideLogger,
		ProvideRegistry,
		ProvideMetrics,

		ProvidePythClient,
		wire.Bind(new(repository.PriceOracle), new(*pyth.Client)),
		ProvideCodec,
		ProvideCache,

		ProvidePriceFeed,
		ProvideHistoryStore,
		ProvideFeedPipeline,
		ProvideEvaluator,
		ProvideTradeService,
		ProvideTradeExecutor,
		ProvideTradeGuard,
		ProvideEventRecorder,
		ProvideOrchestrator,

		ProvideHandler,
		ProvideHTTPServer,
		ProvideApp,
	)
	return nil, nil, nil
}
