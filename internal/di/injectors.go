//go:build wireinject
// +build wireinject

package di

import (
	wire "github.com/google/wire"
	"ledgerd/internal"
	"ledgerd/internal/controllers"
	"ledgerd/internal/feishu"
	"ledgerd/internal/persist"
	"ledgerd/internal/providers"
	"ledgerd/internal/services"
	"ledgerd/internal/structures"
)

func InitApp(cfg *structures.CliFlags) (*internal.App, error) {

	wire.Build(
		providers.NewConfigProvider,
		providers.NewLogProvider,
		providers.NewMetricsProvider,
		providers.NewInstrumentedCacheProvider,

		feishu.NewClient,
		services.NewLedgerService,
		services.NewRecommendService,
		persist.NewZstdCompressor,
		persist.NewFileManager,
		persist.NewScheduler,
		controllers.NewApiController,
		controllers.NewHealthController,
		internal.InitRoutes,
		internal.NewApp,
	)

	return nil, nil
}
