//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/yanqian/campus-faq/internal/bootstrap"
	"github.com/yanqian/campus-faq/internal/domain/faq"
	"github.com/yanqian/campus-faq/internal/infra/config"
	httpiface "github.com/yanqian/campus-faq/internal/interface/http"
	"github.com/yanqian/campus-faq/pkg/logger"
	"github.com/yanqian/campus-faq/pkg/metrics"
)

func initializeApp() (*bootstrap.App, error) {
	wire.Build(
		config.Load,
		logger.New,
		provideFAQConfig,
		provideEngineConfig,
		providePostgresPool,
		provideFAQRepository,
		provideEngine,
		provideValkeyClient,
		provideFAQStore,
		provideReindexNotifier,
		provideNotifierPort,
		provideSeedSource,
		provideResources,
		metrics.NewMatchCounters,
		faq.NewService,
		httpiface.NewHandler,
		httpiface.NewRouter,
		bootstrap.NewApp,
	)
	return nil, nil
}
