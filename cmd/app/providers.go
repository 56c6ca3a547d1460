package main

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/campus-faq/internal/bootstrap"
	"github.com/yanqian/campus-faq/internal/domain/faq"
	"github.com/yanqian/campus-faq/internal/infra/config"
	"github.com/yanqian/campus-faq/internal/infra/faqrepo"
	"github.com/yanqian/campus-faq/internal/infra/faqrules"
	"github.com/yanqian/campus-faq/internal/infra/faqstore"
	"github.com/yanqian/campus-faq/internal/infra/reindex"
	"github.com/yanqian/campus-faq/internal/infra/seed"
)

func provideFAQConfig(cfg *config.Config) faq.Config {
	return faq.Config{
		InstitutionName:    cfg.FAQ.InstitutionName,
		SuggestionCount:    cfg.FAQ.SuggestionCount,
		TopRecommendations: cfg.FAQ.TopRecommendations,
		UnknownQueueLimit:  cfg.FAQ.UnknownQueueLimit,
	}
}

func provideEngineConfig(cfg *config.Config, logger *slog.Logger) (faq.EngineConfig, error) {
	rules, err := faqrules.Load(cfg.FAQ.RulesPath)
	if err != nil {
		return faq.EngineConfig{}, err
	}
	logger.Info("faq rules loaded", "path", cfg.FAQ.RulesPath, "overrides", len(rules.Overrides), "categories", len(rules.Categories))
	return faq.EngineConfig{
		Normalizer: faq.NormalizerConfig{
			UseStemming:    cfg.FAQ.Normalizer.UseStemming,
			DomainWords:    cfg.FAQ.Normalizer.DomainWords,
			ExtraStopwords: cfg.FAQ.Normalizer.ExtraStopwords,
		},
		Index: faq.IndexConfig{
			MaxFeatures: cfg.FAQ.Index.MaxFeatures,
			MaxDocFreq:  cfg.FAQ.Index.MaxDocFreq,
			MaxNGram:    cfg.FAQ.Index.MaxNGram,
		},
		Rules: rules,
		Thresholds: faq.Thresholds{
			Exact:   cfg.FAQ.Thresholds.Exact,
			Similar: cfg.FAQ.Thresholds.Similar,
			Low:     cfg.FAQ.Thresholds.Low,
		},
	}, nil
}

// providePostgresPool returns nil when postgres is not configured or unreachable.
func providePostgresPool(cfg *config.Config, logger *slog.Logger) *pgxpool.Pool {
	dsn := strings.TrimSpace(cfg.FAQ.Postgres.DSN)
	if dsn == "" {
		logger.Info("faq postgres dsn not set, using memory repository")
		return nil
	}
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		logger.Error("invalid postgres dsn, using memory repository", "error", err)
		return nil
	}
	if cfg.FAQ.Postgres.MaxConns > 0 {
		poolConfig.MaxConns = cfg.FAQ.Postgres.MaxConns
	}
	if cfg.FAQ.Postgres.MinConns > 0 {
		poolConfig.MinConns = cfg.FAQ.Postgres.MinConns
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		logger.Error("failed to initialize postgres pool, using memory repository", "error", err)
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("postgres ping failed, using memory repository", "error", err)
		pool.Close()
		return nil
	}
	return pool
}

func provideFAQRepository(pool *pgxpool.Pool, logger *slog.Logger) faq.EntryRepository {
	if pool == nil {
		return faqrepo.NewMemoryRepository()
	}
	repo := faqrepo.NewPostgresRepository(pool)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := repo.EnsureSchema(ctx); err != nil {
		logger.Error("faq schema migration failed, using memory repository", "error", err)
		return faqrepo.NewMemoryRepository()
	}
	logger.Info("faq postgres repository enabled")
	return repo
}

func provideEngine(cfg faq.EngineConfig, repo faq.EntryRepository, logger *slog.Logger) *faq.Engine {
	return faq.NewEngine(cfg, repo, logger)
}

// provideValkeyClient returns nil when valkey is disabled or unreachable.
func provideValkeyClient(cfg *config.Config, logger *slog.Logger) valkey.Client {
	if !cfg.FAQ.Redis.Enabled {
		return nil
	}
	opt, err := buildValkeyOptions(cfg)
	if err != nil {
		logger.Error("invalid valkey configuration, falling back to memory store", "error", err)
		return nil
	}
	client, err := valkey.NewClient(opt)
	if err != nil {
		logger.Error("failed to create valkey client, falling back to memory store", "error", err)
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		logger.Error("valkey ping failed, falling back to memory store", "error", err)
		client.Close()
		return nil
	}
	logger.Info("faq valkey enabled", "addr", cfg.FAQ.Redis.Addr)
	return client
}

func provideFAQStore(cfg *config.Config, client valkey.Client) faq.Store {
	if client == nil {
		return faqstore.NewMemoryStore()
	}
	return faqstore.NewValkeyStore(client, cfg.FAQ.Redis.Prefix)
}

func provideReindexNotifier(cfg *config.Config, client valkey.Client, engine *faq.Engine, logger *slog.Logger) reindex.HandlerNotifier {
	var notifier reindex.HandlerNotifier
	if client == nil {
		notifier = reindex.NewImmediateNotifier(nil)
	} else {
		notifier = reindex.NewValkeyNotifier(client, cfg.FAQ.Reindex.Channel, logger)
	}
	notifier.SetHandler(func(ctx context.Context, reason string) error {
		stats, err := engine.Rebuild(ctx)
		if err != nil {
			return err
		}
		logger.Info("faq index rebuilt", "reason", reason, "entries", stats.Entries, "generation", stats.Generated)
		return nil
	})
	return notifier
}

func provideNotifierPort(n reindex.HandlerNotifier) faq.ReindexNotifier {
	return n
}

func provideSeedSource(cfg *config.Config, logger *slog.Logger) seed.Source {
	if obj := cfg.FAQ.Seed.Object; obj.Enabled {
		src, err := seed.NewObjectSource(seed.ObjectConfig{
			Endpoint:  obj.Endpoint,
			AccessKey: obj.AccessKey,
			SecretKey: obj.SecretKey,
			Bucket:    obj.Bucket,
			Region:    obj.Region,
			Key:       obj.Key,
		}, logger)
		if err != nil {
			logger.Error("object seed source unavailable", "error", err)
		} else {
			return src
		}
	}
	if path := strings.TrimSpace(cfg.FAQ.Seed.Path); path != "" {
		return seed.NewFileSource(path)
	}
	return seed.Noop{}
}

func provideResources(pool *pgxpool.Pool, client valkey.Client, notifier reindex.HandlerNotifier) *bootstrap.Resources {
	var closers []bootstrap.Closer
	if pool != nil {
		closers = append(closers, pool)
	}
	if client != nil {
		closers = append(closers, client)
	}
	// Closed first so the subscription loop stops before its client.
	if c, ok := notifier.(bootstrap.Closer); ok {
		closers = append(closers, c)
	}
	return bootstrap.NewResources(closers...)
}

func buildValkeyOptions(cfg *config.Config) (valkey.ClientOption, error) {
	var (
		opt valkey.ClientOption
		err error
	)
	if strings.Contains(cfg.FAQ.Redis.Addr, "://") {
		opt, err = valkey.ParseURL(cfg.FAQ.Redis.Addr)
	} else {
		opt = valkey.ClientOption{InitAddress: []string{cfg.FAQ.Redis.Addr}}
	}
	if err != nil {
		return valkey.ClientOption{}, err
	}
	return opt, nil
}
