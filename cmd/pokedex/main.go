package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"Pokedex/internal/config"
	"Pokedex/internal/pokedex"
	"Pokedex/pkg/kit"
)

func main() {
	service := "pokedex"

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	log := kit.NewLogger(service, cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	store, closer, err := openStore(context.Background(), cfg.Store)
	if err != nil {
		log.Fatal("open store failed", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}
	defer func() { _ = closer.Close() }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := pokedex.NewMetrics(reg)

	client := pokedex.NewClient(cfg.Upstream.BaseURL, cfg.Upstream.Timeout)
	client.Metrics = metrics

	s := &pokedex.Server{
		Log: log,
		Catalog: pokedex.NewCatalog(store, client,
			pokedex.WithLogger(log),
			pokedex.WithMetrics(metrics),
			pokedex.WithImageBase(cfg.Upstream.ImageBase),
		),
	}

	h := pokedex.NewHandler(s, pokedex.HTTPDeps{
		Log:             log,
		Service:         service,
		Registry:        reg,
		MetricsEnabled:  cfg.MetricsEnabled,
		MetricsToken:    cfg.MetricsToken,
		RateLimitPerMin: cfg.RateLimitPerMin,
	})

	log.Info("catalog store ready",
		zap.String("driver", cfg.Store.Driver),
		zap.String("upstream", cfg.Upstream.BaseURL),
	)
	if err := kit.RunHTTPServer(":"+cfg.Port, h, log); err != nil {
		log.Fatal("http server stopped", zap.Error(err))
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func openStore(ctx context.Context, sc config.StoreConfig) (pokedex.Store, io.Closer, error) {
	switch sc.Driver {
	case config.StoreMemory:
		return pokedex.NewMemStore(), nopCloser{}, nil
	case config.StoreFile:
		s, err := pokedex.NewFileStore(sc.Path)
		return s, nopCloser{}, err
	case config.StoreSQLite:
		s, err := pokedex.OpenSQLStore(ctx, pokedex.DriverSQLite, sc.Path, sc.Key)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case config.StorePostgres:
		s, err := pokedex.OpenSQLStore(ctx, pokedex.DriverPostgres, sc.DatabaseURL, sc.Key)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case config.StoreRedis:
		rdb := redis.NewClient(&redis.Options{Addr: sc.RedisAddr, DB: sc.RedisDB})
		return pokedex.NewRedisStore(rdb, sc.Key), rdb, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", sc.Driver)
	}
}
