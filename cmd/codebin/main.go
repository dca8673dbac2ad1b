package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codebin/cfg"
	"codebin/svc/api"
	"codebin/svc/auth"
	"codebin/svc/cache"
	"codebin/svc/db"
	"codebin/svc/lim"
	"codebin/svc/svc"
	"codebin/svc/util"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	if len(os.Args) > 1 && os.Args[1] == "-health" {
		os.Exit(healthCheck())
	}
	os.Exit(run())
}

func run() int {
	c, err := cfg.Load()
	if err != nil {
		util.Fatal().Err(err).Msg("failed to load configuration")
	}
	if err := cfg.Validate(c); err != nil {
		util.Fatal().Err(err).Msg("invalid configuration")
	}
	defer c.Wipe()
	util.InitLog(c.LogLevel, c.Environment == "development")
	util.Info().
		Str("environment", c.Environment).
		Strs("allowed_origins", c.AllowedOrigins).
		Msg("starting codebin")

	sqlDB, err := db.NewSQLiteWithConfig(c.DatabasePath, c.DBMaxOpenConns, c.DBMaxIdleConns, c.DBQueryTimeout)
	if err != nil {
		util.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer sqlDB.Close()
	util.Info().Str("path", c.DatabasePath).Msg("database initialized")

	var rdb *db.Redis
	if c.RedisURL != "" {
		rdb, err = db.NewRedis(c)
		if err != nil {
			if c.Environment == "production" {
				util.Fatal().Err(err).Msg("redis configured but unreachable")
			}
			util.Warn().Err(err).Msg("redis unavailable, continuing without shared cache")
			rdb = nil
		} else {
			util.Info().Dur("ttl", c.RedisCacheTTL).Msg("redis connected")
			defer rdb.Close()
		}
	}

	lruCache, err := cache.NewLRU(c.LRUCacheSize)
	if err != nil {
		util.Fatal().Err(err).Msg("failed to create LRU cache")
	}

	hasher, err := auth.NewHasher(c.PinHashMode, auth.Argon2Params{
		Time:        c.Argon2Time,
		Memory:      c.Argon2Memory,
		Parallelism: c.Argon2Parallelism,
	}, c.HasherConcurrency)
	if err != nil {
		util.Fatal().Err(err).Msg("failed to initialize hasher")
	}
	util.Info().Str("mode", hasher.Mode()).Int("concurrency", c.HasherConcurrency).Msg("pin hasher initialized")

	limiter := lim.New(c.RateLimit.RPM,
		lim.WithGlobalRate(c.RateLimit.GlobalRPS),
		lim.WithMaxKeys(c.RateLimit.MaxClients),
	)
	defer limiter.Stop()
	util.Info().
		Int("rpm", c.RateLimit.RPM).
		Float64("global_rps", c.RateLimit.GlobalRPS).
		Strs("trusted_proxies", c.TrustedProxies).
		Msg("rate limiter initialized")

	pasteSvc := svc.NewPaste(sqlDB, lruCache, rdb, hasher, c)
	server := api.NewServer(c, pasteSvc, limiter, sqlDB, rdb)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		return sqlDB.RunWALMaintenance(gctx, 0)
	})
	g.Go(func() error {
		<-gctx.Done()
		util.Info().Msg("shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		util.Error().Err(err).Msg("server stopped with error")
		return 1
	}
	util.Info().Msg("shutdown complete")
	return 0
}

// healthCheck probes the local listener; used as a container HEALTHCHECK.
func healthCheck() int {
	port := os.Getenv("PORT")
	if port == "" {
		port = "5000"
	}
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get("http://127.0.0.1:" + port + "/api/health")
	if err != nil {
		return 1
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 1
	}
	return 0
}
