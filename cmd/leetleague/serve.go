package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/leetleague/leetleague/pkg/catalog"
	"github.com/leetleague/leetleague/pkg/config"
	"github.com/leetleague/leetleague/pkg/dashboard"
	"github.com/leetleague/leetleague/pkg/fanout"
	"github.com/leetleague/leetleague/pkg/friends"
	"github.com/leetleague/leetleague/pkg/graphql"
	"github.com/leetleague/leetleague/pkg/httpapi"
	"github.com/leetleague/leetleague/pkg/logging"
	"github.com/leetleague/leetleague/pkg/metrics"
	"github.com/leetleague/leetleague/pkg/proxy"
	"github.com/leetleague/leetleague/pkg/ratelimit"
	"github.com/leetleague/leetleague/pkg/requestcache"
	"github.com/leetleague/leetleague/pkg/sharedcache"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newServeCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the proxy, dashboard and catalog server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}

			redisClient, err := connectRedis(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer redisClient.Close()

			store, err := openStore(cfg, redisClient)
			if err != nil {
				return err
			}
			defer store.Close()

			handler, err := newServerHandler(cfg, redisClient, store)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return listenAndServe(ctx, cfg.Listen, handler)
		},
	}
}

// connectRedis creates a client and checks the server answers.
func connectRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	opts, err := cfg.RedisOptions()
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
	}
	log.Info().Str("addr", opts.Addr).Msg("Connected to Redis")
	return client, nil
}

// openStore opens the configured friend list backend.
func openStore(cfg *config.Config, redisClient *redis.Client) (friends.Store, error) {
	switch cfg.Friends.Backend {
	case config.BackendSQLite:
		store, err := friends.NewSQLiteStore(cfg.Friends.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open friends store: %w", err)
		}
		return store, nil
	case config.BackendRedis:
		if redisClient == nil {
			return nil, errors.New("redis friends backend needs a redis connection")
		}
		return friends.NewRedisStore(redisClient, cfg.Friends.Key), nil
	}
	return nil, fmt.Errorf("unknown friends backend %q", cfg.Friends.Backend)
}

// newServerHandler wires every component behind one mux.
func newServerHandler(cfg *config.Config, redisClient *redis.Client, store friends.Store) (http.Handler, error) {
	tracker := ratelimit.NewTracker(redisClient, logging.NewLogger("ratelimit"))

	gql, err := graphql.New(graphql.Config{
		Endpoint:  cfg.Upstream.GraphQLURL,
		UserAgent: cfg.Upstream.UserAgent,
		Timeout:   cfg.Upstream.Timeout,
	}, graphql.WithLimiter(tracker), graphql.WithLogger(logging.NewLogger("leetcode-client")))
	if err != nil {
		return nil, fmt.Errorf("create leetcode client: %w", err)
	}

	executor := fanout.NewExecutor(fanout.Config{
		MaxConcurrency: cfg.Upstream.MaxConcurrency,
		Timeout:        cfg.Upstream.Timeout,
	})

	proxyOpts := []proxy.Option{proxy.WithLogger(logging.NewLogger("graphql-proxy"))}
	if cfg.Proxy.SharedTTL > 0 {
		proxyOpts = append(proxyOpts, proxy.WithSharedCache(sharedcache.NewManager(redisClient), cfg.Proxy.SharedTTL))
	}
	proxySvc := proxy.NewService(gql, executor, proxyOpts...)

	cache, err := requestcache.New(proxy.NewTransport(proxySvc), requestcache.Config{
		Capacity: cfg.Cache.Capacity,
		TTL:      cfg.Cache.TTL,
	}, requestcache.WithLogger(logging.NewLogger("requestcache")))
	if err != nil {
		return nil, fmt.Errorf("create request cache: %w", err)
	}

	dash := dashboard.NewService(cache, store, dashboard.WithLogger(logging.NewLogger("dashboard")))

	friendOpts := []friends.HandlerOption{friends.WithLogger(logging.NewLogger("friends"))}
	if cfg.Friends.Verify {
		friendOpts = append(friendOpts, friends.WithVerifier(dash))
	}

	catalogHandler := catalog.NewHandler(catalog.NewStore(cfg.Catalog.DataDir))

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/ready", readyHandler(redisClient))
	mux.Handle("/metrics", metrics.Handler())

	mux.Handle("/api/leetcode", httpapi.Instrument("leetcode", proxy.NewHandler(proxySvc)))
	mux.Handle("/api/companies", httpapi.Instrument("companies", http.HandlerFunc(catalogHandler.Companies)))
	mux.Handle("/api/topics", httpapi.Instrument("topics", http.HandlerFunc(catalogHandler.Topics)))
	mux.Handle("/api/questions", httpapi.Instrument("questions", http.HandlerFunc(catalogHandler.Questions)))

	friends.NewHandler(store, friendOpts...).Register(mux, httpapi.Instrument)
	dashboard.NewHandler(dash).Register(mux, httpapi.Instrument)

	return mux, nil
}

// listenAndServe runs srv until ctx ends, then shuts it down gracefully.
func listenAndServe(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Str("version", version).Msg("Starting LeetLeague server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down")
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// readyHandler reports 503 while Redis is unreachable.
func readyHandler(redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Msg("Readiness check failed")
			http.Error(w, "Redis unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK")
	}
}
