package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-plant-market/internal/access"
	"github.com/ariefcatur/go-plant-market/internal/accounts"
	"github.com/ariefcatur/go-plant-market/internal/catalog"
	"github.com/ariefcatur/go-plant-market/internal/config"
	"github.com/ariefcatur/go-plant-market/internal/httpx"
	kafkax "github.com/ariefcatur/go-plant-market/internal/kafka"
	"github.com/ariefcatur/go-plant-market/internal/logx"
	"github.com/ariefcatur/go-plant-market/internal/memstore"
	"github.com/ariefcatur/go-plant-market/internal/orders"
	"github.com/ariefcatur/go-plant-market/internal/postgres"
	"github.com/ariefcatur/go-plant-market/internal/redisx"
	"github.com/ariefcatur/go-plant-market/internal/sessions"
	"github.com/ariefcatur/go-plant-market/internal/tracing"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type stores struct {
	accounts accounts.Store
	products catalog.Store
	ledger   orders.Ledger
	ping     httpx.ReadinessCheck
	close    func()
}

func openStores(ctx context.Context, cfg config.Config) (stores, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		st := memstore.New()
		st.SetLockTimeout(cfg.PurchaseLockTimeout)
		logx.Warn().Msg("using in-memory store, data is lost on restart")
		return stores{
			accounts: st.Accounts,
			products: st.Products,
			ledger:   st.Orders,
			ping:     st.Ping,
			close:    func() {},
		}, nil
	}

	db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns)
	if err != nil {
		return stores{}, err
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		db.Close()
		return stores{}, err
	}
	return stores{
		accounts: &postgres.AccountRepo{DB: db},
		products: &postgres.ProductRepo{DB: db, LockTimeout: cfg.PurchaseLockTimeout},
		ledger: &postgres.Ledger{
			DB:          db,
			LockTimeout: cfg.PurchaseLockTimeout,
			MaxAttempts: cfg.PurchaseMaxAttempts,
		},
		ping:  func(ctx context.Context) error { return postgres.Ping(ctx, db) },
		close: db.Close,
	}, nil
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logx.Fatal().Err(err).Msg("load config")
	}
	logx.Init(cfg.Environment, cfg.ServiceName)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.Init(ctx, cfg.ServiceName, cfg.Environment)
	if err != nil {
		logx.Fatal().Err(err).Msg("init tracing")
	}

	// Stores
	st, err := openStores(ctx, cfg)
	if err != nil {
		logx.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("open store")
	}
	defer st.close()
	checks := map[string]httpx.ReadinessCheck{"store": st.ping}

	// Sessions
	var sessionStore sessions.Store = sessions.NewMemoryStore()
	if cfg.RedisAddr != "" {
		rdb, err := redisx.New(ctx, cfg.RedisAddr)
		if err != nil {
			logx.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("redis connect")
		}
		defer rdb.Close()
		sessionStore = &redisx.SessionStore{RDB: rdb}
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	} else {
		logx.Warn().Msg("REDIS_ADDR empty, sessions are kept in process memory")
	}

	// Events
	var (
		publisher orders.Publisher
		prod      *kafkax.Producer
	)
	prodCtx, stopProducer := context.WithCancel(context.Background())
	defer stopProducer()
	if cfg.EventsEnabled() {
		prod = kafkax.NewProducer(cfg.KafkaBrokers, 1024)
		prod.Start(prodCtx)
		publisher = prod
	} else {
		logx.Info().Msg("KAFKA_BROKERS empty, order events are not published")
	}

	policy := access.Policy{PublicOrderReads: cfg.OrderReadScope == config.OrderReadPublic}
	api := &httpx.API{
		Accounts: accounts.NewService(st.accounts),
		Catalog:  catalog.NewService(st.products, policy),
		Orders: &orders.Service{
			Ledger:      st.ledger,
			Products:    st.products,
			Policy:      policy,
			Publisher:   publisher,
			ServiceName: cfg.ServiceName,
		},
		Products:      st.products,
		Sessions:      sessions.NewManager(cfg.SessionSecret, cfg.ServiceName, cfg.SessionTTL, sessionStore),
		SecureCookies: cfg.Environment == logx.Production,
	}
	router := httpx.NewRouter(checks)
	api.Register(router)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           otelhttp.NewHandler(router, "http.server"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logx.Info().Str("addr", cfg.HTTPAddr).Str("store", cfg.StoreDriver).Str("order_reads", cfg.OrderReadScope).Msg("http listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Fatal().Err(err).Msg("listen")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logx.Info().Msg("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logx.Warn().Err(err).Msg("http shutdown")
	}
	if prod != nil {
		stopProducer() // flush queued events
		prod.WaitClosed()
	}
	cancel()
	if err := shutdownTracing(shutdownCtx); err != nil {
		logx.Warn().Err(err).Msg("tracing shutdown")
	}
}
