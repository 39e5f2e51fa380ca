package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	authhandler "rollguard/internal/auth/handler"
	"rollguard/internal/auth/lockout"
	authservice "rollguard/internal/auth/service"
	flagshandler "rollguard/internal/flags/handler"
	flagsmetrics "rollguard/internal/flags/metrics"
	flagsservice "rollguard/internal/flags/service"
	flagsstore "rollguard/internal/flags/store"
	integrityhandler "rollguard/internal/integrity/handler"
	integritymetrics "rollguard/internal/integrity/metrics"
	integritymodels "rollguard/internal/integrity/models"
	integrityservice "rollguard/internal/integrity/service"
	jwttoken "rollguard/internal/jwt_token"
	"rollguard/internal/platform/config"
	"rollguard/internal/platform/httpserver"
	"rollguard/internal/platform/kafka"
	"rollguard/internal/platform/logger"
	"rollguard/internal/platform/metrics"
	"rollguard/internal/platform/postgres"
	"rollguard/internal/platform/redis"
	pollaudithandler "rollguard/internal/pollaudit/handler"
	pollauditservice "rollguard/internal/pollaudit/service"
	pollauditstore "rollguard/internal/pollaudit/store"
	registryhandler "rollguard/internal/registry/handler"
	registryservice "rollguard/internal/registry/service"
	registrystore "rollguard/internal/registry/store"
	"rollguard/internal/risk/index"
	riskmetrics "rollguard/internal/risk/metrics"
	"rollguard/internal/risk/ports"
	"rollguard/internal/risk/scorer"
	httptransport "rollguard/internal/transport/http"
	"rollguard/internal/transport/ws"
	"rollguard/pkg/platform/audit"
	"rollguard/pkg/platform/audit/publisher"
	auditmemory "rollguard/pkg/platform/audit/store/memory"
	"rollguard/pkg/platform/middleware/metadata"
)

const tokenAudience = "rollguard-authority"

func main() {
	envFile := pflag.String("env-file", ".env", "optional .env file loaded before reading the environment")
	policyFile := pflag.String("policy", "", "YAML scoring policy (turnout baselines, certificate thresholds)")
	seedDemo := pflag.Bool("seed-demo", false, "import a handful of demo voter records at startup")
	pflag.Parse()

	if err := config.LoadEnvFile(*envFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.New(cfg.Logging.Format, cfg.Logging.Level)

	policy, err := config.LoadPolicy(*policyFile)
	if err != nil {
		log.Error("failed to load policy", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, policy, *seedDemo, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, policy config.Policy, seedDemo bool, log *slog.Logger) error {
	appMetrics := metrics.New()

	// Event fan-out: memory history, dashboard stream, optional Kafka.
	hub := ws.NewHub(
		ws.WithLogger(log),
		ws.WithMetrics(appMetrics),
		ws.WithAllowedOrigins(cfg.Server.AllowedOrigins),
	)
	sinks := []audit.Sink{hub}
	var kafkaSink *kafka.Sink
	if cfg.Kafka.Enabled() {
		var err error
		kafkaSink, err = kafka.NewSink(cfg.Kafka, kafka.WithLogger(log), kafka.WithMetrics(appMetrics))
		if err != nil {
			return err
		}
		if err := kafkaSink.EnsureTopic(ctx, 3, 1); err != nil {
			log.Warn("kafka topic bootstrap failed", "error", err)
		}
		sinks = append(sinks, kafkaSink)
	}
	eventStore := auditmemory.NewInMemoryStoreWithCapacity(cfg.Events.StoreCapacity)
	events := publisher.NewPublisher(eventStore,
		publisher.WithAsyncBuffer(cfg.Events.AsyncBuffer),
		publisher.WithSinks(sinks...),
		publisher.WithLogger(log),
	)

	// Risk indexes and scorers.
	identity := index.NewIdentityIndex()
	address := index.NewAddressIndex()
	booths := index.NewBoothIndex()

	var (
		velocity    ports.VelocityIndex
		memVelocity *index.InMemoryVelocity
	)
	switch cfg.Risk.VelocityBackend {
	case config.BackendRedis:
		rc, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer rc.Close()
		velocity = index.NewRedisVelocity(rc.Client, cfg.Risk.VelocityWindow)
	default:
		memVelocity = index.NewInMemoryVelocity(cfg.Risk.VelocityWindow)
		velocity = memVelocity
	}

	riskMetrics := riskmetrics.New()
	requestScorer, err := scorer.NewRequestScorer(identity, address, velocity,
		scorer.WithLogger(log), scorer.WithMetrics(riskMetrics))
	if err != nil {
		return err
	}
	auditScorer, err := scorer.NewAuditScorer(booths,
		scorer.WithLogger(log), scorer.WithMetrics(riskMetrics))
	if err != nil {
		return err
	}

	// Flags.
	flagStore, closeDB, err := openFlagStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeDB()
	flagSvc, err := flagsservice.New(flagStore, booths,
		flagsservice.WithLogger(log),
		flagsservice.WithMetrics(flagsmetrics.New()),
		flagsservice.WithAuditPublisher(events),
	)
	if err != nil {
		return err
	}

	// Registry.
	registrySvc, err := registryservice.New(registrystore.NewInMemoryStore(), requestScorer, identity, address, flagSvc,
		registryservice.WithLogger(log),
		registryservice.WithAuditPublisher(events),
		registryservice.WithStateCode(cfg.Risk.StateCode),
	)
	if err != nil {
		return err
	}
	if seedDemo {
		if err := seedVoterRoll(ctx, registrySvc); err != nil {
			return err
		}
		log.Info("demo voter roll imported")
	}

	// Poll audit and certificates.
	pollSvc, err := pollauditservice.New(pollauditstore.NewInMemoryStore(), auditScorer, flagSvc,
		pollauditservice.WithLogger(log),
		pollauditservice.WithAuditPublisher(events),
	)
	if err != nil {
		return err
	}
	integritySvc, err := integrityservice.New(flagSvc, registrySvc, pollSvc,
		integrityservice.WithLogger(log),
		integrityservice.WithMetrics(integritymetrics.New()),
		integrityservice.WithAuditPublisher(events),
		integrityservice.WithTurnoutPolicy(policy.BaselineFor, policy.TurnoutSpikeThreshold),
		integrityservice.WithThresholds(integritymodels.Thresholds{
			VerifiedAbove: policy.VerifiedAbove,
			FlaggedBelow:  policy.FlaggedBelow,
		}),
	)
	if err != nil {
		return err
	}

	// Operator auth.
	tokens := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, tokenAudience)
	passwordHash := cfg.Auth.DemoPasswordHash
	if passwordHash == "" {
		passwordHash, err = authservice.HashPassword(cfg.Auth.DemoPassword)
		if err != nil {
			return fmt.Errorf("hash demo password: %w", err)
		}
	}
	logins := lockout.New(lockout.Config{
		MaxFailures:  cfg.Auth.LockoutMaxFailures,
		Window:       cfg.Auth.LockoutDuration,
		LockDuration: cfg.Auth.LockoutDuration,
	})
	authSvc, err := authservice.New(authservice.Credential{Username: cfg.Auth.DemoUsername, PasswordHash: passwordHash}, tokens,
		authservice.WithLogger(log),
		authservice.WithAuditPublisher(events),
		authservice.WithTokenTTL(cfg.Auth.TokenTTL),
		authservice.WithLockout(logins),
	)
	if err != nil {
		return err
	}

	proxies, err := metadata.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		return fmt.Errorf("TRUSTED_PROXIES: %w", err)
	}

	router := httptransport.NewRouter(httptransport.Dependencies{
		Logger:         log,
		Metrics:        appMetrics,
		Tokens:         jwttoken.NewJWTServiceAdapter(tokens),
		MetricsToken:   cfg.Server.MetricsToken,
		TrustedProxies: proxies,
		Auth:           authhandler.New(authSvc, log),
		Registry:       registryhandler.New(registrySvc, log),
		Flags:          flagshandler.New(flagSvc, log),
		PollAudit:      pollaudithandler.New(pollSvc, log),
		Integrity:      integrityhandler.New(integritySvc, log),
		Authority:      httptransport.NewAuthorityHandler(registrySvc, flagSvc, eventStore, log),
		Stream:         hub,
	})
	srv := httpserver.New(cfg.Server.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting rollguard", "addr", cfg.Server.Addr,
			"velocity_backend", cfg.Risk.VelocityBackend,
			"flag_store", cfg.Risk.FlagStore,
			"kafka", cfg.Kafka.Enabled(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		sweep(gctx, cfg.Risk.SweepInterval, log, memVelocity, logins)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		err := srv.Shutdown(shutdownCtx)
		events.Close()
		if kafkaSink != nil {
			if kerr := kafkaSink.Close(shutdownCtx); kerr != nil {
				log.Warn("kafka flush failed", "error", kerr)
			}
		}
		return err
	})
	return g.Wait()
}

// openFlagStore picks the configured flag store. The returned close func is
// always safe to call.
func openFlagStore(ctx context.Context, cfg config.Config) (flagsservice.Store, func(), error) {
	if cfg.Risk.FlagStore != config.BackendPostgres {
		return flagsstore.NewInMemoryFlagStore(), func() {}, nil
	}
	db, err := postgres.Open(ctx, cfg.Postgres)
	if err != nil {
		return nil, nil, err
	}
	if err := postgres.CreateSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return flagsstore.NewPostgres(db), closer(db), nil
}

func closer(db *sql.DB) func() {
	return func() { _ = db.Close() }
}

type sweeper interface {
	Sweep(now time.Time) int
}

// sweep periodically expires in-memory windows. A nil velocity index means
// Redis owns expiry.
func sweep(ctx context.Context, every time.Duration, log *slog.Logger, velocity *index.InMemoryVelocity, logins sweeper) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if velocity != nil {
				if n := velocity.Sweep(now); n > 0 {
					log.Debug("velocity origins expired", "count", n)
				}
			}
			if n := logins.Sweep(now); n > 0 {
				log.Debug("login lockouts expired", "count", n)
			}
		}
	}
}
