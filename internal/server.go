package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/IBM/pgxpoolprometheus"
	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/multierr"

	"github.com/2beens/rolegate/internal/accounts"
	"github.com/2beens/rolegate/internal/api"
	"github.com/2beens/rolegate/internal/auth"
	"github.com/2beens/rolegate/internal/config"
	"github.com/2beens/rolegate/internal/db"
	"github.com/2beens/rolegate/internal/middleware"
	"github.com/2beens/rolegate/internal/telemetry/metrics"
	"github.com/2beens/rolegate/internal/telemetry/tracing"
	"github.com/2beens/rolegate/internal/web"
)

const sessionsCleanupInterval = time.Hour

type Server struct {
	httpServer        *http.Server
	metricsHttpServer *http.Server

	config      *config.Config
	dbPool      *pgxpool.Pool
	redisClient *redis.Client

	credentials   *accounts.CredentialStore
	authManager   *auth.Manager
	webTransport  auth.TokenTransport
	apiTransport  auth.TokenTransport
	cleanupCancel context.CancelFunc
	cleanupDone   chan struct{}

	// metrics
	metricsManager *metrics.Manager
	promRegistry   *prometheus.Registry
	otelShutdown   func()
}

type NewServerParams struct {
	Config                  *config.Config
	RedisPassword           string
	PostgresUser            string
	PostgresPassword        string
	JWTSecret               string
	HoneycombTracingEnabled bool
}

func NewServer(
	ctx context.Context,
	params NewServerParams,
) (*Server, error) {
	cfg := params.Config
	s := &Server{
		config: cfg,
	}

	var collectors []prometheus.Collector
	var repo accounts.Repo
	switch cfg.AccountsBackend {
	case "postgres":
		dbPool, err := db.NewDBPool(ctx, db.NewDBPoolParams{
			DBHost:         cfg.PostgresHost,
			DBPort:         cfg.PostgresPort,
			DBName:         cfg.PostgresDBName,
			DBUser:         params.PostgresUser,
			DBPassword:     params.PostgresPassword,
			TracingEnabled: params.HoneycombTracingEnabled,
		})
		if err != nil {
			return nil, fmt.Errorf("new db pool: %w", err)
		}
		if err := dbPool.Ping(ctx); err != nil {
			log.Warnf("failed to ping db: %s", err)
		}
		s.dbPool = dbPool

		collectors = append(collectors, pgxpoolprometheus.NewCollector(
			dbPool,
			map[string]string{"db_name": cfg.PostgresDBName},
		))

		psqlRepo := accounts.NewPsqlRepo(dbPool)
		if err := psqlRepo.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure accounts schema: %w", err)
		}
		repo = psqlRepo
	default:
		repo = accounts.NewMemoryRepo()
	}

	s.promRegistry = metrics.SetupPrometheus(collectors...)
	s.metricsManager = metrics.NewManager("rolegate", "main", s.promRegistry)
	s.metricsManager.GaugeLifeSignal.Set(0)

	if cfg.RedisEnabled() {
		s.redisClient = redis.NewClient(&redis.Options{
			Addr:     net.JoinHostPort(cfg.RedisHost, cfg.RedisPort),
			Password: params.RedisPassword,
			DB:       0, // use default DB
		})

		rdbStatus := s.redisClient.Ping(ctx)
		if err := rdbStatus.Err(); err != nil {
			log.Errorf("--> failed to ping redis: %s", err)
		} else {
			log.Debugf("redis ping: %s", rdbStatus.Val())
		}
	}

	// use honeycomb distro to setup OpenTelemetry SDK
	otelShutdown, err := tracing.HoneycombSetup(params.HoneycombTracingEnabled, "rolegate", s.redisClient)
	if err != nil {
		return nil, err
	}
	s.otelShutdown = otelShutdown

	s.credentials, err = accounts.NewCredentialStore(repo, cfg.PasswordCost)
	if err != nil {
		return nil, fmt.Errorf("new credential store: %w", err)
	}
	if err := s.seedAccounts(ctx); err != nil {
		return nil, err
	}

	sessionStore, err := s.newSessionStore()
	if err != nil {
		return nil, err
	}
	s.authManager = auth.NewManager(s.credentials, sessionStore, cfg.SessionTTL.Duration)

	s.apiTransport = auth.NewHeaderTransport()
	if cfg.SignedCookies {
		if params.JWTSecret == "" {
			return nil, errors.New("signed cookies enabled, but jwt secret not set")
		}
		s.webTransport, err = auth.NewSignedCookieTransport([]byte(params.JWTSecret), cfg.SessionCookieSecure, cfg.SessionTTL.Duration)
		if err != nil {
			return nil, fmt.Errorf("signed cookie transport: %w", err)
		}
	} else {
		s.webTransport = auth.NewCookieTransport(cfg.SessionCookieSecure, cfg.SessionTTL.Duration)
	}

	return s, nil
}

func (s *Server) seedAccounts(ctx context.Context) error {
	var seed []accounts.SeedAccount
	if s.config.SeedDefaults {
		seed = append(seed, accounts.DefaultSeedAccounts...)
	}
	if s.config.SeedFilePath != "" {
		fromFile, err := accounts.LoadSeedFile(s.config.SeedFilePath)
		if err != nil {
			return fmt.Errorf("load seed accounts: %w", err)
		}
		seed = append(seed, fromFile...)
	}
	if len(seed) == 0 {
		return nil
	}

	added, err := accounts.Seed(ctx, s.credentials, seed)
	if err != nil {
		return fmt.Errorf("seed accounts: %w", err)
	}
	log.Debugf("seeded %d accounts", added)
	return nil
}

func (s *Server) newSessionStore() (auth.SessionStore, error) {
	if s.config.SessionsBackend != "redis" {
		return auth.NewMemorySessionStore(), nil
	}
	if s.redisClient == nil {
		return nil, errors.New("redis sessions backend without a redis client")
	}

	var store auth.SessionStore = auth.NewRedisSessionStore(s.redisClient, s.config.SessionTTL.Duration)
	if s.config.SessionCacheEnabled {
		store = auth.NewCachedSessionStore(
			store,
			s.config.SessionCacheSizeMB*1024*1024,
			auth.DefaultSessionCacheExpire,
		)
		log.Debugf("session cache enabled [%d MB]", s.config.SessionCacheSizeMB)
	}
	return store, nil
}

func (s *Server) routerSetup() (*mux.Router, error) {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware("rolegate-router"))

	var reqRateLimiter middleware.RequestRateLimiter
	if s.redisClient != nil {
		reqRateLimiter = redis_rate.NewLimiter(s.redisClient)
	}

	apiAuthMiddleware := middleware.NewAuthMiddlewareHandler(s.authManager, s.apiTransport, "", s.metricsManager)
	api.NewHandler(s.authManager, s.apiTransport, s.metricsManager).
		SetupRoutes(r, apiAuthMiddleware, reqRateLimiter, s.config.LoginRateLimitAllowedPerMin)

	webAuthMiddleware := middleware.NewAuthMiddlewareHandler(s.authManager, s.webTransport, "/login", s.metricsManager)
	webHandler, err := web.NewHandler(s.authManager, s.webTransport, s.metricsManager)
	if err != nil {
		return nil, fmt.Errorf("new web handler: %w", err)
	}
	webHandler.SetupRoutes(r, webAuthMiddleware, reqRateLimiter, s.config.LoginRateLimitAllowedPerMin)

	r.Use(middleware.PanicRecovery(s.metricsManager))
	r.Use(middleware.LogRequest())
	r.Use(middleware.RequestMetrics(s.metricsManager))
	r.Use(middleware.DrainAndCloseRequest())

	return r, nil
}

func (s *Server) Serve(ctx context.Context, host string, port int) {
	router, err := s.routerSetup()
	if err != nil {
		log.Fatalf("failed to setup router: %s", err)
	}

	ipAndPort := net.JoinHostPort(host, strconv.Itoa(port))
	s.httpServer = &http.Server{
		Handler:      router,
		Addr:         ipAndPort,
		WriteTimeout: time.Minute,
		ReadTimeout:  time.Minute,
		ConnState:    s.connStateMetrics,
	}

	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.InstrumentMetricHandler(
		s.promRegistry,
		promhttp.HandlerFor(s.promRegistry, promhttp.HandlerOpts{}),
	))
	metricsAddr := net.JoinHostPort(s.config.PrometheusMetricsHost, s.config.PrometheusMetricsPort)
	s.metricsHttpServer = &http.Server{
		Addr:    metricsAddr,
		Handler: metricsRouter,
	}

	go func() {
		log.Infof(" > server listening on: [%s]", ipAndPort)
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("main service, listen and serve: %s", err)
		}
	}()

	go func() {
		log.Debugf(" > metrics listening on: [%s]", metricsAddr)
		err := s.metricsHttpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("metrics service, listen and serve: %s", err)
		}
	}()

	s.startSessionsCleanup(ctx, sessionsCleanupInterval)
	s.metricsManager.GaugeLifeSignal.Set(1)
}

// startSessionsCleanup sweeps expired sessions on every tick until ctx is done
// or the server shuts down.
func (s *Server) startSessionsCleanup(ctx context.Context, interval time.Duration) {
	ctx, s.cleanupCancel = context.WithCancel(ctx)
	s.cleanupDone = make(chan struct{})

	go func() {
		defer close(s.cleanupDone)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				active, removed := s.authManager.ScanAndClean(ctx)
				s.metricsManager.GaugeActiveSessions.Set(float64(active))
				log.Debugf("sessions cleanup: %d active, %d removed", active, removed)
			}
		}
	}()
}

func (s *Server) GracefulShutdown() error {
	log.Debug("graceful shutdown initiated ...")

	s.metricsManager.GaugeLifeSignal.Set(0)

	if s.cleanupCancel != nil {
		s.cleanupCancel()
		<-s.cleanupDone
	}

	maxWaitDuration := time.Second * 15
	ctx, timeoutCancel := context.WithTimeout(context.Background(), maxWaitDuration)
	defer timeoutCancel()

	var shutdownErr error
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			shutdownErr = multierr.Append(shutdownErr, fmt.Errorf("shutdown http server: %w", err))
		}
		log.Warnln("server shut down")
	}

	if s.metricsHttpServer != nil {
		if err := s.metricsHttpServer.Shutdown(ctx); err != nil {
			shutdownErr = multierr.Append(shutdownErr, fmt.Errorf("shutdown metrics http server: %w", err))
		}
		log.Warnln("metrics server shut down")
	}

	s.otelShutdown()
	log.Trace("otel shut down ...")

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			shutdownErr = multierr.Append(shutdownErr, fmt.Errorf("close redis client: %w", err))
		}
	}

	if s.dbPool != nil {
		log.Debugln("closing db pool ...")
		s.dbPool.Close() // blocking operation
		log.Debugln("db pool closed")
	}

	if ok := sentry.Flush(5 * time.Second); ok {
		log.Debugf("sentry flush ok: %t", ok)
	}

	return shutdownErr
}

func (s *Server) connStateMetrics(_ net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		s.metricsManager.GaugeRequests.Add(1)
	case http.StateClosed:
		s.metricsManager.GaugeRequests.Add(-1)
	default:
		// do nothing
	}
}
