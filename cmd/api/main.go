package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/app"
	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/cart"
	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/catalog"
	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/checkout"
	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/clients"
	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/common"
	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/config"
	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/configurator"
	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/events"
	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/health"
	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/lock"
	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/obs"
	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/orders"
	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/pricing"
	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/ratelimit"
	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/resilience"
	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/security"
	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "pos")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		sampling := envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0)
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:    "pos-api",
			ServiceVersion: envOrDefault("OBS_SERVICE_VERSION", ""),
			Endpoint:       envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:       envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio:  sampling,
			Environment:    cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	startCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	deps, err := app.Open(startCtx, cfg, logger, app.Options{ApplicationName: "pos-api", RedisMetrics: metricsEnabled})
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("open dependencies")
	}
	defer deps.Close()

	currency := pricing.Currency{Code: cfg.CurrencyCode, Scale: cfg.CurrencyScale}

	catalogSvc, err := catalog.NewService(catalog.ServiceConfig{
		Source: catalog.NewPostgresSource(deps.DB),
		Cache:  catalog.NewCache(deps.Redis, cfg.CatalogCacheTTL),
		Logger: logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise catalog service")
	}
	catalogHandler := catalog.NewHandler(catalog.HandlerConfig{Service: catalogSvc})
	configuratorHandler := &configurator.Handler{Catalog: catalogSvc, Currency: currency}

	locker := lock.Locker{R: deps.Redis, Prefix: "lock:"}
	cartSvc := &cart.Service{
		Snapshots: cart.RedisSnapshots{R: deps.Redis, TTL: cfg.CartSnapshotTTL},
		Catalog:   catalogSvc,
		Locker:    locker,
		Logger:    logger,
	}
	cartHandler := &cart.Handler{Svc: cartSvc, Currency: currency, Validator: deps.Validator}

	orderBreaker := resilience.NewBreaker(5, 0.5, 30*time.Second).
		WithTarget("order_service").
		WithLogger(logger)
	orderClient, err := orders.NewClient(orders.ClientConfig{
		BaseURL: cfg.OrderServiceURL,
		Token:   cfg.OrderServiceToken,
		Timeout: cfg.OrderServiceTimeout,
		Breaker: orderBreaker,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise order service client")
	}

	directory := clients.PostgresDirectory{DB: deps.DB}
	clientsHandler := &clients.Handler{Dir: directory}

	bus := &events.Bus{
		Store:     events.PostgresStore{DB: deps.DB},
		Notifiers: []events.Notifier{events.LogNotifier{Logger: logger}},
	}

	registry := checkout.NewRegistry(checkout.Deps{
		Carts:         cartSvc,
		Stock:         catalogSvc,
		Clients:       directory,
		Orders:        orderClient,
		Locker:        locker,
		Events:        bus,
		Currency:      currency,
		RequireClient: cfg.CheckoutRequireClient,
		SubmitTimeout: cfg.OrderServiceTimeout,
		LockTTL:       cfg.CheckoutLockTTL,
		Logger:        logger,
	})
	checkoutHandler := &checkout.Handler{Registry: registry, Currency: currency, Validator: deps.Validator}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-CSRF-Token", common.IdempotencyHeader, cfg.SessionHeader},
		ExposedHeaders:   []string{"X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(security.Headers{Enable: true, EnableHSTS: cfg.AppEnv == "production", NoStore: true}.Middleware)
	r.Use(security.BodyLimit{Max: cfg.HTTPBodyLimitBytes}.Middleware)
	r.Use(session.NewResolver(cfg.SessionHeader).Middleware)

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if envBool("OBS_ENABLE_PPROF", false) {
		user := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), user, pass))
	}

	healthHandler := health.Handler{
		Checker:      deps,
		DBTimeout:    envDurationMillis("HEALTH_READY_DB_TIMEOUT_MS", 500),
		RedisTimeout: envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
		OrderService: orderBreaker,
	}
	r.Route("/health", healthHandler.Routes)

	idem := common.Idem{R: deps.Redis, TTL: cfg.IdempotencyTTL, Scope: sessionScope}
	csrf := security.CSRF{SessionHeader: cfg.SessionHeader}
	onLimiterError := func(err error) {
		logger.Warn().Err(err).Msg("rate limiter unavailable")
	}

	r.Route("/api/v1", func(v chi.Router) {
		v.Route("/catalog", func(c chi.Router) {
			c.Use(ratelimit.IPMiddleware(deps.CatalogLimiter, onLimiterError))
			catalogHandler.Routes(c)
			configuratorHandler.Routes(c)
		})

		v.Route("/clients", clientsHandler.Routes)

		v.Route("/cart", func(c chi.Router) {
			c.Use(session.RequireSession)
			c.Use(csrf.Middleware)
			c.Use(idem.Middleware)
			cartHandler.Routes(c)
		})

		v.Route("/checkout", func(c chi.Router) {
			c.Use(session.RequireSession)
			c.Use(csrf.Middleware)
			c.Use(ratelimit.Handler{
				Limiter: ratelimit.Limiter{Client: deps.Redis, Prefix: "ratelimit:"},
				Config: ratelimit.Config{
					Key:    ratelimit.SessionKey("checkout"),
					Window: cfg.CheckoutRateLimitWindow,
					Max:    cfg.CheckoutRateLimitMax,
				},
				OnError: onLimiterError,
			}.Middleware)
			c.Use(idem.Middleware)
			checkoutHandler.Routes(c)
		})
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
		return
	case <-ctx.Done():
	}

	health.SetReady(false)
	logger.Info().Msg("draining")
	drainCtx, cancelDrain := context.WithTimeout(context.Background(), cfg.OrderServiceTimeout+5*time.Second)
	defer cancelDrain()
	if err := srv.Shutdown(drainCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown server")
	}
}

func sessionScope(r *http.Request) string {
	id, _ := session.FromContext(r.Context())
	return id
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/heap", pprof.Handler("heap"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/mutex", pprof.Handler("mutex"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
