package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/fitlytics/fitlytics/internal/auth"
	"github.com/fitlytics/fitlytics/internal/bodymetrics"
	"github.com/fitlytics/fitlytics/internal/config"
	"github.com/fitlytics/fitlytics/internal/dashboard"
	"github.com/fitlytics/fitlytics/internal/db"
	"github.com/fitlytics/fitlytics/internal/middleware"
	"github.com/fitlytics/fitlytics/internal/nutrition"
	"github.com/fitlytics/fitlytics/internal/photos"
	"github.com/fitlytics/fitlytics/internal/telemetry/metrics"
	"github.com/fitlytics/fitlytics/internal/telemetry/tracing"
	"github.com/fitlytics/fitlytics/internal/users"
	"github.com/fitlytics/fitlytics/internal/workouts"
	"github.com/fitlytics/fitlytics/pkg"

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
)

type Server struct {
	config            *config.Config
	httpServer        *http.Server
	metricsHttpServer *http.Server

	dbPool       *pgxpool.Pool
	redisClient  *redis.Client
	authService  *auth.Service
	loginChecker *auth.LoginChecker
	usersService *users.Service
	photoStore   *photos.DiskStore
	versionInfo  string

	// telemetry
	metricsManager *metrics.Manager
	promRegistry   *prometheus.Registry
	otelShutdown   func()
}

type NewServerParams struct {
	Config                  *config.Config
	RedisPassword           string
	VersionInfo             string
	HoneycombTracingEnabled bool
}

func NewServer(
	ctx context.Context,
	params NewServerParams,
) (*Server, error) {
	dbPool, err := db.NewDBPool(ctx, db.NewDBPoolParams{
		DBHost:         params.Config.PostgresHost,
		DBPort:         params.Config.PostgresPort,
		DBName:         params.Config.PostgresDBName,
		TracingEnabled: params.HoneycombTracingEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("new db pool: %w", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		log.Warnf("failed to ping db: %s", err)
	}

	pgxpoolCollector := pgxpoolprometheus.NewCollector(
		dbPool,
		map[string]string{"db_name": params.Config.PostgresDBName},
	)
	promRegistry := metrics.SetupPrometheus(pgxpoolCollector)
	metricsManager := metrics.NewManager("backend", "main", promRegistry)
	metricsManager.GaugeLifeSignal.Set(0)

	rdb := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(params.Config.RedisHost, params.Config.RedisPort),
		Password: params.RedisPassword,
		DB:       0, // use default DB
	})

	rdbStatus := rdb.Ping(ctx)
	if err := rdbStatus.Err(); err != nil {
		log.Errorf("--> failed to ping redis: %s", err)
	} else {
		log.Debugf("redis ping: %s", rdbStatus.Val())
	}

	authService := auth.NewAuthService(auth.DefaultTTL, rdb)
	go func() {
		for range time.Tick(time.Hour * 8) {
			authService.ScanAndClean(ctx)
		}
	}()

	// use honeycomb distro to setup OpenTelemetry SDK
	otelShutdown, err := tracing.HoneycombSetup(params.HoneycombTracingEnabled, "fitlytics-backend")
	if err != nil {
		return nil, err
	}

	photoStore, err := photos.NewDiskStore(params.Config.PhotosRootPath)
	if err != nil {
		return nil, fmt.Errorf("new photos disk store: %w", err)
	}

	return &Server{
		config:      params.Config,
		dbPool:      dbPool,
		versionInfo: params.VersionInfo,

		redisClient:  rdb,
		authService:  authService,
		loginChecker: auth.NewLoginChecker(auth.DefaultTTL, rdb),
		usersService: users.NewService(users.NewRepo(dbPool)),
		photoStore:   photoStore,

		// telemetry
		metricsManager: metricsManager,
		promRegistry:   promRegistry,
		otelShutdown:   otelShutdown,
	}, nil
}

func (s *Server) routerSetup() *mux.Router {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware("main-router"))

	r.HandleFunc("/api/health", func(w http.ResponseWriter, _ *http.Request) {
		pkg.WriteTextResponseOK(w, "ok")
	}).Methods("GET", "OPTIONS").Name("health")
	r.HandleFunc("/api/version", func(w http.ResponseWriter, _ *http.Request) {
		pkg.WriteTextResponseOK(w, s.versionInfo)
	}).Methods("GET", "OPTIONS").Name("version")

	usersHandler := users.NewHandler(
		users.NewRepo(s.dbPool),
		s.authService,
		s.usersService,
	)
	reqRateLimiter := redis_rate.NewLimiter(s.redisClient)
	loginRateLimit := middleware.RateLimit(
		reqRateLimiter,
		"login",
		s.config.LoginRateLimitAllowedPerMin,
		s.metricsManager,
	)
	r.HandleFunc("/api/users/register", usersHandler.HandleRegister).Methods("POST", "OPTIONS").Name("register")
	r.Handle("/api/users/login", loginRateLimit(http.HandlerFunc(usersHandler.HandleLogin))).Methods("POST", "OPTIONS").Name("login")
	r.HandleFunc("/api/users/logout", usersHandler.HandleLogout).Methods("POST", "OPTIONS").Name("logout")
	r.HandleFunc("/api/users/me", usersHandler.HandleMe).Methods("GET", "OPTIONS").Name("me")
	r.HandleFunc("/api/users/profile", usersHandler.HandleUpdateProfile).Methods("PUT", "OPTIONS").Name("update-profile")

	bodyMetricsRepo := bodymetrics.NewRepo(s.dbPool)
	bodyMetricsHandler := bodymetrics.NewHandler(bodyMetricsRepo, s.usersService, s.metricsManager)
	r.HandleFunc("/api/body-metrics", bodyMetricsHandler.HandleAdd).Methods("POST", "OPTIONS").Name("new-body-metric")
	r.HandleFunc("/api/body-metrics", bodyMetricsHandler.HandleList).Methods("GET", "OPTIONS").Name("list-body-metrics")
	r.HandleFunc("/api/body-metrics/stats", bodyMetricsHandler.HandleStats).Methods("GET", "OPTIONS").Name("body-metrics-stats")
	r.HandleFunc("/api/body-metrics/{id}", bodyMetricsHandler.HandleGet).Methods("GET", "OPTIONS").Name("get-body-metric")
	r.HandleFunc("/api/body-metrics/{id}", bodyMetricsHandler.HandleUpdate).Methods("PUT", "OPTIONS").Name("update-body-metric")
	r.HandleFunc("/api/body-metrics/{id}", bodyMetricsHandler.HandleDelete).Methods("DELETE", "OPTIONS").Name("remove-body-metric")

	workoutsRepo := workouts.NewRepo(s.dbPool)
	workoutsHandler := workouts.NewHandler(workoutsRepo, s.usersService, s.metricsManager)
	r.HandleFunc("/api/workouts", workoutsHandler.HandleAdd).Methods("POST", "OPTIONS").Name("new-workout")
	r.HandleFunc("/api/workouts", workoutsHandler.HandleList).Methods("GET", "OPTIONS").Name("list-workouts")
	r.HandleFunc("/api/workouts/stats", workoutsHandler.HandleStats).Methods("GET", "OPTIONS").Name("workouts-stats")
	r.HandleFunc("/api/workouts/{id}", workoutsHandler.HandleGet).Methods("GET", "OPTIONS").Name("get-workout")
	r.HandleFunc("/api/workouts/{id}", workoutsHandler.HandleUpdate).Methods("PUT", "OPTIONS").Name("update-workout")
	r.HandleFunc("/api/workouts/{id}", workoutsHandler.HandleDelete).Methods("DELETE", "OPTIONS").Name("remove-workout")

	nutritionRepo := nutrition.NewRepo(s.dbPool)
	nutritionHandler := nutrition.NewHandler(nutritionRepo, s.metricsManager)
	r.HandleFunc("/api/nutrition", nutritionHandler.HandleAdd).Methods("POST", "OPTIONS").Name("new-nutrition-entry")
	r.HandleFunc("/api/nutrition", nutritionHandler.HandleList).Methods("GET", "OPTIONS").Name("list-nutrition-entries")
	r.HandleFunc("/api/nutrition/stats", nutritionHandler.HandleStats).Methods("GET", "OPTIONS").Name("nutrition-stats")
	r.HandleFunc("/api/nutrition/{id}", nutritionHandler.HandleGet).Methods("GET", "OPTIONS").Name("get-nutrition-entry")
	r.HandleFunc("/api/nutrition/{id}", nutritionHandler.HandleUpdate).Methods("PUT", "OPTIONS").Name("update-nutrition-entry")
	r.HandleFunc("/api/nutrition/{id}", nutritionHandler.HandleDelete).Methods("DELETE", "OPTIONS").Name("remove-nutrition-entry")

	photosRepo := photos.NewRepo(s.dbPool)
	photosHandler := photos.NewHandler(photosRepo, s.photoStore, s.metricsManager)
	r.HandleFunc("/api/progress-photos", photosHandler.HandleUpload).Methods("POST", "OPTIONS").Name("upload-progress-photo")
	r.HandleFunc("/api/progress-photos", photosHandler.HandleList).Methods("GET", "OPTIONS").Name("list-progress-photos")
	r.HandleFunc("/api/progress-photos/{id}", photosHandler.HandleGet).Methods("GET", "OPTIONS").Name("get-progress-photo")
	r.HandleFunc("/api/progress-photos/{id}/content", photosHandler.HandleDownload).Methods("GET", "OPTIONS").Name("download-progress-photo")
	r.HandleFunc("/api/progress-photos/{id}", photosHandler.HandleUpdate).Methods("PUT", "OPTIONS").Name("update-progress-photo")
	r.HandleFunc("/api/progress-photos/{id}", photosHandler.HandleDelete).Methods("DELETE", "OPTIONS").Name("remove-progress-photo")

	dashboardHandler := dashboard.NewHandler(bodyMetricsRepo, workoutsRepo, nutritionRepo, photosRepo)
	r.HandleFunc("/api/dashboard/overview", dashboardHandler.HandleOverview).Methods("GET", "OPTIONS").Name("dashboard-overview")
	r.HandleFunc("/api/dashboard/trends", dashboardHandler.HandleTrends).Methods("GET", "OPTIONS").Name("dashboard-trends")

	// all the rest - unhandled paths
	r.PathPrefix("/").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}).Name("unknown")

	authMiddleware := middleware.NewAuthMiddlewareHandler(s.loginChecker)

	r.Use(middleware.PanicRecovery(s.metricsManager))
	r.Use(middleware.LogRequest())
	r.Use(middleware.RequestMetrics(s.metricsManager))
	r.Use(middleware.Cors())
	r.Use(authMiddleware.AuthCheck())
	r.Use(middleware.DrainAndCloseRequest())

	return r
}

func (s *Server) Serve(ctx context.Context, host string, port int) {
	router := s.routerSetup()

	ipAndPort := net.JoinHostPort(host, strconv.Itoa(port))
	s.httpServer = &http.Server{
		Handler:      router,
		Addr:         ipAndPort,
		WriteTimeout: time.Minute,
		ReadTimeout:  time.Minute,
		ConnState:    s.connStateMetrics,
	}

	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.HandlerFor(
		s.promRegistry,
		promhttp.HandlerOpts{},
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

	s.metricsManager.GaugeLifeSignal.Set(1)
}

func (s *Server) GracefulShutdown() {
	log.Debug("graceful shutdown initiated ...")

	s.metricsManager.GaugeLifeSignal.Set(0)

	s.otelShutdown()
	log.Trace("otel shut down ...")

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			log.Errorf("failed to close redis client conn: %s", err)
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

	maxWaitDuration := time.Second * 15
	ctx, timeoutCancel := context.WithTimeout(context.Background(), maxWaitDuration)
	defer timeoutCancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Error(" >>> failed to gracefully shutdown http server")
	}
	log.Warnln("server shut down")

	if err := s.metricsHttpServer.Shutdown(ctx); err != nil {
		log.Error(" >>> failed to gracefully shutdown metrics http server")
	}
	log.Warnln("metrics server shut down")
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
