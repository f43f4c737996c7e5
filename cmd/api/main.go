package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/fkhayef/meetsync/docs"
	"github.com/fkhayef/meetsync/internal/availability"
	"github.com/fkhayef/meetsync/internal/busy"
	"github.com/fkhayef/meetsync/internal/color"
	"github.com/fkhayef/meetsync/internal/config"
	"github.com/fkhayef/meetsync/internal/database"
	"github.com/fkhayef/meetsync/internal/event"
	"github.com/fkhayef/meetsync/internal/kvstore"
	"github.com/fkhayef/meetsync/internal/metrics"
	"github.com/fkhayef/meetsync/internal/notification"
	"github.com/fkhayef/meetsync/internal/view"
	"github.com/fkhayef/meetsync/pkg/logger"
	mw "github.com/fkhayef/meetsync/pkg/middleware"
	"github.com/fkhayef/meetsync/pkg/validate"
)

// @title           MeetSync API
// @version         1.0
// @description     Collect participant availability for an event and review it on a shared calendar.
// @host            localhost:8080
// @BasePath        /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// Load .env file
	envErr := godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.New("info").WithError(err).Fatal("Invalid configuration")
	}

	log := logger.New(cfg.LogLevel)
	if envErr != nil {
		log.Info("No .env file found, using environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database connection
	db, err := database.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	log.Info("Connected to database successfully")

	if err := database.Migrate(db, cfg.MigrationsPath, log); err != nil {
		log.WithError(err).Fatal("Failed to migrate database")
	}

	// Viewer-local state and its change signal
	store, closeStore, err := kvstore.Open(ctx, cfg.RedisURL, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to redis")
	}
	defer closeStore()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Participant color strategy (Factory Pattern)
	colors, err := color.NewStrategyFactory().CreateFromString(cfg.ColorStrategy)
	if err != nil {
		log.WithError(err).Fatal("Invalid color strategy")
	}

	v := validate.New()
	auth := mw.NewAuth(cfg.JWTSecret)
	submitLimiter := mw.NewRateLimiter(cfg.SubmitRatePerMinute, cfg.SubmitRatePerMinute)

	// Event feature
	eventRepo := event.NewRepository(db)
	eventService := event.NewService(eventRepo, v, log)
	eventHandler := event.NewHandler(eventService)

	// Availability feature
	availabilityRepo := availability.NewRepository(db)
	availabilityService := availability.NewService(availabilityRepo, eventService, v, log)
	availabilityHandler := availability.NewHandler(availabilityService, submitLimiter.Limit)

	// Calendar page, draft and busy feed
	feeds := busy.NewFetcher(cfg.BusyFeedTimeout, cfg.BusyFeedCacheTTL, log, m)
	viewService := view.NewService(view.Deps{
		Events:       eventService,
		Participants: availabilityService,
		Busy:         feeds,
		Backend:      store,
		Reconciler:   availability.NewReconciler(availability.NewNormalizer(colors)),
		Logger:       log,
		Metrics:      m,
	})
	viewHandler := view.NewHandler(viewService, submitLimiter.Limit)
	profileHandler := busy.NewHandler(store)

	// Live sessions
	hub := notification.NewHub(m.Sessions)
	go hub.Run()
	defer hub.Stop()

	notificationService := notification.NewService(hub, viewService, store, log)
	go func() {
		if err := notificationService.Listen(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).Error("Storage change listener stopped")
		}
	}()
	notificationHandler := notification.NewHandler(notificationService, auth, originAllowed(cfg.CORSAllowedOrigins))

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	// forwarded headers are client-controlled unless a trusted proxy rewrites them
	if cfg.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(mw.RequestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", mw.ClientIDHeader},
		AllowCredentials: true,
	}).Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", metrics.Handler(reg))
	r.Get("/swagger/*", httpSwagger.WrapHandler)

	r.With(mw.ClientID, auth.Optional).Get("/ws", notificationHandler.ServeWS)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.ClientID)
		r.Use(auth.Optional)

		// Mount feature routers
		r.Mount("/events", eventHandler.Routes(availabilityHandler.Register, viewHandler.Register))
		r.Mount("/profile", profileHandler.Routes())
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("Graceful shutdown failed")
		}
	}()

	log.WithField("port", cfg.Port).Info("Server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("Server failed to start")
	}

	// let in-flight deletions report their outcome
	viewService.Wait()
	log.Info("Server stopped")
}

func originAllowed(origins []string) func(string) bool {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			return nil
		}
		allowed[o] = true
	}
	return func(origin string) bool {
		return origin == "" || allowed[origin]
	}
}
