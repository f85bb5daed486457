package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/teresa-solution/directory-service/internal/api"
	"github.com/teresa-solution/directory-service/internal/config"
	"github.com/teresa-solution/directory-service/internal/database"
	"github.com/teresa-solution/directory-service/internal/events"
	"github.com/teresa-solution/directory-service/internal/monitoring"
	"github.com/teresa-solution/directory-service/internal/service"
	"github.com/teresa-solution/directory-service/internal/source"
	"github.com/teresa-solution/directory-service/internal/store"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

func main() {
	var (
		configFile = flag.String("config", "", "Path to the TOML configuration file")
		migrateDB  = flag.Bool("migrate", false, "Apply database migrations before starting")
		port       = flag.Int("port", 0, "Port gRPC server")
		httpPort   = flag.Int("http-port", 0, "Port of the HTTP server")
		dbHost     = flag.String("db-host", "", "Database host")
		dbPort     = flag.Int("db-port", 0, "Database port")
		dbUser     = flag.String("db-user", "", "Database user")
		dbPass     = flag.String("db-pass", "", "Database password")
		dbName     = flag.String("db-name", "", "Database name")
		redisAddr  = flag.String("redis-addr", "", "Redis address")
	)
	flag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	// flags win over the file and the environment
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Server.GRPCPort = *port
		case "http-port":
			cfg.Server.HTTPPort = *httpPort
		case "db-host":
			cfg.DB.Host = *dbHost
		case "db-port":
			cfg.DB.Port = *dbPort
		case "db-user":
			cfg.DB.User = *dbUser
		case "db-pass":
			cfg.DB.Password = *dbPass
		case "db-name":
			cfg.DB.Name = *dbName
		case "redis-addr":
			cfg.Redis.Addr = *redisAddr
		}
	})
	if cfg.LogFormat == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	zerolog.DefaultContextLogger = &log.Logger

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *migrateDB {
		if err := database.Migrate(cfg.DB.DSN()); err != nil {
			log.Fatal().Err(err).Msg("Failed to apply migrations")
		}
	}

	pool, err := database.Connect(ctx, cfg.DB.DSN(), database.PoolOptions{
		MaxConns: cfg.DB.MaxConns,
		MinConns: cfg.DB.MinConns,
		Attempts: cfg.DB.ConnectAttempts,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	db := store.New(pool, store.NewSourceCache(rdb, cfg.Redis.SourceCacheTTL.Duration))
	defer db.Close()

	tenants := store.NewTenantRepository(db)
	users := store.NewUserRepository(db)
	phonebooks := store.NewPhonebookRepository(db)
	personal := store.NewPersonalRepository(db)
	displays := store.NewDisplayRepository(db)
	sources := store.NewSourceRepository(db)
	profiles := store.NewProfileRepository(db)
	favorites := store.NewFavoriteRepository(db)

	drivers := source.NewManager(sources)
	source.RegisterBuiltins(drivers, db)
	log.Info().Strs("backends", drivers.Backends()).Msg("Source drivers registered")
	db.OnSourceChange(func(_ context.Context, sourceUUID string) {
		drivers.Invalidate(sourceUUID)
	})

	monitoring.InitMetrics(nil)

	fanout := service.NewFanOut(drivers, cfg.Fanout)
	directory := service.NewDirectoryService(profiles, displays, favorites, personal, fanout)
	personalService := service.NewPersonalService(personal)
	provisioning := service.NewProvisioningService(service.Provisioners{
		Tenants:    tenants,
		Displays:   displays,
		Phonebooks: phonebooks,
		Sources:    sources,
		Profiles:   profiles,
	}, cfg.Provisioning)
	defer provisioning.Close()
	handlers := service.NewEventHandlers(provisioning, users, tenants)

	subscriber := events.NewSubscriber(rdb, map[string]events.Handler{
		cfg.Redis.Events.TenantCreated:      events.JSON(handlers.TenantCreated),
		cfg.Redis.Events.UserDeleted:        events.JSON(handlers.UserDeleted),
		cfg.Redis.Events.LocalizationEdited: events.JSON(handlers.LocalizationEdited),
	})
	subscriberDone := make(chan struct{})
	go func() {
		defer close(subscriberDone)
		if err := subscriber.Run(ctx); err != nil {
			log.Error().Err(err).Msg("Event subscriber stopped")
		}
	}()

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPCPort))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to listen")
	}

	healthServer := health.NewServer()
	server := grpc.NewServer()
	healthpb.RegisterHealthServer(server, healthServer)
	reflection.Register(server)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	go func() {
		log.Info().Msgf("gRPC server listening at %v", lis.Addr())
		if err := server.Serve(lis); err != nil {
			log.Fatal().Err(err).Msg("Failed to start gRPC server")
		}
	}()

	router := chi.NewRouter()
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	router.Handle("/metrics", promhttp.Handler())
	router.Mount("/0.1", api.Router(directory, personalService, phonebooks))

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler: router,
	}
	go func() {
		log.Info().Msgf("HTTP server for directory queries, health checks and metrics started on port %d", cfg.Server.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server...")
	healthServer.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	server.GracefulStop()
	// no event may reach provisioning after its deferred Close
	<-subscriberDone
	log.Info().Msg("Server exiting")
}
