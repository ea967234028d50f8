package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"trello-project/microservices/tasks-service/config"
	"trello-project/microservices/tasks-service/handlers"
	"trello-project/microservices/tasks-service/logging"
	"trello-project/microservices/tasks-service/repositories"
	"trello-project/microservices/tasks-service/services"
	"trello-project/microservices/tasks-service/utils"
)

type backend interface {
	repositories.Store
	repositories.NotificationRepository
}

func main() {
	cfg, envLoaded := config.Load(".env")
	logging.InitLogger(logging.Options{SystemName: "tasks-service", File: cfg.LogFile, Level: cfg.LogLevel})

	logging.Logger.Info("Event ID: SERVICE_START, Description: Starting Tasks Service...")
	if !envLoaded {
		logging.Logger.Warn("Event ID: ENV_LOAD_SKIPPED, Description: No .env file loaded, using process environment")
	}
	if err := cfg.Validate(); err != nil {
		logging.Logger.Fatalf("Event ID: CONFIG_ERROR, Description: Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore := openStore(ctx, cfg)
	defer closeStore()

	var notificationRepo repositories.NotificationRepository = store
	if cfg.NotificationsBackend == config.NotificationsCassandra {
		cassRepo, err := repositories.NewCassandraNotificationRepo(cfg.CassandraHosts, cfg.CassandraKeyspace, logging.Logger)
		if err != nil {
			logging.Logger.Fatalf("Event ID: CASSANDRA_CONNECTION_FAILED, Description: Cassandra connection failed: %v", err)
		}
		defer cassRepo.CloseSession()
		if err := cassRepo.CreateTable(); err != nil {
			logging.Logger.Fatalf("Event ID: CASSANDRA_TABLE_FAILED, Description: Failed to create notifications table: %v", err)
		}
		notificationRepo = cassRepo
	}

	notificationsBreaker := services.NewNotificationBreaker("notifications-cb", cfg.BreakerTimeout, cfg.BreakerMaxFailures)
	notificationService := services.NewNotificationService(notificationRepo, store, notificationsBreaker)
	taskService := services.NewTaskService(store, notificationService)

	if cfg.ReconcileSchedule != "" && cfg.ReconcileSchedule != "off" {
		reconciler := services.NewReconciler(store, taskService, cfg.ReconcileSchedule)
		if err := reconciler.Start(ctx); err != nil {
			logging.Logger.Fatalf("Event ID: RECONCILER_START_FAILED, Description: %v", err)
		}
		defer reconciler.Stop()
	}

	router := handlers.NewRouter(
		handlers.NewTaskHandler(taskService),
		handlers.NewNotificationHandler(notificationService),
		utils.NewTokenVerifier(cfg.JWTSecret),
		cfg.CORSOrigin,
	)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logging.Logger.Errorf("Event ID: SERVER_SHUTDOWN_ERROR, Description: %v", err)
		}
	}()

	logging.Logger.Infof("Event ID: SERVER_START_INFO, Description: Server running on http://localhost%s", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logging.Logger.Fatalf("Event ID: SERVER_FATAL_ERROR, Description: Server failed to start: %v", err)
	}
	logging.Logger.Info("Event ID: SERVER_STOPPED, Description: Tasks Service stopped")
}

// openStore connects the configured entity store and prepares its schema.
func openStore(ctx context.Context, cfg *config.Config) (backend, func()) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		pg, err := repositories.NewPostgresStore(cfg.PostgresDSN)
		if err != nil {
			logging.Logger.Fatalf("Event ID: DB_CONNECTION_FAILED, Description: Database connection for PostgreSQL failed: %v", err)
		}
		if err := pg.Migrate(ctx); err != nil {
			logging.Logger.Fatalf("Event ID: DB_MIGRATION_FAILED, Description: PostgreSQL migration failed: %v", err)
		}
		logging.Logger.Info("Event ID: DB_CONNECTED, Description: Successfully connected to PostgreSQL")
		return pg, func() {
			if err := pg.Close(); err != nil {
				logging.Logger.Warnf("Event ID: DB_CLOSE_FAILED, Description: %v", err)
			}
		}

	case config.DriverMemory:
		logging.Logger.Warn("Event ID: DB_IN_MEMORY, Description: Using the in-memory store; data is lost on restart")
		return repositories.NewMemoryStore(), func() {}

	default:
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			logging.Logger.Fatalf("Event ID: DB_CONNECTION_FAILED, Description: Database connection for MongoDB failed: %v", err)
		}
		if err := client.Ping(connectCtx, nil); err != nil {
			logging.Logger.Fatalf("Event ID: DB_PING_FAILED, Description: MongoDB connection ping error: %v", err)
		}
		logging.Logger.Infof("Event ID: DB_CONNECTED, Description: Successfully connected to MongoDB, database %s", cfg.MongoDBName)

		store := repositories.NewMongoStore(client, cfg.MongoDBName)
		if err := store.EnsureIndexes(connectCtx); err != nil {
			logging.Logger.Fatalf("Event ID: DB_INDEX_FAILED, Description: Failed to create MongoDB indexes: %v", err)
		}
		return store, func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(disconnectCtx)
		}
	}
}
