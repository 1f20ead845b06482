package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/RouteToVasanth/Quantum-Care/internal/admission"
	"github.com/RouteToVasanth/Quantum-Care/internal/imaging"
	"github.com/RouteToVasanth/Quantum-Care/internal/worklist"
	"github.com/RouteToVasanth/Quantum-Care/pkg/accession"
	"github.com/RouteToVasanth/Quantum-Care/pkg/config"
	"github.com/RouteToVasanth/Quantum-Care/pkg/database"
	"github.com/RouteToVasanth/Quantum-Care/pkg/logger"
	"github.com/RouteToVasanth/Quantum-Care/pkg/monitoring"
)

const (
	serviceName    = "admission-service"
	serviceVersion = "1.0.0"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger := logger.New(cfg.LogLevel)
	logger.WithField("version", serviceVersion).Info("Starting Admission Service")

	ctx := context.Background()

	// Initialize database connection
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.CreateSchema(ctx); err != nil {
		logger.Fatalf("Failed to create database schema: %v", err)
	}

	mongoClient, err := connectMongo(ctx, &cfg.Mongo)
	if err != nil {
		logger.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	mongoDB := mongoClient.Database(cfg.Mongo.Database)

	metrics := monitoring.NewMetricsCollector(serviceName)
	db.SetMetrics(metrics)

	// Accession numbers
	var store accession.CounterStore
	switch cfg.Sequencer.Backend {
	case config.SequencerMongo:
		store = accession.NewMongoStore(mongoDB.Collection(cfg.Mongo.CounterCollection))
	case config.SequencerMemory:
		logger.Warn("Accession counters are kept in memory and reset on restart")
		store = accession.NewMemoryStore()
	default:
		store = accession.NewPostgresStore(db)
	}
	sequencer := accession.NewSequencer(store, logger, metrics)

	// Worklist and image ingest
	worklistService := worklist.NewService(worklist.NewRepository(db), logger, metrics)
	pipeline := imaging.NewPipeline(
		worklistService,
		sequencer,
		imaging.NewDcmodifyEditor(cfg.DICOM.DcmodifyPath, seconds(cfg.DICOM.Timeout), logger, metrics),
		imaging.NewOrthancClient(cfg.Orthanc.URL, cfg.Orthanc.User, cfg.Orthanc.Password, seconds(cfg.Orthanc.Timeout), logger, metrics),
		logger,
	)

	// Initialize Admission Service
	service := admission.New(cfg, logger, admission.Dependencies{
		Repository: admission.NewRepository(db),
		Patients:   admission.NewMongoPatientStore(mongoDB.Collection(cfg.Mongo.PatientCollection)),
		Worklist:   worklistService,
		Imaging:    pipeline,
		Publisher:  admission.NewPublisher(&cfg.Kafka),
		Metrics:    metrics,
	})

	router := service.Router()
	router.Use(monitoring.NewMonitoringMiddleware(metrics, logger).HTTPMiddleware)

	if cfg.Monitoring.Enabled {
		health := monitoring.NewHealthManager(serviceName, serviceVersion)
		health.RegisterChecker("postgres", monitoring.NewDatabaseHealthChecker(db.DB))
		health.RegisterChecker("mongo", monitoring.NewMongoHealthChecker(mongoClient))
		health.RegisterChecker("orthanc", monitoring.NewHTTPHealthChecker(
			cfg.Orthanc.URL+"/system", cfg.Orthanc.User, cfg.Orthanc.Password, 5*time.Second))
		health.RegisterChecker("dcmodify", monitoring.NewCustomHealthChecker(dcmodifyCheck(cfg.DICOM.DcmodifyPath)))

		router.Handle(cfg.Monitoring.MetricsPath, metrics.Handler()).Methods("GET")
		router.HandleFunc(cfg.Monitoring.HealthPath, health.HTTPHandler()).Methods("GET")
	}

	handler := handlers.CombinedLoggingHandler(os.Stdout, handlers.CORS(
		handlers.AllowedOrigins(cfg.Server.AllowedOrigins),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization", monitoring.RequestIDHeader}),
	)(router))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)

	// Start service in a goroutine
	go func() {
		if err := service.Start(addr, handler); err != nil {
			logger.Fatalf("Failed to start Admission Service: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down Admission Service...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := service.Stop(shutdownCtx); err != nil {
		logger.Errorf("Error during shutdown: %v", err)
	}
	logger.Info("Admission Service stopped")
}

func connectMongo(ctx context.Context, cfg *config.MongoConfig) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, seconds(cfg.ConnectTimeoutSecs))
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}

// dcmodifyCheck reports whether the tag editor binary can be found
func dcmodifyCheck(path string) func(ctx context.Context) monitoring.HealthCheck {
	return func(ctx context.Context) monitoring.HealthCheck {
		check := monitoring.HealthCheck{
			Name:        "dcmodify",
			Status:      monitoring.HealthStatusHealthy,
			LastChecked: time.Now(),
		}
		resolved, err := exec.LookPath(path)
		if err != nil {
			check.Status = monitoring.HealthStatusUnhealthy
			check.Message = err.Error()
			return check
		}
		check.Details = map[string]interface{}{"path": resolved}
		return check
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
