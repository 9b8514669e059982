// cmd/worker-manager/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"go.uber.org/zap"

	"coaching-workers/internal/api"
	awsclient "coaching-workers/internal/common/aws"
	"coaching-workers/internal/common/camunda"
	"coaching-workers/internal/common/config"
	"coaching-workers/internal/common/database"
	"coaching-workers/internal/common/logger"
	"coaching-workers/internal/common/observability"
	"coaching-workers/internal/store"
	"coaching-workers/pkg/registry"

	// Follow-up Workers (3)
	cis "coaching-workers/internal/workers/followup/calculate-improvement-score"
	gd "coaching-workers/internal/workers/followup/generate-diagnosis"
	sf "coaching-workers/internal/workers/followup/schedule-followup"

	// Communication Workers (1)
	spr "coaching-workers/internal/workers/communication/send-progress-report"

	// Data Access Workers (1)
	rp "coaching-workers/internal/workers/data-access/record-progress"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...",
		zap.String("app", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		zapLog.Fatal("worker manager failed", zap.Error(err))
	}
	zapLog.Info("Worker manager stopped gracefully")
}

func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	var obsOpts []observability.Option
	if cfg.Tracing.JaegerEndpoint != "" {
		obsOpts = append(obsOpts, observability.WithJaeger(cfg.Tracing.JaegerEndpoint, cfg.Tracing.SampleRatio))
	}
	obs, err := observability.New(cfg.App.Name, obsOpts...)
	if err != nil {
		log.Warn("observability degraded", map[string]interface{}{"error": err.Error()})
	}
	defer obs.Shutdown()

	reg, err := registry.LoadRegistry(cfg.RegistryPath)
	if err != nil {
		return fmt.Errorf("load activity registry: %w", err)
	}
	if err := reg.Validate(); err != nil {
		return fmt.Errorf("activity registry: %w", err)
	}

	// --- Init Zeebe Client with retry ---
	var zeebe *camunda.Client
	err = retryWithBackoff(ctx, func() error {
		var err error
		zeebe, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: cfg.Camunda.UsePlaintext,
			RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
		})
		return err
	}, 10, 2*time.Second, log, "Zeebe client initialization")
	if err != nil {
		return err
	}
	defer zeebe.Close()
	log.Info("Zeebe client connected successfully", nil)

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(ctx, func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, log, "PostgreSQL connection")
	if err != nil {
		return err
	}
	defer pg.Close()
	if err := pg.Migrate(ctx); err != nil {
		return fmt.Errorf("postgres migration: %w", err)
	}
	log.Info("PostgreSQL connected successfully", nil)

	// --- Init Elasticsearch with retry ---
	var es *database.ElasticsearchClient
	err = retryWithBackoff(ctx, func() error {
		var err error
		es, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		if err := es.Ping(ctx); err != nil {
			return err
		}
		return es.EnsureIndex(ctx, cfg.Database.Elasticsearch.ProgressIndex, database.ProgressIndexMapping)
	}, 15, 2*time.Second, log, "Elasticsearch connection")
	if err != nil {
		return err
	}
	log.Info("Elasticsearch connected successfully", nil)

	// --- Init Redis with retry ---
	redis := database.NewRedis(cfg.Database.Redis)
	defer redis.Close()
	err = retryWithBackoff(ctx, func() error {
		return redis.Ping(ctx)
	}, 10, 2*time.Second, log, "Redis connection")
	if err != nil {
		return err
	}
	log.Info("Redis connected successfully", nil)

	// --- Init Notification Clients ---
	var (
		email spr.EmailSender
		sms   spr.SMSSender
	)
	if cfg.Notifications.Email.Enabled {
		ses, err := awsclient.NewSESClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			return fmt.Errorf("ses client: %w", err)
		}
		email = ses
	}
	if cfg.Notifications.SMS.Enabled {
		sns, err := awsclient.NewSNSClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			return fmt.Errorf("sns client: %w", err)
		}
		sms = sns
	}

	diagnoses := store.NewCachedDiagnosisRepository(
		store.NewPostgresDiagnosisRepository(pg.DB),
		redis.Client,
		time.Duration(cfg.Database.Redis.DiagnosisTTL)*time.Second,
		log,
	)

	handlers := map[string]worker.JobHandler{
		gd.TaskType:  gd.NewHandler(gd.LoadConfig(cfg.Workers[gd.TaskType], cfg.APIs), diagnoses, log).Handle,
		cis.TaskType: cis.NewHandler(cis.LoadConfig(cfg.Workers[cis.TaskType]), diagnoses, log).Handle,
		sf.TaskType:  sf.NewHandler(sf.LoadConfig(cfg.Workers[sf.TaskType]), pg.DB, log).Handle,
		spr.TaskType: spr.NewHandler(
			spr.LoadConfig(cfg.Workers[spr.TaskType], cfg.Notifications, cfg.Scoring),
			pg.DB, email, sms, log,
		).Handle,
		rp.TaskType: rp.NewHandler(rp.LoadConfig(cfg.Workers[rp.TaskType], cfg.Database.Elasticsearch), es.Client, log).Handle,
	}

	jobWorkers := startWorkers(zeebe, reg, cfg.Workers, handlers, obs, log)
	log.Info("workers registered", map[string]interface{}{"count": len(jobWorkers)})

	// --- HTTP API, Health & Metrics ---
	server := api.NewServer(cfg.HTTP, map[string]api.Pinger{
		"postgres":      pg,
		"redis":         redis,
		"elasticsearch": es,
		"zeebe":         api.PingFunc(zeebe.HealthCheck),
	}, log)
	serveErr := server.ListenAndServe(ctx)

	// --- Graceful Shutdown ---
	log.Info("Shutdown signal received, stopping workers...", nil)
	for _, w := range jobWorkers {
		w.Close()
	}
	for _, w := range jobWorkers {
		w.AwaitClose()
	}
	return serveErr
}

// startWorkers opens a traced job worker for every runnable registry activity that has a handler.
func startWorkers(
	zeebe *camunda.Client,
	reg *registry.ActivityRegistry,
	workers map[string]config.WorkerConfig,
	handlers map[string]worker.JobHandler,
	obs *observability.Observability,
	log logger.Logger,
) []worker.JobWorker {
	var started []worker.JobWorker
	for _, taskType := range reg.RunnableTaskTypes() {
		handler, ok := handlers[taskType]
		if !ok {
			log.Warn("registry activity has no handler", map[string]interface{}{"taskType": taskType})
			continue
		}
		jobWorker := camunda.StartWorker(zeebe.GetClient(), taskType, workers[taskType], camunda.Traced(obs, taskType, handler), log)
		if jobWorker != nil {
			started = append(started, jobWorker)
		}
	}
	return started
}

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(ctx context.Context, operation func() error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName), map[string]interface{}{
				"error":       err.Error(),
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryIn": delay.String(),
			})
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s interrupted: %w", operationName, ctx.Err())
			case <-time.After(delay):
			}
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}
