// Command foliowatch runs the alert evaluation and notification delivery
// pipeline.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/foliowatch/foliowatch-go/internal/alerting"
	"github.com/foliowatch/foliowatch-go/internal/conf"
	"github.com/foliowatch/foliowatch-go/internal/datastore"
	"github.com/foliowatch/foliowatch-go/internal/datastore/entities"
	"github.com/foliowatch/foliowatch-go/internal/datastore/repository"
	"github.com/foliowatch/foliowatch-go/internal/fetcher"
	"github.com/foliowatch/foliowatch-go/internal/logger"
	"github.com/foliowatch/foliowatch-go/internal/notification"
	"github.com/foliowatch/foliowatch-go/internal/observability"
	"github.com/foliowatch/foliowatch-go/internal/queue"
	"github.com/foliowatch/foliowatch-go/internal/scheduler"
	"github.com/foliowatch/foliowatch-go/internal/webhook"
	"github.com/foliowatch/foliowatch-go/internal/worker"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "foliowatch",
		Short:         "Portfolio alert evaluation and notification delivery",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")

	root.AddCommand(newServeCmd(&configPath))
	root.AddCommand(newMigrateCmd(&configPath))
	return root
}

func newMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := conf.Load(*configPath)
			if err != nil {
				return err
			}
			_, err = datastore.Open(&settings.Database)
			return err
		},
	}
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the evaluation and delivery pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := conf.Load(*configPath)
			if err != nil {
				return err
			}
			return serve(settings)
		},
	}
}

func serve(settings *conf.Settings) error {
	log := logger.NewSlogLogger(os.Stderr, logger.ParseLevel(settings.LogLevel), nil)

	db, err := datastore.Open(&settings.Database)
	if err != nil {
		return err
	}

	ruleRepo := repository.NewAlertRuleRepository(db)
	alertRepo := repository.NewAlertRepository(db)
	notifRepo := repository.NewNotificationRepository(db)
	prefRepo := repository.NewPreferenceRepository(db)

	registry := prometheus.NewRegistry()
	metrics := observability.NewPipelineMetrics(registry)

	var jobs queue.Queue
	if settings.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     settings.Redis.Addr,
			Password: settings.Redis.Password,
			DB:       settings.Redis.DB,
		})
		jobs = queue.NewRedisQueue(client)
		log.Info("using redis queue", logger.String("addr", settings.Redis.Addr))
	} else {
		jobs = queue.NewMemoryQueue()
		log.Info("using in-memory queue")
	}

	senders := notification.NewRegistry()
	senders.Register(notification.NewInAppSender())
	if settings.Email.SMTPHost != "" {
		senders.Register(notification.NewEmailSender(&settings.Email))
	}
	if settings.SMS.APIURL != "" {
		senders.Register(notification.NewSMSSender(&settings.SMS))
	}
	if settings.Push.ServiceURL != "" {
		senders.Register(notification.NewPushSender(&settings.Push))
	}
	senders.Register(notification.NewWebhookSender(&settings.Webhook))

	processor := notification.NewProcessor(notifRepo, alertRepo, senders, jobs, metrics, log)
	dispatcher := notification.NewDispatcher(
		notifRepo, prefRepo, processor, jobs,
		notification.RateLimits{
			MaxPerHour: settings.Notification.MaxPerHour,
			MaxPerDay:  settings.Notification.MaxPerDay,
		},
		settings.Notification.MaxRetries,
		metrics, log,
	)

	var values fetcher.ValueFetcher = fetcher.NewHTTPFetcher(&settings.Fetcher)
	if ttl := settings.Fetcher.CacheTTL.Std(); ttl > 0 {
		values = fetcher.NewCachedFetcher(values, ttl)
	}

	lifecycle := alerting.NewLifecycleManager(alertRepo, log)
	engine := alerting.NewEngine(ruleRepo, values, lifecycle, dispatcher, metrics, log)

	w := worker.New(jobs, engine, processor, settings.Notification.RetentionDays, log)

	sched := scheduler.New(jobs, log)
	ruleTypes := []string{
		entities.RuleTypePrice,
		entities.RuleTypePercentage,
		entities.RuleTypePortfolio,
		entities.RuleTypeVolume,
		entities.RuleTypeNews,
		entities.RuleTypePattern,
	}
	for _, rt := range ruleTypes {
		sched.Register(
			"evaluate."+rt,
			settings.Scheduler.Interval(rt),
			queue.JobEvaluateRules,
			worker.EvaluatePayload{RuleType: rt},
			queue.Options{Attempts: 3, Backoff: 30 * time.Second},
		)
	}
	sched.Register("sweep", settings.Scheduler.SweepInterval.Std(),
		queue.JobSweepNotifications, nil, queue.Options{})
	sched.Register("cleanup", settings.Scheduler.CleanupInterval.Std(),
		queue.JobMaintenanceCleanup, nil, queue.Options{})

	callback := webhook.NewCallbackServer(notifRepo, settings.Webhook.Secret, registry, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	consumers := settings.Notification.Workers
	if consumers < 1 {
		consumers = 1
	}
	errc := make(chan error, consumers+1)
	for i := 0; i < consumers; i++ {
		go func() {
			if err := w.Run(ctx); err != nil && ctx.Err() == nil {
				errc <- fmt.Errorf("worker: %w", err)
			}
		}()
	}
	go func() {
		if err := callback.Start(settings.Callback.Addr); err != nil && ctx.Err() == nil {
			errc <- fmt.Errorf("callback server: %w", err)
		}
	}()
	sched.Start()
	log.Info("pipeline started", logger.String("callback_addr", settings.Callback.Addr))

	select {
	case <-ctx.Done():
	case err := <-errc:
		stop()
		log.Error("fatal component error", logger.Error(err))
	}

	log.Info("shutting down")
	sched.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := callback.Shutdown(shutdownCtx); err != nil {
		log.Warn("callback server shutdown", logger.Error(err))
	}
	return nil
}
