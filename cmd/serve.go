package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dpe27/restpoll/config"
	"github.com/dpe27/restpoll/internal/dlq"
	"github.com/dpe27/restpoll/internal/httpclient"
	"github.com/dpe27/restpoll/internal/job"
	"github.com/dpe27/restpoll/internal/metrics"
	"github.com/dpe27/restpoll/internal/poll"
	"github.com/dpe27/restpoll/internal/state"
	"github.com/dpe27/restpoll/pkg/log"
	cronlogger "github.com/dpe27/restpoll/pkg/log/cron"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

var envFile string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduled jobs and poll them to completion",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(envFile)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg)
	},
}

func init() {
	serveCmd.Flags().StringVar(&envFile, "env", ".env", "env file read before the process environment")
}

func serve(ctx context.Context, cfg *config.Config) error {
	log.Initialize(os.Stderr, debugFlag || log.IsDebug(cfg.App.LogLevel), nil)
	logger := log.With("app", cfg.App.Name, "env", cfg.App.Env)

	loc, err := time.LoadLocation(cfg.App.Location)
	if err != nil {
		logger.Error(ctx, "Failed to load location", "error", err)
		return err
	}

	jobs, err := job.LoadJobsFromDir(cfg.Jobs.Dir)
	if err != nil {
		logger.Error(ctx, "Failed to load jobs", "error", err)
		return err
	}
	logger.Info(ctx, "Loaded jobs", "count", len(jobs))

	rdb := state.NewRedisClient(cfg)
	queue := dlq.NewDeadLetterQueue(rdb, logger)
	if err := queue.Ping(ctx); err != nil {
		logger.Error(ctx, "Failed to connect to Redis", "error", err)
		return err
	}
	defer queue.Close(context.Background())
	store := state.NewRedisStore(rdb, cfg.Poll.StateTTL, logger)

	m := metrics.New()
	httpCli := httpclient.NewHttpClient(httpclient.ClientOptBuilder().
		ServiceName(cfg.App.Name).
		Logger(logger).
		Observer(m).
		Timeout(cfg.HTTP.Timeout).
		ResponseHeaderTimeout(cfg.HTTP.ResponseHeaderTimeout).
		InsecureSkipVerify(cfg.HTTP.InsecureSkipVerify || insecureFlag).
		Build())

	engine := poll.NewEngine(httpclient.NewExecutor(httpCli, logger), logger)
	runner := job.NewRunner(engine, store, logger,
		job.WithFailureQueue(queue),
		job.WithObserver(m),
		job.WithLocation(loc),
	)

	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cronlogger.NewCronLogger(logger)),
	)
	limiter := rate.NewLimiter(rate.Limit(cfg.Poll.CyclesPerSecond), cfg.Poll.Burst)
	dispatcher := job.NewDispatcher(c, runner, store, limiter, logger)
	if err := dispatcher.Schedule(ctx, jobs); err != nil {
		return err
	}
	if err := dispatcher.Resume(ctx); err != nil {
		logger.Error(ctx, "Failed to resume stored runs", "error", err)
		return err
	}

	workerDone := make(chan struct{})
	if cfg.DLQ.WebhookURL == "" {
		logger.Warn(ctx, "DLQ_WEBHOOK_URL is not set, failed runs stay in the DLQ")
		close(workerDone)
	} else {
		// DLQ deliveries are not counted as task requests
		webhookCli := httpclient.NewHttpClient(httpclient.ClientOptBuilder().
			ServiceName("dlq_webhook").
			Logger(logger).
			Timeout(cfg.HTTP.Timeout).
			Build())
		worker := dlq.NewDLQWorker(queue, webhookCli, cfg.DLQ.WebhookURL, m, logger)
		go func() {
			defer close(workerDone)
			worker.Start(ctx)
		}()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info(ctx, "Metrics server listening", "addr", cfg.Metrics.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "Metrics server failed", "error", err)
		}
	}()

	c.Start()
	logger.Info(ctx, "Scheduler started", "version", cfg.App.Version)
	<-ctx.Done()

	logger.Info(context.Background(), "Shutting down")
	<-c.Stop().Done()
	<-workerDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
