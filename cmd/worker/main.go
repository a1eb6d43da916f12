// Command worker consumes queued deliveries off Redis and runs the
// dispatcher's deliver() contract for each, under its own context, so
// delivery to slow channels (SMTP, WhatsApp) never blocks the CLI that
// enqueued it.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/eloym/formasur/internal/adapter"
	"github.com/eloym/formasur/internal/dispatch"
	"github.com/eloym/formasur/internal/infrastructure/config"
	"github.com/eloym/formasur/internal/infrastructure/logger"
	"github.com/eloym/formasur/internal/redisclient"
	"github.com/eloym/formasur/internal/ruleengine"
	"github.com/eloym/formasur/internal/storage"
)

func main() {
	for _, arg := range os.Args[1:] {
		if arg == adapter.SimulateFlag {
			if err := adapter.RunSimulation(os.Stdin, os.Stdout); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			return
		}
	}

	concurrency := flag.Int("concurrency", 4, "number of concurrent BLPOP/deliver loops")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.Setup(cfg.LogLevel)

	store := storage.NewBunStore(cfg.DatabaseDSN)
	audits := storage.NewAuditStore(store)

	adapters := buildAdapterRegistry(cfg)
	breakers := dispatch.NewCircuitBreakerRegistry(dispatch.DefaultCircuitBreakerConfig(), log)

	redisClient := redisclient.NewClient(cfg.RedisAddr)
	queue := dispatch.NewRedisQueue(redisClient, cfg.RedisQueue)

	evaluator := ruleengine.NewEvaluator(nil)
	dispatcher := dispatch.New(evaluator, dispatch.Options{
		Adapters:        adapters,
		Audits:          audits,
		Queue:           nil, // worker always delivers inline
		Logger:          log,
		CircuitBreakers: breakers,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	group, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < *concurrency; i++ {
		group.Go(func() error {
			return consumeLoop(groupCtx, queue, dispatcher, log)
		})
	}

	log.Info().Int("concurrency", *concurrency).Str("queue", cfg.RedisQueue).Msg("worker started")
	if err := group.Wait(); err != nil && err != context.Canceled {
		log.Error().Err(err).Msg("worker exited with error")
		os.Exit(1)
	}
	log.Info().Msg("worker exited gracefully")
}

func consumeLoop(ctx context.Context, queue *dispatch.RedisQueue, dispatcher *dispatch.Dispatcher, log zerolog.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		job, err := queue.Pop(ctx, 5*time.Second)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Error().Err(err).Msg("failed to pop queued job")
			continue
		}
		if job == nil {
			continue
		}

		playbookName, channel, action, row, ruleResults, jobID, err := dispatch.ParseQueuedPayload(job.Payload)
		if err != nil {
			log.Error().Err(err).Str("job_name", job.JobName).Msg("malformed queued job payload")
			continue
		}

		if _, err := dispatcher.Deliver(ctx, playbookName, channel, action, row, ruleResults, jobID); err != nil {
			log.Error().Err(err).Str("job_id", jobID).Str("channel", channel).Msg("delivery failed")
		}
	}
}

func buildAdapterRegistry(cfg *config.Config) *adapter.Registry {
	registry := adapter.NewRegistry()

	whatsappCommand := []string{}
	if cfg.WhatsAppCommand != "" {
		whatsappCommand = []string{cfg.WhatsAppCommand}
	}
	whatsapp, err := adapter.NewWhatsAppAdapter(whatsappCommand)
	if err == nil {
		registry.Register("whatsapp", whatsapp)
		registry.Register("default", whatsapp)
	}

	if cfg.SMTPAddr != "" {
		email := adapter.NewEmailAdapter(cfg.SMTPAddr, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFromEmail, cfg.EmailTemplateDir, cfg.SMTPUseTLS)
		registry.Register("email", email)
	}

	if cfg.CLICommand != "" {
		registry.Register("cli", adapter.NewCLIAdapter([]string{cfg.CLICommand}))
	}

	return registry
}
