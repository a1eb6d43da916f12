// Command notifier runs and dry-runs playbooks against their source
// workbooks, and applies the Postgres schema this module owns.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/eloym/formasur/internal/adapter"
	"github.com/eloym/formasur/internal/dispatch"
	"github.com/eloym/formasur/internal/domain"
	"github.com/eloym/formasur/internal/infrastructure/config"
	"github.com/eloym/formasur/internal/infrastructure/logger"
	"github.com/eloym/formasur/internal/playbook"
	"github.com/eloym/formasur/internal/quiethours"
	"github.com/eloym/formasur/internal/redisclient"
	"github.com/eloym/formasur/internal/ruleengine"
	"github.com/eloym/formasur/internal/runner"
	"github.com/eloym/formasur/internal/storage"
)

func main() {
	// The WhatsApp adapter's simulation mode re-execs this same binary
	// with SimulateFlag instead of shelling out to a separate script.
	for _, arg := range os.Args[1:] {
		if arg == adapter.SimulateFlag {
			if err := adapter.RunSimulation(os.Stdin, os.Stdout); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			return
		}
	}

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "notifier",
		Short: "Run compliance-training notification playbooks",
	}
	root.AddCommand(newRunCmd(false))
	root.AddCommand(newRunCmd(true))
	root.AddCommand(newMigrateCmd())
	return root
}

func newRunCmd(dryRun bool) *cobra.Command {
	use := "run <playbook>"
	short := "Evaluate a playbook and dispatch its notifications"
	if dryRun {
		use = "dry-run <playbook>"
		short = "Evaluate a playbook and record dry-run audits without delivering notifications"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlaybook(cmd.Context(), args[0], dryRun)
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema this module owns",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			store := storage.NewBunStore(cfg.DatabaseDSN)
			return store.InitSchema(cmd.Context())
		},
	}
}

func runPlaybook(ctx context.Context, name string, dryRun bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.Setup(cfg.LogLevel)

	store := storage.NewBunStore(cfg.DatabaseDSN)
	if err := store.InitSchema(ctx); err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}

	repos := runner.Repositories{
		Courses:     storage.NewCourseStore(store),
		Learners:    storage.NewLearnerStore(store),
		Enrollments: storage.NewEnrollmentStore(store),
	}
	audits := storage.NewAuditStore(store)

	adapters := buildAdapterRegistry(cfg)
	breakers := dispatch.NewCircuitBreakerRegistry(dispatch.DefaultCircuitBreakerConfig(), log)

	redisClient := redisclient.NewClient(cfg.RedisAddr)
	queue := dispatch.NewRedisQueue(redisClient, cfg.RedisQueue)

	loader := playbook.NewLoader(cfg.PlaybookDir, ".", defaultQuietHours(cfg))

	dispatcherFactory := func(evaluator *ruleengine.Evaluator, quietGate *quiethours.Gate, playbookName string) *dispatch.Dispatcher {
		var q dispatch.Queue
		if !dryRun {
			q = queue
		}
		return dispatch.New(evaluator, dispatch.Options{
			Adapters:        adapters,
			Audits:          audits,
			QuietHours:      quietGate,
			Queue:           q,
			JobName:         "notify." + playbookName,
			Logger:          log,
			CircuitBreakers: breakers,
		})
	}

	run := runner.New(loader, repos, dispatcherFactory, nil)
	result, err := run.Run(ctx, name, dryRun)
	if err != nil {
		return err
	}

	log.Info().
		Str("playbook", result.Playbook).
		Str("mode", result.Mode).
		Int("total_rows", result.TotalRows).
		Int("matched_actions", result.MatchedActions).
		Int("enqueued_actions", result.EnqueuedActions).
		Msg("playbook run complete")
	return nil
}

// defaultQuietHours builds the fallback quiet-hours window applied to
// any playbook that omits its own quiet_hours block.
func defaultQuietHours(cfg *config.Config) domain.QuietHoursWindow {
	if cfg.QuietHoursStart == "" || cfg.QuietHoursEnd == "" {
		return domain.QuietHoursWindow{}
	}
	return domain.QuietHoursWindow{
		Start:    cfg.QuietHoursStart,
		End:      cfg.QuietHoursEnd,
		Timezone: cfg.QuietHoursTimezone,
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
