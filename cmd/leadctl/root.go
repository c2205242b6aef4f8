package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"leadflow_backend/internal/events"
	"leadflow_backend/internal/leads/evaluator"
	"leadflow_backend/internal/leads/repository"
	"leadflow_backend/internal/leads/rules"
	"leadflow_backend/internal/scheduler"
	"leadflow_backend/migrations"
	"leadflow_backend/platform/config"
	"leadflow_backend/platform/db"
	"leadflow_backend/platform/logger"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "leadctl",
		Short: "Operator CLI for the lead lifecycle engine",
		Long: `leadctl runs maintenance operations against the lead lifecycle database
and queue: schema migrations, one-off stale evaluation sweeps and rule checks.

Configuration is read from the same environment variables as the API.`,
		SilenceUsage: true,
	}

	root.AddCommand(newMigrateCmd(), newEvaluateCmd(), newTriggerCmd(), newRulesCheckCmd())
	return root
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := load()
			if err != nil {
				return err
			}
			if err := db.RunMigrations(cmd.Context(), cfg, migrations.FS, log); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func newEvaluateCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Run one stale evaluation sweep synchronously",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := load()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			pool, err := db.NewPool(ctx, cfg)
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer pool.Close()

			defaults, err := rules.LoadDefaultsFile(cfg.GetRulesDefaultsFile())
			if err != nil {
				return err
			}
			repo := repository.New(pool)
			repo.SetRuleDefaults(defaults)

			bus := events.NewInMemoryBus(log)
			events.RegisterLifecycleSubscribers(bus, log)
			defer bus.Wait()

			summary, err := evaluator.New(repo, bus, log).EvaluateAll(ctx)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), summary)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "abort the sweep after this long")
	return cmd
}

func newTriggerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trigger",
		Short: "Enqueue one stale evaluation sweep for the scheduler worker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := load()
			if err != nil {
				return err
			}
			client, err := scheduler.NewClient(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			if err := client.EnqueueStaleEvaluation(cmd.Context()); err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]bool{"queued": true})
		},
	}
}

func newRulesCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rules-check [file]",
		Short: "Validate a rule defaults YAML file and print the merged result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defaults, err := rules.LoadDefaultsFile(args[0])
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			defer enc.Close()
			return enc.Encode(defaults)
		},
	}
}

func load() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, logger.New(cfg.Env), nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
