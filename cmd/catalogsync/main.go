package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/veloria/catalogsync/internal/platform/config"
	"github.com/veloria/catalogsync/internal/platform/httpx"
	"github.com/veloria/catalogsync/internal/platform/observability"
	"github.com/veloria/catalogsync/internal/platform/runctx"
	"github.com/veloria/catalogsync/internal/platform/runid"
	"github.com/veloria/catalogsync/internal/platform/secrets"
	"github.com/veloria/catalogsync/internal/reconcile"
	"github.com/veloria/catalogsync/internal/reconcile/ledger"
	"github.com/veloria/catalogsync/internal/sources"
	"github.com/veloria/catalogsync/internal/sources/commerce"
	"github.com/veloria/catalogsync/internal/sources/content"
)

const defaultPlanPath = ".catalogsync/plan.json"

func main() {
	os.Exit(run(os.Args[1:]))
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  catalogsync plan [-out file]
  catalogsync apply [-plan file] [-dry-run]`)
}

func run(args []string) int {
	if len(args) == 0 {
		usage()
		return 2
	}

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		return 1
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	switch args[0] {
	case "plan":
		flags := flag.NewFlagSet("plan", flag.ExitOnError)
		out := flags.String("out", defaultPlanPath, "path the plan JSON is written to")
		_ = flags.Parse(args[1:])
		return runPlan(baseLogger, *out)
	case "apply":
		flags := flag.NewFlagSet("apply", flag.ExitOnError)
		planPath := flags.String("plan", "", "plan JSON to execute; empty re-plans in-process")
		dryRun := flags.Bool("dry-run", false, "render every decision without writing")
		_ = flags.Parse(args[1:])
		return runApply(baseLogger, *planPath, *dryRun)
	default:
		usage()
		return 2
	}
}

// bootstrap wires configuration, policy and both store adapters. Shared by
// both subcommands.
type bootstrap struct {
	cfg     config.Config
	policy  config.Policy
	content sources.ContentStore
	comm    sources.CommerceStore
	logger  *zap.Logger
	close   func()
}

func newBootstrap(ctx context.Context, logger *zap.Logger) (*bootstrap, error) {
	fetcher, err := secrets.NewFetcher(ctx,
		secrets.WithLogger(logger),
		secrets.WithDefaultProject(os.Getenv("GOOGLE_CLOUD_PROJECT")),
		secrets.WithFallbackFile(os.Getenv("SYNC_SECRETS_FILE")),
	)
	if err != nil {
		return nil, fmt.Errorf("initialise secret fetcher: %w", err)
	}

	cfg, err := config.Load(ctx, config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)))
	if err != nil {
		_ = fetcher.Close()
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			return nil, fmt.Errorf("missing required secrets: %v", missing.RedactedNames())
		}
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	policy, err := config.LoadPolicy(cfg.Policy.Path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			_ = fetcher.Close()
			return nil, fmt.Errorf("load policy: %w", err)
		}
		logger.Info("no policy file, using defaults", zap.String("path", cfg.Policy.Path))
		policy = config.DefaultPolicy()
	}

	contentClient, err := content.NewClient(content.Deps{
		HTTP: httpx.NewClient(httpx.Options{
			BaseURL:        cfg.Content.BaseURL,
			Token:          cfg.Content.APIToken,
			Timeout:        cfg.HTTP.Timeout,
			RetryMax:       cfg.HTTP.RetryMax,
			RetryBaseDelay: cfg.HTTP.RetryBaseDelay,
			RequestsPerSec: cfg.HTTP.RequestsPerSec,
			Logger:         logger,
		}),
		Dataset: cfg.Content.Dataset,
		Logger:  logger,
	})
	if err != nil {
		_ = fetcher.Close()
		return nil, fmt.Errorf("initialise content store: %w", err)
	}

	commerceClient, err := commerce.NewClient(commerce.Deps{
		HTTP: httpx.NewClient(httpx.Options{
			BaseURL:        "https://" + cfg.Commerce.ShopDomain,
			Token:          cfg.Commerce.AccessToken,
			Header:         "X-Shopify-Access-Token",
			Timeout:        cfg.HTTP.Timeout,
			RetryMax:       cfg.HTTP.RetryMax,
			RetryBaseDelay: cfg.HTTP.RetryBaseDelay,
			RequestsPerSec: cfg.HTTP.RequestsPerSec,
			Logger:         logger,
		}),
		APIVersion: cfg.Commerce.APIVersion,
		PageSize:   cfg.Commerce.PageSize,
		Logger:     logger,
	})
	if err != nil {
		_ = fetcher.Close()
		return nil, fmt.Errorf("initialise commerce store: %w", err)
	}

	return &bootstrap{
		cfg:     cfg,
		policy:  policy,
		content: contentClient,
		comm:    commerceClient,
		logger:  logger,
		close: func() {
			if err := fetcher.Close(); err != nil {
				logger.Warn("secret fetcher close error", zap.Error(err))
			}
		},
	}, nil
}

func runPlan(baseLogger *zap.Logger, out string) int {
	id := runid.New()
	logger := observability.WithRunFields(baseLogger.Named("plan"), runctx.RunInfo{RunID: id, Mode: "plan"})
	ctx := runctx.WithRun(runctx.WithLogger(context.Background(), logger), runctx.RunInfo{RunID: id, Mode: "plan"})

	boot, err := newBootstrap(ctx, logger)
	if err != nil {
		logger.Error("startup failed", zap.Error(err))
		return 1
	}
	defer boot.close()

	planner, err := reconcile.NewPlanner(reconcile.PlannerDeps{
		Content:  boot.content,
		Commerce: boot.comm,
		Policy:   boot.policy,
		Logger:   logger,
	})
	if err != nil {
		logger.Error("startup failed", zap.Error(err))
		return 1
	}

	plan, err := planner.BuildPlan(ctx)
	if err != nil {
		logger.Error("planning failed", zap.Error(err))
		return 1
	}
	if err := reconcile.SavePlan(out, plan); err != nil {
		logger.Error("plan not persisted", zap.Error(err))
		return 1
	}
	logger.Info("plan written", zap.String("path", out))

	reconcile.RenderPlan(os.Stderr, plan)
	if err := reconcile.WriteReport(os.Stdout, plan, plan.Summary, "plan"); err != nil {
		logger.Error("report write failed", zap.Error(err))
		return 1
	}
	if !plan.Summary.Clean() {
		return 1
	}
	return 0
}

func runApply(baseLogger *zap.Logger, planPath string, dryRun bool) int {
	id := runid.New()
	mode := "apply"
	if dryRun {
		mode = "dry-run"
	}
	logger := observability.WithRunFields(baseLogger.Named("apply"), runctx.RunInfo{RunID: id, Mode: mode, DryRun: dryRun})
	ctx := runctx.WithRun(runctx.WithLogger(context.Background(), logger), runctx.RunInfo{RunID: id, Mode: mode, DryRun: dryRun})

	boot, err := newBootstrap(ctx, logger)
	if err != nil {
		logger.Error("startup failed", zap.Error(err))
		return 1
	}
	defer boot.close()

	planner, err := reconcile.NewPlanner(reconcile.PlannerDeps{
		Content:  boot.content,
		Commerce: boot.comm,
		Policy:   boot.policy,
		Logger:   logger,
	})
	if err != nil {
		logger.Error("startup failed", zap.Error(err))
		return 1
	}

	fresh, err := planner.BuildPlan(ctx)
	if err != nil {
		logger.Error("planning failed", zap.Error(err))
		return 1
	}

	plan := fresh
	if planPath != "" {
		loaded, err := reconcile.LoadPlan(planPath)
		if err != nil {
			logger.Error("plan not loadable", zap.Error(err))
			return 1
		}
		if loaded.SnapshotHash != fresh.SnapshotHash {
			// Apply proceeds anyway: vanished records degrade to skips
			// under the error contract.
			logger.Warn("stores changed since the plan was written",
				zap.String("plan", loaded.ID),
				zap.Time("plannedAt", loaded.CreatedAt),
			)
		}
		plan = loaded
	}

	var store ledger.Store
	if dryRun {
		store = ledger.NewMemoryStore()
	} else {
		fileStore, err := ledger.OpenFileStore(boot.cfg.Ledger.Path)
		if err != nil {
			logger.Error("ledger unavailable", zap.Error(err))
			return 1
		}
		if removed, err := fileStore.CleanupExpired(ctx, time.Now()); err != nil {
			logger.Warn("ledger cleanup failed", zap.Error(err))
		} else if removed > 0 {
			logger.Debug("expired ledger entries removed", zap.Int("count", removed))
		}
		store = fileStore
	}

	applier, err := reconcile.NewApplier(reconcile.ApplierDeps{
		Content:   boot.content,
		Commerce:  boot.comm,
		Ledger:    store,
		LedgerTTL: boot.cfg.Ledger.TTL,
		Policy:    boot.policy,
		Logger:    logger,
		DryRun:    dryRun,
	})
	if err != nil {
		logger.Error("startup failed", zap.Error(err))
		return 1
	}

	results, summary := applier.Apply(ctx, plan)
	reconcile.RenderResults(os.Stderr, results, summary)
	if err := reconcile.WriteReport(os.Stdout, plan, summary, mode); err != nil {
		logger.Error("report write failed", zap.Error(err))
		return 1
	}
	if !summary.Clean() {
		return 1
	}
	return 0
}
