package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vikasvdk5/WestBay/internal/agent"
	"github.com/vikasvdk5/WestBay/internal/artifacts"
	"github.com/vikasvdk5/WestBay/internal/backend"
	"github.com/vikasvdk5/WestBay/internal/config"
	"github.com/vikasvdk5/WestBay/internal/cost"
	"github.com/vikasvdk5/WestBay/internal/events"
	"github.com/vikasvdk5/WestBay/internal/metrics"
	"github.com/vikasvdk5/WestBay/internal/orchestrator"
	"github.com/vikasvdk5/WestBay/internal/persistence"
	"github.com/vikasvdk5/WestBay/internal/planner"
	"github.com/vikasvdk5/WestBay/internal/registry"
	"github.com/vikasvdk5/WestBay/internal/roles"
	"github.com/vikasvdk5/WestBay/internal/runstate"
)

// app holds the long-lived collaborators shared by the commands.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *persistence.SQLiteStore
	registry  *registry.Registry
	artifacts *artifacts.Manager
	calc      *cost.Calculator
	bus       *events.EventBus
	metrics   *metrics.Metrics
	pm        *backend.ProcessManager
	breakers  *backend.BreakerRegistry
	backends  []backend.Backend
}

// newApp opens storage. Model backends are created on demand by workflow.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	store, err := persistence.NewSQLiteStore(ctx, cfg.Storage.DBPath)
	if err != nil {
		return nil, err
	}
	reg, err := registry.New(store, cfg.Storage.CacheSize, logger)
	if err != nil {
		store.Close()
		return nil, err
	}
	arts, err := artifacts.NewManager(artifacts.ManagerConfig{Root: cfg.Storage.ArtifactsDir})
	if err != nil {
		store.Close()
		return nil, err
	}
	return &app{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		registry:  reg,
		artifacts: arts,
		calc:      cost.NewCalculator(cfg.Prices()),
		bus:       events.NewEventBus(),
		metrics:   metrics.Default(),
		pm:        backend.NewProcessManager(),
		breakers:  backend.NewBreakerRegistry(logger),
	}, nil
}

// Close kills model subprocesses and releases storage.
func (a *app) Close() error {
	var errs []error
	if err := a.pm.KillAll(); err != nil {
		errs = append(errs, fmt.Errorf("killing subprocesses: %w", err))
	}
	for _, b := range a.backends {
		if err := b.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.bus.Close()
	if err := a.store.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// modelFor builds the backend chain for role: adapter, retries and circuit
// breaker, then transcript recording. It returns nil when the role has no
// agent configured, in which case the role uses its model-free path.
func (a *app) modelFor(role runstate.Role) (backend.Backend, string, error) {
	bcfg, ok, err := a.cfg.BackendConfig(role)
	if err != nil || !ok {
		return nil, "", err
	}
	inner, err := backend.New(bcfg, a.pm)
	if err != nil {
		return nil, "", fmt.Errorf("backend for %s: %w", role, err)
	}
	target := bcfg.Type
	if target == "" {
		target = "claude"
	}
	resilient := backend.NewResilient(inner, target, a.cfg.RetryPolicy(), a.breakers, a.logger)
	resilient.OnRetry = a.metrics.IncRetry
	b := backend.NewRecorder(resilient, a.store, a.logger)
	a.backends = append(a.backends, b)
	return b, bcfg.SystemPrompt, nil
}

func (a *app) llm(role runstate.Role) (*roles.LLM, error) {
	b, prompt, err := a.modelFor(role)
	if err != nil || b == nil {
		return nil, err
	}
	return &roles.LLM{Backend: b, SystemPrompt: prompt}, nil
}

// planner returns the strategy planner, model-backed when the lead
// researcher is configured.
func (a *app) planner() (*planner.Planner, error) {
	b, prompt, err := a.modelFor(runstate.RoleLeadResearcher)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return planner.New(nil, a.logger), nil
	}
	return planner.New(backend.Prompter{
		Backend:      b,
		Role:         runstate.RoleLeadResearcher,
		SystemPrompt: prompt,
	}, a.logger), nil
}

// workflow wires the roles and returns the report graph.
func (a *app) workflow(policy cost.Policy, parallel bool) (*orchestrator.Workflow, error) {
	fetcher := backend.NewFetcher(a.cfg.FetchConfig(), nil, a.breakers, a.logger)
	fetcher.OnRetry = a.metrics.IncRetry

	llms := make(map[runstate.Role]*roles.LLM)
	for _, role := range []runstate.Role{
		runstate.RoleStructure, runstate.RoleCollector, runstate.RoleAnalyst, runstate.RoleFallbackContent,
	} {
		l, err := a.llm(role)
		if err != nil {
			return nil, err
		}
		llms[role] = l
	}
	plan, err := a.planner()
	if err != nil {
		return nil, err
	}

	ex := agent.NewExecutor(a.logger)
	orchestrator.RegisterRoles(ex,
		roles.NewSynthesizer(llms[runstate.RoleStructure], a.artifacts),
		roles.NewCollector(fetcher, llms[runstate.RoleCollector], a.artifacts),
		roles.NewAPIResearcher(fetcher, a.artifacts),
		roles.NewAnalyst(llms[runstate.RoleAnalyst], a.artifacts),
		roles.NewFallbackContent(llms[runstate.RoleFallbackContent], a.artifacts),
		roles.NewWriter(a.artifacts),
	)

	return orchestrator.New(orchestrator.Deps{
		Registry:   a.registry,
		Executor:   ex,
		Planner:    plan,
		Calculator: a.calc,
		Bus:        a.bus,
		Metrics:    a.metrics,
		Logger:     a.logger,
	}, orchestrator.Config{
		Parallel:         parallel || a.cfg.Workflow.Parallel,
		ConcurrencyLimit: a.cfg.Workflow.ConcurrencyLimit,
		CostPolicy:       policy,
	})
}

// policy builds the configured cost policy around approver.
func (a *app) policy(approver cost.Approver) (cost.Policy, error) {
	return cost.NewPolicy(a.cfg.Workflow.CostPolicy, a.cfg.Workflow.MaxCostUSD, approver)
}

// cleanup removes sessions older than age together with their artifacts,
// and artifact directories whose session no longer exists. keep protects
// sessions that must survive, such as running ones.
func (a *app) cleanup(ctx context.Context, age time.Duration, keep func(string) bool) ([]string, error) {
	removed, err := a.registry.Cleanup(ctx, age, keep)
	if err != nil {
		return nil, err
	}
	for _, id := range removed {
		if err := a.artifacts.Cleanup(id); err != nil {
			a.logger.Warn("failed to remove session artifacts", "session_id", id, "error", err)
		}
	}

	orphans, err := a.artifacts.Prune(func(id string) bool {
		if keep != nil && keep(id) {
			return true
		}
		_, err := a.registry.Get(ctx, id)
		return !errors.Is(err, registry.ErrNotFound)
	})
	if err != nil {
		return removed, err
	}
	return append(removed, orphans...), nil
}
