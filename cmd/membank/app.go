package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/membank/internal/config"
	"github.com/fyrsmithlabs/membank/internal/hooks"
	"github.com/fyrsmithlabs/membank/internal/logging"
	"github.com/fyrsmithlabs/membank/internal/memorybank"
	"github.com/fyrsmithlabs/membank/internal/secrets"
	"github.com/fyrsmithlabs/membank/internal/state"
	"github.com/fyrsmithlabs/membank/internal/telemetry"
	"github.com/fyrsmithlabs/membank/internal/vault"
)

// newRunner builds the runner used to invoke the note program. Tests swap
// it for a fake.
var newRunner = func() vault.Runner { return vault.ExecRunner{} }

// logOutput receives log output; nil means stderr.
var logOutput io.Writer

// app holds everything one invocation needs. Close releases it.
type app struct {
	cfg       *config.Config
	logger    *logging.Logger
	telemetry *telemetry.Telemetry
	store     *state.Store
	svc       memorybank.Service
}

// openApp loads configuration, applies flag overrides and wires the
// memory bank service.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if statePath != "" {
		cfg.State.Path = statePath
	}
	if dryRun {
		cfg.Vault.DryRun = true
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	logCfg, err := logging.FromConfig(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("invalid logging config: %w", err)
	}
	logger, err := logging.NewLogger(logCfg, logOutput)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	tel, err := telemetry.New(ctx, telemetry.FromConfig(cfg.Telemetry, version))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	if degraded, cause := tel.Degraded(); degraded {
		logger.Warn(ctx, "telemetry degraded, continuing without export", zap.Error(cause))
	}

	path, err := config.ExpandHome(cfg.State.Path)
	if err != nil {
		return nil, err
	}
	store, err := state.Open(path)
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, fmt.Errorf("failed to open state: %w", err)
	}

	var scrubber secrets.Scrubber = secrets.Noop{}
	if cfg.Notes.ScrubSecrets {
		scrubCfg := secrets.DefaultConfig()
		scrubCfg.Gitleaks = cfg.Notes.Gitleaks
		scrubber, err = secrets.New(scrubCfg)
		if err != nil {
			_ = store.Close()
			_ = tel.Shutdown(ctx)
			return nil, fmt.Errorf("failed to create scrubber: %w", err)
		}
	}

	runner := newRunner()
	vaultCfg := vault.Config{
		Program: cfg.Vault.Program,
		Timeout: cfg.Vault.Timeout,
		DryRun:  cfg.Vault.DryRun,
	}
	vaultLogger := logger.Underlying().Named("vault")
	executors := func(vaultPath string) memorybank.Executor {
		return vault.New(vaultPath, vaultCfg, runner, vaultLogger)
	}

	svcCfg := memorybank.DefaultServiceConfig()
	svcCfg.ProjectRoot = cfg.Notes.ProjectRoot
	svcCfg.DefaultAuditFrequency = cfg.Audit.DefaultFrequency
	svcCfg.TracerProvider = tel.TracerProvider()
	svcCfg.MeterProvider = tel.MeterProvider()

	svc, err := memorybank.NewService(svcCfg, store, executors, scrubber, logger)
	if err != nil {
		_ = store.Close()
		_ = tel.Shutdown(ctx)
		return nil, fmt.Errorf("failed to create memory bank service: %w", err)
	}

	return &app{cfg: cfg, logger: logger, telemetry: tel, store: store, svc: svc}, nil
}

// hookHandler wires the hook handler to the service.
func (a *app) hookHandler() *hooks.Handler {
	verifier := hooks.NewVerifier(a.cfg.Hooks.WebhookSecret, a.cfg.Hooks.SignatureEnv)
	if verifier.Enabled() {
		a.logger.Debug(context.Background(), "webhook signature verification enabled",
			logging.Secret("webhook_secret", a.cfg.Hooks.WebhookSecret),
			zap.Strings("signature_env", a.cfg.Hooks.SignatureEnv))
	}
	return hooks.NewHandler(a.svc, hooks.DefaultRegistry(), verifier, a.logger)
}

// Close flushes state, telemetry and logs.
func (a *app) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	if err := a.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close state: %w", err))
	}
	if err := a.telemetry.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to shut down telemetry: %w", err))
	}
	_ = a.logger.Sync()
	return errors.Join(errs...)
}

// withApp opens the app, runs fn and closes the app on every path.
func withApp(fn func(ctx context.Context, a *app) error) error {
	ctx := context.Background()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	runErr := fn(ctx, a)
	closeErr := a.Close()
	if runErr != nil {
		return runErr
	}
	return closeErr
}

// noVaultHint explains how to recover from a missing vault binding.
func noVaultHint(err error) error {
	if errors.Is(err, state.ErrNoVaultConfigured) {
		return fmt.Errorf("%w\nAsk for an absolute vault path, then run:\n  membank set-vault --vault-path \"/absolute/path/to/vault\"", err)
	}
	if errors.Is(err, vault.ErrProgramNotFound) {
		return fmt.Errorf("%w\nInstall the note program or set vault.program (MEMBANK_VAULT_PROGRAM)", err)
	}
	return err
}
