package memorybank

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/membank/internal/logging"
	"github.com/fyrsmithlabs/membank/internal/notes"
	"github.com/fyrsmithlabs/membank/internal/secrets"
	"github.com/fyrsmithlabs/membank/internal/state"
	"github.com/fyrsmithlabs/membank/internal/vault"
)

const instrumentationName = "github.com/fyrsmithlabs/membank/internal/memorybank"

// DefaultAuditFrequency applies when neither the state document nor the
// config carries a frequency.
const DefaultAuditFrequency = 10

// Service manages project memory banks.
type Service interface {
	// Bootstrap creates any missing seed notes for project.
	Bootstrap(ctx context.Context, project, workspace string) ([]SeedResult, error)

	// RecordRun writes a run note, appends index lines and may auto-audit.
	RecordRun(ctx context.Context, req *RunRequest) (*RunResult, error)

	// Audit runs the graph-integrity checks for project.
	Audit(ctx context.Context, project, workspace string) (*AuditReport, error)

	// Search runs a query scoped to the project folder.
	Search(ctx context.Context, project, workspace, query string) (string, error)

	// ReadNote returns one note by vault-relative path.
	ReadNote(ctx context.Context, workspace, notePath string) (string, error)

	// ShowVault returns the vault that backs workspace.
	ShowVault(ctx context.Context, workspace string) (string, error)

	// Vaults returns the default vault and every workspace binding.
	Vaults(ctx context.Context) (*VaultSummary, error)

	// SetVault binds workspace to vaultPath.
	SetVault(ctx context.Context, vaultPath, workspace string) (state.Binding, error)

	// AuditFrequency returns the effective audit frequency.
	AuditFrequency(ctx context.Context) (int, error)

	// SetAuditFrequency persists the audit frequency. Zero disables auto-audit.
	SetAuditFrequency(ctx context.Context, n int) error

	// ResetRunCounter restarts the run counter for (workspace, project).
	ResetRunCounter(ctx context.Context, project, workspace string) error
}

// Config configures the memory bank service.
type Config struct {
	// ProjectRoot is the vault folder holding every project (default: Project Memory).
	ProjectRoot string

	// DefaultAuditFrequency applies until a frequency is persisted.
	DefaultAuditFrequency int

	// Now returns the current time (default: time.Now).
	Now func() time.Time

	// NewRunID returns the run_id stamped on run notes (default: uuid).
	NewRunID func() string

	// TracerProvider and MeterProvider default to the global providers.
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// DefaultServiceConfig returns sensible defaults.
func DefaultServiceConfig() *Config {
	return &Config{
		ProjectRoot:           notes.DefaultProjectRoot,
		DefaultAuditFrequency: DefaultAuditFrequency,
	}
}

// service implements the Service interface.
type service struct {
	config    *Config
	store     Store
	executors ExecutorFactory
	scrubber  secrets.Scrubber
	logger    *logging.Logger

	// Telemetry
	tracer          trace.Tracer
	meter           metric.Meter
	runCounter      metric.Int64Counter
	auditCounter    metric.Int64Counter
	redactedCounter metric.Int64Counter
}

// NewService creates a new memory bank service. A nil scrubber disables
// secret scrubbing.
func NewService(cfg *Config, store Store, executors ExecutorFactory, scrubber secrets.Scrubber, logger *logging.Logger) (Service, error) {
	if cfg == nil {
		cfg = DefaultServiceConfig()
	}
	if store == nil {
		return nil, errors.New("state store is required")
	}
	if executors == nil {
		return nil, errors.New("executor factory is required")
	}
	if cfg.DefaultAuditFrequency < 0 {
		return nil, fmt.Errorf("invalid default audit frequency: %d", cfg.DefaultAuditFrequency)
	}
	if cfg.ProjectRoot == "" {
		cfg.ProjectRoot = notes.DefaultProjectRoot
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewRunID == nil {
		cfg.NewRunID = uuid.NewString
	}
	if scrubber == nil {
		scrubber = secrets.Noop{}
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	tp := cfg.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	mp := cfg.MeterProvider
	if mp == nil {
		mp = otel.GetMeterProvider()
	}

	s := &service{
		config:    cfg,
		store:     store,
		executors: executors,
		scrubber:  scrubber,
		logger:    logger.Named("memorybank"),
		tracer:    tp.Tracer(instrumentationName),
		meter:     mp.Meter(instrumentationName),
	}

	s.initMetrics()

	return s, nil
}

// initMetrics initializes OpenTelemetry metrics.
func (s *service) initMetrics() {
	ctx := context.Background()
	var err error

	s.runCounter, err = s.meter.Int64Counter(
		"membank.runs.recorded_total",
		metric.WithDescription("Total number of run notes recorded"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		s.logger.Warn(ctx, "failed to create run counter", zap.Error(err))
	}

	s.auditCounter, err = s.meter.Int64Counter(
		"membank.audits_total",
		metric.WithDescription("Total number of memory bank audits"),
		metric.WithUnit("{audit}"),
	)
	if err != nil {
		s.logger.Warn(ctx, "failed to create audit counter", zap.Error(err))
	}

	s.redactedCounter, err = s.meter.Int64Counter(
		"membank.secrets.redacted_total",
		metric.WithDescription("Total number of secrets redacted from captured text"),
		metric.WithUnit("{secret}"),
	)
	if err != nil {
		s.logger.Warn(ctx, "failed to create redaction counter", zap.Error(err))
	}
}

// Bootstrap creates any missing seed notes for project.
func (s *service) Bootstrap(ctx context.Context, project, workspace string) ([]SeedResult, error) {
	ctx, span := s.tracer.Start(ctx, "memorybank.bootstrap")
	defer span.End()

	workspace, err := s.workspace(workspace)
	if err != nil {
		return nil, spanError(span, err)
	}
	ctx = logging.WithProject(logging.WithWorkspace(ctx, workspace), project)
	span.SetAttributes(
		attribute.String("project", project),
		attribute.String("workspace", workspace),
	)

	vaultPath, err := s.resolveVault(workspace)
	if err != nil {
		return nil, spanError(span, err)
	}
	exec := s.executors(vaultPath)
	paths := notes.BuildPaths(s.config.ProjectRoot, project)

	results, err := s.ensureSeeds(ctx, exec, project, paths)
	if err != nil {
		return results, spanError(span, err)
	}

	created, existed := 0, 0
	for _, r := range results {
		switch r.Outcome {
		case vault.OutcomeCreated:
			created++
		case vault.OutcomeExisted:
			existed++
		}
	}
	span.SetAttributes(attribute.Int("notes.created", created))
	s.logger.Info(ctx, "project memory bootstrapped",
		zap.String("vault", vaultPath),
		zap.Int("created", created),
		zap.Int("existed", existed),
		zap.Bool("dry_run", exec.DryRun()),
	)
	return results, nil
}

// RecordRun writes a run note, appends index lines and may auto-audit.
func (s *service) RecordRun(ctx context.Context, req *RunRequest) (*RunResult, error) {
	ctx, span := s.tracer.Start(ctx, "memorybank.record_run")
	defer span.End()

	if req == nil {
		return nil, spanError(span, errors.New("run request is required"))
	}
	workspace, err := s.workspace(req.Workspace)
	if err != nil {
		return nil, spanError(span, err)
	}
	project := strings.TrimSpace(req.Project)
	ctx = logging.WithProject(logging.WithWorkspace(ctx, workspace), project)
	span.SetAttributes(
		attribute.String("project", project),
		attribute.String("workspace", workspace),
		attribute.String("source", req.Source),
	)

	vaultPath, err := s.resolveVault(workspace)
	if err != nil {
		return nil, spanError(span, err)
	}
	exec := s.executors(vaultPath)
	paths := notes.BuildPaths(s.config.ProjectRoot, project)

	// Seed notes are re-ensured on every run so a deleted index self-heals.
	seeds, err := s.ensureSeeds(ctx, exec, project, paths)
	if err != nil {
		return nil, spanError(span, err)
	}
	var dryRun []string
	for _, seed := range seeds {
		if seed.DryRun != "" {
			dryRun = append(dryRun, seed.DryRun)
		}
	}

	scrubbed, redacted := s.scrub(ctx, req)
	now := s.config.Now()
	runPath := paths.RunNotePath(scrubbed.Title, now)
	runID := s.config.NewRunID()

	content, err := notes.RenderRunNote(paths, notes.RunNote{
		Project:   project,
		Title:     scrubbed.Title,
		Prompt:    scrubbed.Prompt,
		Summary:   scrubbed.Summary,
		Actions:   scrubbed.Actions,
		Decisions: scrubbed.Decisions,
		Questions: scrubbed.Questions,
		Tags:      req.Tags,
		RunID:     runID,
		Created:   now,
	})
	if err != nil {
		return nil, spanError(span, fmt.Errorf("failed to render run note: %w", err))
	}

	outcome, line, err := exec.EnsureNote(ctx, runPath, content)
	if err != nil {
		return nil, spanError(span, fmt.Errorf("failed to create run note %s: %w", runPath, err))
	}
	if outcome == vault.OutcomeExisted {
		s.logger.Warn(ctx, "run note already exists, keeping original", zap.String("path", runPath))
	}

	result := &RunResult{
		Vault:    vaultPath,
		NotePath: runPath,
		Outcome:  outcome,
		RunID:    runID,
		Redacted: redacted,
	}
	if outcome == vault.OutcomeDryRun {
		dryRun = append(dryRun, line)
	}

	indexes := []struct {
		path string
		text string
	}{
		{paths.RunLog, scrubbed.Summary},
		{paths.Decisions, scrubbed.Decisions},
		{paths.OpenQuestions, scrubbed.Questions},
	}
	for i, idx := range indexes {
		// The Run Log always gets a line; the registers only when there is something to say.
		if i > 0 && strings.TrimSpace(idx.text) == "" {
			continue
		}
		out, err := exec.Append(ctx, idx.path, notes.IndexLine(runPath, idx.text))
		if err != nil {
			result.IndexFailures = append(result.IndexFailures, idx.path)
			span.RecordError(err)
			s.logger.Warn(ctx, "index append failed",
				zap.String("index", idx.path),
				zap.String("run_note", runPath),
				zap.Error(err),
			)
			continue
		}
		if exec.DryRun() {
			dryRun = append(dryRun, out)
		}
	}

	if exec.DryRun() {
		result.DryRun = dryRun
		s.logger.Info(ctx, "dry run complete", zap.String("path", runPath))
		return result, nil
	}

	if s.runCounter != nil {
		s.runCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("source", sourceOrCLI(req.Source))))
	}

	count, err := s.store.BumpRunCounter(workspace, paths.Slug)
	if err != nil {
		// The run note exists; a lost counter bump only delays the next audit.
		span.RecordError(err)
		s.logger.Warn(ctx, "run counter update failed", zap.Error(err))
	}
	result.Counter = count
	span.SetAttributes(attribute.Int("run.counter", count))

	if count > 0 {
		result.Audit = s.maybeAudit(ctx, exec, project, vaultPath, paths, count)
	}

	s.logger.Info(ctx, "run recorded",
		zap.String("path", runPath),
		zap.String("outcome", string(outcome)),
		zap.Int("counter", count),
		zap.Bool("audited", result.Audit != nil),
	)
	return result, nil
}

// maybeAudit runs an audit when count is a multiple of the frequency.
func (s *service) maybeAudit(ctx context.Context, exec Executor, project, vaultPath string, paths notes.Paths, count int) *AuditReport {
	freq, err := s.effectiveFrequency()
	if err != nil {
		s.logger.Warn(ctx, "failed to read audit frequency", zap.Error(err))
		return nil
	}
	if freq == 0 || count%freq != 0 {
		return nil
	}

	report, err := s.audit(ctx, exec, project, vaultPath, paths, "auto")
	if err != nil {
		s.logger.Warn(ctx, "auto-audit failed", zap.Int("counter", count), zap.Error(err))
		return nil
	}
	return report
}

// Audit runs the graph-integrity checks for project.
func (s *service) Audit(ctx context.Context, project, workspace string) (*AuditReport, error) {
	workspace, err := s.workspace(workspace)
	if err != nil {
		return nil, err
	}
	ctx = logging.WithProject(logging.WithWorkspace(ctx, workspace), project)

	vaultPath, err := s.resolveVault(workspace)
	if err != nil {
		return nil, err
	}
	paths := notes.BuildPaths(s.config.ProjectRoot, project)
	return s.audit(ctx, s.executors(vaultPath), project, vaultPath, paths, "manual")
}

// audit runs every check even when an earlier one fails. The returned error
// joins the individual failures.
func (s *service) audit(ctx context.Context, exec Executor, project, vaultPath string, paths notes.Paths, trigger string) (*AuditReport, error) {
	ctx, span := s.tracer.Start(ctx, "memorybank.audit")
	defer span.End()
	span.SetAttributes(
		attribute.String("project", project),
		attribute.String("trigger", trigger),
	)

	checks := []AuditCheck{
		{Name: "unresolved", Args: []string{"counts", "verbose"}},
		{Name: "orphans"},
		{Name: "deadends"},
		{Name: "backlinks", Args: []string{"path=" + paths.Home, "counts"}},
	}

	var errs []error
	for i := range checks {
		out, err := exec.Run(ctx, checks[i].Name, checks[i].Args...)
		checks[i].Output = out
		if err != nil {
			checks[i].Err = err
			errs = append(errs, fmt.Errorf("%s: %w", checks[i].Name, err))
		}
	}

	report := &AuditReport{Project: project, Vault: vaultPath, Checks: checks}
	if s.auditCounter != nil {
		s.auditCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("trigger", trigger),
			attribute.Bool("failed", len(errs) > 0),
		))
	}

	if err := errors.Join(errs...); err != nil {
		return report, spanError(span, fmt.Errorf("audit failed: %w", err))
	}
	s.logger.Debug(ctx, "audit complete", zap.String("trigger", trigger))
	return report, nil
}

// Search runs a query scoped to the project folder.
func (s *service) Search(ctx context.Context, project, workspace, query string) (string, error) {
	ctx, span := s.tracer.Start(ctx, "memorybank.search")
	defer span.End()

	workspace, err := s.workspace(workspace)
	if err != nil {
		return "", spanError(span, err)
	}
	vaultPath, err := s.resolveVault(workspace)
	if err != nil {
		return "", spanError(span, err)
	}

	paths := notes.BuildPaths(s.config.ProjectRoot, project)
	scoped := fmt.Sprintf(`%s path:"%s"`, strings.TrimSpace(query), paths.Dir)
	span.SetAttributes(attribute.String("project", project))

	out, err := s.executors(vaultPath).Run(ctx, "search", "query="+scoped)
	if err != nil {
		return "", spanError(span, err)
	}
	return out, nil
}

// ReadNote returns one note by vault-relative path.
func (s *service) ReadNote(ctx context.Context, workspace, notePath string) (string, error) {
	workspace, err := s.workspace(workspace)
	if err != nil {
		return "", err
	}
	vaultPath, err := s.resolveVault(workspace)
	if err != nil {
		return "", err
	}
	return s.executors(vaultPath).Read(ctx, notePath)
}

// ShowVault returns the vault that backs workspace.
func (s *service) ShowVault(_ context.Context, workspace string) (string, error) {
	workspace, err := s.workspace(workspace)
	if err != nil {
		return "", err
	}
	return s.resolveVault(workspace)
}

// Vaults returns the default vault and every workspace binding.
func (s *service) Vaults(_ context.Context) (*VaultSummary, error) {
	def, err := s.store.DefaultVault()
	if err != nil {
		return nil, err
	}
	bindings, err := s.store.Bindings()
	if err != nil {
		return nil, err
	}
	return &VaultSummary{Default: def, Bindings: bindings}, nil
}

// SetVault binds workspace to vaultPath.
func (s *service) SetVault(ctx context.Context, vaultPath, workspace string) (state.Binding, error) {
	workspace, err := s.workspace(workspace)
	if err != nil {
		return state.Binding{}, err
	}
	binding, err := s.store.BindVault(vaultPath, workspace)
	if err != nil {
		return state.Binding{}, err
	}
	s.logger.Info(logging.WithWorkspace(ctx, binding.Workspace), "vault bound", zap.String("vault", binding.Vault))
	return binding, nil
}

// AuditFrequency returns the effective audit frequency.
func (s *service) AuditFrequency(_ context.Context) (int, error) {
	return s.effectiveFrequency()
}

// SetAuditFrequency persists the audit frequency.
func (s *service) SetAuditFrequency(ctx context.Context, n int) error {
	if err := s.store.SetAuditFrequency(n); err != nil {
		return err
	}
	s.logger.Info(ctx, "audit frequency updated", zap.Int("frequency", n))
	return nil
}

// ResetRunCounter restarts the run counter for (workspace, project).
func (s *service) ResetRunCounter(ctx context.Context, project, workspace string) error {
	workspace, err := s.workspace(workspace)
	if err != nil {
		return err
	}
	slug := notes.BuildPaths(s.config.ProjectRoot, project).Slug
	if err := s.store.ResetRunCounter(workspace, slug); err != nil {
		return err
	}
	s.logger.Info(logging.WithProject(logging.WithWorkspace(ctx, workspace), project), "run counter reset")
	return nil
}

func (s *service) ensureSeeds(ctx context.Context, exec Executor, project string, paths notes.Paths) ([]SeedResult, error) {
	seeds, err := notes.BuildSeedNotes(project, paths, s.config.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to render seed notes: %w", err)
	}
	results := make([]SeedResult, 0, len(seeds))
	for _, seed := range seeds {
		outcome, line, err := exec.EnsureNote(ctx, seed.Path, seed.Content)
		if err != nil {
			return results, fmt.Errorf("failed to ensure seed note %s: %w", seed.Path, err)
		}
		r := SeedResult{Path: seed.Path, Outcome: outcome}
		if outcome == vault.OutcomeDryRun {
			r.DryRun = line
		}
		results = append(results, r)
	}
	return results, nil
}

// scrub redacts secrets from every captured field of req.
func (s *service) scrub(ctx context.Context, req *RunRequest) (RunRequest, int) {
	out := *req
	if !s.scrubber.IsEnabled() {
		return out, 0
	}

	total := 0
	byRule := make(map[string]int)
	for _, field := range []*string{&out.Title, &out.Prompt, &out.Summary, &out.Actions, &out.Decisions, &out.Questions} {
		res := s.scrubber.Scrub(*field)
		if !res.HasFindings() {
			continue
		}
		*field = res.Scrubbed
		total += res.Total
		for rule, n := range res.ByRule {
			byRule[rule] += n
		}
	}
	if total > 0 {
		if s.redactedCounter != nil {
			s.redactedCounter.Add(ctx, int64(total))
		}
		s.logger.Warn(ctx, "secrets redacted from run", zap.Int("count", total), zap.Any("rules", byRule))
	}
	return out, total
}

func (s *service) effectiveFrequency() (int, error) {
	freq, ok, err := s.store.AuditFrequency()
	if err != nil {
		return 0, err
	}
	if !ok {
		return s.config.DefaultAuditFrequency, nil
	}
	return freq, nil
}

// workspace defaults an empty workspace to the current directory.
func (s *service) workspace(workspace string) (string, error) {
	if strings.TrimSpace(workspace) != "" {
		return workspace, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to determine workspace: %w", err)
	}
	return wd, nil
}

// resolveVault resolves the vault for workspace and checks it still exists.
func (s *service) resolveVault(workspace string) (string, error) {
	vaultPath, err := s.store.ResolveVault(workspace)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(vaultPath)
	if err != nil {
		return "", fmt.Errorf("%w: %s does not exist", state.ErrInvalidVaultPath, vaultPath)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", state.ErrInvalidVaultPath, vaultPath)
	}
	return vaultPath, nil
}

func spanError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func sourceOrCLI(source string) string {
	if source == "" {
		return "cli"
	}
	return source
}
