package hooks

import (
	"context"
	"errors"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/membank/internal/logging"
	"github.com/fyrsmithlabs/membank/internal/memorybank"
	"github.com/fyrsmithlabs/membank/internal/state"
)

const instrumentationName = "github.com/fyrsmithlabs/membank/internal/hooks"

// Recorder is the part of the memory bank a hook needs.
// memorybank.Service implements it.
type Recorder interface {
	ShowVault(ctx context.Context, workspace string) (string, error)
	RecordRun(ctx context.Context, req *memorybank.RunRequest) (*memorybank.RunResult, error)
}

// Status is the outcome of handling one event.
type Status string

const (
	StatusRecorded Status = "recorded"
	StatusSkipped  Status = "skipped"
	StatusFailed   Status = "failed"
)

// Result reports what Handle did with an event.
type Result struct {
	Status    Status
	Reason    string
	Source    Source
	Workspace string
	TurnID    string
	NotePath  string

	// Err is the underlying cause for skipped and failed events.
	Err error `json:"-"`
}

// Options carries delivery details for one event.
type Options struct {
	Source Source

	// Headers holds the HTTP request headers for webhook deliveries.
	Headers http.Header

	// Webhook marks an HTTP delivery. The signature is then checked for
	// every source, not only the webhook-native ones.
	Webhook bool
}

// Handler drives hook events into the memory bank.
type Handler struct {
	recorder Recorder
	registry *Registry
	verifier *Verifier
	logger   *logging.Logger
	tracer   trace.Tracer
}

// NewHandler creates a handler. A nil registry uses DefaultRegistry, a nil
// verifier accepts every payload.
func NewHandler(recorder Recorder, registry *Registry, verifier *Verifier, logger *logging.Logger) *Handler {
	if registry == nil {
		registry = DefaultRegistry()
	}
	if verifier == nil {
		verifier = NewVerifier("", nil)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{
		recorder: recorder,
		registry: registry,
		verifier: verifier,
		logger:   logger.Named("hooks"),
		tracer:   otel.Tracer(instrumentationName),
	}
}

// Handle processes raw. It never returns an error: every problem becomes a
// skipped or failed Result so the calling assistant is never blocked.
func (h *Handler) Handle(ctx context.Context, raw []byte, opts Options) Result {
	ctx = logging.WithHookSource(ctx, string(opts.Source))
	ctx, span := h.tracer.Start(ctx, "hooks.handle",
		trace.WithAttributes(attribute.String("source", string(opts.Source))))
	defer span.End()

	res := h.handle(ctx, raw, opts)
	span.SetAttributes(attribute.String("status", string(res.Status)))
	if res.Status == StatusFailed && res.Err != nil {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, res.Err.Error())
	}
	return res
}

func (h *Handler) handle(ctx context.Context, raw []byte, opts Options) Result {
	res := Result{Source: opts.Source}

	ex, err := h.registry.Get(opts.Source)
	if err != nil {
		return h.fail(ctx, res, err)
	}

	ev, err := ParsePayload(raw)
	if err != nil {
		return h.skip(ctx, res, err)
	}
	ev.Inner = ex.Unwrap(ev.Outer)

	if ex.Webhook() || opts.Webhook {
		headers := opts.Headers
		if opts.Webhook && headers == nil {
			headers = http.Header{}
		}
		if err := h.verifier.Verify(ev.Raw, ev.Outer, headers); err != nil {
			return h.skip(ctx, res, err)
		}
	}

	kind := ex.EventKind(ev)
	if !ex.IsRelevant(kind) {
		return h.skip(ctx, res, errIrrelevant(kind))
	}

	rec, err := Normalize(ex, ev)
	if err != nil {
		return h.fail(ctx, res, err)
	}
	res.Workspace = rec.Workspace
	res.TurnID = rec.TurnID
	ctx = logging.WithTurnID(logging.WithWorkspace(ctx, rec.Workspace), rec.TurnID)
	h.logger.Debug(ctx, "hook event accepted", zap.String("event", rec.EventKind))

	// The integration is opt-in per workspace: no vault means nothing to do.
	if _, err := h.recorder.ShowVault(ctx, rec.Workspace); err != nil {
		if errors.Is(err, state.ErrNoVaultConfigured) {
			res.Status = StatusSkipped
			res.Reason = "no vault mapping for workspace"
			res.Err = err
			h.logger.Info(ctx, "no vault mapping found; skipping")
			return res
		}
		return h.skip(ctx, res, err)
	}

	run, err := h.recorder.RecordRun(ctx, &memorybank.RunRequest{
		Project:   rec.Project,
		Workspace: rec.Workspace,
		Title:     rec.Title,
		Prompt:    rec.Prompt,
		Summary:   rec.Summary,
		Actions:   rec.Actions,
		Tags:      rec.Tags,
		Source:    string(rec.Source),
	})
	if err != nil {
		return h.fail(ctx, res, err)
	}

	res.Status = StatusRecorded
	res.NotePath = run.NotePath
	h.logger.Info(ctx, "logged run note", zap.String("path", run.NotePath))
	return res
}

func (h *Handler) skip(ctx context.Context, res Result, err error) Result {
	res.Status = StatusSkipped
	res.Reason = err.Error()
	res.Err = err
	h.logger.Info(ctx, "hook event skipped", zap.String("reason", res.Reason))
	return res
}

func (h *Handler) fail(ctx context.Context, res Result, err error) Result {
	res.Status = StatusFailed
	res.Reason = err.Error()
	res.Err = err
	h.logger.Warn(ctx, "hook event failed; continuing without blocking", zap.Error(err))
	return res
}

type irrelevantError struct{ kind string }

func (e irrelevantError) Error() string {
	if e.kind == "" {
		return ErrIrrelevantEvent.Error() + ": missing event name"
	}
	return ErrIrrelevantEvent.Error() + ": " + e.kind
}

func (e irrelevantError) Unwrap() error { return ErrIrrelevantEvent }

func errIrrelevant(kind string) error { return irrelevantError{kind: kind} }
