// Package chat runs one conversational turn through sanitising, screening,
// admission, history, completion and persistence.
package chat

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "twin/internal/errors"
	"twin/internal/llm"
	"twin/internal/logging"
	"twin/internal/observability"
	"twin/internal/persona"
	"twin/internal/security"
	"twin/internal/session"
)

// State is a step of the per-request pipeline.
type State string

const (
	StateReceived      State = "received"
	StateSanitized     State = "sanitized"
	StateScreened      State = "screened"
	StateAdmitted      State = "admitted"
	StateHistoryLoaded State = "history_loaded"
	StateCompleted     State = "completed"
	StatePersisted     State = "persisted"
	StateResponded     State = "responded"
	StateRejected      State = "rejected"
)

// Outcome summarises how a chat request ended.
type Outcome string

const (
	OutcomeCompleted   Outcome = "completed"
	OutcomeSoftBlocked Outcome = "soft_blocked"
	OutcomeFailed      Outcome = "failed"
	OutcomeInvalid     Outcome = "invalid"
)

// Admission is the gate consulted before any completion call.
type Admission interface {
	AdmitClient(identity string) error
	AdmitBudget() error
	RecordUsage(tokens int)
}

// Request is one inbound chat message.
type Request struct {
	Message   string
	SessionID string
	// ClientID is the caller's network identity used for rate limiting.
	ClientID string
}

// Reply is returned for completed and soft-blocked requests alike.
type Reply struct {
	Response  string
	SessionID string
	Outcome   Outcome
	// Reason is set when Outcome is OutcomeSoftBlocked.
	Reason apperrors.BlockReason
}

// Deps are the collaborators an Orchestrator needs.
type Deps struct {
	Screener  security.Screener
	Admission Admission
	Store     session.Store
	Persona   persona.Provider
	Gateway   llm.Gateway
}

// Orchestrator is stateless between requests; all conversation state lives
// in the session store.
type Orchestrator struct {
	screener  security.Screener
	admission Admission
	store     session.Store
	persona   persona.Provider
	gateway   llm.Gateway
	metrics   *observability.MetricsCollector
	tracer    *observability.TracerProvider
	logger    logging.Logger
	now       func() time.Time
}

// Option customises an Orchestrator.
type Option func(*Orchestrator)

func WithMetrics(metrics *observability.MetricsCollector) Option {
	return func(o *Orchestrator) { o.metrics = metrics }
}

func WithTracer(tracer *observability.TracerProvider) Option {
	return func(o *Orchestrator) { o.tracer = tracer }
}

func WithLogger(logger logging.Logger) Option {
	return func(o *Orchestrator) { o.logger = logging.OrNop(logger) }
}

// WithClock sets the source of turn timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// NewOrchestrator validates deps. Admission may be nil to disable both gates.
func NewOrchestrator(deps Deps, opts ...Option) (*Orchestrator, error) {
	switch {
	case deps.Screener == nil:
		return nil, errors.New("chat orchestrator requires a screener")
	case deps.Store == nil:
		return nil, errors.New("chat orchestrator requires a session store")
	case deps.Persona == nil:
		return nil, errors.New("chat orchestrator requires a persona provider")
	case deps.Gateway == nil:
		return nil, errors.New("chat orchestrator requires a completion gateway")
	}
	o := &Orchestrator{
		screener:  deps.Screener,
		admission: deps.Admission,
		store:     deps.Store,
		persona:   deps.Persona,
		gateway:   deps.Gateway,
		logger:    logging.NewComponentLogger("ChatOrchestrator"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Chat runs one message through the pipeline. Soft blocks are returned as a
// Reply with a nil error. A malformed session id yields a ClientInputError
// before any storage access; storage, persona and completion failures yield
// a BackendFailure and nothing is persisted.
func (o *Orchestrator) Chat(ctx context.Context, req Request) (Reply, error) {
	ctx, span := o.tracer.StartSpan(ctx, observability.SpanChat)
	defer span.End()
	logger := logging.WithContext(o.logger, ctx)
	logger.Debug("chat state=%s", StateReceived)

	sessionID, err := o.resolveSessionID(req.SessionID)
	if err != nil {
		o.finish(ctx, span, OutcomeInvalid)
		return Reply{}, err
	}
	ctx = observability.WithSessionID(ctx, sessionID)
	span.SetAttributes(attribute.String(observability.AttrSessionID, sessionID))
	logger = logging.WithContext(o.logger, ctx)

	message := security.Sanitize(req.Message)
	logger.Debug("chat state=%s", StateSanitized)

	if verdict := o.screener.Validate(message); !verdict.Allowed {
		return o.softBlock(ctx, span, sessionID, "screener", &apperrors.PolicySoftBlock{Reason: verdict.Reason, Message: verdict.Message}), nil
	}
	logger.Debug("chat state=%s", StateScreened)

	if o.admission != nil {
		if err := o.admission.AdmitClient(req.ClientID); err != nil {
			return o.admissionReply(ctx, span, sessionID, "rate_limit", err)
		}
		if err := o.admission.AdmitBudget(); err != nil {
			return o.admissionReply(ctx, span, sessionID, "token_budget", err)
		}
	}
	logger.Debug("chat state=%s", StateAdmitted)

	history, err := o.store.Load(ctx, sessionID)
	if err != nil {
		return o.fail(ctx, span, "session.load", err)
	}
	logger.Debug("chat state=%s turns=%d", StateHistoryLoaded, len(history))

	instructions, err := o.persona.Instructions(ctx)
	if err != nil {
		return o.fail(ctx, span, "persona", err)
	}

	result, err := o.gateway.Complete(ctx, instructions, history, message)
	if err != nil {
		return o.fail(ctx, span, "completion", err)
	}
	if o.admission != nil {
		o.admission.RecordUsage(result.TokensUsed)
	}
	span.SetAttributes(attribute.Int(observability.AttrTokens, result.TokensUsed))
	logger.Debug("chat state=%s tokens=%d", StateCompleted, result.TokensUsed)

	updated := make([]session.Turn, 0, len(history)+2)
	updated = append(updated, history...)
	updated = append(updated,
		session.Turn{Role: session.RoleUser, Content: message, Timestamp: o.now()},
		session.Turn{Role: session.RoleAssistant, Content: result.Text, Timestamp: o.now()},
	)
	if err := o.store.Save(ctx, sessionID, updated); err != nil {
		return o.fail(ctx, span, "session.save", err)
	}
	logger.Debug("chat state=%s turns=%d", StatePersisted, len(updated))

	o.finish(ctx, span, OutcomeCompleted)
	logger.Debug("chat state=%s", StateResponded)
	return Reply{Response: result.Text, SessionID: sessionID, Outcome: OutcomeCompleted}, nil
}

// Conversation returns the stored transcript for a caller supplied id.
func (o *Orchestrator) Conversation(ctx context.Context, rawID string) (string, []session.Turn, error) {
	sessionID, err := session.ParseID(rawID)
	if err != nil {
		return "", nil, err
	}
	ctx = observability.WithSessionID(ctx, sessionID)
	turns, err := o.store.Load(ctx, sessionID)
	if err != nil {
		logging.WithContext(o.logger, ctx).Error("Failed to load conversation: %v", err)
		return "", nil, apperrors.NewBackendFailure("session.load", err)
	}
	return sessionID, turns, nil
}

func (o *Orchestrator) resolveSessionID(raw string) (string, error) {
	if raw == "" {
		return session.NewID(), nil
	}
	return session.ParseID(raw)
}

func (o *Orchestrator) admissionReply(ctx context.Context, span trace.Span, sessionID, gate string, err error) (Reply, error) {
	block, ok := apperrors.AsPolicySoftBlock(err)
	if !ok {
		return o.fail(ctx, span, gate, err)
	}
	return o.softBlock(ctx, span, sessionID, gate, block), nil
}

func (o *Orchestrator) softBlock(ctx context.Context, span trace.Span, sessionID, gate string, block *apperrors.PolicySoftBlock) Reply {
	logging.WithContext(o.logger, ctx).Info("chat state=%s gate=%s reason=%s", StateRejected, gate, block.Reason)
	o.metrics.RecordGateRejection(ctx, gate, string(block.Reason))
	o.finish(ctx, span, OutcomeSoftBlocked)
	return Reply{
		Response:  block.Message,
		SessionID: sessionID,
		Outcome:   OutcomeSoftBlocked,
		Reason:    block.Reason,
	}
}

func (o *Orchestrator) fail(ctx context.Context, span trace.Span, op string, err error) (Reply, error) {
	wrapped := apperrors.NewBackendFailure(op, err)
	logging.WithContext(o.logger, ctx).Error("chat state=%s op=%s: %v", StateRejected, op, err)
	span.RecordError(err)
	span.SetStatus(codes.Error, op)
	o.finish(ctx, span, OutcomeFailed)
	return Reply{}, wrapped
}

func (o *Orchestrator) finish(ctx context.Context, span trace.Span, outcome Outcome) {
	span.SetAttributes(attribute.String(observability.AttrOutcome, string(outcome)))
	o.metrics.RecordChat(ctx, string(outcome))
}
