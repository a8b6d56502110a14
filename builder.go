package totpgate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Builder defines a public type used by totpgate APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  *redis.Client

	store     StateStore
	policy    RedirectPolicy
	metadata  MetadataSource
	resumer   Resumer
	renderer  Renderer
	verifier  SecretVerifier
	validator CodeValidator
	auditSink AuditSink

	built bool
}

// New describes the new operation and its observable behavior.
//
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis selects a Redis-backed state store built from the client.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithStateStore overrides the state store entirely; takes precedence over
// WithRedis.
func (b *Builder) WithStateStore(store StateStore) *Builder {
	b.store = store
	return b
}

// WithRedirectPolicy describes the withredirectpolicy operation and its observable behavior.
//
// WithRedirectPolicy does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithRedirectPolicy(policy RedirectPolicy) *Builder {
	b.policy = policy
	return b
}

// WithMetadata describes the withmetadata operation and its observable behavior.
//
// WithMetadata does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMetadata(source MetadataSource) *Builder {
	b.metadata = source
	return b
}

// WithResumer describes the withresumer operation and its observable behavior.
//
// WithResumer does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithResumer(resumer Resumer) *Builder {
	b.resumer = resumer
	return b
}

// WithRenderer describes the withrenderer operation and its observable behavior.
//
// WithRenderer does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithRenderer(renderer Renderer) *Builder {
	b.renderer = renderer
	return b
}

// WithSecretVerifier selects local validation through the given verifier
// when no remote authentication URL is configured.
func (b *Builder) WithSecretVerifier(verifier SecretVerifier) *Builder {
	b.verifier = verifier
	return b
}

// WithCodeValidator overrides strategy selection with a custom validator.
func (b *Builder) WithCodeValidator(validator CodeValidator) *Builder {
	b.validator = validator
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
//
// WithAuditSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
//
// WithMetricsEnabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration and assembles an immutable Gate.
// Configuration faults — a non-boolean enforce flag parsed upstream, a
// not-configured URL the redirect policy rejects, a signed state format
// without a key, no validation backend — fail here, at pipeline load, never
// at request time.
//
// Build may return an error when input validation, dependency calls, or security checks fail.
func (b *Builder) Build() (*Gate, error) {
	if b.built {
		return nil, fmt.Errorf("%w: builder already used", ErrConfigInvalid)
	}

	if err := b.config.Validate(); err != nil {
		return nil, err
	}

	policy := b.policy
	if policy == nil {
		policy = AllowedHosts{AllowRelative: true}
	}

	if target := b.config.Filter.NotConfiguredURL; target != "" && !policy.Allowed(target) {
		return nil, fmt.Errorf("%w: not_configured_url rejected by redirect policy: %q", ErrConfigInvalid, target)
	}

	store := b.store
	if store == nil && b.redis != nil {
		store = NewRedisStore(b.redis, b.config.Store.RedisPrefix)
	}
	if store == nil {
		return nil, fmt.Errorf("%w: a state store is required (WithRedis or WithStateStore)", ErrConfigInvalid)
	}

	if b.metadata == nil {
		return nil, fmt.Errorf("%w: a metadata source is required (WithMetadata)", ErrConfigInvalid)
	}
	if b.resumer == nil {
		return nil, fmt.Errorf("%w: a resumer is required (WithResumer)", ErrConfigInvalid)
	}

	validator := b.validator
	if validator == nil {
		switch {
		case b.config.Filter.AuthenticationURL != "":
			validator = NewRemoteValidator(NewValidatorClient(b.config.Validator))
		case b.verifier != nil:
			validator = NewLocalValidator(b.verifier)
		default:
			return nil, fmt.Errorf("%w: set linotp_authentication_url or supply a SecretVerifier", ErrNoValidationBackend)
		}
	}

	renderer := b.renderer
	if renderer == nil {
		renderer = newDefaultRenderer()
	}

	b.built = true

	return &Gate{
		config:    b.config,
		store:     store,
		policy:    policy,
		metadata:  b.metadata,
		resumer:   b.resumer,
		renderer:  renderer,
		validator: validator,
		metrics:   NewMetrics(b.config.Metrics),
		audit:     newAuditDispatcher(b.config.Audit, b.auditSink),
	}, nil
}

// Gate is the assembled second-factor step: the processing filter that
// suspends transactions and the challenge handler that settles them.
//
// Gate instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Gate struct {
	config    Config
	store     StateStore
	policy    RedirectPolicy
	metadata  MetadataSource
	resumer   Resumer
	renderer  Renderer
	validator CodeValidator
	metrics   *Metrics
	audit     *auditDispatcher
}

// Close drains and stops the audit dispatcher. The Gate must not be used
// after Close.
func (g *Gate) Close() {
	g.audit.Close()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (g *Gate) MetricsSnapshot() MetricsSnapshot {
	return g.metrics.Snapshot()
}

// AuditDropped reports audit events dropped due to dispatcher backpressure.
func (g *Gate) AuditDropped() uint64 {
	return g.audit.Dropped()
}

func (g *Gate) metricInc(id MetricID) {
	g.metrics.Inc(id)
}

func (g *Gate) metricObserve(id MetricID, d time.Duration) {
	g.metrics.Observe(id, d)
}

// emitAudit assembles and dispatches one audit event. The metadata builder
// runs only when auditing is enabled.
func (g *Gate) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	stateID string,
	cause error,
	metadata func() map[string]string,
) {
	if g.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp: time.Now(),
		EventType: eventType,
		UserID:    userID,
		StateID:   stateID,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Success:   success,
	}
	if cause != nil {
		event.Error = cause.Error()
	}
	if metadata != nil {
		event.Metadata = metadata()
	}

	g.audit.Emit(ctx, event)
}
