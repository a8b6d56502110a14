package totpgate

import (
	"fmt"
	"time"
)

// Config defines a public type used by totpgate APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Filter    FilterConfig
	StateID   StateIDConfig
	Store     StoreConfig
	Validator ValidatorConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

/*
====================================
FILTER CONFIG
====================================
*/

// FilterConfig carries the recognized processing-filter options.
//
// FilterConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type FilterConfig struct {
	// SecretAttr names the transaction attribute holding the per-user
	// TOTP secret.
	SecretAttr string

	// Enforce2FA blocks users lacking a configured secret instead of
	// letting them proceed without a second factor.
	Enforce2FA bool

	// NotConfiguredURL is the destination when enforcement fails. Empty
	// means the internal error page. Must pass the RedirectPolicy at
	// load time.
	NotConfiguredURL string

	// AuthenticationURL is the base URL of the remote validation service
	// for this deployment. When set, remote validation is the selected
	// strategy.
	AuthenticationURL string

	// ChallengeURL is the application path of the challenge handler the
	// filter redirects to. Always a same-application, trusted endpoint.
	ChallengeURL string
}

/*
====================================
STATE ID CONFIG
====================================
*/

// StateIDFormat defines a public type used by totpgate APIs.
//
// StateIDFormat instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type StateIDFormat int

const (
	// StateIDPlain is an exported constant or variable used by the second-factor gate.
	StateIDPlain StateIDFormat = iota
	// StateIDUUID is an exported constant or variable used by the second-factor gate.
	StateIDUUID
	// StateIDSigned is an exported constant or variable used by the second-factor gate.
	StateIDSigned
)

// StateIDConfig defines a public type used by totpgate APIs.
//
// StateIDConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type StateIDConfig struct {
	// Format selects how state identifiers are encoded. StateIDPlain
	// matches the historical "id:returnURL" shape; StateIDSigned wraps
	// the identifier and hint in an HS256 token so tampering is detected
	// before any store lookup.
	Format StateIDFormat

	// SigningKey is required for StateIDSigned.
	SigningKey []byte
}

/*
====================================
STORE CONFIG
====================================
*/

// StoreConfig defines a public type used by totpgate APIs.
//
// StoreConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type StoreConfig struct {
	RedisPrefix string
	StateTTL    time.Duration
}

/*
====================================
VALIDATOR CONFIG
====================================
*/

// ValidatorConfig defines a public type used by totpgate APIs.
//
// ValidatorConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type ValidatorConfig struct {
	// Timeout bounds the validation round trip. A timed-out call surfaces
	// as ErrValidatorUnreachable, never as a rejected code.
	Timeout time.Duration

	// InsecureSkipTLSVerify disables certificate verification of the
	// validation service. FOR CONTROLLED TEST ENVIRONMENTS ONLY; the
	// default verifies.
	InsecureSkipTLSVerify bool
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig defines a public type used by totpgate APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by totpgate APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultSecretAttr is the attribute consulted for the per-user secret when
// no secret_attr option is given.
const DefaultSecretAttr = "totp_secret"

// DefaultConfig describes the defaultconfig operation and its observable behavior.
//
// DefaultConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Filter: FilterConfig{
			SecretAttr:   DefaultSecretAttr,
			ChallengeURL: "/2fa/authenticate",
		},
		StateID: StateIDConfig{
			Format: StateIDPlain,
		},
		Store: StoreConfig{
			RedisPrefix: "sfg",
			StateTTL:    10 * time.Minute,
		},
		Validator: ValidatorConfig{
			Timeout: 5 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.StateID.SigningKey = append([]byte(nil), cfg.StateID.SigningKey...)
	return out
}

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Config) Validate() error {
	if c.Filter.SecretAttr == "" {
		return fmt.Errorf("%w: Filter.SecretAttr must not be empty", ErrConfigInvalid)
	}
	if c.Filter.ChallengeURL == "" {
		return fmt.Errorf("%w: Filter.ChallengeURL must not be empty", ErrConfigInvalid)
	}
	switch c.StateID.Format {
	case StateIDPlain, StateIDUUID:
	case StateIDSigned:
		if len(c.StateID.SigningKey) < 32 {
			return fmt.Errorf("%w: StateID.SigningKey must be at least 32 bytes for the signed format", ErrConfigInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown StateID.Format", ErrConfigInvalid)
	}
	if c.Store.StateTTL <= 0 {
		return fmt.Errorf("%w: Store.StateTTL must be positive", ErrConfigInvalid)
	}
	if c.Validator.Timeout <= 0 {
		return fmt.Errorf("%w: Validator.Timeout must be positive", ErrConfigInvalid)
	}
	return nil
}

// Recognized option keys for ParseOptions. They mirror the processing-filter
// configuration of the surrounding SSO software.
const (
	OptionSecretAttr        = "secret_attr"
	OptionEnforce2FA        = "enforce_2fa"
	OptionNotConfiguredURL  = "not_configured_url"
	OptionAuthenticationURL = "linotp_authentication_url"
)

// ParseOptions builds a FilterConfig from a raw option map, applying the
// typing rules enforced at pipeline load time: enforce_2fa must be a bool,
// URL options must be strings, and not_configured_url must pass the redirect
// policy. Failures are reported immediately, never deferred to request time.
//
// ParseOptions may return an error when input validation, dependency calls, or security checks fail.
// ParseOptions does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func ParseOptions(options map[string]any, policy RedirectPolicy) (FilterConfig, error) {
	cfg := defaultConfig().Filter

	if raw, ok := options[OptionSecretAttr]; ok {
		attr, ok := raw.(string)
		if !ok || attr == "" {
			return FilterConfig{}, fmt.Errorf("%w: %s must be a non-empty string", ErrConfigInvalid, OptionSecretAttr)
		}
		cfg.SecretAttr = attr
	}

	if raw, ok := options[OptionEnforce2FA]; ok {
		enforce, ok := raw.(bool)
		if !ok {
			return FilterConfig{}, fmt.Errorf("%w: %s must be a boolean", ErrConfigInvalid, OptionEnforce2FA)
		}
		cfg.Enforce2FA = enforce
	}

	if raw, ok := options[OptionNotConfiguredURL]; ok && raw != nil {
		target, ok := raw.(string)
		if !ok {
			return FilterConfig{}, fmt.Errorf("%w: %s must be a string", ErrConfigInvalid, OptionNotConfiguredURL)
		}
		if policy == nil || !policy.Allowed(target) {
			return FilterConfig{}, fmt.Errorf("%w: %s rejected by redirect policy: %q", ErrConfigInvalid, OptionNotConfiguredURL, target)
		}
		cfg.NotConfiguredURL = target
	}

	if raw, ok := options[OptionAuthenticationURL]; ok && raw != nil {
		base, ok := raw.(string)
		if !ok {
			return FilterConfig{}, fmt.Errorf("%w: %s must be a string", ErrConfigInvalid, OptionAuthenticationURL)
		}
		cfg.AuthenticationURL = base
	}

	for key := range options {
		switch key {
		case OptionSecretAttr, OptionEnforce2FA, OptionNotConfiguredURL, OptionAuthenticationURL:
		default:
			return FilterConfig{}, fmt.Errorf("%w: unknown option %q", ErrConfigInvalid, key)
		}
	}

	return cfg, nil
}
