package totpgate

import (
	"context"
	"net/http"
	"time"
)

// PurposeRequest tags transactions suspended while awaiting the second
// factor. Load and Save must agree on the purpose or the lookup fails.
const PurposeRequest = "2fa-request"

// Transaction is the serializable snapshot of an in-flight authentication
// attempt, created by the upstream pipeline before the gate runs.
//
// The gate mutates only its own scratch fields (UserID, Secret,
// AuthenticationURL); everything else is carried through untouched so the
// pipeline can resume exactly where it left off.
type Transaction struct {
	// Attributes holds the user's SSO attributes, attribute name to values.
	Attributes map[string][]string

	// IdPEntityID identifies the hosted IdP whose metadata names the
	// user-id attribute.
	IdPEntityID string

	// ReturnURL, when set, is embedded into the state identifier as the
	// post-challenge navigation hint. It crosses the user agent and is
	// re-validated against the RedirectPolicy on every load.
	ReturnURL string

	// UserID is resolved by the filter from the metadata-configured
	// attribute.
	UserID string

	// Secret is the per-user secret or validation-target value resolved
	// from the configured attribute. Empty in pure remote-validation
	// deployments.
	Secret string

	// AuthenticationURL is the base URL of the remote validation service
	// recorded for this session.
	AuthenticationURL string
}

// Clone returns a deep copy of the transaction.
func (t *Transaction) Clone() *Transaction {
	if t == nil {
		return nil
	}
	cp := *t
	if t.Attributes != nil {
		cp.Attributes = make(map[string][]string, len(t.Attributes))
		for k, vals := range t.Attributes {
			cp.Attributes[k] = append([]string(nil), vals...)
		}
	}
	return &cp
}

// Redirect instructs the pipeline to send the user agent to Location.
// A nil *Redirect from [Gate.Apply] means the pipeline proceeds without a
// second factor.
type Redirect struct {
	// Location is the absolute or application-relative target URL,
	// query string included.
	Location string

	// StateID is the identifier the challenge handler will present back,
	// exposed for audit correlation.
	StateID string
}

// StateStore persists suspended transactions under opaque identifiers.
//
// Implementations must be safe for concurrent use across independent
// requests; each identifier is only ever operated on by the session that
// owns it.
type StateStore interface {
	// Save persists the transaction under id, tagged with purpose, for
	// at most ttl.
	Save(ctx context.Context, purpose, id string, tx *Transaction, ttl time.Duration) error

	// Load retrieves a transaction previously saved under id and purpose.
	// Returns ErrStateNotFound or ErrStateExpired when the identifier no
	// longer resolves, ErrStateBackend on infrastructure failure.
	Load(ctx context.Context, purpose, id string) (*Transaction, error)

	// Delete removes the transaction and reports whether this call
	// removed it. The success path consumes state through Delete so a
	// double submit resumes the pipeline at most once.
	Delete(ctx context.Context, purpose, id string) (bool, error)
}

// RedirectPolicy decides whether a URL is an acceptable redirect target.
// Consulted for every caller-supplied or configured external target before
// any redirect is issued.
type RedirectPolicy interface {
	Allowed(rawURL string) bool
}

// MetadataSource answers which attribute names the user identifier for a
// hosted IdP. It models the surrounding SSO software's metadata store.
type MetadataSource interface {
	UserIDAttribute(idpEntityID string) (string, error)
}

// MetadataFunc adapts a function to the MetadataSource interface.
type MetadataFunc func(idpEntityID string) (string, error)

// UserIDAttribute implements MetadataSource.
func (f MetadataFunc) UserIDAttribute(idpEntityID string) (string, error) {
	return f(idpEntityID)
}

// Resumer hands a verified transaction back to the suspended pipeline.
// Implementations typically redirect the user agent back into the SSO flow;
// they own the response once Resume returns nil.
type Resumer interface {
	Resume(w http.ResponseWriter, r *http.Request, tx *Transaction) error
}

// ResumeFunc adapts a function to the Resumer interface.
type ResumeFunc func(w http.ResponseWriter, r *http.Request, tx *Transaction) error

// Resume implements Resumer.
func (f ResumeFunc) Resume(w http.ResponseWriter, r *http.Request, tx *Transaction) error {
	return f(w, r, tx)
}

// ValidationOutcome is the structurally valid result of a code check.
// The challenge handler, not the validator, performs the equality check of
// the submitted code against AssertedValue: the code is numeric-as-text and
// leading zeros matter.
type ValidationOutcome struct {
	// Status is the validator's own pass/fail indication, recorded for
	// audit.
	Status bool

	// AssertedValue is the value the validator asserted for this attempt.
	AssertedValue string
}

// CodeValidator is the pluggable validation strategy: remote delegation to a
// LinOTP-style service or local verification against the transaction's
// resolved secret.
//
// A returned error means the check could not be completed
// (ErrValidatorUnreachable, ErrValidatorProtocol); a completed check with a
// wrong code is not an error, it is a mismatched AssertedValue.
type CodeValidator interface {
	Validate(ctx context.Context, tx *Transaction, code string) (ValidationOutcome, error)
}

// SecretVerifier checks a one-time code against a per-user secret. The gate
// never implements the TOTP algorithm itself; local validation delegates to
// an implementation of this interface.
type SecretVerifier interface {
	VerifyCode(secret, code string, at time.Time) (bool, error)
}

// ChallengeView is the data handed to the Renderer for the challenge page.
type ChallengeView struct {
	// StateID round-trips through the form post.
	StateID string

	// PostURL is where the form submits to.
	PostURL string

	// ErrorMessage is empty on the first visit and carries the user-facing
	// message after a recoverable failure.
	ErrorMessage string
}

// Renderer draws the challenge page. The gate ships a minimal embedded
// default; deployments replace it via [Builder.WithRenderer].
type Renderer interface {
	Render(w http.ResponseWriter, view ChallengeView) error
}
