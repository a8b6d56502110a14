package totpgate

import (
	"context"
	"time"
)

// RemoteValidator delegates code validation to the validation service
// recorded in the transaction.
//
// RemoteValidator instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RemoteValidator struct {
	client *ValidatorClient
}

// NewRemoteValidator describes the newremotevalidator operation and its observable behavior.
//
// NewRemoteValidator does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewRemoteValidator(client *ValidatorClient) *RemoteValidator {
	return &RemoteValidator{client: client}
}

// Validate issues the remote check against the transaction's recorded
// validation-service URL.
func (v *RemoteValidator) Validate(ctx context.Context, tx *Transaction, code string) (ValidationOutcome, error) {
	if tx == nil || tx.AuthenticationURL == "" {
		return ValidationOutcome{}, ErrNoValidationBackend
	}
	return v.client.Check(ctx, tx.AuthenticationURL, code, tx.UserID)
}

// LocalValidator checks the code against the transaction's resolved secret
// through an injected [SecretVerifier]. The TOTP computation itself lives in
// the verifier, never here.
//
// LocalValidator instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type LocalValidator struct {
	verifier SecretVerifier
	now      func() time.Time
}

// NewLocalValidator describes the newlocalvalidator operation and its observable behavior.
//
// NewLocalValidator does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewLocalValidator(verifier SecretVerifier) *LocalValidator {
	return &LocalValidator{verifier: verifier, now: time.Now}
}

// Validate reports the verifier's decision in the same outcome shape the
// remote strategy uses: on acceptance the asserted value echoes the
// submitted code, so the handler's equality check passes; on rejection it
// stays empty.
func (v *LocalValidator) Validate(_ context.Context, tx *Transaction, code string) (ValidationOutcome, error) {
	if v.verifier == nil {
		return ValidationOutcome{}, ErrNoValidationBackend
	}
	if tx == nil || tx.Secret == "" {
		return ValidationOutcome{}, ErrNotConfigured
	}

	ok, err := v.verifier.VerifyCode(tx.Secret, code, v.now())
	if err != nil {
		return ValidationOutcome{}, err
	}
	if !ok {
		return ValidationOutcome{Status: false}, nil
	}
	return ValidationOutcome{Status: true, AssertedValue: code}, nil
}
