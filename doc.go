// Package totpgate implements a second-factor (TOTP) step for single-sign-on
// login pipelines: it suspends an in-flight authentication transaction under
// an opaque identifier, challenges the user agent for a one-time code, checks
// the code against a remote LinOTP-style validation service (or a delegated
// local verifier), and resumes the suspended transaction on success.
//
// The package is designed for concurrent server workloads: Gate methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// totpgate is the public surface. It exposes [Gate], [Builder], [Config],
// the collaborator interfaces ([StateStore], [RedirectPolicy],
// [MetadataSource], [Resumer], [CodeValidator]) and value types
// (Transaction, MetricsSnapshot, AuditEvent). Helper code — state identifier
// generation, codec details — lives under internal/ and is never exported.
//
// # What this package must NOT do
//
//   - Implement the TOTP algorithm. Code validation is delegated, either to
//     the remote validation service or to an injected [SecretVerifier].
//   - Keep per-attempt state in process memory outside the configured
//     [StateStore]. Every challenge round trip reconstitutes the transaction
//     by identifier.
//   - Follow a redirect target that has not passed the [RedirectPolicy].
//
// # Trust boundary
//
// Everything arriving on the challenge endpoint — the StateId parameter, the
// embedded return-URL hint, the submitted code — crossed the user agent and
// is attacker-controlled. The handler validates all of it before any store
// lookup, remote call, or redirect.
package totpgate
