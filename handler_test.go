package totpgate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func issueChallenge(t *testing.T, gate *Gate) string {
	t.Helper()

	redirect, err := gate.Apply(context.Background(), testTransaction())
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if redirect == nil {
		t.Fatal("expected a challenge redirect")
	}
	return redirect.StateID
}

func getChallenge(t *testing.T, gate *Gate, wire string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/2fa/authenticate?StateId="+url.QueryEscape(wire), nil)
	rec := httptest.NewRecorder()
	gate.ChallengeHandler().ServeHTTP(rec, req)
	return rec
}

func postCode(t *testing.T, gate *Gate, wire, code string) *httptest.ResponseRecorder {
	t.Helper()

	form := url.Values{}
	form.Set("StateId", wire)
	form.Set("code", code)

	req := httptest.NewRequest(http.MethodPost, "/2fa/authenticate", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	gate.ChallengeHandler().ServeHTTP(rec, req)
	return rec
}

func TestChallengeRendersForm(t *testing.T) {
	var hits int32
	server := newValidationServer(t, "123456", &hits)
	gate, _ := newTestGate(t, func(c *Config) {
		c.Filter.AuthenticationURL = server.URL
	})

	wire := issueChallenge(t, gate)
	rec := getChallenge(t, gate, wire)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if !strings.Contains(body, `name="StateId"`) || !strings.Contains(body, `name="code"`) {
		t.Fatalf("expected the challenge form, got: %s", body)
	}
	if strings.Contains(body, msgCodeIncorrect) || strings.Contains(body, msgCodeNotNumeric) {
		t.Fatal("first render must carry no error message")
	}
	if atomic.LoadInt32(&hits) != 0 {
		t.Fatal("rendering the form must not consult the validation service")
	}
}

func TestChallengeMissingStateID(t *testing.T) {
	gate, _ := newTestGate(t, func(c *Config) {
		c.Filter.AuthenticationURL = "https://otp.example.com"
	})

	req := httptest.NewRequest(http.MethodGet, "/2fa/authenticate", nil)
	rec := httptest.NewRecorder()
	gate.ChallengeHandler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestChallengeUnknownState(t *testing.T) {
	gate, _ := newTestGate(t, func(c *Config) {
		c.Filter.AuthenticationURL = "https://otp.example.com"
	})

	rec := getChallenge(t, gate, "never-issued")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Unknown or expired") {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
	if gate.metrics.Value(MetricStateRejected) != 1 {
		t.Fatal("expected the rejection to be counted")
	}
}

func TestChallengeExpiredState(t *testing.T) {
	server := newValidationServer(t, "123456", nil)
	gate, store := newTestGate(t, func(c *Config) {
		c.Filter.AuthenticationURL = server.URL
	})

	wire := issueChallenge(t, gate)
	sid, err := parseStateID(gate.config.StateID, wire)
	if err != nil {
		t.Fatalf("parseStateID failed: %v", err)
	}

	// Overwrite with an already-expired snapshot.
	if err := store.Save(context.Background(), PurposeRequest, sid.ID, testTransaction(), -time.Second); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	rec := postCode(t, gate, wire, "123456")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for expired state, got %d", rec.Code)
	}
}

func TestChallengeRejectsUntrustedReturnHint(t *testing.T) {
	gate, _ := newTestGate(t, func(c *Config) {
		c.Filter.AuthenticationURL = "https://otp.example.com"
	})

	// Default policy allows relative targets only; an attacker-crafted hint
	// pointing off-application must be turned away before any store access.
	rec := getChallenge(t, gate, "someid:https://evil.example/phish")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Untrusted redirect target") {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
	if gate.metrics.Value(MetricRedirectRejected) != 1 {
		t.Fatal("expected the rejected hint to be counted")
	}
}

func TestChallengeNonNumericCodeShortCircuits(t *testing.T) {
	var hits int32
	server := newValidationServer(t, "123456", &hits)
	gate, store := newTestGate(t, func(c *Config) {
		c.Filter.AuthenticationURL = server.URL
	})

	wire := issueChallenge(t, gate)
	rec := postCode(t, gate, wire, "12a456")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected re-rendered form, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), msgCodeNotNumeric) {
		t.Fatalf("expected numeric-format message, got: %s", rec.Body.String())
	}
	if atomic.LoadInt32(&hits) != 0 {
		t.Fatal("non-numeric input must never reach the validation service")
	}

	// The attempt remains open.
	sid, _ := parseStateID(gate.config.StateID, wire)
	if _, err := store.Load(context.Background(), PurposeRequest, sid.ID); err != nil {
		t.Fatalf("expected state to survive a format rejection, got %v", err)
	}
}

func TestChallengeWrongCodeKeepsStateValid(t *testing.T) {
	server := newValidationServer(t, "123456", nil)
	gate, _ := newTestGate(t, func(c *Config) {
		c.Filter.AuthenticationURL = server.URL
	})

	wire := issueChallenge(t, gate)

	rec := postCode(t, gate, wire, "654321")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected re-rendered form, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), msgCodeIncorrect) {
		t.Fatalf("expected incorrect-token message, got: %s", rec.Body.String())
	}

	// The same identifier still settles with the right code.
	rec = postCode(t, gate, wire, "123456")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "resumed:alice") {
		t.Fatalf("expected resume after retry, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestChallengeCorrectCodeResumes(t *testing.T) {
	server := newValidationServer(t, "123456", nil)
	gate, store := newTestGate(t, func(c *Config) {
		c.Filter.AuthenticationURL = server.URL
	})

	wire := issueChallenge(t, gate)
	rec := postCode(t, gate, wire, "123456")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "resumed:alice") {
		t.Fatalf("expected the pipeline to resume, got: %s", rec.Body.String())
	}

	// State is consumed.
	sid, _ := parseStateID(gate.config.StateID, wire)
	if _, err := store.Load(context.Background(), PurposeRequest, sid.ID); !errors.Is(err, ErrStateNotFound) {
		t.Fatalf("expected consumed state, got %v", err)
	}
	if gate.metrics.Value(MetricCodeAccepted) != 1 || gate.metrics.Value(MetricResumed) != 1 {
		t.Fatal("expected acceptance and resume to be counted")
	}
}

func TestChallengeDoubleSubmit(t *testing.T) {
	server := newValidationServer(t, "123456", nil)
	gate, _ := newTestGate(t, func(c *Config) {
		c.Filter.AuthenticationURL = server.URL
	})

	wire := issueChallenge(t, gate)

	first := postCode(t, gate, wire, "123456")
	if first.Code != http.StatusOK {
		t.Fatalf("first submit failed: %d", first.Code)
	}

	second := postCode(t, gate, wire, "123456")
	if second.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for the replayed submit, got %d", second.Code)
	}
	if gate.metrics.Value(MetricResumed) != 1 {
		t.Fatal("the pipeline must resume at most once per state")
	}
}

// consumedStore simulates losing the delete race: Load succeeds but the state
// is gone by the time this request tries to consume it.
type consumedStore struct {
	*MemoryStore
}

func (s consumedStore) Delete(context.Context, string, string) (bool, error) {
	return false, nil
}

func TestChallengeReplayRaceBlocked(t *testing.T) {
	server := newValidationServer(t, "123456", nil)
	inner := NewMemoryStore()
	gate, _ := newTestGate(t, func(c *Config) {
		c.Filter.AuthenticationURL = server.URL
	}, func(b *Builder) {
		b.WithStateStore(consumedStore{inner})
	})

	wire := issueChallenge(t, gate)
	rec := postCode(t, gate, wire, "123456")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 when the state was already consumed, got %d", rec.Code)
	}
	if gate.metrics.Value(MetricResumeReplayBlocked) != 1 {
		t.Fatal("expected the blocked replay to be counted")
	}
	if gate.metrics.Value(MetricResumed) != 0 {
		t.Fatal("the pipeline must not resume on a lost race")
	}
}

func TestChallengeExactStringComparison(t *testing.T) {
	// Codes are numeric-as-text: an asserted "0123456" must not match a
	// submitted "123456" even though the numbers are equal.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"result":{"status":true,"value":"0123456"}}`)
	}))
	defer server.Close()

	gate, _ := newTestGate(t, func(c *Config) {
		c.Filter.AuthenticationURL = server.URL
	})

	wire := issueChallenge(t, gate)
	rec := postCode(t, gate, wire, "123456")

	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), msgCodeIncorrect) {
		t.Fatalf("expected incorrect-token message, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestChallengeValidatorUnreachable(t *testing.T) {
	server := newValidationServer(t, "123456", nil)
	gate, store := newTestGate(t, func(c *Config) {
		c.Filter.AuthenticationURL = server.URL
	})

	wire := issueChallenge(t, gate)
	server.Close()

	rec := postCode(t, gate, wire, "123456")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "helpdesk administrator") {
		t.Fatalf("expected the helpdesk message, got: %s", rec.Body.String())
	}
	if gate.metrics.Value(MetricValidatorUnreachable) != 1 {
		t.Fatal("expected the outage to be counted")
	}

	// An outage never consumes the attempt.
	sid, _ := parseStateID(gate.config.StateID, wire)
	if _, err := store.Load(context.Background(), PurposeRequest, sid.ID); err != nil {
		t.Fatalf("expected state to survive a validator outage, got %v", err)
	}
}

func TestChallengeValidatorProtocolError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "<html>maintenance</html>")
	}))
	defer server.Close()

	gate, _ := newTestGate(t, func(c *Config) {
		c.Filter.AuthenticationURL = server.URL
	})

	wire := issueChallenge(t, gate)
	rec := postCode(t, gate, wire, "123456")

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if gate.metrics.Value(MetricValidatorProtocolError) != 1 {
		t.Fatal("expected the protocol error to be counted")
	}
}

func TestChallengeResumeFailure(t *testing.T) {
	server := newValidationServer(t, "123456", nil)
	gate, _ := newTestGate(t, func(c *Config) {
		c.Filter.AuthenticationURL = server.URL
	}, func(b *Builder) {
		b.WithResumer(ResumeFunc(func(http.ResponseWriter, *http.Request, *Transaction) error {
			return errors.New("downstream handler gone")
		}))
	})

	wire := issueChallenge(t, gate)
	rec := postCode(t, gate, wire, "123456")

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 on resume failure, got %d", rec.Code)
	}
	if gate.metrics.Value(MetricResumed) != 0 {
		t.Fatal("a failed resume must not be counted as resumed")
	}
}

func TestChallengeLocalValidation(t *testing.T) {
	gate, _ := newTestGate(t, nil, func(b *Builder) {
		b.WithSecretVerifier(staticVerifier{accept: "123456"})
	})

	wire := issueChallenge(t, gate)

	rec := postCode(t, gate, wire, "654321")
	if !strings.Contains(rec.Body.String(), msgCodeIncorrect) {
		t.Fatalf("expected rejection through the local strategy, got: %s", rec.Body.String())
	}

	wire = issueChallenge(t, gate)
	rec = postCode(t, gate, wire, "123456")
	if !strings.Contains(rec.Body.String(), "resumed:alice") {
		t.Fatalf("expected resume through the local strategy, got: %s", rec.Body.String())
	}
}

func TestChallengeSignedStateID(t *testing.T) {
	server := newValidationServer(t, "123456", nil)
	gate, _ := newTestGate(t, func(c *Config) {
		c.Filter.AuthenticationURL = server.URL
		c.StateID.Format = StateIDSigned
		c.StateID.SigningKey = []byte("0123456789abcdef0123456789abcdef")
	})

	wire := issueChallenge(t, gate)

	// Tampered tokens are rejected before any store access.
	rec := getChallenge(t, gate, wire+"x")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a tampered token, got %d", rec.Code)
	}

	rec = postCode(t, gate, wire, "123456")
	if !strings.Contains(rec.Body.String(), "resumed:alice") {
		t.Fatalf("expected resume with the signed format, got %d: %s", rec.Code, rec.Body.String())
	}
}
