package totpgate

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// newValidationServer stands in for the remote validation service: it asserts
// the submitted code back when it matches wantCode, otherwise reports a
// failed check. hits counts round trips so tests can assert the service was
// (or was not) consulted.
func newValidationServer(t *testing.T, wantCode string, hits *int32) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		if r.URL.Path != "/validate/check" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		pass := r.URL.Query().Get("pass")
		w.Header().Set("Content-Type", "application/json")
		if pass == wantCode {
			fmt.Fprintf(w, `{"result":{"status":true,"value":%q}}`, pass)
			return
		}
		fmt.Fprint(w, `{"result":{"status":false,"value":""}}`)
	}))
	t.Cleanup(server.Close)
	return server
}

// newTestGate assembles a gate over a MemoryStore with stub metadata and a
// resumer that writes a recognizable marker.
func newTestGate(t *testing.T, mutate func(*Config), opts ...func(*Builder)) (*Gate, *MemoryStore) {
	t.Helper()

	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	store := NewMemoryStore()
	builder := New().
		WithConfig(cfg).
		WithStateStore(store).
		WithMetadata(MetadataFunc(func(string) (string, error) {
			return "uid", nil
		})).
		WithResumer(ResumeFunc(func(w http.ResponseWriter, _ *http.Request, tx *Transaction) error {
			fmt.Fprint(w, "resumed:"+tx.UserID)
			return nil
		}))
	for _, opt := range opts {
		opt(builder)
	}

	gate, err := builder.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(gate.Close)
	return gate, store
}

func testTransaction() *Transaction {
	return &Transaction{
		Attributes: map[string][]string{
			"uid":         {"alice"},
			"mail":        {"alice@example.com"},
			"totp_secret": {"JBSWY3DPEHPK3PXP"},
		},
		IdPEntityID: "https://idp.example.com/saml2/idp/metadata.php",
		ReturnURL:   "/consent",
	}
}

// staticVerifier accepts exactly one code regardless of secret or time.
type staticVerifier struct {
	accept string
}

func (v staticVerifier) VerifyCode(_, code string, _ time.Time) (bool, error) {
	return code == v.accept, nil
}
