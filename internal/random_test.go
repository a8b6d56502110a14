package internal

import "testing"

func TestStateIDRoundTrip(t *testing.T) {
	sid, err := NewStateID()
	if err != nil {
		t.Fatalf("NewStateID failed: %v", err)
	}

	encoded := sid.String()
	if len(encoded) != 22 {
		t.Fatalf("expected 22-character encoding, got %d (%q)", len(encoded), encoded)
	}

	parsed, err := ParseStateID(encoded)
	if err != nil {
		t.Fatalf("ParseStateID failed: %v", err)
	}
	if parsed != sid {
		t.Fatal("round trip mismatch")
	}
}

func TestStateIDUniqueness(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		sid, err := NewStateID()
		if err != nil {
			t.Fatalf("NewStateID failed: %v", err)
		}
		key := sid.String()
		if _, dup := seen[key]; dup {
			t.Fatal("duplicate state id generated")
		}
		seen[key] = struct{}{}
	}
}

func TestParseStateIDRejectsBadInput(t *testing.T) {
	if _, err := ParseStateID("not base64 ///"); err == nil {
		t.Fatal("expected error for invalid encoding")
	}
	if _, err := ParseStateID("AAAA"); err == nil {
		t.Fatal("expected error for short input")
	}
}
