package mcpproto

import (
	"testing"
	"time"
)

func TestNegotiateVersionTiers(t *testing.T) {
	cases := []struct {
		server, client string
		want            NegotiationResult
	}{
		{"2025-06-01", "2025-06-01", Full},
		{"2025-06-01", "2025-06-15", Compatible},
		{"2025-06-01", "2025-01-01", Limited},
		{"2025-06-01", "2023-01-01", Incompatible},
	}
	for _, c := range cases {
		got := NegotiateVersion(c.server, c.client)
		if got != c.want {
			t.Errorf("NegotiateVersion(%s, %s) = %v, want %v", c.server, c.client, got, c.want)
		}
	}
}

// TestScenarioE grounds spec.md §8 Scenario E: initialize with an
// incompatible protocolVersion is rejected.
func TestScenarioEIncompatibleVersionRejected(t *testing.T) {
	result := NegotiateVersion("2025-06-01", "2023-01-01")
	if result != Incompatible {
		t.Fatalf("expected Incompatible, got %v", result)
	}
}

func TestDetectClient(t *testing.T) {
	cases := map[string]ClientKind{
		"Claude Desktop":  ClientClaude,
		"cursor-ide":      ClientCursor,
		"vscode-copilot":  ClientVSCode,
		"some-other-tool": ClientUnknown,
	}
	for name, want := range cases {
		if got := DetectClient(name); got != want {
			t.Errorf("DetectClient(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestCancelTokenIsCancelled(t *testing.T) {
	tok := NewCancelToken()
	if tok.IsCancelled() {
		t.Fatal("expected a fresh token to not be cancelled")
	}
	tok.Cancel("client requested stop")
	if !tok.IsCancelled() {
		t.Fatal("expected token to report cancelled after Cancel")
	}
	if tok.Reason() != "client requested stop" {
		t.Fatalf("expected reason to be recorded, got %q", tok.Reason())
	}
}

func TestWaitOutcomeDistinguishesTimeoutFromCancel(t *testing.T) {
	never := make(chan struct{})

	err := WaitOutcome(never, nil, 20*time.Millisecond, 5*time.Millisecond)
	if err != ErrTimeout {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}

	tok := NewCancelToken()
	tok.Cancel("stop")
	err = WaitOutcome(never, tok, time.Second, 5*time.Millisecond)
	if err == nil || err == ErrTimeout {
		t.Fatalf("expected a distinct cancellation error, got %v", err)
	}
}

func TestWaitOutcomeSucceedsWhenDoneFires(t *testing.T) {
	done := make(chan struct{})
	close(done)
	if err := WaitOutcome(done, nil, time.Second, 5*time.Millisecond); err != nil {
		t.Fatalf("expected nil error when done is already closed, got %v", err)
	}
}
