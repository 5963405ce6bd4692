package session

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/teslashibe/go-signlens/pkg/interpret"
)

func TestStateJSON(t *testing.T) {
	data, err := json.Marshal(Failed(interpret.KindService, "quota exceeded"))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	s := string(data)
	for _, want := range []string{`"phase":"error"`, `"kind":"service"`, `"message":"quota exceeded"`} {
		if !strings.Contains(s, want) {
			t.Errorf("%s missing %s", s, want)
		}
	}

	data, _ = json.Marshal(Idle())
	if strings.Contains(string(data), "kind") || strings.Contains(string(data), "message") {
		t.Errorf("idle state leaks fields: %s", data)
	}
}

func TestStateBusy(t *testing.T) {
	tests := []struct {
		state State
		busy  bool
	}{
		{Idle(), false},
		{Recording("id", 0), true},
		{Processing("id", 3), true},
		{Failed(KindDeviceAccess, "no camera"), false},
		{Done("id", "HELLO"), false},
	}
	for _, tt := range tests {
		if got := tt.state.Busy(); got != tt.busy {
			t.Errorf("%s.Busy() = %v, want %v", tt.state.Phase, got, tt.busy)
		}
	}
}
