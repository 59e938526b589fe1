package workflow

import "testing"

func TestStatus(t *testing.T) {
	tests := []struct {
		status   Status
		valid    bool
		terminal bool
		locked   bool
	}{
		{StatusSubmitted, true, false, false},
		{StatusPendingManager, true, false, false},
		{StatusRejected, true, false, false},
		{StatusPaid, true, false, true},
		{StatusArchived, true, true, true},
		{Status("approved"), false, false, false},
	}

	for _, tt := range tests {
		if got := tt.status.IsValid(); got != tt.valid {
			t.Errorf("%s.IsValid() = %v, want %v", tt.status, got, tt.valid)
		}
		if got := tt.status.IsTerminal(); got != tt.terminal {
			t.Errorf("%s.IsTerminal() = %v, want %v", tt.status, got, tt.terminal)
		}
		if got := tt.status.IsLocked(); got != tt.locked {
			t.Errorf("%s.IsLocked() = %v, want %v", tt.status, got, tt.locked)
		}
	}
}

func TestParseStatus(t *testing.T) {
	if _, err := ParseStatus("pending_admin"); err != nil {
		t.Errorf("ParseStatus(pending_admin) error = %v", err)
	}
	if _, err := ParseStatus("PENDING"); err != ErrInvalidStatus {
		t.Errorf("ParseStatus(PENDING) error = %v, want ErrInvalidStatus", err)
	}
}
