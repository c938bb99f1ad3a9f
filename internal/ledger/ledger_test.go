package ledger

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/dokzlo13/wledd/internal/db"
)

func openLedger(t *testing.T) *Ledger {
	t.Helper()
	d, err := db.Open(filepath.Join(t.TempDir(), "test.sqlite"))
	if err != nil {
		t.Fatalf("db.Open() error = %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return New(d.DB)
}

func TestLedger_AppendRecent(t *testing.T) {
	l := openLedger(t)

	if err := l.Append(EventCommandSent, "c1", "set_master", "aabb", map[string]any{"on": true}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := l.Append(EventCommandCompleted, "c1", "set_master", "aabb", nil); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := l.Append(EventCommandSent, "c2", "set_preset", "", map[string]any{"preset": "Morning"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	recent, err := l.Recent(2)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("Recent(2) returned %d entries", len(recent))
	}
	if recent[0].CorrelationID != "c2" || recent[0].Payload["preset"] != "Morning" {
		t.Errorf("newest entry = %+v", recent[0])
	}
	if recent[1].EventType != EventCommandCompleted || recent[1].Payload != nil {
		t.Errorf("second entry = %+v", recent[1])
	}

	byID, err := l.ByCorrelation("c1")
	if err != nil {
		t.Fatalf("ByCorrelation() error = %v", err)
	}
	if len(byID) != 2 || byID[0].EventType != EventCommandSent || byID[0].Entity != "aabb" {
		t.Errorf("ByCorrelation(c1) = %+v", byID)
	}
	if on, _ := byID[0].Payload["on"].(bool); !on {
		t.Errorf("payload = %v", byID[0].Payload)
	}
}

func TestLedger_DeleteOlderThan(t *testing.T) {
	l := openLedger(t)

	old := time.Now().Add(-48 * time.Hour).UnixMilli()
	_, err := l.db.Exec(`INSERT INTO command_ledger (correlation_id, event_type, command, timestamp) VALUES ('old', 'command_sent', 'x', ?)`, old)
	if err != nil {
		t.Fatalf("insert error = %v", err)
	}
	_ = l.Append(EventCommandSent, "new", "x", "", nil)

	n, err := l.DeleteOlderThan(24 * time.Hour)
	if err != nil {
		t.Fatalf("DeleteOlderThan() error = %v", err)
	}
	if n != 1 {
		t.Errorf("deleted %d, want 1", n)
	}

	recent, _ := l.Recent(10)
	if len(recent) != 1 || recent[0].CorrelationID != "new" {
		t.Errorf("remaining = %+v", recent)
	}
}
