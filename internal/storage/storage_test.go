package storage

import (
	"path/filepath"
	"testing"

	"github.com/dokzlo13/wledd/internal/db"
)

type record struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func openStore(t *testing.T) *Store {
	t.Helper()
	d, err := db.Open(filepath.Join(t.TempDir(), "test.sqlite"))
	if err != nil {
		t.Fatalf("db.Open() error = %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return NewStore(d.DB)
}

func TestStore_SetGetVersion(t *testing.T) {
	s := openStore(t)

	payload, version, err := s.Get("entity", "missing")
	if err != nil || payload != nil || version != 0 {
		t.Fatalf("Get(missing) = %q, %d, %v", payload, version, err)
	}

	if err := s.Set("entity", "a", []byte(`{"x":1}`)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := s.Set("entity", "a", []byte(`{"x":2}`)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	payload, version, err = s.Get("entity", "a")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(payload) != `{"x":2}` {
		t.Errorf("payload = %s", payload)
	}
	if version != 2 {
		t.Errorf("version = %d, want 2", version)
	}
}

func TestStore_ClearByKind(t *testing.T) {
	s := openStore(t)
	_ = s.Set("a", "1", []byte(`{}`))
	_ = s.Set("b", "1", []byte(`{}`))

	if err := s.Clear("a"); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	all, _, _ := s.GetAll("a")
	if len(all) != 0 {
		t.Errorf("kind a has %d records after Clear", len(all))
	}
	all, _, _ = s.GetAll("b")
	if len(all) != 1 {
		t.Errorf("kind b has %d records, want 1", len(all))
	}
}

func TestTypedStore(t *testing.T) {
	ts := NewTypedStore[record](openStore(t), "record")

	if err := ts.Set("one", record{Name: "one", Count: 1}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	err := ts.Update("one", func(cur record, exists bool) record {
		if !exists {
			t.Error("Update should see existing record")
		}
		cur.Count++
		return cur
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	err = ts.Update("two", func(cur record, exists bool) record {
		if exists {
			t.Error("Update should not see a missing record")
		}
		return record{Name: "two"}
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, _, err := ts.Get("one")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Count != 2 {
		t.Errorf("Count = %d, want 2", got.Count)
	}

	all, err := ts.GetAll()
	if err != nil {
		t.Fatalf("GetAll() error = %v", err)
	}
	if len(all) != 2 || all["two"].Name != "two" {
		t.Errorf("GetAll() = %v", all)
	}

	if err := ts.Delete("two"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	all, _ = ts.GetAll()
	if len(all) != 1 {
		t.Errorf("GetAll() after Delete = %v", all)
	}
}
