package store

import (
	"context"
	"path/filepath"
	"testing"

	"portalslayer/pkg/db"
)

// setupTestStore creates a test database and store for each test.
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	d, err := db.Init(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to init DB: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return NewSQLiteStore(d)
}

func TestStateStore(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		setup   func(s *SQLiteStore)
		key     string
		wantVal string
		wantHit bool
	}{
		{
			name:    "missing key",
			setup:   func(s *SQLiteStore) {},
			key:     "absent",
			wantHit: false,
		},
		{
			name: "set then get",
			setup: func(s *SQLiteStore) {
				_ = s.SetState(ctx, "k", "v1")
			},
			key:     "k",
			wantVal: "v1",
			wantHit: true,
		},
		{
			name: "overwrite keeps one row",
			setup: func(s *SQLiteStore) {
				_ = s.SetState(ctx, "k", "v1")
				_ = s.SetState(ctx, "k", "v2")
			},
			key:     "k",
			wantVal: "v2",
			wantHit: true,
		},
		{
			name: "empty value is a hit",
			setup: func(s *SQLiteStore) {
				_ = s.SetState(ctx, "k", "")
			},
			key:     "k",
			wantVal: "",
			wantHit: true,
		},
		{
			name: "deleted key",
			setup: func(s *SQLiteStore) {
				_ = s.SetState(ctx, "k", "v")
				_ = s.DeleteState(ctx, "k")
			},
			key:     "k",
			wantHit: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := setupTestStore(t)
			tt.setup(s)

			val, hit := s.GetState(ctx, tt.key)
			if hit != tt.wantHit {
				t.Fatalf("GetState(%q) hit = %v, want %v", tt.key, hit, tt.wantHit)
			}
			if val != tt.wantVal {
				t.Errorf("GetState(%q) = %q, want %q", tt.key, val, tt.wantVal)
			}
		})
	}
}

func TestStateStore_Persistence(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "reopen.db")

	d, err := db.Init(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := NewSQLiteStore(d).SetState(ctx, "blob", `{"a":1}`); err != nil {
		t.Fatalf("SetState failed: %v", err)
	}
	d.Close()

	d2, err := db.Init(path)
	if err != nil {
		t.Fatal(err)
	}
	s := NewSQLiteStore(d2)
	defer s.Close()

	val, hit := s.GetState(ctx, "blob")
	if !hit || val != `{"a":1}` {
		t.Errorf("value not persisted across reopen: %q hit=%v", val, hit)
	}
}

func TestStateStore_ClosedDB(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	s.Close()

	if err := s.SetState(ctx, "k", "v"); err == nil {
		t.Error("expected error writing to closed db")
	}
	if _, hit := s.GetState(ctx, "k"); hit {
		t.Error("expected miss reading from closed db")
	}
}
