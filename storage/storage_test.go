package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/hazyhaar/domreview/dbopen"
)

func backends(t *testing.T) map[string]Storage {
	t.Helper()
	return map[string]Storage{
		"memory": NewMemory(),
		"sqlite": NewSQLite(dbopen.OpenMemory(t, dbopen.WithSchema(Schema))),
	}
}

func TestStorage_RoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, ok, err := s.Get(ctx, "missing"); err != nil || ok {
				t.Fatalf("missing key: ok=%v err=%v", ok, err)
			}
			if err := s.Set(ctx, "k", []byte("v1")); err != nil {
				t.Fatal(err)
			}
			if err := s.Set(ctx, "k", []byte("v2")); err != nil {
				t.Fatal(err)
			}
			v, ok, err := s.Get(ctx, "k")
			if err != nil || !ok || string(v) != "v2" {
				t.Fatalf("get: %q %v %v", v, ok, err)
			}
			if err := s.Remove(ctx, "k"); err != nil {
				t.Fatal(err)
			}
			if _, ok, _ := s.Get(ctx, "k"); ok {
				t.Fatal("key should be removed")
			}
			if err := s.Remove(ctx, "k"); err != nil {
				t.Fatalf("remove missing: %v", err)
			}
		})
	}
}

func TestStorage_SwapIsConditional(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, rev, err := s.Load(ctx, "k"); err != nil || rev != 0 {
				t.Fatalf("missing key: rev=%d err=%v", rev, err)
			}
			r1, err := s.Swap(ctx, "k", []byte("a"), 0)
			if err != nil || r1 == 0 {
				t.Fatalf("create: rev=%d err=%v", r1, err)
			}
			if _, err := s.Swap(ctx, "k", []byte("b"), 0); !errors.Is(err, ErrConflict) {
				t.Fatalf("second create: got %v, want ErrConflict", err)
			}
			r2, err := s.Swap(ctx, "k", []byte("b"), r1)
			if err != nil || r2 <= r1 {
				t.Fatalf("swap: rev=%d (after %d) err=%v", r2, r1, err)
			}
			if _, err := s.Swap(ctx, "k", []byte("c"), r1); !errors.Is(err, ErrConflict) {
				t.Fatalf("stale swap: got %v, want ErrConflict", err)
			}
			v, rev, err := s.Load(ctx, "k")
			if err != nil || rev != r2 || string(v) != "b" {
				t.Fatalf("load: %q rev=%d err=%v", v, rev, err)
			}

			// A plain Set still moves the revision forward.
			if err := s.Set(ctx, "k", []byte("d")); err != nil {
				t.Fatal(err)
			}
			if _, err := s.Swap(ctx, "k", []byte("e"), r2); !errors.Is(err, ErrConflict) {
				t.Fatalf("swap after set: got %v, want ErrConflict", err)
			}
		})
	}
}

func TestOpenSQLite_SharedFileSwap(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "shared.db")
	a, err := OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	b, err := OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	rev, err := a.Swap(ctx, "page", []byte("from a"), 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Swap(ctx, "page", []byte("from b"), 0); !errors.Is(err, ErrConflict) {
		t.Fatalf("b create: got %v, want ErrConflict", err)
	}
	v, got, err := b.Load(ctx, "page")
	if err != nil || got != rev || string(v) != "from a" {
		t.Fatalf("b load: %q rev=%d err=%v", v, got, err)
	}
	if _, err := b.Swap(ctx, "page", []byte("from b"), got); err != nil {
		t.Fatal(err)
	}
	if _, err := a.Swap(ctx, "page", []byte("lost"), rev); !errors.Is(err, ErrConflict) {
		t.Fatalf("a stale swap: got %v, want ErrConflict", err)
	}
}

func TestMemory_FailWith(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	boom := errors.New("quota exceeded")
	m.FailWith(boom)
	if err := m.Set(ctx, "k", nil); !errors.Is(err, boom) {
		t.Fatalf("set: got %v", err)
	}
	m.FailWith(nil)
	if err := m.Set(ctx, "k", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if keys := m.Keys(); len(keys) != 1 || keys[0] != "k" {
		t.Fatalf("keys: %v", keys)
	}
}

func TestOpenSQLite_Persists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "reviews.db")

	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, "dom-review:https://example.com/", []byte(`{"version":"1.0"}`)); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	v, ok, err := s.Get(ctx, "dom-review:https://example.com/")
	if err != nil || !ok || string(v) != `{"version":"1.0"}` {
		t.Fatalf("reopened: %q %v %v", v, ok, err)
	}
}
