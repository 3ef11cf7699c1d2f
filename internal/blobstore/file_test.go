package blobstore

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
)

func setupFileStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(filepath.Join(t.TempDir(), "vault"))
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	return s
}

func TestFileStorePutGet(t *testing.T) {
	s := setupFileStore(t)
	defer s.Close()
	ctx := context.Background()

	tests := []struct {
		name string
		id   string
		blob []byte
	}{
		{"simple", "t1", []byte("opaque")},
		{"binary", "t2", []byte{0x00, 0xff, 0x10, '\n', 0x00}},
		{"empty blob", "t3", []byte{}},
		{"path-like id", "../../etc/passwd", []byte("x")},
		{"unicode id", "tâche/✓", []byte("y")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.Put(ctx, tt.id, tt.blob); err != nil {
				t.Fatalf("Put failed: %v", err)
			}
			got, err := s.Get(ctx, tt.id)
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if !bytes.Equal(got, tt.blob) {
				t.Errorf("Get = %x, want %x", got, tt.blob)
			}
		})
	}

	// Ids never escape the store directory.
	if _, err := os.Stat(filepath.Join(s.Dir(), "..", "..", "etc", "passwd")); err == nil {
		t.Error("path-like id escaped the store directory")
	}
}

func TestFileStoreOverwrite(t *testing.T) {
	s := setupFileStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, "t1", []byte("first")); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, "t1", []byte("second")); err != nil {
		t.Fatal(err)
	}
	got, err := s.Get(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "second" {
		t.Errorf("Get = %q, want %q", got, "second")
	}
}

func TestFileStoreNotFound(t *testing.T) {
	s := setupFileStore(t)
	ctx := context.Background()

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) = %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete(missing) = %v, want ErrNotFound", err)
	}
}

func TestFileStoreDeleteAndList(t *testing.T) {
	s := setupFileStore(t)
	ctx := context.Background()

	ids, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("expected empty store, got %v", ids)
	}

	for _, id := range []string{"c", "a", "b"} {
		if err := s.Put(ctx, id, []byte(id)); err != nil {
			t.Fatal(err)
		}
	}
	// Stray files are ignored.
	if err := os.WriteFile(filepath.Join(s.Dir(), "README"), []byte("hi"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(s.Dir(), "zz"+blobExt), []byte("hi"), 0o600); err != nil {
		t.Fatal(err)
	}

	ids, err = s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(ids, []string{"a", "b", "c"}) {
		t.Errorf("List = %v, want [a b c]", ids)
	}

	if err := s.Delete(ctx, "b"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	ids, _ = s.List(ctx)
	if !reflect.DeepEqual(ids, []string{"a", "c"}) {
		t.Errorf("List after delete = %v, want [a c]", ids)
	}
}

func TestFileStoreLeavesNoTempFiles(t *testing.T) {
	s := setupFileStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := s.Put(ctx, "t1", []byte{byte(i)}); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := os.ReadDir(s.Dir())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("expected a single blob file, found %v", names)
	}
}

func TestFileStoreCancelledContext(t *testing.T) {
	s := setupFileStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Put(ctx, "t1", []byte("x")); !errors.Is(err, context.Canceled) {
		t.Errorf("Put = %v, want context.Canceled", err)
	}
	if _, err := s.Get(ctx, "t1"); !errors.Is(err, context.Canceled) {
		t.Errorf("Get = %v, want context.Canceled", err)
	}
}

func TestFileStoreConcurrentWrites(t *testing.T) {
	s := setupFileStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i))
			if err := s.Put(ctx, id, []byte(id)); err != nil {
				t.Errorf("Put(%s) failed: %v", id, err)
			}
		}(i)
	}
	wg.Wait()

	ids, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 20 {
		t.Errorf("List returned %d ids, want 20", len(ids))
	}
}

func TestFileStoreIDLength(t *testing.T) {
	s := setupFileStore(t)
	defer s.Close()
	ctx := context.Background()

	longest := strings.Repeat("x", MaxIDLength)
	if err := s.Put(ctx, longest, []byte("fits")); err != nil {
		t.Fatalf("Put with %d-byte id failed: %v", len(longest), err)
	}
	got, err := s.Get(ctx, longest)
	if err != nil || string(got) != "fits" {
		t.Errorf("Get = %q, %v", got, err)
	}

	tooLong := longest + "x"
	if err := s.Put(ctx, tooLong, []byte("x")); !errors.Is(err, ErrIDTooLong) {
		t.Errorf("Put with %d-byte id = %v, want ErrIDTooLong", len(tooLong), err)
	}
	if _, err := s.Get(ctx, tooLong); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get with over-long id = %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, tooLong); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete with over-long id = %v, want ErrNotFound", err)
	}

	ids, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(ids, []string{longest}) {
		t.Errorf("List = %d ids, want only the %d-byte id", len(ids), MaxIDLength)
	}
}

func TestFileStoreImplementsStore(t *testing.T) {
	var _ Store = (*FileStore)(nil)
}
