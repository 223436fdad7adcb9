package store

import (
	"context"
	"errors"
	"testing"

	"github.com/jcom-dev/weathergrid/internal/wmserr"
)

func TestLocalFSPutGetDelete(t *testing.T) {
	ctx := context.Background()
	s := NewLocalFS(t.TempDir())

	data := []byte("chunk bytes")
	if err := s.Put(ctx, "0/c/1/2", data); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := s.Get(ctx, "0/c/1/2")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("got %q want %q", got, data)
	}

	if err := s.Delete(ctx, "0/c/1/2"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if err := s.Delete(ctx, "0/c/1/2"); err != nil {
		t.Errorf("Delete of missing path should be idempotent, got %v", err)
	}
}

func TestLocalFSGetMissingIsNotFound(t *testing.T) {
	s := NewLocalFS(t.TempDir())
	_, err := s.Get(context.Background(), "does/not/exist")
	var e *wmserr.Error
	if !errors.As(err, &e) || e.Kind != wmserr.KindNotFound {
		t.Fatalf("expected KindNotFound, got %v", err)
	}
}

func TestLocalFSList(t *testing.T) {
	ctx := context.Background()
	s := NewLocalFS(t.TempDir())

	for _, p := range []string{"arr/0/c/0/0", "arr/0/c/0/1", "arr/1/c/0/0"} {
		if err := s.Put(ctx, p, []byte("x")); err != nil {
			t.Fatalf("Put %s: %v", p, err)
		}
	}

	paths, err := s.List(ctx, "arr/0/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("expected 2 paths under arr/0/, got %v", paths)
	}
}
