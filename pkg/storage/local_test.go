package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLocal_PutAndDelete(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocal(dir, "http://localhost:8000/media")
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}

	obj, err := s.Put(context.Background(), "reports", "Rapport Final.PDF", strings.NewReader("%PDF-1.7"), "application/pdf")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !strings.HasPrefix(obj.Key, "reports/") || !strings.HasSuffix(obj.Key, ".pdf") {
		t.Errorf("unexpected key %q", obj.Key)
	}
	if obj.Size != 8 {
		t.Errorf("expected size 8, got %d", obj.Size)
	}
	if obj.URL != "http://localhost:8000/media/"+obj.Key {
		t.Errorf("unexpected url %q", obj.URL)
	}

	p := filepath.Join(dir, filepath.FromSlash(obj.Key))
	if _, err := os.Stat(p); err != nil {
		t.Fatalf("stored file missing: %v", err)
	}

	if err := s.Delete(context.Background(), obj.Key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(p); !os.IsNotExist(err) {
		t.Errorf("file should be gone, stat err=%v", err)
	}

	// deleting twice is fine
	if err := s.Delete(context.Background(), obj.Key); err != nil {
		t.Errorf("second Delete: %v", err)
	}
}

func TestLocal_KeyCannotEscapeRoot(t *testing.T) {
	dir := t.TempDir()
	s, _ := NewLocal(dir, "")

	p, err := s.path("../../etc/passwd")
	if err != nil {
		t.Fatalf("path: %v", err)
	}
	if !strings.HasPrefix(p, dir) {
		t.Errorf("path %q escapes root %q", p, dir)
	}
}

func TestLocal_EmptyKey(t *testing.T) {
	s, _ := NewLocal(t.TempDir(), "")
	if err := s.Delete(context.Background(), ""); err != ErrEmptyKey {
		t.Errorf("expected ErrEmptyKey, got %v", err)
	}
}

func TestBuildKey_DefaultDir(t *testing.T) {
	k := BuildKey("", "cv.docx")
	if !strings.HasPrefix(k, "files/") || !strings.HasSuffix(k, ".docx") {
		t.Errorf("unexpected key %q", k)
	}
}
