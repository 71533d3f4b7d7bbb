package fs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pictor/internal/blob/core"
)

func newTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return store
}

func TestStorePutGetHeadListDelete(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	info, err := store.Put(ctx, "thumbnails/t1", bytes.NewReader([]byte("jpeg")), core.PutOptions{ContentType: "image/jpeg", Metadata: map[string]string{"owner": "u1"}})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Key != "thumbnails/t1" || info.Size != 4 || info.ETag == "" {
		t.Fatalf("unexpected info %+v", info)
	}
	replaced, err := store.Put(ctx, "thumbnails/t1", bytes.NewReader([]byte("png!!")), core.PutOptions{ContentType: "image/png"})
	if err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if replaced.ETag == info.ETag {
		t.Fatalf("expected etag to change on overwrite")
	}
	head, err := store.Head(ctx, "thumbnails/t1")
	if err != nil || head.ContentType != "image/png" || head.Size != 5 {
		t.Fatalf("unexpected head %+v err=%v", head, err)
	}
	got, rc, err := store.Get(ctx, "thumbnails/t1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != "png!!" || got.ETag != head.ETag {
		t.Fatalf("unexpected get %q %+v", body, got)
	}

	if _, err := store.Put(ctx, "other/x", bytes.NewReader(nil), core.PutOptions{}); err != nil {
		t.Fatalf("put other: %v", err)
	}
	list, err := store.List(ctx, "thumbnails/")
	if err != nil || len(list) != 1 || list[0].Key != "thumbnails/t1" {
		t.Fatalf("unexpected list %+v err=%v", list, err)
	}

	url, err := store.PresignURL(ctx, "thumbnails/t1", core.SignedURLOptions{})
	if err != nil || !strings.HasPrefix(url, "file://") {
		t.Fatalf("unexpected url %q err=%v", url, err)
	}

	ok, err := store.Delete(ctx, "thumbnails/t1")
	if err != nil || !ok {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}
	if ok, _ := store.Delete(ctx, "thumbnails/t1"); ok {
		t.Fatalf("expected missing delete to report false")
	}
	if _, err := store.Head(ctx, "thumbnails/t1"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, _, err := store.Get(ctx, "thumbnails/t1"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSanitizeKeyRejectsEscapes(t *testing.T) {
	for _, key := range []string{"", "  ", "/abs", "../up", "a/../../b", "x.meta"} {
		if _, err := sanitizeKey(key); err == nil {
			t.Fatalf("expected %q to be rejected", key)
		}
	}
	if got, err := sanitizeKey("thumbnails/./a"); err != nil || got != "thumbnails/a" {
		t.Fatalf("unexpected clean key %q err=%v", got, err)
	}
}

func TestCorruptSidecarSurfaces(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	if _, err := store.Put(ctx, "k", bytes.NewReader([]byte("v")), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := os.WriteFile(filepath.Join(store.Root(), "k.meta"), []byte("{"), 0o600); err != nil {
		t.Fatalf("corrupt: %v", err)
	}
	if _, err := store.Head(ctx, "k"); err == nil || errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected decode error, got %v", err)
	}
	if _, err := store.List(ctx, ""); err == nil {
		t.Fatalf("expected list to surface decode error")
	}
}

func TestNewDefaultsRoot(t *testing.T) {
	t.Chdir(t.TempDir())
	store, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if store.Root() != "thumbnails" || store.Driver() != core.DriverFilesystem {
		t.Fatalf("unexpected store %+v", store)
	}
}
