package storage

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func newLocalProvider(t *testing.T) *LocalProvider {
	t.Helper()
	provider, err := NewLocalProvider(LocalConfig{
		BasePath: t.TempDir(),
		BaseURL:  "/storage",
	})
	if err != nil {
		t.Fatalf("NewLocalProvider: %v", err)
	}
	return provider
}

func TestLocalCreateGetRoundTrip(t *testing.T) {
	provider := newLocalProvider(t)
	ctx := context.Background()
	payload := []byte("image bytes")

	obj, err := provider.Create(ctx, "img/a.jpg", payload, "image/jpeg")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if obj.Key != "img/a.jpg" {
		t.Fatalf("unexpected key %q", obj.Key)
	}
	if obj.Size != int64(len(payload)) {
		t.Fatalf("unexpected size %d", obj.Size)
	}
	if obj.ETag == "" || obj.LastModified == nil {
		t.Fatalf("metadata not populated: %+v", obj)
	}

	data, err := provider.Get(ctx, "img/a.jpg")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Fatal("fetched bytes differ from written bytes")
	}
}

func TestLocalCreateOverwritesOnKeyCollision(t *testing.T) {
	provider := newLocalProvider(t)
	ctx := context.Background()

	if _, err := provider.Create(ctx, "img/a.jpg", []byte("first"), ""); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := provider.Create(ctx, "img/a.jpg", []byte("second"), ""); err != nil {
		t.Fatalf("overwrite Create: %v", err)
	}

	data, err := provider.Get(ctx, "img/a.jpg")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(data) != "second" {
		t.Fatalf("expected overwrite, got %q", data)
	}
}

func TestLocalAbsentKeyIsNotAnError(t *testing.T) {
	provider := newLocalProvider(t)
	ctx := context.Background()

	data, err := provider.Get(ctx, "missing.jpg")
	if err != nil {
		t.Fatalf("Get absent: %v", err)
	}
	if data != nil {
		t.Fatalf("expected nil bytes for absent key, got %d bytes", len(data))
	}

	meta, err := provider.GetFileMeta(ctx, "missing.jpg")
	if err != nil {
		t.Fatalf("GetFileMeta absent: %v", err)
	}
	if meta != nil {
		t.Fatalf("expected nil meta for absent key, got %+v", meta)
	}

	if err := provider.Delete(ctx, "missing.jpg"); err != nil {
		t.Fatalf("Delete absent should succeed: %v", err)
	}
}

func TestLocalDeleteRemovesObject(t *testing.T) {
	provider := newLocalProvider(t)
	ctx := context.Background()

	if _, err := provider.Create(ctx, "img/a.jpg", []byte("x"), ""); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := provider.Delete(ctx, "img/a.jpg"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	data, err := provider.Get(ctx, "img/a.jpg")
	if err != nil || data != nil {
		t.Fatalf("expected absent after delete, data=%v err=%v", data, err)
	}
}

func TestLocalPublicURL(t *testing.T) {
	cases := []struct {
		name string
		cfg  LocalConfig
		key  string
		want string
	}{
		{"base url", LocalConfig{BasePath: "/x", BaseURL: "/storage"}, "img/a.jpg", "/storage/img/a.jpg"},
		{"prefix", LocalConfig{BasePath: "/x", BaseURL: "/storage", Prefix: "gallery"}, "img/a.jpg", "/storage/gallery/img/a.jpg"},
		{"trailing slash", LocalConfig{BasePath: "/x", BaseURL: "https://cdn.example.com/"}, "a.jpg", "https://cdn.example.com/a.jpg"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			provider := &LocalProvider{cfg: tc.cfg}
			if got := provider.GetPublicURL(tc.key); got != tc.want {
				t.Fatalf("GetPublicURL = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestLocalListImagesFiltersExtensions(t *testing.T) {
	provider := newLocalProvider(t)
	ctx := context.Background()

	for _, key := range []string{"a.jpg", "nested/b.PNG", "c.mp4", "d.txt"} {
		if _, err := provider.Create(ctx, key, []byte("x"), ""); err != nil {
			t.Fatalf("Create %s: %v", key, err)
		}
	}

	all, err := provider.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 objects, got %d", len(all))
	}

	images, err := provider.ListImages(ctx)
	if err != nil {
		t.Fatalf("ListImages: %v", err)
	}
	if len(images) != 2 {
		t.Fatalf("expected 2 images, got %d: %+v", len(images), images)
	}
	for _, obj := range images {
		if obj.Key != "a.jpg" && obj.Key != "nested/b.PNG" {
			t.Fatalf("unexpected image key %q", obj.Key)
		}
	}
}

func TestLocalKeySanitization(t *testing.T) {
	provider := newLocalProvider(t)
	ctx := context.Background()

	if _, err := provider.Create(ctx, "../escape.jpg", []byte("x"), ""); err != nil {
		t.Fatalf("Create: %v", err)
	}
	// Traversal segments collapse inside the root rather than escaping it.
	data, err := provider.Get(ctx, "escape.jpg")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if data == nil {
		t.Fatal("sanitized key not found under storage root")
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(provider.cfg.BasePath), "escape.jpg")); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("traversal escaped the storage root: %v", err)
	}
}
