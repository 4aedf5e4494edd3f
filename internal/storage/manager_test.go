package storage_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"lumina/internal/services"
	"lumina/internal/settings"
	"lumina/internal/storage"
	"lumina/internal/testsupport"
)

func newManager(t *testing.T) (*storage.Manager, *settings.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	database := testsupport.MustOpenDB(t, cfg)
	settingsStore := settings.NewStore(database, nil)
	if err := settingsStore.Init(context.Background(), settings.Defaults(cfg.StorageRoot())); err != nil {
		t.Fatalf("settings.Init: %v", err)
	}
	return storage.NewManager(database, settingsStore, nil), settingsStore
}

func TestManagerFailsBeforeInit(t *testing.T) {
	manager, _ := newManager(t)

	if _, err := manager.GetActiveProvider(context.Background()); !errors.Is(err, services.ErrNotReady) {
		t.Fatalf("expected not-ready error, got %v", err)
	}
}

func TestManagerResolvesSeededLocalProvider(t *testing.T) {
	manager, _ := newManager(t)
	ctx := context.Background()

	if err := manager.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}

	provider, err := manager.GetActiveProvider(ctx)
	if err != nil {
		t.Fatalf("GetActiveProvider: %v", err)
	}
	if _, ok := provider.(*storage.LocalProvider); !ok {
		t.Fatalf("expected local provider, got %T", provider)
	}

	again, err := manager.GetActiveProvider(ctx)
	if err != nil {
		t.Fatalf("second GetActiveProvider: %v", err)
	}
	if again != provider {
		t.Fatal("unchanged config should reuse the cached instance")
	}
}

func TestManagerInitIsIdempotent(t *testing.T) {
	manager, _ := newManager(t)
	ctx := context.Background()

	if err := manager.Init(ctx); err != nil {
		t.Fatalf("first Init: %v", err)
	}
	if err := manager.Init(ctx); err != nil {
		t.Fatalf("second Init: %v", err)
	}
}

func TestSwitchProviderReplacesActiveInstance(t *testing.T) {
	manager, _ := newManager(t)
	ctx := context.Background()

	if err := manager.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	before, err := manager.GetActiveProvider(ctx)
	if err != nil {
		t.Fatalf("GetActiveProvider: %v", err)
	}

	newRoot := filepath.Join(t.TempDir(), "other")
	if err := manager.SwitchProvider(ctx, storage.LocalConfig{BasePath: newRoot, BaseURL: "/alt"}, "test"); err != nil {
		t.Fatalf("SwitchProvider: %v", err)
	}

	after, err := manager.GetActiveProvider(ctx)
	if err != nil {
		t.Fatalf("GetActiveProvider after switch: %v", err)
	}
	if after == before {
		t.Fatal("switch did not replace the cached provider instance")
	}
	if got := after.GetPublicURL("a.jpg"); got != "/alt/a.jpg" {
		t.Fatalf("new provider not built from new config, url %q", got)
	}
}

func TestSwitchProviderRejectsInvalidConfig(t *testing.T) {
	manager, _ := newManager(t)
	ctx := context.Background()

	if err := manager.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	err := manager.SwitchProvider(ctx, storage.S3Config{Bucket: ""}, "test")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSettingsWriteInvalidatesCachedProvider(t *testing.T) {
	manager, settingsStore := newManager(t)
	ctx := context.Background()

	if err := manager.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	before, err := manager.GetActiveProvider(ctx)
	if err != nil {
		t.Fatalf("GetActiveProvider: %v", err)
	}

	// Touching the storage namespace drops the cached instance; the next
	// resolve rebuilds from persisted config.
	if err := settingsStore.Set(ctx, settings.NamespaceStorage, settings.KeyLocalBaseURL, "/elsewhere", "test", false); err != nil {
		t.Fatalf("Set: %v", err)
	}
	after, err := manager.GetActiveProvider(ctx)
	if err != nil {
		t.Fatalf("GetActiveProvider after invalidation: %v", err)
	}
	if after == before {
		t.Fatal("settings write did not invalidate the cached provider")
	}
}

func TestLocalSettingsWriteTakesEffectOnNextResolve(t *testing.T) {
	manager, settingsStore := newManager(t)
	ctx := context.Background()

	if err := manager.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if _, err := manager.GetActiveProvider(ctx); err != nil {
		t.Fatalf("GetActiveProvider: %v", err)
	}

	// The local backend record is seeded once at Init; edits to the live
	// settings keys must still reach later resolutions.
	if err := settingsStore.Set(ctx, settings.NamespaceStorage, settings.KeyLocalBaseURL, "/media", "test", false); err != nil {
		t.Fatalf("Set: %v", err)
	}

	provider, err := manager.GetActiveProvider(ctx)
	if err != nil {
		t.Fatalf("GetActiveProvider after write: %v", err)
	}
	if got := provider.GetPublicURL("a.jpg"); got != "/media/a.jpg" {
		t.Fatalf("base URL setting ignored, url %q", got)
	}
}

func TestSwitchProviderKeepsLocalSettingsInStep(t *testing.T) {
	manager, settingsStore := newManager(t)
	ctx := context.Background()

	if err := manager.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}

	newRoot := filepath.Join(t.TempDir(), "other")
	if err := manager.SwitchProvider(ctx, storage.LocalConfig{BasePath: newRoot, BaseURL: "/alt"}, "test"); err != nil {
		t.Fatalf("SwitchProvider: %v", err)
	}

	basePath, err := settingsStore.GetString(ctx, settings.NamespaceStorage, settings.KeyLocalBasePath, "")
	if err != nil {
		t.Fatalf("GetString basePath: %v", err)
	}
	if basePath != newRoot {
		t.Fatalf("basePath setting = %q, want %q", basePath, newRoot)
	}
	baseURL, err := settingsStore.GetString(ctx, settings.NamespaceStorage, settings.KeyLocalBaseURL, "")
	if err != nil {
		t.Fatalf("GetString baseURL: %v", err)
	}
	if baseURL != "/alt" {
		t.Fatalf("baseURL setting = %q, want %q", baseURL, "/alt")
	}

	provider, err := manager.GetActiveProvider(ctx)
	if err != nil {
		t.Fatalf("GetActiveProvider: %v", err)
	}
	if got := provider.GetPublicURL("a.jpg"); got != "/alt/a.jpg" {
		t.Fatalf("stale settings overrode switched config, url %q", got)
	}
}
