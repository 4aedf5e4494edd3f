package settings_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"lumina/internal/services"
	"lumina/internal/settings"
	"lumina/internal/testsupport"
)

func TestInitSeedsDefaultsIdempotently(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenSettings(t, cfg)
	ctx := context.Background()

	title, err := store.GetString(ctx, settings.NamespaceApp, "title", "")
	if err != nil {
		t.Fatalf("GetString: %v", err)
	}
	if title != "Lumina" {
		t.Fatalf("unexpected seeded title %q", title)
	}

	if err := store.Set(ctx, settings.NamespaceApp, "title", "My Gallery", "test", false); err != nil {
		t.Fatalf("Set: %v", err)
	}

	// Re-seeding must not clobber the customized value.
	if err := store.Init(ctx, settings.Defaults(cfg.StorageRoot())); err != nil {
		t.Fatalf("second Init: %v", err)
	}
	title, err = store.GetString(ctx, settings.NamespaceApp, "title", "")
	if err != nil {
		t.Fatalf("GetString after re-init: %v", err)
	}
	if title != "My Gallery" {
		t.Fatalf("re-init overwrote customized value, got %q", title)
	}
}

func TestGetReturnsFallbackForAbsentKey(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenSettings(t, cfg)

	value, err := store.Get(context.Background(), settings.NamespaceApp, "no-such-key", "fallback")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if value != "fallback" {
		t.Fatalf("expected fallback, got %#v", value)
	}
}

func TestSetRejectsUnknownSetting(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenSettings(t, cfg)

	err := store.Set(context.Background(), settings.NamespaceApp, "no-such-key", "x", "test", false)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestSetEnforcesReadonly(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenSettings(t, cfg)
	ctx := context.Background()

	err := store.Set(ctx, settings.NamespaceSystem, "firstLaunch", false, "test", false)
	if !errors.Is(err, services.ErrReadOnly) {
		t.Fatalf("expected readonly error, got %v", err)
	}

	// Privileged writers may flip readonly settings.
	if err := store.Set(ctx, settings.NamespaceSystem, "firstLaunch", false, "daemon", true); err != nil {
		t.Fatalf("privileged Set: %v", err)
	}
	first, err := store.GetBool(ctx, settings.NamespaceSystem, "firstLaunch", true)
	if err != nil {
		t.Fatalf("GetBool: %v", err)
	}
	if first {
		t.Fatal("privileged write did not persist")
	}
}

func TestSetRoundTripsTypedValues(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenSettings(t, cfg)
	ctx := context.Background()

	if err := store.Set(ctx, settings.NamespaceApp, "pageSize", float64(24), "test", false); err != nil {
		t.Fatalf("Set number: %v", err)
	}
	size, err := store.GetNumber(ctx, settings.NamespaceApp, "pageSize", 0)
	if err != nil {
		t.Fatalf("GetNumber: %v", err)
	}
	if size != 24 {
		t.Fatalf("expected 24, got %v", size)
	}

	if err := store.Set(ctx, settings.NamespaceMap, "style", map[string]any{"theme": "dark"}, "test", false); err != nil {
		t.Fatalf("Set json: %v", err)
	}
	style, err := store.Get(ctx, settings.NamespaceMap, "style", nil)
	if err != nil {
		t.Fatalf("Get json: %v", err)
	}
	obj, ok := style.(map[string]any)
	if !ok || obj["theme"] != "dark" {
		t.Fatalf("unexpected json value %#v", style)
	}
}

func TestSetCachesCanonicalNumber(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenSettings(t, cfg)
	ctx := context.Background()

	// serialize accepts int; the cached value must still be the float64 the
	// persisted form decodes to, so the next cache hit type-asserts cleanly.
	if err := store.Set(ctx, settings.NamespaceApp, "pageSize", 24, "test", false); err != nil {
		t.Fatalf("Set int: %v", err)
	}
	size, err := store.GetNumber(ctx, settings.NamespaceApp, "pageSize", 0)
	if err != nil {
		t.Fatalf("GetNumber after int Set: %v", err)
	}
	if size != 24 {
		t.Fatalf("expected 24, got %v", size)
	}
}

func TestGetMissDoesNotPinStaleValueOverConcurrentSet(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	database := testsupport.MustOpenDB(t, cfg)
	ctx := context.Background()

	seed := settings.NewStore(database, nil)
	if err := seed.Init(ctx, settings.Defaults(cfg.StorageRoot())); err != nil {
		t.Fatalf("Init: %v", err)
	}

	for i := 0; i < 50; i++ {
		// A fresh store starts with a cold cache, forcing Get down the
		// read-through path while Set races it on the same key.
		store := settings.NewStore(database, nil)
		want := fmt.Sprintf("Gallery %d", i)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := store.Get(ctx, settings.NamespaceApp, "title", ""); err != nil {
				t.Errorf("Get: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			if err := store.Set(ctx, settings.NamespaceApp, "title", want, "test", false); err != nil {
				t.Errorf("Set: %v", err)
			}
		}()
		wg.Wait()

		cached, err := store.GetString(ctx, settings.NamespaceApp, "title", "")
		if err != nil {
			t.Fatalf("GetString cached: %v", err)
		}
		fresh := settings.NewStore(database, nil)
		persisted, err := fresh.GetString(ctx, settings.NamespaceApp, "title", "")
		if err != nil {
			t.Fatalf("GetString persisted: %v", err)
		}
		if cached != persisted {
			t.Fatalf("iteration %d: cache %q diverged from persisted %q", i, cached, persisted)
		}
	}
}

func TestSetRejectsMismatchedType(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenSettings(t, cfg)

	err := store.Set(context.Background(), settings.NamespaceApp, "pageSize", "fifty", "test", false)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGetNamespace(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenSettings(t, cfg)

	values, err := store.GetNamespace(context.Background(), settings.NamespaceStorage)
	if err != nil {
		t.Fatalf("GetNamespace: %v", err)
	}
	if values[settings.KeyStorageProvider] != "local" {
		t.Fatalf("expected local provider, got %#v", values[settings.KeyStorageProvider])
	}
	if values[settings.KeyLocalBasePath] != cfg.StorageRoot() {
		t.Fatalf("unexpected local base path %#v", values[settings.KeyLocalBasePath])
	}
}

func TestSchemaRedactsSecretsForUnprivilegedCallers(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenSettings(t, cfg)
	ctx := context.Background()

	if err := store.Set(ctx, settings.NamespaceStorage, "s3.secretAccessKey", "hunter2", "test", false); err != nil {
		t.Fatalf("Set secret: %v", err)
	}

	findSecret := func(entries []settings.SchemaEntry) *settings.SchemaEntry {
		for i := range entries {
			if entries[i].Namespace == settings.NamespaceStorage && entries[i].Key == "s3.secretAccessKey" {
				return &entries[i]
			}
		}
		return nil
	}

	public, err := store.Schema(ctx, false)
	if err != nil {
		t.Fatalf("Schema: %v", err)
	}
	entry := findSecret(public)
	if entry == nil {
		t.Fatal("secret entry missing from schema")
	}
	if entry.Value != nil {
		t.Fatalf("secret value leaked to unprivileged schema: %#v", entry.Value)
	}

	privileged, err := store.Schema(ctx, true)
	if err != nil {
		t.Fatalf("privileged Schema: %v", err)
	}
	entry = findSecret(privileged)
	if entry == nil || entry.Value != "hunter2" {
		t.Fatalf("privileged schema should expose secret, got %#v", entry)
	}
}

func TestPublicExcludesSecretsAndInternal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenSettings(t, cfg)

	public, err := store.Public(context.Background())
	if err != nil {
		t.Fatalf("Public: %v", err)
	}
	if _, ok := public[settings.NamespaceApp]["title"]; !ok {
		t.Fatal("public app title missing")
	}
	if _, ok := public[settings.NamespaceStorage]["s3.secretAccessKey"]; ok {
		t.Fatal("secret key leaked into public settings")
	}
	if _, ok := public[settings.NamespaceSystem]["firstLaunch"]; ok {
		t.Fatal("internal setting leaked into public settings")
	}
}

func TestOnChangeFiresOutsideInitOnly(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	database := testsupport.MustOpenDB(t, cfg)
	store := settings.NewStore(database, nil)

	var changes []string
	store.OnChange(func(namespace, key string) {
		changes = append(changes, namespace+":"+key)
	})

	ctx := context.Background()
	if err := store.Init(ctx, settings.Defaults(cfg.StorageRoot())); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if len(changes) != 0 {
		t.Fatalf("hooks fired during init: %v", changes)
	}

	if err := store.Set(ctx, settings.NamespaceApp, "title", "Changed", "test", false); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if len(changes) != 1 || changes[0] != "app:title" {
		t.Fatalf("unexpected hook calls %v", changes)
	}
}
