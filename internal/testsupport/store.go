package testsupport

import (
	"context"
	"testing"

	"lumina/internal/config"
	"lumina/internal/db"
	"lumina/internal/logging"
	"lumina/internal/queue"
	"lumina/internal/settings"
)

// MustOpenDB opens the shared database for tests and registers cleanup.
func MustOpenDB(t testing.TB, cfg *config.Config) *db.DB {
	t.Helper()

	database, err := db.Open(cfg)
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	t.Cleanup(func() {
		database.Close()
	})
	return database
}

// MustOpenStore opens a queue.Store for tests backed by a fresh database.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()
	return queue.NewStore(MustOpenDB(t, cfg))
}

// MustOpenSettings opens a seeded settings.Store for tests.
func MustOpenSettings(t testing.TB, cfg *config.Config) *settings.Store {
	t.Helper()

	store := settings.NewStore(MustOpenDB(t, cfg), logging.NewNop())
	if err := store.Init(context.Background(), settings.Defaults(cfg.StorageRoot())); err != nil {
		t.Fatalf("settings.Init: %v", err)
	}
	return store
}

// MustEnqueue adds a job for tests using the provided store.
func MustEnqueue(t testing.TB, store *queue.Store, payload queue.Payload, priority int) *queue.Job {
	t.Helper()

	job, err := store.Enqueue(context.Background(), payload, priority, 3)
	if err != nil {
		t.Fatalf("store.Enqueue: %v", err)
	}
	return job
}
