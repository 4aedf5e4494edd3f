package photos_test

import (
	"context"
	"testing"
	"time"

	"lumina/internal/photos"
	"lumina/internal/testsupport"
)

func newStore(t *testing.T) *photos.Store {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	return photos.NewStore(testsupport.MustOpenDB(t, cfg))
}

func TestUpsertInsertsAndUpdates(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	taken := time.Date(2025, 4, 12, 9, 30, 0, 0, time.UTC)
	lat, lon := 48.8584, 2.2945
	photo := &photos.Photo{
		ID:          "p1",
		Width:       4000,
		Height:      3000,
		AspectRatio: 4.0 / 3.0,
		DateTaken:   &taken,
		StorageKey:  "img/a.jpg",
		FileSize:    123456,
		Latitude:    &lat,
		Longitude:   &lon,
	}
	if err := store.Upsert(ctx, photo); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, err := store.GetByID(ctx, "p1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got == nil {
		t.Fatal("photo not found after insert")
	}
	if got.Width != 4000 || got.StorageKey != "img/a.jpg" {
		t.Fatalf("unexpected record %+v", got)
	}
	if got.DateTaken == nil || !got.DateTaken.Equal(taken) {
		t.Fatalf("date taken mismatch: %v", got.DateTaken)
	}
	if !got.HasCoordinates() || *got.Latitude != lat {
		t.Fatalf("coordinates not persisted: %+v", got)
	}

	photo.ThumbnailKey = "thumbnails/p1.jpeg"
	photo.Country = "France"
	if err := store.Upsert(ctx, photo); err != nil {
		t.Fatalf("second Upsert: %v", err)
	}
	got, err = store.GetByID(ctx, "p1")
	if err != nil {
		t.Fatalf("GetByID after update: %v", err)
	}
	if got.ThumbnailKey != "thumbnails/p1.jpeg" || got.Country != "France" {
		t.Fatalf("update not applied: %+v", got)
	}
}

func TestGetByIDReturnsNilForAbsentRecord(t *testing.T) {
	store := newStore(t)

	got, err := store.GetByID(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}

func TestFindByStorageKey(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	if err := store.Upsert(ctx, &photos.Photo{ID: "p1", StorageKey: "img/a.jpg"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, err := store.FindByStorageKey(ctx, "img/a.jpg")
	if err != nil {
		t.Fatalf("FindByStorageKey: %v", err)
	}
	if got == nil || got.ID != "p1" {
		t.Fatalf("unexpected result %+v", got)
	}

	got, err = store.FindByStorageKey(ctx, "img/other.jpg")
	if err != nil || got != nil {
		t.Fatalf("expected nil for unknown key, got %+v err=%v", got, err)
	}
}

func TestFindByBaseNamePairsAcrossExtensions(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	if err := store.Upsert(ctx, &photos.Photo{ID: "p1", StorageKey: "img/IMG_0042.heic"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, err := store.FindByBaseName(ctx, "img/IMG_0042.mov")
	if err != nil {
		t.Fatalf("FindByBaseName: %v", err)
	}
	if got == nil || got.ID != "p1" {
		t.Fatalf("expected still frame match, got %+v", got)
	}
}

func TestFindByBaseNameMatchesUnderscoresLiterally(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	// IMGX7 would pair with IMG_7 if the underscore acted as a LIKE
	// single-character wildcard.
	if err := store.Upsert(ctx, &photos.Photo{ID: "wrong", StorageKey: "img/IMGX7.jpg"}); err != nil {
		t.Fatalf("Upsert decoy: %v", err)
	}

	got, err := store.FindByBaseName(ctx, "img/IMG_7.mov")
	if err != nil {
		t.Fatalf("FindByBaseName: %v", err)
	}
	if got != nil {
		t.Fatalf("paired with unrelated photo %+v", got)
	}

	if err := store.Upsert(ctx, &photos.Photo{ID: "right", StorageKey: "img/IMG_7.jpg"}); err != nil {
		t.Fatalf("Upsert still frame: %v", err)
	}
	got, err = store.FindByBaseName(ctx, "img/IMG_7.mov")
	if err != nil {
		t.Fatalf("FindByBaseName: %v", err)
	}
	if got == nil || got.ID != "right" {
		t.Fatalf("expected underscore base to pair, got %+v", got)
	}
}

func TestListOrdersByDateTakenDescending(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	fixtures := []*photos.Photo{
		{ID: "old", DateTaken: &older},
		{ID: "new", DateTaken: &newer},
		{ID: "untimed"},
	}
	for _, photo := range fixtures {
		if err := store.Upsert(ctx, photo); err != nil {
			t.Fatalf("Upsert %s: %v", photo.ID, err)
		}
	}

	listed, err := store.List(ctx, 10, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(listed) != 3 {
		t.Fatalf("expected 3 photos, got %d", len(listed))
	}
	if listed[0].ID != "new" || listed[1].ID != "old" || listed[2].ID != "untimed" {
		t.Fatalf("unexpected order: %s, %s, %s", listed[0].ID, listed[1].ID, listed[2].ID)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	if err := store.Upsert(ctx, &photos.Photo{ID: "p1"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := store.Delete(ctx, "p1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := store.Delete(ctx, "p1"); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected empty table, count=%d", count)
	}
}
