package services_test

import (
	"errors"
	"strings"
	"testing"

	"lumina/internal/services"
)

func TestWrapTagsMarker(t *testing.T) {
	base := errors.New("disk full")
	err := services.Wrap(services.ErrProviderUnavailable, "storage", "create", "writing blob", base)

	if !errors.Is(err, services.ErrProviderUnavailable) {
		t.Fatalf("expected provider unavailable marker, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped base error, got %v", err)
	}
	if !strings.Contains(err.Error(), "storage: create: writing blob") {
		t.Fatalf("unexpected detail: %v", err)
	}
}

func TestWrapDefaultsToStageFailure(t *testing.T) {
	err := services.Wrap(nil, "pipeline", "thumbnail", "", nil)
	if !errors.Is(err, services.ErrStageFailure) {
		t.Fatalf("expected stage failure marker, got %v", err)
	}
}

func TestWrapWithoutDetailParts(t *testing.T) {
	err := services.Wrap(services.ErrNotFound, "", "", "", nil)
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected placeholder detail, got %v", err)
	}
}
