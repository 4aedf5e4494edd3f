package exifdata

import (
	"bytes"
	"image"
	"image/jpeg"
	"testing"
	"time"
)

func TestExtractWithoutEXIFReturnsAbsent(t *testing.T) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8)), nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}

	meta, err := Extract(buf.Bytes())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if meta != nil {
		t.Fatalf("expected nil metadata for exif-free image, got %+v", meta)
	}
}

func TestExtractOnGarbageBytesReturnsAbsent(t *testing.T) {
	meta, err := Extract([]byte("not an image at all"))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if meta != nil {
		t.Fatalf("expected nil metadata, got %+v", meta)
	}
}

func TestMetadataJSONOmitsEmptyFields(t *testing.T) {
	taken := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	meta := &Metadata{DateTaken: &taken, CameraMake: "Apple", ISO: 100}

	encoded, err := meta.JSON()
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}
	if !bytes.Contains([]byte(encoded), []byte(`"cameraMake":"Apple"`)) {
		t.Fatalf("camera make missing from %s", encoded)
	}
	if bytes.Contains([]byte(encoded), []byte("lensModel")) {
		t.Fatalf("empty field serialized: %s", encoded)
	}
}
