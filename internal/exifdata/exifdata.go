// Package exifdata extracts camera metadata from image bytes.
package exifdata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
)

// Metadata is the extracted subset of EXIF fields the gallery keeps.
type Metadata struct {
	DateTaken    *time.Time `json:"dateTaken,omitempty"`
	CameraMake   string     `json:"cameraMake,omitempty"`
	CameraModel  string     `json:"cameraModel,omitempty"`
	LensModel    string     `json:"lensModel,omitempty"`
	ExposureTime string     `json:"exposureTime,omitempty"`
	FNumber      float64    `json:"fNumber,omitempty"`
	ISO          int        `json:"iso,omitempty"`
	FocalLength  float64    `json:"focalLength,omitempty"`
	Orientation  int        `json:"orientation,omitempty"`
	Latitude     *float64   `json:"latitude,omitempty"`
	Longitude    *float64   `json:"longitude,omitempty"`
}

// JSON renders the metadata for persistence in the photo record.
func (m *Metadata) JSON() (string, error) {
	encoded, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode exif metadata: %w", err)
	}
	return string(encoded), nil
}

// Extract parses EXIF from raw image bytes. Images that carry no EXIF block
// return (nil, nil); extraction never fails a pipeline run for formats
// without metadata.
func Extract(data []byte) (*Metadata, error) {
	parsed, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		// goexif has no sentinel for "no EXIF present"; any decode
		// failure means no usable metadata.
		return nil, nil
	}

	meta := &Metadata{}
	if taken, err := parsed.DateTime(); err == nil {
		utc := taken.UTC()
		meta.DateTaken = &utc
	}
	meta.CameraMake = stringField(parsed, exif.Make)
	meta.CameraModel = stringField(parsed, exif.Model)
	meta.LensModel = stringField(parsed, exif.LensModel)
	meta.FNumber = ratField(parsed, exif.FNumber)
	meta.FocalLength = ratField(parsed, exif.FocalLength)
	meta.ISO = intField(parsed, exif.ISOSpeedRatings)
	meta.Orientation = intField(parsed, exif.Orientation)
	meta.ExposureTime = exposureField(parsed)

	if lat, lon, err := parsed.LatLong(); err == nil {
		meta.Latitude = &lat
		meta.Longitude = &lon
	}
	return meta, nil
}

func stringField(parsed *exif.Exif, name exif.FieldName) string {
	tag, err := parsed.Get(name)
	if err != nil {
		return ""
	}
	value, err := tag.StringVal()
	if err != nil {
		return ""
	}
	return value
}

func ratField(parsed *exif.Exif, name exif.FieldName) float64 {
	tag, err := parsed.Get(name)
	if err != nil {
		return 0
	}
	numerator, denominator, err := tag.Rat2(0)
	if err != nil || denominator == 0 {
		return 0
	}
	return float64(numerator) / float64(denominator)
}

func intField(parsed *exif.Exif, name exif.FieldName) int {
	tag, err := parsed.Get(name)
	if err != nil {
		return 0
	}
	value, err := tag.Int(0)
	if err != nil {
		return 0
	}
	return value
}

// exposureField keeps the photographic 1/N form instead of a decimal.
func exposureField(parsed *exif.Exif) string {
	tag, err := parsed.Get(exif.ExposureTime)
	if err != nil || tag.Format() != tiff.RatVal {
		return ""
	}
	numerator, denominator, err := tag.Rat2(0)
	if err != nil || denominator == 0 {
		return ""
	}
	if numerator == 1 {
		return fmt.Sprintf("1/%d", denominator)
	}
	return fmt.Sprintf("%d/%d", numerator, denominator)
}
