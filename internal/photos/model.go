// Package photos persists gallery photo records produced by the processing
// pipeline.
package photos

import "time"

// Photo is one gallery entry. Derived fields are filled in stage by stage as
// a pipeline job progresses, so most columns are optional.
type Photo struct {
	ID          string
	Title       string
	Description string

	Width       int
	Height      int
	AspectRatio float64
	DateTaken   *time.Time

	StorageKey   string
	FileSize     int64
	LastModified *time.Time

	OriginalURL   string
	ThumbnailKey  string
	ThumbnailURL  string
	ThumbnailHash string

	EXIF string

	Latitude     *float64
	Longitude    *float64
	Country      string
	City         string
	LocationName string

	IsLivePhoto       bool
	LivePhotoVideoURL string
	LivePhotoVideoKey string
}

// HasCoordinates reports whether both GPS fields are set.
func (p *Photo) HasCoordinates() bool {
	return p.Latitude != nil && p.Longitude != nil
}
