package api

import (
	"encoding/json"
	"time"

	"lumina/internal/photos"
	"lumina/internal/queue"
)

// FromJob converts a stored queue job into its transport form. The payload
// envelope is passed through verbatim so clients see exactly what will run.
func FromJob(job *queue.Job) QueueJob {
	if job == nil {
		return QueueJob{}
	}
	out := QueueJob{
		ID:           job.ID,
		Payload:      json.RawMessage(job.RawPayload),
		Status:       string(job.Status),
		Stage:        string(job.StatusStage),
		Priority:     job.Priority,
		Attempts:     job.Attempts,
		MaxAttempts:  job.MaxAttempts,
		ErrorMessage: job.ErrorMessage,
	}
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal([]byte(job.RawPayload), &envelope); err == nil {
		out.Type = envelope.Type
	}
	if !job.CreatedAt.IsZero() {
		out.CreatedAt = job.CreatedAt.Format(dateTimeFormat)
	}
	if job.CompletedAt != nil {
		out.CompletedAt = job.CompletedAt.Format(dateTimeFormat)
	}
	return out
}

// FromJobs converts a slice of queue jobs, preserving order.
func FromJobs(jobs []*queue.Job) []QueueJob {
	if len(jobs) == 0 {
		return nil
	}
	out := make([]QueueJob, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, FromJob(job))
	}
	return out
}

// FromPhoto converts a stored photo into its transport form. Derived storage
// keys stay internal; clients navigate via the public URLs.
func FromPhoto(photo *photos.Photo) Photo {
	if photo == nil {
		return Photo{}
	}
	out := Photo{
		ID:                photo.ID,
		Title:             photo.Title,
		Description:       photo.Description,
		Width:             photo.Width,
		Height:            photo.Height,
		AspectRatio:       photo.AspectRatio,
		StorageKey:        photo.StorageKey,
		FileSize:          photo.FileSize,
		OriginalURL:       photo.OriginalURL,
		ThumbnailURL:      photo.ThumbnailURL,
		ThumbnailHash:     photo.ThumbnailHash,
		Latitude:          photo.Latitude,
		Longitude:         photo.Longitude,
		Country:           photo.Country,
		City:              photo.City,
		LocationName:      photo.LocationName,
		IsLivePhoto:       photo.IsLivePhoto,
		LivePhotoVideoURL: photo.LivePhotoVideoURL,
	}
	if photo.EXIF != "" && json.Valid([]byte(photo.EXIF)) {
		out.EXIF = json.RawMessage(photo.EXIF)
	}
	out.DateTaken = formatTimePtr(photo.DateTaken)
	out.LastModified = formatTimePtr(photo.LastModified)
	return out
}

// FromPhotos converts a slice of photos, preserving order.
func FromPhotos(items []*photos.Photo) []Photo {
	if len(items) == 0 {
		return nil
	}
	out := make([]Photo, 0, len(items))
	for _, item := range items {
		out = append(out, FromPhoto(item))
	}
	return out
}

// FromStats normalizes queue stats keys for transport.
func FromStats(stats map[queue.Status]int) map[string]int {
	out := make(map[string]int, len(stats))
	for status, count := range stats {
		out[string(status)] = count
	}
	return out
}

func formatTimePtr(value *time.Time) string {
	if value == nil || value.IsZero() {
		return ""
	}
	return value.Format(dateTimeFormat)
}
