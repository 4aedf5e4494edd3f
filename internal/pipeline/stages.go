package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"

	_ "image/gif"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"lumina/internal/exifdata"
	"lumina/internal/logging"
	"lumina/internal/photos"
	"lumina/internal/queue"
	"lumina/internal/services"
)

// preprocess fetches the original bytes, reads image dimensions, and scans
// for an embedded motion-photo video. An absent storage key fails the stage.
func (r *Runner) preprocess(ctx context.Context, state *runState) error {
	photoPayload, ok := state.payload.(queue.PhotoPayload)
	if !ok {
		return services.Wrap(services.ErrStageFailure, "pipeline", "preprocessing", fmt.Sprintf("unexpected payload type %q", state.payload.Type()), nil)
	}

	data, err := state.provider.Get(ctx, photoPayload.StorageKey)
	if err != nil {
		return err
	}
	if data == nil {
		return services.Wrap(services.ErrStageFailure, "pipeline", "preprocessing", fmt.Sprintf("storage key %q does not exist", photoPayload.StorageKey), nil)
	}
	state.original = data

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return services.Wrap(services.ErrStageFailure, "pipeline", "preprocessing", fmt.Sprintf("decode %q", photoPayload.StorageKey), err)
	}
	state.width = cfg.Width
	state.height = cfg.Height
	state.motionVideo = extractMotionVideo(data)
	return nil
}

// recordMetadata creates or updates the photo row for the original. Reusing
// an existing row keyed by storage key makes re-ingestion idempotent.
func (r *Runner) recordMetadata(ctx context.Context, state *runState) error {
	photoPayload := state.payload.(queue.PhotoPayload)

	photo, err := r.photos.FindByStorageKey(ctx, photoPayload.StorageKey)
	if err != nil {
		return err
	}
	if photo == nil {
		photo = &photos.Photo{ID: uuid.NewString(), StorageKey: photoPayload.StorageKey}
	}

	photo.Width = state.width
	photo.Height = state.height
	if state.height > 0 {
		photo.AspectRatio = float64(state.width) / float64(state.height)
	}
	photo.FileSize = int64(len(state.original))
	photo.OriginalURL = state.provider.GetPublicURL(photoPayload.StorageKey)

	if meta, err := state.provider.GetFileMeta(ctx, photoPayload.StorageKey); err == nil && meta != nil {
		photo.LastModified = meta.LastModified
	}

	if err := r.photos.Upsert(ctx, photo); err != nil {
		return err
	}
	state.photo = photo
	return nil
}

// generateThumbnail writes a bounded JPEG rendition under the photo's
// deterministic thumbnail key, overwriting any partial result from a prior
// attempt.
func (r *Runner) generateThumbnail(ctx context.Context, state *runState) error {
	decoded, err := imaging.Decode(bytes.NewReader(state.original), imaging.AutoOrientation(true))
	if err != nil {
		return services.Wrap(services.ErrStageFailure, "pipeline", "thumbnail", "decode original", err)
	}

	maxEdge := r.cfg.Pipeline.ThumbnailMaxEdge
	bounds := decoded.Bounds()
	if bounds.Dx() > maxEdge || bounds.Dy() > maxEdge {
		decoded = imaging.Fit(decoded, maxEdge, maxEdge, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, decoded, imaging.JPEG, imaging.JPEGQuality(r.cfg.Pipeline.ThumbnailQuality)); err != nil {
		return services.Wrap(services.ErrStageFailure, "pipeline", "thumbnail", "encode thumbnail", err)
	}

	key := thumbnailKey(state.photo.ID)
	if _, err := state.provider.Create(ctx, key, buf.Bytes(), "image/jpeg"); err != nil {
		return err
	}

	state.photo.ThumbnailKey = key
	state.photo.ThumbnailURL = state.provider.GetPublicURL(key)
	state.photo.ThumbnailHash = contentHash(buf.Bytes())
	return r.photos.Upsert(ctx, state.photo)
}

// extractEXIF records camera metadata and GPS coordinates. Originals without
// an EXIF block leave the row untouched.
func (r *Runner) extractEXIF(ctx context.Context, state *runState) error {
	meta, err := exifdata.Extract(state.original)
	if err != nil {
		return services.Wrap(services.ErrStageFailure, "pipeline", "exif", "extract metadata", err)
	}
	if meta == nil {
		return nil
	}

	encoded, err := meta.JSON()
	if err != nil {
		return services.Wrap(services.ErrStageFailure, "pipeline", "exif", "encode metadata", err)
	}
	state.photo.EXIF = encoded
	state.photo.DateTaken = meta.DateTaken
	if meta.Latitude != nil && meta.Longitude != nil {
		state.photo.Latitude = meta.Latitude
		state.photo.Longitude = meta.Longitude
	}
	return r.photos.Upsert(ctx, state.photo)
}

// extractMotionPhoto stores the embedded video stream detected during
// preprocessing. Plain stills no-op.
func (r *Runner) extractMotionPhoto(ctx context.Context, state *runState) error {
	if state.motionVideo == nil {
		return nil
	}

	key := livePhotoKey(state.photo.ID)
	if _, err := state.provider.Create(ctx, key, state.motionVideo, "video/mp4"); err != nil {
		return err
	}

	state.photo.IsLivePhoto = true
	state.photo.LivePhotoVideoKey = key
	state.photo.LivePhotoVideoURL = state.provider.GetPublicURL(key)
	r.logger.Info("extracted motion photo video",
		logging.String("photo_id", state.photo.ID),
		logging.Int("video_bytes", len(state.motionVideo)),
	)
	return r.photos.Upsert(ctx, state.photo)
}

// reverseGeocode fills country/city/locationName for photos with GPS
// coordinates. The stage no-ops without coordinates or when geocoding is off.
func (r *Runner) reverseGeocode(ctx context.Context, state *runState) error {
	photo := state.photo
	if photo == nil {
		// Standalone geocoding job: resolve the target photo record.
		geoPayload, ok := state.payload.(queue.ReverseGeocodingPayload)
		if !ok {
			return services.Wrap(services.ErrStageFailure, "pipeline", "reverse-geocoding", fmt.Sprintf("unexpected payload type %q", state.payload.Type()), nil)
		}
		loaded, err := r.photos.GetByID(ctx, geoPayload.PhotoID)
		if err != nil {
			return err
		}
		if loaded == nil {
			return services.Wrap(services.ErrStageFailure, "pipeline", "reverse-geocoding", fmt.Sprintf("photo %q does not exist", geoPayload.PhotoID), nil)
		}
		if geoPayload.Latitude != nil && geoPayload.Longitude != nil {
			loaded.Latitude = geoPayload.Latitude
			loaded.Longitude = geoPayload.Longitude
		}
		photo = loaded
		state.photo = loaded
	}

	if r.geocoder == nil || !photo.HasCoordinates() {
		return nil
	}

	location, err := r.geocoder.Reverse(ctx, *photo.Latitude, *photo.Longitude)
	if err != nil {
		return err
	}
	if location == nil {
		return nil
	}

	photo.Country = location.Country
	photo.City = location.City
	photo.LocationName = location.DisplayName
	return r.photos.Upsert(ctx, photo)
}

// pairLivePhoto links an uploaded video to the still photo sharing its base
// name. Missing stills fail the stage so the job retries after the photo job
// lands.
func (r *Runner) pairLivePhoto(ctx context.Context, state *runState) error {
	videoPayload, ok := state.payload.(queue.LivePhotoVideoPayload)
	if !ok {
		return services.Wrap(services.ErrStageFailure, "pipeline", "live-photo", fmt.Sprintf("unexpected payload type %q", state.payload.Type()), nil)
	}

	meta, err := state.provider.GetFileMeta(ctx, videoPayload.StorageKey)
	if err != nil {
		return err
	}
	if meta == nil {
		return services.Wrap(services.ErrStageFailure, "pipeline", "live-photo", fmt.Sprintf("storage key %q does not exist", videoPayload.StorageKey), nil)
	}

	photo, err := r.photos.FindByBaseName(ctx, videoPayload.StorageKey)
	if err != nil {
		return err
	}
	if photo == nil {
		return services.Wrap(services.ErrStageFailure, "pipeline", "live-photo", fmt.Sprintf("no photo pairs with video %q", videoPayload.StorageKey), nil)
	}

	photo.IsLivePhoto = true
	photo.LivePhotoVideoKey = videoPayload.StorageKey
	photo.LivePhotoVideoURL = state.provider.GetPublicURL(videoPayload.StorageKey)
	if photo.LastModified == nil {
		photo.LastModified = meta.LastModified
	}
	return r.photos.Upsert(ctx, photo)
}
