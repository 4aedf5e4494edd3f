package photos

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"lumina/internal/db"
)

// Store provides access to persisted photo records.
type Store struct {
	db *db.DB
}

// NewStore wraps the shared database handle.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

const photoColumns = `id, title, description, width, height, aspect_ratio, date_taken,
    storage_key, file_size, last_modified, original_url, thumbnail_key, thumbnail_url,
    thumbnail_hash, exif, latitude, longitude, country, city, location_name,
    is_live_photo, live_photo_video_url, live_photo_video_key`

// Upsert inserts the record or replaces every column of an existing one.
func (s *Store) Upsert(ctx context.Context, photo *Photo) error {
	if photo.ID == "" {
		return errors.New("photo id is required")
	}
	_, err := s.db.Exec(
		ctx,
		`INSERT INTO photos (`+photoColumns+`)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET
             title = excluded.title,
             description = excluded.description,
             width = excluded.width,
             height = excluded.height,
             aspect_ratio = excluded.aspect_ratio,
             date_taken = excluded.date_taken,
             storage_key = excluded.storage_key,
             file_size = excluded.file_size,
             last_modified = excluded.last_modified,
             original_url = excluded.original_url,
             thumbnail_key = excluded.thumbnail_key,
             thumbnail_url = excluded.thumbnail_url,
             thumbnail_hash = excluded.thumbnail_hash,
             exif = excluded.exif,
             latitude = excluded.latitude,
             longitude = excluded.longitude,
             country = excluded.country,
             city = excluded.city,
             location_name = excluded.location_name,
             is_live_photo = excluded.is_live_photo,
             live_photo_video_url = excluded.live_photo_video_url,
             live_photo_video_key = excluded.live_photo_video_key`,
		photo.ID,
		nullString(photo.Title),
		nullString(photo.Description),
		photo.Width,
		photo.Height,
		photo.AspectRatio,
		nullTime(photo.DateTaken),
		nullString(photo.StorageKey),
		photo.FileSize,
		nullTime(photo.LastModified),
		nullString(photo.OriginalURL),
		nullString(photo.ThumbnailKey),
		nullString(photo.ThumbnailURL),
		nullString(photo.ThumbnailHash),
		nullString(photo.EXIF),
		photo.Latitude,
		photo.Longitude,
		nullString(photo.Country),
		nullString(photo.City),
		nullString(photo.LocationName),
		boolToInt(photo.IsLivePhoto),
		nullString(photo.LivePhotoVideoURL),
		nullString(photo.LivePhotoVideoKey),
	)
	if err != nil {
		return fmt.Errorf("upsert photo %s: %w", photo.ID, err)
	}
	return nil
}

// GetByID returns the photo, or nil when no record exists.
func (s *Store) GetByID(ctx context.Context, id string) (*Photo, error) {
	row := s.db.QueryRow(ctx, `SELECT `+photoColumns+` FROM photos WHERE id = ?`, id)
	photo, err := scanPhoto(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get photo %s: %w", id, err)
	}
	return photo, nil
}

// FindByStorageKey returns the photo whose original lives under key, or nil.
func (s *Store) FindByStorageKey(ctx context.Context, key string) (*Photo, error) {
	row := s.db.QueryRow(ctx, `SELECT `+photoColumns+` FROM photos WHERE storage_key = ?`, key)
	photo, err := scanPhoto(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find photo by key %s: %w", key, err)
	}
	return photo, nil
}

// FindByBaseName matches photos whose storage key shares a base name with the
// given key, extension aside. Live-photo videos pair with their still frame
// this way.
func (s *Store) FindByBaseName(ctx context.Context, key string) (*Photo, error) {
	base := key
	if idx := strings.LastIndex(base, "."); idx > strings.LastIndex(base, "/") {
		base = base[:idx]
	}
	// Camera file names are full of underscores, which LIKE treats as a
	// single-character wildcard; the base must match literally.
	row := s.db.QueryRow(
		ctx,
		`SELECT `+photoColumns+` FROM photos
         WHERE storage_key = ? OR storage_key LIKE ? ESCAPE '\'
         ORDER BY id LIMIT 1`,
		base, escapeLike(base)+".%",
	)
	photo, err := scanPhoto(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find photo by base name %s: %w", base, err)
	}
	return photo, nil
}

// List returns photos ordered newest-taken first, untimed records last.
func (s *Store) List(ctx context.Context, limit, offset int) ([]*Photo, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		ctx,
		`SELECT `+photoColumns+` FROM photos
         ORDER BY date_taken IS NULL, date_taken DESC, id
         LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list photos: %w", err)
	}
	defer rows.Close()

	var result []*Photo
	for rows.Next() {
		photo, err := scanPhoto(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, photo)
	}
	return result, rows.Err()
}

// Count returns the total number of photo records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(1) FROM photos`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count photos: %w", err)
	}
	return count, nil
}

// Delete removes the record. Deleting an absent id is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM photos WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete photo %s: %w", id, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPhoto(row rowScanner) (*Photo, error) {
	var (
		photo             Photo
		title             sql.NullString
		description       sql.NullString
		width             sql.NullInt64
		height            sql.NullInt64
		aspectRatio       sql.NullFloat64
		dateTaken         sql.NullString
		storageKey        sql.NullString
		fileSize          sql.NullInt64
		lastModified      sql.NullString
		originalURL       sql.NullString
		thumbnailKey      sql.NullString
		thumbnailURL      sql.NullString
		thumbnailHash     sql.NullString
		exifBlob          sql.NullString
		latitude          sql.NullFloat64
		longitude         sql.NullFloat64
		country           sql.NullString
		city              sql.NullString
		locationName      sql.NullString
		isLivePhoto       int
		livePhotoVideoURL sql.NullString
		livePhotoVideoKey sql.NullString
	)

	err := row.Scan(
		&photo.ID, &title, &description, &width, &height, &aspectRatio, &dateTaken,
		&storageKey, &fileSize, &lastModified, &originalURL, &thumbnailKey, &thumbnailURL,
		&thumbnailHash, &exifBlob, &latitude, &longitude, &country, &city, &locationName,
		&isLivePhoto, &livePhotoVideoURL, &livePhotoVideoKey,
	)
	if err != nil {
		return nil, err
	}

	photo.Title = title.String
	photo.Description = description.String
	photo.Width = int(width.Int64)
	photo.Height = int(height.Int64)
	photo.AspectRatio = aspectRatio.Float64
	photo.DateTaken = parseTimePtr(dateTaken)
	photo.StorageKey = storageKey.String
	photo.FileSize = fileSize.Int64
	photo.LastModified = parseTimePtr(lastModified)
	photo.OriginalURL = originalURL.String
	photo.ThumbnailKey = thumbnailKey.String
	photo.ThumbnailURL = thumbnailURL.String
	photo.ThumbnailHash = thumbnailHash.String
	photo.EXIF = exifBlob.String
	if latitude.Valid {
		photo.Latitude = &latitude.Float64
	}
	if longitude.Valid {
		photo.Longitude = &longitude.Float64
	}
	photo.Country = country.String
	photo.City = city.String
	photo.LocationName = locationName.String
	photo.IsLivePhoto = isLivePhoto != 0
	photo.LivePhotoVideoURL = livePhotoVideoURL.String
	photo.LivePhotoVideoKey = livePhotoVideoKey.String
	return &photo, nil
}

// escapeLike backslash-escapes LIKE metacharacters so the pattern prefix
// matches literally under ESCAPE '\'.
func escapeLike(value string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(value)
}

func parseTimePtr(value sql.NullString) *time.Time {
	if !value.Valid || value.String == "" {
		return nil
	}
	parsed, err := time.Parse(time.RFC3339Nano, value.String)
	if err != nil {
		return nil
	}
	return &parsed
}

func nullTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func nullString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
