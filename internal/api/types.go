// Package api defines the transport types shared by the daemon's HTTP
// surface and the CLI client.
package api

import "encoding/json"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// QueueJob describes a queue entry in a transport-friendly format.
type QueueJob struct {
	ID           int64           `json:"id"`
	Type         string          `json:"type"`
	Payload      json.RawMessage `json:"payload"`
	Status       string          `json:"status"`
	Stage        string          `json:"stage,omitempty"`
	Priority     int             `json:"priority"`
	Attempts     int             `json:"attempts"`
	MaxAttempts  int             `json:"maxAttempts"`
	ErrorMessage string          `json:"errorMessage,omitempty"`
	CreatedAt    string          `json:"createdAt,omitempty"`
	CompletedAt  string          `json:"completedAt,omitempty"`
}

// WorkflowStatus summarizes worker pool execution state.
type WorkflowStatus struct {
	Running    bool           `json:"running"`
	QueueStats map[string]int `json:"queueStats"`
	LastError  string         `json:"lastError,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running         bool           `json:"running"`
	PID             int            `json:"pid"`
	DatabasePath    string         `json:"databasePath"`
	LockFilePath    string         `json:"lockFilePath"`
	StorageProvider string         `json:"storageProvider,omitempty"`
	PhotoCount      int            `json:"photoCount"`
	Workflow        WorkflowStatus `json:"workflow"`
}

// Photo describes a gallery entry in a transport-friendly format.
type Photo struct {
	ID                string          `json:"id"`
	Title             string          `json:"title,omitempty"`
	Description       string          `json:"description,omitempty"`
	Width             int             `json:"width"`
	Height            int             `json:"height"`
	AspectRatio       float64         `json:"aspectRatio"`
	DateTaken         string          `json:"dateTaken,omitempty"`
	StorageKey        string          `json:"storageKey"`
	FileSize          int64           `json:"fileSize"`
	LastModified      string          `json:"lastModified,omitempty"`
	OriginalURL       string          `json:"originalUrl,omitempty"`
	ThumbnailURL      string          `json:"thumbnailUrl,omitempty"`
	ThumbnailHash     string          `json:"thumbnailHash,omitempty"`
	EXIF              json.RawMessage `json:"exif,omitempty"`
	Latitude          *float64        `json:"latitude,omitempty"`
	Longitude         *float64        `json:"longitude,omitempty"`
	Country           string          `json:"country,omitempty"`
	City              string          `json:"city,omitempty"`
	LocationName      string          `json:"locationName,omitempty"`
	IsLivePhoto       bool            `json:"isLivePhoto"`
	LivePhotoVideoURL string          `json:"livePhotoVideoUrl,omitempty"`
}

// QueueListResponse wraps a collection of queue jobs for API responses.
type QueueListResponse struct {
	Items []QueueJob `json:"items"`
}

// QueueJobResponse wraps a single queue job.
type QueueJobResponse struct {
	Item QueueJob `json:"item"`
}

// QueueMutationResponse reports how many jobs a maintenance call touched.
type QueueMutationResponse struct {
	Affected int64 `json:"affected"`
}

// PhotoListResponse wraps a page of photos plus the total count.
type PhotoListResponse struct {
	Items  []Photo `json:"items"`
	Total  int     `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
}

// PhotoResponse wraps a single photo.
type PhotoResponse struct {
	Item Photo `json:"item"`
}

// EnqueuePhotoRequest asks the daemon to process an uploaded original or a
// live-photo companion video identified by its storage key.
type EnqueuePhotoRequest struct {
	StorageKey string `json:"storageKey"`
	Priority   int    `json:"priority,omitempty"`
}

// EnqueueGeocodingRequest asks the daemon to (re-)resolve a photo's location.
// When the coordinates are omitted the photo's stored GPS data is used.
type EnqueueGeocodingRequest struct {
	PhotoID   string   `json:"photoId"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Priority  int      `json:"priority,omitempty"`
}

// RetryRequest selects failed jobs to reset. An empty ID list retries all
// failed jobs.
type RetryRequest struct {
	IDs []int64 `json:"ids,omitempty"`
}

// SettingUpdateRequest carries a new value for one setting.
type SettingUpdateRequest struct {
	Value any `json:"value"`
}

// ErrorResponse is the uniform error envelope for non-2xx responses.
type ErrorResponse struct {
	Error string `json:"error"`
}
