package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a queue job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusInStages  Status = "in-stages"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

var allStatuses = []Status{
	StatusPending,
	StatusInStages,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// Stage is one discrete processing step inside a job's fixed sequence.
type Stage string

const (
	StagePreprocessing    Stage = "preprocessing"
	StageMetadata         Stage = "metadata"
	StageThumbnail        Stage = "thumbnail"
	StageExif             Stage = "exif"
	StageMotionPhoto      Stage = "motion-photo"
	StageReverseGeocoding Stage = "reverse-geocoding"
	StageLivePhoto        Stage = "live-photo"
)

// StagesFor returns the ordered stage sequence for a payload. The motion-photo
// stage is part of the photo sequence and no-ops when preprocessing found no
// embedded video.
func StagesFor(payload Payload) []Stage {
	switch payload.(type) {
	case PhotoPayload:
		return []Stage{
			StagePreprocessing,
			StageMetadata,
			StageThumbnail,
			StageExif,
			StageMotionPhoto,
			StageReverseGeocoding,
		}
	case LivePhotoVideoPayload:
		return []Stage{StageLivePhoto}
	case ReverseGeocodingPayload:
		return []Stage{StageReverseGeocoding}
	default:
		return nil
	}
}

// Job represents a pipeline queue entry persisted in SQLite.
//
// Invariants maintained by the store: StatusStage is non-empty iff Status is
// in-stages; Attempts never exceeds MaxAttempts; completed and terminally
// failed jobs are never re-claimed.
type Job struct {
	ID           int64
	RawPayload   string
	Priority     int
	Attempts     int
	MaxAttempts  int
	Status       Status
	StatusStage  Stage
	ErrorMessage string
	CreatedAt    time.Time
	CompletedAt  *time.Time
}

// Payload decodes the persisted payload envelope.
func (j *Job) Payload() (Payload, error) {
	return ParsePayload([]byte(j.RawPayload))
}

// Terminal reports whether the job can never run again.
func (j *Job) Terminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// HealthSummary describes aggregated queue counts per lifecycle state.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Completed  int
	Failed     int
}
