package queue

import (
	"encoding/json"
	"fmt"

	"lumina/internal/services"
)

// PayloadType discriminates the persisted payload union.
type PayloadType string

const (
	PayloadTypePhoto            PayloadType = "photo"
	PayloadTypeLivePhotoVideo   PayloadType = "live-photo-video"
	PayloadTypeReverseGeocoding PayloadType = "photo-reverse-geocoding"
)

// Payload is the job payload union. Exactly three variants exist; consumers
// type-switch over them exhaustively.
type Payload interface {
	Type() PayloadType
	Validate() error
}

// PhotoPayload requests full processing of an uploaded photo.
type PhotoPayload struct {
	StorageKey string
}

func (PhotoPayload) Type() PayloadType { return PayloadTypePhoto }

func (p PhotoPayload) Validate() error {
	if p.StorageKey == "" {
		return services.Wrap(services.ErrValidation, "queue", "payload", "photo payload requires storageKey", nil)
	}
	return nil
}

// LivePhotoVideoPayload requests pairing of an uploaded video with its photo.
type LivePhotoVideoPayload struct {
	StorageKey string
}

func (LivePhotoVideoPayload) Type() PayloadType { return PayloadTypeLivePhotoVideo }

func (p LivePhotoVideoPayload) Validate() error {
	if p.StorageKey == "" {
		return services.Wrap(services.ErrValidation, "queue", "payload", "live-photo-video payload requires storageKey", nil)
	}
	return nil
}

// ReverseGeocodingPayload requests geocoding of an existing photo record.
type ReverseGeocodingPayload struct {
	PhotoID   string
	Latitude  *float64
	Longitude *float64
}

func (ReverseGeocodingPayload) Type() PayloadType { return PayloadTypeReverseGeocoding }

func (p ReverseGeocodingPayload) Validate() error {
	if p.PhotoID == "" {
		return services.Wrap(services.ErrValidation, "queue", "payload", "reverse-geocoding payload requires photoId", nil)
	}
	return nil
}

// payloadEnvelope is the persisted wire form. The type tag is validated before
// any variant fields are interpreted.
type payloadEnvelope struct {
	Type       PayloadType `json:"type"`
	StorageKey string      `json:"storageKey,omitempty"`
	PhotoID    string      `json:"photoId,omitempty"`
	Latitude   *float64    `json:"latitude,omitempty"`
	Longitude  *float64    `json:"longitude,omitempty"`
}

// MarshalPayload encodes a payload into its persisted envelope.
func MarshalPayload(payload Payload) ([]byte, error) {
	if payload == nil {
		return nil, services.Wrap(services.ErrValidation, "queue", "payload", "payload is nil", nil)
	}
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	envelope := payloadEnvelope{Type: payload.Type()}
	switch p := payload.(type) {
	case PhotoPayload:
		envelope.StorageKey = p.StorageKey
	case LivePhotoVideoPayload:
		envelope.StorageKey = p.StorageKey
	case ReverseGeocodingPayload:
		envelope.PhotoID = p.PhotoID
		envelope.Latitude = p.Latitude
		envelope.Longitude = p.Longitude
	default:
		return nil, services.Wrap(services.ErrValidation, "queue", "payload", fmt.Sprintf("unknown payload variant %T", payload), nil)
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return data, nil
}

// ParsePayload decodes a persisted envelope, validating the discriminant
// before deserializing variant fields.
func ParsePayload(data []byte) (Payload, error) {
	var envelope payloadEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, services.Wrap(services.ErrDeserialization, "queue", "payload", "corrupt payload envelope", err)
	}

	var payload Payload
	switch envelope.Type {
	case PayloadTypePhoto:
		payload = PhotoPayload{StorageKey: envelope.StorageKey}
	case PayloadTypeLivePhotoVideo:
		payload = LivePhotoVideoPayload{StorageKey: envelope.StorageKey}
	case PayloadTypeReverseGeocoding:
		payload = ReverseGeocodingPayload{
			PhotoID:   envelope.PhotoID,
			Latitude:  envelope.Latitude,
			Longitude: envelope.Longitude,
		}
	default:
		return nil, services.Wrap(services.ErrDeserialization, "queue", "payload", fmt.Sprintf("unknown payload type %q", envelope.Type), nil)
	}

	if err := payload.Validate(); err != nil {
		return nil, err
	}
	return payload, nil
}
