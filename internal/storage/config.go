package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"lumina/internal/services"
)

// Kind discriminates the storage config union.
type Kind string

const (
	KindLocal    Kind = "local"
	KindS3       Kind = "s3"
	KindOpenList Kind = "openlist"
)

// Config is one variant of the storage configuration union. The discriminant
// is validated before any variant fields are interpreted; invalid
// combinations fail at construction, never at first use.
type Config interface {
	Kind() Kind
	Validate() error
}

// LocalConfig stores blobs under a filesystem root served at a URL prefix.
type LocalConfig struct {
	BasePath string `json:"basePath"`
	BaseURL  string `json:"baseUrl,omitempty"`
	Prefix   string `json:"prefix,omitempty"`
}

func (LocalConfig) Kind() Kind { return KindLocal }

func (c LocalConfig) Validate() error {
	if strings.TrimSpace(c.BasePath) == "" {
		return services.Wrap(services.ErrValidation, "storage", "config", "local config requires basePath", nil)
	}
	return nil
}

// S3Config targets any S3-compatible object store.
type S3Config struct {
	Bucket          string `json:"bucket"`
	Region          string `json:"region,omitempty"`
	Endpoint        string `json:"endpoint,omitempty"`
	Prefix          string `json:"prefix,omitempty"`
	CDNURL          string `json:"cdnUrl,omitempty"`
	AccessKeyID     string `json:"accessKeyId"`
	SecretAccessKey string `json:"secretAccessKey"`
	ForcePathStyle  bool   `json:"forcePathStyle,omitempty"`
	MaxKeys         int32  `json:"maxKeys,omitempty"`
}

func (S3Config) Kind() Kind { return KindS3 }

func (c S3Config) Validate() error {
	if strings.TrimSpace(c.Bucket) == "" {
		return services.Wrap(services.ErrValidation, "storage", "config", "s3 config requires bucket", nil)
	}
	if strings.TrimSpace(c.AccessKeyID) == "" || strings.TrimSpace(c.SecretAccessKey) == "" {
		return services.Wrap(services.ErrValidation, "storage", "config", "s3 config requires credentials", nil)
	}
	return nil
}

// OpenListEndpoints lists the remote file host's API routes.
type OpenListEndpoints struct {
	Upload   string `json:"upload"`
	Download string `json:"download"`
	List     string `json:"list"`
	Delete   string `json:"delete"`
	Meta     string `json:"meta"`
}

// OpenListConfig targets an OpenList-style remote file host reached over its
// token-authenticated JSON API.
type OpenListConfig struct {
	BaseURL   string            `json:"baseUrl"`
	RootPath  string            `json:"rootPath"`
	Token     string            `json:"token"`
	Endpoints OpenListEndpoints `json:"endpoints"`
	PathField string            `json:"pathField,omitempty"`
	CDNURL    string            `json:"cdnUrl,omitempty"`
}

func (OpenListConfig) Kind() Kind { return KindOpenList }

func (c OpenListConfig) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return services.Wrap(services.ErrValidation, "storage", "config", "openlist config requires baseUrl", nil)
	}
	if strings.TrimSpace(c.RootPath) == "" {
		return services.Wrap(services.ErrValidation, "storage", "config", "openlist config requires rootPath", nil)
	}
	if strings.TrimSpace(c.Token) == "" {
		return services.Wrap(services.ErrValidation, "storage", "config", "openlist config requires token", nil)
	}
	for name, route := range map[string]string{
		"upload":   c.Endpoints.Upload,
		"download": c.Endpoints.Download,
		"list":     c.Endpoints.List,
		"delete":   c.Endpoints.Delete,
		"meta":     c.Endpoints.Meta,
	} {
		if strings.TrimSpace(route) == "" {
			return services.Wrap(services.ErrValidation, "storage", "config", fmt.Sprintf("openlist config missing %s endpoint", name), nil)
		}
	}
	return nil
}

type configEnvelope struct {
	Provider Kind `json:"provider"`
}

// ParseConfig decodes a persisted config blob. The provider discriminant is
// checked before the variant fields are deserialized.
func ParseConfig(raw []byte) (Config, error) {
	var envelope configEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, services.Wrap(services.ErrDeserialization, "storage", "config", "corrupt storage config", err)
	}

	var cfg Config
	switch envelope.Provider {
	case KindLocal:
		var local LocalConfig
		if err := json.Unmarshal(raw, &local); err != nil {
			return nil, services.Wrap(services.ErrDeserialization, "storage", "config", "corrupt local config", err)
		}
		cfg = local
	case KindS3:
		var s3cfg S3Config
		if err := json.Unmarshal(raw, &s3cfg); err != nil {
			return nil, services.Wrap(services.ErrDeserialization, "storage", "config", "corrupt s3 config", err)
		}
		cfg = s3cfg
	case KindOpenList:
		var openlist OpenListConfig
		if err := json.Unmarshal(raw, &openlist); err != nil {
			return nil, services.Wrap(services.ErrDeserialization, "storage", "config", "corrupt openlist config", err)
		}
		cfg = openlist
	default:
		return nil, services.Wrap(services.ErrValidation, "storage", "config", fmt.Sprintf("unknown storage provider %q", envelope.Provider), nil)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MarshalConfig encodes a config with its discriminant for persistence.
func MarshalConfig(cfg Config) ([]byte, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	variant, err := json.Marshal(cfg)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "storage", "config", "encode storage config", err)
	}

	// Splice the discriminant into the variant's own object form.
	var fields map[string]any
	if err := json.Unmarshal(variant, &fields); err != nil {
		return nil, services.Wrap(services.ErrValidation, "storage", "config", "encode storage config", err)
	}
	fields["provider"] = cfg.Kind()
	return json.Marshal(fields)
}

// Fingerprint returns a stable digest of a config used to detect whether a
// cached provider instance still matches persisted configuration.
func Fingerprint(cfg Config) (string, error) {
	encoded, err := MarshalConfig(cfg)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:]), nil
}
