package storage

import (
	"errors"
	"testing"

	"lumina/internal/services"
)

func TestParseConfigSelectsVariantByDiscriminant(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		kind Kind
	}{
		{
			name: "local",
			raw:  `{"provider":"local","basePath":"/data/storage","baseUrl":"/storage"}`,
			kind: KindLocal,
		},
		{
			name: "s3",
			raw:  `{"provider":"s3","bucket":"photos","endpoint":"https://s3.example.com","accessKeyId":"ak","secretAccessKey":"sk","forcePathStyle":true}`,
			kind: KindS3,
		},
		{
			name: "openlist",
			raw: `{"provider":"openlist","baseUrl":"https://files.example.com","rootPath":"/photos","token":"tok",
                  "endpoints":{"upload":"/api/fs/put","download":"/d","list":"/api/fs/list","delete":"/api/fs/remove","meta":"/api/fs/get"}}`,
			kind: KindOpenList,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := ParseConfig([]byte(tc.raw))
			if err != nil {
				t.Fatalf("ParseConfig: %v", err)
			}
			if cfg.Kind() != tc.kind {
				t.Fatalf("expected kind %q, got %q", tc.kind, cfg.Kind())
			}
		})
	}
}

func TestParseConfigRejectsInvalidVariants(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"unknown provider", `{"provider":"ftp"}`},
		{"local missing basePath", `{"provider":"local"}`},
		{"s3 missing bucket", `{"provider":"s3","accessKeyId":"ak","secretAccessKey":"sk"}`},
		{"s3 missing credentials", `{"provider":"s3","bucket":"photos"}`},
		{"openlist missing token", `{"provider":"openlist","baseUrl":"https://x","rootPath":"/p","endpoints":{"upload":"u","download":"d","list":"l","delete":"r","meta":"m"}}`},
		{"openlist missing endpoint", `{"provider":"openlist","baseUrl":"https://x","rootPath":"/p","token":"t","endpoints":{"upload":"u","download":"d","list":"l","delete":"r"}}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseConfig([]byte(tc.raw)); !errors.Is(err, services.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestParseConfigRejectsCorruptJSON(t *testing.T) {
	if _, err := ParseConfig([]byte(`{not json`)); !errors.Is(err, services.ErrDeserialization) {
		t.Fatalf("expected deserialization error, got %v", err)
	}
}

func TestMarshalConfigRoundTrip(t *testing.T) {
	original := S3Config{
		Bucket:          "photos",
		Region:          "auto",
		Endpoint:        "https://s3.example.com",
		Prefix:          "gallery",
		AccessKeyID:     "ak",
		SecretAccessKey: "sk",
		ForcePathStyle:  true,
	}
	encoded, err := MarshalConfig(original)
	if err != nil {
		t.Fatalf("MarshalConfig: %v", err)
	}
	decoded, err := ParseConfig(encoded)
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	s3cfg, ok := decoded.(S3Config)
	if !ok {
		t.Fatalf("expected S3Config, got %T", decoded)
	}
	if s3cfg != original {
		t.Fatalf("round trip changed config: got %+v want %+v", s3cfg, original)
	}
}

func TestFingerprintTracksConfigIdentity(t *testing.T) {
	a := LocalConfig{BasePath: "/data/a"}
	b := LocalConfig{BasePath: "/data/b"}

	fpA1, err := Fingerprint(a)
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	fpA2, err := Fingerprint(a)
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	fpB, err := Fingerprint(b)
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}

	if fpA1 != fpA2 {
		t.Fatal("fingerprint is not stable for identical config")
	}
	if fpA1 == fpB {
		t.Fatal("different configs share a fingerprint")
	}
}
