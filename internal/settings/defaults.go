package settings

// Definition declares a setting's identity, type, default, and flags. The
// default table below is seeded idempotently at every startup.
type Definition struct {
	Namespace    string
	Key          string
	Type         Type
	DefaultValue any
	Label        string
	Description  string
	IsInternal   bool
	IsReadonly   bool
	IsSecret     bool
	IsPublic     bool
}

// Namespaces used across the application.
const (
	NamespaceSystem  = "system"
	NamespaceApp     = "app"
	NamespaceStorage = "storage"
	NamespaceMap     = "map"
)

// Well-known storage namespace keys.
const (
	KeyStorageProvider = "provider"
	KeyLocalBasePath   = "provider.local.path"
	KeyLocalBaseURL    = "provider.local.baseUrl"
)

// Defaults returns the built-in setting definitions. localBasePath seeds the
// local provider root, normally derived from the configured data directory.
func Defaults(localBasePath string) []Definition {
	return []Definition{
		{
			Namespace:    NamespaceSystem,
			Key:          "firstLaunch",
			Type:         TypeBoolean,
			DefaultValue: true,
			Label:        "First launch",
			Description:  "Cleared after initial setup completes.",
			IsInternal:   true,
			IsReadonly:   true,
		},
		{
			Namespace:    NamespaceApp,
			Key:          "title",
			Type:         TypeString,
			DefaultValue: "Lumina",
			Label:        "Gallery title",
			Description:  "Display name shown on the public gallery.",
			IsPublic:     true,
		},
		{
			Namespace:    NamespaceApp,
			Key:          "pageSize",
			Type:         TypeNumber,
			DefaultValue: float64(50),
			Label:        "Page size",
			Description:  "Photos returned per listing page.",
			IsPublic:     true,
		},
		{
			Namespace:    NamespaceStorage,
			Key:          KeyStorageProvider,
			Type:         TypeString,
			DefaultValue: "local",
			Label:        "Active storage provider",
			Description:  "Which storage backend serves originals and derived media.",
		},
		{
			Namespace:    NamespaceStorage,
			Key:          KeyLocalBasePath,
			Type:         TypeString,
			DefaultValue: localBasePath,
			Label:        "Local storage path",
			Description:  "Filesystem root for the local provider.",
		},
		{
			Namespace:    NamespaceStorage,
			Key:          KeyLocalBaseURL,
			Type:         TypeString,
			DefaultValue: "/storage",
			Label:        "Local storage base URL",
			Description:  "Public URL prefix for locally stored files.",
			IsPublic:     true,
		},
		{
			Namespace:    NamespaceStorage,
			Key:          "s3.secretAccessKey",
			Type:         TypeString,
			DefaultValue: "",
			Label:        "S3 secret access key",
			Description:  "Kept out of public reads; set through privileged writes only.",
			IsSecret:     true,
		},
		{
			Namespace:    NamespaceMap,
			Key:          "enabled",
			Type:         TypeBoolean,
			DefaultValue: true,
			Label:        "Map view",
			Description:  "Show geocoded photos on the map view.",
			IsPublic:     true,
		},
		{
			Namespace:    NamespaceMap,
			Key:          "style",
			Type:         TypeJSON,
			DefaultValue: map[string]any{"theme": "light"},
			Label:        "Map style",
			Description:  "Map renderer style options.",
			IsPublic:     true,
		},
	}
}
