package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"lumina/internal/db"
	"lumina/internal/logging"
	"lumina/internal/services"
	"lumina/internal/settings"
)

// NewProvider constructs the backend matching the config's discriminant.
// Adding a backend means adding one case here; call sites are selection-free.
func NewProvider(ctx context.Context, cfg Config) (Provider, error) {
	switch typed := cfg.(type) {
	case LocalConfig:
		return NewLocalProvider(typed)
	case S3Config:
		return NewS3Provider(ctx, typed)
	case OpenListConfig:
		return NewOpenListProvider(typed)
	default:
		return nil, services.Wrap(services.ErrValidation, "storage", "provider", fmt.Sprintf("unknown storage provider %q", cfg.Kind()), nil)
	}
}

// Manager resolves the active storage provider from the settings store,
// caches the constructed instance per config fingerprint, and swaps it
// atomically when configuration changes.
type Manager struct {
	db       *db.DB
	settings *settings.Store
	logger   *slog.Logger

	mu          sync.Mutex
	active      Provider
	fingerprint string
	ready       bool
}

// NewManager wires the manager to the shared database and settings store.
// Settings writes under the storage namespace invalidate the cached instance
// so workers pick up new configuration on their next claim.
func NewManager(database *db.DB, settingsStore *settings.Store, logger *slog.Logger) *Manager {
	m := &Manager{
		db:       database,
		settings: settingsStore,
		logger:   logging.NewComponentLogger(logger, "storage"),
	}
	settingsStore.OnChange(func(namespace, _ string) {
		if namespace == settings.NamespaceStorage {
			m.invalidate()
		}
	})
	return m
}

// Init seeds a provider record for the local backend when none exists and
// marks the manager usable. Requires the settings store to be seeded first.
func (m *Manager) Init(ctx context.Context) error {
	if !m.settings.Seeded() {
		return services.Wrap(services.ErrNotReady, "storage", "init", "settings store has not been seeded", nil)
	}

	basePath, err := m.settings.GetString(ctx, settings.NamespaceStorage, settings.KeyLocalBasePath, "")
	if err != nil {
		return err
	}
	baseURL, err := m.settings.GetString(ctx, settings.NamespaceStorage, settings.KeyLocalBaseURL, "/storage")
	if err != nil {
		return err
	}

	if _, err := m.loadConfig(ctx, KindLocal); err != nil {
		if !errors.Is(err, services.ErrNotFound) {
			return err
		}
		local := LocalConfig{BasePath: basePath, BaseURL: baseURL}
		if err := m.persistConfig(ctx, local); err != nil {
			return err
		}
		m.logger.Info("seeded local provider record", logging.String(logging.FieldProvider, string(KindLocal)))
	}

	m.mu.Lock()
	m.ready = true
	m.mu.Unlock()
	return nil
}

func (m *Manager) invalidate() {
	m.mu.Lock()
	m.active = nil
	m.fingerprint = ""
	m.mu.Unlock()
}

// GetActiveProvider returns the provider for the currently configured
// backend, constructing and caching an instance when the persisted config
// fingerprint differs from the cached one.
func (m *Manager) GetActiveProvider(ctx context.Context) (Provider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.ready {
		return nil, services.Wrap(services.ErrNotReady, "storage", "active", "storage manager not initialized", nil)
	}

	kindValue, err := m.settings.GetString(ctx, settings.NamespaceStorage, settings.KeyStorageProvider, string(KindLocal))
	if err != nil {
		return nil, err
	}

	cfg, err := m.loadConfig(ctx, Kind(kindValue))
	if err != nil {
		return nil, err
	}
	if local, ok := cfg.(LocalConfig); ok {
		if cfg, err = m.overlayLocalSettings(ctx, local); err != nil {
			return nil, err
		}
	}
	fingerprint, err := Fingerprint(cfg)
	if err != nil {
		return nil, err
	}

	if m.active != nil && m.fingerprint == fingerprint {
		return m.active, nil
	}

	provider, err := NewProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}
	m.active = provider
	m.fingerprint = fingerprint
	m.logger.Info("activated storage provider", logging.String(logging.FieldProvider, kindValue))
	return provider, nil
}

// overlayLocalSettings applies the live storage:provider.local.* settings on
// top of the persisted local record, so editing those keys takes effect on
// the next resolution instead of being frozen at the first-launch seed.
func (m *Manager) overlayLocalSettings(ctx context.Context, cfg LocalConfig) (LocalConfig, error) {
	basePath, err := m.settings.GetString(ctx, settings.NamespaceStorage, settings.KeyLocalBasePath, cfg.BasePath)
	if err != nil {
		return LocalConfig{}, err
	}
	baseURL, err := m.settings.GetString(ctx, settings.NamespaceStorage, settings.KeyLocalBaseURL, cfg.BaseURL)
	if err != nil {
		return LocalConfig{}, err
	}
	if basePath != "" {
		cfg.BasePath = basePath
	}
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return cfg, nil
}

// SwitchProvider validates and persists a new backend configuration, points
// the active-provider setting at it, and drops the cached instance. Callers
// racing GetActiveProvider observe either the fully-old or fully-new
// provider.
func (m *Manager) SwitchProvider(ctx context.Context, cfg Config, actor string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	if !m.ready {
		m.mu.Unlock()
		return services.Wrap(services.ErrNotReady, "storage", "switch", "storage manager not initialized", nil)
	}
	m.mu.Unlock()

	if err := m.persistConfig(ctx, cfg); err != nil {
		return err
	}
	// The local backend is also described by settings keys; keep them in step
	// with the persisted record so the overlay never resurrects old values.
	if local, ok := cfg.(LocalConfig); ok {
		if local.BasePath != "" {
			if err := m.settings.Set(ctx, settings.NamespaceStorage, settings.KeyLocalBasePath, local.BasePath, actor, true); err != nil {
				return err
			}
		}
		if local.BaseURL != "" {
			if err := m.settings.Set(ctx, settings.NamespaceStorage, settings.KeyLocalBaseURL, local.BaseURL, actor, true); err != nil {
				return err
			}
		}
	}
	if err := m.settings.Set(ctx, settings.NamespaceStorage, settings.KeyStorageProvider, string(cfg.Kind()), actor, true); err != nil {
		return err
	}

	// The settings hook already invalidated the cache; do it again directly
	// in case the hook list was replaced mid-flight.
	m.invalidate()
	m.logger.Info("switched storage provider", logging.String(logging.FieldProvider, string(cfg.Kind())))
	return nil
}

// loadConfig reads the persisted config record for a backend kind.
func (m *Manager) loadConfig(ctx context.Context, kind Kind) (Config, error) {
	var raw string
	err := m.db.QueryRow(
		ctx,
		`SELECT config FROM storage_providers WHERE provider = ?`,
		string(kind),
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "storage", "config", fmt.Sprintf("no configuration for provider %q", kind), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("load provider config %s: %w", kind, err)
	}
	return ParseConfig([]byte(raw))
}

func (m *Manager) persistConfig(ctx context.Context, cfg Config) error {
	encoded, err := MarshalConfig(cfg)
	if err != nil {
		return err
	}
	_, err = m.db.Exec(
		ctx,
		`INSERT INTO storage_providers (provider, config, updated_at) VALUES (?, ?, ?)
         ON CONFLICT(provider) DO UPDATE SET config = excluded.config, updated_at = excluded.updated_at`,
		string(cfg.Kind()),
		string(encoded),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("persist provider config %s: %w", cfg.Kind(), err)
	}
	return nil
}
