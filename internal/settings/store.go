// Package settings is the namespaced runtime-settings store: typed values in
// SQLite fronted by a read-through/write-through in-memory cache.
package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"lumina/internal/db"
	"lumina/internal/logging"
	"lumina/internal/services"
)

// ChangeHook observes successful writes. Hooks do not fire while Init seeds
// defaults.
type ChangeHook func(namespace, key string)

// Store provides typed access to persisted settings.
//
// The cache is a projection of persisted state with no independent lifetime:
// reads populate it, writes update it under the same writer lock that
// persists, so it never diverges for longer than one write.
type Store struct {
	db     *db.DB
	logger *slog.Logger

	cacheMu sync.RWMutex
	cache   map[string]any

	// writeMu serializes the persist+cache-set pair in Set and the
	// read+cache-populate pair in Get's miss path, so neither can interleave
	// a lost or stale update.
	writeMu sync.Mutex

	initializing atomic.Bool
	seeded       atomic.Bool

	hookMu sync.Mutex
	hooks  []ChangeHook
}

// NewStore wraps the shared database handle.
func NewStore(database *db.DB, logger *slog.Logger) *Store {
	return &Store{
		db:     database,
		logger: logging.NewComponentLogger(logger, "settings"),
		cache:  make(map[string]any),
	}
}

func cacheKey(namespace, key string) string {
	return namespace + ":" + key
}

// Seeded reports whether Init has completed at least once.
func (s *Store) Seeded() bool {
	return s.seeded.Load()
}

// OnChange registers a hook fired after every successful Set outside of Init.
func (s *Store) OnChange(hook ChangeHook) {
	if hook == nil {
		return
	}
	s.hookMu.Lock()
	s.hooks = append(s.hooks, hook)
	s.hookMu.Unlock()
}

func (s *Store) fireHooks(namespace, key string) {
	if s.initializing.Load() {
		return
	}
	s.hookMu.Lock()
	hooks := make([]ChangeHook, len(s.hooks))
	copy(hooks, s.hooks)
	s.hookMu.Unlock()
	for _, hook := range hooks {
		hook(namespace, key)
	}
}

// Init seeds the default table: each definition is inserted iff no
// (namespace, key) row exists. Safe to call on every startup; a second call
// changes no values. Change hooks are suppressed for the duration.
func (s *Store) Init(ctx context.Context, defaults []Definition) error {
	s.initializing.Store(true)
	defer s.initializing.Store(false)

	s.logger.Info("seeding default settings", logging.Int("defaults", len(defaults)))

	for _, def := range defaults {
		if def.Namespace == "" || def.Key == "" {
			s.logger.Warn("skipping default with missing namespace or key")
			continue
		}

		var exists int
		err := s.db.QueryRow(
			ctx,
			`SELECT COUNT(1) FROM settings WHERE namespace = ? AND key = ?`,
			def.Namespace, def.Key,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check setting %s:%s: %w", def.Namespace, def.Key, err)
		}
		if exists > 0 {
			continue
		}

		serialized, err := serialize(def.DefaultValue, def.Type)
		if err != nil {
			return err
		}
		_, err = s.db.Exec(
			ctx,
			`INSERT INTO settings (namespace, key, type, value, default_value, label, description,
                                   is_internal, is_readonly, is_secret, is_public)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			def.Namespace, def.Key, def.Type, serialized, serialized,
			def.Label, def.Description,
			boolToInt(def.IsInternal), boolToInt(def.IsReadonly),
			boolToInt(def.IsSecret), boolToInt(def.IsPublic),
		)
		if err != nil {
			return fmt.Errorf("seed setting %s:%s: %w", def.Namespace, def.Key, err)
		}
	}

	s.seeded.Store(true)
	return nil
}

// Get returns the deserialized value for (namespace, key). A cache hit
// returns immediately; a miss queries the store and populates the cache.
// An absent row returns fallback without erroring.
func (s *Store) Get(ctx context.Context, namespace, key string, fallback any) (any, error) {
	ck := cacheKey(namespace, key)

	s.cacheMu.RLock()
	if value, ok := s.cache[ck]; ok {
		s.cacheMu.RUnlock()
		return value, nil
	}
	s.cacheMu.RUnlock()

	// The miss path holds the writer lock across the row read and the cache
	// populate. Otherwise a Set could persist and cache a newer value between
	// the two, and the populate would pin the stale pre-write value.
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.cacheMu.RLock()
	if value, ok := s.cache[ck]; ok {
		s.cacheMu.RUnlock()
		return value, nil
	}
	s.cacheMu.RUnlock()

	var (
		typeTag string
		raw     string
	)
	err := s.db.QueryRow(
		ctx,
		`SELECT type, value FROM settings WHERE namespace = ? AND key = ?`,
		namespace, key,
	).Scan(&typeTag, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return fallback, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get setting %s:%s: %w", namespace, key, err)
	}

	valueType, ok := ParseType(typeTag)
	if !ok {
		return nil, services.Wrap(services.ErrDeserialization, "settings", "get", fmt.Sprintf("unknown type %q for %s:%s", typeTag, namespace, key), nil)
	}
	value, err := deserialize(raw, valueType)
	if err != nil {
		return nil, err
	}

	s.cacheMu.Lock()
	s.cache[ck] = value
	s.cacheMu.Unlock()

	return value, nil
}

// GetString fetches a string setting with a fallback for absent rows.
func (s *Store) GetString(ctx context.Context, namespace, key, fallback string) (string, error) {
	value, err := s.Get(ctx, namespace, key, fallback)
	if err != nil {
		return "", err
	}
	str, ok := value.(string)
	if !ok {
		return "", services.Wrap(services.ErrDeserialization, "settings", "get", fmt.Sprintf("%s:%s is not a string", namespace, key), nil)
	}
	return str, nil
}

// GetBool fetches a boolean setting with a fallback for absent rows.
func (s *Store) GetBool(ctx context.Context, namespace, key string, fallback bool) (bool, error) {
	value, err := s.Get(ctx, namespace, key, fallback)
	if err != nil {
		return false, err
	}
	b, ok := value.(bool)
	if !ok {
		return false, services.Wrap(services.ErrDeserialization, "settings", "get", fmt.Sprintf("%s:%s is not a boolean", namespace, key), nil)
	}
	return b, nil
}

// GetNumber fetches a numeric setting with a fallback for absent rows.
func (s *Store) GetNumber(ctx context.Context, namespace, key string, fallback float64) (float64, error) {
	value, err := s.Get(ctx, namespace, key, fallback)
	if err != nil {
		return 0, err
	}
	number, ok := value.(float64)
	if !ok {
		return 0, services.Wrap(services.ErrDeserialization, "settings", "get", fmt.Sprintf("%s:%s is not a number", namespace, key), nil)
	}
	return number, nil
}

// Set serializes and persists a new value for an existing setting, then
// updates the cache. Missing rows fail with NotFound; readonly rows reject
// non-privileged writes.
func (s *Store) Set(ctx context.Context, namespace, key string, value any, actor string, privileged bool) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var (
		typeTag  string
		readonly int
	)
	err := s.db.QueryRow(
		ctx,
		`SELECT type, is_readonly FROM settings WHERE namespace = ? AND key = ?`,
		namespace, key,
	).Scan(&typeTag, &readonly)
	if errors.Is(err, sql.ErrNoRows) {
		return services.Wrap(services.ErrNotFound, "settings", "set", fmt.Sprintf("setting %s:%s does not exist", namespace, key), nil)
	}
	if err != nil {
		return fmt.Errorf("lookup setting %s:%s: %w", namespace, key, err)
	}

	if readonly != 0 && !privileged {
		return services.Wrap(services.ErrReadOnly, "settings", "set", fmt.Sprintf("setting %s:%s is readonly", namespace, key), nil)
	}

	valueType, ok := ParseType(typeTag)
	if !ok {
		return services.Wrap(services.ErrDeserialization, "settings", "set", fmt.Sprintf("unknown type %q for %s:%s", typeTag, namespace, key), nil)
	}
	serialized, err := serialize(value, valueType)
	if err != nil {
		return err
	}
	// Cache the round-tripped form, not the caller's value, so cache hits and
	// cache misses agree (Set of an int must read back as float64).
	canonical, err := deserialize(serialized, valueType)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(
		ctx,
		`UPDATE settings SET value = ?, updated_at = ?, updated_by = ? WHERE namespace = ? AND key = ?`,
		serialized,
		time.Now().UTC().Format(time.RFC3339Nano),
		nullableString(actor),
		namespace, key,
	)
	if err != nil {
		return fmt.Errorf("update setting %s:%s: %w", namespace, key, err)
	}

	s.cacheMu.Lock()
	s.cache[cacheKey(namespace, key)] = canonical
	s.cacheMu.Unlock()

	s.logger.Info("setting updated",
		logging.String("namespace", namespace),
		logging.String("key", key),
	)
	s.fireHooks(namespace, key)
	return nil
}

// GetNamespace returns all deserialized values under a namespace.
func (s *Store) GetNamespace(ctx context.Context, namespace string) (map[string]any, error) {
	rows, err := s.db.Query(
		ctx,
		`SELECT key, type, value FROM settings WHERE namespace = ?`,
		namespace,
	)
	if err != nil {
		return nil, fmt.Errorf("namespace %s: %w", namespace, err)
	}
	defer rows.Close()

	result := make(map[string]any)
	for rows.Next() {
		var key, typeTag, raw string
		if err := rows.Scan(&key, &typeTag, &raw); err != nil {
			return nil, err
		}
		valueType, ok := ParseType(typeTag)
		if !ok {
			return nil, services.Wrap(services.ErrDeserialization, "settings", "namespace", fmt.Sprintf("unknown type %q for %s:%s", typeTag, namespace, key), nil)
		}
		value, err := deserialize(raw, valueType)
		if err != nil {
			return nil, err
		}
		result[key] = value
	}
	return result, rows.Err()
}

// SchemaEntry is one setting row including flags and current/default values.
type SchemaEntry struct {
	Namespace    string
	Key          string
	Type         Type
	Value        any
	DefaultValue any
	Label        string
	Description  string
	IsInternal   bool
	IsReadonly   bool
	IsSecret     bool
	IsPublic     bool
	UpdatedAt    *time.Time
	UpdatedBy    string
}

// Schema returns every setting with flags and values. Secret values are
// redacted unless the caller is privileged.
func (s *Store) Schema(ctx context.Context, privileged bool) ([]SchemaEntry, error) {
	rows, err := s.db.Query(
		ctx,
		`SELECT namespace, key, type, value, default_value, label, description,
                is_internal, is_readonly, is_secret, is_public, updated_at, updated_by
         FROM settings ORDER BY namespace, key`,
	)
	if err != nil {
		return nil, fmt.Errorf("settings schema: %w", err)
	}
	defer rows.Close()

	var entries []SchemaEntry
	for rows.Next() {
		var (
			entry        SchemaEntry
			typeTag      string
			raw          string
			defaultRaw   sql.NullString
			label        sql.NullString
			description  sql.NullString
			internalFlag int
			readonlyFlag int
			secretFlag   int
			publicFlag   int
			updatedRaw   sql.NullString
			updatedBy    sql.NullString
		)
		if err := rows.Scan(
			&entry.Namespace, &entry.Key, &typeTag, &raw, &defaultRaw,
			&label, &description,
			&internalFlag, &readonlyFlag, &secretFlag, &publicFlag,
			&updatedRaw, &updatedBy,
		); err != nil {
			return nil, err
		}

		valueType, ok := ParseType(typeTag)
		if !ok {
			return nil, services.Wrap(services.ErrDeserialization, "settings", "schema", fmt.Sprintf("unknown type %q for %s:%s", typeTag, entry.Namespace, entry.Key), nil)
		}
		entry.Type = valueType
		entry.Label = label.String
		entry.Description = description.String
		entry.IsInternal = internalFlag != 0
		entry.IsReadonly = readonlyFlag != 0
		entry.IsSecret = secretFlag != 0
		entry.IsPublic = publicFlag != 0
		entry.UpdatedBy = updatedBy.String
		if updatedRaw.Valid {
			if updated, err := time.Parse(time.RFC3339Nano, updatedRaw.String); err == nil {
				entry.UpdatedAt = &updated
			}
		}

		if entry.IsSecret && !privileged {
			entry.Value = nil
			entry.DefaultValue = nil
		} else {
			if entry.Value, err = deserialize(raw, valueType); err != nil {
				return nil, err
			}
			if defaultRaw.Valid {
				if entry.DefaultValue, err = deserialize(defaultRaw.String, valueType); err != nil {
					return nil, err
				}
			}
		}

		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Public returns isPublic settings grouped by namespace with deserialized
// values, for the unauthenticated read API. Secret settings never appear even
// when flagged public.
func (s *Store) Public(ctx context.Context) (map[string]map[string]any, error) {
	rows, err := s.db.Query(
		ctx,
		`SELECT namespace, key, type, value FROM settings
         WHERE is_public = 1 AND is_secret = 0
         ORDER BY namespace, key`,
	)
	if err != nil {
		return nil, fmt.Errorf("public settings: %w", err)
	}
	defer rows.Close()

	grouped := make(map[string]map[string]any)
	for rows.Next() {
		var namespace, key, typeTag, raw string
		if err := rows.Scan(&namespace, &key, &typeTag, &raw); err != nil {
			return nil, err
		}
		valueType, ok := ParseType(typeTag)
		if !ok {
			return nil, services.Wrap(services.ErrDeserialization, "settings", "public", fmt.Sprintf("unknown type %q for %s:%s", typeTag, namespace, key), nil)
		}
		value, err := deserialize(raw, valueType)
		if err != nil {
			return nil, err
		}
		if grouped[namespace] == nil {
			grouped[namespace] = make(map[string]any)
		}
		grouped[namespace][key] = value
	}
	return grouped, rows.Err()
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
