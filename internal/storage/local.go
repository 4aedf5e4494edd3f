package storage

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"lumina/internal/services"
)

// LocalProvider stores blobs under a filesystem root and serves them from a
// configured URL prefix.
type LocalProvider struct {
	cfg LocalConfig
}

// NewLocalProvider validates the config and ensures the root directory exists.
func NewLocalProvider(cfg LocalConfig) (*LocalProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(rootDir(cfg), 0o755); err != nil {
		return nil, services.Wrap(services.ErrProviderUnavailable, "storage", "local", "create storage root", err)
	}
	return &LocalProvider{cfg: cfg}, nil
}

func rootDir(cfg LocalConfig) string {
	if cfg.Prefix == "" {
		return cfg.BasePath
	}
	return filepath.Join(cfg.BasePath, filepath.FromSlash(strings.Trim(cfg.Prefix, "/")))
}

func (p *LocalProvider) pathFor(key string) string {
	return filepath.Join(rootDir(p.cfg), filepath.FromSlash(cleanKey(key)))
}

func (p *LocalProvider) Create(ctx context.Context, key string, data []byte, contentType string) (*Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	target := p.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return nil, services.Wrap(services.ErrProviderUnavailable, "storage", "local", fmt.Sprintf("create directory for %s", key), err)
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return nil, services.Wrap(services.ErrProviderUnavailable, "storage", "local", fmt.Sprintf("write %s", key), err)
	}
	info, err := os.Stat(target)
	if err != nil {
		return nil, services.Wrap(services.ErrProviderUnavailable, "storage", "local", fmt.Sprintf("stat %s", key), err)
	}
	return p.objectFor(cleanKey(key), info, data), nil
}

func (p *LocalProvider) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p.pathFor(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, services.Wrap(services.ErrProviderUnavailable, "storage", "local", fmt.Sprintf("read %s", key), err)
	}
	return data, nil
}

func (p *LocalProvider) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := os.Remove(p.pathFor(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return services.Wrap(services.ErrProviderUnavailable, "storage", "local", fmt.Sprintf("delete %s", key), err)
	}
	return nil
}

func (p *LocalProvider) GetPublicURL(key string) string {
	base := p.cfg.BaseURL
	if base == "" {
		base = "/"
	}
	return joinURL(base, p.cfg.Prefix, cleanKey(key))
}

func (p *LocalProvider) GetFileMeta(ctx context.Context, key string) (*Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info, err := os.Stat(p.pathFor(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, services.Wrap(services.ErrProviderUnavailable, "storage", "local", fmt.Sprintf("stat %s", key), err)
	}
	return p.objectFor(cleanKey(key), info, nil), nil
}

func (p *LocalProvider) ListAll(ctx context.Context) ([]Object, error) {
	root := rootDir(p.cfg)
	var objects []Object
	err := filepath.WalkDir(root, func(entryPath string, entry fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if entry.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, entryPath)
		if err != nil {
			return err
		}
		info, err := entry.Info()
		if err != nil {
			return err
		}
		objects = append(objects, *p.objectFor(filepath.ToSlash(rel), info, nil))
		return nil
	})
	if err != nil {
		return nil, services.Wrap(services.ErrProviderUnavailable, "storage", "local", "list storage root", err)
	}
	return objects, nil
}

func (p *LocalProvider) ListImages(ctx context.Context) ([]Object, error) {
	objects, err := p.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return filterImages(objects), nil
}

// objectFor builds object metadata from a stat result. When the blob bytes
// are at hand the etag is their digest; otherwise it is derived from path and
// mtime, which is stable until the file changes.
func (p *LocalProvider) objectFor(key string, info fs.FileInfo, data []byte) *Object {
	var digest [16]byte
	if data != nil {
		digest = md5.Sum(data)
	} else {
		digest = md5.Sum([]byte(path.Join(key, info.ModTime().UTC().String())))
	}
	modified := info.ModTime().UTC()
	return &Object{
		Key:          key,
		Size:         info.Size(),
		ETag:         hex.EncodeToString(digest[:]),
		LastModified: &modified,
	}
}
