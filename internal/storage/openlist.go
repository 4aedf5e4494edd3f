package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"lumina/internal/services"
)

const defaultPathField = "path"

// OpenListProvider stores blobs on an OpenList-style remote file host through
// its token-authenticated JSON API. Route paths come from config so the same
// provider works across host versions that move endpoints around.
type OpenListProvider struct {
	cfg    OpenListConfig
	client *http.Client
}

// NewOpenListProvider validates the config and prepares the HTTP client.
func NewOpenListProvider(cfg OpenListConfig) (*OpenListProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &OpenListProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: 60 * time.Second},
	}, nil
}

type openListResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type openListEntry struct {
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	IsDir    bool      `json:"is_dir"`
	Modified time.Time `json:"modified"`
	HashInfo string    `json:"hashinfo,omitempty"`
}

type openListListData struct {
	Content []openListEntry `json:"content"`
	Total   int             `json:"total"`
}

func (p *OpenListProvider) pathField() string {
	if p.cfg.PathField != "" {
		return p.cfg.PathField
	}
	return defaultPathField
}

func (p *OpenListProvider) remotePath(key string) string {
	return "/" + strings.Trim(path.Join(strings.Trim(p.cfg.RootPath, "/"), cleanKey(key)), "/")
}

func (p *OpenListProvider) endpointURL(route string) string {
	return joinURL(p.cfg.BaseURL, route)
}

// postJSON sends a token-authenticated JSON request and decodes the standard
// response envelope.
func (p *OpenListProvider) postJSON(ctx context.Context, route string, payload map[string]any) (*openListResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, services.Wrap(services.ErrProviderUnavailable, "storage", "openlist", "encode request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpointURL(route), bytes.NewReader(body))
	if err != nil {
		return nil, services.Wrap(services.ErrProviderUnavailable, "storage", "openlist", "build request", err)
	}
	req.Header.Set("Authorization", p.cfg.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrProviderUnavailable, "storage", "openlist", fmt.Sprintf("call %s", route), err)
	}
	defer resp.Body.Close()

	var decoded openListResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, services.Wrap(services.ErrProviderUnavailable, "storage", "openlist", fmt.Sprintf("decode %s response", route), err)
	}
	return &decoded, nil
}

func (r *openListResponse) absent() bool {
	if r.Code == http.StatusNotFound {
		return true
	}
	return strings.Contains(strings.ToLower(r.Message), "not found")
}

func (r *openListResponse) ok() bool {
	return r.Code == http.StatusOK
}

func (p *OpenListProvider) Create(ctx context.Context, key string, data []byte, contentType string) (*Object, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField(p.pathField(), p.remotePath(key)); err != nil {
		return nil, services.Wrap(services.ErrProviderUnavailable, "storage", "openlist", "encode upload", err)
	}
	part, err := writer.CreateFormFile("file", path.Base(cleanKey(key)))
	if err != nil {
		return nil, services.Wrap(services.ErrProviderUnavailable, "storage", "openlist", "encode upload", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, services.Wrap(services.ErrProviderUnavailable, "storage", "openlist", "encode upload", err)
	}
	if err := writer.Close(); err != nil {
		return nil, services.Wrap(services.ErrProviderUnavailable, "storage", "openlist", "encode upload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpointURL(p.cfg.Endpoints.Upload), &body)
	if err != nil {
		return nil, services.Wrap(services.ErrProviderUnavailable, "storage", "openlist", "build upload", err)
	}
	req.Header.Set("Authorization", p.cfg.Token)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if contentType != "" {
		req.Header.Set("X-File-Content-Type", contentType)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrProviderUnavailable, "storage", "openlist", fmt.Sprintf("upload %s", key), err)
	}
	defer resp.Body.Close()

	var decoded openListResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, services.Wrap(services.ErrProviderUnavailable, "storage", "openlist", "decode upload response", err)
	}
	if !decoded.ok() {
		return nil, services.Wrap(services.ErrProviderUnavailable, "storage", "openlist", fmt.Sprintf("upload %s: %s", key, decoded.Message), nil)
	}

	now := time.Now().UTC()
	return &Object{
		Key:          cleanKey(key),
		Size:         int64(len(data)),
		LastModified: &now,
	}, nil
}

func (p *OpenListProvider) Get(ctx context.Context, key string) ([]byte, error) {
	target := p.endpointURL(p.cfg.Endpoints.Download) + "?" + url.Values{
		p.pathField(): {p.remotePath(key)},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrProviderUnavailable, "storage", "openlist", "build download", err)
	}
	req.Header.Set("Authorization", p.cfg.Token)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrProviderUnavailable, "storage", "openlist", fmt.Sprintf("download %s", key), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, services.Wrap(services.ErrProviderUnavailable, "storage", "openlist", fmt.Sprintf("download %s: status %d", key, resp.StatusCode), nil)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrProviderUnavailable, "storage", "openlist", fmt.Sprintf("read %s", key), err)
	}
	return data, nil
}

func (p *OpenListProvider) Delete(ctx context.Context, key string) error {
	remote := p.remotePath(key)
	resp, err := p.postJSON(ctx, p.cfg.Endpoints.Delete, map[string]any{
		"dir":   path.Dir(remote),
		"names": []string{path.Base(remote)},
	})
	if err != nil {
		return err
	}
	if !resp.ok() && !resp.absent() {
		return services.Wrap(services.ErrProviderUnavailable, "storage", "openlist", fmt.Sprintf("delete %s: %s", key, resp.Message), nil)
	}
	return nil
}

func (p *OpenListProvider) GetPublicURL(key string) string {
	if p.cfg.CDNURL != "" {
		return joinURL(p.cfg.CDNURL, p.remotePath(key))
	}
	return joinURL(p.cfg.BaseURL, p.cfg.Endpoints.Download) + "?" + url.Values{
		p.pathField(): {p.remotePath(key)},
	}.Encode()
}

func (p *OpenListProvider) GetFileMeta(ctx context.Context, key string) (*Object, error) {
	resp, err := p.postJSON(ctx, p.cfg.Endpoints.Meta, map[string]any{
		p.pathField(): p.remotePath(key),
	})
	if err != nil {
		return nil, err
	}
	if resp.absent() {
		return nil, nil
	}
	if !resp.ok() {
		return nil, services.Wrap(services.ErrProviderUnavailable, "storage", "openlist", fmt.Sprintf("meta %s: %s", key, resp.Message), nil)
	}

	var entry openListEntry
	if err := json.Unmarshal(resp.Data, &entry); err != nil {
		return nil, services.Wrap(services.ErrProviderUnavailable, "storage", "openlist", "decode meta response", err)
	}

	modified := entry.Modified.UTC()
	return &Object{
		Key:          cleanKey(key),
		Size:         entry.Size,
		ETag:         entry.HashInfo,
		LastModified: &modified,
	}, nil
}

func (p *OpenListProvider) ListAll(ctx context.Context) ([]Object, error) {
	return p.listDir(ctx, "")
}

// listDir walks the remote tree rooted at the configured rootPath. Keys are
// reported relative to that root.
func (p *OpenListProvider) listDir(ctx context.Context, relative string) ([]Object, error) {
	resp, err := p.postJSON(ctx, p.cfg.Endpoints.List, map[string]any{
		p.pathField(): p.remotePath(relative),
	})
	if err != nil {
		return nil, err
	}
	if resp.absent() {
		return nil, nil
	}
	if !resp.ok() {
		return nil, services.Wrap(services.ErrProviderUnavailable, "storage", "openlist", fmt.Sprintf("list %s: %s", relative, resp.Message), nil)
	}

	var data openListListData
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, services.Wrap(services.ErrProviderUnavailable, "storage", "openlist", "decode list response", err)
	}

	var objects []Object
	for _, entry := range data.Content {
		childKey := path.Join(relative, entry.Name)
		if entry.IsDir {
			children, err := p.listDir(ctx, childKey)
			if err != nil {
				return nil, err
			}
			objects = append(objects, children...)
			continue
		}
		modified := entry.Modified.UTC()
		objects = append(objects, Object{
			Key:          childKey,
			Size:         entry.Size,
			ETag:         entry.HashInfo,
			LastModified: &modified,
		})
	}
	return objects, nil
}

func (p *OpenListProvider) ListImages(ctx context.Context) ([]Object, error) {
	objects, err := p.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return filterImages(objects), nil
}
