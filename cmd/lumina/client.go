package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"lumina/internal/api"
	"lumina/internal/queue"
)

// apiClient is a thin HTTP wrapper around the daemon API.
type apiClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func newAPIClient(addr, token string) *apiClient {
	base := strings.TrimSpace(addr)
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &apiClient{
		baseURL: strings.TrimRight(base, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *apiClient) Status() (*api.DaemonStatus, error) {
	var out api.DaemonStatus
	if err := c.do(http.MethodGet, "/api/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) ListQueue(statuses []string) ([]api.QueueJob, error) {
	path := "/api/queue"
	if len(statuses) > 0 {
		values := url.Values{}
		for _, status := range statuses {
			values.Add("status", status)
		}
		path += "?" + values.Encode()
	}
	var out api.QueueListResponse
	if err := c.do(http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c *apiClient) GetJob(id int64) (*api.QueueJob, error) {
	var out api.QueueJobResponse
	if err := c.do(http.MethodGet, fmt.Sprintf("/api/queue/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return &out.Item, nil
}

func (c *apiClient) EnqueuePhoto(req api.EnqueuePhotoRequest) (*api.QueueJob, error) {
	var out api.QueueJobResponse
	if err := c.do(http.MethodPost, "/api/queue/photos", req, &out); err != nil {
		return nil, err
	}
	return &out.Item, nil
}

func (c *apiClient) EnqueueLivePhotoVideo(req api.EnqueuePhotoRequest) (*api.QueueJob, error) {
	var out api.QueueJobResponse
	if err := c.do(http.MethodPost, "/api/queue/live-photos", req, &out); err != nil {
		return nil, err
	}
	return &out.Item, nil
}

func (c *apiClient) EnqueueGeocoding(req api.EnqueueGeocodingRequest) (*api.QueueJob, error) {
	var out api.QueueJobResponse
	if err := c.do(http.MethodPost, "/api/queue/geocoding", req, &out); err != nil {
		return nil, err
	}
	return &out.Item, nil
}

func (c *apiClient) RetryFailed(ids []int64) (int64, error) {
	var out api.QueueMutationResponse
	if err := c.do(http.MethodPost, "/api/queue/retry", api.RetryRequest{IDs: ids}, &out); err != nil {
		return 0, err
	}
	return out.Affected, nil
}

func (c *apiClient) ClearQueue(status queue.Status, olderThan time.Duration) (int64, error) {
	values := url.Values{}
	if status != "" {
		values.Set("status", string(status))
	}
	if olderThan > 0 {
		values.Set("older-than", olderThan.String())
	}
	path := "/api/queue/clear"
	if encoded := values.Encode(); encoded != "" {
		path += "?" + encoded
	}
	var out api.QueueMutationResponse
	if err := c.do(http.MethodPost, path, struct{}{}, &out); err != nil {
		return 0, err
	}
	return out.Affected, nil
}

func (c *apiClient) ListPhotos(limit, offset int) (*api.PhotoListResponse, error) {
	var out api.PhotoListResponse
	path := fmt.Sprintf("/api/photos?limit=%d&offset=%d", limit, offset)
	if err := c.do(http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) GetPhoto(id string) (*api.Photo, error) {
	var out api.PhotoResponse
	if err := c.do(http.MethodGet, "/api/photos/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out.Item, nil
}

func (c *apiClient) Settings() (map[string]map[string]any, error) {
	var out map[string]map[string]any
	if err := c.do(http.MethodGet, "/api/settings", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *apiClient) SetSetting(namespace, key string, value any) error {
	path := "/api/settings/" + url.PathEscape(namespace) + "/" + url.PathEscape(key)
	return c.do(http.MethodPut, path, api.SettingUpdateRequest{Value: value}, nil)
}

func (c *apiClient) do(method, path string, body, dst any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("daemon unreachable at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr api.ErrorResponse
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Error != "" {
			return fmt.Errorf("daemon: %s", apiErr.Error)
		}
		return fmt.Errorf("daemon returned status %d", resp.StatusCode)
	}
	if dst == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
