package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"lumina/internal/api"
	"lumina/internal/config"
	"lumina/internal/logging"
	"lumina/internal/queue"
	"lumina/internal/testsupport"
)

func startTestDaemon(t *testing.T, opts ...testsupport.ConfigOption) (*config.Config, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	d, err := New(cfg, testsupport.MustOpenDB(t, cfg), logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(d.Stop)
	return cfg, "http://" + d.APIAddr()
}

func getJSON(t *testing.T, url string, dst any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if dst != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func postJSON(t *testing.T, url string, body, dst any) int {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	if dst != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func waitForJobStatus(t *testing.T, baseURL string, id int64, want queue.Status) api.QueueJob {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		var resp api.QueueJobResponse
		if code := getJSON(t, fmt.Sprintf("%s/api/queue/%d", baseURL, id), &resp); code != http.StatusOK {
			t.Fatalf("GET job %d: status %d", id, code)
		}
		if resp.Item.Status == string(want) {
			return resp.Item
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %d never reached status %s", id, want)
	return api.QueueJob{}
}

func TestAPIStatus(t *testing.T) {
	_, baseURL := startTestDaemon(t)

	var status api.DaemonStatus
	if code := getJSON(t, baseURL+"/api/status", &status); code != http.StatusOK {
		t.Fatalf("status code = %d", code)
	}
	if !status.Running || !status.Workflow.Running {
		t.Fatalf("status = %+v, want running", status)
	}
	if status.StorageProvider != "local" {
		t.Fatalf("StorageProvider = %q", status.StorageProvider)
	}
}

func TestAPIEnqueuePhotoToCompletion(t *testing.T) {
	cfg, baseURL := startTestDaemon(t)

	original := filepath.Join(cfg.StorageRoot(), "originals", "beach.jpg")
	if err := os.MkdirAll(filepath.Dir(original), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(original, testsupport.JPEGBytes(t, 800, 600), 0o644); err != nil {
		t.Fatalf("write original: %v", err)
	}

	var created api.QueueJobResponse
	code := postJSON(t, baseURL+"/api/queue/photos", api.EnqueuePhotoRequest{StorageKey: "originals/beach.jpg"}, &created)
	if code != http.StatusCreated {
		t.Fatalf("enqueue status = %d", code)
	}
	if created.Item.Type != "photo" {
		t.Fatalf("job type = %q", created.Item.Type)
	}

	waitForJobStatus(t, baseURL, created.Item.ID, queue.StatusCompleted)

	var list api.PhotoListResponse
	if code := getJSON(t, baseURL+"/api/photos", &list); code != http.StatusOK {
		t.Fatalf("list photos status = %d", code)
	}
	if list.Total != 1 || len(list.Items) != 1 {
		t.Fatalf("photo list = %+v, want one photo", list)
	}
	photo := list.Items[0]
	if photo.Width != 800 || photo.Height != 600 {
		t.Fatalf("dimensions = %dx%d", photo.Width, photo.Height)
	}
	if photo.ThumbnailURL == "" {
		t.Fatal("thumbnail URL not set")
	}

	var single api.PhotoResponse
	if code := getJSON(t, baseURL+"/api/photos/"+photo.ID, &single); code != http.StatusOK {
		t.Fatalf("get photo status = %d", code)
	}
	if single.Item.StorageKey != "originals/beach.jpg" {
		t.Fatalf("StorageKey = %q", single.Item.StorageKey)
	}
}

func TestAPIQueueValidation(t *testing.T) {
	_, baseURL := startTestDaemon(t)

	if code := postJSON(t, baseURL+"/api/queue/photos", api.EnqueuePhotoRequest{}, nil); code != http.StatusBadRequest {
		t.Fatalf("empty storage key status = %d, want 400", code)
	}
	if code := getJSON(t, baseURL+"/api/queue?status=bogus", nil); code != http.StatusBadRequest {
		t.Fatalf("bogus status filter = %d, want 400", code)
	}
	if code := getJSON(t, baseURL+"/api/queue/abc", nil); code != http.StatusBadRequest {
		t.Fatalf("non-numeric id = %d, want 400", code)
	}
	if code := getJSON(t, baseURL+"/api/queue/999999", nil); code != http.StatusNotFound {
		t.Fatalf("missing job = %d, want 404", code)
	}
	if code := getJSON(t, baseURL+"/api/photos/nope", nil); code != http.StatusNotFound {
		t.Fatalf("missing photo = %d, want 404", code)
	}
}

func TestAPIRetryAndClearFailedJobs(t *testing.T) {
	_, baseURL := startTestDaemon(t, testsupport.WithMaxAttempts(1))

	var created api.QueueJobResponse
	code := postJSON(t, baseURL+"/api/queue/photos", api.EnqueuePhotoRequest{StorageKey: "originals/missing.jpg"}, &created)
	if code != http.StatusCreated {
		t.Fatalf("enqueue status = %d", code)
	}
	failed := waitForJobStatus(t, baseURL, created.Item.ID, queue.StatusFailed)
	if failed.ErrorMessage == "" {
		t.Fatal("failed job kept no error message")
	}

	var retried api.QueueMutationResponse
	if code := postJSON(t, baseURL+"/api/queue/retry", api.RetryRequest{IDs: []int64{created.Item.ID}}, &retried); code != http.StatusOK {
		t.Fatalf("retry status = %d", code)
	}
	if retried.Affected != 1 {
		t.Fatalf("retry affected = %d, want 1", retried.Affected)
	}

	// Still no file in storage, so the retry fails terminally again.
	waitForJobStatus(t, baseURL, created.Item.ID, queue.StatusFailed)

	req, err := http.NewRequest(http.MethodPost, baseURL+"/api/queue/clear?status=failed", nil)
	if err != nil {
		t.Fatalf("build clear request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	defer resp.Body.Close()
	var cleared api.QueueMutationResponse
	if err := json.NewDecoder(resp.Body).Decode(&cleared); err != nil {
		t.Fatalf("decode clear: %v", err)
	}
	if cleared.Affected != 1 {
		t.Fatalf("clear affected = %d, want 1", cleared.Affected)
	}

	var list api.QueueListResponse
	if code := getJSON(t, baseURL+"/api/queue", &list); code != http.StatusOK {
		t.Fatalf("list status = %d", code)
	}
	if len(list.Items) != 0 {
		t.Fatalf("queue not empty after clear: %+v", list.Items)
	}
}

func TestAPIQueueClearPrunesCompletedOlderThan(t *testing.T) {
	cfg, baseURL := startTestDaemon(t)

	original := filepath.Join(cfg.StorageRoot(), "originals", "old.jpg")
	if err := os.MkdirAll(filepath.Dir(original), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(original, testsupport.JPEGBytes(t, 64, 48), 0o644); err != nil {
		t.Fatalf("write original: %v", err)
	}

	var created api.QueueJobResponse
	if code := postJSON(t, baseURL+"/api/queue/photos", api.EnqueuePhotoRequest{StorageKey: "originals/old.jpg"}, &created); code != http.StatusCreated {
		t.Fatalf("enqueue status = %d", code)
	}
	waitForJobStatus(t, baseURL, created.Item.ID, queue.StatusCompleted)

	if code := postJSON(t, baseURL+"/api/queue/clear?older-than=abc", struct{}{}, nil); code != http.StatusBadRequest {
		t.Fatalf("malformed older-than = %d, want 400", code)
	}
	if code := postJSON(t, baseURL+"/api/queue/clear?older-than=24h&status=failed", struct{}{}, nil); code != http.StatusBadRequest {
		t.Fatalf("older-than with failed status = %d, want 400", code)
	}

	// Fresh completions survive the cutoff.
	var pruned api.QueueMutationResponse
	if code := postJSON(t, baseURL+"/api/queue/clear?older-than=24h", struct{}{}, &pruned); code != http.StatusOK {
		t.Fatalf("prune status = %d", code)
	}
	if pruned.Affected != 0 {
		t.Fatalf("prune affected = %d, want 0", pruned.Affected)
	}

	backdated := time.Now().UTC().Add(-72 * time.Hour).Format(time.RFC3339Nano)
	database := testsupport.MustOpenDB(t, cfg)
	if _, err := database.Exec(context.Background(),
		`UPDATE pipeline_queue SET completed_at = ? WHERE id = ?`, backdated, created.Item.ID); err != nil {
		t.Fatalf("backdate completion: %v", err)
	}

	if code := postJSON(t, baseURL+"/api/queue/clear?older-than=24h", struct{}{}, &pruned); code != http.StatusOK {
		t.Fatalf("prune status = %d", code)
	}
	if pruned.Affected != 1 {
		t.Fatalf("prune affected = %d, want 1", pruned.Affected)
	}
	if code := getJSON(t, fmt.Sprintf("%s/api/queue/%d", baseURL, created.Item.ID), nil); code != http.StatusNotFound {
		t.Fatalf("pruned job status = %d, want 404", code)
	}
}

func TestAPISettingsReadAndPrivilegedWrite(t *testing.T) {
	_, baseURL := startTestDaemon(t, testsupport.WithAPIToken("sesame"))

	var public map[string]map[string]any
	if code := getJSON(t, baseURL+"/api/settings", &public); code != http.StatusOK {
		t.Fatalf("settings status = %d", code)
	}
	if public["app"]["title"] != "Lumina" {
		t.Fatalf("app.title = %v", public["app"]["title"])
	}
	if _, leaked := public["storage"]["s3.secretAccessKey"]; leaked {
		t.Fatal("secret setting exposed through public read")
	}

	update := func(token string) int {
		body, _ := json.Marshal(api.SettingUpdateRequest{Value: "Holiday Album"})
		req, err := http.NewRequest(http.MethodPut, baseURL+"/api/settings/app/title", bytes.NewReader(body))
		if err != nil {
			t.Fatalf("build request: %v", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("PUT setting: %v", err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	if code := update(""); code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated write = %d, want 401", code)
	}
	if code := update("wrong"); code != http.StatusUnauthorized {
		t.Fatalf("bad token write = %d, want 401", code)
	}
	if code := update("sesame"); code != http.StatusNoContent {
		t.Fatalf("authorized write = %d, want 204", code)
	}

	if code := getJSON(t, baseURL+"/api/settings", &public); code != http.StatusOK {
		t.Fatalf("settings status = %d", code)
	}
	if public["app"]["title"] != "Holiday Album" {
		t.Fatalf("app.title after write = %v", public["app"]["title"])
	}
}
