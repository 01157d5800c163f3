package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Uploader stores one binary attachment and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, filename string, content io.Reader) (url string, err error)
}

// HTTPUploader talks to an object-storage gateway: POST the raw bytes to
// <endpoint>/<generated-name>, get back {"url": "..."}.
type HTTPUploader struct {
	Endpoint string
	APIKey   string
	Client   *http.Client
}

func (u *HTTPUploader) Upload(ctx context.Context, filename string, content io.Reader) (string, error) {
	client := u.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	// randomized destination name, original extension kept
	name := uuid.NewString() + path.Ext(filename)
	target := strings.TrimRight(u.Endpoint, "/") + "/" + name

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, content)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	if u.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+u.APIKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<14))
		return "", fmt.Errorf("storage responded %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode storage response: %w", err)
	}
	if result.URL == "" {
		return "", fmt.Errorf("storage returned no url")
	}
	return result.URL, nil
}
