// Package translate talks to a LibreTranslate compatible HTTP API.
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"blog_trans_bot/internal/retry"
)

type Config struct {
	Endpoint   string
	APIKey     string
	SourceLang string
	Timeout    time.Duration
}

type Client struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	sourceLang string
}

func NewClient(cfg Config) *Client {
	source := cfg.SourceLang
	if source == "" {
		source = "auto"
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		endpoint:   strings.TrimRight(cfg.Endpoint, "/") + "/translate",
		apiKey:     cfg.APIKey,
		sourceLang: source,
	}
}

type request struct {
	Q      []string `json:"q"`
	Source string   `json:"source"`
	Target string   `json:"target"`
	Format string   `json:"format"`
	APIKey string   `json:"api_key,omitempty"`
}

type response struct {
	TranslatedText []string `json:"translatedText"`
	Error          string   `json:"error"`
}

// Translate translates texts into dest in a single request. The result has
// the same length and order as texts.
func (c *Client) Translate(ctx context.Context, texts []string, dest string) ([]string, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(request{
		Q:      texts,
		Source: c.sourceLang,
		Target: dest,
		Format: "text",
		APIKey: c.apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &retry.StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(payload))}
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("translate: %s", out.Error)
	}
	if len(out.TranslatedText) != len(texts) {
		return nil, fmt.Errorf("translate: got %d results for %d texts", len(out.TranslatedText), len(texts))
	}

	return out.TranslatedText, nil
}
