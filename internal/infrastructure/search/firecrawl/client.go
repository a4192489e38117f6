package firecrawl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jjyaz/dohars-world/internal/core/domain"
)

const defaultBaseURL = "https://api.firecrawl.dev"

// Client wraps the Firecrawl search and scrape API. An empty API key
// leaves the client in unconfigured mode so tool handlers can degrade
// with a notice instead of failing.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func New(baseURL, apiKey string) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) Configured() bool {
	return c.apiKey != ""
}

type searchResponse struct {
	Success bool `json:"success"`
	Data    []struct {
		Title       string `json:"title"`
		URL         string `json:"url"`
		Description string `json:"description"`
	} `json:"data"`
}

func (c *Client) Search(ctx context.Context, query string, limit int) ([]domain.SearchResult, error) {
	if limit <= 0 {
		limit = 5
	}
	payload := map[string]any{"query": query, "limit": limit}

	var response searchResponse
	if err := c.postJSON(ctx, "/v1/search", payload, &response, "search"); err != nil {
		return nil, err
	}
	out := make([]domain.SearchResult, 0, len(response.Data))
	for _, item := range response.Data {
		out = append(out, domain.SearchResult{
			Title:       item.Title,
			URL:         item.URL,
			Description: item.Description,
		})
	}
	return out, nil
}

type scrapeResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Markdown string `json:"markdown"`
		Metadata struct {
			Title string `json:"title"`
		} `json:"metadata"`
	} `json:"data"`
}

func (c *Client) Scrape(ctx context.Context, url string) (*domain.ScrapedPage, error) {
	payload := map[string]any{
		"url":             url,
		"formats":         []string{"markdown"},
		"onlyMainContent": true,
	}

	var response scrapeResponse
	if err := c.postJSON(ctx, "/v1/scrape", payload, &response, "scrape"); err != nil {
		return nil, err
	}
	return &domain.ScrapedPage{
		Title:    response.Data.Metadata.Title,
		Markdown: response.Data.Markdown,
	}, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("firecrawl %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		msg := strings.TrimSpace(string(raw))
		if msg == "" {
			return fmt.Errorf("firecrawl %s status: %s", operation, resp.Status)
		}
		return fmt.Errorf("firecrawl %s status: %s: %s", operation, resp.Status, msg)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}
