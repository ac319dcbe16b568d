// Package search wraps the blog-search endpoint. The API authenticates with
// a client id/secret header pair and returns up to 10 hits whose titles and
// descriptions may embed highlight markup, which is stripped here so callers
// only ever see plain text.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"time"
)

const (
	// DefaultBaseURL is the blog-search endpoint of the Naver Open API.
	DefaultBaseURL = "https://openapi.naver.com/v1/search/blog.json"

	headerClientID     = "X-Naver-Client-Id"
	headerClientSecret = "X-Naver-Client-Secret"

	maxHits = 10
)

// Credentials is the id/secret pair the search backend expects.
type Credentials struct {
	ID     string
	Secret string
}

// Hit is one search result with markup already stripped.
type Hit struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Link        string `json:"link"`
}

// StatusError reports a non-success HTTP response, as opposed to a
// transport failure which surfaces as a wrapped network error.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("search API returned status %d: %s", e.Code, e.Body)
}

// Client calls the search endpoint. Zero state beyond configuration.
type Client struct {
	baseURL string
	client  *http.Client
}

func New(baseURL string, client *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{baseURL: baseURL, client: client}
}

type searchResp struct {
	Items []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Link        string `json:"link"`
	} `json:"items"`
}

// Search runs one query and replaces nothing locally: the caller owns the
// resulting list. Returns at most 10 hits in API order.
func (c *Client) Search(ctx context.Context, query string, creds Credentials) ([]Hit, error) {
	if query == "" {
		return nil, errors.New("search query is empty")
	}
	if creds.ID == "" || creds.Secret == "" {
		return nil, errors.New("search credentials are not configured")
	}

	u := fmt.Sprintf("%s?query=%s&display=%d", c.baseURL, url.QueryEscape(query), maxHits)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set(headerClientID, creds.ID)
	req.Header.Set(headerClientSecret, creds.Secret)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("search response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	var parsed searchResp
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("search response: %w", err)
	}

	hits := make([]Hit, 0, len(parsed.Items))
	for _, it := range parsed.Items {
		hits = append(hits, Hit{
			Title:       StripMarkup(it.Title),
			Description: StripMarkup(it.Description),
			Link:        it.Link,
		})
		if len(hits) == maxHits {
			break
		}
	}
	return hits, nil
}

var tagRe = regexp.MustCompile(`<[^>]*>`)

// StripMarkup removes highlight tags and decodes HTML entities.
func StripMarkup(s string) string {
	return html.UnescapeString(tagRe.ReplaceAllString(s, ""))
}
