package shortlink

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"taeu.kr/filebox/internal/files"
)

var ErrNotConfigured = errors.New("shortlink service is not configured")

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type linkPayload struct {
	ID      int64  `json:"id"`
	URL     string `json:"url"`
	LongURL string `json:"long_url"`
	Hits    int64  `json:"hits"`
}

type errorPayload struct {
	Error string `json:"error"`
}

// HTTPClient는 외부 단축 URL 서비스의 REST API를 호출합니다
type HTTPClient struct {
	resty *resty.Client
}

func NewHTTPClient(cfg Config) (*HTTPClient, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, ErrNotConfigured
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	client := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200*time.Millisecond).
		SetHeader("User-Agent", "filebox-shortlink/1.0").
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}
	return &HTTPClient{resty: client}, nil
}

func (c *HTTPClient) Shorten(ctx context.Context, longURL string) (*files.ShortLink, error) {
	var out linkPayload
	var apiErr errorPayload
	resp, err := c.resty.R().
		SetContext(ctx).
		SetBody(map[string]string{"url": longURL}).
		SetResult(&out).
		SetError(&apiErr).
		Post("/links")
	if err != nil {
		return nil, fmt.Errorf("shorten request failed: %w", err)
	}
	if resp.IsError() {
		return nil, responseError("shorten", resp.StatusCode(), apiErr)
	}
	if out.ID <= 0 {
		return nil, fmt.Errorf("shorten returned invalid id %d", out.ID)
	}
	return toShortLink(out), nil
}

func (c *HTTPClient) Delete(ctx context.Context, id int64) error {
	var apiErr errorPayload
	resp, err := c.resty.R().
		SetContext(ctx).
		SetPathParam("id", strconv.FormatInt(id, 10)).
		SetError(&apiErr).
		Delete("/links/{id}")
	if err != nil {
		return fmt.Errorf("delete request failed: %w", err)
	}
	if resp.IsError() {
		return responseError("delete", resp.StatusCode(), apiErr)
	}
	return nil
}

func (c *HTTPClient) Lookup(ctx context.Context, id int64) (*files.ShortLink, error) {
	var out linkPayload
	var apiErr errorPayload
	resp, err := c.resty.R().
		SetContext(ctx).
		SetPathParam("id", strconv.FormatInt(id, 10)).
		SetResult(&out).
		SetError(&apiErr).
		Get("/links/{id}")
	if err != nil {
		return nil, fmt.Errorf("lookup request failed: %w", err)
	}
	if resp.IsError() {
		return nil, responseError("lookup", resp.StatusCode(), apiErr)
	}
	return toShortLink(out), nil
}

func toShortLink(p linkPayload) *files.ShortLink {
	return &files.ShortLink{ID: p.ID, URL: p.URL, LongURL: p.LongURL, Hits: p.Hits}
}

func responseError(op string, status int, apiErr errorPayload) error {
	if apiErr.Error != "" {
		return fmt.Errorf("%s failed with status %d: %s", op, status, apiErr.Error)
	}
	return fmt.Errorf("%s failed with status %d", op, status)
}
