package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"post-stats-service/backend/internal/entity"
)

// ErrFetchFailure 网络、状态码、解码失败都包成它
var ErrFetchFailure = errors.New("stats fetch failed")

// Client 调用 /stats HTTP 接口
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
}

const (
	defaultBaseURL   = "127.0.0.1:8080"
	defaultUserAgent = "post-stats/0.1"
	requestTimeout   = 5 * time.Second
	statsPath        = "/stats"
)

// NewClient base 可以是 host:port，也可以是完整 URL
func NewClient(base string) (*Client, error) {
	u, err := parseBaseURL(base)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL: u,
		http: &http.Client{
			Timeout: requestTimeout,
		},
		userAgent: defaultUserAgent,
	}, nil
}

func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

type statsBody struct {
	Views uint64 `json:"views"`
	Likes uint64 `json:"likes"`
}

func (c *Client) GetStats(ctx context.Context, slug string) (entity.PostStats, error) {
	values := url.Values{}
	values.Set("slug", slug)
	rel := &url.URL{Path: statsPath, RawQuery: values.Encode()}
	var payload statsBody
	if err := c.doURL(ctx, http.MethodGet, rel, nil, &payload); err != nil {
		return entity.PostStats{}, err
	}
	return entity.PostStats{Slug: slug, Views: payload.Views, Likes: payload.Likes}, nil
}

// GetAll 拉整份文档
func (c *Client) GetAll(ctx context.Context) (entity.StatsDocument, error) {
	var doc entity.StatsDocument
	if err := c.doURL(ctx, http.MethodGet, &url.URL{Path: statsPath}, nil, &doc); err != nil {
		return entity.NewStatsDocument(), err
	}
	if doc.Posts == nil {
		return entity.NewStatsDocument(), nil
	}
	for slug, st := range doc.Posts {
		st.Slug = slug
		doc.Posts[slug] = st
	}
	return doc, nil
}

// RecordAction 提交一次动作，返回更新后的计数
func (c *Client) RecordAction(ctx context.Context, slug string, action entity.Action) (entity.PostStats, error) {
	body := map[string]string{"slug": slug, "action": string(action)}
	var payload statsBody
	if err := c.doURL(ctx, http.MethodPost, &url.URL{Path: statsPath}, body, &payload); err != nil {
		return entity.PostStats{}, err
	}
	return entity.PostStats{Slug: slug, Views: payload.Views, Likes: payload.Likes}, nil
}

func (c *Client) doURL(ctx context.Context, method string, rel *url.URL, in any, dest any) error {
	reqURL := c.baseURL.ResolveReference(rel)

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%w: encode request: %v", ErrFetchFailure, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), body)
	if err != nil {
		return fmt.Errorf("%w: create request: %v", ErrFetchFailure, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: execute request: %w", ErrFetchFailure, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error != "" {
			return fmt.Errorf("%w: api %s returned status %d: %s", ErrFetchFailure, rel.Path, resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("%w: api %s returned status %d", ErrFetchFailure, rel.Path, resp.StatusCode)
	}
	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrFetchFailure, err)
	}
	return nil
}

func parseBaseURL(base string) (*url.URL, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		trimmed = defaultBaseURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse base url %q: %w", base, err)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
