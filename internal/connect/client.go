package connect

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"routeget/internal/config"
	"routeget/internal/model"
)

const (
	authScheme  = "JWT"
	maxErrorLen = 64 * 1024 // сколько тела ответа сохраняем в BackendError
)

type (
	Device     = model.Device
	Route      = model.Route
	RouteFiles = model.RouteFiles
	UploadURL  = model.UploadURL
)

// Client - клиент API бэкенда. Учётные данные передаются явно через конфигурацию.
type Client struct {
	baseURL     *url.URL
	jwt         string
	client      *http.Client
	rpcTimeout  time.Duration
	httpTimeout time.Duration
}

func New(cfg config.Connect, client *http.Client) (*Client, error) {
	if cfg.JWT == "" {
		return nil, model.ErrCredentialRequired
	}

	baseURL, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url failed: %w", err)
	}
	if baseURL.Scheme == "" || baseURL.Host == "" {
		return nil, fmt.Errorf("base url must be absolute, got %q", cfg.BaseURL)
	}

	if client == nil {
		client = http.DefaultClient
	}

	return &Client{
		baseURL:     baseURL,
		jwt:         cfg.JWT,
		client:      client,
		rpcTimeout:  cfg.RPCTimeout,
		httpTimeout: cfg.HTTPTimeout,
	}, nil
}

// ListDevices GET /v1/me/devices
func (c *Client) ListDevices(ctx context.Context) ([]Device, error) {
	var devices []Device
	if err := c.get(ctx, nil, &devices, "v1", "me", "devices"); err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	return devices, nil
}

// ListRoutes GET /v1/devices/{id}/routes_segments, границы окна в миллисекундах.
func (c *Client) ListRoutes(ctx context.Context, dongleID string, start, end time.Time) ([]Route, error) {
	query := url.Values{
		"start": {strconv.FormatInt(start.UnixMilli(), 10)},
		"end":   {strconv.FormatInt(end.UnixMilli(), 10)},
	}
	var routes []Route
	if err := c.get(ctx, query, &routes, "v1", "devices", dongleID, "routes_segments"); err != nil {
		return nil, fmt.Errorf("list routes of %s: %w", dongleID, err)
	}
	return routes, nil
}

// ListRouteFiles GET /v1/route/{fullname}/files. Неизвестные корзины отбрасываются.
func (c *Client) ListRouteFiles(ctx context.Context, fullname string) (RouteFiles, error) {
	var raw map[string][]string
	if err := c.get(ctx, nil, &raw, "v1", "route", fullname, "files"); err != nil {
		return nil, fmt.Errorf("list files of %s: %w", fullname, err)
	}

	files := make(RouteFiles, len(model.Categories))
	for _, ci := range model.Categories {
		if urls, ok := raw[string(ci.Category)]; ok {
			files[ci.Category] = urls
		}
	}
	return files, nil
}

type uploadURLsRequest struct {
	Paths []string `json:"paths"`
}

// RequestUploadURLs POST /v1/{id}/upload_urls, по одному подписанному адресу на путь.
func (c *Client) RequestUploadURLs(ctx context.Context, dongleID string, paths []string) ([]UploadURL, error) {
	ctx, cancel := c.withHTTPTimeout(ctx)
	defer cancel()

	u := c.baseURL.JoinPath("v1", dongleID, "upload_urls")
	var urls []UploadURL
	if err := c.post(ctx, u, uploadURLsRequest{Paths: paths}, &urls); err != nil {
		return nil, fmt.Errorf("request upload urls of %s: %w", dongleID, err)
	}
	if len(urls) != len(paths) {
		return nil, fmt.Errorf("request upload urls of %s: got %d urls for %d paths", dongleID, len(urls), len(paths))
	}
	return urls, nil
}

func (c *Client) withHTTPTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.httpTimeout > 0 {
		return context.WithTimeout(ctx, c.httpTimeout)
	}
	return ctx, func() {}
}

func (c *Client) get(ctx context.Context, query url.Values, out any, elem ...string) error {
	ctx, cancel := c.withHTTPTimeout(ctx)
	defer cancel()

	u := c.baseURL.JoinPath(elem...)
	if query == nil {
		query = url.Values{}
	}
	query.Set("sig", c.jwt)
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("create request failed: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, u *url.URL, body, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("create request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", authScheme+" "+c.jwt)
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorLen))
		return &model.BackendError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response failed: %w", err)
	}
	return nil
}

// IsTimeout сообщает, вызвана ли ошибка истечением таймаута.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, model.ErrRPCTimeout) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
