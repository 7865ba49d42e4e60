package photos

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/example/trig-gallery/internal/platform/ratelimit"
)

// Lister fetches pages of the photo collection.
type Lister interface {
	ListPhotos(ctx context.Context, skip, limit int) (*Page, error)
}

// Rotator rotates a photo on behalf of an authenticated caller.
type Rotator interface {
	RotatePhoto(ctx context.Context, id int64, angle int, token string) (Photo, error)
}

type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	UserAgent  string
	Limiter    *ratelimit.Limiter
}

func New(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		UserAgent:  "trig-gallery/1.0",
	}
}

// ListPhotos issues GET /v1/photos?skip=&limit=.
func (c *Client) ListPhotos(ctx context.Context, skip, limit int) (*Page, error) {
	if skip < 0 {
		return nil, fmt.Errorf("photos: skip must be >= 0, got %d", skip)
	}
	if limit <= 0 {
		return nil, fmt.Errorf("photos: limit must be > 0, got %d", limit)
	}
	q := url.Values{}
	q.Set("skip", strconv.Itoa(skip))
	q.Set("limit", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/v1/photos?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	var out Page
	if err := c.do(req, "list", &out); err != nil {
		return nil, err
	}
	if out.Items == nil {
		out.Items = []Photo{}
	}
	return &out, nil
}

type rotateRequest struct {
	Angle int `json:"angle"`
}

// RotatePhoto issues POST /v1/photos/{id}/rotate and returns the updated record.
func (c *Client) RotatePhoto(ctx context.Context, id int64, angle int, token string) (Photo, error) {
	switch angle {
	case 90, 180, 270:
	default:
		return Photo{}, ErrInvalidAngle
	}
	body, err := json.Marshal(rotateRequest{Angle: angle})
	if err != nil {
		return Photo{}, err
	}
	u := c.BaseURL + "/v1/photos/" + strconv.FormatInt(id, 10) + "/rotate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return Photo{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	var out Photo
	if err := c.do(req, "rotate", &out); err != nil {
		return Photo{}, err
	}
	return out, nil
}

func (c *Client) do(req *http.Request, op string, dst any) error {
	if err := c.Limiter.Wait(req.Context()); err != nil {
		return &FetchError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.UserAgent)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return &FetchError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return &FetchError{Op: op, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &FetchError{Op: op, Status: resp.StatusCode, Body: string(b[:min(len(b), 200)])}
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return &ParseError{Op: op, Body: string(b[:min(len(b), 200)]), Err: err}
	}
	return nil
}
