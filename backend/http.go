package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/milk9111/tileworld/levels"
	"github.com/milk9111/tileworld/logger"
)

// HTTPClient talks JSON to the level service:
//
//	GET /layers
//	GET /layers/{id}/placements
//	GET /objects/{id}
//	GET /tiles/{id}
type HTTPClient struct {
	BaseURL string
	HTTP    *http.Client
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) ListLayers(ctx context.Context) ([]levels.Layer, error) {
	var out []levels.Layer
	if err := c.get(ctx, "/layers", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) ListPlacements(ctx context.Context, layer int) ([]levels.Placement, error) {
	var out []levels.Placement
	if err := c.get(ctx, fmt.Sprintf("/layers/%d/placements", layer), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) FetchMeta(ctx context.Context, kind levels.Kind, id string) (levels.SpriteMeta, error) {
	var meta levels.SpriteMeta
	path := "/objects/"
	if kind == levels.KindTile {
		path = "/tiles/"
	}
	if err := c.get(ctx, path+url.PathEscape(id), &meta); err != nil {
		return levels.SpriteMeta{}, err
	}
	if err := meta.Validate(); err != nil {
		return levels.SpriteMeta{}, fmt.Errorf("backend: %s %s: %w: %v", kind, id, ErrData, err)
	}
	return meta, nil
}

func (c *HTTPClient) get(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("backend: GET %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client().Do(req)
	if err != nil {
		return fmt.Errorf("backend: GET %s: %w: %v", path, ErrNetwork, err)
	}
	defer resp.Body.Close()

	logger.Log.WithFields(logrus.Fields{
		"path":    path,
		"status":  resp.StatusCode,
		"elapsed": time.Since(start),
	}).Debug("backend request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("backend: GET %s: %w: status %d", path, ErrNetwork, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("backend: GET %s: %w: %v", path, ErrData, err)
	}
	return nil
}

func (c *HTTPClient) client() *http.Client {
	if c.HTTP == nil {
		return http.DefaultClient
	}
	return c.HTTP
}
