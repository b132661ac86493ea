// Package client talks to the off-chain collaborators: the generation
// service, the credential issuer, the content store, and the content
// gateways. On-chain access lives elsewhere; nothing here signs anything.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	defaultTimeout = 15 * time.Second
	userAgent      = "story-adventure/1.0"
)

// Endpoints collects the off-chain service URLs.
type Endpoints struct {
	Generation string
	Credential string
	Upload     string
}

type Client struct {
	client    *http.Client
	cache     *cache.Cache
	endpoints Endpoints
	logger    zerolog.Logger
}

func New(endpoints Endpoints, logger zerolog.Logger) *Client {
	httpClient := http.Client{
		Timeout: defaultTimeout,
	}

	c := &Client{
		client:    &httpClient,
		cache:     cache.New(10*time.Minute, 15*time.Minute),
		endpoints: endpoints,
		logger:    logger.With().Str("module", "client").Logger(),
	}
	httpClient.Transport = c
	return c
}

func (c *Client) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", userAgent)
	return http.DefaultTransport.RoundTrip(req)
}

// postJSON posts body as JSON and decodes a JSON response into out.
func (c *Client) postJSON(ctx context.Context, url string, body any, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return errors.Wrap(err, "failed to encode request body")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to perform request")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "failed to decode response")
	}
	return nil
}

// postRaw posts body as JSON and returns the raw response bytes.
func (c *Client) postRaw(ctx context.Context, url string, body any) ([]byte, string, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, "", errors.Wrap(err, "failed to encode request body")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return nil, "", errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, "", errors.Wrap(err, "failed to perform request")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", errors.Wrap(err, "failed to read response body")
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// FetchBlob retrieves bytes from a gateway URL. Content-addressed URLs are
// immutable, so responses are cached for the session.
func (c *Client) FetchBlob(ctx context.Context, url string) ([]byte, error) {
	if cached, found := c.cache.Get("blob:" + url); found {
		return cached.([]byte), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to perform request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d fetching %s", resp.StatusCode, url)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}

	c.cache.Set("blob:"+url, data, cache.DefaultExpiration)
	return data, nil
}

// FetchJSON retrieves a JSON document from a gateway URL into out.
func (c *Client) FetchJSON(ctx context.Context, url string, out any) error {
	data, err := c.FetchBlob(ctx, url)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
