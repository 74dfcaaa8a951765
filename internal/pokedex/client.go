package pokedex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

const (
	DefaultBaseURL         = "https://pokeapi.co/api/v2"
	DefaultUpstreamTimeout = 5 * time.Second
)

const (
	endpointCount  = "count"
	endpointList   = "list"
	endpointDetail = "detail"
)

type Resource struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type Detail struct {
	Stats map[string]int
	Types []string
}

type countResp struct {
	Count *int `json:"count"`
}

type listResp struct {
	Results *[]Resource `json:"results"`
}

type detailResp struct {
	Stats *[]struct {
		Stat struct {
			Name string `json:"name"`
		} `json:"stat"`
		BaseStat int `json:"base_stat"`
	} `json:"stats"`
	Types *[]struct {
		Type struct {
			Name string `json:"name"`
		} `json:"type"`
	} `json:"types"`
}

// Client talks to the upstream creature API. Every call is bounded by the
// http.Client timeout.
type Client struct {
	BaseURL string
	Client  *http.Client
	Metrics *Metrics
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if u, err := url.Parse(baseURL); err == nil && u.Scheme != "" && u.Host != "" {
		baseURL = strings.TrimRight(baseURL, "/")
	}
	if timeout <= 0 {
		timeout = DefaultUpstreamTimeout
	}
	return &Client{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: timeout},
	}
}

// Count returns the total number of catalog entries upstream.
func (c *Client) Count(ctx context.Context) (int, error) {
	var out countResp
	if err := c.getJSON(ctx, endpointCount, c.BaseURL+"/pokemon", &out); err != nil {
		return 0, err
	}
	if out.Count == nil {
		return 0, c.fail(endpointCount, fmt.Errorf("%w: missing count", ErrUpstreamBadPayload))
	}
	c.Metrics.observeUpstream(endpointCount, resultOK)
	return *out.Count, nil
}

// List returns limit entries starting at offset, in upstream order.
func (c *Client) List(ctx context.Context, limit, offset int) ([]Resource, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))

	var out listResp
	if err := c.getJSON(ctx, endpointList, c.BaseURL+"/pokemon?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	if out.Results == nil {
		return nil, c.fail(endpointList, fmt.Errorf("%w: missing results", ErrUpstreamBadPayload))
	}
	c.Metrics.observeUpstream(endpointList, resultOK)
	return *out.Results, nil
}

// Detail fetches stats and types for the entry at sourceURL.
func (c *Client) Detail(ctx context.Context, sourceURL string) (Detail, error) {
	var out detailResp
	if err := c.getJSON(ctx, endpointDetail, sourceURL, &out); err != nil {
		return Detail{}, err
	}
	if out.Stats == nil || out.Types == nil {
		return Detail{}, c.fail(endpointDetail, fmt.Errorf("%w: missing stats or types", ErrUpstreamBadPayload))
	}

	d := Detail{
		Stats: make(map[string]int, len(*out.Stats)),
		Types: make([]string, 0, len(*out.Types)),
	}
	for _, s := range *out.Stats {
		d.Stats[s.Stat.Name] = s.BaseStat
	}
	for _, t := range *out.Types {
		d.Types = append(d.Types, t.Type.Name)
	}
	c.Metrics.observeUpstream(endpointDetail, resultOK)
	return d, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return c.fail(endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", requestID(ctx))

	resp, err := c.Client.Do(req)
	if err != nil {
		return c.fail(endpoint, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return c.fail(endpoint, fmt.Errorf("%w: status=%d", ErrUpstreamBadStatus, resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return c.fail(endpoint, fmt.Errorf("%w: %v", ErrUpstreamBadPayload, err))
	}
	return nil
}

func (c *Client) fail(endpoint string, err error) error {
	c.Metrics.observeUpstream(endpoint, resultError)
	return &UpstreamError{Op: endpoint, Err: err}
}

func requestID(ctx context.Context) string {
	if id := chimw.GetReqID(ctx); id != "" {
		return id
	}
	return uuid.NewString()
}
