package serper

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/hunterpro/hunter-cli/internal/resilience"
)

const (
	defaultBaseURL = "https://google.serper.dev"
	providerName   = "serper"
)

// Defaults applied to zero-valued Request fields.
const (
	DefaultNum      = 50
	DefaultCountry  = "eg"
	DefaultLanguage = "ar"
)

// Client performs Serper web search operations. The API key is passed per
// call so one client can serve a rotating credential pool.
type Client interface {
	Search(ctx context.Context, apiKey string, req Request) (*Response, error)
}

// Request is a single search query.
type Request struct {
	Query    string `json:"q"`
	Num      int    `json:"num,omitempty"`
	Recency  string `json:"tbs,omitempty"`
	Country  string `json:"gl,omitempty"`
	Language string `json:"hl,omitempty"`
}

func (r Request) withDefaults() Request {
	if r.Num <= 0 {
		r.Num = DefaultNum
	}
	if r.Country == "" {
		r.Country = DefaultCountry
	}
	if r.Language == "" {
		r.Language = DefaultLanguage
	}
	return r
}

// Response is the subset of the search response the hunter reads.
type Response struct {
	Organic []Organic `json:"organic"`
}

// Organic is one organic search result.
type Organic struct {
	Title    string `json:"title"`
	Snippet  string `json:"snippet"`
	Link     string `json:"link"`
	Position int    `json:"position"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Serper search client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Search(ctx context.Context, apiKey string, sr Request) (*Response, error) {
	body, err := json.Marshal(sr.withDefaults())
	if err != nil {
		return nil, eris.Wrap(err, "serper: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "serper: create request")
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "serper: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "serper: read response")
	}

	if err := statusError(resp.StatusCode, respBody); err != nil {
		return nil, err
	}

	var result Response
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "serper: unmarshal response")
	}

	return &result, nil
}

// statusError maps a non-200 status onto the resilience error taxonomy.
func statusError(code int, body []byte) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusTooManyRequests:
		return &resilience.RateLimitedError{Provider: providerName, Body: string(body)}
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return &resilience.InvalidCredentialError{Provider: providerName, StatusCode: code}
	case resilience.IsTransientHTTPStatus(code):
		return resilience.NewTransientError(eris.Errorf("serper: unexpected status %d: %s", code, string(body)), code)
	default:
		return eris.Errorf("serper: unexpected status %d: %s", code, string(body))
	}
}
