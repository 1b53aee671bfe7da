package pipedrive

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"
)

const (
	// DefaultPageSize is the page size used when ListParams.Limit is unset.
	DefaultPageSize = 100
	maxErrorBody    = 1024
)

// Client is a thin transport wrapper around the Pipedrive REST API. It only
// holds the current access token and the company api domain.
type Client struct {
	apiDomain  string
	httpClient *http.Client
	limiter    *rate.Limiter
	now        func() time.Time

	mu          sync.RWMutex
	accessToken string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRateLimit paces outgoing requests to rps requests per second.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// NewClient creates a client for the given company domain, e.g.
// "https://acme.pipedrive.com".
func NewClient(accessToken, apiDomain string, opts ...Option) *Client {
	c := &Client{
		apiDomain:   strings.TrimRight(apiDomain, "/"),
		accessToken: accessToken,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetAccessToken swaps the bearer token after a refresh.
func (c *Client) SetAccessToken(token string) {
	c.mu.Lock()
	c.accessToken = token
	c.mu.Unlock()
}

func (c *Client) token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken
}

// request performs an authenticated call and decodes the JSON body into out.
func (c *Client) request(ctx context.Context, method, path string, query url.Values, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	reqURL := c.apiDomain + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token())
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("pipedrive %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		_, _ = io.Copy(io.Discard, resp.Body)
		return ErrUnauthorized
	case resp.StatusCode == http.StatusTooManyRequests:
		_, _ = io.Copy(io.Discard, resp.Body)
		return &RateLimitError{RetryAfterSeconds: parseRetryAfter(resp.Header, c.now())}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody+1))
		return &APIError{StatusCode: resp.StatusCode, Body: truncate(string(body), maxErrorBody)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (p ListParams) values() url.Values {
	q := url.Values{}
	limit := p.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	q.Set("limit", strconv.Itoa(limit))
	if p.Cursor != "" {
		q.Set("cursor", p.Cursor)
	}
	if p.UpdatedSince != "" {
		q.Set("updated_since", p.UpdatedSince)
	}
	if p.SortBy != "" {
		q.Set("sort_by", p.SortBy)
	}
	if p.SortDirection != "" {
		q.Set("sort_direction", p.SortDirection)
	}
	if len(p.CustomFields) > 0 {
		q.Set("custom_fields", strings.Join(p.CustomFields, ","))
	}
	return q
}

func (c *Client) list(ctx context.Context, path string, params ListParams) (RecordPage, error) {
	var resp listResponse
	if err := c.request(ctx, http.MethodGet, path, params.values(), &resp); err != nil {
		return RecordPage{}, err
	}
	page := RecordPage{Items: resp.Data}
	if resp.AdditionalData.NextCursor != nil {
		page.NextCursor = *resp.AdditionalData.NextCursor
	}
	return page, nil
}

// ListOrganizations returns one page of organizations.
func (c *Client) ListOrganizations(ctx context.Context, params ListParams) (RecordPage, error) {
	return c.list(ctx, "/api/v2/organizations", params)
}

// ListPersons returns one page of persons.
func (c *Client) ListPersons(ctx context.Context, params ListParams) (RecordPage, error) {
	return c.list(ctx, "/api/v2/persons", params)
}

// GetOrganization fetches a single organization.
func (c *Client) GetOrganization(ctx context.Context, id int64) (Record, error) {
	var resp itemResponse[Record]
	path := "/api/v2/organizations/" + strconv.FormatInt(id, 10)
	if err := c.request(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (c *Client) fields(ctx context.Context, path, start string) (FieldPage, error) {
	q := url.Values{}
	q.Set("limit", "500")
	if start != "" {
		q.Set("start", start)
	}
	var resp fieldsResponse
	if err := c.request(ctx, http.MethodGet, path, q, &resp); err != nil {
		return FieldPage{}, err
	}
	page := FieldPage{Items: resp.Data}
	if p := resp.AdditionalData.Pagination; p.MoreItemsInCollection {
		page.NextStart = strconv.Itoa(p.NextStart)
	}
	return page, nil
}

// OrganizationFields returns one page of organization field definitions.
func (c *Client) OrganizationFields(ctx context.Context, start string) (FieldPage, error) {
	return c.fields(ctx, "/api/v1/organizationFields", start)
}

// PersonFields returns one page of person field definitions.
func (c *Client) PersonFields(ctx context.Context, start string) (FieldPage, error) {
	return c.fields(ctx, "/api/v1/personFields", start)
}

// CurrentUser returns the user the token was issued to.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	var resp itemResponse[User]
	if err := c.request(ctx, http.MethodGet, "/api/v1/users/me", nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}
