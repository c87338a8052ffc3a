// Package atproto provides the XRPC client used to talk to handle
// resolvers, the PLC directory and personal data servers: identity
// lookups, paginated record listing and content-addressed blob fetch.
// Every call retries transport failures and 5xx/429 responses with
// exponential backoff; other failures propagate as typed errors.
package atproto

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/matildepark/wisp-explorer/pkg/retry"
)

// listPageSize is the page size used for cursor-paginated listings.
const listPageSize = 100

// Client is an HTTP client for XRPC endpoints.
type Client struct {
	httpClient  *http.Client
	retryConfig retry.Config
}

// Config holds client configuration.
type Config struct {
	Timeout     time.Duration
	RetryConfig retry.Config
}

// NewClient creates a new client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryConfig.MaxAttempts == 0 {
		cfg.RetryConfig = retry.DefaultConfig()
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        100,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		retryConfig: cfg.RetryConfig,
	}
}

// get performs a single GET and returns the whole body. Transport
// errors and 5xx/429 come back marked retryable; 403 is a CorsError;
// other non-2xx statuses are terminal FetchErrors.
func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	return retry.DoWithResult(ctx, c.retryConfig, func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, retry.Retryable(&FetchError{URL: u, Msg: err.Error()})
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, retry.Retryable(&FetchError{URL: u, Status: resp.StatusCode, Msg: xrpcMessage(resp.Body)})
		}
		if resp.StatusCode == http.StatusForbidden {
			return nil, &CorsError{URL: u}
		}
		if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusNotFound {
			var xe xrpcError
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
			if json.Unmarshal(body, &xe) == nil && xe.Error == "RecordNotFound" {
				return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, xe.Message)
			}
			return nil, &FetchError{URL: u, Status: resp.StatusCode, Msg: xe.Message}
		}
		if resp.StatusCode != http.StatusOK {
			return nil, &FetchError{URL: u, Status: resp.StatusCode, Msg: http.StatusText(resp.StatusCode)}
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, retry.Retryable(&FetchError{URL: u, Msg: err.Error()})
		}
		return body, nil
	})
}

func xrpcMessage(r io.Reader) string {
	var xe xrpcError
	if json.NewDecoder(io.LimitReader(r, 1<<16)).Decode(&xe) == nil && xe.Message != "" {
		return xe.Message
	}
	return "server error"
}

// GetJSON fetches u and decodes the JSON body into out.
func (c *Client) GetJSON(ctx context.Context, u string, out any) error {
	body, err := c.get(ctx, u)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", u, err)
	}
	return nil
}

// ResolveHandle resolves a handle to a DID via the handle-resolution
// endpoint on resolverHost.
func (c *Client) ResolveHandle(ctx context.Context, resolverHost, handle string) (string, error) {
	u := fmt.Sprintf("%s/xrpc/com.atproto.identity.resolveHandle?handle=%s",
		strings.TrimRight(resolverHost, "/"), url.QueryEscape(handle))

	var out struct {
		DID string `json:"did"`
	}
	if err := c.GetJSON(ctx, u, &out); err != nil {
		return "", err
	}
	if out.DID == "" {
		return "", &FetchError{URL: u, Msg: "resolver returned no did"}
	}
	return out.DID, nil
}

// Record is one repository record: its rkey plus the raw lexicon value.
type Record struct {
	URI   string          `json:"uri"`
	CID   string          `json:"cid"`
	Value json.RawMessage `json:"value"`
}

// RKey returns the record key, the final segment of the at:// URI.
func (r Record) RKey() string {
	if i := strings.LastIndex(r.URI, "/"); i >= 0 {
		return r.URI[i+1:]
	}
	return r.URI
}

// ListRecords lists every record of collection in repo, following the
// pagination cursor until it is absent.
func (c *Client) ListRecords(ctx context.Context, pds, repo, collection string) ([]Record, error) {
	base := fmt.Sprintf("%s/xrpc/com.atproto.repo.listRecords?repo=%s&collection=%s&limit=%d",
		strings.TrimRight(pds, "/"), url.QueryEscape(repo), url.QueryEscape(collection), listPageSize)

	var all []Record
	cursor := ""
	for {
		u := base
		if cursor != "" {
			u += "&cursor=" + url.QueryEscape(cursor)
		}

		var page struct {
			Records []Record `json:"records"`
			Cursor  string   `json:"cursor"`
		}
		if err := c.GetJSON(ctx, u, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Records...)

		if page.Cursor == "" || len(page.Records) == 0 {
			return all, nil
		}
		cursor = page.Cursor
	}
}

// GetRecord fetches a single record by key. A missing record surfaces
// as ErrRecordNotFound.
func (c *Client) GetRecord(ctx context.Context, pds, repo, collection, rkey string) (*Record, error) {
	u := fmt.Sprintf("%s/xrpc/com.atproto.repo.getRecord?repo=%s&collection=%s&rkey=%s",
		strings.TrimRight(pds, "/"), url.QueryEscape(repo), url.QueryEscape(collection), url.QueryEscape(rkey))

	var rec Record
	if err := c.GetJSON(ctx, u, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetBlob fetches raw blob bytes by (did, cid) from the hosting
// endpoint.
func (c *Client) GetBlob(ctx context.Context, pds, did, cid string) ([]byte, error) {
	u := fmt.Sprintf("%s/xrpc/com.atproto.sync.getBlob?did=%s&cid=%s",
		strings.TrimRight(pds, "/"), url.QueryEscape(did), url.QueryEscape(cid))
	return c.get(ctx, u)
}
