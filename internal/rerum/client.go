package rerum

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/CenterForDigitalHumanities/TPEN-services-sub000/internal/apperror"
	"github.com/CenterForDigitalHumanities/TPEN-services-sub000/internal/config"

	"go.uber.org/zap"
)

// Client talks to a RERUM-style annotation store. Documents created there are
// immutable by id: Update produces a new version, Overwrite replaces the
// current version in place and fails with 409 when the caller's copy is stale.
type Client struct {
	baseURL string
	idBase  string
	token   string
	http    *http.Client
	logger  *zap.Logger
}

func NewClient(cfg *config.Config, logger *zap.Logger) *Client {
	return &Client{
		baseURL: cfg.RerumURL,
		idBase:  cfg.RerumIDBase,
		token:   cfg.RerumToken,
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

// NewClientWithHTTP is used by tests to point the client at a local server.
func NewClientWithHTTP(baseURL, idBase string, hc *http.Client, logger *zap.Logger) *Client {
	return &Client{baseURL: baseURL, idBase: idBase, http: hc, logger: logger}
}

// IDBase returns the prefix under which the store mints document ids. An id
// carrying this prefix is a foreign id.
func (c *Client) IDBase() string {
	return c.idBase
}

// Create stores a new document and returns the server's copy, including the
// id the server assigned when the document did not carry one.
func (c *Client) Create(ctx context.Context, doc map[string]any) (map[string]any, error) {
	return c.send(ctx, http.MethodPost, c.baseURL+"/create", doc)
}

// Update stores a new version of the document identified by its "@id".
func (c *Client) Update(ctx context.Context, doc map[string]any) (map[string]any, error) {
	return c.send(ctx, http.MethodPut, c.baseURL+"/update", doc)
}

// Overwrite replaces the current version of the document in place. A 409
// response means the document changed since the caller read it; the response
// body carries the server's current copy and is surfaced as a
// VersionConflict.
func (c *Client) Overwrite(ctx context.Context, doc map[string]any) (map[string]any, error) {
	return c.send(ctx, http.MethodPut, c.baseURL+"/overwrite", doc)
}

// Query runs a property filter against the store.
func (c *Client) Query(ctx context.Context, filter map[string]any) ([]map[string]any, error) {
	body, err := json.Marshal(filter)
	if err != nil {
		return nil, apperror.BadRequest("unencodable query filter: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/query", bytes.NewReader(body))
	if err != nil {
		return nil, apperror.ExternalStore(err, "building query request")
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperror.ExternalStore(err, "annotation store unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.statusError(resp)
	}

	var docs []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&docs); err != nil {
		return nil, apperror.ExternalStore(err, "decoding query response")
	}
	return docs, nil
}

// Fetch retrieves a document by its URI. A missing document is a NotFound,
// distinguishable from transport failures.
func (c *Client) Fetch(ctx context.Context, uri string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, apperror.ExternalStore(err, "building fetch request for %s", uri)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperror.ExternalStore(err, "annotation store unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, apperror.NotFound("no document at %s", uri)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.statusError(resp)
	}

	var doc map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, apperror.ExternalStore(err, "decoding document at %s", uri)
	}
	return doc, nil
}

// Delete removes a document. RERUM marks it deleted rather than purging it,
// so a second delete of the same id answers 412 and is reported as a
// Conflict.
func (c *Client) Delete(ctx context.Context, uri string) error {
	body, err := json.Marshal(map[string]any{"@id": uri})
	if err != nil {
		return apperror.ExternalStore(err, "encoding delete body")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/delete", bytes.NewReader(body))
	if err != nil {
		return apperror.ExternalStore(err, "building delete request")
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return apperror.ExternalStore(err, "annotation store unreachable")
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode <= 299:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return apperror.NotFound("no document at %s", uri)
	case resp.StatusCode == http.StatusPreconditionFailed:
		return apperror.Conflict("document at %s already deleted", uri)
	default:
		return c.statusError(resp)
	}
}

func (c *Client) send(ctx context.Context, method, url string, doc map[string]any) (map[string]any, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, apperror.BadRequest("unencodable document: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, apperror.ExternalStore(err, "building %s request", method)
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperror.ExternalStore(err, "annotation store unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict {
		// The body is the server's current copy of the contested document.
		var current map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&current); err != nil {
			c.logger.Warn("conflict response without a readable body", zap.Error(err))
		}
		return nil, apperror.VersionConflict(current)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.statusError(resp)
	}

	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, apperror.ExternalStore(err, "decoding store response")
	}
	return result, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func (c *Client) statusError(resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return apperror.ExternalStore(
		fmt.Errorf("%s %s: %s", resp.Request.Method, resp.Request.URL, resp.Status),
		"annotation store rejected request: %s", string(snippet),
	)
}
