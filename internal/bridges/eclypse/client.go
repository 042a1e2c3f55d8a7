package eclypse

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/eclypse-bridge/internal/bacnet"
)

// REST layout below the controller origin.
const (
	apiRoot     = "/api/rest/v1"
	objectsRoot = "protocols/bacnet/local/objects"

	readPropertyMultiple  = objectsRoot + "/read-property-multiple"
	writePropertyMultiple = objectsRoot + "/write-property-multiple"
	deviceInfoPath        = "info/device"

	// maxErrorBody caps how much of a failed response is kept for logging.
	maxErrorBody = 512
)

// Client is a REST client for one Eclypse controller and the owner of that
// controller's object registry.
//
// Poll and write cycles are serialised; the registry itself may be read
// concurrently by other goroutines.
type Client struct {
	host     string
	origin   string
	username string
	password string
	basic    string

	http     *http.Client
	retry    RetryPolicy
	registry *bacnet.Registry
	logger   Logger

	cookieMu sync.RWMutex
	cookie   string

	// cycleMu serialises PollProperties and FlushWrites.
	cycleMu sync.Mutex

	statsMu sync.RWMutex
	stats   Stats
}

// NewClient builds a REST client for one controller.
//
// No request is made here. The first request authenticates with HTTP Basic
// and switches to the session cookie once the controller issues one.
//
// Parameters:
//   - opts: Controller address and login (required), plus optional
//     registry, timeout, TLS, retry and logger settings
//
// Returns:
//   - *Client: Client owning opts.Registry, or a new empty registry
//   - error: If Host or Username is missing
//
// Thread Safety: The returned client is safe for concurrent use. Poll and
// write cycles are serialised against each other.
func NewClient(opts ClientOptions) (*Client, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	reg := opts.Registry
	if reg == nil {
		reg = bacnet.NewRegistry()
	}

	return &Client{
		host:     opts.Host,
		origin:   originFor(opts.Host),
		username: opts.Username,
		password: opts.Password,
		basic:    base64.StdEncoding.EncodeToString([]byte(opts.Username + ":" + opts.Password)),
		http:     opts.httpClient(),
		retry:    opts.Retry.withDefaults(),
		registry: reg,
		logger:   opts.Logger,
	}, nil
}

func originFor(host string) string {
	host = strings.TrimRight(host, "/")
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return host
	}
	return "https://" + host
}

// Host returns the controller address the client was built with.
func (c *Client) Host() string { return c.host }

// Registry returns the client's object registry.
func (c *Client) Registry() *bacnet.Registry { return c.registry }

// endpointURL resolves a path relative to /api/rest/v1, or an absolute
// object href that already carries the API root.
func (c *Client) endpointURL(path string) string {
	if strings.HasPrefix(path, apiRoot+"/") {
		return c.origin + path
	}
	return c.origin + apiRoot + "/" + strings.TrimLeft(path, "/")
}

func (c *Client) sessionCookie() string {
	c.cookieMu.RLock()
	defer c.cookieMu.RUnlock()
	return c.cookie
}

// HasSession reports whether a controller session cookie is held.
func (c *Client) HasSession() bool { return c.sessionCookie() != "" }

func (c *Client) captureCookie(resp *http.Response) {
	cookies := resp.Cookies()
	if len(cookies) == 0 {
		return
	}
	parts := make([]string, 0, len(cookies))
	for _, ck := range cookies {
		parts = append(parts, ck.Name+"="+ck.Value)
	}

	c.cookieMu.Lock()
	if c.cookie == "" {
		c.cookie = strings.Join(parts, "; ")
	}
	c.cookieMu.Unlock()
}

// dropCookie forgets the session if it is still the one that failed.
func (c *Client) dropCookie(stale string) {
	c.cookieMu.Lock()
	if c.cookie == stale {
		c.cookie = ""
	}
	c.cookieMu.Unlock()
}

// response is a fully read controller response.
type response struct {
	status int
	body   []byte
}

// roundTrip performs one HTTP exchange with the given session cookie, or
// with Basic credentials when cookie is empty.
func (c *Client) roundTrip(ctx context.Context, method, path string, payload []byte, cookie string) (response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpointURL(path), body)
	if err != nil {
		return response{}, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != "" {
		req.Header.Set("Cookie", cookie)
	} else {
		req.Header.Set("Authorization", "Basic "+c.basic)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return response{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return response{}, err
	}

	if resp.StatusCode == http.StatusOK && cookie == "" {
		c.captureCookie(resp)
	}
	return response{status: resp.StatusCode, body: data}, nil
}

// exchange performs one logical request, falling back from an expired
// session cookie to Basic credentials once.
func (c *Client) exchange(ctx context.Context, method, path string, payload []byte) (response, error) {
	cookie := c.sessionCookie()
	resp, err := c.roundTrip(ctx, method, path, payload, cookie)
	if err != nil || resp.status != http.StatusUnauthorized || cookie == "" {
		return resp, err
	}

	c.logWarn("controller session rejected, retrying with basic auth", "path", path)
	c.dropCookie(cookie)
	return c.roundTrip(ctx, method, path, payload, "")
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

// do sends a request and returns the body of a 200 response, retrying
// transport errors and retryable statuses per the client's RetryPolicy.
func (c *Client) do(ctx context.Context, method, path string, in any) ([]byte, error) {
	return c.send(ctx, method, path, in, c.retry.MaxAttempts)
}

// doOnce is do without retries, for requests that must not reach the
// controller twice.
func (c *Client) doOnce(ctx context.Context, method, path string, in any) ([]byte, error) {
	return c.send(ctx, method, path, in, 1)
}

func (c *Client) send(ctx context.Context, method, path string, in any, attempts int) ([]byte, error) {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return nil, fmt.Errorf("encoding %s request: %w", path, err)
		}
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			wait := c.retry.backoff(attempt)
			c.logDebug("retrying controller request", "path", path, "attempt", attempt, "backoff", wait)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %w (after %v)", ErrRequestFailed, ctx.Err(), lastErr)
			case <-time.After(wait):
			}
		}

		resp, err := c.exchange(ctx, method, path, payload)
		if err != nil {
			lastErr = fmt.Errorf("%w: %s %s: %w", ErrRequestFailed, method, path, err)
			if ctx.Err() != nil {
				return nil, lastErr
			}
			continue
		}
		if resp.status == http.StatusOK {
			return resp.body, nil
		}

		body := resp.body
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		c.logError("controller returned error status",
			fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.status),
			"method", method, "path", path, "body", string(body))

		lastErr = fmt.Errorf("%w: %s %s returned %d", ErrUnexpectedStatus, method, path, resp.status)
		if !retryable(resp.status) {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

// getJSON GETs path and decodes the 200 body into out.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	data, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDecodeFailed, path, err)
	}
	return nil
}

func (c *Client) logDebug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

func (c *Client) logInfo(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Info(msg, args...)
	}
}

func (c *Client) logWarn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}

func (c *Client) logError(msg string, err error, args ...any) {
	if c.logger != nil {
		c.logger.Error(msg, append([]any{"error", err}, args...)...)
	}
}
