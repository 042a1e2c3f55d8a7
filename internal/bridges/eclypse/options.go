package eclypse

import (
	"crypto/tls"
	"errors"
	"net/http"
	"time"

	"github.com/nerrad567/eclypse-bridge/internal/bacnet"
)

const (
	defaultRequestTimeout = 10 * time.Second
	defaultMaxAttempts    = 3
	defaultInitialBackoff = 500 * time.Millisecond
	defaultMaxBackoff     = 5 * time.Second
)

// Logger is the optional logging dependency. *logging.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// RetryPolicy bounds how often a failed controller request is repeated.
// Only transport errors and 5xx/429 responses are retried.
type RetryPolicy struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int

	// InitialBackoff is the wait before the second attempt; it doubles for
	// each further attempt up to MaxBackoff.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryPolicy returns three attempts with 0.5s..5s backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    defaultMaxAttempts,
		InitialBackoff: defaultInitialBackoff,
		MaxBackoff:     defaultMaxBackoff,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = def.InitialBackoff
	}
	if p.MaxBackoff < p.InitialBackoff {
		p.MaxBackoff = max(def.MaxBackoff, p.InitialBackoff)
	}
	return p
}

// backoff returns the wait before attempt n (n >= 2).
func (p RetryPolicy) backoff(n int) time.Duration {
	d := p.InitialBackoff
	for i := 2; i < n; i++ {
		d *= 2
		if d >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	return min(d, p.MaxBackoff)
}

// ClientOptions configures a Client.
type ClientOptions struct {
	// Host is the controller address. A bare host or IP is reached over
	// HTTPS; an explicit http:// or https:// scheme is used as given.
	Host string

	Username string
	Password string

	// Registry holds the tracked objects. A new empty registry is created
	// when nil.
	Registry *bacnet.Registry

	// Timeout bounds each HTTP request. Default: 10s.
	Timeout time.Duration

	// VerifyTLS enables certificate verification. Eclypse controllers ship
	// with self-signed certificates, so it is off by default.
	VerifyTLS bool

	Retry RetryPolicy

	// HTTPClient overrides the transport entirely (Timeout and VerifyTLS
	// are then ignored).
	HTTPClient *http.Client

	Logger Logger
}

func (o ClientOptions) validate() error {
	var errs []error
	if o.Host == "" {
		errs = append(errs, errors.New("host is required"))
	}
	if o.Username == "" {
		errs = append(errs, errors.New("username is required"))
	}
	return errors.Join(errs...)
}

func (o ClientOptions) httpClient() *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	// #nosec G402 -- controllers use self-signed certificates unless VerifyTLS is set
	transport.TLSClientConfig = &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: !o.VerifyTLS,
	}
	return &http.Client{Timeout: timeout, Transport: transport}
}
