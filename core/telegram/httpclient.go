package telegram

import (
	"net"
	"net/http"
	"time"

	"github.com/m3rciful/encoderbot/core/telegram/netutil"
)

// HTTPOptions tunes the Telegram API client. Zero values select defaults.
type HTTPOptions struct {
	DialTimeout     time.Duration
	ResponseTimeout time.Duration
	ClientTimeout   time.Duration
	RetryAttempts   int
	RetryBackoff    time.Duration
}

func (o HTTPOptions) withDefaults() HTTPOptions {
	if o.DialTimeout <= 0 {
		o.DialTimeout = 5 * time.Second
	}
	if o.ResponseTimeout <= 0 {
		// Long polling keeps the response open for the poll timeout.
		o.ResponseTimeout = 75 * time.Second
	}
	if o.ClientTimeout <= 0 {
		o.ClientTimeout = 90 * time.Second
	}
	if o.RetryAttempts < 0 {
		o.RetryAttempts = 0
	} else if o.RetryAttempts == 0 {
		o.RetryAttempts = 3
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 2 * time.Second
	}
	return o
}

// BuildHTTPClient returns an HTTP client for Telegram API calls that retries
// transient transport failures.
func BuildHTTPClient(opts HTTPOptions) *http.Client {
	opts = opts.withDefaults()
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: opts.DialTimeout, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: opts.ResponseTimeout,
		ExpectContinueTimeout: time.Second,
	}
	return &http.Client{
		Timeout: opts.ClientTimeout,
		Transport: &retryTransport{
			base:       transport,
			maxRetries: opts.RetryAttempts,
			backoff:    opts.RetryBackoff,
		},
	}
}

type retryTransport struct {
	base       http.RoundTripper
	maxRetries int
	backoff    time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}

	var lastErr error
	for attempt := 0; attempt <= t.maxRetries; attempt++ {
		curr := req
		if attempt > 0 {
			if req.Body != nil && req.GetBody == nil {
				// Body already consumed and cannot be replayed.
				return nil, lastErr
			}
			curr = req.Clone(req.Context())
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, err
				}
				curr.Body = body
			}

			timer := time.NewTimer(t.backoff * time.Duration(attempt))
			select {
			case <-req.Context().Done():
				timer.Stop()
				return nil, req.Context().Err()
			case <-timer.C:
			}
		}

		resp, err := base.RoundTrip(curr)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !netutil.ShouldRetry(err) {
			break
		}
	}
	return nil, lastErr
}
