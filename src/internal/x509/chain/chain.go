// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package x509chain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/H0llyW00dzZ/x509-path-validator/src/internal/helper/gc"
	x509certs "github.com/H0llyW00dzZ/x509-path-validator/src/internal/x509/certs"
)

// Defaults applied by [NewHTTPConfig].
const (
	DefaultTimeout      = 10 * time.Second
	DefaultMaxRedirects = 1
	DefaultMaxBodySize  = 16 << 20
)

// ErrTooManyRedirects is returned when a server redirects more often than
// [HTTPConfig.MaxRedirects] allows.
var ErrTooManyRedirects = errors.New("x509chain: too many redirects")

// HTTPResponse is the part of an HTTP reply revocation checking needs.
type HTTPResponse struct {
	StatusCode int
	Body       []byte
}

// Transport is the HTTP collaborator used for OCSP, CRL and AIA fetches.
// Implementations must be safe for concurrent use.
type Transport interface {
	Get(ctx context.Context, url string) (*HTTPResponse, error)
	Post(ctx context.Context, url, contentType string, body []byte) (*HTTPResponse, error)
}

// HTTPConfig holds HTTP client configuration for certificate operations.
// It is the default [Transport].
//
// Timeout and MaxRedirects are read once, when the first request builds the
// client; changes made afterwards have no effect.
type HTTPConfig struct {
	Timeout      time.Duration // HTTP request timeout
	Version      string        // Application version for User-Agent
	UserAgent    string        // Custom User-Agent string, if empty will be constructed from Version
	MaxRedirects int           // Redirects followed per request
	MaxBodySize  int64         // Largest accepted response body in bytes
	Pool         gc.Pool       // Buffer pool for response bodies, gc.Default when nil

	once   sync.Once
	client *http.Client
}

// NewHTTPConfig creates a new HTTP configuration with default values.
//
// Parameters:
//   - version: Application version string
//
// Returns:
//   - *HTTPConfig: New HTTP configuration
func NewHTTPConfig(version string) *HTTPConfig {
	return &HTTPConfig{
		Timeout:      DefaultTimeout,
		Version:      version,
		MaxRedirects: DefaultMaxRedirects,
		MaxBodySize:  DefaultMaxBodySize,
	}
}

// GetUserAgent returns the User-Agent string, constructing it if not set.
func (c *HTTPConfig) GetUserAgent() string {
	if c.UserAgent != "" {
		return c.UserAgent
	}
	return fmt.Sprintf("X.509-Path-Validator/%s (+https://github.com/H0llyW00dzZ/x509-path-validator)", c.Version)
}

// Client returns the HTTP client, building it on first use with the
// current timeout and redirect limit.
//
// Thread Safety: Safe for concurrent use.
func (c *HTTPConfig) Client() *http.Client {
	c.once.Do(func() {
		maxRedirects := c.MaxRedirects
		c.client = &http.Client{
			Timeout: c.Timeout,
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) > maxRedirects {
					return ErrTooManyRedirects
				}
				return nil
			},
		}
	})
	return c.client
}

// Get implements [Transport].
func (c *HTTPConfig) Get(ctx context.Context, url string) (*HTTPResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

// Post implements [Transport].
func (c *HTTPConfig) Post(ctx context.Context, url, contentType string, body []byte) (*HTTPResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	return c.do(req)
}

func (c *HTTPConfig) do(req *http.Request) (*HTTPResponse, error) {
	req.Header.Set("User-Agent", c.GetUserAgent())

	resp, err := c.Client().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := gc.ReadAll(c.Pool, resp.Body, c.MaxBodySize)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", req.URL, err)
	}
	return &HTTPResponse{StatusCode: resp.StatusCode, Body: body}, nil
}

// FetchIssuers follows the AIA "CA Issuers" URLs starting at cert and
// returns the certificates downloaded on the way, nearest issuer first.
//
// The walk stops at a self-signed certificate, at a certificate without an
// issuer URL, after limit downloads, or at the first failure. Downloaded
// certificates are untrusted; they only serve as supplemental input to
// [BuildAllPaths].
//
// Parameters:
//   - ctx: Context for cancellation and timeouts
//   - t: HTTP collaborator
//   - cert: Starting certificate
//   - limit: Maximum number of downloads
//
// Returns:
//   - []*Certificate: Downloaded certificates, possibly partial
//   - error: First fetch or decode failure
func FetchIssuers(ctx context.Context, t Transport, cert *Certificate, limit int) ([]*Certificate, error) {
	codec := x509certs.New()
	seen := map[Fingerprint]struct{}{cert.Fingerprint(): {}}

	var out []*Certificate
	last := cert
	for len(out) < limit && !last.IsSelfSigned() && len(last.IssuingCertificateURL) > 0 {
		resp, err := t.Get(ctx, last.IssuingCertificateURL[0])
		if err != nil {
			return out, err
		}
		if resp.StatusCode != http.StatusOK {
			return out, fmt.Errorf("fetching %s: HTTP %d", last.IssuingCertificateURL[0], resp.StatusCode)
		}

		parsed, err := codec.Decode(resp.Body)
		if err != nil {
			return out, err
		}

		issuer := NewCertificate(parsed)
		if _, loop := seen[issuer.Fingerprint()]; loop {
			break
		}
		seen[issuer.Fingerprint()] = struct{}{}
		out = append(out, issuer)
		last = issuer
	}
	return out, nil
}
