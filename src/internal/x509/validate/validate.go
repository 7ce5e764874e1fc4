// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package validate

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/H0llyW00dzZ/x509-path-validator/src/internal/metrics"
	x509chain "github.com/H0llyW00dzZ/x509-path-validator/src/internal/x509/chain"
	"github.com/H0llyW00dzZ/x509-path-validator/src/internal/x509/revocation"
	"github.com/H0llyW00dzZ/x509-path-validator/src/internal/x509/status"
	"github.com/H0llyW00dzZ/x509-path-validator/src/internal/x509/store"
	"github.com/H0llyW00dzZ/x509-path-validator/src/logger"
	"github.com/H0llyW00dzZ/x509-path-validator/src/version"
	"github.com/google/uuid"
)

var (
	// ErrNoCertificates is returned when a validation gets no end entity.
	ErrNoCertificates = errors.New("validate: no certificates to validate")
	// ErrNilCertificate is returned when a supplied certificate is nil.
	ErrNilCertificate = errors.New("validate: nil certificate")
	// ErrNoStores is returned when a validation gets no trusted store.
	ErrNoStores = errors.New("validate: no trusted stores")
)

// Request holds the inputs of one validation.
type Request struct {
	// Certificates holds the end entity first, followed by untrusted
	// certificates that may complete the path.
	Certificates []*x509.Certificate
	Restrictions Restrictions
	// Stores hold the trust anchors, trusted intermediates and offline CRLs.
	Stores []store.Store
	// Hostname the end entity must match. Empty disables the check.
	Hostname string
	Usage    x509chain.Usage
	// ReferenceTime is the validation time. Zero means now.
	ReferenceTime time.Time
	// OCSPTimeout bounds each revocation fetch. Zero disables network
	// access for both OCSP and CRLs.
	OCSPTimeout time.Duration
	// OCSPResponses are offline responses, index aligned with the path.
	// When present no OCSP query is sent.
	OCSPResponses []*revocation.OCSPResponse
}

// Validator validates certification paths. The zero value is not usable;
// use [New].
//
// Thread Safety: Safe for concurrent use once built.
type Validator struct {
	transport x509chain.Transport
	cache     store.CRLCache
	logger    logger.Logger
	metrics   *metrics.Metrics
	aiaLimit  int
	now       func() time.Time
}

// Option configures a [Validator].
type Option func(*Validator)

// WithTransport sets the HTTP collaborator used for online checks.
func WithTransport(t x509chain.Transport) Option {
	return func(v *Validator) { v.transport = t }
}

// WithCRLCache makes fetched CRLs persist in cache and consults cache for
// offline CRLs.
func WithCRLCache(cache store.CRLCache) Option {
	return func(v *Validator) { v.cache = cache }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l logger.Logger) Option {
	return func(v *Validator) { v.logger = l }
}

// WithMetrics records every validation and fetch in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(v *Validator) { v.metrics = m }
}

// WithAIAFetching downloads up to limit missing issuers from the AIA URLs of
// the end entity when network access is enabled.
func WithAIAFetching(limit int) Option {
	return func(v *Validator) { v.aiaLimit = limit }
}

// New returns a validator using [x509chain.HTTPConfig] as transport.
func New(opts ...Option) *Validator {
	v := &Validator{
		transport: x509chain.NewHTTPConfig(version.Version),
		logger:    logger.Nop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate runs a validation with a default [Validator].
//
// Parameters:
//   - ctx: Context bounding every network fetch
//   - certs: End entity first, then untrusted certificates
//   - restrictions: Validation policy
//   - stores: Trusted stores
//   - hostname: Name the end entity must match, empty to skip
//   - usage: Purpose the end entity must allow
//   - refTime: Validation time, zero for now
//   - ocspTimeout: Per-fetch timeout, zero disables network access
//   - ocspResponses: Offline OCSP responses, index aligned with the path
//
// Returns:
//   - *Result: Validation outcome
//   - error: Contract violations only, never a validation failure
func Validate(ctx context.Context, certs []*x509.Certificate, restrictions Restrictions, stores []store.Store,
	hostname string, usage x509chain.Usage, refTime time.Time, ocspTimeout time.Duration,
	ocspResponses []*revocation.OCSPResponse) (*Result, error) {
	return New().Validate(ctx, Request{
		Certificates:  certs,
		Restrictions:  restrictions,
		Stores:        stores,
		Hostname:      hostname,
		Usage:         usage,
		ReferenceTime: refTime,
		OCSPTimeout:   ocspTimeout,
		OCSPResponses: ocspResponses,
	})
}

// ValidateCert is [Validate] for a lone end entity.
func ValidateCert(ctx context.Context, cert *x509.Certificate, restrictions Restrictions, stores []store.Store,
	hostname string, usage x509chain.Usage, refTime time.Time, ocspTimeout time.Duration) (*Result, error) {
	if cert == nil {
		return nil, ErrNoCertificates
	}
	return Validate(ctx, []*x509.Certificate{cert}, restrictions, stores, hostname, usage, refTime, ocspTimeout, nil)
}

// ValidateWithStore is [Validate] with a single trusted store.
func ValidateWithStore(ctx context.Context, certs []*x509.Certificate, restrictions Restrictions, s store.Store,
	hostname string, usage x509chain.Usage, refTime time.Time, ocspTimeout time.Duration) (*Result, error) {
	if s == nil {
		return nil, ErrNoStores
	}
	return Validate(ctx, certs, restrictions, []store.Store{s}, hostname, usage, refTime, ocspTimeout, nil)
}

// Validate builds every candidate path for the end entity and evaluates them
// in order. The first successful path is returned at once; when none
// succeeds the result of the first evaluated path is returned. When no path
// can be built the result carries the build failure and no revocation
// fetch is attempted.
func (v *Validator) Validate(ctx context.Context, req Request) (*Result, error) {
	if len(req.Certificates) == 0 || req.Certificates[0] == nil {
		return nil, ErrNoCertificates
	}
	if i := slices.Index(req.Certificates, nil); i > 0 {
		return nil, fmt.Errorf("%w at index %d", ErrNilCertificate, i)
	}
	if len(req.Stores) == 0 || slices.Contains(req.Stores, nil) {
		return nil, ErrNoStores
	}

	start := time.Now()
	runID := uuid.NewString()
	if req.ReferenceTime.IsZero() {
		req.ReferenceTime = v.now()
	}

	certs := x509chain.WrapAll(req.Certificates)
	ee, extra := certs[0], certs[1:]
	v.logger.Printf("[%s] validating %q", runID, ee.Subject.String())

	if v.aiaLimit > 0 && req.OCSPTimeout > 0 && v.transport != nil {
		extra = append(extra, v.fetchIssuers(ctx, runID, ee, req.OCSPTimeout)...)
	}

	trusted := make([]x509chain.Store, 0, len(req.Stores))
	for _, s := range req.Stores {
		trusted = append(trusted, s)
	}

	paths, code, err := x509chain.BuildAllPaths(nil, trusted, ee, extra)
	if err != nil {
		return nil, fmt.Errorf("building paths: %w", err)
	}
	if len(paths) == 0 {
		v.logger.Printf("[%s] no path: %s", runID, code.Name())
		return v.finish(newBuildFailure(runID, code), start), nil
	}
	v.logger.Printf("[%s] %d candidate path(s)", runID, len(paths))

	var first *Result
	for i, path := range paths {
		res, err := v.evaluate(ctx, runID, path, req)
		if err != nil {
			return nil, err
		}
		v.logger.Printf("[%s] path %d: %s", runID, i, res.Code().Name())
		if res.Successful() {
			return v.finish(res, start), nil
		}
		if first == nil {
			first = res
		}
	}
	return v.finish(first, start), nil
}

func (v *Validator) finish(res *Result, start time.Time) *Result {
	v.metrics.RecordValidation(res.Code().Name(), res.Successful(), time.Since(start))
	return res
}

func (v *Validator) fetchIssuers(ctx context.Context, runID string, ee *x509chain.Certificate, timeout time.Duration) []*x509chain.Certificate {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	fetched, err := x509chain.FetchIssuers(ctx, v.transport, ee, v.aiaLimit)
	if err != nil {
		v.logger.Printf("[%s] AIA fetch stopped: %v", runID, err)
	}
	return fetched
}

// evaluate runs the chain verifier and both revocation checkers over path
// and merges their findings.
func (v *Validator) evaluate(ctx context.Context, runID string, path x509chain.Path, req Request) (*Result, error) {
	r := req.Restrictions
	now := req.ReferenceTime

	chainStatus, err := x509chain.CheckChain(path, x509chain.VerifyOptions{
		Hostname:           req.Hostname,
		Usage:              req.Usage,
		CurrentTime:        now,
		MinimumKeyStrength: r.MinimumKeyStrength,
		TrustedHashes:      r.TrustedHashes,
	})
	if err != nil {
		return nil, err
	}

	online := req.OCSPTimeout > 0 && v.transport != nil

	crlStores := req.Stores
	if v.cache != nil {
		crlStores = append(crlStores[:len(crlStores):len(crlStores)], v.cache)
	}
	crls := revocation.ResolveCRLs(path, crlStores)

	var crlStatus status.PathStatus
	if online {
		checker := &revocation.CRLChecker{
			Transport: v.transport,
			Cache:     v.cache,
			Timeout:   req.OCSPTimeout,
			Logger:    v.logger,
			Metrics:   v.metrics,
		}
		crlStatus, _ = checker.CheckOnline(ctx, path, crls, now)
	} else {
		crlStatus = revocation.CheckCRL(path, crls, now)
	}

	var ocspStatus status.PathStatus
	switch {
	case len(req.OCSPResponses) > 0:
		ocspStatus = revocation.CheckOCSP(path, req.OCSPResponses, req.Stores, now, r.MaxOCSPAge)
	case online:
		checker := &revocation.OCSPChecker{
			Transport: v.transport,
			Timeout:   req.OCSPTimeout,
			MaxAge:    r.MaxOCSPAge,
			Logger:    v.logger,
			Metrics:   v.metrics,
		}
		ocspStatus, _ = checker.CheckOnline(ctx, path, req.Stores, now, r.OCSPAllIntermediates)
	default:
		ocspStatus = status.NewPathStatus(len(path))
		ocspStatus.Add(0, status.OCSPNoHTTP)
	}

	if err := status.MergeRevocation(chainStatus, crlStatus, ocspStatus,
		r.RequireRevocationInformation, r.OCSPAllIntermediates); err != nil {
		return nil, err
	}
	return newPathResult(runID, path, chainStatus), nil
}
