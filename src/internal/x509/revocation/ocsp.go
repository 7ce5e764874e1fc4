// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package revocation

import (
	"bytes"
	"context"
	"crypto"
	"crypto/x509"
	"net/http"
	"slices"
	"time"

	"github.com/H0llyW00dzZ/x509-path-validator/src/internal/metrics"
	x509chain "github.com/H0llyW00dzZ/x509-path-validator/src/internal/x509/chain"
	"github.com/H0llyW00dzZ/x509-path-validator/src/internal/x509/status"
	"github.com/H0llyW00dzZ/x509-path-validator/src/internal/x509/store"
	"github.com/H0llyW00dzZ/x509-path-validator/src/logger"
	"golang.org/x/crypto/ocsp"
	"golang.org/x/sync/errgroup"
)

// OCSPRequestContentType is the media type of an OCSP request body.
const OCSPRequestContentType = "application/ocsp-request"

// OCSPResponse is a parsed OCSP response, or a placeholder carrying a
// soft-fail code when no response could be obtained.
type OCSPResponse struct {
	resp     *ocsp.Response
	entries  []singleResponse
	parseErr error
	softFail status.Code
}

// ParseOCSPResponse parses a DER encoded response. Parsing never fails
// outright: a malformed response is kept and reported as
// [status.OCSPResponseInvalid] when checked.
//
// Responses may carry several single responses; the one matching a
// certificate is picked when its status is derived.
func ParseOCSPResponse(der []byte) *OCSPResponse {
	r := &OCSPResponse{}
	r.entries, r.parseErr = parseSingleResponses(der)
	if r.parseErr != nil {
		return r
	}
	// The envelope, signature and responder ID are shared by every entry,
	// so any serial selects them.
	r.resp, r.parseErr = ocsp.ParseResponseForCert(der, &x509.Certificate{SerialNumber: r.entries[0].serial}, nil)
	return r
}

// SoftFailResponse returns a placeholder standing for a response that could
// not be obtained, e.g. [status.OCSPNoRevocationURL] or
// [status.OCSPServerNotAvailable].
func SoftFailResponse(code status.Code) *OCSPResponse {
	return &OCSPResponse{softFail: code}
}

// SoftFail returns the placeholder code and true for soft-fail responses.
func (r *OCSPResponse) SoftFail() (status.Code, bool) {
	return r.softFail, r.softFail != status.OK
}

// Err returns the parse error of a malformed response.
func (r *OCSPResponse) Err() error { return r.parseErr }

// Response returns the parsed response, or nil. For a response carrying
// several single responses, the status fields describe the first one.
func (r *OCSPResponse) Response() *ocsp.Response { return r.resp }

// CheckSignature locates the certificate that signed the response and
// verifies the signature.
//
// Candidate signers are looked up by responder name or key hash, first in
// the trusted stores, then in path[1:], then as the certificate embedded in
// the response provided a CA of the path issued it. A signer that is not a
// CA must carry the OCSP signing extended key usage.
//
// Returns:
//   - status.Code: [status.OCSPSignatureOK] or the reason the signature is
//     not acceptable
func (r *OCSPResponse) CheckSignature(stores []store.Store, path x509chain.Path) status.Code {
	if code, ok := r.SoftFail(); ok {
		return code
	}
	if r.parseErr != nil || r.resp == nil {
		return status.OCSPResponseInvalid
	}

	candidates := r.signerCandidates(stores, path)
	if len(candidates) == 0 {
		return status.OCSPIssuerNotFound
	}

	missingUsage := false
	for _, signer := range candidates {
		if err := r.resp.CheckSignatureFrom(signer.Certificate); err != nil {
			continue
		}
		if !signer.IsCA() && !slices.Contains(signer.ExtKeyUsage, x509.ExtKeyUsageOCSPSigning) {
			missingUsage = true
			continue
		}
		return status.OCSPSignatureOK
	}

	if missingUsage {
		return status.OCSPResponseMissingKeyUsage
	}
	return status.OCSPSignatureError
}

func (r *OCSPResponse) signerCandidates(stores []store.Store, path x509chain.Path) []*x509chain.Certificate {
	var out []*x509chain.Certificate
	seen := make(map[x509chain.Fingerprint]struct{})
	add := func(c *x509chain.Certificate) {
		if c == nil {
			return
		}
		if _, dup := seen[c.Fingerprint()]; dup {
			return
		}
		seen[c.Fingerprint()] = struct{}{}
		out = append(out, c)
	}

	for _, s := range stores {
		if len(r.resp.RawResponderName) > 0 {
			for _, c := range s.FindAllCerts(r.resp.RawResponderName, nil) {
				add(c)
			}
		}
		if finder, ok := s.(store.KeyHashFinder); ok && len(r.resp.ResponderKeyHash) > 0 {
			add(finder.FindCertByKeyHash(r.resp.ResponderKeyHash))
		}
	}

	for _, c := range path[min(1, len(path)):] {
		if r.identifies(c) {
			add(c)
		}
	}

	if r.resp.Certificate != nil {
		embedded := x509chain.NewCertificate(r.resp.Certificate)
		if r.identifies(embedded) {
			for _, ca := range path[min(1, len(path)):] {
				if embedded.VerifySignature(ca) == status.Verified {
					add(embedded)
					break
				}
			}
		}
	}
	return out
}

// identifies reports whether the responder ID of the response names c.
func (r *OCSPResponse) identifies(c *x509chain.Certificate) bool {
	if len(r.resp.RawResponderName) > 0 {
		return bytes.Equal(r.resp.RawResponderName, c.RawSubject)
	}
	return len(r.resp.ResponderKeyHash) > 0 && bytes.Equal(r.resp.ResponderKeyHash, c.KeyHash())
}

// StatusFor derives the revocation status of subject, issued by issuer, at
// time now. maxAge bounds the age of responses without nextUpdate; zero
// disables that bound.
//
// The single response used is the one whose CertID carries the serial of
// subject together with the name and key hashes of issuer; without one the
// result is [status.OCSPCertNotListed].
//
// A revoked status wins over the validity window checks, since revocation
// is permanent.
func (r *OCSPResponse) StatusFor(issuer, subject *x509chain.Certificate, now time.Time, maxAge time.Duration) status.Code {
	if code, ok := r.SoftFail(); ok {
		return code
	}
	if r.parseErr != nil || r.resp == nil {
		return status.OCSPResponseInvalid
	}

	idx := slices.IndexFunc(r.entries, func(e singleResponse) bool {
		return e.identifies(issuer, subject)
	})
	if idx < 0 {
		return status.OCSPCertNotListed
	}
	resp := r.entries[idx]
	if resp.critical {
		return status.OCSPResponseInvalid
	}

	if resp.status == ocsp.Revoked {
		return status.CertIsRevoked
	}

	switch {
	case now.Before(resp.thisUpdate):
		return status.OCSPNotYetValid
	case !resp.nextUpdate.IsZero() && now.After(resp.nextUpdate):
		return status.OCSPHasExpired
	case resp.nextUpdate.IsZero() && maxAge > 0 && now.Sub(resp.thisUpdate) > maxAge:
		return status.OCSPIsTooOld
	}

	if resp.status == ocsp.Good {
		return status.OCSPResponseGood
	}
	return status.OCSPBadStatus
}

// CheckOCSP checks path[i] against responses[i]. Nil entries and positions
// beyond len(responses) are skipped. A panic while checking one position
// records [status.OCSPResponseInvalid] there.
//
// Parameters:
//   - path: Leaf-to-root certification path
//   - responses: One response per position, index aligned with path
//   - stores: Trusted stores searched for the responder certificate
//   - now: Reference time
//   - maxAge: Bound for responses without nextUpdate, zero disables it
//
// Returns:
//   - status.PathStatus: OCSP findings per index, same length as path
func CheckOCSP(path x509chain.Path, responses []*OCSPResponse, stores []store.Store, now time.Time, maxAge time.Duration) status.PathStatus {
	ps := status.NewPathStatus(len(path))
	for i := 0; i+1 < len(path) && i < len(responses); i++ {
		if responses[i] == nil {
			continue
		}
		ps[i].Add(checkOne(responses[i], path, i, stores, now, maxAge))
	}
	return ps
}

func checkOne(r *OCSPResponse, path x509chain.Path, i int, stores []store.Store, now time.Time, maxAge time.Duration) (code status.Code) {
	defer func() {
		if recover() != nil {
			code = status.OCSPResponseInvalid
		}
	}()

	if sig := r.CheckSignature(stores, path); sig != status.OCSPSignatureOK {
		return sig
	}
	return r.StatusFor(path[i+1], path[i], now, maxAge)
}

// OCSPChecker queries the OCSP responders named by the certificates of a
// path.
type OCSPChecker struct {
	Transport x509chain.Transport
	// Timeout bounds each request. Zero leaves only the context deadline.
	Timeout time.Duration
	// MaxAge bounds responses without nextUpdate, zero disables it.
	MaxAge  time.Duration
	Logger  logger.Logger
	Metrics *metrics.Metrics
}

// CheckOnline requests one response per position, concurrently: only the
// end entity, or every certificate below the trust anchor when
// allIntermediates is set. A certificate without responder URL gets
// [status.OCSPNoRevocationURL]; a request that fails or returns a non-200
// status gets [status.OCSPServerNotAvailable].
//
// Returns:
//   - status.PathStatus: OCSP findings per index
//   - []*OCSPResponse: The responses obtained, index aligned with path
func (c *OCSPChecker) CheckOnline(ctx context.Context, path x509chain.Path, stores []store.Store, now time.Time, allIntermediates bool) (status.PathStatus, []*OCSPResponse) {
	toCheck := 0
	if len(path) > 1 {
		toCheck = 1
		if allIntermediates {
			toCheck = len(path) - 1
		}
	}

	responses := make([]*OCSPResponse, toCheck)
	var g errgroup.Group
	for i := range toCheck {
		g.Go(func() error {
			responses[i] = c.query(ctx, path[i], path[i+1])
			return nil
		})
	}
	_ = g.Wait()

	return CheckOCSP(path, responses, stores, now, c.MaxAge), responses
}

func (c *OCSPChecker) query(ctx context.Context, subject, issuer *x509chain.Certificate) (r *OCSPResponse) {
	defer func() {
		if recover() != nil {
			r = SoftFailResponse(status.OCSPServerNotAvailable)
		}
	}()

	url := subject.OCSPResponder()
	if !isHTTP(url) {
		c.Metrics.RecordFetch(kindOCSP, outcomeSkipped)
		return SoftFailResponse(status.OCSPNoRevocationURL)
	}

	req, err := ocsp.CreateRequest(subject.Certificate, issuer.Certificate, &ocsp.RequestOptions{Hash: crypto.SHA1})
	if err != nil {
		c.log().Printf("OCSP request for %q: %v", subject.Subject.CommonName, err)
		return SoftFailResponse(status.OCSPServerNotAvailable)
	}

	ctx, cancel := withTimeout(ctx, c.Timeout)
	defer cancel()

	resp, err := c.Transport.Post(ctx, url, OCSPRequestContentType, req)
	if err != nil {
		c.Metrics.RecordFetch(kindOCSP, outcomeError)
		c.log().Printf("OCSP query to %s failed: %v", url, err)
		return SoftFailResponse(status.OCSPServerNotAvailable)
	}
	if resp.StatusCode != http.StatusOK {
		c.Metrics.RecordFetch(kindOCSP, outcomeHTTPError)
		c.log().Printf("OCSP responder %s answered HTTP %d", url, resp.StatusCode)
		return SoftFailResponse(status.OCSPServerNotAvailable)
	}

	c.Metrics.RecordFetch(kindOCSP, outcomeOK)
	return ParseOCSPResponse(resp.Body)
}

func (c *OCSPChecker) log() logger.Logger {
	if c.Logger == nil {
		return logger.Nop()
	}
	return c.Logger
}
