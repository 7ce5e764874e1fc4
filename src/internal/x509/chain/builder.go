// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package x509chain

import (
	"errors"

	"github.com/H0llyW00dzZ/x509-path-validator/src/internal/x509/status"
)

// ErrOutputNotEmpty is returned by [BuildAllPaths] when the destination
// slice already holds paths.
var ErrOutputNotEmpty = errors.New("x509chain: output path list is not empty")

// BuildPath builds a single path from ee to a trusted self-signed
// certificate, taking the first issuer found at every step.
//
// Issuers are looked up in the trusted stores first and in extra second.
// The returned code is [status.OK] only when the path ends in a self-signed
// certificate that came from a trusted store; any other code comes with a
// nil path.
//
// Parameters:
//   - trusted: Stores holding trust anchors and trusted intermediates
//   - ee: End-entity certificate
//   - extra: Untrusted certificates that may complete the path
//
// Returns:
//   - Path: Leaf-to-root path, or nil
//   - status.Code: Build outcome
func BuildPath(trusted []Store, ee *Certificate, extra []*Certificate) (Path, status.Code) {
	if ee.IsSelfSigned() {
		return nil, status.CannotEstablishTrust
	}

	pool := NewPool(extra...)
	path := Path{ee}
	seen := map[Fingerprint]struct{}{ee.Fingerprint(): {}}

	for {
		last := path[len(path)-1]

		issuer, fromTrusted := findIssuer(trusted, pool, last)
		if issuer == nil {
			return nil, status.CertIssuerNotFound
		}

		if _, loop := seen[issuer.Fingerprint()]; loop {
			return nil, status.CertChainLoop
		}
		seen[issuer.Fingerprint()] = struct{}{}
		path = append(path, issuer)

		if issuer.IsSelfSigned() {
			if fromTrusted {
				return path, status.OK
			}
			return nil, status.CannotEstablishTrust
		}
	}
}

func findIssuer(trusted []Store, pool *Pool, c *Certificate) (*Certificate, bool) {
	for _, s := range trusted {
		if issuer := s.FindCert(c.RawIssuer, c.AuthorityKeyId); issuer != nil {
			return issuer, true
		}
	}
	return pool.FindCert(c.RawIssuer, c.AuthorityKeyId), false
}

// frame is one entry of the explicit search stack. A frame with a nil cert
// marks the point where the last path element must be popped.
type frame struct {
	cert    *Certificate
	trusted bool
}

// BuildAllPaths enumerates every path from ee to a trusted self-signed
// certificate with a depth-first search over an explicit stack, so deep or
// adversarial hierarchies cannot exhaust the goroutine stack.
//
// Paths are appended to dst, which must be empty. When at least one path is
// found the code is [status.OK]; otherwise it is the first error recorded
// while exploring branches. Trusted issuers are explored before issuers
// from extra, so the first returned path prefers trusted intermediates.
//
// Returns:
//   - []Path: dst with the discovered paths appended
//   - status.Code: [status.OK] or the first recorded branch error
//   - error: [ErrOutputNotEmpty] when dst is not empty
func BuildAllPaths(dst []Path, trusted []Store, ee *Certificate, extra []*Certificate) ([]Path, status.Code, error) {
	if len(dst) != 0 {
		return dst, status.OK, ErrOutputNotEmpty
	}
	if ee.IsSelfSigned() {
		return dst, status.CannotEstablishTrust, nil
	}

	var (
		pool     = NewPool(extra...)
		stack    = []frame{{cert: ee}}
		path     Path
		visited  = make(map[Fingerprint]struct{})
		firstErr = status.OK
	)

	record := func(code status.Code) {
		if firstErr == status.OK {
			firstErr = code
		}
	}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if top.cert == nil {
			last := path[len(path)-1]
			path = path[:len(path)-1]
			delete(visited, last.Fingerprint())
			continue
		}

		cert := top.cert
		if _, loop := visited[cert.Fingerprint()]; loop {
			record(status.CertChainLoop)
			continue
		}

		if cert.IsSelfSigned() {
			if top.trusted {
				found := make(Path, 0, len(path)+1)
				found = append(found, path...)
				dst = append(dst, append(found, cert))
			} else {
				record(status.CannotEstablishTrust)
			}
			continue
		}

		stack = append(stack, frame{})
		path = append(path, cert)
		visited[cert.Fingerprint()] = struct{}{}

		var fromTrusted []*Certificate
		for _, s := range trusted {
			fromTrusted = append(fromTrusted, s.FindAllCerts(cert.RawIssuer, cert.AuthorityKeyId)...)
		}
		fromExtra := pool.FindAllCerts(cert.RawIssuer, cert.AuthorityKeyId)

		if len(fromTrusted) == 0 && len(fromExtra) == 0 {
			record(status.CertIssuerNotFound)
			continue
		}

		// Last pushed is explored first.
		for _, issuer := range fromExtra {
			stack = append(stack, frame{cert: issuer})
		}
		for _, issuer := range fromTrusted {
			stack = append(stack, frame{cert: issuer, trusted: true})
		}
	}

	if len(dst) == 0 {
		return dst, firstErr, nil
	}
	return dst, status.OK, nil
}
