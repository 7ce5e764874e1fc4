// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package x509chain

import (
	"bytes"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"slices"
	"time"
	"unicode/utf8"

	"github.com/H0llyW00dzZ/x509-path-validator/src/internal/x509/status"
	"golang.org/x/text/unicode/norm"
)

// ErrEmptyPath is returned by [CheckChain] for a path without certificates.
var ErrEmptyPath = errors.New("x509chain: path is empty")

// VerifyOptions carries the caller requirements applied by [CheckChain].
type VerifyOptions struct {
	// Hostname the end entity must match. Empty disables the check.
	Hostname string
	Usage    Usage
	// CurrentTime is the reference time for validity windows. Zero means
	// time.Now.
	CurrentTime time.Time
	// MinimumKeyStrength in bits of security for every issuer key.
	MinimumKeyStrength int
	// TrustedHashes lists accepted signature hash names (see
	// [Certificate.SignatureHash]). Empty accepts every hash.
	TrustedHashes []string
}

// Upper bounds from RFC 5280 Appendix A, in characters.
var dnUpperBounds = map[string]int{
	"2.5.4.3":              64,  // commonName
	"2.5.4.5":              64,  // serialNumber
	"2.5.4.6":              2,   // countryName
	"2.5.4.7":              128, // localityName
	"2.5.4.8":              128, // stateOrProvinceName
	"2.5.4.10":             64,  // organizationName
	"2.5.4.11":             64,  // organizationalUnitName
	"2.5.4.12":             64,  // title
	"2.5.4.17":             40,  // postalCode
	"2.5.4.65":             128, // pseudonym
	"1.2.840.113549.1.9.1": 255, // emailAddress
}

// CheckChain verifies the structural and cryptographic constraints of path
// and returns one status set per certificate.
//
// Every finding is recorded; the function never stops at the first error,
// so callers get the full diagnostic trail for the path.
//
// Returns:
//   - status.PathStatus: Findings per index, same length as path
//   - error: [ErrEmptyPath] when path is empty
func CheckChain(path Path, opts VerifyOptions) (status.PathStatus, error) {
	if len(path) == 0 {
		return nil, ErrEmptyPath
	}

	now := opts.CurrentTime
	if now.IsZero() {
		now = time.Now()
	}

	n := len(path)
	ps := status.NewPathStatus(n)
	ee := path[0]

	if opts.Hostname != "" && !ee.MatchesHostname(opts.Hostname) {
		ps.Add(0, status.CertNameNoMatch)
	}
	if !ee.AllowedUsage(opts.Usage) {
		ps.Add(0, status.InvalidUsage)
	}
	if !ee.IsCA() && ee.HasKeyUsage(x509.KeyUsageCertSign) {
		ps.Add(0, status.InvalidUsage)
	}

	for i, subject := range path {
		isLast := i == n-1
		issuer := path[min(i+1, n-1)]

		if isLast && !subject.IsSelfSigned() {
			ps.Add(i, status.ChainLacksTrustRoot)
		}
		if !bytes.Equal(subject.RawIssuer, issuer.RawSubject) {
			ps.Add(i, status.ChainNameMismatch)
		}
		if subject.IsSerialNegative() {
			ps.Add(i, status.CertSerialNegative)
		}
		if dnTooLong(subject.Subject) {
			ps.Add(i, status.DNTooLong)
		}

		if now.Before(subject.NotBefore) {
			ps.Add(i, status.CertNotYetValid)
		}
		if now.After(subject.NotAfter) {
			ps.Add(i, status.CertHasExpired)
		}

		if !issuer.IsCA() && n != 1 {
			ps.Add(i, status.CACertNotForCertIssuer)
		}

		checkSignature(subject, issuer, isLast, opts, ps, i)

		if subject.Version < 3 && len(subject.Extensions()) > 0 {
			ps.Add(i, status.ExtInV1V2Cert)
		}
		for _, ext := range subject.Extensions() {
			ext.Validate(subject, issuer, path, ps, i)
		}
		if hasDuplicateExtension(subject.Extensions()) {
			ps.Add(i, status.DuplicateCertExtension)
		}
	}

	checkPathLength(path, ps)
	return ps, nil
}

func checkSignature(subject, issuer *Certificate, isLast bool, opts VerifyOptions, ps status.PathStatus, i int) {
	code := subject.VerifySignature(issuer)
	switch code {
	case status.SignatureAlgoUnknown, status.CertPubkeyInvalid:
		// Nothing is known about the key or hash to judge.
		ps.Add(i, code)
		return
	}

	// A weak key is reported even when the signature does not verify.
	if issuer.KeyStrength() < opts.MinimumKeyStrength {
		ps.Add(i, status.SignatureMethodTooWeak)
	}
	if code != status.Verified {
		ps.Add(i, code)
		return
	}
	// The anchor signs itself; its hash proves nothing.
	if len(opts.TrustedHashes) > 0 && !isLast &&
		!slices.Contains(opts.TrustedHashes, subject.SignatureHash()) {
		ps.Add(i, status.UntrustedHash)
	}
}

// checkPathLength walks from the anchor towards the leaf, spending one unit
// of the remaining length per non self-issued certificate and clamping it to
// every basic constraints limit met on the way.
func checkPathLength(path Path, ps status.PathStatus) {
	remaining := len(path)
	for i := len(path) - 1; i > 0; i-- {
		c := path[i]
		if !c.IsSelfIssued() {
			if remaining > 0 {
				remaining--
			} else {
				ps.Add(i, status.CertChainTooLong)
			}
		}
		if limit := c.PathLimit(); limit != NoPathLimit && limit < remaining {
			remaining = limit
		}
	}
}

func dnTooLong(name pkix.Name) bool {
	for _, atv := range name.Names {
		bound, ok := dnUpperBounds[atv.Type.String()]
		if !ok {
			continue
		}
		value, ok := atv.Value.(string)
		if !ok {
			continue
		}
		if utf8.RuneCountInString(norm.NFC.String(value)) > bound {
			return true
		}
	}
	return false
}

func hasDuplicateExtension(exts []Extension) bool {
	seen := make([]asn1.ObjectIdentifier, 0, len(exts))
	for _, ext := range exts {
		for _, oid := range seen {
			if oid.Equal(ext.OID()) {
				return true
			}
		}
		seen = append(seen, ext.OID())
	}
	return false
}
