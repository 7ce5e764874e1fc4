// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package status defines the ordered taxonomy of certificate path validation
// outcomes and the per-path status vectors that every checking stage fills in.
//
// Codes are partitioned into three tiers by numeric value: informational
// proofs below [FirstWarningStatus], warnings in
// [[FirstWarningStatus], [FirstErrorStatus]) and errors from
// [FirstErrorStatus] upwards. Only error-tier codes decide the verdict.
package status

import (
	"fmt"
	"sort"
)

// Code is a single validation outcome. Larger values are more severe.
type Code int

// Informational and proof codes.
const (
	OK               Code = 0
	Verified         Code = 0
	OCSPResponseGood Code = 1
	OCSPSignatureOK  Code = 2
	ValidCRLChecked  Code = 3
	OCSPNoHTTP       Code = 4
)

// Warning codes.
const (
	FirstWarningStatus Code = 500

	CertSerialNegative     Code = 500
	DNTooLong              Code = 501
	OCSPNoRevocationURL    Code = 502
	OCSPServerNotAvailable Code = 503
)

// Error codes.
const (
	FirstErrorStatus Code = 1000

	SignatureMethodTooWeak Code = 1000
	UntrustedHash          Code = 1001
	NoRevocationData       Code = 1002
	NoMatchingCRLDP        Code = 1003

	// Time problems
	CertNotYetValid Code = 2000
	CertHasExpired  Code = 2001
	OCSPNotYetValid Code = 2002
	OCSPHasExpired  Code = 2003
	CRLNotYetValid  Code = 2004
	CRLHasExpired   Code = 2005
	OCSPIsTooOld    Code = 2006

	// Chain generation problems
	CertIssuerNotFound   Code = 3000
	CannotEstablishTrust Code = 3001
	CertChainLoop        Code = 3002
	ChainLacksTrustRoot  Code = 3003
	ChainNameMismatch    Code = 3004

	// Validation errors
	InvalidUsage                Code = 4001
	CertChainTooLong            Code = 4002
	CACertNotForCertIssuer      Code = 4003
	NameConstraintError         Code = 4004
	CACertNotForCRLIssuer       Code = 4005
	OCSPCertNotListed           Code = 4006
	OCSPBadStatus               Code = 4007
	CertNameNoMatch             Code = 4008
	UnknownCriticalExtension    Code = 4009
	DuplicateCertExtension      Code = 4010
	OCSPSignatureError          Code = 4501
	OCSPIssuerNotFound          Code = 4502
	OCSPResponseMissingKeyUsage Code = 4503
	OCSPResponseInvalid         Code = 4504
	ExtInV1V2Cert               Code = 4505
	DuplicateCertPolicy         Code = 4506

	// Hard failures
	CertIsRevoked          Code = 5000
	CRLBadSignature        Code = 5001
	SignatureError         Code = 5002
	CertPubkeyInvalid      Code = 5003
	SignatureAlgoUnknown   Code = 5004
	SignatureAlgoBadParams Code = 5005
)

type codeInfo struct {
	name string
	text string
}

var codes = map[Code]codeInfo{
	Verified:         {"VERIFIED", "Verified"},
	OCSPResponseGood: {"OCSP_RESPONSE_GOOD", "OCSP response accepted as affirming unrevoked status for certificate"},
	OCSPSignatureOK:  {"OCSP_SIGNATURE_OK", "Signature on OCSP response was found valid"},
	ValidCRLChecked:  {"VALID_CRL_CHECKED", "Valid CRL examined"},
	OCSPNoHTTP:       {"OCSP_NO_HTTP", "OCSP check not attempted, network lookups disabled"},

	CertSerialNegative:     {"CERT_SERIAL_NEGATIVE", "Certificate serial number is negative"},
	DNTooLong:              {"DN_TOO_LONG", "Distinguished name too long"},
	OCSPNoRevocationURL:    {"OCSP_NO_REVOCATION_URL", "OCSP URL not available"},
	OCSPServerNotAvailable: {"OCSP_SERVER_NOT_AVAILABLE", "OCSP server not available"},

	SignatureMethodTooWeak: {"SIGNATURE_METHOD_TOO_WEAK", "Signature method too weak"},
	UntrustedHash:          {"UNTRUSTED_HASH", "Hash function used is considered too weak for security"},
	NoRevocationData:       {"NO_REVOCATION_DATA", "No revocation data"},
	NoMatchingCRLDP:        {"NO_MATCHING_CRLDP", "No CRL with matching distribution point for certificate"},

	CertNotYetValid: {"CERT_NOT_YET_VALID", "Certificate is not yet valid"},
	CertHasExpired:  {"CERT_HAS_EXPIRED", "Certificate has expired"},
	OCSPNotYetValid: {"OCSP_NOT_YET_VALID", "OCSP is not yet valid"},
	OCSPHasExpired:  {"OCSP_HAS_EXPIRED", "OCSP response has expired"},
	CRLNotYetValid:  {"CRL_NOT_YET_VALID", "CRL response is not yet valid"},
	CRLHasExpired:   {"CRL_HAS_EXPIRED", "CRL has expired"},
	OCSPIsTooOld:    {"OCSP_IS_TOO_OLD", "OCSP response is too old"},

	CertIssuerNotFound:   {"CERT_ISSUER_NOT_FOUND", "Certificate issuer not found"},
	CannotEstablishTrust: {"CANNOT_ESTABLISH_TRUST", "Cannot establish trust"},
	CertChainLoop:        {"CERT_CHAIN_LOOP", "Loop in certificate chain"},
	ChainLacksTrustRoot:  {"CHAIN_LACKS_TRUST_ROOT", "Certificate chain does not end in a self-signed certificate"},
	ChainNameMismatch:    {"CHAIN_NAME_MISMATCH", "Certificate issuer does not match subject of issuing cert"},

	InvalidUsage:                {"INVALID_USAGE", "Certificate does not allow the requested usage"},
	CertChainTooLong:            {"CERT_CHAIN_TOO_LONG", "Certificate chain too long"},
	CACertNotForCertIssuer:      {"CA_CERT_NOT_FOR_CERT_ISSUER", "CA certificate not allowed to issue certs"},
	NameConstraintError:         {"NAME_CONSTRAINT_ERROR", "Certificate does not pass name constraint"},
	CACertNotForCRLIssuer:       {"CA_CERT_NOT_FOR_CRL_ISSUER", "CA certificate not allowed to issue CRLs"},
	OCSPCertNotListed:           {"OCSP_CERT_NOT_LISTED", "OCSP cert not listed"},
	OCSPBadStatus:               {"OCSP_BAD_STATUS", "OCSP bad status"},
	CertNameNoMatch:             {"CERT_NAME_NOMATCH", "Certificate does not match provided name"},
	UnknownCriticalExtension:    {"UNKNOWN_CRITICAL_EXTENSION", "Unknown critical extension encountered"},
	DuplicateCertExtension:      {"DUPLICATE_CERT_EXTENSION", "Duplicate certificate extension encountered"},
	OCSPSignatureError:          {"OCSP_SIGNATURE_ERROR", "OCSP signature error"},
	OCSPIssuerNotFound:          {"OCSP_ISSUER_NOT_FOUND", "Unable to find certificate issuing OCSP response"},
	OCSPResponseMissingKeyUsage: {"OCSP_RESPONSE_MISSING_KEYUSAGE", "OCSP issuer's keyusage prohibits OCSP"},
	OCSPResponseInvalid:         {"OCSP_RESPONSE_INVALID", "OCSP response could not be processed"},
	ExtInV1V2Cert:               {"EXT_IN_V1_V2_CERT", "Encountered extension in certificate with version that does not allow it"},
	DuplicateCertPolicy:         {"DUPLICATE_CERT_POLICY", "Certificate contains duplicate policy"},

	CertIsRevoked:          {"CERT_IS_REVOKED", "Certificate is revoked"},
	CRLBadSignature:        {"CRL_BAD_SIGNATURE", "CRL bad signature"},
	SignatureError:         {"SIGNATURE_ERROR", "Signature error"},
	CertPubkeyInvalid:      {"CERT_PUBKEY_INVALID", "Certificate public key invalid"},
	SignatureAlgoUnknown:   {"SIGNATURE_ALGO_UNKNOWN", "Certificate signed with unknown/unavailable algorithm"},
	SignatureAlgoBadParams: {"SIGNATURE_ALGO_BAD_PARAMS", "Certificate signature has invalid parameters"},
}

// String returns the human-readable description of the code.
func (c Code) String() string {
	if info, ok := codes[c]; ok {
		return info.text
	}
	return fmt.Sprintf("Unknown error %d", int(c))
}

// Name returns the stable identifier of the code, e.g. "CERT_IS_REVOKED".
func (c Code) Name() string {
	if info, ok := codes[c]; ok {
		return info.name
	}
	return fmt.Sprintf("CODE_%d", int(c))
}

// MarshalText implements [encoding.TextMarshaler] using [Code.Name].
func (c Code) MarshalText() ([]byte, error) { return []byte(c.Name()), nil }

// IsWarning reports whether c lies in the warning tier.
func (c Code) IsWarning() bool { return c >= FirstWarningStatus && c < FirstErrorStatus }

// IsError reports whether c lies in the error tier.
func (c Code) IsError() bool { return c >= FirstErrorStatus }

// Set is an unordered collection of unique codes for one path position.
type Set map[Code]struct{}

// NewSet returns a set holding the given codes.
func NewSet(codes ...Code) Set {
	s := make(Set, len(codes))
	for _, c := range codes {
		s[c] = struct{}{}
	}
	return s
}

// Add inserts c into the set.
func (s Set) Add(c Code) { s[c] = struct{}{} }

// Has reports whether c is in the set.
func (s Set) Has(c Code) bool {
	_, ok := s[c]
	return ok
}

// Sorted returns the codes in ascending severity.
func (s Set) Sorted() []Code {
	out := make([]Code, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Max returns the most severe code in the set and false when the set is empty.
func (s Set) Max() (Code, bool) {
	var (
		worst Code
		found bool
	)
	for c := range s {
		if !found || c > worst {
			worst = c
			found = true
		}
	}
	return worst, found
}

// PathStatus holds one [Set] per certificate of a path, index 0 being the
// end entity.
type PathStatus []Set

// NewPathStatus returns a status vector with n empty sets.
func NewPathStatus(n int) PathStatus {
	ps := make(PathStatus, n)
	for i := range ps {
		ps[i] = make(Set)
	}
	return ps
}

// Add inserts c at index i.
func (ps PathStatus) Add(i int, c Code) { ps[i].Add(c) }

// Has reports whether index i holds c. Out of range indexes hold nothing.
func (ps PathStatus) Has(i int, c Code) bool {
	if i < 0 || i >= len(ps) || ps[i] == nil {
		return false
	}
	return ps[i].Has(c)
}

// Overall returns the most severe error-tier code of the vector, or [OK]
// when no position holds an error. Warnings and proofs never surface here.
func (ps PathStatus) Overall() Code {
	overall := OK
	for _, s := range ps {
		worst, ok := s.Max()
		if ok && worst >= FirstErrorStatus && worst > overall {
			overall = worst
		}
	}
	return overall
}

// Warnings projects the vector onto the warning tier, keeping one set per
// index.
func (ps PathStatus) Warnings() PathStatus {
	out := NewPathStatus(len(ps))
	for i, s := range ps {
		for c := range s {
			if c.IsWarning() {
				out[i].Add(c)
			}
		}
	}
	return out
}
