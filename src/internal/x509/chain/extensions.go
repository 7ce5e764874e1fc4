// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package x509chain

import (
	"crypto/x509/pkix"
	"encoding/asn1"
	"net"
	"strings"

	"github.com/H0llyW00dzZ/x509-path-validator/src/internal/x509/status"
)

// Extension OIDs recognised by this package.
var (
	OIDBasicConstraints      = asn1.ObjectIdentifier{2, 5, 29, 19}
	OIDKeyUsage              = asn1.ObjectIdentifier{2, 5, 29, 15}
	OIDExtKeyUsage           = asn1.ObjectIdentifier{2, 5, 29, 37}
	OIDSubjectAltName        = asn1.ObjectIdentifier{2, 5, 29, 17}
	OIDSubjectKeyID          = asn1.ObjectIdentifier{2, 5, 29, 14}
	OIDAuthorityKeyID        = asn1.ObjectIdentifier{2, 5, 29, 35}
	OIDCRLDistributionPoints = asn1.ObjectIdentifier{2, 5, 29, 31}
	OIDAuthorityInfoAccess   = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 1, 1}
	OIDCertificatePolicies   = asn1.ObjectIdentifier{2, 5, 29, 32}
	OIDNameConstraints       = asn1.ObjectIdentifier{2, 5, 29, 30}
)

// Extension is one certificate extension that knows how to validate itself.
//
// Validate inspects the certificate at index of path (subject), its issuer
// and the whole path, and may record codes at any position of ps, not only
// at index.
type Extension interface {
	OID() asn1.ObjectIdentifier
	Critical() bool
	Validate(subject, issuer *Certificate, path Path, ps status.PathStatus, index int)
}

type extensionBase struct {
	id       asn1.ObjectIdentifier
	critical bool
}

func (e extensionBase) OID() asn1.ObjectIdentifier { return e.id }
func (e extensionBase) Critical() bool             { return e.critical }

// noCheck is embedded by extensions whose semantics are enforced by the chain
// verifier itself (basic constraints, key usage) or carry no constraint.
type noCheck struct{}

func (noCheck) Validate(*Certificate, *Certificate, Path, status.PathStatus, int) {}

// BasicConstraints is enforced through [Certificate.IsCA] and
// [Certificate.PathLimit] by [CheckChain].
type BasicConstraints struct {
	extensionBase
	noCheck
}

// KeyUsage is enforced through [Certificate.AllowedUsage] by [CheckChain].
type KeyUsage struct {
	extensionBase
	noCheck
}

// ExtKeyUsage is enforced through [Certificate.AllowedUsage] by [CheckChain].
type ExtKeyUsage struct {
	extensionBase
	noCheck
}

// SubjectAltName carries the names matched by hostname checks.
type SubjectAltName struct {
	extensionBase
	noCheck
}

// SubjectKeyID is used for issuer lookup.
type SubjectKeyID struct {
	extensionBase
	noCheck
}

// AuthorityKeyID is used for issuer lookup.
type AuthorityKeyID struct {
	extensionBase
	noCheck
}

// CRLDistributionPoints locates CRLs for online checking.
type CRLDistributionPoints struct {
	extensionBase
	noCheck
}

// AuthorityInfoAccess locates OCSP responders for online checking.
type AuthorityInfoAccess struct {
	extensionBase
	noCheck
}

// CertificatePolicies flags repeated policy identifiers.
type CertificatePolicies struct{ extensionBase }

// Validate records [status.DuplicateCertPolicy] when a policy OID repeats.
func (CertificatePolicies) Validate(subject, _ *Certificate, _ Path, ps status.PathStatus, index int) {
	seen := make(map[string]struct{}, len(subject.PolicyIdentifiers))
	for _, oid := range subject.PolicyIdentifiers {
		key := oid.String()
		if _, dup := seen[key]; dup {
			ps.Add(index, status.DuplicateCertPolicy)
			return
		}
		seen[key] = struct{}{}
	}
}

// NameConstraints checks every certificate below the constrained CA against
// its permitted and excluded subtrees (DNS, email, IP and URI names).
type NameConstraints struct{ extensionBase }

// Validate records [status.NameConstraintError] on the constrained
// certificate when it is not a CA, and on every subordinate certificate
// carrying a name outside the permitted or inside the excluded subtrees.
func (NameConstraints) Validate(subject, _ *Certificate, path Path, ps status.PathStatus, index int) {
	if !hasNameConstraints(subject) {
		return
	}
	if !subject.IsCA() {
		ps.Add(index, status.NameConstraintError)
	}
	for j := 0; j < index && j < len(path); j++ {
		if !namesPermitted(subject, path[j]) {
			ps.Add(j, status.NameConstraintError)
		}
	}
}

// Unknown is any extension this package does not interpret.
type Unknown struct{ extensionBase }

// Validate records [status.UnknownCriticalExtension] when the extension is
// marked critical.
func (e Unknown) Validate(_, _ *Certificate, _ Path, ps status.PathStatus, index int) {
	if e.critical {
		ps.Add(index, status.UnknownCriticalExtension)
	}
}

func parseExtensions(raw []pkix.Extension) []Extension {
	out := make([]Extension, 0, len(raw))
	for _, ext := range raw {
		base := extensionBase{id: ext.Id, critical: ext.Critical}
		var e Extension
		switch {
		case ext.Id.Equal(OIDBasicConstraints):
			e = BasicConstraints{extensionBase: base}
		case ext.Id.Equal(OIDKeyUsage):
			e = KeyUsage{extensionBase: base}
		case ext.Id.Equal(OIDExtKeyUsage):
			e = ExtKeyUsage{extensionBase: base}
		case ext.Id.Equal(OIDSubjectAltName):
			e = SubjectAltName{extensionBase: base}
		case ext.Id.Equal(OIDSubjectKeyID):
			e = SubjectKeyID{extensionBase: base}
		case ext.Id.Equal(OIDAuthorityKeyID):
			e = AuthorityKeyID{extensionBase: base}
		case ext.Id.Equal(OIDCRLDistributionPoints):
			e = CRLDistributionPoints{extensionBase: base}
		case ext.Id.Equal(OIDAuthorityInfoAccess):
			e = AuthorityInfoAccess{extensionBase: base}
		case ext.Id.Equal(OIDCertificatePolicies):
			e = CertificatePolicies{extensionBase: base}
		case ext.Id.Equal(OIDNameConstraints):
			e = NameConstraints{extensionBase: base}
		default:
			e = Unknown{extensionBase: base}
		}
		out = append(out, e)
	}
	return out
}

func hasNameConstraints(c *Certificate) bool {
	return len(c.PermittedDNSDomains) > 0 || len(c.ExcludedDNSDomains) > 0 ||
		len(c.PermittedEmailAddresses) > 0 || len(c.ExcludedEmailAddresses) > 0 ||
		len(c.PermittedIPRanges) > 0 || len(c.ExcludedIPRanges) > 0 ||
		len(c.PermittedURIDomains) > 0 || len(c.ExcludedURIDomains) > 0
}

func namesPermitted(ca, c *Certificate) bool {
	for _, name := range c.DNSNames {
		if !allowed(name, ca.PermittedDNSDomains, ca.ExcludedDNSDomains, matchDomain) {
			return false
		}
	}
	for _, addr := range c.EmailAddresses {
		if !allowed(addr, ca.PermittedEmailAddresses, ca.ExcludedEmailAddresses, matchEmail) {
			return false
		}
	}
	for _, u := range c.URIs {
		if !allowed(u.Hostname(), ca.PermittedURIDomains, ca.ExcludedURIDomains, matchDomain) {
			return false
		}
	}
	for _, ip := range c.IPAddresses {
		if !ipAllowed(ip, ca.PermittedIPRanges, ca.ExcludedIPRanges) {
			return false
		}
	}
	return true
}

func allowed(name string, permitted, excluded []string, match func(name, constraint string) bool) bool {
	for _, ex := range excluded {
		if match(name, ex) {
			return false
		}
	}
	if len(permitted) == 0 {
		return true
	}
	for _, p := range permitted {
		if match(name, p) {
			return true
		}
	}
	return false
}

func ipAllowed(ip net.IP, permitted, excluded []*net.IPNet) bool {
	for _, ex := range excluded {
		if ex.Contains(ip) {
			return false
		}
	}
	if len(permitted) == 0 {
		return true
	}
	for _, p := range permitted {
		if p.Contains(ip) {
			return true
		}
	}
	return false
}

// matchDomain follows RFC 5280 section 4.2.1.10: a constraint matches the
// name itself and any name built by adding labels on the left. A leading
// dot restricts the match to subdomains.
func matchDomain(name, constraint string) bool {
	name = strings.ToLower(strings.TrimSuffix(name, "."))
	constraint = strings.ToLower(constraint)
	if constraint == "" {
		return true
	}
	if strings.HasPrefix(constraint, ".") {
		return strings.HasSuffix(name, constraint)
	}
	return name == constraint || strings.HasSuffix(name, "."+constraint)
}

func matchEmail(addr, constraint string) bool {
	if strings.Contains(constraint, "@") {
		return strings.EqualFold(addr, constraint)
	}
	at := strings.LastIndexByte(addr, '@')
	if at < 0 {
		return false
	}
	return matchDomain(addr[at+1:], constraint)
}
