// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package x509chain

import (
	"bytes"
	"crypto/dsa" //nolint:staticcheck // DSA keys still show up in legacy PKIs.
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/hex"
	"errors"
	"math"

	"github.com/H0llyW00dzZ/x509-path-validator/src/internal/x509/status"
	"golang.org/x/net/idna"
)

// NoPathLimit is returned by [Certificate.PathLimit] when the certificate
// places no bound on the number of CA certificates that may follow it.
const NoPathLimit = -1

// Fingerprint is the SHA-256 digest of a certificate's DER encoding. It is
// the identity used for cycle and duplicate detection.
type Fingerprint [sha256.Size]byte

// String returns the lowercase hex form of the fingerprint.
func (f Fingerprint) String() string { return hex.EncodeToString(f[:]) }

// Certificate is an immutable, shareable view of an [X.509] certificate.
//
// The same *Certificate is handed to every candidate path that contains it;
// nothing in this module mutates it after [NewCertificate] returns.
//
// [X.509]: https://grokipedia.com/page/X.509
type Certificate struct {
	*x509.Certificate

	fingerprint Fingerprint
	keyHash     []byte
	selfSigned  bool
	extensions  []Extension
}

// NewCertificate wraps cert, precomputing its fingerprint, self-signed state
// and typed extension list.
func NewCertificate(cert *x509.Certificate) *Certificate {
	c := &Certificate{
		Certificate: cert,
		fingerprint: sha256.Sum256(cert.Raw),
		keyHash:     publicKeyHash(cert.RawSubjectPublicKeyInfo),
	}
	c.selfSigned = c.IsSelfIssued() &&
		cert.CheckSignature(cert.SignatureAlgorithm, cert.RawTBSCertificate, cert.Signature) == nil
	c.extensions = parseExtensions(cert.Extensions)
	return c
}

// WrapAll wraps every certificate of certs.
func WrapAll(certs []*x509.Certificate) []*Certificate {
	out := make([]*Certificate, 0, len(certs))
	for _, cert := range certs {
		out = append(out, NewCertificate(cert))
	}
	return out
}

// Fingerprint returns the SHA-256 fingerprint of the certificate.
func (c *Certificate) Fingerprint() Fingerprint { return c.fingerprint }

// KeyHash returns the SHA-1 digest of the subject public key bit string, as
// used by OCSP responder key identifiers.
func (c *Certificate) KeyHash() []byte { return c.keyHash }

// IsSelfIssued reports whether subject and issuer names are equal.
func (c *Certificate) IsSelfIssued() bool { return bytes.Equal(c.RawSubject, c.RawIssuer) }

// IsSelfSigned reports whether the certificate is self-issued and verifies
// under its own public key.
func (c *Certificate) IsSelfSigned() bool { return c.selfSigned }

// Extensions returns the typed extension list in encoding order.
func (c *Certificate) Extensions() []Extension { return c.extensions }

// IsCA reports whether the certificate may act as a certificate issuer:
// basic constraints mark it as a CA and key usage, when present, allows
// certificate signing. Self-signed v1 certificates are treated as CAs.
func (c *Certificate) IsCA() bool {
	if c.Version < 3 && c.selfSigned {
		return true
	}
	return c.BasicConstraintsValid && c.Certificate.IsCA && c.AllowedKeyUsage(x509.KeyUsageCertSign)
}

// PathLimit returns the basic constraints path length limit, or
// [NoPathLimit] when none applies. A certificate that is not a CA allows no
// certificates below it and reports 0; a v1 self-signed root has no basic
// constraints and is unlimited.
func (c *Certificate) PathLimit() int {
	if c.Version < 3 && c.selfSigned {
		return NoPathLimit
	}
	if !c.BasicConstraintsValid || !c.Certificate.IsCA {
		return 0
	}
	if c.MaxPathLen > 0 || (c.MaxPathLen == 0 && c.MaxPathLenZero) {
		return c.MaxPathLen
	}
	return NoPathLimit
}

// HasKeyUsage reports whether the key usage extension is present and
// asserts ku.
func (c *Certificate) HasKeyUsage(ku x509.KeyUsage) bool { return c.KeyUsage&ku != 0 }

// AllowedKeyUsage reports whether ku is allowed. A certificate without a key
// usage extension allows every usage.
func (c *Certificate) AllowedKeyUsage(ku x509.KeyUsage) bool {
	return c.KeyUsage == 0 || c.KeyUsage&ku != 0
}

// AllowedExtKeyUsage reports whether eku is allowed. A certificate without
// an extended key usage extension allows every purpose.
func (c *Certificate) AllowedExtKeyUsage(eku x509.ExtKeyUsage) bool {
	if len(c.ExtKeyUsage) == 0 && len(c.UnknownExtKeyUsage) == 0 {
		return true
	}
	for _, u := range c.ExtKeyUsage {
		if u == eku || u == x509.ExtKeyUsageAny {
			return true
		}
	}
	return false
}

// AllowedUsage reports whether the certificate may be used for u.
func (c *Certificate) AllowedUsage(u Usage) bool {
	switch u {
	case UsageUnspecified:
		return true
	case UsageTLSServerAuth:
		return (c.AllowedKeyUsage(x509.KeyUsageKeyAgreement) ||
			c.AllowedKeyUsage(x509.KeyUsageKeyEncipherment) ||
			c.AllowedKeyUsage(x509.KeyUsageDigitalSignature)) &&
			c.AllowedExtKeyUsage(x509.ExtKeyUsageServerAuth)
	case UsageTLSClientAuth:
		return (c.AllowedKeyUsage(x509.KeyUsageDigitalSignature) ||
			c.AllowedKeyUsage(x509.KeyUsageKeyAgreement)) &&
			c.AllowedExtKeyUsage(x509.ExtKeyUsageClientAuth)
	case UsageOCSPResponder:
		return (c.AllowedKeyUsage(x509.KeyUsageDigitalSignature) ||
			c.AllowedKeyUsage(x509.KeyUsageContentCommitment)) &&
			c.AllowedExtKeyUsage(x509.ExtKeyUsageOCSPSigning)
	case UsageCertificateAuthority:
		return c.IsCA()
	case UsageEncryption:
		return c.AllowedKeyUsage(x509.KeyUsageKeyEncipherment) ||
			c.AllowedKeyUsage(x509.KeyUsageDataEncipherment) ||
			c.AllowedKeyUsage(x509.KeyUsageKeyAgreement)
	}
	return false
}

// MatchesHostname reports whether host matches a DNS name or IP address on
// the certificate. Internationalised names are compared in their ASCII form.
func (c *Certificate) MatchesHostname(host string) bool {
	if ascii, err := idna.Lookup.ToASCII(host); err == nil {
		host = ascii
	}
	return c.VerifyHostname(host) == nil
}

// IsSerialNegative reports whether the serial number is below zero.
func (c *Certificate) IsSerialNegative() bool {
	return c.SerialNumber != nil && c.SerialNumber.Sign() < 0
}

// OCSPResponder returns the first OCSP responder URL, or "".
func (c *Certificate) OCSPResponder() string {
	if len(c.OCSPServer) == 0 {
		return ""
	}
	return c.OCSPServer[0]
}

// CRLDistributionPoint returns the first CRL distribution point URL, or "".
func (c *Certificate) CRLDistributionPoint() string {
	if len(c.CRLDistributionPoints) == 0 {
		return ""
	}
	return c.CRLDistributionPoints[0]
}

// SignatureHash names the hash function used by the certificate's own
// signature ("SHA-256", "SHA-1", ...). Ed25519 signatures report "Pure".
func (c *Certificate) SignatureHash() string {
	switch c.SignatureAlgorithm {
	case x509.MD2WithRSA:
		return "MD2"
	case x509.MD5WithRSA:
		return "MD5"
	case x509.SHA1WithRSA, x509.DSAWithSHA1, x509.ECDSAWithSHA1:
		return "SHA-1"
	case x509.SHA256WithRSA, x509.SHA256WithRSAPSS, x509.DSAWithSHA256, x509.ECDSAWithSHA256:
		return "SHA-256"
	case x509.SHA384WithRSA, x509.SHA384WithRSAPSS, x509.ECDSAWithSHA384:
		return "SHA-384"
	case x509.SHA512WithRSA, x509.SHA512WithRSAPSS, x509.ECDSAWithSHA512:
		return "SHA-512"
	case x509.PureEd25519:
		return "Pure"
	}
	return ""
}

// VerifySignature checks the certificate signature against the public key
// of issuer and returns [status.Verified] or the failure code.
func (c *Certificate) VerifySignature(issuer *Certificate) status.Code {
	if c.SignatureAlgorithm == x509.UnknownSignatureAlgorithm {
		return status.SignatureAlgoUnknown
	}
	if issuer.PublicKey == nil || issuer.PublicKeyAlgorithm == x509.UnknownPublicKeyAlgorithm {
		return status.CertPubkeyInvalid
	}

	err := issuer.CheckSignature(c.SignatureAlgorithm, c.RawTBSCertificate, c.Signature)
	if err == nil {
		return status.Verified
	}

	var insecure x509.InsecureAlgorithmError
	switch {
	case errors.As(err, &insecure):
		return status.UntrustedHash
	case errors.Is(err, x509.ErrUnsupportedAlgorithm):
		return status.SignatureAlgoBadParams
	}
	return status.SignatureError
}

// KeyStrength estimates the security level of the subject public key in
// bits, following the RFC 3766 number field sieve estimate for factoring
// and discrete log keys. Unknown key types report 0.
func (c *Certificate) KeyStrength() int {
	switch k := c.PublicKey.(type) {
	case *rsa.PublicKey:
		return nfsWorkFactor(k.N.BitLen())
	case *dsa.PublicKey:
		return nfsWorkFactor(k.P.BitLen())
	case *ecdsa.PublicKey:
		return k.Curve.Params().BitSize / 2
	case ed25519.PublicKey:
		return 128
	}
	return 0
}

func nfsWorkFactor(bits int) int {
	if bits < 512 {
		return 0
	}
	const (
		log2e = 1.44269502
		log2k = -5.6438 // log2(0.02)
	)
	logP := float64(bits) / log2e
	logLogP := math.Log(logP)
	est := 1.92 * math.Cbrt(logP*logLogP*logLogP)
	return int(log2k + log2e*est)
}

func publicKeyHash(spki []byte) []byte {
	var info struct {
		Algorithm pkix.AlgorithmIdentifier
		PublicKey asn1.BitString
	}
	if _, err := asn1.Unmarshal(spki, &info); err != nil {
		return nil
	}
	sum := sha1.Sum(info.PublicKey.RightAlign())
	return sum[:]
}

// Path is a certification path: index 0 is the end entity and the last
// element the trust anchor.
type Path []*Certificate

// TrustAnchor returns the last certificate of the path, or nil.
func (p Path) TrustAnchor() *Certificate {
	if len(p) == 0 {
		return nil
	}
	return p[len(p)-1]
}

// X509 returns the underlying certificates in path order.
func (p Path) X509() []*x509.Certificate {
	out := make([]*x509.Certificate, len(p))
	for i, c := range p {
		out[i] = c.Certificate
	}
	return out
}
