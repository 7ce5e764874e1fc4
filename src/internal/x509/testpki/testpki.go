// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package testpki generates throwaway certificate hierarchies, CRLs and OCSP
// responses for tests. Keys are P-256 unless a template says otherwise.
package testpki

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	x509chain "github.com/H0llyW00dzZ/x509-path-validator/src/internal/x509/chain"
	"golang.org/x/crypto/cryptobyte"
	cryptobyte_asn1 "golang.org/x/crypto/cryptobyte/asn1"
	"golang.org/x/crypto/ocsp"
)

// Issued is a certificate together with its private key.
type Issued struct {
	Cert *x509.Certificate
	Key  crypto.Signer
}

// Wrap returns the path validation view of the certificate.
func (i *Issued) Wrap() *x509chain.Certificate { return x509chain.NewCertificate(i.Cert) }

// Serial returns a random positive serial number.
func Serial(tb testing.TB) *big.Int {
	tb.Helper()
	n, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 62))
	if err != nil {
		tb.Fatalf("serial: %v", err)
	}
	return n.Add(n, big.NewInt(1))
}

// CATemplate returns a CA template valid from an hour ago for a day.
func CATemplate(tb testing.TB, cn string) *x509.Certificate {
	tb.Helper()
	return &x509.Certificate{
		SerialNumber:          Serial(tb),
		Subject:               pkix.Name{CommonName: cn, Organization: []string{"Test PKI"}},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
}

// LeafTemplate returns a TLS server template for the given DNS names.
func LeafTemplate(tb testing.TB, cn string, dnsNames ...string) *x509.Certificate {
	tb.Helper()
	return &x509.Certificate{
		SerialNumber:          Serial(tb),
		Subject:               pkix.Name{CommonName: cn},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              dnsNames,
	}
}

// Issue signs tmpl with parent's key, or self-signs when parent is nil.
func Issue(tb testing.TB, tmpl *x509.Certificate, parent *Issued) *Issued {
	tb.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		tb.Fatalf("generate key: %v", err)
	}
	return IssueWithKey(tb, tmpl, parent, key)
}

// IssueWithKey is [Issue] with a caller supplied subject key.
func IssueWithKey(tb testing.TB, tmpl *x509.Certificate, parent *Issued, key crypto.Signer) *Issued {
	tb.Helper()

	signerCert, signerKey := tmpl, key
	if parent != nil {
		signerCert, signerKey = parent.Cert, parent.Key
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, signerCert, key.Public(), signerKey)
	if err != nil {
		tb.Fatalf("create certificate %q: %v", tmpl.Subject.CommonName, err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		tb.Fatalf("parse certificate %q: %v", tmpl.Subject.CommonName, err)
	}
	return &Issued{Cert: cert, Key: key}
}

// Hierarchy is a root, one intermediate and a leaf for "leaf.example.com".
type Hierarchy struct {
	Root         *Issued
	Intermediate *Issued
	Leaf         *Issued
}

// NewHierarchy issues a fresh three level hierarchy.
func NewHierarchy(tb testing.TB) *Hierarchy {
	tb.Helper()
	root := Issue(tb, CATemplate(tb, "Test Root"), nil)
	inter := Issue(tb, CATemplate(tb, "Test Intermediate"), root)
	leaf := Issue(tb, LeafTemplate(tb, "leaf.example.com", "leaf.example.com"), inter)
	return &Hierarchy{Root: root, Intermediate: inter, Leaf: leaf}
}

// Path returns leaf, intermediate and root wrapped in path order.
func (h *Hierarchy) Path() x509chain.Path {
	return x509chain.Path{h.Leaf.Wrap(), h.Intermediate.Wrap(), h.Root.Wrap()}
}

// CRLOptions shapes a generated CRL.
type CRLOptions struct {
	Revoked    []*big.Int
	ThisUpdate time.Time
	NextUpdate time.Time
	Extensions []pkix.Extension
}

// CRL issues a CRL signed by issuer. Zero times default to a window around
// now.
func CRL(tb testing.TB, issuer *Issued, opts CRLOptions) *x509.RevocationList {
	tb.Helper()

	if opts.ThisUpdate.IsZero() {
		opts.ThisUpdate = time.Now().Add(-time.Minute)
	}
	if opts.NextUpdate.IsZero() {
		opts.NextUpdate = time.Now().Add(time.Hour)
	}

	tmpl := &x509.RevocationList{
		Number:          Serial(tb),
		ThisUpdate:      opts.ThisUpdate,
		NextUpdate:      opts.NextUpdate,
		ExtraExtensions: opts.Extensions,
	}
	for _, serial := range opts.Revoked {
		tmpl.RevokedCertificateEntries = append(tmpl.RevokedCertificateEntries, x509.RevocationListEntry{
			SerialNumber:   serial,
			RevocationTime: opts.ThisUpdate,
		})
	}

	der, err := x509.CreateRevocationList(rand.Reader, tmpl, issuer.Cert, issuer.Key)
	if err != nil {
		tb.Fatalf("create CRL: %v", err)
	}
	crl, err := x509.ParseRevocationList(der)
	if err != nil {
		tb.Fatalf("parse CRL: %v", err)
	}
	return crl
}

// OCSPOptions shapes a generated OCSP response.
type OCSPOptions struct {
	Status     int // ocsp.Good, ocsp.Revoked or ocsp.Unknown
	ThisUpdate time.Time
	NextUpdate time.Time
	// Responder signs the response; the issuer signs when nil.
	Responder *Issued
	// Embed includes the responder certificate in the response.
	Embed bool
}

// OCSPResponse returns a DER encoded response about subject.
func OCSPResponse(tb testing.TB, issuer *Issued, subject *x509.Certificate, opts OCSPOptions) []byte {
	tb.Helper()
	der, err := createOCSP(issuer, subject, opts)
	if err != nil {
		tb.Fatalf("create OCSP response: %v", err)
	}
	return der
}

func createOCSP(issuer *Issued, subject *x509.Certificate, opts OCSPOptions) ([]byte, error) {
	if opts.ThisUpdate.IsZero() {
		opts.ThisUpdate = time.Now().Add(-time.Minute)
	}
	signer := issuer
	if opts.Responder != nil {
		signer = opts.Responder
	}

	tmpl := ocsp.Response{
		Status:       opts.Status,
		SerialNumber: subject.SerialNumber,
		ThisUpdate:   opts.ThisUpdate,
		NextUpdate:   opts.NextUpdate,
	}
	if opts.Status == ocsp.Revoked {
		tmpl.RevokedAt = opts.ThisUpdate
	}
	if opts.Embed {
		tmpl.Certificate = signer.Cert
	}
	return ocsp.CreateResponse(issuer.Cert, signer.Cert, tmpl, signer.Key)
}

var (
	oidSHA1            = asn1.ObjectIdentifier{1, 3, 14, 3, 2, 26}
	oidECDSAWithSHA256 = asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 2}
	oidOCSPBasic       = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 48, 1, 1}
)

// OCSPEntry is one single response of [OCSPBatch].
type OCSPEntry struct {
	Issuer  *Issued // names the issuer in the CertID
	Subject *x509.Certificate
	Status  int // ocsp.Good, ocsp.Revoked or ocsp.Unknown
}

// OCSPBatch returns a DER encoded response carrying one single response per
// entry, in order, signed by signer with ECDSA and SHA-256. Every entry is
// valid from a minute ago until nextUpdate.
func OCSPBatch(tb testing.TB, signer *Issued, nextUpdate time.Time, entries ...OCSPEntry) []byte {
	tb.Helper()
	thisUpdate := time.Now().Add(-time.Minute).UTC()

	var tbs cryptobyte.Builder
	tbs.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1(cryptobyte_asn1.Tag(1).ContextSpecific().Constructed(), func(b *cryptobyte.Builder) {
			b.AddBytes(signer.Cert.RawSubject)
		})
		b.AddASN1GeneralizedTime(thisUpdate)
		b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) {
			for _, e := range entries {
				addSingleResponse(tb, b, e, thisUpdate, nextUpdate.UTC())
			}
		})
	})
	tbsDER, err := tbs.Bytes()
	if err != nil {
		tb.Fatalf("encode OCSP response data: %v", err)
	}

	digest := sha256.Sum256(tbsDER)
	sig, err := signer.Key.Sign(rand.Reader, digest[:], crypto.SHA256)
	if err != nil {
		tb.Fatalf("sign OCSP response: %v", err)
	}

	var basic cryptobyte.Builder
	basic.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddBytes(tbsDER)
		b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) {
			b.AddASN1ObjectIdentifier(oidECDSAWithSHA256)
		})
		b.AddASN1BitString(sig)
	})
	basicDER, err := basic.Bytes()
	if err != nil {
		tb.Fatalf("encode basic OCSP response: %v", err)
	}

	var resp cryptobyte.Builder
	resp.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1Enum(int64(ocsp.Success))
		b.AddASN1(cryptobyte_asn1.Tag(0).ContextSpecific().Constructed(), func(b *cryptobyte.Builder) {
			b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) {
				b.AddASN1ObjectIdentifier(oidOCSPBasic)
				b.AddASN1OctetString(basicDER)
			})
		})
	})
	der, err := resp.Bytes()
	if err != nil {
		tb.Fatalf("encode OCSP response: %v", err)
	}
	return der
}

func addSingleResponse(tb testing.TB, b *cryptobyte.Builder, e OCSPEntry, thisUpdate, nextUpdate time.Time) {
	var spki struct {
		Algorithm pkix.AlgorithmIdentifier
		PublicKey asn1.BitString
	}
	if _, err := asn1.Unmarshal(e.Issuer.Cert.RawSubjectPublicKeyInfo, &spki); err != nil {
		tb.Fatalf("parse issuer key: %v", err)
	}
	nameHash := sha1.Sum(e.Issuer.Cert.RawSubject)
	keyHash := sha1.Sum(spki.PublicKey.RightAlign())

	b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) {
			b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) {
				b.AddASN1ObjectIdentifier(oidSHA1)
				b.AddASN1NULL()
			})
			b.AddASN1OctetString(nameHash[:])
			b.AddASN1OctetString(keyHash[:])
			b.AddASN1BigInt(e.Subject.SerialNumber)
		})
		switch e.Status {
		case ocsp.Revoked:
			b.AddASN1(cryptobyte_asn1.Tag(1).ContextSpecific().Constructed(), func(b *cryptobyte.Builder) {
				b.AddASN1GeneralizedTime(thisUpdate)
			})
		case ocsp.Unknown:
			b.AddASN1(cryptobyte_asn1.Tag(2).ContextSpecific(), func(*cryptobyte.Builder) {})
		default:
			b.AddASN1(cryptobyte_asn1.Tag(0).ContextSpecific(), func(*cryptobyte.Builder) {})
		}
		b.AddASN1GeneralizedTime(thisUpdate)
		b.AddASN1(cryptobyte_asn1.Tag(0).ContextSpecific().Constructed(), func(b *cryptobyte.Builder) {
			b.AddASN1GeneralizedTime(nextUpdate)
		})
	})
}

// Responder issues a delegated OCSP responder certificate under issuer,
// with the OCSP signing extended key usage when ocspSigning is set.
func Responder(tb testing.TB, issuer *Issued, ocspSigning bool) *Issued {
	tb.Helper()
	tmpl := LeafTemplate(tb, issuer.Cert.Subject.CommonName+" OCSP Responder")
	tmpl.ExtKeyUsage = nil
	if ocspSigning {
		tmpl.ExtKeyUsage = []x509.ExtKeyUsage{x509.ExtKeyUsageOCSPSigning}
	}
	return Issue(tb, tmpl, issuer)
}

// NewHierarchyAt is [NewHierarchy] with revocation locators under baseURL:
// the leaf points at baseURL/intermediate.crl, the intermediate at
// baseURL/root.crl, and both at the responder baseURL/ocsp.
func NewHierarchyAt(tb testing.TB, baseURL string) *Hierarchy {
	tb.Helper()
	root := Issue(tb, CATemplate(tb, "Test Root"), nil)

	it := CATemplate(tb, "Test Intermediate")
	it.CRLDistributionPoints = []string{baseURL + "/root.crl"}
	it.OCSPServer = []string{baseURL + "/ocsp"}
	inter := Issue(tb, it, root)

	lt := LeafTemplate(tb, "leaf.example.com", "leaf.example.com")
	lt.CRLDistributionPoints = []string{baseURL + "/intermediate.crl"}
	lt.OCSPServer = []string{baseURL + "/ocsp"}
	leaf := Issue(tb, lt, inter)

	return &Hierarchy{Root: root, Intermediate: inter, Leaf: leaf}
}

// Server publishes the CRLs of a hierarchy and answers OCSP requests for
// it over HTTP.
type Server struct {
	*httptest.Server
	Hierarchy *Hierarchy

	mu       sync.Mutex
	crls     map[string][]byte
	revoked  map[string]bool
	failWith int
	delay    time.Duration
	requests atomic.Int64
}

// NewServer starts a server for a fresh hierarchy built by
// [NewHierarchyAt]. Both CRLs start empty and every certificate is good.
func NewServer(tb testing.TB) *Server {
	tb.Helper()
	s := &Server{
		crls:    make(map[string][]byte),
		revoked: make(map[string]bool),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	tb.Cleanup(s.Close)

	s.Hierarchy = NewHierarchyAt(tb, s.URL)
	s.SetCRL("/intermediate.crl", CRL(tb, s.Hierarchy.Intermediate, CRLOptions{}))
	s.SetCRL("/root.crl", CRL(tb, s.Hierarchy.Root, CRLOptions{}))
	return s
}

// SetCRL publishes crl at path.
func (s *Server) SetCRL(path string, crl *x509.RevocationList) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.crls[path] = crl.Raw
}

// RevokeLeaf marks the leaf revoked in OCSP answers and republishes the
// intermediate CRL listing it.
func (s *Server) RevokeLeaf(tb testing.TB) {
	tb.Helper()
	leaf := s.Hierarchy.Leaf.Cert
	s.SetCRL("/intermediate.crl", CRL(tb, s.Hierarchy.Intermediate, CRLOptions{
		Revoked: []*big.Int{leaf.SerialNumber},
	}))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[leaf.SerialNumber.String()] = true
}

// FailWith makes every later request answer with the HTTP status code.
// Zero restores normal answers.
func (s *Server) FailWith(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = code
}

// Delay holds every later answer back for d.
func (s *Server) Delay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// Requests returns the number of requests received so far.
func (s *Server) Requests() int { return int(s.requests.Load()) }

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.requests.Add(1)

	s.mu.Lock()
	failWith, delay := s.failWith, s.delay
	crl, hasCRL := s.crls[r.URL.Path]
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}
	if failWith != 0 {
		w.WriteHeader(failWith)
		return
	}

	switch {
	case r.Method == http.MethodGet && hasCRL:
		w.Header().Set("Content-Type", "application/pkix-crl")
		_, _ = w.Write(crl)
	case r.Method == http.MethodPost && r.URL.Path == "/ocsp":
		s.answerOCSP(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) answerOCSP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	req, err := ocsp.ParseRequest(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h := s.Hierarchy
	var subject, issuer *Issued
	switch req.SerialNumber.String() {
	case h.Leaf.Cert.SerialNumber.String():
		subject, issuer = h.Leaf, h.Intermediate
	case h.Intermediate.Cert.SerialNumber.String():
		subject, issuer = h.Intermediate, h.Root
	default:
		http.NotFound(w, r)
		return
	}

	s.mu.Lock()
	revoked := s.revoked[req.SerialNumber.String()]
	s.mu.Unlock()

	opts := OCSPOptions{Status: ocsp.Good, NextUpdate: time.Now().Add(time.Hour)}
	if revoked {
		opts.Status = ocsp.Revoked
	}
	der, err := createOCSP(issuer, subject.Cert, opts)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/ocsp-response")
	_, _ = w.Write(der)
}
