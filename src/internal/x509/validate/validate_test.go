// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package validate

import (
	"bytes"
	"context"
	"crypto/x509"
	"math/big"
	"testing"
	"time"

	"github.com/H0llyW00dzZ/x509-path-validator/src/internal/metrics"
	x509chain "github.com/H0llyW00dzZ/x509-path-validator/src/internal/x509/chain"
	"github.com/H0llyW00dzZ/x509-path-validator/src/internal/x509/revocation"
	"github.com/H0llyW00dzZ/x509-path-validator/src/internal/x509/status"
	"github.com/H0llyW00dzZ/x509-path-validator/src/internal/x509/store"
	"github.com/H0llyW00dzZ/x509-path-validator/src/internal/x509/testpki"
	"github.com/H0llyW00dzZ/x509-path-validator/src/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ocsp"
)

// trustRoot returns a store holding h's root and the given CRLs.
func trustRoot(t *testing.T, h *testpki.Hierarchy, crls ...*x509.RevocationList) []store.Store {
	t.Helper()
	s := store.NewMemoryStoreX509(h.Root.Cert)
	for _, crl := range crls {
		require.NoError(t, s.AddCRL(crl))
	}
	return []store.Store{s}
}

func TestValidate_EndToEnd(t *testing.T) {
	h := testpki.NewHierarchy(t)
	ctx := context.Background()
	certs := []*x509.Certificate{h.Leaf.Cert, h.Intermediate.Cert}

	t.Run("Current CRL not listing the leaf", func(t *testing.T) {
		crl := testpki.CRL(t, h.Intermediate, testpki.CRLOptions{Revoked: []*big.Int{big.NewInt(7)}})
		res, err := Validate(ctx, certs, DefaultRestrictions(), trustRoot(t, h, crl),
			"leaf.example.com", x509chain.UsageTLSServerAuth, time.Time{}, 0, nil)
		require.NoError(t, err)

		assert.True(t, res.Successful(), res.ResultString())
		assert.Contains(t, []status.Code{status.Verified, status.ValidCRLChecked}, res.Code())
		assert.True(t, res.Status().Has(0, status.ValidCRLChecked))
		assert.True(t, res.Status().Has(0, status.OCSPNoHTTP))
		assert.NotEmpty(t, res.RunID())

		root, err := res.TrustRoot()
		require.NoError(t, err)
		assert.Equal(t, h.Root.Wrap().Fingerprint(), root.Fingerprint())
		require.Len(t, res.Path(), 3)
		assert.Equal(t, h.Intermediate.Wrap().Fingerprint(), res.Path()[1].Fingerprint())
	})

	t.Run("Issuer name mismatch", func(t *testing.T) {
		// Signed with the intermediate key under a different issuer name.
		alias := testpki.IssueWithKey(t, testpki.CATemplate(t, "Someone Else"), h.Root, h.Intermediate.Key)
		mismatched := testpki.Issue(t, testpki.LeafTemplate(t, "leaf.example.com", "leaf.example.com"), alias)
		path := x509chain.Path{mismatched.Wrap(), h.Intermediate.Wrap(), h.Root.Wrap()}

		res, err := New().evaluate(ctx, "test", path, Request{
			Restrictions:  DefaultRestrictions(),
			Stores:        trustRoot(t, h),
			Hostname:      "leaf.example.com",
			ReferenceTime: time.Now(),
		})
		require.NoError(t, err)

		assert.True(t, res.Status().Has(0, status.ChainNameMismatch))
		assert.False(t, res.Successful())
	})

	t.Run("Self-signed end entity", func(t *testing.T) {
		srv := testpki.NewServer(t)
		tmpl := testpki.LeafTemplate(t, "self.example.com", "self.example.com")
		tmpl.CRLDistributionPoints = []string{srv.URL + "/intermediate.crl"}
		tmpl.OCSPServer = []string{srv.URL + "/ocsp"}
		tmpl.IssuingCertificateURL = []string{srv.URL + "/issuer.crt"}
		self := testpki.Issue(t, tmpl, nil)

		v := New(WithTransport(x509chain.NewHTTPConfig("test")), WithAIAFetching(3))
		res, err := v.Validate(ctx, Request{
			Certificates:  []*x509.Certificate{self.Cert},
			Restrictions:  DefaultRestrictions(),
			Stores:        trustRoot(t, srv.Hierarchy),
			Hostname:      "self.example.com",
			OCSPTimeout:   time.Second,
			ReferenceTime: time.Now(),
		})
		require.NoError(t, err)

		assert.Equal(t, status.CannotEstablishTrust, res.Code())
		assert.False(t, res.Successful())
		assert.Nil(t, res.Path())
		assert.Zero(t, srv.Requests(), "no network call may precede a built path")
	})

	t.Run("CRL listing the leaf", func(t *testing.T) {
		crl := testpki.CRL(t, h.Intermediate, testpki.CRLOptions{Revoked: []*big.Int{h.Leaf.Cert.SerialNumber}})
		res, err := Validate(ctx, certs, DefaultRestrictions(), trustRoot(t, h, crl),
			"leaf.example.com", x509chain.UsageTLSServerAuth, time.Time{}, 0, nil)
		require.NoError(t, err)

		assert.True(t, res.Status().Has(0, status.CertIsRevoked))
		assert.Equal(t, status.CertIsRevoked, res.Code())
		assert.False(t, res.Successful())

		_, err = res.TrustRoot()
		assert.ErrorIs(t, err, ErrNotSuccessful)
	})
}

func TestValidate_Revocation(t *testing.T) {
	h := testpki.NewHierarchy(t)
	ctx := context.Background()
	certs := []*x509.Certificate{h.Leaf.Cert, h.Intermediate.Cert}
	good := revocation.ParseOCSPResponse(testpki.OCSPResponse(t, h.Intermediate, h.Leaf.Cert, testpki.OCSPOptions{
		Status: ocsp.Good, NextUpdate: time.Now().Add(time.Hour),
	}))
	revoked := revocation.ParseOCSPResponse(testpki.OCSPResponse(t, h.Intermediate, h.Leaf.Cert, testpki.OCSPOptions{
		Status: ocsp.Revoked, NextUpdate: time.Now().Add(time.Hour),
	}))

	tests := []struct {
		name         string
		restrictions Restrictions
		responses    []*revocation.OCSPResponse
		crls         []*x509.RevocationList
		successful   bool
		code         status.Code
		present      []status.Code
	}{
		{
			name:         "Required but missing",
			restrictions: NewRestrictions(true, DefaultMinimumKeyStrength, false, 0),
			code:         status.NoRevocationData,
			present:      []status.Code{status.NoRevocationData, status.OCSPNoHTTP},
		},
		{
			name:         "Required and proven by CRL",
			restrictions: NewRestrictions(true, DefaultMinimumKeyStrength, false, 0),
			crls:         []*x509.RevocationList{testpki.CRL(t, h.Intermediate, testpki.CRLOptions{})},
			successful:   true,
			present:      []status.Code{status.ValidCRLChecked},
		},
		{
			name:         "Required and proven by offline OCSP",
			restrictions: NewRestrictions(true, DefaultMinimumKeyStrength, false, 0),
			responses:    []*revocation.OCSPResponse{good},
			successful:   true,
			present:      []status.Code{status.OCSPResponseGood},
		},
		{
			name:         "Offline OCSP revoked",
			restrictions: DefaultRestrictions(),
			responses:    []*revocation.OCSPResponse{revoked},
			code:         status.CertIsRevoked,
			present:      []status.Code{status.CertIsRevoked},
		},
		{
			name:         "Intermediates required without proof",
			restrictions: NewRestrictions(true, DefaultMinimumKeyStrength, true, 0),
			responses:    []*revocation.OCSPResponse{good},
			code:         status.NoRevocationData,
			present:      []status.Code{status.OCSPResponseGood},
		},
		{
			name:         "Key strength above the leaf's issuer",
			restrictions: NewRestrictions(false, 256, false, 0),
			code:         status.SignatureMethodTooWeak,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Validate(ctx, certs, tt.restrictions, trustRoot(t, h, tt.crls...),
				"", x509chain.UsageUnspecified, time.Time{}, 0, tt.responses)
			require.NoError(t, err)

			assert.Equal(t, tt.successful, res.Successful(), res.ResultString())
			if !tt.successful {
				assert.Equal(t, tt.code, res.Code())
			}
			for _, c := range tt.present {
				assert.True(t, res.Status().Has(0, c), "missing %s in %v", c.Name(), res.Status()[0].Sorted())
			}
		})
	}
}

func TestValidate_Online(t *testing.T) {
	ctx := context.Background()

	t.Run("Good", func(t *testing.T) {
		srv := testpki.NewServer(t)
		h := srv.Hierarchy
		cache := store.NewMemoryStore()
		reg := prometheus.NewRegistry()

		v := New(
			WithTransport(x509chain.NewHTTPConfig("test")),
			WithCRLCache(cache),
			WithMetrics(metrics.New(reg)),
		)
		req := Request{
			Certificates: []*x509.Certificate{h.Leaf.Cert, h.Intermediate.Cert},
			Restrictions: NewRestrictions(true, DefaultMinimumKeyStrength, true, 0),
			Stores:       trustRoot(t, h),
			Hostname:     "leaf.example.com",
			Usage:        x509chain.UsageTLSServerAuth,
			OCSPTimeout:  2 * time.Second,
		}

		res, err := v.Validate(ctx, req)
		require.NoError(t, err)
		assert.True(t, res.Successful(), res.ResultString())
		assert.True(t, res.Status().Has(0, status.OCSPResponseGood))
		assert.True(t, res.Status().Has(0, status.ValidCRLChecked))
		assert.True(t, res.Status().Has(1, status.OCSPResponseGood))
		assert.Equal(t, 4, srv.Requests(), "two CRLs and two OCSP queries")
		assert.Equal(t, 2, cache.CRLs())

		// Cached CRLs are not fetched again.
		_, err = v.Validate(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, 6, srv.Requests())

		families, err := reg.Gather()
		require.NoError(t, err)
		assert.NotEmpty(t, families)
	})

	t.Run("Revoked", func(t *testing.T) {
		srv := testpki.NewServer(t)
		srv.RevokeLeaf(t)
		h := srv.Hierarchy

		res, err := Validate(ctx, []*x509.Certificate{h.Leaf.Cert, h.Intermediate.Cert}, DefaultRestrictions(),
			trustRoot(t, h), "leaf.example.com", x509chain.UsageTLSServerAuth, time.Time{}, 2*time.Second, nil)
		require.NoError(t, err)
		assert.Equal(t, status.CertIsRevoked, res.Code())
	})

	t.Run("Responder down is a soft failure", func(t *testing.T) {
		srv := testpki.NewServer(t)
		srv.FailWith(503)
		h := srv.Hierarchy

		res, err := Validate(ctx, []*x509.Certificate{h.Leaf.Cert, h.Intermediate.Cert},
			NewRestrictions(true, DefaultMinimumKeyStrength, false, 0),
			trustRoot(t, h), "", x509chain.UsageUnspecified, time.Time{}, time.Second, nil)
		require.NoError(t, err)
		assert.True(t, res.Successful(), res.ResultString())
		assert.True(t, res.Status().Has(0, status.OCSPServerNotAvailable))
		assert.Equal(t, "[0] OCSP server not available", res.WarningsString())
	})
}

func TestValidate_CandidatePaths(t *testing.T) {
	h := testpki.NewHierarchy(t)
	ctx := context.Background()

	expiredTmpl := testpki.CATemplate(t, "Test Intermediate")
	expiredTmpl.NotBefore = time.Now().Add(-72 * time.Hour)
	expiredTmpl.NotAfter = time.Now().Add(-48 * time.Hour)
	expired := testpki.IssueWithKey(t, expiredTmpl, h.Root, h.Intermediate.Key)

	t.Run("Later candidate succeeds", func(t *testing.T) {
		var buf bytes.Buffer
		v := New(WithLogger(logger.NewJSONLogger(&buf, false)))
		res, err := v.Validate(ctx, Request{
			Certificates: []*x509.Certificate{h.Leaf.Cert, h.Intermediate.Cert, expired.Cert},
			Restrictions: DefaultRestrictions(),
			Stores:       trustRoot(t, h),
		})
		require.NoError(t, err)

		assert.True(t, res.Successful(), res.ResultString())
		assert.Equal(t, h.Intermediate.Wrap().Fingerprint(), res.Path()[1].Fingerprint())
		assert.Contains(t, buf.String(), "2 candidate path(s)")
		assert.Contains(t, buf.String(), res.RunID())
	})

	t.Run("All candidates fail", func(t *testing.T) {
		res, err := Validate(ctx, []*x509.Certificate{h.Leaf.Cert, expired.Cert}, DefaultRestrictions(),
			trustRoot(t, h), "", x509chain.UsageUnspecified, time.Time{}, 0, nil)
		require.NoError(t, err)

		assert.False(t, res.Successful())
		assert.Equal(t, status.CertHasExpired, res.Code())
		assert.True(t, res.Status().Has(1, status.CertHasExpired))
	})

	t.Run("Missing issuer", func(t *testing.T) {
		res, err := ValidateWithStore(ctx, []*x509.Certificate{h.Leaf.Cert}, DefaultRestrictions(),
			store.NewMemoryStoreX509(h.Root.Cert), "", x509chain.UsageUnspecified, time.Time{}, 0)
		require.NoError(t, err)
		assert.Equal(t, status.CertIssuerNotFound, res.Code())

		_, err = res.TrustRoot()
		assert.ErrorIs(t, err, ErrNoPath)
	})

	t.Run("Trusted intermediate", func(t *testing.T) {
		res, err := ValidateCert(ctx, h.Leaf.Cert, DefaultRestrictions(),
			[]store.Store{store.NewMemoryStoreX509(h.Root.Cert, h.Intermediate.Cert)},
			"leaf.example.com", x509chain.UsageTLSServerAuth, time.Time{}, 0)
		require.NoError(t, err)
		assert.True(t, res.Successful(), res.ResultString())
	})
}

func TestValidate_ContractErrors(t *testing.T) {
	h := testpki.NewHierarchy(t)
	ctx := context.Background()

	_, err := Validate(ctx, nil, DefaultRestrictions(), trustRoot(t, h), "", x509chain.UsageUnspecified, time.Time{}, 0, nil)
	assert.ErrorIs(t, err, ErrNoCertificates)

	_, err = ValidateCert(ctx, nil, DefaultRestrictions(), trustRoot(t, h), "", x509chain.UsageUnspecified, time.Time{}, 0)
	assert.ErrorIs(t, err, ErrNoCertificates)

	_, err = Validate(ctx, []*x509.Certificate{h.Leaf.Cert}, DefaultRestrictions(), nil, "", x509chain.UsageUnspecified, time.Time{}, 0, nil)
	assert.ErrorIs(t, err, ErrNoStores)

	_, err = ValidateWithStore(ctx, []*x509.Certificate{h.Leaf.Cert}, DefaultRestrictions(), nil, "", x509chain.UsageUnspecified, time.Time{}, 0)
	assert.ErrorIs(t, err, ErrNoStores)

	_, err = Validate(ctx, []*x509.Certificate{h.Leaf.Cert, nil, h.Intermediate.Cert}, DefaultRestrictions(), trustRoot(t, h), "", x509chain.UsageUnspecified, time.Time{}, 0, nil)
	assert.ErrorIs(t, err, ErrNilCertificate)
	assert.ErrorContains(t, err, "index 1")

	_, err = New().Validate(ctx, Request{
		Certificates: []*x509.Certificate{h.Leaf.Cert},
		Stores:       append(trustRoot(t, h), nil),
	})
	assert.ErrorIs(t, err, ErrNoStores)
}

func TestResult(t *testing.T) {
	h := testpki.NewHierarchy(t)

	ps := status.NewPathStatus(3)
	ps.Add(0, status.CertSerialNegative)
	ps.Add(0, status.ValidCRLChecked)
	ps.Add(1, status.DNTooLong)
	res := newPathResult("run", h.Path(), ps)

	assert.True(t, res.Successful())
	assert.Equal(t, "Verified", res.ResultString())
	assert.Equal(t, "[0] Certificate serial number is negative, [1] Distinguished name too long", res.WarningsString())
	assert.True(t, res.Warnings().Has(0, status.CertSerialNegative))
	assert.False(t, res.Warnings().Has(0, status.ValidCRLChecked))

	report := res.Report()
	assert.Equal(t, "run", report.RunID)
	assert.Equal(t, "VERIFIED", report.Code)
	assert.Equal(t, []string{"[0] CERT_SERIAL_NEGATIVE", "[1] DN_TOO_LONG"}, report.Warnings)
	assert.Len(t, report.Path.Certificates, 3)

	failed := newBuildFailure("run", status.CertChainLoop)
	assert.False(t, failed.Successful())
	assert.Empty(t, failed.WarningsString())
	assert.Empty(t, failed.Report().Path.Certificates)
}

func TestRestrictions(t *testing.T) {
	tests := []struct {
		name     string
		strength int
		sha1     bool
	}{
		{name: "Default", strength: DefaultMinimumKeyStrength},
		{name: "Legacy", strength: 80, sha1: true},
		{name: "Below legacy", strength: 64, sha1: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRestrictions(false, tt.strength, false, 0)
			assert.Equal(t, tt.sha1, contains(r.TrustedHashes, "SHA-1"))
			assert.Subset(t, r.TrustedHashes, []string{"SHA-224", "SHA-256", "SHA-384", "SHA-512", "Pure"})
		})
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
