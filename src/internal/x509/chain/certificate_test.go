// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package x509chain_test

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	x509chain "github.com/H0llyW00dzZ/x509-path-validator/src/internal/x509/chain"
	"github.com/H0llyW00dzZ/x509-path-validator/src/internal/x509/testpki"
)

func TestNFSWorkFactor(t *testing.T) {
	tests := []struct {
		bits int
		want int
	}{
		{bits: 256, want: 0},
		{bits: 1024, want: 80},
		{bits: 2048, want: 111},
		{bits: 3072, want: 132},
		{bits: 4096, want: 150},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, x509chain.NFSWorkFactor(tt.bits), "%d bits", tt.bits)
	}
}

func TestCertificateProperties(t *testing.T) {
	h := testpki.NewHierarchy(t)

	tests := []struct {
		name     string
		testFunc func(t *testing.T)
	}{
		{
			name: "Self-signed root",
			testFunc: func(t *testing.T) {
				root := h.Root.Wrap()
				assert.True(t, root.IsSelfIssued())
				assert.True(t, root.IsSelfSigned())
				assert.True(t, root.IsCA())
				assert.Equal(t, x509chain.NoPathLimit, root.PathLimit())

				v1 := *h.Root.Cert
				v1.Version = 1
				v1.BasicConstraintsValid = false
				assert.Equal(t, x509chain.NoPathLimit, x509chain.NewCertificate(&v1).PathLimit())
			},
		},
		{
			name: "Leaf is neither CA nor self-signed",
			testFunc: func(t *testing.T) {
				leaf := h.Leaf.Wrap()
				assert.False(t, leaf.IsSelfSigned())
				assert.False(t, leaf.IsCA())
				assert.True(t, leaf.MatchesHostname("leaf.example.com"))
				assert.False(t, leaf.MatchesHostname("other.example.com"))
				assert.Equal(t, "SHA-256", leaf.SignatureHash())
				assert.Equal(t, 128, leaf.KeyStrength())
				assert.Equal(t, 0, leaf.PathLimit())
			},
		},
		{
			name: "Fingerprint is stable per DER",
			testFunc: func(t *testing.T) {
				a, b := h.Leaf.Wrap(), h.Leaf.Wrap()
				assert.Equal(t, a.Fingerprint(), b.Fingerprint())
				assert.NotEqual(t, a.Fingerprint(), h.Root.Wrap().Fingerprint())
				assert.Len(t, a.Fingerprint().String(), 64)
			},
		},
		{
			name: "Key hash is SHA-1 sized",
			testFunc: func(t *testing.T) {
				assert.Len(t, h.Intermediate.Wrap().KeyHash(), 20)
			},
		},
		{
			name: "Path length zero",
			testFunc: func(t *testing.T) {
				tmpl := testpki.CATemplate(t, "Zero")
				tmpl.MaxPathLenZero = true
				ca := testpki.Issue(t, tmpl, h.Root).Wrap()
				assert.Equal(t, 0, ca.PathLimit())
			},
		},
		{
			name: "CA without keyCertSign is not a CA",
			testFunc: func(t *testing.T) {
				tmpl := testpki.CATemplate(t, "CRL only")
				tmpl.KeyUsage = x509.KeyUsageCRLSign
				ca := testpki.Issue(t, tmpl, h.Root).Wrap()
				assert.False(t, ca.IsCA())
			},
		},
		{
			name: "Negative serial",
			testFunc: func(t *testing.T) {
				c := *h.Leaf.Cert
				c.SerialNumber = new(big.Int).Neg(c.SerialNumber)
				assert.True(t, x509chain.NewCertificate(&c).IsSerialNegative())
			},
		},
		{
			name: "Ed25519 strength",
			testFunc: func(t *testing.T) {
				_, key, err := ed25519.GenerateKey(rand.Reader)
				require.NoError(t, err)
				cert := testpki.IssueWithKey(t, testpki.CATemplate(t, "Ed"), nil, key).Wrap()
				assert.Equal(t, 128, cert.KeyStrength())
				assert.Equal(t, "Pure", cert.SignatureHash())
				assert.True(t, cert.IsSelfSigned())
			},
		},
		{
			name: "Signature verification codes",
			testFunc: func(t *testing.T) {
				leaf := h.Leaf.Wrap()
				assert.Equal(t, 0, int(leaf.VerifySignature(h.Intermediate.Wrap())))
				assert.NotEqual(t, 0, int(leaf.VerifySignature(h.Root.Wrap())))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, tt.testFunc)
	}
}

func TestUsageAllowed(t *testing.T) {
	h := testpki.NewHierarchy(t)
	leaf := h.Leaf.Wrap()

	client := testpki.LeafTemplate(t, "client")
	client.ExtKeyUsage = []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth}
	clientCert := testpki.Issue(t, client, h.Intermediate).Wrap()

	tests := []struct {
		name  string
		cert  *x509chain.Certificate
		usage x509chain.Usage
		want  bool
	}{
		{name: "Unspecified", cert: leaf, usage: x509chain.UsageUnspecified, want: true},
		{name: "Server auth", cert: leaf, usage: x509chain.UsageTLSServerAuth, want: true},
		{name: "Server cert as client", cert: leaf, usage: x509chain.UsageTLSClientAuth, want: false},
		{name: "Client cert as client", cert: clientCert, usage: x509chain.UsageTLSClientAuth, want: true},
		{name: "Client cert as server", cert: clientCert, usage: x509chain.UsageTLSServerAuth, want: false},
		{name: "Leaf as CA", cert: leaf, usage: x509chain.UsageCertificateAuthority, want: false},
		{name: "Intermediate as CA", cert: h.Intermediate.Wrap(), usage: x509chain.UsageCertificateAuthority, want: true},
		{name: "Leaf as OCSP responder", cert: leaf, usage: x509chain.UsageOCSPResponder, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cert.AllowedUsage(tt.usage))
		})
	}
}

func TestParseUsage(t *testing.T) {
	for _, u := range []x509chain.Usage{
		x509chain.UsageUnspecified, x509chain.UsageTLSServerAuth, x509chain.UsageTLSClientAuth,
		x509chain.UsageCertificateAuthority, x509chain.UsageOCSPResponder, x509chain.UsageEncryption,
	} {
		got, err := x509chain.ParseUsage(u.String())
		require.NoError(t, err)
		assert.Equal(t, u, got)
	}

	got, err := x509chain.ParseUsage("")
	require.NoError(t, err)
	assert.Equal(t, x509chain.UsageUnspecified, got)

	_, err = x509chain.ParseUsage("code-signing")
	assert.ErrorIs(t, err, x509chain.ErrUnknownUsage)
}
