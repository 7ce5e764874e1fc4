// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package x509chain_test

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	x509chain "github.com/H0llyW00dzZ/x509-path-validator/src/internal/x509/chain"
	"github.com/H0llyW00dzZ/x509-path-validator/src/internal/x509/status"
	"github.com/H0llyW00dzZ/x509-path-validator/src/internal/x509/testpki"
)

// nameOnlyParent stands in for an issuer whose certificate does not exist:
// it contributes a subject name and a signing key.
func nameOnlyParent(t *testing.T, cn string, key *ecdsa.PrivateKey) *testpki.Issued {
	t.Helper()
	return &testpki.Issued{
		Cert: &x509.Certificate{Subject: pkix.Name{CommonName: cn, Organization: []string{"Test PKI"}}},
		Key:  key,
	}
}

func newKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return key
}

func stores(certs ...*x509chain.Certificate) []x509chain.Store {
	return []x509chain.Store{x509chain.NewPool(certs...)}
}

// assertPathInvariants checks the properties every built path must hold.
func assertPathInvariants(t *testing.T, path x509chain.Path) {
	t.Helper()

	require.NotEmpty(t, path)
	assert.True(t, path.TrustAnchor().IsSelfSigned(), "anchor must be self-signed")

	seen := make(map[x509chain.Fingerprint]bool)
	for i, c := range path {
		assert.False(t, seen[c.Fingerprint()], "duplicate certificate at %d", i)
		seen[c.Fingerprint()] = true
		if i+1 < len(path) {
			assert.True(t, bytes.Equal(c.RawIssuer, path[i+1].RawSubject), "broken link at %d", i)
		}
	}
}

func TestBuildPath(t *testing.T) {
	h := testpki.NewHierarchy(t)

	tests := []struct {
		name    string
		trusted []x509chain.Store
		ee      *x509chain.Certificate
		extra   []*x509chain.Certificate
		want    status.Code
		wantLen int
	}{
		{
			name:    "Intermediate supplied, root trusted",
			trusted: stores(h.Root.Wrap()),
			ee:      h.Leaf.Wrap(),
			extra:   []*x509chain.Certificate{h.Intermediate.Wrap()},
			want:    status.OK,
			wantLen: 3,
		},
		{
			name:    "Intermediate trusted too",
			trusted: stores(h.Root.Wrap(), h.Intermediate.Wrap()),
			ee:      h.Leaf.Wrap(),
			want:    status.OK,
			wantLen: 3,
		},
		{
			name:    "Self-signed end entity",
			trusted: stores(h.Root.Wrap()),
			ee:      h.Root.Wrap(),
			want:    status.CannotEstablishTrust,
		},
		{
			name:    "Missing intermediate",
			trusted: stores(h.Root.Wrap()),
			ee:      h.Leaf.Wrap(),
			want:    status.CertIssuerNotFound,
		},
		{
			name:    "Root only in supplemental certificates",
			trusted: stores(),
			ee:      h.Leaf.Wrap(),
			extra:   []*x509chain.Certificate{h.Intermediate.Wrap(), h.Root.Wrap()},
			want:    status.CannotEstablishTrust,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, code := x509chain.BuildPath(tt.trusted, tt.ee, tt.extra)
			assert.Equal(t, tt.want, code)
			if tt.want != status.OK {
				assert.Nil(t, path)
				return
			}
			require.Len(t, path, tt.wantLen)
			assertPathInvariants(t, path)
		})
	}
}

func TestBuildPath_Loop(t *testing.T) {
	root := testpki.Issue(t, testpki.CATemplate(t, "Unrelated Root"), nil)
	keyA, keyB := newKey(t), newKey(t)

	// A is issued by B and B by A; neither is self-signed.
	a := testpki.IssueWithKey(t, testpki.CATemplate(t, "A"), nameOnlyParent(t, "B", keyB), keyA)
	b := testpki.IssueWithKey(t, testpki.CATemplate(t, "B"), nameOnlyParent(t, "A", keyA), keyB)
	leaf := testpki.Issue(t, testpki.LeafTemplate(t, "looped.example.com"), a)

	extra := []*x509chain.Certificate{a.Wrap(), b.Wrap()}

	path, code := x509chain.BuildPath(stores(root.Wrap()), leaf.Wrap(), extra)
	assert.Nil(t, path)
	assert.Equal(t, status.CertChainLoop, code)

	paths, code, err := x509chain.BuildAllPaths(nil, stores(root.Wrap()), leaf.Wrap(), extra)
	require.NoError(t, err)
	assert.Empty(t, paths)
	assert.Equal(t, status.CertChainLoop, code)
}

func TestBuildAllPaths_CrossCertified(t *testing.T) {
	rootA := testpki.Issue(t, testpki.CATemplate(t, "Root A"), nil)
	rootB := testpki.Issue(t, testpki.CATemplate(t, "Root B"), nil)

	interKey := newKey(t)
	viaA := testpki.IssueWithKey(t, testpki.CATemplate(t, "Shared Intermediate"), rootA, interKey)
	viaB := testpki.IssueWithKey(t, testpki.CATemplate(t, "Shared Intermediate"), rootB, interKey)
	leaf := testpki.Issue(t, testpki.LeafTemplate(t, "cross.example.com"), viaA)

	trusted := []x509chain.Store{x509chain.NewPool(rootA.Wrap(), rootB.Wrap(), viaB.Wrap())}
	extra := []*x509chain.Certificate{viaA.Wrap()}

	paths, code, err := x509chain.BuildAllPaths(nil, trusted, leaf.Wrap(), extra)
	require.NoError(t, err)
	assert.Equal(t, status.OK, code)
	require.Len(t, paths, 2)

	for _, p := range paths {
		require.Len(t, p, 3)
		assertPathInvariants(t, p)
	}

	// Trusted issuers are explored first.
	assert.Equal(t, viaB.Wrap().Fingerprint(), paths[0][1].Fingerprint())
	assert.Equal(t, "Root B", paths[0].TrustAnchor().Subject.CommonName)
	assert.Equal(t, "Root A", paths[1].TrustAnchor().Subject.CommonName)
}

func TestBuildAllPaths_Errors(t *testing.T) {
	h := testpki.NewHierarchy(t)

	t.Run("Output must be empty", func(t *testing.T) {
		dst := []x509chain.Path{h.Path()}
		_, _, err := x509chain.BuildAllPaths(dst, stores(h.Root.Wrap()), h.Leaf.Wrap(), nil)
		assert.ErrorIs(t, err, x509chain.ErrOutputNotEmpty)
	})

	t.Run("Self-signed end entity", func(t *testing.T) {
		paths, code, err := x509chain.BuildAllPaths(nil, stores(h.Root.Wrap()), h.Root.Wrap(), nil)
		require.NoError(t, err)
		assert.Empty(t, paths)
		assert.Equal(t, status.CannotEstablishTrust, code)
	})

	t.Run("First branch error is reported", func(t *testing.T) {
		paths, code, err := x509chain.BuildAllPaths(nil, stores(h.Root.Wrap()), h.Leaf.Wrap(), nil)
		require.NoError(t, err)
		assert.Empty(t, paths)
		assert.Equal(t, status.CertIssuerNotFound, code)
	})

	t.Run("Untrusted root", func(t *testing.T) {
		extra := []*x509chain.Certificate{h.Intermediate.Wrap(), h.Root.Wrap()}
		paths, code, err := x509chain.BuildAllPaths(nil, stores(), h.Leaf.Wrap(), extra)
		require.NoError(t, err)
		assert.Empty(t, paths)
		assert.Equal(t, status.CannotEstablishTrust, code)
	})
}

func TestPool(t *testing.T) {
	h := testpki.NewHierarchy(t)
	inter := h.Intermediate.Wrap()
	pool := x509chain.NewPool(inter, h.Intermediate.Wrap(), h.Root.Wrap())

	assert.Equal(t, 2, pool.Len(), "duplicates are dropped")
	assert.Same(t, inter, pool.FindCert(inter.RawSubject, nil))
	assert.Same(t, inter, pool.FindCert(inter.RawSubject, inter.SubjectKeyId))
	assert.Nil(t, pool.FindCert(inter.RawSubject, []byte{1, 2, 3}))
	assert.Len(t, pool.FindAllCerts(h.Root.Cert.RawSubject, nil), 1)
	assert.Same(t, inter, pool.FindCertByKeyHash(inter.KeyHash()))
	assert.Nil(t, pool.FindCertByKeyHash(nil))

	var zero x509chain.Pool
	assert.Nil(t, zero.FindCert(inter.RawSubject, nil))
	zero.Add(inter)
	assert.Equal(t, 1, zero.Len())
}
