// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package store

import (
	"bytes"
	"crypto/sha256"
	"crypto/x509"
	"errors"
	"sync"

	x509chain "github.com/H0llyW00dzZ/x509-path-validator/src/internal/x509/chain"
)

var (
	// ErrNilCRL is returned when adding a nil revocation list.
	ErrNilCRL = errors.New("store: CRL is nil")
	// ErrClosed is returned by operations on a closed persistent cache.
	ErrClosed = errors.New("store: cache is closed")
)

// Store is the trust store consulted during validation. On top of issuer
// lookups it resolves the CRL covering a certificate.
type Store interface {
	x509chain.Store

	// FindCRLFor returns the newest known CRL issued by the issuer of cert,
	// or nil.
	FindCRLFor(cert *x509chain.Certificate) *x509.RevocationList
}

// KeyHashFinder is implemented by stores able to locate a certificate by
// the SHA-1 hash of its public key, the form used in OCSP responder IDs.
type KeyHashFinder interface {
	FindCertByKeyHash(keyHash []byte) *x509chain.Certificate
}

// CRLCache is a writable [Store] receiving CRLs fetched during online
// checks.
//
// Thread Safety: Implementations must be safe for concurrent use.
type CRLCache interface {
	Store
	AddCRL(crl *x509.RevocationList) error
}

// MemoryStore keeps certificates and CRLs in memory. It implements
// [CRLCache] and [KeyHashFinder].
//
// Thread Safety: Safe for concurrent use.
type MemoryStore struct {
	*x509chain.Pool

	mu   sync.RWMutex
	crls map[string][]*x509.RevocationList
}

// NewMemoryStore returns a store holding certs.
func NewMemoryStore(certs ...*x509chain.Certificate) *MemoryStore {
	return &MemoryStore{
		Pool: x509chain.NewPool(certs...),
		crls: make(map[string][]*x509.RevocationList),
	}
}

// NewMemoryStoreX509 wraps certs and returns a store holding them.
func NewMemoryStoreX509(certs ...*x509.Certificate) *MemoryStore {
	return NewMemoryStore(x509chain.WrapAll(certs)...)
}

// AddCRL implements [CRLCache]. A CRL replaces a previous one from the same
// issuer key unless it is older.
func (s *MemoryStore) AddCRL(crl *x509.RevocationList) error {
	if crl == nil {
		return ErrNilCRL
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	issuer := issuerKey(crl.RawIssuer)
	list := s.crls[issuer]
	for i, old := range list {
		if bytes.Equal(old.AuthorityKeyId, crl.AuthorityKeyId) {
			if !crl.ThisUpdate.Before(old.ThisUpdate) {
				list[i] = crl
			}
			return nil
		}
	}
	s.crls[issuer] = append(list, crl)
	return nil
}

// FindCRLFor implements [Store].
func (s *MemoryStore) FindCRLFor(cert *x509chain.Certificate) *x509.RevocationList {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newest(s.crls[issuerKey(cert.RawIssuer)], cert.AuthorityKeyId)
}

// CRLs returns the number of stored CRLs.
func (s *MemoryStore) CRLs() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, list := range s.crls {
		n += len(list)
	}
	return n
}

// newest picks the most recent CRL whose authority key matches akid. Key
// identifiers only narrow the match when both sides carry one.
func newest(list []*x509.RevocationList, akid []byte) *x509.RevocationList {
	var best *x509.RevocationList
	for _, crl := range list {
		if len(akid) > 0 && len(crl.AuthorityKeyId) > 0 && !bytes.Equal(akid, crl.AuthorityKeyId) {
			continue
		}
		if best == nil || crl.ThisUpdate.After(best.ThisUpdate) {
			best = crl
		}
	}
	return best
}

// issuerKey digests a raw DER name into a fixed width map and bucket key.
func issuerKey(rawIssuer []byte) string {
	sum := sha256.Sum256(rawIssuer)
	return string(sum[:])
}

// crlKey is issuerKey followed by the authority key identifier, so a prefix
// scan over issuerKey finds every key of one issuer.
func crlKey(rawIssuer, akid []byte) []byte {
	key := []byte(issuerKey(rawIssuer))
	return append(key, akid...)
}
