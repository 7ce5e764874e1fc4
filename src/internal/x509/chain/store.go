// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package x509chain

import (
	"bytes"
	"sync"
)

// Store answers issuer lookups for the path builder.
//
// subject is the raw DER encoded distinguished name. keyID is the subject
// key identifier wanted, or empty when any key will do.
type Store interface {
	FindCert(subject, keyID []byte) *Certificate
	FindAllCerts(subject, keyID []byte) []*Certificate
}

// Pool is an in-memory [Store]. The zero value is empty and ready to use.
//
// Thread Safety: Safe for concurrent use.
type Pool struct {
	mu    sync.RWMutex
	certs []*Certificate
	seen  map[Fingerprint]struct{}
}

// NewPool returns a pool holding certs. Duplicates are dropped.
func NewPool(certs ...*Certificate) *Pool {
	p := &Pool{}
	for _, c := range certs {
		p.Add(c)
	}
	return p
}

// Add inserts c unless a certificate with the same fingerprint is present.
func (p *Pool) Add(c *Certificate) {
	if c == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.seen == nil {
		p.seen = make(map[Fingerprint]struct{})
	}
	if _, ok := p.seen[c.Fingerprint()]; ok {
		return
	}
	p.seen[c.Fingerprint()] = struct{}{}
	p.certs = append(p.certs, c)
}

// Len returns the number of certificates in the pool.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.certs)
}

// FindCert returns the first certificate matching subject and keyID.
func (p *Pool) FindCert(subject, keyID []byte) *Certificate {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, c := range p.certs {
		if matches(c, subject, keyID) {
			return c
		}
	}
	return nil
}

// FindAllCerts returns every certificate matching subject and keyID, in
// insertion order.
func (p *Pool) FindAllCerts(subject, keyID []byte) []*Certificate {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var out []*Certificate
	for _, c := range p.certs {
		if matches(c, subject, keyID) {
			out = append(out, c)
		}
	}
	return out
}

// FindCertByKeyHash returns the certificate whose public key hashes to
// keyHash, as carried by OCSP responder identifiers.
func (p *Pool) FindCertByKeyHash(keyHash []byte) *Certificate {
	if len(keyHash) == 0 {
		return nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, c := range p.certs {
		if bytes.Equal(c.KeyHash(), keyHash) {
			return c
		}
	}
	return nil
}

// matches compares subject names exactly; key identifiers only narrow the
// match when both sides carry one.
func matches(c *Certificate, subject, keyID []byte) bool {
	if !bytes.Equal(c.RawSubject, subject) {
		return false
	}
	if len(keyID) > 0 && len(c.SubjectKeyId) > 0 {
		return bytes.Equal(c.SubjectKeyId, keyID)
	}
	return true
}
