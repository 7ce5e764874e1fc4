// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package store

import (
	"bytes"
	"crypto/x509"
	"errors"
	"fmt"
	"time"

	"github.com/H0llyW00dzZ/x509-path-validator/src/internal/metrics"
	x509chain "github.com/H0llyW00dzZ/x509-path-validator/src/internal/x509/chain"
	"go.etcd.io/bbolt"
)

var crlBucket = []byte("crls")

// BoltCache is a [CRLCache] persisted in a bbolt database. CRLs are stored
// as DER under a key derived from their issuer name and authority key
// identifier. Certificates added through the embedded pool stay in memory.
//
// Thread Safety: Safe for concurrent use; bbolt serializes writers.
type BoltCache struct {
	*x509chain.Pool

	db      *bbolt.DB
	metrics *metrics.Metrics
	now     func() time.Time
}

// OpenBoltCache opens or creates the database at path. m may be nil.
//
// Parameters:
//   - path: Database file path
//   - timeout: How long to wait for the file lock, zero waits forever
//   - m: Optional metrics reporter
//
// Returns:
//   - *BoltCache: Open cache, to be closed by the caller
//   - error: Error if the database cannot be opened
func OpenBoltCache(path string, timeout time.Duration, m *metrics.Metrics) (*BoltCache, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open CRL cache %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(crlBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &BoltCache{
		Pool:    x509chain.NewPool(),
		db:      db,
		metrics: m,
		now:     time.Now,
	}, nil
}

// Close closes the database. Any later call fails with [ErrClosed] or
// finds nothing.
func (c *BoltCache) Close() error {
	return c.db.Close()
}

// AddCRL implements [CRLCache]. An older CRL never replaces a newer one for
// the same issuer key.
func (c *BoltCache) AddCRL(crl *x509.RevocationList) error {
	if crl == nil {
		return ErrNilCRL
	}

	key := crlKey(crl.RawIssuer, crl.AuthorityKeyId)
	err := c.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(crlBucket)
		if raw := b.Get(key); raw != nil {
			old, err := x509.ParseRevocationList(raw)
			if err == nil && crl.ThisUpdate.Before(old.ThisUpdate) {
				return nil
			}
		}
		return b.Put(key, crl.Raw)
	})
	if errors.Is(err, bbolt.ErrDatabaseNotOpen) {
		return ErrClosed
	}
	if err != nil {
		return fmt.Errorf("failed to store CRL: %w", err)
	}

	c.metrics.RecordCache(metrics.CacheStore, 1)
	return nil
}

// FindCRLFor implements [Store]. CRLs whose nextUpdate has passed are not
// returned, so online checks fetch a replacement.
func (c *BoltCache) FindCRLFor(cert *x509chain.Certificate) *x509.RevocationList {
	var found *x509.RevocationList
	now := c.now()

	_ = c.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(crlBucket)
		if b == nil {
			return nil
		}

		if len(cert.AuthorityKeyId) > 0 {
			if raw := b.Get(crlKey(cert.RawIssuer, cert.AuthorityKeyId)); raw != nil {
				found = parseFresh(raw, now)
				return nil
			}
		}

		prefix := []byte(issuerKey(cert.RawIssuer))
		cursor := b.Cursor()
		for k, v := cursor.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = cursor.Next() {
			crl := parseFresh(v, now)
			if crl != nil && (found == nil || crl.ThisUpdate.After(found.ThisUpdate)) {
				found = crl
			}
		}
		return nil
	})

	if found == nil {
		c.metrics.RecordCache(metrics.CacheMiss, 1)
	} else {
		c.metrics.RecordCache(metrics.CacheHit, 1)
	}
	return found
}

// Prune deletes every CRL whose nextUpdate lies more than the grace period
// in the past and returns how many were removed.
func (c *BoltCache) Prune() (int, error) {
	removed := 0
	limit := c.now().Add(-expiryGrace)

	err := c.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(crlBucket)
		var stale [][]byte
		err := b.ForEach(func(k, v []byte) error {
			crl, err := x509.ParseRevocationList(v)
			if err != nil || (!crl.NextUpdate.IsZero() && crl.NextUpdate.Before(limit)) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(stale)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to prune CRL cache: %w", err)
	}

	c.metrics.RecordCache(metrics.CacheCleanup, removed)
	return removed, nil
}

// CRLs returns the number of stored CRLs.
func (c *BoltCache) CRLs() int {
	n := 0
	_ = c.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(crlBucket).Stats().KeyN
		return nil
	})
	return n
}

func parseFresh(raw []byte, now time.Time) *x509.RevocationList {
	// bbolt values are only valid inside the transaction.
	crl, err := x509.ParseRevocationList(bytes.Clone(raw))
	if err != nil {
		return nil
	}
	if !crl.NextUpdate.IsZero() && !crl.NextUpdate.After(now) {
		return nil
	}
	return crl
}
