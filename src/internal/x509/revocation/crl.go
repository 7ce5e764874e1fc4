// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package revocation

import (
	"context"
	"crypto/x509"
	"encoding/asn1"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/H0llyW00dzZ/x509-path-validator/src/internal/metrics"
	x509certs "github.com/H0llyW00dzZ/x509-path-validator/src/internal/x509/certs"
	x509chain "github.com/H0llyW00dzZ/x509-path-validator/src/internal/x509/chain"
	"github.com/H0llyW00dzZ/x509-path-validator/src/internal/x509/status"
	"github.com/H0llyW00dzZ/x509-path-validator/src/internal/x509/store"
	"github.com/H0llyW00dzZ/x509-path-validator/src/logger"
	"golang.org/x/sync/errgroup"
)

// CRL extensions whose semantics are understood. Any other critical
// extension makes the CRL unusable and the subject is treated as revoked.
var knownCRLExtensions = []asn1.ObjectIdentifier{
	{2, 5, 29, 20},             // cRLNumber
	{2, 5, 29, 35},             // authorityKeyIdentifier
	{2, 5, 29, 28},             // issuingDistributionPoint
	{2, 5, 29, 18},             // issuerAltName
	{2, 5, 29, 46},             // freshestCRL
	{2, 5, 29, 27},             // deltaCRLIndicator
	{1, 3, 6, 1, 5, 5, 7, 1, 1}, // authorityInfoAccess
}

// ResolveCRLs looks up, for every position of path except the trust anchor,
// the CRL the stores hold for it. Positions without one are nil.
func ResolveCRLs(path x509chain.Path, stores []store.Store) []*x509.RevocationList {
	if len(path) < 2 {
		return nil
	}
	crls := make([]*x509.RevocationList, len(path)-1)
	for i := range crls {
		for _, s := range stores {
			if crl := s.FindCRLFor(path[i]); crl != nil {
				crls[i] = crl
				break
			}
		}
	}
	return crls
}

// CheckCRL checks path[i] against crls[i], which must be issued by
// path[i+1]. Nil entries and positions beyond len(crls) are skipped.
//
// Parameters:
//   - path: Leaf-to-root certification path
//   - crls: One CRL per position, index aligned with path
//   - now: Reference time for the CRL validity window
//
// Returns:
//   - status.PathStatus: CRL findings per index, same length as path
func CheckCRL(path x509chain.Path, crls []*x509.RevocationList, now time.Time) status.PathStatus {
	ps := status.NewPathStatus(len(path))
	for i := 0; i+1 < len(path) && i < len(crls); i++ {
		if crls[i] == nil {
			continue
		}
		checkCRL(path[i], path[i+1], crls[i], now, ps[i])
	}
	return ps
}

// CheckCRLStores is [CheckCRL] with CRLs resolved from stores.
func CheckCRLStores(path x509chain.Path, stores []store.Store, now time.Time) status.PathStatus {
	return CheckCRL(path, ResolveCRLs(path, stores), now)
}

func checkCRL(subject, ca *x509chain.Certificate, crl *x509.RevocationList, now time.Time, set status.Set) {
	if !ca.AllowedKeyUsage(x509.KeyUsageCRLSign) {
		set.Add(status.CACertNotForCRLIssuer)
	}

	if now.Before(crl.ThisUpdate) {
		set.Add(status.CRLNotYetValid)
	}
	if !crl.NextUpdate.IsZero() && now.After(crl.NextUpdate) {
		set.Add(status.CRLHasExpired)
	}

	// Certificate.CheckSignature verifies with the key only; the CA
	// constraints are reported separately above.
	if err := ca.CheckSignature(crl.SignatureAlgorithm, crl.RawTBSRevocationList, crl.Signature); err != nil {
		set.Add(status.CRLBadSignature)
	} else {
		set.Add(status.ValidCRLChecked)
	}

	for _, entry := range crl.RevokedCertificateEntries {
		if entry.SerialNumber != nil && entry.SerialNumber.Cmp(subject.SerialNumber) == 0 {
			set.Add(status.CertIsRevoked)
			break
		}
	}

	if dp := subject.CRLDistributionPoint(); dp != "" {
		uris, err := issuingDistributionPoints(crl)
		if err != nil || (len(uris) > 0 && !slices.Contains(uris, dp)) {
			set.Add(status.NoMatchingCRLDP)
		}
	}

	for _, ext := range crl.Extensions {
		if ext.Critical && !slices.ContainsFunc(knownCRLExtensions, ext.Id.Equal) {
			set.Add(status.CertIsRevoked)
			break
		}
	}
}

// CRLChecker fetches the CRLs missing for a path from the distribution
// points named by its certificates.
type CRLChecker struct {
	Transport x509chain.Transport
	// Cache receives every fetched CRL that passed its signature check.
	Cache store.CRLCache
	// Timeout bounds each fetch. Zero leaves only the context deadline.
	Timeout time.Duration
	Logger  logger.Logger
	Metrics *metrics.Metrics
}

// CheckOnline fetches the CRL of every position whose entry in crls is nil
// and whose certificate names an HTTP distribution point, then runs
// [CheckCRL] over the completed list.
//
// Fetches run concurrently, one per position. A failed fetch leaves its
// slot empty and never affects the other positions.
//
// Returns:
//   - status.PathStatus: CRL findings per index
//   - []*x509.RevocationList: crls completed with the fetched CRLs
func (c *CRLChecker) CheckOnline(ctx context.Context, path x509chain.Path, crls []*x509.RevocationList, now time.Time) (status.PathStatus, []*x509.RevocationList) {
	if len(path) < 2 {
		return status.NewPathStatus(len(path)), nil
	}

	all := make([]*x509.RevocationList, len(path)-1)
	copy(all, crls)
	fetched := make([]bool, len(all))

	var g errgroup.Group
	for i := range all {
		if all[i] != nil {
			continue
		}
		url := path[i].CRLDistributionPoint()
		if !isHTTP(url) {
			continue
		}
		g.Go(func() error {
			crl, err := c.fetch(ctx, url)
			if err != nil {
				c.log().Printf("CRL fetch for %q failed: %v", path[i].Subject.CommonName, err)
				return nil
			}
			all[i], fetched[i] = crl, true
			return nil
		})
	}
	_ = g.Wait()

	ps := CheckCRL(path, all, now)

	if c.Cache != nil {
		for i, ok := range fetched {
			if !ok || !ps.Has(i, status.ValidCRLChecked) {
				continue
			}
			if err := c.Cache.AddCRL(all[i]); err != nil {
				c.log().Printf("caching CRL from %s failed: %v", path[i].CRLDistributionPoint(), err)
			}
		}
	}
	return ps, all
}

func (c *CRLChecker) fetch(ctx context.Context, url string) (crl *x509.RevocationList, err error) {
	defer recoverTask(&err)

	ctx, cancel := withTimeout(ctx, c.Timeout)
	defer cancel()

	resp, err := c.Transport.Get(ctx, url)
	if err != nil {
		c.Metrics.RecordFetch(kindCRL, outcomeError)
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		c.Metrics.RecordFetch(kindCRL, outcomeHTTPError)
		return nil, fmt.Errorf("%w: HTTP %d from %s", ErrFetch, resp.StatusCode, url)
	}

	crl, err = x509certs.New().DecodeCRL(resp.Body)
	if err != nil {
		c.Metrics.RecordFetch(kindCRL, outcomeError)
		return nil, err
	}
	c.Metrics.RecordFetch(kindCRL, outcomeOK)
	return crl, nil
}

func (c *CRLChecker) log() logger.Logger {
	if c.Logger == nil {
		return logger.Nop()
	}
	return c.Logger
}
