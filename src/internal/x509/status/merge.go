// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package status

import "errors"

// ErrEmptyStatus is returned when merging into a chain status that holds no
// positions.
var ErrEmptyStatus = errors.New("status: chain status is empty")

// MergeRevocation folds the CRL and OCSP status vectors into chainStatus.
//
// Every index except the trust anchor receives the CRL and OCSP codes found
// at the same index. A position counts as covered when the CRL side holds
// [ValidCRLChecked] or the OCSP side holds [OCSPResponseGood],
// [OCSPNoRevocationURL] or [OCSPServerNotAvailable]. Uncovered positions get
// [NoRevocationData] when policy demands proof there: requireEndEntity for
// index 0, requireIntermediates for the rest.
//
// The crl and ocsp vectors may be shorter than chainStatus or nil.
func MergeRevocation(chainStatus, crl, ocsp PathStatus, requireEndEntity, requireIntermediates bool) error {
	if len(chainStatus) == 0 {
		return ErrEmptyStatus
	}

	for i := 0; i < len(chainStatus)-1; i++ {
		if chainStatus[i] == nil {
			chainStatus[i] = make(Set)
		}

		var hadCRL, hadOCSP bool

		if i < len(crl) {
			for c := range crl[i] {
				if c == ValidCRLChecked {
					hadCRL = true
				}
				chainStatus[i].Add(c)
			}
		}

		if i < len(ocsp) {
			for c := range ocsp[i] {
				switch c {
				case OCSPResponseGood, OCSPNoRevocationURL, OCSPServerNotAvailable:
					hadOCSP = true
				}
				chainStatus[i].Add(c)
			}
		}

		if !hadCRL && !hadOCSP {
			if (requireEndEntity && i == 0) || (requireIntermediates && i > 0) {
				chainStatus[i].Add(NoRevocationData)
			}
		}
	}

	return nil
}
