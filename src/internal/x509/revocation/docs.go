// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package revocation checks the revocation status of every certificate of
// a certification path using [CRL] and [OCSP].
//
// Both checkers work offline on evidence supplied by the caller ([CheckCRL],
// [CheckOCSP]) or online, fetching what is missing over a
// [x509chain.Transport] ([CRLChecker], [OCSPChecker]). Online checks fan
// out one task per path position and join them; a failed task only ever
// affects its own position.
//
// Findings are returned as a [status.PathStatus] aligned with the path,
// ready to be folded into the chain status with [status.MergeRevocation].
//
// Example:
//
//	checker := &revocation.OCSPChecker{
//		Transport: x509chain.NewHTTPConfig(version.Version),
//		Timeout:   5 * time.Second,
//	}
//	ocspStatus, _ := checker.CheckOnline(ctx, path, stores, time.Now(), false)
//
// [CRL]: https://grokipedia.com/page/Certificate_revocation_list
// [OCSP]: https://grokipedia.com/page/Online_Certificate_Status_Protocol
package revocation
