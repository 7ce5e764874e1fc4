// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package validate ties path building, chain verification and revocation
// checking together into a single verdict.
//
// A validation builds every candidate path from the end entity to a trusted
// root, then evaluates them in order: the chain verifier, the CRL checker
// (offline, then online for the positions still missing a CRL) and the OCSP
// checker run over the path and their findings are merged. The first
// successful path wins; remaining candidates are never evaluated. When all
// fail, the result of the first evaluated path is returned.
//
// Network access is opt-in: it is enabled by a non-zero OCSP timeout and
// covers OCSP queries, CRL downloads and, with [WithAIAFetching], issuer
// downloads. Without it an [status.OCSPNoHTTP] marker is recorded for the
// end entity unless offline OCSP responses were supplied.
//
// Example:
//
//	roots := store.NewMemoryStoreX509(rootCert)
//	res, err := validate.Validate(ctx, []*x509.Certificate{leaf, inter},
//		validate.DefaultRestrictions(), []store.Store{roots},
//		"example.com", x509chain.UsageTLSServerAuth, time.Time{}, 5*time.Second, nil)
//	if err != nil {
//		return err
//	}
//	if !res.Successful() {
//		fmt.Println(res.ResultString())
//	}
//
// Configuration files (JSON or YAML) are loaded by [LoadConfig].
package validate
