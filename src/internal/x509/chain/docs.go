// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package x509chain implements [X.509] certification path building and
// verification.
// It provides capabilities to:
//   - Build one or every path from an end entity to a trusted self-signed root.
//   - Verify the structural and cryptographic constraints of a path.
//   - Fetch missing issuers via AIA URLs and remote chains from TLS endpoints.
//   - Render a verified path as a tree, a table or JSON.
//
// Certificates are wrapped once by [NewCertificate] and shared by pointer
// between candidate paths; a wrapped certificate is never modified.
//
// [X.509]: https://grokipedia.com/page/X.509
package x509chain
