// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
// Use of this source code is governed by a BSD 3-Clause
// license that can be found in the LICENSE file.

// x509-path-validator is a command-line tool that validates an X.509
// certificate against a set of trusted roots, checking signatures, validity,
// names, key usage and revocation through CRLs and OCSP.
//
// # Installation
//
// Install with Go 1.25.5 or later:
//
//	go install github.com/H0llyW00dzZ/x509-path-validator/cmd/x509-path-validator@latest
//
// # Usage
//
//	x509-path-validator CERT_FILE -r ROOTS [FLAGS]
//
// # Flags
//
//	-f, --file                   End-entity certificate file (PEM, DER or PKCS#7)
//	-r, --roots                  Trusted root certificate files [required]
//	-i, --intermediates          Untrusted intermediate certificate files
//	    --crl                    CRL files (PEM or DER)
//	    --ocsp-response          DER OCSP responses, one per path position
//	-n, --hostname               Hostname the end entity must match
//	-u, --usage                  tls-server, tls-client, ca, ocsp-responder, encryption
//	    --at                     Validation time in RFC 3339 (default: now)
//	    --ocsp-timeout           Per-fetch timeout; a non-zero value enables network access
//	    --require-revocation     Require revocation information for the end entity
//	    --ocsp-all-intermediates Check and require revocation for intermediates too
//	    --min-key-strength       Minimum key strength in bits of security (default 110)
//	-c, --config                 JSON or YAML configuration file
//	-o, --format                 table, tree, json or yaml (default table)
//	    --cache-db               Persist fetched CRLs in a bbolt database
//	    --remote                 Fetch the chain from a TLS endpoint HOST[:PORT]
//	    --fetch-aia              Download up to N missing issuers via AIA
//	-v, --verbose                Log validation progress to stderr
//	    --log-json               Log as JSON lines
//
// # Exit Status
//
// 0 when the certificate validates, 2 when validation fails and 1 for any
// other error.
//
// # Examples
//
// Validate a server certificate offline against a CRL:
//
//	x509-path-validator leaf.pem -i intermediate.pem -r root.pem \
//	  --crl intermediate.crl -n example.com -u tls-server
//
// Validate a live endpoint with online revocation checks:
//
//	x509-path-validator --remote example.com:443 -r /etc/ssl/certs/ca-certificates.crt \
//	  --ocsp-timeout 5s --require-revocation --format json
package main
