// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package cli provides the command-line interface for the X.509 path validator.
// It implements a Cobra-based command that loads the end entity, intermediates,
// roots, CRLs and OCSP responses from files or a live TLS endpoint, merges flags
// over the configuration file and renders the result as a table, ASCII tree,
// JSON or YAML. Fetched CRLs are cached in memory or in a bbolt database.
package cli
