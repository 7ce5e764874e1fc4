// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package posix provides helpers for behavior that has to look the same on
// [POSIX] systems and Windows.
//
// The command-line tool uses [ExecutableName] for its usage line and examples:
//
//	cmd := &cobra.Command{
//	    Use: posix.ExecutableName() + " [CERT_FILE]",
//	}
//
// [POSIX]: https://grokipedia.com/page/POSIX
package posix
