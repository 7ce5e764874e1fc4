// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package logger provides abstraction and implementation for logging operations.
// It defines the Logger interface and provides two implementations: CLILogger for
// human-readable command-line output and JSONLogger for structured JSON lines,
// one per message, tagged with the emitting component. JSONLogger is safe for
// concurrent use and encodes through pooled buffers, so the revocation
// checkers can log from their fetch goroutines without extra locking.
package logger
