// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package revocation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrFetch is wrapped by every failed online revocation fetch.
var ErrFetch = errors.New("revocation: fetch failed")

// Metric labels.
const (
	kindCRL  = "crl"
	kindOCSP = "ocsp"

	outcomeOK        = "ok"
	outcomeError     = "error"
	outcomeHTTPError = "http_error"
	outcomeSkipped   = "skipped"
)

func isHTTP(url string) bool {
	return strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://")
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// recoverTask turns a panic inside a fetch task into an error so it stays
// local to the task's path position.
func recoverTask(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%w: panic: %v", ErrFetch, r)
	}
}
