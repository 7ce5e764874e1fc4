// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package x509chain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownUsage is returned by [ParseUsage] for names it does not know.
var ErrUnknownUsage = errors.New("x509chain: unknown usage")

// Usage is the purpose an end-entity certificate is validated for.
type Usage int

const (
	UsageUnspecified Usage = iota
	UsageTLSServerAuth
	UsageTLSClientAuth
	UsageCertificateAuthority
	UsageOCSPResponder
	UsageEncryption
)

var usageNames = map[Usage]string{
	UsageUnspecified:          "unspecified",
	UsageTLSServerAuth:        "tls-server",
	UsageTLSClientAuth:        "tls-client",
	UsageCertificateAuthority: "ca",
	UsageOCSPResponder:        "ocsp-responder",
	UsageEncryption:           "encryption",
}

// String returns the flag form of the usage, e.g. "tls-server".
func (u Usage) String() string {
	if name, ok := usageNames[u]; ok {
		return name
	}
	return fmt.Sprintf("usage(%d)", int(u))
}

// ParseUsage maps the flag form back to a [Usage]. The empty string is
// [UsageUnspecified].
func ParseUsage(s string) (Usage, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return UsageUnspecified, nil
	}
	for u, name := range usageNames {
		if name == s {
			return u, nil
		}
	}
	return UsageUnspecified, fmt.Errorf("%w: %q", ErrUnknownUsage, s)
}
