// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package validate

import "time"

// DefaultMinimumKeyStrength is the default minimum key strength in bits of
// security.
const DefaultMinimumKeyStrength = 110

// sha1Threshold is the key strength at or below which SHA-1 signatures stay
// acceptable.
const sha1Threshold = 80

// Restrictions are the policy knobs of a validation.
type Restrictions struct {
	// RequireRevocationInformation demands CRL or OCSP proof for the end
	// entity.
	RequireRevocationInformation bool
	// OCSPAllIntermediates queries OCSP for every certificate below the trust
	// anchor and demands proof for them when revocation information is
	// required.
	OCSPAllIntermediates bool
	// MinimumKeyStrength in bits of security every issuer key must reach.
	MinimumKeyStrength int
	// TrustedHashes lists the accepted signature hash names.
	TrustedHashes []string
	// MaxOCSPAge bounds OCSP responses that carry no nextUpdate. Zero
	// disables the bound.
	MaxOCSPAge time.Duration
}

// NewRestrictions returns restrictions with the default trusted hashes for
// minimumKeyStrength: SHA-224, SHA-256, SHA-384, SHA-512 and Ed25519
// ("Pure"), plus SHA-1 when minimumKeyStrength is at most 80.
func NewRestrictions(requireRevocation bool, minimumKeyStrength int, ocspAllIntermediates bool, maxOCSPAge time.Duration) Restrictions {
	return Restrictions{
		RequireRevocationInformation: requireRevocation,
		OCSPAllIntermediates:         ocspAllIntermediates,
		MinimumKeyStrength:           minimumKeyStrength,
		TrustedHashes:                DefaultTrustedHashes(minimumKeyStrength),
		MaxOCSPAge:                   maxOCSPAge,
	}
}

// DefaultRestrictions returns [NewRestrictions] with revocation information
// optional, [DefaultMinimumKeyStrength] and no OCSP age bound.
func DefaultRestrictions() Restrictions {
	return NewRestrictions(false, DefaultMinimumKeyStrength, false, 0)
}

// DefaultTrustedHashes returns the hashes accepted for minimumKeyStrength.
func DefaultTrustedHashes(minimumKeyStrength int) []string {
	hashes := []string{"SHA-224", "SHA-256", "SHA-384", "SHA-512", "Pure"}
	if minimumKeyStrength <= sha1Threshold {
		hashes = append(hashes, "SHA-1")
	}
	return hashes
}
