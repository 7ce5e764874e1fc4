// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package revocation

import (
	"crypto/x509"
	"encoding/asn1"
	"errors"

	"golang.org/x/crypto/cryptobyte"
	cryptobyte_asn1 "golang.org/x/crypto/cryptobyte/asn1"
)

var (
	oidIssuingDistributionPoint = asn1.ObjectIdentifier{2, 5, 29, 28}

	errMalformedIDP = errors.New("revocation: malformed issuing distribution point")
)

// issuingDistributionPoints returns the URIs of the CRL's issuing
// distribution point. A CRL without the extension, or whose extension names
// no full URI, covers every distribution point and yields nil.
//
//	IssuingDistributionPoint ::= SEQUENCE {
//	     distributionPoint          [0] DistributionPointName OPTIONAL,
//	     ... }
//	DistributionPointName ::= CHOICE {
//	     fullName                   [0] GeneralNames,
//	     nameRelativeToCRLIssuer    [1] RelativeDistinguishedName }
func issuingDistributionPoints(crl *x509.RevocationList) ([]string, error) {
	var uris []string
	for _, ext := range crl.Extensions {
		if !ext.Id.Equal(oidIssuingDistributionPoint) {
			continue
		}

		input := cryptobyte.String(ext.Value)
		var idp cryptobyte.String
		if !input.ReadASN1(&idp, cryptobyte_asn1.SEQUENCE) || !input.Empty() {
			return nil, errMalformedIDP
		}

		var dpName cryptobyte.String
		var hasDP bool
		if !idp.ReadOptionalASN1(&dpName, &hasDP, cryptobyte_asn1.Tag(0).ContextSpecific().Constructed()) {
			return nil, errMalformedIDP
		}
		if !hasDP {
			continue
		}

		var fullName cryptobyte.String
		var hasFullName bool
		if !dpName.ReadOptionalASN1(&fullName, &hasFullName, cryptobyte_asn1.Tag(0).ContextSpecific().Constructed()) {
			return nil, errMalformedIDP
		}

		for !fullName.Empty() {
			var name cryptobyte.String
			var tag cryptobyte_asn1.Tag
			if !fullName.ReadAnyASN1(&name, &tag) {
				return nil, errMalformedIDP
			}
			// uniformResourceIdentifier [6] IA5String
			if tag == cryptobyte_asn1.Tag(6).ContextSpecific() {
				uris = append(uris, string(name))
			}
		}
	}
	return uris, nil
}
