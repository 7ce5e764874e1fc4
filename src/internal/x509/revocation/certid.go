// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package revocation

import (
	"bytes"
	"crypto"
	"encoding/asn1"
	"errors"
	"fmt"
	"math/big"
	"time"

	x509chain "github.com/H0llyW00dzZ/x509-path-validator/src/internal/x509/chain"
	"golang.org/x/crypto/cryptobyte"
	cryptobyte_asn1 "golang.org/x/crypto/cryptobyte/asn1"
	"golang.org/x/crypto/ocsp"
)

var (
	oidOCSPBasic = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 48, 1, 1}

	certIDHashes = []struct {
		oid  asn1.ObjectIdentifier
		hash crypto.Hash
	}{
		{asn1.ObjectIdentifier{1, 3, 14, 3, 2, 26}, crypto.SHA1},
		{asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 1}, crypto.SHA256},
		{asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 2}, crypto.SHA384},
		{asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 3}, crypto.SHA512},
	}

	errMalformedOCSP = errors.New("revocation: malformed OCSP response")
)

// singleResponse is one entry of a basic OCSP response.
type singleResponse struct {
	hash       crypto.Hash // zero for an unsupported CertID hash
	nameHash   []byte
	keyHash    []byte
	serial     *big.Int
	status     int // ocsp.Good, ocsp.Revoked or ocsp.Unknown
	thisUpdate time.Time
	nextUpdate time.Time
	critical   bool // carries a critical single extension
}

// identifies reports whether the CertID of e names subject as issued by
// issuer: the serial numbers and both issuer hashes must match.
func (e *singleResponse) identifies(issuer, subject *x509chain.Certificate) bool {
	if e.serial.Cmp(subject.SerialNumber) != 0 {
		return false
	}
	nameHash, keyHash, ok := issuerHashes(e.hash, issuer)
	return ok && bytes.Equal(e.nameHash, nameHash) && bytes.Equal(e.keyHash, keyHash)
}

// issuerHashes computes the CertID issuer name and key hashes of issuer.
// The key hash covers the subjectPublicKey bits only, without the algorithm
// identifier.
func issuerHashes(h crypto.Hash, issuer *x509chain.Certificate) (nameHash, keyHash []byte, ok bool) {
	if h == 0 || !h.Available() {
		return nil, nil, false
	}

	spki := cryptobyte.String(issuer.RawSubjectPublicKeyInfo)
	var inner cryptobyte.String
	var key asn1.BitString
	if !spki.ReadASN1(&inner, cryptobyte_asn1.SEQUENCE) ||
		!inner.SkipASN1(cryptobyte_asn1.SEQUENCE) ||
		!inner.ReadASN1BitString(&key) {
		return nil, nil, false
	}

	hn := h.New()
	hn.Write(issuer.RawSubject)
	hk := h.New()
	hk.Write(key.RightAlign())
	return hn.Sum(nil), hk.Sum(nil), true
}

// parseSingleResponses returns every SingleResponse of a DER encoded OCSP
// response.
//
//	OCSPResponse ::= SEQUENCE {
//	     responseStatus         ENUMERATED,
//	     responseBytes          [0] EXPLICIT ResponseBytes OPTIONAL }
//	ResponseBytes ::= SEQUENCE {
//	     responseType           OBJECT IDENTIFIER,
//	     response               OCTET STRING }
//	BasicOCSPResponse ::= SEQUENCE {
//	     tbsResponseData        ResponseData, ... }
//	ResponseData ::= SEQUENCE {
//	     version                [0] EXPLICIT Version DEFAULT v1,
//	     responderID            ResponderID,
//	     producedAt             GeneralizedTime,
//	     responses              SEQUENCE OF SingleResponse, ... }
func parseSingleResponses(der []byte) ([]singleResponse, error) {
	input := cryptobyte.String(der)
	var resp, wrapper, respBytes, basicDER, basic, tbs, responses cryptobyte.String
	var responseStatus int
	var responseType asn1.ObjectIdentifier
	if !input.ReadASN1(&resp, cryptobyte_asn1.SEQUENCE) || !input.Empty() ||
		!resp.ReadASN1Enum(&responseStatus) {
		return nil, errMalformedOCSP
	}
	if responseStatus != int(ocsp.Success) {
		return nil, fmt.Errorf("%w: responder status %d", errMalformedOCSP, responseStatus)
	}
	if !resp.ReadASN1(&wrapper, cryptobyte_asn1.Tag(0).ContextSpecific().Constructed()) ||
		!wrapper.ReadASN1(&respBytes, cryptobyte_asn1.SEQUENCE) ||
		!respBytes.ReadASN1ObjectIdentifier(&responseType) ||
		!respBytes.ReadASN1(&basicDER, cryptobyte_asn1.OCTET_STRING) {
		return nil, errMalformedOCSP
	}
	if !responseType.Equal(oidOCSPBasic) {
		return nil, fmt.Errorf("%w: response type %s", errMalformedOCSP, responseType)
	}

	var responderID cryptobyte.String
	var responderTag cryptobyte_asn1.Tag
	if !basicDER.ReadASN1(&basic, cryptobyte_asn1.SEQUENCE) ||
		!basic.ReadASN1(&tbs, cryptobyte_asn1.SEQUENCE) ||
		!tbs.SkipOptionalASN1(cryptobyte_asn1.Tag(0).ContextSpecific().Constructed()) ||
		!tbs.ReadAnyASN1(&responderID, &responderTag) ||
		!tbs.SkipASN1(cryptobyte_asn1.GeneralizedTime) ||
		!tbs.ReadASN1(&responses, cryptobyte_asn1.SEQUENCE) {
		return nil, errMalformedOCSP
	}

	var entries []singleResponse
	for !responses.Empty() {
		var single cryptobyte.String
		if !responses.ReadASN1(&single, cryptobyte_asn1.SEQUENCE) {
			return nil, errMalformedOCSP
		}
		e, err := parseSingleResponse(single)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no single responses", errMalformedOCSP)
	}
	return entries, nil
}

// parseSingleResponse decodes
//
//	SingleResponse ::= SEQUENCE {
//	     certID                 CertID,
//	     certStatus             CertStatus,
//	     thisUpdate             GeneralizedTime,
//	     nextUpdate         [0] EXPLICIT GeneralizedTime OPTIONAL,
//	     singleExtensions   [1] EXPLICIT Extensions OPTIONAL }
//	CertID ::= SEQUENCE {
//	     hashAlgorithm          AlgorithmIdentifier,
//	     issuerNameHash         OCTET STRING,
//	     issuerKeyHash          OCTET STRING,
//	     serialNumber           CertificateSerialNumber }
func parseSingleResponse(s cryptobyte.String) (singleResponse, error) {
	e := singleResponse{serial: new(big.Int)}

	var certID, algorithm cryptobyte.String
	var hashOID asn1.ObjectIdentifier
	if !s.ReadASN1(&certID, cryptobyte_asn1.SEQUENCE) ||
		!certID.ReadASN1(&algorithm, cryptobyte_asn1.SEQUENCE) ||
		!algorithm.ReadASN1ObjectIdentifier(&hashOID) ||
		!certID.ReadASN1Bytes(&e.nameHash, cryptobyte_asn1.OCTET_STRING) ||
		!certID.ReadASN1Bytes(&e.keyHash, cryptobyte_asn1.OCTET_STRING) ||
		!certID.ReadASN1Integer(e.serial) {
		return e, errMalformedOCSP
	}
	for _, known := range certIDHashes {
		if known.oid.Equal(hashOID) {
			e.hash = known.hash
		}
	}

	var certStatus cryptobyte.String
	var tag cryptobyte_asn1.Tag
	if !s.ReadAnyASN1(&certStatus, &tag) {
		return e, errMalformedOCSP
	}
	switch tag {
	case cryptobyte_asn1.Tag(0).ContextSpecific():
		e.status = ocsp.Good
	case cryptobyte_asn1.Tag(1).ContextSpecific().Constructed():
		e.status = ocsp.Revoked
	case cryptobyte_asn1.Tag(2).ContextSpecific():
		e.status = ocsp.Unknown
	default:
		return e, fmt.Errorf("%w: cert status tag %d", errMalformedOCSP, tag)
	}

	var thisUpdate, nextUpdate, extensions cryptobyte.String
	var hasNext, hasExtensions bool
	if !s.ReadASN1Element(&thisUpdate, cryptobyte_asn1.GeneralizedTime) ||
		!s.ReadOptionalASN1(&nextUpdate, &hasNext, cryptobyte_asn1.Tag(0).ContextSpecific().Constructed()) ||
		!s.ReadOptionalASN1(&extensions, &hasExtensions, cryptobyte_asn1.Tag(1).ContextSpecific().Constructed()) {
		return e, errMalformedOCSP
	}

	var err error
	if e.thisUpdate, err = generalizedTime(thisUpdate); err != nil {
		return e, err
	}
	if hasNext {
		var element cryptobyte.String
		if !nextUpdate.ReadASN1Element(&element, cryptobyte_asn1.GeneralizedTime) {
			return e, errMalformedOCSP
		}
		if e.nextUpdate, err = generalizedTime(element); err != nil {
			return e, err
		}
	}
	if hasExtensions {
		if e.critical, err = hasCriticalExtension(extensions); err != nil {
			return e, err
		}
	}
	return e, nil
}

// generalizedTime decodes a complete GeneralizedTime element. encoding/asn1
// accepts the fractional seconds some responders emit.
func generalizedTime(element cryptobyte.String) (time.Time, error) {
	var t time.Time
	rest, err := asn1.UnmarshalWithParams(element, &t, "generalized")
	if err != nil || len(rest) > 0 {
		return time.Time{}, fmt.Errorf("%w: bad time", errMalformedOCSP)
	}
	return t, nil
}

func hasCriticalExtension(extensions cryptobyte.String) (bool, error) {
	var list cryptobyte.String
	if !extensions.ReadASN1(&list, cryptobyte_asn1.SEQUENCE) {
		return false, errMalformedOCSP
	}
	for !list.Empty() {
		var ext cryptobyte.String
		var critical bool
		if !list.ReadASN1(&ext, cryptobyte_asn1.SEQUENCE) ||
			!ext.SkipASN1(cryptobyte_asn1.OBJECT_IDENTIFIER) ||
			!ext.ReadOptionalASN1Boolean(&critical, cryptobyte_asn1.BOOLEAN, false) {
			return false, errMalformedOCSP
		}
		if critical {
			return true, nil
		}
	}
	return false, nil
}
