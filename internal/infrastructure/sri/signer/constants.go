// Constantes para firma XAdES-BES de comprobantes electrónicos SRI.

package signer

import (
	"crypto"
	"fmt"
	"strings"

	// Registro de SHA-1 y SHA-256 para crypto.Hash.New.
	_ "crypto/sha1"
	_ "crypto/sha256"
)

// Namespaces y algoritmos XMLDSig / XAdES.
const (
	NamespaceDS        = "http://www.w3.org/2000/09/xmldsig#"
	NamespaceDS11      = "http://www.w3.org/2009/xmldsig11#"
	NamespaceXAdES     = "http://uri.etsi.org/01903/v1.3.2#"
	AlgC14N            = "http://www.w3.org/TR/2001/REC-xml-c14n-20010315"
	TransformEnveloped = "http://www.w3.org/2000/09/xmldsig#enveloped-signature"

	AlgSHA1   = "http://www.w3.org/2000/09/xmldsig#sha1"
	AlgSHA256 = "http://www.w3.org/2001/04/xmlenc#sha256"

	AlgRSASHA1     = "http://www.w3.org/2000/09/xmldsig#rsa-sha1"
	AlgRSASHA256   = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha256"
	AlgECDSASHA1   = "http://www.w3.org/2001/04/xmldsig-more#ecdsa-sha1"
	AlgECDSASHA256 = "http://www.w3.org/2001/04/xmldsig-more#ecdsa-sha256"

	TypeSignedProperties = "http://uri.etsi.org/01903#SignedProperties"
)

// DefaultRootID Id del elemento raíz cuando el comprobante no trae atributo id.
const DefaultRootID = "comprobante"

// Descripción del objeto firmado (DataObjectFormat).
const (
	dataObjectDescription = "Comprobante electrónico"
	dataObjectMimeType    = "text/xml"
	dataObjectEncoding    = "UTF-8"
)

// Algorithm par digest/firma usado en toda la firma.
type Algorithm string

const (
	RSASHA1     Algorithm = "RSA-SHA1"
	RSASHA256   Algorithm = "RSA-SHA256"
	ECDSASHA1   Algorithm = "ECDSA-SHA1"
	ECDSASHA256 Algorithm = "ECDSA-SHA256"
)

// DefaultAlgorithm el SRI valida RSA-SHA1.
const DefaultAlgorithm = RSASHA1

// ParseAlgorithm acepta "RSA-SHA1", "rsa-sha256", "ECDSA-SHA256", etc. Vacío = DefaultAlgorithm.
func ParseAlgorithm(s string) (Algorithm, error) {
	if s == "" {
		return DefaultAlgorithm, nil
	}
	switch a := Algorithm(strings.ToUpper(strings.TrimSpace(s))); a {
	case RSASHA1, RSASHA256, ECDSASHA1, ECDSASHA256:
		return a, nil
	}
	return "", fmt.Errorf("signer: algoritmo de firma no soportado %q", s)
}

// Hash función de digest del algoritmo.
func (a Algorithm) Hash() crypto.Hash {
	if a == RSASHA256 || a == ECDSASHA256 {
		return crypto.SHA256
	}
	return crypto.SHA1
}

// DigestURI URI del DigestMethod.
func (a Algorithm) DigestURI() string {
	if a.Hash() == crypto.SHA256 {
		return AlgSHA256
	}
	return AlgSHA1
}

// SignatureURI URI del SignatureMethod.
func (a Algorithm) SignatureURI() string {
	switch a {
	case RSASHA256:
		return AlgRSASHA256
	case ECDSASHA1:
		return AlgECDSASHA1
	case ECDSASHA256:
		return AlgECDSASHA256
	default:
		return AlgRSASHA1
	}
}

// ForKey ajusta la familia (RSA/ECDSA) al tipo de llave conservando el hash elegido.
func (a Algorithm) ForKey(kt KeyType) Algorithm {
	sha256 := a.Hash() == crypto.SHA256
	switch {
	case kt == KeyEC && sha256:
		return ECDSASHA256
	case kt == KeyEC:
		return ECDSASHA1
	case sha256:
		return RSASHA256
	default:
		return RSASHA1
	}
}

// hashForDigestURI resuelve el DigestMethod de una Reference (verificación).
func hashForDigestURI(uri string) (crypto.Hash, bool) {
	switch uri {
	case AlgSHA1:
		return crypto.SHA1, true
	case AlgSHA256:
		return crypto.SHA256, true
	}
	return 0, false
}

// algorithmForSignatureURI resuelve el SignatureMethod (verificación).
func algorithmForSignatureURI(uri string) (Algorithm, bool) {
	switch uri {
	case AlgRSASHA1:
		return RSASHA1, true
	case AlgRSASHA256:
		return RSASHA256, true
	case AlgECDSASHA1:
		return ECDSASHA1, true
	case AlgECDSASHA256:
		return ECDSASHA256, true
	}
	return "", false
}

// curveOIDs OID de las curvas con nombre (dsig11:NamedCurve URI="urn:oid:...").
var curveOIDs = map[string]string{
	"P-224": "1.3.132.0.33",
	"P-256": "1.2.840.10045.3.1.7",
	"P-384": "1.3.132.0.34",
	"P-521": "1.3.132.0.35",
}
