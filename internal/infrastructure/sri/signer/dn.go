package signer

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/hex"
	"strings"
)

// Palabras clave RFC 2253/4514 conocidas; el resto va como OID=#hex.
var dnKeywords = map[string]string{
	"2.5.4.3":                    "CN",
	"2.5.4.6":                    "C",
	"2.5.4.7":                    "L",
	"2.5.4.8":                    "ST",
	"2.5.4.10":                   "O",
	"2.5.4.11":                   "OU",
	"2.5.4.9":                    "STREET",
	"0.9.2342.19200300.100.1.25": "DC",
	"0.9.2342.19200300.100.1.1":  "UID",
}

// IssuerName emisor del certificado como X509IssuerName: RDN en orden inverso a su
// codificación DER, separados por coma y con los caracteres especiales escapados.
func IssuerName(cert *x509.Certificate) string {
	if cert == nil {
		return ""
	}
	var seq pkix.RDNSequence
	if rest, err := asn1.Unmarshal(cert.RawIssuer, &seq); err != nil || len(rest) > 0 {
		return cert.Issuer.String()
	}
	return FormatDN(seq)
}

// FormatDN serializa una secuencia RDN (orden RFC 2253).
func FormatDN(seq pkix.RDNSequence) string {
	parts := make([]string, 0, len(seq))
	for i := len(seq) - 1; i >= 0; i-- {
		rdn := seq[i]
		atvs := make([]string, 0, len(rdn))
		for _, atv := range rdn {
			atvs = append(atvs, formatATV(atv))
		}
		parts = append(parts, strings.Join(atvs, "+"))
	}
	return strings.Join(parts, ",")
}

func formatATV(atv pkix.AttributeTypeAndValue) string {
	oid := atv.Type.String()
	kw, known := dnKeywords[oid]
	s, isString := atv.Value.(string)
	if !known || !isString {
		der, err := asn1.Marshal(atv.Value)
		if err != nil {
			return oid + "="
		}
		return oid + "=#" + hex.EncodeToString(der)
	}
	return kw + "=" + escapeDNValue(s)
}

func escapeDNValue(s string) string {
	var sb strings.Builder
	last := len(s) - 1
	for i, r := range s {
		switch {
		case strings.ContainsRune(`\,+"<>;=`, r):
			sb.WriteByte('\\')
		case i == 0 && (r == '#' || r == ' '):
			sb.WriteByte('\\')
		case i == last && r == ' ':
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
