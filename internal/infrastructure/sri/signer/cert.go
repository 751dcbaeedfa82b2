// Carga del certificado de firma desde .p12 (PKCS#12).

package signer

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"golang.org/x/crypto/pkcs12"
	gopkcs12 "software.sslmate.com/src/go-pkcs12"

	"github.com/jhoicas/sri-comprobantes/internal/domain"
)

// NearExpiryWindow a partir de cuántos días antes de caducar se avisa (sin fallar).
const NearExpiryWindow = 30 * 24 * time.Hour

// KeyType tipo de llave del certificado.
type KeyType string

const (
	KeyRSA KeyType = "RSA"
	KeyEC  KeyType = "EC"
)

// Bundle certificado de firma, llave privada e intermedios, cargados y liberados juntos.
// No se cachea: se crea por operación y se cierra con Close.
type Bundle struct {
	cert          *x509.Certificate
	key           crypto.Signer
	intermediates []*x509.Certificate
}

// LoadP12File lee el archivo .p12/.pfx y lo decodifica con LoadP12.
func LoadP12File(path, password string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.WrapError(domain.CodeCredential, domain.ErrBadCredential, err, "leer p12")
	}
	return LoadP12(data, password)
}

// LoadP12 decodifica el .p12. Primero con un decodificador estricto que soporta cifrado
// moderno (AES/PBES2) y cadenas; si falla, con el lector heredado (3DES/RC2) que algunas
// entidades de certificación todavía emiten.
func LoadP12(data []byte, password string) (*Bundle, error) {
	if len(data) == 0 {
		return nil, domain.NewError(domain.CodeCredential, domain.ErrBadCredential, "", "archivo .p12 vacío")
	}

	key, leaf, cas, err := gopkcs12.DecodeChain(data, password)
	if err == nil {
		return NewBundle(key, append([]*x509.Certificate{leaf}, cas...)...)
	}
	if errors.Is(err, gopkcs12.ErrIncorrectPassword) {
		return nil, domain.WrapError(domain.CodeCredential, domain.ErrBadCredential, err, "")
	}

	// NewBundle decide si al contenido le falta la llave o el certificado.
	pkey, certs, perr := decodePermissive(data, password)
	if perr == nil {
		return NewBundle(pkey, certs...)
	}
	// Solo certificados con cifrado moderno: el lector heredado no lo soporta.
	if certs, terr := gopkcs12.DecodeTrustStore(data, password); terr == nil && len(certs) > 0 {
		return NewBundle(nil, certs...)
	}
	return nil, domain.WrapError(domain.CodeCredential, domain.ErrBadCredential, errors.Join(err, perr), "")
}

// decodePermissive recorre todas las bolsas del .p12 con x/crypto/pkcs12.
func decodePermissive(data []byte, password string) (crypto.PrivateKey, []*x509.Certificate, error) {
	blocks, err := pkcs12.ToPEM(data, password)
	if err != nil {
		return nil, nil, fmt.Errorf("decodificar p12 (modo heredado): %w", err)
	}
	var (
		key   crypto.PrivateKey
		certs []*x509.Certificate
	)
	for _, b := range blocks {
		switch b.Type {
		case "CERTIFICATE":
			c, err := x509.ParseCertificate(b.Bytes)
			if err != nil {
				return nil, nil, fmt.Errorf("parsear certificado: %w", err)
			}
			certs = append(certs, c)
		case "PRIVATE KEY":
			if key != nil {
				continue
			}
			k, err := parsePrivateKey(b.Bytes)
			if err != nil {
				return nil, nil, err
			}
			key = k
		}
	}
	return key, certs, nil
}

// parsePrivateKey x/crypto entrega RSA en PKCS#1 y EC en SEC 1, ambos con tipo "PRIVATE KEY".
func parsePrivateKey(der []byte) (crypto.PrivateKey, error) {
	if k, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return k, nil
	}
	if k, err := x509.ParseECPrivateKey(der); err == nil {
		return k, nil
	}
	if k, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		return k, nil
	}
	return nil, errors.New("llave privada en formato desconocido")
}

// NewBundle arma el bundle a partir de la llave y los certificados del archivo. El certificado
// de firma es el que corresponde a la llave; el resto se conserva como intermedios (sin duplicados).
func NewBundle(key crypto.PrivateKey, certs ...*x509.Certificate) (*Bundle, error) {
	if key == nil {
		return nil, domain.NewError(domain.CodeCredential, domain.ErrIncompleteBundle, "", "falta la llave privada")
	}
	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, domain.NewError(domain.CodeCredential, domain.ErrBadCredential, "", fmt.Sprintf("tipo de llave no soportado %T", key))
	}
	switch signer.(type) {
	case *rsa.PrivateKey, *ecdsa.PrivateKey:
	default:
		return nil, domain.NewError(domain.CodeCredential, domain.ErrBadCredential, "", fmt.Sprintf("tipo de llave no soportado %T", key))
	}

	pub, _ := signer.Public().(interface{ Equal(crypto.PublicKey) bool })
	var leaf *x509.Certificate
	for _, c := range certs {
		if c != nil && pub != nil && pub.Equal(c.PublicKey) {
			leaf = c
			break
		}
	}
	if leaf == nil {
		detail := "falta el certificado"
		if len(certs) > 0 {
			detail = "ningún certificado corresponde a la llave privada"
		}
		return nil, domain.NewError(domain.CodeCredential, domain.ErrIncompleteBundle, "", detail)
	}

	b := &Bundle{cert: leaf, key: signer}
	for _, c := range certs {
		if c == nil || b.contains(c) {
			continue
		}
		b.intermediates = append(b.intermediates, c)
	}
	return b, nil
}

func (b *Bundle) contains(c *x509.Certificate) bool {
	if bytes.Equal(b.cert.Raw, c.Raw) {
		return true
	}
	for _, ic := range b.intermediates {
		if bytes.Equal(ic.Raw, c.Raw) {
			return true
		}
	}
	return false
}

// Close descarta las referencias a la llave y certificados.
func (b *Bundle) Close() {
	if b == nil {
		return
	}
	b.key = nil
	b.cert = nil
	b.intermediates = nil
}

func (b *Bundle) usable() bool { return b != nil && b.key != nil && b.cert != nil }

// Certificate certificado de firma.
func (b *Bundle) Certificate() *x509.Certificate { return b.cert }

// Intermediates certificados adicionales del .p12.
func (b *Bundle) Intermediates() []*x509.Certificate {
	return append([]*x509.Certificate(nil), b.intermediates...)
}

// Chain certificado de firma primero y luego los intermedios.
func (b *Bundle) Chain() []*x509.Certificate {
	return append([]*x509.Certificate{b.cert}, b.intermediates...)
}

// KeyType RSA o EC.
func (b *Bundle) KeyType() KeyType {
	if _, ok := b.key.(*ecdsa.PrivateKey); ok {
		return KeyEC
	}
	return KeyRSA
}

// KeySize bits del módulo RSA o tamaño de la curva.
func (b *Bundle) KeySize() int {
	switch k := b.key.(type) {
	case *rsa.PrivateKey:
		return k.N.BitLen()
	case *ecdsa.PrivateKey:
		return k.Curve.Params().BitSize
	}
	return 0
}

// CurveName nombre de la curva (vacío para RSA).
func (b *Bundle) CurveName() string {
	if k, ok := b.key.(*ecdsa.PrivateKey); ok {
		return k.Curve.Params().Name
	}
	return ""
}

// IssuerName emisor en RFC 2253 (orden inverso, con escapes).
func (b *Bundle) IssuerName() string { return IssuerName(b.cert) }

// SerialDecimal número de serie en decimal, sin pasar por enteros de ancho fijo.
func (b *Bundle) SerialDecimal() string { return b.cert.SerialNumber.String() }

func (b *Bundle) NotBefore() time.Time { return b.cert.NotBefore }
func (b *Bundle) NotAfter() time.Time  { return b.cert.NotAfter }

// CertDigest digest base64 del certificado en DER.
func (b *Bundle) CertDigest(h crypto.Hash) string {
	return base64.StdEncoding.EncodeToString(hashBytes(h, b.cert.Raw))
}

// SerialFromHex convierte un serial hexadecimal a decimal con precisión arbitraria.
func SerialFromHex(hexSerial string) (string, error) {
	s := strings.NewReplacer(":", "", " ", "").Replace(hexSerial)
	n, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return "", fmt.Errorf("signer: serial hexadecimal inválido %q", hexSerial)
	}
	return n.String(), nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// Vigencia
// ═══════════════════════════════════════════════════════════════════════════════

// ValidityReport vigencia del certificado. NearExpiry es solo informativo.
type ValidityReport struct {
	NotBefore  time.Time `json:"notBefore"`
	NotAfter   time.Time `json:"notAfter"`
	DaysLeft   int       `json:"daysLeft"`
	NearExpiry bool      `json:"nearExpiry"`
}

// Validate comprueba que now esté dentro de la vigencia del certificado.
func (b *Bundle) Validate(now time.Time) (ValidityReport, error) {
	if !b.usable() {
		return ValidityReport{}, domain.NewError(domain.CodeCredential, domain.ErrIncompleteBundle, "", "certificado cerrado")
	}
	r := ValidityReport{
		NotBefore: b.cert.NotBefore,
		NotAfter:  b.cert.NotAfter,
		DaysLeft:  int(b.cert.NotAfter.Sub(now).Hours() / 24),
	}
	if now.Before(b.cert.NotBefore) {
		return r, domain.NewError(domain.CodeCredential, domain.ErrCertificateNotYetValid, "",
			"válido desde "+b.cert.NotBefore.Format(time.RFC3339))
	}
	if now.After(b.cert.NotAfter) {
		return r, domain.NewError(domain.CodeCredential, domain.ErrCertificateExpired, "",
			"caducó el "+b.cert.NotAfter.Format(time.RFC3339))
	}
	r.NearExpiry = b.cert.NotAfter.Sub(now) <= NearExpiryWindow
	return r, nil
}

// CertificateInfo resumen legible del certificado.
type CertificateInfo struct {
	Provider  string    `json:"proveedor"`
	SubjectCN string    `json:"sujeto"`
	IssuerCN  string    `json:"emisor"`
	Issuer    string    `json:"emisorDN"`
	Serial    string    `json:"serial"`
	NotBefore time.Time `json:"validoDesde"`
	NotAfter  time.Time `json:"validoHasta"`
	KeyType   KeyType   `json:"tipoClave"`
	KeyBits   int       `json:"bits"`
}

// Describe datos del certificado para diagnóstico.
func (b *Bundle) Describe() CertificateInfo {
	provider := b.cert.Issuer.CommonName
	if len(b.cert.Issuer.Organization) > 0 {
		provider = b.cert.Issuer.Organization[0]
	}
	return CertificateInfo{
		Provider:  provider,
		SubjectCN: b.cert.Subject.CommonName,
		IssuerCN:  b.cert.Issuer.CommonName,
		Issuer:    b.IssuerName(),
		Serial:    b.SerialDecimal(),
		NotBefore: b.cert.NotBefore,
		NotAfter:  b.cert.NotAfter,
		KeyType:   b.KeyType(),
		KeyBits:   b.KeySize(),
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// Firma
// ═══════════════════════════════════════════════════════════════════════════════

// sign firma el digest ya calculado. ECDSA se codifica r||s de ancho fijo (XML-DSig).
func (b *Bundle) sign(alg Algorithm, digest []byte) ([]byte, error) {
	switch k := b.key.(type) {
	case *rsa.PrivateKey:
		return rsa.SignPKCS1v15(rand.Reader, k, alg.Hash(), digest)
	case *ecdsa.PrivateKey:
		r, s, err := ecdsa.Sign(rand.Reader, k, digest)
		if err != nil {
			return nil, err
		}
		size := (k.Curve.Params().BitSize + 7) / 8
		out := make([]byte, 2*size)
		r.FillBytes(out[:size])
		s.FillBytes(out[size:])
		return out, nil
	}
	return nil, fmt.Errorf("tipo de llave no soportado %T", b.key)
}

func hashBytes(h crypto.Hash, data []byte) []byte {
	hh := h.New()
	hh.Write(data)
	return hh.Sum(nil)
}
