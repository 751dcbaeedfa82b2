package signer_test

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Las llaves RSA tardan en generarse; se comparten entre tests.
var (
	rsaKey = sync.OnceValue(func() *rsa.PrivateKey {
		k, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
		return k
	})
	caKey = sync.OnceValue(func() *rsa.PrivateKey {
		k, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
		return k
	})
	ecKey = sync.OnceValue(func() *ecdsa.PrivateKey {
		k, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			panic(err)
		}
		return k
	})
)

var testIssuer = pkix.Name{
	Country:            []string{"EC"},
	Organization:       []string{"BANCO CENTRAL DEL ECUADOR"},
	OrganizationalUnit: []string{"ENTIDAD DE CERTIFICACION DE INFORMACION-ECIBCE"},
	CommonName:         "AC BANCO CENTRAL DEL ECUADOR",
}

type certOpts struct {
	subject   pkix.Name
	issuer    *x509.Certificate
	signer    crypto.Signer
	serial    *big.Int
	notBefore time.Time
	notAfter  time.Time
	isCA      bool
}

// newCert crea un certificado para pub. Sin issuer es autofirmado con el nombre testIssuer.
func newCert(t *testing.T, pub crypto.PublicKey, o certOpts) *x509.Certificate {
	t.Helper()
	if o.serial == nil {
		o.serial = big.NewInt(time.Now().UnixNano())
	}
	if o.notBefore.IsZero() {
		o.notBefore = time.Now().Add(-time.Hour)
	}
	if o.notAfter.IsZero() {
		o.notAfter = time.Now().Add(365 * 24 * time.Hour)
	}
	if o.subject.CommonName == "" {
		o.subject = testIssuer
	}
	tmpl := &x509.Certificate{
		SerialNumber:          o.serial,
		Subject:               o.subject,
		NotBefore:             o.notBefore,
		NotAfter:              o.notAfter,
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageContentCommitment,
		BasicConstraintsValid: true,
		IsCA:                  o.isCA,
	}
	if o.isCA {
		tmpl.KeyUsage |= x509.KeyUsageCertSign
	}
	parent := tmpl
	if o.issuer != nil {
		parent = o.issuer
	}
	require.NotNil(t, o.signer)
	der, err := x509.CreateCertificate(rand.Reader, tmpl, parent, pub, o.signer)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert
}

// rsaLeaf certificado autofirmado para rsaKey.
func rsaLeaf(t *testing.T) *x509.Certificate {
	return newCert(t, &rsaKey().PublicKey, certOpts{signer: rsaKey()})
}

// chain certificado de firma emitido por una CA de prueba, y la CA.
func chain(t *testing.T) (leaf, ca *x509.Certificate) {
	ca = newCert(t, &caKey().PublicKey, certOpts{signer: caKey(), isCA: true})
	leaf = newCert(t, &rsaKey().PublicKey, certOpts{
		subject: pkix.Name{CommonName: "JUAN PEREZ", SerialNumber: "1790011001"},
		issuer:  ca,
		signer:  caKey(),
	})
	return leaf, ca
}

const testAccessKey = "2601202601179001100100110010010000000011234567813"

const facturaXML = `<?xml version="1.0" encoding="UTF-8"?>
<factura id="comprobante" version="1.1.0"><infoTributaria><ambiente>1</ambiente><tipoEmision>1</tipoEmision><razonSocial>DISTRIBUIDORA ANDINA S.A.</razonSocial><ruc>1790011001001</ruc><claveAcceso>` + testAccessKey + `</claveAcceso><codDoc>01</codDoc><estab>001</estab><ptoEmi>001</ptoEmi><secuencial>000000001</secuencial><dirMatriz>Av. Amazonas N21-147 &amp; Robles</dirMatriz></infoTributaria><infoFactura><fechaEmision>26/01/2026</fechaEmision><importeTotal>11.20</importeTotal></infoFactura></factura>`
