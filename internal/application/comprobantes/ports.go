package comprobantes

import (
	"context"

	domsri "github.com/jhoicas/sri-comprobantes/internal/domain/sri"
	"github.com/jhoicas/sri-comprobantes/internal/infrastructure/sri/signer"
	sricat "github.com/jhoicas/sri-comprobantes/pkg/sri"
)

// Signer firma XAdES-BES un documento con el certificado indicado.
type Signer interface {
	Sign(document []byte, bundle *signer.Bundle, alg signer.Algorithm) (*signer.SignedDocument, error)
}

// Submitter cliente de los servicios de recepción y autorización del SRI.
type Submitter interface {
	Submit(ctx context.Context, signedXML []byte, env sricat.Environment) (*domsri.ReceptionReply, error)
	QueryAuthorization(ctx context.Context, accessKey string, env sricat.Environment) (*domsri.AuthorizationReply, error)
}

// SchemaValidator control estructural previo a la firma.
type SchemaValidator interface {
	Validate(xml []byte, docType sricat.DocumentType) error
}

// DocumentBuilder genera el XML sin firma de un comprobante estructurado.
type DocumentBuilder interface {
	Build(c domsri.Comprobante) ([]byte, error)
}

// CertificateLoader abre el PKCS#12 de una llamada. El bundle devuelto se cierra al terminar.
type CertificateLoader interface {
	Load(p12 []byte, password string) (*signer.Bundle, error)
}

// CertificateLoaderFunc adapta una función a CertificateLoader.
type CertificateLoaderFunc func(p12 []byte, password string) (*signer.Bundle, error)

func (f CertificateLoaderFunc) Load(p12 []byte, password string) (*signer.Bundle, error) {
	return f(p12, password)
}

// P12Loader carga con signer.LoadP12.
var P12Loader CertificateLoader = CertificateLoaderFunc(signer.LoadP12)
