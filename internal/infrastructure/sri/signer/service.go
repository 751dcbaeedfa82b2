// Servicio de firma digital XAdES-BES para comprobantes electrónicos del SRI.
// La firma es enveloped: <ds:Signature> se agrega como último hijo del elemento raíz.

package signer

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"io"
	"math/big"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/google/uuid"
	dsig "github.com/russellhaering/goxmldsig"
	"github.com/russellhaering/goxmldsig/etreeutils"
	"golang.org/x/text/encoding/charmap"

	"github.com/jhoicas/sri-comprobantes/internal/domain"
)

// Options ajustes del firmador. Los valores cero usan los defaults.
type Options struct {
	// Algorithm par digest/firma cuando Sign recibe "".
	Algorithm Algorithm
	// OmitKeyInfoReference perfil BES mínimo: KeyInfo se emite pero no se referencia en SignedInfo.
	OmitKeyInfoReference bool
	// Now reloj para SigningTime.
	Now func() time.Time
	// NewID sufijo de los Id de la firma.
	NewID func() string
}

// SignedDocument resultado de la firma.
type SignedDocument struct {
	XML         []byte
	AccessKey   string
	SignatureID string
	Algorithm   Algorithm
}

// XadesSigner firma comprobantes con XAdES-BES. No guarda estado entre llamadas.
type XadesSigner struct {
	opts Options
}

// NewXadesSigner crea el firmador.
func NewXadesSigner(opts Options) *XadesSigner {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Algorithm == "" {
		opts.Algorithm = DefaultAlgorithm
	}
	return &XadesSigner{opts: opts}
}

// signatureContext estado de una firma en curso.
type signatureContext struct {
	id     string
	alg    Algorithm
	bundle *Bundle
	frozen []frozenNode
}

// frozenNode nodo cuyo digest ya fue calculado y no puede volver a cambiar.
type frozenNode struct {
	name   string
	el     *etree.Element
	digest string
}

func (c *signatureContext) ref(prefix string) string { return prefix + "-" + c.id }

// Sign firma el comprobante. Los digests se calculan de abajo hacia arriba y cada nodo
// se digiere ya ubicado en su posición final, con los namespaces que hereda.
func (s *XadesSigner) Sign(document []byte, bundle *Bundle, alg Algorithm) (*SignedDocument, error) {
	if !bundle.usable() {
		return nil, domain.NewError(domain.CodeCredential, domain.ErrIncompleteBundle, "", "certificado no cargado")
	}
	doc, err := parseDocument(document)
	if err != nil {
		return nil, err
	}
	root := doc.Root()

	if alg == "" {
		alg = s.opts.Algorithm
	}
	ctx := &signatureContext{
		id:     s.opts.NewID(),
		alg:    alg.ForKey(bundle.KeyType()),
		bundle: bundle,
	}

	rootID := root.SelectAttrValue("id", "")
	if rootID == "" {
		rootID = DefaultRootID
		root.CreateAttr("id", rootID)
	}

	// 1) Documento, antes de agregar la firma (equivale a la transformación enveloped).
	docDigest, err := ctx.digest(root)
	if err != nil {
		return nil, err
	}

	sig := root.CreateElement("ds:Signature")
	sig.CreateAttr("xmlns:ds", NamespaceDS)
	sig.CreateAttr("Id", ctx.ref("Signature"))
	signedInfo := sig.CreateElement("ds:SignedInfo")
	signedInfo.CreateAttr("Id", ctx.ref("SignedInfo"))

	// 2) KeyInfo.
	keyInfo := ctx.keyInfo()
	sig.AddChild(keyInfo)
	var keyInfoDigest string
	if !s.opts.OmitKeyInfoReference {
		if keyInfoDigest, err = ctx.freeze("KeyInfo", keyInfo); err != nil {
			return nil, err
		}
	}

	// 3) SignedProperties en ds:Object/xades:QualifyingProperties.
	object := sig.CreateElement("ds:Object")
	object.CreateAttr("Id", ctx.ref("SignatureObject"))
	qp := object.CreateElement("xades:QualifyingProperties")
	qp.CreateAttr("xmlns:xades", NamespaceXAdES)
	qp.CreateAttr("Target", "#"+ctx.ref("Signature"))
	signedProps := ctx.signedProperties(s.opts.Now())
	qp.AddChild(signedProps)
	propsDigest, err := ctx.freeze("SignedProperties", signedProps)
	if err != nil {
		return nil, err
	}

	// 4) SignedInfo.
	signedInfo.CreateElement("ds:CanonicalizationMethod").CreateAttr("Algorithm", AlgC14N)
	signedInfo.CreateElement("ds:SignatureMethod").CreateAttr("Algorithm", ctx.alg.SignatureURI())

	docRef := ctx.reference(ctx.ref("DocumentRef"), "#"+rootID, docDigest)
	transforms := etree.NewElement("ds:Transforms")
	transforms.CreateElement("ds:Transform").CreateAttr("Algorithm", TransformEnveloped)
	docRef.InsertChildAt(0, transforms)
	signedInfo.AddChild(docRef)

	propsRef := ctx.reference(ctx.ref("SignedPropertiesRef"), "#"+ctx.ref("SignedProperties"), propsDigest)
	propsRef.CreateAttr("Type", TypeSignedProperties)
	signedInfo.AddChild(propsRef)

	if !s.opts.OmitKeyInfoReference {
		signedInfo.AddChild(ctx.reference(ctx.ref("CertificateRef"), "#"+ctx.ref("Certificate"), keyInfoDigest))
	}

	// 5) SignatureValue inmediatamente después de SignedInfo.
	canonical, err := canonicalize(signedInfo)
	if err != nil {
		return nil, err
	}
	raw, err := bundle.sign(ctx.alg, hashBytes(ctx.alg.Hash(), canonical))
	if err != nil {
		return nil, domain.WrapError(domain.CodeSigning, domain.ErrSigningFailure, err, "")
	}
	sv := etree.NewElement("ds:SignatureValue")
	sv.CreateAttr("Id", ctx.ref("SignatureValue"))
	sv.SetText(base64.StdEncoding.EncodeToString(raw))
	sig.InsertChildAt(1, sv)

	ctx.checkFrozen()

	// \r y los espacios de atributos se escriben como referencias de carácter; de lo
	// contrario un lector los normaliza y el digest del comprobante deja de coincidir.
	doc.WriteSettings.CanonicalText = true
	doc.WriteSettings.CanonicalAttrVal = true
	var out bytes.Buffer
	if _, err := doc.WriteTo(&out); err != nil {
		return nil, domain.WrapError(domain.CodeSigning, domain.ErrSigningFailure, err, "serializar XML firmado")
	}
	return &SignedDocument{
		XML:         out.Bytes(),
		AccessKey:   accessKeyOf(root),
		SignatureID: ctx.ref("Signature"),
		Algorithm:   ctx.alg,
	}, nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// Construcción de nodos
// ═══════════════════════════════════════════════════════════════════════════════

func (c *signatureContext) reference(id, uri, digest string) *etree.Element {
	ref := etree.NewElement("ds:Reference")
	ref.CreateAttr("Id", id)
	ref.CreateAttr("URI", uri)
	ref.CreateElement("ds:DigestMethod").CreateAttr("Algorithm", c.alg.DigestURI())
	ref.CreateElement("ds:DigestValue").SetText(digest)
	return ref
}

func (c *signatureContext) keyInfo() *etree.Element {
	ki := etree.NewElement("ds:KeyInfo")
	ki.CreateAttr("Id", c.ref("Certificate"))
	x509Data := ki.CreateElement("ds:X509Data")
	for _, cert := range c.bundle.Chain() {
		x509Data.CreateElement("ds:X509Certificate").SetText(base64.StdEncoding.EncodeToString(cert.Raw))
	}
	ki.AddChild(c.bundle.KeyValue())
	return ki
}

func (c *signatureContext) signedProperties(now time.Time) *etree.Element {
	sp := etree.NewElement("xades:SignedProperties")
	sp.CreateAttr("Id", c.ref("SignedProperties"))

	ssp := sp.CreateElement("xades:SignedSignatureProperties")
	ssp.CreateElement("xades:SigningTime").SetText(now.Format("2006-01-02T15:04:05-07:00"))
	cert := ssp.CreateElement("xades:SigningCertificate").CreateElement("xades:Cert")
	certDigest := cert.CreateElement("xades:CertDigest")
	certDigest.CreateElement("ds:DigestMethod").CreateAttr("Algorithm", c.alg.DigestURI())
	certDigest.CreateElement("ds:DigestValue").SetText(c.bundle.CertDigest(c.alg.Hash()))
	issuerSerial := cert.CreateElement("xades:IssuerSerial")
	issuerSerial.CreateElement("ds:X509IssuerName").SetText(c.bundle.IssuerName())
	issuerSerial.CreateElement("ds:X509SerialNumber").SetText(c.bundle.SerialDecimal())

	dof := sp.CreateElement("xades:SignedDataObjectProperties").CreateElement("xades:DataObjectFormat")
	dof.CreateAttr("ObjectReference", "#"+c.ref("DocumentRef"))
	dof.CreateElement("xades:Description").SetText(dataObjectDescription)
	dof.CreateElement("xades:MimeType").SetText(dataObjectMimeType)
	dof.CreateElement("xades:Encoding").SetText(dataObjectEncoding)
	return sp
}

// KeyValue llave pública como ds:KeyValue (RSAKeyValue o dsig11:ECKeyValue).
func (b *Bundle) KeyValue() *etree.Element {
	kv := etree.NewElement("ds:KeyValue")
	switch pub := b.cert.PublicKey.(type) {
	case *rsa.PublicKey:
		rsaKV := kv.CreateElement("ds:RSAKeyValue")
		rsaKV.CreateElement("ds:Modulus").SetText(base64.StdEncoding.EncodeToString(pub.N.Bytes()))
		rsaKV.CreateElement("ds:Exponent").SetText(base64.StdEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()))
	case *ecdsa.PublicKey:
		ecKV := kv.CreateElement("dsig11:ECKeyValue")
		ecKV.CreateAttr("xmlns:dsig11", NamespaceDS11)
		ecKV.CreateElement("dsig11:NamedCurve").CreateAttr("URI", "urn:oid:"+curveOIDs[pub.Curve.Params().Name])
		ecKV.CreateElement("dsig11:PublicKey").SetText(base64.StdEncoding.EncodeToString(uncompressedPoint(pub)))
	}
	return kv
}

// uncompressedPoint 0x04 || X || Y con X e Y del ancho de la curva.
func uncompressedPoint(pub *ecdsa.PublicKey) []byte {
	size := (pub.Curve.Params().BitSize + 7) / 8
	out := make([]byte, 1+2*size)
	out[0] = 4
	pub.X.FillBytes(out[1 : 1+size])
	pub.Y.FillBytes(out[1+size:])
	return out
}

// ═══════════════════════════════════════════════════════════════════════════════
// Digest y canonicalización
// ═══════════════════════════════════════════════════════════════════════════════

func (c *signatureContext) digest(el *etree.Element) (string, error) {
	canonical, err := canonicalize(el)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(hashBytes(c.alg.Hash(), canonical)), nil
}

func (c *signatureContext) freeze(name string, el *etree.Element) (string, error) {
	d, err := c.digest(el)
	if err != nil {
		return "", err
	}
	c.frozen = append(c.frozen, frozenNode{name: name, el: el, digest: d})
	return d, nil
}

// checkFrozen recalcula los digests de los nodos congelados. Una diferencia es un error
// de programación del firmador, no del documento de entrada.
func (c *signatureContext) checkFrozen() {
	for _, f := range c.frozen {
		d, err := c.digest(f.el)
		if err != nil || d != f.digest {
			panic(fmt.Sprintf("signer: %s cambió después de calcular su digest", f.name))
		}
	}
}

// canonicalize C14N inclusiva (2001) del elemento en su contexto: los namespaces
// declarados en ancestros se copian al elemento antes de serializar.
func canonicalize(el *etree.Element) ([]byte, error) {
	nsCtx, err := etreeutils.NSBuildParentContext(el)
	if err != nil {
		return nil, domain.WrapError(domain.CodeSigning, domain.ErrSigningFailure, err, "contexto de namespaces")
	}
	detached, err := etreeutils.NSDetatch(nsCtx, el)
	if err != nil {
		return nil, domain.WrapError(domain.CodeSigning, domain.ErrSigningFailure, err, "contexto de namespaces")
	}
	out, err := dsig.MakeC14N10RecCanonicalizer().Canonicalize(detached)
	if err != nil {
		return nil, domain.WrapError(domain.CodeSigning, domain.ErrSigningFailure, err, "canonicalizar "+el.Tag)
	}
	return out, nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// Entrada
// ═══════════════════════════════════════════════════════════════════════════════

func parseDocument(data []byte) (*etree.Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, domain.NewError(domain.CodeInput, domain.ErrMalformedInput, "", "documento vacío")
	}
	doc := etree.NewDocument()
	doc.ReadSettings.CharsetReader = CharsetReader
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, domain.WrapError(domain.CodeInput, domain.ErrMalformedInput, err, "")
	}
	if doc.Root() == nil {
		return nil, domain.NewError(domain.CodeInput, domain.ErrMalformedInput, "", "documento sin elemento raíz")
	}
	// El árbol ya está en UTF-8; la declaración debe decirlo.
	for _, tok := range doc.Child {
		if p, ok := tok.(*etree.ProcInst); ok && p.Target == "xml" {
			p.Inst = `version="1.0" encoding="UTF-8"`
			break
		}
	}
	return doc, nil
}

// CharsetReader decodificador para documentos declarados en ISO-8859-1 o windows-1252.
func CharsetReader(label string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "iso-8859-1", "iso8859-1", "latin1", "latin-1":
		return charmap.ISO8859_1.NewDecoder().Reader(input), nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252.NewDecoder().Reader(input), nil
	}
	return nil, fmt.Errorf("codificación no soportada %q", label)
}

func accessKeyOf(root *etree.Element) string {
	if el := root.FindElement("./infoTributaria/claveAcceso"); el != nil {
		return strings.TrimSpace(el.Text())
	}
	return ""
}
