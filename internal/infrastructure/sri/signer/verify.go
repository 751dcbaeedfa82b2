package signer

import (
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"
	"github.com/russellhaering/goxmldsig/etreeutils"
)

// ErrInvalidSignature la firma no corresponde al documento.
var ErrInvalidSignature = errors.New("signer: firma inválida")

// VerifyReferences recalcula el digest de cada Reference del SignedInfo y verifica
// SignatureValue con el primer certificado de KeyInfo. No valida la cadena de confianza.
func VerifyReferences(signed []byte) error {
	doc, err := parseDocument(signed)
	if err != nil {
		return err
	}
	sig := findDS(doc.Root(), "Signature", true)
	if sig == nil {
		return fmt.Errorf("%w: no se encontró ds:Signature", ErrInvalidSignature)
	}
	signedInfo := findDS(sig, "SignedInfo", false)
	if signedInfo == nil {
		return fmt.Errorf("%w: falta ds:SignedInfo", ErrInvalidSignature)
	}
	method := findDS(signedInfo, "SignatureMethod", false)
	if method == nil {
		return fmt.Errorf("%w: falta ds:SignatureMethod", ErrInvalidSignature)
	}
	alg, ok := algorithmForSignatureURI(method.SelectAttrValue("Algorithm", ""))
	if !ok {
		return fmt.Errorf("%w: SignatureMethod no soportado", ErrInvalidSignature)
	}

	refs := 0
	for _, ref := range signedInfo.ChildElements() {
		if ref.Tag != "Reference" || ref.NamespaceURI() != NamespaceDS {
			continue
		}
		refs++
		if err := verifyReference(doc.Root(), sig, ref); err != nil {
			return err
		}
	}
	if refs == 0 {
		return fmt.Errorf("%w: SignedInfo sin referencias", ErrInvalidSignature)
	}

	cert, err := signingCertificate(sig)
	if err != nil {
		return err
	}
	sv := findDS(sig, "SignatureValue", false)
	if sv == nil {
		return fmt.Errorf("%w: falta ds:SignatureValue", ErrInvalidSignature)
	}
	raw, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(sv.Text()), ""))
	if err != nil {
		return fmt.Errorf("%w: SignatureValue no es base64", ErrInvalidSignature)
	}
	canonical, err := canonicalize(signedInfo)
	if err != nil {
		return err
	}
	return verifyValue(cert, alg, hashBytes(alg.Hash(), canonical), raw)
}

func verifyReference(root, sig, ref *etree.Element) error {
	uri := ref.SelectAttrValue("URI", "")
	target := findByID(root, strings.TrimPrefix(uri, "#"))
	if !strings.HasPrefix(uri, "#") || target == nil {
		return fmt.Errorf("%w: referencia %q no encontrada", ErrInvalidSignature, uri)
	}
	dm := findDS(ref, "DigestMethod", false)
	dv := findDS(ref, "DigestValue", false)
	if dm == nil || dv == nil {
		return fmt.Errorf("%w: referencia %q incompleta", ErrInvalidSignature, uri)
	}
	h, ok := hashForDigestURI(dm.SelectAttrValue("Algorithm", ""))
	if !ok {
		return fmt.Errorf("%w: DigestMethod no soportado en %q", ErrInvalidSignature, uri)
	}

	nsCtx, err := etreeutils.NSBuildParentContext(target)
	if err != nil {
		return err
	}
	detached, err := etreeutils.NSDetatch(nsCtx, target)
	if err != nil {
		return err
	}
	if enveloped(ref) {
		if own := findByID(detached, sig.SelectAttrValue("Id", "")); own != nil && own.Parent() != nil {
			own.Parent().RemoveChild(own)
		}
	}
	canonical, err := dsig.MakeC14N10RecCanonicalizer().Canonicalize(detached)
	if err != nil {
		return err
	}
	got := base64.StdEncoding.EncodeToString(hashBytes(h, canonical))
	if got != strings.TrimSpace(dv.Text()) {
		return fmt.Errorf("%w: digest de %q no coincide", ErrInvalidSignature, uri)
	}
	return nil
}

func enveloped(ref *etree.Element) bool {
	transforms := findDS(ref, "Transforms", false)
	if transforms == nil {
		return false
	}
	for _, t := range transforms.ChildElements() {
		if t.SelectAttrValue("Algorithm", "") == TransformEnveloped {
			return true
		}
	}
	return false
}

func signingCertificate(sig *etree.Element) (*x509.Certificate, error) {
	ki := findDS(sig, "KeyInfo", false)
	if ki == nil {
		return nil, fmt.Errorf("%w: falta ds:KeyInfo", ErrInvalidSignature)
	}
	x509Data := findDS(ki, "X509Data", false)
	if x509Data == nil {
		return nil, fmt.Errorf("%w: falta ds:X509Data", ErrInvalidSignature)
	}
	certEl := findDS(x509Data, "X509Certificate", false)
	if certEl == nil {
		return nil, fmt.Errorf("%w: falta ds:X509Certificate", ErrInvalidSignature)
	}
	der, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(certEl.Text()), ""))
	if err != nil {
		return nil, fmt.Errorf("%w: certificado no es base64", ErrInvalidSignature)
	}
	return x509.ParseCertificate(der)
}

func verifyValue(cert *x509.Certificate, alg Algorithm, digest, raw []byte) error {
	switch pub := cert.PublicKey.(type) {
	case *rsa.PublicKey:
		if err := rsa.VerifyPKCS1v15(pub, alg.Hash(), digest, raw); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
		return nil
	case *ecdsa.PublicKey:
		size := (pub.Curve.Params().BitSize + 7) / 8
		if len(raw) != 2*size {
			return fmt.Errorf("%w: longitud de firma ECDSA", ErrInvalidSignature)
		}
		r := new(big.Int).SetBytes(raw[:size])
		s := new(big.Int).SetBytes(raw[size:])
		if !ecdsa.Verify(pub, digest, r, s) {
			return fmt.Errorf("%w: SignatureValue no coincide", ErrInvalidSignature)
		}
		return nil
	}
	return fmt.Errorf("%w: llave pública no soportada", ErrInvalidSignature)
}

// findDS primer hijo (o descendiente si deep) ds:<tag>.
func findDS(el *etree.Element, tag string, deep bool) *etree.Element {
	if el == nil {
		return nil
	}
	for _, c := range el.ChildElements() {
		if c.Tag == tag && c.NamespaceURI() == NamespaceDS {
			return c
		}
		if deep {
			if found := findDS(c, tag, true); found != nil {
				return found
			}
		}
	}
	return nil
}

// findByID elemento con atributo Id/id igual a id, empezando por el propio el.
func findByID(el *etree.Element, id string) *etree.Element {
	if id == "" {
		return nil
	}
	for _, attr := range []string{"Id", "id", "ID"} {
		if el.SelectAttrValue(attr, "") == id {
			return el
		}
	}
	for _, c := range el.ChildElements() {
		if found := findByID(c, id); found != nil {
			return found
		}
	}
	return nil
}
