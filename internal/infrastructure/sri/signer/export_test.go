package signer

import "github.com/beevik/etree"

var DecodePermissive = decodePermissive

// FreezeForTest congela el elemento y devuelve la verificación que hace Sign al final.
func FreezeForTest(el *etree.Element) (func(), error) {
	ctx := &signatureContext{alg: RSASHA1}
	if _, err := ctx.freeze("test", el); err != nil {
		return nil, err
	}
	return ctx.checkFrozen, nil
}

var Canonicalize = canonicalize
