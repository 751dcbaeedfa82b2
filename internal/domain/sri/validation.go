package sri

import (
	"fmt"
	"unicode/utf8"

	"github.com/jhoicas/sri-comprobantes/internal/domain"
)

// BusinessFields campos de infoTributaria sujetos a límites de longitud de la ficha técnica.
type BusinessFields struct {
	RazonSocial     string
	NombreComercial string
	DirMatriz       string
	Secuencial      string
}

type lengthRule struct {
	field string
	max   int
	value func(BusinessFields) string
}

var lengthRules = []lengthRule{
	{"razonSocial", 300, func(f BusinessFields) string { return f.RazonSocial }},
	{"nombreComercial", 300, func(f BusinessFields) string { return f.NombreComercial }},
	{"dirMatriz", 300, func(f BusinessFields) string { return f.DirMatriz }},
	{"secuencial", 9, func(f BusinessFields) string { return f.Secuencial }},
}

// ValidateFields valida longitudes máximas (en caracteres, no bytes).
// Devuelve un error de entrada con un detalle por cada campo excedido.
func ValidateFields(f BusinessFields) error {
	var details []string
	for _, r := range lengthRules {
		if n := utf8.RuneCountInString(r.value(f)); n > r.max {
			details = append(details, fmt.Sprintf("el campo %s excede la longitud máxima de %d (%d)", r.field, r.max, n))
		}
	}
	if len(details) > 0 {
		return domain.NewError(domain.CodeInput, domain.ErrInvalidInput, "error en validación de campos locales", details...)
	}
	return nil
}
