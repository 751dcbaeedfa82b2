package sri

import (
	"fmt"

	"github.com/jhoicas/sri-comprobantes/internal/domain"
)

// ValidateRUC valida localmente un RUC ecuatoriano: 13 dígitos, tercer dígito 0-6 o 9
// (persona natural, pública o jurídica) y establecimiento distinto de 000.
func ValidateRUC(ruc string) error {
	if len(ruc) != 13 || !isDigits(ruc) {
		return domain.NewError(domain.CodeInput, domain.ErrInvalidInput,
			"el RUC debe tener 13 dígitos", fmt.Sprintf("recibido %q", ruc))
	}
	if third := ruc[2]; third > '6' && third != '9' {
		return domain.NewError(domain.CodeInput, domain.ErrInvalidInput,
			"tercer dígito del RUC inválido", fmt.Sprintf("RUC %s", ruc))
	}
	if ruc[10:13] == "000" {
		return domain.NewError(domain.CodeInput, domain.ErrInvalidInput,
			"el establecimiento del RUC no puede ser 000", fmt.Sprintf("RUC %s", ruc))
	}
	return nil
}
