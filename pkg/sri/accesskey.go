package sri

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/jhoicas/sri-comprobantes/internal/domain"
)

// Longitudes de la clave de acceso (ficha técnica SRI).
const (
	AccessKeyBodyLength = 48
	AccessKeyLength     = 49
)

// AccessKey clave de acceso de 49 dígitos; identifica un único intento de emisión.
type AccessKey string

func (k AccessKey) String() string { return string(k) }

// AccessKeyFields campos de la clave de acceso en el orden en que se concatenan.
type AccessKeyFields struct {
	Date         string // ddmmaaaa
	DocType      string // 01, 04, 05, 06, 07
	RUC          string
	Environment  string // 1 pruebas, 2 producción
	Series       string // establecimiento + punto de emisión
	Sequence     string
	NumericCode  string
	EmissionType string // 1 normal
}

// Body concatena los campos sin dígito verificador.
func (f AccessKeyFields) Body() string {
	return strings.ReplaceAll(f.Date, "/", "") + f.DocType + f.RUC + f.Environment +
		f.Series + f.Sequence + f.NumericCode + f.EmissionType
}

// BuildAccessKey arma la clave a partir de sus campos. Solo se valida la longitud total
// (48) y que sea numérica; los campos individuales no se validan por separado.
// La fecha admite separadores "/" (dd/mm/aaaa), que se eliminan.
func BuildAccessKey(date8, docType2, ruc13, env1, series6, sequence9, numericCode8, emissionType1 string) (AccessKey, error) {
	return AccessKeyFields{
		Date:         date8,
		DocType:      docType2,
		RUC:          ruc13,
		Environment:  env1,
		Series:       series6,
		Sequence:     sequence9,
		NumericCode:  numericCode8,
		EmissionType: emissionType1,
	}.Build()
}

// Build arma la clave de acceso (48 dígitos + verificador).
func (f AccessKeyFields) Build() (AccessKey, error) {
	body := f.Body()
	if len(body) != AccessKeyBodyLength {
		return "", domain.NewError(domain.CodeInput, domain.ErrInvalidLength, "",
			fmt.Sprintf("longitud actual %d", len(body)))
	}
	if !isDigits(body) {
		return "", domain.NewError(domain.CodeInput, domain.ErrInvalidInput,
			"la clave de acceso solo admite dígitos", body)
	}
	return AccessKey(body + string(rune('0'+CheckDigit(body)))), nil
}

// CheckDigit calcula el dígito verificador módulo 11 con pesos 2..7 sobre la cadena invertida.
// 11 se convierte en 0 y 10 en 1.
func CheckDigit(body string) int {
	sum, factor := 0, 2
	for i := len(body) - 1; i >= 0; i-- {
		sum += int(body[i]-'0') * factor
		factor++
		if factor > 7 {
			factor = 2
		}
	}
	switch dv := 11 - sum%11; dv {
	case 11:
		return 0
	case 10:
		return 1
	default:
		return dv
	}
}

// ValidateAccessKey comprueba longitud, contenido numérico y dígito verificador.
func ValidateAccessKey(key string) error {
	if len(key) != AccessKeyLength || !isDigits(key) {
		return domain.NewError(domain.CodeInput, domain.ErrInvalidLength,
			"la clave de acceso debe tener 49 dígitos", fmt.Sprintf("recibido %q", key))
	}
	body := key[:AccessKeyBodyLength]
	if want := CheckDigit(body); int(key[AccessKeyBodyLength]-'0') != want {
		return domain.NewError(domain.CodeInput, domain.ErrInvalidInput,
			"dígito verificador de la clave de acceso inválido",
			fmt.Sprintf("esperado %d, recibido %c", want, key[AccessKeyBodyLength]))
	}
	return nil
}

// ParseAccessKey separa una clave válida en sus campos.
func ParseAccessKey(key string) (AccessKeyFields, error) {
	if err := ValidateAccessKey(key); err != nil {
		return AccessKeyFields{}, err
	}
	return AccessKeyFields{
		Date:         key[0:8],
		DocType:      key[8:10],
		RUC:          key[10:23],
		Environment:  key[23:24],
		Series:       key[24:30],
		Sequence:     key[30:39],
		NumericCode:  key[39:47],
		EmissionType: key[47:48],
	}, nil
}

var numericCodeLimit = big.NewInt(100_000_000)

// RandomNumericCode genera el código numérico de 8 dígitos (relleno con ceros).
func RandomNumericCode() (string, error) {
	n, err := rand.Int(rand.Reader, numericCodeLimit)
	if err != nil {
		return "", fmt.Errorf("sri: generar código numérico: %w", err)
	}
	return fmt.Sprintf("%08d", n.Int64()), nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
