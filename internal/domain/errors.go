package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound     = errors.New("recurso no encontrado")
	ErrInvalidInput = errors.New("entrada inválida")
	ErrDuplicate    = errors.New("recurso duplicado")
	ErrUnauthorized = errors.New("no autorizado")
	ErrForbidden    = errors.New("acceso denegado")

	// Clave de acceso y XML de entrada.
	ErrInvalidLength  = errors.New("la base de la clave de acceso debe tener 48 dígitos")
	ErrMalformedInput = errors.New("XML mal formado")

	// Certificado PKCS#12.
	ErrBadCredential          = errors.New("no se pudo abrir el certificado .p12 con la contraseña indicada")
	ErrIncompleteBundle       = errors.New("el certificado .p12 no contiene certificado y llave privada")
	ErrCertificateExpired     = errors.New("el certificado de firma está caducado")
	ErrCertificateNotYetValid = errors.New("el certificado de firma aún no es válido")

	ErrSigningFailure       = errors.New("falló la operación criptográfica de firma")
	ErrCommunicationFailure = errors.New("error de comunicación con el SRI")
	ErrResponseParseFailure = errors.New("respuesta del SRI no interpretable")
	ErrRejected             = errors.New("el SRI devolvió el comprobante")
	ErrSchemaViolation      = errors.New("el XML no cumple el esquema del comprobante")
)

// ErrorCode clasifica un error según cómo debe tratarlo quien llama.
type ErrorCode string

const (
	CodeInput         ErrorCode = "input"
	CodeCredential    ErrorCode = "credential"
	CodeSigning       ErrorCode = "signing"
	CodeCommunication ErrorCode = "communication"
	CodeRejection     ErrorCode = "rejection"
	CodeSchema        ErrorCode = "schema"
	CodeNotFound      ErrorCode = "not_found"
	CodeInternal      ErrorCode = "internal"
)

// Coded lo implementan los errores que conocen su clasificación.
type Coded interface {
	error
	Code() ErrorCode
}

// Error es el error estructurado del dominio: código, sentinel comparable con errors.Is,
// detalle por campo y causa opcional.
type Error struct {
	code     ErrorCode
	sentinel error
	message  string
	details  []string
	wrapped  error
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.message)
	if len(e.details) > 0 {
		sb.WriteString(": ")
		sb.WriteString(strings.Join(e.details, "; "))
	}
	if e.wrapped != nil {
		fmt.Fprintf(&sb, ": %v", e.wrapped)
	}
	return sb.String()
}

func (e *Error) Code() ErrorCode { return e.code }

// Details devuelve el detalle por campo (copia).
func (e *Error) Details() []string { return append([]string(nil), e.details...) }

// Unwrap expone tanto el sentinel como la causa para errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.sentinel != nil {
		out = append(out, e.sentinel)
	}
	if e.wrapped != nil {
		out = append(out, e.wrapped)
	}
	return out
}

// NewError crea un error clasificado. msg vacío usa el texto del sentinel.
func NewError(code ErrorCode, sentinel error, msg string, details ...string) *Error {
	if msg == "" && sentinel != nil {
		msg = sentinel.Error()
	}
	return &Error{code: code, sentinel: sentinel, message: msg, details: details}
}

// WrapError crea un error clasificado que conserva la causa original.
func WrapError(code ErrorCode, sentinel, err error, msg string) *Error {
	e := NewError(code, sentinel, msg)
	e.wrapped = err
	return e
}

// CodeOf devuelve el código del primer error clasificado de la cadena, o CodeInternal.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var c Coded
	if errors.As(err, &c) {
		return c.Code()
	}
	if errors.Is(err, ErrNotFound) {
		return CodeNotFound
	}
	return CodeInternal
}

// Retryable indica si un nuevo intento de la misma llamada remota tiene sentido.
// Solo los fallos de comunicación lo son, salvo una respuesta ilegible; el resto es fatal
// para el documento.
func Retryable(err error) bool {
	return CodeOf(err) == CodeCommunication && !errors.Is(err, ErrResponseParseFailure)
}
