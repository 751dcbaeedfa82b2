package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados de un comprobante en su ciclo con el SRI.
const (
	ComprobanteStatusSigned        = "FIRMADO"       // XML firmado, aún no enviado o envío fallido
	ComprobanteStatusReceived      = "RECIBIDA"      // Recepción aceptada, autorización pendiente
	ComprobanteStatusReturned      = "DEVUELTA"      // Rechazado en recepción
	ComprobanteStatusAuthorized    = "AUTORIZADO"
	ComprobanteStatusNotAuthorized = "NO AUTORIZADO"
)

// Comprobante registro persistido de un intento de emisión, identificado por su clave de acceso.
type Comprobante struct {
	ID                  string
	AccessKey           string
	DocType             string
	RUC                 string
	Environment         string
	Establishment       string
	EmissionPoint       string
	Sequence            string
	IssueDate           time.Time
	Total               decimal.Decimal
	Status              string
	XMLSigned           string
	AuthorizationNumber string
	AuthorizationDate   string
	AuthorizedXML       string
	Messages            string // JSON con los mensajes del SRI, textuales
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Final indica que el SRI ya tomó una decisión sobre el comprobante.
func (c *Comprobante) Final() bool {
	switch c.Status {
	case ComprobanteStatusAuthorized, ComprobanteStatusNotAuthorized, ComprobanteStatusReturned:
		return true
	}
	return false
}
