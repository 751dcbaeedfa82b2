package dto

import (
	"time"

	"github.com/shopspring/decimal"

	domsri "github.com/jhoicas/sri-comprobantes/internal/domain/sri"
)

// AccessKeyRequest body para POST /api/access-keys.
// FechaEmision en formato dd/mm/aaaa; CodigoNumerico vacío se genera al azar.
type AccessKeyRequest struct {
	FechaEmision    string `json:"fechaEmision"`
	TipoComprobante string `json:"tipoComprobante"`
	RUC             string `json:"ruc"`
	Ambiente        string `json:"ambiente"`
	Estab           string `json:"estab"`
	PtoEmi          string `json:"ptoEmi"`
	Secuencial      string `json:"secuencial"`
	CodigoNumerico  string `json:"codigoNumerico,omitempty"`
	TipoEmision     string `json:"tipoEmision,omitempty"`
}

// AccessKeyResponse clave generada.
type AccessKeyResponse struct {
	ClaveAcceso       string `json:"claveAcceso"`
	CodigoNumerico    string `json:"codigoNumerico"`
	DigitoVerificador int    `json:"digitoVerificador"`
}

// Credencial PKCS#12 en base64. Si P12 va vacío se usa el certificado configurado en el servidor.
type Credencial struct {
	P12       []byte `json:"p12,omitempty"`
	Password  string `json:"password,omitempty"`
	Algoritmo string `json:"algoritmo,omitempty"` // RSA-SHA1 | RSA-SHA256 | ECDSA-SHA1 | ECDSA-SHA256
}

// SignRequest body para POST /api/comprobantes/sign.
type SignRequest struct {
	XML string `json:"xml"`
	Credencial
}

// SignResponse XML firmado (base64 en JSON).
type SignResponse struct {
	ClaveAcceso string `json:"claveAcceso,omitempty"`
	IDFirma     string `json:"idFirma"`
	Algoritmo   string `json:"algoritmo"`
	XML         []byte `json:"xml"`
}

// ProcessComprobanteRequest body para POST /api/comprobantes.
// Debe venir exactamente un comprobante estructurado o XML.
type ProcessComprobanteRequest struct {
	Factura              *domsri.Factura              `json:"factura,omitempty"`
	NotaCredito          *domsri.NotaCredito          `json:"notaCredito,omitempty"`
	NotaDebito           *domsri.NotaDebito           `json:"notaDebito,omitempty"`
	GuiaRemision         *domsri.GuiaRemision         `json:"guiaRemision,omitempty"`
	ComprobanteRetencion *domsri.ComprobanteRetencion `json:"comprobanteRetencion,omitempty"`
	XML                  string                       `json:"xml,omitempty"`
	TipoComprobante      string                       `json:"tipoComprobante,omitempty"`
	Credencial
}

// Documents comprobantes estructurados presentes en el body.
func (r *ProcessComprobanteRequest) Documents() []domsri.Comprobante {
	var docs []domsri.Comprobante
	if r.Factura != nil {
		docs = append(docs, r.Factura)
	}
	if r.NotaCredito != nil {
		docs = append(docs, r.NotaCredito)
	}
	if r.NotaDebito != nil {
		docs = append(docs, r.NotaDebito)
	}
	if r.GuiaRemision != nil {
		docs = append(docs, r.GuiaRemision)
	}
	if r.ComprobanteRetencion != nil {
		docs = append(docs, r.ComprobanteRetencion)
	}
	return docs
}

// ComprobanteResponse registro persistido de un comprobante.
type ComprobanteResponse struct {
	ID                 string           `json:"id"`
	ClaveAcceso        string           `json:"claveAcceso"`
	TipoComprobante    string           `json:"tipoComprobante"`
	RUC                string           `json:"ruc"`
	Ambiente           string           `json:"ambiente"`
	Numero             string           `json:"numero"`
	FechaEmision       string           `json:"fechaEmision"`
	Total              decimal.Decimal  `json:"total"`
	Estado             string           `json:"estado"`
	NumeroAutorizacion string           `json:"numeroAutorizacion,omitempty"`
	FechaAutorizacion  string           `json:"fechaAutorizacion,omitempty"`
	Mensajes           []domsri.Message `json:"mensajes"`
	CreadoEn           time.Time        `json:"creadoEn"`
	ActualizadoEn      time.Time        `json:"actualizadoEn"`
}

// RefreshResponse resultado de POST /api/comprobantes/refresh.
type RefreshResponse struct {
	Actualizados int `json:"actualizados"`
}
