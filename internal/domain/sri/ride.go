package sri

import (
	"github.com/shopspring/decimal"

	sricat "github.com/jhoicas/sri-comprobantes/pkg/sri"
)

// RIDE datos de la representación impresa de un comprobante autorizado.
type RIDE struct {
	DocType         sricat.DocumentType
	DocName         string
	Environment     sricat.Environment
	EmissionType    string
	RazonSocial     string
	NombreComercial string
	RUC             string
	DirMatriz       string
	DirEstab        string
	Numero          string // estab-ptoEmi-secuencial
	FechaEmision    string
	AccessKey       string

	AuthorizationNumber string
	AuthorizationDate   string

	CompradorNombre         string
	CompradorIdentificacion string

	// Notas de crédito y débito; Motivo también es el motivo de traslado de la guía.
	DocModificado      string
	FechaDocModificado string
	Motivo             string

	// Guía de remisión.
	Transportista string
	Placa         string

	// Retención (mm/aaaa).
	PeriodoFiscal string

	Lines         []RIDELine
	Subtotal      decimal.Decimal
	Descuento     decimal.Decimal
	IVA           decimal.Decimal
	Total         decimal.Decimal
	InfoAdicional []CampoAdicional
}

// RIDELine línea de detalle impresa. En una retención PrecioUnitario es la base imponible
// y Total el valor retenido.
type RIDELine struct {
	Codigo         string
	Descripcion    string
	Cantidad       decimal.Decimal
	PrecioUnitario decimal.Decimal
	Descuento      decimal.Decimal
	Total          decimal.Decimal
	DocSustento    string
	Porcentaje     decimal.Decimal
}
