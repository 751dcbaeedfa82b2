// Package sri contiene la clave de acceso, catálogos y validaciones básicas de los
// comprobantes electrónicos del SRI (Ecuador), según la ficha técnica vigente.
package sri

import "fmt"

// =============================================================================
// Tabla 3 - Tipos de comprobante
// =============================================================================

// DocumentType código de tipo de comprobante (codDoc).
type DocumentType string

const (
	DocFactura      DocumentType = "01"
	DocNotaCredito  DocumentType = "04"
	DocNotaDebito   DocumentType = "05"
	DocGuiaRemision DocumentType = "06"
	DocRetencion    DocumentType = "07"
)

// DocumentSpec asociación tipo de comprobante → raíz XML, bloque de información y esquema.
type DocumentSpec struct {
	Type      DocumentType
	Name      string
	RootTag   string
	InfoBlock string // infoFactura, infoNotaCredito, ...
	Version   string
	Schema    string // nombre del XSD publicado por el SRI
}

var documentSpecs = map[DocumentType]DocumentSpec{
	DocFactura:      {DocFactura, "Factura", "factura", "infoFactura", "1.1.0", "factura_v2.1.0.xsd"},
	DocNotaCredito:  {DocNotaCredito, "Nota de Crédito", "notaCredito", "infoNotaCredito", "1.1.0", "notaCredito_v1.1.0.xsd"},
	DocNotaDebito:   {DocNotaDebito, "Nota de Débito", "notaDebito", "infoNotaDebito", "1.0.0", "notaDebito_v1.0.0.xsd"},
	DocGuiaRemision: {DocGuiaRemision, "Guía de Remisión", "guiaRemision", "infoGuiaRemision", "1.1.0", "guiaRemision_v1.1.0.xsd"},
	DocRetencion:    {DocRetencion, "Comprobante de Retención", "comprobanteRetencion", "infoCompRetencion", "2.0.0", "comprobanteRetencion_v2.0.0.xsd"},
}

// LookupDocument devuelve la especificación del tipo de comprobante.
func LookupDocument(t DocumentType) (DocumentSpec, bool) {
	s, ok := documentSpecs[t]
	return s, ok
}

// DocumentByRootTag resuelve el tipo de comprobante a partir del elemento raíz del XML.
func DocumentByRootTag(tag string) (DocumentSpec, bool) {
	for _, s := range documentSpecs {
		if s.RootTag == tag {
			return s, true
		}
	}
	return DocumentSpec{}, false
}

// =============================================================================
// Ambiente y tipo de emisión
// =============================================================================

// Environment ambiente del SRI.
type Environment string

const (
	EnvPruebas    Environment = "1"
	EnvProduccion Environment = "2"
)

// ParseEnvironment acepta el código ("1"/"2") o el nombre ("pruebas"/"produccion").
func ParseEnvironment(s string) (Environment, error) {
	switch s {
	case "1", "pruebas", "test":
		return EnvPruebas, nil
	case "2", "produccion", "producción", "prod":
		return EnvProduccion, nil
	}
	return "", fmt.Errorf("sri: ambiente desconocido %q (usar 1=pruebas o 2=producción)", s)
}

// Name nombre del ambiente tal como lo usa el SRI.
func (e Environment) Name() string {
	if e == EnvProduccion {
		return "PRODUCCIÓN"
	}
	return "PRUEBAS"
}

// EmissionNormal único tipo de emisión vigente.
const EmissionNormal = "1"

// =============================================================================
// Tabla 6 - Tipos de identificación del comprador
// =============================================================================

const (
	IdentificationRUC             = "04"
	IdentificationCedula          = "05"
	IdentificationPasaporte       = "06"
	IdentificationConsumidorFinal = "07"
	IdentificationExterior        = "08"
)

// ConsumidorFinalRUC identificación genérica del consumidor final.
const ConsumidorFinalRUC = "9999999999999"

// ValidIdentificationTypes tipos de identificación válidos.
var ValidIdentificationTypes = map[string]string{
	IdentificationRUC:             "RUC",
	IdentificationCedula:          "Cédula de Identidad",
	IdentificationPasaporte:       "Pasaporte",
	IdentificationConsumidorFinal: "Consumidor Final",
	IdentificationExterior:        "Identificación del Exterior",
}

// =============================================================================
// Tabla 24 - Formas de pago
// =============================================================================

const (
	PaymentEfectivo          = "01"
	PaymentCompensacion      = "15"
	PaymentTarjetaDebito     = "16"
	PaymentDineroElectronico = "17"
	PaymentTarjetaPrepago    = "18"
	PaymentTarjetaCredito    = "19"
	PaymentOtrosFinanciero   = "20"
	PaymentEndosoTitulos     = "21"
)

// ValidPaymentMethods formas de pago con su descripción.
var ValidPaymentMethods = map[string]string{
	PaymentEfectivo:          "Sin utilización del sistema financiero",
	PaymentCompensacion:      "Compensación de deudas",
	PaymentTarjetaDebito:     "Tarjeta de débito",
	PaymentDineroElectronico: "Dinero electrónico",
	PaymentTarjetaPrepago:    "Tarjeta prepago",
	PaymentTarjetaCredito:    "Tarjeta de crédito",
	PaymentOtrosFinanciero:   "Otros con utilización del sistema financiero",
	PaymentEndosoTitulos:     "Endoso de títulos",
}

// =============================================================================
// Tabla 16/17 - Impuestos
// =============================================================================

const (
	TaxIVA = "2"
	TaxICE = "3"
)

// Códigos de porcentaje de IVA.
const (
	IVAZero     = "0"
	IVA12       = "2"
	IVA14       = "3"
	IVA15       = "4"
	IVA5        = "5"
	IVANoObjeto = "6"
	IVAExento   = "7"
)
