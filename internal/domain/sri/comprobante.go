package sri

import (
	"strings"

	"github.com/shopspring/decimal"

	sricat "github.com/jhoicas/sri-comprobantes/pkg/sri"
)

// Comprobante documento estructurado que el builder convierte a XML.
type Comprobante interface {
	DocType() sricat.DocumentType
	Tributaria() *InfoTributaria
	// IssueDate fecha de emisión dd/mm/aaaa.
	IssueDate() string
}

// InfoTributaria bloque común a todos los comprobantes.
// ClaveAcceso y CodDoc los completa el pipeline; CodigoNumerico no se emite en el XML.
type InfoTributaria struct {
	Ambiente           string `json:"ambiente"`
	TipoEmision        string `json:"tipoEmision,omitempty"`
	RazonSocial        string `json:"razonSocial"`
	NombreComercial    string `json:"nombreComercial,omitempty"`
	RUC                string `json:"ruc"`
	ClaveAcceso        string `json:"claveAcceso,omitempty"`
	CodDoc             string `json:"codDoc,omitempty"`
	Estab              string `json:"estab"`
	PtoEmi             string `json:"ptoEmi"`
	Secuencial         string `json:"secuencial"`
	DirMatriz          string `json:"dirMatriz"`
	AgenteRetencion    string `json:"agenteRetencion,omitempty"`
	ContribuyenteRimpe string `json:"contribuyenteRimpe,omitempty"`
	CodigoNumerico     string `json:"codigoNumerico,omitempty"`
}

// BusinessFields campos sujetos a límites locales.
func (i *InfoTributaria) BusinessFields() BusinessFields {
	return BusinessFields{
		RazonSocial:     i.RazonSocial,
		NombreComercial: i.NombreComercial,
		DirMatriz:       i.DirMatriz,
		Secuencial:      i.Secuencial,
	}
}

// AccessKeyFields campos de la clave de acceso a partir de la fecha de emisión (dd/mm/aaaa).
func (i *InfoTributaria) AccessKeyFields(docType sricat.DocumentType, issueDate string) sricat.AccessKeyFields {
	emission := i.TipoEmision
	if emission == "" {
		emission = sricat.EmissionNormal
	}
	return sricat.AccessKeyFields{
		Date:         strings.ReplaceAll(issueDate, "/", ""),
		DocType:      string(docType),
		RUC:          i.RUC,
		Environment:  i.Ambiente,
		Series:       i.Estab + i.PtoEmi,
		Sequence:     i.Secuencial,
		NumericCode:  i.CodigoNumerico,
		EmissionType: emission,
	}
}

// TotalImpuesto totalConImpuestos/totalImpuesto.
type TotalImpuesto struct {
	Codigo             string           `json:"codigo"`
	CodigoPorcentaje   string           `json:"codigoPorcentaje"`
	DescuentoAdicional *decimal.Decimal `json:"descuentoAdicional,omitempty"`
	BaseImponible      decimal.Decimal  `json:"baseImponible"`
	Tarifa             *decimal.Decimal `json:"tarifa,omitempty"`
	Valor              decimal.Decimal  `json:"valor"`
	ValorDevolucionIva *decimal.Decimal `json:"valorDevolucionIva,omitempty"`
}

// Impuesto impuesto de un detalle.
type Impuesto struct {
	Codigo           string          `json:"codigo"`
	CodigoPorcentaje string          `json:"codigoPorcentaje"`
	Tarifa           decimal.Decimal `json:"tarifa"`
	BaseImponible    decimal.Decimal `json:"baseImponible"`
	Valor            decimal.Decimal `json:"valor"`
}

// Pago forma de pago. UnidadTiempo por defecto "dias" cuando no es efectivo (01).
type Pago struct {
	FormaPago    string          `json:"formaPago"`
	Total        decimal.Decimal `json:"total"`
	Plazo        string          `json:"plazo,omitempty"`
	UnidadTiempo string          `json:"unidadTiempo,omitempty"`
}

type DetAdicional struct {
	Nombre string `json:"nombre"`
	Valor  string `json:"valor"`
}

// CampoAdicional infoAdicional/campoAdicional; el orden se conserva.
type CampoAdicional struct {
	Nombre string `json:"nombre"`
	Valor  string `json:"valor"`
}

// ═══════════════════════════════════════════════════════════════════════════════
// Factura (01)
// ═══════════════════════════════════════════════════════════════════════════════

type InfoFactura struct {
	FechaEmision                string          `json:"fechaEmision"`
	DirEstablecimiento          string          `json:"dirEstablecimiento,omitempty"`
	ContribuyenteEspecial       string          `json:"contribuyenteEspecial,omitempty"`
	ObligadoContabilidad        string          `json:"obligadoContabilidad,omitempty"`
	ComercioExterior            string          `json:"comercioExterior,omitempty"`
	TipoIdentificacionComprador string          `json:"tipoIdentificacionComprador"`
	GuiaRemision                string          `json:"guiaRemision,omitempty"`
	RazonSocialComprador        string          `json:"razonSocialComprador"`
	IdentificacionComprador     string          `json:"identificacionComprador"`
	DireccionComprador          string          `json:"direccionComprador,omitempty"`
	TotalSinImpuestos           decimal.Decimal `json:"totalSinImpuestos"`
	TotalDescuento              decimal.Decimal `json:"totalDescuento"`
	TotalConImpuestos           []TotalImpuesto `json:"totalConImpuestos"`
	Propina                     decimal.Decimal `json:"propina"`
	ImporteTotal                decimal.Decimal `json:"importeTotal"`
	Moneda                      string          `json:"moneda,omitempty"`
	Pagos                       []Pago          `json:"pagos,omitempty"`
}

type DetalleFactura struct {
	CodigoPrincipal        string          `json:"codigoPrincipal,omitempty"`
	CodigoAuxiliar         string          `json:"codigoAuxiliar,omitempty"`
	Descripcion            string          `json:"descripcion"`
	UnidadMedida           string          `json:"unidadMedida,omitempty"`
	Cantidad               decimal.Decimal `json:"cantidad"`
	PrecioUnitario         decimal.Decimal `json:"precioUnitario"`
	Descuento              decimal.Decimal `json:"descuento"`
	PrecioTotalSinImpuesto decimal.Decimal `json:"precioTotalSinImpuesto"`
	DetallesAdicionales    []DetAdicional  `json:"detallesAdicionales,omitempty"`
	Impuestos              []Impuesto      `json:"impuestos"`
}

// Factura comprobante tipo 01.
type Factura struct {
	InfoTributaria InfoTributaria   `json:"infoTributaria"`
	InfoFactura    InfoFactura      `json:"infoFactura"`
	Detalles       []DetalleFactura `json:"detalles"`
	InfoAdicional  []CampoAdicional `json:"infoAdicional,omitempty"`
}

func (f *Factura) DocType() sricat.DocumentType { return sricat.DocFactura }
func (f *Factura) Tributaria() *InfoTributaria { return &f.InfoTributaria }
func (f *Factura) IssueDate() string { return f.InfoFactura.FechaEmision }

// ═══════════════════════════════════════════════════════════════════════════════
// Nota de crédito (04)
// ═══════════════════════════════════════════════════════════════════════════════

type InfoNotaCredito struct {
	FechaEmision                string          `json:"fechaEmision"`
	DirEstablecimiento          string          `json:"dirEstablecimiento,omitempty"`
	TipoIdentificacionComprador string          `json:"tipoIdentificacionComprador"`
	RazonSocialComprador        string          `json:"razonSocialComprador"`
	IdentificacionComprador     string          `json:"identificacionComprador"`
	ContribuyenteEspecial       string          `json:"contribuyenteEspecial,omitempty"`
	ObligadoContabilidad        string          `json:"obligadoContabilidad,omitempty"`
	Rise                        string          `json:"rise,omitempty"`
	CodDocModificado            string          `json:"codDocModificado"`
	NumDocModificado            string          `json:"numDocModificado"`
	FechaEmisionDocSustento     string          `json:"fechaEmisionDocSustento"`
	TotalSinImpuestos           decimal.Decimal `json:"totalSinImpuestos"`
	ValorModificacion           decimal.Decimal `json:"valorModificacion"`
	Moneda                      string          `json:"moneda,omitempty"`
	TotalConImpuestos           []TotalImpuesto `json:"totalConImpuestos"`
	Motivo                      string          `json:"motivo"`
}

type DetalleNotaCredito struct {
	CodigoInterno          string          `json:"codigoInterno,omitempty"`
	CodigoAdicional        string          `json:"codigoAdicional,omitempty"`
	Descripcion            string          `json:"descripcion"`
	Cantidad               decimal.Decimal `json:"cantidad"`
	PrecioUnitario         decimal.Decimal `json:"precioUnitario"`
	Descuento              decimal.Decimal `json:"descuento"`
	PrecioTotalSinImpuesto decimal.Decimal `json:"precioTotalSinImpuesto"`
	Impuestos              []Impuesto      `json:"impuestos"`
}

// NotaCredito comprobante tipo 04.
type NotaCredito struct {
	InfoTributaria  InfoTributaria       `json:"infoTributaria"`
	InfoNotaCredito InfoNotaCredito      `json:"infoNotaCredito"`
	Detalles        []DetalleNotaCredito `json:"detalles"`
	InfoAdicional   []CampoAdicional     `json:"infoAdicional,omitempty"`
}

func (n *NotaCredito) DocType() sricat.DocumentType { return sricat.DocNotaCredito }
func (n *NotaCredito) Tributaria() *InfoTributaria { return &n.InfoTributaria }
func (n *NotaCredito) IssueDate() string { return n.InfoNotaCredito.FechaEmision }

// ═══════════════════════════════════════════════════════════════════════════════
// Nota de débito (05)
// ═══════════════════════════════════════════════════════════════════════════════

type InfoNotaDebito struct {
	FechaEmision                string          `json:"fechaEmision"`
	DirEstablecimiento          string          `json:"dirEstablecimiento,omitempty"`
	TipoIdentificacionComprador string          `json:"tipoIdentificacionComprador"`
	RazonSocialComprador        string          `json:"razonSocialComprador"`
	IdentificacionComprador     string          `json:"identificacionComprador"`
	ContribuyenteEspecial       string          `json:"contribuyenteEspecial,omitempty"`
	ObligadoContabilidad        string          `json:"obligadoContabilidad,omitempty"`
	Rise                        string          `json:"rise,omitempty"`
	CodDocModificado            string          `json:"codDocModificado"`
	NumDocModificado            string          `json:"numDocModificado"`
	FechaEmisionDocSustento     string          `json:"fechaEmisionDocSustento"`
	TotalSinImpuestos           decimal.Decimal `json:"totalSinImpuestos"`
	Impuestos                   []Impuesto      `json:"impuestos"`
	ValorTotal                  decimal.Decimal `json:"valorTotal"`
	Pagos                       []Pago          `json:"pagos,omitempty"`
}

// Motivo razón y valor de un cargo de la nota de débito.
type Motivo struct {
	Razon string          `json:"razon"`
	Valor decimal.Decimal `json:"valor"`
}

// NotaDebito comprobante tipo 05.
type NotaDebito struct {
	InfoTributaria InfoTributaria   `json:"infoTributaria"`
	InfoNotaDebito InfoNotaDebito   `json:"infoNotaDebito"`
	Motivos        []Motivo         `json:"motivos"`
	InfoAdicional  []CampoAdicional `json:"infoAdicional,omitempty"`
}

func (n *NotaDebito) DocType() sricat.DocumentType { return sricat.DocNotaDebito }
func (n *NotaDebito) Tributaria() *InfoTributaria { return &n.InfoTributaria }
func (n *NotaDebito) IssueDate() string { return n.InfoNotaDebito.FechaEmision }

// ═══════════════════════════════════════════════════════════════════════════════
// Guía de remisión (06)
// ═══════════════════════════════════════════════════════════════════════════════

// InfoGuiaRemision el XML no lleva fecha de emisión; FechaEmision solo alimenta la clave
// de acceso y, si falta, se usa FechaIniTransporte.
type InfoGuiaRemision struct {
	FechaEmision                    string `json:"fechaEmision,omitempty"`
	DirEstablecimiento              string `json:"dirEstablecimiento,omitempty"`
	DirPartida                      string `json:"dirPartida"`
	RazonSocialTransportista        string `json:"razonSocialTransportista"`
	TipoIdentificacionTransportista string `json:"tipoIdentificacionTransportista"`
	RucTransportista                string `json:"rucTransportista"`
	Rise                            string `json:"rise,omitempty"`
	ObligadoContabilidad            string `json:"obligadoContabilidad,omitempty"`
	ContribuyenteEspecial           string `json:"contribuyenteEspecial,omitempty"`
	FechaIniTransporte              string `json:"fechaIniTransporte"`
	FechaFinTransporte              string `json:"fechaFinTransporte"`
	Placa                           string `json:"placa"`
}

type DetalleGuia struct {
	CodigoInterno       string          `json:"codigoInterno,omitempty"`
	CodigoAdicional     string          `json:"codigoAdicional,omitempty"`
	Descripcion         string          `json:"descripcion"`
	Cantidad            decimal.Decimal `json:"cantidad"`
	DetallesAdicionales []DetAdicional  `json:"detallesAdicionales,omitempty"`
}

type Destinatario struct {
	IdentificacionDestinatario string        `json:"identificacionDestinatario,omitempty"`
	RazonSocialDestinatario    string        `json:"razonSocialDestinatario"`
	DirDestinatario            string        `json:"dirDestinatario"`
	MotivoTraslado             string        `json:"motivoTraslado"`
	DocAduaneroUnico           string        `json:"docAduaneroUnico,omitempty"`
	CodEstabDestino            string        `json:"codEstabDestino,omitempty"`
	Ruta                       string        `json:"ruta,omitempty"`
	CodDocSustento             string        `json:"codDocSustento,omitempty"`
	NumDocSustento             string        `json:"numDocSustento,omitempty"`
	NumAutDocSustento          string        `json:"numAutDocSustento,omitempty"`
	FechaEmisionDocSustento    string        `json:"fechaEmisionDocSustento,omitempty"`
	Detalles                   []DetalleGuia `json:"detalles"`
}

// GuiaRemision comprobante tipo 06.
type GuiaRemision struct {
	InfoTributaria   InfoTributaria   `json:"infoTributaria"`
	InfoGuiaRemision InfoGuiaRemision `json:"infoGuiaRemision"`
	Destinatarios    []Destinatario   `json:"destinatarios"`
	InfoAdicional    []CampoAdicional `json:"infoAdicional,omitempty"`
}

func (g *GuiaRemision) DocType() sricat.DocumentType { return sricat.DocGuiaRemision }
func (g *GuiaRemision) Tributaria() *InfoTributaria { return &g.InfoTributaria }

func (g *GuiaRemision) IssueDate() string {
	if g.InfoGuiaRemision.FechaEmision != "" {
		return g.InfoGuiaRemision.FechaEmision
	}
	return g.InfoGuiaRemision.FechaIniTransporte
}

// ═══════════════════════════════════════════════════════════════════════════════
// Comprobante de retención (07, versión 2.0.0)
// ═══════════════════════════════════════════════════════════════════════════════

type InfoCompRetencion struct {
	FechaEmision                     string `json:"fechaEmision"`
	DirEstablecimiento               string `json:"dirEstablecimiento,omitempty"`
	ContribuyenteEspecial            string `json:"contribuyenteEspecial,omitempty"`
	ObligadoContabilidad             string `json:"obligadoContabilidad,omitempty"`
	TipoIdentificacionSujetoRetenido string `json:"tipoIdentificacionSujetoRetenido"`
	TipoSujetoRetenido               string `json:"tipoSujetoRetenido,omitempty"`
	ParteRel                         string `json:"parteRel"`
	RazonSocialSujetoRetenido        string `json:"razonSocialSujetoRetenido"`
	IdentificacionSujetoRetenido     string `json:"identificacionSujetoRetenido"`
	// PeriodoFiscal mm/aaaa.
	PeriodoFiscal string `json:"periodoFiscal"`
}

// ImpuestoDocSustento impuesto del documento que sustenta la retención.
type ImpuestoDocSustento struct {
	CodImpuestoDocSustento string          `json:"codImpuestoDocSustento"`
	CodigoPorcentaje       string          `json:"codigoPorcentaje"`
	BaseImponible          decimal.Decimal `json:"baseImponible"`
	Tarifa                 decimal.Decimal `json:"tarifa"`
	ValorImpuesto          decimal.Decimal `json:"valorImpuesto"`
}

// Retencion valor retenido. Si PorcentajeRetener o ValorRetenido faltan se toman del
// catálogo de códigos de retención.
type Retencion struct {
	Codigo            string           `json:"codigo"`
	CodigoRetencion   string           `json:"codigoRetencion"`
	BaseImponible     decimal.Decimal  `json:"baseImponible"`
	PorcentajeRetener *decimal.Decimal `json:"porcentajeRetener,omitempty"`
	ValorRetenido     *decimal.Decimal `json:"valorRetenido,omitempty"`
}

// Resolve entrada del catálogo con el porcentaje efectivo y el valor retenido. ok es false
// si el código no existe para el impuesto.
func (r Retencion) Resolve() (code sricat.RetentionCode, valor decimal.Decimal, ok bool) {
	code, ok = sricat.LookupRetention(r.Codigo, r.CodigoRetencion)
	if !ok {
		return code, decimal.Zero, false
	}
	if r.PorcentajeRetener != nil {
		code.Percentage = *r.PorcentajeRetener
	}
	valor = code.RetainedValue(r.BaseImponible)
	if r.ValorRetenido != nil {
		valor = *r.ValorRetenido
	}
	return code, valor, true
}

type PagoRetencion struct {
	FormaPago string          `json:"formaPago"`
	Total     decimal.Decimal `json:"total"`
}

type DocSustento struct {
	CodSustento             string                `json:"codSustento"`
	CodDocSustento          string                `json:"codDocSustento"`
	NumDocSustento          string                `json:"numDocSustento"`
	FechaEmisionDocSustento string                `json:"fechaEmisionDocSustento"`
	FechaRegistroContable   string                `json:"fechaRegistroContable,omitempty"`
	NumAutDocSustento       string                `json:"numAutDocSustento,omitempty"`
	PagoLocExt              string                `json:"pagoLocExt"`
	TipoRegi                string                `json:"tipoRegi,omitempty"`
	PaisEfecPago            string                `json:"paisEfecPago,omitempty"`
	AplicConvDobTrib        string                `json:"aplicConvDobTrib,omitempty"`
	PagExtSujRetNorLeg      string                `json:"pagExtSujRetNorLeg,omitempty"`
	PagoRegFis              string                `json:"pagoRegFis,omitempty"`
	TotalSinImpuestos       decimal.Decimal       `json:"totalSinImpuestos"`
	ImporteTotal            decimal.Decimal       `json:"importeTotal"`
	Impuestos               []ImpuestoDocSustento `json:"impuestosDocSustento"`
	Retenciones             []Retencion           `json:"retenciones"`
	Pagos                   []PagoRetencion       `json:"pagos"`
}

// ComprobanteRetencion comprobante tipo 07.
type ComprobanteRetencion struct {
	InfoTributaria    InfoTributaria    `json:"infoTributaria"`
	InfoCompRetencion InfoCompRetencion `json:"infoCompRetencion"`
	DocsSustento      []DocSustento     `json:"docsSustento"`
	InfoAdicional     []CampoAdicional  `json:"infoAdicional,omitempty"`
}

func (r *ComprobanteRetencion) DocType() sricat.DocumentType { return sricat.DocRetencion }
func (r *ComprobanteRetencion) Tributaria() *InfoTributaria { return &r.InfoTributaria }
func (r *ComprobanteRetencion) IssueDate() string { return r.InfoCompRetencion.FechaEmision }

// TotalRetenido suma de lo retenido en todos los documentos sustento; los códigos
// desconocidos no suman.
func (r *ComprobanteRetencion) TotalRetenido() decimal.Decimal {
	total := decimal.Zero
	for _, ds := range r.DocsSustento {
		for _, ret := range ds.Retenciones {
			if _, v, ok := ret.Resolve(); ok {
				total = total.Add(v)
			}
		}
	}
	return total
}
