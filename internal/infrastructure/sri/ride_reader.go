package sri

import (
	"strings"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/sri-comprobantes/internal/domain"
	domsri "github.com/jhoicas/sri-comprobantes/internal/domain/sri"
	"github.com/jhoicas/sri-comprobantes/internal/infrastructure/sri/signer"
	sricat "github.com/jhoicas/sri-comprobantes/pkg/sri"
)

// RIDEReader extrae del XML del comprobante los datos que se imprimen en el RIDE.
type RIDEReader struct{}

// NewRIDEReader crea el lector.
func NewRIDEReader() *RIDEReader {
	return &RIDEReader{}
}

// Read acepta el XML firmado o el devuelto por autorización; la firma se ignora.
func (r *RIDEReader) Read(xmlBytes []byte) (*domsri.RIDE, error) {
	doc := etree.NewDocument()
	doc.ReadSettings.CharsetReader = signer.CharsetReader
	if err := doc.ReadFromBytes(xmlBytes); err != nil {
		return nil, domain.WrapError(domain.CodeInput, domain.ErrMalformedInput, err, "")
	}
	root := doc.Root()
	if root == nil {
		return nil, domain.NewError(domain.CodeInput, domain.ErrMalformedInput, "", "documento sin elemento raíz")
	}
	spec, ok := sricat.DocumentByRootTag(root.Tag)
	if !ok {
		return nil, domain.NewError(domain.CodeInput, domain.ErrInvalidInput, "", "raíz <"+root.Tag+"> no es un comprobante")
	}
	it := root.SelectElement("infoTributaria")
	info := root.SelectElement(spec.InfoBlock)
	if it == nil || info == nil {
		return nil, domain.NewError(domain.CodeInput, domain.ErrInvalidInput, "", "faltan infoTributaria o "+spec.InfoBlock)
	}

	ride := &domsri.RIDE{
		DocType:                 spec.Type,
		DocName:                 spec.Name,
		Environment:             sricat.Environment(childText(it, "ambiente")),
		EmissionType:            childText(it, "tipoEmision"),
		RazonSocial:             childText(it, "razonSocial"),
		NombreComercial:         childText(it, "nombreComercial"),
		RUC:                     childText(it, "ruc"),
		DirMatriz:               childText(it, "dirMatriz"),
		DirEstab:                childText(info, "dirEstablecimiento"),
		Numero:                  childText(it, "estab") + "-" + childText(it, "ptoEmi") + "-" + childText(it, "secuencial"),
		FechaEmision:            childText(info, "fechaEmision"),
		AccessKey:               childText(it, "claveAcceso"),
		CompradorNombre:         childText(info, "razonSocialComprador"),
		CompradorIdentificacion: childText(info, "identificacionComprador"),
		DocModificado:           childText(info, "numDocModificado"),
		FechaDocModificado:      childText(info, "fechaEmisionDocSustento"),
		Motivo:                  childText(info, "motivo"),
		Subtotal:                childDecimal(info, "totalSinImpuestos"),
		Descuento:               childDecimal(info, "totalDescuento"),
	}

	switch spec.Type {
	case sricat.DocNotaCredito:
		ride.Total = childDecimal(info, "valorModificacion")
	case sricat.DocNotaDebito:
		ride.Total = childDecimal(info, "valorTotal")
	default:
		ride.Total = childDecimal(info, "importeTotal")
	}
	for _, ti := range info.FindElements("totalConImpuestos/totalImpuesto") {
		if childText(ti, "codigo") == sricat.TaxIVA {
			ride.IVA = ride.IVA.Add(childDecimal(ti, "valor"))
		}
	}
	for _, imp := range info.FindElements("impuestos/impuesto") {
		if childText(imp, "codigo") == sricat.TaxIVA {
			ride.IVA = ride.IVA.Add(childDecimal(imp, "valor"))
		}
	}

	switch spec.Type {
	case sricat.DocNotaDebito:
		readMotivos(root, ride)
	case sricat.DocGuiaRemision:
		readDestinatarios(root, info, ride)
	case sricat.DocRetencion:
		readRetenciones(root, info, ride)
	default:
		readDetalles(root, ride)
	}
	if ad := root.SelectElement("infoAdicional"); ad != nil {
		for _, c := range ad.SelectElements("campoAdicional") {
			ride.InfoAdicional = append(ride.InfoAdicional, domsri.CampoAdicional{
				Nombre: c.SelectAttrValue("nombre", ""),
				Valor:  strings.TrimSpace(c.Text()),
			})
		}
	}
	return ride, nil
}

func readDetalles(root *etree.Element, ride *domsri.RIDE) {
	for _, d := range root.FindElements("detalles/detalle") {
		codigo := childText(d, "codigoPrincipal")
		if codigo == "" {
			codigo = childText(d, "codigoInterno")
		}
		ride.Lines = append(ride.Lines, domsri.RIDELine{
			Codigo:         codigo,
			Descripcion:    childText(d, "descripcion"),
			Cantidad:       childDecimal(d, "cantidad"),
			PrecioUnitario: childDecimal(d, "precioUnitario"),
			Descuento:      childDecimal(d, "descuento"),
			Total:          childDecimal(d, "precioTotalSinImpuesto"),
		})
	}
}

// readMotivos cada motivo de la nota de débito es una línea de cantidad 1.
func readMotivos(root *etree.Element, ride *domsri.RIDE) {
	for _, m := range root.FindElements("motivos/motivo") {
		valor := childDecimal(m, "valor")
		ride.Lines = append(ride.Lines, domsri.RIDELine{
			Descripcion:    childText(m, "razon"),
			Cantidad:       decimal.NewFromInt(1),
			PrecioUnitario: valor,
			Total:          valor,
		})
	}
}

// readDestinatarios la guía no tiene comprador ni fecha de emisión: se imprimen el primer
// destinatario y la fecha de inicio del transporte.
func readDestinatarios(root, info *etree.Element, ride *domsri.RIDE) {
	ride.FechaEmision = childText(info, "fechaIniTransporte")
	ride.Transportista = childText(info, "razonSocialTransportista")
	ride.Placa = childText(info, "placa")
	for i, d := range root.FindElements("destinatarios/destinatario") {
		if i == 0 {
			ride.CompradorNombre = childText(d, "razonSocialDestinatario")
			ride.CompradorIdentificacion = childText(d, "identificacionDestinatario")
			ride.Motivo = childText(d, "motivoTraslado")
		}
		for _, det := range d.FindElements("detalles/detalle") {
			ride.Lines = append(ride.Lines, domsri.RIDELine{
				Codigo:      childText(det, "codigoInterno"),
				Descripcion: childText(det, "descripcion"),
				Cantidad:    childDecimal(det, "cantidad"),
			})
		}
	}
}

// readRetenciones una línea por retención; Subtotal suma las bases y Total lo retenido.
func readRetenciones(root, info *etree.Element, ride *domsri.RIDE) {
	ride.CompradorNombre = childText(info, "razonSocialSujetoRetenido")
	ride.CompradorIdentificacion = childText(info, "identificacionSujetoRetenido")
	ride.PeriodoFiscal = childText(info, "periodoFiscal")
	ride.Subtotal = decimal.Zero
	ride.Total = decimal.Zero
	for _, ds := range root.FindElements("docsSustento/docSustento") {
		numDoc := childText(ds, "numDocSustento")
		for _, r := range ds.FindElements("retenciones/retencion") {
			codigo := childText(r, "codigoRetencion")
			descripcion := codigo
			if c, ok := sricat.LookupRetention(childText(r, "codigo"), codigo); ok {
				descripcion = c.Name
			}
			line := domsri.RIDELine{
				Codigo:         codigo,
				Descripcion:    descripcion,
				DocSustento:    numDoc,
				Porcentaje:     childDecimal(r, "porcentajeRetener"),
				PrecioUnitario: childDecimal(r, "baseImponible"),
				Total:          childDecimal(r, "valorRetenido"),
			}
			ride.Subtotal = ride.Subtotal.Add(line.PrecioUnitario)
			ride.Total = ride.Total.Add(line.Total)
			ride.Lines = append(ride.Lines, line)
		}
	}
}

func childText(el *etree.Element, tag string) string {
	c := el.SelectElement(tag)
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c.Text())
}

// childDecimal cero si falta o no es numérico.
func childDecimal(el *etree.Element, tag string) decimal.Decimal {
	d, err := decimal.NewFromString(childText(el, tag))
	if err != nil {
		return decimal.Zero
	}
	return d
}
