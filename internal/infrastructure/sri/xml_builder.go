package sri

import (
	"fmt"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/sri-comprobantes/internal/domain"
	domsri "github.com/jhoicas/sri-comprobantes/internal/domain/sri"
	sricat "github.com/jhoicas/sri-comprobantes/pkg/sri"
)

// field elemento simple en el orden exigido por el XSD. Los opcionales vacíos no se emiten.
type field struct {
	tag     string
	value   string
	present bool
}

func req(tag, value string) field { return field{tag: tag, value: value, present: true} }
func opt(tag, value string) field { return field{tag: tag, value: value, present: value != ""} }

func money(d decimal.Decimal) string { return d.StringFixed(2) }
func qty(d decimal.Decimal) string   { return d.StringFixed(6) }

func optMoney(tag string, d *decimal.Decimal) field {
	if d == nil {
		return field{tag: tag}
	}
	return req(tag, money(*d))
}

func appendFields(parent *etree.Element, fields ...field) {
	for _, f := range fields {
		if f.present {
			parent.CreateElement(f.tag).SetText(f.value)
		}
	}
}

// XMLBuilder genera el XML (sin firma) de los cinco tipos de comprobante.
type XMLBuilder struct{}

// NewXMLBuilder crea el servicio.
func NewXMLBuilder() *XMLBuilder {
	return &XMLBuilder{}
}

// Build despacha por tipo de comprobante.
func (b *XMLBuilder) Build(c domsri.Comprobante) ([]byte, error) {
	switch doc := c.(type) {
	case *domsri.Factura:
		return b.BuildFactura(doc)
	case *domsri.NotaCredito:
		return b.BuildNotaCredito(doc)
	case *domsri.NotaDebito:
		return b.BuildNotaDebito(doc)
	case *domsri.GuiaRemision:
		return b.BuildGuiaRemision(doc)
	case *domsri.ComprobanteRetencion:
		return b.BuildRetencion(doc)
	case nil:
		return nil, domain.NewError(domain.CodeInput, domain.ErrInvalidInput, "", "comprobante vacío")
	}
	return nil, domain.NewError(domain.CodeInput, domain.ErrInvalidInput, "",
		fmt.Sprintf("no se genera XML para el tipo %s; envíe el XML ya construido", c.DocType()))
}

// BuildFactura genera factura v1.1.0.
func (b *XMLBuilder) BuildFactura(f *domsri.Factura) ([]byte, error) {
	if f == nil || len(f.Detalles) == 0 {
		return nil, domain.NewError(domain.CodeInput, domain.ErrInvalidInput, "", "la factura requiere al menos un detalle")
	}
	doc, root, err := newComprobante(sricat.DocFactura, &f.InfoTributaria)
	if err != nil {
		return nil, err
	}

	info := root.CreateElement("infoFactura")
	i := f.InfoFactura
	appendFields(info,
		req("fechaEmision", i.FechaEmision),
		opt("dirEstablecimiento", i.DirEstablecimiento),
		opt("contribuyenteEspecial", i.ContribuyenteEspecial),
		opt("obligadoContabilidad", i.ObligadoContabilidad),
		opt("comercioExterior", i.ComercioExterior),
		req("tipoIdentificacionComprador", i.TipoIdentificacionComprador),
		opt("guiaRemision", i.GuiaRemision),
		req("razonSocialComprador", i.RazonSocialComprador),
		req("identificacionComprador", i.IdentificacionComprador),
		opt("direccionComprador", i.DireccionComprador),
		req("totalSinImpuestos", money(i.TotalSinImpuestos)),
		req("totalDescuento", money(i.TotalDescuento)),
	)
	totals := info.CreateElement("totalConImpuestos")
	for _, t := range i.TotalConImpuestos {
		descuento := t.DescuentoAdicional
		if descuento == nil {
			zero := decimal.Zero
			descuento = &zero
		}
		appendFields(totals.CreateElement("totalImpuesto"),
			req("codigo", t.Codigo),
			req("codigoPorcentaje", t.CodigoPorcentaje),
			optMoney("descuentoAdicional", descuento),
			req("baseImponible", money(t.BaseImponible)),
			optMoney("tarifa", t.Tarifa),
			req("valor", money(t.Valor)),
			optMoney("valorDevolucionIva", t.ValorDevolucionIva),
		)
	}
	moneda := i.Moneda
	if moneda == "" {
		moneda = "DOLAR"
	}
	appendFields(info,
		req("propina", money(i.Propina)),
		req("importeTotal", money(i.ImporteTotal)),
		req("moneda", moneda),
	)
	appendPagos(info, i.Pagos)

	detalles := root.CreateElement("detalles")
	for _, d := range f.Detalles {
		det := detalles.CreateElement("detalle")
		appendFields(det,
			opt("codigoPrincipal", d.CodigoPrincipal),
			opt("codigoAuxiliar", d.CodigoAuxiliar),
			req("descripcion", d.Descripcion),
			opt("unidadMedida", d.UnidadMedida),
			req("cantidad", qty(d.Cantidad)),
			req("precioUnitario", qty(d.PrecioUnitario)),
			req("descuento", money(d.Descuento)),
			req("precioTotalSinImpuesto", money(d.PrecioTotalSinImpuesto)),
		)
		appendDetallesAdicionales(det, d.DetallesAdicionales)
		appendImpuestos(det, d.Impuestos)
	}

	appendInfoAdicional(root, f.InfoAdicional)
	return serialize(doc)
}

// BuildNotaCredito genera notaCredito v1.1.0.
func (b *XMLBuilder) BuildNotaCredito(n *domsri.NotaCredito) ([]byte, error) {
	if n == nil || len(n.Detalles) == 0 {
		return nil, domain.NewError(domain.CodeInput, domain.ErrInvalidInput, "", "la nota de crédito requiere al menos un detalle")
	}
	doc, root, err := newComprobante(sricat.DocNotaCredito, &n.InfoTributaria)
	if err != nil {
		return nil, err
	}

	info := root.CreateElement("infoNotaCredito")
	i := n.InfoNotaCredito
	moneda := i.Moneda
	if moneda == "" {
		moneda = "DOLAR"
	}
	appendFields(info,
		req("fechaEmision", i.FechaEmision),
		opt("dirEstablecimiento", i.DirEstablecimiento),
		req("tipoIdentificacionComprador", i.TipoIdentificacionComprador),
		req("razonSocialComprador", i.RazonSocialComprador),
		req("identificacionComprador", i.IdentificacionComprador),
		opt("contribuyenteEspecial", i.ContribuyenteEspecial),
		opt("obligadoContabilidad", i.ObligadoContabilidad),
		opt("rise", i.Rise),
		req("codDocModificado", i.CodDocModificado),
		req("numDocModificado", i.NumDocModificado),
		req("fechaEmisionDocSustento", i.FechaEmisionDocSustento),
		req("totalSinImpuestos", money(i.TotalSinImpuestos)),
		req("valorModificacion", money(i.ValorModificacion)),
		req("moneda", moneda),
	)
	totals := info.CreateElement("totalConImpuestos")
	for _, t := range i.TotalConImpuestos {
		appendFields(totals.CreateElement("totalImpuesto"),
			req("codigo", t.Codigo),
			req("codigoPorcentaje", t.CodigoPorcentaje),
			req("baseImponible", money(t.BaseImponible)),
			req("valor", money(t.Valor)),
		)
	}
	appendFields(info, req("motivo", i.Motivo))

	detalles := root.CreateElement("detalles")
	for _, d := range n.Detalles {
		det := detalles.CreateElement("detalle")
		appendFields(det,
			opt("codigoInterno", d.CodigoInterno),
			opt("codigoAdicional", d.CodigoAdicional),
			req("descripcion", d.Descripcion),
			req("cantidad", qty(d.Cantidad)),
			req("precioUnitario", qty(d.PrecioUnitario)),
			req("descuento", money(d.Descuento)),
			req("precioTotalSinImpuesto", money(d.PrecioTotalSinImpuesto)),
		)
		appendImpuestos(det, d.Impuestos)
	}

	appendInfoAdicional(root, n.InfoAdicional)
	return serialize(doc)
}

// BuildNotaDebito genera notaDebito v1.0.0.
func (b *XMLBuilder) BuildNotaDebito(n *domsri.NotaDebito) ([]byte, error) {
	if n == nil || len(n.Motivos) == 0 {
		return nil, domain.NewError(domain.CodeInput, domain.ErrInvalidInput, "", "la nota de débito requiere al menos un motivo")
	}
	doc, root, err := newComprobante(sricat.DocNotaDebito, &n.InfoTributaria)
	if err != nil {
		return nil, err
	}

	info := root.CreateElement("infoNotaDebito")
	i := n.InfoNotaDebito
	appendFields(info,
		req("fechaEmision", i.FechaEmision),
		opt("dirEstablecimiento", i.DirEstablecimiento),
		req("tipoIdentificacionComprador", i.TipoIdentificacionComprador),
		req("razonSocialComprador", i.RazonSocialComprador),
		req("identificacionComprador", i.IdentificacionComprador),
		opt("contribuyenteEspecial", i.ContribuyenteEspecial),
		opt("obligadoContabilidad", i.ObligadoContabilidad),
		opt("rise", i.Rise),
		req("codDocModificado", i.CodDocModificado),
		req("numDocModificado", i.NumDocModificado),
		req("fechaEmisionDocSustento", i.FechaEmisionDocSustento),
		req("totalSinImpuestos", money(i.TotalSinImpuestos)),
	)
	appendImpuestos(info, i.Impuestos)
	if len(i.Impuestos) == 0 {
		info.CreateElement("impuestos")
	}
	appendFields(info, req("valorTotal", money(i.ValorTotal)))
	appendPagos(info, i.Pagos)

	motivos := root.CreateElement("motivos")
	for _, m := range n.Motivos {
		appendFields(motivos.CreateElement("motivo"),
			req("razon", m.Razon),
			req("valor", money(m.Valor)),
		)
	}

	appendInfoAdicional(root, n.InfoAdicional)
	return serialize(doc)
}

// BuildGuiaRemision genera guiaRemision v1.1.0. La guía no lleva fecha de emisión en el XML.
func (b *XMLBuilder) BuildGuiaRemision(g *domsri.GuiaRemision) ([]byte, error) {
	if g == nil || len(g.Destinatarios) == 0 {
		return nil, domain.NewError(domain.CodeInput, domain.ErrInvalidInput, "", "la guía de remisión requiere al menos un destinatario")
	}
	for _, d := range g.Destinatarios {
		if len(d.Detalles) == 0 {
			return nil, domain.NewError(domain.CodeInput, domain.ErrInvalidInput, "",
				"el destinatario "+d.RazonSocialDestinatario+" no tiene detalles")
		}
	}
	doc, root, err := newComprobante(sricat.DocGuiaRemision, &g.InfoTributaria)
	if err != nil {
		return nil, err
	}

	i := g.InfoGuiaRemision
	appendFields(root.CreateElement("infoGuiaRemision"),
		opt("dirEstablecimiento", i.DirEstablecimiento),
		req("dirPartida", i.DirPartida),
		req("razonSocialTransportista", i.RazonSocialTransportista),
		req("tipoIdentificacionTransportista", i.TipoIdentificacionTransportista),
		req("rucTransportista", i.RucTransportista),
		opt("rise", i.Rise),
		opt("obligadoContabilidad", i.ObligadoContabilidad),
		opt("contribuyenteEspecial", i.ContribuyenteEspecial),
		req("fechaIniTransporte", i.FechaIniTransporte),
		req("fechaFinTransporte", i.FechaFinTransporte),
		req("placa", i.Placa),
	)

	destinatarios := root.CreateElement("destinatarios")
	for _, d := range g.Destinatarios {
		dest := destinatarios.CreateElement("destinatario")
		appendFields(dest,
			opt("identificacionDestinatario", d.IdentificacionDestinatario),
			req("razonSocialDestinatario", d.RazonSocialDestinatario),
			req("dirDestinatario", d.DirDestinatario),
			req("motivoTraslado", d.MotivoTraslado),
			opt("docAduaneroUnico", d.DocAduaneroUnico),
			opt("codEstabDestino", d.CodEstabDestino),
			opt("ruta", d.Ruta),
			opt("codDocSustento", d.CodDocSustento),
			opt("numDocSustento", d.NumDocSustento),
			opt("numAutDocSustento", d.NumAutDocSustento),
			opt("fechaEmisionDocSustento", d.FechaEmisionDocSustento),
		)
		detalles := dest.CreateElement("detalles")
		for _, det := range d.Detalles {
			node := detalles.CreateElement("detalle")
			appendFields(node,
				opt("codigoInterno", det.CodigoInterno),
				opt("codigoAdicional", det.CodigoAdicional),
				req("descripcion", det.Descripcion),
				req("cantidad", qty(det.Cantidad)),
			)
			appendDetallesAdicionales(node, det.DetallesAdicionales)
		}
	}

	appendInfoAdicional(root, g.InfoAdicional)
	return serialize(doc)
}

// BuildRetencion genera comprobanteRetencion v2.0.0. Los códigos de retención y el
// sustento tributario se validan contra los catálogos; porcentaje y valor retenido
// ausentes se calculan con ellos.
func (b *XMLBuilder) BuildRetencion(r *domsri.ComprobanteRetencion) ([]byte, error) {
	if r == nil || len(r.DocsSustento) == 0 {
		return nil, domain.NewError(domain.CodeInput, domain.ErrInvalidInput, "", "la retención requiere al menos un documento sustento")
	}
	doc, root, err := newComprobante(sricat.DocRetencion, &r.InfoTributaria)
	if err != nil {
		return nil, err
	}

	i := r.InfoCompRetencion
	appendFields(root.CreateElement("infoCompRetencion"),
		req("fechaEmision", i.FechaEmision),
		opt("dirEstablecimiento", i.DirEstablecimiento),
		opt("contribuyenteEspecial", i.ContribuyenteEspecial),
		opt("obligadoContabilidad", i.ObligadoContabilidad),
		req("tipoIdentificacionSujetoRetenido", i.TipoIdentificacionSujetoRetenido),
		opt("tipoSujetoRetenido", i.TipoSujetoRetenido),
		req("parteRel", i.ParteRel),
		req("razonSocialSujetoRetenido", i.RazonSocialSujetoRetenido),
		req("identificacionSujetoRetenido", i.IdentificacionSujetoRetenido),
		req("periodoFiscal", i.PeriodoFiscal),
	)

	docs := root.CreateElement("docsSustento")
	for _, ds := range r.DocsSustento {
		if _, ok := sricat.LookupTaxSupport(ds.CodSustento); !ok {
			return nil, domain.NewError(domain.CodeInput, domain.ErrInvalidInput, "",
				"codSustento desconocido "+ds.CodSustento)
		}
		if len(ds.Retenciones) == 0 {
			return nil, domain.NewError(domain.CodeInput, domain.ErrInvalidInput, "",
				"el documento sustento "+ds.NumDocSustento+" no tiene retenciones")
		}
		node := docs.CreateElement("docSustento")
		appendFields(node,
			req("codSustento", ds.CodSustento),
			req("codDocSustento", ds.CodDocSustento),
			req("numDocSustento", ds.NumDocSustento),
			req("fechaEmisionDocSustento", ds.FechaEmisionDocSustento),
			opt("fechaRegistroContable", ds.FechaRegistroContable),
			opt("numAutDocSustento", ds.NumAutDocSustento),
			req("pagoLocExt", ds.PagoLocExt),
			opt("tipoRegi", ds.TipoRegi),
			opt("paisEfecPago", ds.PaisEfecPago),
			opt("aplicConvDobTrib", ds.AplicConvDobTrib),
			opt("pagExtSujRetNorLeg", ds.PagExtSujRetNorLeg),
			opt("pagoRegFis", ds.PagoRegFis),
			req("totalSinImpuestos", money(ds.TotalSinImpuestos)),
			req("importeTotal", money(ds.ImporteTotal)),
		)
		impuestos := node.CreateElement("impuestosDocSustento")
		for _, imp := range ds.Impuestos {
			appendFields(impuestos.CreateElement("impuestoDocSustento"),
				req("codImpuestoDocSustento", imp.CodImpuestoDocSustento),
				req("codigoPorcentaje", imp.CodigoPorcentaje),
				req("baseImponible", money(imp.BaseImponible)),
				req("tarifa", money(imp.Tarifa)),
				req("valorImpuesto", money(imp.ValorImpuesto)),
			)
		}
		retenciones := node.CreateElement("retenciones")
		for _, ret := range ds.Retenciones {
			code, valor, ok := ret.Resolve()
			if !ok {
				return nil, domain.NewError(domain.CodeInput, domain.ErrInvalidInput, "",
					fmt.Sprintf("código de retención %s desconocido para el impuesto %s", ret.CodigoRetencion, ret.Codigo))
			}
			appendFields(retenciones.CreateElement("retencion"),
				req("codigo", ret.Codigo),
				req("codigoRetencion", ret.CodigoRetencion),
				req("baseImponible", money(ret.BaseImponible)),
				req("porcentajeRetener", money(code.Percentage)),
				req("valorRetenido", money(valor)),
			)
		}
		pagos := node.CreateElement("pagos")
		for _, p := range ds.Pagos {
			appendFields(pagos.CreateElement("pago"),
				req("formaPago", p.FormaPago),
				req("total", money(p.Total)),
			)
		}
	}

	appendInfoAdicional(root, r.InfoAdicional)
	return serialize(doc)
}

// ── Bloques compartidos ───────────────────────────────────────────────────────

func newComprobante(docType sricat.DocumentType, it *domsri.InfoTributaria) (*etree.Document, *etree.Element, error) {
	spec, ok := sricat.LookupDocument(docType)
	if !ok {
		return nil, nil, domain.NewError(domain.CodeInput, domain.ErrInvalidInput, "", "tipo de comprobante desconocido "+string(docType))
	}
	if it.ClaveAcceso == "" {
		return nil, nil, domain.NewError(domain.CodeInput, domain.ErrInvalidInput, "", "falta claveAcceso en infoTributaria")
	}
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement(spec.RootTag)
	root.CreateAttr("id", "comprobante")
	root.CreateAttr("version", spec.Version)

	tipoEmision := it.TipoEmision
	if tipoEmision == "" {
		tipoEmision = sricat.EmissionNormal
	}
	appendFields(root.CreateElement("infoTributaria"),
		req("ambiente", it.Ambiente),
		req("tipoEmision", tipoEmision),
		req("razonSocial", it.RazonSocial),
		opt("nombreComercial", it.NombreComercial),
		req("ruc", it.RUC),
		req("claveAcceso", it.ClaveAcceso),
		req("codDoc", string(docType)),
		req("estab", it.Estab),
		req("ptoEmi", it.PtoEmi),
		req("secuencial", it.Secuencial),
		req("dirMatriz", it.DirMatriz),
		opt("agenteRetencion", it.AgenteRetencion),
		opt("contribuyenteRimpe", it.ContribuyenteRimpe),
	)
	return doc, root, nil
}

func appendImpuestos(det *etree.Element, impuestos []domsri.Impuesto) {
	if len(impuestos) == 0 {
		return
	}
	node := det.CreateElement("impuestos")
	for _, imp := range impuestos {
		appendFields(node.CreateElement("impuesto"),
			req("codigo", imp.Codigo),
			req("codigoPorcentaje", imp.CodigoPorcentaje),
			req("tarifa", money(imp.Tarifa)),
			req("baseImponible", money(imp.BaseImponible)),
			req("valor", money(imp.Valor)),
		)
	}
}

func appendPagos(info *etree.Element, pagosIn []domsri.Pago) {
	if len(pagosIn) == 0 {
		return
	}
	pagos := info.CreateElement("pagos")
	for _, p := range pagosIn {
		unidad := p.UnidadTiempo
		if unidad == "" && p.FormaPago != sricat.PaymentEfectivo {
			unidad = "dias"
		}
		appendFields(pagos.CreateElement("pago"),
			req("formaPago", p.FormaPago),
			req("total", money(p.Total)),
			opt("plazo", p.Plazo),
			opt("unidadTiempo", unidad),
		)
	}
}

func appendDetallesAdicionales(det *etree.Element, adicionales []domsri.DetAdicional) {
	if len(adicionales) == 0 {
		return
	}
	node := det.CreateElement("detallesAdicionales")
	for _, a := range adicionales {
		da := node.CreateElement("detAdicional")
		da.CreateAttr("nombre", a.Nombre)
		da.CreateAttr("valor", a.Valor)
	}
}

func appendInfoAdicional(root *etree.Element, campos []domsri.CampoAdicional) {
	if len(campos) == 0 {
		return
	}
	node := root.CreateElement("infoAdicional")
	for _, c := range campos {
		campo := node.CreateElement("campoAdicional")
		campo.CreateAttr("nombre", c.Nombre)
		campo.SetText(c.Valor)
	}
}

func serialize(doc *etree.Document) ([]byte, error) {
	doc.Indent(2)
	doc.WriteSettings.CanonicalText = true
	doc.WriteSettings.CanonicalAttrVal = true
	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, domain.WrapError(domain.CodeInternal, nil, err, "serializar XML")
	}
	return out, nil
}
