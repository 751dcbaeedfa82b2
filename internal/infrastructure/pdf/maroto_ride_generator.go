// Package pdf genera el RIDE (Representación Impresa del Documento Electrónico) de los
// comprobantes autorizados por el SRI.
//
// Layout de la página A4:
//
//	┌──────────────────────────────┬──────────────────────────────┐
//	│  EMISOR: Razón social        │  R.U.C. / FACTURA / No.      │
//	│  Nombre comercial            │  Número y fecha autorización │
//	│  Dir. matriz / establec.     │  Ambiente / Emisión          │
//	│                              │  Clave de acceso + barras    │
//	├──────────────────────────────┴──────────────────────────────┤
//	│  COMPRADOR: Razón social / Identificación / Fecha emisión   │
//	│  (nota de crédito: documento modificado + motivo)           │
//	├─────────────────────────────────────────────────────────────┤
//	│  TABLA: Cód. | Cant. | Descripción | P.Unit | Desc. | Total │
//	├──────────────────────────────┬──────────────────────────────┤
//	│  INFORMACIÓN ADICIONAL       │  Subtotal / Descuento / IVA  │
//	│                              │  VALOR TOTAL                 │
//	└──────────────────────────────┴──────────────────────────────┘
package pdf

import (
	"context"
	"fmt"
	"strings"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"

	domsri "github.com/jhoicas/sri-comprobantes/internal/domain/sri"
	sricat "github.com/jhoicas/sri-comprobantes/pkg/sri"
)

// ── Paleta de colores ─────────────────────────────────────────────────────────

var (
	colorPrimary = &props.Color{Red: 0, Green: 70, Blue: 127}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
)

// ── Generator ─────────────────────────────────────────────────────────────────

// MarotoRIDEGenerator implementa comprobantes.RIDEGenerator usando Maroto v2.
type MarotoRIDEGenerator struct{}

// NewMarotoRIDEGenerator construye el generador.
func NewMarotoRIDEGenerator() *MarotoRIDEGenerator { return &MarotoRIDEGenerator{} }

// GenerateRIDE genera el PDF y devuelve sus bytes.
func (g *MarotoRIDEGenerator) GenerateRIDE(_ context.Context, ride *domsri.RIDE) ([]byte, error) {
	if ride == nil {
		return nil, fmt.Errorf("pdf: RIDE vacío")
	}
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 8}).
		WithTitle(ride.DocName+" "+ride.Numero, true).
		WithAuthor(ride.RazonSocial, true).
		Build()

	m := maroto.New(cfg)

	m.AddRows(headerRow(ride))
	m.AddRows(accessKeyRows(ride.AccessKey)...)
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(compradorRows(ride)...)
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))

	m.AddRows(tableHeaderRow())
	m.AddRows(tableDetailRows(ride.Lines)...)

	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
	m.AddRows(footerRow(ride))

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar RIDE: %w", err)
	}
	return doc.GetBytes(), nil
}

// ── Secciones ─────────────────────────────────────────────────────────────────

// headerRow: emisor (izq) y datos del comprobante y su autorización (der).
func headerRow(r *domsri.RIDE) core.Row {
	dirEstab := r.DirEstab
	if dirEstab == "" {
		dirEstab = r.DirMatriz
	}
	emision := "NORMAL"
	if r.EmissionType != "" && r.EmissionType != sricat.EmissionNormal {
		emision = r.EmissionType
	}
	return row.New(42).Add(
		col.New(6).Add(
			text.New(r.RazonSocial, props.Text{
				Style: fontstyle.Bold, Size: 12, Color: colorPrimary, Top: 1,
			}),
			text.New(r.NombreComercial, props.Text{
				Size: 9, Top: 9,
			}),
			text.New("Dir. Matriz: "+nonEmpty(r.DirMatriz, "-"), props.Text{
				Size: 8, Top: 17, Color: colorGray,
			}),
			text.New("Dir. Establecimiento: "+nonEmpty(dirEstab, "-"), props.Text{
				Size: 8, Top: 23, Color: colorGray,
			}),
		),
		col.New(6).Add(
			text.New("R.U.C.: "+r.RUC, props.Text{
				Style: fontstyle.Bold, Size: 10, Align: align.Right, Top: 1,
			}),
			text.New(strings.ToUpper(r.DocName), props.Text{
				Style: fontstyle.Bold, Size: 11, Align: align.Right, Color: colorPrimary, Top: 7,
			}),
			text.New("No. "+r.Numero, props.Text{
				Size: 10, Align: align.Right, Top: 13,
			}),
			text.New("NÚMERO DE AUTORIZACIÓN", props.Text{
				Style: fontstyle.Bold, Size: 7, Align: align.Right, Top: 19,
			}),
			text.New(nonEmpty(r.AuthorizationNumber, r.AccessKey), props.Text{
				Size: 7, Align: align.Right, Top: 23,
			}),
			text.New("Fecha autorización: "+nonEmpty(r.AuthorizationDate, "-"), props.Text{
				Size: 7, Align: align.Right, Top: 28, Color: colorGray,
			}),
			text.New(fmt.Sprintf("Ambiente: %s   |   Emisión: %s", r.Environment.Name(), emision), props.Text{
				Size: 7, Align: align.Right, Top: 33, Color: colorGray,
			}),
		),
	)
}

// accessKeyRows: clave de acceso en barras Code128 con el texto debajo.
func accessKeyRows(key string) []core.Row {
	if key == "" {
		return nil
	}
	return []core.Row{
		row.New(5).Add(col.New(12).Add(
			text.New("CLAVE DE ACCESO", props.Text{Style: fontstyle.Bold, Size: 7, Align: align.Right}),
		)),
		row.New(12).Add(
			col.New(4),
			col.New(8).Add(code.NewBar(key)),
		),
		row.New(5).Add(col.New(12).Add(
			text.New(key, props.Text{Size: 7, Align: align.Right}),
		)),
	}
}

// compradorRows: datos del comprador (destinatario en la guía, sujeto retenido en la
// retención) y los datos propios de cada tipo.
func compradorRows(r *domsri.RIDE) []core.Row {
	rows := []core.Row{
		row.New(12).Add(
			col.New(8).Add(
				text.New("Razón Social / Nombres: "+r.CompradorNombre, props.Text{Size: 8, Top: 1}),
				text.New("Identificación: "+r.CompradorIdentificacion, props.Text{Size: 8, Top: 6}),
			),
			col.New(4).Add(
				text.New("Fecha emisión: "+r.FechaEmision, props.Text{Size: 8, Top: 1, Align: align.Right}),
			),
		),
	}
	switch r.DocType {
	case sricat.DocNotaCredito, sricat.DocNotaDebito:
		modificado := text.New(fmt.Sprintf("Comprobante que se modifica: %s (%s)", r.DocModificado, nonEmpty(r.FechaDocModificado, "-")),
			props.Text{Size: 8, Top: 1})
		if r.DocType == sricat.DocNotaDebito {
			rows = append(rows, row.New(7).Add(col.New(12).Add(modificado)))
			break
		}
		rows = append(rows, row.New(12).Add(col.New(12).Add(
			modificado,
			text.New("Razón de modificación: "+r.Motivo, props.Text{Size: 8, Top: 6}),
		)))
	case sricat.DocGuiaRemision:
		rows = append(rows, row.New(12).Add(col.New(12).Add(
			text.New(fmt.Sprintf("Transportista: %s   |   Placa: %s", nonEmpty(r.Transportista, "-"), nonEmpty(r.Placa, "-")),
				props.Text{Size: 8, Top: 1}),
			text.New("Motivo de traslado: "+nonEmpty(r.Motivo, "-"), props.Text{Size: 8, Top: 6}),
		)))
	case sricat.DocRetencion:
		rows = append(rows, row.New(7).Add(col.New(12).Add(
			text.New("Periodo fiscal: "+nonEmpty(r.PeriodoFiscal, "-"), props.Text{Size: 8, Top: 1}),
		)))
	}
	return rows
}

func tableHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a,
			Color: colorPrimary, Top: 2, Left: 1, Right: 1,
		}))
	}
	return row.New(8).Add(
		h("Cód.", 2, align.Left),
		h("Cant.", 1, align.Center),
		h("Descripción", 4, align.Left),
		h("P. Unitario", 2, align.Right),
		h("Descuento", 1, align.Right),
		h("Total", 2, align.Right),
	)
}

// tableDetailRows: una fila por detalle.
func tableDetailRows(lines []domsri.RIDELine) []core.Row {
	result := make([]core.Row, 0, len(lines))
	for _, d := range lines {
		result = append(result, row.New(7).Add(
			col.New(2).Add(text.New(d.Codigo, props.Text{Size: 8, Top: 1, Left: 1})),
			col.New(1).Add(text.New(trimQty(d.Cantidad), props.Text{Size: 8, Align: align.Center, Top: 1})),
			col.New(4).Add(text.New(d.Descripcion, props.Text{Size: 8, Top: 1, Left: 1})),
			col.New(2).Add(text.New(formatMoney(d.PrecioUnitario), props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1})),
			col.New(1).Add(text.New(formatMoney(d.Descuento), props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1})),
			col.New(2).Add(text.New(formatMoney(d.Total), props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1})),
		))
	}
	return result
}

// footerRow: información adicional (izq) y totales (der).
func footerRow(r *domsri.RIDE) core.Row {
	left := col.New(6).Add(text.New("INFORMACIÓN ADICIONAL", props.Text{
		Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
	}))
	for i, c := range r.InfoAdicional {
		left.Add(text.New(c.Nombre+": "+c.Valor, props.Text{
			Size: 7, Top: float64(7 + 5*i), Color: colorGray,
		}))
	}

	label := func(s string, top float64) core.Component {
		return text.New(s, props.Text{Style: fontstyle.Bold, Size: 8, Align: align.Right, Right: 2, Top: top})
	}
	value := func(d decimal.Decimal, top float64) core.Component {
		return text.New(formatMoney(d), props.Text{Size: 8, Align: align.Right, Right: 1, Top: top})
	}
	totalLabel := "VALOR TOTAL"
	switch r.DocType {
	case sricat.DocNotaCredito:
		totalLabel = "VALOR MODIFICACIÓN"
	case sricat.DocRetencion:
		totalLabel = "TOTAL RETENIDO"
	}

	height := 28.0
	if n := float64(7 + 5*len(r.InfoAdicional)); n > height {
		height = n
	}
	return row.New(height).Add(
		left,
		col.New(4).Add(
			label("SUBTOTAL SIN IMPUESTOS", 1),
			label("DESCUENTO", 7),
			label("IVA", 13),
			text.New(totalLabel, props.Text{
				Style: fontstyle.Bold, Size: 9, Align: align.Right, Right: 2, Top: 19, Color: colorPrimary,
			}),
		),
		col.New(2).Add(
			value(r.Subtotal, 1),
			value(r.Descuento, 7),
			value(r.IVA, 13),
			text.New(formatMoney(r.Total), props.Text{
				Style: fontstyle.Bold, Size: 9, Align: align.Right, Right: 1, Top: 19, Color: colorPrimary,
			}),
		),
	)
}

// ── helpers ───────────────────────────────────────────────────────────────────

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}

// formatMoney dos decimales con punto, como en el XML del comprobante.
func formatMoney(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// trimQty cantidad sin ceros decimales sobrantes: 2.000000 → 2, 1.500000 → 1.5.
func trimQty(d decimal.Decimal) string {
	return d.String()
}
