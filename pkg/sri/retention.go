package sri

import "github.com/shopspring/decimal"

// =============================================================================
// Tabla 19/21 - Códigos de retención
// =============================================================================

// Impuestos retenidos (retencion/codigo).
const (
	RetentionTaxRenta = "1"
	RetentionTaxIVA   = "2"
	RetentionTaxISD   = "6"
)

// Códigos de retención de renta más usados.
const (
	RentaRimpeNegocioPopular   = "332B"
	RentaRimpeEmprendedor      = "343A"
	RentaBienesMuebles         = "312"
	RentaOtras                 = "3440"
	RentaHonorariosProfesional = "303"
	RentaServiciosIntelecto    = "304"
)

// Códigos de retención de IVA.
const (
	RetIVA30Bienes         = "1"
	RetIVA70Servicios      = "2"
	RetIVA100Profesionales = "3"
	RetIVANoProcede        = "9"
)

// RetentionCode entrada del catálogo; Percentage es el porcentaje a retener.
type RetentionCode struct {
	Code       string
	Name       string
	Percentage decimal.Decimal
}

func rc(code, name, pct string) RetentionCode {
	return RetentionCode{Code: code, Name: name, Percentage: decimal.RequireFromString(pct)}
}

var rentaCodes = map[string]RetentionCode{
	"332B": rc("332B", "RIMPE Negocio Popular", "0"),
	"343A": rc("343A", "RIMPE Emprendedor", "1"),
	"312":  rc("312", "Transferencia de bienes muebles", "1.75"),
	"3440": rc("3440", "Otras retenciones", "2.75"),
	"303":  rc("303", "Honorarios profesionales", "10"),
	"304":  rc("304", "Servicios donde predomina el intelecto", "8"),
	"307":  rc("307", "Servicios donde predomina la mano de obra", "2"),
	"308":  rc("308", "Servicios entre sociedades", "2"),
	"309":  rc("309", "Servicios de publicidad y comunicación", "1.75"),
	"310":  rc("310", "Transporte privado de pasajeros o servicio público", "1"),
	"311":  rc("311", "Transferencia de bienes inmuebles", "1"),
	"320":  rc("320", "Arrendamiento de bienes inmuebles", "8"),
	"322":  rc("322", "Seguros y reaseguros", "1.75"),
	"323":  rc("323", "Rendimientos financieros", "2"),
	"325":  rc("325", "Loterías, rifas y apuestas", "15"),
	"327":  rc("327", "Venta de combustibles", "0.2"),
	"328":  rc("328", "Compra local de banano a productor", "1"),
	"332":  rc("332", "Pagos no sujetos a retención", "2"),
	"332A": rc("332A", "Pago al exterior con tarjeta de crédito o débito", "0"),
	"340":  rc("340", "Otras compras de bienes y servicios", "1"),
	"343":  rc("343", "Enajenación de derechos representativos de capital", "1"),
	"403":  rc("403", "Pago al exterior sin convenio de doble tributación", "25"),
	"405":  rc("405", "Pago al exterior a paraísos fiscales", "35"),
}

var ivaRetentionCodes = map[string]RetentionCode{
	"1": rc("1", "Retención IVA 30% (bienes)", "30"),
	"2": rc("2", "Retención IVA 70% (servicios)", "70"),
	"3": rc("3", "Retención IVA 100%", "100"),
	"9": rc("9", "No procede retención de IVA", "0"),
}

// LookupRetention busca el código según el impuesto retenido (1 renta, 2 IVA).
func LookupRetention(tax, code string) (RetentionCode, bool) {
	var c RetentionCode
	var ok bool
	switch tax {
	case RetentionTaxRenta:
		c, ok = rentaCodes[code]
	case RetentionTaxIVA:
		c, ok = ivaRetentionCodes[code]
	}
	return c, ok
}

// RetainedValue base × porcentaje / 100, redondeado a 2 decimales. Para IVA la base es el
// IVA de la compra.
func (c RetentionCode) RetainedValue(base decimal.Decimal) decimal.Decimal {
	return base.Mul(c.Percentage).Div(decimal.NewFromInt(100)).Round(2)
}

// =============================================================================
// Sustento tributario (codSustento)
// =============================================================================

// TaxSupport sustento tributario de una compra.
type TaxSupport struct {
	Code         string
	Name         string
	CreditoIVA   bool
	CostoGastoIR bool
}

var taxSupports = map[string]TaxSupport{
	"00": {"00", "Casos especiales cuyo sustento no aplica", false, false},
	"01": {"01", "Crédito tributario para declaración de IVA", true, false},
	"02": {"02", "Costo o gasto para declaración de IR", false, true},
	"03": {"03", "Activo fijo - crédito tributario para IVA", true, false},
	"04": {"04", "Activo fijo - costo o gasto para IR", false, true},
	"05": {"05", "Liquidación de gastos de viaje, hospedaje y alimentación", true, true},
	"06": {"06", "Inventario - crédito tributario para IVA", true, false},
	"07": {"07", "Inventario - costo o gasto para IR", false, true},
	"08": {"08", "Valor pagado para solicitar reembolso de gastos", false, false},
	"09": {"09", "Reembolso por siniestros", false, false},
	"10": {"10", "Distribución de dividendos, beneficios o utilidades", false, false},
}

// LookupTaxSupport busca el sustento tributario.
func LookupTaxSupport(code string) (TaxSupport, bool) {
	s, ok := taxSupports[code]
	return s, ok
}
