package sri_test

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	domsri "github.com/jhoicas/sri-comprobantes/internal/domain/sri"
	"github.com/jhoicas/sri-comprobantes/internal/infrastructure/sri/signer"
	sricat "github.com/jhoicas/sri-comprobantes/pkg/sri"
)

const (
	claveFactura     = "2601202601179001100100110010010000000011234567813"
	claveNotaCredito = "2601202604179001100100110010010000000021234567818"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func infoTributaria(clave, secuencial string) domsri.InfoTributaria {
	return domsri.InfoTributaria{
		Ambiente:        "1",
		RazonSocial:     "DISTRIBUIDORA ANDINA S.A.",
		NombreComercial: "ANDINA & HIJOS",
		RUC:             "1790011001001",
		ClaveAcceso:     clave,
		Estab:           "001",
		PtoEmi:          "001",
		Secuencial:      secuencial,
		DirMatriz:       "Av. Amazonas N34-120 y Av. Atahualpa",
	}
}

func sampleFactura() *domsri.Factura {
	return &domsri.Factura{
		InfoTributaria: infoTributaria(claveFactura, "000000001"),
		InfoFactura: domsri.InfoFactura{
			FechaEmision:                "26/01/2026",
			DirEstablecimiento:          "Av. Amazonas N34-120",
			ObligadoContabilidad:        "SI",
			TipoIdentificacionComprador: sricat.IdentificationRUC,
			RazonSocialComprador:        "COMERCIAL PICHINCHA CIA. LTDA.",
			IdentificacionComprador:     "1791234567001",
			TotalSinImpuestos:           dec("10"),
			TotalDescuento:              dec("0"),
			TotalConImpuestos: []domsri.TotalImpuesto{{
				Codigo:           sricat.TaxIVA,
				CodigoPorcentaje: sricat.IVA12,
				BaseImponible:    dec("10"),
				Valor:            dec("1.2"),
			}},
			Propina:      dec("0"),
			ImporteTotal: dec("11.2"),
			Pagos: []domsri.Pago{
				{FormaPago: sricat.PaymentOtrosFinanciero, Total: dec("11.2"), Plazo: "30"},
				{FormaPago: sricat.PaymentEfectivo, Total: dec("0")},
			},
		},
		Detalles: []domsri.DetalleFactura{{
			CodigoPrincipal:        "P-001",
			Descripcion:            "Cable UTP cat. 6",
			Cantidad:               dec("2"),
			PrecioUnitario:         dec("5"),
			Descuento:              dec("0"),
			PrecioTotalSinImpuesto: dec("10"),
			DetallesAdicionales:    []domsri.DetAdicional{{Nombre: "color", Valor: "azul"}},
			Impuestos: []domsri.Impuesto{{
				Codigo:           sricat.TaxIVA,
				CodigoPorcentaje: sricat.IVA12,
				Tarifa:           dec("12"),
				BaseImponible:    dec("10"),
				Valor:            dec("1.2"),
			}},
		}},
		InfoAdicional: []domsri.CampoAdicional{
			{Nombre: "Email", Valor: "compras@pichincha.ec"},
			{Nombre: "Teléfono", Valor: "022345678"},
		},
	}
}

func sampleNotaCredito() *domsri.NotaCredito {
	return &domsri.NotaCredito{
		InfoTributaria: infoTributaria(claveNotaCredito, "000000002"),
		InfoNotaCredito: domsri.InfoNotaCredito{
			FechaEmision:                "26/01/2026",
			TipoIdentificacionComprador: sricat.IdentificationRUC,
			RazonSocialComprador:        "COMERCIAL PICHINCHA CIA. LTDA.",
			IdentificacionComprador:     "1791234567001",
			CodDocModificado:            string(sricat.DocFactura),
			NumDocModificado:            "001-001-000000001",
			FechaEmisionDocSustento:     "20/01/2026",
			TotalSinImpuestos:           dec("5"),
			ValorModificacion:           dec("5.6"),
			TotalConImpuestos: []domsri.TotalImpuesto{{
				Codigo:           sricat.TaxIVA,
				CodigoPorcentaje: sricat.IVA12,
				BaseImponible:    dec("5"),
				Valor:            dec("0.6"),
			}},
			Motivo: "Devolución parcial",
		},
		Detalles: []domsri.DetalleNotaCredito{{
			CodigoInterno:          "P-001",
			Descripcion:            "Cable UTP cat. 6",
			Cantidad:               dec("1"),
			PrecioUnitario:         dec("5"),
			Descuento:              dec("0"),
			PrecioTotalSinImpuesto: dec("5"),
			Impuestos: []domsri.Impuesto{{
				Codigo:           sricat.TaxIVA,
				CodigoPorcentaje: sricat.IVA12,
				Tarifa:           dec("12"),
				BaseImponible:    dec("5"),
				Valor:            dec("0.6"),
			}},
		}},
	}
}

// testBundle certificado RSA autofirmado válido por un año.
func testBundle(t *testing.T) *signer.Bundle {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	name := pkix.Name{Country: []string{"EC"}, Organization: []string{"SECURITY DATA S.A. 2"}, CommonName: "DISTRIBUIDORA ANDINA S.A."}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(20260126),
		Subject:      name,
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().AddDate(1, 0, 0),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageContentCommitment,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	b, err := signer.NewBundle(key, cert)
	require.NoError(t, err)
	return b
}

// clave arma una clave válida del emisor de pruebas para el tipo y secuencial dados.
func clave(t *testing.T, docType sricat.DocumentType, secuencial string) string {
	t.Helper()
	k, err := sricat.BuildAccessKey("26/01/2026", string(docType), "1790011001001", "1", "001001", secuencial, "12345678", "1")
	require.NoError(t, err)
	return k.String()
}

func sampleNotaDebito(t *testing.T) *domsri.NotaDebito {
	return &domsri.NotaDebito{
		InfoTributaria: infoTributaria(clave(t, sricat.DocNotaDebito, "000000003"), "000000003"),
		InfoNotaDebito: domsri.InfoNotaDebito{
			FechaEmision:                "26/01/2026",
			TipoIdentificacionComprador: sricat.IdentificationRUC,
			RazonSocialComprador:        "COMERCIAL PICHINCHA CIA. LTDA.",
			IdentificacionComprador:     "1791234567001",
			CodDocModificado:            string(sricat.DocFactura),
			NumDocModificado:            "001-001-000000001",
			FechaEmisionDocSustento:     "20/01/2026",
			TotalSinImpuestos:           dec("3"),
			Impuestos: []domsri.Impuesto{{
				Codigo:           sricat.TaxIVA,
				CodigoPorcentaje: sricat.IVA12,
				Tarifa:           dec("12"),
				BaseImponible:    dec("3"),
				Valor:            dec("0.36"),
			}},
			ValorTotal: dec("3.36"),
			Pagos:      []domsri.Pago{{FormaPago: sricat.PaymentEfectivo, Total: dec("3.36")}},
		},
		Motivos: []domsri.Motivo{
			{Razon: "Interés por mora", Valor: dec("2")},
			{Razon: "Gastos de envío", Valor: dec("1")},
		},
	}
}

func sampleGuiaRemision(t *testing.T) *domsri.GuiaRemision {
	return &domsri.GuiaRemision{
		InfoTributaria: infoTributaria(clave(t, sricat.DocGuiaRemision, "000000004"), "000000004"),
		InfoGuiaRemision: domsri.InfoGuiaRemision{
			DirPartida:                      "Av. Amazonas N34-120",
			RazonSocialTransportista:        "TRANSPORTES DEL SUR S.A.",
			TipoIdentificacionTransportista: sricat.IdentificationRUC,
			RucTransportista:                "1790022002001",
			FechaIniTransporte:              "26/01/2026",
			FechaFinTransporte:              "27/01/2026",
			Placa:                           "PBA-1234",
		},
		Destinatarios: []domsri.Destinatario{{
			IdentificacionDestinatario: "1791234567001",
			RazonSocialDestinatario:    "COMERCIAL PICHINCHA CIA. LTDA.",
			DirDestinatario:            "Av. 10 de Agosto y Colón",
			MotivoTraslado:             "Venta",
			CodDocSustento:             string(sricat.DocFactura),
			NumDocSustento:             "001-001-000000001",
			Detalles: []domsri.DetalleGuia{{
				CodigoInterno: "P-001",
				Descripcion:   "Cable UTP cat. 6",
				Cantidad:      dec("2"),
			}},
		}},
	}
}

func sampleRetencion(t *testing.T) *domsri.ComprobanteRetencion {
	return &domsri.ComprobanteRetencion{
		InfoTributaria: infoTributaria(clave(t, sricat.DocRetencion, "000000005"), "000000005"),
		InfoCompRetencion: domsri.InfoCompRetencion{
			FechaEmision:                     "26/01/2026",
			TipoIdentificacionSujetoRetenido: sricat.IdentificationRUC,
			ParteRel:                         "NO",
			RazonSocialSujetoRetenido:        "PROVEEDORA QUITO S.A.",
			IdentificacionSujetoRetenido:     "1791234567001",
			PeriodoFiscal:                    "01/2026",
		},
		DocsSustento: []domsri.DocSustento{{
			CodSustento:             "01",
			CodDocSustento:          string(sricat.DocFactura),
			NumDocSustento:          "001002000000123",
			FechaEmisionDocSustento: "20/01/2026",
			PagoLocExt:              "01",
			TotalSinImpuestos:       dec("100"),
			ImporteTotal:            dec("112"),
			Impuestos: []domsri.ImpuestoDocSustento{{
				CodImpuestoDocSustento: sricat.TaxIVA,
				CodigoPorcentaje:       sricat.IVA12,
				BaseImponible:          dec("100"),
				Tarifa:                 dec("12"),
				ValorImpuesto:          dec("12"),
			}},
			Retenciones: []domsri.Retencion{
				{Codigo: sricat.RetentionTaxRenta, CodigoRetencion: sricat.RentaBienesMuebles, BaseImponible: dec("100")},
				{Codigo: sricat.RetentionTaxIVA, CodigoRetencion: sricat.RetIVA30Bienes, BaseImponible: dec("12")},
			},
			Pagos: []domsri.PagoRetencion{{FormaPago: sricat.PaymentOtrosFinanciero, Total: dec("112")}},
		}},
	}
}
