package main

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gopkcs12 "software.sslmate.com/src/go-pkcs12"

	domsri "github.com/jhoicas/sri-comprobantes/internal/domain/sri"
	infrasri "github.com/jhoicas/sri-comprobantes/internal/infrastructure/sri"
	"github.com/jhoicas/sri-comprobantes/pkg/jwt"
	sricat "github.com/jhoicas/sri-comprobantes/pkg/sri"
)

const claveFactura = "2601202601179001100100110010010000000011234567813"

// ────────────────────────────────────────────────────────────────────────────
// Helpers
// ────────────────────────────────────────────────────────────────────────────

// executeCommand corre la CLI con un árbol de comandos nuevo y devuelve stdout.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--log-level", "disabled"}, args...))
	err := root.Execute()
	return out.String(), err
}

// cliEnv deja la CLI sin base de datos ni certificado por defecto.
func cliEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DB_ENABLED", "false")
	t.Setenv("SRI_AMBIENTE", "1")
	t.Setenv("SRI_CERT_PATH", "")
	t.Setenv("SRI_CERT_PASSWORD", "")
	t.Setenv("SRI_RETRIES", "1")
	t.Setenv("SRI_POLL_ATTEMPTS", "1")
	t.Setenv("SRI_POLL_INTERVAL_MS", "1")
}

// writeP12 certificado RSA autofirmado vigente, protegido con "clave123".
func writeP12(t *testing.T, dir string) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(4242),
		Subject:      pkix.Name{Country: []string{"EC"}, CommonName: "DISTRIBUIDORA ANDINA S.A."},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().AddDate(1, 0, 0),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	data, err := gopkcs12.Modern.Encode(key, cert, nil, "clave123")
	require.NoError(t, err)

	path := filepath.Join(dir, "firma.p12")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// writeFactura XML sin firma de una factura con la clave claveFactura.
func writeFactura(t *testing.T, dir string) string {
	t.Helper()
	f := &domsri.Factura{
		InfoTributaria: domsri.InfoTributaria{
			Ambiente:    "1",
			RazonSocial: "DISTRIBUIDORA ANDINA S.A.",
			RUC:         "1790011001001",
			ClaveAcceso: claveFactura,
			CodDoc:      "01",
			Estab:       "001",
			PtoEmi:      "001",
			Secuencial:  "000000001",
			DirMatriz:   "Av. Amazonas N34-120 y Av. Atahualpa",
		},
		InfoFactura: domsri.InfoFactura{
			FechaEmision:                "26/01/2026",
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
			Pagos:        []domsri.Pago{{FormaPago: sricat.PaymentEfectivo, Total: dec("11.2")}},
		},
		Detalles: []domsri.DetalleFactura{{
			CodigoPrincipal:        "P-001",
			Descripcion:            "Cable UTP cat. 6",
			Cantidad:               dec("2"),
			PrecioUnitario:         dec("5"),
			Descuento:              dec("0"),
			PrecioTotalSinImpuesto: dec("10"),
			Impuestos: []domsri.Impuesto{{
				Codigo:           sricat.TaxIVA,
				CodigoPorcentaje: sricat.IVA12,
				Tarifa:           dec("12"),
				BaseImponible:    dec("10"),
				Valor:            dec("1.2"),
			}},
		}},
	}
	raw, err := infrasri.NewXMLBuilder().BuildFactura(f)
	require.NoError(t, err)
	path := filepath.Join(dir, "factura.xml")
	require.NoError(t, os.WriteFile(path, raw, 0o644))
	return path
}

const recibidaSOAP = `<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"><soap:Body>
<ns2:validarComprobanteResponse xmlns:ns2="http://ec.gob.sri.ws.recepcion">
<RespuestaRecepcionComprobante><estado>RECIBIDA</estado><comprobantes/></RespuestaRecepcionComprobante>
</ns2:validarComprobanteResponse></soap:Body></soap:Envelope>`

const autorizadoSOAP = `<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"><soap:Body>
<ns2:autorizacionComprobanteResponse xmlns:ns2="http://ec.gob.sri.ws.autorizacion">
<RespuestaAutorizacionComprobante><claveAccesoConsultada>` + claveFactura + `</claveAccesoConsultada>
<numeroComprobantes>1</numeroComprobantes><autorizaciones><autorizacion>
<estado>AUTORIZADO</estado><numeroAutorizacion>` + claveFactura + `</numeroAutorizacion>
<fechaAutorizacion>2026-01-26T10:31:02-05:00</fechaAutorizacion><ambiente>PRUEBAS</ambiente>
<comprobante><![CDATA[<factura id="comprobante"></factura>]]></comprobante><mensajes/>
</autorizacion></autorizaciones></RespuestaAutorizacionComprobante>
</ns2:autorizacionComprobanteResponse></soap:Body></soap:Envelope>`

// fakeSRI atiende recepción y autorización en la misma URL según la operación del cuerpo.
func fakeSRI(t *testing.T) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "text/xml; charset=utf-8")
		if strings.Contains(string(body), "validarComprobante") {
			_, _ = io.WriteString(w, recibidaSOAP)
			return
		}
		_, _ = io.WriteString(w, autorizadoSOAP)
	}))
	t.Cleanup(srv.Close)
	t.Setenv("SRI_RECEPTION_URL_PRUEBAS", srv.URL)
	t.Setenv("SRI_AUTHORIZATION_URL_PRUEBAS", srv.URL)
}

// ────────────────────────────────────────────────────────────────────────────
// clave
// ────────────────────────────────────────────────────────────────────────────

func TestClave(t *testing.T) {
	cliEnv(t)
	out, err := executeCommand(t, "clave",
		"--fecha", "26/01/2026", "--tipo", "01", "--ruc", "1790011001001",
		"--secuencial", "1", "--codigo", "12345678")
	require.NoError(t, err)
	assert.Equal(t, claveFactura, strings.TrimSpace(out))
}

func TestClave_CodigoAleatorio(t *testing.T) {
	cliEnv(t)
	out, err := executeCommand(t, "clave", "--fecha", "26/01/2026", "--ruc", "1790011001001", "--secuencial", "7")
	require.NoError(t, err)
	key := strings.TrimSpace(out)
	require.Len(t, key, 49)
	assert.NoError(t, sricat.ValidateAccessKey(key))
	assert.Equal(t, "000000007", key[30:39])
}

func TestClave_RUCIncompleto(t *testing.T) {
	cliEnv(t)
	_, err := executeCommand(t, "clave", "--fecha", "26/01/2026", "--ruc", "179001100", "--secuencial", "1")
	assert.Error(t, err)
}

func TestClaveAnalizar(t *testing.T) {
	cliEnv(t)
	out, err := executeCommand(t, "clave", "analizar", claveFactura)
	require.NoError(t, err)

	var fields map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &fields))
	assert.Equal(t, "26/01/2026", fields["fechaEmision"])
	assert.Equal(t, "01 (Factura)", fields["tipoComprobante"])
	assert.Equal(t, "1790011001001", fields["ruc"])
	assert.Equal(t, "000000001", fields["secuencial"])
	assert.Equal(t, "12345678", fields["codigoNumerico"])
}

func TestClaveAnalizar_DigitoIncorrecto(t *testing.T) {
	cliEnv(t)
	_, err := executeCommand(t, "clave", "analizar", claveFactura[:48]+"9")
	assert.Error(t, err)
}

// ────────────────────────────────────────────────────────────────────────────
// firmar / verificar / verificar-p12
// ────────────────────────────────────────────────────────────────────────────

func TestFirmarYVerificar(t *testing.T) {
	cliEnv(t)
	dir := t.TempDir()
	p12 := writeP12(t, dir)
	factura := writeFactura(t, dir)
	firmado := filepath.Join(dir, "firmado.xml")

	_, err := executeCommand(t, "firmar", factura, "--p12", p12, "--password", "clave123",
		"--algoritmo", "rsa-sha256", "--out", firmado)
	require.NoError(t, err)

	raw, err := os.ReadFile(firmado)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "xades:SignedProperties")
	assert.Contains(t, string(raw), "rsa-sha256")

	out, err := executeCommand(t, "verificar", firmado)
	require.NoError(t, err)
	assert.Contains(t, out, "firma válida")
}

func TestFirmar_UsaCertificadoConfigurado(t *testing.T) {
	cliEnv(t)
	dir := t.TempDir()
	t.Setenv("SRI_CERT_PATH", writeP12(t, dir))
	t.Setenv("SRI_CERT_PASSWORD", "clave123")

	out, err := executeCommand(t, "firmar", writeFactura(t, dir))
	require.NoError(t, err)
	assert.Contains(t, out, "ds:Signature")
}

func TestFirmar_SinCertificado(t *testing.T) {
	cliEnv(t)
	_, err := executeCommand(t, "firmar", writeFactura(t, t.TempDir()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--p12")
}

func TestFirmar_ContrasenaIncorrecta(t *testing.T) {
	cliEnv(t)
	dir := t.TempDir()
	_, err := executeCommand(t, "firmar", writeFactura(t, dir), "--p12", writeP12(t, dir), "--password", "otra")
	assert.Error(t, err)
}

func TestVerificar_DocumentoAlterado(t *testing.T) {
	cliEnv(t)
	dir := t.TempDir()
	firmado := filepath.Join(dir, "firmado.xml")
	_, err := executeCommand(t, "firmar", writeFactura(t, dir), "--p12", writeP12(t, dir),
		"--password", "clave123", "--out", firmado)
	require.NoError(t, err)

	raw, err := os.ReadFile(firmado)
	require.NoError(t, err)
	alterado := strings.Replace(string(raw), "Cable UTP cat. 6", "Cable UTP cat. 7", 1)
	require.NoError(t, os.WriteFile(firmado, []byte(alterado), 0o644))

	_, err = executeCommand(t, "verificar", firmado)
	assert.Error(t, err)
}

func TestVerificarP12(t *testing.T) {
	cliEnv(t)
	p12 := writeP12(t, t.TempDir())

	out, err := executeCommand(t, "verificar-p12", p12, "--password", "clave123")
	require.NoError(t, err)

	var info map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, "DISTRIBUIDORA ANDINA S.A.", info["sujeto"])
	assert.Equal(t, "4242", info["serial"])
	vigencia, ok := info["vigencia"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, false, vigencia["nearExpiry"])
}

// ────────────────────────────────────────────────────────────────────────────
// enviar / autorizar / pendientes
// ────────────────────────────────────────────────────────────────────────────

func TestEnviar_Autorizado(t *testing.T) {
	cliEnv(t)
	fakeSRI(t)
	dir := t.TempDir()
	firmado := filepath.Join(dir, "firmado.xml")

	out, err := executeCommand(t, "enviar", writeFactura(t, dir), "--p12", writeP12(t, dir),
		"--password", "clave123", "--out", firmado)
	require.NoError(t, err)

	var res map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, claveFactura, res["claveAcceso"])
	assert.Equal(t, "RECIBIDA", res["recepcion"].(map[string]interface{})["estado"])
	assert.Equal(t, "AUTORIZADO", res["autorizacion"].(map[string]interface{})["estado"])
	assert.FileExists(t, firmado)
}

func TestAutorizar(t *testing.T) {
	cliEnv(t)
	fakeSRI(t)

	out, err := executeCommand(t, "autorizar", claveFactura)
	require.NoError(t, err)
	assert.Contains(t, out, `"estado": "AUTORIZADO"`)
	assert.Contains(t, out, "2026-01-26T10:31:02-05:00")
}

func TestAutorizar_ClaveInvalida(t *testing.T) {
	cliEnv(t)
	_, err := executeCommand(t, "autorizar", "123")
	assert.Error(t, err)
}

func TestPendientes_SinBaseDeDatos(t *testing.T) {
	cliEnv(t)
	_, err := executeCommand(t, "pendientes")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_ENABLED")
}

// ────────────────────────────────────────────────────────────────────────────
// ride / token
// ────────────────────────────────────────────────────────────────────────────

func TestRide_DesdeArchivo(t *testing.T) {
	cliEnv(t)
	dir := t.TempDir()
	firmado := filepath.Join(dir, "firmado.xml")
	_, err := executeCommand(t, "firmar", writeFactura(t, dir), "--p12", writeP12(t, dir),
		"--password", "clave123", "--out", firmado)
	require.NoError(t, err)

	pdf := filepath.Join(dir, "ride.pdf")
	_, err = executeCommand(t, "ride", firmado, "--fecha", "2026-01-26T10:31:02-05:00", "--out", pdf)
	require.NoError(t, err)

	raw, err := os.ReadFile(pdf)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(raw, []byte("%PDF")))
}

func TestRide_ArgumentosExcluyentes(t *testing.T) {
	cliEnv(t)
	_, err := executeCommand(t, "ride", "a.xml", "--clave", claveFactura, "--out", "x.pdf")
	assert.Error(t, err)
	_, err = executeCommand(t, "ride", "--out", "x.pdf")
	assert.Error(t, err)
}

func TestToken(t *testing.T) {
	cliEnv(t)
	t.Setenv("JWT_SECRET", "secreto-de-prueba-32-caracteres!!")

	out, err := executeCommand(t, "token", "--usuario", "u-1", "--empresa", "c-1", "--rol", "admin")
	require.NoError(t, err)

	user, company, role, err := jwt.Parse("secreto-de-prueba-32-caracteres!!", strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "u-1", user)
	assert.Equal(t, "c-1", company)
	assert.Equal(t, "admin", role)
}

func TestToken_RolInvalido(t *testing.T) {
	cliEnv(t)
	t.Setenv("JWT_SECRET", "secreto-de-prueba-32-caracteres!!")
	_, err := executeCommand(t, "token", "--usuario", "u-1", "--rol", "vendedor")
	assert.ErrorIs(t, err, jwt.ErrUnknownRole)
}
