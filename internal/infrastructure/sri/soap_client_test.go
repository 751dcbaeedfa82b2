package sri_test

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/sri-comprobantes/internal/domain"
	infrasri "github.com/jhoicas/sri-comprobantes/internal/infrastructure/sri"
	sricat "github.com/jhoicas/sri-comprobantes/pkg/sri"
)

const recibidaResponse = `<?xml version="1.0" encoding="UTF-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"><soap:Body>
<ns2:validarComprobanteResponse xmlns:ns2="http://ec.gob.sri.ws.recepcion">
<RespuestaRecepcionComprobante><estado>RECIBIDA</estado><comprobantes/></RespuestaRecepcionComprobante>
</ns2:validarComprobanteResponse></soap:Body></soap:Envelope>`

const devueltaResponse = `<?xml version="1.0" encoding="UTF-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"><soap:Body>
<ns2:validarComprobanteResponse xmlns:ns2="http://ec.gob.sri.ws.recepcion">
<RespuestaRecepcionComprobante><estado>DEVUELTA</estado><comprobantes><comprobante>
<claveAcceso>2601202601179001100100110010010000000011234567813</claveAcceso>
<mensajes><mensaje><identificador>43</identificador><mensaje>CLAVE ACCESO REGISTRADA</mensaje>
<informacionAdicional>La clave de acceso ya fue registrada</informacionAdicional><tipo>ERROR</tipo></mensaje></mensajes>
</comprobante></comprobantes></RespuestaRecepcionComprobante>
</ns2:validarComprobanteResponse></soap:Body></soap:Envelope>`

const autorizadoResponse = `<?xml version="1.0" encoding="UTF-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"><soap:Body>
<ns2:autorizacionComprobanteResponse xmlns:ns2="http://ec.gob.sri.ws.autorizacion">
<RespuestaAutorizacionComprobante><claveAccesoConsultada>2601202601179001100100110010010000000011234567813</claveAccesoConsultada>
<numeroComprobantes>1</numeroComprobantes><autorizaciones><autorizacion>
<estado>AUTORIZADO</estado><numeroAutorizacion>2601202601179001100100110010010000000011234567813</numeroAutorizacion>
<fechaAutorizacion>2026-01-26T10:31:02-05:00</fechaAutorizacion><ambiente>PRUEBAS</ambiente>
<comprobante><![CDATA[<factura id="comprobante"></factura>]]></comprobante><mensajes/>
</autorizacion></autorizaciones></RespuestaAutorizacionComprobante>
</ns2:autorizacionComprobanteResponse></soap:Body></soap:Envelope>`

const faultResponse = `<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"><soap:Body>
<soap:Fault><faultcode>soap:Server</faultcode><faultstring>Servicio no disponible</faultstring></soap:Fault>
</soap:Body></soap:Envelope>`

// sriServer responde con responses[i] en la llamada i (la última se repite).
func sriServer(t *testing.T, status func(call int) int, responses ...string) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(atomic.AddInt32(&calls, 1)) - 1
		body := responses[len(responses)-1]
		if n < len(responses) {
			body = responses[n]
		}
		w.Header().Set("Content-Type", "text/xml; charset=utf-8")
		w.WriteHeader(status(n))
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func ok(int) int { return http.StatusOK }

func newClient(url string, attempts int) *infrasri.SOAPClient {
	return infrasri.NewSOAPClient(infrasri.ClientConfig{
		Endpoints: map[sricat.Environment]infrasri.Endpoints{
			sricat.EnvPruebas: {Reception: url, Authorization: url},
		},
		Attempts:       attempts,
		RetryDelay:     time.Millisecond,
		AttemptTimeout: 2 * time.Second,
	}, zerolog.Nop())
}

// ────────────────────────────────────────────────────────────────
// Recepción
// ────────────────────────────────────────────────────────────────

func TestSubmit_Recibida(t *testing.T) {
	signed := []byte(`<factura id="comprobante"/>`)
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		assert.Equal(t, "text/xml; charset=utf-8", r.Header.Get("Content-Type"))
		_, _ = io.WriteString(w, recibidaResponse)
	}))
	defer srv.Close()

	reply, err := newClient(srv.URL, 3).Submit(context.Background(), signed, sricat.EnvPruebas)
	require.NoError(t, err)
	assert.Equal(t, "RECIBIDA", reply.Status)
	assert.Empty(t, reply.Messages)

	assert.Contains(t, gotBody, "ec:validarComprobante")
	assert.Contains(t, gotBody, `xmlns:ec="http://ec.gob.sri.ws.recepcion"`)
	assert.Contains(t, gotBody, "<xml>"+base64.StdEncoding.EncodeToString(signed)+"</xml>")
}

func TestSubmit_DevueltaConMensajes(t *testing.T) {
	srv, _ := sriServer(t, ok, devueltaResponse)

	reply, err := newClient(srv.URL, 3).Submit(context.Background(), []byte("<x/>"), sricat.EnvPruebas)
	require.NoError(t, err)
	assert.Equal(t, "DEVUELTA", reply.Status)
	require.Len(t, reply.Messages, 1)
	assert.Equal(t, "43", reply.Messages[0].Identifier)
	assert.Equal(t, "CLAVE ACCESO REGISTRADA", reply.Messages[0].Text)
	assert.Equal(t, "La clave de acceso ya fue registrada", reply.Messages[0].AdditionalInfo)
	assert.Equal(t, "ERROR", reply.Messages[0].Type)
}

// ────────────────────────────────────────────────────────────────
// Reintentos
// ────────────────────────────────────────────────────────────────

func TestSubmit_TresFallosLuegoExito(t *testing.T) {
	status := func(n int) int {
		if n < 3 {
			return http.StatusInternalServerError
		}
		return http.StatusOK
	}
	srv, calls := sriServer(t, status, faultResponse, faultResponse, faultResponse, recibidaResponse)

	reply, err := newClient(srv.URL, 4).Submit(context.Background(), []byte("<x/>"), sricat.EnvPruebas)
	require.NoError(t, err)
	assert.Equal(t, "RECIBIDA", reply.Status)
	assert.EqualValues(t, 4, atomic.LoadInt32(calls))
}

func TestSubmit_PresupuestoAgotado(t *testing.T) {
	srv, calls := sriServer(t, func(int) int { return http.StatusInternalServerError }, faultResponse)

	_, err := newClient(srv.URL, 3).Submit(context.Background(), []byte("<x/>"), sricat.EnvPruebas)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCommunicationFailure)
	assert.Equal(t, domain.CodeCommunication, domain.CodeOf(err))
	assert.True(t, domain.Retryable(err))
	assert.Contains(t, err.Error(), "Servicio no disponible")
	assert.EqualValues(t, 3, atomic.LoadInt32(calls), "el presupuesto cuenta intentos totales")
}

func TestSubmit_FaultCon200TambienSeReintenta(t *testing.T) {
	srv, calls := sriServer(t, ok, faultResponse, recibidaResponse)

	_, err := newClient(srv.URL, 2).Submit(context.Background(), []byte("<x/>"), sricat.EnvPruebas)
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(calls))
}

func TestSubmit_5xxIlegibleSeReintenta(t *testing.T) {
	status := func(n int) int {
		if n == 0 {
			return http.StatusBadGateway
		}
		return http.StatusOK
	}
	srv, calls := sriServer(t, status, "<html>502</html>", recibidaResponse)

	_, err := newClient(srv.URL, 3).Submit(context.Background(), []byte("<x/>"), sricat.EnvPruebas)
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(calls))
}

func TestSubmit_RespuestaIlegibleNoSeReintenta(t *testing.T) {
	srv, calls := sriServer(t, ok, "esto no es xml <")

	_, err := newClient(srv.URL, 3).Submit(context.Background(), []byte("<x/>"), sricat.EnvPruebas)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrResponseParseFailure)
	assert.False(t, domain.Retryable(err))
	assert.EqualValues(t, 1, atomic.LoadInt32(calls))
}

func TestSubmit_SobreSinRespuesta(t *testing.T) {
	srv, calls := sriServer(t, ok, `<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"><soap:Body/></soap:Envelope>`)

	_, err := newClient(srv.URL, 3).Submit(context.Background(), []byte("<x/>"), sricat.EnvPruebas)
	assert.ErrorIs(t, err, domain.ErrResponseParseFailure)
	assert.EqualValues(t, 1, atomic.LoadInt32(calls))
}

func TestSubmit_TimeoutPorIntento(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	c := infrasri.NewSOAPClient(infrasri.ClientConfig{
		Endpoints:      map[sricat.Environment]infrasri.Endpoints{sricat.EnvPruebas: {Reception: srv.URL}},
		Attempts:       2,
		RetryDelay:     time.Millisecond,
		AttemptTimeout: 50 * time.Millisecond,
	}, zerolog.Nop())

	_, err := c.Submit(context.Background(), []byte("<x/>"), sricat.EnvPruebas)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCommunicationFailure)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestSubmit_AmbienteDesconocido(t *testing.T) {
	c := infrasri.NewSOAPClient(infrasri.ClientConfig{}, zerolog.Nop())
	_, err := c.Submit(context.Background(), []byte("<x/>"), sricat.Environment("9"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

// ────────────────────────────────────────────────────────────────
// Autorización
// ────────────────────────────────────────────────────────────────

func TestQueryAuthorization_Autorizado(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		_, _ = io.WriteString(w, autorizadoResponse)
	}))
	defer srv.Close()

	key := "2601202601179001100100110010010000000011234567813"
	reply, err := newClient(srv.URL, 3).QueryAuthorization(context.Background(), key, sricat.EnvPruebas)
	require.NoError(t, err)

	assert.True(t, strings.Contains(gotBody, "<claveAccesoComprobante>"+key+"</claveAccesoComprobante>"))
	assert.Equal(t, key, reply.AccessKey)
	require.Len(t, reply.Authorizations, 1)
	a := reply.Authorizations[0]
	assert.Equal(t, "AUTORIZADO", a.Status)
	assert.Equal(t, key, a.Number)
	assert.Equal(t, "2026-01-26T10:31:02-05:00", a.Date)
	assert.Equal(t, "PRUEBAS", a.Environment)
	assert.Equal(t, `<factura id="comprobante"></factura>`, a.Document)
}

func TestDefaultEndpoints(t *testing.T) {
	eps := infrasri.DefaultEndpoints()
	assert.Contains(t, eps[sricat.EnvPruebas].Reception, "celcer.sri.gob.ec")
	assert.Contains(t, eps[sricat.EnvProduccion].Authorization, "https://cel.sri.gob.ec")
}
