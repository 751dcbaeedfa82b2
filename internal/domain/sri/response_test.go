package sri_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/sri-comprobantes/internal/domain"
	"github.com/jhoicas/sri-comprobantes/internal/domain/sri"
)

func TestInterpretReception_Recibida(t *testing.T) {
	out := sri.InterpretReception(&sri.ReceptionReply{Status: "RECIBIDA"})

	assert.Equal(t, sri.ReceptionReceived, out.State)
	assert.False(t, out.Reclassified)
	assert.NoError(t, out.Err())
}

func TestInterpretReception_SinEstadoEsDevuelta(t *testing.T) {
	out := sri.InterpretReception(&sri.ReceptionReply{})
	assert.Equal(t, sri.ReceptionReturned, out.State, "sin estado se presume no aceptado")

	out = sri.InterpretReception(nil)
	assert.Equal(t, sri.ReceptionReturned, out.State)
}

func TestInterpretReception_Codigo70Reclasifica(t *testing.T) {
	reply := &sri.ReceptionReply{
		Status: "DEVUELTA",
		Messages: []sri.Message{
			sri.NewMessage("70", "CLAVE DE ACCESO EN PROCESAMIENTO", "", ""),
		},
	}
	out := sri.InterpretReception(reply)

	assert.Equal(t, sri.ReceptionReceived, out.State)
	assert.True(t, out.Reclassified)
	assert.True(t, out.Pending())
	assert.NoError(t, out.Err())
	require.Len(t, out.Messages, 1, "los mensajes se conservan aunque se reclasifique")
	assert.Equal(t, "70", out.Messages[0].Identifier)
}

func TestInterpretReception_TextoProcesamientoSinCodigo(t *testing.T) {
	reply := &sri.ReceptionReply{
		Status: "DEVUELTA",
		Messages: []sri.Message{
			sri.NewMessage("43", "Comprobante en procesamiento", "", "ADVERTENCIA"),
		},
	}
	out := sri.InterpretReception(reply)
	assert.Equal(t, sri.ReceptionReceived, out.State, "la coincidencia de texto no distingue mayúsculas")
}

func TestInterpretReception_DevueltaRealEsRechazo(t *testing.T) {
	reply := &sri.ReceptionReply{
		Status: "DEVUELTA",
		Messages: []sri.Message{
			sri.NewMessage("35", "ARCHIVO NO CUMPLE ESTRUCTURA XML", "Se encontró [factura] ...", ""),
		},
	}
	out := sri.InterpretReception(reply)
	assert.Equal(t, sri.ReceptionReturned, out.State)
	assert.False(t, out.Reclassified)

	err := out.Err()
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrRejected))
	assert.Equal(t, domain.CodeRejection, domain.CodeOf(err))
	assert.False(t, domain.Retryable(err))
	assert.Contains(t, err.Error(), "ARCHIVO NO CUMPLE ESTRUCTURA XML")
	assert.Contains(t, err.Error(), "[35]")

	var rej *sri.RejectionError
	require.True(t, errors.As(err, &rej))
	require.Len(t, rej.Messages, 1)
	assert.Equal(t, "ERROR", rej.Messages[0].Type, "tipo por defecto")
	assert.Equal(t, "Se encontró [factura] ...", rej.Messages[0].AdditionalInfo)
}

// Una RECIBIDA nunca pasa a DEVUELTA aunque traiga mensajes.
func TestInterpretReception_NoReclasificaEnSentidoContrario(t *testing.T) {
	reply := &sri.ReceptionReply{
		Status:   "RECIBIDA",
		Messages: []sri.Message{sri.NewMessage("45", "SECUENCIAL REGISTRADO", "", "")},
	}
	out := sri.InterpretReception(reply)
	assert.Equal(t, sri.ReceptionReceived, out.State)
	assert.False(t, out.Reclassified)
}

func TestInterpretReception_EstadoDesconocido(t *testing.T) {
	out := sri.InterpretReception(&sri.ReceptionReply{Status: "OTRO"})
	assert.Equal(t, sri.ReceptionUnknown, out.State)
	assert.NoError(t, out.Err())
}

func TestInterpretAuthorization_SinRegistros(t *testing.T) {
	res := sri.InterpretAuthorization(&sri.AuthorizationReply{AccessKey: "123"})

	assert.Equal(t, sri.AuthorizationUnknown, res.State)
	assert.NotNil(t, res.Messages)
	assert.Empty(t, res.Messages)
	assert.False(t, res.Final())
}

func TestInterpretAuthorization_Autorizado(t *testing.T) {
	res := sri.InterpretAuthorization(&sri.AuthorizationReply{
		Authorizations: []sri.Authorization{
			{Status: "AUTORIZADO", Number: "2601202601179001100100110010010000000011234567813", Date: "2026-01-26T10:00:00-05:00", Document: "<factura/>"},
			{Status: "NO AUTORIZADO"},
		},
	})

	assert.Equal(t, sri.AuthorizationAuthorized, res.State)
	assert.Equal(t, "2601202601179001100100110010010000000011234567813", res.Number)
	assert.Equal(t, "<factura/>", res.Document)
	assert.True(t, res.Final())
}

func TestInterpretAuthorization_NoAutorizado(t *testing.T) {
	res := sri.InterpretAuthorization(&sri.AuthorizationReply{
		Authorizations: []sri.Authorization{{
			Status:   "NO AUTORIZADO",
			Messages: []sri.Message{sri.NewMessage("39", "FIRMA INVALIDA", "firma no válida", "ERROR")},
		}},
	})

	assert.Equal(t, sri.AuthorizationNotAuthorized, res.State)
	require.Len(t, res.Messages, 1)
	assert.Equal(t, "39", res.Messages[0].Identifier)
	assert.Empty(t, res.Number)
}

func TestInterpretAuthorization_EnProceso(t *testing.T) {
	res := sri.InterpretAuthorization(&sri.AuthorizationReply{
		Authorizations: []sri.Authorization{{Status: "EN PROCESO"}},
	})
	assert.Equal(t, sri.AuthorizationUnknown, res.State)
}

func TestInterpretAuthorization_EstadoDesconocidoEsNoAutorizado(t *testing.T) {
	res := sri.InterpretAuthorization(&sri.AuthorizationReply{
		Authorizations: []sri.Authorization{{Status: "RECHAZADO", Date: "2026-01-26T10:31:02-05:00"}},
	})
	assert.Equal(t, sri.AuthorizationNotAuthorized, res.State)
	assert.Equal(t, "2026-01-26T10:31:02-05:00", res.Date)
	assert.True(t, res.Final())
}
