// Package sri interpreta las respuestas de los servicios de recepción y autorización del SRI
// y define las reglas locales que se aplican antes de firmar.
package sri

import (
	"fmt"
	"strings"

	"github.com/jhoicas/sri-comprobantes/internal/domain"
)

// Message mensaje del SRI, conservado textualmente (los códigos los usa contabilidad).
type Message struct {
	Identifier     string `json:"identificador"`
	Text           string `json:"mensaje"`
	AdditionalInfo string `json:"informacionAdicional,omitempty"`
	Type           string `json:"tipo"`
}

// NewMessage construye un mensaje; el tipo por defecto es ERROR.
func NewMessage(identifier, text, additionalInfo, typ string) Message {
	if typ == "" {
		typ = "ERROR"
	}
	return Message{Identifier: identifier, Text: text, AdditionalInfo: additionalInfo, Type: typ}
}

func (m Message) String() string {
	s := fmt.Sprintf("[%s] %s", m.Identifier, m.Text)
	if m.AdditionalInfo != "" {
		s += " (" + m.AdditionalInfo + ")"
	}
	return s
}

// ═══════════════════════════════════════════════════════════════════════════════
// Recepción
// ═══════════════════════════════════════════════════════════════════════════════

// ReceptionReply respuesta cruda de validarComprobante. Status vacío = ausente.
type ReceptionReply struct {
	Status   string
	Messages []Message
}

// ReceptionState estado de recepción.
type ReceptionState string

const (
	ReceptionReceived ReceptionState = "RECIBIDA"
	ReceptionReturned ReceptionState = "DEVUELTA"
	ReceptionUnknown  ReceptionState = "DESCONOCIDO"
)

// Código 70: "CLAVE DE ACCESO EN PROCESAMIENTO".
const messageInProcess = "70"

// ReceptionOutcome resultado normalizado de la recepción.
// Reclassified indica que una DEVUELTA se tomó como RECIBIDA por estar en procesamiento.
type ReceptionOutcome struct {
	State        ReceptionState `json:"estado"`
	Messages     []Message      `json:"mensajes"`
	Reclassified bool           `json:"reclasificada"`
}

// Pending el SRI aún no procesa el comprobante (recibido de forma provisional).
func (o ReceptionOutcome) Pending() bool { return o.Reclassified }

// Err devuelve un *RejectionError si el comprobante fue devuelto, nil en otro caso.
func (o ReceptionOutcome) Err() error {
	if o.State != ReceptionReturned {
		return nil
	}
	return &RejectionError{Stage: "recepción", Messages: o.Messages}
}

// InterpretReception normaliza la respuesta de recepción.
//
// Sin estado se asume DEVUELTA. Una DEVUELTA con un mensaje código 70 o con texto que contenga
// "PROCESAMIENTO" pasa a RECIBIDA; la búsqueda se detiene en el primer mensaje que coincida y
// nunca se reclasifica en sentido contrario.
func InterpretReception(reply *ReceptionReply) ReceptionOutcome {
	if reply == nil {
		return ReceptionOutcome{State: ReceptionReturned}
	}
	out := ReceptionOutcome{State: ReceptionReturned, Messages: reply.Messages}
	switch strings.ToUpper(strings.TrimSpace(reply.Status)) {
	case "":
	case string(ReceptionReceived):
		out.State = ReceptionReceived
	case string(ReceptionReturned):
		out.State = ReceptionReturned
	default:
		out.State = ReceptionUnknown
	}

	if out.State == ReceptionReturned {
		for _, m := range out.Messages {
			if isInProcess(m) {
				out.State = ReceptionReceived
				out.Reclassified = true
				break
			}
		}
	}
	return out
}

func isInProcess(m Message) bool {
	return strings.TrimSpace(m.Identifier) == messageInProcess ||
		strings.Contains(strings.ToUpper(m.Text), "PROCESAMIENTO")
}

// ═══════════════════════════════════════════════════════════════════════════════
// Autorización
// ═══════════════════════════════════════════════════════════════════════════════

// Authorization registro de autorización tal como lo devuelve el SRI.
type Authorization struct {
	Status      string
	Number      string
	Date        string
	Environment string
	Document    string
	Messages    []Message
}

// AuthorizationReply respuesta cruda de autorizacionComprobante.
type AuthorizationReply struct {
	AccessKey      string
	Authorizations []Authorization
}

// AuthorizationState estado final de autorización.
type AuthorizationState string

const (
	AuthorizationAuthorized    AuthorizationState = "AUTORIZADO"
	AuthorizationNotAuthorized AuthorizationState = "NO AUTORIZADO"
	AuthorizationUnknown       AuthorizationState = "DESCONOCIDO"
)

// AuthorizationResult resultado normalizado de la autorización.
type AuthorizationResult struct {
	State    AuthorizationState `json:"estado"`
	Number   string             `json:"numeroAutorizacion,omitempty"`
	Date     string             `json:"fechaAutorizacion,omitempty"`
	Document string             `json:"comprobante,omitempty"`
	Messages []Message          `json:"mensajes"`
}

// Final indica que el SRI ya emitió una decisión (autorizado o no).
func (r AuthorizationResult) Final() bool {
	return r.State == AuthorizationAuthorized || r.State == AuthorizationNotAuthorized
}

// InterpretAuthorization toma el primer registro de autorización. Sin registros el resultado
// es DESCONOCIDO sin mensajes; "EN PROCESO" también se trata como DESCONOCIDO.
func InterpretAuthorization(reply *AuthorizationReply) AuthorizationResult {
	if reply == nil || len(reply.Authorizations) == 0 {
		return AuthorizationResult{State: AuthorizationUnknown, Messages: []Message{}}
	}
	a := reply.Authorizations[0]
	msgs := a.Messages
	if msgs == nil {
		msgs = []Message{}
	}
	switch strings.ToUpper(strings.TrimSpace(a.Status)) {
	case string(AuthorizationAuthorized):
		return AuthorizationResult{
			State:    AuthorizationAuthorized,
			Number:   a.Number,
			Date:     a.Date,
			Document: a.Document,
			Messages: msgs,
		}
	case "EN PROCESO", "PPR":
		return AuthorizationResult{State: AuthorizationUnknown, Messages: msgs}
	default:
		return AuthorizationResult{State: AuthorizationNotAuthorized, Date: a.Date, Messages: msgs}
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// Rechazo
// ═══════════════════════════════════════════════════════════════════════════════

// RejectionError el SRI rechazó el comprobante. Lleva los mensajes textuales.
type RejectionError struct {
	Stage    string
	Messages []Message
}

func (e *RejectionError) Error() string {
	parts := make([]string, 0, len(e.Messages))
	for _, m := range e.Messages {
		parts = append(parts, m.String())
	}
	msg := domain.ErrRejected.Error()
	if e.Stage != "" {
		msg += " en " + e.Stage
	}
	if len(parts) == 0 {
		return msg
	}
	return msg + ": " + strings.Join(parts, "; ")
}

func (e *RejectionError) Code() domain.ErrorCode { return domain.CodeRejection }

func (e *RejectionError) Unwrap() error { return domain.ErrRejected }
