// Package sri implementa los adaptadores de salida hacia el SRI (Ecuador): cliente SOAP de
// recepción y autorización, generación del XML de comprobantes y verificación estructural.
package sri

import (
	"encoding/xml"
	"strings"

	domsri "github.com/jhoicas/sri-comprobantes/internal/domain/sri"
)

const (
	soapNS          = "http://schemas.xmlsoap.org/soap/envelope/"
	nsRecepcion     = "http://ec.gob.sri.ws.recepcion"
	nsAutorizacion  = "http://ec.gob.sri.ws.autorizacion"
	maxResponseSize = 10 << 20
)

// ── Estructuras SOAP (request) ────────────────────────────────────────────────

type soapEnvelope struct {
	XMLName xml.Name   `xml:"soapenv:Envelope"`
	XmlnsS  string     `xml:"xmlns:soapenv,attr"`
	XmlnsEC string     `xml:"xmlns:ec,attr"`
	Header  soapHeader `xml:"soapenv:Header"`
	Body    soapBody   `xml:"soapenv:Body"`
}

type soapHeader struct{}

type soapBody struct {
	Content interface{}
}

func (b soapBody) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start.Name.Local = "soapenv:Body"
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	if err := e.Encode(b.Content); err != nil {
		return err
	}
	return e.EncodeToken(start.End())
}

// validarComprobanteBody operación de recepción; el XML firmado va en base64.
type validarComprobanteBody struct {
	XMLName xml.Name `xml:"ec:validarComprobante"`
	XML     string   `xml:"xml"`
}

// autorizacionComprobanteBody operación de consulta de autorización.
type autorizacionComprobanteBody struct {
	XMLName   xml.Name `xml:"ec:autorizacionComprobante"`
	AccessKey string   `xml:"claveAccesoComprobante"`
}

// ── Estructuras SOAP (response) ───────────────────────────────────────────────

type soapFault struct {
	FaultCode   string `xml:"faultcode"`
	FaultString string `xml:"faultstring"`
}

type receptionEnvelope struct {
	Body struct {
		Response *respuestaRecepcion `xml:"validarComprobanteResponse>RespuestaRecepcionComprobante"`
		Fault    *soapFault          `xml:"Fault"`
	} `xml:"Body"`
}

type authorizationEnvelope struct {
	Body struct {
		Response *respuestaAutorizacion `xml:"autorizacionComprobanteResponse>RespuestaAutorizacionComprobante"`
		Fault    *soapFault             `xml:"Fault"`
	} `xml:"Body"`
}

type respuestaRecepcion struct {
	Estado       string `xml:"estado"`
	Comprobantes []struct {
		ClaveAcceso string    `xml:"claveAcceso"`
		Mensajes    []mensaje `xml:"mensajes>mensaje"`
	} `xml:"comprobantes>comprobante"`
}

type respuestaAutorizacion struct {
	ClaveAccesoConsultada string        `xml:"claveAccesoConsultada"`
	NumeroComprobantes    string        `xml:"numeroComprobantes"`
	Autorizaciones        []autorizacion `xml:"autorizaciones>autorizacion"`
}

type autorizacion struct {
	Estado             string    `xml:"estado"`
	NumeroAutorizacion string    `xml:"numeroAutorizacion"`
	FechaAutorizacion  string    `xml:"fechaAutorizacion"`
	Ambiente           string    `xml:"ambiente"`
	Comprobante        string    `xml:"comprobante"`
	Mensajes           []mensaje `xml:"mensajes>mensaje"`
}

type mensaje struct {
	Identificador        string `xml:"identificador"`
	Mensaje              string `xml:"mensaje"`
	InformacionAdicional string `xml:"informacionAdicional"`
	Tipo                 string `xml:"tipo"`
}

// ── Conversión a dominio ──────────────────────────────────────────────────────

func (m mensaje) toDomain() domsri.Message {
	return domsri.NewMessage(
		strings.TrimSpace(m.Identificador),
		strings.TrimSpace(m.Mensaje),
		strings.TrimSpace(m.InformacionAdicional),
		strings.TrimSpace(m.Tipo),
	)
}

func toMessages(in []mensaje) []domsri.Message {
	out := make([]domsri.Message, 0, len(in))
	for _, m := range in {
		out = append(out, m.toDomain())
	}
	return out
}

func (r *respuestaRecepcion) toDomain() *domsri.ReceptionReply {
	reply := &domsri.ReceptionReply{Status: strings.TrimSpace(r.Estado)}
	for _, c := range r.Comprobantes {
		reply.Messages = append(reply.Messages, toMessages(c.Mensajes)...)
	}
	return reply
}

func (r *respuestaAutorizacion) toDomain() *domsri.AuthorizationReply {
	reply := &domsri.AuthorizationReply{AccessKey: strings.TrimSpace(r.ClaveAccesoConsultada)}
	for _, a := range r.Autorizaciones {
		reply.Authorizations = append(reply.Authorizations, domsri.Authorization{
			Status:      strings.TrimSpace(a.Estado),
			Number:      strings.TrimSpace(a.NumeroAutorizacion),
			Date:        strings.TrimSpace(a.FechaAutorizacion),
			Environment: strings.TrimSpace(a.Ambiente),
			Document:    strings.TrimSpace(a.Comprobante),
			Messages:    toMessages(a.Mensajes),
		})
	}
	return reply
}
