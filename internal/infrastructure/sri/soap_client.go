package sri

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/jhoicas/sri-comprobantes/internal/domain"
	domsri "github.com/jhoicas/sri-comprobantes/internal/domain/sri"
	sricat "github.com/jhoicas/sri-comprobantes/pkg/sri"
)

// ── Constantes de entorno ──────────────────────────────────────────────────────

const (
	receptionURLTest     = "https://celcer.sri.gob.ec/comprobantes-electronicos-ws/RecepcionComprobantesOffline"
	authorizationURLTest = "https://celcer.sri.gob.ec/comprobantes-electronicos-ws/AutorizacionComprobantesOffline"
	receptionURLProd     = "https://cel.sri.gob.ec/comprobantes-electronicos-ws/RecepcionComprobantesOffline"
	authorizationURLProd = "https://cel.sri.gob.ec/comprobantes-electronicos-ws/AutorizacionComprobantesOffline"
)

// Defaults de reintento.
const (
	DefaultAttempts       = 3
	DefaultRetryDelay     = 500 * time.Millisecond
	DefaultAttemptTimeout = 30 * time.Second
)

// Endpoints URLs de los servicios de un ambiente.
type Endpoints struct {
	Reception     string
	Authorization string
}

// DefaultEndpoints URLs públicas del SRI por ambiente.
func DefaultEndpoints() map[sricat.Environment]Endpoints {
	return map[sricat.Environment]Endpoints{
		sricat.EnvPruebas:    {Reception: receptionURLTest, Authorization: authorizationURLTest},
		sricat.EnvProduccion: {Reception: receptionURLProd, Authorization: authorizationURLProd},
	}
}

// ClientConfig configuración del cliente SOAP. Los valores cero usan los defaults.
type ClientConfig struct {
	Endpoints map[sricat.Environment]Endpoints
	// Attempts intentos totales por llamada (incluye el primero).
	Attempts       int
	RetryDelay     time.Duration
	AttemptTimeout time.Duration
	HTTPClient     *http.Client
}

// SOAPClient cliente de los WS offline de recepción y autorización del SRI.
// No guarda estado entre llamadas; se puede usar desde varias goroutines.
type SOAPClient struct {
	cfg        ClientConfig
	httpClient *http.Client
	log        zerolog.Logger
}

// NewSOAPClient construye el cliente completando los defaults.
func NewSOAPClient(cfg ClientConfig, log zerolog.Logger) *SOAPClient {
	endpoints := DefaultEndpoints()
	for env, ep := range cfg.Endpoints {
		def := endpoints[env]
		if ep.Reception != "" {
			def.Reception = ep.Reception
		}
		if ep.Authorization != "" {
			def.Authorization = ep.Authorization
		}
		endpoints[env] = def
	}
	cfg.Endpoints = endpoints
	if cfg.Attempts <= 0 {
		cfg.Attempts = DefaultAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = DefaultAttemptTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &SOAPClient{cfg: cfg, httpClient: httpClient, log: log.With().Str("component", "sri_soap").Logger()}
}

// ── Operaciones ───────────────────────────────────────────────────────────────

// Submit envía el comprobante firmado a validarComprobante.
func (c *SOAPClient) Submit(ctx context.Context, signedXML []byte, env sricat.Environment) (*domsri.ReceptionReply, error) {
	ep, err := c.endpoints(env)
	if err != nil {
		return nil, err
	}
	body := &validarComprobanteBody{XML: base64.StdEncoding.EncodeToString(signedXML)}

	var reply *domsri.ReceptionReply
	err = c.call(ctx, "validarComprobante", ep.Reception, nsRecepcion, body, func(raw []byte) (bool, error) {
		var envResp receptionEnvelope
		if err := xml.Unmarshal(raw, &envResp); err != nil {
			return false, parseFailure(err)
		}
		if f := envResp.Body.Fault; f != nil {
			return true, fmt.Errorf("soap fault [%s]: %s", f.FaultCode, f.FaultString)
		}
		if envResp.Body.Response == nil {
			return false, parseFailure(fmt.Errorf("falta RespuestaRecepcionComprobante"))
		}
		reply = envResp.Body.Response.toDomain()
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return reply, nil
}

// QueryAuthorization consulta autorizacionComprobante por clave de acceso.
func (c *SOAPClient) QueryAuthorization(ctx context.Context, accessKey string, env sricat.Environment) (*domsri.AuthorizationReply, error) {
	ep, err := c.endpoints(env)
	if err != nil {
		return nil, err
	}
	body := &autorizacionComprobanteBody{AccessKey: accessKey}

	var reply *domsri.AuthorizationReply
	err = c.call(ctx, "autorizacionComprobante", ep.Authorization, nsAutorizacion, body, func(raw []byte) (bool, error) {
		var envResp authorizationEnvelope
		if err := xml.Unmarshal(raw, &envResp); err != nil {
			return false, parseFailure(err)
		}
		if f := envResp.Body.Fault; f != nil {
			return true, fmt.Errorf("soap fault [%s]: %s", f.FaultCode, f.FaultString)
		}
		if envResp.Body.Response == nil {
			return false, parseFailure(fmt.Errorf("falta RespuestaAutorizacionComprobante"))
		}
		reply = envResp.Body.Response.toDomain()
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return reply, nil
}

func (c *SOAPClient) endpoints(env sricat.Environment) (Endpoints, error) {
	ep, ok := c.cfg.Endpoints[env]
	if !ok {
		return Endpoints{}, domain.NewError(domain.CodeInput, domain.ErrInvalidInput, "", "ambiente desconocido "+string(env))
	}
	return ep, nil
}

// ── Transporte con reintentos ─────────────────────────────────────────────────

// decodeFunc interpreta el cuerpo de la respuesta. retryable=true pide un nuevo intento.
type decodeFunc func(raw []byte) (retryable bool, err error)

// call ejecuta la operación hasta Attempts veces con espera constante. Los errores de
// transporte, HTTP 5xx y SOAP Fault se reintentan; una respuesta ilegible no.
func (c *SOAPClient) call(ctx context.Context, op, url, ns string, content interface{}, decode decodeFunc) error {
	payload, err := xml.Marshal(soapEnvelope{
		XmlnsS:  soapNS,
		XmlnsEC: ns,
		Body:    soapBody{Content: content},
	})
	if err != nil {
		return domain.WrapError(domain.CodeInternal, nil, err, "soap: serializar envelope")
	}

	backoff := retry.WithMaxRetries(uint64(c.cfg.Attempts-1), retry.NewConstant(c.cfg.RetryDelay))
	attempt := 0
	var lastErr, fatal error
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		log := c.log.With().Str("op", op).Int("attempt", attempt).Logger()

		raw, status, err := c.post(ctx, url, payload)
		if err != nil {
			lastErr = err
			log.Warn().Err(err).Msg("soap: fallo de transporte")
			return retry.RetryableError(err)
		}
		retryable, err := decode(raw)
		if err == nil {
			log.Debug().Int("status", status).Msg("soap: respuesta recibida")
			return nil
		}
		if status >= http.StatusInternalServerError && !retryable {
			// 5xx sin Fault legible: fallo del servicio, no del contenido.
			retryable = true
			err = fmt.Errorf("HTTP %d: %v", status, err)
		}
		if !retryable {
			fatal = err
			log.Error().Err(err).Int("status", status).Msg("soap: respuesta no interpretable")
			return err
		}
		lastErr = err
		log.Warn().Err(err).Int("status", status).Msg("soap: respuesta con error, se reintenta")
		return retry.RetryableError(err)
	})
	if err == nil {
		return nil
	}
	if fatal != nil {
		return fatal
	}
	if lastErr == nil {
		lastErr = err
	}
	return domain.WrapError(domain.CodeCommunication, domain.ErrCommunicationFailure, lastErr,
		fmt.Sprintf("%s: %s tras %d intento(s)", domain.ErrCommunicationFailure.Error(), op, attempt))
}

// post un intento HTTP acotado por AttemptTimeout.
func (c *SOAPClient) post(ctx context.Context, url string, payload []byte) ([]byte, int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.AttemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, fmt.Errorf("soap: crear request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", "")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, fmt.Errorf("soap: timeout o cancelación: %w", ctx.Err())
		}
		return nil, 0, fmt.Errorf("soap: llamada HTTP fallida: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("soap: leer respuesta: %w", err)
	}
	return raw, resp.StatusCode, nil
}

func parseFailure(err error) error {
	return domain.WrapError(domain.CodeCommunication, domain.ErrResponseParseFailure, err, "")
}
