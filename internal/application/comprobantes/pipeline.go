// Package comprobantes orquesta la emisión de comprobantes electrónicos del SRI:
//
//	clave de acceso → XML → validación → firma XAdES-BES → recepción → autorización → registro
//
// Cada llamada procesa un solo documento de forma secuencial. El certificado se abre al
// inicio de la llamada y se descarta al terminar; no hay caché de credenciales.
package comprobantes

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/sri-comprobantes/internal/domain"
	"github.com/jhoicas/sri-comprobantes/internal/domain/entity"
	"github.com/jhoicas/sri-comprobantes/internal/domain/repository"
	domsri "github.com/jhoicas/sri-comprobantes/internal/domain/sri"
	"github.com/jhoicas/sri-comprobantes/internal/infrastructure/sri/signer"
	sricat "github.com/jhoicas/sri-comprobantes/pkg/sri"
)

// Defaults del sondeo de autorización.
const (
	DefaultPollAttempts = 3
	DefaultPollInterval = 2 * time.Second
)

// Config parámetros del pipeline. Los valores cero usan los defaults.
type Config struct {
	Algorithm    signer.Algorithm
	PollAttempts int
	PollInterval time.Duration
	Now          func() time.Time
}

// Credential PKCS#12 y contraseña de una llamada.
type Credential struct {
	P12      []byte
	Password string
}

// ProcessRequest un comprobante estructurado o un XML ya construido (sin firma).
type ProcessRequest struct {
	Comprobante domsri.Comprobante
	XML         []byte
	// DocType del XML suministrado; vacío se deduce del elemento raíz.
	DocType    sricat.DocumentType
	Credential Credential
	Algorithm  signer.Algorithm
}

// ProcessResult resultado combinado de un intento de emisión.
type ProcessResult struct {
	AccessKey     string                      `json:"claveAcceso"`
	SignedXML     []byte                      `json:"-"`
	SignatureID   string                      `json:"idFirma"`
	Algorithm     signer.Algorithm            `json:"algoritmo"`
	Certificate   signer.ValidityReport       `json:"certificado"`
	Reception     domsri.ReceptionOutcome     `json:"recepcion"`
	Authorization *domsri.AuthorizationResult `json:"autorizacion,omitempty"`
}

// Pipeline caso de uso de emisión. No tiene estado mutable compartido entre llamadas.
type Pipeline struct {
	builder   DocumentBuilder
	schema    SchemaValidator
	loader    CertificateLoader
	signer    Signer
	submitter Submitter
	repo      repository.ComprobanteRepository // opcional
	cfg       Config
	log       zerolog.Logger
	wait      func(ctx context.Context, d time.Duration) error
}

// NewPipeline construye el pipeline. repo puede ser nil (sin persistencia).
func NewPipeline(
	builder DocumentBuilder,
	schema SchemaValidator,
	loader CertificateLoader,
	sign Signer,
	submitter Submitter,
	repo repository.ComprobanteRepository,
	cfg Config,
	log zerolog.Logger,
) *Pipeline {
	if cfg.Algorithm == "" {
		cfg.Algorithm = signer.DefaultAlgorithm
	}
	if cfg.PollAttempts <= 0 {
		cfg.PollAttempts = DefaultPollAttempts
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if loader == nil {
		loader = P12Loader
	}
	return &Pipeline{
		builder:   builder,
		schema:    schema,
		loader:    loader,
		signer:    sign,
		submitter: submitter,
		repo:      repo,
		cfg:       cfg,
		log:       log.With().Str("component", "sri_pipeline").Logger(),
		wait:      sleepCtx,
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// Process
// ═══════════════════════════════════════════════════════════════════════════════

// Process ejecuta el ciclo completo de un comprobante.
//
// Con un comprobante estructurado calcula la clave de acceso (usa CodigoNumerico si viene,
// si no genera uno) y la escribe en su infoTributaria antes de construir el XML. Con XML
// suministrado la clave se toma de infoTributaria/claveAcceso.
//
// Si el SRI devuelve el comprobante, se retorna el resultado junto con un *domsri.RejectionError.
// NO AUTORIZADO es un resultado, no un error.
func (p *Pipeline) Process(ctx context.Context, req ProcessRequest) (*ProcessResult, error) {
	xmlDoc, docType, err := p.prepare(req)
	if err != nil {
		return nil, err
	}
	if err := p.schema.Validate(xmlDoc, docType); err != nil {
		p.log.Warn().Err(err).Str("step", "schema").Msg("comprobante no cumple el esquema")
		return nil, err
	}

	alg := req.Algorithm
	if alg == "" {
		alg = p.cfg.Algorithm
	}
	signed, validity, err := p.sign(xmlDoc, req.Credential, alg)
	if err != nil {
		return nil, err
	}
	fields, err := sricat.ParseAccessKey(signed.AccessKey)
	if err != nil {
		return nil, err
	}
	log := p.log.With().Str("clave_acceso", signed.AccessKey).Logger()
	log.Info().Str("step", "sign").Str("algorithm", string(signed.Algorithm)).Msg("comprobante firmado")

	result := &ProcessResult{
		AccessKey:   signed.AccessKey,
		SignedXML:   signed.XML,
		SignatureID: signed.SignatureID,
		Algorithm:   signed.Algorithm,
		Certificate: validity,
	}
	record := newRecord(signed, fields, totalOf(req.Comprobante), p.cfg.Now())
	if err := p.save(ctx, log, record); err != nil {
		return result, err
	}
	if record.Status == entity.ComprobanteStatusAuthorized {
		// La clave ya fue autorizada en un intento anterior; no se reenvía.
		log.Info().Str("step", "submit").Msg("comprobante ya autorizado, no se reenvía")
		result.SignedXML = []byte(record.XMLSigned)
		result.Reception = domsri.ReceptionOutcome{State: domsri.ReceptionReceived, Messages: []domsri.Message{}}
		result.Authorization = &domsri.AuthorizationResult{
			State:    domsri.AuthorizationAuthorized,
			Number:   record.AuthorizationNumber,
			Date:     record.AuthorizationDate,
			Document: record.AuthorizedXML,
			Messages: DecodeMessages(record.Messages),
		}
		return result, nil
	}

	env := sricat.Environment(fields.Environment)
	reply, err := p.submitter.Submit(ctx, signed.XML, env)
	if err != nil {
		log.Error().Err(err).Str("step", "submit").Msg("fallo el envío a recepción")
		return result, err
	}
	outcome := domsri.InterpretReception(reply)
	result.Reception = outcome
	if outcome.State == domsri.ReceptionUnknown {
		return result, domain.NewError(domain.CodeCommunication, domain.ErrResponseParseFailure, "",
			"estado de recepción desconocido "+reply.Status)
	}
	if rejection := outcome.Err(); rejection != nil {
		log.Warn().Str("step", "submit").Interface("mensajes", outcome.Messages).Msg("comprobante DEVUELTO")
		record.Status = entity.ComprobanteStatusReturned
		record.Messages = encodeMessages(outcome.Messages)
		p.update(ctx, log, record)
		return result, rejection
	}
	log.Info().Str("step", "submit").Bool("reclasificada", outcome.Reclassified).Msg("comprobante RECIBIDO")
	record.Status = entity.ComprobanteStatusReceived
	record.Messages = encodeMessages(outcome.Messages)
	p.update(ctx, log, record)

	auth, err := p.poll(ctx, log, signed.AccessKey, env)
	result.Authorization = auth
	if auth != nil {
		applyAuthorization(record, auth)
		p.update(ctx, log, record)
	}
	return result, err
}

// prepare devuelve el XML sin firma y su tipo.
func (p *Pipeline) prepare(req ProcessRequest) ([]byte, sricat.DocumentType, error) {
	if req.Comprobante == nil {
		if len(req.XML) == 0 {
			return nil, "", domain.NewError(domain.CodeInput, domain.ErrInvalidInput, "", "se requiere un comprobante o su XML")
		}
		return req.XML, req.DocType, nil
	}

	c := req.Comprobante
	it := c.Tributaria()
	if err := domsri.ValidateFields(it.BusinessFields()); err != nil {
		return nil, "", err
	}
	if it.CodigoNumerico == "" {
		code, err := sricat.RandomNumericCode()
		if err != nil {
			return nil, "", domain.WrapError(domain.CodeInternal, nil, err, "generar código numérico")
		}
		it.CodigoNumerico = code
	}
	key, err := it.AccessKeyFields(c.DocType(), c.IssueDate()).Build()
	if err != nil {
		return nil, "", err
	}
	it.ClaveAcceso = key.String()
	it.CodDoc = string(c.DocType())

	xmlDoc, err := p.builder.Build(c)
	if err != nil {
		return nil, "", err
	}
	return xmlDoc, c.DocType(), nil
}

// poll consulta la autorización hasta obtener una decisión o agotar los intentos.
// Los errores de comunicación no cortan el sondeo; si ninguna consulta respondió se
// devuelve el último.
func (p *Pipeline) poll(ctx context.Context, log zerolog.Logger, key string, env sricat.Environment) (*domsri.AuthorizationResult, error) {
	var last *domsri.AuthorizationResult
	var lastErr error
	for attempt := 1; attempt <= p.cfg.PollAttempts; attempt++ {
		if err := p.wait(ctx, p.cfg.PollInterval); err != nil {
			return last, err
		}
		reply, err := p.submitter.QueryAuthorization(ctx, key, env)
		if err != nil {
			lastErr = err
			log.Warn().Err(err).Str("step", "authorize").Int("attempt", attempt).Msg("fallo la consulta de autorización")
			if !domain.Retryable(err) {
				return last, err
			}
			continue
		}
		res := domsri.InterpretAuthorization(reply)
		last = &res
		log.Info().Str("step", "authorize").Int("attempt", attempt).Str("estado", string(res.State)).Msg("consulta de autorización")
		if res.Final() {
			return last, nil
		}
	}
	if last == nil {
		return nil, lastErr
	}
	return last, nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// SignOnly / QueryAuthorization / RefreshPending
// ═══════════════════════════════════════════════════════════════════════════════

// SignOnly firma un XML sin enviarlo.
func (p *Pipeline) SignOnly(ctx context.Context, xmlDoc []byte, cred Credential, alg signer.Algorithm) (*signer.SignedDocument, error) {
	if alg == "" {
		alg = p.cfg.Algorithm
	}
	signed, _, err := p.sign(xmlDoc, cred, alg)
	if err != nil {
		return nil, err
	}
	p.log.Info().Str("clave_acceso", signed.AccessKey).Str("step", "sign").Msg("XML firmado")
	return signed, nil
}

// QueryAuthorization consulta una vez la autorización de una clave y, si hay repositorio,
// actualiza el registro.
func (p *Pipeline) QueryAuthorization(ctx context.Context, accessKey string) (*domsri.AuthorizationResult, error) {
	fields, err := sricat.ParseAccessKey(accessKey)
	if err != nil {
		return nil, err
	}
	reply, err := p.submitter.QueryAuthorization(ctx, accessKey, sricat.Environment(fields.Environment))
	if err != nil {
		return nil, err
	}
	res := domsri.InterpretAuthorization(reply)
	log := p.log.With().Str("clave_acceso", accessKey).Logger()
	log.Info().Str("step", "authorize").Str("estado", string(res.State)).Msg("consulta de autorización")

	if p.repo != nil && res.State != domsri.AuthorizationUnknown {
		rec, err := p.repo.GetByAccessKey(ctx, accessKey)
		if err != nil {
			log.Warn().Err(err).Msg("no se pudo leer el registro del comprobante")
		} else if rec != nil {
			applyAuthorization(rec, &res)
			p.update(ctx, log, rec)
		}
	}
	return &res, nil
}

// RefreshPending vuelve a consultar los comprobantes recibidos sin decisión.
// Devuelve cuántos quedaron con decisión final.
func (p *Pipeline) RefreshPending(ctx context.Context, limit int) (int, error) {
	if p.repo == nil {
		return 0, domain.NewError(domain.CodeInternal, nil, "persistencia no configurada")
	}
	pending, err := p.repo.ListPending(ctx, limit)
	if err != nil {
		return 0, err
	}
	decided := 0
	for _, rec := range pending {
		res, err := p.QueryAuthorization(ctx, rec.AccessKey)
		if err != nil {
			p.log.Warn().Err(err).Str("clave_acceso", rec.AccessKey).Msg("consulta pendiente fallida")
			continue
		}
		if res.Final() {
			decided++
		}
	}
	return decided, nil
}

// GetByAccessKey registro persistido de un comprobante.
func (p *Pipeline) GetByAccessKey(ctx context.Context, accessKey string) (*entity.Comprobante, error) {
	if p.repo == nil {
		return nil, domain.NewError(domain.CodeInternal, nil, "persistencia no configurada")
	}
	if err := sricat.ValidateAccessKey(accessKey); err != nil {
		return nil, err
	}
	rec, err := p.repo.GetByAccessKey(ctx, accessKey)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, domain.NewError(domain.CodeNotFound, domain.ErrNotFound, "", "clave "+accessKey)
	}
	return rec, nil
}

// ── helpers privados ──────────────────────────────────────────────────────────

// sign carga el certificado de la llamada, lo valida y firma. El bundle se cierra al salir.
func (p *Pipeline) sign(xmlDoc []byte, cred Credential, alg signer.Algorithm) (*signer.SignedDocument, signer.ValidityReport, error) {
	bundle, err := p.loader.Load(cred.P12, cred.Password)
	if err != nil {
		p.log.Warn().Err(err).Str("step", "certificate").Msg("no se pudo abrir el certificado")
		return nil, signer.ValidityReport{}, err
	}
	defer bundle.Close()

	validity, err := bundle.Validate(p.cfg.Now())
	if err != nil {
		return nil, validity, err
	}
	if validity.NearExpiry {
		p.log.Warn().Str("step", "certificate").Int("dias_restantes", validity.DaysLeft).
			Time("valido_hasta", validity.NotAfter).Msg("el certificado de firma está por caducar")
	}

	signed, err := p.signer.Sign(xmlDoc, bundle, alg)
	if err != nil {
		return nil, validity, err
	}
	if signed.AccessKey == "" {
		return nil, validity, domain.NewError(domain.CodeInput, domain.ErrInvalidInput, "", "el XML no contiene infoTributaria/claveAcceso")
	}
	return signed, validity, nil
}

// save registra el intento. Un secuencial ya emitido con otra clave detiene el envío;
// cualquier otro fallo de persistencia solo se registra en el log.
func (p *Pipeline) save(ctx context.Context, log zerolog.Logger, rec *entity.Comprobante) error {
	if p.repo == nil {
		return nil
	}
	err := p.repo.Save(ctx, rec)
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrDuplicate) {
		log.Warn().Err(err).Str("step", "persist").Msg("secuencial duplicado")
		return err
	}
	log.Error().Err(err).Str("step", "persist").Msg("no se pudo registrar el comprobante")
	return nil
}

func (p *Pipeline) update(ctx context.Context, log zerolog.Logger, rec *entity.Comprobante) {
	if p.repo == nil {
		return
	}
	rec.UpdatedAt = p.cfg.Now()
	if err := p.repo.UpdateStatus(ctx, rec); err != nil {
		log.Error().Err(err).Str("step", "persist").Str("estado", rec.Status).Msg("no se pudo actualizar el comprobante")
	}
}

func newRecord(signed *signer.SignedDocument, f sricat.AccessKeyFields, total decimal.Decimal, now time.Time) *entity.Comprobante {
	issue, _ := time.Parse("02012006", f.Date)
	return &entity.Comprobante{
		AccessKey:     signed.AccessKey,
		DocType:       f.DocType,
		RUC:           f.RUC,
		Environment:   f.Environment,
		Establishment: f.Series[:3],
		EmissionPoint: f.Series[3:],
		Sequence:      f.Sequence,
		IssueDate:     issue,
		Total:         total,
		Status:        entity.ComprobanteStatusSigned,
		XMLSigned:     string(signed.XML),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func applyAuthorization(rec *entity.Comprobante, res *domsri.AuthorizationResult) {
	switch res.State {
	case domsri.AuthorizationAuthorized:
		rec.Status = entity.ComprobanteStatusAuthorized
		rec.AuthorizationNumber = res.Number
		rec.AuthorizationDate = res.Date
		rec.AuthorizedXML = res.Document
	case domsri.AuthorizationNotAuthorized:
		rec.Status = entity.ComprobanteStatusNotAuthorized
		rec.AuthorizationDate = res.Date
	default:
		return
	}
	rec.Messages = encodeMessages(res.Messages)
}

func totalOf(c domsri.Comprobante) decimal.Decimal {
	switch doc := c.(type) {
	case *domsri.Factura:
		return doc.InfoFactura.ImporteTotal
	case *domsri.NotaCredito:
		return doc.InfoNotaCredito.ValorModificacion
	case *domsri.NotaDebito:
		return doc.InfoNotaDebito.ValorTotal
	case *domsri.ComprobanteRetencion:
		return doc.TotalRetenido()
	}
	// La guía de remisión no tiene valor.
	return decimal.Zero
}

func encodeMessages(msgs []domsri.Message) string {
	if len(msgs) == 0 {
		return ""
	}
	b, err := json.Marshal(msgs)
	if err != nil {
		return ""
	}
	return string(b)
}

// DecodeMessages inverso de la serialización usada en el registro.
func DecodeMessages(raw string) []domsri.Message {
	out := []domsri.Message{}
	if raw == "" {
		return out
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return []domsri.Message{}
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// IsRejection indica si err es un rechazo del SRI.
func IsRejection(err error) bool {
	var rej *domsri.RejectionError
	return errors.As(err, &rej)
}
