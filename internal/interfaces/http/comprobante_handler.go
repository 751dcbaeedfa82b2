package http

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/sri-comprobantes/internal/application/comprobantes"
	"github.com/jhoicas/sri-comprobantes/internal/application/dto"
	"github.com/jhoicas/sri-comprobantes/internal/domain"
	"github.com/jhoicas/sri-comprobantes/internal/domain/entity"
	domsri "github.com/jhoicas/sri-comprobantes/internal/domain/sri"
	"github.com/jhoicas/sri-comprobantes/internal/infrastructure/sri/signer"
	sricat "github.com/jhoicas/sri-comprobantes/pkg/sri"
)

// ComprobanteHandler maneja las peticiones HTTP de emisión de comprobantes (protegido).
type ComprobanteHandler struct {
	pipeline *comprobantes.Pipeline
	ride     *comprobantes.RIDEUseCase
	// credencial del servidor, usada cuando la petición no trae p12
	defaultCred comprobantes.Credential
}

// NewComprobanteHandler construye el handler. ride puede ser nil si no hay persistencia.
func NewComprobanteHandler(p *comprobantes.Pipeline, ride *comprobantes.RIDEUseCase, defaultCred comprobantes.Credential) *ComprobanteHandler {
	return &ComprobanteHandler{pipeline: p, ride: ride, defaultCred: defaultCred}
}

// CreateAccessKey godoc
// @Summary      Generar clave de acceso
// @Tags         comprobantes
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.AccessKeyRequest  true  "fechaEmision dd/mm/aaaa, tipoComprobante, ruc, ambiente, estab, ptoEmi, secuencial"
// @Success      200   {object}  dto.AccessKeyResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /api/access-keys [post]
func (h *ComprobanteHandler) CreateAccessKey(c *fiber.Ctx) error {
	var in dto.AccessKeyRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	code := in.CodigoNumerico
	if code == "" {
		var err error
		if code, err = sricat.RandomNumericCode(); err != nil {
			return writeError(c, err)
		}
	}
	emission := in.TipoEmision
	if emission == "" {
		emission = sricat.EmissionNormal
	}
	fields := sricat.AccessKeyFields{
		Date:         strings.ReplaceAll(in.FechaEmision, "/", ""),
		DocType:      in.TipoComprobante,
		RUC:          in.RUC,
		Environment:  in.Ambiente,
		Series:       in.Estab + in.PtoEmi,
		Sequence:     in.Secuencial,
		NumericCode:  code,
		EmissionType: emission,
	}
	key, err := fields.Build()
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.AccessKeyResponse{
		ClaveAcceso:       key.String(),
		CodigoNumerico:    code,
		DigitoVerificador: int(key[len(key)-1] - '0'),
	})
}

// Sign godoc
// @Summary      Firmar XML (XAdES-BES) sin enviarlo al SRI
// @Tags         comprobantes
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.SignRequest  true  "xml, p12 (base64), password, algoritmo"
// @Success      200   {object}  dto.SignResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      422   {object}  dto.ErrorResponse
// @Router       /api/comprobantes/sign [post]
func (h *ComprobanteHandler) Sign(c *fiber.Ctx) error {
	var in dto.SignRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if strings.TrimSpace(in.XML) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "xml requerido"})
	}
	alg, err := requestAlgorithm(in.Algoritmo)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
	}
	signed, err := h.pipeline.SignOnly(c.UserContext(), []byte(in.XML), h.credential(in.Credencial), alg)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.SignResponse{
		ClaveAcceso: signed.AccessKey,
		IDFirma:     signed.SignatureID,
		Algoritmo:   string(signed.Algorithm),
		XML:         signed.XML,
	})
}

// Process godoc
// @Summary      Emitir comprobante: firma, envío y autorización
// @Description  Acepta un comprobante estructurado (factura, notas de crédito y débito, guía, retención) o un XML sin firma. Si el SRI devuelve
//
//	el comprobante responde 422 con el resultado y los mensajes del SRI.
//
// @Tags         comprobantes
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.ProcessComprobanteRequest  true  "factura | notaCredito | notaDebito | guiaRemision | comprobanteRetencion | xml, credencial"
// @Success      201   {object}  comprobantes.ProcessResult
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Failure      422   {object}  comprobantes.ProcessResult
// @Failure      502   {object}  dto.ErrorResponse
// @Router       /api/comprobantes [post]
func (h *ComprobanteHandler) Process(c *fiber.Ctx) error {
	var in dto.ProcessComprobanteRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	req := comprobantes.ProcessRequest{
		DocType:    sricat.DocumentType(in.TipoComprobante),
		Credential: h.credential(in.Credencial),
	}
	sources := 0
	for _, doc := range in.Documents() {
		req.Comprobante = doc
		sources++
	}
	if strings.TrimSpace(in.XML) != "" {
		req.XML = []byte(in.XML)
		sources++
	}
	if sources != 1 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "enviar exactamente uno de factura, notaCredito, notaDebito, guiaRemision, comprobanteRetencion o xml"})
	}
	alg, err := requestAlgorithm(in.Algoritmo)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
	}
	req.Algorithm = alg

	res, err := h.pipeline.Process(c.UserContext(), req)
	if err != nil {
		var rej *domsri.RejectionError
		if res != nil && errors.As(err, &rej) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(res)
		}
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(res)
}

// GetAuthorization godoc
// @Summary      Consultar autorización en el SRI
// @Tags         comprobantes
// @Security     Bearer
// @Produce      json
// @Param        clave  path  string  true  "Clave de acceso (49 dígitos)"
// @Success      200  {object}  domsri.AuthorizationResult
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      502  {object}  dto.ErrorResponse
// @Router       /api/comprobantes/{clave}/authorization [get]
func (h *ComprobanteHandler) GetAuthorization(c *fiber.Ctx) error {
	res, err := h.pipeline.QueryAuthorization(c.UserContext(), c.Params("clave"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(res)
}

// GetByAccessKey godoc
// @Summary      Obtener el registro de un comprobante
// @Tags         comprobantes
// @Security     Bearer
// @Produce      json
// @Param        clave  path  string  true  "Clave de acceso"
// @Success      200  {object}  dto.ComprobanteResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/comprobantes/{clave} [get]
func (h *ComprobanteHandler) GetByAccessKey(c *fiber.Ctx) error {
	rec, err := h.pipeline.GetByAccessKey(c.UserContext(), c.Params("clave"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toComprobanteResponse(rec))
}

// DownloadRIDE godoc
// @Summary      Descargar el RIDE (PDF) de un comprobante autorizado
// @Tags         comprobantes
// @Security     Bearer
// @Produce      application/pdf
// @Param        clave  path  string  true  "Clave de acceso"
// @Success      200  {file}    binary
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/comprobantes/{clave}/ride [get]
func (h *ComprobanteHandler) DownloadRIDE(c *fiber.Ctx) error {
	if h.ride == nil {
		return c.Status(fiber.StatusNotImplemented).JSON(dto.ErrorResponse{Code: "NOT_IMPLEMENTED", Message: "persistencia no configurada"})
	}
	pdf, filename, err := h.ride.Download(c.UserContext(), c.Params("clave"))
	if err != nil {
		return writeError(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.Send(pdf)
}

// RefreshPending godoc
// @Summary      Reconsultar comprobantes recibidos sin decisión
// @Tags         comprobantes
// @Security     Bearer
// @Produce      json
// @Param        limit  query  int  false  "Máximo de comprobantes (default 50)"
// @Success      200  {object}  dto.RefreshResponse
// @Router       /api/comprobantes/refresh [post]
func (h *ComprobanteHandler) RefreshPending(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	n, err := h.pipeline.RefreshPending(c.UserContext(), limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.RefreshResponse{Actualizados: n})
}

// ── helpers ───────────────────────────────────────────────────────────────────

// requestAlgorithm vacío deja que el pipeline use el algoritmo configurado.
func requestAlgorithm(s string) (signer.Algorithm, error) {
	if strings.TrimSpace(s) == "" {
		return "", nil
	}
	return signer.ParseAlgorithm(s)
}

func (h *ComprobanteHandler) credential(in dto.Credencial) comprobantes.Credential {
	if len(in.P12) == 0 {
		return h.defaultCred
	}
	return comprobantes.Credential{P12: in.P12, Password: in.Password}
}

// writeError traduce el código del error de dominio a un status HTTP.
func writeError(c *fiber.Ctx, err error) error {
	status, code := fiber.StatusInternalServerError, "INTERNAL"
	switch domain.CodeOf(err) {
	case domain.CodeInput:
		status, code = fiber.StatusBadRequest, "VALIDATION"
	case domain.CodeSchema:
		status, code = fiber.StatusUnprocessableEntity, "SCHEMA"
	case domain.CodeCredential:
		status, code = fiber.StatusUnprocessableEntity, "CREDENTIAL"
	case domain.CodeRejection:
		status, code = fiber.StatusUnprocessableEntity, "REJECTED"
	case domain.CodeCommunication:
		status, code = fiber.StatusBadGateway, "SRI_UNAVAILABLE"
	case domain.CodeNotFound:
		status, code = fiber.StatusNotFound, "NOT_FOUND"
	case domain.CodeSigning:
		code = "SIGNING"
	}
	if errors.Is(err, domain.ErrNotFound) {
		status, code = fiber.StatusNotFound, "NOT_FOUND"
	}
	if errors.Is(err, domain.ErrDuplicate) {
		status, code = fiber.StatusConflict, "DUPLICATE"
	}
	return c.Status(status).JSON(dto.ErrorResponse{Code: code, Message: err.Error()})
}

func toComprobanteResponse(rec *entity.Comprobante) dto.ComprobanteResponse {
	fecha := ""
	if !rec.IssueDate.IsZero() {
		fecha = rec.IssueDate.Format("02/01/2006")
	}
	return dto.ComprobanteResponse{
		ID:                 rec.ID,
		ClaveAcceso:        rec.AccessKey,
		TipoComprobante:    rec.DocType,
		RUC:                rec.RUC,
		Ambiente:           rec.Environment,
		Numero:             rec.Establishment + "-" + rec.EmissionPoint + "-" + rec.Sequence,
		FechaEmision:       fecha,
		Total:              rec.Total,
		Estado:             rec.Status,
		NumeroAutorizacion: rec.AuthorizationNumber,
		FechaAutorizacion:  rec.AuthorizationDate,
		Mensajes:           comprobantes.DecodeMessages(rec.Messages),
		CreadoEn:           rec.CreatedAt,
		ActualizadoEn:      rec.UpdatedAt,
	}
}
