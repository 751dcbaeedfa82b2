package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/sri-comprobantes/internal/domain"
	"github.com/jhoicas/sri-comprobantes/internal/domain/entity"
	"github.com/jhoicas/sri-comprobantes/internal/domain/repository"
)

var _ repository.ComprobanteRepository = (*ComprobanteRepo)(nil)

// ComprobanteRepo implementación de ComprobanteRepository (usable con pool o tx).
type ComprobanteRepo struct {
	q Querier
}

// NewComprobanteRepository construye el adaptador. Pasar pool o tx (Querier).
func NewComprobanteRepository(q Querier) *ComprobanteRepo {
	return &ComprobanteRepo{q: q}
}

const comprobanteColumns = `id, access_key, doc_type, ruc, environment, establishment, emission_point, sequence,
	issue_date, total, status, xml_signed, authorization_number, authorization_date, authorized_xml,
	messages::text, created_at, updated_at`

// Save inserta el comprobante. Un reenvío de la misma clave reemplaza el XML y el estado
// pero conserva id y created_at del primer intento. Si el registro ya está AUTORIZADO no se
// toca: estado, XML firmado y datos de autorización vuelven a c tal como están guardados.
func (r *ComprobanteRepo) Save(ctx context.Context, c *entity.Comprobante) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	query := `
		INSERT INTO comprobantes (id, access_key, doc_type, ruc, environment, establishment, emission_point, sequence,
			issue_date, total, status, xml_signed, authorization_number, authorization_date, authorized_xml,
			messages, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16::jsonb, $17, $18)
		ON CONFLICT (access_key) DO UPDATE
		SET total                = EXCLUDED.total,
		    status               = EXCLUDED.status,
		    xml_signed           = EXCLUDED.xml_signed,
		    authorization_number = COALESCE(EXCLUDED.authorization_number, comprobantes.authorization_number),
		    authorization_date   = COALESCE(EXCLUDED.authorization_date, comprobantes.authorization_date),
		    authorized_xml       = COALESCE(EXCLUDED.authorized_xml, comprobantes.authorized_xml),
		    messages             = EXCLUDED.messages,
		    updated_at           = EXCLUDED.updated_at
		WHERE comprobantes.status <> $19
		RETURNING id, created_at`
	err := r.q.QueryRow(ctx, query,
		c.ID, c.AccessKey, c.DocType, c.RUC, c.Environment, c.Establishment, c.EmissionPoint, c.Sequence,
		c.IssueDate, c.Total, c.Status, c.XMLSigned,
		nullIfEmpty(c.AuthorizationNumber), nullIfEmpty(c.AuthorizationDate), nullIfEmpty(c.AuthorizedXML),
		nullIfEmpty(c.Messages), c.CreatedAt, c.UpdatedAt, entity.ComprobanteStatusAuthorized,
	).Scan(&c.ID, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// El WHERE del upsert descartó la fila: ya estaba autorizada.
		stored, gerr := r.GetByAccessKey(ctx, c.AccessKey)
		if gerr != nil {
			return gerr
		}
		if stored == nil {
			return fmt.Errorf("upsert comprobante: clave %s no registrada", c.AccessKey)
		}
		*c = *stored
		return nil
	}
	if err != nil {
		if isUniqueViolation(err) {
			return domain.WrapError(domain.CodeInput, domain.ErrDuplicate, err,
				fmt.Sprintf("el secuencial %s-%s-%s ya está registrado con otra clave de acceso", c.Establishment, c.EmissionPoint, c.Sequence))
		}
		return fmt.Errorf("upsert comprobante: %w", err)
	}
	return nil
}

// UpdateStatus actualiza estado, datos de autorización y mensajes.
func (r *ComprobanteRepo) UpdateStatus(ctx context.Context, c *entity.Comprobante) error {
	query := `
		UPDATE comprobantes
		SET status               = $2,
		    authorization_number = COALESCE($3, authorization_number),
		    authorization_date   = COALESCE($4, authorization_date),
		    authorized_xml       = COALESCE($5, authorized_xml),
		    messages             = COALESCE($6::jsonb, messages),
		    updated_at           = $7
		WHERE access_key = $1`
	tag, err := r.q.Exec(ctx, query,
		c.AccessKey, c.Status,
		nullIfEmpty(c.AuthorizationNumber), nullIfEmpty(c.AuthorizationDate), nullIfEmpty(c.AuthorizedXML),
		nullIfEmpty(c.Messages), c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update comprobante status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update comprobante status: clave %s no registrada", c.AccessKey)
	}
	return nil
}

// GetByAccessKey devuelve nil, nil si la clave no está registrada.
func (r *ComprobanteRepo) GetByAccessKey(ctx context.Context, accessKey string) (*entity.Comprobante, error) {
	query := `SELECT ` + comprobanteColumns + ` FROM comprobantes WHERE access_key = $1`
	c, err := scanComprobante(r.q.QueryRow(ctx, query, accessKey))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get comprobante: %w", err)
	}
	return c, nil
}

// ListPending comprobantes RECIBIDA, más antiguos primero.
func (r *ComprobanteRepo) ListPending(ctx context.Context, limit int) ([]*entity.Comprobante, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + comprobanteColumns + `
		FROM comprobantes
		WHERE status = $1
		ORDER BY created_at
		LIMIT $2`
	rows, err := r.q.Query(ctx, query, entity.ComprobanteStatusReceived, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending comprobantes: %w", err)
	}
	defer rows.Close()

	var list []*entity.Comprobante
	for rows.Next() {
		c, err := scanComprobante(rows)
		if err != nil {
			return nil, fmt.Errorf("scan comprobante: %w", err)
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

func scanComprobante(row pgx.Row) (*entity.Comprobante, error) {
	var c entity.Comprobante
	var authNumber, authDate, authXML, messages *string
	err := row.Scan(
		&c.ID, &c.AccessKey, &c.DocType, &c.RUC, &c.Environment, &c.Establishment, &c.EmissionPoint, &c.Sequence,
		&c.IssueDate, &c.Total, &c.Status, &c.XMLSigned, &authNumber, &authDate, &authXML,
		&messages, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.AuthorizationNumber = derefString(authNumber)
	c.AuthorizationDate = derefString(authDate)
	c.AuthorizedXML = derefString(authXML)
	c.Messages = derefString(messages)
	return &c, nil
}
