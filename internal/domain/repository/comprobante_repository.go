package repository

import (
	"context"

	"github.com/jhoicas/sri-comprobantes/internal/domain/entity"
)

// ComprobanteRepository define el puerto de persistencia de comprobantes emitidos.
type ComprobanteRepository interface {
	// Save inserta el comprobante o, si la clave de acceso ya existe, reemplaza su estado.
	// Un registro AUTORIZADO no cambia y se copia en c. Otro secuencial igual con distinta
	// clave devuelve domain.ErrDuplicate.
	Save(ctx context.Context, c *entity.Comprobante) error
	// UpdateStatus actualiza estado, autorización y mensajes.
	UpdateStatus(ctx context.Context, c *entity.Comprobante) error
	// GetByAccessKey devuelve nil, nil si no existe.
	GetByAccessKey(ctx context.Context, accessKey string) (*entity.Comprobante, error)
	// ListPending comprobantes recibidos sin decisión de autorización, más antiguos primero.
	ListPending(ctx context.Context, limit int) ([]*entity.Comprobante, error)
}
