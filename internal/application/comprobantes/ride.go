package comprobantes

import (
	"context"
	"fmt"

	"github.com/jhoicas/sri-comprobantes/internal/domain"
	"github.com/jhoicas/sri-comprobantes/internal/domain/entity"
	"github.com/jhoicas/sri-comprobantes/internal/domain/repository"
	domsri "github.com/jhoicas/sri-comprobantes/internal/domain/sri"
	sricat "github.com/jhoicas/sri-comprobantes/pkg/sri"
)

// RIDEReader extrae los datos imprimibles del XML de un comprobante.
type RIDEReader interface {
	Read(xml []byte) (*domsri.RIDE, error)
}

// RIDEGenerator genera el PDF del RIDE.
type RIDEGenerator interface {
	GenerateRIDE(ctx context.Context, ride *domsri.RIDE) ([]byte, error)
}

// RIDEUseCase genera la representación impresa (RIDE) de un comprobante autorizado.
type RIDEUseCase struct {
	repo      repository.ComprobanteRepository
	reader    RIDEReader
	generator RIDEGenerator
}

// NewRIDEUseCase construye el caso de uso.
func NewRIDEUseCase(repo repository.ComprobanteRepository, reader RIDEReader, generator RIDEGenerator) *RIDEUseCase {
	return &RIDEUseCase{repo: repo, reader: reader, generator: generator}
}

// Download devuelve el PDF y el nombre de archivo sugerido.
//
// Retorna ErrNotFound si la clave no está registrada y ErrInvalidInput si el comprobante
// todavía no está autorizado.
func (uc *RIDEUseCase) Download(ctx context.Context, accessKey string) (pdf []byte, filename string, err error) {
	if err := sricat.ValidateAccessKey(accessKey); err != nil {
		return nil, "", err
	}
	rec, err := uc.repo.GetByAccessKey(ctx, accessKey)
	if err != nil {
		return nil, "", fmt.Errorf("ride: obtener comprobante: %w", err)
	}
	if rec == nil {
		return nil, "", domain.NewError(domain.CodeNotFound, domain.ErrNotFound, "", "clave "+accessKey)
	}
	if rec.Status != entity.ComprobanteStatusAuthorized {
		return nil, "", domain.NewError(domain.CodeInput, domain.ErrInvalidInput, "",
			fmt.Sprintf("el comprobante está en estado %s, el RIDE solo se emite para comprobantes autorizados", rec.Status))
	}

	source := rec.AuthorizedXML
	if source == "" {
		source = rec.XMLSigned
	}
	ride, err := uc.reader.Read([]byte(source))
	if err != nil {
		return nil, "", err
	}
	ride.AuthorizationNumber = rec.AuthorizationNumber
	ride.AuthorizationDate = rec.AuthorizationDate

	pdf, err = uc.generator.GenerateRIDE(ctx, ride)
	if err != nil {
		return nil, "", domain.WrapError(domain.CodeInternal, nil, err, "generar RIDE")
	}
	return pdf, "RIDE-" + accessKey + ".pdf", nil
}
