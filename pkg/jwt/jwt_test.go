package jwt_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/sri-comprobantes/pkg/jwt"
)

const secret = "secreto-de-prueba-32-caracteres!!"

func TestGenerateParse(t *testing.T) {
	tok, err := jwt.Generate(secret, "u-1", "c-1", jwt.RoleEmisor, "sri-comprobantes", 5)
	require.NoError(t, err)

	user, company, role, err := jwt.Parse(secret, tok)
	require.NoError(t, err)
	assert.Equal(t, "u-1", user)
	assert.Equal(t, "c-1", company)
	assert.Equal(t, jwt.RoleEmisor, role)
}

func TestGenerate_RolDesconocido(t *testing.T) {
	_, err := jwt.Generate(secret, "u-1", "c-1", "bodeguero", "sri-comprobantes", 5)
	assert.ErrorIs(t, err, jwt.ErrUnknownRole)
}

func TestParse_Errores(t *testing.T) {
	expirado, err := jwt.Generate(secret, "u-1", "c-1", jwt.RoleAdmin, "sri-comprobantes", -1)
	require.NoError(t, err)
	valido, err := jwt.Generate(secret, "u-1", "c-1", jwt.RoleAdmin, "sri-comprobantes", 5)
	require.NoError(t, err)

	tests := []struct {
		name   string
		secret string
		token  string
	}{
		{"expirado", secret, expirado},
		{"otra clave", "otra-clave-de-prueba-32-caracteres", valido},
		{"basura", secret, "no.es.jwt"},
		{"secret vacío", "", valido},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, _, err := jwt.Parse(tt.secret, tt.token)
			assert.Error(t, err)
		})
	}
}
