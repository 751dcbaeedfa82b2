package sri_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/sri-comprobantes/pkg/sri"
)

func TestLookupRetention(t *testing.T) {
	tests := []struct {
		tax, code string
		pct       string
		ok        bool
	}{
		{sri.RetentionTaxRenta, sri.RentaBienesMuebles, "1.75", true},
		{sri.RetentionTaxRenta, sri.RentaRimpeNegocioPopular, "0", true},
		{sri.RetentionTaxRenta, "405", "35", true},
		{sri.RetentionTaxIVA, sri.RetIVA70Servicios, "70", true},
		{sri.RetentionTaxIVA, sri.RetIVA100Profesionales, "100", true},
		{sri.RetentionTaxIVA, "312", "", false},
		{sri.RetentionTaxISD, "4580", "", false},
		{sri.RetentionTaxRenta, "999", "", false},
	}
	for _, tt := range tests {
		c, ok := sri.LookupRetention(tt.tax, tt.code)
		assert.Equal(t, tt.ok, ok, "%s/%s", tt.tax, tt.code)
		if tt.ok {
			assert.True(t, decimal.RequireFromString(tt.pct).Equal(c.Percentage), "%s/%s: %s", tt.tax, tt.code, c.Percentage)
			assert.NotEmpty(t, c.Name)
		}
	}
}

func TestRetentionCode_RetainedValue(t *testing.T) {
	c, ok := sri.LookupRetention(sri.RetentionTaxRenta, sri.RentaBienesMuebles)
	require.True(t, ok)
	assert.Equal(t, "1.75", c.RetainedValue(decimal.RequireFromString("100")).StringFixed(2))
	// 333.33 × 1.75% = 5.833275 → 5.83
	assert.Equal(t, "5.83", c.RetainedValue(decimal.RequireFromString("333.33")).StringFixed(2))

	iva, ok := sri.LookupRetention(sri.RetentionTaxIVA, sri.RetIVA30Bienes)
	require.True(t, ok)
	assert.Equal(t, "4.50", iva.RetainedValue(decimal.RequireFromString("15")).StringFixed(2))
}

func TestLookupTaxSupport(t *testing.T) {
	s, ok := sri.LookupTaxSupport("01")
	require.True(t, ok)
	assert.True(t, s.CreditoIVA)
	assert.False(t, s.CostoGastoIR)

	s, ok = sri.LookupTaxSupport("05")
	require.True(t, ok)
	assert.True(t, s.CreditoIVA && s.CostoGastoIR)

	_, ok = sri.LookupTaxSupport("11")
	assert.False(t, ok)
}
