package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateIsDeterministic(t *testing.T) {
	a := Generate("seed-1", "br")
	b := Generate("seed-1", "BR")
	assert.Equal(t, a, b)
	assert.Len(t, a.ID, 16)
	assert.Equal(t, "America/Sao_Paulo", a.Timezone)
	assert.Equal(t, "pt-BR", a.Language)
	assert.Contains(t, a.UserAgent, "Chrome/")
}

func TestGenerateDiffersBySeed(t *testing.T) {
	assert.NotEqual(t, Generate("seed-1", "BR").ID, Generate("seed-2", "BR").ID)
}

func TestGenerateUnknownCountryFallsBack(t *testing.T) {
	p := Generate("", "ZZ")
	assert.Equal(t, "America/Sao_Paulo", p.Timezone)
	assert.Equal(t, "ZZ", p.Country)
	assert.NotZero(t, p.ViewportWidth)
	assert.Equal(t, "ZZ", p.ToMap()["country"])
}
