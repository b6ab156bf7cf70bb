package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trivault/trivault/internal/domain"
)

func TestPolicy_Validate(t *testing.T) {
	valid := []Policy{
		{Options: 40, LP: 40, Staking: 20},
		{Options: 100, LP: 0, Staking: 0},
		{Options: 0, LP: 0, Staking: 100},
		{Options: 33, LP: 33, Staking: 34},
	}
	for _, p := range valid {
		assert.NoError(t, p.Validate(), "%+v should be valid", p)
	}

	invalid := []Policy{
		{Options: 0, LP: 0, Staking: 0},
		{Options: 50, LP: 50, Staking: 50},
		{Options: 40, LP: 40, Staking: 19},
		{Options: -10, LP: 60, Staking: 50},
		{Options: 120, LP: -10, Staking: -10},
	}
	for _, p := range invalid {
		assert.ErrorIs(t, p.Validate(), domain.ErrInvalidPolicy, "%+v should be invalid", p)
	}
}

func TestDefault(t *testing.T) {
	def := Default()
	assert.NoError(t, def.Validate())
	assert.Equal(t, [3]int{40, 40, 20}, def.Percentages())
}
