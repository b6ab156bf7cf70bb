package policy

import (
	"time"

	"github.com/trivault/trivault/internal/domain"
)

// Policy is a holder's target allocation across the three strategy slots.
// Percentages are non-negative integers summing to exactly 100.
type Policy struct {
	Options   int       `json:"p_options"`
	LP        int       `json:"p_lp"`
	Staking   int       `json:"p_staking"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the policy invariant: non-negative percentages summing to 100
func (p Policy) Validate() error {
	if p.Options < 0 || p.LP < 0 || p.Staking < 0 {
		return domain.ErrInvalidPolicy
	}
	if p.Options+p.LP+p.Staking != 100 {
		return domain.ErrInvalidPolicy
	}
	return nil
}

// Percentages returns the three percentages in slot order
func (p Policy) Percentages() [3]int {
	return [3]int{p.Options, p.LP, p.Staking}
}

// Default returns the fallback policy applied when a holder deposits
// without ever having set one.
func Default() Policy {
	return Policy{Options: 40, LP: 40, Staking: 20}
}
