package vault

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/trivault/trivault/internal/domain"
	"github.com/trivault/trivault/internal/modules/assets"
	"github.com/trivault/trivault/internal/modules/strategy"
)

// Engine performs the mechanical half of every vault operation: splitting
// amounts across the three strategy slots, placing funds with each
// capability, and pulling funds back out. It holds no holder state; the
// façade owns policies, positions and the journal.
type Engine struct {
	registry *strategy.Registry
	ledger   *assets.Ledger
	log      zerolog.Logger
}

// NewEngine creates the allocation engine
func NewEngine(registry *strategy.Registry, ledger *assets.Ledger, log zerolog.Logger) *Engine {
	return &Engine{
		registry: registry,
		ledger:   ledger,
		log:      log.With().Str("component", "vault_engine").Logger(),
	}
}

// Split divides amount across the three slots per the percentage triple.
// The first two shares round down and the third takes the remainder, so the
// parts always sum back to amount exactly.
func Split(amount int64, pct [3]int) [3]int64 {
	a0 := amount * int64(pct[0]) / 100
	a1 := amount * int64(pct[1]) / 100
	a2 := amount - a0 - a1
	return [3]int64{a0, a1, a2}
}

// Place approves and hands each non-zero share to its strategy slot. On a
// mid-sequence failure the shares already accepted are released back to the
// vault account so the caller observes no partial placement.
func (e *Engine) Place(shares [3]int64) error {
	caps := e.registry.All()
	names := strategy.SlotNames()

	for i := 0; i < 3; i++ {
		if shares[i] == 0 {
			continue
		}

		if err := e.ledger.Approve(assets.VaultAccount, "strategy:"+names[i], shares[i]); err != nil {
			e.compensatePlace(shares, i)
			return fmt.Errorf("approving %s share: %w", names[i], err)
		}

		if err := caps[i].Accept(shares[i]); err != nil {
			e.compensatePlace(shares, i)
			return &domain.CollaboratorError{Op: "accept", Strategy: names[i], Err: err}
		}
	}
	return nil
}

// compensatePlace releases the shares accepted before slot failed.
func (e *Engine) compensatePlace(shares [3]int64, failed int) {
	caps := e.registry.All()
	names := strategy.SlotNames()

	for i := 0; i < failed; i++ {
		if shares[i] == 0 {
			continue
		}
		if err := caps[i].Release(shares[i]); err != nil {
			// Funds stay with the strategy; the next rebalance picks them up.
			e.log.Error().Err(err).
				Str("strategy", names[i]).
				Int64("amount", shares[i]).
				Msg("Compensating release failed")
		}
	}
}

// Recall pulls amounts back from each slot into the vault account. Zero
// entries are skipped. On failure the slots already drained are re-placed.
func (e *Engine) Recall(amounts [3]int64) error {
	caps := e.registry.All()
	names := strategy.SlotNames()

	for i := 0; i < 3; i++ {
		if amounts[i] == 0 {
			continue
		}

		if err := caps[i].Release(amounts[i]); err != nil {
			e.compensateRecall(amounts, i)
			return &domain.CollaboratorError{Op: "release", Strategy: names[i], Err: err}
		}
	}
	return nil
}

// compensateRecall re-places the amounts released before slot failed.
func (e *Engine) compensateRecall(amounts [3]int64, failed int) {
	caps := e.registry.All()
	names := strategy.SlotNames()

	for i := 0; i < failed; i++ {
		if amounts[i] == 0 {
			continue
		}
		if err := e.ledger.Approve(assets.VaultAccount, "strategy:"+names[i], amounts[i]); err != nil {
			e.log.Error().Err(err).Str("strategy", names[i]).Msg("Compensating approve failed")
			continue
		}
		if err := caps[i].Accept(amounts[i]); err != nil {
			e.log.Error().Err(err).
				Str("strategy", names[i]).
				Int64("amount", amounts[i]).
				Msg("Compensating re-accept failed")
		}
	}
}

// Balances reads the current value of each strategy slot.
func (e *Engine) Balances() ([3]int64, error) {
	var out [3]int64
	caps := e.registry.All()
	names := strategy.SlotNames()

	for i := 0; i < 3; i++ {
		v, err := caps[i].CurrentValue()
		if err != nil {
			return out, &domain.CollaboratorError{Op: "current_value", Strategy: names[i], Err: err}
		}
		out[i] = v
	}
	return out, nil
}

// RecomputePolicy derives a percentage triple from realized balances. The
// first two percentages round down and the third takes the remainder, so the
// triple always sums to 100. A zero total keeps the previous policy.
func RecomputePolicy(balances [3]int64, previous [3]int) [3]int {
	total := balances[0] + balances[1] + balances[2]
	if total == 0 {
		return previous
	}
	p0 := int(balances[0] * 100 / total)
	p1 := int(balances[1] * 100 / total)
	return [3]int{p0, p1, 100 - p0 - p1}
}
