// Package vault implements the allocation engine and its façade: deposits,
// withdrawals, policy management and the two rebalance flavors, each
// protected by a single entry guard and journaled atomically with the
// position writes they cause.
package vault

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/trivault/trivault/internal/domain"
	"github.com/trivault/trivault/internal/events"
	"github.com/trivault/trivault/internal/modules/assets"
	"github.com/trivault/trivault/internal/modules/policy"
	"github.com/trivault/trivault/internal/modules/position"
	"github.com/trivault/trivault/internal/modules/strategy"
)

// Service is the vault façade. Every mutating entry point acquires the
// entry guard, performs its strategy and ledger calls, and commits the
// resulting state writes in one transaction on state.db.
type Service struct {
	guard     *EntryGuard
	engine    *Engine
	registry  *strategy.Registry
	ledger    *assets.Ledger
	policies  *policy.Repository
	positions *position.Repository
	journal   *Journal
	stateDB   *sql.DB
	events    *events.Manager
	log       zerolog.Logger
}

// NewService creates the vault façade
func NewService(
	engine *Engine,
	registry *strategy.Registry,
	ledger *assets.Ledger,
	policies *policy.Repository,
	positions *position.Repository,
	journal *Journal,
	stateDB *sql.DB,
	eventManager *events.Manager,
	log zerolog.Logger,
) *Service {
	return &Service{
		guard:     NewEntryGuard(),
		engine:    engine,
		registry:  registry,
		ledger:    ledger,
		policies:  policies,
		positions: positions,
		journal:   journal,
		stateDB:   stateDB,
		events:    eventManager,
		log:       log.With().Str("service", "vault").Logger(),
	}
}

// Deposit pulls amount from the holder's account, splits it per the
// holder's policy and places the shares with the three strategies. A holder
// without a policy gets the default one, persisted on first use. The holder
// must have approved the vault account for at least amount beforehand.
func (s *Service) Deposit(holder string, amount int64) error {
	if err := s.guard.Enter(); err != nil {
		return err
	}
	defer s.guard.Exit()

	if amount <= 0 {
		return fmt.Errorf("%w: deposit requires a positive amount", domain.ErrInvalidAmount)
	}

	pol, err := s.policies.Get(holder)
	if err != nil {
		return err
	}
	defaultApplied := pol == nil
	if defaultApplied {
		def := policy.Default()
		pol = &def
	}

	if err := s.ledger.TransferFrom(holder, assets.VaultAccount, assets.VaultAccount, amount); err != nil {
		return fmt.Errorf("collecting deposit: %w", err)
	}

	shares := Split(amount, pol.Percentages())
	if err := s.engine.Place(shares); err != nil {
		if rerr := s.ledger.Transfer(assets.VaultAccount, holder, amount); rerr != nil {
			s.log.Error().Err(rerr).Str("holder", holder).Msg("Refund after failed placement did not complete")
		}
		return err
	}

	err = s.withStateTx(func(tx *sql.Tx) error {
		if defaultApplied {
			if err := s.policies.SetTx(tx, holder, *pol); err != nil {
				return err
			}
		}
		if err := s.positions.AddTx(tx, holder, amount); err != nil {
			return err
		}
		return s.journal.AppendTx(tx, holder, OpDeposit, amount,
			fmt.Sprintf("placed %d/%d/%d", shares[0], shares[1], shares[2]))
	})
	if err != nil {
		return err
	}

	s.events.EmitTyped(events.DepositProcessed, "vault", &events.DepositProcessedData{
		Holder:  holder,
		Amount:  amount,
		Placed:  shares,
		Default: defaultApplied,
	})
	if defaultApplied {
		s.events.EmitTyped(events.PolicyChanged, "vault", &events.PolicyChangedData{
			Holder: holder,
			P1:     pol.Options,
			P2:     pol.LP,
			P3:     pol.Staking,
			Source: "default",
		})
	}

	s.log.Info().
		Str("holder", holder).
		Int64("amount", amount).
		Bool("default_policy", defaultApplied).
		Msg("Deposit processed")
	return nil
}

// Withdraw recalls amount from the strategies proportionally to their
// realized values and credits it to the holder. Slots holding nothing are
// skipped; the holder still receives the full amount requested.
func (s *Service) Withdraw(holder string, amount int64) error {
	if err := s.guard.Enter(); err != nil {
		return err
	}
	defer s.guard.Exit()

	if amount <= 0 {
		return fmt.Errorf("%w: withdrawal requires a positive amount", domain.ErrInvalidAmount)
	}

	pos, err := s.positions.Get(holder)
	if err != nil {
		return err
	}
	if pos.TotalContributed == 0 {
		return domain.ErrNoPosition
	}
	if amount > pos.TotalContributed {
		return fmt.Errorf("%w: withdrawal %d exceeds contributed %d",
			domain.ErrInsufficientBalance, amount, pos.TotalContributed)
	}

	balances, err := s.engine.Balances()
	if err != nil {
		return err
	}
	total := balances[0] + balances[1] + balances[2]
	if amount > total {
		return fmt.Errorf("%w: withdrawal %d exceeds realized value %d",
			domain.ErrInsufficientBalance, amount, total)
	}

	// Proportional shares round down; the rounding shortfall is spread over
	// slots with spare balance, so no slot is ever asked for more than it
	// holds while amount <= total.
	var recall [3]int64
	var assigned int64
	for i := range balances {
		recall[i] = amount * balances[i] / total
		assigned += recall[i]
	}
	for i := 0; i < len(balances) && assigned < amount; i++ {
		take := min(balances[i]-recall[i], amount-assigned)
		recall[i] += take
		assigned += take
	}

	if err := s.engine.Recall(recall); err != nil {
		return err
	}

	if err := s.ledger.Transfer(assets.VaultAccount, holder, amount); err != nil {
		if perr := s.engine.Place(recall); perr != nil {
			s.log.Error().Err(perr).Str("holder", holder).Msg("Re-placement after failed payout did not complete")
		}
		return fmt.Errorf("paying out withdrawal: %w", err)
	}

	err = s.withStateTx(func(tx *sql.Tx) error {
		if err := s.positions.AddTx(tx, holder, -amount); err != nil {
			return err
		}
		return s.journal.AppendTx(tx, holder, OpWithdraw, amount,
			fmt.Sprintf("released %d/%d/%d", recall[0], recall[1], recall[2]))
	})
	if err != nil {
		return err
	}

	s.events.EmitTyped(events.WithdrawalProcessed, "vault", &events.WithdrawalProcessedData{
		Holder:   holder,
		Amount:   amount,
		Released: recall,
	})

	s.log.Info().Str("holder", holder).Int64("amount", amount).Msg("Withdrawal processed")
	return nil
}

// SetPolicy validates and stores the holder's allocation policy. It takes
// effect on the next deposit or rebalance; existing placements stay put.
func (s *Service) SetPolicy(holder string, p policy.Policy) error {
	if err := s.guard.Enter(); err != nil {
		return err
	}
	defer s.guard.Exit()

	if err := p.Validate(); err != nil {
		return err
	}

	err := s.withStateTx(func(tx *sql.Tx) error {
		if err := s.policies.SetTx(tx, holder, p); err != nil {
			return err
		}
		return s.journal.AppendTx(tx, holder, OpSetPolicy, 0,
			fmt.Sprintf("policy %d/%d/%d", p.Options, p.LP, p.Staking))
	})
	if err != nil {
		return err
	}

	s.events.EmitTyped(events.PolicyChanged, "vault", &events.PolicyChangedData{
		Holder: holder,
		P1:     p.Options,
		P2:     p.LP,
		P3:     p.Staking,
		Source: "holder",
	})

	s.log.Info().
		Str("holder", holder).
		Int("p_options", p.Options).
		Int("p_lp", p.LP).
		Int("p_staking", p.Staking).
		Msg("Policy set")
	return nil
}

// Rebalance exits every strategy completely and re-places the realized
// total per the holder's current policy. Accrued yield gets redistributed
// in the process.
func (s *Service) Rebalance(holder string) error {
	return s.rebalance(holder, nil)
}

// RebalanceWithNewPolicy stores the new policy and rebalances against it in
// one operation. The policy write commits only if the rebalance succeeds.
func (s *Service) RebalanceWithNewPolicy(holder string, p policy.Policy) error {
	if err := p.Validate(); err != nil {
		return err
	}
	return s.rebalance(holder, &p)
}

func (s *Service) rebalance(holder string, newPolicy *policy.Policy) error {
	if err := s.guard.Enter(); err != nil {
		return err
	}
	defer s.guard.Exit()

	pos, err := s.positions.Get(holder)
	if err != nil {
		return err
	}
	if pos.TotalContributed == 0 {
		return domain.ErrNoPosition
	}

	pol := newPolicy
	if pol == nil {
		stored, err := s.policies.Get(holder)
		if err != nil {
			return err
		}
		if stored == nil {
			def := policy.Default()
			stored = &def
		}
		pol = stored
	}

	balances, err := s.engine.Balances()
	if err != nil {
		return err
	}
	total := balances[0] + balances[1] + balances[2]

	if err := s.engine.Recall(balances); err != nil {
		return err
	}

	shares := Split(total, pol.Percentages())
	if err := s.engine.Place(shares); err != nil {
		if rerr := s.engine.Place(balances); rerr != nil {
			s.log.Error().Err(rerr).Str("holder", holder).Msg("Restoring prior placement did not complete")
		}
		return err
	}

	err = s.withStateTx(func(tx *sql.Tx) error {
		if newPolicy != nil {
			if err := s.policies.SetTx(tx, holder, *newPolicy); err != nil {
				return err
			}
		}
		return s.journal.AppendTx(tx, holder, OpRebalance, total,
			fmt.Sprintf("placed %d/%d/%d", shares[0], shares[1], shares[2]))
	})
	if err != nil {
		return err
	}
	if err := s.positions.Touch(holder); err != nil {
		s.log.Warn().Err(err).Str("holder", holder).Msg("Position timestamp update failed")
	}

	s.events.EmitTyped(events.RebalanceExecuted, "vault", &events.RebalanceExecutedData{
		Holder:    holder,
		Realized:  total,
		Placed:    shares,
		NewPolicy: newPolicy != nil,
	})
	if newPolicy != nil {
		s.events.EmitTyped(events.PolicyChanged, "vault", &events.PolicyChangedData{
			Holder: holder,
			P1:     newPolicy.Options,
			P2:     newPolicy.LP,
			P3:     newPolicy.Staking,
			Source: "holder",
		})
	}

	s.log.Info().
		Str("holder", holder).
		Int64("realized", total).
		Bool("new_policy", newPolicy != nil).
		Msg("Rebalance executed")
	return nil
}

// RebalancePartial moves amount from one strategy slot to another without
// touching the third, then recomputes the stored policy from the realized
// balances so it reflects the actual distribution.
func (s *Service) RebalancePartial(holder, from, to string, amount int64) error {
	if err := s.guard.Enter(); err != nil {
		return err
	}
	defer s.guard.Exit()

	if amount <= 0 {
		return fmt.Errorf("%w: partial rebalance requires a positive amount", domain.ErrInvalidAmount)
	}

	fromIdx, fromCap, err := s.registry.Resolve(from)
	if err != nil {
		return err
	}
	toIdx, toCap, err := s.registry.Resolve(to)
	if err != nil {
		return err
	}
	if fromIdx == toIdx {
		return fmt.Errorf("%w: source and destination are the same slot", domain.ErrUnknownStrategy)
	}

	pos, err := s.positions.Get(holder)
	if err != nil {
		return err
	}
	if pos.TotalContributed == 0 {
		return domain.ErrNoPosition
	}

	// Read before moving capital so a repository failure cannot strand a
	// committed move. A zero realized total keeps this policy.
	prev, err := s.policies.Get(holder)
	if err != nil {
		return err
	}
	if prev == nil {
		def := policy.Default()
		prev = &def
	}

	if err := fromCap.Release(amount); err != nil {
		return &domain.CollaboratorError{Op: "release", Strategy: from, Err: err}
	}

	if err := s.ledger.Approve(assets.VaultAccount, "strategy:"+to, amount); err != nil {
		s.restoreSlot(fromIdx, from, amount)
		return fmt.Errorf("approving %s share: %w", to, err)
	}
	if err := toCap.Accept(amount); err != nil {
		s.restoreSlot(fromIdx, from, amount)
		return &domain.CollaboratorError{Op: "accept", Strategy: to, Err: err}
	}

	// The move is committed with the strategies from here on. Any further
	// failure reverses it so no partial state survives the error.
	undoMove := func() {
		if err := toCap.Release(amount); err != nil {
			s.log.Error().Err(err).
				Str("strategy", to).
				Int64("amount", amount).
				Msg("Compensating release failed")
			return
		}
		s.restoreSlot(fromIdx, from, amount)
	}

	balances, err := s.engine.Balances()
	if err != nil {
		undoMove()
		return err
	}
	pct := RecomputePolicy(balances, prev.Percentages())
	newPol := policy.Policy{Options: pct[0], LP: pct[1], Staking: pct[2]}

	err = s.withStateTx(func(tx *sql.Tx) error {
		if err := s.policies.SetTx(tx, holder, newPol); err != nil {
			return err
		}
		return s.journal.AppendTx(tx, holder, OpPartialRebalance, amount,
			fmt.Sprintf("%s -> %s", from, to))
	})
	if err != nil {
		undoMove()
		return err
	}
	if err := s.positions.Touch(holder); err != nil {
		s.log.Warn().Err(err).Str("holder", holder).Msg("Position timestamp update failed")
	}

	s.events.EmitTyped(events.PartialRebalanceExecuted, "vault", &events.PartialRebalanceExecutedData{
		Holder: holder,
		From:   from,
		To:     to,
		Amount: amount,
	})
	s.events.EmitTyped(events.PolicyChanged, "vault", &events.PolicyChangedData{
		Holder: holder,
		P1:     newPol.Options,
		P2:     newPol.LP,
		P3:     newPol.Staking,
		Source: "recompute",
	})

	s.log.Info().
		Str("holder", holder).
		Str("from", from).
		Str("to", to).
		Int64("amount", amount).
		Msg("Partial rebalance executed")
	return nil
}

// restoreSlot puts amount back with the slot it was just released from.
func (s *Service) restoreSlot(idx int, name string, amount int64) {
	caps := s.registry.All()
	if err := s.ledger.Approve(assets.VaultAccount, "strategy:"+name, amount); err != nil {
		s.log.Error().Err(err).Str("strategy", name).Msg("Compensating approve failed")
		return
	}
	if err := caps[idx].Accept(amount); err != nil {
		s.log.Error().Err(err).
			Str("strategy", name).
			Int64("amount", amount).
			Msg("Compensating re-accept failed")
	}
}

// RebindStrategies swaps slot bindings at runtime. Nil capabilities leave
// their slot untouched. Funds held by a replaced strategy are unaffected;
// operators should rebalance after a rebind.
func (s *Service) RebindStrategies(options, lp, staking strategy.Capability) error {
	if err := s.guard.Enter(); err != nil {
		return err
	}
	defer s.guard.Exit()

	if err := s.registry.Rebind(options, lp, staking); err != nil {
		return err
	}

	names := strategy.SlotNames()
	for i, c := range [3]strategy.Capability{options, lp, staking} {
		if c == nil {
			continue
		}
		s.events.EmitTyped(events.StrategyRebound, "vault", &events.StrategyReboundData{
			Slot: names[i],
			Name: c.Name(),
		})
	}
	return nil
}

// GetPolicy returns the holder's stored policy, or the default with
// stored=false when the holder has never set one.
func (s *Service) GetPolicy(holder string) (policy.Policy, bool, error) {
	stored, err := s.policies.Get(holder)
	if err != nil {
		return policy.Policy{}, false, err
	}
	if stored == nil {
		return policy.Default(), false, nil
	}
	return *stored, true, nil
}

// GetPosition returns the holder's contributed-capital record
func (s *Service) GetPosition(holder string) (position.Position, error) {
	return s.positions.Get(holder)
}

// TotalValue returns the combined current value of all three strategies
func (s *Service) TotalValue() (int64, error) {
	balances, err := s.engine.Balances()
	if err != nil {
		return 0, err
	}
	return balances[0] + balances[1] + balances[2], nil
}

// Breakdown returns the per-slot current values in slot order
func (s *Service) Breakdown() ([3]int64, error) {
	return s.engine.Balances()
}

// Operations returns the holder's recent journal entries, newest first
func (s *Service) Operations(holder string, limit int) ([]Operation, error) {
	return s.journal.List(holder, limit)
}

// withStateTx runs fn inside a transaction on state.db
func (s *Service) withStateTx(fn func(tx *sql.Tx) error) error {
	tx, err := s.stateDB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin state transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit state transaction: %w", err)
	}
	return nil
}
