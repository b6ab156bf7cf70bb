package strategy

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/trivault/trivault/internal/domain"
	"github.com/trivault/trivault/internal/modules/assets"
)

// Kind distinguishes the three reference strategy flavors
type Kind string

const (
	KindOptions Kind = "options"
	KindLP      Kind = "lp"
	KindStaking Kind = "staking"
)

// Simulator is a thin reference strategy. It keeps its holdings in a
// dedicated asset-ledger account and accrues simulated yield on a schedule.
// The engine treats it like any external capability.
type Simulator struct {
	mu           sync.Mutex
	kind         Kind
	account      string
	vaultAccount string
	yieldBps     int // accrual per tick, in basis points
	ledger       *assets.Ledger
	log          zerolog.Logger
}

// SimulatorConfig holds simulator construction parameters
type SimulatorConfig struct {
	Kind         Kind
	VaultAccount string
	YieldBps     int
	Ledger       *assets.Ledger
}

// NewSimulator creates a reference strategy of the given kind
func NewSimulator(cfg SimulatorConfig, log zerolog.Logger) *Simulator {
	return &Simulator{
		kind:         cfg.Kind,
		account:      "strategy:" + string(cfg.Kind),
		vaultAccount: cfg.VaultAccount,
		yieldBps:     cfg.YieldBps,
		ledger:       cfg.Ledger,
		log:          log.With().Str("strategy", string(cfg.Kind)).Logger(),
	}
}

// Name identifies the simulator
func (s *Simulator) Name() string {
	return string(s.kind) + "-sim"
}

// Account returns the simulator's ledger account
func (s *Simulator) Account() string {
	return s.account
}

// UnderlyingAsset returns the asset identity the simulator holds
func (s *Simulator) UnderlyingAsset() string {
	return s.ledger.Asset()
}

// Accept pulls amount from the vault account on the allowance granted before
// the call. Fails when amount is zero.
func (s *Simulator) Accept(amount int64) error {
	if amount == 0 {
		return fmt.Errorf("%w: accept requires a non-zero amount", domain.ErrInvalidAmount)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ledger.TransferFrom(s.vaultAccount, s.account, s.account, amount); err != nil {
		return fmt.Errorf("accept failed: %w", err)
	}

	s.log.Debug().Int64("amount", amount).Msg("Accepted funds")
	return nil
}

// Release returns amount to the vault account. Fails when amount exceeds
// the recorded balance.
func (s *Simulator) Release(amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	balance, err := s.ledger.BalanceOf(s.account)
	if err != nil {
		return fmt.Errorf("release failed: %w", err)
	}
	if amount > balance {
		return fmt.Errorf("%w: release %d exceeds strategy balance %d", domain.ErrInsufficientBalance, amount, balance)
	}

	if err := s.ledger.Transfer(s.account, s.vaultAccount, amount); err != nil {
		return fmt.Errorf("release failed: %w", err)
	}

	s.log.Debug().Int64("amount", amount).Msg("Released funds")
	return nil
}

// CurrentValue reports the simulator's holdings including accrued yield
func (s *Simulator) CurrentValue() (int64, error) {
	return s.ledger.BalanceOf(s.account)
}

// Accrue applies one tick of simulated yield by minting yieldBps of the
// current balance into the strategy account. Returns the accrued amount.
func (s *Simulator) Accrue() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	balance, err := s.ledger.BalanceOf(s.account)
	if err != nil {
		return 0, fmt.Errorf("accrual failed: %w", err)
	}

	accrued := balance * int64(s.yieldBps) / 10000
	if accrued == 0 {
		return 0, nil
	}

	if err := s.ledger.Mint(s.account, accrued); err != nil {
		return 0, fmt.Errorf("accrual failed: %w", err)
	}

	s.log.Debug().Int64("accrued", accrued).Msg("Yield accrued")
	return accrued, nil
}
