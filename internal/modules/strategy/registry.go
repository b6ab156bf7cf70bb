package strategy

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/trivault/trivault/internal/domain"
)

// Slot names for the three strategy positions. These are the only
// identifiers the engine resolves.
const (
	SlotOptions = "options"
	SlotLP      = "lp"
	SlotStaking = "staking"
)

// SlotNames returns the three slot names in canonical order
func SlotNames() [3]string {
	return [3]string{SlotOptions, SlotLP, SlotStaking}
}

// Registry binds the three strategy slots to capability instances.
// Bindings are process-wide configuration, mutated only through Rebind.
type Registry struct {
	mu    sync.RWMutex
	asset string
	slots [3]Capability
	log   zerolog.Logger
}

// NewRegistry creates a registry with all three slots bound.
// Every slot must be non-nil and hold the configured asset.
func NewRegistry(asset string, options, lp, staking Capability, log zerolog.Logger) (*Registry, error) {
	if options == nil || lp == nil || staking == nil {
		return nil, domain.ErrUnknownStrategy
	}

	r := &Registry{
		asset: asset,
		slots: [3]Capability{options, lp, staking},
		log:   log.With().Str("component", "strategy_registry").Logger(),
	}
	for i, c := range r.slots {
		if err := r.checkAsset(SlotNames()[i], c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// checkAsset verifies the capability holds the registry's configured asset.
func (r *Registry) checkAsset(slot string, c Capability) error {
	if got := c.UnderlyingAsset(); got != r.asset {
		return fmt.Errorf("%w: slot %s holds asset %q, vault requires %q",
			domain.ErrUnknownStrategy, slot, got, r.asset)
	}
	return nil
}

// Resolve maps a slot name to its index and bound capability
func (r *Registry) Resolve(name string) (int, Capability, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	switch name {
	case SlotOptions:
		return 0, r.slots[0], nil
	case SlotLP:
		return 1, r.slots[1], nil
	case SlotStaking:
		return 2, r.slots[2], nil
	}
	return 0, nil, domain.ErrUnknownStrategy
}

// All returns the three bound capabilities in slot order
func (r *Registry) All() [3]Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.slots
}

// Rebind replaces slot bindings. A nil capability skips its slot, allowing
// partial updates; a slot is never left unbound. A capability holding the
// wrong asset rejects the whole rebind before any slot changes.
func (r *Registry) Rebind(options, lp, staking Capability) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	replacements := [3]Capability{options, lp, staking}
	for i, c := range replacements {
		if c == nil {
			continue
		}
		if err := r.checkAsset(SlotNames()[i], c); err != nil {
			return err
		}
	}

	for i, c := range replacements {
		if c == nil {
			continue
		}
		r.slots[i] = c
		r.log.Info().
			Str("slot", SlotNames()[i]).
			Str("strategy", c.Name()).
			Msg("Strategy slot rebound")
	}
	return nil
}
