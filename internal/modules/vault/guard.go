package vault

import (
	"sync"

	"github.com/trivault/trivault/internal/domain"
)

// EntryGuard is the mutual-exclusion guard wrapped around every mutating
// façade entry point. Strategy capabilities execute arbitrary collaborator
// code, so a capability calling back into the façade mid-operation must fail
// immediately rather than execute nested.
type EntryGuard struct {
	mu   sync.Mutex
	busy bool
}

// NewEntryGuard creates an entry guard
func NewEntryGuard() *EntryGuard {
	return &EntryGuard{}
}

// Enter marks the guard busy. A call while another operation holds the
// guard fails with ErrReentrant instead of waiting.
func (g *EntryGuard) Enter() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.busy {
		return domain.ErrReentrant
	}
	g.busy = true
	return nil
}

// Exit clears the guard. Must be deferred immediately after a successful Enter.
func (g *EntryGuard) Exit() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.busy = false
}
