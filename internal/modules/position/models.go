// Package position tracks each holder's contributed capital independent of
// strategy performance bookkeeping.
package position

import "time"

// Position is a holder's record of contributed capital.
// TotalContributed is credited minus debited underlying asset units and
// never goes below zero.
type Position struct {
	Holder           string    `json:"holder"`
	TotalContributed int64     `json:"total_contributed"`
	LastUpdate       time.Time `json:"last_update"`
}
