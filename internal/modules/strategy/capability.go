// Package strategy defines the uniform capability contract every yield
// strategy satisfies, the three-slot registry binding them, and thin
// reference implementations.
package strategy

// Capability is the uniform contract the engine consumes. The engine depends
// only on this interface, never on a concrete implementation, and does not
// verify reported values: a capability that lies about CurrentValue is
// outside the engine's trust boundary.
type Capability interface {
	// Accept moves amount of the underlying asset from the vault into the
	// strategy. Fails when amount is zero.
	Accept(amount int64) error
	// Release returns amount of the underlying asset to the vault. Fails
	// when amount exceeds the strategy's recorded balance.
	Release(amount int64) error
	// CurrentValue reports the strategy's best current estimate of its
	// holdings, including any accrued yield.
	CurrentValue() (int64, error)
	// UnderlyingAsset returns the identity of the asset the strategy holds
	UnderlyingAsset() string
	// Name identifies the strategy implementation for logging and queries
	Name() string
}
