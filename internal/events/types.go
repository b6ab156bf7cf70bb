// Package events provides event management functionality.
package events

// EventType represents different event types
type EventType string

const (
	DepositProcessed         EventType = "DEPOSIT_PROCESSED"
	WithdrawalProcessed      EventType = "WITHDRAWAL_PROCESSED"
	PolicyChanged            EventType = "POLICY_CHANGED"
	RebalanceExecuted        EventType = "REBALANCE_EXECUTED"
	PartialRebalanceExecuted EventType = "PARTIAL_REBALANCE_EXECUTED"
	StrategyRebound          EventType = "STRATEGY_REBOUND"
	ValueSnapshotTaken       EventType = "VALUE_SNAPSHOT_TAKEN"
	BackupCreated            EventType = "BACKUP_CREATED"
	ErrorOccurred            EventType = "ERROR_OCCURRED"
)

// AllTypes lists every event type the bus can carry, in emission-relevance
// order. Used by the stream handler to subscribe to everything.
func AllTypes() []EventType {
	return []EventType{
		DepositProcessed,
		WithdrawalProcessed,
		PolicyChanged,
		RebalanceExecuted,
		PartialRebalanceExecuted,
		StrategyRebound,
		ValueSnapshotTaken,
		BackupCreated,
		ErrorOccurred,
	}
}
