package events

// EventData is the interface that all event data types must implement.
// This allows for type-safe event data while maintaining flexibility.
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// DepositProcessedData contains data for DepositProcessed events
type DepositProcessedData struct {
	Holder  string   `json:"holder"`
	Amount  int64    `json:"amount"`
	Placed  [3]int64 `json:"placed"`
	Default bool     `json:"default_policy_applied"`
}

// EventType returns the event type for DepositProcessedData
func (d *DepositProcessedData) EventType() EventType {
	return DepositProcessed
}

// WithdrawalProcessedData contains data for WithdrawalProcessed events
type WithdrawalProcessedData struct {
	Holder   string   `json:"holder"`
	Amount   int64    `json:"amount"`
	Released [3]int64 `json:"released"`
}

// EventType returns the event type for WithdrawalProcessedData
func (d *WithdrawalProcessedData) EventType() EventType {
	return WithdrawalProcessed
}

// PolicyChangedData contains data for PolicyChanged events
type PolicyChangedData struct {
	Holder string `json:"holder"`
	P1     int    `json:"p_options"`
	P2     int    `json:"p_lp"`
	P3     int    `json:"p_staking"`
	Source string `json:"source"` // "holder", "default" or "recompute"
}

// EventType returns the event type for PolicyChangedData
func (d *PolicyChangedData) EventType() EventType {
	return PolicyChanged
}

// RebalanceExecutedData contains data for RebalanceExecuted events
type RebalanceExecutedData struct {
	Holder    string   `json:"holder"`
	Realized  int64    `json:"realized"`
	Placed    [3]int64 `json:"placed"`
	NewPolicy bool     `json:"new_policy"`
}

// EventType returns the event type for RebalanceExecutedData
func (d *RebalanceExecutedData) EventType() EventType {
	return RebalanceExecuted
}

// PartialRebalanceExecutedData contains data for PartialRebalanceExecuted events
type PartialRebalanceExecutedData struct {
	Holder string `json:"holder"`
	From   string `json:"from"`
	To     string `json:"to"`
	Amount int64  `json:"amount"`
}

// EventType returns the event type for PartialRebalanceExecutedData
func (d *PartialRebalanceExecutedData) EventType() EventType {
	return PartialRebalanceExecuted
}

// StrategyReboundData contains data for StrategyRebound events
type StrategyReboundData struct {
	Slot string `json:"slot"`
	Name string `json:"name"`
}

// EventType returns the event type for StrategyReboundData
func (d *StrategyReboundData) EventType() EventType {
	return StrategyRebound
}

// ValueSnapshotTakenData contains data for ValueSnapshotTaken events
type ValueSnapshotTakenData struct {
	TotalValue int64    `json:"total_value"`
	PerSlot    [3]int64 `json:"per_slot"`
}

// EventType returns the event type for ValueSnapshotTakenData
func (d *ValueSnapshotTakenData) EventType() EventType {
	return ValueSnapshotTaken
}

// BackupCreatedData contains data for BackupCreated events
type BackupCreatedData struct {
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
	Uploaded  bool   `json:"uploaded"`
}

// EventType returns the event type for BackupCreatedData
func (d *BackupCreatedData) EventType() EventType {
	return BackupCreated
}

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType {
	return ErrorOccurred
}
