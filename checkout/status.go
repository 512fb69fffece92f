package checkout

// Status is the progress of one checkout attempt.
type Status string

const (
	StatusInitiated      Status = "initiated"
	StatusValidated      Status = "validated"
	StatusOrderCreated   Status = "order_created"
	StatusItemsInserted  Status = "items_inserted"
	StatusStockCommitted Status = "stock_committed"
	StatusCompleted      Status = "completed"
	StatusFailed         Status = "failed"
)

var next = map[Status]Status{
	StatusInitiated:      StatusValidated,
	StatusValidated:      StatusOrderCreated,
	StatusOrderCreated:   StatusItemsInserted,
	StatusItemsInserted:  StatusStockCommitted,
	StatusStockCommitted: StatusCompleted,
}

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransitionTo reports whether to directly follows s. Every non-terminal
// status may fail.
func (s Status) CanTransitionTo(to Status) bool {
	if s.IsTerminal() {
		return false
	}
	return to == StatusFailed || next[s] == to
}

func (s Status) String() string {
	return string(s)
}
