package checkout

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyCart is returned when checkout starts with no cart lines.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrInvalidRequest is returned for missing customer details.
	ErrInvalidRequest = errors.New("invalid checkout request")
)

// StepError reports the step a checkout failed to reach. OrderID is set
// once the order exists; retrying with the same DraftID resumes it.
type StepError struct {
	Step    Status
	DraftID string
	OrderID string
	Err     error
}

func (e *StepError) Error() string {
	if e.OrderID != "" {
		return fmt.Sprintf("checkout %s failed at %s (order %s): %v", e.DraftID, e.Step, e.OrderID, e.Err)
	}
	return fmt.Sprintf("checkout %s failed at %s: %v", e.DraftID, e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// FailedStep returns the step of a StepError in err's chain.
func FailedStep(err error) (Status, bool) {
	var se *StepError
	if errors.As(err, &se) {
		return se.Step, true
	}
	return "", false
}
