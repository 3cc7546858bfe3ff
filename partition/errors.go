package partition

import "fmt"

// StateFanoutTooLargeError is returned when a state has more block-inert
// outgoing transitions than the transient split counter can encode.
type StateFanoutTooLargeError struct {
	State int
	Count int
	Limit int
}

func (e *StateFanoutTooLargeError) Error() string {
	return fmt.Sprintf("partition: state %d has %d block-inert outgoing transitions, exceeding the limit of %d", e.State, e.Count, e.Limit)
}
