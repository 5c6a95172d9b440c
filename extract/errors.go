package extract

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

var (
	// ErrCancelled signals that the run's token was aborted.
	ErrCancelled = errors.New("extraction cancelled")
	// ErrInvalidCount is returned for a requested count outside the
	// accepted range.
	ErrInvalidCount = errors.New("requested count must be a positive integer")
)

// ContainerFault records a container that could not be read. The walk
// skips it and continues.
type ContainerFault struct {
	Index   int    `json:"index"`
	OrderID string `json:"orderId,omitempty"`
	Err     error  `json:"-"`
}

func (f ContainerFault) Error() string {
	if f.OrderID != "" {
		return fmt.Sprintf("container %d (order %s): %v", f.Index, f.OrderID, f.Err)
	}
	return fmt.Sprintf("container %d: %v", f.Index, f.Err)
}

func (f ContainerFault) Unwrap() error {
	return f.Err
}
