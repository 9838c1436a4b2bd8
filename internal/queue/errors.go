package queue

import "errors"

// ErrNotFound indicates the requested queue item does not exist.
var ErrNotFound = errors.New("queue item not found")

// ErrInvalidTransition indicates a status update was rejected because the item
// was not in the expected prior status.
var ErrInvalidTransition = errors.New("invalid queue status transition")
