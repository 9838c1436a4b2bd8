// Package generate wraps direct provider calls with queue admission: when
// the queue is enabled a request is enqueued, and any admission failure
// degrades to an immediate provider call so the user still gets a result.
package generate
