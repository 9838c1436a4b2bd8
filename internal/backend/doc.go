// Package backend provides the REST client for the credit/queue backend,
// which owns credit balances, job admission, and refunds.
package backend
