// Command easel is the CLI for the easel generation queue daemon. It talks
// to a running easeld over its local HTTP API to inspect the queue, submit
// and cancel generations, and control processing.
package main
