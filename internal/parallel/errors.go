// Package parallel splits row ranges across goroutines for the matrix
// kernels and reports the host CPU features.
package parallel

import (
	"fmt"
	"sync"
)

// BlockError attributes a failure to the row block that produced it.
type BlockError struct {
	Block Block
	Err   error
}

func (e *BlockError) Error() string {
	return fmt.Sprintf("rows [%d, %d): %v", e.Block.Lo, e.Block.Hi, e.Err)
}

func (e *BlockError) Unwrap() error { return e.Err }

// ErrorCollector keeps the first non-nil error reported by concurrent
// block workers. The zero value is ready to use.
type ErrorCollector struct {
	once sync.Once
	err  error
}

// SetError records err if it is the first non-nil error.
func (c *ErrorCollector) SetError(err error) {
	if err == nil {
		return
	}
	c.once.Do(func() { c.err = err })
}

// Err returns the recorded error. Call it after all workers have returned.
func (c *ErrorCollector) Err() error {
	return c.err
}
