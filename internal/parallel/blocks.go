package parallel

import (
	"context"
	"runtime"
	"sync"
)

// Block is a half-open row range [Lo, Hi).
type Block struct {
	Lo, Hi int
}

// Blocks splits [0, n) into at most workers contiguous, near-equal blocks.
// The partition depends only on n and workers, so block-parallel sweeps that
// use it are deterministic.
//
// Parameters:
//   - n: The number of rows to partition.
//   - workers: The desired number of blocks (<= 0 means runtime.NumCPU()).
//
// Returns:
//   - []Block: The blocks in ascending order; empty when n <= 0.
func Blocks(n, workers int) []Block {
	if n <= 0 {
		return nil
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > n {
		workers = n
	}
	blocks := make([]Block, workers)
	size, rem := n/workers, n%workers
	lo := 0
	for w := range blocks {
		hi := lo + size
		if w < rem {
			hi++
		}
		blocks[w] = Block{Lo: lo, Hi: hi}
		lo = hi
	}
	return blocks
}

// ForEachBlock runs fn once per block of Blocks(n, workers), each in its own
// goroutine, and returns the first error wrapped in a *BlockError. A single
// block runs inline and its error is returned as is.
// The context is checked once before dispatch; fn itself is expected to be
// short (one sweep over its rows).
func ForEachBlock(ctx context.Context, n, workers int, fn func(lo, hi int) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	blocks := Blocks(n, workers)
	if len(blocks) <= 1 {
		if len(blocks) == 0 {
			return nil
		}
		return fn(blocks[0].Lo, blocks[0].Hi)
	}

	var wg sync.WaitGroup
	var ec ErrorCollector
	wg.Add(len(blocks))
	for _, b := range blocks {
		go func(b Block) {
			defer wg.Done()
			if err := fn(b.Lo, b.Hi); err != nil {
				ec.SetError(&BlockError{Block: b, Err: err})
			}
		}(b)
	}
	wg.Wait()
	return ec.Err()
}
