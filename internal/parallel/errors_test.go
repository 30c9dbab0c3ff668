package parallel

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestErrorCollectorKeepsFirst(t *testing.T) {
	t.Parallel()
	var ec ErrorCollector
	if ec.Err() != nil {
		t.Fatal("zero value should hold no error")
	}
	first, second := errors.New("non-finite value in row 3"), errors.New("second")
	ec.SetError(nil)
	ec.SetError(first)
	ec.SetError(second)
	if ec.Err() != first {
		t.Errorf("Err() = %v, want %v", ec.Err(), first)
	}
}

func TestErrorCollectorConcurrent(t *testing.T) {
	t.Parallel()
	var ec ErrorCollector
	var wg sync.WaitGroup
	sentinel := errors.New("block failed")
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				ec.SetError(sentinel)
			} else {
				ec.SetError(nil)
			}
		}(i)
	}
	wg.Wait()
	if ec.Err() != sentinel {
		t.Errorf("Err() = %v, want %v", ec.Err(), sentinel)
	}
}

func TestForEachBlockReportsFailingRows(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	err := ForEachBlock(context.Background(), 12, 3, func(lo, hi int) error {
		if lo == 4 {
			return boom
		}
		return nil
	})
	var be *BlockError
	if !errors.As(err, &be) {
		t.Fatalf("expected *BlockError, got %T (%v)", err, err)
	}
	if be.Block != (Block{Lo: 4, Hi: 8}) {
		t.Errorf("block = %+v, want [4, 8)", be.Block)
	}
	if !errors.Is(err, boom) {
		t.Error("BlockError should unwrap to the cause")
	}
	if got, want := err.Error(), "rows [4, 8): boom"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
