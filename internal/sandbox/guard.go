package sandbox

import (
	"context"
	"errors"
	"runtime/metrics"
	"sync"
	"time"

	"github.com/dop251/goja"
)

// interrupt is the value handed to goja.Runtime.Interrupt.
type interrupt string

const (
	interruptTimeout  interrupt = "timeout"
	interruptCanceled interrupt = "canceled"
	interruptMemory   interrupt = "memory"
)

const (
	memoryPollInterval = 5 * time.Millisecond
	// Cumulative bytes allocated. Unlike live heap size it never drops
	// after a collection, so a script cannot hide churn behind the GC.
	allocMetric = "/gc/heap/allocs:bytes"
)

// watch interrupts vm when ctx ends or the bytes allocated since the call
// pass limit. The returned stop function must be called before the runtime
// is reused.
//
// goja shares the Go heap, so the budget is approximate and process-wide:
// allocations by concurrent requests count against every sandbox running
// at the same time.
func watch(ctx context.Context, vm *goja.Runtime, limit uint64) (stop func()) {
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()

		var tick <-chan time.Time
		var baseline uint64
		if limit > 0 {
			ticker := time.NewTicker(memoryPollInterval)
			defer ticker.Stop()
			tick = ticker.C
			baseline = allocatedBytes()
		}

		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				if errors.Is(ctx.Err(), context.DeadlineExceeded) {
					vm.Interrupt(interruptTimeout)
				} else {
					vm.Interrupt(interruptCanceled)
				}
				return
			case <-tick:
				if cur := allocatedBytes(); cur > baseline && cur-baseline > limit {
					vm.Interrupt(interruptMemory)
					return
				}
			}
		}
	}()

	return func() {
		close(done)
		wg.Wait()
	}
}

func allocatedBytes() uint64 {
	sample := []metrics.Sample{{Name: allocMetric}}
	metrics.Read(sample)
	if sample[0].Value.Kind() != metrics.KindUint64 {
		return 0
	}
	return sample[0].Value.Uint64()
}
