// Command raven-demo wires the kernel end to end, reproducing the mutual
// exclusion and priority-wake scenarios from spec.md §8 (S1, S3). It is a
// demonstration thread harness, not part of the kernel proper (spec.md §1
// lists demo threads as test vectors).
//
// Run with: go run ./cmd/raven-demo
package main

import (
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rozmov/RavenOS"
	"github.com/rozmov/RavenOS/trace"
)

func main() {
	cfg := kernel.DefaultConfig()
	cfg.MaxThreads = 4
	cfg.MaxThreadsPerSem = 4

	// The idle thread's diagnostic hook is bound to a recorder that can
	// only be built once the kernel exists; route through an indirection
	// so the kernel only needs to be constructed once.
	var rec *trace.Recorder
	cfg.IdleDiagnostics = func() {
		if rec != nil {
			rec.Flush()
		}
	}

	k, err := kernel.New(cfg)
	if err != nil {
		panic(err)
	}

	rec, err = trace.NewRecorder(k, trace.LogSink(func(line string) {
		fmt.Println(line)
	}), 16)
	if err != nil {
		panic(err)
	}

	mutex, err := k.SemaphoreCreate(1)
	if err != nil {
		panic(err)
	}

	var acquired int32

	// B (BelowNormal) and C (AboveNormal) both queue up behind A's hold of
	// the mutex; on release the highest-priority waiter must win regardless
	// of creation order, demonstrating spec S3's priority-ordered wake.
	b := func() {
		if _, err := k.SemaphoreWait(mutex, kernel.Forever); err != nil {
			rec.Record("B: wait failed: %v", err)
			return
		}
		rec.Record("B: acquired mutex")
		k.SemaphoreRelease(mutex)
	}

	c := func() {
		if _, err := k.SemaphoreWait(mutex, kernel.Forever); err != nil {
			rec.Record("C: wait failed: %v", err)
			return
		}
		rec.Record("C: acquired mutex (AboveNormal wins the priority wake over B)")
		k.SemaphoreRelease(mutex)
	}

	a := func() {
		if _, err := k.SemaphoreWait(mutex, kernel.Forever); err != nil {
			rec.Record("A: wait failed: %v", err)
			return
		}
		atomic.AddInt32(&acquired, 1)
		rec.Record("A: acquired mutex")

		if _, err := k.ThreadCreate(b, kernel.PriorityBelowNormal, 1, 0); err != nil {
			rec.Record("A: failed to create B: %v", err)
		}
		if _, err := k.ThreadCreate(c, kernel.PriorityAboveNormal, 1, 0); err != nil {
			rec.Record("A: failed to create C: %v", err)
		}

		for i := 0; i < 10; i++ {
			k.ThreadYield()
		}
		rec.Record("A: releasing mutex")
		k.SemaphoreRelease(mutex)
	}

	if _, err := k.ThreadCreate(a, kernel.PriorityLow, 1, 0); err != nil {
		panic(err)
	}

	if err := k.Start(); err != nil {
		panic(err)
	}

	var g errgroup.Group
	g.Go(func() error {
		for i := 0; i < 200; i++ {
			k.Tick()
			time.Sleep(time.Millisecond)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		panic(err)
	}

	rec.Flush()
	fmt.Printf("mutex acquired %d time(s); %d thread slot(s) in use\n", atomic.LoadInt32(&acquired), k.ThreadCount())
}
