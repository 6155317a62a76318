// Package trace implements the diagnostic side-channel spec.md §1 places
// out of scope for the kernel proper: "the trace module only calls
// acquire/release semaphore". It is a fixed-capacity ring buffer of
// formatted lines, guarded by a kernel semaphore rather than its own lock,
// so the kernel and the idle thread's flush both go through the same
// acquire/release path the rest of the system uses.
//
// The ring buffer's shape is grounded on catrate's generic power-of-two
// ring (github.com/joeycumines/go-utilpkg/catrate/ring.go); here it holds
// formatted diagnostic lines instead of rate-limiter timestamps.
package trace

import (
	"fmt"
	"time"

	"github.com/rozmov/RavenOS"
)

// Sink is the out-of-scope UART/board collaborator spec.md §1 refers to as
// "emit-line": the kernel and trace module only ever call it, never
// inspect it.
type Sink interface {
	EmitLine(line string)
}

// LogSink adapts any func(string) as a Sink, for hosted tests and demos
// that have no real UART.
type LogSink func(line string)

func (f LogSink) EmitLine(line string) { f(line) }

type ring struct {
	lines []string
	r, w  uint
}

func newRing(capacity int) *ring {
	if capacity <= 0 || capacity&(capacity-1) != 0 {
		panic("trace: capacity must be a power of 2")
	}
	return &ring{lines: make([]string, capacity)}
}

func (x *ring) mask(v uint) uint { return v & (uint(len(x.lines)) - 1) }

func (x *ring) push(line string) {
	x.lines[x.mask(x.w)] = line
	x.w++
	if x.w-x.r > uint(len(x.lines)) {
		x.r++
	}
}

func (x *ring) len() int { return int(x.w - x.r) }

func (x *ring) drain() []string {
	n := x.len()
	if n == 0 {
		return nil
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = x.lines[x.mask(x.r+uint(i))]
	}
	x.r = x.w
	return out
}

// Recorder buffers diagnostic lines and flushes them to a Sink through a
// kernel counting semaphore acquire/release pair, exactly the collaboration
// spec.md §1 describes between the trace module and the kernel.
type Recorder struct {
	k    *kernel.Kernel
	sem  kernel.SemaphoreId
	sink Sink
	buf  *ring
}

// NewRecorder creates a trace recorder backed by a single-token semaphore
// (mutual exclusion between Record and Flush) of the given kernel.
func NewRecorder(k *kernel.Kernel, sink Sink, capacity int) (*Recorder, error) {
	sid, err := k.SemaphoreCreate(1)
	if err != nil {
		return nil, err
	}
	return &Recorder{k: k, sem: sid, sink: sink, buf: newRing(capacity)}, nil
}

// Record appends a formatted line to the ring, dropping the oldest entry
// once capacity is exceeded.
func (r *Recorder) Record(format string, args ...any) {
	if _, err := r.k.SemaphoreWait(r.sem, kernel.Forever); err != nil {
		return
	}
	defer r.k.SemaphoreRelease(r.sem)
	r.buf.push(fmt.Sprintf("%s %s", time.Now().UTC().Format(time.RFC3339Nano), fmt.Sprintf(format, args...)))
}

// Flush drains the ring and emits every line to the sink. It is what the
// idle thread calls on every dispatch (spec §4.2).
func (r *Recorder) Flush() {
	if _, err := r.k.SemaphoreWait(r.sem, kernel.Forever); err != nil {
		return
	}
	lines := r.buf.drain()
	r.k.SemaphoreRelease(r.sem)
	for _, l := range lines {
		r.sink.EmitLine(l)
	}
}
