package kernel

// trap.go is the only file allowed to manipulate a thread's execution
// context. It realizes spec §4.1's trap A (supervisor call: start, yield,
// stack allocation) and trap B (the pendable context switch) as a
// goroutine-per-thread baton pass: exactly one thread's resume channel is
// ever receivable at a time, which is what makes "at most one Running
// thread" (spec §8 invariant 1) a structural property rather than something
// asserted after the fact. Grounded on the run/park discipline in
// eventloop/loop.go and eventloop/state.go.

// allocateStackLocked is trap A's STACK_ALLOC selector: it fabricates the
// thread's initial exception frame. In this hosted simulation that frame is
// the goroutine itself, parked on its resume channel until first dispatch;
// the thread's real stack is whatever the Go runtime gives that goroutine,
// never touched directly by the kernel, same as the original's stack_ptr is
// opaque to everything but the context-switch assembly.
func (k *Kernel) allocateStackLocked(idx int) {
	t := k.threads[idx]
	t.resume = make(chan struct{})
	t.allocated = true
	go k.threadTrampoline(idx)
}

// threadTrampoline is the body every thread goroutine runs: park until
// dispatched, run the entry point exactly once, then fall through to
// self-termination, the way a CMSIS-RTOS thread function returning is
// treated as implicit osThreadTerminate. ThreadTerminate never returns here
// (see exitNow): the goroutine ends at runtime.Goexit, it does not park.
func (k *Kernel) threadTrampoline(idx int) {
	t := k.threads[idx]
	<-t.resume
	t.entry()
	_ = k.ThreadTerminate(ThreadId(idx))
}

// yieldNow is trap A's YIELD selector together with trap B's register
// dance. It must be called by the goroutine backing the currently Running
// thread. It re-runs the scheduler under the interrupt mask (k.mu), commits
// whichever thread is chosen next, and then — outside the mask, the same
// way the real context switch is not atomic with the decision that
// triggers it — hands control to that thread and parks the caller until it
// is dispatched again.
func (k *Kernel) yieldNow() {
	k.switchAway(false)
}

// exitNow is yieldNow's one-way variant, used only by a self-terminating
// thread's last trap: it hands control to whichever thread the scheduler
// picks next but never parks the caller on its own resume channel, since a
// Dead thread is never picked again and nothing would ever send to it.
// Callers must not execute any further TCB-owning code afterward; see
// ThreadTerminate, which follows this with runtime.Goexit.
func (k *Kernel) exitNow() {
	k.switchAway(true)
}

// switchAway is the shared register dance behind yieldNow and exitNow.
func (k *Kernel) switchAway(exiting bool) {
	k.mu.Lock()
	k.scheduleLocked()
	prev := k.current
	next := k.next
	k.current = next
	k.mu.Unlock()

	if next == prev {
		return
	}
	logSwitch(ThreadId(prev), ThreadId(next))
	k.threads[next].resume <- struct{}{}
	if !exiting {
		<-k.threads[prev].resume
	}
}

// start is trap A's START selector. It never returns to the firmware's
// main in the original; here it performs the one-way initial dispatch and
// returns once the first thread has been resumed, so tests and demo code
// can drive Tick and further API calls from outside any kernel thread (see
// DESIGN.md, Open Question 5).
func (k *Kernel) start() {
	k.mu.Lock()
	k.scheduleLocked()
	k.current = k.next
	first := k.current
	k.mu.Unlock()
	k.threads[first].resume <- struct{}{}
}
