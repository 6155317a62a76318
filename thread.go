package kernel

import (
	"reflect"
	"runtime"
)

// semRefKind distinguishes which queue a thread's back-reference names.
type semRefKind int

const (
	refOwner semRefKind = iota
	refBlocked
)

// semRef is a TCB's back-pointer into a semaphore's owner or blocked queue
// (spec §3, "sem_ref").
type semRef struct {
	sid  SemaphoreId
	slot int
	kind semRefKind
}

// tcb is a thread control block (spec §3). Fields are mutated only while
// Kernel.mu is held.
type tcb struct {
	index        int
	entry        ThreadEntry
	entryPtr     uintptr
	priority     Priority
	status       ThreadStatus
	stackSize    int
	maxInstances int
	allocated    bool
	resume       chan struct{}
	semRef       *semRef
	timedRet     TimedResult
}

func entryPointer(fn ThreadEntry) uintptr {
	return reflect.ValueOf(fn).Pointer()
}

// ThreadCreate creates a thread and seeds its initial stack frame. It
// recycles a Dead slot whose entry point matches fn, per spec §9's
// dead-slot-resurrection note, before consuming a fresh slot.
func (k *Kernel) ThreadCreate(fn ThreadEntry, priority Priority, maxInstances int, stackSize int) (ThreadId, error) {
	if fn == nil {
		return -1, errParameter("thread_create", "nil entry")
	}
	if !priority.valid() || priority == PriorityIdle {
		return -1, errParameter("thread_create", "priority out of range")
	}
	if maxInstances <= 0 {
		return -1, errParameter("thread_create", "max_instances must be positive")
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if stackSize > k.cfg.DefaultStackSize {
		return -1, errParameter("thread_create", "stack_size exceeds DefaultStackSize")
	}
	if stackSize <= 0 {
		stackSize = k.cfg.DefaultStackSize
	}

	ep := entryPointer(fn)
	var existing int
	var recycle = -1
	var freeSlot = -1
	for i, t := range k.threads {
		if t == nil {
			if freeSlot == -1 {
				freeSlot = i
			}
			continue
		}
		if t.entryPtr == ep {
			if t.status == ThreadDead {
				if recycle == -1 {
					recycle = i
				}
				continue
			}
			existing++
		}
	}
	if existing >= maxInstances {
		return -1, errParameter("thread_create", "max_instances already reached for this entry")
	}

	idx := recycle
	if idx == -1 {
		idx = freeSlot
	}
	if idx == -1 {
		return -1, errResource("thread_create", "no free thread slot")
	}

	k.threads[idx] = &tcb{
		index:        idx,
		entry:        fn,
		entryPtr:     ep,
		priority:     priority,
		status:       ThreadReady,
		stackSize:    stackSize,
		maxInstances: maxInstances,
	}
	k.allocateStackLocked(idx)
	if idx != recycle {
		k.threadCount++
	}
	logThreadCreated(ThreadId(idx), priority)
	return ThreadId(idx), nil
}

// ThreadTerminate purges tid from every semaphore's owner and blocked
// queues and marks it Dead. The slot is retained forever (spec §3); if tid
// is the calling thread, control does not return — the goroutine hands off
// via exitNow (so the next thread is dispatched without anyone ever needing
// to resume this slot again) and then exits via runtime.Goexit, rather than
// parking on a channel nothing will ever send to again.
func (k *Kernel) ThreadTerminate(tid ThreadId) error {
	k.mu.Lock()
	t, err := k.lookupThreadLocked(tid)
	if err != nil {
		k.mu.Unlock()
		return err
	}
	if int(tid) == k.idleIdx {
		k.mu.Unlock()
		return errParameter("thread_terminate", "the idle thread may not be terminated")
	}
	if t.status == ThreadDead {
		k.mu.Unlock()
		return nil
	}
	k.semPurgeThreadLocked(tid)
	t.status = ThreadDead
	t.semRef = nil
	wasCurrent := int(tid) == k.current
	k.mu.Unlock()

	logThreadTerminated(tid)
	if wasCurrent {
		k.exitNow()
		runtime.Goexit()
	}
	return nil
}

// ThreadYield is the public wrapper for the YIELD trap selector.
func (k *Kernel) ThreadYield() error {
	k.yieldNow()
	return nil
}

// ThreadSelf returns the calling thread's identity. Since only one
// goroutine is ever "Running" at a time, reading k.current under the mask
// always observes the caller's own slot.
func (k *Kernel) ThreadSelf() ThreadId {
	k.mu.Lock()
	defer k.mu.Unlock()
	return ThreadId(k.current)
}

// ThreadSetPriority changes a thread's dispatch priority.
func (k *Kernel) ThreadSetPriority(tid ThreadId, p Priority) error {
	if !p.valid() {
		return errParameter("thread_set_priority", "priority out of range")
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	t, err := k.lookupThreadLocked(tid)
	if err != nil {
		return err
	}
	if int(tid) == k.idleIdx {
		return errParameter("thread_set_priority", "the idle thread's priority is fixed")
	}
	t.priority = p
	return nil
}

// ThreadGetPriority returns a thread's current dispatch priority.
func (k *Kernel) ThreadGetPriority(tid ThreadId) (Priority, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	t, err := k.lookupThreadLocked(tid)
	if err != nil {
		return 0, err
	}
	return t.priority, nil
}

// ThreadStatusOf reports a thread's lifecycle state, mainly for tests and
// diagnostics; it has no equivalent named call in spec §6 but is implied
// by the status field in spec §3.
func (k *Kernel) ThreadStatusOf(tid ThreadId) (ThreadStatus, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	t, err := k.lookupThreadLocked(tid)
	if err != nil {
		return 0, err
	}
	return t.status, nil
}

// ThreadTimedResult reports the outcome of the thread's last semaphore
// wait (spec §3, "timed_ret").
func (k *Kernel) ThreadTimedResult(tid ThreadId) (TimedResult, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	t, err := k.lookupThreadLocked(tid)
	if err != nil {
		return ResultNone, err
	}
	return t.timedRet, nil
}

func (k *Kernel) lookupThreadLocked(tid ThreadId) (*tcb, error) {
	if tid < 0 || int(tid) >= len(k.threads) {
		return nil, errParameter("thread", "unknown thread id")
	}
	t := k.threads[tid]
	if t == nil {
		return nil, errParameter("thread", "unknown thread id")
	}
	return t, nil
}
