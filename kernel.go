package kernel

import "sync"

// Kernel is the kernel's singleton state (spec §3, "Kernel globals"). All
// fields are mutated only while mu is held, standing in for "interrupts
// masked" (spec §5). Carry the handle explicitly rather than through a
// package-level global: the teacher's re-architecture note in spec §9
// ("global mutable state... model the kernel as a singleton state value")
// is honored by returning an owned *Kernel from New rather than exposing
// package-level arrays.
type Kernel struct {
	mu sync.Mutex

	cfg Config

	threads     []*tcb
	semaphores  []*scb
	threadCount int
	semCount    int

	current int
	next    int

	tickCount uint32
	running   bool

	idleIdx int
}

// New constructs a kernel from cfg, validating it (kernel_init, spec §6),
// and creates the reserved Idle thread before any application thread can
// be created.
func New(cfg Config) (*Kernel, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	k := &Kernel{
		cfg:        cfg,
		threads:    make([]*tcb, cfg.MaxThreads),
		semaphores: make([]*scb, cfg.MaxSemaphores),
	}

	k.threads[0] = &tcb{
		index:    0,
		priority: PriorityIdle,
		status:   ThreadReady,
	}
	k.idleIdx = 0
	k.threads[0].entry = idleEntry(k)
	k.threads[0].entryPtr = entryPointer(k.threads[0].entry)
	k.allocateStackLocked(0)
	k.threadCount = 1
	k.current = 0
	k.next = 0

	return k, nil
}

// Start is kernel_start (spec §6): it performs the initial dispatch. See
// DESIGN.md's Open Question 5 for why, unlike the firmware original, it
// returns to the caller.
func (k *Kernel) Start() error {
	k.mu.Lock()
	if k.running {
		k.mu.Unlock()
		return errValue("kernel_start", "kernel already running")
	}
	k.running = true
	k.mu.Unlock()
	k.start()
	return nil
}

// IsRunning is kernel_is_running (spec §6).
func (k *Kernel) IsRunning() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.running
}

// SysTick is kernel_systick (spec §6): a read-only snapshot of the
// monotonically increasing tick counter.
func (k *Kernel) SysTick() uint32 {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.tickCount
}

// Tick is the periodic interrupt of spec §6's host-platform contract: it
// increments tick_count and re-runs the scheduler, pending (not
// performing) a switch if the selection changed. It never blocks and never
// suspends, satisfying spec §4.3's constraints on the scheduler.
func (k *Kernel) Tick() uint32 {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.tickCount++
	k.scheduleLocked()
	return k.tickCount
}

// ThreadCount reports the number of thread slots ever created (live or
// Dead; dead slots are retained forever, spec §3).
func (k *Kernel) ThreadCount() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.threadCount
}

// SemaphoreCount reports the number of live semaphores.
func (k *Kernel) SemaphoreCount() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.semCount
}

// IdleThreadId returns the reserved Idle thread's identity.
func (k *Kernel) IdleThreadId() ThreadId {
	return ThreadId(k.idleIdx)
}
