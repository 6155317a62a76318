package kernel

// waiter is one entry of a semaphore's blocked_q (spec §3).
type waiter struct {
	tid            ThreadId
	forever        bool
	deadline       uint32
	ticksRemaining int64
}

// scb is a semaphore control block (spec §3). All fields are mutated only
// while Kernel.mu is held.
type scb struct {
	id           SemaphoreId
	initialCount int
	ownerQ       []ThreadId
	blockedQ     []*waiter
}

func (s *scb) findWaiter(tid ThreadId) *waiter {
	for _, w := range s.blockedQ {
		if w.tid == tid {
			return w
		}
	}
	return nil
}

func (s *scb) ownerIndex(tid ThreadId) int {
	for i, o := range s.ownerQ {
		if o == tid {
			return i
		}
	}
	return -1
}

func (s *scb) removeOwnerAt(i int) {
	s.ownerQ = append(s.ownerQ[:i], s.ownerQ[i+1:]...)
}

func (s *scb) removeWaiter(tid ThreadId) {
	for i, w := range s.blockedQ {
		if w.tid == tid {
			s.blockedQ = append(s.blockedQ[:i], s.blockedQ[i+1:]...)
			return
		}
	}
}

// SemaphoreCreate allocates a counting semaphore with the given number of
// tokens (spec §4.4).
func (k *Kernel) SemaphoreCreate(count int) (SemaphoreId, error) {
	if count < 1 || count > k.cfg.MaxThreadsPerSem {
		return -1, errParameter("semaphore_create", "count out of range")
	}
	k.mu.Lock()
	defer k.mu.Unlock()

	free := -1
	for i, s := range k.semaphores {
		if s == nil {
			free = i
			break
		}
	}
	if free == -1 {
		return -1, errResource("semaphore_create", "no free semaphore slot")
	}
	k.semaphores[free] = &scb{id: SemaphoreId(free), initialCount: count}
	k.semCount++
	return SemaphoreId(free), nil
}

// SemaphoreWait acquires a token, per spec §4.4: immediate if one is free,
// a resource-busy failure on millis==0 with none free, otherwise a
// blocking wait for up to millis (or Forever).
func (k *Kernel) SemaphoreWait(sid SemaphoreId, millis int) (int32, error) {
	k.mu.Lock()
	s, err := k.lookupSemLocked(sid)
	if err != nil {
		k.mu.Unlock()
		return -1, err
	}
	caller := ThreadId(k.current)

	if s.ownerIndex(caller) == -1 && len(s.ownerQ) < s.initialCount {
		s.ownerQ = append(s.ownerQ, caller)
		k.threads[caller].semRef = &semRef{sid: sid, slot: len(s.ownerQ) - 1, kind: refOwner}
		remaining := s.initialCount - len(s.ownerQ)
		k.threads[caller].timedRet = ResultOk
		k.mu.Unlock()
		logSemWait(sid, caller, "acquired")
		return int32(remaining), nil
	}

	if millis == 0 {
		k.mu.Unlock()
		logSemWait(sid, caller, "busy")
		return -1, errResourceBusy("semaphore_wait", "no token available")
	}

	if len(s.blockedQ) >= k.cfg.MaxThreadsPerSem {
		k.mu.Unlock()
		return -1, errResource("semaphore_wait", "no free blocked slot")
	}

	w := &waiter{tid: caller}
	if millis == Forever {
		w.forever = true
	} else {
		ticks := ceilTicks(uint32(millis), k.cfg.TickPeriodUs())
		w.deadline = k.tickCount + ticks
		w.ticksRemaining = int64(ticks)
	}
	s.blockedQ = append(s.blockedQ, w)
	k.threads[caller].status = ThreadBlocked
	k.threads[caller].semRef = &semRef{sid: sid, slot: len(s.blockedQ) - 1, kind: refBlocked}
	k.mu.Unlock()

	for {
		k.yieldNow()

		k.mu.Lock()
		s, err = k.lookupSemLocked(sid)
		if err != nil {
			k.mu.Unlock()
			return -1, err
		}
		w = s.findWaiter(caller)
		if w == nil {
			// removed from outside the wait loop (e.g. purged); nothing
			// left for us to do.
			k.mu.Unlock()
			return -1, errResourceBusy("semaphore_wait", "wait queue entry removed")
		}

		tokenFree := len(s.ownerQ) < s.initialCount
		timedOut := !w.forever && (w.ticksRemaining <= 0 || k.tickCount >= w.deadline)

		switch {
		case tokenFree:
			s.removeWaiter(caller)
			s.ownerQ = append(s.ownerQ, caller)
			k.threads[caller].semRef = &semRef{sid: sid, slot: len(s.ownerQ) - 1, kind: refOwner}
			k.threads[caller].timedRet = ResultOk
			remaining := s.initialCount - len(s.ownerQ)
			k.mu.Unlock()
			logSemWait(sid, caller, "acquired")
			return int32(remaining), nil

		case timedOut:
			s.removeWaiter(caller)
			k.threads[caller].semRef = nil
			k.threads[caller].timedRet = ResultTimedOut
			k.mu.Unlock()
			logSemWait(sid, caller, "timeout")
			return -1, errTimeoutResource("semaphore_wait", "deadline reached")

		default:
			k.threads[caller].status = ThreadBlocked
			k.mu.Unlock()
		}
	}
}

// SemaphoreRelease returns the caller's token and wakes the highest
// priority waiter, per spec §4.4. It is idempotent: releasing when not an
// owner returns Ok.
func (k *Kernel) SemaphoreRelease(sid SemaphoreId) error {
	k.mu.Lock()
	s, err := k.lookupSemLocked(sid)
	if err != nil {
		k.mu.Unlock()
		return err
	}
	caller := ThreadId(k.current)

	i := s.ownerIndex(caller)
	if i == -1 {
		k.mu.Unlock()
		return nil
	}
	s.removeOwnerAt(i)
	k.threads[caller].semRef = nil

	woken := k.pickBestWaiterLocked(s)
	if woken != -1 {
		k.threads[woken].status = ThreadReady
	}
	k.mu.Unlock()

	logSemRelease(sid, caller, ThreadId(woken), woken != -1)
	if woken != -1 {
		k.yieldNow()
	}
	return nil
}

// pickBestWaiterLocked selects the waiter that should compete for the
// freed token: highest thread priority, ties broken by earliest deadline
// (forever waiters sort last), then lowest thread index.
func (k *Kernel) pickBestWaiterLocked(s *scb) ThreadId {
	best := -1
	var bestDeadline uint32
	for _, w := range s.blockedQ {
		t := k.threads[w.tid]
		if t == nil {
			continue
		}
		deadline := w.deadline
		if w.forever {
			deadline = ^uint32(0)
		}
		if best == -1 {
			best, bestDeadline = int(w.tid), deadline
			continue
		}
		bt := k.threads[ThreadId(best)]
		switch {
		case t.priority > bt.priority:
			best, bestDeadline = int(w.tid), deadline
		case t.priority == bt.priority && deadline < bestDeadline:
			best, bestDeadline = int(w.tid), deadline
		case t.priority == bt.priority && deadline == bestDeadline && int(w.tid) < best:
			best, bestDeadline = int(w.tid), deadline
		}
	}
	if best == -1 {
		return -1
	}
	return ThreadId(best)
}

// SemaphoreDelete removes a semaphore, failing if it has any owner or
// waiter (spec §4.4).
func (k *Kernel) SemaphoreDelete(sid SemaphoreId) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	s, err := k.lookupSemLocked(sid)
	if err != nil {
		return err
	}
	if len(s.ownerQ) > 0 || len(s.blockedQ) > 0 {
		return errResourceBusy("semaphore_delete", "owners or waiters still outstanding")
	}
	k.semaphores[sid] = nil
	k.semCount--
	return nil
}

// semPurgeThreadLocked removes tid from every semaphore's owner and
// blocked queues, rewriting the back-pointers of survivors, per spec §4.4
// "thread purge".
func (k *Kernel) semPurgeThreadLocked(tid ThreadId) {
	for _, s := range k.semaphores {
		if s == nil {
			continue
		}
		if i := s.ownerIndex(tid); i != -1 {
			s.removeOwnerAt(i)
		}
		s.removeWaiter(tid)
		k.rewireSemRefsLocked(s)
	}
}

// rewireSemRefsLocked keeps each surviving thread's semRef.slot in sync
// with its queue's current position, per spec §4.4's compaction rule.
func (k *Kernel) rewireSemRefsLocked(s *scb) {
	for i, tid := range s.ownerQ {
		if t, err := k.lookupThreadLocked(tid); err == nil && t.semRef != nil && t.semRef.sid == s.id {
			t.semRef.slot = i
			t.semRef.kind = refOwner
		}
	}
	for i, w := range s.blockedQ {
		if t := k.threads[w.tid]; t != nil && t.semRef != nil && t.semRef.sid == s.id {
			t.semRef.slot = i
			t.semRef.kind = refBlocked
		}
	}
}

func (k *Kernel) lookupSemLocked(sid SemaphoreId) (*scb, error) {
	if sid < 0 || int(sid) >= len(k.semaphores) {
		return nil, errParameter("semaphore", "unknown semaphore id")
	}
	s := k.semaphores[sid]
	if s == nil {
		return nil, errParameter("semaphore", "unknown semaphore id")
	}
	return s, nil
}

// lookupSemUnsafe is used from the scheduler's blocked-thread pass, which
// already holds k.mu; it returns nil instead of an error for a missing
// semaphore, matching spec §4.3's "sanity-check... if missing, skip".
func (k *Kernel) lookupSemUnsafe(sid SemaphoreId) *scb {
	if sid < 0 || int(sid) >= len(k.semaphores) {
		return nil
	}
	return k.semaphores[sid]
}

// ceilTicks converts a millisecond timeout to a tick count, rounding up:
// ceil(millis*1000 / tick_period_us), per spec §4.4.
func ceilTicks(millis uint32, tickPeriodUs uint32) uint32 {
	numerator := uint64(millis) * 1000
	denom := uint64(tickPeriodUs)
	return uint32((numerator + denom - 1) / denom)
}
