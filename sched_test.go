package kernel

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// newBareKernel builds a kernel that is never started: only the Idle slot has
// a goroutine behind it, parked and never dispatched, and the slots the tests
// fill in have none. It is for white-box exercise of the pure scheduling
// algorithm in sched.go. Only
// scheduleLocked and its helpers are safe to call this way; yieldNow/start
// would block forever with no trampoline goroutine listening.
func newBareKernel(t *testing.T, maxThreads int) *Kernel {
	t.Helper()
	cfg := DefaultConfig()
	cfg.MaxThreads = maxThreads
	k, err := New(cfg)
	require.NoError(t, err)
	return k
}

func putThread(k *Kernel, idx int, p Priority, status ThreadStatus) {
	k.threads[idx] = &tcb{index: idx, priority: p, status: status}
}

func TestSelectBestLocked_HighestPriorityWins(t *testing.T) {
	k := newBareKernel(t, 4)
	putThread(k, 1, PriorityLow, ThreadReady)
	putThread(k, 2, PriorityHigh, ThreadReady)
	putThread(k, 3, PriorityNormal, ThreadReady)

	require.Equal(t, 2, k.selectBestLocked())
}

func TestSelectBestLocked_TiesBreakByLowestIndex(t *testing.T) {
	k := newBareKernel(t, 4)
	putThread(k, 1, PriorityNormal, ThreadReady)
	putThread(k, 2, PriorityNormal, ThreadReady)
	putThread(k, 3, PriorityNormal, ThreadReady)

	require.Equal(t, 1, k.selectBestLocked())
}

func TestSelectBestLocked_FallsBackToIdle(t *testing.T) {
	k := newBareKernel(t, 4)
	putThread(k, 1, PriorityNormal, ThreadBlocked)
	putThread(k, 2, PriorityHigh, ThreadDead)

	require.Equal(t, k.idleIdx, k.selectBestLocked())
}

func TestCommitLocked_DemotesPreviousRunningThread(t *testing.T) {
	k := newBareKernel(t, 4)
	putThread(k, 1, PriorityNormal, ThreadRunning)
	putThread(k, 2, PriorityHigh, ThreadReady)
	k.current = 1

	k.commitLocked(2)

	require.Equal(t, ThreadReady, k.threads[1].status)
	require.Equal(t, ThreadRunning, k.threads[2].status)
}

func TestCommitLocked_SameThreadStaysRunning(t *testing.T) {
	k := newBareKernel(t, 4)
	putThread(k, 1, PriorityNormal, ThreadRunning)
	k.current = 1

	k.commitLocked(1)

	require.Equal(t, ThreadRunning, k.threads[1].status)
}

func TestReevaluateBlockedLocked_FreesOnTokenAvailable(t *testing.T) {
	k := newBareKernel(t, 4)
	putThread(k, 1, PriorityNormal, ThreadBlocked)
	k.semaphores[0] = &scb{id: 0, initialCount: 1}
	k.threads[1].semRef = &semRef{sid: 0, kind: refBlocked}

	k.reevaluateBlockedLocked()

	require.Equal(t, ThreadReady, k.threads[1].status)
}

func TestReevaluateBlockedLocked_ForeverWaiterNeverTimesOut(t *testing.T) {
	k := newBareKernel(t, 4)
	putThread(k, 1, PriorityNormal, ThreadBlocked)
	s := &scb{id: 0, initialCount: 1, ownerQ: []ThreadId{2}}
	s.blockedQ = append(s.blockedQ, &waiter{tid: 1, forever: true})
	k.semaphores[0] = s
	k.threads[1].semRef = &semRef{sid: 0, kind: refBlocked}
	k.tickCount = 1_000_000

	k.reevaluateBlockedLocked()

	require.Equal(t, ThreadBlocked, k.threads[1].status)
}

func TestReevaluateBlockedLocked_TimedWaiterExpiresOnDeadlineReached(t *testing.T) {
	k := newBareKernel(t, 4)
	putThread(k, 1, PriorityNormal, ThreadBlocked)
	s := &scb{id: 0, initialCount: 1, ownerQ: []ThreadId{2}}
	s.blockedQ = append(s.blockedQ, &waiter{tid: 1, deadline: 5, ticksRemaining: 5})
	k.semaphores[0] = s
	k.threads[1].semRef = &semRef{sid: 0, kind: refBlocked}
	k.tickCount = 5 // reached, not strictly past: spec's ">=" semantics.

	k.reevaluateBlockedLocked()

	require.Equal(t, ThreadReady, k.threads[1].status)
}

func TestPickBestWaiterLocked_PriorityThenDeadlineThenIndex(t *testing.T) {
	k := newBareKernel(t, 6)
	putThread(k, 1, PriorityNormal, ThreadBlocked)
	putThread(k, 2, PriorityHigh, ThreadBlocked)
	putThread(k, 3, PriorityHigh, ThreadBlocked)
	s := &scb{id: 0, initialCount: 1}
	s.blockedQ = []*waiter{
		{tid: 1, forever: true},
		{tid: 2, deadline: 20},
		{tid: 3, deadline: 10},
	}
	k.semaphores[0] = s

	require.Equal(t, ThreadId(3), k.pickBestWaiterLocked(s), "highest priority, earliest deadline")
}

func TestPickBestWaiterLocked_ForeverWaitersSortLast(t *testing.T) {
	k := newBareKernel(t, 6)
	putThread(k, 1, PriorityNormal, ThreadBlocked)
	putThread(k, 2, PriorityNormal, ThreadBlocked)
	s := &scb{id: 0, initialCount: 1}
	s.blockedQ = []*waiter{
		{tid: 1, forever: true},
		{tid: 2, deadline: 100},
	}
	k.semaphores[0] = s

	require.Equal(t, ThreadId(2), k.pickBestWaiterLocked(s))
}

func TestPickBestWaiterLocked_EmptyQueueReturnsNone(t *testing.T) {
	k := newBareKernel(t, 4)
	s := &scb{id: 0, initialCount: 1}
	require.Equal(t, ThreadId(-1), k.pickBestWaiterLocked(s))
}

func TestCeilTicks_RoundsUp(t *testing.T) {
	require.Equal(t, uint32(1), ceilTicks(1, 1000))
	require.Equal(t, uint32(10), ceilTicks(10, 1000))
	require.Equal(t, uint32(2), ceilTicks(1, 600))
}
