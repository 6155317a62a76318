package kernel

import (
	"sync"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// diagLogger is the package-wide structured logger for kernel diagnostic
// events (thread lifecycle, scheduling decisions, semaphore wake-ups). It
// defaults to a stumpy-backed logger writing to stderr. SetLogger(nil)
// installs a disabled logger instead, matching the no-op fallback of the
// teacher's eventloop.getGlobalLogger.
var diagLogger struct {
	sync.RWMutex
	log *logiface.Logger[*stumpy.Event]
}

func init() {
	SetLogger(stumpy.L.New(stumpy.L.WithStumpy()))
}

// SetLogger replaces the kernel's structured logger. Passing nil disables
// logging entirely (a no-op writer is installed).
func SetLogger(l *logiface.Logger[*stumpy.Event]) {
	diagLogger.Lock()
	defer diagLogger.Unlock()
	if l == nil {
		l = stumpy.L.New(stumpy.L.WithLevel(logiface.LevelDisabled))
	}
	diagLogger.log = l
}

func getLogger() *logiface.Logger[*stumpy.Event] {
	diagLogger.RLock()
	defer diagLogger.RUnlock()
	return diagLogger.log
}

func logThreadCreated(id ThreadId, p Priority) {
	getLogger().Debug().Int(`thread`, int(id)).Str(`priority`, p.String()).Log(`thread created`)
}

func logThreadTerminated(id ThreadId) {
	getLogger().Debug().Int(`thread`, int(id)).Log(`thread terminated`)
}

func logSwitch(from, to ThreadId) {
	getLogger().Trace().Int(`from`, int(from)).Int(`to`, int(to)).Log(`context switch`)
}

func logSemWait(sid SemaphoreId, tid ThreadId, result string) {
	getLogger().Debug().Int(`sem`, int(sid)).Int(`thread`, int(tid)).Str(`result`, result).Log(`semaphore wait`)
}

func logSemRelease(sid SemaphoreId, tid ThreadId, woke ThreadId, hadWaiter bool) {
	b := getLogger().Debug().Int(`sem`, int(sid)).Int(`thread`, int(tid))
	if hadWaiter {
		b = b.Int(`woke`, int(woke))
	}
	b.Log(`semaphore release`)
}
