package kernel

// idleEntry is the body of the reserved Idle thread (spec §4.2): it
// performs whatever diagnostic work the host wired in (standing in for the
// out-of-scope trace flush, spec §1) and yields, forever. It guarantees
// the scheduler always has a runnable target, so selectBestLocked's
// fallback is never actually reached with no thread to dispatch.
func idleEntry(k *Kernel) ThreadEntry {
	return func() {
		for {
			if k.cfg.IdleDiagnostics != nil {
				k.cfg.IdleDiagnostics()
			}
			k.ThreadYield()
		}
	}
}
