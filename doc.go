// Package kernel implements the core of RavenOS: thread lifecycle and stack
// bootstrap, a priority-driven preemptive scheduler, a trap-based context
// switch, and a counting semaphore with timed waits and priority-ordered
// wake-up.
//
// There is no microcontroller underneath a Go build, so the trap layer
// (§4.1 of the kernel spec) is realized as a hosted simulation: every kernel
// thread is backed by one goroutine parked on a per-thread resume channel,
// and the kernel's single mutex stands in for "interrupts masked". A
// periodic tick is driven explicitly, by calling Tick, the same way a board
// support package would call schedule from a SysTick handler.
//
// The UART driver, the trace ring buffer, LED/GPIO demo code, and board
// bring-up are external collaborators; the only interface standing in for
// them is trace.Sink, see package trace.
package kernel
