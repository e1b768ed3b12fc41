package pipeline

import "sync/atomic"

// atomicBool is a tiny typed wrapper around atomic.Bool, used for the
// stop flag shared between the control goroutine and the pipeline
// worker goroutine without taking the Manager's mutex on every check.
type atomicBool struct {
	v atomic.Bool
}

func newAtomicBool(initial bool) *atomicBool {
	b := &atomicBool{}
	b.v.Store(initial)
	return b
}

func (b *atomicBool) Load() bool      { return b.v.Load() }
func (b *atomicBool) Store(val bool)  { b.v.Store(val) }
