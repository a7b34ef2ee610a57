package emit

import "sync"

// StackEffect records how a call to a method moves the operand stack.
// The IL encoder folds these into its maximum-stack computation.
type StackEffect struct {
	Pushes      int
	Pops        int
	HasReceiver bool
}

// effectTable is a concurrent per-token stack-effect registry. Alias
// handles created for the same logical method inherit the effect of the
// handle they alias.
type effectTable struct {
	m sync.Map // uint32 token -> StackEffect
}

func (t *effectTable) record(tok uint32, e StackEffect) {
	t.m.Store(tok, e)
}

// inherit copies the effect registered for src onto dst, if any.
func (t *effectTable) inherit(dst, src uint32) {
	if e, ok := t.m.Load(src); ok {
		t.m.Store(dst, e)
	}
}

// lookup returns the recorded effect. Absent entries default to pushing
// one value and popping nothing, a safe upper bound for max-stack.
func (t *effectTable) lookup(tok uint32) StackEffect {
	if e, ok := t.m.Load(tok); ok {
		return e.(StackEffect)
	}
	return StackEffect{Pushes: 1}
}
