package emit

import (
	"fmt"
	"sync"
	"sync/atomic"

	"anvil/internal/handle"
	"anvil/internal/host"
	"anvil/internal/metadata"
	"anvil/internal/sig"
)

// Authority is the single synchronized registry for everything that
// crosses type boundaries during a build: handle and signature caches,
// provisional row counters, generic-instantiation dedup and stack-effect
// bookkeeping. One Authority exists per module under construction and is
// shared by all producer goroutines.
//
// Every state-touching public method takes the one exclusive lock and
// delegates to an unexported ...Locked variant; internal recursion only
// ever calls Locked variants, so the lock is never re-entered. Host types
// and members are cached by interface identity, so frontends must hand
// the engine pointer-shaped descriptions.
type Authority struct {
	mu   sync.Mutex
	sink *metadata.Sink

	typeHandles map[host.Type]handle.Handle
	typeSigs    map[typeSigKey]sig.Signature
	memberBlobs map[host.Member]uint32

	fieldHandles  map[host.Field]handle.Handle
	methodHandles map[host.Method]handle.Handle
	memberInst    map[memberInstKey]handle.Handle
	localInst     map[localInstKey]handle.Handle

	specHandles map[sig.Signature]handle.Handle
	asmRefs     map[host.AssemblyIdent]handle.Handle
	localSigs   map[string]handle.Handle

	instIndex map[InstKey]uint32
	instKeys  []InstKey

	coreTypes map[host.Primitive]handle.Handle

	nextField  atomic.Uint32
	nextMethod atomic.Uint32

	effects effectTable
}

type typeSigKey struct {
	t     host.Type
	force bool
}

type memberInstKey struct {
	member host.Member
	inst   handle.Handle
}

type localInstKey struct {
	member any // *FieldBuilder or *MethodBuilder
	inst   handle.Handle
}

// NewAuthority builds an authority over a fresh sink.
func NewAuthority(sink *metadata.Sink) *Authority {
	return &Authority{
		sink:          sink,
		typeHandles:   make(map[host.Type]handle.Handle, 64),
		typeSigs:      make(map[typeSigKey]sig.Signature, 64),
		memberBlobs:   make(map[host.Member]uint32, 64),
		fieldHandles:  make(map[host.Field]handle.Handle, 32),
		methodHandles: make(map[host.Method]handle.Handle, 64),
		memberInst:    make(map[memberInstKey]handle.Handle, 16),
		localInst:     make(map[localInstKey]handle.Handle, 16),
		specHandles:   make(map[sig.Signature]handle.Handle, 32),
		asmRefs:       make(map[host.AssemblyIdent]handle.Handle, 8),
		localSigs:     make(map[string]handle.Handle, 16),
		instIndex:     make(map[InstKey]uint32, 16),
		coreTypes:     make(map[host.Primitive]handle.Handle, 16),
	}
}

// WithSink exposes the underlying sink to the one external orchestrator
// under the authority's lock.
func (a *Authority) WithSink(fn func(*metadata.Sink) error) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return fn(a.sink)
}

// SetCoreType binds a primitive code to the handle of its defining type,
// letting HandleForSignature resolve primitive signatures directly
// instead of interning composite-type entries for them.
func (a *Authority) SetCoreType(code host.Primitive, h handle.Handle) error {
	if h.IsNil() {
		return fmt.Errorf("nil core-type handle: %w", ErrInvalidArgument)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.coreTypes[code] = h
	return nil
}

// BindLocalType registers a host type description as locally defined, so
// handle resolution yields the given TypeDef instead of a TypeRef.
func (a *Authority) BindLocalType(t host.Type, h handle.Handle) error {
	if t == nil {
		return fmt.Errorf("nil type: %w", ErrInvalidArgument)
	}
	if h.IsNil() || h.Table() != handle.TableTypeDef {
		return fmt.Errorf("local type binding requires a TypeDef handle: %w", ErrInvalidArgument)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if prev, ok := a.typeHandles[t]; ok && prev != h {
		return fmt.Errorf("type %s already bound: %w", t.Name(), ErrInvalidOperation)
	}
	a.typeHandles[t] = h
	return nil
}

// FieldHandleCount reports how many provisional field identities exist.
func (a *Authority) FieldHandleCount() uint32 { return a.nextField.Load() }

// MethodHandleCount reports how many provisional method identities exist.
func (a *Authority) MethodHandleCount() uint32 { return a.nextMethod.Load() }

// NextVirtualFieldHandle allocates the next provisional field identity.
// Rows are monotonic and start at one.
func (a *Authority) NextVirtualFieldHandle() handle.Virtual {
	return handle.NewVirtualField(a.nextField.Add(1))
}

// NextVirtualMethodHandle allocates the next provisional method identity.
func (a *Authority) NextVirtualMethodHandle() handle.Virtual {
	return handle.NewVirtualMethod(a.nextMethod.Add(1))
}

// RecordStackEffect registers the operand-stack effect of a handle. Alias
// handles later created for the same logical method inherit it.
func (a *Authority) RecordStackEffect(r handle.Ref, e StackEffect) {
	a.effects.record(r.Token(), e)
}

// StackEffectFor returns the recorded effect of a token, defaulting to
// "pushes one, pops nothing" when absent.
func (a *Authority) StackEffectFor(tok uint32) StackEffect {
	return a.effects.lookup(tok)
}

// InternGenericInstantiation deduplicates one generic-method
// instantiation. The first occurrence wins and its intern index becomes
// the final row number directly; these rows are written once at the very
// end of the build.
func (a *Authority) InternGenericInstantiation(key InstKey) (handle.Handle, error) {
	if key.IsZero() {
		return handle.Handle{}, fmt.Errorf("zero instantiation key: %w", ErrInvalidArgument)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.internInstantiationLocked(key)
}

func (a *Authority) internInstantiationLocked(key InstKey) (handle.Handle, error) {
	if idx, ok := a.instIndex[key]; ok {
		return handle.New(handle.TableMethodSpec, idx), nil
	}
	a.instKeys = append(a.instKeys, key)
	idx := uint32(len(a.instKeys))
	a.instIndex[key] = idx
	h := handle.New(handle.TableMethodSpec, idx)
	a.effects.inherit(h.Token(), key.Def().Token())
	return h, nil
}
