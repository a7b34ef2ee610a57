package emit

import (
	"fmt"

	"anvil/internal/handle"
	"anvil/internal/host"
	"anvil/internal/metadata"
)

// Session owns one module under construction. Types are defined through
// it so that TypeDef rows can be assigned up front, then Finish runs the
// write passes in their fixed order and packs the image.
type Session struct {
	name     string
	a        *Authority
	types    []*TypeBuilder
	finished bool
}

// Result is the output of a finished session: the packed image bytes and
// the map from provisional member identities to final rows.
type Result struct {
	Image  []byte
	Tokens *TokenMap
}

func NewSession(moduleName string) (*Session, error) {
	if moduleName == "" {
		return nil, fmt.Errorf("empty module name: %w", ErrInvalidArgument)
	}
	return &Session{
		name: moduleName,
		a:    NewAuthority(metadata.NewSink()),
	}, nil
}

// Authority returns the session's metadata authority.
func (s *Session) Authority() *Authority { return s.a }

// DefineType registers a new type. Its TypeDef handle is final
// immediately: row numbers follow definition order, and the write pass
// verifies that the emitted row matches.
func (s *Session) DefineType(space, name string, flags TypeAttrs, genericArity int) (*TypeBuilder, error) {
	if name == "" {
		return nil, fmt.Errorf("empty type name: %w", ErrInvalidArgument)
	}
	if genericArity < 0 {
		return nil, fmt.Errorf("generic arity %d: %w", genericArity, ErrInvalidArgument)
	}
	s.a.mu.Lock()
	defer s.a.mu.Unlock()
	if s.finished {
		return nil, fmt.Errorf("session already finished: %w", ErrInvalidOperation)
	}
	row := uint32(len(s.types)) + 1
	tb := &TypeBuilder{
		a:       s.a,
		h:       handle.New(handle.TableTypeDef, row),
		name:    name,
		space:   space,
		flags:   flags,
		gparams: make([]genericParamSlot, genericArity),
	}
	s.types = append(s.types, tb)
	return tb, nil
}

// BindType associates a host type description with a locally defined
// type, so that signatures mentioning the description resolve to the
// local TypeDef instead of a cross-module reference.
func (s *Session) BindType(t host.Type, tb *TypeBuilder) error {
	if t == nil || tb == nil {
		return fmt.Errorf("nil binding: %w", ErrInvalidArgument)
	}
	return s.a.BindLocalType(t, tb.h)
}

// Finish runs the write passes, in order: per-type metadata and members,
// the generic-parameter table, method bodies, then the generic-method
// instantiation table. It may be called once.
func (s *Session) Finish() (*Result, error) {
	s.a.mu.Lock()
	if s.finished {
		s.a.mu.Unlock()
		return nil, fmt.Errorf("session already finished: %w", ErrInvalidOperation)
	}
	s.finished = true
	s.a.mu.Unlock()

	tm := newTokenMap(s.a.FieldHandleCount(), s.a.MethodHandleCount())

	for _, tb := range s.types {
		if err := tb.writeMetadata(tm); err != nil {
			return nil, err
		}
	}

	var gpEntries []genericParamEntry
	for _, tb := range s.types {
		entries, err := tb.collectGenericParams(tm)
		if err != nil {
			return nil, err
		}
		gpEntries = append(gpEntries, entries...)
	}
	if err := s.a.WithSink(func(sink *metadata.Sink) error {
		return writeGenericParams(sink, gpEntries)
	}); err != nil {
		return nil, err
	}

	cursor := uint32(bodyStreamReserve)
	for _, tb := range s.types {
		tb.assignBodyAddresses(&cursor)
	}
	bs := newBodyStream()
	if err := s.a.WithSink(func(sink *metadata.Sink) error {
		for _, tb := range s.types {
			if err := tb.writeBodies(tm, bs, sink); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return nil, err
	}

	if err := s.a.writeMethodSpecs(tm); err != nil {
		return nil, err
	}

	var image []byte
	if err := s.a.WithSink(func(sink *metadata.Sink) error {
		var err error
		image, err = sink.EmitImage(s.name, bs.buf)
		return err
	}); err != nil {
		return nil, err
	}
	return &Result{Image: image, Tokens: tm}, nil
}
