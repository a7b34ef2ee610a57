package sig

import (
	"bytes"
	"errors"
	"testing"

	"anvil/internal/handle"
	"anvil/internal/host"
)

func encodeUint(t *testing.T, v uint32) []byte {
	t.Helper()
	var out []byte
	err := WithBuilder(func(b *Builder) error {
		if err := b.AppendCompressedUint(v); err != nil {
			return err
		}
		out = b.FinishBytes()
		return nil
	})
	if err != nil {
		t.Fatalf("AppendCompressedUint(0x%X): %v", v, err)
	}
	return out
}

func TestCompressedUintWidths(t *testing.T) {
	cases := []struct {
		value uint32
		width int
	}{
		{0, 1},
		{1, 1},
		{0x7F, 1},
		{0x80, 2},
		{0x3FFF, 2},
		{0x4000, 4},
		{0x1FFFFFFF, 4},
	}
	for _, tc := range cases {
		enc := encodeUint(t, tc.value)
		if len(enc) != tc.width {
			t.Errorf("value 0x%X encoded in %d bytes, want %d", tc.value, len(enc), tc.width)
		}
		got, n, err := DecodeCompressedUint(enc)
		if err != nil {
			t.Fatalf("decode 0x%X: %v", tc.value, err)
		}
		if got != tc.value || n != tc.width {
			t.Errorf("decode(encode(0x%X)) = (0x%X, %d), want (0x%X, %d)", tc.value, got, n, tc.value, tc.width)
		}
	}
}

func TestCompressedUintOverflow(t *testing.T) {
	err := WithBuilder(func(b *Builder) error {
		return b.AppendCompressedUint(0x20000000)
	})
	if !errors.Is(err, ErrOverflow) {
		t.Fatalf("AppendCompressedUint(0x20000000) = %v, want ErrOverflow", err)
	}
}

func TestCompressedIntRoundTrip(t *testing.T) {
	cases := []struct {
		value int32
		width int
	}{
		{0, 1},
		{-1, 1},
		{0x3F, 1},
		{-0x40, 1},
		{0x40, 2},
		{-0x41, 2},
		{0x1FFF, 2},
		{-0x2000, 2},
		{0x2000, 4},
		{-0x2001, 4},
		{0x0FFFFFFF, 4},
		{-0x10000000, 4},
	}
	for _, tc := range cases {
		var enc []byte
		err := WithBuilder(func(b *Builder) error {
			if err := b.AppendCompressedInt(tc.value); err != nil {
				return err
			}
			enc = b.FinishBytes()
			return nil
		})
		if err != nil {
			t.Fatalf("AppendCompressedInt(%d): %v", tc.value, err)
		}
		if len(enc) != tc.width {
			t.Errorf("value %d encoded in %d bytes, want %d", tc.value, len(enc), tc.width)
		}
		got, n, err := DecodeCompressedInt(enc)
		if err != nil {
			t.Fatalf("decode %d: %v", tc.value, err)
		}
		if got != tc.value || n != tc.width {
			t.Errorf("decode(encode(%d)) = (%d, %d), want (%d, %d)", tc.value, got, n, tc.value, tc.width)
		}
	}
}

func TestCompressedIntOverflow(t *testing.T) {
	for _, v := range []int32{0x10000000, -0x10000001} {
		err := WithBuilder(func(b *Builder) error {
			return b.AppendCompressedInt(v)
		})
		if !errors.Is(err, ErrOverflow) {
			t.Errorf("AppendCompressedInt(%d) = %v, want ErrOverflow", v, err)
		}
	}
}

func TestParamPositionEncoding(t *testing.T) {
	cases := []struct {
		pos   int
		width int
	}{
		{0, 1},
		{1, 1},
		{126, 1},
		{127, 2},
		{0x3FFF, 2},
		{0x4000, 4},
	}
	for _, tc := range cases {
		s, err := ForGenericTypeParam(tc.pos)
		if err != nil {
			t.Fatalf("ForGenericTypeParam(%d): %v", tc.pos, err)
		}
		enc := s.Bytes()
		if enc[0] != elemVar {
			t.Fatalf("position %d: leading byte 0x%02X, want 0x%02X", tc.pos, enc[0], elemVar)
		}
		if len(enc)-1 != tc.width {
			t.Errorf("position %d encoded in %d bytes, want %d", tc.pos, len(enc)-1, tc.width)
		}
		// Both the compact and the wide form decode through the standard
		// compressed-unsigned reader.
		got, _, err := DecodeCompressedUint(enc[1:])
		if err != nil {
			t.Fatalf("decode position %d: %v", tc.pos, err)
		}
		if got != uint32(tc.pos) {
			t.Errorf("position %d decoded as %d", tc.pos, got)
		}
	}
}

func TestForGenericParamNegativePosition(t *testing.T) {
	if _, err := ForGenericTypeParam(-1); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("ForGenericTypeParam(-1) = %v, want ErrInvalidArgument", err)
	}
	if _, err := ForGenericMethodParam(-1); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("ForGenericMethodParam(-1) = %v, want ErrInvalidArgument", err)
	}
}

func TestSignatureBytesAndEquality(t *testing.T) {
	short := FromBytes([]byte{0x12, 0x05})
	long := FromBytes([]byte{0x15, 0x12, 0x05, 0x01, 0x08, 0x0E, 0x0D, 0x02, 0x03})

	for _, s := range []Signature{short, long} {
		if got := len(s.Bytes()); got != s.Len() {
			t.Errorf("len(Bytes()) = %d, Len() = %d", got, s.Len())
		}
	}

	// Equal byte sequences imply equality regardless of construction path.
	other := FromBytes(short.Bytes())
	if short != other {
		t.Errorf("signatures with equal bytes are not equal: %v vs %v", short, other)
	}
	rebuilt := FromBytes(long.Bytes())
	if long != rebuilt {
		t.Errorf("heap signatures with equal bytes are not equal")
	}
	if short == long {
		t.Errorf("distinct signatures compare equal")
	}
}

func TestSignatureAppendTo(t *testing.T) {
	s := FromBytes([]byte{0x1D, 0x08})
	got := s.AppendTo([]byte{0xFF})
	want := []byte{0xFF, 0x1D, 0x08}
	if !bytes.Equal(got, want) {
		t.Fatalf("AppendTo = % X, want % X", got, want)
	}
}

func TestWrapByRefFails(t *testing.T) {
	elem := ForPrimitive(host.PrimInt32)
	byref, err := elem.AsByRef()
	if err != nil {
		t.Fatalf("AsByRef: %v", err)
	}
	before := byref.Bytes()

	wrappers := []struct {
		name string
		fn   func() (Signature, error)
	}{
		{"AsByRef", byref.AsByRef},
		{"AsPointer", byref.AsPointer},
		{"AsSZArray", byref.AsSZArray},
		{"AsArray", byref.AsArray},
	}
	for _, w := range wrappers {
		if _, err := w.fn(); !errors.Is(err, ErrInvalidOperation) {
			t.Errorf("%s on a by-ref signature = %v, want ErrInvalidOperation", w.name, err)
		}
	}
	if !bytes.Equal(byref.Bytes(), before) {
		t.Errorf("failed wrap mutated the receiver")
	}
}

func TestWrapEmptyFails(t *testing.T) {
	var zero Signature
	if _, err := zero.AsSZArray(); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("AsSZArray on empty = %v, want ErrInvalidArgument", err)
	}
}

func TestMakeArrayValidation(t *testing.T) {
	elem := ForPrimitive(host.PrimInt32)
	if _, err := elem.MakeArray(0, nil, nil); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("rank 0 = %v, want ErrInvalidArgument", err)
	}
	if _, err := elem.MakeArray(1, []int{1, 2}, nil); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("2 lengths for rank 1 = %v, want ErrInvalidArgument", err)
	}
	if _, err := elem.MakeArray(1, nil, []int{0, 0}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("2 lower bounds for rank 1 = %v, want ErrInvalidArgument", err)
	}
}

func TestMakeArrayEncoding(t *testing.T) {
	elem := ForPrimitive(host.PrimInt32)
	s, err := elem.MakeArray(2, []int{3, 4}, []int{0, -1})
	if err != nil {
		t.Fatalf("MakeArray: %v", err)
	}
	want := []byte{
		elemArray,
		byte(host.PrimInt32),
		2,    // rank
		2,    // lengths
		3, 4, // declared lengths
		2,          // lower bounds
		0x00, 0x7F, // 0 and -1, sign-rotated
	}
	if !bytes.Equal(s.Bytes(), want) {
		t.Fatalf("array encoding = % X, want % X", s.Bytes(), want)
	}
}

func TestWithGenericArgs(t *testing.T) {
	class, err := ForClass(handle.New(handle.TableTypeDef, 1))
	if err != nil {
		t.Fatalf("ForClass: %v", err)
	}

	if _, err := class.WithGenericArgs(nil); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("empty argument list = %v, want ErrInvalidArgument", err)
	}
	prim := ForPrimitive(host.PrimInt32)
	if _, err := prim.WithGenericArgs([]Signature{prim}); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("primitive receiver = %v, want ErrInvalidOperation", err)
	}

	inst, err := class.WithGenericArgs([]Signature{prim})
	if err != nil {
		t.Fatalf("WithGenericArgs: %v", err)
	}
	if inst.FirstByte() != elemGenericInst {
		t.Errorf("leading byte 0x%02X, want 0x%02X", inst.FirstByte(), elemGenericInst)
	}
}

func TestWithOwnParamsAsGenericArgs(t *testing.T) {
	class, err := ForClass(handle.New(handle.TableTypeDef, 1))
	if err != nil {
		t.Fatalf("ForClass: %v", err)
	}
	if _, err := class.WithOwnParamsAsGenericArgs(0); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("arity 0 = %v, want ErrInvalidArgument", err)
	}

	self, err := class.WithOwnParamsAsGenericArgs(2)
	if err != nil {
		t.Fatalf("WithOwnParamsAsGenericArgs: %v", err)
	}
	tail := self.Bytes()[self.Len()-5:]
	want := []byte{2, elemVar, 0, elemVar, 1}
	if !bytes.Equal(tail, want) {
		t.Fatalf("self-instantiation tail = % X, want % X", tail, want)
	}

	// Argument-driven construction of the same shape yields the same bytes.
	var0, err := ForGenericTypeParam(0)
	if err != nil {
		t.Fatal(err)
	}
	var1, err := ForGenericTypeParam(1)
	if err != nil {
		t.Fatal(err)
	}
	explicit, err := class.WithGenericArgs([]Signature{var0, var1})
	if err != nil {
		t.Fatal(err)
	}
	if self != explicit {
		t.Errorf("self-instantiation differs from explicit construction:\n  % X\n  % X", self.Bytes(), explicit.Bytes())
	}
}

func TestNestedBuilderBorrow(t *testing.T) {
	err := WithBuilder(func(outer *Builder) error {
		outer.AppendByte(0x01)
		inner := WithBuilder(func(b *Builder) error {
			if b == outer {
				t.Fatal("nested borrow returned the outer builder")
			}
			b.AppendByte(0xFF)
			return nil
		})
		if inner != nil {
			return inner
		}
		if outer.Len() != 1 {
			t.Fatalf("outer builder disturbed by nested borrow: %d bytes", outer.Len())
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestReleasedBuilderPanics(t *testing.T) {
	var leaked *Builder
	if err := WithBuilder(func(b *Builder) error {
		leaked = b
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	defer func() {
		if recover() == nil {
			t.Fatal("use of a released builder did not panic")
		}
	}()
	leaked.AppendByte(0x00)
}
