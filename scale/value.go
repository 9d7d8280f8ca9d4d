package scale

import (
	"fmt"
	"math/big"
	"strings"
)

// Kind tags the shape of a Value.
type Kind uint8

const (
	KindBool Kind = iota
	KindUint
	KindInt
	KindBig
	KindString
	KindSequence
	KindTuple
	KindComposite
	KindVariant
	KindBits
)

// String returns the lowercase kind name.
func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindUint:
		return "uint"
	case KindInt:
		return "int"
	case KindBig:
		return "big"
	case KindString:
		return "string"
	case KindSequence:
		return "sequence"
	case KindTuple:
		return "tuple"
	case KindComposite:
		return "composite"
	case KindVariant:
		return "variant"
	case KindBits:
		return "bits"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Field is a single named (or positional, when Name is empty) member of
// a composite or variant value.
type Field struct {
	Name  string
	Value Value
}

// Value is a generic, registry-independent representation of any
// encodable or decodable value. Exactly the payload fields implied by
// Kind are meaningful; the rest stay zero.
//
// Values are plain data: copying one is cheap and there is no internal
// sharing to worry about beyond the usual slice aliasing.
type Value struct {
	Kind Kind

	Bool   bool
	Uint   uint64    // unsigned integers up to 64 bits
	Int    int64     // signed integers up to 64 bits
	Big    *big.Int  // 128-bit and compact big-number values
	Str    string
	List   []Value   // sequence, tuple and array elements
	Fields []Field   // composite members or selected variant arm fields
	Name   string    // selected variant arm name
	Bits   []bool    // packed boolean sequence, in logical order
}

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// U64 returns an unsigned integer value.
func U64(v uint64) Value { return Value{Kind: KindUint, Uint: v} }

// I64 returns a signed integer value.
func I64(v int64) Value { return Value{Kind: KindInt, Int: v} }

// Big returns a big-integer value. The argument is not copied.
func Big(v *big.Int) Value { return Value{Kind: KindBig, Big: v} }

// Str returns a string value.
func Str(s string) Value { return Value{Kind: KindString, Str: s} }

// Sequence returns a homogeneous list value.
func Sequence(elems ...Value) Value { return Value{Kind: KindSequence, List: elems} }

// Tuple returns an ordered unnamed product value. Array-typed values
// use Tuple as well, since arrays carry no length on the wire.
func Tuple(elems ...Value) Value { return Value{Kind: KindTuple, List: elems} }

// Composite returns a struct-like value with the given fields in order.
func Composite(fields ...Field) Value { return Value{Kind: KindComposite, Fields: fields} }

// Variant returns a tagged-union value selecting the named arm.
func Variant(name string, fields ...Field) Value {
	return Value{Kind: KindVariant, Name: name, Fields: fields}
}

// BitSeq returns a packed boolean sequence value.
func BitSeq(bits ...bool) Value { return Value{Kind: KindBits, Bits: bits} }

// Bytes returns a sequence of u8 values, the generic form of byte blobs.
func Bytes(data []byte) Value {
	elems := make([]Value, len(data))
	for i, b := range data {
		elems[i] = U64(uint64(b))
	}
	return Sequence(elems...)
}

// Named pairs a field name with a value, for Composite and Variant.
func Named(name string, v Value) Field { return Field{Name: name, Value: v} }

// Unnamed wraps a value as a positional field.
func Unnamed(v Value) Field { return Field{Value: v} }

// String renders the value tree for logs and error messages. The format
// is not stable and not meant to be parsed.
func (v Value) String() string {
	var sb strings.Builder
	v.render(&sb)
	return sb.String()
}

func (v Value) render(sb *strings.Builder) {
	switch v.Kind {
	case KindBool:
		fmt.Fprintf(sb, "%t", v.Bool)
	case KindUint:
		fmt.Fprintf(sb, "%d", v.Uint)
	case KindInt:
		fmt.Fprintf(sb, "%d", v.Int)
	case KindBig:
		fmt.Fprintf(sb, "%s", v.Big)
	case KindString:
		fmt.Fprintf(sb, "%q", v.Str)
	case KindSequence, KindTuple:
		opener, closer := "[", "]"
		if v.Kind == KindTuple {
			opener, closer = "(", ")"
		}
		sb.WriteString(opener)
		for i, e := range v.List {
			if i > 0 {
				sb.WriteString(", ")
			}
			e.render(sb)
		}
		sb.WriteString(closer)
	case KindComposite:
		sb.WriteString("{")
		for i, f := range v.Fields {
			if i > 0 {
				sb.WriteString(", ")
			}
			if f.Name != "" {
				sb.WriteString(f.Name)
				sb.WriteString(": ")
			}
			f.Value.render(sb)
		}
		sb.WriteString("}")
	case KindVariant:
		sb.WriteString(v.Name)
		if len(v.Fields) > 0 {
			sb.WriteString("(")
			for i, f := range v.Fields {
				if i > 0 {
					sb.WriteString(", ")
				}
				if f.Name != "" {
					sb.WriteString(f.Name)
					sb.WriteString(": ")
				}
				f.Value.render(sb)
			}
			sb.WriteString(")")
		}
	case KindBits:
		sb.WriteString("bits<")
		for _, b := range v.Bits {
			if b {
				sb.WriteString("1")
			} else {
				sb.WriteString("0")
			}
		}
		sb.WriteString(">")
	default:
		fmt.Fprintf(sb, "<%s>", v.Kind)
	}
}
