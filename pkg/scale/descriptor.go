// Package scale implements the chain's compact binary encoding. Encoding is
// deterministic and self-terminating: a decoder consumes exactly the bytes
// belonging to its value, so concatenated fields decode sequentially.
package scale

import "errors"

var (
	// ErrSchemaMismatch is returned when bytes do not fit the descriptor,
	// e.g. a truncated buffer or an unknown enum discriminant. It indicates
	// schema skew with the node and is never worth retrying.
	ErrSchemaMismatch = errors.New("schema mismatch")
	// ErrInvalidValue is returned when a value cannot be encoded under the
	// given descriptor.
	ErrInvalidValue = errors.New("value does not fit type descriptor")
)

type Kind uint8

const (
	KindBool Kind = iota
	KindU8
	KindU16
	KindU32
	KindU64
	KindU128
	KindCompact
	KindBytes
	KindString
	KindFixedBytes
	KindOption
	KindVec
	KindStruct
	KindEnum
)

// TypeDescriptor describes the wire layout of one value. Descriptors are
// immutable and safe for concurrent use.
type TypeDescriptor struct {
	Kind     Kind
	Size     int             // KindFixedBytes
	Elem     *TypeDescriptor // KindOption, KindVec
	Fields   []Field         // KindStruct
	Variants []Variant       // KindEnum
}

type Field struct {
	Name string
	Type *TypeDescriptor
}

// Variant is one arm of a tagged union, discriminated on the wire by Index.
type Variant struct {
	Index  uint8
	Name   string
	Fields []Field
}

func Bool() *TypeDescriptor    { return &TypeDescriptor{Kind: KindBool} }
func U8() *TypeDescriptor      { return &TypeDescriptor{Kind: KindU8} }
func U16() *TypeDescriptor     { return &TypeDescriptor{Kind: KindU16} }
func U32() *TypeDescriptor     { return &TypeDescriptor{Kind: KindU32} }
func U64() *TypeDescriptor     { return &TypeDescriptor{Kind: KindU64} }
func U128() *TypeDescriptor    { return &TypeDescriptor{Kind: KindU128} }
func Compact() *TypeDescriptor { return &TypeDescriptor{Kind: KindCompact} }
func Bytes() *TypeDescriptor   { return &TypeDescriptor{Kind: KindBytes} }
func String() *TypeDescriptor  { return &TypeDescriptor{Kind: KindString} }

func FixedBytes(size int) *TypeDescriptor {
	return &TypeDescriptor{Kind: KindFixedBytes, Size: size}
}

func OptionOf(elem *TypeDescriptor) *TypeDescriptor {
	return &TypeDescriptor{Kind: KindOption, Elem: elem}
}

func VecOf(elem *TypeDescriptor) *TypeDescriptor {
	return &TypeDescriptor{Kind: KindVec, Elem: elem}
}

func StructOf(fields ...Field) *TypeDescriptor {
	return &TypeDescriptor{Kind: KindStruct, Fields: fields}
}

func EnumOf(variants ...Variant) *TypeDescriptor {
	return &TypeDescriptor{Kind: KindEnum, Variants: variants}
}

func NewField(name string, td *TypeDescriptor) Field {
	return Field{Name: name, Type: td}
}

func NewVariant(index uint8, name string, fields ...Field) Variant {
	return Variant{Index: index, Name: name, Fields: fields}
}

func (td *TypeDescriptor) variantByIndex(index uint8) (Variant, bool) {
	for _, v := range td.Variants {
		if v.Index == index {
			return v, true
		}
	}
	return Variant{}, false
}

func (td *TypeDescriptor) variantByName(name string) (Variant, bool) {
	for _, v := range td.Variants {
		if v.Name == name {
			return v, true
		}
	}
	return Variant{}, false
}

// Option is the decoded form of an optional value. None decodes to
// Option{HasValue: false}.
type Option struct {
	HasValue bool
	Value    any
}

func Some(v any) Option { return Option{HasValue: true, Value: v} }
func None() Option      { return Option{} }

// EnumValue is the decoded form of a tagged union. Fields are ordered as in
// the variant's descriptor.
type EnumValue struct {
	Index  uint8
	Name   string
	Fields []any
}
