package scale

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/big"
)

// Decoder reads a sequence of values from a single buffer. It is not safe
// for concurrent use.
type Decoder struct {
	r *bytes.Reader
}

func NewDecoder(data []byte) *Decoder {
	return &Decoder{r: bytes.NewReader(data)}
}

// Remaining reports how many undecoded bytes are left.
func (d *Decoder) Remaining() int {
	return d.r.Len()
}

// Unmarshal decodes a single value and requires the buffer to be fully
// consumed. Use a Decoder for sequential decoding of concatenated values.
func Unmarshal(data []byte, td *TypeDescriptor) (any, error) {
	d := NewDecoder(data)
	v, err := d.Decode(td)
	if err != nil {
		return nil, err
	}
	if d.Remaining() > 0 {
		return nil, errors.Join(ErrSchemaMismatch, fmt.Errorf("%d trailing bytes after value", d.Remaining()))
	}
	return v, nil
}

func (d *Decoder) Decode(td *TypeDescriptor) (any, error) {
	switch td.Kind {
	case KindBool:
		b, err := d.r.ReadByte()
		if err != nil {
			return nil, truncatedErr(err)
		}
		switch b {
		case 0:
			return false, nil
		case 1:
			return true, nil
		}
		return nil, errors.Join(ErrSchemaMismatch, fmt.Errorf("invalid bool byte 0x%02x", b))

	case KindU8:
		b, err := d.r.ReadByte()
		if err != nil {
			return nil, truncatedErr(err)
		}
		return b, nil

	case KindU16:
		raw, err := d.read(2)
		if err != nil {
			return nil, err
		}
		return binary.LittleEndian.Uint16(raw), nil

	case KindU32:
		raw, err := d.read(4)
		if err != nil {
			return nil, err
		}
		return binary.LittleEndian.Uint32(raw), nil

	case KindU64:
		raw, err := d.read(8)
		if err != nil {
			return nil, err
		}
		return binary.LittleEndian.Uint64(raw), nil

	case KindU128:
		raw, err := d.read(16)
		if err != nil {
			return nil, err
		}
		be := make([]byte, 16)
		for i := range raw {
			be[15-i] = raw[i]
		}
		return new(big.Int).SetBytes(be), nil

	case KindCompact:
		return decodeCompact(d.r)

	case KindBytes:
		length, err := d.lengthPrefix()
		if err != nil {
			return nil, err
		}
		return d.read(length)

	case KindString:
		length, err := d.lengthPrefix()
		if err != nil {
			return nil, err
		}
		raw, err := d.read(length)
		if err != nil {
			return nil, err
		}
		return string(raw), nil

	case KindFixedBytes:
		return d.read(td.Size)

	case KindOption:
		tag, err := d.r.ReadByte()
		if err != nil {
			return nil, truncatedErr(err)
		}
		switch tag {
		case 0:
			return None(), nil
		case 1:
			v, err := d.Decode(td.Elem)
			if err != nil {
				return nil, err
			}
			return Some(v), nil
		}
		return nil, errors.Join(ErrSchemaMismatch, fmt.Errorf("invalid option tag 0x%02x", tag))

	case KindVec:
		length, err := d.lengthPrefix()
		if err != nil {
			return nil, err
		}
		items := make([]any, 0, length)
		for i := 0; i < length; i++ {
			v, err := d.Decode(td.Elem)
			if err != nil {
				return nil, err
			}
			items = append(items, v)
		}
		return items, nil

	case KindStruct:
		fields := make(map[string]any, len(td.Fields))
		for _, f := range td.Fields {
			v, err := d.Decode(f.Type)
			if err != nil {
				return nil, err
			}
			fields[f.Name] = v
		}
		return fields, nil

	case KindEnum:
		index, err := d.r.ReadByte()
		if err != nil {
			return nil, truncatedErr(err)
		}
		variant, found := td.variantByIndex(index)
		if !found {
			return nil, errors.Join(ErrSchemaMismatch, fmt.Errorf("unknown enum discriminant %d", index))
		}
		if len(variant.Fields) == 0 {
			return EnumValue{Index: variant.Index, Name: variant.Name}, nil
		}
		values := make([]any, 0, len(variant.Fields))
		for _, f := range variant.Fields {
			v, err := d.Decode(f.Type)
			if err != nil {
				return nil, err
			}
			values = append(values, v)
		}
		return EnumValue{Index: variant.Index, Name: variant.Name, Fields: values}, nil
	}

	return nil, errors.Join(ErrSchemaMismatch, fmt.Errorf("unknown descriptor kind %d", td.Kind))
}

// lengthPrefix reads a compact length and bounds it by the remaining
// buffer. Every counted element takes at least one byte, so a larger value
// is always corrupt; without the bound it would feed an unchecked make.
func (d *Decoder) lengthPrefix() (int, error) {
	length, err := decodeCompact(d.r)
	if err != nil {
		return 0, err
	}
	if length > uint64(d.r.Len()) {
		return 0, errors.Join(ErrSchemaMismatch, fmt.Errorf("length prefix %d exceeds remaining %d bytes", length, d.r.Len()))
	}
	return int(length), nil
}

func (d *Decoder) read(n int) ([]byte, error) {
	raw := make([]byte, n)
	if _, err := io.ReadFull(d.r, raw); err != nil {
		return nil, truncatedErr(err)
	}
	return raw, nil
}

func truncatedErr(err error) error {
	return errors.Join(ErrSchemaMismatch, fmt.Errorf("truncated buffer: %w", err))
}
