package scale

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
)

var maxU128 = new(big.Int).Lsh(big.NewInt(1), 128)

// Marshal encodes v according to td. The same value and descriptor always
// produce identical bytes.
func Marshal(v any, td *TypeDescriptor) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := encodeValue(buf, v, td); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeValue(buf *bytes.Buffer, v any, td *TypeDescriptor) error {
	switch td.Kind {
	case KindBool:
		b, ok := v.(bool)
		if !ok {
			return valueErr("bool", v)
		}
		if b {
			return buf.WriteByte(1)
		}
		return buf.WriteByte(0)

	case KindU8:
		u, err := toUint64(v, 1<<8-1)
		if err != nil {
			return err
		}
		return buf.WriteByte(byte(u))

	case KindU16:
		u, err := toUint64(v, 1<<16-1)
		if err != nil {
			return err
		}
		return binary.Write(buf, binary.LittleEndian, uint16(u))

	case KindU32:
		u, err := toUint64(v, 1<<32-1)
		if err != nil {
			return err
		}
		return binary.Write(buf, binary.LittleEndian, uint32(u))

	case KindU64:
		u, err := toUint64(v, 1<<64-1)
		if err != nil {
			return err
		}
		return binary.Write(buf, binary.LittleEndian, u)

	case KindU128:
		return encodeU128(buf, v)

	case KindCompact:
		u, err := toUint64(v, 1<<64-1)
		if err != nil {
			return err
		}
		return encodeCompact(buf, u)

	case KindBytes:
		raw, ok := v.([]byte)
		if !ok {
			return valueErr("[]byte", v)
		}
		if err := encodeCompact(buf, uint64(len(raw))); err != nil {
			return err
		}
		_, err := buf.Write(raw)
		return err

	case KindString:
		s, ok := v.(string)
		if !ok {
			return valueErr("string", v)
		}
		if err := encodeCompact(buf, uint64(len(s))); err != nil {
			return err
		}
		_, err := buf.WriteString(s)
		return err

	case KindFixedBytes:
		raw, ok := v.([]byte)
		if !ok {
			return valueErr("[]byte", v)
		}
		if len(raw) != td.Size {
			return errors.Join(ErrInvalidValue, fmt.Errorf("expected %d bytes, got %d", td.Size, len(raw)))
		}
		_, err := buf.Write(raw)
		return err

	case KindOption:
		opt, ok := v.(Option)
		if !ok {
			return valueErr("scale.Option", v)
		}
		if !opt.HasValue {
			return buf.WriteByte(0)
		}
		if err := buf.WriteByte(1); err != nil {
			return err
		}
		return encodeValue(buf, opt.Value, td.Elem)

	case KindVec:
		items, ok := v.([]any)
		if !ok {
			return valueErr("[]any", v)
		}
		if err := encodeCompact(buf, uint64(len(items))); err != nil {
			return err
		}
		for _, item := range items {
			if err := encodeValue(buf, item, td.Elem); err != nil {
				return err
			}
		}
		return nil

	case KindStruct:
		fields, ok := v.(map[string]any)
		if !ok {
			return valueErr("map[string]any", v)
		}
		for _, f := range td.Fields {
			fv, present := fields[f.Name]
			if !present {
				return errors.Join(ErrInvalidValue, fmt.Errorf("missing struct field %q", f.Name))
			}
			if err := encodeValue(buf, fv, f.Type); err != nil {
				return err
			}
		}
		return nil

	case KindEnum:
		ev, ok := v.(EnumValue)
		if !ok {
			return valueErr("scale.EnumValue", v)
		}
		variant, found := td.variantByName(ev.Name)
		if !found {
			variant, found = td.variantByIndex(ev.Index)
		}
		if !found {
			return errors.Join(ErrInvalidValue, fmt.Errorf("unknown enum variant %q (index %d)", ev.Name, ev.Index))
		}
		if len(ev.Fields) != len(variant.Fields) {
			return errors.Join(ErrInvalidValue,
				fmt.Errorf("variant %q expects %d fields, got %d", variant.Name, len(variant.Fields), len(ev.Fields)))
		}
		if err := buf.WriteByte(variant.Index); err != nil {
			return err
		}
		for i, f := range variant.Fields {
			if err := encodeValue(buf, ev.Fields[i], f.Type); err != nil {
				return err
			}
		}
		return nil
	}

	return errors.Join(ErrInvalidValue, fmt.Errorf("unknown descriptor kind %d", td.Kind))
}

func encodeU128(buf *bytes.Buffer, v any) error {
	var b *big.Int
	switch n := v.(type) {
	case *big.Int:
		b = n
	case uint64:
		b = new(big.Int).SetUint64(n)
	case int:
		if n < 0 {
			return valueErr("unsigned 128-bit integer", v)
		}
		b = big.NewInt(int64(n))
	default:
		return valueErr("*big.Int", v)
	}
	if b.Sign() < 0 || b.Cmp(maxU128) >= 0 {
		return errors.Join(ErrInvalidValue, fmt.Errorf("value %s out of u128 range", b))
	}

	raw := make([]byte, 16)
	b.FillBytes(raw)
	// big.Int serializes big-endian, the wire is little-endian.
	for i, j := 0, len(raw)-1; i < j; i, j = i+1, j-1 {
		raw[i], raw[j] = raw[j], raw[i]
	}
	_, err := buf.Write(raw)
	return err
}

// toUint64 widens the common integer types callers pass as call arguments.
func toUint64(v any, maxValue uint64) (uint64, error) {
	var u uint64
	switch n := v.(type) {
	case uint8:
		u = uint64(n)
	case uint16:
		u = uint64(n)
	case uint32:
		u = uint64(n)
	case uint64:
		u = n
	case uint:
		u = uint64(n)
	case int:
		if n < 0 {
			return 0, valueErr("unsigned integer", v)
		}
		u = uint64(n)
	default:
		return 0, valueErr("unsigned integer", v)
	}
	if u > maxValue {
		return 0, errors.Join(ErrInvalidValue, fmt.Errorf("value %d exceeds maximum %d", u, maxValue))
	}
	return u, nil
}

func valueErr(want string, got any) error {
	return errors.Join(ErrInvalidValue, fmt.Errorf("expected %s, got %T", want, got))
}
