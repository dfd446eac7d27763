package scale

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Compact integers use the low two bits of the first byte as a mode tag:
// 0b00 single byte, 0b01 two bytes, 0b10 four bytes, 0b11 length-prefixed
// big mode. All modes are little-endian.
func encodeCompact(buf *bytes.Buffer, v uint64) error {
	switch {
	case v < 1<<6:
		return buf.WriteByte(byte(v) << 2)
	case v < 1<<14:
		return binary.Write(buf, binary.LittleEndian, uint16(v)<<2|0b01)
	case v < 1<<30:
		return binary.Write(buf, binary.LittleEndian, uint32(v)<<2|0b10)
	default:
		raw := make([]byte, 8)
		binary.LittleEndian.PutUint64(raw, v)
		n := 8
		for n > 4 && raw[n-1] == 0 {
			n--
		}
		if err := buf.WriteByte(byte(n-4)<<2 | 0b11); err != nil {
			return err
		}
		_, err := buf.Write(raw[:n])
		return err
	}
}

func decodeCompact(r *bytes.Reader) (uint64, error) {
	first, err := r.ReadByte()
	if err != nil {
		return 0, truncatedErr(err)
	}

	switch first & 0b11 {
	case 0b00:
		return uint64(first >> 2), nil
	case 0b01:
		second, err := r.ReadByte()
		if err != nil {
			return 0, truncatedErr(err)
		}
		return uint64(first)>>2 | uint64(second)<<6, nil
	case 0b10:
		rest := make([]byte, 3)
		if _, err := io.ReadFull(r, rest); err != nil {
			return 0, truncatedErr(err)
		}
		v := uint64(first) | uint64(rest[0])<<8 | uint64(rest[1])<<16 | uint64(rest[2])<<24
		return v >> 2, nil
	default:
		n := int(first>>2) + 4
		if n > 8 {
			return 0, errors.Join(ErrSchemaMismatch, fmt.Errorf("compact integer of %d bytes exceeds u64", n))
		}
		raw := make([]byte, 8)
		if _, err := io.ReadFull(r, raw[:n]); err != nil {
			return 0, truncatedErr(err)
		}
		return binary.LittleEndian.Uint64(raw), nil
	}
}
