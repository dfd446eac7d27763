package metadata

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/btc-parachain/chainrpc/pkg/scale"
)

// The metadata blob served by the node is itself scale-encoded: a "meta"
// magic, a format version byte, then the registry. Type descriptors encode
// recursively as a kind byte plus kind-specific payload.
var metaMagic = []byte("meta")

const metaFormatVersion = uint8(1)

// Decode parses a metadata blob fetched from the node.
func Decode(blob []byte) (*Metadata, error) {
	if len(blob) < len(metaMagic)+1 || !bytes.Equal(blob[:len(metaMagic)], metaMagic) {
		return nil, errors.Join(ErrInvalidMetadata, errors.New("missing magic"))
	}
	if v := blob[len(metaMagic)]; v != metaFormatVersion {
		return nil, errors.Join(ErrInvalidMetadata, fmt.Errorf("unsupported metadata format %d", v))
	}

	d := scale.NewDecoder(blob[len(metaMagic)+1:])

	m := &Metadata{}
	var err error
	if m.SpecVersion, err = decodeU32(d); err != nil {
		return nil, err
	}
	if m.TxVersion, err = decodeU32(d); err != nil {
		return nil, err
	}

	count, err := decodeLen(d)
	if err != nil {
		return nil, err
	}
	m.Pallets = make([]Pallet, 0, count)
	for i := 0; i < count; i++ {
		p, err := decodePallet(d)
		if err != nil {
			return nil, err
		}
		m.Pallets = append(m.Pallets, p)
	}

	if d.Remaining() > 0 {
		return nil, errors.Join(ErrInvalidMetadata, fmt.Errorf("%d trailing bytes", d.Remaining()))
	}
	return m, nil
}

// Encode serializes the registry into the node wire form. Used by tests and
// by the embedded-registry path.
func (m *Metadata) Encode() ([]byte, error) {
	buf := &bytes.Buffer{}
	buf.Write(metaMagic)
	buf.WriteByte(metaFormatVersion)

	if err := encodeU32(buf, m.SpecVersion); err != nil {
		return nil, err
	}
	if err := encodeU32(buf, m.TxVersion); err != nil {
		return nil, err
	}
	if err := encodeLen(buf, len(m.Pallets)); err != nil {
		return nil, err
	}
	for i := range m.Pallets {
		if err := encodePallet(buf, &m.Pallets[i]); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func decodePallet(d *scale.Decoder) (Pallet, error) {
	var p Pallet
	var err error

	if p.Name, err = decodeString(d); err != nil {
		return p, err
	}
	if p.Index, err = decodeU8(d); err != nil {
		return p, err
	}

	callCount, err := decodeLen(d)
	if err != nil {
		return p, err
	}
	for i := 0; i < callCount; i++ {
		var c CallDef
		if c.Name, err = decodeString(d); err != nil {
			return p, err
		}
		if c.Index, err = decodeU8(d); err != nil {
			return p, err
		}
		if c.Args, err = decodeFields(d); err != nil {
			return p, err
		}
		p.Calls = append(p.Calls, c)
	}

	eventCount, err := decodeLen(d)
	if err != nil {
		return p, err
	}
	for i := 0; i < eventCount; i++ {
		var e EventDef
		if e.Name, err = decodeString(d); err != nil {
			return p, err
		}
		if e.Index, err = decodeU8(d); err != nil {
			return p, err
		}
		if e.Fields, err = decodeFields(d); err != nil {
			return p, err
		}
		p.Events = append(p.Events, e)
	}

	errorCount, err := decodeLen(d)
	if err != nil {
		return p, err
	}
	for i := 0; i < errorCount; i++ {
		var e ErrorDef
		if e.Name, err = decodeString(d); err != nil {
			return p, err
		}
		if e.Index, err = decodeU8(d); err != nil {
			return p, err
		}
		p.Errors = append(p.Errors, e)
	}

	storageCount, err := decodeLen(d)
	if err != nil {
		return p, err
	}
	for i := 0; i < storageCount; i++ {
		var s StorageEntry
		if s.Name, err = decodeString(d); err != nil {
			return p, err
		}
		h, err := decodeU8(d)
		if err != nil {
			return p, err
		}
		s.Hasher = Hasher(h)
		if s.Key, err = decodeOptionalType(d); err != nil {
			return p, err
		}
		if s.Value, err = decodeOptionalType(d); err != nil {
			return p, err
		}
		p.Storage = append(p.Storage, s)
	}

	return p, nil
}

func encodePallet(buf *bytes.Buffer, p *Pallet) error {
	if err := encodeString(buf, p.Name); err != nil {
		return err
	}
	buf.WriteByte(p.Index)

	if err := encodeLen(buf, len(p.Calls)); err != nil {
		return err
	}
	for _, c := range p.Calls {
		if err := encodeString(buf, c.Name); err != nil {
			return err
		}
		buf.WriteByte(c.Index)
		if err := encodeFields(buf, c.Args); err != nil {
			return err
		}
	}

	if err := encodeLen(buf, len(p.Events)); err != nil {
		return err
	}
	for _, e := range p.Events {
		if err := encodeString(buf, e.Name); err != nil {
			return err
		}
		buf.WriteByte(e.Index)
		if err := encodeFields(buf, e.Fields); err != nil {
			return err
		}
	}

	if err := encodeLen(buf, len(p.Errors)); err != nil {
		return err
	}
	for _, e := range p.Errors {
		if err := encodeString(buf, e.Name); err != nil {
			return err
		}
		buf.WriteByte(e.Index)
	}

	if err := encodeLen(buf, len(p.Storage)); err != nil {
		return err
	}
	for _, s := range p.Storage {
		if err := encodeString(buf, s.Name); err != nil {
			return err
		}
		buf.WriteByte(byte(s.Hasher))
		if err := encodeOptionalType(buf, s.Key); err != nil {
			return err
		}
		if err := encodeOptionalType(buf, s.Value); err != nil {
			return err
		}
	}

	return nil
}

func decodeFields(d *scale.Decoder) ([]scale.Field, error) {
	count, err := decodeLen(d)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	fields := make([]scale.Field, 0, count)
	for i := 0; i < count; i++ {
		name, err := decodeString(d)
		if err != nil {
			return nil, err
		}
		td, err := decodeType(d)
		if err != nil {
			return nil, err
		}
		fields = append(fields, scale.NewField(name, td))
	}
	return fields, nil
}

func encodeFields(buf *bytes.Buffer, fields []scale.Field) error {
	if err := encodeLen(buf, len(fields)); err != nil {
		return err
	}
	for _, f := range fields {
		if err := encodeString(buf, f.Name); err != nil {
			return err
		}
		if err := encodeType(buf, f.Type); err != nil {
			return err
		}
	}
	return nil
}

func decodeType(d *scale.Decoder) (*scale.TypeDescriptor, error) {
	kind, err := decodeU8(d)
	if err != nil {
		return nil, err
	}

	td := &scale.TypeDescriptor{Kind: scale.Kind(kind)}
	switch td.Kind {
	case scale.KindBool, scale.KindU8, scale.KindU16, scale.KindU32, scale.KindU64,
		scale.KindU128, scale.KindCompact, scale.KindBytes, scale.KindString:
		return td, nil

	case scale.KindFixedBytes:
		size, err := decodeLen(d)
		if err != nil {
			return nil, err
		}
		td.Size = size
		return td, nil

	case scale.KindOption, scale.KindVec:
		if td.Elem, err = decodeType(d); err != nil {
			return nil, err
		}
		return td, nil

	case scale.KindStruct:
		if td.Fields, err = decodeFields(d); err != nil {
			return nil, err
		}
		return td, nil

	case scale.KindEnum:
		count, err := decodeLen(d)
		if err != nil {
			return nil, err
		}
		for i := 0; i < count; i++ {
			index, err := decodeU8(d)
			if err != nil {
				return nil, err
			}
			name, err := decodeString(d)
			if err != nil {
				return nil, err
			}
			fields, err := decodeFields(d)
			if err != nil {
				return nil, err
			}
			td.Variants = append(td.Variants, scale.Variant{Index: index, Name: name, Fields: fields})
		}
		return td, nil
	}

	return nil, errors.Join(ErrInvalidMetadata, fmt.Errorf("unknown type kind %d", kind))
}

func encodeType(buf *bytes.Buffer, td *scale.TypeDescriptor) error {
	buf.WriteByte(byte(td.Kind))

	switch td.Kind {
	case scale.KindFixedBytes:
		return encodeLen(buf, td.Size)
	case scale.KindOption, scale.KindVec:
		return encodeType(buf, td.Elem)
	case scale.KindStruct:
		return encodeFields(buf, td.Fields)
	case scale.KindEnum:
		if err := encodeLen(buf, len(td.Variants)); err != nil {
			return err
		}
		for _, v := range td.Variants {
			buf.WriteByte(v.Index)
			if err := encodeString(buf, v.Name); err != nil {
				return err
			}
			if err := encodeFields(buf, v.Fields); err != nil {
				return err
			}
		}
	}
	return nil
}

func decodeOptionalType(d *scale.Decoder) (*scale.TypeDescriptor, error) {
	present, err := decodeU8(d)
	if err != nil {
		return nil, err
	}
	switch present {
	case 0:
		return nil, nil
	case 1:
		return decodeType(d)
	}
	return nil, errors.Join(ErrInvalidMetadata, fmt.Errorf("invalid option tag %d", present))
}

func encodeOptionalType(buf *bytes.Buffer, td *scale.TypeDescriptor) error {
	if td == nil {
		buf.WriteByte(0)
		return nil
	}
	buf.WriteByte(1)
	return encodeType(buf, td)
}

func decodeU8(d *scale.Decoder) (uint8, error) {
	v, err := d.Decode(scale.U8())
	if err != nil {
		return 0, errors.Join(ErrInvalidMetadata, err)
	}
	return v.(uint8), nil
}

func decodeU32(d *scale.Decoder) (uint32, error) {
	v, err := d.Decode(scale.U32())
	if err != nil {
		return 0, errors.Join(ErrInvalidMetadata, err)
	}
	return v.(uint32), nil
}

func decodeString(d *scale.Decoder) (string, error) {
	v, err := d.Decode(scale.String())
	if err != nil {
		return "", errors.Join(ErrInvalidMetadata, err)
	}
	return v.(string), nil
}

func decodeLen(d *scale.Decoder) (int, error) {
	v, err := d.Decode(scale.Compact())
	if err != nil {
		return 0, errors.Join(ErrInvalidMetadata, err)
	}
	// every counted element takes at least one byte; the metadata blob
	// comes off the wire, so a corrupt count must not reach make
	n := v.(uint64)
	if n > uint64(d.Remaining()) {
		return 0, errors.Join(ErrInvalidMetadata, fmt.Errorf("element count %d exceeds remaining %d bytes", n, d.Remaining()))
	}
	return int(n), nil
}

func encodeU32(buf *bytes.Buffer, v uint32) error {
	raw, err := scale.Marshal(v, scale.U32())
	if err != nil {
		return err
	}
	buf.Write(raw)
	return nil
}

func encodeString(buf *bytes.Buffer, s string) error {
	raw, err := scale.Marshal(s, scale.String())
	if err != nil {
		return err
	}
	buf.Write(raw)
	return nil
}

func encodeLen(buf *bytes.Buffer, n int) error {
	raw, err := scale.Marshal(uint64(n), scale.Compact())
	if err != nil {
		return err
	}
	buf.Write(raw)
	return nil
}
