package scale_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/btc-parachain/chainrpc/pkg/scale"
)

func TestRoundTrip(t *testing.T) {
	tt := []struct {
		name  string
		td    *scale.TypeDescriptor
		value any
	}{
		{
			name:  "bool true",
			td:    scale.Bool(),
			value: true,
		},
		{
			name:  "u8",
			td:    scale.U8(),
			value: uint8(0xff),
		},
		{
			name:  "u16",
			td:    scale.U16(),
			value: uint16(0xbeef),
		},
		{
			name:  "u32",
			td:    scale.U32(),
			value: uint32(42),
		},
		{
			name:  "u64",
			td:    scale.U64(),
			value: uint64(1) << 63,
		},
		{
			name:  "u128",
			td:    scale.U128(),
			value: new(big.Int).Lsh(big.NewInt(7), 100),
		},
		{
			name:  "compact single byte",
			td:    scale.Compact(),
			value: uint64(63),
		},
		{
			name:  "compact two bytes",
			td:    scale.Compact(),
			value: uint64(16383),
		},
		{
			name:  "compact four bytes",
			td:    scale.Compact(),
			value: uint64(1<<30 - 1),
		},
		{
			name:  "compact big mode",
			td:    scale.Compact(),
			value: uint64(1) << 57,
		},
		{
			name:  "byte vector",
			td:    scale.Bytes(),
			value: []byte{0xde, 0xad, 0xbe, 0xef},
		},
		{
			name:  "string",
			td:    scale.String(),
			value: "request_issue",
		},
		{
			name:  "fixed bytes",
			td:    scale.FixedBytes(4),
			value: []byte{1, 2, 3, 4},
		},
		{
			name:  "option none",
			td:    scale.OptionOf(scale.U32()),
			value: scale.None(),
		},
		{
			name:  "option some",
			td:    scale.OptionOf(scale.U32()),
			value: scale.Some(uint32(7)),
		},
		{
			name:  "vector of u16",
			td:    scale.VecOf(scale.U16()),
			value: []any{uint16(1), uint16(2), uint16(3)},
		},
		{
			name: "struct",
			td: scale.StructOf(
				scale.NewField("nonce", scale.U32()),
				scale.NewField("free", scale.U128()),
			),
			value: map[string]any{
				"nonce": uint32(5),
				"free":  big.NewInt(1000),
			},
		},
		{
			name: "enum with payload",
			td: scale.EnumOf(
				scale.NewVariant(0, "Ok"),
				scale.NewVariant(1, "Err", scale.NewField("code", scale.U8())),
			),
			value: scale.EnumValue{Index: 1, Name: "Err", Fields: []any{uint8(3)}},
		},
		{
			name: "nested vector of structs",
			td: scale.VecOf(scale.StructOf(
				scale.NewField("id", scale.U64()),
				scale.NewField("tags", scale.VecOf(scale.String())),
			)),
			value: []any{
				map[string]any{"id": uint64(1), "tags": []any{"a", "b"}},
				map[string]any{"id": uint64(2), "tags": []any{}},
			},
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			// When
			encoded, err := scale.Marshal(tc.value, tc.td)
			require.NoError(t, err)

			decoded, err := scale.Unmarshal(encoded, tc.td)

			// Then
			require.NoError(t, err)
			require.Equal(t, tc.value, decoded)

			// determinism
			second, err := scale.Marshal(tc.value, tc.td)
			require.NoError(t, err)
			require.Equal(t, encoded, second)
		})
	}
}

func TestKnownEncodings(t *testing.T) {
	tt := []struct {
		name     string
		td       *scale.TypeDescriptor
		value    any
		expected []byte
	}{
		{
			name:     "u32 little endian",
			td:       scale.U32(),
			value:    uint32(0x01020304),
			expected: []byte{0x04, 0x03, 0x02, 0x01},
		},
		{
			name:     "compact 0",
			td:       scale.Compact(),
			value:    uint64(0),
			expected: []byte{0x00},
		},
		{
			name:     "compact 69",
			td:       scale.Compact(),
			value:    uint64(69),
			expected: []byte{0x15, 0x01},
		},
		{
			name:     "compact 2^30",
			td:       scale.Compact(),
			value:    uint64(1 << 30),
			expected: []byte{0x03, 0x00, 0x00, 0x00, 0x40},
		},
		{
			name:     "empty byte vector",
			td:       scale.Bytes(),
			value:    []byte{},
			expected: []byte{0x00},
		},
		{
			name:     "option none is a single zero byte",
			td:       scale.OptionOf(scale.U64()),
			value:    scale.None(),
			expected: []byte{0x00},
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			encoded, err := scale.Marshal(tc.value, tc.td)

			require.NoError(t, err)
			require.Equal(t, tc.expected, encoded)
		})
	}
}

func TestDecode_SchemaMismatch(t *testing.T) {
	tt := []struct {
		name string
		td   *scale.TypeDescriptor
		data []byte
	}{
		{
			name: "truncated u64",
			td:   scale.U64(),
			data: []byte{1, 2, 3},
		},
		{
			name: "truncated vector",
			td:   scale.VecOf(scale.U32()),
			data: []byte{0x08, 0x01, 0x00, 0x00, 0x00}, // declares 2 elements, carries 1
		},
		{
			name: "invalid bool byte",
			td:   scale.Bool(),
			data: []byte{0x02},
		},
		{
			name: "invalid option tag",
			td:   scale.OptionOf(scale.U8()),
			data: []byte{0x05, 0x01},
		},
		{
			name: "unknown enum discriminant",
			td:   scale.EnumOf(scale.NewVariant(0, "Ok")),
			data: []byte{0x09},
		},
		{
			name: "trailing bytes",
			td:   scale.U8(),
			data: []byte{0x01, 0x02},
		},
		{
			name: "vector length exceeds buffer",
			td:   scale.VecOf(scale.U8()),
			data: []byte{0xfd, 0xff, 0xff, 0xff}, // huge compact length
		},
		{
			name: "byte length exceeds buffer",
			td:   scale.Bytes(),
			data: []byte{0x08, 0x01}, // declares 2 bytes, carries 1
		},
		{
			// a big-mode length past 2^63 would go negative as an int
			name: "byte length overflows int",
			td:   scale.Bytes(),
			data: []byte{0x13, 0, 0, 0, 0, 0, 0, 0, 0x80},
		},
		{
			name: "string length exceeds buffer",
			td:   scale.String(),
			data: []byte{0x13, 0, 0, 0, 0, 0, 0, 0, 0x80},
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			_, err := scale.Unmarshal(tc.data, tc.td)

			require.ErrorIs(t, err, scale.ErrSchemaMismatch)
		})
	}
}

func TestSequentialDecode(t *testing.T) {
	// Given two concatenated values
	first, err := scale.Marshal(uint32(7), scale.U32())
	require.NoError(t, err)
	second, err := scale.Marshal("vault", scale.String())
	require.NoError(t, err)

	// When decoding them back to back from one buffer
	dec := scale.NewDecoder(append(first, second...))

	v1, err := dec.Decode(scale.U32())
	require.NoError(t, err)
	v2, err := dec.Decode(scale.String())
	require.NoError(t, err)

	// Then each decode stops after exactly its own bytes
	require.Equal(t, uint32(7), v1)
	require.Equal(t, "vault", v2)
	require.Zero(t, dec.Remaining())
}

func TestMarshal_InvalidValue(t *testing.T) {
	tt := []struct {
		name  string
		td    *scale.TypeDescriptor
		value any
	}{
		{
			name:  "wrong fixed length",
			td:    scale.FixedBytes(32),
			value: []byte{1, 2, 3},
		},
		{
			name:  "u8 overflow",
			td:    scale.U8(),
			value: uint64(300),
		},
		{
			name:  "negative int",
			td:    scale.U32(),
			value: -1,
		},
		{
			name: "missing struct field",
			td:   scale.StructOf(scale.NewField("nonce", scale.U32())),
			value: map[string]any{
				"other": uint32(1),
			},
		},
		{
			name:  "unknown variant",
			td:    scale.EnumOf(scale.NewVariant(0, "Ok")),
			value: scale.EnumValue{Index: 9, Name: "Nope"},
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			_, err := scale.Marshal(tc.value, tc.td)

			require.ErrorIs(t, err, scale.ErrInvalidValue)
		})
	}
}
