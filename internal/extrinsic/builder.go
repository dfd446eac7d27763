// Package extrinsic builds, signs, and submits transactions, then follows
// them through the transaction pool until they are finalized or rejected.
package extrinsic

import (
	"bytes"
	"errors"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"github.com/btc-parachain/chainrpc/internal/metadata"
	"github.com/btc-parachain/chainrpc/pkg/scale"
	"github.com/btc-parachain/chainrpc/pkg/types"
)

const (
	// transaction format version 4, with the signed bit set
	extrinsicVersionSigned = 0x84

	// MultiAddress::Id and MultiSignature::Ed25519 discriminants
	multiAddressID       = 0x00
	multiSignatureEd     = 0x00
	immortalEra          = 0x00
	signingPayloadMaxLen = 256
)

var ErrArgumentCount = errors.New("call argument count does not match metadata")

// ChainSpec pins the chain constants every signed payload commits to. A
// payload built against a stale SpecVersion is rejected by the pool, so the
// client refreshes these on connect.
type ChainSpec struct {
	GenesisHash types.H256
	SpecVersion uint32
	TxVersion   uint32
}

// Builder turns typed calls into wire-format signed extrinsics using the
// chain metadata for argument encoding.
type Builder struct {
	meta *metadata.Metadata
	spec ChainSpec
}

func NewBuilder(meta *metadata.Metadata, spec ChainSpec) *Builder {
	return &Builder{meta: meta, spec: spec}
}

// EncodeCall encodes a typed call to its dispatch bytes: pallet index, call
// index, then each argument in metadata order.
func (b *Builder) EncodeCall(call types.Call) ([]byte, error) {
	palletIndex, callIndex, args, err := b.meta.ResolveCall(call.Pallet, call.Method)
	if err != nil {
		return nil, err
	}
	if len(call.Args) != len(args) {
		return nil, errors.Join(ErrArgumentCount,
			fmt.Errorf("%s takes %d arguments, got %d", call, len(args), len(call.Args)))
	}

	buf := &bytes.Buffer{}
	buf.WriteByte(palletIndex)
	buf.WriteByte(callIndex)
	for i, arg := range args {
		encoded, err := scale.Marshal(call.Args[i], arg.Type)
		if err != nil {
			return nil, fmt.Errorf("%s argument %q: %w", call, arg.Name, err)
		}
		buf.Write(encoded)
	}
	return buf.Bytes(), nil
}

// SigningPayload assembles the bytes the signer commits to: the call, the
// mortality and pool parameters, and the chain constants. Payloads over 256
// bytes are signed through their blake2_256 digest.
func (b *Builder) SigningPayload(callBytes []byte, nonce uint32, tip uint64) ([]byte, error) {
	buf := &bytes.Buffer{}
	buf.Write(callBytes)
	buf.WriteByte(immortalEra)
	if err := writeCompact(buf, uint64(nonce)); err != nil {
		return nil, err
	}
	if err := writeCompact(buf, tip); err != nil {
		return nil, err
	}

	var versions [8]byte
	encodeU32(versions[:4], b.spec.SpecVersion)
	encodeU32(versions[4:], b.spec.TxVersion)
	buf.Write(versions[:])

	// genesis hash twice: once as the genesis anchor, once as the era
	// checkpoint (immortal transactions check against genesis)
	buf.Write(b.spec.GenesisHash[:])
	buf.Write(b.spec.GenesisHash[:])

	payload := buf.Bytes()
	if len(payload) > signingPayloadMaxLen {
		digest := blake2b.Sum256(payload)
		return digest[:], nil
	}
	return payload, nil
}

// Build signs the call and assembles the length-prefixed signed extrinsic.
func (b *Builder) Build(signer types.Signer, call types.Call, nonce uint32, tip uint64) ([]byte, error) {
	callBytes, err := b.EncodeCall(call)
	if err != nil {
		return nil, err
	}

	payload, err := b.SigningPayload(callBytes, nonce, tip)
	if err != nil {
		return nil, err
	}
	signature, err := signer.Sign(payload)
	if err != nil {
		return nil, err
	}

	account := signer.AccountID()

	body := &bytes.Buffer{}
	body.WriteByte(extrinsicVersionSigned)
	body.WriteByte(multiAddressID)
	body.Write(account[:])
	body.WriteByte(multiSignatureEd)
	body.Write(signature)
	body.WriteByte(immortalEra)
	if err := writeCompact(body, uint64(nonce)); err != nil {
		return nil, err
	}
	if err := writeCompact(body, tip); err != nil {
		return nil, err
	}
	body.Write(callBytes)

	out := &bytes.Buffer{}
	if err := writeCompact(out, uint64(body.Len())); err != nil {
		return nil, err
	}
	body.WriteTo(out)
	return out.Bytes(), nil
}

func writeCompact(buf *bytes.Buffer, v uint64) error {
	encoded, err := scale.Marshal(v, scale.Compact())
	if err != nil {
		return err
	}
	_, err = buf.Write(encoded)
	return err
}

func encodeU32(dst []byte, v uint32) {
	dst[0] = byte(v)
	dst[1] = byte(v >> 8)
	dst[2] = byte(v >> 16)
	dst[3] = byte(v >> 24)
}
