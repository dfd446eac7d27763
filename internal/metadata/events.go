package metadata

import "github.com/btc-parachain/chainrpc/pkg/scale"

// Phase variant indices within an event record.
const (
	PhaseApplyExtrinsic = uint8(0)
	PhaseFinalization   = uint8(1)
	PhaseInitialization = uint8(2)
)

// DispatchErrorDescriptor is the wire type of a failed dispatch outcome.
// The Module arm carries pallet and error indices resolvable through
// Metadata.ErrorName.
func DispatchErrorDescriptor() *scale.TypeDescriptor {
	return scale.EnumOf(
		scale.NewVariant(0, "Module",
			scale.NewField("index", scale.U8()),
			scale.NewField("error", scale.U8()),
		),
		scale.NewVariant(1, "BadOrigin"),
		scale.NewVariant(2, "CannotLookup"),
		scale.NewVariant(3, "Arithmetic", scale.NewField("kind", scale.U8())),
		scale.NewVariant(4, "Other"),
	)
}

func phaseDescriptor() *scale.TypeDescriptor {
	return scale.EnumOf(
		scale.NewVariant(PhaseApplyExtrinsic, "ApplyExtrinsic", scale.NewField("index", scale.U32())),
		scale.NewVariant(PhaseFinalization, "Finalization"),
		scale.NewVariant(PhaseInitialization, "Initialization"),
	)
}

// EventRecordsDescriptor builds the type of the System.Events storage value
// for this registry: a vector of (phase, event, topics) records where the
// event is a two-level tagged union, pallet index then variant index.
func (m *Metadata) EventRecordsDescriptor() *scale.TypeDescriptor {
	palletVariants := make([]scale.Variant, 0, len(m.Pallets))
	for _, p := range m.Pallets {
		if len(p.Events) == 0 {
			continue
		}
		eventVariants := make([]scale.Variant, 0, len(p.Events))
		for _, e := range p.Events {
			eventVariants = append(eventVariants, scale.Variant{Index: e.Index, Name: e.Name, Fields: e.Fields})
		}
		palletVariants = append(palletVariants, scale.NewVariant(p.Index, p.Name,
			scale.NewField("event", scale.EnumOf(eventVariants...)),
		))
	}

	return scale.VecOf(scale.StructOf(
		scale.NewField("phase", phaseDescriptor()),
		scale.NewField("event", scale.EnumOf(palletVariants...)),
		scale.NewField("topics", scale.VecOf(scale.FixedBytes(32))),
	))
}
