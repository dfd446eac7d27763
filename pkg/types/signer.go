package types

// Signer is the injected signing capability. Implementations keep key
// material to themselves; the client only ever sees payloads and signatures.
type Signer interface {
	// Sign signs an opaque payload and returns the raw signature bytes.
	Sign(payload []byte) ([]byte, error)
	// PublicKey returns the raw public key bytes.
	PublicKey() []byte
	// AccountID returns the on-chain account derived from the public key.
	AccountID() AccountID
}
