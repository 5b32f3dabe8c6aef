// Package signer provides the concrete secp256k1 signing capability used
// to authorise transactions before submission.
package signer

import (
	"encoding/hex"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"sui-arb-engine/internal/arberr"
)

// Signer signs transaction digests with a single held private key.
type Signer interface {
	PublicKeyBytes() []byte
	Sign(digest []byte) ([]byte, error)
}

type secp256k1Signer struct {
	priv *secp256k1.PrivateKey
}

// FromHex constructs a Signer from a hex-encoded 32-byte private key, the
// format this engine's configuration layer reads from ARB_PRIVATE_KEY.
func FromHex(hexKey string) (Signer, error) {
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, arberr.Wrap(err, "decode private key hex")
	}
	if len(raw) != 32 {
		return nil, arberr.Wrapf(arberr.ErrConfigInvalid, "private key must be 32 bytes, got %d", len(raw))
	}
	priv := secp256k1.PrivKeyFromBytes(raw)
	return &secp256k1Signer{priv: priv}, nil
}

func (s *secp256k1Signer) PublicKeyBytes() []byte {
	return s.priv.PubKey().SerializeCompressed()
}

// Sign produces a deterministic (RFC 6979) ECDSA signature over digest.
// digest is expected to already be a transaction hash; this package never
// hashes its input itself, so callers must hash with whatever algorithm
// the destination transport expects.
func (s *secp256k1Signer) Sign(digest []byte) ([]byte, error) {
	if len(digest) != 32 {
		return nil, arberr.Wrapf(arberr.ErrConfigInvalid, "digest must be 32 bytes, got %d", len(digest))
	}
	sig := ecdsa.Sign(s.priv, digest)
	return sig.Serialize(), nil
}
