// Package identity implements the node's persistent long-lived
// cryptographic identity (spec.md §3 "Identity", §4.1).
//
// Key generation follows the teacher's crypto.KeyPair (NaCl box over
// Curve25519, via golang.org/x/crypto/nacl/box); the derived short
// address is a truncated hash of the public key, in the spirit of the
// teacher's crypto.ToxID checksum derivation.
package identity

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/nacl/box"

	"github.com/zerotau/zerotau/callbacks"
	"github.com/zerotau/zerotau/coreerr"
)

const (
	secretKeyName = "identity.secret"
	publicKeyName = "identity.public"

	// addressLen matches the short host-address length used throughout
	// the wire protocol (10 bytes, analogous to the teacher's ToxID but
	// shorter since it need not embed a nospam/checksum pair here).
	addressLen = 10
)

// Address is the short, derived identifier for an Identity's public key.
type Address [addressLen]byte

func (a Address) String() string {
	return hex.EncodeToString(a[:])
}

// IsReserved reports whether this address falls in a reserved/invalid
// class. Supplements spec.md: the original Node.cpp rejects a small set
// of reserved address patterns and emits FATAL_ERROR_IDENTITY_COLLISION
// rather than failing construction (see SPEC_FULL.md §5).
func (a Address) IsReserved() bool {
	allZero := true
	allFF := true
	for _, b := range a {
		if b != 0x00 {
			allZero = false
		}
		if b != 0xff {
			allFF = false
		}
	}
	return allZero || allFF
}

// KeyPair is a NaCl crypto_box key pair, grounded on the teacher's
// crypto.KeyPair.
type KeyPair struct {
	Public  [32]byte
	Private [32]byte
}

// Identity is the node's persistent cryptographic identity: a key pair
// plus its derived short address.
type Identity struct {
	KeyPair KeyPair
	Address Address
}

// deriveAddress truncates a SHA-256 of the public key to addressLen bytes,
// mirroring the teacher's pattern of deriving a short identifier from the
// public key (crypto/toxid.go) without carrying its nospam/checksum
// fields, which are specific to friend-request spam mitigation and have
// no role in this control plane.
func deriveAddress(pub [32]byte) Address {
	sum := sha256.Sum256(pub[:])
	var a Address
	copy(a[:], sum[:addressLen])
	return a
}

func generate() (*Identity, error) {
	pub, priv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("%w: key generation: %v", coreerr.ErrOOM, err)
	}
	id := &Identity{KeyPair: KeyPair{Public: *pub, Private: *priv}}
	id.Address = deriveAddress(id.KeyPair.Public)
	return id, nil
}

// serializeSecret/parseSecret store the key pair as the 64 raw bytes
// public||private, analogous to the teacher's hex-string identity
// serialization but kept as raw bytes since this store is opaque to the
// embedder's filesystem permissions rather than a user-facing string.
func serializeSecret(id *Identity) []byte {
	out := make([]byte, 64)
	copy(out[:32], id.KeyPair.Public[:])
	copy(out[32:], id.KeyPair.Private[:])
	return out
}

func parseSecret(data []byte) (*Identity, error) {
	if len(data) != 64 {
		return nil, errors.New("identity: malformed identity.secret")
	}
	id := &Identity{}
	copy(id.KeyPair.Public[:], data[:32])
	copy(id.KeyPair.Private[:], data[32:])
	if isZero(id.KeyPair.Private) {
		return nil, errors.New("identity: identity.secret missing private half")
	}
	id.Address = deriveAddress(id.KeyPair.Public)
	return id, nil
}

func isZero(k [32]byte) bool {
	for _, b := range k {
		if b != 0 {
			return false
		}
	}
	return true
}

// Bootstrap loads identity.secret from the embedder's store. If absent,
// unparsable, or missing the private half, it generates a new identity
// and persists both identity.secret (secure) and identity.public
// (non-secure). A store-write failure during persistence is fatal and
// returned wrapped in coreerr.ErrStoreFailed (spec.md §4.1 step 1).
func Bootstrap(cb callbacks.HostCallbacks) (*Identity, error) {
	if raw, ok := callbacks.ReadAll(cb, secretKeyName); ok {
		if id, err := parseSecret(raw); err == nil {
			return id, nil
		}
	}

	id, err := generate()
	if err != nil {
		return nil, err
	}

	if !cb.DataStorePut(secretKeyName, serializeSecret(id), true) {
		return nil, fmt.Errorf("%w: unable to write %s", coreerr.ErrStoreFailed, secretKeyName)
	}
	if !cb.DataStorePut(publicKeyName, id.KeyPair.Public[:], false) {
		return nil, fmt.Errorf("%w: unable to write %s", coreerr.ErrStoreFailed, publicKeyName)
	}

	return id, nil
}
