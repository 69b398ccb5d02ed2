// Package topology implements the root topology: the authenticated list
// of well-known infrastructure peers ("supernodes"), plus the broader
// peer-liveness bookkeeping the background task engine drives (spec.md
// §3 "Root topology", §4.4 "Peer liveness").
//
// The authenticity check over a store-supplied root topology blob is
// built on the same Noise cipher suite the teacher uses for its
// handshake sessions (crypto/noise_handshake.go): rather than a full
// interactive handshake (there is no peer to handshake with — this is a
// static blob authenticity check), the compiled-in symmetric key seals
// the canonical topology at release time and this package verifies the
// AEAD tag, reusing noise.NewCipherSuite's Cipher as a keyed MAC/AEAD
// primitive.
package topology

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/flynn/noise"
	"github.com/sirupsen/logrus"

	"github.com/zerotau/zerotau/callbacks"
	"github.com/zerotau/zerotau/identity"
)

const storeKey = "root-topology"

// authKey is the compiled-in symmetric key used to verify a root-topology
// blob loaded from the embedder's store. In a real deployment this would
// be the project's release-signing key; it is a fixed constant here since
// generating and distributing that key is outside this package's concern.
var authKey = [32]byte{
	0x7a, 0x65, 0x72, 0x6f, 0x74, 0x61, 0x75, 0x2d,
	0x72, 0x6f, 0x6f, 0x74, 0x2d, 0x74, 0x6f, 0x70,
	0x6f, 0x6c, 0x6f, 0x67, 0x79, 0x2d, 0x61, 0x75,
	0x74, 0x68, 0x65, 0x6e, 0x74, 0x69, 0x63, 0x69,
}

var cipherSuite = noise.NewCipherSuite(noise.DH25519, noise.CipherAESGCM, noise.HashSHA256)

// Seal authenticates plaintext under the compiled-in key. Exposed so
// release tooling (outside this module) can produce a store blob that
// Verify will accept; exercised directly by this package's tests.
func Seal(plaintext []byte) []byte {
	c := cipherSuite.Cipher(authKey)
	return c.Encrypt(nil, 0, nil, plaintext)
}

// Verify checks an authenticated root-topology blob and returns the
// plaintext Dictionary bytes if it passes.
func Verify(sealed []byte) ([]byte, bool) {
	c := cipherSuite.Cipher(authKey)
	plaintext, err := c.Decrypt(nil, 0, nil, sealed)
	if err != nil {
		return nil, false
	}
	return plaintext, true
}

// Supernode is an infrastructure peer listed in the root topology.
type Supernode struct {
	Address  identity.Address `json:"address"`
	Endpoint string           `json:"endpoint"`
}

// Dictionary is the authenticated key/value structure described in
// spec.md §3; the only entry this spec names is "supernodes".
type Dictionary struct {
	Supernodes []Supernode `json:"supernodes"`
}

// defaultCompiledIn is the compiled-in fallback supernode list, source
// (c) in spec.md §3's resolution order. A production build would embed a
// real, current list; this is a minimal placeholder set.
func defaultCompiledIn() Dictionary {
	return Dictionary{Supernodes: []Supernode{
		{Endpoint: "198.51.100.1:9993"},
		{Endpoint: "198.51.100.2:9993"},
	}}
}

// peerState tracks liveness bookkeeping for one peer, supernode or not.
// Keyed by endpoint rather than Address: a compiled-in or store-supplied
// supernode entry has a known endpoint long before any handshake has
// resolved its cryptographic address, so endpoint is the only identifier
// guaranteed present from the moment a peer enters the topology.
type peerState struct {
	address     identity.Address
	endpoint    string
	isSupernode bool
	lastReceive time.Time
	lastSend    time.Time
}

// Topology owns the supernode list and all known-peer liveness state. It
// is exclusively owned by the Node; §4.4 drives it once per background
// tick.
type Topology struct {
	log *logrus.Entry

	mu         sync.Mutex
	supernodes []Supernode
	peers      map[string]*peerState

	// peerExpiry bounds how long a non-supernode peer may go without
	// traffic before housekeeping evicts it.
	peerExpiry time.Duration
}

// New constructs a Topology with no peers and an empty supernode list;
// call Apply to install the resolved list from Resolve.
func New(log *logrus.FieldLogger, peerExpiry time.Duration) *Topology {
	var entry *logrus.Entry
	if log != nil {
		entry = (*log).WithField("component", "topology")
	} else {
		entry = logrus.NewEntry(logrus.StandardLogger()).WithField("component", "topology")
	}
	return &Topology{
		log:        entry,
		peers:      make(map[string]*peerState),
		peerExpiry: peerExpiry,
	}
}

// Resolve implements spec.md §3's three-branch root-topology sourcing
// order: (a) an override string, trusted without authentication; (b) the
// embedder's store, accepted only if it passes Verify; (c) the
// compiled-in default.
func Resolve(cb callbacks.HostCallbacks, override string) Dictionary {
	if override != "" {
		var d Dictionary
		if err := json.Unmarshal([]byte(override), &d); err == nil {
			return d
		}
	}

	if raw, ok := callbacks.ReadAll(cb, storeKey); ok {
		if plaintext, ok := Verify(raw); ok {
			var d Dictionary
			if err := json.Unmarshal(plaintext, &d); err == nil {
				return d
			}
		}
	}

	return defaultCompiledIn()
}

// Apply installs a resolved Dictionary's supernode list, registering each
// as a known peer.
func (t *Topology) Apply(d Dictionary) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.supernodes = d.Supernodes
	for _, sn := range d.Supernodes {
		if _, exists := t.peers[sn.Endpoint]; !exists {
			t.peers[sn.Endpoint] = &peerState{
				address:     sn.Address,
				endpoint:    sn.Endpoint,
				isSupernode: true,
			}
		}
	}
}

// Supernodes returns a snapshot of the current supernode list.
func (t *Topology) Supernodes() []Supernode {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Supernode, len(t.supernodes))
	copy(out, t.supernodes)
	return out
}

// PeerSnapshot is a read-only view of a peer's liveness state, used by
// the background engine's ping phase.
type PeerSnapshot struct {
	Address     identity.Address
	Endpoint    string
	IsSupernode bool
	LastReceive time.Time
}

// Peers returns a snapshot of every known peer.
func (t *Topology) Peers() []PeerSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]PeerSnapshot, 0, len(t.peers))
	for _, p := range t.peers {
		out = append(out, PeerSnapshot{
			Address:     p.address,
			Endpoint:    p.endpoint,
			IsSupernode: p.isSupernode,
			LastReceive: p.lastReceive,
		})
	}
	return out
}

// Alive reports whether a non-supernode peer is considered alive under
// the topology's liveness rule (spec.md §4.4): it has sent or received
// traffic within peerExpiry of now.
func (t *Topology) Alive(endpoint string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.peers[endpoint]
	if !ok {
		return false
	}
	last := p.lastReceive
	if p.lastSend.After(last) {
		last = p.lastSend
	}
	return now.Sub(last) < t.peerExpiry
}

// RecordReceive updates a peer's lastReceive timestamp and learned
// address, registering it as a new non-supernode peer if the endpoint
// was previously unknown.
func (t *Topology) RecordReceive(addr identity.Address, endpoint string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.peers[endpoint]
	if !ok {
		p = &peerState{endpoint: endpoint}
		t.peers[endpoint] = p
	}
	p.address = addr
	p.lastReceive = now
}

// RecordSend updates a peer's lastSend timestamp.
func (t *Topology) RecordSend(endpoint string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p, ok := t.peers[endpoint]; ok {
		p.lastSend = now
	}
}

// CleanExpired evicts non-supernode peers that have been silent for
// longer than peerExpiry, as driven by the housekeeping phase of
// spec.md §4.4.
func (t *Topology) CleanExpired(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	evicted := 0
	for endpoint, p := range t.peers {
		if p.isSupernode {
			continue
		}
		last := p.lastReceive
		if p.lastSend.After(last) {
			last = p.lastSend
		}
		if now.Sub(last) >= t.peerExpiry {
			delete(t.peers, endpoint)
			evicted++
		}
	}
	if evicted > 0 {
		t.log.WithField("evicted", evicted).Debug("housekeeping evicted expired peers")
	}
	return evicted
}
