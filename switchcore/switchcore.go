// Package switchcore defines the interface to the packet codec and
// cryptographic switch: an external collaborator, out of scope for this
// spec (spec.md §1), composed here only through the input/output contract
// it must satisfy.
//
// The shape follows the teacher's transport.Transport interface
// (transport/types.go): a small set of methods the core calls into,
// implemented elsewhere and injected at construction.
package switchcore

import (
	"time"

	"github.com/zerotau/zerotau/identity"
)

// Switch decodes and dispatches wire packets, and encrypts and transmits
// virtual-network frames toward peers. Its internal design (packet
// codec, cryptographic session state, path selection) is a separate
// specification; this core treats it as opaque.
type Switch interface {
	// OnRemotePacket hands a raw wire packet to the switch for decoding
	// and dispatch (spec.md §4.2). Malformed packets are dropped
	// internally and must not surface as an error here; only allocation
	// failure or a genuinely unexpected fault should return an error.
	//
	// When the packet decodes to a known sender, OnRemotePacket returns
	// that sender's address and recognized=true so the core can record
	// the contact against its topology/peer-liveness bookkeeping
	// (spec.md §4.4); this is the borrowed-reference-free alternative to
	// giving the switch a direct handle on the topology subsystem
	// (spec.md §9 "Subsystem ownership graph").
	OnRemotePacket(remoteAddress string, linkDesperation int, data []byte) (sender identity.Address, recognized bool, err error)

	// OnVirtualNetworkFrame hands a frame from the tap to the switch for
	// encryption and transmission toward the appropriate peer(s)
	// (spec.md §4.3).
	OnVirtualNetworkFrame(nwid uint64, srcMac, dstMac [6]byte, etherType uint16, vlanID uint16, data []byte) error

	// NextTimerDeadline returns the switch's own desired relative
	// interval before it next wants to be ticked (spec.md §4.4 deadline
	// computation).
	NextTimerDeadline() time.Duration
}
