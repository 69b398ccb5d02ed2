// Package node implements the Node aggregate and its public operation
// surface: the root object of the node control plane (spec.md §2, §3,
// §4, §6).
//
// Construction, identity bootstrap, the network registry, and the
// background task engine are composed here exactly as spec.md §4.1
// describes; this package holds no networking or cryptographic logic of
// its own — that is delegated to switchcore.Switch, multicast.Propagator,
// and netconf.Controller, all supplied by the embedder at construction,
// following the teacher's pattern in toxcore.go of assembling named
// subsystems (dht.RoutingTable, dht.BootstrapManager, transport.Transport)
// into one root struct.
package node

import (
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zerotau/zerotau/background"
	"github.com/zerotau/zerotau/callbacks"
	"github.com/zerotau/zerotau/config"
	"github.com/zerotau/zerotau/coreerr"
	"github.com/zerotau/zerotau/identity"
	"github.com/zerotau/zerotau/multicast"
	"github.com/zerotau/zerotau/netconf"
	"github.com/zerotau/zerotau/registry"
	"github.com/zerotau/zerotau/switchcore"
	"github.com/zerotau/zerotau/topology"
)

// VersionTriple is a (major, minor, revision) version, compared
// lexicographically by PostNewerVersionIfNewer (spec.md §4.6).
//
// Kept as three fields rather than a packed integer, matching the
// original Node.cpp's _newestVersionSeen[3] layout (SPEC_FULL.md §5).
type VersionTriple struct {
	Major, Minor, Revision uint16
}

// Less reports whether v strictly precedes o in lexicographic order.
func (v VersionTriple) Less(o VersionTriple) bool {
	if v.Major != o.Major {
		return v.Major < o.Major
	}
	if v.Minor != o.Minor {
		return v.Minor < o.Minor
	}
	return v.Revision < o.Revision
}

// Environment is the non-owning back-reference a Switch implementation
// can use to report facts back into sibling subsystems it has no direct
// handle on, following spec.md §9's "shared environment record" design
// note: subsystems never hold an owning reference to the Node or to each
// other, only a borrowed accessor whose lifetime is contained by the
// Node.
type Environment interface {
	// TouchNetworkConfig marks nwid's configuration as freshly refreshed
	// at now. Called by a Switch implementation once it has processed an
	// incoming network-configuration wire packet for nwid.
	TouchNetworkConfig(nwid uint64, now time.Time)
}

// SwitchFactory builds the Switch collaborator given a borrowed
// Environment handle, resolving the construction-order problem spec.md
// §9 describes (the switch is built before the Node's own subsystems are
// all wired, but only needs to call back into them later, at runtime).
type SwitchFactory func(Environment) switchcore.Switch

// Deps bundles the external collaborators composed opaquely by the
// Node (spec.md §1's out-of-scope list).
type Deps struct {
	Switch    SwitchFactory
	Multicast multicast.Propagator
	Netconf   netconf.Controller
}

// Node is the root aggregate described by spec.md §3.
type Node struct {
	log *logrus.Entry
	cb  callbacks.HostCallbacks

	identity *identity.Identity
	topo     *topology.Topology
	registry *registry.Registry
	engine   *background.Engine
	sw       switchcore.Switch

	// now is advanced to the caller-supplied time at the top of every
	// public entry point (spec.md §5 "Ordering guarantees").
	mu  sync.Mutex
	now time.Time

	versionMu      sync.Mutex
	highestVersion VersionTriple
}

// New constructs a Node (spec.md §4.1). On success the Node holds a
// valid identity and has emitted a StatusUp event. Construction fails
// with an error wrapping coreerr.ErrStoreFailed if identity persistence
// fails, or coreerr.ErrOOM if key generation fails; coreerr.Classify maps
// these to coreerr.ErrDataStoreFailed and coreerr.ErrOutOfMemory.
func New(now time.Time, cb callbacks.HostCallbacks, deps Deps, opts *config.Options) (*Node, error) {
	if opts == nil {
		opts = config.NewOptions()
	}
	log := logrus.NewEntry(logrus.StandardLogger()).WithField("component", "node")

	id, err := identity.Bootstrap(cb)
	if err != nil {
		return nil, err
	}

	// Subsystems are instantiated in a fixed order (spec.md §4.1 step 2).
	// None of topology.New/registry.New/background.New can themselves
	// fail in this implementation (they do no I/O), so there is nothing
	// to tear down on the way up — but the ordering itself is preserved
	// so a future subsystem with a fallible constructor slots in here
	// without reordering its neighbors.
	tuning := opts.Resolved()

	n := &Node{
		log:      log,
		cb:       cb,
		identity: id,
		now:      now,
	}

	if id.Address.IsReserved() {
		n.log.Warn("loaded identity has a reserved address; flagging collision")
		cb.StatusCallback(callbacks.StatusFatalErrorIdentityCollision)
	}

	n.topo = topology.New(nil, peerExpiryFor(tuning))
	n.registry = registry.New(nil, cb)
	if deps.Switch != nil {
		n.sw = deps.Switch(n)
	}
	n.engine = background.New(nil, tuning, background.Deps{
		Topology:  n.topo,
		Registry:  n.registry,
		Switch:    n.sw,
		Multicast: deps.Multicast,
		Netconf:   deps.Netconf,
		Callbacks: cb,
	}, now)

	dict := topology.Resolve(cb, opts.OverrideRootTopology)
	n.topo.Apply(dict)

	cb.StatusCallback(callbacks.StatusUp)
	n.log.Info("node up")

	return n, nil
}

// peerExpiryFor derives the non-supernode peer liveness window from the
// tuning's housekeeping period: a peer silent for a full housekeeping
// period is no longer considered alive.
func peerExpiryFor(t config.Tuning) time.Duration {
	return t.HousekeepingPeriod
}

// advanceClock advances n.now to now, clamping against moving backwards
// (SPEC_FULL.md §5's clock-monotonicity guard, supplementing spec.md §5's
// caller-supplied-non-decreasing-now contract with a defensive clamp).
func (n *Node) advanceClock(now time.Time) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if now.After(n.now) {
		n.now = now
	}
}

// ProcessWirePacket implements spec.md §4.2.
func (n *Node) ProcessWirePacket(now time.Time, remoteAddress string, linkDesperation int, data []byte, nextDeadline *time.Time) coreerr.Result {
	n.advanceClock(now)

	if nextDeadline != nil && !now.Before(*nextDeadline) {
		if res := n.ProcessBackgroundTasks(now, nextDeadline); res != coreerr.OK {
			return res
		}
	}

	if n.sw == nil {
		return coreerr.OK
	}
	sender, recognized, err := n.sw.OnRemotePacket(remoteAddress, linkDesperation, data)
	if err != nil {
		return classifyWirePacketError(err)
	}
	if recognized {
		n.topo.RecordReceive(sender, remoteAddress, now)
	}
	return coreerr.OK
}

// classifyWirePacketError maps an OnRemotePacket failure onto the wire-
// ingress result taxonomy (spec.md §4.2): out-of-memory stays
// out-of-memory, but every other unexpected failure surfaces as
// packet-invalid rather than the generic internal-error bucket
// coreerr.Classify's default maps to, matching the original
// ZT1_Node_processWirePacket catch-all.
func classifyWirePacketError(err error) coreerr.Result {
	if errors.Is(err, coreerr.ErrOOM) {
		return coreerr.ErrOutOfMemory
	}
	return coreerr.ErrPacketInvalid
}

// ProcessVirtualNetworkFrame implements spec.md §4.3.
func (n *Node) ProcessVirtualNetworkFrame(now time.Time, nwid uint64, srcMac, dstMac [6]byte, etherType uint16, vlanID uint16, data []byte, nextDeadline *time.Time) coreerr.Result {
	n.advanceClock(now)

	if nextDeadline != nil && !now.Before(*nextDeadline) {
		if res := n.ProcessBackgroundTasks(now, nextDeadline); res != coreerr.OK {
			return res
		}
	}

	if n.registry.Lookup(nwid) == nil {
		return coreerr.ErrNetworkNotFound
	}

	if n.sw == nil {
		return coreerr.OK
	}
	if err := n.sw.OnVirtualNetworkFrame(nwid, srcMac, dstMac, etherType, vlanID, data); err != nil {
		return coreerr.ErrInternal
	}
	return coreerr.OK
}

// ProcessBackgroundTasks implements spec.md §4.4.
func (n *Node) ProcessBackgroundTasks(now time.Time, nextDeadline *time.Time) coreerr.Result {
	n.advanceClock(now)

	deadline, err := n.engine.Tick(now)
	if err != nil {
		return coreerr.ErrInternal
	}
	if nextDeadline != nil {
		*nextDeadline = deadline
	}
	return coreerr.OK
}

// Join implements spec.md §4.5.
func (n *Node) Join(nwid uint64) coreerr.Result {
	n.mu.Lock()
	now := n.now
	n.mu.Unlock()
	n.registry.Join(nwid, now)
	return coreerr.OK
}

// Leave implements spec.md §4.5.
func (n *Node) Leave(nwid uint64) coreerr.Result {
	n.registry.Leave(nwid)
	return coreerr.OK
}

// MulticastSubscribe implements spec.md §4.5.
func (n *Node) MulticastSubscribe(nwid uint64, groupMAC [6]byte, adi uint32) coreerr.Result {
	n.registry.MulticastSubscribe(nwid, groupMAC, adi)
	return coreerr.OK
}

// MulticastUnsubscribe implements spec.md §4.5.
func (n *Node) MulticastUnsubscribe(nwid uint64, groupMAC [6]byte, adi uint32) coreerr.Result {
	n.registry.MulticastUnsubscribe(nwid, groupMAC, adi)
	return coreerr.OK
}

// NetworkConfig implements spec.md §4.5. The returned snapshot must be
// released through FreeQueryResult.
func (n *Node) NetworkConfig(nwid uint64) *registry.Config {
	return n.registry.NetworkConfig(nwid)
}

// StatusSnapshot is the opaque status() query result (spec.md §4.6,
// §9's open question on exact field sets).
type StatusSnapshot struct {
	Address     string
	Now         time.Time
	Desperation int64
	NetworkCount int
}

// Status implements spec.md §4.6.
func (n *Node) Status() *StatusSnapshot {
	n.mu.Lock()
	now := n.now
	n.mu.Unlock()
	return &StatusSnapshot{
		Address:      n.identity.Address.String(),
		Now:          now,
		Desperation:  n.engine.Desperation(),
		NetworkCount: n.registry.Len(),
	}
}

// PeersSnapshot is the opaque peers() query result.
type PeersSnapshot struct {
	Peers []topology.PeerSnapshot
}

// Peers implements spec.md §4.6.
func (n *Node) Peers() *PeersSnapshot {
	return &PeersSnapshot{Peers: n.topo.Peers()}
}

// NetworksSnapshot is the opaque networks() query result.
type NetworksSnapshot struct {
	Networks []*registry.Config
}

// Networks implements spec.md §4.6.
func (n *Node) Networks() *NetworksSnapshot {
	return &NetworksSnapshot{Networks: n.registry.Snapshot()}
}

// FreeQueryResult releases a snapshot produced by Status, Peers,
// Networks, or NetworkConfig. nil is safe; a value already freed is a
// caller bug, not something this implementation needs to detect (spec.md
// §4.6). Go's garbage collector reclaims the snapshot once no references
// remain, so this is a documented no-op rather than a real release path —
// kept as a named entry point so callers migrating from a manual-memory
// host language have a single, spec-compliant release call.
func FreeQueryResult(interface{}) {}

// PostNewerVersionIfNewer implements spec.md §4.6's version gossip: if
// the triple strictly exceeds the stored highest-seen triple under
// lexicographic order, it is stored and a SAW_MORE_RECENT_VERSION event
// is emitted. Returns whether the event fired.
func (n *Node) PostNewerVersionIfNewer(v VersionTriple) bool {
	n.versionMu.Lock()
	defer n.versionMu.Unlock()
	if !n.highestVersion.Less(v) {
		return false
	}
	n.highestVersion = v
	n.cb.StatusCallback(callbacks.StatusSawMoreRecentVersion)
	return true
}

// Identity returns the node's public address, for embedders that need it
// without going through the opaque status snapshot.
func (n *Node) Identity() identity.Address {
	return n.identity.Address
}

// TouchNetworkConfig implements Environment.
func (n *Node) TouchNetworkConfig(nwid uint64, now time.Time) {
	n.registry.TouchConfig(nwid, now)
}
