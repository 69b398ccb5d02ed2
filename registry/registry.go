// Package registry implements the network registry: the mapping from
// 64-bit network ID to membership state (spec.md §3 "NetworkRegistry",
// "Network", §4.5).
//
// Structurally this mirrors the teacher's friend package (a mutex-guarded
// map keyed by an identifier, holding small per-entry structs with their
// own state and a JSON-friendly snapshot type) generalized from friends
// to virtual networks.
package registry

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zerotau/zerotau/callbacks"
)

// MulticastGroup identifies a multicast subscription within a network.
type MulticastGroup struct {
	MAC [6]byte
	ADI uint32
}

// Config is the external-facing configuration snapshot for a joined
// network (spec.md §4.5 networkConfig). Its exact field set is left open
// by spec.md §9's open question; this is a reasonable minimal shape.
type Config struct {
	NWID          uint64    `json:"nwid"`
	LastUpdated   time.Time `json:"lastUpdated"`
	MulticastSubs int       `json:"multicastSubscriptions"`
}

// Network is a membership object for a single virtual network. Opaque to
// callers outside this package apart from the operations spec.md §4.5
// enumerates.
type Network struct {
	nwid uint64

	mu               sync.Mutex
	multicast        map[MulticastGroup]struct{}
	lastConfigUpdate time.Time
}

func newNetwork(nwid uint64, now time.Time) *Network {
	return &Network{
		nwid:             nwid,
		multicast:        make(map[MulticastGroup]struct{}),
		lastConfigUpdate: now,
	}
}

func (n *Network) subscribe(group MulticastGroup) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.multicast[group] = struct{}{}
}

func (n *Network) unsubscribe(group MulticastGroup) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.multicast, group)
}

func (n *Network) touchConfig(now time.Time) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.lastConfigUpdate = now
}

func (n *Network) needsRefresh(now time.Time, delay time.Duration) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return now.Sub(n.lastConfigUpdate) >= delay
}

func (n *Network) snapshot() *Config {
	n.mu.Lock()
	defer n.mu.Unlock()
	return &Config{
		NWID:          n.nwid,
		LastUpdated:   n.lastConfigUpdate,
		MulticastSubs: len(n.multicast),
	}
}

// Registry is the exclusive owner of every joined Network, guarded by a
// dedicated lock (spec.md §3 invariant, §5 "Registry lock").
type Registry struct {
	log *logrus.Entry
	cb  callbacks.HostCallbacks

	mu       sync.Mutex
	networks map[uint64]*Network
}

// New constructs an empty registry.
func New(log *logrus.FieldLogger, cb callbacks.HostCallbacks) *Registry {
	var entry *logrus.Entry
	if log != nil {
		entry = (*log).WithField("component", "registry")
	} else {
		entry = logrus.NewEntry(logrus.StandardLogger()).WithField("component", "registry")
	}
	return &Registry{
		log:      entry,
		cb:       cb,
		networks: make(map[uint64]*Network),
	}
}

// Join inserts a new Network if absent; idempotent (spec.md §4.5, §8
// invariant). Emits an UP config event for a genuinely new join.
func (r *Registry) Join(nwid uint64, now time.Time) {
	r.mu.Lock()
	_, exists := r.networks[nwid]
	if !exists {
		r.networks[nwid] = newNetwork(nwid, now)
	}
	r.mu.Unlock()

	if !exists {
		r.log.WithField("nwid", nwid).Info("joined network")
		if r.cb != nil {
			r.cb.VirtualNetworkConfig(nwid, callbacks.ConfigUp, nil)
		}
	}
}

// Leave removes a Network if present, invoking its destroy side effects
// through the callbacks (spec.md §4.5). Absent is a no-op.
func (r *Registry) Leave(nwid uint64) {
	r.mu.Lock()
	_, exists := r.networks[nwid]
	if exists {
		delete(r.networks, nwid)
	}
	r.mu.Unlock()

	if exists {
		r.log.WithField("nwid", nwid).Info("left network")
		if r.cb != nil {
			r.cb.VirtualNetworkConfig(nwid, callbacks.ConfigDestroy, nil)
		}
	}
}

// Lookup returns the Network for nwid, or nil if not joined.
func (r *Registry) Lookup(nwid uint64) *Network {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.networks[nwid]
}

// MulticastSubscribe adds (groupMac, adi) to nwid's subscriptions. A
// silent no-op if the network is not joined (spec.md §4.5).
func (r *Registry) MulticastSubscribe(nwid uint64, mac [6]byte, adi uint32) {
	if n := r.Lookup(nwid); n != nil {
		n.subscribe(MulticastGroup{MAC: mac, ADI: adi})
	}
}

// MulticastUnsubscribe is the symmetric counterpart of MulticastSubscribe.
func (r *Registry) MulticastUnsubscribe(nwid uint64, mac [6]byte, adi uint32) {
	if n := r.Lookup(nwid); n != nil {
		n.unsubscribe(MulticastGroup{MAC: mac, ADI: adi})
	}
}

// NetworkConfig returns a fresh snapshot of nwid's configuration, or nil
// if not joined (spec.md §4.5). Callers own the returned pointer; there
// is nothing to release beyond normal garbage collection, so
// node.FreeQueryResult on this value is a no-op by design.
func (r *Registry) NetworkConfig(nwid uint64) *Config {
	if n := r.Lookup(nwid); n != nil {
		return n.snapshot()
	}
	return nil
}

// StaleNetworks returns the nwid of every joined network whose
// configuration has not been refreshed within delay of now, driving the
// autoconf-refresh step of spec.md §4.4's peer-liveness subroutine.
func (r *Registry) StaleNetworks(now time.Time, delay time.Duration) []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var stale []uint64
	for nwid, n := range r.networks {
		if n.needsRefresh(now, delay) {
			stale = append(stale, nwid)
		}
	}
	return stale
}

// TouchConfig marks nwid's configuration as freshly refreshed at now.
// Called once the (external) network-config controller reports success.
func (r *Registry) TouchConfig(nwid uint64, now time.Time) {
	if n := r.Lookup(nwid); n != nil {
		n.touchConfig(now)
	}
}

// Len reports the number of joined networks, used by status/networks
// query snapshots.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.networks)
}

// Snapshot returns a Config for every joined network, used by the
// networks() query (spec.md §4.6).
func (r *Registry) Snapshot() []*Config {
	r.mu.Lock()
	nwids := make([]uint64, 0, len(r.networks))
	for nwid := range r.networks {
		nwids = append(nwids, nwid)
	}
	r.mu.Unlock()

	out := make([]*Config, 0, len(nwids))
	for _, nwid := range nwids {
		if cfg := r.NetworkConfig(nwid); cfg != nil {
			out = append(out, cfg)
		}
	}
	return out
}
