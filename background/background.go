// Package background implements the time-driven background task engine
// (spec.md §4.4): peer liveness pinging, network configuration refresh,
// housekeeping eviction, desperation escalation, and next-deadline
// computation.
//
// Structurally this generalizes the teacher's dht.Maintainer
// (dht/maintenance.go) — a config-driven periodic-task runner holding a
// routing table, bootstrapper, and transport — but call-driven rather
// than goroutine-driven: spec.md's "no thread creation" non-goal means
// there is no Start()/Stop() spawning background goroutines, only a Tick
// the embedder calls on its own schedule.
package background

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/zerotau/zerotau/callbacks"
	"github.com/zerotau/zerotau/config"
	"github.com/zerotau/zerotau/multicast"
	"github.com/zerotau/zerotau/netconf"
	"github.com/zerotau/zerotau/registry"
	"github.com/zerotau/zerotau/switchcore"
	"github.com/zerotau/zerotau/topology"
)

// pingPayload is the minimal keepalive body sent to a peer; the switch
// subsystem (out of scope here) owns real ping/keepalive wire framing —
// this core only needs something non-empty to hand to WirePacketSend.
var pingPayload = []byte{0x01}

// Engine owns the two periodic subroutines and the desperation state
// spec.md §3 attributes to the Node: start-of-activity, last-ping-check,
// last-housekeeping-run timestamps and the current desperation level.
type Engine struct {
	log    *logrus.Entry
	tuning config.Tuning

	topo     *topology.Topology
	registry *registry.Registry
	sw       switchcore.Switch
	mc       multicast.Propagator
	nc       netconf.Controller
	cb       callbacks.HostCallbacks

	// mu is the dedicated background lock (spec.md §5): held for the
	// entire duration of Tick, serializing it against itself.
	mu sync.Mutex

	startTimeAfterInactivity time.Time
	lastPingCheck            time.Time
	lastHousekeepingRun      time.Time
	desperation              int64
}

// Deps bundles the collaborators the engine needs, all owned elsewhere
// by the Node.
type Deps struct {
	Topology *topology.Topology
	Registry *registry.Registry
	Switch   switchcore.Switch
	Multicast multicast.Propagator
	Netconf  netconf.Controller
	Callbacks callbacks.HostCallbacks
}

// New constructs an Engine whose start-of-activity baseline is now.
func New(log *logrus.FieldLogger, tuning config.Tuning, deps Deps, now time.Time) *Engine {
	var entry *logrus.Entry
	if log != nil {
		entry = (*log).WithField("component", "background")
	} else {
		entry = logrus.NewEntry(logrus.StandardLogger()).WithField("component", "background")
	}
	return &Engine{
		log:                      entry,
		tuning:                   tuning,
		topo:                     deps.Topology,
		registry:                deps.Registry,
		sw:                       deps.Switch,
		mc:                       deps.Multicast,
		nc:                       deps.Netconf,
		cb:                       deps.Callbacks,
		startTimeAfterInactivity: now,
	}
}

// Desperation returns the current desperation level.
func (e *Engine) Desperation() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.desperation
}

// Tick runs one background-task iteration: the peer-liveness subroutine
// if PingCheckInterval has elapsed, the housekeeping subroutine if
// HousekeepingPeriod has elapsed, and always the deadline computation.
// Each subroutine is isolated; the first failure aborts the remainder of
// the tick (spec.md §4.4 "Failure policy").
func (e *Engine) Tick(now time.Time) (time.Time, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	trace := e.log.WithField("tick_id", uuid.New().String())
	trace.Debug("background tick starting")

	if now.Sub(e.lastPingCheck) >= e.tuning.PingCheckInterval {
		e.lastPingCheck = now
		if err := e.pingPhase(now); err != nil {
			trace.WithError(err).Warn("ping phase failed")
			return time.Time{}, err
		}
	}

	if now.Sub(e.lastHousekeepingRun) >= e.tuning.HousekeepingPeriod {
		e.lastHousekeepingRun = now
		if err := e.housekeepingPhase(now); err != nil {
			trace.WithError(err).Warn("housekeeping phase failed")
			return time.Time{}, err
		}
	}

	deadline := e.computeDeadline(now)
	trace.WithField("desperation", e.desperation).Debug("background tick complete")
	return deadline, nil
}

// pingPhase implements spec.md §4.4's "Peer liveness" subroutine.
func (e *Engine) pingPhase(now time.Time) error {
	peers := e.topo.Peers()

	var maxSupernodeLastReceive time.Time
	for _, p := range peers {
		switch {
		case p.IsSupernode:
			e.sendPing(p)
			if p.LastReceive.After(maxSupernodeLastReceive) {
				maxSupernodeLastReceive = p.LastReceive
			}
		case e.topo.Alive(p.Endpoint, now):
			e.sendPing(p)
		}
	}

	baseline := e.startTimeAfterInactivity
	if maxSupernodeLastReceive.After(baseline) {
		baseline = maxSupernodeLastReceive
	}

	gap := now.Sub(baseline)
	window := e.tuning.PingCheckInterval * time.Duration(e.tuning.DesperationIncrement)
	var level int64
	if window > 0 && gap > 0 {
		level = int64(gap / window)
	}
	if level < 0 {
		level = 0
	}
	e.desperation = level

	if maxSupernodeLastReceive.IsZero() && now.Sub(e.startTimeAfterInactivity) > e.tuning.InactivityReset() {
		e.startTimeAfterInactivity = now
		e.log.Debug("no supernode contact for too long, resetting desperation baseline")
	}

	stale := e.registry.StaleNetworks(now, e.tuning.NetworkAutoconfDelay)

	for _, nwid := range stale {
		if e.nc == nil {
			continue
		}
		if err := e.nc.RequestRefresh(nwid); err != nil {
			e.log.WithError(err).WithField("nwid", nwid).Warn("network config refresh request failed")
		}
	}

	return nil
}

func (e *Engine) sendPing(p topology.PeerSnapshot) {
	if e.cb == nil {
		return
	}
	e.cb.WirePacketSend(p.Endpoint, int(e.desperation), pingPayload)
}

// housekeepingPhase implements spec.md §4.4's "Housekeeping" subroutine.
func (e *Engine) housekeepingPhase(now time.Time) error {
	e.topo.CleanExpired(now)
	if e.mc != nil {
		if err := e.mc.CleanExpired(); err != nil {
			return err
		}
	}
	return nil
}

// computeDeadline implements spec.md §4.4's deadline computation: the
// switch's own desired interval, clamped to
// [CoreTimerGranularity, PingCheckInterval].
func (e *Engine) computeDeadline(now time.Time) time.Time {
	var interval time.Duration
	if e.sw != nil {
		interval = e.sw.NextTimerDeadline()
	}
	if interval < e.tuning.CoreTimerGranularity {
		interval = e.tuning.CoreTimerGranularity
	}
	if interval > e.tuning.PingCheckInterval {
		interval = e.tuning.PingCheckInterval
	}
	return now.Add(interval)
}
