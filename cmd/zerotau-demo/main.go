// Command zerotau-demo is a minimal embedder: it implements
// callbacks.HostCallbacks over the local filesystem and a no-op
// switchcore.Switch, then drives a Node through repeated
// ProcessBackgroundTasks calls on its own schedule, exactly as spec.md §1
// expects an embedder to do.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zerotau/zerotau/callbacks"
	"github.com/zerotau/zerotau/config"
	"github.com/zerotau/zerotau/coreerr"
	"github.com/zerotau/zerotau/identity"
	"github.com/zerotau/zerotau/node"
	"github.com/zerotau/zerotau/switchcore"
)

// fileStore is the simplest possible HostCallbacks: one file per stored
// object under a data directory, with no transport and no virtual
// network frame delivery.
type fileStore struct {
	dir string
	log *logrus.Entry
}

func (f *fileStore) path(name string) string {
	return filepath.Join(f.dir, name)
}

func (f *fileStore) DataStoreGet(name string, buf []byte, readOffset int64) (int, int64, error) {
	data, err := os.ReadFile(f.path(name))
	if err != nil {
		return 0, 0, nil
	}
	total := int64(len(data))
	if readOffset >= total {
		return 0, total, nil
	}
	n := copy(buf, data[readOffset:])
	return n, total, nil
}

func (f *fileStore) DataStorePut(name string, data []byte, secure bool) bool {
	mode := os.FileMode(0o644)
	if secure {
		mode = 0o600
	}
	if err := os.WriteFile(f.path(name), data, mode); err != nil {
		f.log.WithError(err).WithField("name", name).Error("data store put failed")
		return false
	}
	return true
}

func (f *fileStore) WirePacketSend(remoteAddress string, linkDesperation int, data []byte) {
	f.log.WithFields(logrus.Fields{
		"remote":      remoteAddress,
		"desperation": linkDesperation,
		"bytes":       len(data),
	}).Debug("wire packet send (discarded, no transport wired)")
}

func (f *fileStore) VirtualNetworkFrame(nwid uint64, srcMac, dstMac [6]byte, etherType uint16, vlanID uint16, data []byte) {
	f.log.WithField("nwid", nwid).Debug("virtual network frame delivered (discarded, no tap wired)")
}

func (f *fileStore) VirtualNetworkConfig(nwid uint64, op callbacks.ConfigOp, cfg interface{}) {
	f.log.WithFields(logrus.Fields{"nwid": nwid, "op": op}).Info("network config event")
}

func (f *fileStore) StatusCallback(event callbacks.StatusEvent) {
	f.log.WithField("event", event).Info("status event")
	if event == callbacks.StatusFatalErrorIdentityCollision {
		f.log.Fatal("identity collision reported by core; refusing to continue")
	}
}

// noopSwitch never recognizes a sender and requests the default interval;
// a real embedder supplies the packet codec/crypto switch described in a
// separate specification (spec.md §1).
type noopSwitch struct{}

func (noopSwitch) OnRemotePacket(string, int, []byte) (identity.Address, bool, error) {
	return identity.Address{}, false, nil
}

func (noopSwitch) OnVirtualNetworkFrame(uint64, [6]byte, [6]byte, uint16, uint16, []byte) error {
	return nil
}

func (noopSwitch) NextTimerDeadline() time.Duration { return 0 }

func main() {
	dataDir := flag.String("data-dir", "./zerotau-data", "directory for persisted identity and root topology")
	join := flag.Uint64("join", 0, "network ID to join at startup (0 to skip)")
	ticks := flag.Int("ticks", 5, "number of background ticks to run before exiting")
	flag.Parse()

	log := logrus.NewEntry(logrus.StandardLogger())
	if err := os.MkdirAll(*dataDir, 0o700); err != nil {
		log.WithError(err).Fatal("failed to create data directory")
	}

	cb := &fileStore{dir: *dataDir, log: log}

	n, err := node.New(time.Now(), cb, node.Deps{
		Switch: func(node.Environment) switchcore.Switch { return noopSwitch{} },
	}, config.NewOptions())
	if err != nil {
		log.WithError(err).Fatal("node construction failed")
	}

	fmt.Printf("node address: %s\n", n.Identity().String())

	if *join != 0 {
		n.Join(*join)
		fmt.Printf("joined network %x\n", *join)
	}

	var deadline time.Time
	now := time.Now()
	for i := 0; i < *ticks; i++ {
		res := n.ProcessBackgroundTasks(now, &deadline)
		if res != coreerr.OK {
			log.WithField("result", res.String()).Error("background tick failed")
			if res.Fatal() {
				os.Exit(1)
			}
		}
		status := n.Status()
		fmt.Printf("tick %d: desperation=%d networks=%d next-deadline-in=%s\n",
			i, status.Desperation, status.NetworkCount, deadline.Sub(now))
		now = deadline
	}
}
