// Package netconf defines the interface to the network-configuration
// controller protocol: an external collaborator, out of scope for this
// spec (spec.md §1). The core only ever asks it to refresh a stale
// network's configuration (spec.md §4.4).
package netconf

// Controller requests fresh configuration for a joined network from the
// network-configuration controller protocol. Its internal design (wire
// format, controller discovery, trust) is a separate specification.
type Controller interface {
	// RequestRefresh asks the controller for fresh configuration for
	// nwid. The refresh itself completes asynchronously (its result
	// arrives as a future wire packet processed by switchcore.Switch);
	// this call only needs to enqueue or send the request.
	RequestRefresh(nwid uint64) error
}
