// Package coreerr defines the fixed external result taxonomy returned by
// the node's public operations (spec.md §6, §7) and Classify, which maps
// an error wrapping one of the internal sentinels onto it.
package coreerr

import "errors"

// Result is the external result code of a public node operation.
type Result int

const (
	// OK indicates success, including "not applicable" successes such as
	// leave() on a network that was never joined.
	OK Result = iota

	// ErrNetworkNotFound means the registry has no Network for the given
	// nwid. Expected condition; callers should not log it as an error.
	ErrNetworkNotFound

	// ErrPacketInvalid means the switch rejected a wire packet outright
	// (not the common "decoded but dropped" case, which is still OK).
	ErrPacketInvalid

	// ErrInternal is any otherwise-unclassified subsystem failure. The
	// operation was abandoned; deadlines may be stale until the next tick.
	ErrInternal

	// ErrOutOfMemory is an allocation failure in the core or below.
	ErrOutOfMemory

	// ErrDataStoreFailed is fatal to construction only: the embedder's
	// store failed while persisting identity. Never returned from later
	// calls.
	ErrDataStoreFailed
)

func (r Result) String() string {
	switch r {
	case OK:
		return "OK"
	case ErrNetworkNotFound:
		return "ERROR_NETWORK_NOT_FOUND"
	case ErrPacketInvalid:
		return "ERROR_PACKET_INVALID"
	case ErrInternal:
		return "FATAL_ERROR_INTERNAL"
	case ErrOutOfMemory:
		return "FATAL_ERROR_OUT_OF_MEMORY"
	case ErrDataStoreFailed:
		return "FATAL_ERROR_DATA_STORE_FAILED"
	default:
		return "UNKNOWN_RESULT"
	}
}

// Fatal reports whether this result renders the Node unusable (spec.md §6:
// "only results in the FATAL_* family are defined to render the Node
// unusable").
func (r Result) Fatal() bool {
	switch r {
	case ErrInternal, ErrOutOfMemory, ErrDataStoreFailed:
		return true
	default:
		return false
	}
}

// Sentinel errors wrapped by subsystems; Classify maps arbitrary errors
// back onto a Result. The node package's entry points do not call it:
// each maps its own failures to a Result directly.
var (
	ErrNotFound    = errors.New("coreerr: network not found")
	ErrInvalid     = errors.New("coreerr: packet invalid")
	ErrOOM         = errors.New("coreerr: out of memory")
	ErrStoreFailed = errors.New("coreerr: data store failed")
)

// Classify maps an internal error to its external Result. A nil error
// classifies to OK. Anything that doesn't match a known sentinel is
// ErrInternal — the catch-all taxonomy bucket spec.md §7 describes.
func Classify(err error) Result {
	switch {
	case err == nil:
		return OK
	case errors.Is(err, ErrNotFound):
		return ErrNetworkNotFound
	case errors.Is(err, ErrInvalid):
		return ErrPacketInvalid
	case errors.Is(err, ErrOOM):
		return ErrOutOfMemory
	case errors.Is(err, ErrStoreFailed):
		return ErrDataStoreFailed
	default:
		return ErrInternal
	}
}
