package bridge

import "errors"

// Domain errors for the bridge package.
var (
	// ErrUnknownNode is returned when the node directory has no short name
	// for a packet's sender.
	ErrUnknownNode = errors.New("bridge: unknown node")

	// ErrUnresolvedChannel is returned when a channel index or name is not
	// in the channel registry.
	ErrUnresolvedChannel = errors.New("bridge: unresolved channel")

	// ErrRadioClosed is returned by Run when the radio event stream ends
	// without a disconnect reason.
	ErrRadioClosed = errors.New("bridge: radio event stream closed")
)
