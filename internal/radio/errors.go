package radio

import "errors"

// Domain errors for the radio package.
var (
	// ErrConnectionFailed is returned when the transport cannot be opened
	// or the configuration handshake does not complete.
	ErrConnectionFailed = errors.New("radio: connection failed")

	// ErrPermissionDenied is returned when the serial device exists but the
	// process may not open it.
	ErrPermissionDenied = errors.New("radio: permission denied")

	// ErrConnectionLost is carried by EventDisconnected when the link drops.
	ErrConnectionLost = errors.New("radio: connection lost")

	// ErrNotConnected is returned when sending on a closed client.
	ErrNotConnected = errors.New("radio: not connected")

	// ErrInvalidFrame is returned when a frame header or payload is malformed.
	ErrInvalidFrame = errors.New("radio: invalid frame")

	// ErrDecodingFailed is returned when a protobuf payload cannot be parsed.
	ErrDecodingFailed = errors.New("radio: decoding failed")

	// ErrPayloadTooLarge is returned when a text message exceeds the
	// radio's data payload limit.
	ErrPayloadTooLarge = errors.New("radio: payload too large")
)
