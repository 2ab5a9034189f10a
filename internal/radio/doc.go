// Package radio implements the Meshtastic stream API client used by the
// bridge to talk to a mesh radio over a serial port or TCP.
//
// The stream protocol frames each protobuf message with a four byte header:
//
//	0x94 0xC3 <len hi> <len lo> <payload...>
//
// Payloads longer than 512 bytes are treated as corruption and the reader
// resynchronises on the next magic pair. Bytes outside frames are the
// device's debug console output and are discarded.
//
// # Connection Lifecycle
//
// Connect opens the transport, sends the wake preamble and a want_config
// request, then collects MyNodeInfo, NodeInfo, Channel and Config messages
// until the radio echoes the request nonce in config_complete_id. At that
// point an EventConnected is queued on Events() and Connect returns.
//
// A read failure or a reboot notice after that queues an EventDisconnected
// carrying ErrConnectionLost and closes the Events channel. There is no
// reconnection; the owner is expected to shut down.
//
// # Decoding
//
// Messages are decoded directly with protowire using the field numbers
// from the Meshtastic protobuf definitions. Only the fields the bridge uses
// are interpreted; everything else is skipped.
package radio
