// Package bridge translates between a Meshtastic radio and Home Assistant
// over MQTT.
//
// Radio packets are classified and turned into Home Assistant discovery
// configs and state messages:
//
//	TELEMETRY_APP        → 17 sensor configs + {prefix}/{node}/{group}
//	POSITION_APP         → device_tracker config + {prefix}/{node}/attributes
//	TEXT_MESSAGE_APP     → channel text config + {prefix}/{channel}/state
//	DETECTION_SENSOR_APP → handled as a text message
//
// In the other direction, a message published to {prefix}/{channel}/command
// is broadcast as text on that radio channel, provided the channel is not
// disabled on the radio.
//
// # Event Loop
//
// Run owns a single goroutine that consumes radio events and keep-alive
// ticks. Packet handlers run to completion on that goroutine; each publish
// may block for up to one second waiting for the broker. Broker commands
// arrive on the MQTT client's goroutine and only read the channel registry,
// which is built once, on the radio's connected event, and published as an
// immutable snapshot.
//
// # Failure Policy
//
// A bad packet or an unknown node is logged and dropped. Losing either the
// radio or the broker ends Run with an error; nothing is retried.
package bridge
