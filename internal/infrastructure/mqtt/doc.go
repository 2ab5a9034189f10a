// Package mqtt provides MQTT broker connectivity for meshtastic2hass.
//
// This package manages:
//   - A single broker session (no auto-reconnect)
//   - Publishing at QoS 1 with a bounded acknowledgment wait
//   - The channel command subscription
//   - Home Assistant discovery and state topic construction
//
// # Session Policy
//
// The bridge treats the broker session as all-or-nothing. A failed connect
// returns ErrConnectionFailed and an unexpected disconnect is reported once
// through the callback set with SetOnConnectionLost, wrapped in
// ErrConnectionLost. The caller is expected to stop; nothing here retries.
//
// # Publish Backpressure
//
// Publish blocks for at most one second waiting for the broker's PUBACK.
// That wait caps radio dispatch throughput when the broker is slow. A
// missing acknowledgment is reported as ErrPublishTimeout and is not retried.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topics := mqtt.NewTopics(cfg.MQTT.TopicPrefix)
//	err = client.Subscribe(topics.AllChannelCommands(),
//	    func(topic string, payload []byte) error {
//	        return router.HandleCommand(topic, payload)
//	    })
//
//	err = client.Publish(topics.TelemetryState("1234abcd", "device"), payload)
package mqtt
