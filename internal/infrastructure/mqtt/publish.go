package mqtt

import (
	"fmt"
)

// Maximum payload size for MQTT messages (1MB).
const maxPayloadSize = 1 << 20

// Publish sends a message at QoS 1 without the retain flag.
//
// It blocks until the broker acknowledges the message or one second
// passes. A missing acknowledgment returns ErrPublishTimeout; the message
// may still be delivered later by paho and is never re-sent from here.
//
// Example:
//
//	topic := mqtt.NewTopics("msh/2/json").ChannelState("longfast")
//	err := client.Publish(topic, []byte(`{"text":"AB1: hello"}`))
func (c *Client) Publish(topic string, payload []byte) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, publishQoS, false, payload)
	if !token.WaitTimeout(publishWait) {
		return fmt.Errorf("%w: %s after %v", ErrPublishTimeout, topic, publishWait)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}
