package mqtt

import (
	"fmt"
)

// Subscribe registers a handler for messages on the specified topic at QoS 1.
//
// Topics can include MQTT wildcards; the bridge subscribes once, at startup,
// to Topics.AllChannelCommands(). The handler runs on paho's goroutine,
// concurrently with radio dispatch.
//
// Subscriptions are not restored: a lost session ends the process.
func (c *Client) Subscribe(topic string, handler MessageHandler) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Subscribe(topic, publishQoS, c.wrapHandler(handler))
	if !token.WaitTimeout(subscribeWait) {
		return fmt.Errorf("%w: timeout after %v", ErrSubscribeFailed, subscribeWait)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}

	return nil
}
