package bridge

import (
	"fmt"

	"github.com/nerrad567/meshtastic2hass/internal/radio"
)

// HandleCommand forwards a broker message on {prefix}/{channel}/command to
// the radio as broadcast text on that channel.
//
// Messages for unknown or disabled channels are dropped without error.
// The send is fire-and-forget: no acknowledgment or response is requested.
// It runs on the MQTT client's goroutine.
func (b *Bridge) HandleCommand(topic string, payload []byte) error {
	name, ok := b.topics.ChannelFromCommand(topic)
	if !ok {
		b.logDebug("ignoring message outside command topics", "topic", topic)
		return nil
	}

	reg := b.registry.Load()
	if reg == nil {
		b.logDebug("command before radio connected", "topic", topic)
		return nil
	}

	index, ok := reg.ResolveIndex(name)
	if !ok {
		b.logDebug("command for unknown channel", "channel", name)
		return nil
	}

	role, ok := b.radio.ChannelRole(index)
	if !ok || role == radio.RoleDisabled {
		b.logDebug("command for disabled channel", "channel", name, "index", index)
		return nil
	}

	if len(payload) == 0 {
		b.logDebug("ignoring empty command", "channel", name)
		return nil
	}

	err := b.radio.SendText(radio.TextMessage{
		Text:         string(payload),
		Destination:  radio.BroadcastAddr,
		WantAck:      false,
		WantResponse: false,
		Channel:      index,
	})
	if err != nil {
		return fmt.Errorf("send to channel %s: %w", name, err)
	}

	b.commandsSent.Add(1)
	b.logDebug("command sent to radio", "channel", name, "index", index, "bytes", len(payload))
	return nil
}
