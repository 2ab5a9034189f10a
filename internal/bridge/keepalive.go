package bridge

import "fmt"

// announceChannels publishes the text entity config of every registered
// channel. A failure on one channel is logged and the rest still go out.
// It returns the number of channels that failed.
func (b *Bridge) announceChannels() int {
	reg := b.registry.Load()
	if reg == nil {
		return 0
	}

	failed := 0
	for _, ch := range reg.Channels() {
		if err := b.announceChannel(ch); err != nil {
			failed++
			b.logError("channel keep-alive failed", "channel", ch.Key, "error", err)
		}
	}

	b.logDebug("channel keep-alive sent", "channels", reg.Len(), "failed", failed)
	return failed
}

func (b *Bridge) announceChannel(ch Channel) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	msg, err := b.discovery.Text(ch)
	if err != nil {
		return err
	}
	return b.publish(msg)
}
