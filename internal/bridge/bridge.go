package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/meshtastic2hass/internal/infrastructure/mqtt"
	"github.com/nerrad567/meshtastic2hass/internal/radio"
)

// defaultKeepAliveInterval is how often channel text entities are
// re-announced.
const defaultKeepAliveInterval = 3600 * time.Second

// MQTTClient is the interface for MQTT operations.
// This allows mocking in tests and flexibility in implementation.
type MQTTClient interface {
	// Publish sends a message at QoS 1, waiting briefly for acknowledgment.
	Publish(topic string, payload []byte) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, handler mqtt.MessageHandler) error
}

// Radio is the interface for the mesh radio link.
type Radio interface {
	// Events returns the radio event stream.
	Events() <-chan radio.Event

	// ShortName looks up a node's short name by node id.
	ShortName(nodeID string) (string, bool)

	// Channels returns the local node's channel slots.
	Channels() []radio.ChannelSettings

	// ChannelRole returns the current role of a channel slot.
	ChannelRole(index int) (radio.Role, bool)

	// ModemPreset returns the configured LoRa modem preset.
	ModemPreset() radio.ModemPreset

	// SendText queues a text message for transmission.
	SendText(msg radio.TextMessage) error
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Options holds configuration for creating a bridge.
type Options struct {
	// TopicPrefix is the root of state and command topics, e.g. "msh/2/json".
	TopicPrefix string

	// Nodes is the short-name allow-list. Empty allows every node.
	Nodes []string

	// KeepAliveInterval is how often channel configs are re-announced.
	// Default: 3600 seconds.
	KeepAliveInterval time.Duration

	// MQTTClient is the broker connection.
	MQTTClient MQTTClient

	// Radio is the radio link.
	Radio Radio

	// Logger is optional structured logger.
	Logger Logger
}

// Bridge routes radio packets to Home Assistant and broker commands back
// to the radio.
//
// Thread Safety:
//   - Run must be called once; packet handling happens on its goroutine.
//   - HandleCommand and Fail may be called from any goroutine.
type Bridge struct {
	mqtt      MQTTClient
	radio     Radio
	topics    mqtt.Topics
	discovery Discovery
	filter    NodeFilter
	keepAlive time.Duration

	// registry is nil until the radio reports connected.
	registry atomic.Pointer[ChannelRegistry]

	// fatal carries an asynchronous fatal error into Run.
	fatal chan error

	// Statistics
	packetsHandled atomic.Uint64
	packetsFailed  atomic.Uint64
	publishes      atomic.Uint64
	commandsSent   atomic.Uint64

	// Logger
	logger   Logger
	loggerMu sync.RWMutex
}

// Stats holds bridge counters.
type Stats struct {
	PacketsHandled uint64
	PacketsFailed  uint64
	Publishes      uint64
	CommandsSent   uint64
	Channels       int
}

// New creates a new bridge instance. Call Run to begin operation.
func New(opts Options) (*Bridge, error) {
	if opts.MQTTClient == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	if opts.Radio == nil {
		return nil, fmt.Errorf("radio is required")
	}
	if opts.TopicPrefix == "" {
		return nil, fmt.Errorf("topic prefix is required")
	}

	interval := opts.KeepAliveInterval
	if interval <= 0 {
		interval = defaultKeepAliveInterval
	}

	topics := mqtt.NewTopics(opts.TopicPrefix)

	return &Bridge{
		mqtt:      opts.MQTTClient,
		radio:     opts.Radio,
		topics:    topics,
		discovery: NewDiscovery(topics),
		filter:    NewNodeFilter(opts.Nodes),
		keepAlive: interval,
		fatal:     make(chan error, 1),
		logger:    opts.Logger,
	}, nil
}

// Run subscribes to channel commands and processes radio events until ctx
// is cancelled (returns nil) or a connection is lost (returns the cause).
func (b *Bridge) Run(ctx context.Context) error {
	commandTopic := b.topics.AllChannelCommands()
	if err := b.mqtt.Subscribe(commandTopic, b.HandleCommand); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}
	b.logInfo("subscribed to commands", "topic", commandTopic)

	if names := b.filter.Names(); names != nil {
		b.logInfo("node filter active", "nodes", names)
	}

	// Nil until the registry exists; a nil channel never fires.
	var (
		ticker        *time.Ticker
		keepAliveTick <-chan time.Time
	)
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()

	events := b.radio.Events()

	for {
		select {
		case <-ctx.Done():
			b.logInfo("bridge stopping", "reason", ctx.Err())
			return nil

		case err := <-b.fatal:
			return err

		case ev, ok := <-events:
			if !ok {
				return ErrRadioClosed
			}

			switch ev.Kind {
			case radio.EventConnected:
				if b.onConnected() {
					ticker = time.NewTicker(b.keepAlive)
					keepAliveTick = ticker.C
				}
			case radio.EventDisconnected:
				if ev.Err != nil {
					return ev.Err
				}
				return ErrRadioClosed
			case radio.EventPacket:
				b.handlePacket(ev.Packet)
			}

		case <-keepAliveTick:
			b.announceChannels()
		}
	}
}

// Fail stops Run with err. Used for broker session loss, which is
// reported on the MQTT client's goroutine. Only the first error is kept.
func (b *Bridge) Fail(err error) {
	select {
	case b.fatal <- err:
	default:
	}
}

// onConnected builds the channel registry and makes the first announcement.
// It returns false if the registry already existed.
func (b *Bridge) onConnected() bool {
	if b.registry.Load() != nil {
		b.logDebug("ignoring repeated radio connected event")
		return false
	}

	reg := BuildChannelRegistry(b.radio.Channels(), b.radio.ModemPreset())
	b.registry.Store(reg)

	for _, ch := range reg.Channels() {
		b.logInfo("channel registered",
			"index", ch.Index,
			"name", ch.Name,
			"key", ch.Key,
			"role", ch.Role.String(),
		)
	}
	for _, ch := range reg.Skipped() {
		b.logWarn("channel not registered: name collides or is empty after sanitizing",
			"index", ch.Index,
			"name", ch.Name,
		)
	}

	b.logInfo("radio connected", "channels", reg.Len(), "keepalive", b.keepAlive)

	b.announceChannels()
	return true
}

// Registry returns the channel registry, or nil before the radio connects.
func (b *Bridge) Registry() *ChannelRegistry {
	return b.registry.Load()
}

// publish sends one message. A missing broker acknowledgment is logged and
// treated as sent; any other failure is returned.
func (b *Bridge) publish(msg Message) error {
	err := b.mqtt.Publish(msg.Topic, msg.Payload)
	switch {
	case err == nil:
		b.publishes.Add(1)
		return nil
	case errors.Is(err, mqtt.ErrPublishTimeout):
		b.publishes.Add(1)
		b.logWarn("publish not acknowledged", "topic", msg.Topic)
		return nil
	default:
		return fmt.Errorf("publish %s: %w", msg.Topic, err)
	}
}

// Stats returns current bridge counters.
func (b *Bridge) Stats() Stats {
	channels := 0
	if reg := b.registry.Load(); reg != nil {
		channels = reg.Len()
	}
	return Stats{
		PacketsHandled: b.packetsHandled.Load(),
		PacketsFailed:  b.packetsFailed.Load(),
		Publishes:      b.publishes.Load(),
		CommandsSent:   b.commandsSent.Load(),
		Channels:       channels,
	}
}

// SetLogger sets the logger for the bridge.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()
}

func (b *Bridge) getLogger() Logger {
	b.loggerMu.RLock()
	defer b.loggerMu.RUnlock()
	return b.logger
}

// logInfo logs an info message if logger is set.
func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

// logWarn logs a warning if logger is set.
func (b *Bridge) logWarn(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}

// logError logs an error message if logger is set.
func (b *Bridge) logError(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Error(msg, keysAndValues...)
	}
}

// logDebug logs a debug message if logger is set.
func (b *Bridge) logDebug(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}
