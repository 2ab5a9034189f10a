package radio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"
)

// closeOnce wraps a channel with sync.Once to prevent double-close panics.
type closeOnce struct {
	ch   chan struct{}
	once sync.Once
}

func newCloseOnce() *closeOnce {
	return &closeOnce{ch: make(chan struct{})}
}

func (c *closeOnce) Close() {
	c.once.Do(func() { close(c.ch) })
}

func (c *closeOnce) Done() <-chan struct{} {
	return c.ch
}

// Default timeouts and sizes for the radio link.
const (
	// defaultConnectTimeout bounds transport open plus the config dump.
	defaultConnectTimeout = 30 * time.Second

	// defaultHeartbeatInterval keeps the radio's client session alive.
	// The firmware drops idle stream clients after 15 minutes.
	defaultHeartbeatInterval = 5 * time.Minute

	// eventQueueSize is the buffer between the receive loop and the consumer.
	eventQueueSize = 64
)

// errRebooted ends the receive loop when the radio announces a reboot.
var errRebooted = errors.New("radio rebooted")

// Config holds radio link configuration.
type Config struct {
	// Device is a serial device path such as /dev/ttyUSB0.
	// Takes precedence over Host.
	Device string

	// Host is a TCP host[:port]. Port defaults to 4403.
	Host string

	// ConnectTimeout bounds opening the transport and the config handshake.
	// Default: 30 seconds.
	ConnectTimeout time.Duration

	// HeartbeatInterval is how often a heartbeat is sent to the radio.
	// Default: 5 minutes.
	HeartbeatInterval time.Duration

	// Logger receives link diagnostics, including those logged during
	// the handshake. Optional.
	Logger Logger
}

func (c Config) withDefaults() Config {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = defaultConnectTimeout
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = defaultHeartbeatInterval
	}
	return c
}

// Target describes the configured endpoint for logs.
func (c Config) Target() string {
	if c.Device != "" {
		return c.Device
	}
	return radioAddress(c.Host)
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Stats holds operational statistics.
type Stats struct {
	PacketsRx     uint64
	PacketsTx     uint64
	FramesDropped uint64 // Frames that failed to decode
	NodeCount     int
	LastActivity  time.Time
	Connected     bool
}

// Client is a connection to a Meshtastic radio's stream API.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Events are produced by a single receive goroutine, in arrival order.
type Client struct {
	cfg    Config
	conn   io.ReadWriteCloser
	frames *frameReader
	db     *nodeDB

	writeMu sync.Mutex

	// Handshake state
	configNonce uint32
	configured  *closeOnce
	connected   atomic.Bool

	events chan Event

	// Shutdown coordination
	done      *closeOnce
	loopDone  chan struct{}
	loopErr   error
	closing   atomic.Bool
	closeOnce sync.Once
	wg        sync.WaitGroup

	// Logger (optional)
	logger   Logger
	loggerMu sync.RWMutex

	// Statistics
	packetsRx     atomic.Uint64
	packetsTx     atomic.Uint64
	framesDropped atomic.Uint64
	lastActivity  atomic.Int64
}

// Connect opens the radio link and completes the configuration handshake.
//
// On return the node directory, channel table and modem preset are
// populated and an EventConnected is waiting on Events().
//
// Returns:
//   - *Client: Connected client
//   - error: ErrPermissionDenied for an inaccessible serial device,
//     ErrConnectionFailed for anything else
func Connect(ctx context.Context, cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()

	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	conn, err := openTransport(connectCtx, cfg)
	if err != nil {
		return nil, err
	}

	return start(connectCtx, conn, cfg)
}

// start runs the handshake over an already open stream.
func start(ctx context.Context, conn io.ReadWriteCloser, cfg Config) (*Client, error) {
	c := &Client{
		cfg:         cfg.withDefaults(),
		conn:        conn,
		frames:      newFrameReader(conn),
		db:          newNodeDB(),
		configNonce: newConfigNonce(),
		configured:  newCloseOnce(),
		events:      make(chan Event, eventQueueSize),
		done:        newCloseOnce(),
		loopDone:    make(chan struct{}),
		logger:      cfg.Logger,
	}
	c.lastActivity.Store(time.Now().Unix())

	c.wg.Add(1)
	go c.receiveLoop()

	if err := c.requestConfig(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("%w: request config: %w", ErrConnectionFailed, err)
	}

	select {
	case <-c.configured.Done():
	case <-c.loopDone:
		_ = c.Close()
		return nil, fmt.Errorf("%w: link closed during handshake: %w", ErrConnectionFailed, c.loopErr)
	case <-ctx.Done():
		_ = c.Close()
		return nil, fmt.Errorf("%w: waiting for config: %w", ErrConnectionFailed, ctx.Err())
	}

	c.wg.Add(1)
	go c.heartbeatLoop()

	return c, nil
}

// newConfigNonce picks a want_config_id. Zero is avoided since the
// firmware treats it as "no request".
func newConfigNonce() uint32 {
	for {
		if n := rand.Uint32(); n != 0 {
			return n
		}
	}
}

// requestConfig wakes the radio and asks for its configuration dump.
func (c *Client) requestConfig() error {
	c.writeMu.Lock()
	_, err := c.conn.Write(wakePreamble())
	c.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("wake: %w", err)
	}
	return c.writeToRadio(encodeWantConfig(c.configNonce))
}

// receiveLoop reads frames until the stream fails or Close is called.
// It is the only sender on c.events and closes it on exit.
func (c *Client) receiveLoop() {
	defer c.wg.Done()
	defer close(c.events)
	defer close(c.loopDone)

	for {
		payload, err := c.frames.ReadFrame()
		if err == nil {
			err = c.handleFrame(payload)
		}
		if err == nil {
			continue
		}

		c.loopErr = err
		c.connected.Store(false)

		if c.closing.Load() {
			return
		}

		c.logWarn("radio link lost", "target", c.cfg.Target(), "error", err)
		c.emit(Event{
			Kind: EventDisconnected,
			Err:  fmt.Errorf("%w: %w", ErrConnectionLost, err),
		})
		return
	}
}

// handleFrame applies one FromRadio message. Only a reboot notice is
// returned as an error; undecodable frames are counted and skipped.
func (c *Client) handleFrame(payload []byte) error {
	c.lastActivity.Store(time.Now().Unix())

	msg, err := decodeFromRadio(payload)
	if err != nil {
		c.framesDropped.Add(1)
		c.logDebug("dropping undecodable frame", "bytes", len(payload), "error", err)
		return nil
	}

	switch {
	case msg.packet != nil:
		c.handlePacket(msg.packet)
	case msg.myNodeNum != nil:
		c.db.setMyNodeNum(*msg.myNodeNum)
	case msg.nodeInfo != nil:
		c.db.upsertNode(*msg.nodeInfo)
	case msg.channel != nil:
		c.db.setChannel(*msg.channel)
	case msg.modemPreset != nil:
		c.db.setPreset(*msg.modemPreset)
	case msg.configComplete != nil:
		c.handleConfigComplete(*msg.configComplete)
	case msg.rebooted:
		return errRebooted
	}
	return nil
}

func (c *Client) handleConfigComplete(id uint32) {
	if id != c.configNonce || c.connected.Load() {
		return
	}
	c.connected.Store(true)

	c.logInfo("radio configuration received",
		"target", c.cfg.Target(),
		"node", NodeID(c.db.getMyNodeNum()),
		"nodes", c.db.nodeCount(),
		"preset", c.db.getPreset().String(),
	)

	c.emit(Event{Kind: EventConnected})
	c.configured.Close()
}

func (c *Client) handlePacket(p *Packet) {
	c.packetsRx.Add(1)

	if p.PortNum == PortNodeInfo && p.User != nil {
		c.db.updateUser(p.From, *p.User)
	}

	// Packets seen before the dump completes have no registry to land in.
	if !c.connected.Load() {
		c.logDebug("dropping packet received during handshake", "from", p.FromID, "port", p.PortNum.String())
		return
	}

	c.emit(Event{Kind: EventPacket, Packet: p})
}

// emit queues an event, giving up if the client is closing.
func (c *Client) emit(ev Event) {
	select {
	case c.events <- ev:
	case <-c.done.Done():
	}
}

// heartbeatLoop periodically tells the radio the client is still there.
func (c *Client) heartbeatLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done.Done():
			return
		case <-c.loopDone:
			return
		case <-ticker.C:
			if err := c.writeToRadio(encodeHeartbeat()); err != nil {
				c.logWarn("radio heartbeat failed", "error", err)
			}
		}
	}
}

// writeToRadio frames and writes one ToRadio message.
func (c *Client) writeToRadio(payload []byte) error {
	frame, err := encodeFrame(payload)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if _, err := c.conn.Write(frame); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// Events returns the radio event stream. The channel is closed when the
// client stops, after an EventDisconnected if the link failed on its own.
func (c *Client) Events() <-chan Event {
	return c.events
}

// SendText queues a text message for transmission. The call returns once
// the frame is written to the radio; delivery is not confirmed.
func (c *Client) SendText(msg TextMessage) error {
	if !c.connected.Load() {
		return ErrNotConnected
	}
	if len(msg.Text) > maxTextPayload {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrPayloadTooLarge, len(msg.Text), maxTextPayload)
	}

	if err := c.writeToRadio(encodeTextPacket(rand.Uint32(), msg)); err != nil {
		return fmt.Errorf("send text: %w", err)
	}
	c.packetsTx.Add(1)
	return nil
}

// ShortName looks up a node's short name in the node directory.
func (c *Client) ShortName(nodeID string) (string, bool) {
	return c.db.shortName(nodeID)
}

// Channels returns the local node's channel slots in index order.
func (c *Client) Channels() []ChannelSettings {
	return c.db.channelList()
}

// ChannelRole returns the current role of a channel slot.
func (c *Client) ChannelRole(index int) (Role, bool) {
	return c.db.channelRole(index)
}

// ModemPreset returns the configured LoRa modem preset.
func (c *Client) ModemPreset() ModemPreset {
	return c.db.getPreset()
}

// MyNodeID returns the local node's id.
func (c *Client) MyNodeID() string {
	return NodeID(c.db.getMyNodeNum())
}

// IsConnected reports whether the handshake completed and the link is up.
func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

// Stats returns current operational statistics.
func (c *Client) Stats() Stats {
	return Stats{
		PacketsRx:     c.packetsRx.Load(),
		PacketsTx:     c.packetsTx.Load(),
		FramesDropped: c.framesDropped.Load(),
		NodeCount:     c.db.nodeCount(),
		LastActivity:  time.Unix(c.lastActivity.Load(), 0),
		Connected:     c.connected.Load(),
	}
}

// Close tells the radio the client is leaving and closes the stream.
// Safe to call multiple times.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closing.Store(true)
		if c.connected.Swap(false) {
			if werr := c.writeToRadio(encodeDisconnect()); werr != nil {
				c.logDebug("radio disconnect notice failed", "error", werr)
			}
		}
		c.done.Close()
		err = c.conn.Close()
		c.wg.Wait()
	})
	return err
}

// SetLogger sets the logger for this client.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

func (c *Client) logDebug(msg string, keysAndValues ...any) {
	if l := c.getLogger(); l != nil {
		l.Debug(msg, keysAndValues...)
	}
}

func (c *Client) logInfo(msg string, keysAndValues ...any) {
	if l := c.getLogger(); l != nil {
		l.Info(msg, keysAndValues...)
	}
}

func (c *Client) logWarn(msg string, keysAndValues ...any) {
	if l := c.getLogger(); l != nil {
		l.Warn(msg, keysAndValues...)
	}
}
