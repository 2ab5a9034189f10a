package bridge

import (
	"errors"
	"fmt"

	"github.com/nerrad567/meshtastic2hass/internal/radio"
)

// handlePacket is the supervisor around dispatch: it counts outcomes, logs
// handler errors and recovers panics so one packet cannot stop Run.
func (b *Bridge) handlePacket(p *radio.Packet) {
	if p == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			b.packetsFailed.Add(1)
			b.logError("packet handler panic recovered",
				"from", p.FromID,
				"port", p.PortNum.String(),
				"panic", r,
			)
		}
	}()

	err := b.dispatch(p)
	if err == nil {
		b.packetsHandled.Add(1)
		return
	}

	b.packetsFailed.Add(1)
	if errors.Is(err, ErrUnknownNode) || errors.Is(err, ErrUnresolvedChannel) {
		b.logWarn("packet dropped", "from", p.FromID, "port", p.PortNum.String(), "error", err)
		return
	}
	b.logError("packet handling failed", "from", p.FromID, "port", p.PortNum.String(), "error", err)
}

// dispatch routes a packet to its handler by application port.
func (b *Bridge) dispatch(p *radio.Packet) error {
	switch p.PortNum {
	case radio.PortTelemetry:
		return b.onTelemetry(p)
	case radio.PortPosition:
		return b.onPosition(p)
	case radio.PortTextMessage:
		return b.onText(p)
	default:
		return b.onGeneric(p)
	}
}

// resolveNode looks up the sender's short name and applies the node
// filter. ok is false when the node is filtered out.
func (b *Bridge) resolveNode(p *radio.Packet) (node NodeIdentity, ok bool, err error) {
	short, found := b.radio.ShortName(p.FromID)
	if !found {
		return NodeIdentity{}, false, fmt.Errorf("%w: %s", ErrUnknownNode, p.FromID)
	}
	if !b.filter.Allows(short) {
		b.logDebug("node filtered", "from", p.FromID, "short_name", short)
		return NodeIdentity{}, false, nil
	}
	return NodeIdentity{RawID: p.FromID, ID: Sanitize(p.FromID), ShortName: short}, true, nil
}

// onTelemetry announces every sensor for the node, then publishes one
// state object for the highest priority metrics group present.
func (b *Bridge) onTelemetry(p *radio.Packet) error {
	node, ok, err := b.resolveNode(p)
	if err != nil || !ok {
		return err
	}

	for _, s := range sensorDescriptors {
		msg, err := b.discovery.Sensor(node, s)
		if err != nil {
			return err
		}
		if err := b.publish(msg); err != nil {
			return err
		}
	}

	if p.Telemetry == nil {
		return nil
	}
	group, metrics, ok := selectMetrics(p.Telemetry)
	if !ok {
		b.logDebug("telemetry without a known metrics group", "from", p.FromID)
		return nil
	}

	state := telemetryState(p)
	for _, m := range metrics {
		state.Set(m.Name, m.Value)
	}

	payload, err := state.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode telemetry state: %w", err)
	}
	return b.publish(Message{Topic: b.topics.TelemetryState(node.ID, string(group)), Payload: payload})
}

// selectMetrics picks one metrics group by priority device, environment,
// power. Empty groups count as absent.
func selectMetrics(t *radio.Telemetry) (StateGroup, []radio.Metric, bool) {
	switch {
	case len(t.Device) > 0:
		return GroupDevice, t.Device, true
	case len(t.Environment) > 0:
		return GroupEnvironment, t.Environment, true
	case len(t.Power) > 0:
		return GroupPower, t.Power, true
	default:
		return "", nil, false
	}
}

// telemetryState starts a state object with the link quality fields.
func telemetryState(p *radio.Packet) *object {
	state := newObject()

	var rssi int32
	if p.RxRSSI != nil {
		rssi = *p.RxRSSI
	}
	state.Set("rssi", rssi)

	var snr float64
	if p.RxSNR != nil {
		snr = *p.RxSNR
	}
	state.Set("snr", snr)

	if p.HopStart != nil && p.HopLimit != nil {
		state.Set("hopDistance", int64(*p.HopStart)-int64(*p.HopLimit))
	}
	return state
}

// positionAttributes is the device tracker's attribute payload.
type positionAttributes struct {
	Longitude        float64 `json:"longitude"`
	Latitude         float64 `json:"latitude"`
	SatsInView       uint32  `json:"satsInView"`
	LocationAccuracy int     `json:"location_accuracy"`
}

// textState is the state payload of a channel text entity.
type textState struct {
	Text string `json:"text"`
}

// onPosition announces the node's device tracker and publishes its
// position attributes when the packet carries a position.
func (b *Bridge) onPosition(p *radio.Packet) error {
	node, ok, err := b.resolveNode(p)
	if err != nil || !ok {
		return err
	}

	msg, err := b.discovery.Tracker(node)
	if err != nil {
		return err
	}
	if err := b.publish(msg); err != nil {
		return err
	}

	if p.Position == nil {
		return nil
	}

	payload, err := marshalJSON(positionAttributes{
		Longitude:        p.Position.Longitude,
		Latitude:         p.Position.Latitude,
		SatsInView:       p.Position.SatsInView,
		LocationAccuracy: 1,
	})
	if err != nil {
		return fmt.Errorf("encode position: %w", err)
	}
	return b.publish(Message{Topic: b.topics.Attributes(node.ID), Payload: payload})
}

// onText announces the packet's channel text entity and publishes the
// message as its state.
func (b *Bridge) onText(p *radio.Packet) error {
	node, ok, err := b.resolveNode(p)
	if err != nil || !ok {
		return err
	}

	reg := b.registry.Load()
	if reg == nil {
		return fmt.Errorf("%w: channel registry not built", ErrUnresolvedChannel)
	}

	index := p.ChannelIndex()
	ch, found := reg.Channel(index)
	if !found {
		return fmt.Errorf("%w: index %d", ErrUnresolvedChannel, index)
	}

	msg, err := b.discovery.Text(ch)
	if err != nil {
		return err
	}
	if err := b.publish(msg); err != nil {
		return err
	}

	if p.Text == "" {
		return nil
	}

	payload, err := marshalJSON(textState{Text: node.ShortName + ": " + p.Text})
	if err != nil {
		return fmt.Errorf("encode text state: %w", err)
	}
	return b.publish(Message{Topic: b.topics.ChannelState(ch.Key), Payload: payload})
}

// onGeneric handles the remaining ports. Detection sensor alerts are
// published as channel text; everything else is ignored.
func (b *Bridge) onGeneric(p *radio.Packet) error {
	if p.PortNum != radio.PortDetectionSensor {
		return nil
	}

	synthetic := *p
	synthetic.PortNum = radio.PortTextMessage
	synthetic.Text = string(p.Payload)
	return b.onText(&synthetic)
}
