package bridge

import (
	"errors"
	"strings"
	"sync"

	"github.com/nerrad567/meshtastic2hass/internal/infrastructure/mqtt"
	"github.com/nerrad567/meshtastic2hass/internal/radio"
)

// MockMQTTClient records publishes and can fail chosen topics.
type MockMQTTClient struct {
	mu         sync.Mutex
	published  []Message
	attempts   []string
	failTopics map[string]error
	panicOn    string
	subscribed map[string]mqtt.MessageHandler
	subErr     error
	onPublish  func(topic string)
}

func NewMockMQTTClient() *MockMQTTClient {
	return &MockMQTTClient{
		failTopics: make(map[string]error),
		subscribed: make(map[string]mqtt.MessageHandler),
	}
}

func (m *MockMQTTClient) Publish(topic string, payload []byte) error {
	m.mu.Lock()
	m.attempts = append(m.attempts, topic)
	hook := m.onPublish
	if m.panicOn != "" && topic == m.panicOn {
		m.mu.Unlock()
		panic("publish exploded")
	}
	err := m.failTopics[topic]
	if err == nil || errors.Is(err, mqtt.ErrPublishTimeout) {
		m.published = append(m.published, Message{Topic: topic, Payload: append([]byte(nil), payload...)})
	}
	m.mu.Unlock()

	if hook != nil {
		hook(topic)
	}
	return err
}

func (m *MockMQTTClient) Subscribe(topic string, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subErr != nil {
		return m.subErr
	}
	m.subscribed[topic] = handler
	return nil
}

func (m *MockMQTTClient) FailTopic(topic string, err error) {
	m.mu.Lock()
	m.failTopics[topic] = err
	m.mu.Unlock()
}

func (m *MockMQTTClient) Published() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.published))
	copy(out, m.published)
	return out
}

func (m *MockMQTTClient) Attempts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.attempts))
	copy(out, m.attempts)
	return out
}

// PublishedWithPrefix returns messages whose topic starts with prefix.
func (m *MockMQTTClient) PublishedWithPrefix(prefix string) []Message {
	var out []Message
	for _, msg := range m.Published() {
		if strings.HasPrefix(msg.Topic, prefix) {
			out = append(out, msg)
		}
	}
	return out
}

func (m *MockMQTTClient) Handler(topic string) mqtt.MessageHandler {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subscribed[topic]
}

func (m *MockMQTTClient) Reset() {
	m.mu.Lock()
	m.published = nil
	m.attempts = nil
	m.mu.Unlock()
}

// MockRadio is a scripted radio link.
type MockRadio struct {
	mu         sync.Mutex
	events     chan radio.Event
	shortNames map[string]string
	channels   []radio.ChannelSettings
	liveRoles  map[int]radio.Role
	preset     radio.ModemPreset
	sent       []radio.TextMessage
	sendErr    error
}

func NewMockRadio() *MockRadio {
	return &MockRadio{
		events:     make(chan radio.Event, 16),
		shortNames: map[string]string{"!1234": "AB1"},
		channels: []radio.ChannelSettings{
			{Index: 0, Name: "", Role: radio.RolePrimary},
			{Index: 1, Name: "Admin!", Role: radio.RoleSecondary},
			{Index: 2, Name: "", Role: radio.RoleDisabled},
		},
		liveRoles: map[int]radio.Role{
			0: radio.RolePrimary,
			1: radio.RoleSecondary,
			2: radio.RoleDisabled,
		},
		preset: radio.PresetLongFast,
	}
}

func (r *MockRadio) Events() <-chan radio.Event { return r.events }

func (r *MockRadio) ShortName(nodeID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name, ok := r.shortNames[nodeID]
	return name, ok
}

func (r *MockRadio) Channels() []radio.ChannelSettings {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]radio.ChannelSettings(nil), r.channels...)
}

func (r *MockRadio) ChannelRole(index int) (radio.Role, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	role, ok := r.liveRoles[index]
	return role, ok
}

func (r *MockRadio) ModemPreset() radio.ModemPreset {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.preset
}

func (r *MockRadio) SendText(msg radio.TextMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sendErr != nil {
		return r.sendErr
	}
	r.sent = append(r.sent, msg)
	return nil
}

func (r *MockRadio) SetLiveRole(index int, role radio.Role) {
	r.mu.Lock()
	r.liveRoles[index] = role
	r.mu.Unlock()
}

func (r *MockRadio) Sent() []radio.TextMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]radio.TextMessage(nil), r.sent...)
}

// newTestBridge returns a bridge whose registry is already built from the
// mock radio's channels.
func newTestBridge(nodes ...string) (*Bridge, *MockMQTTClient, *MockRadio) {
	mq := NewMockMQTTClient()
	r := NewMockRadio()
	b, err := New(Options{
		TopicPrefix: "msh/2/json",
		Nodes:       nodes,
		MQTTClient:  mq,
		Radio:       r,
	})
	if err != nil {
		panic(err)
	}
	b.registry.Store(BuildChannelRegistry(r.Channels(), r.ModemPreset()))
	return b, mq, r
}

func ptr[T any](v T) *T { return &v }
