package bridge

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nerrad567/meshtastic2hass/internal/radio"
)

// Channel is one radio channel known to the bridge.
type Channel struct {
	// Index is the channel slot on the radio.
	Index int

	// Name is the display name: the configured name, or the modem preset
	// label for an unnamed slot.
	Name string

	// Key is the sanitized lower-case name used in topics.
	Key string

	// Role is the slot's role when the registry was built.
	Role radio.Role
}

// ChannelRegistry maps channel index to name and back. It is built once
// per radio connection and never modified, so it is safe for concurrent
// readers without locking.
type ChannelRegistry struct {
	channels []Channel
	byKey    map[string]int // key → position in channels
	byIndex  map[int]int    // slot index → position in channels
	skipped  []Channel
}

// BuildChannelRegistry builds the registry from the radio's channel slots.
//
// Disabled slots are left out. A slot without a name takes the modem
// preset label (LONG_FAST → "LongFast"). A slot whose key is empty or
// already taken by a lower index is skipped, so every registered channel
// resolves back to its own index.
func BuildChannelRegistry(slots []radio.ChannelSettings, preset radio.ModemPreset) *ChannelRegistry {
	r := &ChannelRegistry{
		byKey:   make(map[string]int, len(slots)),
		byIndex: make(map[int]int, len(slots)),
	}

	for _, slot := range slots {
		if slot.Role == radio.RoleDisabled {
			continue
		}

		name := slot.Name
		if name == "" {
			name = PresetLabel(preset.String())
		}
		ch := Channel{
			Index: slot.Index,
			Name:  name,
			Key:   channelKey(name),
			Role:  slot.Role,
		}

		if _, dup := r.byKey[ch.Key]; dup || ch.Key == "" {
			r.skipped = append(r.skipped, ch)
			continue
		}
		if _, dup := r.byIndex[ch.Index]; dup {
			r.skipped = append(r.skipped, ch)
			continue
		}

		r.byKey[ch.Key] = len(r.channels)
		r.byIndex[ch.Index] = len(r.channels)
		r.channels = append(r.channels, ch)
	}

	return r
}

// PresetLabel turns a modem preset identifier into its display label by
// title-casing each word and joining them.
//
// Example: "VERY_LONG_SLOW" → "VeryLongSlow"
func PresetLabel(id string) string {
	words := strings.FieldsFunc(id, func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	})

	caser := cases.Title(language.Und)
	var b strings.Builder
	for _, w := range words {
		b.WriteString(caser.String(w))
	}
	return b.String()
}

// ResolveIndex returns the slot index for a channel name. The name is
// normalized the same way keys are, so raw and sanitized forms both match.
func (r *ChannelRegistry) ResolveIndex(name string) (int, bool) {
	pos, ok := r.byKey[channelKey(name)]
	if !ok {
		return 0, false
	}
	return r.channels[pos].Index, true
}

// ResolveName returns the channel key for a slot index.
func (r *ChannelRegistry) ResolveName(index int) (string, bool) {
	ch, ok := r.Channel(index)
	if !ok {
		return "", false
	}
	return ch.Key, true
}

// Channel returns the registered channel at a slot index.
func (r *ChannelRegistry) Channel(index int) (Channel, bool) {
	pos, ok := r.byIndex[index]
	if !ok {
		return Channel{}, false
	}
	return r.channels[pos], true
}

// Channels returns the registered channels in slot order.
func (r *ChannelRegistry) Channels() []Channel {
	out := make([]Channel, len(r.channels))
	copy(out, r.channels)
	return out
}

// Len returns the number of registered channels.
func (r *ChannelRegistry) Len() int {
	return len(r.channels)
}

// Skipped returns slots that were enabled but could not be registered.
func (r *ChannelRegistry) Skipped() []Channel {
	out := make([]Channel, len(r.skipped))
	copy(out, r.skipped)
	return out
}
