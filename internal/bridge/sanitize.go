package bridge

import "strings"

// Sanitize removes every character that is not an ASCII letter, digit,
// underscore or hyphen, leaving a string safe to use as one MQTT topic
// level. Sanitize(Sanitize(s)) == Sanitize(s).
//
// Example: "!1234abcd" → "1234abcd"
func Sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9',
			r == '_', r == '-':
			return r
		default:
			return -1
		}
	}, s)
}

// channelKey is the canonical form of a channel name used in topics and
// for command matching.
func channelKey(name string) string {
	return strings.ToLower(Sanitize(name))
}
