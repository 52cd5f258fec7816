package indi

import (
	"strings"

	"devicelink/pkg/event"
)

var messagePrefixes = []struct {
	prefix string
	level  event.Level
}{
	{"[WARNING]", event.LevelWarning},
	{"[ERROR]", event.LevelError},
	{"[INFO]", event.LevelInfo},
}

// classifyMessage derives the level of a device message from its prefix and
// strips the prefix. Messages without one are informational.
func classifyMessage(text string) (event.Level, string) {
	text = strings.TrimSpace(text)

	// servers prepend a timestamp: "2024-01-01T00:00:00: [WARNING] ..."
	for _, p := range messagePrefixes {
		if idx := strings.Index(text, p.prefix); idx >= 0 && idx <= 32 {
			return p.level, strings.TrimSpace(text[idx+len(p.prefix):])
		}
	}
	return event.LevelInfo, text
}
