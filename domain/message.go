// Package domain contains core concepts of the chat system.
// This file defines chat records and their display rules.
// Records are immutable and rendering is a pure function of their fields.
package domain

import (
	"fmt"
	"time"
)

// SystemSender is the sender identity of every record produced by the server itself.
const SystemSender = "SERVER"

// Kind tells how a record must be understood and rendered.
type Kind uint8

const (
	KindText Kind = iota
	KindConnect
	KindDisconnect
	KindError
	KindInfo
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindConnect:
		return "connect"
	case KindDisconnect:
		return "disconnect"
	case KindError:
		return "error"
	case KindInfo:
		return "info"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return k <= KindInfo
}

// ChatRecord represents one chat event exchanged with clients.
type ChatRecord struct {
	Sender    string
	Content   string
	Timestamp time.Time
	Kind      Kind
}

// NewRecord stamps a record with the current time.
func NewRecord(sender, content string, kind Kind) ChatRecord {
	return ChatRecord{
		Sender:    sender,
		Content:   content,
		Timestamp: time.Now(),
		Kind:      kind,
	}
}

// NewText creates a Text record on behalf of sender.
func NewText(sender, content string) ChatRecord {
	return NewRecord(sender, content, KindText)
}

// NewSystem creates a record emitted by the server.
func NewSystem(content string, kind Kind) ChatRecord {
	return NewRecord(SystemSender, content, kind)
}

// Marker returns the glyph prefix displayed before the body of the record.
func (r ChatRecord) Marker() string {
	switch r.Kind {
	case KindConnect:
		return "🔵 "
	case KindDisconnect:
		return "🔴 "
	case KindError:
		return "❌ ERROR: "
	case KindInfo:
		return "ℹ️ INFO: "
	default:
		return ""
	}
}

// Body returns the displayed text without timestamp and marker.
func (r ChatRecord) Body() string {
	if r.Kind == KindText {
		return r.Sender + ": " + r.Content
	}
	return r.Content
}

// Render formats the record as "[HH:MM:SS] <marker><body>".
func (r ChatRecord) Render() string {
	return fmt.Sprintf("[%s] %s%s", r.Timestamp.Format(time.TimeOnly), r.Marker(), r.Body())
}

func (r ChatRecord) String() string {
	return r.Render()
}
