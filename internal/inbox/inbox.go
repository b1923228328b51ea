// Package inbox holds the most recent inbound message for the device
// application.
//
// The inbox has a single slot. A new message overwrites one that has not
// been read yet; the loss is silent apart from the Dropped counter.
package inbox

import "github.com/ncmreynolds/serial2mqtt/internal/protocol"

// Inbox is a single-slot mailbox. The zero value is empty and ready to use.
type Inbox struct {
	topic   string
	message string
	waiting bool
	dropped uint64
}

// Deposit stores a message, replacing any unread one.
// It returns true when an unread message was discarded.
func (b *Inbox) Deposit(topic, message string) bool {
	discarded := b.waiting
	if discarded {
		b.dropped++
	}
	b.topic = topic
	b.message = message
	b.waiting = true
	return discarded
}

// Waiting reports whether an unread message is held.
func (b *Inbox) Waiting() bool { return b.waiting }

// Topic returns the held topic without clearing it.
func (b *Inbox) Topic() string { return b.topic }

// Message returns the held message without clearing it.
func (b *Inbox) Message() string { return b.message }

// IsNumeric reports whether the held message is made only of digits.
func (b *Inbox) IsNumeric() bool { return protocol.IsNumeric(b.message) }

// Int returns the held message as an unsigned integer, or 0 when it is not
// numeric.
func (b *Inbox) Int() uint32 {
	v, _ := protocol.ParseUint(b.message)
	return v
}

// MarkRead empties the slot.
func (b *Inbox) MarkRead() {
	b.topic = ""
	b.message = ""
	b.waiting = false
}

// Dropped returns how many unread messages were overwritten.
func (b *Inbox) Dropped() uint64 { return b.dropped }
