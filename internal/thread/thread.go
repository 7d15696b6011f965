// internal/thread/thread.go
package thread

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Offset between the Unix epoch and the Windows FILETIME epoch (1601-01-01),
// in 100ns ticks.
const windowsEpochOffset = 116444736000000000

// FallbackDomain scopes Message-IDs when the sender address has no usable
// domain part.
const FallbackDomain = "mail.invalid"

// ErrBadParentIndex reports a parent conversation index that could not be
// decoded. The send still proceeds with a fresh index; threading is broken
// for that one message only.
var ErrBadParentIndex = errors.New("parent conversation index is not valid base64")

// NewMessageID returns a globally unique identifier scoped to the sender's
// domain, in the usual <token@domain> form.
func NewMessageID(sender string) string {
	return fmt.Sprintf("<%s@%s>", uuid.New().String(), domainOf(sender))
}

func domainOf(addr string) string {
	at := strings.LastIndex(addr, "@")
	if at < 0 || at == len(addr)-1 {
		return FallbackDomain
	}
	return strings.ToLower(addr[at+1:])
}

// ticks converts t to 100ns ticks since the Windows epoch.
func ticks(t time.Time) uint64 {
	return uint64(t.Unix())*10_000_000 + windowsEpochOffset
}

// NewConversationIndex builds the initial Thread-Index value: 6 bytes of
// little-endian timestamp followed by 16 random bytes, base64 encoded.
// Clients that thread on Conversation-Index rather than References need it.
func NewConversationIndex(t time.Time) string {
	var raw [22]byte
	var ts [8]byte
	binary.LittleEndian.PutUint64(ts[:], ticks(t))
	copy(raw[:6], ts[:6])
	id := uuid.New()
	copy(raw[6:], id[:])
	return base64.StdEncoding.EncodeToString(raw[:])
}

// ChildConversationIndex appends a 5-byte little-endian timestamp block to
// the decoded parent index, re-padding truncated base64 first. If the parent
// cannot be decoded a fresh initial-style index is returned together with
// ErrBadParentIndex so callers can surface the broken thread without failing
// the send.
func ChildConversationIndex(parent string, t time.Time) (string, error) {
	raw, err := decodeIndex(parent)
	if err != nil {
		return NewConversationIndex(t), ErrBadParentIndex
	}
	var ts [8]byte
	binary.LittleEndian.PutUint64(ts[:], ticks(t))
	raw = append(raw, ts[:5]...)
	return base64.StdEncoding.EncodeToString(raw), nil
}

func decodeIndex(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("empty index")
	}
	if rem := len(s) % 4; rem != 0 {
		s += strings.Repeat("=", 4-rem)
	}
	return base64.StdEncoding.DecodeString(s)
}

// Topic strips every leading "Re:" prefix from subject, case-insensitively.
// The stripped form is what gets recorded as the thread topic.
func Topic(subject string) string {
	topic := strings.TrimSpace(subject)
	for strings.HasPrefix(strings.ToLower(topic), "re:") {
		topic = strings.TrimSpace(topic[3:])
	}
	return topic
}

// ReplySubject prefixes the thread topic with exactly one "Re: ".
func ReplySubject(subject string) string {
	return "Re: " + Topic(subject)
}
