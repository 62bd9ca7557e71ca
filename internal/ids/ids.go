package ids

import (
	"crypto/rand"

	"github.com/google/uuid"
)

// MeetCodeAlphabet leaves out 0/O and 1/I so codes can be read aloud and typed.
const MeetCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const MeetCodeLength = 6

func NewID() string {
	return uuid.NewString()
}

// NewShareToken mints an opaque share token. Same uniqueness class as document ids.
func NewShareToken() string {
	return uuid.NewString()
}

// NewMeetCode draws MeetCodeLength independent symbols from MeetCodeAlphabet.
// The alphabet has 32 symbols, so masking a random byte keeps every draw uniform.
func NewMeetCode() string {
	var buf [MeetCodeLength]byte

	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand only fails when the OS entropy source is broken
		panic("ids: read random bytes: " + err.Error())
	}

	out := make([]byte, MeetCodeLength)
	for i, b := range buf {
		out[i] = MeetCodeAlphabet[b&31]
	}

	return string(out)
}

func IsMeetCode(s string) bool {
	if len(s) != MeetCodeLength {
		return false
	}

	for i := 0; i < len(s); i++ {
		if !inAlphabet(s[i]) {
			return false
		}
	}

	return true
}

func IsUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

func inAlphabet(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z':
		return c != 'I' && c != 'O'
	case c >= '2' && c <= '9':
		return true
	default:
		return false
	}
}
