package domain

import (
	"crypto/rand"
	"strings"
)

const (
	// DefaultRoomCodeLength is the default length for room codes
	DefaultRoomCodeLength = 6

	// RoomCodeChars are characters used for room codes (no ambiguous chars)
	RoomCodeChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// GenerateRoomCode generates a random room code of the given length.
// Uniqueness is not checked here; the store rejects a duplicate insert.
func GenerateRoomCode(length int) string {
	if length <= 0 {
		length = DefaultRoomCodeLength
	}

	b := make([]byte, length)
	rand.Read(b)

	code := make([]byte, length)
	for i := range code {
		code[i] = RoomCodeChars[int(b[i])%len(RoomCodeChars)]
	}

	return string(code)
}

// NormalizeRoomCode trims and upper-cases a user-entered code.
func NormalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidRoomCode reports whether every character of code is in the room code alphabet.
func ValidRoomCode(code string) bool {
	if code == "" {
		return false
	}
	for _, c := range code {
		if !strings.ContainsRune(RoomCodeChars, c) {
			return false
		}
	}
	return true
}
