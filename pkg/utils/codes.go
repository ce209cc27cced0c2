package utils

import (
	"crypto/rand"
	"encoding/hex"
)

// NewInviteCode returns a random url-safe code for invite links.
func NewInviteCode() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		// rand.Read only fails when the OS entropy source is broken
		panic(err)
	}
	return hex.EncodeToString(buf)
}
