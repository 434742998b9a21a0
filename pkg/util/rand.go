package util

import (
	"crypto/rand"
	"encoding/hex"
)

// RandomHex returns n random bytes hex encoded, or an empty string if the
// system random source fails.
func RandomHex(n int) string {
	buf := make([]byte, n)
	_, err := rand.Read(buf)
	if err != nil {
		return ""
	}
	return hex.EncodeToString(buf)
}
