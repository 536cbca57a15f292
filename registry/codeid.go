package registry

import (
	"crypto/rand"
	"fmt"
)

// Identifier alphabet: letters and digits, minus y/z in both cases.
// Codes are occasionally re-keyed by hand on machines with differing
// keyboard layouts, where y and z swap places.
const idCharset = "ABCDEFGHIJKLMNOPQRSTUVWXabcdefghijklmnopqrstuvwx0123456789"

const (
	MinIDLength     = 6
	MaxIDLength     = 10
	DefaultIDLength = 8
)

// GenerateID returns a random identifier of the given length drawn
// from idCharset. It offers a large collision space, not uniqueness;
// the registry enforces uniqueness with an existence check and retry.
func GenerateID(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	for i, b := range buf {
		buf[i] = idCharset[int(b)%len(idCharset)]
	}
	return string(buf), nil
}
