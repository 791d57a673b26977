package uuid

import (
	"strings"

	guuid "github.com/google/uuid"
	"github.com/lithammer/shortuuid/v4"
)

// NewUUID creates a new random UUID and returns it as a
// 32 character string without dashes.
func NewUUID() string {
	return strings.ReplaceAll(guuid.NewString(), "-", "")
}

// NewShortUUID returns a new UUIDv4, encoded with base57
func NewShortUUID() string {
	return shortuuid.New()
}

// IsUUID reports whether id looks like a value produced by NewUUID.
func IsUUID(id string) bool {
	if len(id) != 32 {
		return false
	}
	_, err := guuid.Parse(id)
	return err == nil
}
