package storage

import (
	"strings"

	"github.com/oklog/ulid/v2"
)

// NewID returns a fresh lowercase ULID for users and projects.
func NewID() string {
	return strings.ToLower(ulid.Make().String())
}

// IsValidID reports whether id is a well-formed record identifier.
func IsValidID(id string) bool {
	id = strings.TrimSpace(id)
	if len(id) != ulid.EncodedSize {
		return false
	}
	_, err := ulid.ParseStrict(strings.ToUpper(id))
	return err == nil
}
