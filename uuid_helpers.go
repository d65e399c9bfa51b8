package auth

import (
	"strings"

	"github.com/google/uuid"
)

func newTokenID() string {
	return uuid.NewString()
}

// ParseUserID parses a user identifier, rejecting the nil UUID
func ParseUserID(id string) (uuid.UUID, bool) {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil || parsed == uuid.Nil {
		return uuid.Nil, false
	}
	return parsed, true
}
