package model

import (
	"time"

	"github.com/google/uuid"
)

// NewID returns a random UUID string used for every persisted entity.
func NewID() string {
	return uuid.NewString()
}

// Now is the clock used for created_at/updated_at stamps. Tests replace it.
var Now = func() time.Time {
	return time.Now().UTC()
}
