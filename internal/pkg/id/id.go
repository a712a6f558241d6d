package id

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// New generates a ULID string stamped with the current time.
func New() string {
	return NewAt(time.Now())
}

// NewAt generates a ULID whose timestamp component is t, so identifiers minted
// from an injected clock sort by that clock.
func NewAt(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), rand.Reader).String()
}
