package postgresadapter

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// UUIDGenerator implements ports.IDGenerator using RFC 4122 UUID v4 values.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

// SystemClock implements ports.Clock from wall time.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
