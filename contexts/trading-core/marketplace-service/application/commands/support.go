package commands

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	domainerrors "tokenmart/contexts/trading-core/marketplace-service/domain/errors"
	"tokenmart/contexts/trading-core/marketplace-service/ports"
)

const defaultIdempotencyTTL = 7 * 24 * time.Hour

func requireIdempotencyKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", domainerrors.ErrIdempotencyKeyRequired
	}
	return key, nil
}

func hashRequest(values ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(values, "|")))
	return hex.EncodeToString(sum[:])
}

func resolveTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return defaultIdempotencyTTL
	}
	return ttl
}

// replayIdempotent checks for a committed result under key. A reused key must
// carry an identical request hash; a hit decodes the stored payload.
func replayIdempotent(
	ctx context.Context,
	store ports.IdempotencyStore,
	key string,
	requestHash string,
	now time.Time,
	decode func([]byte) error,
) (bool, error) {
	record, found, err := store.Get(ctx, key, now)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}
	if record.RequestHash != requestHash {
		return false, domainerrors.ErrIdempotencyKeyConflict
	}
	if err := decode(record.Payload); err != nil {
		return false, err
	}
	return true, nil
}

func commitIdempotent(
	ctx context.Context,
	store ports.IdempotencyStore,
	key string,
	requestHash string,
	payload []byte,
	expiresAt time.Time,
) error {
	return store.Put(ctx, ports.IdempotencyRecord{
		Key:         key,
		RequestHash: requestHash,
		Payload:     payload,
		ExpiresAt:   expiresAt,
	})
}
