package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"tokenmart/contexts/trading-core/marketplace-service/domain/entities"
	domainerrors "tokenmart/contexts/trading-core/marketplace-service/domain/errors"
	"tokenmart/contexts/trading-core/marketplace-service/ports"
)

// Store is the in-memory adapter backing the module's persistence ports.
// Listing state and outbox rows mutate under one lock, which gives the
// same commit atomicity the postgres adapter gets from a transaction.
type Store struct {
	mu          sync.RWMutex
	listings    map[string]entities.Listing // keyed by AssetContract/AssetID
	byAssetID   map[string]string           // asset id -> listing key
	outbox      []outboxRow
	idempotency map[string]ports.IdempotencyRecord
	sequence    uint64
}

type outboxRow struct {
	message ports.OutboxMessage
	sent    bool
}

func NewStore() *Store {
	return &Store{
		listings:    make(map[string]entities.Listing),
		byAssetID:   make(map[string]string),
		idempotency: make(map[string]ports.IdempotencyRecord),
	}
}

func (s *Store) GetListing(ctx context.Context, assetContract string, assetID string) (entities.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	listing, ok := s.listings[assetContract+"/"+assetID]
	if !ok {
		return entities.Listing{}, domainerrors.ErrListingNotFound
	}
	return listing, nil
}

func (s *Store) FindListingByAssetID(ctx context.Context, assetID string) (entities.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key, ok := s.byAssetID[assetID]
	if !ok {
		return entities.Listing{}, domainerrors.ErrListingNotFound
	}
	return s.listings[key], nil
}

func (s *Store) ListListings(ctx context.Context, filter ports.ListingFilter) ([]entities.Listing, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]entities.Listing, 0, len(s.listings))
	for _, item := range s.listings {
		if filter.SellerAddress != "" && item.SellerAddress != filter.SellerAddress {
			continue
		}
		if filter.AssetContract != "" && item.AssetContract != filter.AssetContract {
			continue
		}
		if filter.Kind != "" && item.AssetKind != filter.Kind {
			continue
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].Key() < items[j].Key()
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})

	total := len(items)
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	start := (page - 1) * limit
	if start >= total {
		return []entities.Listing{}, total, nil
	}
	end := start + limit
	if end > total {
		end = total
	}
	return append([]entities.Listing(nil), items[start:end]...), total, nil
}

func (s *Store) CreateListingWithOutbox(ctx context.Context, listing entities.Listing, event ports.OutboxEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.listings[listing.Key()]; ok {
		return domainerrors.ErrListingAlreadyActive
	}
	if _, ok := s.byAssetID[listing.AssetID]; ok {
		// One active listing per asset id keeps settlement lookup unambiguous.
		return domainerrors.ErrListingAlreadyActive
	}
	s.listings[listing.Key()] = listing
	s.byAssetID[listing.AssetID] = listing.Key()
	s.appendOutboxLocked(event)
	return nil
}

func (s *Store) ApplySettlement(
	ctx context.Context,
	assetContract string,
	assetID string,
	quantity int64,
	event ports.OutboxEvent,
	now time.Time,
) (entities.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := assetContract + "/" + assetID
	listing, ok := s.listings[key]
	if !ok {
		return entities.Listing{}, domainerrors.ErrListingNotFound
	}
	if quantity <= 0 || quantity > listing.RemainingQuantity {
		return entities.Listing{}, domainerrors.ErrInsufficientInventory
	}

	listing.RemainingQuantity -= quantity
	listing.UpdatedAt = now.UTC()
	if listing.RemainingQuantity == 0 {
		listing.Status = entities.ListingStatusSoldOut
		delete(s.listings, key)
		delete(s.byAssetID, assetID)
	} else {
		s.listings[key] = listing
	}
	s.appendOutboxLocked(event)
	return listing, nil
}

func (s *Store) CancelListing(
	ctx context.Context,
	assetContract string,
	assetID string,
	sellerAddress string,
	event ports.OutboxEvent,
	now time.Time,
) (entities.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := assetContract + "/" + assetID
	listing, ok := s.listings[key]
	if !ok {
		return entities.Listing{}, domainerrors.ErrListingNotFound
	}
	if listing.SellerAddress != sellerAddress {
		return entities.Listing{}, domainerrors.ErrNotSeller
	}

	listing.Status = entities.ListingStatusCancelled
	listing.UpdatedAt = now.UTC()
	delete(s.listings, key)
	delete(s.byAssetID, assetID)
	s.appendOutboxLocked(event)
	return listing, nil
}

func (s *Store) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	items := make([]ports.OutboxMessage, 0, limit)
	for _, row := range s.outbox {
		if row.sent {
			continue
		}
		message := row.message
		message.Payload = append([]byte(nil), row.message.Payload...)
		items = append(items, message)
		if len(items) == limit {
			break
		}
	}
	return items, nil
}

func (s *Store) MarkOutboxSent(ctx context.Context, outboxID string, sentAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.outbox {
		if s.outbox[i].message.OutboxID == outboxID {
			s.outbox[i].sent = true
			return nil
		}
	}
	return domainerrors.ErrInvalidRequest
}

func (s *Store) Get(ctx context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.idempotency[key]
	if !ok {
		return ports.IdempotencyRecord{}, false, nil
	}
	if !record.ExpiresAt.IsZero() && now.UTC().After(record.ExpiresAt.UTC()) {
		delete(s.idempotency, key)
		return ports.IdempotencyRecord{}, false, nil
	}
	return record, true, nil
}

func (s *Store) Put(ctx context.Context, record ports.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.idempotency[record.Key]; ok {
		if existing.RequestHash != record.RequestHash {
			return domainerrors.ErrIdempotencyKeyConflict
		}
		return nil
	}
	s.idempotency[record.Key] = record
	return nil
}

func (s *Store) NewID(ctx context.Context) (string, error) {
	return s.nextID("mkt"), nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

// PendingOutboxCount is a test/inspection helper.
func (s *Store) PendingOutboxCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, row := range s.outbox {
		if !row.sent {
			count++
		}
	}
	return count
}

func (s *Store) appendOutboxLocked(event ports.OutboxEvent) {
	s.outbox = append(s.outbox, outboxRow{message: ports.OutboxMessage{
		OutboxID:     event.EventID,
		EventType:    event.EventType,
		PartitionKey: event.PartitionKey,
		Payload:      append([]byte(nil), event.Payload...),
		CreatedAt:    event.OccurredAt.UTC(),
	}})
}

func (s *Store) nextID(prefix string) string {
	n := atomic.AddUint64(&s.sequence, 1)
	return fmt.Sprintf("%s_%d", prefix, n)
}

var _ ports.ListingRepository = (*Store)(nil)
var _ ports.OutboxRepository = (*Store)(nil)
var _ ports.IdempotencyStore = (*Store)(nil)
var _ ports.Clock = (*Store)(nil)
var _ ports.IDGenerator = (*Store)(nil)
