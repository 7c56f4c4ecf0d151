package postgresadapter

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"tokenmart/contexts/trading-core/marketplace-service/domain/entities"
	domainerrors "tokenmart/contexts/trading-core/marketplace-service/domain/errors"
	"tokenmart/contexts/trading-core/marketplace-service/ports"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outboxStatusPending = "pending"
	outboxStatusSent    = "sent"
)

// Repository persists listings, outbox rows, and idempotency records.
// Sold-out and cancelled listings stay as rows for audit; the active set is
// whatever carries status 'active'.
type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{db: db, logger: logger}
}

func (r *Repository) GetListing(ctx context.Context, assetContract string, assetID string) (entities.Listing, error) {
	var row listingModel
	err := r.db.WithContext(ctx).
		Where("asset_contract = ?", strings.TrimSpace(assetContract)).
		Where("asset_id = ?", strings.TrimSpace(assetID)).
		Where("status = ?", string(entities.ListingStatusActive)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Listing{}, domainerrors.ErrListingNotFound
		}
		return entities.Listing{}, r.logError("marketplace_repo_get_listing_failed", err,
			"asset_contract", strings.TrimSpace(assetContract),
			"asset_id", strings.TrimSpace(assetID),
		)
	}
	return row.toEntity(), nil
}

func (r *Repository) FindListingByAssetID(ctx context.Context, assetID string) (entities.Listing, error) {
	var row listingModel
	err := r.db.WithContext(ctx).
		Where("asset_id = ?", strings.TrimSpace(assetID)).
		Where("status = ?", string(entities.ListingStatusActive)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Listing{}, domainerrors.ErrListingNotFound
		}
		return entities.Listing{}, r.logError("marketplace_repo_find_listing_failed", err,
			"asset_id", strings.TrimSpace(assetID),
		)
	}
	return row.toEntity(), nil
}

func (r *Repository) ListListings(ctx context.Context, filter ports.ListingFilter) ([]entities.Listing, int, error) {
	tx := r.db.WithContext(ctx).Model(&listingModel{}).
		Where("status = ?", string(entities.ListingStatusActive))
	if filter.SellerAddress != "" {
		tx = tx.Where("seller_address = ?", filter.SellerAddress)
	}
	if filter.AssetContract != "" {
		tx = tx.Where("asset_contract = ?", filter.AssetContract)
	}
	if filter.Kind != "" {
		tx = tx.Where("asset_kind = ?", string(filter.Kind))
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, r.logError("marketplace_repo_count_listings_failed", err)
	}

	page := filter.Page
	if page <= 0 {
		page = 1
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}

	var rows []listingModel
	if err := tx.Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, 0, r.logError("marketplace_repo_list_listings_failed", err)
	}

	items := make([]entities.Listing, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, int(total), nil
}

func (r *Repository) CreateListingWithOutbox(ctx context.Context, listing entities.Listing, event ports.OutboxEvent) error {
	row := listingModelFromEntity(listing)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var active int64
		if err := tx.Model(&listingModel{}).
			Where("asset_id = ?", row.AssetID).
			Where("status = ?", string(entities.ListingStatusActive)).
			Count(&active).Error; err != nil {
			return err
		}
		if active > 0 {
			return domainerrors.ErrListingAlreadyActive
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		return tx.Create(outboxModelFromEvent(event)).Error
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrListingAlreadyActive) || isUniqueViolation(err) {
			return domainerrors.ErrListingAlreadyActive
		}
		return r.logError("marketplace_repo_create_listing_failed", err,
			"listing_id", listing.ListingID,
			"asset_contract", listing.AssetContract,
			"asset_id", listing.AssetID,
		)
	}
	return nil
}

func (r *Repository) ApplySettlement(
	ctx context.Context,
	assetContract string,
	assetID string,
	quantity int64,
	event ports.OutboxEvent,
	now time.Time,
) (entities.Listing, error) {
	var updated entities.Listing
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row listingModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("asset_contract = ?", strings.TrimSpace(assetContract)).
			Where("asset_id = ?", strings.TrimSpace(assetID)).
			Where("status = ?", string(entities.ListingStatusActive)).
			First(&row).
			Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrListingNotFound
			}
			return err
		}
		if quantity <= 0 || quantity > row.RemainingQuantity {
			return domainerrors.ErrInsufficientInventory
		}

		row.RemainingQuantity -= quantity
		row.UpdatedAt = now.UTC()
		if row.RemainingQuantity == 0 {
			row.Status = string(entities.ListingStatusSoldOut)
		}
		if err := tx.Save(&row).Error; err != nil {
			return err
		}
		if err := tx.Create(outboxModelFromEvent(event)).Error; err != nil {
			return err
		}
		updated = row.toEntity()
		return nil
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrListingNotFound) ||
			errors.Is(err, domainerrors.ErrInsufficientInventory) {
			return entities.Listing{}, err
		}
		return entities.Listing{}, r.logError("marketplace_repo_apply_settlement_failed", err,
			"asset_contract", strings.TrimSpace(assetContract),
			"asset_id", strings.TrimSpace(assetID),
			"quantity", quantity,
		)
	}
	return updated, nil
}

func (r *Repository) CancelListing(
	ctx context.Context,
	assetContract string,
	assetID string,
	sellerAddress string,
	event ports.OutboxEvent,
	now time.Time,
) (entities.Listing, error) {
	var cancelled entities.Listing
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row listingModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("asset_contract = ?", strings.TrimSpace(assetContract)).
			Where("asset_id = ?", strings.TrimSpace(assetID)).
			Where("status = ?", string(entities.ListingStatusActive)).
			First(&row).
			Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrListingNotFound
			}
			return err
		}
		if row.SellerAddress != strings.TrimSpace(sellerAddress) {
			return domainerrors.ErrNotSeller
		}

		row.Status = string(entities.ListingStatusCancelled)
		row.UpdatedAt = now.UTC()
		if err := tx.Save(&row).Error; err != nil {
			return err
		}
		if err := tx.Create(outboxModelFromEvent(event)).Error; err != nil {
			return err
		}
		cancelled = row.toEntity()
		return nil
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrListingNotFound) || errors.Is(err, domainerrors.ErrNotSeller) {
			return entities.Listing{}, err
		}
		return entities.Listing{}, r.logError("marketplace_repo_cancel_listing_failed", err,
			"asset_contract", strings.TrimSpace(assetContract),
			"asset_id", strings.TrimSpace(assetID),
		)
	}
	return cancelled, nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("marketplace_repo_list_pending_outbox_failed", err, "limit", limit)
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      append([]byte(nil), row.Payload...),
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxSent(ctx context.Context, outboxID string, sentAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":  outboxStatusSent,
			"sent_at": sentAt.UTC(),
		})
	if result.Error != nil {
		return r.logError("marketplace_repo_mark_outbox_sent_failed", result.Error,
			"outbox_id", strings.TrimSpace(outboxID),
		)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrInvalidRequest
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	var row idempotencyModel
	err := r.db.WithContext(ctx).
		Where("key = ?", strings.TrimSpace(key)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.IdempotencyRecord{}, false, nil
		}
		return ports.IdempotencyRecord{}, false, r.logError("marketplace_repo_get_idempotency_failed", err)
	}
	if !row.ExpiresAt.IsZero() && now.UTC().After(row.ExpiresAt.UTC()) {
		return ports.IdempotencyRecord{}, false, nil
	}
	return ports.IdempotencyRecord{
		Key:         row.Key,
		RequestHash: row.RequestHash,
		Payload:     append([]byte(nil), row.Payload...),
		ExpiresAt:   row.ExpiresAt.UTC(),
	}, true, nil
}

func (r *Repository) Put(ctx context.Context, record ports.IdempotencyRecord) error {
	row := idempotencyModel{
		Key:         record.Key,
		RequestHash: record.RequestHash,
		Payload:     record.Payload,
		ExpiresAt:   record.ExpiresAt.UTC(),
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		return r.logError("marketplace_repo_put_idempotency_failed", create.Error, "key", record.Key)
	}
	if create.RowsAffected > 0 {
		return nil
	}

	var existing idempotencyModel
	if err := r.db.WithContext(ctx).
		Select("request_hash").
		Where("key = ?", record.Key).
		First(&existing).Error; err != nil {
		return r.logError("marketplace_repo_load_idempotency_failed", err, "key", record.Key)
	}
	if existing.RequestHash != record.RequestHash {
		return domainerrors.ErrIdempotencyKeyConflict
	}
	return nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "trading-core/marketplace-service",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("marketplace repository operation failed", fields...)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

type listingModel struct {
	ListingID         string    `gorm:"column:listing_id;primaryKey"`
	SellerAddress     string    `gorm:"column:seller_address"`
	AssetContract     string    `gorm:"column:asset_contract"`
	AssetID           string    `gorm:"column:asset_id"`
	AssetKind         string    `gorm:"column:asset_kind"`
	TotalQuantity     int64     `gorm:"column:total_quantity"`
	RemainingQuantity int64     `gorm:"column:remaining_quantity"`
	UnitPrice         int64     `gorm:"column:unit_price"`
	PaymentToken      string    `gorm:"column:payment_token"`
	ExtraData         string    `gorm:"column:extra_data"`
	Status            string    `gorm:"column:status"`
	CreatedAt         time.Time `gorm:"column:created_at"`
	UpdatedAt         time.Time `gorm:"column:updated_at"`
}

func (listingModel) TableName() string {
	return "listings"
}

func listingModelFromEntity(listing entities.Listing) listingModel {
	return listingModel{
		ListingID:         strings.TrimSpace(listing.ListingID),
		SellerAddress:     strings.TrimSpace(listing.SellerAddress),
		AssetContract:     strings.TrimSpace(listing.AssetContract),
		AssetID:           strings.TrimSpace(listing.AssetID),
		AssetKind:         string(listing.AssetKind),
		TotalQuantity:     listing.TotalQuantity,
		RemainingQuantity: listing.RemainingQuantity,
		UnitPrice:         listing.UnitPrice,
		PaymentToken:      strings.TrimSpace(listing.PaymentToken),
		ExtraData:         listing.ExtraData,
		Status:            string(listing.Status),
		CreatedAt:         listing.CreatedAt.UTC(),
		UpdatedAt:         listing.UpdatedAt.UTC(),
	}
}

func (m listingModel) toEntity() entities.Listing {
	return entities.Listing{
		ListingID:         m.ListingID,
		SellerAddress:     m.SellerAddress,
		AssetContract:     m.AssetContract,
		AssetID:           m.AssetID,
		AssetKind:         entities.AssetKind(m.AssetKind),
		TotalQuantity:     m.TotalQuantity,
		RemainingQuantity: m.RemainingQuantity,
		UnitPrice:         m.UnitPrice,
		PaymentToken:      m.PaymentToken,
		ExtraData:         m.ExtraData,
		Status:            entities.ListingStatus(m.Status),
		CreatedAt:         m.CreatedAt.UTC(),
		UpdatedAt:         m.UpdatedAt.UTC(),
	}
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	SentAt       *time.Time `gorm:"column:sent_at"`
}

func (outboxModel) TableName() string {
	return "marketplace_outbox"
}

func outboxModelFromEvent(event ports.OutboxEvent) *outboxModel {
	return &outboxModel{
		OutboxID:     event.EventID,
		EventType:    event.EventType,
		PartitionKey: event.PartitionKey,
		Payload:      event.Payload,
		Status:       outboxStatusPending,
		CreatedAt:    event.OccurredAt.UTC(),
	}
}

type idempotencyModel struct {
	Key         string    `gorm:"column:key;primaryKey"`
	RequestHash string    `gorm:"column:request_hash"`
	Payload     []byte    `gorm:"column:payload"`
	ExpiresAt   time.Time `gorm:"column:expires_at"`
}

func (idempotencyModel) TableName() string {
	return "marketplace_idempotency"
}

var _ ports.ListingRepository = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)
var _ ports.IdempotencyStore = (*Repository)(nil)
