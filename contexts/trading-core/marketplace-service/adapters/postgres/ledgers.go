package postgresadapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	domainerrors "tokenmart/contexts/trading-core/marketplace-service/domain/errors"
	"tokenmart/contexts/trading-core/marketplace-service/ports"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LedgerResolver serves ledger capabilities from custodial balance tables.
// Deployments that settle against external token ledgers swap this adapter
// out at the composition root.
type LedgerResolver struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewLedgerResolver(db *gorm.DB, logger *slog.Logger) *LedgerResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &LedgerResolver{db: db, logger: logger}
}

func (l *LedgerResolver) MultiUnit(contractRef string) (ports.MultiUnitLedger, error) {
	return multiUnitLedger{db: l.db, contract: contractRef}, nil
}

func (l *LedgerResolver) Unique(contractRef string) (ports.UniqueLedger, error) {
	return uniqueLedger{db: l.db, contract: contractRef}, nil
}

func (l *LedgerResolver) Payment(tokenRef string) (ports.PaymentLedger, error) {
	return paymentLedger{db: l.db, token: tokenRef}, nil
}

type multiUnitBalanceModel struct {
	Contract string `gorm:"column:contract;primaryKey"`
	AssetID  string `gorm:"column:asset_id;primaryKey"`
	Owner    string `gorm:"column:owner;primaryKey"`
	Quantity int64  `gorm:"column:quantity"`
}

func (multiUnitBalanceModel) TableName() string { return "ledger_multi_unit_balances" }

type uniqueOwnerModel struct {
	Contract string `gorm:"column:contract;primaryKey"`
	AssetID  string `gorm:"column:asset_id;primaryKey"`
	Owner    string `gorm:"column:owner"`
}

func (uniqueOwnerModel) TableName() string { return "ledger_unique_owners" }

type operatorApprovalModel struct {
	Contract string `gorm:"column:contract;primaryKey"`
	Owner    string `gorm:"column:owner;primaryKey"`
	Operator string `gorm:"column:operator;primaryKey"`
	Approved bool   `gorm:"column:approved"`
}

func (operatorApprovalModel) TableName() string { return "ledger_operator_approvals" }

type paymentBalanceModel struct {
	Token   string `gorm:"column:token;primaryKey"`
	Owner   string `gorm:"column:owner;primaryKey"`
	Balance int64  `gorm:"column:balance"`
}

func (paymentBalanceModel) TableName() string { return "ledger_payment_balances" }

type paymentAllowanceModel struct {
	Token   string `gorm:"column:token;primaryKey"`
	Owner   string `gorm:"column:owner;primaryKey"`
	Spender string `gorm:"column:spender;primaryKey"`
	Amount  int64  `gorm:"column:amount"`
}

func (paymentAllowanceModel) TableName() string { return "ledger_payment_allowances" }

type multiUnitLedger struct {
	db       *gorm.DB
	contract string
}

func (l multiUnitLedger) BalanceOf(ctx context.Context, owner string, assetID string) (int64, error) {
	var row multiUnitBalanceModel
	err := l.db.WithContext(ctx).
		Where("contract = ? AND asset_id = ? AND owner = ?", l.contract, assetID, owner).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return row.Quantity, nil
}

func (l multiUnitLedger) IsApprovedForAll(ctx context.Context, owner string, operator string) (bool, error) {
	return operatorApproved(ctx, l.db, l.contract, owner, operator)
}

func (l multiUnitLedger) TransferFrom(ctx context.Context, from string, to string, assetID string, quantity int64) error {
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var source multiUnitBalanceModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("contract = ? AND asset_id = ? AND owner = ?", l.contract, assetID, from).
			First(&source).Error
		if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && source.Quantity < quantity) {
			return domainerrors.ErrInsufficientAssetBalance
		}
		if err != nil {
			return err
		}

		if err := tx.Model(&multiUnitBalanceModel{}).
			Where("contract = ? AND asset_id = ? AND owner = ?", l.contract, assetID, from).
			UpdateColumn("quantity", gorm.Expr("quantity - ?", quantity)).Error; err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "contract"}, {Name: "asset_id"}, {Name: "owner"}},
			DoUpdates: clause.Assignments(map[string]any{
				"quantity": gorm.Expr("ledger_multi_unit_balances.quantity + ?", quantity),
			}),
		}).Create(&multiUnitBalanceModel{
			Contract: l.contract,
			AssetID:  assetID,
			Owner:    to,
			Quantity: quantity,
		}).Error
	})
}

type uniqueLedger struct {
	db       *gorm.DB
	contract string
}

func (l uniqueLedger) OwnerOf(ctx context.Context, assetID string) (string, error) {
	var row uniqueOwnerModel
	err := l.db.WithContext(ctx).
		Where("contract = ? AND asset_id = ?", l.contract, assetID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", domainerrors.ErrAssetNotFound
	}
	if err != nil {
		return "", err
	}
	return row.Owner, nil
}

func (l uniqueLedger) IsApprovedForAll(ctx context.Context, owner string, operator string) (bool, error) {
	return operatorApproved(ctx, l.db, l.contract, owner, operator)
}

func (l uniqueLedger) TransferFrom(ctx context.Context, from string, to string, assetID string) error {
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row uniqueOwnerModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("contract = ? AND asset_id = ?", l.contract, assetID).
			First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domainerrors.ErrAssetNotFound
		}
		if err != nil {
			return err
		}
		if row.Owner != from {
			return fmt.Errorf("%w: asset %s is not held by %s", domainerrors.ErrNotOwner, assetID, from)
		}
		return tx.Model(&uniqueOwnerModel{}).
			Where("contract = ? AND asset_id = ?", l.contract, assetID).
			UpdateColumn("owner", to).Error
	})
}

type paymentLedger struct {
	db    *gorm.DB
	token string
}

func (l paymentLedger) BalanceOf(ctx context.Context, owner string) (int64, error) {
	var row paymentBalanceModel
	err := l.db.WithContext(ctx).
		Where("token = ? AND owner = ?", l.token, owner).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return row.Balance, nil
}

func (l paymentLedger) Allowance(ctx context.Context, owner string, spender string) (int64, error) {
	var row paymentAllowanceModel
	err := l.db.WithContext(ctx).
		Where("token = ? AND owner = ? AND spender = ?", l.token, owner, spender).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return row.Amount, nil
}

func (l paymentLedger) TransferFrom(ctx context.Context, from string, to string, amount int64) error {
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var source paymentBalanceModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("token = ? AND owner = ?", l.token, from).
			First(&source).Error
		if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && source.Balance < amount) {
			return domainerrors.ErrPaymentInsufficient
		}
		if err != nil {
			return err
		}

		if err := tx.Model(&paymentBalanceModel{}).
			Where("token = ? AND owner = ?", l.token, from).
			UpdateColumn("balance", gorm.Expr("balance - ?", amount)).Error; err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "token"}, {Name: "owner"}},
			DoUpdates: clause.Assignments(map[string]any{
				"balance": gorm.Expr("ledger_payment_balances.balance + ?", amount),
			}),
		}).Create(&paymentBalanceModel{
			Token:   l.token,
			Owner:   to,
			Balance: amount,
		}).Error
	})
}

func operatorApproved(ctx context.Context, db *gorm.DB, contract string, owner string, operator string) (bool, error) {
	var row operatorApprovalModel
	err := db.WithContext(ctx).
		Where("contract = ? AND owner = ? AND operator = ?", contract, owner, operator).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return row.Approved, nil
}

var _ ports.LedgerResolver = (*LedgerResolver)(nil)
var _ ports.MultiUnitLedger = multiUnitLedger{}
var _ ports.UniqueLedger = uniqueLedger{}
var _ ports.PaymentLedger = paymentLedger{}
