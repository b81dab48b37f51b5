package store

import (
	"context"
	"errors"

	"traderev/pkg/diag"
	"traderev/pkg/model"

	"gorm.io/gorm"
)

// ErrStale marks a conditional trade update that lost a version race.
// The caller re-resolves the trade and retries.
var ErrStale = errors.New("trade version is stale")

// InsertTrade creates a new trade aggregate and returns its generated id
func (s *Store) InsertTrade(ctx context.Context, trade *model.Trade) (id int64, err error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	err = s.db.WithContext(ctx).Create(trade).Error
	if err != nil {
		return 0, storeErr(err)
	}

	return trade.ID, nil
}

// FindOldestOpenTrade returns the oldest trade for the symbol still carrying
// open quantity, nil when the symbol has no open position.
func (s *Store) FindOldestOpenTrade(ctx context.Context, symbol string) (trade *model.Trade, err error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var found model.Trade
	err = s.db.WithContext(ctx).
		Where("`symbol` = ? AND `open_amount` > 0", symbol).
		Order("`opening_date` asc, `id` asc").
		Limit(1).
		Find(&found).Error
	if err != nil {
		return nil, storeErr(err)
	}
	if found.ID == 0 {
		return nil, nil
	}

	return &found, nil
}

// ApplyTradeDelta folds one closing transaction into the trade as a single
// conditional update. The version guard turns the resolve-then-update pair
// into a compare-and-swap: a concurrent writer bumps the version and this
// update matches zero rows instead of double-applying.
func (s *Store) ApplyTradeDelta(ctx context.Context, trade *model.Trade, delta model.TradeDelta) (err error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	refs := append(model.TxRefs{}, trade.ClosingTransactions...)
	refs = append(refs, delta.Ref)

	res := s.db.WithContext(ctx).
		Model(&model.Trade{}).
		Where("`id` = ? AND `version` = ?", trade.ID, trade.Version).
		Updates(map[string]interface{}{
			"closing_date":         delta.ClosingDate,
			"closing_price":        gorm.Expr("`closing_price` + ?", delta.ClosingPrice),
			"total_commission":     gorm.Expr("`total_commission` + ?", delta.TotalCommission),
			"total_fees":           gorm.Expr("`total_fees` + ?", delta.TotalFees),
			"open_amount":          gorm.Expr("`open_amount` - ?", delta.Amount),
			"closing_transactions": refs,
			"version":              gorm.Expr("`version` + 1"),
		})
	if res.Error != nil {
		return storeErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrStale
	}

	return nil
}

// AppliedTxIDs returns the set of broker transaction ids already referenced
// by any trade's opening or closing lists. Loaded once per matcher run so
// duplicate detection is a map lookup, not a query per transaction.
func (s *Store) AppliedTxIDs(ctx context.Context) (applied map[int64]bool, err error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var trades []model.Trade
	err = s.db.WithContext(ctx).
		Select("`id`", "`opening_transactions`", "`closing_transactions`").
		Find(&trades).Error
	if err != nil {
		return nil, storeErr(err)
	}

	applied = make(map[int64]bool)
	for _, t := range trades {
		for _, r := range t.OpeningTransactions {
			applied[r.TxID] = true
		}
		for _, r := range t.ClosingTransactions {
			applied[r.TxID] = true
		}
	}

	return applied, nil
}

// FindClosedUnreconciled returns fully closed trades whose profit has not
// been computed yet
func (s *Store) FindClosedUnreconciled(ctx context.Context) (trades []model.Trade, err error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	err = s.db.WithContext(ctx).
		Where("`open_amount` = 0 AND `reconciled` = 0").
		Find(&trades).Error
	if err != nil {
		return nil, storeErr(err)
	}

	return trades, nil
}

// BulkReconcileProfits computes realized profit for every closed trade in two
// bulk updates: the regular case and the zero-opening-price case, where the
// percent is undefined and stays unset.
func (s *Store) BulkReconcileProfits(ctx context.Context) (res model.ReconcileResult, err error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	r1 := s.db.WithContext(ctx).
		Model(&model.Trade{}).
		Where("`open_amount` = 0 AND `reconciled` = 0 AND `opening_price` <> 0").
		Updates(map[string]interface{}{
			"profit_dollars": gorm.Expr("`opening_price` + `closing_price`"),
			"profit_percent": gorm.Expr("(`opening_price` + `closing_price`) / ABS(`opening_price`)"),
			"reconciled":     1,
		})
	if r1.Error != nil {
		return res, storeErr(r1.Error)
	}

	r2 := s.db.WithContext(ctx).
		Model(&model.Trade{}).
		Where("`open_amount` = 0 AND `reconciled` = 0 AND `opening_price` = 0").
		Updates(map[string]interface{}{
			"profit_dollars": gorm.Expr("`opening_price` + `closing_price`"),
			"reconciled":     1,
		})
	if r2.Error != nil {
		return res, storeErr(r2.Error)
	}

	res.Matched = r1.RowsAffected + r2.RowsAffected
	res.Modified = r1.RowsAffected + r2.RowsAffected
	if r2.RowsAffected > 0 {
		logger.Warningf("BulkReconcileProfits left percent unset on %d trades with %s", r2.RowsAffected, diag.KindDegenerateTrade)
	}

	return res, nil
}
