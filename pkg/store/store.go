// Package store implements the transaction and trade store contracts on mysql.
// All operations carry a bounded timeout so a dead store fails the run
// instead of hanging it.
package store

import (
	"context"
	"time"

	"traderev/pkg/diag"
	"traderev/pkg/model"
	"traderev/pkg/xlog"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var logger = xlog.GetLogger()

type Store struct {
	db        *gorm.DB
	opTimeout time.Duration
}

func New(db *gorm.DB, opTimeout time.Duration) *Store {
	if opTimeout <= 0 {
		opTimeout = 30 * time.Second
	}
	return &Store{
		db:        db,
		opTimeout: opTimeout,
	}
}

func (s *Store) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opTimeout)
}

// storeErr tags store failures so the matcher aborts instead of skipping
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	return diag.E(diag.KindStoreUnavailable, err)
}

// EnsureIndexes migrates the tables and makes sure the trade indexes used by
// the matching queries exist. Idempotent, called on every run.
func (s *Store) EnsureIndexes(ctx context.Context) (err error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	db := s.db.WithContext(ctx)
	err = db.AutoMigrate(
		model.Transaction{}, model.Trade{}, model.Event{},
		model.Week{}, model.CalendarEntry{},
	)
	if err != nil {
		return storeErr(err)
	}

	m := db.Migrator()
	for _, field := range []string{"Symbol", "OpeningDate", "ClosingDate"} {
		if !m.HasIndex(&model.Trade{}, field) {
			if err = m.CreateIndex(&model.Trade{}, field); err != nil {
				return storeErr(err)
			}
		}
	}

	return nil
}

// FetchUnprocessed returns up to limit transactions not yet folded into a
// trade, oldest first. The page always starts at the head of the unprocessed
// set: marking is what advances the cursor.
func (s *Store) FetchUnprocessed(ctx context.Context, limit int) (txs []model.Transaction, err error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	err = s.db.WithContext(ctx).
		Where("`processed` <> 1").
		Order("`transaction_date` asc, `id` asc").
		Limit(limit).
		Find(&txs).Error
	if err != nil {
		return nil, storeErr(err)
	}

	return txs, nil
}

// MarkProcessed marks a whole page of broker transaction ids in one update
func (s *Store) MarkProcessed(ctx context.Context, txIDs []int64) (updated int64, err error) {
	if len(txIDs) == 0 {
		return 0, nil
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	res := s.db.WithContext(ctx).
		Model(&model.Transaction{}).
		Where("`tx_id` IN ?", txIDs).
		Update("processed", 1)
	if res.Error != nil {
		return 0, storeErr(res.Error)
	}

	return res.RowsAffected, nil
}

// InsertTransactions loads broker transactions, silently skipping ids that
// are already present so imports can be replayed.
func (s *Store) InsertTransactions(ctx context.Context, txs []model.Transaction) (inserted int64, err error) {
	if len(txs) == 0 {
		return 0, nil
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tx_id"}},
			DoNothing: true,
		}).
		Create(&txs)
	if res.Error != nil {
		return 0, storeErr(res.Error)
	}

	return res.RowsAffected, nil
}

// AddEvent appends a utility log entry
func (s *Store) AddEvent(ctx context.Context, ev model.Event) (err error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	if ev.Timestamp == 0 {
		ev.Timestamp = time.Now().UnixMilli()
	}

	err = s.db.WithContext(ctx).Create(&ev).Error
	if err != nil {
		return storeErr(err)
	}

	return nil
}

// Events fetches the latest count events of the given type
func (s *Store) Events(ctx context.Context, logType string, count int) (evs []model.Event, err error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	err = s.db.WithContext(ctx).
		Where("`log_type` = ?", logType).
		Order("`timestamp` desc").
		Limit(count).
		Find(&evs).Error
	if err != nil {
		return nil, storeErr(err)
	}

	return evs, nil
}
