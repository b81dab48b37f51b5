package matcher

import (
	"context"
	"time"

	"traderev/pkg/diag"
	"traderev/pkg/model"
)

// TransactionStore is the matcher's view of the transaction collection
type TransactionStore interface {
	// FetchUnprocessed returns up to limit unprocessed transactions, oldest first
	FetchUnprocessed(ctx context.Context, limit int) ([]model.Transaction, error)
	// MarkProcessed marks a whole page of broker transaction ids in one update
	MarkProcessed(ctx context.Context, txIDs []int64) (int64, error)
}

// TradeStore is the matcher's view of the trade collection
type TradeStore interface {
	EnsureIndexes(ctx context.Context) error
	InsertTrade(ctx context.Context, trade *model.Trade) (int64, error)
	// FindOldestOpenTrade returns nil when the symbol has no open position
	FindOldestOpenTrade(ctx context.Context, symbol string) (*model.Trade, error)
	// ApplyTradeDelta returns store.ErrStale when the trade version moved
	ApplyTradeDelta(ctx context.Context, trade *model.Trade, delta model.TradeDelta) error
	// AppliedTxIDs returns every transaction id already referenced by a trade
	AppliedTxIDs(ctx context.Context) (map[int64]bool, error)
}

// EventSink records utility log entries for completed runs
type EventSink interface {
	AddEvent(ctx context.Context, ev model.Event) error
}

// Result counters for one matching run
type Result struct {
	RunID        string        `json:"runID"`
	Pages        int           `json:"pages"`
	Transactions int           `json:"transactions"`
	Opened       int           `json:"opened"`  // trades created
	Closed       int           `json:"closed"`  // closing transactions applied
	Skipped      int           `json:"skipped"` // other effects, duplicates, diagnosed records
	Elapsed      time.Duration `json:"elapsed"`

	Diags []diag.Event `json:"diags,omitempty"`
}
