package matcher_test

import (
	"context"
	"sort"

	"traderev/pkg/model"
	"traderev/pkg/store"
)

// memStore is an in-memory stand-in for the mysql store, mirroring its
// semantics: date-ordered unprocessed pages, version-guarded trade deltas,
// bulk marking.
type memStore struct {
	txs    []model.Transaction
	trades []model.Trade
	nextID int64

	fetchErr  error // fault injection
	insertErr error
	staleOnce bool // force one ErrStale on the next delta

	markCalls [][]int64
	events    []model.Event
}

func (m *memStore) FetchUnprocessed(ctx context.Context, limit int) ([]model.Transaction, error) {
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}

	var page []model.Transaction
	for _, tx := range m.txs {
		if tx.Processed != 1 {
			page = append(page, tx)
		}
	}
	sort.SliceStable(page, func(i, j int) bool {
		if page[i].TransactionDate != page[j].TransactionDate {
			return page[i].TransactionDate < page[j].TransactionDate
		}
		return page[i].ID < page[j].ID
	})
	if len(page) > limit {
		page = page[:limit]
	}
	return page, nil
}

func (m *memStore) MarkProcessed(ctx context.Context, txIDs []int64) (int64, error) {
	m.markCalls = append(m.markCalls, txIDs)

	var updated int64
	for _, id := range txIDs {
		for i := range m.txs {
			if m.txs[i].TxID == id && m.txs[i].Processed != 1 {
				m.txs[i].Processed = 1
				updated++
			}
		}
	}
	return updated, nil
}

func (m *memStore) EnsureIndexes(ctx context.Context) error {
	return nil
}

func (m *memStore) InsertTrade(ctx context.Context, trade *model.Trade) (int64, error) {
	if m.insertErr != nil {
		return 0, m.insertErr
	}

	m.nextID++
	trade.ID = m.nextID
	m.trades = append(m.trades, *trade)
	return trade.ID, nil
}

func (m *memStore) FindOldestOpenTrade(ctx context.Context, symbol string) (*model.Trade, error) {
	var oldest *model.Trade
	for i := range m.trades {
		t := &m.trades[i]
		if t.Symbol != symbol || !t.OpenAmount.IsPositive() {
			continue
		}
		if oldest == nil ||
			t.OpeningDate < oldest.OpeningDate ||
			(t.OpeningDate == oldest.OpeningDate && t.ID < oldest.ID) {
			oldest = t
		}
	}
	if oldest == nil {
		return nil, nil
	}

	cp := *oldest
	cp.ClosingTransactions = append(model.TxRefs{}, oldest.ClosingTransactions...)
	return &cp, nil
}

func (m *memStore) ApplyTradeDelta(ctx context.Context, trade *model.Trade, delta model.TradeDelta) error {
	if m.staleOnce {
		m.staleOnce = false
		return store.ErrStale
	}

	for i := range m.trades {
		t := &m.trades[i]
		if t.ID != trade.ID {
			continue
		}
		if t.Version != trade.Version {
			return store.ErrStale
		}
		t.ClosingDate = delta.ClosingDate
		t.ClosingPrice = t.ClosingPrice.Add(delta.ClosingPrice)
		t.TotalCommission = t.TotalCommission.Add(delta.TotalCommission)
		t.TotalFees = t.TotalFees.Add(delta.TotalFees)
		t.OpenAmount = t.OpenAmount.Sub(delta.Amount)
		t.ClosingTransactions = append(t.ClosingTransactions, delta.Ref)
		t.Version++
		return nil
	}
	return store.ErrStale
}

func (m *memStore) AppliedTxIDs(ctx context.Context) (map[int64]bool, error) {
	applied := make(map[int64]bool)
	for _, t := range m.trades {
		for _, r := range t.OpeningTransactions {
			applied[r.TxID] = true
		}
		for _, r := range t.ClosingTransactions {
			applied[r.TxID] = true
		}
	}
	return applied, nil
}

func (m *memStore) AddEvent(ctx context.Context, ev model.Event) error {
	m.events = append(m.events, ev)
	return nil
}

// unmark rewinds the processed flags, simulating a crash between matching a
// page and marking it
func (m *memStore) unmark(txIDs ...int64) {
	for _, id := range txIDs {
		for i := range m.txs {
			if m.txs[i].TxID == id {
				m.txs[i].Processed = 0
			}
		}
	}
}
