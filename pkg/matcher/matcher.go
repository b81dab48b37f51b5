// Package matcher folds the backlog of unprocessed broker transactions into
// trade aggregates: opening fills create trades, closing fills attach to the
// oldest still-open trade for the same symbol. The loop is page-at-a-time,
// resumable, and safe to re-run after a crash.
package matcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"traderev/pkg/diag"
	"traderev/pkg/model"
	"traderev/pkg/store"
	"traderev/pkg/xlog"

	"github.com/google/uuid"
)

var logger = xlog.GetLogger()

const (
	// retries per closing transaction when the conditional update loses a
	// version race against a concurrent run
	maxStaleRetries = 3

	DefaultPageSize = 500
)

// Worker is the trade matching engine
type Worker struct {
	Name  string
	State string

	PageSize int

	Txns   TransactionStore
	Trades TradeStore
	Events EventSink // optional

	lock *RunLock // optional single-writer guard

	applied map[int64]bool // transaction ids already folded into a trade
	res     Result
}

// New returns a Worker instance over the given stores
func New(txns TransactionStore, trades TradeStore) (w *Worker, err error) {
	if txns == nil || trades == nil {
		err = errors.New("nil store")
		return
	}

	w = &Worker{
		Name:     "Matcher",
		State:    "Init",
		PageSize: DefaultPageSize,
		Txns:     txns,
		Trades:   trades,
	}

	logger.Info("matcher worker created")

	return
}

// WithLock makes Run refuse to start while another run holds the lock
func (w *Worker) WithLock(lock *RunLock) *Worker {
	w.lock = lock
	return w
}

// Run processes the entire backlog of unprocessed transactions to completion.
//
//  1. acquire the run lock, when configured
//  2. ensure the trade indexes exist
//  3. load the applied-transaction-id set once, for duplicate detection
//  4. loop pages: fetch unprocessed, match each transaction, bulk-mark the
//     page, until a fetch comes back empty
//
// Marking is what advances the cursor, so a crash between matching and
// marking just means the next run sees the same page again and skips the
// already-applied ids.
func (w *Worker) Run(ctx context.Context) (res Result, err error) {
	start := time.Now()
	w.res = Result{RunID: uuid.New().String()}

	logger.Infof("matcher run:%s started with pageSize:%d", w.res.RunID, w.PageSize)
	defer func() {
		w.res.Elapsed = time.Since(start)
		res = w.res
		if err != nil {
			w.State = "Failed"
			logger.Errorf("matcher run:%s failed with err:%s", res.RunID, err)
		} else {
			w.State = "Done"
			logger.Infof("matcher run:%s done with pages:%d, txs:%d, opened:%d, closed:%d, skipped:%d in %s",
				res.RunID, res.Pages, res.Transactions, res.Opened, res.Closed, res.Skipped, res.Elapsed)
		}
	}()

	if w.PageSize <= 0 {
		w.PageSize = DefaultPageSize
	}

	if w.lock != nil {
		w.State = "Locking"
		err = w.lock.Acquire(ctx, w.res.RunID)
		if err != nil {
			return
		}
		defer w.lock.Release(w.res.RunID)
	}

	w.State = "Preparing"
	err = w.Trades.EnsureIndexes(ctx)
	if err != nil {
		return
	}

	w.applied, err = w.Trades.AppliedTxIDs(ctx)
	if err != nil {
		return
	}

	w.State = "Matching"
	for {
		select {
		case <-ctx.Done():
			err = ctx.Err()
			return
		default:
		}

		var n int
		n, err = w.processPage(ctx)
		if err != nil {
			return
		}
		if n == 0 {
			break
		}
		w.res.Pages++
	}

	w.writeEvent(ctx)

	return
}

// processPage matches one page and marks it processed, returning the number
// of transactions seen
func (w *Worker) processPage(ctx context.Context) (n int, err error) {
	txs, err := w.Txns.FetchUnprocessed(ctx, w.PageSize)
	if err != nil {
		return
	}
	if len(txs) == 0 {
		return 0, nil
	}

	ids := make([]int64, 0, len(txs))
	for i := range txs {
		err = w.processOne(ctx, &txs[i])
		if err != nil {
			// store failure: abort without marking, the next run retries the page
			return 0, err
		}
		// marked regardless of branch taken, orphans and duplicates included
		ids = append(ids, txs[i].TxID)
	}

	updated, err := w.Txns.MarkProcessed(ctx, ids)
	if err != nil {
		return 0, err
	}
	if updated != int64(len(ids)) {
		logger.Warningf("marked %d of %d transactions in page", updated, len(ids))
	}

	w.res.Transactions += len(txs)

	return len(txs), nil
}

// processOne classifies a single transaction and applies its trade mutation.
// Only store failures come back as errors, everything else is a diagnostic.
func (w *Worker) processOne(ctx context.Context, tx *model.Transaction) (err error) {
	switch tx.Effect() {
	case model.EffectOpening:
		return w.openTrade(ctx, tx)
	case model.EffectClosing:
		return w.closeTrade(ctx, tx)
	default:
		w.res.Skipped++
		return nil
	}
}

func (w *Worker) openTrade(ctx context.Context, tx *model.Transaction) (err error) {
	if w.applied[tx.TxID] {
		w.diagnose(diag.NewEvent(diag.KindAlreadyApplied, tx.TxID, tx.Symbol, "opening transaction already folded into a trade"))
		return nil
	}

	trade, err := BuildOpeningTrade(tx)
	if err != nil {
		w.diagnose(diag.NewEvent(diag.KindMalformedRecord, tx.TxID, tx.Symbol, err.Error()))
		return nil
	}

	id, err := w.Trades.InsertTrade(ctx, trade)
	if err != nil {
		return
	}

	w.applied[tx.TxID] = true
	w.res.Opened++
	logger.Debugf("opened trade:%d for symbol:%s from tx:%d", id, tx.Symbol, tx.TxID)

	return nil
}

func (w *Worker) closeTrade(ctx context.Context, tx *model.Transaction) (err error) {
	if w.applied[tx.TxID] {
		w.diagnose(diag.NewEvent(diag.KindAlreadyApplied, tx.TxID, tx.Symbol, "closing transaction already folded into a trade"))
		return nil
	}

	for attempt := 0; attempt <= maxStaleRetries; attempt++ {
		var trade *model.Trade
		trade, err = w.Trades.FindOldestOpenTrade(ctx, tx.Symbol)
		if err != nil {
			return
		}
		if trade == nil {
			// no trade is fabricated for an orphan close
			w.diagnose(diag.NewEvent(diag.KindUnmatchedClose, tx.TxID, tx.Symbol, "no open trade for symbol"))
			return nil
		}
		if trade.ClosingTransactions.Has(tx.TxID) {
			w.diagnose(diag.NewEvent(diag.KindAlreadyApplied, tx.TxID, tx.Symbol,
				fmt.Sprintf("already present in trade:%d", trade.ID)))
			w.applied[tx.TxID] = true
			return nil
		}

		var delta model.TradeDelta
		delta, err = ApplyClosingTransaction(trade, tx)
		if err != nil {
			w.diagnose(diag.NewEvent(diag.KindMalformedRecord, tx.TxID, tx.Symbol, err.Error()))
			return nil
		}

		err = w.Trades.ApplyTradeDelta(ctx, trade, delta)
		if err == nil {
			w.applied[tx.TxID] = true
			w.res.Closed++
			logger.Debugf("closed %s of trade:%d with tx:%d", delta.Amount, trade.ID, tx.TxID)
			return nil
		}
		if !errors.Is(err, store.ErrStale) {
			return
		}
		// lost a version race, re-resolve and retry
		logger.Warningf("trade:%d version moved under tx:%d, retry %d", trade.ID, tx.TxID, attempt+1)
	}

	return fmt.Errorf("tx:%d exhausted %d stale retries", tx.TxID, maxStaleRetries)
}

func (w *Worker) diagnose(ev diag.Event) {
	w.res.Skipped++
	w.res.Diags = append(w.res.Diags, ev)
	logger.Warningf("matcher diag %s", ev)
}

func (w *Worker) writeEvent(ctx context.Context) {
	if w.Events == nil {
		return
	}

	ev := model.Event{
		LogType: model.EventTypeTrades,
		RunID:   w.res.RunID,
		Author:  w.Name,
		Message: fmt.Sprintf("pages:%d txs:%d opened:%d closed:%d skipped:%d",
			w.res.Pages, w.res.Transactions, w.res.Opened, w.res.Closed, w.res.Skipped),
	}
	if err := w.Events.AddEvent(ctx, ev); err != nil {
		logger.Errorf("matcher event write failed with err:%s", err)
	}
}
