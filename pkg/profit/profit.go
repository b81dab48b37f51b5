// Package profit computes realized profit for fully closed trades in a
// separate idempotent pass, independent of the matcher.
package profit

import (
	"context"
	"fmt"
	"time"

	"traderev/pkg/diag"
	"traderev/pkg/model"
	"traderev/pkg/xlog"

	"github.com/google/uuid"
)

var logger = xlog.GetLogger()

// Store is the reconciler's view of the trade collection
type Store interface {
	FindClosedUnreconciled(ctx context.Context) ([]model.Trade, error)
	BulkReconcileProfits(ctx context.Context) (model.ReconcileResult, error)
}

// EventSink records utility log entries for completed runs
type EventSink interface {
	AddEvent(ctx context.Context, ev model.Event) error
}

// Result counters for one reconcile pass
type Result struct {
	RunID    string        `json:"runID"`
	Matched  int64         `json:"matched"`
	Modified int64         `json:"modified"`
	Elapsed  time.Duration `json:"elapsed"`

	Diags []diag.Event `json:"diags,omitempty"`
}

// Worker is the profit reconciler
type Worker struct {
	Name  string
	State string

	Trades Store
	Events EventSink // optional
}

func New(trades Store) (w *Worker, err error) {
	if trades == nil {
		err = fmt.Errorf("nil store")
		return
	}

	w = &Worker{
		Name:   "Profits",
		State:  "Init",
		Trades: trades,
	}

	logger.Info("profit worker created")

	return
}

// Run selects every fully closed trade without computed profit and fills in
// profitdollars and profitpercent in one bulk update. Trades with a zero
// opening price get dollars only; their percent is undefined and stays unset.
func (w *Worker) Run(ctx context.Context) (res Result, err error) {
	start := time.Now()
	res.RunID = uuid.New().String()

	logger.Infof("profit run:%s started", res.RunID)
	defer func() {
		res.Elapsed = time.Since(start)
		if err != nil {
			w.State = "Failed"
			logger.Errorf("profit run:%s failed with err:%s", res.RunID, err)
		} else {
			w.State = "Done"
			logger.Infof("profit run:%s done with matched:%d, modified:%d in %s",
				res.RunID, res.Matched, res.Modified, res.Elapsed)
		}
	}()

	w.State = "Surveying"
	trades, err := w.Trades.FindClosedUnreconciled(ctx)
	if err != nil {
		return
	}

	for _, t := range trades {
		if t.OpeningPrice.IsZero() {
			ev := diag.Event{
				Kind:    diag.KindDegenerateTrade,
				TradeID: t.ID,
				Symbol:  t.Symbol,
				Message: "zero opening price, percent left unset",
				Time:    time.Now().UnixMilli(),
			}
			res.Diags = append(res.Diags, ev)
			logger.Warningf("profit diag %s trade:%d symbol:%s %s", ev.Kind, ev.TradeID, ev.Symbol, ev.Message)
		}
	}

	w.State = "Reconciling"
	r, err := w.Trades.BulkReconcileProfits(ctx)
	if err != nil {
		return
	}
	res.Matched = r.Matched
	res.Modified = r.Modified

	if w.Events != nil {
		ev := model.Event{
			LogType: model.EventTypeProfits,
			RunID:   res.RunID,
			Author:  w.Name,
			Message: fmt.Sprintf("matched:%d modified:%d degenerate:%d", res.Matched, res.Modified, len(res.Diags)),
		}
		if err2 := w.Events.AddEvent(ctx, ev); err2 != nil {
			logger.Errorf("profit event write failed with err:%s", err2)
		}
	}

	return
}
